package analytics

import "sort"

// DefaultGapThreshold is the idle gap, in seconds, that ends an estimated session.
const DefaultGapThreshold int64 = 1800

// EstimateActiveSeconds approximates time spent from event timestamps.
//
// The LMS has no session start or end events, so the estimate sorts the
// timestamps and sums the deltas between consecutive events that are strictly
// shorter than gapThreshold. Longer gaps are treated as idle and contribute
// nothing, which means the time after the last event of each burst is never
// counted. A non-positive threshold uses DefaultGapThreshold.
func EstimateActiveSeconds(timestamps []int64, gapThreshold int64) int64 {
	if len(timestamps) < 2 {
		return 0
	}
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}
	sorted := make([]int64, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total int64
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i] - sorted[i-1]
		if gap < gapThreshold {
			total += gap
		}
	}
	return total
}

// Hours converts seconds to hours rounded to one decimal.
func Hours(seconds int64) float64 {
	if seconds <= 0 {
		return 0
	}
	return Round1(float64(seconds) / 3600)
}
