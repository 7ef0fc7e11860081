package analytics

import "time"

// CountDistinctDays counts the calendar days, in loc, touched by the timestamps.
func CountDistinctDays(timestamps []int64, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := make(map[string]struct{}, len(timestamps))
	for _, ts := range timestamps {
		days[time.Unix(ts, 0).In(loc).Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}

// WindowStart returns the unix second windowDays whole days before now.
// Calendar arithmetic keeps very large windows from wrapping past now.
func WindowStart(now time.Time, windowDays int) int64 {
	if windowDays <= 0 {
		return now.Unix()
	}
	return now.UTC().AddDate(0, 0, -windowDays).Unix()
}
