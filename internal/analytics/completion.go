package analytics

import (
	"time"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// StartedPlaceholderPct is credited to a started student in a course without tracked modules.
const StartedPlaceholderPct = 5.0

// ClassifyStudent places a student in exactly one status bucket.
// A completion timestamp wins over an access record.
func ClassifyStudent(p models.StudentCourseProgress) models.CourseStatus {
	switch {
	case p.TimeCompleted > 0:
		return models.CourseStatusCompleted
	case p.LastAccess > 0:
		return models.CourseStatusInProgress
	default:
		return models.CourseStatusNotStarted
	}
}

// StudentProgressPct is the fractional progress of one student in one course.
func StudentProgressPct(p models.StudentCourseProgress) float64 {
	switch {
	case p.TimeCompleted > 0:
		return 100
	case p.TrackedModules > 0:
		return Percent(float64(p.CompletedModules), float64(p.TrackedModules))
	case p.TimeStarted > 0:
		return StartedPlaceholderPct
	default:
		return 0
	}
}

// Breakdown buckets the progress rows of one course and derives its rates.
//
// Every row is classified once, so Completed, InProgress and NotStarted always
// sum to TotalEnrolled. The completion rate is the mean per-student progress
// and the activity rate is the share of students whose last access falls
// inside the trailing windowDays. Rows are expected to be unique per student.
func Breakdown(rows []models.StudentCourseProgress, now time.Time, windowDays int) models.CompletionBreakdown {
	var out models.CompletionBreakdown
	if len(rows) == 0 {
		return out
	}
	since := WindowStart(now, windowDays)

	var progressSum float64
	active := 0
	for _, row := range rows {
		switch ClassifyStudent(row) {
		case models.CourseStatusCompleted:
			out.Completed++
		case models.CourseStatusInProgress:
			out.InProgress++
		}
		progressSum += StudentProgressPct(row)
		if row.LastAccess > 0 && row.LastAccess >= since {
			active++
		}
	}
	out.TotalEnrolled = len(rows)
	out.NotStarted = out.TotalEnrolled - out.Completed - out.InProgress
	if out.NotStarted < 0 {
		out.NotStarted = 0
	}
	out.CompletionRatePct = Round1(ClampPercent(progressSum / float64(out.TotalEnrolled)))
	out.ActivityRatePct = Round1(Percent(float64(active), float64(out.TotalEnrolled)))
	return out
}

// ActivityRate is the activity share of Breakdown on its own.
func ActivityRate(rows []models.StudentCourseProgress, now time.Time, windowDays int) float64 {
	return Breakdown(rows, now, windowDays).ActivityRatePct
}

// GroupByCourse splits progress rows per course id preserving row order.
func GroupByCourse(rows []models.StudentCourseProgress) map[int64][]models.StudentCourseProgress {
	grouped := make(map[int64][]models.StudentCourseProgress)
	for _, row := range rows {
		grouped[row.CourseID] = append(grouped[row.CourseID], row)
	}
	return grouped
}

// Totals combines per-course breakdowns into tenant totals. Rates are
// weighted by enrollment so large courses count proportionally.
func Totals(courses []models.CourseBreakdown) models.CompletionBreakdown {
	var out models.CompletionBreakdown
	var completionWeighted, activityWeighted float64
	for _, c := range courses {
		out.Completed += c.Completed
		out.InProgress += c.InProgress
		out.NotStarted += c.NotStarted
		out.TotalEnrolled += c.TotalEnrolled
		completionWeighted += c.CompletionRatePct * float64(c.TotalEnrolled)
		activityWeighted += c.ActivityRatePct * float64(c.TotalEnrolled)
	}
	if out.TotalEnrolled > 0 {
		out.CompletionRatePct = Round1(ClampPercent(completionWeighted / float64(out.TotalEnrolled)))
		out.ActivityRatePct = Round1(ClampPercent(activityWeighted / float64(out.TotalEnrolled)))
	}
	return out
}
