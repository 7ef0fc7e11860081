package analytics

import (
	"math"
	"time"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// Engagement score weights.
const (
	loginDayWeight     = 3.0
	learningHourWeight = 4.0
	forumPostWeight    = 5.0
	learningHourCap    = 12.0
)

// EngagementScore blends login days, capped learning hours and forum posts
// into a score in [0, 100], rounded to one decimal.
func EngagementScore(loginDays int, learningHours float64, forumPosts int) float64 {
	hours := math.Min(learningHourCap, math.Max(0, learningHours))
	raw := float64(loginDays)*loginDayWeight + hours*learningHourWeight + float64(forumPosts)*forumPostWeight
	return Round1(ClampPercent(math.Min(100, raw)))
}

// EngagementInput is the raw signal for one student inside the window.
type EngagementInput struct {
	LoginTimestamps []int64
	EventTimestamps []int64
	ForumPosts      int
}

// Engagement derives the full engagement metric for one student.
func Engagement(in EngagementInput, loc *time.Location, gapThreshold int64) models.EngagementScore {
	loginDays := CountDistinctDays(in.LoginTimestamps, loc)
	hours := Hours(EstimateActiveSeconds(in.EventTimestamps, gapThreshold))
	return models.EngagementScore{
		LoginDays:     loginDays,
		LearningHours: hours,
		ForumPosts:    in.ForumPosts,
		Score:         EngagementScore(loginDays, hours, in.ForumPosts),
	}
}
