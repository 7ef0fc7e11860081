package models

// CourseStatus classifies a student's standing in a single course.
type CourseStatus string

const (
	CourseStatusCompleted  CourseStatus = "completed"
	CourseStatusInProgress CourseStatus = "in_progress"
	CourseStatusNotStarted CourseStatus = "not_started"
)

// StudentCourseProgress is one row per actively enrolled student and course.
// Missing completion or access records are read as zero timestamps.
type StudentCourseProgress struct {
	UserID           int64 `db:"userid" json:"user_id"`
	CourseID         int64 `db:"courseid" json:"course_id"`
	TimeStarted      int64 `db:"timestarted" json:"time_started"`
	TimeCompleted    int64 `db:"timecompleted" json:"time_completed"`
	LastAccess       int64 `db:"lastaccess" json:"last_access"`
	TrackedModules   int   `db:"tracked_modules" json:"tracked_modules"`
	CompletedModules int   `db:"completed_modules" json:"completed_modules"`
}

// ProgressFilter narrows the progress query. Nil fields are unconstrained.
type ProgressFilter struct {
	CourseID  *int64
	CohortID  *int64
	StudentID *int64
}

// CompletionBreakdown holds the per-course status buckets and rates.
type CompletionBreakdown struct {
	Completed         int     `json:"completed"`
	InProgress        int     `json:"in_progress"`
	NotStarted        int     `json:"not_started"`
	TotalEnrolled     int     `json:"total_enrolled"`
	CompletionRatePct float64 `json:"completion_rate_pct"`
	ActivityRatePct   float64 `json:"activity_rate_pct"`
}

// CourseBreakdown pairs a course with its breakdown.
type CourseBreakdown struct {
	Course Course `json:"course"`
	CompletionBreakdown
}

// TenantBreakdown is the course completion report payload.
type TenantBreakdown struct {
	Courses []CourseBreakdown   `json:"courses"`
	Totals  CompletionBreakdown `json:"totals"`
}

// BreakdownFilter scopes the course completion report.
type BreakdownFilter struct {
	CourseID   *int64
	CohortID   *int64
	WindowDays int
}

// EngagementScore is the composite engagement metric for one student.
type EngagementScore struct {
	LoginDays     int     `json:"login_days"`
	LearningHours float64 `json:"learning_hours"`
	ForumPosts    int     `json:"forum_posts"`
	Score         float64 `json:"score"`
}

// StudentEngagement is one row of the engagement report.
type StudentEngagement struct {
	Student Student `json:"student"`
	EngagementScore
}

// EngagementFilter scopes the student engagement report.
type EngagementFilter struct {
	StudentFilter
	WindowDays int
	// All ignores Page and PageSize and loads every matching student.
	All bool
}
