package models

// LoginEventName is the event logged on every successful sign-in.
const LoginEventName = `\core\event\user_loggedin`

// LogEntry is one row of mdl_logstore_standard_log joined with its user and course.
type LogEntry struct {
	ID          int64   `db:"id" json:"id"`
	UserID      int64   `db:"userid" json:"user_id"`
	Username    string  `db:"username" json:"username"`
	FirstName   string  `db:"firstname" json:"first_name"`
	LastName    string  `db:"lastname" json:"last_name"`
	CourseID    *int64  `db:"courseid" json:"course_id,omitempty"`
	CourseName  *string `db:"coursename" json:"course_name,omitempty"`
	EventName   string  `db:"eventname" json:"event_name"`
	Action      string  `db:"action" json:"action"`
	Target      string  `db:"target" json:"target"`
	Component   string  `db:"component" json:"component"`
	TimeCreated int64   `db:"timecreated" json:"time_created"`
	IP          string  `db:"ip" json:"ip"`
}

// ActivityLogFilter scopes the activity log listing. From and To are unix seconds; zero is open.
type ActivityLogFilter struct {
	From     int64
	To       int64
	Search   string
	Page     int
	PageSize int
	All      bool
}

// UserTimestamp is a (user, event time) pair used by the time-spent heuristic.
type UserTimestamp struct {
	UserID      int64 `db:"userid"`
	TimeCreated int64 `db:"timecreated"`
}

// UserCount is a grouped per-user count.
type UserCount struct {
	UserID int64 `db:"userid"`
	Count  int   `db:"total"`
}
