package models

// Quiz status tags.
type QuizStatus string

const (
	QuizStatusNotAttempted QuizStatus = "not_attempted"
	QuizStatusInProgress   QuizStatus = "in_progress"
	QuizStatusAttempted    QuizStatus = "attempted"
)

// Quiz attempt states stored by the LMS quiz engine.
const (
	AttemptStateFinished   = "finished"
	AttemptStateInProgress = "inprogress"
)

// AssignmentStatus tags submission timing against the due date.
type AssignmentStatus string

const (
	AssignmentStatusNotSubmitted  AssignmentStatus = "not_submitted"
	AssignmentStatusDue           AssignmentStatus = "due"
	AssignmentStatusSubmitted     AssignmentStatus = "submitted"
	AssignmentStatusLateSubmitted AssignmentStatus = "late_submitted"
)

// GradingStatus tells whether a teacher has graded the submission.
type GradingStatus string

const (
	GradingStatusGraded    GradingStatus = "graded"
	GradingStatusNotGraded GradingStatus = "not_graded"
)

// SubmissionStatusSubmitted is the mdl_assign_submission status for handed-in work.
const SubmissionStatusSubmitted = "submitted"

// Quiz mirrors mdl_quiz. SumGrades is the maximum raw score.
type Quiz struct {
	ID        int64   `db:"id" json:"id"`
	CourseID  int64   `db:"course" json:"course_id"`
	Name      string  `db:"name" json:"name"`
	SumGrades float64 `db:"sumgrades" json:"sum_grades"`
}

// QuizAttempt mirrors mdl_quiz_attempts.
type QuizAttempt struct {
	QuizID     int64    `db:"quiz" json:"quiz_id"`
	UserID     int64    `db:"userid" json:"user_id"`
	State      string   `db:"state" json:"state"`
	SumGrades  *float64 `db:"sumgrades" json:"sum_grades,omitempty"`
	TimeStart  int64    `db:"timestart" json:"time_start"`
	TimeFinish int64    `db:"timefinish" json:"time_finish"`
}

// QuizSummary is the per-quiz rollup for one student.
type QuizSummary struct {
	QuizID          int64      `json:"quiz_id"`
	Name            string     `json:"name"`
	Attempts        int        `json:"attempts"`
	BestPct         *float64   `json:"best_pct"`
	DurationSeconds int64      `json:"duration_seconds"`
	LastFinished    int64      `json:"last_finished"`
	Status          QuizStatus `json:"status"`
}

// Assignment mirrors mdl_assign. Grade is the maximum grade.
type Assignment struct {
	ID       int64   `db:"id" json:"id"`
	CourseID int64   `db:"course" json:"course_id"`
	Name     string  `db:"name" json:"name"`
	DueDate  int64   `db:"duedate" json:"due_date"`
	Grade    float64 `db:"grade" json:"grade"`
}

// AssignmentSubmission mirrors the latest mdl_assign_submission row.
type AssignmentSubmission struct {
	AssignmentID int64  `db:"assignment" json:"assignment_id"`
	UserID       int64  `db:"userid" json:"user_id"`
	Status       string `db:"status" json:"status"`
	TimeModified int64  `db:"timemodified" json:"time_modified"`
}

// AssignmentGrade mirrors mdl_assign_grades. Negative grades mean ungraded.
type AssignmentGrade struct {
	AssignmentID int64   `db:"assignment" json:"assignment_id"`
	UserID       int64   `db:"userid" json:"user_id"`
	Grade        float64 `db:"grade" json:"grade"`
}

// AssignmentSummary is the per-assignment rollup for one student.
type AssignmentSummary struct {
	AssignmentID int64            `json:"assignment_id"`
	Name         string           `json:"name"`
	DueDate      int64            `json:"due_date"`
	SubmittedAt  int64            `json:"submitted_at"`
	Status       AssignmentStatus `json:"status"`
	Grading      GradingStatus    `json:"grading"`
	Grade        *float64         `json:"grade"`
	Pct          *float64         `json:"pct"`
}

// QuizAssignmentStatus is the assessment rollup for one course and student.
type QuizAssignmentStatus struct {
	Quizzes     []QuizSummary       `json:"quizzes"`
	Assignments []AssignmentSummary `json:"assignments"`
}

// StudentCourseDetail is one course row of the student detail report.
type StudentCourseDetail struct {
	Course      Course       `json:"course"`
	Status      CourseStatus `json:"status"`
	ProgressPct float64      `json:"progress_pct"`
	LastAccess  int64        `json:"last_access"`
	QuizAssignmentStatus
}

// StudentDetail is the student detail report payload.
type StudentDetail struct {
	Student    Student               `json:"student"`
	Engagement EngagementScore       `json:"engagement"`
	Courses    []StudentCourseDetail `json:"courses"`
}
