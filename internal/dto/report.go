package dto

// ReportQuery captures the raw report query string. Values stay strings so the
// handler can reject malformed numbers instead of silently zeroing them.
type ReportQuery struct {
	Format     string `form:"format"`
	CourseID   string `form:"courseId"`
	Cohort     string `form:"cohort"`
	Search     string `form:"search"`
	WindowDays string `form:"windowDays"`
	Page       string `form:"page"`
	PerPage    string `form:"perPage"`
	From       string `form:"from"`
	To         string `form:"to"`
}
