package models

// ReportType enumerates the school manager reports.
type ReportType string

const (
	ReportTypeCourseCompletion  ReportType = "course-completion"
	ReportTypeStudentEngagement ReportType = "student-engagement"
	ReportTypeStudentDetail     ReportType = "student-detail"
	ReportTypeActivityLog       ReportType = "activity-log"
)

// ReportFormat enumerates supported output formats.
type ReportFormat string

const (
	ReportFormatHTML  ReportFormat = "html"
	ReportFormatJSON  ReportFormat = "json"
	ReportFormatExcel ReportFormat = "excel"
	ReportFormatPDF   ReportFormat = "pdf"
)

// Valid reports whether the format is one the service can produce.
func (f ReportFormat) Valid() bool {
	switch f {
	case ReportFormatHTML, ReportFormatJSON, ReportFormatExcel, ReportFormatPDF:
		return true
	}
	return false
}

// IsExport reports whether the format produces a file download.
func (f ReportFormat) IsExport() bool {
	return f == ReportFormatExcel || f == ReportFormatPDF
}
