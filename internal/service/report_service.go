package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-manager-reports/internal/analytics"
	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/export"
)

type reportAnalytics interface {
	TenantCourseBreakdowns(ctx context.Context, tenantID int64, filter models.BreakdownFilter) (*models.TenantBreakdown, error)
	StudentEngagementList(ctx context.Context, tenantID int64, filter models.EngagementFilter) ([]models.StudentEngagement, *models.Pagination, error)
	FindStudent(ctx context.Context, tenantID, studentID int64) (*models.Student, error)
	StudentEngagementScore(ctx context.Context, tenantID, studentID int64, windowDays int) (models.EngagementScore, error)
	StudentCourseStatuses(ctx context.Context, tenantID, studentID int64) ([]models.StudentCourseDetail, error)
	QuizAndAssignmentStatus(ctx context.Context, courseID, studentID int64) (models.QuizAssignmentStatus, error)
	ActivityLog(ctx context.Context, tenantID int64, filter models.ActivityLogFilter) ([]models.LogEntry, *models.Pagination, error)
	Window(windowDays int) int
}

type cohortRepository interface {
	ListTenantCohorts(ctx context.Context, tenantID int64) ([]models.Cohort, error)
	FindByName(ctx context.Context, tenantID int64, name string) (*models.Cohort, error)
	FindByID(ctx context.Context, tenantID, id int64) (*models.Cohort, error)
}

// ReportService assembles report pages out of independently loaded sections.
// A failing section is logged and replaced by a placeholder so the rest of the
// page still renders; client errors such as an unknown course abort the report.
type ReportService struct {
	analytics reportAnalytics
	cohorts   cohortRepository
	metrics   *MetricsService
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(analytics reportAnalytics, cohorts cohortRepository, metrics *MetricsService, location *time.Location, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &ReportService{analytics: analytics, cohorts: cohorts, metrics: metrics, location: location, logger: logger, now: time.Now}
}

// CourseCompletion builds the per-course completion report.
func (s *ReportService) CourseCompletion(ctx context.Context, tenant models.Tenant, filter models.BreakdownFilter) (*Report, error) {
	report := s.newReport(models.ReportTypeCourseCompletion, "Course Completion Report", tenant, "courses")
	report.Filters = map[string]string{"windowDays": strconv.Itoa(s.analytics.Window(filter.WindowDays))}
	if filter.CourseID != nil {
		report.Filters["courseId"] = strconv.FormatInt(*filter.CourseID, 10)
	}
	if filter.CohortID != nil {
		report.Filters["cohort"] = strconv.FormatInt(*filter.CohortID, 10)
	}

	var breakdown *models.TenantBreakdown
	section, err := s.section(report, "courses", "Course completion", func() (Section, error) {
		var err error
		breakdown, err = s.analytics.TenantCourseBreakdowns(ctx, tenant.ID, filter)
		if err != nil {
			return Section{}, err
		}
		return courseSection(breakdown), nil
	})
	if err != nil {
		return nil, err
	}
	report.Sections = append(report.Sections, section)
	report.Payload = breakdown
	s.attachCohorts(ctx, report)
	return report, nil
}

// StudentEngagement builds the paginated engagement report.
func (s *ReportService) StudentEngagement(ctx context.Context, tenant models.Tenant, filter models.EngagementFilter) (*Report, error) {
	report := s.newReport(models.ReportTypeStudentEngagement, "Student Engagement Report", tenant, "students")
	window := s.analytics.Window(filter.WindowDays)
	report.Filters = map[string]string{"windowDays": strconv.Itoa(window), "search": filter.Search}
	if filter.CohortID != nil {
		report.Filters["cohort"] = strconv.FormatInt(*filter.CohortID, 10)
	}

	var items []models.StudentEngagement
	section, err := s.section(report, "students", "Student engagement", func() (Section, error) {
		var (
			pagination *models.Pagination
			err        error
		)
		items, pagination, err = s.analytics.StudentEngagementList(ctx, tenant.ID, filter)
		if err != nil {
			return Section{}, err
		}
		report.Pagination = pagination
		return engagementSection(items, pagination, window), nil
	})
	if err != nil {
		return nil, err
	}
	report.Sections = append(report.Sections, section)
	report.Payload = items
	s.attachCohorts(ctx, report)
	return report, nil
}

// StudentDetail builds the single-student report. An unknown student is an error;
// engagement, course and assessment sections fail independently.
func (s *ReportService) StudentDetail(ctx context.Context, tenant models.Tenant, studentID int64) (*Report, error) {
	student, err := s.analytics.FindStudent(ctx, tenant.ID, studentID)
	if err != nil {
		return nil, err
	}
	report := s.newReport(models.ReportTypeStudentDetail, "Student Report: "+student.FullName(), tenant, "courses")
	report.Filters = map[string]string{"studentId": strconv.FormatInt(studentID, 10)}
	detail := &models.StudentDetail{Student: *student}

	profile, err := s.section(report, "profile", "Engagement (last "+strconv.Itoa(s.analytics.Window(0))+" days)", func() (Section, error) {
		score, err := s.analytics.StudentEngagementScore(ctx, tenant.ID, studentID, 0)
		if err != nil {
			return Section{}, err
		}
		detail.Engagement = score
		return profileSection(*student, score, s.location), nil
	})
	if err != nil {
		return nil, err
	}
	report.Sections = append(report.Sections, profile)

	courses, err := s.section(report, "courses", "Courses", func() (Section, error) {
		statuses, err := s.analytics.StudentCourseStatuses(ctx, tenant.ID, studentID)
		if err != nil {
			return Section{}, err
		}
		detail.Courses = statuses
		return studentCoursesSection(statuses, s.location), nil
	})
	if err != nil {
		return nil, err
	}
	report.Sections = append(report.Sections, courses)

	for i, course := range detail.Courses {
		key := "assessments-" + strconv.FormatInt(course.Course.ID, 10)
		idx := i
		assessments, err := s.section(report, key, course.Course.FullName+": quizzes and assignments", func() (Section, error) {
			status, err := s.analytics.QuizAndAssignmentStatus(ctx, course.Course.ID, studentID)
			if err != nil {
				return Section{}, err
			}
			detail.Courses[idx].QuizAssignmentStatus = status
			return assessmentSection(course.Course.FullName, status, s.location), nil
		})
		if err != nil {
			return nil, err
		}
		report.Sections = append(report.Sections, assessments)
	}
	report.Payload = detail
	return report, nil
}

// ActivityLog builds the event log listing.
func (s *ReportService) ActivityLog(ctx context.Context, tenant models.Tenant, filter models.ActivityLogFilter) (*Report, error) {
	report := s.newReport(models.ReportTypeActivityLog, "Activity Log", tenant, "log")
	report.Filters = map[string]string{"search": filter.Search}
	if filter.From > 0 {
		report.Filters["from"] = time.Unix(filter.From, 0).In(s.location).Format("2006-01-02")
	}
	if filter.To > 0 {
		report.Filters["to"] = time.Unix(filter.To, 0).In(s.location).Format("2006-01-02")
	}

	var entries []models.LogEntry
	section, err := s.section(report, "log", "Activity log", func() (Section, error) {
		var (
			pagination *models.Pagination
			err        error
		)
		entries, pagination, err = s.analytics.ActivityLog(ctx, tenant.ID, filter)
		if err != nil {
			return Section{}, err
		}
		report.Pagination = pagination
		return logSection(entries, pagination, s.location), nil
	})
	if err != nil {
		return nil, err
	}
	report.Sections = append(report.Sections, section)
	report.Payload = entries
	return report, nil
}

func (s *ReportService) newReport(kind models.ReportType, title string, tenant models.Tenant, primary string) *Report {
	return &Report{Type: kind, Title: title, Tenant: tenant, GeneratedAt: s.now().In(s.location), Primary: primary}
}

// section runs load. Client errors are returned to the caller; anything else
// becomes a placeholder section and a warning.
func (s *ReportService) section(report *Report, key, title string, load func() (Section, error)) (Section, error) {
	section, err := load()
	if err == nil {
		section.Key, section.Title = key, title
		return section, nil
	}
	if appErr := appErrors.FromError(err); appErr.Status < http.StatusInternalServerError {
		return Section{}, appErr
	}
	s.logger.Warn("report section failed",
		zap.String("report", string(report.Type)),
		zap.String("section", key),
		zap.Int64("tenant_id", report.Tenant.ID),
		zap.Error(err),
	)
	s.metrics.RecordSectionFailure(string(report.Type), key)
	return Section{Key: key, Title: title, Error: SectionUnavailable}, nil
}

func (s *ReportService) attachCohorts(ctx context.Context, report *Report) {
	if s.cohorts == nil {
		return
	}
	cohorts, err := s.cohorts.ListTenantCohorts(ctx, report.Tenant.ID)
	if err != nil {
		s.logger.Warn("cohort filter unavailable", zap.Int64("tenant_id", report.Tenant.ID), zap.Error(err))
		return
	}
	report.Cohorts = cohorts
}

func courseSection(b *models.TenantBreakdown) Section {
	section := Section{
		Cards: []export.Card{
			{Label: "Courses", Value: strconv.Itoa(len(b.Courses))},
			{Label: "Students enrolled", Value: strconv.Itoa(b.Totals.TotalEnrolled)},
			{Label: "Completed", Value: strconv.Itoa(b.Totals.Completed)},
			{Label: "In progress", Value: strconv.Itoa(b.Totals.InProgress)},
			{Label: "Not started", Value: strconv.Itoa(b.Totals.NotStarted)},
			{Label: "Average completion (%)", Value: formatPct(b.Totals.CompletionRatePct)},
			{Label: "Activity rate (%)", Value: formatPct(b.Totals.ActivityRatePct)},
		},
		Columns: []export.Column{
			{Key: "course", Label: "Course"},
			{Key: "shortname", Label: "Short name"},
			{Key: "enrolled", Label: "Enrolled"},
			{Key: "completed", Label: "Completed"},
			{Key: "in_progress", Label: "In progress"},
			{Key: "not_started", Label: "Not started"},
			{Key: "completion_rate", Label: "Completion rate (%)"},
			{Key: "activity_rate", Label: "Activity rate (%)"},
		},
		Rows:   make([]map[string]string, 0, len(b.Courses)),
		Charts: make([]export.Donut, 0, len(b.Courses)),
	}
	for _, c := range b.Courses {
		section.Rows = append(section.Rows, map[string]string{
			"course":          c.Course.FullName,
			"shortname":       c.Course.ShortName,
			"enrolled":        strconv.Itoa(c.TotalEnrolled),
			"completed":       strconv.Itoa(c.Completed),
			"in_progress":     strconv.Itoa(c.InProgress),
			"not_started":     strconv.Itoa(c.NotStarted),
			"completion_rate": formatPct(c.CompletionRatePct),
			"activity_rate":   formatPct(c.ActivityRatePct),
		})
		section.Charts = append(section.Charts, export.Donut{
			Title:   c.Course.FullName,
			Caption: fmt.Sprintf("%d enrolled, %s%% average completion", c.TotalEnrolled, formatPct(c.CompletionRatePct)),
			Slices: []export.Slice{
				{Label: "Completed", Value: float64(c.Completed)},
				{Label: "In progress", Value: float64(c.InProgress)},
				{Label: "Not started", Value: float64(c.NotStarted)},
			},
		})
	}
	return section
}

func engagementSection(items []models.StudentEngagement, pagination *models.Pagination, window int) Section {
	section := Section{
		Columns: []export.Column{
			{Key: "name", Label: "Student"},
			{Key: "username", Label: "Username"},
			{Key: "cohort", Label: "Class"},
			{Key: "login_days", Label: fmt.Sprintf("Login days (%dd)", window)},
			{Key: "learning_hours", Label: "Learning hours"},
			{Key: "forum_posts", Label: "Forum posts"},
			{Key: "score", Label: "Engagement score"},
		},
		Rows: make([]map[string]string, 0, len(items)),
	}
	var scoreSum, hoursSum float64
	var loginSum int
	for _, item := range items {
		cohort := "-"
		if item.Student.CohortName != nil {
			cohort = *item.Student.CohortName
		}
		section.Rows = append(section.Rows, map[string]string{
			"id":             strconv.FormatInt(item.Student.ID, 10),
			"name":           item.Student.FullName(),
			"username":       item.Student.Username,
			"cohort":         cohort,
			"login_days":     strconv.Itoa(item.LoginDays),
			"learning_hours": formatPct(item.LearningHours),
			"forum_posts":    strconv.Itoa(item.ForumPosts),
			"score":          formatPct(item.Score),
		})
		scoreSum += item.Score
		hoursSum += item.LearningHours
		loginSum += item.LoginDays
	}
	total := 0
	if pagination != nil {
		total = pagination.TotalCount
	}
	var avgScore, avgHours, avgLogins float64
	if n := float64(len(items)); n > 0 {
		avgScore = analytics.Round1(scoreSum / n)
		avgHours = analytics.Round1(hoursSum / n)
		avgLogins = analytics.Round1(float64(loginSum) / n)
	}
	section.Cards = []export.Card{
		{Label: "Students", Value: strconv.Itoa(total)},
		{Label: "Average score", Value: formatPct(avgScore)},
		{Label: "Average login days", Value: formatPct(avgLogins)},
		{Label: "Average learning hours", Value: formatPct(avgHours)},
	}
	return section
}

func profileSection(student models.Student, score models.EngagementScore, loc *time.Location) Section {
	cohort := "-"
	if student.CohortName != nil {
		cohort = *student.CohortName
	}
	return Section{Cards: []export.Card{
		{Label: "Student", Value: student.FullName()},
		{Label: "Email", Value: student.Email},
		{Label: "Class", Value: cohort},
		{Label: "Last access", Value: formatTimestamp(student.LastAccess, loc)},
		{Label: "Login days", Value: strconv.Itoa(score.LoginDays)},
		{Label: "Learning hours", Value: formatPct(score.LearningHours)},
		{Label: "Forum posts", Value: strconv.Itoa(score.ForumPosts)},
		{Label: "Engagement score", Value: formatPct(score.Score)},
	}}
}

func studentCoursesSection(courses []models.StudentCourseDetail, loc *time.Location) Section {
	section := Section{
		Columns: []export.Column{
			{Key: "course", Label: "Course"},
			{Key: "status", Label: "Status"},
			{Key: "progress", Label: "Progress (%)"},
			{Key: "last_access", Label: "Last access"},
		},
		Rows: make([]map[string]string, 0, len(courses)),
	}
	counts := map[models.CourseStatus]int{}
	for _, c := range courses {
		counts[c.Status]++
		section.Rows = append(section.Rows, map[string]string{
			"course":      c.Course.FullName,
			"status":      statusLabel(string(c.Status)),
			"progress":    formatPct(c.ProgressPct),
			"last_access": formatTimestamp(c.LastAccess, loc),
		})
	}
	section.Charts = []export.Donut{{
		Title:   "Course status",
		Caption: fmt.Sprintf("%d courses", len(courses)),
		Slices: []export.Slice{
			{Label: "Completed", Value: float64(counts[models.CourseStatusCompleted])},
			{Label: "In progress", Value: float64(counts[models.CourseStatusInProgress])},
			{Label: "Not started", Value: float64(counts[models.CourseStatusNotStarted])},
		},
	}}
	return section
}

func assessmentSection(course string, status models.QuizAssignmentStatus, loc *time.Location) Section {
	section := Section{
		Columns: []export.Column{
			{Key: "type", Label: "Type"},
			{Key: "name", Label: "Name"},
			{Key: "status", Label: "Status"},
			{Key: "score", Label: "Score (%)"},
			{Key: "detail", Label: "Detail"},
		},
		Rows: make([]map[string]string, 0, len(status.Quizzes)+len(status.Assignments)),
	}
	for _, q := range status.Quizzes {
		section.Rows = append(section.Rows, map[string]string{
			"course": course,
			"type":   "Quiz",
			"name":   q.Name,
			"status": statusLabel(string(q.Status)),
			"score":  formatOptionalPct(q.BestPct),
			"detail": fmt.Sprintf("%d attempts, %s min, last finished %s", q.Attempts, formatPct(float64(q.DurationSeconds)/60), formatTimestamp(q.LastFinished, loc)),
		})
	}
	for _, a := range status.Assignments {
		section.Rows = append(section.Rows, map[string]string{
			"course": course,
			"type":   "Assignment",
			"name":   a.Name,
			"status": statusLabel(string(a.Status)),
			"score":  formatOptionalPct(a.Pct),
			"detail": fmt.Sprintf("due %s, %s", formatTimestamp(a.DueDate, loc), statusLabel(string(a.Grading))),
		})
	}
	return section
}

func logSection(entries []models.LogEntry, pagination *models.Pagination, loc *time.Location) Section {
	section := Section{
		Columns: []export.Column{
			{Key: "time", Label: "Time"},
			{Key: "user", Label: "User"},
			{Key: "username", Label: "Username"},
			{Key: "course", Label: "Course"},
			{Key: "event", Label: "Event"},
			{Key: "component", Label: "Component"},
			{Key: "action", Label: "Action"},
			{Key: "ip", Label: "IP address"},
		},
		Rows: make([]map[string]string, 0, len(entries)),
	}
	for _, e := range entries {
		course := "-"
		if e.CourseName != nil {
			course = *e.CourseName
		}
		section.Rows = append(section.Rows, map[string]string{
			"time":      formatTimestamp(e.TimeCreated, loc),
			"user":      models.User{FirstName: e.FirstName, LastName: e.LastName}.FullName(),
			"username":  e.Username,
			"course":    course,
			"event":     e.EventName,
			"component": e.Component,
			"action":    e.Action + " " + e.Target,
			"ip":        e.IP,
		})
	}
	total := 0
	if pagination != nil {
		total = pagination.TotalCount
	}
	section.Cards = []export.Card{{Label: "Matching entries", Value: strconv.Itoa(total)}}
	return section
}
