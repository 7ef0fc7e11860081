package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-manager-reports/internal/analytics"
	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

type progressRepository interface {
	StudentProgress(ctx context.Context, tenantID int64, filter models.ProgressFilter) ([]models.StudentCourseProgress, error)
}

type courseRepository interface {
	ListTenantCourses(ctx context.Context, tenantID int64, courseID *int64) ([]models.Course, error)
	StudentCourses(ctx context.Context, tenantID, studentID int64) ([]models.Course, error)
}

type activityRepository interface {
	EventTimestamps(ctx context.Context, userIDs []int64, since, until int64) (map[int64][]int64, error)
	LoginTimestamps(ctx context.Context, userIDs []int64, since, until int64) (map[int64][]int64, error)
	ForumPostCounts(ctx context.Context, tenantID int64, userIDs []int64, since, until int64) (map[int64]int, error)
	ActivityLog(ctx context.Context, tenantID int64, filter models.ActivityLogFilter) ([]models.LogEntry, int, error)
}

type assessmentRepository interface {
	Quizzes(ctx context.Context, courseID int64) ([]models.Quiz, error)
	QuizAttempts(ctx context.Context, courseID, userID int64) ([]models.QuizAttempt, error)
	Assignments(ctx context.Context, courseID int64) ([]models.Assignment, error)
	Submissions(ctx context.Context, courseID, userID int64) ([]models.AssignmentSubmission, error)
	Grades(ctx context.Context, courseID, userID int64) ([]models.AssignmentGrade, error)
}

type studentDirectory interface {
	List(ctx context.Context, tenantID int64, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, tenantID, id int64) (*models.Student, error)
}

// AnalyticsConfig tunes the aggregation heuristics.
type AnalyticsConfig struct {
	WindowDays      int
	GapThreshold    time.Duration
	Location        *time.Location
	DefaultPageSize int
	MaxPageSize     int
	MaxExportRows   int
}

// AnalyticsRepositories groups the read-only collaborators of the aggregator.
type AnalyticsRepositories struct {
	Progress    progressRepository
	Courses     courseRepository
	Activity    activityRepository
	Assessments assessmentRepository
	Students    studentDirectory
}

// AnalyticsService computes completion and engagement metrics for a tenant.
// Every call recomputes from current data; nothing is cached.
type AnalyticsService struct {
	repos   AnalyticsRepositories
	metrics *MetricsService
	cfg     AnalyticsConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalyticsService constructs the aggregator.
func NewAnalyticsService(repos AnalyticsRepositories, metrics *MetricsService, cfg AnalyticsConfig, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = time.Duration(analytics.DefaultGapThreshold) * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 25
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 200
	}
	if cfg.MaxExportRows <= 0 {
		cfg.MaxExportRows = 10000
	}
	return &AnalyticsService{repos: repos, metrics: metrics, cfg: cfg, logger: logger, now: time.Now}
}

// Window returns the effective trailing window in days.
func (s *AnalyticsService) Window(windowDays int) int {
	if windowDays <= 0 {
		return s.cfg.WindowDays
	}
	return windowDays
}

// CourseCompletionBreakdown buckets the students of one course.
func (s *AnalyticsService) CourseCompletionBreakdown(ctx context.Context, tenantID, courseID int64) (models.CompletionBreakdown, error) {
	rows, err := s.progress(ctx, tenantID, models.ProgressFilter{CourseID: &courseID})
	if err != nil {
		return models.CompletionBreakdown{}, err
	}
	return analytics.Breakdown(rows, s.now(), s.cfg.WindowDays), nil
}

// ActivityRate is the share of enrolled students active in the trailing window.
func (s *AnalyticsService) ActivityRate(ctx context.Context, tenantID, courseID int64, windowDays int) (float64, error) {
	rows, err := s.progress(ctx, tenantID, models.ProgressFilter{CourseID: &courseID})
	if err != nil {
		return 0, err
	}
	return analytics.ActivityRate(rows, s.now(), s.Window(windowDays)), nil
}

// TenantCourseBreakdowns builds the breakdown of every tenant course plus totals.
// Courses without enrolled students are listed with zero counts.
func (s *AnalyticsService) TenantCourseBreakdowns(ctx context.Context, tenantID int64, filter models.BreakdownFilter) (*models.TenantBreakdown, error) {
	done := s.metrics.timer("tenant_courses")
	courses, err := s.repos.Courses.ListTenantCourses(ctx, tenantID, filter.CourseID)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if filter.CourseID != nil && len(courses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found in this school")
	}

	rows, err := s.progress(ctx, tenantID, models.ProgressFilter{CourseID: filter.CourseID, CohortID: filter.CohortID})
	if err != nil {
		return nil, err
	}
	grouped := analytics.GroupByCourse(rows)
	now := s.now()
	window := s.Window(filter.WindowDays)

	result := &models.TenantBreakdown{Courses: make([]models.CourseBreakdown, 0, len(courses))}
	for _, course := range courses {
		result.Courses = append(result.Courses, models.CourseBreakdown{
			Course:              course,
			CompletionBreakdown: analytics.Breakdown(grouped[course.ID], now, window),
		})
	}
	result.Totals = analytics.Totals(result.Courses)
	return result, nil
}

// StudentEngagementScore computes the engagement metric of one student.
func (s *AnalyticsService) StudentEngagementScore(ctx context.Context, tenantID, studentID int64, windowDays int) (models.EngagementScore, error) {
	scores, err := s.engagement(ctx, tenantID, []int64{studentID}, s.Window(windowDays))
	if err != nil {
		return models.EngagementScore{}, err
	}
	return scores[studentID], nil
}

// StudentEngagementList pages through tenant students with their engagement scores.
// With filter.All set it walks every page and returns the whole list.
func (s *AnalyticsService) StudentEngagementList(ctx context.Context, tenantID int64, filter models.EngagementFilter) ([]models.StudentEngagement, *models.Pagination, error) {
	if filter.All {
		return s.allStudentEngagement(ctx, tenantID, filter)
	}
	filter.Page, filter.PageSize = s.page(filter.Page, filter.PageSize)
	items, total, err := s.engagementPage(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, err
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *AnalyticsService) allStudentEngagement(ctx context.Context, tenantID int64, filter models.EngagementFilter) ([]models.StudentEngagement, *models.Pagination, error) {
	filter.Page, filter.PageSize = 1, s.cfg.MaxPageSize
	var items []models.StudentEngagement
	for {
		batch, total, err := s.engagementPage(ctx, tenantID, filter)
		if err != nil {
			return nil, nil, err
		}
		if err := s.checkExportRows(total); err != nil {
			return nil, nil, err
		}
		items = append(items, batch...)
		if len(batch) == 0 || len(items) >= total {
			return items, exportPagination(total), nil
		}
		filter.Page++
	}
}

func (s *AnalyticsService) engagementPage(ctx context.Context, tenantID int64, filter models.EngagementFilter) ([]models.StudentEngagement, int, error) {
	done := s.metrics.timer("engagement_students")
	students, total, err := s.repos.Students.List(ctx, tenantID, filter.StudentFilter)
	done()
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	scores, err := s.engagement(ctx, tenantID, ids, s.Window(filter.WindowDays))
	if err != nil {
		return nil, 0, err
	}

	items := make([]models.StudentEngagement, 0, len(students))
	for _, st := range students {
		items = append(items, models.StudentEngagement{Student: st, EngagementScore: scores[st.ID]})
	}
	return items, total, nil
}

// QuizAndAssignmentStatus rolls up the quizzes and assignments of one course for one student.
func (s *AnalyticsService) QuizAndAssignmentStatus(ctx context.Context, courseID, studentID int64) (models.QuizAssignmentStatus, error) {
	var empty models.QuizAssignmentStatus
	fail := func(err error, msg string) (models.QuizAssignmentStatus, error) {
		return empty, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
	done := s.metrics.timer("assessments")
	defer done()

	quizzes, err := s.repos.Assessments.Quizzes(ctx, courseID)
	if err != nil {
		return fail(err, "failed to load quizzes")
	}
	attempts, err := s.repos.Assessments.QuizAttempts(ctx, courseID, studentID)
	if err != nil {
		return fail(err, "failed to load quiz attempts")
	}
	assignments, err := s.repos.Assessments.Assignments(ctx, courseID)
	if err != nil {
		return fail(err, "failed to load assignments")
	}
	submissions, err := s.repos.Assessments.Submissions(ctx, courseID, studentID)
	if err != nil {
		return fail(err, "failed to load submissions")
	}
	grades, err := s.repos.Assessments.Grades(ctx, courseID, studentID)
	if err != nil {
		return fail(err, "failed to load grades")
	}
	return analytics.CourseAssessments(quizzes, attempts, assignments, submissions, grades, s.now().Unix()), nil
}

// FindStudent fetches a tenant student or returns ErrNotFound.
func (s *AnalyticsService) FindStudent(ctx context.Context, tenantID, studentID int64) (*models.Student, error) {
	student, err := s.repos.Students.FindByID(ctx, tenantID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in this school")
	}
	return student, nil
}

// StudentCourseStatuses lists every tenant course of the student with status and progress.
func (s *AnalyticsService) StudentCourseStatuses(ctx context.Context, tenantID, studentID int64) ([]models.StudentCourseDetail, error) {
	done := s.metrics.timer("student_courses")
	courses, err := s.repos.Courses.StudentCourses(ctx, tenantID, studentID)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student courses")
	}
	rows, err := s.progress(ctx, tenantID, models.ProgressFilter{StudentID: &studentID})
	if err != nil {
		return nil, err
	}
	byCourse := make(map[int64]models.StudentCourseProgress, len(rows))
	for _, row := range rows {
		byCourse[row.CourseID] = row
	}

	details := make([]models.StudentCourseDetail, 0, len(courses))
	for _, course := range courses {
		row := byCourse[course.ID]
		details = append(details, models.StudentCourseDetail{
			Course:      course,
			Status:      analytics.ClassifyStudent(row),
			ProgressPct: analytics.Round1(analytics.StudentProgressPct(row)),
			LastAccess:  row.LastAccess,
		})
	}
	return details, nil
}

// StudentDetail assembles the full per-student report. Any failing query fails the call.
func (s *AnalyticsService) StudentDetail(ctx context.Context, tenantID, studentID int64) (*models.StudentDetail, error) {
	student, err := s.FindStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	engagement, err := s.StudentEngagementScore(ctx, tenantID, studentID, 0)
	if err != nil {
		return nil, err
	}
	courses, err := s.StudentCourseStatuses(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		status, err := s.QuizAndAssignmentStatus(ctx, courses[i].Course.ID, studentID)
		if err != nil {
			return nil, err
		}
		courses[i].QuizAssignmentStatus = status
	}
	return &models.StudentDetail{Student: *student, Engagement: engagement, Courses: courses}, nil
}

// ActivityLog pages through the tenant's event log. With filter.All set it
// returns every matching entry.
func (s *AnalyticsService) ActivityLog(ctx context.Context, tenantID int64, filter models.ActivityLogFilter) ([]models.LogEntry, *models.Pagination, error) {
	if filter.From > 0 && filter.To > 0 && filter.From > filter.To {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	if !filter.All {
		filter.Page, filter.PageSize = s.page(filter.Page, filter.PageSize)
		entries, total, err := s.activityPage(ctx, tenantID, filter)
		if err != nil {
			return nil, nil, err
		}
		return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
	}

	filter.Page, filter.PageSize = 1, s.cfg.MaxPageSize
	var entries []models.LogEntry
	for {
		batch, total, err := s.activityPage(ctx, tenantID, filter)
		if err != nil {
			return nil, nil, err
		}
		if err := s.checkExportRows(total); err != nil {
			return nil, nil, err
		}
		entries = append(entries, batch...)
		if len(batch) == 0 || len(entries) >= total {
			return entries, exportPagination(total), nil
		}
		filter.Page++
	}
}

func (s *AnalyticsService) activityPage(ctx context.Context, tenantID int64, filter models.ActivityLogFilter) ([]models.LogEntry, int, error) {
	done := s.metrics.timer("activity_log")
	entries, total, err := s.repos.Activity.ActivityLog(ctx, tenantID, filter)
	done()
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity log")
	}
	return entries, total, nil
}

func (s *AnalyticsService) checkExportRows(total int) error {
	if total > s.cfg.MaxExportRows {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("report has %d rows, exports are limited to %d; narrow the filters", total, s.cfg.MaxExportRows))
	}
	return nil
}

// exportPagination describes a single page holding the whole result.
func exportPagination(total int) *models.Pagination {
	size := total
	if size < 1 {
		size = 1
	}
	return &models.Pagination{Page: 1, PageSize: size, TotalCount: total}
}

func (s *AnalyticsService) progress(ctx context.Context, tenantID int64, filter models.ProgressFilter) ([]models.StudentCourseProgress, error) {
	done := s.metrics.timer("student_progress")
	rows, err := s.repos.Progress.StudentProgress(ctx, tenantID, filter)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course progress")
	}
	return rows, nil
}

func (s *AnalyticsService) engagement(ctx context.Context, tenantID int64, userIDs []int64, windowDays int) (map[int64]models.EngagementScore, error) {
	scores := make(map[int64]models.EngagementScore, len(userIDs))
	if len(userIDs) == 0 {
		return scores, nil
	}
	now := s.now()
	since, until := analytics.WindowStart(now, windowDays), now.Unix()
	wrap := func(err error, msg string) error {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}

	done := s.metrics.timer("engagement_logins")
	logins, err := s.repos.Activity.LoginTimestamps(ctx, userIDs, since, until)
	done()
	if err != nil {
		return nil, wrap(err, "failed to load logins")
	}
	done = s.metrics.timer("engagement_events")
	events, err := s.repos.Activity.EventTimestamps(ctx, userIDs, since, until)
	done()
	if err != nil {
		return nil, wrap(err, "failed to load activity events")
	}
	done = s.metrics.timer("engagement_posts")
	posts, err := s.repos.Activity.ForumPostCounts(ctx, tenantID, userIDs, since, until)
	done()
	if err != nil {
		return nil, wrap(err, "failed to count forum posts")
	}

	gap := int64(s.cfg.GapThreshold / time.Second)
	for _, id := range userIDs {
		scores[id] = analytics.Engagement(analytics.EngagementInput{
			LoginTimestamps: logins[id],
			EventTimestamps: events[id],
			ForumPosts:      posts[id],
		}, s.cfg.Location, gap)
	}
	return scores, nil
}

func (s *AnalyticsService) page(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	return page, size
}
