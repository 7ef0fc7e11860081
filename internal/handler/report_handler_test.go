package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-manager-reports/internal/middleware"
	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
	"github.com/noah-isme/school-manager-reports/internal/view"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/export"
)

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

var harapan = models.Tenant{ID: 3, Name: "SMA Harapan", ShortName: "Harapan"}

type fakeReports struct {
	report     *service.Report
	err        error
	breakdown  models.BreakdownFilter
	engagement models.EngagementFilter
	activity   models.ActivityLogFilter
	studentID  int64
	tenant     models.Tenant
	calls      int
}

func (f *fakeReports) CourseCompletion(_ context.Context, tenant models.Tenant, filter models.BreakdownFilter) (*service.Report, error) {
	f.calls++
	f.tenant, f.breakdown = tenant, filter
	return f.report, f.err
}

func (f *fakeReports) StudentEngagement(_ context.Context, tenant models.Tenant, filter models.EngagementFilter) (*service.Report, error) {
	f.calls++
	f.tenant, f.engagement = tenant, filter
	return f.report, f.err
}

func (f *fakeReports) StudentDetail(_ context.Context, tenant models.Tenant, studentID int64) (*service.Report, error) {
	f.calls++
	f.tenant, f.studentID = tenant, studentID
	return f.report, f.err
}

func (f *fakeReports) ActivityLog(_ context.Context, tenant models.Tenant, filter models.ActivityLogFilter) (*service.Report, error) {
	f.calls++
	f.tenant, f.activity = tenant, filter
	return f.report, f.err
}

type fakeExports struct {
	file   *service.ExportFile
	err    error
	format models.ReportFormat
}

func (f *fakeExports) Render(_ *service.Report, format models.ReportFormat) (*service.ExportFile, error) {
	f.format = format
	return f.file, f.err
}

func sampleReport() *service.Report {
	return &service.Report{
		Type:        models.ReportTypeCourseCompletion,
		Title:       "Course Completion Report",
		Tenant:      harapan,
		GeneratedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Primary:     "courses",
		Sections: []service.Section{{
			Key:     "courses",
			Title:   "Courses",
			Columns: []export.Column{{Key: "course", Label: "Course"}},
			Rows:    []map[string]string{{"course": "Biology"}},
		}},
	}
}

func newReportHandler(t *testing.T, reports *fakeReports, exports *fakeExports) *ReportHandler {
	t.Helper()
	pages, err := view.NewRenderer()
	require.NoError(t, err)
	return NewReportHandler(reports, exports, pages, ReportOptions{Prefix: "/manager"})
}

func managerContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Set(middleware.ContextManagerKey, &models.ManagerContext{UserID: 9, Tenant: harapan})
	return c, rec
}

func TestReportHandlerCourseCompletionJSON(t *testing.T) {
	reports := &fakeReports{report: sampleReport()}
	handler := newReportHandler(t, reports, &fakeExports{})

	c, rec := managerContext("/manager/reports/course-completion?format=json&courseId=12&cohort=4&windowDays=14")
	handler.CourseCompletion(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, harapan, reports.tenant)
	require.NotNil(t, reports.breakdown.CourseID)
	assert.Equal(t, int64(12), *reports.breakdown.CourseID)
	require.NotNil(t, reports.breakdown.CohortID)
	assert.Equal(t, int64(4), *reports.breakdown.CohortID)
	assert.Equal(t, 14, reports.breakdown.WindowDays)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Course Completion Report", envelope.Data["title"])
	assert.Equal(t, "course-completion", envelope.Meta["report_type"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestReportHandlerRejectsMalformedNumbers(t *testing.T) {
	cases := []string{
		"/manager/reports/course-completion?courseId=12abc",
		"/manager/reports/course-completion?cohort=-1",
		"/manager/reports/course-completion?windowDays=0",
		"/manager/reports/course-completion?windowDays=200000",
		"/manager/reports/course-completion?format=xlsx",
	}
	for _, target := range cases {
		t.Run(target, func(t *testing.T) {
			reports := &fakeReports{report: sampleReport()}
			handler := newReportHandler(t, reports, &fakeExports{})

			c, rec := managerContext(target)
			handler.CourseCompletion(c)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, reports.calls)
		})
	}
}

func TestReportHandlerRejectsOutOfRangePaging(t *testing.T) {
	cases := []struct {
		target string
		call   func(*ReportHandler, *gin.Context)
	}{
		{"/manager/reports/student-engagement?page=9223372036854775807", (*ReportHandler).StudentEngagement},
		{"/manager/reports/student-engagement?page=1000001", (*ReportHandler).StudentEngagement},
		{"/manager/reports/student-engagement?windowDays=3651", (*ReportHandler).StudentEngagement},
		{"/manager/reports/activity-log?page=9223372036854775807", (*ReportHandler).ActivityLog},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			reports := &fakeReports{report: sampleReport()}
			handler := newReportHandler(t, reports, &fakeExports{})

			c, rec := managerContext(tc.target)
			tc.call(handler, c)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, reports.calls)
		})
	}

	reports := &fakeReports{report: sampleReport()}
	handler := newReportHandler(t, reports, &fakeExports{})
	c, rec := managerContext("/manager/reports/student-engagement?format=json&page=1000000&windowDays=3650")
	handler.StudentEngagement(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000000, reports.engagement.Page)
	assert.Equal(t, 3650, reports.engagement.WindowDays)
}

func TestReportHandlerHTMLDefault(t *testing.T) {
	handler := newReportHandler(t, &fakeReports{report: sampleReport()}, &fakeExports{})

	c, rec := managerContext("/manager/reports/course-completion")
	handler.CourseCompletion(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Biology")
	assert.Contains(t, rec.Body.String(), "SMA Harapan")
}

func TestReportHandlerExport(t *testing.T) {
	exports := &fakeExports{file: &service.ExportFile{
		Filename:    "course-completion-harapan-20260302-1200.pdf",
		ContentType: "application/pdf",
		Payload:     []byte("%PDF-1.3"),
	}}
	handler := newReportHandler(t, &fakeReports{report: sampleReport()}, exports)

	c, rec := managerContext("/manager/reports/course-completion?format=pdf")
	handler.CourseCompletion(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReportFormatPDF, exports.format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="course-completion-harapan-20260302-1200.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", rec.Body.String())
}

func TestReportHandlerExportFailureStreamsNothing(t *testing.T) {
	exports := &fakeExports{err: appErrors.Clone(appErrors.ErrInternal, "report data could not be loaded for export")}
	handler := newReportHandler(t, &fakeReports{report: sampleReport()}, exports)

	c, rec := managerContext("/manager/reports/course-completion?format=excel")
	handler.CourseCompletion(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestReportHandlerExportRequestsAllRows(t *testing.T) {
	reports := &fakeReports{report: sampleReport()}
	exports := &fakeExports{file: &service.ExportFile{Filename: "x.csv", ContentType: "text/csv", Payload: []byte("x")}}
	handler := newReportHandler(t, reports, exports)

	c, _ := managerContext("/manager/reports/student-engagement?format=excel&page=3&perPage=10&search=%20budi%20")
	handler.StudentEngagement(c)

	assert.True(t, reports.engagement.All)
	assert.Equal(t, "budi", reports.engagement.Search)

	c, _ = managerContext("/manager/reports/activity-log?format=pdf")
	handler.ActivityLog(c)
	assert.True(t, reports.activity.All)

	c, _ = managerContext("/manager/reports/student-engagement?format=json&page=3")
	handler.StudentEngagement(c)
	assert.False(t, reports.engagement.All)
	assert.Equal(t, 3, reports.engagement.Page)
}

func TestReportHandlerExportTooLarge(t *testing.T) {
	reports := &fakeReports{err: appErrors.Clone(appErrors.ErrPayloadTooLarge, "report has 12000 rows, exports are limited to 10000; narrow the filters")}
	exports := &fakeExports{}
	handler := newReportHandler(t, reports, exports)

	c, rec := managerContext("/manager/reports/activity-log?format=excel")
	handler.ActivityLog(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.Empty(t, exports.format)
}

func TestReportHandlerStudentDetail(t *testing.T) {
	reports := &fakeReports{err: appErrors.ErrNotFound}
	handler := newReportHandler(t, reports, &fakeExports{})

	c, rec := managerContext("/manager/reports/students/41?format=json")
	c.Params = gin.Params{{Key: "id", Value: "41"}}
	handler.StudentDetail(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int64(41), reports.studentID)

	c, rec = managerContext("/manager/reports/students/abc")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.StudentDetail(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerActivityLogDates(t *testing.T) {
	reports := &fakeReports{report: sampleReport()}
	handler := newReportHandler(t, reports, &fakeExports{})

	c, rec := managerContext("/manager/reports/activity-log?format=json&from=2026-03-01&to=2026-03-02&page=2")
	handler.ActivityLog(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix(), reports.activity.From)
	assert.Equal(t, time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC).Unix(), reports.activity.To)
	assert.Equal(t, 2, reports.activity.Page)

	c, rec = managerContext("/manager/reports/activity-log?from=03/01/2026")
	handler.ActivityLog(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerRequiresManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reports := &fakeReports{report: sampleReport()}
	handler := newReportHandler(t, reports, &fakeExports{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/manager/reports/course-completion", nil)
	handler.CourseCompletion(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, reports.calls)
}

func TestReportHandlerServiceError(t *testing.T) {
	reports := &fakeReports{err: errors.New("boom")}
	handler := newReportHandler(t, reports, &fakeExports{})

	c, rec := managerContext("/manager/reports/course-completion?format=json")
	handler.CourseCompletion(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
