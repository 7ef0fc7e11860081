package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/dto"
	"github.com/noah-isme/school-manager-reports/internal/middleware"
	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
	"github.com/noah-isme/school-manager-reports/internal/view"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/response"
)

type reportBuilder interface {
	CourseCompletion(ctx context.Context, tenant models.Tenant, filter models.BreakdownFilter) (*service.Report, error)
	StudentEngagement(ctx context.Context, tenant models.Tenant, filter models.EngagementFilter) (*service.Report, error)
	StudentDetail(ctx context.Context, tenant models.Tenant, studentID int64) (*service.Report, error)
	ActivityLog(ctx context.Context, tenant models.Tenant, filter models.ActivityLogFilter) (*service.Report, error)
}

type reportExporter interface {
	Render(report *service.Report, format models.ReportFormat) (*service.ExportFile, error)
}

type pageRenderer interface {
	Render(page string, data interface{}) ([]byte, error)
}

// ReportOptions carries the routing settings the report pages need.
type ReportOptions struct {
	Prefix   string
	Location *time.Location
}

// ReportHandler serves every report as an HTML page, JSON, CSV or PDF.
type ReportHandler struct {
	reports reportBuilder
	exports reportExporter
	pages   pageRenderer
	opts    ReportOptions
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportBuilder, exports reportExporter, pages pageRenderer, opts ReportOptions) *ReportHandler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &ReportHandler{reports: reports, exports: exports, pages: pages, opts: opts}
}

// CourseCompletion godoc
// @Summary Course completion report
// @Tags Reports
// @Produce json,html,text/csv,application/pdf
// @Param courseId query int false "Restrict to one course"
// @Param cohort query int false "Cohort ID"
// @Param windowDays query int false "Activity window in days"
// @Param format query string false "html, json, excel or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/course-completion [get]
func (h *ReportHandler) CourseCompletion(c *gin.Context) {
	manager, ok := managerFromContext(c)
	if !ok {
		return
	}
	query, format, ok := h.bindQuery(c)
	if !ok {
		return
	}
	filter, err := breakdownFilter(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.CourseCompletion(c.Request.Context(), manager.Tenant, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, report, format)
}

// StudentEngagement godoc
// @Summary Student engagement report
// @Tags Reports
// @Produce json,html,text/csv,application/pdf
// @Param cohort query int false "Cohort ID"
// @Param search query string false "Name, username or email"
// @Param page query int false "Page"
// @Param perPage query int false "Page size"
// @Param windowDays query int false "Activity window in days"
// @Param format query string false "html, json, excel or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /reports/student-engagement [get]
func (h *ReportHandler) StudentEngagement(c *gin.Context) {
	manager, ok := managerFromContext(c)
	if !ok {
		return
	}
	query, format, ok := h.bindQuery(c)
	if !ok {
		return
	}
	filter, err := engagementFilter(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.All = format.IsExport()
	report, err := h.reports.StudentEngagement(c.Request.Context(), manager.Tenant, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, report, format)
}

// StudentDetail godoc
// @Summary Student detail report
// @Tags Reports
// @Produce json,html,text/csv,application/pdf
// @Param id path int true "Student user ID"
// @Param format query string false "html, json, excel or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/students/{id} [get]
func (h *ReportHandler) StudentDetail(c *gin.Context) {
	manager, ok := managerFromContext(c)
	if !ok {
		return
	}
	_, format, ok := h.bindQuery(c)
	if !ok {
		return
	}
	studentID, err := parseID(c.Param("id"), "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.StudentDetail(c.Request.Context(), manager.Tenant, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, report, format)
}

// ActivityLog godoc
// @Summary Activity log report
// @Tags Reports
// @Produce json,html,text/csv,application/pdf
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Param search query string false "User, event or component"
// @Param page query int false "Page"
// @Param perPage query int false "Page size"
// @Param format query string false "html, json, excel or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /reports/activity-log [get]
func (h *ReportHandler) ActivityLog(c *gin.Context) {
	manager, ok := managerFromContext(c)
	if !ok {
		return
	}
	query, format, ok := h.bindQuery(c)
	if !ok {
		return
	}
	filter, err := h.activityFilter(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.All = format.IsExport()
	report, err := h.reports.ActivityLog(c.Request.Context(), manager.Tenant, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, report, format)
}

func (h *ReportHandler) bindQuery(c *gin.Context) (dto.ReportQuery, models.ReportFormat, bool) {
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return query, "", false
	}
	format, err := parseFormat(query.Format)
	if err != nil {
		response.Error(c, err)
		return query, "", false
	}
	return query, format, true
}

func (h *ReportHandler) respond(c *gin.Context, report *service.Report, format models.ReportFormat) {
	switch format {
	case models.ReportFormatJSON:
		middleware.SetMeta(c, "report_type", report.Type)
		middleware.SetMeta(c, "tenant_id", report.Tenant.ID)
		response.JSON(c, http.StatusOK, report, report.Pagination, middleware.ExtractMeta(c))
	case models.ReportFormatExcel, models.ReportFormatPDF:
		file, err := h.exports.Render(report, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, file.Filename, file.ContentType, file.Payload)
	default:
		page := view.ReportPage{
			Report:   report,
			Prefix:   h.opts.Prefix,
			Path:     c.Request.URL.Path,
			Query:    c.Request.URL.Query(),
			Location: h.opts.Location,
		}
		body, err := h.pages.Render(view.PageReport, page)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report page"))
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
	}
}

func breakdownFilter(q dto.ReportQuery) (models.BreakdownFilter, error) {
	var (
		filter models.BreakdownFilter
		err    error
	)
	if filter.CourseID, err = parseOptionalID(q.CourseID, "courseId"); err != nil {
		return filter, err
	}
	if filter.CohortID, err = parseOptionalID(q.Cohort, "cohort"); err != nil {
		return filter, err
	}
	if filter.WindowDays, err = parseBounded(q.WindowDays, "windowDays", maxWindowDays); err != nil {
		return filter, err
	}
	return filter, nil
}

func engagementFilter(q dto.ReportQuery) (models.EngagementFilter, error) {
	var (
		filter models.EngagementFilter
		err    error
	)
	filter.Search = strings.TrimSpace(q.Search)
	if filter.CohortID, err = parseOptionalID(q.Cohort, "cohort"); err != nil {
		return filter, err
	}
	if filter.WindowDays, err = parseBounded(q.WindowDays, "windowDays", maxWindowDays); err != nil {
		return filter, err
	}
	if filter.Page, err = parseBounded(q.Page, "page", maxPage); err != nil {
		return filter, err
	}
	if filter.PageSize, err = parsePositive(q.PerPage, "perPage"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *ReportHandler) activityFilter(q dto.ReportQuery) (models.ActivityLogFilter, error) {
	var (
		filter models.ActivityLogFilter
		err    error
	)
	filter.Search = strings.TrimSpace(q.Search)
	if filter.From, err = parseDate(q.From, "from", h.opts.Location, false); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate(q.To, "to", h.opts.Location, true); err != nil {
		return filter, err
	}
	if filter.Page, err = parseBounded(q.Page, "page", maxPage); err != nil {
		return filter, err
	}
	if filter.PageSize, err = parsePositive(q.PerPage, "perPage"); err != nil {
		return filter, err
	}
	return filter, nil
}
