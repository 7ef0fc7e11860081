package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/response"
)

type studentManager interface {
	List(ctx context.Context, tenantID int64, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, tenantID, id int64) (*models.Student, error)
	Update(ctx context.Context, tenantID, id int64, req service.UpdateStudentRequest) (*models.Student, error)
}

// StudentHandler exposes the tenant student directory and the edit form.
type StudentHandler struct {
	students studentManager
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentManager) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students of the school
// @Tags Students
// @Produce json
// @Param search query string false "Name, username or email"
// @Param cohort query int false "Cohort ID"
// @Param page query int false "Page"
// @Param perPage query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	manager, ok := managerFromContext(c)
	if !ok {
		return
	}
	var (
		filter models.StudentFilter
		err    error
	)
	filter.Search = strings.TrimSpace(c.Query("search"))
	if filter.CohortID, err = parseOptionalID(c.Query("cohort"), "cohort"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Page, err = parseBounded(c.Query("page"), "page", maxPage); err != nil {
		response.Error(c, err)
		return
	}
	if filter.PageSize, err = parsePositive(c.Query("perPage"), "perPage"); err != nil {
		response.Error(c, err)
		return
	}

	students, pagination, err := h.students.List(c.Request.Context(), manager.Tenant.ID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get a student
// @Tags Students
// @Produce json
// @Param id path int true "Student user ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	manager, ok := managerFromContext(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.students.Get(c.Request.Context(), manager.Tenant.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Update godoc
// @Summary Edit a student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path int true "Student user ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	manager, ok := managerFromContext(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateStudentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), manager.Tenant.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
