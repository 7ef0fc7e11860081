package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, tenantID int64, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, tenantID, id int64) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, tenantID, id int64, update models.StudentUpdate) error
}

// UpdateStudentRequest is the editable student profile payload.
type UpdateStudentRequest struct {
	FirstName string `json:"firstname" form:"firstname" validate:"required,max=100"`
	LastName  string `json:"lastname" form:"lastname" validate:"required,max=100"`
	Email     string `json:"email" form:"email" validate:"required,email,max=100"`
	Suspended bool   `json:"suspended" form:"suspended"`
	CohortID  *int64 `json:"cohort_id" form:"cohort_id" validate:"omitempty,gt=0"`
}

// StudentService lists and edits the students of a tenant.
type StudentService struct {
	repo      studentRepository
	cohorts   cohortRepository
	validator *validator.Validate
	logger    *zap.Logger
	pageSize  int
	maxSize   int
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, cohorts cohortRepository, validate *validator.Validate, pageSize, maxSize int, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	if maxSize < pageSize {
		maxSize = pageSize
	}
	return &StudentService{repo: repo, cohorts: cohorts, validator: validate, logger: logger, pageSize: pageSize, maxSize: maxSize}
}

// List returns one page of tenant students.
func (s *StudentService) List(ctx context.Context, tenantID int64, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.pageSize
	}
	if filter.PageSize > s.maxSize {
		filter.PageSize = s.maxSize
	}
	filter.Search = strings.TrimSpace(filter.Search)
	students, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a tenant student by id.
func (s *StudentService) Get(ctx context.Context, tenantID, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in this school")
	}
	return student, nil
}

// Update edits a student profile and its cohort membership.
func (s *StudentService) Update(ctx context.Context, tenantID, id int64, req UpdateStudentRequest) (*models.Student, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	if req.CohortID != nil {
		cohort, err := s.cohorts.FindByID(ctx, tenantID, *req.CohortID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
		}
		if cohort == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "cohort does not exist in this school")
		}
	}

	update := models.StudentUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Suspended: req.Suspended,
		CohortID:  req.CohortID,
	}
	if err := s.repo.Update(ctx, tenantID, id, update); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.logger.Info("student updated", zap.Int64("tenant_id", tenantID), zap.Int64("student_id", id))
	return s.Get(ctx, tenantID, id)
}
