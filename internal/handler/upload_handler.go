package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/dto"
	"github.com/noah-isme/school-manager-reports/internal/middleware"
	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/response"
)

type importer interface {
	ImportStudents(ctx context.Context, tenantID int64, file service.UploadFile, opts service.ImportOptions) (*models.UploadSummary, error)
	ImportPictures(ctx context.Context, tenantID int64, file service.UploadFile) (*models.UploadSummary, error)
}

type submissionGuard interface {
	Issue(ctx context.Context, sessionID string) (string, error)
	Redeem(ctx context.Context, sessionID, token string) error
}

// UploadHandler accepts the bulk student CSV and picture ZIP forms.
type UploadHandler struct {
	uploads        importer
	guard          submissionGuard
	tokenTTL       time.Duration
	updateExisting bool
}

// NewUploadHandler constructs UploadHandler. updateExisting is used when the form omits the flag.
func NewUploadHandler(uploads importer, guard submissionGuard, tokenTTL time.Duration, updateExisting bool) *UploadHandler {
	return &UploadHandler{uploads: uploads, guard: guard, tokenTTL: tokenTTL, updateExisting: updateExisting}
}

// Token godoc
// @Summary Issue a one-shot upload token
// @Tags Uploads
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /uploads/token [get]
func (h *UploadHandler) Token(c *gin.Context) {
	if _, ok := managerFromContext(c); !ok {
		return
	}
	token, err := h.guard.Issue(c.Request.Context(), middleware.Session(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UploadTokenResponse{Token: token, ExpiresIn: int64(h.tokenTTL.Seconds())}, nil)
}

// Students godoc
// @Summary Import students from CSV
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param token formData string true "Upload token"
// @Param file formData file true "CSV with username, firstname, lastname, email and optional password, cohort"
// @Param update_existing formData bool false "Update students already in the school"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /uploads/students [post]
func (h *UploadHandler) Students(c *gin.Context) {
	manager, ok := h.redeem(c)
	if !ok {
		return
	}
	updateExisting, err := parseFlag(c.PostForm("update_existing"), "update_existing", h.updateExisting)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.withFile(c, func(file service.UploadFile) (*models.UploadSummary, error) {
		return h.uploads.ImportStudents(c.Request.Context(), manager.Tenant.ID, file, service.ImportOptions{UpdateExisting: updateExisting})
	})
}

// Pictures godoc
// @Summary Import profile pictures from ZIP
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param token formData string true "Upload token"
// @Param file formData file true "ZIP of <username>.jpg|png|gif images"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /uploads/pictures [post]
func (h *UploadHandler) Pictures(c *gin.Context) {
	manager, ok := h.redeem(c)
	if !ok {
		return
	}
	h.withFile(c, func(file service.UploadFile) (*models.UploadSummary, error) {
		return h.uploads.ImportPictures(c.Request.Context(), manager.Tenant.ID, file)
	})
}

// redeem consumes the form token before anything is read so a replayed post does no work.
func (h *UploadHandler) redeem(c *gin.Context) (*models.ManagerContext, bool) {
	manager, ok := managerFromContext(c)
	if !ok {
		return nil, false
	}
	if err := h.guard.Redeem(c.Request.Context(), middleware.Session(c), c.PostForm("token")); err != nil {
		response.Error(c, err)
		return nil, false
	}
	return manager, true
}

func (h *UploadHandler) withFile(c *gin.Context, run func(service.UploadFile) (*models.UploadSummary, error)) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	f, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer f.Close()

	summary, err := run(service.UploadFile{Filename: header.Filename, Size: header.Size, Content: f})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
