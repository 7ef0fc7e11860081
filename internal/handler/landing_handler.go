package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/view"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/response"
)

// LandingHandler serves the entry page that denied requests are sent back to.
type LandingHandler struct {
	pages  pageRenderer
	prefix string
}

// NewLandingHandler constructs LandingHandler.
func NewLandingHandler(pages pageRenderer, prefix string) *LandingHandler {
	return &LandingHandler{pages: pages, prefix: prefix}
}

// Index renders the landing page and pops pending notices.
func (h *LandingHandler) Index(c *gin.Context) {
	page := view.LandingPage{
		Title:   "School Manager Reports",
		Notices: response.Notices(c),
		Links: []view.Link{
			{Label: "Course completion", Href: h.prefix + "/reports/course-completion"},
			{Label: "Student engagement", Href: h.prefix + "/reports/student-engagement"},
			{Label: "Activity log", Href: h.prefix + "/reports/activity-log"},
		},
	}
	body, err := h.pages.Render(view.PageLanding, page)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render landing page"))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}
