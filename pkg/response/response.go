package response

import (
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// NoticeKey is the session flash bucket consumed by the landing page.
const NoticeKey = "notices"

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// Attachment streams a fully rendered export file.
func Attachment(c *gin.Context, filename, contentType string, payload []byte) {
	noStore(c)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

// RedirectWithNotice stores a flash notice in the session and redirects to target.
// Without a session middleware the notice travels as a query parameter instead.
func RedirectWithNotice(c *gin.Context, target, notice string) {
	if session := defaultSession(c); session != nil {
		session.AddFlash(notice, NoticeKey)
		_ = session.Save()
	} else {
		target = target + "?notice=" + url.QueryEscape(notice)
	}
	c.Redirect(http.StatusFound, target)
}

// Notices pops the pending flash notices from the session.
func Notices(c *gin.Context) []string {
	session := defaultSession(c)
	if session == nil {
		if notice := c.Query("notice"); notice != "" {
			return []string{notice}
		}
		return nil
	}
	flashes := session.Flashes(NoticeKey)
	if len(flashes) == 0 {
		return nil
	}
	_ = session.Save()
	notices := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			notices = append(notices, s)
		}
	}
	return notices
}

func defaultSession(c *gin.Context) sessions.Session {
	if _, exists := c.Get(sessions.DefaultKey); !exists {
		return nil
	}
	return sessions.Default(c)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
