package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/service"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// AccessTokenCookie carries the LMS-issued token for browser requests.
const AccessTokenCookie = "access_token"

// JWT protects routes by requiring a valid access token from the
// Authorization header or the access token cookie.
func JWT(authService *service.AuthService, landingPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			deny(c, landingPath, err)
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			deny(c, landingPath, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
			return cookie, nil
		}
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

// deny answers browser requests with a redirect and a notice, API requests with the error envelope.
func deny(c *gin.Context, landingPath string, err error) {
	if WantsHTML(c) {
		response.RedirectWithNotice(c, landingPath, appErrors.FromError(err).Message)
	} else {
		response.Error(c, err)
	}
	c.Abort()
}

// WantsHTML reports whether the caller expects a page rather than JSON.
// An explicit format parameter wins over the Accept header.
func WantsHTML(c *gin.Context) bool {
	switch c.Query("format") {
	case "json":
		return false
	case "html", "excel", "pdf":
		return true
	}
	if c.Request.Method != http.MethodGet {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
