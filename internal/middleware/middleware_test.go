package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
)

const testSecret = "secret"

type stubTenants struct {
	managers map[int64]bool
	tenant   *models.Tenant
}

func (s stubTenants) IsSchoolManager(ctx context.Context, userID int64) (bool, error) {
	return s.managers[userID], nil
}

func (s stubTenants) ManagedTenant(ctx context.Context, userID int64) (*models.Tenant, error) {
	return s.tenant, nil
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newRouter(tenants stubTenants) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := service.NewAuthService(service.AuthConfig{Secret: testSecret})
	access := service.NewAccessService(tenants, nil)
	r.GET("/manager/ping", JWT(auth, "/"), SchoolManager(access, "/"), func(c *gin.Context) {
		c.String(http.StatusOK, Manager(c).Tenant.Name)
	})
	return r
}

func managerTenants() stubTenants {
	return stubTenants{managers: map[int64]bool{5: true}, tenant: &models.Tenant{ID: 3, Name: "SMA Harapan"}}
}

func TestJWTAndManagerAllowBearer(t *testing.T) {
	r := newRouter(managerTenants())
	req := httptest.NewRequest(http.MethodGet, "/manager/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 5))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SMA Harapan", w.Body.String())
}

func TestJWTAcceptsCookie(t *testing.T) {
	r := newRouter(managerTenants())
	req := httptest.NewRequest(http.MethodGet, "/manager/ping", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token(t, 5)})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTMissingTokenJSON(t *testing.T) {
	r := newRouter(managerTenants())
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/manager/ping?format=json", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestNonManagerHTMLIsRedirectedWithNotice(t *testing.T) {
	r := newRouter(managerTenants())
	req := httptest.NewRequest(http.MethodGet, "/manager/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 6))
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/?notice="))
	assert.Contains(t, location, "school+manager+access+required")
}

func TestNonManagerJSONIsForbidden(t *testing.T) {
	r := newRouter(managerTenants())
	req := httptest.NewRequest(http.MethodGet, "/manager/ping?format=json", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 6))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_SCHOOL_MANAGER")
}

func TestManagerWithoutTenantIsForbidden(t *testing.T) {
	r := newRouter(stubTenants{managers: map[int64]bool{5: true}})
	req := httptest.NewRequest(http.MethodGet, "/manager/ping?format=json", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 5))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NO_TENANT")
}

func TestWantsHTML(t *testing.T) {
	cases := []struct {
		target string
		accept string
		want   bool
	}{
		{"/r", "text/html", true},
		{"/r", "application/json", false},
		{"/r?format=json", "text/html", false},
		{"/r?format=pdf", "", true},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, tc.target, nil)
		c.Request.Header.Set("Accept", tc.accept)
		assert.Equal(t, tc.want, WantsHTML(c), tc.target)
	}
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/export", RateLimiter(0.001, 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/export", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionIDIsStable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("session-secret"))), SessionID(nil))
	r.GET("/sid", func(c *gin.Context) { c.String(http.StatusOK, Session(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sid", nil))
	first := w.Body.String()
	require.NotEmpty(t, first)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/sid", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, first, w.Body.String())
}

func TestSessionIDLogsSaveFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.WarnLevel)
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("session-secret"))))
	// An oversized value makes the cookie codec refuse to encode the session.
	r.Use(func(c *gin.Context) {
		sessions.Default(c).Set("blob", strings.Repeat("x", 8192))
		c.Next()
	})
	r.Use(SessionID(zap.New(core)))
	r.GET("/sid", func(c *gin.Context) { c.String(http.StatusOK, Session(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sid", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
	require.Equal(t, 1, logs.FilterMessage("session save failed").Len())
	assert.Equal(t, "/sid", logs.All()[0].ContextMap()["path"])
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/meta", WithResponseMeta(), func(c *gin.Context) {
		SetMeta(c, "tenant_id", int64(3))
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/meta", nil))
	require.NotNil(t, meta)
	assert.Equal(t, int64(3), meta["tenant_id"])
	assert.Contains(t, meta, processingTimeMS)
}
