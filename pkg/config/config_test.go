package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/manager", cfg.APIPrefix)
	assert.Equal(t, 30, cfg.Reports.WindowDays)
	assert.Equal(t, 30*time.Minute, cfg.Reports.GapThreshold)
	assert.Equal(t, 10000, cfg.Reports.MaxExportRows)
	assert.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxCSVBytes)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REPORTS_WINDOW_DAYS", "14")
	t.Setenv("REPORTS_SESSION_GAP", "15m")
	t.Setenv("REPORTS_EXPORT_MAX_ROWS", "500")
	t.Setenv("ALLOWED_ORIGINS", "https://lms.example.org, https://admin.example.org")
	t.Setenv("UPLOADS_TOKEN_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Reports.WindowDays)
	assert.Equal(t, 15*time.Minute, cfg.Reports.GapThreshold)
	assert.Equal(t, 500, cfg.Reports.MaxExportRows)
	assert.Equal(t, []string{"https://lms.example.org", "https://admin.example.org"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Uploads.TokenTTL)
}

func TestReportsLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, ReportsConfig{}.Location())
	assert.Equal(t, time.UTC, ReportsConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "Asia/Jakarta", ReportsConfig{Timezone: "Asia/Jakarta"}.Location().String())
}
