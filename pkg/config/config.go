package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Session   SessionConfig
	Reports   ReportsConfig
	Uploads   UploadsConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
	// File enables a rotating log file next to stdout when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SessionConfig configures the cookie session used for notices and the upload guard.
type SessionConfig struct {
	Name   string
	Secret string
	MaxAge time.Duration
	Secure bool
}

// ReportsConfig tunes the aggregation heuristics and export output.
type ReportsConfig struct {
	WindowDays        int
	GapThreshold      time.Duration
	Timezone          string
	DefaultPerPage    int
	MaxPerPage        int
	MaxExportRows     int
	LandingPath       string
	ErrorMessageLimit int
}

// UploadsConfig bounds bulk upload payloads and picture storage.
type UploadsConfig struct {
	MaxCSVBytes    int64
	MaxZIPBytes    int64
	MaxImageBytes  int64
	PictureDir     string
	PictureSize    int
	TokenTTL       time.Duration
	UpdateExisting bool
}

// RateLimitConfig throttles expensive export and upload routes per client IP.
type RateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_FILE_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_FILE_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_FILE_MAX_AGE_DAYS"),
	}

	cfg.Session = SessionConfig{
		Name:   v.GetString("SESSION_NAME"),
		Secret: v.GetString("SESSION_SECRET"),
		MaxAge: parseDuration(v.GetString("SESSION_MAX_AGE"), 12*time.Hour),
		Secure: v.GetBool("SESSION_SECURE"),
	}

	cfg.Reports = ReportsConfig{
		WindowDays:        positiveOr(v.GetInt("REPORTS_WINDOW_DAYS"), 30),
		GapThreshold:      parseDuration(v.GetString("REPORTS_SESSION_GAP"), 30*time.Minute),
		Timezone:          v.GetString("REPORTS_TIMEZONE"),
		DefaultPerPage:    positiveOr(v.GetInt("REPORTS_PER_PAGE"), 25),
		MaxPerPage:        positiveOr(v.GetInt("REPORTS_MAX_PER_PAGE"), 200),
		MaxExportRows:     positiveOr(v.GetInt("REPORTS_EXPORT_MAX_ROWS"), 10000),
		LandingPath:       v.GetString("REPORTS_LANDING_PATH"),
		ErrorMessageLimit: positiveOr(v.GetInt("UPLOADS_ERROR_LIMIT"), 20),
	}

	cfg.Uploads = UploadsConfig{
		MaxCSVBytes:    positiveOr64(v.GetInt64("UPLOADS_MAX_CSV_BYTES"), 5*1024*1024),
		MaxZIPBytes:    positiveOr64(v.GetInt64("UPLOADS_MAX_ZIP_BYTES"), 50*1024*1024),
		MaxImageBytes:  positiveOr64(v.GetInt64("UPLOADS_MAX_IMAGE_BYTES"), 5*1024*1024),
		PictureDir:     v.GetString("UPLOADS_PICTURE_DIR"),
		PictureSize:    positiveOr(v.GetInt("UPLOADS_PICTURE_SIZE"), 256),
		TokenTTL:       parseDuration(v.GetString("UPLOADS_TOKEN_TTL"), 30*time.Minute),
		UpdateExisting: v.GetBool("UPLOADS_UPDATE_EXISTING"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("ENABLE_RATE_LIMIT"),
		Rate:    v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:   positiveOr(v.GetInt("RATE_LIMIT_BURST"), 10),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/manager")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "moodle")
	v.SetDefault("DB_PASSWORD", "moodle")
	v.SetDefault("DB_NAME", "moodle")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_FILE_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_FILE_MAX_BACKUPS", 5)
	v.SetDefault("LOG_FILE_MAX_AGE_DAYS", 30)

	v.SetDefault("SESSION_NAME", "school_manager")
	v.SetDefault("SESSION_SECRET", "dev_session_secret")
	v.SetDefault("SESSION_MAX_AGE", "12h")
	v.SetDefault("SESSION_SECURE", false)

	v.SetDefault("REPORTS_WINDOW_DAYS", 30)
	v.SetDefault("REPORTS_SESSION_GAP", "30m")
	v.SetDefault("REPORTS_TIMEZONE", "UTC")
	v.SetDefault("REPORTS_PER_PAGE", 25)
	v.SetDefault("REPORTS_MAX_PER_PAGE", 200)
	v.SetDefault("REPORTS_EXPORT_MAX_ROWS", 10000)
	v.SetDefault("REPORTS_LANDING_PATH", "/")
	v.SetDefault("UPLOADS_ERROR_LIMIT", 20)

	v.SetDefault("UPLOADS_MAX_CSV_BYTES", 5*1024*1024)
	v.SetDefault("UPLOADS_MAX_ZIP_BYTES", 50*1024*1024)
	v.SetDefault("UPLOADS_MAX_IMAGE_BYTES", 5*1024*1024)
	v.SetDefault("UPLOADS_PICTURE_DIR", "./pictures")
	v.SetDefault("UPLOADS_PICTURE_SIZE", 256)
	v.SetDefault("UPLOADS_TOKEN_TTL", "30m")
	v.SetDefault("UPLOADS_UPDATE_EXISTING", false)

	v.SetDefault("ENABLE_RATE_LIMIT", false)
	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 10)
}

// Location resolves the configured report timezone, falling back to UTC.
func (c ReportsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func positiveOr64(value, fallback int64) int64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
