package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-manager-reports/api/swagger"
	"github.com/noah-isme/school-manager-reports/internal/handler"
	"github.com/noah-isme/school-manager-reports/internal/middleware"
	"github.com/noah-isme/school-manager-reports/internal/repository"
	"github.com/noah-isme/school-manager-reports/internal/service"
	"github.com/noah-isme/school-manager-reports/internal/view"
	"github.com/noah-isme/school-manager-reports/pkg/cache"
	"github.com/noah-isme/school-manager-reports/pkg/config"
	"github.com/noah-isme/school-manager-reports/pkg/database"
	"github.com/noah-isme/school-manager-reports/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-manager-reports/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-manager-reports/pkg/middleware/requestid"
	"github.com/noah-isme/school-manager-reports/pkg/storage"
)

// @title School Manager Reports
// @version 1.0.0
// @description Tenant scoped completion, engagement and activity reports plus bulk student uploads for IOMAD school managers.
// @BasePath /manager
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	var tokens interface {
		Put(ctx context.Context, key, token string, ttl time.Duration) error
		Consume(ctx context.Context, key, token string) (bool, error)
	}
	if redisClient != nil {
		defer redisClient.Close()
		tokens = repository.NewRedisTokenStore(redisClient)
	} else {
		logr.Info("redis disabled, upload tokens are kept in memory")
		tokens = repository.NewMemoryTokenStore()
	}

	pictures, err := storage.NewLocalStorage(cfg.Uploads.PictureDir)
	if err != nil {
		logr.Fatal("failed to prepare picture storage", zap.Error(err))
	}

	pages, err := view.NewRenderer()
	if err != nil {
		logr.Fatal("failed to parse templates", zap.Error(err))
	}

	location := cfg.Reports.Location()
	metrics := service.NewMetricsService()
	validate := validator.New()

	tenantRepo := repository.NewTenantRepository(db)
	cohortRepo := repository.NewCohortRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	accessSvc := service.NewAccessService(tenantRepo, logr)
	analyticsSvc := service.NewAnalyticsService(service.AnalyticsRepositories{
		Progress:    repository.NewProgressRepository(db),
		Courses:     repository.NewCourseRepository(db),
		Activity:    repository.NewActivityRepository(db),
		Assessments: repository.NewAssessmentRepository(db),
		Students:    studentRepo,
	}, metrics, service.AnalyticsConfig{
		WindowDays:      cfg.Reports.WindowDays,
		GapThreshold:    cfg.Reports.GapThreshold,
		Location:        location,
		DefaultPageSize: cfg.Reports.DefaultPerPage,
		MaxPageSize:     cfg.Reports.MaxPerPage,
		MaxExportRows:   cfg.Reports.MaxExportRows,
	}, logr)
	reportSvc := service.NewReportService(analyticsSvc, cohortRepo, metrics, location, logr)
	exportSvc := service.NewExportService(metrics, logr)
	studentSvc := service.NewStudentService(studentRepo, cohortRepo, validate, cfg.Reports.DefaultPerPage, cfg.Reports.MaxPerPage, logr)
	uploadSvc, err := service.NewUploadService(studentRepo, cohortRepo, pictures, metrics, service.UploadConfig{
		MaxCSVBytes:   cfg.Uploads.MaxCSVBytes,
		MaxZIPBytes:   cfg.Uploads.MaxZIPBytes,
		MaxImageBytes: cfg.Uploads.MaxImageBytes,
		PictureSize:   cfg.Uploads.PictureSize,
		ErrorLimit:    cfg.Reports.ErrorMessageLimit,
	}, logr)
	if err != nil {
		logr.Fatal("failed to build upload service", zap.Error(err))
	}
	guard := service.NewSubmissionGuard(tokens, cfg.Uploads.TokenTTL, logr)

	landingHandler := handler.NewLandingHandler(pages, cfg.APIPrefix)
	metricsHandler := handler.NewMetricsHandler(metrics, db)
	reportHandler := handler.NewReportHandler(reportSvc, exportSvc, pages, handler.ReportOptions{
		Prefix:   cfg.APIPrefix,
		Location: location,
	})
	studentHandler := handler.NewStudentHandler(studentSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc, guard, cfg.Uploads.TokenTTL, cfg.Uploads.UpdateExisting)

	sessionStore := cookie.NewStore([]byte(cfg.Session.Secret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Session.MaxAge.Seconds()),
		Secure:   cfg.Session.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())
	r.Use(sessions.Sessions(cfg.Session.Name, sessionStore))
	r.Use(middleware.SessionID(logr))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET(cfg.Reports.LandingPath, landingHandler.Index)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	throttle := func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		throttle = middleware.RateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	}

	manager := r.Group(cfg.APIPrefix)
	manager.Use(middleware.JWT(authSvc, cfg.Reports.LandingPath))
	manager.Use(middleware.SchoolManager(accessSvc, cfg.Reports.LandingPath))

	reports := manager.Group("/reports", throttle)
	reports.GET("/course-completion", reportHandler.CourseCompletion)
	reports.GET("/student-engagement", reportHandler.StudentEngagement)
	reports.GET("/students/:id", reportHandler.StudentDetail)
	reports.GET("/activity-log", reportHandler.ActivityLog)

	students := manager.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.PUT("/:id", studentHandler.Update)

	uploads := manager.Group("/uploads")
	uploads.GET("/token", uploadHandler.Token)
	uploads.POST("/students", throttle, uploadHandler.Students)
	uploads.POST("/pictures", throttle, uploadHandler.Pictures)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
