package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-activity-api/api/swagger"
	"github.com/noah-isme/campus-activity-api/internal/handler"
	"github.com/noah-isme/campus-activity-api/internal/middleware"
	"github.com/noah-isme/campus-activity-api/internal/models"
	"github.com/noah-isme/campus-activity-api/internal/repository"
	"github.com/noah-isme/campus-activity-api/internal/service"
	"github.com/noah-isme/campus-activity-api/pkg/cache"
	"github.com/noah-isme/campus-activity-api/pkg/config"
	"github.com/noah-isme/campus-activity-api/pkg/database"
	"github.com/noah-isme/campus-activity-api/pkg/jobs"
	"github.com/noah-isme/campus-activity-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-activity-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-activity-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-activity-api/pkg/storage"
)

// @title Campus Activity API
// @version 1.0.0
// @description Campus activity enrollment service with capacity, waitlist and schedule conflict handling
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	signer := storage.NewURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	activityRepo := repository.NewActivityRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	reportRepo := repository.NewReportRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, auditRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer, validate, logr)
	activitySvc := service.NewActivityService(activityRepo, cacheRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, cacheRepo, metricsSvc, validate, logr)
	enrollmentSvc.SetMaxRetries(cfg.Enrollment.MaxRetries)
	conflictSvc := service.NewConflictService(enrollmentRepo, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(statsRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(activityRepo, enrollmentRepo, conflictSvc, logr)
	reportSvc := service.NewReportService(reportRepo, store, signer, exportSvc, validate, logr)

	// Background report workers.
	reportQueue := jobs.NewQueue("reports", reportSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc.BindQueue(reportQueue)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportQueue.Start(rootCtx)
	defer reportQueue.Stop()

	go cleanupLoop(rootCtx, store, cfg.Reports.CleanupInterval, cfg.Reports.SignedURLTTL, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, exportSvc)
	conflictHandler := handler.NewConflictHandler(conflictSvc, metricsSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	auditHandler := handler.NewAuditHandler(auditRepo)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(authSvc)
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInitiator)
	student := middleware.RequireRoles(models.RoleStudent)

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/register", auth, admin, authHandler.Register)
		api.GET("/auth/me", auth, authHandler.Profile)

		api.GET("/activities", activityHandler.List)
		api.GET("/activities/categories", activityHandler.Categories)
		api.GET("/activities/:id", activityHandler.Get)
		api.POST("/activities", auth, staff,
			middleware.Audit(auditRepo, models.AuditActionActivitySubmit, "activities"), activityHandler.Create)
		api.PUT("/activities/:id", auth, staff, activityHandler.Update)
		api.POST("/activities/:id/approve", auth, admin,
			middleware.Audit(auditRepo, models.AuditActionActivityApprove, "activities"), activityHandler.Approve)
		api.POST("/activities/:id/reject", auth, admin,
			middleware.Audit(auditRepo, models.AuditActionActivityReject, "activities"), activityHandler.Reject)
		api.POST("/activities/:id/cancel", auth, admin,
			middleware.Audit(auditRepo, models.AuditActionActivityCancel, "activities"), activityHandler.Cancel)

		api.GET("/enrollments", auth, enrollmentHandler.List)
		api.POST("/enrollments", auth, student,
			middleware.Audit(auditRepo, models.AuditActionEnroll, "enrollments"), enrollmentHandler.Enroll)
		api.POST("/enrollments/waitlist", auth, student,
			middleware.Audit(auditRepo, models.AuditActionWaitlist, "enrollments"), enrollmentHandler.JoinWaitlist)
		api.DELETE("/enrollments/:id", auth,
			middleware.Audit(auditRepo, models.AuditActionEnrollCancel, "enrollments"), enrollmentHandler.Cancel)
		api.GET("/enrollments/export", auth,
			middleware.Audit(auditRepo, models.AuditActionExportEnrollment, "enrollments"), enrollmentHandler.ExportCSV)

		api.GET("/conflicts", auth, staff, conflictHandler.Sweep)

		api.GET("/announcements", announcementHandler.List)
		api.GET("/announcements/:id", announcementHandler.Get)
		api.POST("/announcements", auth, admin, announcementHandler.Create)
		api.PUT("/announcements/:id", auth, admin, announcementHandler.Update)
		api.DELETE("/announcements/:id", auth, admin, announcementHandler.Delete)

		api.GET("/dashboard/stats", auth, staff, dashboardHandler.Stats)

		api.POST("/reports", auth, admin,
			middleware.Audit(auditRepo, models.AuditActionReportGenerate, "reports"), reportHandler.Create)
		api.GET("/reports", auth, admin, reportHandler.List)
		api.GET("/reports/:id", auth, admin, reportHandler.Get)
		api.GET("/reports/:id/download", reportHandler.Download)

		api.GET("/audit-logs", auth, admin, auditHandler.List)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// cleanupLoop prunes report files older than retention on a fixed interval.
func cleanupLoop(ctx context.Context, store *storage.LocalStorage, interval, retention time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(retention)
			if err != nil {
				logr.Sugar().Warnw("report cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("expired report files removed", "count", len(removed))
			}
		}
	}
}
