package main

import (
	"context"
	"errors"
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

	_ "github.com/campuskit/reportcard-api/api/swagger"
	"github.com/campuskit/reportcard-api/internal/handler"
	"github.com/campuskit/reportcard-api/internal/middleware"
	"github.com/campuskit/reportcard-api/internal/models"
	"github.com/campuskit/reportcard-api/internal/repository"
	"github.com/campuskit/reportcard-api/internal/service"
	"github.com/campuskit/reportcard-api/pkg/cache"
	"github.com/campuskit/reportcard-api/pkg/config"
	"github.com/campuskit/reportcard-api/pkg/database"
	"github.com/campuskit/reportcard-api/pkg/export"
	"github.com/campuskit/reportcard-api/pkg/logger"
	corsmiddleware "github.com/campuskit/reportcard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/reportcard-api/pkg/middleware/requestid"
	"github.com/campuskit/reportcard-api/pkg/storage"
)

// @title Report Card API
// @version 1.0.0
// @description Assessment aggregation and report card engine
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, report card cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.PublishedTTL, logr, true)
		}
	}

	markRepo := repository.NewMarkRepository(db)
	cardRepo := repository.NewReportCardRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	coScholRepo := repository.NewCoScholasticRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	jobRepo := repository.NewGenerationJobRepository(db)

	policySvc := service.NewPolicyService(policyRepo, validate, logr)
	aggregationSvc := service.NewAggregationService(markRepo, cardRepo, studentRepo, policySvc, metricsSvc, logr, service.AggregationConfig{
		StudentFanout:    cfg.Generation.StudentFanout,
		MarkFetchRetries: cfg.Generation.MarkFetchRetries,
	})
	lifecycleSvc := service.NewLifecycleService(cardRepo, auditRepo, aggregationSvc, cacheSvc, metricsSvc, logr)
	renderSvc := service.NewRenderService(templateRepo, coScholRepo, policyRepo, studentRepo, markRepo, cardRepo, metricsSvc, logr)
	coScholSvc := service.NewCoScholasticService(coScholRepo, studentRepo, validate, logr)
	templateSvc := service.NewTemplateService(templateRepo, policyRepo, validate, logr)

	artifactStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err, "dir", cfg.Reports.StorageDir)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(cardRepo, markRepo, studentRepo, artifactStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())
	generationSvc := service.NewGenerationService(jobRepo, aggregationSvc, exportSvc, metricsSvc, service.GenerationServiceConfig{
		Workers:    cfg.Generation.WorkerConcurrency,
		MaxRetries: cfg.Generation.WorkerRetries,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := policySvc.Seed(ctx); err != nil {
		logr.Sugar().Fatalw("failed to seed builtin grading policies", "error", err)
	}
	generationSvc.Start(ctx)

	go runExportCleanup(ctx, exportSvc, generationSvc, cfg.Reports, logr)

	reportCardHandler := handler.NewReportCardHandler(aggregationSvc, lifecycleSvc, renderSvc, generationSvc)
	policyHandler := handler.NewPolicyHandler(policySvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	coScholHandler := handler.NewCoScholasticHandler(coScholSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/system", metricsHandler.System)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// The signed token carries its own authorization; a bearer token, when
	// present, is still parsed so downloads show up attributed in access logs.
	api.GET("/export/:token", middleware.OptionalJWT(cfg.JWT.Secret), exportHandler.Download)

	authed := api.Group("", middleware.JWT(cfg.JWT.Secret))
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	selfOrStaff := middleware.RBAC("SELF",
		string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleTeacher))

	authed.GET("/report-cards/:id", reportCardHandler.Get)
	authed.GET("/report-cards/:id/render", reportCardHandler.Render)
	authed.GET("/report-cards/:id/history", staff, reportCardHandler.History)
	authed.GET("/report-cards/jobs/:id", staff, reportCardHandler.JobStatus)
	authed.GET("/exam-groups/:id/report-cards", staff, reportCardHandler.ListGroup)
	authed.GET("/exam-groups/:id/students/:studentId/report-card", reportCardHandler.GetForStudent)
	authed.GET("/exam-groups", staff, reportCardHandler.ListExamGroups)
	authed.GET("/students/:id/report-cards", selfOrStaff, reportCardHandler.ListForStudent)

	authed.POST("/report-cards/generate", staff, reportCardHandler.Generate)
	authed.POST("/report-cards/generate-batch", staff, reportCardHandler.GenerateBatch)
	authed.POST("/report-cards/:id/publish", admin, reportCardHandler.Publish)
	authed.POST("/exam-groups/:id/publish", admin, reportCardHandler.PublishGroup)
	authed.POST("/report-cards/:id/distribute", admin, reportCardHandler.Distribute)
	authed.POST("/report-cards/:id/regenerate", staff, reportCardHandler.Regenerate)

	authed.GET("/policies", staff, policyHandler.List)
	authed.GET("/policies/resolve", staff, policyHandler.Resolve)
	authed.GET("/policies/:code", staff, policyHandler.GetByCode)
	authed.POST("/policies", admin, middleware.Audit(auditRepo, "CREATE", "grading_policy"), policyHandler.Create)
	authed.DELETE("/policies/:id", admin, middleware.Audit(auditRepo, "DEACTIVATE", "grading_policy"), policyHandler.Deactivate)

	authed.GET("/templates", staff, templateHandler.List)
	authed.GET("/templates/:id", staff, templateHandler.Get)
	authed.POST("/templates", admin, middleware.Audit(auditRepo, "CREATE", "report_template"), templateHandler.Create)
	authed.PUT("/templates/:id", admin, middleware.Audit(auditRepo, "UPDATE", "report_template"), templateHandler.Update)

	authed.PUT("/co-scholastic", staff, coScholHandler.Upsert)
	authed.POST("/co-scholastic/complete", staff, coScholHandler.Complete)
	authed.GET("/students/:id/co-scholastic", selfOrStaff, coScholHandler.Get)
	authed.GET("/sections/:id/co-scholastic", staff, coScholHandler.ListBySection)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown error", "error", err)
	}
	generationSvc.Stop()
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, generation *service.GenerationService, cfg config.ReportsConfig, logr *zap.Logger) {
	if cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleared := generation.ExpireResults(ctx, time.Now().Add(-cfg.SignedURLTTL))
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if cleared > 0 || len(removed) > 0 {
				logr.Info("expired export artifacts removed",
					zap.Int("jobs_cleared", cleared),
					zap.Int("files_removed", len(removed)))
			}
		}
	}
}
