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

	_ "github.com/lumen-edu/posgrad-api/api/swagger"
	"github.com/lumen-edu/posgrad-api/internal/handler"
	"github.com/lumen-edu/posgrad-api/internal/middleware"
	"github.com/lumen-edu/posgrad-api/internal/models"
	"github.com/lumen-edu/posgrad-api/internal/repository"
	"github.com/lumen-edu/posgrad-api/internal/service"
	"github.com/lumen-edu/posgrad-api/pkg/cache"
	"github.com/lumen-edu/posgrad-api/pkg/config"
	"github.com/lumen-edu/posgrad-api/pkg/database"
	"github.com/lumen-edu/posgrad-api/pkg/jobs"
	"github.com/lumen-edu/posgrad-api/pkg/logger"
	corsmiddleware "github.com/lumen-edu/posgrad-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lumen-edu/posgrad-api/pkg/middleware/requestid"
	"github.com/lumen-edu/posgrad-api/pkg/storage"
)

// @title Posgrad Admin API
// @version 1.0.0
// @description Administrative API for the postgraduate program
// @BasePath /api/v1
// @schemes http

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	personRepo := repository.NewPersonRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	disciplineRepo := repository.NewDisciplineRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reportRepo := repository.NewReportRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient, cfg.Session.IdleTimeout)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	linkSvc := service.NewLinkService(disciplineRepo, logr)
	authSvc := service.NewAuthService(personRepo, sessionRepo, auditRepo, cfg.JWT.Secret, cfg.JWT.Expiration, validate, logr)
	overviewSvc := service.NewOverviewService(courseRepo, disciplineRepo, personRepo, uploadRepo, auditRepo, cacheSvc, logr)
	personSvc := service.NewPersonService(personRepo, courseRepo, auditRepo, overviewSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, personRepo, linkSvc, auditRepo, overviewSvc, validate, logr)
	disciplineSvc := service.NewDisciplineService(disciplineRepo, courseRepo, auditRepo, overviewSvc, validate, logr)
	importSvc := service.NewImportService(personRepo, courseRepo, disciplineRepo, uploadRepo, auditRepo, overviewSvc, logr)
	auditSvc := service.NewAuditService(auditRepo, logr)

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(courseRepo, disciplineRepo, personRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr)

		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportSvc = service.NewReportService(reportRepo, queue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	personHandler := handler.NewPersonHandler(personSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	disciplineHandler := handler.NewDisciplineHandler(disciplineSvc)
	importHandler := handler.NewImportHandler(importSvc, cfg.Imports.MaxFileSizeBytes)
	overviewHandler := handler.NewOverviewHandler(overviewSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	if reportSvc != nil {
		// Signed token carries its own auth, the browser hits this directly.
		api.GET("/export/:token", handler.NewReportHandler(reportSvc).Download)
	}

	authed := api.Group("")
	authed.Use(middleware.Session(authSvc))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/me", authHandler.Me)
		authed.GET("/overview", overviewHandler.Overview)

		authed.GET("/courses", courseHandler.List)
		authed.GET("/courses/:id", courseHandler.Get)
		authed.GET("/disciplines", disciplineHandler.List)
		authed.GET("/disciplines/:id", disciplineHandler.Get)
		authed.GET("/people", personHandler.List)
		authed.GET("/people/:id", personHandler.Get)

		admin := authed.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdministrador))
		{
			admin.POST("/courses", courseHandler.Create)
			admin.PUT("/courses/:id", courseHandler.Update)
			admin.DELETE("/courses/:id", courseHandler.Delete)

			admin.POST("/disciplines", disciplineHandler.Create)
			admin.PUT("/disciplines/:id", disciplineHandler.Update)
			admin.DELETE("/disciplines/:id", disciplineHandler.Delete)

			admin.POST("/people", personHandler.Create)
			admin.PUT("/people/:id", personHandler.Update)
			admin.DELETE("/people/:id", personHandler.Delete)

			admin.POST("/imports/:kind", importHandler.Upload)
			admin.GET("/imports/:kind/template", importHandler.Template)
			admin.GET("/imports/history", importHandler.History)

			admin.GET("/audit", auditHandler.List)
			admin.GET("/metrics/summary", metricsHandler.Snapshot)
		}

		if reportSvc != nil {
			reportHandler := handler.NewReportHandler(reportSvc)
			authed.POST("/reports", reportHandler.Create)
			authed.GET("/reports/:id", reportHandler.Status)
		}
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
