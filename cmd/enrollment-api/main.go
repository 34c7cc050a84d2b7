package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/atz-edu/enroll-api/api/swagger"
	"github.com/atz-edu/enroll-api/internal/handler"
	"github.com/atz-edu/enroll-api/internal/middleware"
	"github.com/atz-edu/enroll-api/internal/repository"
	"github.com/atz-edu/enroll-api/internal/service"
	"github.com/atz-edu/enroll-api/pkg/cache"
	"github.com/atz-edu/enroll-api/pkg/config"
	"github.com/atz-edu/enroll-api/pkg/database"
	"github.com/atz-edu/enroll-api/pkg/logger"
	corsmiddleware "github.com/atz-edu/enroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/atz-edu/enroll-api/pkg/middleware/requestid"
	"github.com/atz-edu/enroll-api/pkg/storage"
)

// @title ATZ Enrollment API
// @version 1.0.0
// @description Bulk enrollment import and payment reconciliation service
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

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	allocator := service.NewCodeAllocator(
		studentRepo, referralRepo,
		cfg.Import.StudentCodePrefix, cfg.Import.StudentCodeWidth, cfg.Import.ReferralCodeWidth,
		logr,
	)
	stagingSvc := service.NewStagingService(cfg.Import.SessionTTL, logr)
	breakdownSvc := service.NewBreakdownService(studentRepo, paymentRepo, cacheRepo, cfg.Breakdown.CacheTTL, logr)
	breakdownSvc.SetMetrics(metricsSvc)
	importSvc := service.NewImportService(
		studentRepo, referralRepo, paymentRepo, courseRepo,
		stagingSvc, allocator, breakdownSvc, cfg.Import, metricsSvc, logr,
	)
	reportSvc := service.NewReportService(breakdownSvc, exportStore, signer, cfg.Exports, logr)
	reportSvc.SetMetrics(metricsSvc)
	authSvc := service.NewAuthService(operatorRepo, validate, cfg.JWT, logr)
	studentSvc := service.NewStudentService(studentRepo, allocator, breakdownSvc, validate, logr)
	referralSvc := service.NewReferralService(referralRepo, paymentRepo, allocator, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, studentRepo, breakdownSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, logr)

	// Handlers.
	authH := handler.NewAuthHandler(authSvc)
	studentH := handler.NewStudentHandler(studentSvc)
	referralH := handler.NewReferralHandler(referralSvc)
	paymentH := handler.NewPaymentHandler(paymentSvc)
	courseH := handler.NewCourseHandler(courseSvc)
	importH := handler.NewImportHandler(importSvc)
	breakdownH := handler.NewBreakdownHandler(breakdownSvc)
	exportH := handler.NewExportHandler(reportSvc)
	metricsH := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsH.Health)
	r.GET("/metrics", metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authH.Login)

	// Export downloads carry their own signed token.
	api.GET("/exports/:token", exportH.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/students", studentH.List)
		authed.POST("/students", studentH.Create)
		authed.GET("/students/:id", studentH.Get)
		authed.PUT("/students/:id", studentH.Update)
		authed.GET("/students/:id/payments", paymentH.Ledger)
		authed.POST("/students/:id/payments", paymentH.Record)

		authed.GET("/referrals", referralH.List)
		authed.POST("/referrals", referralH.Create)
		authed.GET("/referrals/:id", referralH.Get)

		authed.GET("/courses", courseH.List)

		authed.GET("/imports/template", importH.Template)
		authed.POST("/imports", importH.Upload)
		authed.GET("/imports/:id", importH.Session)
		authed.PATCH("/imports/:id/rows/:index", importH.EditRow)
		authed.POST("/imports/:id/commit", importH.Commit)

		authed.GET("/payments/breakdown", breakdownH.Get)
		authed.POST("/payments/breakdown/export", exportH.Enqueue)
		authed.GET("/exports/jobs/:id", exportH.Status)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reportSvc.Start(ctx)
	defer reportSvc.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
