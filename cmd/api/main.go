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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sarvodaya-edu/fees-api/api/swagger"
	"github.com/sarvodaya-edu/fees-api/internal/handler"
	"github.com/sarvodaya-edu/fees-api/internal/middleware"
	"github.com/sarvodaya-edu/fees-api/internal/models"
	"github.com/sarvodaya-edu/fees-api/internal/notify"
	"github.com/sarvodaya-edu/fees-api/internal/repository"
	"github.com/sarvodaya-edu/fees-api/internal/service"
	"github.com/sarvodaya-edu/fees-api/pkg/cache"
	"github.com/sarvodaya-edu/fees-api/pkg/config"
	"github.com/sarvodaya-edu/fees-api/pkg/database"
	"github.com/sarvodaya-edu/fees-api/pkg/logger"
	corsmiddleware "github.com/sarvodaya-edu/fees-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sarvodaya-edu/fees-api/pkg/middleware/requestid"
)

// @title Sarvodaya Fees API
// @version 1.0.0
// @description School fee collection, receipt printing and parent notification service
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

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.FeeScheduleTTL, logr, true)
	}

	studentRepo := repository.NewStudentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	feeScheduleRepo := repository.NewFeeScheduleRepository(db)
	userRepo := repository.NewUserRepository(db)

	smsProvider, err := notify.SMSProvider(cfg.Notifications)
	if err != nil {
		logr.Sugar().Fatalw("invalid sms provider config", "error", err)
	}
	whatsappProvider, err := notify.WhatsAppProvider(cfg.Notifications)
	if err != nil {
		logr.Sugar().Fatalw("invalid whatsapp provider config", "error", err)
	}

	notificationSvc := service.NewNotificationService(
		smsProvider,
		whatsappProvider,
		metricsSvc,
		cfg.School.Name,
		cfg.Notifications.Workers,
		cfg.Notifications.Timeout,
		cfg.Notifications.Enabled,
		logr,
	)

	feeSvc := service.NewFeeService(feeScheduleRepo, studentRepo, paymentRepo, cacheSvc, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, studentRepo, feeSvc, userRepo, notificationSvc, metricsSvc, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	receiptSvc := service.NewReceiptService(paymentRepo, feeSvc, service.SchoolInfo{
		Name:     cfg.School.Name,
		Subtitle: cfg.School.Subtitle,
		Location: cfg.School.Location,
	}, logr)
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "fees-api",
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := feeSvc.Seed(rootCtx); err != nil {
		logr.Sugar().Fatalw("failed to seed fee schedule", "error", err)
	}

	notificationSvc.Start(rootCtx)
	defer notificationSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, feeSvc, paymentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, receiptSvc)
	feeConfigHandler := handler.NewFeeConfigHandler(feeSvc)
	receiptHandler := handler.NewReceiptHandler(receiptSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	students := protected.Group("/students")
	{
		students.GET("", studentHandler.List)
		students.GET("/export", studentHandler.Export)
		students.POST("", adminOnly, studentHandler.Create)
		students.POST("/import", adminOnly, studentHandler.Import)
		students.GET("/:id", studentHandler.Get)
		students.PUT("/:id", adminOnly, studentHandler.Update)
		students.DELETE("/:id", adminOnly, studentHandler.Delete)
		students.GET("/:id/balance", studentHandler.Balance)
		students.GET("/:id/payments", studentHandler.Payments)
	}

	payments := protected.Group("/payments")
	{
		payments.GET("", paymentHandler.List)
		payments.GET("/export", paymentHandler.Export)
		payments.POST("", paymentHandler.Create)
		payments.GET("/:id", paymentHandler.Get)
		payments.PUT("/:id", adminOnly, paymentHandler.Update)
		payments.DELETE("/:id", adminOnly, paymentHandler.Delete)
		payments.GET("/:id/receipt", paymentHandler.Receipt)
	}

	fees := protected.Group("/fees")
	{
		fees.GET("", feeConfigHandler.Get)
		feeAudit := middleware.Audit(userRepo, models.AuditActionFeeConfig, "fee_schedule")
		fees.PUT("/development", adminOnly, feeAudit, feeConfigHandler.UpdateDevelopmentFees)
		fees.PUT("/bus-stops", adminOnly, feeAudit, feeConfigHandler.UpdateBusStops)
		fees.DELETE("/bus-stops/:stop", adminOnly, feeAudit, feeConfigHandler.DeleteBusStop)
		fees.POST("/bus-stops/import", adminOnly, feeAudit, feeConfigHandler.ImportBusStops)
		fees.GET("/bus-stops/export", feeConfigHandler.ExportBusStops)
	}

	receipts := protected.Group("/receipts")
	{
		receipts.GET("/layouts", receiptHandler.Layouts)
		receipts.GET("/bulk", receiptHandler.Bulk)
	}

	protected.GET("/metrics/summary", adminOnly, metricsHandler.Summary)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
