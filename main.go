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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/di"
	"github.com/prohmpiriya/concert-booking/internal/handler"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/internal/worker"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/middleware"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Concert Booking Service...")

	ctx := context.Background()

	// Initialize telemetry before any instrument is created
	otelCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}
	if _, err := telemetry.Init(ctx, otelCfg); err != nil {
		appLog.Warn(fmt.Sprintf("Tracing disabled: %v", err))
	}
	if err := telemetry.InitMetrics(ctx, otelCfg, 0); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics export disabled: %v", err))
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to create booking metrics: %v", err))
	}

	infra, err := di.Connect(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to connect infrastructure", zap.Error(err))
	}
	defer infra.Close()

	container, err := di.NewContainer(ctx, &di.ContainerConfig{
		Config: cfg,
		Infra:  infra,
		Logger: appLog,
	})
	if err != nil {
		appLog.Fatal("Failed to build container", zap.Error(err))
	}
	defer container.Close()

	// In-memory state is private to this process, so it has to sweep itself
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if cfg.UsesMemoryStore() {
		startEmbeddedWorkers(workerCtx, cfg, container, appLog)
	}

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, container, appLog)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Concert Booking Service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")
	stopWorkers()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}

// startEmbeddedWorkers runs the queue sweep and hold expiry loops in process
func startEmbeddedWorkers(ctx context.Context, cfg *config.Config, container *di.Container, appLog *logger.Logger) {
	sweeper := worker.NewQueueSweepWorker(container.QueueService, &worker.QueueSweepWorkerConfig{
		Interval: cfg.Queue.SweepInterval,
	}, appLog)
	if err := sweeper.Start(ctx); err != nil {
		appLog.Error("Failed to start queue sweep worker", zap.Error(err))
	}

	reclaimer := worker.NewHoldExpiryWorker(container.ReservationService, &worker.HoldExpiryWorkerConfig{
		ScanInterval: cfg.Booking.HoldSweepInterval,
		BatchSize:    cfg.Booking.HoldSweepBatch,
	}, appLog)
	if err := reclaimer.Start(ctx); err != nil {
		appLog.Error("Failed to start hold expiry worker", zap.Error(err))
	}
	appLog.Info("Embedded workers started")
}

// setupRouter registers middleware and the /api/v1 routes
func setupRouter(cfg *config.Config, container *di.Container, appLog *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware(telemetry.TracingConfig{
		ServiceName: cfg.OTel.ServiceName,
		SkipRoutes:  []string{"/health", "/ready"},
		Attributes:  handler.SpanAttributes,
	}))
	router.Use(middleware.Logger(appLog))
	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			middleware.UserIDHeader, middleware.IdempotencyKeyHeader, middleware.RequestIDHeader, handler.QueueTokenHeader,
		},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(middleware.AuthConfig{
		Secret:            cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		AllowUserIDHeader: !cfg.IsProduction(),
	}))

	// Idempotency needs Redis; the memory driver runs without it
	idempotent := func(c *gin.Context) { c.Next() }
	if container.Infra.Redis != nil {
		idempotencyConfig := middleware.DefaultIdempotencyConfig(container.Infra.Redis.Client())
		idempotent = middleware.IdempotencyMiddleware(idempotencyConfig)
	}

	{
		queue := v1.Group("/queue")
		queue.POST("/token", container.QueueHandler.IssueToken)
		queue.GET("/status/:token_id", container.QueueHandler.GetStatus)
		queue.GET("/statistics", container.QueueHandler.GetStatistics)

		schedules := v1.Group("/schedules", container.CatalogHandler.RequireActiveToken())
		schedules.GET("", container.CatalogHandler.GetSchedules)
		schedules.GET("/:id/seats", container.CatalogHandler.GetAvailableSeats)
		schedules.GET("/:id/layout", container.CatalogHandler.GetSeatLayout)

		// Write operations with idempotency
		v1.POST("/reservations", idempotent, container.ReservationHandler.ReserveSeat)
		v1.POST("/payments", idempotent, container.ReservationHandler.ProcessPayment)

		v1.GET("/reservations", container.ReservationHandler.ListReservations)
		v1.GET("/reservations/:id", container.ReservationHandler.GetReservation)

		v1.GET("/balance", container.BalanceHandler.GetBalance)
		v1.POST("/balance/charge", container.BalanceHandler.Charge)

		admin := v1.Group("/admin")
		admin.POST("/schedules", container.AdminHandler.CreateSchedule)
		admin.GET("/reservations/expired", container.AdminHandler.ListExpiredReservations)
		admin.POST("/holds/release", container.AdminHandler.ReleaseExpiredHolds)
	}

	return router
}
