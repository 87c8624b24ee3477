package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/di"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/internal/worker"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
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
		ServiceName: "hold-expiry-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Hold Expiry Worker...")

	if cfg.UsesMemoryStore() {
		appLog.Fatal("hold-expiry-worker needs shared storage; with STORE_DRIVER=memory the API server reclaims holds in process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "hold-expiry-worker",
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

	reclaimer := worker.NewHoldExpiryWorker(container.ReservationService, &worker.HoldExpiryWorkerConfig{
		ScanInterval: cfg.Booking.HoldSweepInterval,
		BatchSize:    cfg.Booking.HoldSweepBatch,
	}, appLog)
	if err := reclaimer.Start(ctx); err != nil {
		appLog.Fatal("Failed to start hold expiry worker", zap.Error(err))
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down hold expiry worker...")
	reclaimer.Stop()
	cancel()

	stats := reclaimer.GetStats()
	appLog.Info("Hold expiry worker stopped", zap.Int64("total_released", stats.TotalReleased))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}
}
