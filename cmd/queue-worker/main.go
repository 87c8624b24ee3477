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
		ServiceName: "queue-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Queue Sweep Worker...")

	if cfg.UsesMemoryStore() {
		appLog.Fatal("queue-worker needs shared storage; with STORE_DRIVER=memory the API server sweeps in process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "queue-worker",
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
		appLog.Warn(fmt.Sprintf("Failed to create queue metrics: %v", err))
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

	appLog.Info(fmt.Sprintf("Worker configuration: Capacity=%d, ActiveLease=%v, SweepInterval=%v",
		cfg.Queue.MaxActive, cfg.Queue.ActiveLease, cfg.Queue.SweepInterval))

	sweeper := worker.NewQueueSweepWorker(container.QueueService, &worker.QueueSweepWorkerConfig{
		Interval: cfg.Queue.SweepInterval,
	}, appLog)
	if err := sweeper.Start(ctx); err != nil {
		appLog.Fatal("Failed to start queue sweep worker", zap.Error(err))
	}
	appLog.Info("Queue sweep worker started")

	// Start metrics reporter in background
	go reportStats(ctx, sweeper, appLog)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down queue sweep worker...")
	cancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}
	appLog.Info("Queue sweep worker stopped")
}

// reportStats periodically logs sweep totals
func reportStats(ctx context.Context, w *worker.QueueSweepWorker, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := w.GetStats()
			log.Info("Queue sweep stats",
				zap.Int64("runs", stats.TotalRuns),
				zap.Int64("skipped", stats.TotalSkipped),
				zap.Int64("admitted", stats.TotalAdmitted),
				zap.Int64("expired", stats.TotalExpired),
				zap.Int("waiting", stats.LastWaiting),
			)
		}
	}
}
