package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// QueueSweepWorkerConfig holds configuration for the admission sweep worker
type QueueSweepWorkerConfig struct {
	// Interval is the time between sweeps (default: 30 seconds)
	Interval time.Duration
	// Timeout bounds a single sweep (default: Interval)
	Timeout time.Duration
}

// DefaultQueueSweepWorkerConfig returns default configuration
func DefaultQueueSweepWorkerConfig() *QueueSweepWorkerConfig {
	return &QueueSweepWorkerConfig{
		Interval: 30 * time.Second,
	}
}

// QueueSweepWorker runs the admission sweep on a cron schedule. Runs never
// overlap inside one process; across processes the sweep lock decides.
type QueueSweepWorker struct {
	config *QueueSweepWorkerConfig
	queue  service.QueueService
	log    *logger.Logger
	cron   *cron.Cron

	mu            sync.Mutex
	running       bool
	totalRuns     int64
	totalSkipped  int64
	totalAdmitted int64
	totalExpired  int64
	lastRunTime   time.Time
	lastResult    *domain.SweepResult
}

// NewQueueSweepWorker creates a new admission sweep worker
func NewQueueSweepWorker(queue service.QueueService, cfg *QueueSweepWorkerConfig, log *logger.Logger) *QueueSweepWorker {
	if cfg == nil {
		cfg = DefaultQueueSweepWorkerConfig()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if log == nil {
		log = logger.Get()
	}

	cronLog := cron.PrintfLogger(zap.NewStdLog(log.Zap()))
	return &QueueSweepWorker{
		config: cfg,
		queue:  queue,
		log:    log,
		cron:   cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
	}
}

// Start schedules the sweep and runs one immediately
func (w *QueueSweepWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("queue sweep worker already running")
	}
	w.running = true
	w.mu.Unlock()

	spec := fmt.Sprintf("@every %s", w.config.Interval)
	if _, err := w.cron.AddFunc(spec, func() { w.runScheduled(ctx) }); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	w.log.Info(fmt.Sprintf("Queue sweep worker started (interval: %v)", w.config.Interval))
	w.cron.Start()
	go w.runScheduled(ctx)
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish
func (w *QueueSweepWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping queue sweep worker")
	<-w.cron.Stop().Done()
	w.log.Info("Queue sweep worker stopped")
}

func (w *QueueSweepWorker) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.RunOnce(ctx); err != nil {
		w.log.Error(fmt.Sprintf("Admission sweep failed: %v", err))
	}
}

// RunOnce performs a single sweep
func (w *QueueSweepWorker) RunOnce(ctx context.Context) (*domain.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	result, err := w.queue.Sweep(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRunTime = time.Now()
	w.totalRuns++
	if err != nil {
		return nil, err
	}
	w.lastResult = result

	if result.Skipped {
		w.totalSkipped++
		w.log.Debug("Admission sweep skipped, another instance holds the sweep lock")
		return result, nil
	}

	w.totalAdmitted += int64(result.Activated)
	w.totalExpired += int64(result.Expired)
	if result.Activated > 0 || result.Expired > 0 {
		w.log.Info(fmt.Sprintf("Admission sweep: expired %d, admitted %d, still waiting %d",
			result.Expired, result.Activated, result.Waiting))
	}
	return result, nil
}

// GetStats returns worker statistics
func (w *QueueSweepWorker) GetStats() *QueueSweepWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := &QueueSweepWorkerStats{
		IsRunning:     w.running,
		TotalRuns:     w.totalRuns,
		TotalSkipped:  w.totalSkipped,
		TotalAdmitted: w.totalAdmitted,
		TotalExpired:  w.totalExpired,
		LastRunTime:   w.lastRunTime,
	}
	if w.lastResult != nil {
		stats.LastWaiting = w.lastResult.Waiting
	}
	return stats
}

// QueueSweepWorkerStats contains worker statistics
type QueueSweepWorkerStats struct {
	IsRunning     bool      `json:"is_running"`
	TotalRuns     int64     `json:"total_runs"`
	TotalSkipped  int64     `json:"total_skipped"`
	TotalAdmitted int64     `json:"total_admitted"`
	TotalExpired  int64     `json:"total_expired"`
	LastRunTime   time.Time `json:"last_run_time"`
	LastWaiting   int       `json:"last_waiting"`
}
