package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
)

// HoldExpiryWorkerConfig contains configuration for the hold expiry worker
type HoldExpiryWorkerConfig struct {
	// ScanInterval is the interval between scans for lapsed holds
	ScanInterval time.Duration
	// BatchSize is the number of seats released per scan
	BatchSize int
}

// DefaultHoldExpiryWorkerConfig returns default configuration
func DefaultHoldExpiryWorkerConfig() *HoldExpiryWorkerConfig {
	return &HoldExpiryWorkerConfig{
		ScanInterval: 10 * time.Second,
		BatchSize:    100,
	}
}

// HoldExpiryWorker returns seats whose temporary hold lapsed to the pool.
// The reserve path reclaims lapsed holds lazily as well.
type HoldExpiryWorker struct {
	booking service.ReservationService
	config  *HoldExpiryWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalReleased    int64
	lastScanTime     time.Time
	lastReleaseCount int
}

// NewHoldExpiryWorker creates a new hold expiry worker
func NewHoldExpiryWorker(booking service.ReservationService, config *HoldExpiryWorkerConfig, log *logger.Logger) *HoldExpiryWorker {
	if config == nil {
		config = DefaultHoldExpiryWorkerConfig()
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 10 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if log == nil {
		log = logger.Get()
	}

	return &HoldExpiryWorker{
		booking: booking,
		config:  config,
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Start starts the hold expiry worker
func (w *HoldExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("hold expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info(fmt.Sprintf("Starting hold expiry worker (interval: %v, batch: %d)",
		w.config.ScanInterval, w.config.BatchSize))

	w.wg.Add(1)
	go w.scan(ctx)
	return nil
}

// Stop stops the hold expiry worker
func (w *HoldExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping hold expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Hold expiry worker stopped")
}

func (w *HoldExpiryWorker) scan(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce releases one batch of lapsed holds and returns how many were released
func (w *HoldExpiryWorker) RunOnce(ctx context.Context) int {
	released, err := w.booking.ReleaseExpiredHolds(ctx, w.config.BatchSize)

	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.lastReleaseCount = released
	w.totalReleased += int64(released)
	w.mu.Unlock()

	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to release expired holds: %v", err))
	}
	if released > 0 {
		w.log.Info(fmt.Sprintf("Released %d expired seat holds", released))
	}
	return released
}

// GetStats returns worker statistics
func (w *HoldExpiryWorker) GetStats() *HoldExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &HoldExpiryWorkerStats{
		IsRunning:        w.running,
		TotalReleased:    w.totalReleased,
		LastScanTime:     w.lastScanTime,
		LastReleaseCount: w.lastReleaseCount,
	}
}

// HoldExpiryWorkerStats contains worker statistics
type HoldExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalReleased    int64     `json:"total_released"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastReleaseCount int       `json:"last_release_count"`
}
