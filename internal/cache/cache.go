package cache

import (
	"context"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// Cache keys and default TTLs
const (
	LayoutKeyPrefix       = "seat:layout:"
	LayoutGenKeyPrefix    = "seat:layout:gen:"
	AvailableSchedulesKey = "schedules:available"

	DefaultLayoutTTL   = 2 * time.Hour
	DefaultScheduleTTL = 15 * time.Minute

	// generation counters outlive any layout load by a wide margin
	layoutGenTTL = 24 * time.Hour
)

// LayoutKey returns the cache key of a schedule's seat layout
func LayoutKey(scheduleID string) string {
	return LayoutKeyPrefix + scheduleID
}

// LayoutGenKey returns the key of a schedule's layout generation counter
func LayoutGenKey(scheduleID string) string {
	return LayoutGenKeyPrefix + scheduleID
}

// SeatCache holds read models derived from seat state. Implementations fail
// open: a backend error is reported as a miss and writes become no-ops.
//
// Every InvalidateLayout bumps the schedule's layout generation. A loader
// reads the generation before reading seats and hands it to PutLayout, which
// drops the write if an invalidation happened in between.
type SeatCache interface {
	GetLayout(ctx context.Context, scheduleID string) (*domain.SeatLayout, bool)
	LayoutGeneration(ctx context.Context, scheduleID string) (int64, bool)
	PutLayout(ctx context.Context, scheduleID string, layout *domain.SeatLayout, generation int64, ttl time.Duration) bool
	InvalidateLayout(ctx context.Context, scheduleID string)

	GetAvailableSchedules(ctx context.Context) ([]*domain.AvailableSchedule, bool)
	PutAvailableSchedules(ctx context.Context, schedules []*domain.AvailableSchedule, ttl time.Duration)
	InvalidateAvailableSchedules(ctx context.Context)
}
