package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/domain"
)

type memoryItem struct {
	value     interface{}
	expiresAt time.Time
}

// MemorySeatCache is a process-local SeatCache. It counts invalidations so
// callers can observe them.
type MemorySeatCache struct {
	mu            sync.RWMutex
	items         map[string]memoryItem
	clock         clockwork.Clock
	invalidations map[string]int
	generations   map[string]int64
}

// NewMemorySeatCache creates a MemorySeatCache
func NewMemorySeatCache(clock clockwork.Clock) *MemorySeatCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemorySeatCache{
		items:         make(map[string]memoryItem),
		clock:         clock,
		invalidations: make(map[string]int),
		generations:   make(map[string]int64),
	}
}

func (c *MemorySeatCache) GetLayout(_ context.Context, scheduleID string) (*domain.SeatLayout, bool) {
	v, ok := c.get(LayoutKey(scheduleID))
	if !ok {
		return nil, false
	}
	layout := *v.(*domain.SeatLayout)
	layout.Seats = append([]domain.SeatLayoutItem(nil), layout.Seats...)
	return &layout, true
}

func (c *MemorySeatCache) LayoutGeneration(_ context.Context, scheduleID string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[scheduleID], true
}

func (c *MemorySeatCache) PutLayout(_ context.Context, scheduleID string, layout *domain.SeatLayout, generation int64, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultLayoutTTL
	}
	stored := *layout
	stored.Seats = append([]domain.SeatLayoutItem(nil), layout.Seats...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[scheduleID] != generation {
		return false
	}
	c.items[LayoutKey(scheduleID)] = memoryItem{value: &stored, expiresAt: c.clock.Now().Add(ttl)}
	return true
}

func (c *MemorySeatCache) InvalidateLayout(_ context.Context, scheduleID string) {
	c.mu.Lock()
	c.generations[scheduleID]++
	c.mu.Unlock()
	c.del(LayoutKey(scheduleID))
}

func (c *MemorySeatCache) GetAvailableSchedules(_ context.Context) ([]*domain.AvailableSchedule, bool) {
	v, ok := c.get(AvailableSchedulesKey)
	if !ok {
		return nil, false
	}
	return v.([]*domain.AvailableSchedule), true
}

func (c *MemorySeatCache) PutAvailableSchedules(_ context.Context, schedules []*domain.AvailableSchedule, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultScheduleTTL
	}
	c.put(AvailableSchedulesKey, schedules, ttl)
}

func (c *MemorySeatCache) InvalidateAvailableSchedules(_ context.Context) {
	c.del(AvailableSchedulesKey)
}

// Invalidations returns how many times key was invalidated
func (c *MemorySeatCache) Invalidations(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.invalidations[key]
}

func (c *MemorySeatCache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || c.clock.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

func (c *MemorySeatCache) put(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{value: value, expiresAt: c.clock.Now().Add(ttl)}
}

func (c *MemorySeatCache) del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.invalidations[key]++
}
