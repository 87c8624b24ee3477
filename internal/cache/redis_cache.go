package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

//go:embed scripts/put_layout.lua
var putLayoutScript string

const scriptPutLayout = "put_layout"

// RedisSeatCache stores JSON read models in Redis
type RedisSeatCache struct {
	client *pkgredis.Client
	log    *logger.Logger
}

// NewRedisSeatCache creates a RedisSeatCache
func NewRedisSeatCache(client *pkgredis.Client, log *logger.Logger) *RedisSeatCache {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisSeatCache{client: client, log: log}
}

func (c *RedisSeatCache) GetLayout(ctx context.Context, scheduleID string) (*domain.SeatLayout, bool) {
	ctx, span := telemetry.StartSpan(ctx, "cache.redis.layout.get")
	defer span.End()

	var layout domain.SeatLayout
	hit := c.get(ctx, LayoutKey(scheduleID), &layout)
	span.SetAttributes(attribute.String("schedule_id", scheduleID), attribute.Bool("hit", hit))
	metrics.RecordCacheLookup(ctx, "layout", hit)
	if !hit {
		return nil, false
	}
	return &layout, true
}

// LoadScripts loads the layout compare-and-set script into Redis
func (c *RedisSeatCache) LoadScripts(ctx context.Context) error {
	if _, err := c.client.LoadScript(ctx, scriptPutLayout, putLayoutScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptPutLayout, err)
	}
	return nil
}

// LayoutGeneration reports false when Redis is unreachable so the caller
// skips the write
func (c *RedisSeatCache) LayoutGeneration(ctx context.Context, scheduleID string) (int64, bool) {
	gen, err := c.client.Get(ctx, LayoutGenKey(scheduleID)).Int64()
	if err != nil {
		if pkgredis.IsNil(err) {
			return 0, true
		}
		c.log.Warn("cache generation read failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (c *RedisSeatCache) PutLayout(ctx context.Context, scheduleID string, layout *domain.SeatLayout, generation int64, ttl time.Duration) bool {
	ctx, span := telemetry.StartSpan(ctx, "cache.redis.layout.put")
	defer span.End()

	if ttl <= 0 {
		ttl = DefaultLayoutTTL
	}
	data, err := json.Marshal(layout)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		return false
	}

	keys := []string{LayoutKey(scheduleID), LayoutGenKey(scheduleID)}
	stored, err := c.client.EvalWithFallback(ctx, scriptPutLayout, putLayoutScript, keys,
		strconv.FormatInt(generation, 10), data, ttl.Milliseconds()).Int64()
	if err != nil {
		c.log.Warn("cache write failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		return false
	}
	span.SetAttributes(
		attribute.String("schedule_id", scheduleID),
		attribute.Int64("generation", generation),
		attribute.Bool("stored", stored == 1),
	)
	return stored == 1
}

// InvalidateLayout bumps the generation before dropping the entry, so a load
// that started earlier can neither survive the delete nor write after it
func (c *RedisSeatCache) InvalidateLayout(ctx context.Context, scheduleID string) {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, LayoutGenKey(scheduleID))
	pipe.Expire(ctx, LayoutGenKey(scheduleID), layoutGenTTL)
	pipe.Del(ctx, LayoutKey(scheduleID))
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("cache invalidate failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

func (c *RedisSeatCache) GetAvailableSchedules(ctx context.Context) ([]*domain.AvailableSchedule, bool) {
	var schedules []*domain.AvailableSchedule
	hit := c.get(ctx, AvailableSchedulesKey, &schedules)
	metrics.RecordCacheLookup(ctx, "schedules", hit)
	return schedules, hit
}

func (c *RedisSeatCache) PutAvailableSchedules(ctx context.Context, schedules []*domain.AvailableSchedule, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultScheduleTTL
	}
	c.put(ctx, AvailableSchedulesKey, schedules, ttl)
}

func (c *RedisSeatCache) InvalidateAvailableSchedules(ctx context.Context) {
	c.del(ctx, AvailableSchedulesKey)
}

func (c *RedisSeatCache) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !pkgredis.IsNil(err) {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *RedisSeatCache) put(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisSeatCache) del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}
