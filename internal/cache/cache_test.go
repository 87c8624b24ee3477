package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLayout() *domain.SeatLayout {
	return &domain.SeatLayout{
		ScheduleID: "sch-1",
		Seats: []domain.SeatLayoutItem{
			{SeatID: "a", SeatNumber: "1", SeatGrade: domain.SeatGradeVIP, Price: 150000, RowNumber: 1, ColumnNumber: 1, IsAvailable: true},
			{SeatID: "b", SeatNumber: "2", SeatGrade: domain.SeatGradeVIP, Price: 150000, RowNumber: 1, ColumnNumber: 2},
		},
	}
}

func TestLayoutKey(t *testing.T) {
	assert.Equal(t, "seat:layout:sch-1", LayoutKey("sch-1"))
}

func TestMemorySeatCache_Layout(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewMemorySeatCache(clock)

	_, ok := c.GetLayout(ctx, "sch-1")
	assert.False(t, ok)

	assert.True(t, c.PutLayout(ctx, "sch-1", sampleLayout(), 0, time.Hour))
	got, ok := c.GetLayout(ctx, "sch-1")
	require.True(t, ok)
	assert.Len(t, got.Seats, 2)

	// callers cannot mutate the cached copy
	got.Seats[0].IsAvailable = false
	again, _ := c.GetLayout(ctx, "sch-1")
	assert.True(t, again.Seats[0].IsAvailable)

	clock.Advance(time.Hour + time.Second)
	_, ok = c.GetLayout(ctx, "sch-1")
	assert.False(t, ok, "entry must expire after its ttl")
}

func TestMemorySeatCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySeatCache(nil)

	c.PutLayout(ctx, "sch-1", sampleLayout(), 0, 0)
	c.PutAvailableSchedules(ctx, []*domain.AvailableSchedule{{ScheduleID: "sch-1"}}, 0)

	c.InvalidateLayout(ctx, "sch-1")
	c.InvalidateAvailableSchedules(ctx)

	_, ok := c.GetLayout(ctx, "sch-1")
	assert.False(t, ok)
	_, ok = c.GetAvailableSchedules(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Invalidations(LayoutKey("sch-1")))
	assert.Equal(t, 1, c.Invalidations(AvailableSchedulesKey))
}

func TestMemorySeatCache_PutLayoutAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySeatCache(nil)

	// a loader reads the generation, then a seat write invalidates
	gen, ok := c.LayoutGeneration(ctx, "sch-1")
	require.True(t, ok)
	c.InvalidateLayout(ctx, "sch-1")

	assert.False(t, c.PutLayout(ctx, "sch-1", sampleLayout(), gen, time.Minute))
	_, ok = c.GetLayout(ctx, "sch-1")
	assert.False(t, ok, "a layout read before the invalidation must not be stored")

	fresh, _ := c.LayoutGeneration(ctx, "sch-1")
	assert.Equal(t, gen+1, fresh)
	assert.True(t, c.PutLayout(ctx, "sch-1", sampleLayout(), fresh, time.Minute))

	// generations are per schedule
	other, _ := c.LayoutGeneration(ctx, "sch-2")
	assert.Equal(t, int64(0), other)
}

func TestRedisSeatCache_FailsOpen(t *testing.T) {
	// nothing listens on port 1, every call errors
	raw := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = raw.Close() })

	c := NewRedisSeatCache(pkgredis.Wrap(raw), nil)
	ctx := context.Background()

	_, ok := c.LayoutGeneration(ctx, "sch-1")
	assert.False(t, ok, "an unreachable backend has no usable generation")

	assert.NotPanics(t, func() {
		assert.False(t, c.PutLayout(ctx, "sch-1", sampleLayout(), 0, time.Minute))
		c.InvalidateLayout(ctx, "sch-1")
		c.PutAvailableSchedules(ctx, nil, time.Minute)
		c.InvalidateAvailableSchedules(ctx)
	})

	_, ok = c.GetLayout(ctx, "sch-1")
	assert.False(t, ok)
	_, ok = c.GetAvailableSchedules(ctx)
	assert.False(t, ok)
}

// Integration tests - require running Redis

func TestRedisSeatCache_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := pkgredis.DefaultConfig()
	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	client, err := pkgredis.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisSeatCache(client, nil)
	scheduleID := "it-" + time.Now().Format("150405.000000")

	require.NoError(t, c.LoadScripts(ctx))
	defer client.Del(ctx, LayoutGenKey(scheduleID))

	gen, ok := c.LayoutGeneration(ctx, scheduleID)
	require.True(t, ok)
	require.True(t, c.PutLayout(ctx, scheduleID, sampleLayout(), gen, time.Minute))
	got, ok := c.GetLayout(ctx, scheduleID)
	require.True(t, ok)
	assert.Equal(t, "a", got.Seats[0].SeatID)

	c.InvalidateLayout(ctx, scheduleID)
	_, ok = c.GetLayout(ctx, scheduleID)
	assert.False(t, ok)

	// the load that read gen before the invalidation is refused
	assert.False(t, c.PutLayout(ctx, scheduleID, sampleLayout(), gen, time.Minute))
	_, ok = c.GetLayout(ctx, scheduleID)
	assert.False(t, ok)

	next, ok := c.LayoutGeneration(ctx, scheduleID)
	require.True(t, ok)
	assert.Equal(t, gen+1, next)
	assert.True(t, c.PutLayout(ctx, scheduleID, sampleLayout(), next, time.Minute))
}
