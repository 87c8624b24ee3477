package lock

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed scripts/release.lua
var releaseScript string

const scriptRelease = "lock_release"

// KeyPrefix namespaces lock keys in Redis
const KeyPrefix = "lock:"

// RedisLocker is a lease lock shared by every process using the same Redis
type RedisLocker struct {
	client *pkgredis.Client
	clock  clockwork.Clock
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(client *pkgredis.Client, clock clockwork.Clock) *RedisLocker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisLocker{client: client, clock: clock}
}

// LoadScripts preloads the release script
func (l *RedisLocker) LoadScripts(ctx context.Context) error {
	if _, err := l.client.LoadScript(ctx, scriptRelease, releaseScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptRelease, err)
	}
	return nil
}

// Acquire sets the key with NX and a PX lease, polling until wait elapses
func (l *RedisLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (*Lease, error) {
	ctx, span := telemetry.StartSpan(ctx, "lock.redis.acquire")
	defer span.End()

	span.SetAttributes(
		attribute.String("lock_key", key),
		attribute.Int64("wait_ms", wait.Milliseconds()),
	)

	token := uuid.New().String()
	err := poll(ctx, wait, func(ctx context.Context) (bool, error) {
		return l.client.SetNX(ctx, KeyPrefix+key, token, lease).Result()
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if err == ErrTimeout {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, key)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	span.SetStatus(codes.Ok, "")
	return &Lease{Key: key, Token: token, ExpiresAt: l.clock.Now().Add(lease)}, nil
}

// Release deletes the key if this lease still owns it
func (l *RedisLocker) Release(ctx context.Context, lease *Lease) error {
	ctx, span := telemetry.StartSpan(ctx, "lock.redis.release")
	defer span.End()

	span.SetAttributes(attribute.String("lock_key", lease.Key))

	result := l.client.EvalWithFallback(ctx, scriptRelease, releaseScript, []string{KeyPrefix + lease.Key}, lease.Token)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return fmt.Errorf("failed to execute release script: %w", result.Err())
	}

	released, err := result.Int64()
	if err != nil {
		return fmt.Errorf("failed to parse release result: %w", err)
	}
	if released == 0 {
		span.SetStatus(codes.Error, "not held")
		return ErrNotHeld
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
