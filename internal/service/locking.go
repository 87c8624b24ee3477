package service

import (
	"context"
	"errors"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
)

// withLock runs fn under key and records how long the caller waited for it
func withLock[T any](
	ctx context.Context,
	locker lock.Locker,
	key, operation string,
	opts lock.Options,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	start := time.Now()
	acquired := false

	result, err := lock.WithLock(ctx, locker, key, opts, func(ctx context.Context) (T, error) {
		acquired = true
		metrics.RecordLockWait(ctx, operation, time.Since(start).Seconds(), false)
		return fn(ctx)
	})
	if !acquired && errors.Is(err, lock.ErrTimeout) {
		metrics.RecordLockWait(ctx, operation, time.Since(start).Seconds(), true)
	}
	return result, err
}
