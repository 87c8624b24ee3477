package lock

import (
	"context"
	"errors"
	"time"

	"github.com/prohmpiriya/concert-booking/pkg/retry"
)

var errBusy = retry.Retryable(errors.New("lock busy"))

// pollConfig backs off from 5ms to 100ms between attempts
func pollConfig(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries:      maxRetries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
		JitterFactor:    0.2,
	}
}

// poll calls try until it reports acquired, fails permanently, or wait elapses
func poll(ctx context.Context, wait time.Duration, try func(ctx context.Context) (bool, error)) error {
	maxRetries := 0
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
		maxRetries = retry.UntilDone
	}

	result := retry.Do(ctx, pollConfig(maxRetries), func(ctx context.Context) error {
		ok, err := try(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			return errBusy
		}
		return nil
	})

	switch {
	case result.Err == nil:
		return nil
	case errors.Is(result.Err, retry.ErrContextCanceled), errors.Is(result.Err, retry.ErrMaxRetriesExceeded):
		// a cancelled caller context is not a timeout
		if ctxErr := context.Cause(ctx); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		return ErrTimeout
	default:
		return result.Err
	}
}
