package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// UntilDone retries until the operation succeeds or the context is done
const UntilDone = -1

// Config describes an exponential backoff schedule
type Config struct {
	// MaxRetries counts attempts after the first; UntilDone leaves the bound
	// to the context
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// JitterFactor spreads each interval by ±factor, clamped to [0, 1]
	JitterFactor float64
}

// DefaultConfig waits 1s, 2s, 4s, 8s, 16s with ±10% jitter
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

func (c *Config) normalize() *Config {
	out := *c
	if out.InitialInterval <= 0 {
		out.InitialInterval = time.Second
	}
	if out.MaxInterval < out.InitialInterval {
		out.MaxInterval = out.InitialInterval
	}
	if out.Multiplier < 1 {
		out.Multiplier = 1
	}
	out.JitterFactor = math.Max(0, math.Min(1, out.JitterFactor))
	return &out
}

// Interval returns the wait before retry number attempt (0-based)
func (c *Config) Interval(attempt int) time.Duration {
	exp := math.Min(float64(attempt), 62)
	d := float64(c.InitialInterval) * math.Pow(c.Multiplier, exp)
	if c.JitterFactor > 0 {
		d += (rand.Float64()*2 - 1) * d * c.JitterFactor
	}
	d = math.Min(d, float64(c.MaxInterval))
	if d <= 0 {
		return c.InitialInterval
	}
	return time.Duration(d)
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Permanent stops the retry loop and surfaces err unwrapped
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err was marked with Retryable
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Result reports how a retry loop ended
type Result struct {
	// Err is nil on success, the permanent error, ErrContextCanceled or
	// ErrMaxRetriesExceeded
	Err       error
	LastError error
	Attempts  int
}

// Do runs op until it succeeds, returns a Permanent error, exhausts
// MaxRetries or ctx is done
func Do(ctx context.Context, config *Config, op Operation) *Result {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := config.normalize()

	result := &Result{}
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			result.Err = ErrContextCanceled
			return result
		}

		result.Attempts = attempt + 1
		err := op(ctx)
		if err == nil {
			result.Err = nil
			return result
		}
		result.LastError = err

		var perm *permanentError
		if errors.As(err, &perm) {
			result.Err = perm.err
			result.LastError = perm.err
			return result
		}
		if cfg.MaxRetries >= 0 && attempt >= cfg.MaxRetries {
			result.Err = ErrMaxRetriesExceeded
			return result
		}

		timer := time.NewTimer(cfg.Interval(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Err = ErrContextCanceled
			return result
		case <-timer.C:
		}
	}
}
