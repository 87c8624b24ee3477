package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// ErrTimeout is returned when a lock is not acquired within the wait timeout
var ErrTimeout = domain.ErrLockTimeout

// ErrNotHeld is returned when releasing a lease that no longer owns its key
var ErrNotHeld = errors.New("lock not held by this lease")

// Lease is the handle of an acquired lock. Token identifies the holder so
// only it can release the key.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// Locker provides named, non re-entrant mutual exclusion with a lease.
// A lease that is never released frees its key once it expires.
type Locker interface {
	// Acquire blocks for at most wait. A zero wait makes a single attempt.
	Acquire(ctx context.Context, key string, wait, lease time.Duration) (*Lease, error)
	Release(ctx context.Context, l *Lease) error
}

// Options controls how long to wait for a lock and how long to keep it
type Options struct {
	WaitTimeout time.Duration
	LeaseTime   time.Duration
}

var (
	// DefaultOptions waits 5s and holds for 10s
	DefaultOptions = Options{WaitTimeout: 5 * time.Second, LeaseTime: 10 * time.Second}
	// TransactionOptions waits 3s and holds for 10s; used by reservation and payment
	TransactionOptions = Options{WaitTimeout: 3 * time.Second, LeaseTime: 10 * time.Second}
)

// Keys used by the booking services
const (
	KeyAdmissionSweep = "admission-sweep"
)

// SeatReserveKey serializes every state change of one seat
func SeatReserveKey(seatID string) string { return "seat-reserve:" + seatID }

// PaymentKey serializes payment of one reservation
func PaymentKey(reservationID string) string { return "payment:" + reservationID }

// AdmissionIssueKey serializes token issuing for one user
func AdmissionIssueKey(userID string) string { return "admission-issue:" + userID }

// WithLock runs fn while holding key. The lock is released on every exit
// path, panics included; a release failure is returned only when fn succeeded.
func WithLock[T any](ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) (T, error)) (result T, err error) {
	lease, err := locker.Acquire(ctx, key, opts.WaitTimeout, opts.LeaseTime)
	if err != nil {
		return result, err
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if rerr := locker.Release(releaseCtx, lease); rerr != nil && err == nil && !errors.Is(rerr, ErrNotHeld) {
			err = fmt.Errorf("failed to release lock %s: %w", key, rerr)
		}
	}()

	return fn(ctx)
}

// Do is WithLock for functions without a result
func Do(ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	_, err := WithLock(ctx, locker, key, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
