package repository

import (
	"context"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// TokenRepository stores admission tokens and indexes them by status.
// Waiting tokens are ordered by issue time; ties keep insertion order.
type TokenRepository interface {
	// Save inserts or replaces a token and moves it between status indexes
	Save(ctx context.Context, token *domain.AdmissionToken) error

	// GetByID returns domain.ErrTokenNotFound for unknown ids
	GetByID(ctx context.Context, id string) (*domain.AdmissionToken, error)

	// GetLatestByUserID returns the most recently issued token of a user
	GetLatestByUserID(ctx context.Context, userID string) (*domain.AdmissionToken, error)

	// FindWaiting returns the oldest waiting tokens first; limit <= 0 means all
	FindWaiting(ctx context.Context, limit int) ([]*domain.AdmissionToken, error)

	// FindLapsedActive returns active tokens whose lease ended before now
	FindLapsedActive(ctx context.Context, now time.Time) ([]*domain.AdmissionToken, error)

	// WaitingRank returns the 1-based place of a waiting token, 0 if not waiting
	WaitingRank(ctx context.Context, id string) (int64, error)

	CountWaiting(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

// SeatRepository stores seats. Reads are not locked; callers serialize
// writes of one seat with the seat lock.
type SeatRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Seat, error)
	Save(ctx context.Context, seat *domain.Seat) error

	// SaveIfUnchanged writes seat only while the stored row still matches
	// expected, failing with domain.ErrSeatChanged otherwise
	SaveIfUnchanged(ctx context.Context, seat *domain.Seat, expected domain.SeatVersion) error

	SaveAll(ctx context.Context, seats []*domain.Seat) error
	FindBySchedule(ctx context.Context, scheduleID string) ([]*domain.Seat, error)

	// FindExpiredHolds returns held seats whose hold ended before now
	FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domain.Seat, error)
}

// ReservationRepository stores reservations; they are never deleted
type ReservationRepository interface {
	Save(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	FindByUserID(ctx context.Context, userID string) ([]*domain.Reservation, error)

	// FindExpiredTemporary returns TEMPORARY reservations whose expiry passed
	FindExpiredTemporary(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error)
}

// ScheduleRepository stores concerts and their schedules
type ScheduleRepository interface {
	SaveConcert(ctx context.Context, concert *domain.Concert) error
	GetConcert(ctx context.Context, id string) (*domain.Concert, error)

	Save(ctx context.Context, schedule *domain.ConcertSchedule) error
	GetByID(ctx context.Context, id string) (*domain.ConcertSchedule, error)

	// FindAvailable lists open schedules with seats left, earliest date first
	FindAvailable(ctx context.Context, now time.Time) ([]*domain.AvailableSchedule, error)

	// AdjustAvailableSeats atomically adds delta, clamped to [0, total]
	AdjustAvailableSeats(ctx context.Context, id string, delta int) error
}

// BalanceRepository stores prepaid user balances
type BalanceRepository interface {
	// Get returns a zero balance for users without a record
	Get(ctx context.Context, userID string) (*domain.UserBalance, error)

	// Debit subtracts amount atomically, failing with domain.ErrInsufficientFunds
	Debit(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error)

	// Credit adds amount, creating the record if needed
	Credit(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error)
}

// PaymentRepository stores payment records
type PaymentRepository interface {
	Save(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByUserID(ctx context.Context, userID string) ([]*domain.Payment, error)
}
