package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the state of a reservation
type ReservationStatus string

const (
	ReservationStatusTemporary ReservationStatus = "TEMPORARY"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a user's claim on a seat. A TEMPORARY reservation expires
// together with the seat hold; confirmation is irreversible.
type Reservation struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	SeatID      string            `json:"seat_id"`
	ScheduleID  string            `json:"schedule_id"`
	SeatNumber  string            `json:"seat_number"`
	Price       int64             `json:"price"`
	Status      ReservationStatus `json:"status"`
	ReservedAt  time.Time         `json:"reserved_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty"`
	PaymentID   string            `json:"payment_id,omitempty"`
}

// NewTemporaryReservation creates a TEMPORARY reservation for a held seat,
// mirroring the seat's hold expiry
func NewTemporaryReservation(userID string, seat *Seat, price int64, now time.Time) (*Reservation, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}
	var expiresAt *time.Time
	if seat.ExpiresAt != nil {
		t := *seat.ExpiresAt
		expiresAt = &t
	}
	return &Reservation{
		ID:         uuid.New().String(),
		UserID:     userID,
		SeatID:     seat.ID,
		ScheduleID: seat.ScheduleID,
		SeatNumber: seat.SeatNumber,
		Price:      price,
		Status:     ReservationStatusTemporary,
		ReservedAt: now,
		ExpiresAt:  expiresAt,
	}, nil
}

// IsExpired reports whether the reservation's expiry has passed at now
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// IsTemporary reports whether the reservation awaits payment
func (r *Reservation) IsTemporary() bool {
	return r.Status == ReservationStatusTemporary
}

// IsOwnedBy reports whether userID made the reservation
func (r *Reservation) IsOwnedBy(userID string) bool {
	return r.UserID == userID
}

// Confirm finalizes a TEMPORARY unexpired reservation with its payment id
func (r *Reservation) Confirm(now time.Time, paymentID string) error {
	if r.Status != ReservationStatusTemporary {
		return ErrReservationNotTemporary
	}
	if r.IsExpired(now) {
		return ErrReservationExpired
	}
	r.Status = ReservationStatusConfirmed
	r.ConfirmedAt = &now
	r.ExpiresAt = nil
	r.PaymentID = paymentID
	return nil
}
