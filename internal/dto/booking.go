package dto

import (
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// ReserveSeatRequest represents request to hold a seat. Price 0 means the
// seat's list price.
type ReserveSeatRequest struct {
	TokenID string `json:"token_id"`
	SeatID  string `json:"seat_id" binding:"required"`
	Price   int64  `json:"price" binding:"gte=0"`
}

// ReserveSeatResponse represents a temporary reservation
type ReserveSeatResponse struct {
	ReservationID string    `json:"reservation_id"`
	SeatID        string    `json:"seat_id"`
	SeatNumber    string    `json:"seat_number"`
	Price         int64     `json:"price"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// PaymentRequest represents request to pay for a temporary reservation
type PaymentRequest struct {
	TokenID       string `json:"token_id"`
	ReservationID string `json:"reservation_id" binding:"required"`
}

// PaymentResponse represents a completed payment
type PaymentResponse struct {
	PaymentID     string    `json:"payment_id"`
	ReservationID string    `json:"reservation_id"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// ReservationResponse represents a reservation
type ReservationResponse struct {
	ReservationID string     `json:"reservation_id"`
	UserID        string     `json:"user_id"`
	SeatID        string     `json:"seat_id"`
	ScheduleID    string     `json:"schedule_id"`
	SeatNumber    string     `json:"seat_number"`
	Price         int64      `json:"price"`
	Status        string     `json:"status"`
	ReservedAt    time.Time  `json:"reserved_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	PaymentID     string     `json:"payment_id,omitempty"`
}

// NewReservationResponse converts a domain reservation
func NewReservationResponse(r *domain.Reservation) *ReservationResponse {
	return &ReservationResponse{
		ReservationID: r.ID,
		UserID:        r.UserID,
		SeatID:        r.SeatID,
		ScheduleID:    r.ScheduleID,
		SeatNumber:    r.SeatNumber,
		Price:         r.Price,
		Status:        string(r.Status),
		ReservedAt:    r.ReservedAt,
		ExpiresAt:     r.ExpiresAt,
		ConfirmedAt:   r.ConfirmedAt,
		PaymentID:     r.PaymentID,
	}
}

// NewReservationListResponse converts a list of reservations
func NewReservationListResponse(list []*domain.Reservation) []*ReservationResponse {
	out := make([]*ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, NewReservationResponse(r))
	}
	return out
}

// ReleaseHoldsResponse reports a hold sweep
type ReleaseHoldsResponse struct {
	Released int `json:"released"`
}
