package domain

import (
	"fmt"
	"time"
)

// SeatStatus is the reservation state of a seat
type SeatStatus string

const (
	SeatStatusAvailable       SeatStatus = "AVAILABLE"
	SeatStatusTemporarilyHeld SeatStatus = "TEMPORARILY_HELD"
	SeatStatusReserved        SeatStatus = "RESERVED"
)

// Seat grades
const (
	SeatGradeVIP      = "VIP"
	SeatGradeStandard = "STANDARD"
)

// Seat is one sellable place of a schedule. Holder and hold times are set
// only while TEMPORARILY_HELD; a RESERVED seat keeps its holder.
type Seat struct {
	ID           string     `json:"id"`
	ScheduleID   string     `json:"schedule_id"`
	SeatNumber   string     `json:"seat_number"`
	Grade        string     `json:"grade"`
	Price        int64      `json:"price"`
	RowNumber    int        `json:"row_number"`
	ColumnNumber int        `json:"column_number"`
	Status       SeatStatus `json:"status"`
	HolderUserID string     `json:"holder_user_id,omitempty"`
	HeldAt       *time.Time `json:"held_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SeatVersion is the hold a seat snapshot was read with. A conditional
// write succeeds only while the stored seat still carries it.
type SeatVersion struct {
	Status       SeatStatus
	HolderUserID string
	HeldAt       *time.Time
}

// Version returns the hold state of this snapshot
func (s *Seat) Version() SeatVersion {
	v := SeatVersion{Status: s.Status, HolderUserID: s.HolderUserID}
	if s.HeldAt != nil {
		heldAt := *s.HeldAt
		v.HeldAt = &heldAt
	}
	return v
}

// Matches reports whether seat still carries this version
func (v SeatVersion) Matches(seat *Seat) bool {
	if seat.Status != v.Status || seat.HolderUserID != v.HolderUserID {
		return false
	}
	if v.HeldAt == nil || seat.HeldAt == nil {
		return v.HeldAt == nil && seat.HeldAt == nil
	}
	return v.HeldAt.Equal(*seat.HeldAt)
}

// IsHoldExpired reports whether a temporary hold has lapsed at now
func (s *Seat) IsHoldExpired(now time.Time) bool {
	return s.Status == SeatStatusTemporarilyHeld && s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// IsAvailable reports whether the seat can be held at now. It never mutates:
// a lapsed hold counts as available but is only reverted by ReclaimIfExpired.
func (s *Seat) IsAvailable(now time.Time) bool {
	return s.Status == SeatStatusAvailable || s.IsHoldExpired(now)
}

// IsHeldBy reports whether userID holds an unexpired temporary hold
func (s *Seat) IsHeldBy(userID string, now time.Time) bool {
	return s.Status == SeatStatusTemporarilyHeld && s.HolderUserID == userID && !s.IsHoldExpired(now)
}

// ReclaimIfExpired reverts a lapsed hold to AVAILABLE and reports whether it did
func (s *Seat) ReclaimIfExpired(now time.Time) bool {
	if !s.IsHoldExpired(now) {
		return false
	}
	s.Release(now)
	return true
}

// Hold places a temporary hold for userID lasting d
func (s *Seat) Hold(userID string, now time.Time, d time.Duration) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if s.Status != SeatStatusAvailable {
		return ErrSeatUnavailable
	}
	expiresAt := now.Add(d)
	s.Status = SeatStatusTemporarilyHeld
	s.HolderUserID = userID
	s.HeldAt = &now
	s.ExpiresAt = &expiresAt
	s.UpdatedAt = now
	return nil
}

// Confirm turns a temporary hold into a final reservation
func (s *Seat) Confirm(now time.Time) error {
	if s.Status != SeatStatusTemporarilyHeld {
		return fmt.Errorf("%w: seat %s is %s", ErrSeatNotHeld, s.ID, s.Status)
	}
	s.Status = SeatStatusReserved
	s.ExpiresAt = nil
	s.UpdatedAt = now
	return nil
}

// Release clears any hold and makes the seat AVAILABLE
func (s *Seat) Release(now time.Time) {
	s.Status = SeatStatusAvailable
	s.HolderUserID = ""
	s.HeldAt = nil
	s.ExpiresAt = nil
	s.UpdatedAt = now
}
