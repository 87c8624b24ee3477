package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenStatus is the lifecycle state of an admission token
type TokenStatus string

const (
	TokenStatusWaiting   TokenStatus = "WAITING"
	TokenStatusActive    TokenStatus = "ACTIVE"
	TokenStatusExpired   TokenStatus = "EXPIRED"
	TokenStatusCompleted TokenStatus = "COMPLETED"
)

// AdmissionToken grants a user a place in the waiting room and, once
// active, a time-limited right to reserve and pay.
//
// WAITING -> ACTIVE -> EXPIRED | COMPLETED. A token never returns to
// WAITING, never leaves EXPIRED or COMPLETED, and is never deleted.
// ExpiresAt is set only while ACTIVE.
type AdmissionToken struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Status      TokenStatus `json:"status"`
	Position    int64       `json:"position"`
	IssuedAt    time.Time   `json:"issued_at"`
	ActivatedAt *time.Time  `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// NewAdmissionToken creates a WAITING token at the given position
func NewAdmissionToken(userID string, position int64, now time.Time) (*AdmissionToken, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return &AdmissionToken{
		ID:       uuid.New().String(),
		UserID:   userID,
		Status:   TokenStatusWaiting,
		Position: position,
		IssuedAt: now,
	}, nil
}

// Activate moves a WAITING token to ACTIVE with a lease ending at now+lease
func (t *AdmissionToken) Activate(now time.Time, lease time.Duration) error {
	if t.Status != TokenStatusWaiting {
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, t.Status)
	}
	expiresAt := now.Add(lease)
	t.Status = TokenStatusActive
	t.ActivatedAt = &now
	t.ExpiresAt = &expiresAt
	return nil
}

// Expire moves an ACTIVE token to EXPIRED. The lease ends with it.
func (t *AdmissionToken) Expire() error {
	if t.Status != TokenStatusActive {
		return fmt.Errorf("%w: expire from %s", ErrInvalidTransition, t.Status)
	}
	t.Status = TokenStatusExpired
	t.ExpiresAt = nil
	return nil
}

// Complete marks a used ACTIVE token as COMPLETED and drops its lease
func (t *AdmissionToken) Complete() error {
	if t.Status != TokenStatusActive {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, t.Status)
	}
	t.Status = TokenStatusCompleted
	t.ExpiresAt = nil
	return nil
}

// IsFinal reports whether the token reached EXPIRED or COMPLETED
func (t *AdmissionToken) IsFinal() bool {
	return t.Status == TokenStatusExpired || t.Status == TokenStatusCompleted
}

// UpdatePosition sets the display position of a WAITING token
func (t *AdmissionToken) UpdatePosition(position int64) error {
	if t.Status != TokenStatusWaiting {
		return fmt.Errorf("%w: position of %s token", ErrInvalidTransition, t.Status)
	}
	t.Position = position
	return nil
}

// IsActiveAt reports whether the token is ACTIVE and its lease has not lapsed
func (t *AdmissionToken) IsActiveAt(now time.Time) bool {
	if t.Status != TokenStatusActive {
		return false
	}
	return t.ExpiresAt == nil || !now.After(*t.ExpiresAt)
}

// IsLeaseElapsed reports whether an ACTIVE token's lease has lapsed
func (t *AdmissionToken) IsLeaseElapsed(now time.Time) bool {
	return t.Status == TokenStatusActive && t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// IsWaiting reports whether the token is still in the waiting room
func (t *AdmissionToken) IsWaiting() bool {
	return t.Status == TokenStatusWaiting
}

// EstimatedWait is position times the per-slot time while waiting, zero once active
func (t *AdmissionToken) EstimatedWait(perSlot time.Duration) time.Duration {
	if t.Status != TokenStatusWaiting || t.Position <= 0 {
		return 0
	}
	return time.Duration(t.Position) * perSlot
}

// QueueStatistics summarizes the admission queue
type QueueStatistics struct {
	WaitingCount   int64 `json:"waiting_count"`
	ActiveCount    int64 `json:"active_count"`
	MaxActiveCount int64 `json:"max_active_count"`
}

// SweepResult reports what one admission sweep changed
type SweepResult struct {
	Expired   int  `json:"expired"`
	Activated int  `json:"activated"`
	Waiting   int  `json:"waiting"`
	Skipped   bool `json:"skipped"`
}
