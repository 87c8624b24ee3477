package dto

import (
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// TokenResponse represents an admission token and its place in the queue
type TokenResponse struct {
	TokenID              string     `json:"token_id"`
	UserID               string     `json:"user_id"`
	Status               string     `json:"status"`
	Position             int64      `json:"position"`
	EstimatedWaitSeconds int64      `json:"estimated_wait_seconds"`
	IssuedAt             time.Time  `json:"issued_at"`
	ActivatedAt          *time.Time `json:"activated_at,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
}

// NewTokenResponse builds a TokenResponse, estimating the wait from perSlot
func NewTokenResponse(t *domain.AdmissionToken, perSlot time.Duration) *TokenResponse {
	position := t.Position
	if !t.IsWaiting() {
		position = 0
	}
	return &TokenResponse{
		TokenID:              t.ID,
		UserID:               t.UserID,
		Status:               string(t.Status),
		Position:             position,
		EstimatedWaitSeconds: int64(t.EstimatedWait(perSlot) / time.Second),
		IssuedAt:             t.IssuedAt,
		ActivatedAt:          t.ActivatedAt,
		ExpiresAt:            t.ExpiresAt,
	}
}

// QueueStatisticsResponse represents the admission queue counters
type QueueStatisticsResponse struct {
	WaitingCount   int64 `json:"waiting_count"`
	ActiveCount    int64 `json:"active_count"`
	MaxActiveCount int64 `json:"max_active_count"`
}
