package dto

import "time"

// ChargeBalanceRequest represents a balance top-up
type ChargeBalanceRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// BalanceResponse represents a user's balance
type BalanceResponse struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
