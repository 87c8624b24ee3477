package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGateway implements PaymentGateway without a provider, for local runs and tests
type MockGateway struct {
	config       *MockGatewayConfig
	transactions sync.Map
	mu           sync.RWMutex
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// SuccessRate is the probability of successful payment (0.0 to 1.0)
	SuccessRate float64

	// DelayMs is the simulated processing delay in milliseconds
	DelayMs int

	// FailureReasons is a list of possible failure reasons
	FailureReasons []string
}

type mockTransaction struct {
	amount   int64
	refunded bool
}

// DefaultMockGatewayConfig returns default configuration
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{
		SuccessRate: 1.0,
		DelayMs:     0,
		FailureReasons: []string{
			"card_declined",
			"processing_error",
		},
	}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	g := &MockGateway{config: config}
	g.SetSuccessRate(config.SuccessRate)
	return g
}

// Charge succeeds with probability SuccessRate
func (g *MockGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	if err := g.delay(ctx); err != nil {
		return nil, err
	}

	transactionID := fmt.Sprintf("mock_txn_%s", uuid.New().String()[:8])

	if rand.Float64() >= g.GetSuccessRate() {
		reason := "payment_failed"
		if n := len(g.config.FailureReasons); n > 0 {
			reason = g.config.FailureReasons[rand.Intn(n)]
		}
		return &ChargeResponse{
			TransactionID: transactionID,
			Status:        "failed",
			FailureReason: reason,
			FailureCode:   reason,
		}, nil
	}

	g.transactions.Store(transactionID, &mockTransaction{amount: req.Amount})
	return &ChargeResponse{
		Success:       true,
		TransactionID: transactionID,
		Status:        "succeeded",
	}, nil
}

// Refund marks a mock transaction refunded
func (g *MockGateway) Refund(ctx context.Context, transactionID string, amount int64) error {
	if transactionID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if err := g.delay(ctx); err != nil {
		return err
	}

	txn, ok := g.transactions.Load(transactionID)
	if !ok {
		return fmt.Errorf("transaction not found: %s", transactionID)
	}
	t := txn.(*mockTransaction)
	if amount > t.amount {
		return fmt.Errorf("refund %d exceeds charge %d", amount, t.amount)
	}
	g.transactions.Store(transactionID, &mockTransaction{amount: t.amount, refunded: true})
	return nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

// SetSuccessRate updates the success rate, clamped to [0, 1]
func (g *MockGateway) SetSuccessRate(rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	g.config.SuccessRate = rate
}

// GetSuccessRate returns the current success rate
func (g *MockGateway) GetSuccessRate() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config.SuccessRate
}

// IsRefunded reports whether a transaction was refunded
func (g *MockGateway) IsRefunded(transactionID string) bool {
	txn, ok := g.transactions.Load(transactionID)
	return ok && txn.(*mockTransaction).refunded
}

func (g *MockGateway) delay(ctx context.Context) error {
	if g.config.DelayMs <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(g.config.DelayMs) * time.Millisecond):
		return nil
	}
}
