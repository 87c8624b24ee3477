package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// MemoryBalanceRepository implements BalanceRepository in process memory
type MemoryBalanceRepository struct {
	mu       sync.Mutex
	balances map[string]domain.UserBalance
	clock    clockwork.Clock
}

// NewMemoryBalanceRepository creates a new MemoryBalanceRepository
func NewMemoryBalanceRepository(clock clockwork.Clock) *MemoryBalanceRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryBalanceRepository{balances: make(map[string]domain.UserBalance), clock: clock}
}

func (r *MemoryBalanceRepository) Get(_ context.Context, userID string) (*domain.UserBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.balances[userID]
	if !ok {
		return &domain.UserBalance{UserID: userID}, nil
	}
	return &b, nil
}

func (r *MemoryBalanceRepository) Debit(_ context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.balances[userID]
	if b.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}
	return r.applyLocked(userID, b.Balance-amount), nil
}

func (r *MemoryBalanceRepository) Credit(_ context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.applyLocked(userID, r.balances[userID].Balance+amount), nil
}

func (r *MemoryBalanceRepository) applyLocked(userID string, balance int64) *domain.UserBalance {
	b := domain.UserBalance{UserID: userID, Balance: balance, UpdatedAt: r.clock.Now()}
	r.balances[userID] = b
	return &b
}

// MemoryPaymentRepository implements PaymentRepository in process memory
type MemoryPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
}

// NewMemoryPaymentRepository creates a new MemoryPaymentRepository
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{payments: make(map[string]domain.Payment)}
}

func (r *MemoryPaymentRepository) Save(_ context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.ID] = *payment
	return nil
}

func (r *MemoryPaymentRepository) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *MemoryPaymentRepository) FindByUserID(_ context.Context, userID string) ([]*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			payment := p
			out = append(out, &payment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

