package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

type memoryToken struct {
	token domain.AdmissionToken
	seq   int64
}

// MemoryTokenRepository implements TokenRepository in process memory
type MemoryTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*memoryToken
	byUser map[string]string
	seq    int64
}

// NewMemoryTokenRepository creates a new MemoryTokenRepository
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		tokens: make(map[string]*memoryToken),
		byUser: make(map[string]string),
	}
}

func (r *MemoryTokenRepository) Save(_ context.Context, token *domain.AdmissionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tokens[token.ID]; ok {
		if !existing.token.IsWaiting() && token.IsWaiting() {
			return fmt.Errorf("%w: token %s already left the queue", domain.ErrInvalidTransition, token.ID)
		}
		if existing.token.IsFinal() && token.Status != existing.token.Status {
			return fmt.Errorf("%w: token %s is already %s", domain.ErrInvalidTransition, token.ID, existing.token.Status)
		}
		existing.token = *token
		return nil
	}
	r.seq++
	r.tokens[token.ID] = &memoryToken{token: *token, seq: r.seq}
	r.byUser[token.UserID] = token.ID
	return nil
}

func (r *MemoryTokenRepository) GetByID(_ context.Context, id string) (*domain.AdmissionToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[id]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	tok := t.token
	return &tok, nil
}

func (r *MemoryTokenRepository) GetLatestByUserID(ctx context.Context, userID string) (*domain.AdmissionToken, error) {
	r.mu.RLock()
	id, ok := r.byUser[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryTokenRepository) FindWaiting(_ context.Context, limit int) ([]*domain.AdmissionToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	waiting := r.waitingLocked()
	if limit > 0 && len(waiting) > limit {
		waiting = waiting[:limit]
	}
	out := make([]*domain.AdmissionToken, len(waiting))
	for i, t := range waiting {
		tok := t.token
		out[i] = &tok
	}
	return out, nil
}

func (r *MemoryTokenRepository) FindLapsedActive(_ context.Context, now time.Time) ([]*domain.AdmissionToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.AdmissionToken
	for _, t := range r.tokens {
		if t.token.IsLeaseElapsed(now) {
			tok := t.token
			out = append(out, &tok)
		}
	}
	return out, nil
}

func (r *MemoryTokenRepository) WaitingRank(_ context.Context, id string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, t := range r.waitingLocked() {
		if t.token.ID == id {
			return int64(i + 1), nil
		}
	}
	return 0, nil
}

func (r *MemoryTokenRepository) CountWaiting(ctx context.Context) (int64, error) {
	return r.count(domain.TokenStatusWaiting), nil
}

func (r *MemoryTokenRepository) CountActive(ctx context.Context) (int64, error) {
	return r.count(domain.TokenStatusActive), nil
}

func (r *MemoryTokenRepository) count(status domain.TokenStatus) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, t := range r.tokens {
		if t.token.Status == status {
			n++
		}
	}
	return n
}

// waitingLocked returns waiting tokens ordered by issue time then insertion
func (r *MemoryTokenRepository) waitingLocked() []*memoryToken {
	var waiting []*memoryToken
	for _, t := range r.tokens {
		if t.token.IsWaiting() {
			waiting = append(waiting, t)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		a, b := waiting[i], waiting[j]
		if !a.token.IssuedAt.Equal(b.token.IssuedAt) {
			return a.token.IssuedAt.Before(b.token.IssuedAt)
		}
		return a.seq < b.seq
	})
	return waiting
}
