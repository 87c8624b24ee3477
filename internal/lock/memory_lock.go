package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is a Locker confined to one process
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clockwork.Clock
}

// NewMemoryLocker creates a MemoryLocker; lease expiry follows clock
func NewMemoryLocker(clock clockwork.Clock) *MemoryLocker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLocker{entries: make(map[string]memoryEntry), clock: clock}
}

// Acquire takes key if it is free or its previous lease expired
func (m *MemoryLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (*Lease, error) {
	token := uuid.New().String()
	var expiresAt time.Time

	err := poll(ctx, wait, func(context.Context) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		now := m.clock.Now()
		if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
			return false, nil
		}
		expiresAt = now.Add(lease)
		m.entries[key] = memoryEntry{token: token, expiresAt: expiresAt}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Lease{Key: key, Token: token, ExpiresAt: expiresAt}, nil
}

// Release frees key if lease still owns it
func (m *MemoryLocker) Release(_ context.Context, lease *Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[lease.Key]
	if !ok || e.token != lease.Token {
		return ErrNotHeld
	}
	delete(m.entries, lease.Key)
	return nil
}
