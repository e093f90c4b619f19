package csrf

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	attempt   Attempt
	expiresAt time.Time
}

// MemoryStore keeps attempts in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string]entry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string]entry),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Save(_ context.Context, attemptID string, a Attempt, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts[attemptID] = entry{attempt: a, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, attemptID string) (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.attempts[attemptID]
	if !ok {
		return nil, nil
	}
	delete(m.attempts, attemptID)

	if !m.now().Before(e.expiresAt) {
		return nil, nil
	}
	a := e.attempt
	return &a, nil
}

// Cleanup drops expired attempts that never received a callback.
func (m *MemoryStore) Cleanup(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.attempts {
		if !now.Before(e.expiresAt) {
			delete(m.attempts, id)
			removed++
		}
	}
	return removed
}

// SweepExpired adapts Cleanup for the periodic sweeper.
func (m *MemoryStore) SweepExpired(ctx context.Context) (int, error) {
	return m.Cleanup(ctx), nil
}
