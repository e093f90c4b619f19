package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"bff-service/internal/auth"
)

// MemoryStore keeps sessions in process memory. A single mutex guards both
// the session map and the owner index, so every mutation is atomic.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byOwner  map[string]map[string]struct{}
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byOwner:  make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Create(_ context.Context, owner auth.Identity, expiresAt time.Time) (*Session, error) {
	if owner.ID == "" {
		return nil, errors.New("session: missing owner id")
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		OwnerID:   owner.ID,
		Identity:  owner,
		CreatedAt: m.now(),
		ExpiresAt: expiresAt,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = s
	ids, ok := m.byOwner[owner.ID]
	if !ok {
		ids = make(map[string]struct{})
		m.byOwner[owner.ID] = ids
	}
	ids[id] = struct{}{}

	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveLocked(sessionID)
	if s == nil {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, sessionID string, patch Patch) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveLocked(sessionID)
	if s == nil {
		return nil, nil
	}
	updated := *s
	patch.apply(&updated)
	m.sessions[sessionID] = &updated

	cp := updated
	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteLocked(sessionID), nil
}

func (m *MemoryStore) DeleteAllForOwner(_ context.Context, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, ok := m.byOwner[ownerID]
	if !ok {
		return false, nil
	}

	// Expired entries are dropped too but do not count as revoked.
	now := m.now()
	revoked := false
	for id := range ids {
		if s, ok := m.sessions[id]; ok && !s.Expired(now) {
			revoked = true
		}
		delete(m.sessions, id)
	}
	delete(m.byOwner, ownerID)
	return revoked, nil
}

func (m *MemoryStore) SweepExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	count := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			m.deleteLocked(id)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// liveLocked returns the session or nil, lazily dropping expired entries.
func (m *MemoryStore) liveLocked(sessionID string) *Session {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	if s.Expired(m.now()) {
		m.deleteLocked(sessionID)
		return nil
	}
	return s
}

func (m *MemoryStore) deleteLocked(sessionID string) bool {
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	delete(m.sessions, sessionID)

	if ids, ok := m.byOwner[s.OwnerID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(m.byOwner, s.OwnerID)
		}
	}
	return true
}
