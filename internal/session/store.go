package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bff-service/internal/auth"
)

// ErrUnavailable is wrapped by every failure of the backing store itself.
// It is never returned for a session that simply does not exist.
var ErrUnavailable = errors.New("session: store unavailable")

// Session represents an authenticated user session.
// It stores a snapshot of the owner identity taken at login.
type Session struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	Identity  auth.Identity `json:"identity"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Expired reports whether the session is expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Patch lists the fields Update may change. Nil fields are left untouched.
type Patch struct {
	ExpiresAt *time.Time
	Identity  *auth.Identity
}

func (p Patch) apply(s *Session) {
	if p.ExpiresAt != nil {
		s.ExpiresAt = *p.ExpiresAt
	}
	if p.Identity != nil {
		s.Identity = *p.Identity
	}
}

// Store defines how sessions are stored and retrieved.
// Get and Update return (nil, nil) for missing or expired sessions.
type Store interface {
	Create(ctx context.Context, owner auth.Identity, expiresAt time.Time) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, sessionID string, patch Patch) (*Session, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	DeleteAllForOwner(ctx context.Context, ownerID string) (bool, error)
	SweepExpired(ctx context.Context) (int, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
