package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bff-service/internal/auth"
	"bff-service/internal/logger"
	"bff-service/internal/session"
)

// SessionIssuer hands out opaque session ids backed by a session.Store.
// Refresh rotates the id, and a credential can be refreshed at most once.
type SessionIssuer struct {
	store session.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionIssuer(store session.Store, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	s.now = now
	return s
}

func (s *SessionIssuer) Mode() Mode {
	return ModeSession
}

func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

func (s *SessionIssuer) Issue(ctx context.Context, identity auth.Identity) (*Credential, error) {
	now := s.now()
	sess, err := s.store.Create(ctx, identity, now.Add(s.ttl))
	if err != nil {
		return nil, storeErr(err)
	}
	return &Credential{
		Value:     sess.ID,
		Mode:      ModeSession,
		IssuedAt:  now,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func (s *SessionIssuer) Resolve(ctx context.Context, raw string) (*auth.Identity, error) {
	sess, err := s.lookup(ctx, raw)
	if err != nil {
		return nil, err
	}
	identity := sess.Identity
	return &identity, nil
}

// Refresh rotates the session id. The replacement is created before the
// old record is deleted, so a store failure leaves the caller's current
// credential intact.
func (s *SessionIssuer) Refresh(ctx context.Context, raw string) (*Credential, *auth.Identity, error) {
	sess, err := s.lookup(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	cred, err := s.Issue(ctx, sess.Identity)
	if err != nil {
		return nil, nil, err
	}

	deleted, err := s.store.Delete(ctx, raw)
	if err != nil || !deleted {
		if _, derr := s.store.Delete(ctx, cred.Value); derr != nil {
			logger.Warn("could not drop replacement session after failed rotation", map[string]any{
				"error": derr.Error(),
			})
		}
		if err != nil {
			return nil, nil, storeErr(err)
		}
		// lost a race with a concurrent refresh or logout
		return nil, nil, fmt.Errorf("%w: session already rotated", ErrInvalid)
	}

	identity := sess.Identity
	return cred, &identity, nil
}

func (s *SessionIssuer) Revoke(ctx context.Context, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	deleted, err := s.store.Delete(ctx, raw)
	if err != nil {
		return false, storeErr(err)
	}
	return deleted, nil
}

func (s *SessionIssuer) RevokeAll(ctx context.Context, ownerID string) (bool, error) {
	deleted, err := s.store.DeleteAllForOwner(ctx, ownerID)
	if err != nil {
		return false, storeErr(err)
	}
	return deleted, nil
}

func (s *SessionIssuer) lookup(ctx context.Context, raw string) (*session.Session, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalid)
	}
	sess, err := s.store.Get(ctx, raw)
	if err != nil {
		return nil, storeErr(err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: session not found", ErrInvalid)
	}
	return sess, nil
}

func storeErr(err error) error {
	if errors.Is(err, session.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
