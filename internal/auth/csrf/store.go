// Package csrf keeps the server-side half of an in-flight OAuth login:
// the CSRF state and PKCE verifier, stored under an opaque attempt id that
// travels to the browser in a short-lived cookie.
package csrf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bff-service/internal/utils"
)

const (
	// CookieName carries the attempt id between /auth/google and /auth/callback.
	CookieName = "__oauth_attempt"

	// TTL bounds how long a login attempt may wait for its callback.
	TTL = 5 * time.Minute

	idBytes = 32
)

// ErrUnavailable wraps failures of the backing store.
var ErrUnavailable = errors.New("csrf: store unavailable")

// Attempt is one in-flight login.
type Attempt struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	ReturnTo  string    `json:"return_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store records attempts. Consume is single use: the attempt is removed on
// the first call whether or not the caller goes on to accept it.
// Consume returns (nil, nil) for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, attemptID string, a Attempt, ttl time.Duration) error
	Consume(ctx context.Context, attemptID string) (*Attempt, error)
}

// NewAttemptID returns a fresh unguessable attempt id.
func NewAttemptID() (string, error) {
	return utils.RandomString(idBytes)
}

// NewState returns a fresh random CSRF state value.
func NewState() (string, error) {
	return utils.RandomString(idBytes)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
