// Package credential mints and resolves the credential a browser holds
// after login. Exactly one Issuer is active per deployment.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bff-service/internal/auth"
)

type Mode string

const (
	ModeToken   Mode = "token"
	ModeSession Mode = "session"
)

// ParseMode validates a CREDENTIAL_MODE value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeToken, ModeSession:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("credential: unknown mode %q", s)
	}
}

var (
	// ErrInvalid covers missing, expired, forged and revoked credentials alike.
	ErrInvalid = errors.New("credential: invalid")

	// ErrUnavailable means the backing store could not be reached. It is
	// never used for a credential that simply does not resolve.
	ErrUnavailable = errors.New("credential: store unavailable")
)

// Credential is what the client presents on later requests.
type Credential struct {
	Value     string    `json:"-"`
	Mode      Mode      `json:"mode"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TTL returns the credential lifetime.
func (c *Credential) TTL() time.Duration {
	return c.ExpiresAt.Sub(c.IssuedAt)
}

// Issuer is the credential strategy selected at startup.
type Issuer interface {
	Mode() Mode

	// TTL is the lifetime given to newly issued credentials.
	TTL() time.Duration

	Issue(ctx context.Context, identity auth.Identity) (*Credential, error)

	// Resolve maps a raw credential to its identity.
	Resolve(ctx context.Context, raw string) (*auth.Identity, error)

	// Refresh exchanges a valid credential for a new one with a later expiry.
	Refresh(ctx context.Context, raw string) (*Credential, *auth.Identity, error)

	// Revoke reports whether anything server side was invalidated.
	Revoke(ctx context.Context, raw string) (bool, error)

	// RevokeAll invalidates every credential of the owner, where supported.
	RevokeAll(ctx context.Context, ownerID string) (bool, error)
}
