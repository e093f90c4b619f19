package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bff-service/internal/auth"
	"bff-service/internal/token"
)

// TokenIssuer issues stateless signed tokens. The server keeps no record,
// so Revoke is advisory: a token stays valid until it expires.
type TokenIssuer struct {
	codec *token.Codec
}

func NewTokenIssuer(codec *token.Codec) *TokenIssuer {
	return &TokenIssuer{codec: codec}
}

func (t *TokenIssuer) Mode() Mode {
	return ModeToken
}

func (t *TokenIssuer) TTL() time.Duration {
	return t.codec.TTL()
}

func (t *TokenIssuer) Issue(_ context.Context, identity auth.Identity) (*Credential, error) {
	raw, claims, err := t.codec.Issue(identity, t.codec.TTL())
	if err != nil {
		return nil, err
	}
	return credentialFromClaims(raw, claims), nil
}

func (t *TokenIssuer) Resolve(_ context.Context, raw string) (*auth.Identity, error) {
	claims, err := t.codec.Verify(raw)
	if err != nil {
		return nil, invalid(err)
	}
	return claims.Identity(), nil
}

func (t *TokenIssuer) Refresh(_ context.Context, raw string) (*Credential, *auth.Identity, error) {
	next, claims, err := t.codec.Refresh(raw)
	if err != nil {
		return nil, nil, invalid(err)
	}
	return credentialFromClaims(next, claims), claims.Identity(), nil
}

func (t *TokenIssuer) Revoke(context.Context, string) (bool, error) {
	return false, nil
}

func (t *TokenIssuer) RevokeAll(context.Context, string) (bool, error) {
	return false, nil
}

func credentialFromClaims(raw string, claims *token.Claims) *Credential {
	return &Credential{
		Value:     raw,
		Mode:      ModeToken,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}

func invalid(err error) error {
	if errors.Is(err, token.ErrInvalid) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return err
}
