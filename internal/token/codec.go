// Package token issues and verifies the signed, self-contained credentials
// used when the service runs in token mode.
package token

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bff-service/internal/auth"
)

const (
	DefaultIssuer   = "bff-service"
	DefaultAudience = "backend-api"
	DefaultTTL      = time.Hour

	minSecretLen = 16
)

var (
	// ErrInvalid is matched by every verification failure.
	ErrInvalid = errors.New("token: invalid")

	ErrMalformed        = errors.New("token: malformed")
	ErrInvalidSignature = errors.New("token: signature invalid")
	ErrExpired          = errors.New("token: expired")
	ErrInvalidClaims    = errors.New("token: invalid claims")
)

// VerifyError carries the internal failure reason. Callers outside this
// package should only test for ErrInvalid; the reason is for logs.
type VerifyError struct {
	Reason error
}

func (e *VerifyError) Error() string {
	return e.Reason.Error()
}

func (e *VerifyError) Is(target error) bool {
	return target == ErrInvalid
}

func (e *VerifyError) Unwrap() error {
	return e.Reason
}

// Claims is the JWT payload: identity claims plus registered claims.
type Claims struct {
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Picture   string        `json:"picture,omitempty"`
	Provider  auth.Provider `json:"provider"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	jwt.RegisteredClaims
}

// Identity returns the identity encoded in the claims.
func (c *Claims) Identity() *auth.Identity {
	return &auth.Identity{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		PictureURL:  c.Picture,
		Provider:    c.Provider,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type Option func(*Codec)

func WithIssuer(iss string) Option {
	return func(c *Codec) { c.issuer = iss }
}

func WithAudience(aud string) Option {
	return func(c *Codec) { c.audience = aud }
}

// WithTTL sets the lifetime used by Refresh and by Issue when ttl <= 0.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// Codec signs and verifies HS256 tokens with a server-held secret.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("token: secret must be at least %d characters", minSecretLen)
	}

	c := &Codec{
		secret:   []byte(secret),
		issuer:   DefaultIssuer,
		audience: DefaultAudience,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// TTL returns the configured default lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for identity valid for ttl from now.
func (c *Codec) Issue(identity auth.Identity, ttl time.Duration) (string, *Claims, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return "", nil, errors.New("token: identity id is required")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now().UTC()
	return c.sign(identity, now.Truncate(time.Second), ceilSecond(now.Add(ttl)))
}

// Verify checks signature first, then expiry and the registered claims.
func (c *Codec) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &VerifyError{Reason: ErrMalformed}
	}

	claims := &Claims{}
	parsed, err := c.parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, &VerifyError{Reason: classify(err)}
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, &VerifyError{Reason: ErrInvalidClaims}
	}
	return claims, nil
}

// Refresh re-issues a still-valid token for the same identity. The new
// expiry is always strictly later than the old one.
func (c *Codec) Refresh(raw string) (string, *Claims, error) {
	old, err := c.Verify(raw)
	if err != nil {
		return "", nil, err
	}

	now := c.now().UTC()
	exp := ceilSecond(now.Add(c.ttl))
	if prev := old.ExpiresAt.Time; !exp.After(prev) {
		exp = prev.Add(time.Second)
	}
	return c.sign(*old.Identity(), now.Truncate(time.Second), exp)
}

// ceilSecond rounds t up to the whole second. Claims carry second
// precision, so rounding down could expire a token before its TTL ran.
func ceilSecond(t time.Time) time.Time {
	if tr := t.Truncate(time.Second); tr.Before(t) {
		return tr.Add(time.Second)
	}
	return t
}

func (c *Codec) sign(identity auth.Identity, iat, exp time.Time) (string, *Claims, error) {
	claims := &Claims{
		Email:     identity.Email,
		Name:      identity.DisplayName,
		Picture:   identity.PictureURL,
		Provider:  identity.Provider,
		CreatedAt: identity.CreatedAt,
		UpdatedAt: identity.UpdatedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL parses "30s", "15m", "1h" or "7d". Anything else, including a
// zero amount, yields DefaultTTL.
func ParseTTL(s string) time.Duration {
	m := ttlPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return DefaultTTL
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return DefaultTTL
	}

	unit := time.Second
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if n > math.MaxInt64/int64(unit) {
		return DefaultTTL
	}
	return time.Duration(n) * unit
}
