package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"bff-service/internal/auth"
	"bff-service/internal/auth/credential"
	"bff-service/internal/logger"
	"bff-service/internal/metrics"
	"bff-service/internal/response"
)

const (
	AuthTokenHeader = "X-Auth-Token"
	bearerPrefix    = "Bearer "
)

// CredentialResolver maps a raw credential to its identity.
type CredentialResolver interface {
	CurrentUser(ctx context.Context, raw string) (*auth.Identity, error)
}

// FailurePolicy decides what happens when the credential store is down.
type FailurePolicy string

const (
	// FailClosed rejects the request with 503.
	FailClosed FailurePolicy = "closed"
	// FailOpen treats the request as carrying no credential.
	FailOpen FailurePolicy = "open"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailClosed:
		return FailClosed, nil
	case FailOpen:
		return FailOpen, nil
	default:
		return "", fmt.Errorf("middleware: unknown store failure policy %q", s)
	}
}

// Options configures one use of the middleware. Required wins over AllowGuest.
type Options struct {
	Required   bool
	AllowGuest bool
}

var (
	RequireCredential = Options{Required: true}
	OptionalGuest     = Options{AllowGuest: true}
)

type AuthConfig struct {
	CookieName    string
	FailurePolicy FailurePolicy
	Metrics       *metrics.Metrics
}

type AuthMiddleware struct {
	resolver   CredentialResolver
	cookieName string
	policy     FailurePolicy
	metrics    *metrics.Metrics
}

func NewAuthMiddleware(resolver CredentialResolver, cfg AuthConfig) *AuthMiddleware {
	if cfg.CookieName == "" {
		cfg.CookieName = credential.DefaultCookieName
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailClosed
	}
	return &AuthMiddleware{
		resolver:   resolver,
		cookieName: cfg.CookieName,
		policy:     cfg.FailurePolicy,
		metrics:    cfg.Metrics,
	}
}

// ExtractCredential returns the first credential found in the cookie, the
// Authorization bearer header or the X-Auth-Token header, in that order.
func ExtractCredential(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		if v := strings.TrimSpace(h[len(bearerPrefix):]); v != "" {
			return v
		}
	}

	return strings.TrimSpace(r.Header.Get(AuthTokenHeader))
}

// RequireAuth rejects requests without a valid credential.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return a.Handler(RequireCredential)(next)
}

// Handler returns the middleware for opts. On success the identity and the
// raw credential are attached to the request context; the credential itself
// is never modified.
func (a *AuthMiddleware) Handler(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Extract credential
			raw := ExtractCredential(r, a.cookieName)
			if raw == "" {
				a.metrics.CredentialCheck("missing")
				a.deny(w, r, next, opts, missing)
				return
			}

			// 2. Resolve
			identity, err := a.resolver.CurrentUser(r.Context(), raw)
			if err != nil {
				a.handleFailure(w, r, next, opts, err)
				return
			}

			// 3. Attach identity to context
			a.metrics.CredentialCheck("ok")
			ctx := auth.ContextWithIdentity(r.Context(), identity)
			ctx = auth.ContextWithCredential(ctx, raw)

			// 4. Continue request
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type denial int

const (
	missing denial = iota
	invalid
)

func (a *AuthMiddleware) handleFailure(w http.ResponseWriter, r *http.Request, next http.Handler, opts Options, err error) {
	ae := auth.AsError(err)

	switch ae.Kind {
	case auth.KindUnauthenticated:
		a.metrics.CredentialCheck("invalid")
		logger.Ctx(r.Context()).Debug().AnErr("cause", ae.Err).Msg("credential rejected")
		a.deny(w, r, next, opts, invalid)

	case auth.KindStoreUnavailable:
		a.metrics.CredentialCheck("store_unavailable")
		if a.policy == FailOpen {
			logger.Ctx(r.Context()).Warn().AnErr("cause", ae.Err).Msg("credential store unavailable, treating request as unauthenticated")
			a.deny(w, r, next, opts, missing)
			return
		}
		response.Error(w, r, ae)

	default:
		a.metrics.CredentialCheck("error")
		response.Error(w, r, ae)
	}
}

func (a *AuthMiddleware) deny(w http.ResponseWriter, r *http.Request, next http.Handler, opts Options, why denial) {
	switch {
	case opts.Required && why == missing:
		response.Error(w, r, auth.Unauthenticated(auth.CodeAuthRequired, "Authentication required", nil))
	case opts.Required:
		response.Error(w, r, auth.Unauthenticated(auth.CodeCredentialInvalid, "Invalid or expired token", nil))
	case opts.AllowGuest:
		next.ServeHTTP(w, r)
	case why == missing:
		response.Error(w, r, auth.Unauthenticated(auth.CodeCredentialMissing, "Token not found", nil))
	default:
		response.Error(w, r, auth.Unauthenticated(auth.CodeCredentialInvalid, "Invalid or expired token", nil))
	}
}
