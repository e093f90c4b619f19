// Package service drives the login flow and the credential lifecycle.
// Handlers and middleware talk to it; it talks to the provider, the
// attempt store, the user directory and the credential issuer.
package service

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"bff-service/internal/auth"
	"bff-service/internal/auth/credential"
	"bff-service/internal/auth/csrf"
	"bff-service/internal/auth/provider"
	"bff-service/internal/auth/resolver"
	"bff-service/internal/metrics"
)

// Phase is a step of one login attempt.
type Phase string

const (
	PhaseStarted          Phase = "started"
	PhaseAwaitingCallback Phase = "awaiting_callback"
	PhaseExchanged        Phase = "exchanged"
	PhaseIdentityResolved Phase = "identity_resolved"
	PhaseCredentialIssued Phase = "credential_issued"
	PhaseFailed           Phase = "failed"
)

// ProfileFallback decides what identity to use when the user directory is
// missing or fails. Returning nil fails the login.
type ProfileFallback func(profile *auth.ProviderProfile, now time.Time) *auth.Identity

// FallbackToProfile builds the identity from provider facts alone.
func FallbackToProfile(profile *auth.ProviderProfile, now time.Time) *auth.Identity {
	return auth.IdentityFromProfile(profile, now)
}

// FallbackDeny refuses logins the directory could not resolve.
func FallbackDeny(*auth.ProviderProfile, time.Time) *auth.Identity {
	return nil
}

// ParseFallback maps a configuration value onto a named policy.
func ParseFallback(name string) (ProfileFallback, error) {
	switch name {
	case "", "profile":
		return FallbackToProfile, nil
	case "deny":
		return FallbackDeny, nil
	default:
		return nil, fmt.Errorf("service: unknown profile fallback %q", name)
	}
}

type Config struct {
	Provider provider.ExchangeClient
	Attempts csrf.Store
	Issuer   credential.Issuer

	// Resolver is optional; without one every login uses Fallback.
	Resolver resolver.Resolver
	Fallback ProfileFallback

	// FrontendBaseURL is the post-login redirect target and the only
	// origin a caller-supplied return path may point to.
	FrontendBaseURL string

	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Service struct {
	provider provider.ExchangeClient
	attempts csrf.Store
	issuer   credential.Issuer
	resolver resolver.Resolver
	fallback ProfileFallback
	frontend *url.URL
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Provider == nil || cfg.Attempts == nil || cfg.Issuer == nil {
		return nil, errors.New("service: provider, attempt store and issuer are required")
	}

	frontend, err := url.Parse(cfg.FrontendBaseURL)
	if err != nil || frontend.Scheme == "" || frontend.Host == "" {
		return nil, fmt.Errorf("service: invalid frontend base url %q", cfg.FrontendBaseURL)
	}

	fallback := cfg.Fallback
	if fallback == nil {
		fallback = FallbackToProfile
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider: cfg.Provider,
		attempts: cfg.Attempts,
		issuer:   cfg.Issuer,
		resolver: cfg.Resolver,
		fallback: fallback,
		frontend: frontend,
		metrics:  cfg.Metrics,
		now:      now,
	}, nil
}

// Mode reports the active credential model.
func (s *Service) Mode() credential.Mode {
	return s.issuer.Mode()
}

// CredentialTTL is the lifetime of freshly issued credentials.
func (s *Service) CredentialTTL() time.Duration {
	return s.issuer.TTL()
}

// FrontendBaseURL returns the configured frontend origin.
func (s *Service) FrontendBaseURL() string {
	return s.frontend.String()
}
