package provider

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"bff-service/internal/auth"
)

var (
	// ErrExchangeFailed is wrapped by every failed code exchange. The wrapped
	// detail may carry the provider's error code and is meant for logs only.
	ErrExchangeFailed = errors.New("provider: code exchange failed")

	// ErrProfileFetchFailed is wrapped by every failed profile lookup.
	ErrProfileFetchFailed = errors.New("provider: profile fetch failed")
)

// ExchangeClient defines the contract every external OAuth provider
// must implement. Implementations return identity facts only and
// must not perform user creation, linking, or credential management.
// Calls are bounded by a timeout and are never retried: authorization
// codes are single use.
type ExchangeClient interface {
	// Name returns the provider identifier.
	Name() auth.Provider

	// AuthorizationURL returns the OAuth authorization URL. It is
	// deterministic for a given state and PKCE verifier; an empty verifier
	// omits the PKCE challenge.
	AuthorizationURL(state string, verifier string) string

	// ExchangeCode trades the authorization code for provider tokens.
	ExchangeCode(ctx context.Context, code string, verifier string) (*oauth2.Token, error)

	// FetchProfile returns the profile the provider holds for token.
	FetchProfile(ctx context.Context, token *oauth2.Token) (*auth.ProviderProfile, error)
}
