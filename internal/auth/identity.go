package auth

import "time"

// Provider is the closed set of external identity providers.
type Provider string

const (
	ProviderGoogle Provider = "google"
)

// ProviderProfile represents a normalized external authentication profile
// returned by an OAuth provider. It contains facts only, no decisions.
type ProviderProfile struct {
	Provider      Provider // e.g. "google"
	Subject       string   // provider-scoped unique user identifier (sub)
	Email         string   // email returned by provider
	EmailVerified bool     // whether provider asserts email ownership
	Name          string
	Picture       string
}

// Identity is the application-level user a credential resolves to.
// It is minted once per login and never mutated afterwards.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"name"`
	PictureURL  string    `json:"picture,omitempty"`
	Provider    Provider  `json:"provider"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IdentityFromProfile builds a local identity purely from provider facts.
// It is the fallback when the user directory cannot resolve the profile.
func IdentityFromProfile(p *ProviderProfile, now time.Time) *Identity {
	return &Identity{
		ID:          p.Subject,
		Email:       p.Email,
		DisplayName: p.Name,
		PictureURL:  p.Picture,
		Provider:    p.Provider,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
