package resolver

import (
	"context"

	"bff-service/internal/auth"
)

// Resolver determines which application identity a provider profile
// belongs to, creating the user on first login.
// It is the ONLY place where profile-to-user mapping logic lives.
type Resolver interface {
	Resolve(ctx context.Context, profile *auth.ProviderProfile) (*auth.Identity, error)
}
