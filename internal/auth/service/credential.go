package service

import (
	"context"
	"errors"

	"bff-service/internal/auth"
	"bff-service/internal/auth/credential"
	"bff-service/internal/logger"
)

// Status is the outcome of a status check. It never carries an error.
type Status struct {
	Authenticated bool
	Identity      *auth.Identity
}

// CurrentUser resolves a raw credential to its identity.
func (s *Service) CurrentUser(ctx context.Context, raw string) (*auth.Identity, error) {
	if raw == "" {
		return nil, auth.Unauthenticated(auth.CodeCredentialMissing, "No authentication credential provided", nil)
	}
	identity, err := s.issuer.Resolve(ctx, raw)
	if err != nil {
		return nil, credentialErr(err)
	}
	return identity, nil
}

// Refresh exchanges a still-valid credential for a new one.
func (s *Service) Refresh(ctx context.Context, raw string) (*credential.Credential, *auth.Identity, error) {
	if raw == "" {
		return nil, nil, auth.Unauthenticated(auth.CodeCredentialMissing, "No authentication credential provided", nil)
	}
	cred, identity, err := s.issuer.Refresh(ctx, raw)
	if err != nil {
		return nil, nil, credentialErr(err)
	}

	logger.Info("credential refreshed", map[string]any{
		"user_id": identity.ID,
		"mode":    string(cred.Mode),
	})
	return cred, identity, nil
}

// Logout invalidates the credential server side where the model allows it.
// In token mode nothing is revoked and the result is false.
func (s *Service) Logout(ctx context.Context, raw string) (bool, error) {
	revoked, err := s.issuer.Revoke(ctx, raw)
	if err != nil {
		return false, credentialErr(err)
	}
	return revoked, nil
}

// LogoutEverywhere revokes every credential the identity holds.
func (s *Service) LogoutEverywhere(ctx context.Context, identity *auth.Identity) (bool, error) {
	if identity == nil {
		return false, auth.Unauthenticated(auth.CodeAuthRequired, "Authentication required", nil)
	}
	revoked, err := s.issuer.RevokeAll(ctx, identity.ID)
	if err != nil {
		return false, credentialErr(err)
	}
	return revoked, nil
}

// Status reports whether raw resolves. Store outages are logged and
// reported as unauthenticated.
func (s *Service) Status(ctx context.Context, raw string) Status {
	if raw == "" {
		return Status{}
	}
	identity, err := s.issuer.Resolve(ctx, raw)
	if err != nil {
		if errors.Is(err, credential.ErrUnavailable) {
			logger.Warn("status check could not reach credential store", map[string]any{
				"error": err.Error(),
			})
		}
		return Status{}
	}
	return Status{Authenticated: true, Identity: identity}
}

func credentialErr(err error) error {
	switch {
	case errors.Is(err, credential.ErrInvalid):
		return auth.Unauthenticated(auth.CodeCredentialInvalid, "Invalid or expired credential", err)
	case errors.Is(err, credential.ErrUnavailable):
		return auth.StoreUnavailable(err)
	default:
		return auth.Internal(err)
	}
}
