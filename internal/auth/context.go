package auth

import "context"

// unexported, collision-proof context keys
type identityContextKey struct{}
type credentialContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}

// ContextWithCredential stores the raw credential the request was authenticated with.
func ContextWithCredential(ctx context.Context, raw string) context.Context {
	if raw == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialContextKey{}, raw)
}

// CredentialFromContext returns the raw credential if one was attached.
func CredentialFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(credentialContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
