package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"bff-service/internal/auth"
	"bff-service/internal/auth/credential"
	"bff-service/internal/auth/csrf"
	"bff-service/internal/auth/resolver"
	"bff-service/internal/logger"
)

type LoginRequest struct {
	// State is used verbatim when set; otherwise a random one is generated.
	State string
	// ReturnTo is an optional frontend path to land on after login.
	ReturnTo string
}

type LoginStart struct {
	AttemptID string
	State     string
	URL       string
}

// Callback carries the provider's redirect parameters plus the attempt id
// read from the attempt cookie.
type Callback struct {
	AttemptID        string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

type LoginResult struct {
	Identity    *auth.Identity
	Credential  *credential.Credential
	RedirectURL string
}

// StartLogin records a new attempt and returns the provider consent URL.
func (s *Service) StartLogin(ctx context.Context, req LoginRequest) (*LoginStart, error) {
	s.phase(ctx, PhaseStarted, "")

	returnTo, err := s.validateReturnTo(req.ReturnTo)
	if err != nil {
		return nil, s.fail(ctx, "", err)
	}

	state := req.State
	if state == "" {
		if state, err = csrf.NewState(); err != nil {
			return nil, s.fail(ctx, "", auth.Internal(err))
		}
	}

	attemptID, err := csrf.NewAttemptID()
	if err != nil {
		return nil, s.fail(ctx, "", auth.Internal(err))
	}

	verifier := oauth2.GenerateVerifier()

	err = s.attempts.Save(ctx, attemptID, csrf.Attempt{
		State:     state,
		Verifier:  verifier,
		ReturnTo:  returnTo,
		CreatedAt: s.now(),
	}, csrf.TTL)
	if err != nil {
		return nil, s.fail(ctx, attemptID, attemptStoreErr(err))
	}

	s.phase(ctx, PhaseAwaitingCallback, attemptID)

	return &LoginStart{
		AttemptID: attemptID,
		State:     state,
		URL:       s.provider.AuthorizationURL(state, verifier),
	}, nil
}

// CompleteLogin validates the callback and issues a credential. The
// attempt is consumed before anything else so it can never be replayed,
// whatever the outcome.
func (s *Service) CompleteLogin(ctx context.Context, cb Callback) (*LoginResult, error) {
	var attempt *csrf.Attempt
	if cb.AttemptID != "" {
		var err error
		attempt, err = s.attempts.Consume(ctx, cb.AttemptID)
		if err != nil {
			return nil, s.fail(ctx, cb.AttemptID, attemptStoreErr(err))
		}
	}

	if cb.Error != "" {
		logger.Ctx(ctx).Warn().
			Str("attempt", shortID(cb.AttemptID)).
			Str("provider_error", cb.Error).
			Str("provider_error_description", cb.ErrorDescription).
			Msg("provider returned an error on callback")
		return nil, s.fail(ctx, cb.AttemptID, auth.ClientInput(auth.CodeOAuthDenied, "Authorization was denied", nil))
	}

	if cb.Code == "" {
		return nil, s.fail(ctx, cb.AttemptID, auth.ClientInput(auth.CodeMissingCode, "Authorization code is required", nil))
	}

	if attempt == nil || cb.State == "" || attempt.State != cb.State {
		return nil, s.fail(ctx, cb.AttemptID, auth.ClientInput(auth.CodeInvalidState, "Invalid or expired login state", nil))
	}

	token, err := s.provider.ExchangeCode(ctx, cb.Code, attempt.Verifier)
	if err != nil {
		return nil, s.fail(ctx, cb.AttemptID, auth.Upstream(auth.CodeExchangeFailed, "Failed to exchange authorization code", err))
	}
	s.phase(ctx, PhaseExchanged, cb.AttemptID)

	profile, err := s.provider.FetchProfile(ctx, token)
	if err != nil {
		return nil, s.fail(ctx, cb.AttemptID, auth.Upstream(auth.CodeProfileFetchFailed, "Failed to fetch user information", err))
	}
	if profile.Provider == "" {
		profile.Provider = s.provider.Name()
	}

	identity, err := s.resolveIdentity(ctx, profile)
	if err != nil {
		return nil, s.fail(ctx, cb.AttemptID, err)
	}
	s.phase(ctx, PhaseIdentityResolved, cb.AttemptID)

	cred, err := s.issuer.Issue(ctx, *identity)
	if err != nil {
		return nil, s.fail(ctx, cb.AttemptID, credentialErr(err))
	}
	s.phase(ctx, PhaseCredentialIssued, cb.AttemptID)

	redirect := s.frontend.String()
	if attempt.ReturnTo != "" {
		redirect = attempt.ReturnTo
	}

	logger.Info("login succeeded", map[string]any{
		"user_id": identity.ID,
		"mode":    string(cred.Mode),
		"attempt": shortID(cb.AttemptID),
	})

	return &LoginResult{
		Identity:    identity,
		Credential:  cred,
		RedirectURL: redirect,
	}, nil
}

func (s *Service) resolveIdentity(ctx context.Context, profile *auth.ProviderProfile) (*auth.Identity, error) {
	if s.resolver != nil {
		identity, err := s.resolver.Resolve(ctx, profile)
		if err == nil && identity != nil {
			return identity, nil
		}
		if errors.Is(err, resolver.ErrUnverifiedEmail) {
			return nil, auth.Unauthenticated(auth.CodeEmailUnverified, "Email address is not verified", err)
		}
		logger.Warn("user directory could not resolve profile, applying fallback", map[string]any{
			"error":    errString(err),
			"provider": string(profile.Provider),
		})
	}

	identity := s.fallback(profile, s.now())
	if identity == nil {
		return nil, auth.Internal(errors.New("service: user directory unavailable and fallback denied login"))
	}
	return identity, nil
}

// validateReturnTo accepts a path on the frontend or an absolute URL on
// the frontend origin and returns it as an absolute URL.
func (s *Service) validateReturnTo(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	invalid := auth.ClientInput(auth.CodeInvalidRedirect, "Invalid redirect target", nil)

	if strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "", invalid
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", invalid
	}

	if !u.IsAbs() {
		if !strings.HasPrefix(u.Path, "/") || u.Host != "" {
			return "", invalid
		}
		return s.frontend.ResolveReference(u).String(), nil
	}

	if u.Scheme != s.frontend.Scheme || u.Host != s.frontend.Host {
		return "", invalid
	}
	return u.String(), nil
}

func (s *Service) phase(ctx context.Context, p Phase, attemptID string) {
	s.metrics.LoginPhase(string(p))
	logger.Ctx(ctx).Debug().
		Str("phase", string(p)).
		Str("attempt", shortID(attemptID)).
		Msg("login phase")
}

func (s *Service) fail(ctx context.Context, attemptID string, err error) error {
	ae := auth.AsError(err)
	s.metrics.LoginPhase(string(PhaseFailed))

	level := zerolog.WarnLevel
	if ae.Kind == auth.KindInternal || ae.Kind == auth.KindStoreUnavailable {
		level = zerolog.ErrorLevel
	}
	logger.Ctx(ctx).WithLevel(level).
		Str("phase", string(PhaseFailed)).
		Str("attempt", shortID(attemptID)).
		Str("code", ae.Code).
		AnErr("cause", ae.Err).
		Msg("login failed")

	return ae
}

func attemptStoreErr(err error) error {
	if errors.Is(err, csrf.ErrUnavailable) {
		return auth.StoreUnavailable(err)
	}
	return auth.Internal(err)
}

// shortID keeps log lines from carrying a full bearer value.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
