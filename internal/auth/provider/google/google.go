package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"bff-service/internal/auth"
	"bff-service/internal/auth/provider"
	"bff-service/internal/logger"
)

const DefaultTimeout = 10 * time.Second

// Endpoints are Google's OAuth and OIDC URLs. They are configured
// statically so startup does not depend on a discovery round trip.
type Endpoints struct {
	Issuer   string
	AuthURL  string
	TokenURL string
	UserInfo string
	JWKS     string
}

// GoogleEndpoints are the production endpoints.
var GoogleEndpoints = Endpoints{
	Issuer:   "https://accounts.google.com",
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
	UserInfo: "https://openidconnect.googleapis.com/v1/userinfo",
	JWKS:     "https://www.googleapis.com/oauth2/v3/certs",
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Timeout bounds each outbound call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Endpoints overrides GoogleEndpoints when non-zero.
	Endpoints Endpoints

	// HTTPClient is used for outbound calls. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

type Client struct {
	oauthConfig *oauth2.Config
	oidc        *oidc.Provider
	httpClient  *http.Client
	timeout     time.Duration
}

var _ provider.ExchangeClient = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	endpoints := cfg.Endpoints
	if endpoints == (Endpoints{}) {
		endpoints = GoogleEndpoints
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	oidcProvider := (&oidc.ProviderConfig{
		IssuerURL:   endpoints.Issuer,
		AuthURL:     endpoints.AuthURL,
		TokenURL:    endpoints.TokenURL,
		UserInfoURL: endpoints.UserInfo,
		JWKSURL:     endpoints.JWKS,
	}).NewProvider(oidc.ClientContext(ctx, httpClient))

	endpoint := oidcProvider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoint,
		Scopes: []string{
			oidc.ScopeOpenID,
			"email",
			"profile",
		},
	}

	return &Client{
		oauthConfig: oauthCfg,
		oidc:        oidcProvider,
		httpClient:  httpClient,
		timeout:     timeout,
	}, nil
}

func (c *Client) Name() auth.Provider {
	return auth.ProviderGoogle
}

// AuthorizationURL builds the consent URL. Offline access and a forced
// consent prompt make Google return a refresh token on every login.
func (c *Client) AuthorizationURL(state string, verifier string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return c.oauthConfig.AuthCodeURL(state, opts...)
}

func (c *Client) ExchangeCode(ctx context.Context, code string, verifier string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := c.oauthConfig.Exchange(ctx, code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: google returned %s: %s (status %d)",
				provider.ErrExchangeFailed, re.ErrorCode, re.ErrorDescription, statusOf(re))
		}
		return nil, fmt.Errorf("%w: %w", provider.ErrExchangeFailed, err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: google returned no access token", provider.ErrExchangeFailed)
	}

	return token, nil
}

func (c *Client) FetchProfile(ctx context.Context, token *oauth2.Token) (*auth.ProviderProfile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", provider.ErrProfileFetchFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = oidc.ClientContext(ctx, c.httpClient)

	info, err := c.oidc.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrProfileFetchFailed, err)
	}

	var claims struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: userinfo claims parse failed: %w", provider.ErrProfileFetchFailed, err)
	}

	if info.Subject == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: userinfo missing required claims", provider.ErrProfileFetchFailed)
	}

	logger.Debug("google profile fetched", map[string]any{
		"subject_present": info.Subject != "",
		"email_verified":  info.EmailVerified,
		"name_present":    claims.Name != "",
	})

	return &auth.ProviderProfile{
		Provider:      auth.ProviderGoogle,
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func statusOf(re *oauth2.RetrieveError) int {
	if re.Response == nil {
		return 0
	}
	return re.Response.StatusCode
}
