package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"bff-service/internal/auth/credential"
	"bff-service/internal/auth/service"
	"bff-service/internal/middleware"
	"bff-service/internal/token"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`
	OAuthTimeout       time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`

	CredentialMode   string `env:"CREDENTIAL_MODE" envDefault:"token"`
	CredentialSecret string `env:"CREDENTIAL_SECRET"`
	// CredentialTTL accepts the 1h / 7d shorthand.
	CredentialTTL   string `env:"CREDENTIAL_TTL" envDefault:"7d"`
	ProfileFallback string `env:"PROFILE_FALLBACK" envDefault:"profile"`

	CookieName   string `env:"COOKIE_NAME" envDefault:"authToken"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	FrontendBaseURL string   `env:"FRONTEND_BASE_URL" envDefault:"http://localhost:3000"`
	CORSOrigins     []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	SessionStore         string        `env:"SESSION_STORE" envDefault:"memory"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	StoreFailurePolicy   string        `env:"STORE_FAILURE_POLICY" envDefault:"closed"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// DatabaseDSN is optional. Without it identities come straight from
	// the provider profile.
	DatabaseDSN string `env:"DATABASE_DSN"`

	LoginRateLimit int `env:"LOGIN_RATE_LIMIT" envDefault:"30"`
	LoginRateBurst int `env:"LOGIN_RATE_BURST" envDefault:"10"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the process environment and validates the result.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom is Load over an explicit environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required"))
	}
	if !absoluteURL(c.GoogleRedirectURL) {
		errs = append(errs, fmt.Errorf("GOOGLE_REDIRECT_URL %q is not an absolute url", c.GoogleRedirectURL))
	}
	if !absoluteURL(c.FrontendBaseURL) {
		errs = append(errs, fmt.Errorf("FRONTEND_BASE_URL %q is not an absolute url", c.FrontendBaseURL))
	}
	if c.OAuthTimeout <= 0 {
		errs = append(errs, errors.New("OAUTH_TIMEOUT must be positive"))
	}

	mode, err := credential.ParseMode(c.CredentialMode)
	if err != nil {
		errs = append(errs, err)
	}
	if mode == credential.ModeToken && c.CredentialSecret == "" {
		errs = append(errs, errors.New("CREDENTIAL_SECRET is required in token mode"))
	}

	if _, err := service.ParseFallback(c.ProfileFallback); err != nil {
		errs = append(errs, err)
	}
	if _, err := middleware.ParseFailurePolicy(c.StoreFailurePolicy); err != nil {
		errs = append(errs, err)
	}

	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE %q must be memory or redis", c.SessionStore))
	}

	if c.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	}
	if c.LoginRateLimit < 0 || c.LoginRateBurst < 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_BURST must not be negative"))
	}

	switch c.AppEnv {
	case EnvDevelopment, EnvProduction, "test":
	default:
		errs = append(errs, fmt.Errorf("APP_ENV %q is not recognised", c.AppEnv))
	}

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Mode is only meaningful on a validated config.
func (c Config) Mode() credential.Mode {
	mode, _ := credential.ParseMode(c.CredentialMode)
	return mode
}

// TTL falls back to the token default on malformed input.
func (c Config) TTL() time.Duration {
	return token.ParseTTL(c.CredentialTTL)
}

// NeedsRedis reports whether any component is configured against Redis.
func (c Config) NeedsRedis() bool {
	return c.SessionStore == SessionStoreRedis
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.Scheme != "" && u.Host != ""
}
