package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bff-service/internal/auth/credential"
	"bff-service/internal/auth/csrf"
	"bff-service/internal/auth/handler"
	"bff-service/internal/auth/provider/google"
	"bff-service/internal/auth/resolver"
	"bff-service/internal/auth/service"
	"bff-service/internal/config"
	"bff-service/internal/metrics"
	"bff-service/internal/middleware"
	"bff-service/internal/session"
	"bff-service/internal/system"
	"bff-service/internal/token"
)

// attemptSweepInterval is fixed; attempts live for csrf.TTL at most.
const attemptSweepInterval = time.Minute

type wiring struct {
	handler  http.Handler
	sweepers []*session.Sweeper
}

func setupHTTP(ctx context.Context, cfg config.Config, infra *Infra, m *metrics.Metrics) (*wiring, error) {
	w := &wiring{}

	// ----------------------------
	// Stores
	// ----------------------------

	var (
		sessions session.Store
		attempts csrf.Store
	)
	if infra.Redis != nil {
		sessions = session.NewRedisStore(infra.Redis.Client)
		attempts = csrf.NewRedisStore(infra.Redis.Client)
	} else {
		sessions = session.NewMemoryStore()
		memAttempts := csrf.NewMemoryStore()
		attempts = memAttempts
		w.sweepers = append(w.sweepers, session.NewSweeper(memAttempts, attemptSweepInterval, nil))
	}

	// ----------------------------
	// Credentials
	// ----------------------------

	var issuer credential.Issuer
	switch cfg.Mode() {
	case credential.ModeSession:
		issuer = credential.NewSessionIssuer(sessions, cfg.TTL())
		w.sweepers = append(w.sweepers, session.NewSweeper(sessions, cfg.SessionSweepInterval, m.SessionsSwept))
	default:
		codec, err := token.NewCodec(cfg.CredentialSecret, token.WithTTL(cfg.TTL()))
		if err != nil {
			return nil, err
		}
		issuer = credential.NewTokenIssuer(codec)
	}

	// ----------------------------
	// Login service
	// ----------------------------

	googleProvider, err := google.New(ctx, google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.OAuthTimeout,
	})
	if err != nil {
		return nil, err
	}

	var directory resolver.Resolver
	if infra.DB != nil {
		directory = resolver.NewDBResolver(infra.DB)
	}

	fallback, err := service.ParseFallback(cfg.ProfileFallback)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(service.Config{
		Provider:        googleProvider,
		Attempts:        attempts,
		Issuer:          issuer,
		Resolver:        directory,
		Fallback:        fallback,
		FrontendBaseURL: cfg.FrontendBaseURL,
		Metrics:         m,
	})
	if err != nil {
		return nil, err
	}

	policy, err := middleware.ParseFailurePolicy(cfg.StoreFailurePolicy)
	if err != nil {
		return nil, err
	}

	authMiddleware := middleware.NewAuthMiddleware(svc, middleware.AuthConfig{
		CookieName:    cfg.CookieName,
		FailurePolicy: policy,
		Metrics:       m,
	})

	var limiter *middleware.RateLimiter
	if cfg.LoginRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst)
	}

	authHandler := handler.NewHandler(svc, authMiddleware, limiter, handler.Config{
		CookieName:    cfg.CookieName,
		CookieDomain:  cfg.CookieDomain,
		SecureCookies: cfg.IsProduction(),
	})

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.Metrics(m),
		middleware.Recovery(!cfg.IsProduction()),
		middleware.CORS(cfg.CORSOrigins),
	)

	authHandler.RegisterRoutes(router)
	system.NewHandler(cfg.AppEnv, m, infra.checks()).RegisterRoutes(router)

	w.handler = middleware.CorrelationID(middleware.Logging(router))
	return w, nil
}
