package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bff-service/internal/buildinfo"
	"bff-service/internal/config"
	"bff-service/internal/metrics"
	"bff-service/internal/session"
)

type App struct {
	httpServer *http.Server
	infra      *Infra
	sweepers   []*session.Sweeper
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	m := metrics.New()
	info := buildinfo.Get()
	m.SetBuildInfo(info.Version, info.CommitHash)

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	w, err := setupHTTP(ctx, cfg, infra, m)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		infra:      infra,
		sweepers:   w.sweepers,
	}, nil
}

// Handler exposes the fully wrapped router.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts background sweeps and serves until Shutdown.
func (a *App) Run(ctx context.Context) error {
	for _, s := range a.sweepers {
		s.Start(ctx)
	}
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.httpServer.Shutdown(ctx)
	for _, s := range a.sweepers {
		s.Stop()
	}
	return errors.Join(err, a.infra.Close())
}
