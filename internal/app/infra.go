package app

import (
	"context"
	"errors"

	"bff-service/internal/config"
	"bff-service/internal/db"
	"bff-service/internal/logger"
	"bff-service/internal/redis"
	"bff-service/internal/system"
)

// Infra holds the optional external connections. Either field may be nil
// when the configuration does not call for it.
type Infra struct {
	DB    *db.DB
	Redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.DatabaseDSN != "" {
		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, database.DB); err != nil {
			_ = database.Close()
			return nil, err
		}
		infra.DB = database
		logger.Info("database ready", nil)
	}

	if cfg.NeedsRedis() {
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.Redis = client
		logger.Info("redis ready", map[string]any{
			"addr": cfg.RedisAddr,
			"db":   cfg.RedisDB,
		})
	}

	return infra, nil
}

// checks exposes each open connection to the health endpoint.
func (i *Infra) checks() map[string]system.Check {
	checks := map[string]system.Check{}
	if i.DB != nil {
		checks["database"] = i.DB.PingContext
	}
	if i.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return i.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (i *Infra) Close() error {
	var errs []error
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	return errors.Join(errs...)
}
