// Package redis provides the shared go-redis client used by the view cache and the location store.
package redis

import (
	"context"
	"log/slog"

	"darshan/config"
	"darshan/internal/domain/constants"
	"darshan/internal/domain/lifecycle"
	"darshan/internal/errors"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New creates the redis client when a redis-backed component is configured, otherwise nil.
func New(params Params) (*goredis.Client, error) {
	if !Required(params.Config) {
		return nil, nil
	}

	cfg := params.Config.Redis
	if cfg == nil || cfg.Addr == "" {
		return nil, errors.New("redis.addr is required when cache or tracking uses redis")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping redis")
			}
			params.Logger.Info("Redis client connected", slog.String("addr", cfg.Addr))

			return nil
		},
		OnStop: func(context.Context) error {
			return errors.WithStack(client.Close())
		},
	})

	return client, nil
}

// Required reports whether any configured component is backed by redis.
func Required(cfg *config.Config) bool {
	return (cfg.Cache != nil && cfg.Cache.Provider == constants.CacheProviderRedis) ||
		(cfg.Tracking != nil && cfg.Tracking.Store == constants.TrackingStoreRedis)
}
