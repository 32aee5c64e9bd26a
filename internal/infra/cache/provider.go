package cache

import (
	"log/slog"

	"darshan/config"
	"darshan/internal/domain/constants"
	"darshan/internal/domain/service"
	"darshan/internal/errors"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params holds dependencies for the view cache, injected by Fx
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	Redis  *goredis.Client `optional:"true"`
}

// NewViewCache creates the view cache selected by cache.provider (memory by default).
func NewViewCache(params Params) (service.ViewCache, error) {
	cfg := params.Config.Cache

	switch cfg.Provider {
	case "", constants.CacheProviderMemory:
		params.Logger.Info("Using in-memory view cache",
			slog.Int("size", cfg.Size),
			slog.Duration("ttl", cfg.TTL),
		)

		return NewMemoryCache(cfg.Size, cfg.TTL), nil

	case constants.CacheProviderRedis:
		if params.Redis == nil {
			return nil, errors.New("redis client is required for redis cache provider")
		}
		params.Logger.Info("Using redis view cache", slog.String("prefix", cfg.KeyPrefix))

		return NewRedisCache(params.Redis, cfg.KeyPrefix), nil

	default:
		return nil, errors.Errorf("unknown cache provider: %s", cfg.Provider)
	}
}
