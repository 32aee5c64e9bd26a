// Package persistence selects the storage backends shared by the postgres and redis repositories.
package persistence

import (
	"log/slog"

	"darshan/config"
	"darshan/internal/domain/constants"
	"darshan/internal/domain/repository"
	"darshan/internal/errors"
	"darshan/internal/infra/persistence/postgres"
	redisstore "darshan/internal/infra/persistence/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// LocationStoreParams holds the dependencies of the location sample store.
type LocationStoreParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *goredis.Client `optional:"true"`
}

// NewLocationSampleRepository returns the store selected by tracking.store (postgres by default).
func NewLocationSampleRepository(params LocationStoreParams) (repository.LocationSampleRepository, error) {
	cfg := params.Config.Tracking

	switch cfg.Store {
	case "", constants.TrackingStorePostgres:
		return postgres.NewLocationSampleRepository(params.DB), nil

	case constants.TrackingStoreRedis:
		if params.Redis == nil {
			return nil, errors.New("redis client is required for redis tracking store")
		}
		params.Logger.Info("Using redis location store", slog.Duration("sampleTTL", cfg.SampleTTL))

		return redisstore.NewLocationSampleRepository(params.Redis, cfg.SampleTTL), nil

	default:
		return nil, errors.Errorf("unknown tracking store: %s", cfg.Store)
	}
}
