// Package redis holds repositories backed by redis.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"darshan/internal/domain/entity"
	"darshan/internal/domain/repository"
	"darshan/internal/errors"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const locationKeyPrefix = "tracking:sample:"

// locationSampleRepository keeps the latest sample per booking as a JSON value with a TTL.
type locationSampleRepository struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewLocationSampleRepository creates the redis-backed sample store; samples expire after ttl.
func NewLocationSampleRepository(client *goredis.Client, ttl time.Duration) repository.LocationSampleRepository {
	return &locationSampleRepository{client: client, ttl: ttl}
}

func (repo *locationSampleRepository) SaveLatestSample(ctx context.Context, sample *entity.LocationSample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return errors.Wrap(err, "failed to encode location sample")
	}

	if err := repo.client.Set(ctx, locationKey(sample.BookingID), payload, repo.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to save location sample")
	}

	return nil
}

func (repo *locationSampleRepository) FindLatestSample(ctx context.Context, bookingID uuid.UUID) (*entity.LocationSample, error) {
	payload, err := repo.client.Get(ctx, locationKey(bookingID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repository.ErrLocationSampleNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find location sample")
	}

	var sample entity.LocationSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return nil, errors.Wrap(err, "failed to decode location sample")
	}

	return &sample, nil
}

func (repo *locationSampleRepository) DeleteSample(ctx context.Context, bookingID uuid.UUID) error {
	if err := repo.client.Del(ctx, locationKey(bookingID)).Err(); err != nil {
		return errors.Wrap(err, "failed to delete location sample")
	}

	return nil
}

func locationKey(bookingID uuid.UUID) string {
	return locationKeyPrefix + bookingID.String()
}
