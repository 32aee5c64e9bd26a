package service

import (
	"context"
	"time"
)

// ViewCache holds serialized read models keyed by view key.
// Misses are not errors: Get reports found=false.
type ViewCache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
