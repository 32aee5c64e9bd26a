// Package cache contains the view cache implementations invalidated by the convergence protocol.
package cache

import (
	"context"
	"time"

	"darshan/internal/domain/service"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryCache is a per-process view cache. Each replica of the service holds its own copy.
type memoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache creates an LRU cache bounded by size whose entries live at most maxTTL.
func NewMemoryCache(size int, maxTTL time.Duration) service.ViewCache {
	return &memoryCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.lru.Remove(key)

		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores value; a ttl shorter than the cache-wide lifetime is honoured on read.
func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, entry)

	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.lru.Remove(key)
	}

	return nil
}
