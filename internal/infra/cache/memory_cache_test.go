package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(16, time.Minute)

	require.NoError(t, c.Set(ctx, "booking:1", []byte(`{"status":"pending"}`), 0))
	require.NoError(t, c.Set(ctx, "booking:2", []byte(`{"status":"confirmed"}`), 0))

	value, found, err := c.Get(ctx, "booking:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"status":"pending"}`, string(value))

	require.NoError(t, c.Delete(ctx, "booking:1", "booking:2", "missing"))

	_, found, err = c.Get(ctx, "booking:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_HonoursShorterEntryTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(16, time.Hour).(*memoryCache)

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))

	_, found, _ := c.Get(ctx, "k")
	assert.True(t, found)

	now = now.Add(2 * time.Second)
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCache_EvictsBeyondSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, found, _ := c.Get(ctx, "a")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "c")
	assert.True(t, found)
}
