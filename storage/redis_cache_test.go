package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisPlansCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisPlansCache(context.Background(), mr.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisPlansCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	_, ok := c.Get(ctx)
	assert.False(t, ok, "empty cache is a miss")

	payload := []byte(`[{"plan_name":"Burnet","price":425000}]`)
	require.NoError(t, c.Set(ctx, payload))
	got, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, 30*time.Second, mr.TTL(plansCacheKey))

	require.NoError(t, c.Invalidate(ctx))
	_, ok = c.Get(ctx)
	assert.False(t, ok)
	assert.False(t, mr.Exists(plansCacheKey))
}

func TestRedisPlansCacheExpires(t *testing.T) {
	c, mr := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, []byte(`[]`)))
	assert.Equal(t, time.Minute, mr.TTL(plansCacheKey), "zero TTL falls back to one minute")

	mr.FastForward(61 * time.Second)
	_, ok := c.Get(ctx)
	assert.False(t, ok)
}

func TestNewRedisPlansCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisPlansCache(ctx, addr, time.Minute)
	assert.Error(t, err)
}
