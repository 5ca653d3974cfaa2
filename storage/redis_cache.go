package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const plansCacheKey = "newhome:plans:v1"

// RedisPlansCache keeps the rendered /api/plans payload in Redis so repeated
// reads between harvest cycles skip the database.
type RedisPlansCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPlansCache connects to addr and verifies the server answers.
func NewRedisPlansCache(ctx context.Context, addr string, ttl time.Duration) (*RedisPlansCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisPlansCache{client: client, ttl: ttl}, nil
}

func (c *RedisPlansCache) Get(ctx context.Context) ([]byte, bool) {
	data, err := c.client.Get(ctx, plansCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *RedisPlansCache) Set(ctx context.Context, payload []byte) error {
	return c.client.Set(ctx, plansCacheKey, payload, c.ttl).Err()
}

func (c *RedisPlansCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, plansCacheKey).Err()
}

// Close releases the Redis connection pool.
func (c *RedisPlansCache) Close() error {
	return c.client.Close()
}
