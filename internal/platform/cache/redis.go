package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Connect dials Redis, checks it answers PING and returns a Cache that owns
// the client. Callers release it with Close.
func Connect(ctx context.Context, addr, namespace string, ttl time.Duration) (*Cache, error) {
	if addr == "" {
		return nil, fmt.Errorf("platform/cache: empty redis address")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", addr, err)
	}

	c := NewCache(client, namespace, ttl)
	c.owned = true
	return c, nil
}

// Close releases the Redis client when the cache created it.
func (c *Cache) Close() error {
	if c == nil || c.client == nil || !c.owned {
		return nil
	}
	return c.client.Close()
}
