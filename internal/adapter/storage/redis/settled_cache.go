package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SettledCache implements ports.SettledCache using Redis.
// It is a fast-path duplicate filter for webhook deliveries; the
// transaction row in Postgres remains the authoritative record.
type SettledCache struct {
	client *goredis.Client
	prefix string
}

// NewSettledCache creates a new Redis-backed settled-reference cache.
func NewSettledCache(client *goredis.Client) *SettledCache {
	return &SettledCache{
		client: client,
		prefix: "settled:",
	}
}

// IsSettled reports whether a reference has recently been settled.
// A cache miss means "unknown", not "unsettled".
func (c *SettledCache) IsSettled(ctx context.Context, reference string) (bool, error) {
	err := c.client.Get(ctx, c.prefix+reference).Err()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis settled get: %w", err)
	}
	return true, nil
}

// MarkSettled records a reference as settled with TTL.
func (c *SettledCache) MarkSettled(ctx context.Context, reference string, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+reference, "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("redis settled set: %w", err)
	}
	return nil
}
