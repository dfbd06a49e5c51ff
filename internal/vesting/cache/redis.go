// Package cache holds the Redis-backed vesting status cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"covenant/internal/vesting"
	id "covenant/pkg/domain"
)

const keyPrefix = "covenant:vesting:"

// RedisCache stores vesting statuses as JSON with a TTL. Every vesting write
// invalidates the entry, so the TTL only bounds staleness from writers that
// bypass the service.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, identityID id.IdentityID) (*vesting.Status, error) {
	data, err := c.client.Get(ctx, key(identityID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, vesting.ErrCacheMiss
		}
		return nil, fmt.Errorf("read vesting cache: %w", err)
	}
	var status vesting.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode vesting cache: %w", err)
	}
	return &status, nil
}

func (c *RedisCache) Set(ctx context.Context, status *vesting.Status) error {
	if status == nil {
		return fmt.Errorf("vesting status is required")
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode vesting cache: %w", err)
	}
	if err := c.client.Set(ctx, key(status.IdentityID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("write vesting cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, identityID id.IdentityID) error {
	if err := c.client.Del(ctx, key(identityID)).Err(); err != nil {
		return fmt.Errorf("invalidate vesting cache: %w", err)
	}
	return nil
}

func key(identityID id.IdentityID) string {
	return keyPrefix + identityID.String()
}

var _ vesting.StatusCache = (*RedisCache)(nil)
