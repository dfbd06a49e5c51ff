// Package redis connects the optional vesting status cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"covenant/internal/platform/config"
)

// Client is the cache connection. It embeds go-redis so callers use the
// usual command API.
type Client struct {
	*redis.Client
}

// New dials the cache described by cfg. An empty URL disables caching and
// yields a nil client with no error.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func options(cfg config.Redis) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("vesting cache url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	return opts, nil
}

// Health pings the cache. A failing cache only slows status reads.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("vesting cache ping: %w", err)
	}
	return nil
}
