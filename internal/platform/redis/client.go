package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"hmdamart/internal/platform/config"
)

// Client is the connection used by the distributed run lock.
type Client struct {
	*redis.Client
}

// Options turns cfg into go-redis options. The lock renews its lease every
// third of LockTTL, so a command timeout of that length or more could let
// the lease lapse while a renewal is still in flight.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.LockTTL > 0 {
		renew := cfg.LockTTL / 3
		if opts.ReadTimeout >= renew || opts.WriteTimeout >= renew {
			return nil, fmt.Errorf("redis read/write timeouts (%s/%s) must be below a third of lock_ttl %s",
				opts.ReadTimeout, opts.WriteTimeout, cfg.LockTTL)
		}
	}
	return opts, nil
}

// New connects and pings. It returns nil, nil when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
