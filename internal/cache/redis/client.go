// Package redis implements the quote mirror, signal bus, distributed locks
// and rate limiting on top of go-redis/v9. Every key and channel lives under
// the client's namespace so several venues can share one server.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix   = "skintrend"
	defaultDialTimeout = 5 * time.Second
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// KeyPrefix namespaces keys and channels; empty means "skintrend".
	KeyPrefix   string
	DialTimeout time.Duration
}

// Client is a connected go-redis client plus its key namespace.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New connects and pings the server.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	prefix := strings.Trim(cfg.KeyPrefix, ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	c := &Client{rdb: redis.NewClient(opts), prefix: prefix}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", c.rdb.Options().Addr, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// key joins parts under the client namespace: key("lock", "x") is
// "skintrend:lock:x".
func (c *Client) key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}
