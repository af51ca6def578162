package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowSrc string

var slidingWindow = redis.NewScript(slidingWindowSrc)

// RateLimiter implements domain.RateLimiter as a sliding window over a sorted
// set per key. The trading API keys it by user id.
type RateLimiter struct {
	c      *Client
	prefix string
}

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c, prefix: c.key("ratelimit")}
}

func (rl *RateLimiter) windowKey(key string) string {
	return rl.prefix + ":" + key
}

// Allow counts a request for key and reports whether it fits within limit
// requests per window. Rejected requests are not counted.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := slidingWindow.Run(ctx, rl.c.rdb,
		[]string{rl.windowKey(key)},
		time.Now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	switch {
	case err != nil:
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	case len(res) != 2:
		return false, fmt.Errorf("redis: rate limit %s: unexpected reply %v", key, res)
	}
	return res[0] == 1, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
