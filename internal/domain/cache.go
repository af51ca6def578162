package domain

import (
	"context"
	"time"
)

// QuoteMirror keeps a copy of the live market outside the process so a
// restarted instance can quote before the first reference sync completes.
type QuoteMirror interface {
	SaveAll(ctx context.Context, quotes []LiveQuote) error
	LoadAll(ctx context.Context) ([]LiveQuote, error)
}

// RateLimiter admits at most limit requests per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out a lease held until unlock is called or ttl passes.
// A lease someone else holds yields ErrLockHeld.
type LockManager interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is one entry of a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus carries venue events. Channels are fire-and-forget fan-out;
// streams keep a capped history that can be re-read from any id.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
