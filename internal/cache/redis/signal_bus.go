package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

const (
	defaultStreamMaxLen int64 = 10000
	subscriberBuffer          = 128
	payloadField              = "payload"
)

// SignalBus implements domain.SignalBus: Pub/Sub for ticks and ledger events,
// a capped stream for the durable settlement log. Channel and stream names
// are namespaced by the client.
type SignalBus struct {
	c      *Client
	maxLen int64
}

// NewSignalBus creates a SignalBus. maxLen <= 0 uses the default stream cap.
func NewSignalBus(c *Client, maxLen int64) *SignalBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &SignalBus{c: c, maxLen: maxLen}
}

// Publish sends payload on channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, sb.c.key("ch", channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns payloads published on channel until ctx is cancelled,
// then closes the returned channel. Glob characters switch to PSUBSCRIBE.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	name := sb.c.key("ch", channel)
	var ps *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		ps = sb.c.rdb.PSubscribe(ctx, name)
	} else {
		ps = sb.c.rdb.Subscribe(ctx, name)
	}

	// Wait for the confirmation so no publish after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend adds payload to stream, trimming to roughly maxLen entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: sb.c.key(stream),
		MaxLen: sb.maxLen,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID without blocking; "0"
// reads from the start. An empty stream yields no entries and no error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	res, err := sb.c.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{sb.c.key(stream), lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var out []domain.StreamMessage
	for _, s := range res {
		for _, m := range s.Messages {
			if data, ok := streamPayload(m.Values[payloadField]); ok {
				out = append(out, domain.StreamMessage{ID: m.ID, Payload: data})
			}
		}
	}
	return out, nil
}

func streamPayload(v any) ([]byte, bool) {
	switch p := v.(type) {
	case string:
		return []byte(p), true
	case []byte:
		return p, true
	default:
		return nil, false
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
