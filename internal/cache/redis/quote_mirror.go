package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// QuoteMirror implements domain.QuoteMirror as a single Redis hash keyed by
// asset id, each field holding the JSON-encoded quote.
type QuoteMirror struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewQuoteMirror creates a QuoteMirror. A positive ttl expires the whole hash
// if no sync refreshes it in time.
func NewQuoteMirror(c *Client, ttl time.Duration) *QuoteMirror {
	return &QuoteMirror{rdb: c.rdb, key: c.key("market", "quotes"), ttl: ttl}
}

// SaveAll writes every quote in one pipeline.
func (m *QuoteMirror) SaveAll(ctx context.Context, quotes []domain.LiveQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	fields := make(map[string]any, len(quotes))
	for _, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("redis: marshal quote %s: %w", q.AssetID, err)
		}
		fields[q.AssetID] = data
	}

	pipe := m.rdb.Pipeline()
	pipe.HSet(ctx, m.key, fields)
	if m.ttl > 0 {
		pipe.Expire(ctx, m.key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save quotes: %w", err)
	}
	return nil
}

// LoadAll returns every mirrored quote. Entries that fail to decode are
// skipped.
func (m *QuoteMirror) LoadAll(ctx context.Context) ([]domain.LiveQuote, error) {
	raw, err := m.rdb.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load quotes: %w", err)
	}

	out := make([]domain.LiveQuote, 0, len(raw))
	for _, v := range raw {
		var q domain.LiveQuote
		if err := json.Unmarshal([]byte(v), &q); err != nil {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.QuoteMirror = (*QuoteMirror)(nil)
