package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// releaseLua deletes the lock only while it still holds the caller's token,
// so an expired holder cannot free a lock someone else has since taken.
var releaseLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

const releaseTimeout = 5 * time.Second

// LockManager implements domain.LockManager with SET NX PX. The snapshot
// persister takes one per run so only one replica writes history rows.
type LockManager struct {
	c *Client
}

// NewLockManager creates a LockManager.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c}
}

// Acquire takes the lock for name for at most ttl. The returned release func
// is idempotent and runs on its own context. A held lock yields
// domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	k := lm.c.key("lock", name)
	token := uuid.NewString()

	ok, err := lm.c.rdb.SetNX(ctx, k, token, ttl).Result()
	switch {
	case err != nil:
		return nil, fmt.Errorf("redis: lock %s: %w", name, err)
	case !ok:
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = releaseLua.Run(rctx, lm.c.rdb, []string{k}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
