package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// lockRetryInterval is how often a waiting contender re-attempts SetNX.
const lockRetryInterval = 20 * time.Millisecond

// Locker serializes the booking critical section per time slot. The capacity
// invariant itself is enforced by the conditional UPDATE inside the booking
// transaction; the lock only keeps concurrent duplicate-booking checks for the
// same slot from interleaving. Contenders queue up: an overlapping booking for
// the same slot is normal traffic, so acquisition blocks until the holder
// releases, and gives up with ErrLockNotAcquired only when the caller's
// context or the lock TTL window expires first.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("clinic:lock:slot:%s", slotID.String())
	token := uuid.NewString()

	acquireCtx, acquireCancel := context.WithTimeout(ctx, l.ttl)
	defer acquireCancel()

	for {
		ok, err := l.client.SetNX(acquireCtx, key, token, l.ttl).Result()
		if err != nil {
			if acquireCtx.Err() != nil {
				return fmt.Errorf("%w: slot %s", ErrLockNotAcquired, slotID)
			}
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-acquireCtx.Done():
			return fmt.Errorf("%w: slot %s", ErrLockNotAcquired, slotID)
		case <-time.After(lockRetryInterval):
		}
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
