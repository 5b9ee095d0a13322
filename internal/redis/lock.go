package redisclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("booking lock not acquired")
	// ErrLockUnavailable means Redis could not be asked for the lock at all.
	ErrLockUnavailable = errors.New("booking lock unavailable")
)

// Locker serializes booking attempts for one doctor on one calendar day.
// A caller that finds the lock held waits for it, so attempts on different
// slots of the same day queue up instead of failing. ErrLockNotAcquired is
// returned only when the wait runs out. The storage uniqueness constraint is
// still the source of truth; the lock only keeps concurrent attempts from
// racing to the insert.
type Locker interface {
	WithDoctorDayLock(ctx context.Context, doctorID uuid.UUID, day string, fn func(ctx context.Context) error) error
}

const (
	minRetry = 10 * time.Millisecond
	maxRetry = 100 * time.Millisecond
)

type redisDayLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisDayLocker creates a locker that uses a per doctor-day Redis key.
// A contended lock is polled for up to ttl, the longest a holder can keep it.
func NewRedisDayLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisDayLocker{
		client: client,
		ttl:    ttl,
		wait:   ttl,
	}
}

func lockKey(doctorID uuid.UUID, day string) string {
	return fmt.Sprintf("lock:booking:%s:%s", doctorID, day)
}

func (l *redisDayLocker) WithDoctorDayLock(ctx context.Context, doctorID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	key := lockKey(doctorID, day)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// acquire polls SET NX with jittered backoff until the key is ours or the
// wait (bounded by ctx) runs out.
func (l *redisDayLocker) acquire(ctx context.Context, key, token string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	backoff := minRetry
	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				// the SET may have landed before the deadline cut the reply
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				_ = l.release(releaseCtx, key, token)
				cancel()
				return ErrLockNotAcquired
			}
			return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(backoff + rand.N(backoff))
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return ErrLockNotAcquired
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRetry)
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}
