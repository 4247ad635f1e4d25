package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotReleased is returned when a lock expired or was taken over before release.
var ErrLockNotReleased = errors.New("lock was not held at release")

// Locker implements usecase.Locker with redsync. Locks are not retried: a
// record locked by another replica is skipped and picked up by a later sweep.
type Locker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	prefix string
}

// NewLocker creates a Locker whose locks expire after expiry.
func NewLocker(client *redis.Client, expiry time.Duration) *Locker {
	if expiry <= 0 {
		expiry = 2 * time.Minute
	}
	return &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		prefix: "chequer:lock:",
	}
}

// Acquire takes the lock named key and returns its release function.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	mutex := l.rs.NewMutex(
		l.prefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		if !ok {
			return ErrLockNotReleased
		}
		return nil
	}, nil
}
