package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tixly-ticketing/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockTimeout = errors.New("timed out waiting for inventory lock")

// Only the owner token may delete the key.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a ticket type lock shared by every replica. Each lock is a
// SETNX key with a TTL so a crashed holder cannot wedge the type forever.
type Locker struct {
	Client        *redis.Client
	Logger        *logger.Logger
	TTL           time.Duration
	RetryInterval time.Duration
	WaitTimeout   time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *Locker {
	return &Locker{
		Client:        client,
		Logger:        log,
		TTL:           ttl,
		RetryInterval: 10 * time.Millisecond,
		WaitTimeout:   ttl,
	}
}

func lockKey(ticketTypeID string) string {
	return "inventory_lock:" + ticketTypeID
}

// TryLock makes one attempt and reports whether the lock was taken.
func (l *Locker) TryLock(ctx context.Context, ticketTypeID, token string) (bool, error) {
	return l.Client.SetNX(ctx, lockKey(ticketTypeID), token, l.TTL).Result()
}

// Unlock deletes the lock if token still owns it.
func (l *Locker) Unlock(ctx context.Context, ticketTypeID, token string) error {
	return unlockScript.Run(ctx, l.Client, []string{lockKey(ticketTypeID)}, token).Err()
}

// Lock blocks until the lock is taken, ctx is done or WaitTimeout passes.
func (l *Locker) Lock(ctx context.Context, ticketTypeID string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.WaitTimeout)

	for {
		ok, err := l.TryLock(ctx, ticketTypeID, token)
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", ticketTypeID, err)
		}
		if ok {
			return func() {
				if err := l.Unlock(context.Background(), ticketTypeID, token); err != nil {
					l.Logger.Error("REDIS", fmt.Sprintf("Failed to unlock %s: %v", ticketTypeID, err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.RetryInterval):
		}
	}
}
