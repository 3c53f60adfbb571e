package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"tixly-ticketing/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis starts an in-memory Redis server and a client for it.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestLock_ExclusiveUntilUnlocked(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewLocker(client, 5*time.Second, logger.Discard())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ga")
	require.NoError(t, err)
	assert.True(t, mr.Exists("inventory_lock:ga"))

	ok, err := locker.TryLock(ctx, "ga", "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	assert.False(t, mr.Exists("inventory_lock:ga"))

	ok, err = locker.TryLock(ctx, "ga", "someone-else")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlock_OnlyOwnerDeletes(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewLocker(client, 5*time.Second, logger.Discard())
	ctx := context.Background()

	ok, err := locker.TryLock(ctx, "ga", "owner")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Unlock(ctx, "ga", "intruder"))
	assert.True(t, mr.Exists("inventory_lock:ga"))

	require.NoError(t, locker.Unlock(ctx, "ga", "owner"))
	assert.False(t, mr.Exists("inventory_lock:ga"))
}

func TestLock_TimesOutWhileHeld(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewLocker(client, 5*time.Second, logger.Discard())
	locker.WaitTimeout = 50 * time.Millisecond
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ga")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(ctx, "ga")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestLock_ExpiredLockCanBeRetaken(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewLocker(client, time.Second, logger.Discard())
	ctx := context.Background()

	ok, err := locker.TryLock(ctx, "ga", "crashed-holder")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(ctx, "ga")
	require.NoError(t, err)
	unlock()
}

func TestLock_ConcurrentCallersSerialize(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewLocker(client, 5*time.Second, logger.Discard())
	locker.RetryInterval = time.Millisecond
	ctx := context.Background()

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "ga")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			counter++
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, counter)
}
