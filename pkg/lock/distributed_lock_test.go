package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestDistributedLockSingleInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLock(client, "test-lock")
	ctx := context.Background()

	acquired, err := l.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())

	err = l.Unlock(ctx)
	assert.NoError(t, err)
	assert.False(t, l.IsHeld())
}

func TestDistributedLockMultipleInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock1 := NewRedisLock(client, "test-lock-multi")
	lock2 := NewRedisLock(client, "test-lock-multi")
	ctx := context.Background()

	acquired1, err := lock1.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired1)

	acquired2, err := lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.False(t, acquired2, "second lock should not be acquired")

	err = lock1.Unlock(ctx)
	assert.NoError(t, err)

	acquired2, err = lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired2, "second lock should be acquired after first release")

	err = lock2.Unlock(ctx)
	assert.NoError(t, err)
}

func TestDistributedLockAutoExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock1 := NewRedisLock(client, "test-lock-expire")
	lock2 := NewRedisLock(client, "test-lock-expire")
	ctx := context.Background()

	acquired1, err := lock1.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired1)

	mr.FastForward(defaultLockTTL + time.Second)

	acquired2, err := lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired2, "lock should be available after TTL expiration")

	err = lock2.Unlock(ctx)
	assert.NoError(t, err)
}

func TestDistributedLockNilClient(t *testing.T) {
	l := NewRedisLock(nil, "test-lock-nil")
	ctx := context.Background()

	acquired, err := l.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())

	err = l.Unlock(ctx)
	assert.NoError(t, err)
	assert.False(t, l.IsHeld())
}

func TestDistributedLockPreventDoubleLock(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock1 := NewRedisLock(client, "test-lock-double")
	lock2 := NewRedisLock(client, "test-lock-double")
	ctx := context.Background()

	acquired1, err1 := lock1.TryLock(ctx)
	acquired2, err2 := lock2.TryLock(ctx)

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.True(t, acquired1 != acquired2, "exactly one lock should be acquired")

	if acquired1 {
		lock1.Unlock(ctx)
	}
	if acquired2 {
		lock2.Unlock(ctx)
	}
}
