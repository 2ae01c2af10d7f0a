// Package lock implements a Redis-backed mutual-exclusion lock used to
// guard the sweep job across replicas, so only one process runs a
// sweep pass at a time.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proxysharing/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	defaultLockTTL     = 30 * time.Second
	acquireTimeout     = 5 * time.Second
	renewInterval      = 10 * time.Second
	maxHoldDuration    = 2 * time.Minute
)

// DistributedLock is a mutual-exclusion lock held across replicas.
type DistributedLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	IsHeld() bool
}

// RedisLock implements DistributedLock with SETNX acquire and a
// Lua-script-guarded unlock/renew so a replica can never release or
// extend a lock it does not hold. A nil client degrades to
// single-instance mode: TryLock always succeeds locally, since there
// is no other replica to contend with.
type RedisLock struct {
	client    *redis.Client
	lockKey   string
	lockValue string
	ttl       time.Duration

	mu           sync.Mutex
	isHeld       bool
	acquiredAt   time.Time
	stopRenew    chan struct{}
	renewStopped bool
}

// NewRedisLock creates a lock over lockKey. client may be nil.
func NewRedisLock(client *redis.Client, lockKey string) *RedisLock {
	return &RedisLock{
		client:    client,
		lockKey:   lockKey,
		lockValue: fmt.Sprintf("%s-%d", lockKey, time.Now().UnixNano()),
		ttl:       defaultLockTTL,
		stopRenew: make(chan struct{}),
	}
}

// TryLock attempts to acquire the lock within a bounded timeout.
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		logger.Warn("redis client is nil, skipping distributed lock (single-instance mode)")
		l.mu.Lock()
		l.isHeld = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.lockKey, l.lockValue, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", l.lockKey, err)
	}

	if !acquired {
		logger.DebugCtx(ctx, "lock %s already held by another instance", l.lockKey)
		return false, nil
	}

	l.mu.Lock()
	l.isHeld = true
	l.acquiredAt = time.Now()
	l.stopRenew = make(chan struct{})
	l.renewStopped = false
	l.mu.Unlock()

	go l.renewLoop(ctx)

	logger.DebugCtx(ctx, "lock %s acquired", l.lockKey)
	return true, nil
}

// Unlock releases the lock, if held, and stops the renew loop.
func (l *RedisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.isHeld {
		l.mu.Unlock()
		return nil
	}
	if l.client == nil {
		l.isHeld = false
		l.mu.Unlock()
		return nil
	}
	if !l.renewStopped {
		l.renewStopped = true
		close(l.stopRenew)
	}
	l.mu.Unlock()

	result, err := l.client.Eval(ctx, releaseScript, []string{l.lockKey}, l.lockValue).Result()
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", l.lockKey, err)
	}

	l.mu.Lock()
	l.isHeld = false
	l.mu.Unlock()

	if n, _ := result.(int64); n == 1 {
		logger.DebugCtx(ctx, "lock %s released", l.lockKey)
	} else {
		logger.WarnCtx(ctx, "lock %s was already released or held by another instance", l.lockKey)
	}
	return nil
}

// IsHeld reports whether this instance currently believes it holds
// the lock. It does not re-check Redis.
func (l *RedisLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isHeld
}

func (l *RedisLock) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			holdDuration := time.Since(l.acquiredAt)
			l.mu.Unlock()

			if holdDuration > maxHoldDuration {
				logger.WarnCtx(ctx, "lock %s held for %.0fs, releasing", l.lockKey, holdDuration.Seconds())
				l.mu.Lock()
				l.isHeld = false
				l.mu.Unlock()
				return
			}

			result, err := l.client.Eval(ctx, renewScript,
				[]string{l.lockKey}, l.lockValue, int(l.ttl.Seconds())).Result()
			if err != nil {
				logger.WarnCtx(ctx, "lock %s renewal failed: %v", l.lockKey, err)
				l.mu.Lock()
				l.isHeld = false
				l.mu.Unlock()
				return
			}
			if n, _ := result.(int64); n == 0 {
				logger.WarnCtx(ctx, "lock %s renewal lost", l.lockKey)
				l.mu.Lock()
				l.isHeld = false
				l.mu.Unlock()
				return
			}
			logger.DebugCtx(ctx, "lock %s renewed", l.lockKey)
		}
	}
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("expire", KEYS[1], ARGV[2])
else
	return 0
end
`
