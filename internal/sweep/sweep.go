// Package sweep implements the periodic background job that evicts
// TTL-expired pending claims across every registered dispatcher. It is
// defense-in-depth on top of each dispatcher's own lazy eviction —
// nothing in the wait loop depends on this job running promptly.
package sweep

import (
	"context"
	"time"

	"proxysharing/pkg/lock"
	"proxysharing/pkg/logger"
)

// Sweepable is the subset of a Dispatcher this job needs.
type Sweepable interface {
	SpecID() string
	SweepExpiredClaims() int
}

// Job periodically sweeps every registered dispatcher's pending claim
// table, guarded by a distributed lock so only one replica sweeps at
// a time.
type Job struct {
	dispatchers []Sweepable
	lock        lock.DistributedLock
	interval    time.Duration
}

// New builds a sweep Job. lock may be a *lock.RedisLock constructed
// with a nil client for single-instance deployments.
func New(dispatchers []Sweepable, l lock.DistributedLock, interval time.Duration) *Job {
	return &Job{dispatchers: dispatchers, lock: l, interval: interval}
}

func (j *Job) Name() string { return "pending-claim-sweep" }

func (j *Job) Interval() time.Duration { return j.interval }

// Run acquires the lock, sweeps every dispatcher, and releases it.
// Failing to acquire the lock is not an error: another replica is
// already sweeping this round.
func (j *Job) Run(ctx context.Context) error {
	acquired, err := j.lock.TryLock(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer j.lock.Unlock(ctx)

	for _, d := range j.dispatchers {
		removed := d.SweepExpiredClaims()
		if removed > 0 {
			logger.InfoCtx(ctx, "swept %d expired pending claims for spec %s", removed, d.SpecID())
		}
	}
	return nil
}
