package sweep

import (
	"context"
	"testing"
	"time"

	"proxysharing/pkg/lock"

	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	specID  string
	removed int
	calls   int
}

func (f *fakeDispatcher) SpecID() string { return f.specID }

func (f *fakeDispatcher) SweepExpiredClaims() int {
	f.calls++
	return f.removed
}

func TestRunSweepsEveryDispatcher(t *testing.T) {
	d1 := &fakeDispatcher{specID: "s1", removed: 2}
	d2 := &fakeDispatcher{specID: "s2", removed: 0}

	job := New([]Sweepable{d1, d2}, lock.NewRedisLock(nil, "sweep-test"), time.Minute)
	err := job.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 1, d1.calls)
	require.Equal(t, 1, d2.calls)
}

func TestRunSkipsWhenLockNotAcquired(t *testing.T) {
	heldLock := lock.NewRedisLock(nil, "sweep-test-2")
	_, err := heldLock.TryLock(context.Background())
	require.NoError(t, err)

	d1 := &fakeDispatcher{specID: "s1"}
	job := New([]Sweepable{d1}, &alwaysBusyLock{}, time.Minute)

	err = job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, d1.calls)
}

// alwaysBusyLock simulates another replica already holding the lock.
type alwaysBusyLock struct{}

func (alwaysBusyLock) TryLock(context.Context) (bool, error) { return false, nil }
func (alwaysBusyLock) Unlock(context.Context) error           { return nil }
func (alwaysBusyLock) IsHeld() bool                            { return false }
