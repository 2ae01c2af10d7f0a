package pendingclaim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertThenSignalDeliversOutcome(t *testing.T) {
	table := NewTable(time.Minute)
	claim := table.Insert("p1")

	ok := table.Signal("p1", Completed)
	require.True(t, ok)
	require.Equal(t, Completed, claim.Wait(time.Second))
}

func TestWaitTimesOutWithoutSignal(t *testing.T) {
	table := NewTable(time.Minute)
	claim := table.Insert("p1")

	require.Equal(t, TimedOut, claim.Wait(10*time.Millisecond))
}

func TestSignalOnUnknownProxyIsNoop(t *testing.T) {
	table := NewTable(time.Minute)
	require.False(t, table.Signal("nope", Cancelled))
}

func TestSignalRemovesEntry(t *testing.T) {
	table := NewTable(time.Minute)
	table.Insert("p1")
	table.Signal("p1", Cancelled)

	require.Nil(t, table.GetIfPresent("p1"))
}

func TestInsertAfterExpiryDoesNotPanic(t *testing.T) {
	table := NewTable(5 * time.Millisecond)
	table.Insert("p1")
	time.Sleep(10 * time.Millisecond)

	require.NotPanics(t, func() { table.Insert("p1") })
}

func TestGetIfPresentLazilyEvictsExpired(t *testing.T) {
	table := NewTable(5 * time.Millisecond)
	table.Insert("p1")
	time.Sleep(10 * time.Millisecond)

	require.Nil(t, table.GetIfPresent("p1"))
	require.Equal(t, 0, table.Len())
}

func TestSweepExpiredRemovesOnlyExpiredEntries(t *testing.T) {
	table := NewTable(20 * time.Millisecond)
	table.Insert("stale")
	time.Sleep(25 * time.Millisecond)
	table.Insert("fresh")

	removed := table.SweepExpired()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, table.Len())
	require.NotNil(t, table.GetIfPresent("fresh"))
}

func TestProxyIDsListsLiveEntriesOnly(t *testing.T) {
	table := NewTable(5 * time.Millisecond)
	table.Insert("stale")
	time.Sleep(10 * time.Millisecond)
	table.Insert("fresh")

	ids := table.ProxyIDs()
	require.Equal(t, []string{"fresh"}, ids)
}

func TestSweepDoesNotSignalWaiters(t *testing.T) {
	table := NewTable(5 * time.Millisecond)
	claim := table.Insert("p1")
	time.Sleep(10 * time.Millisecond)

	table.SweepExpired()
	require.Equal(t, TimedOut, claim.Wait(10*time.Millisecond))
}
