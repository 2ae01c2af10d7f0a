package redismirror

import (
	"context"
	"testing"

	"proxysharing/pkg/seat"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) *SeatMirror {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &SeatMirror{redis: client}
}

func TestPublishThenListBySpec(t *testing.T) {
	m := newTestMirror(t)
	ctx := context.Background()

	s := &seat.Seat{ID: "s1", DelegateProxyID: "d1", SpecID: "spec1", Claimed: true, ClaimantProxyID: "p1"}
	require.NoError(t, m.Publish(ctx, s))

	got, err := m.ListBySpec(ctx, "spec1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].ID)
	require.True(t, got[0].Claimed)
	require.Equal(t, "p1", got[0].ClaimantProxyID)
}

func TestRemoveDropsSeatFromIndex(t *testing.T) {
	m := newTestMirror(t)
	ctx := context.Background()

	s := &seat.Seat{ID: "s2", DelegateProxyID: "d1", SpecID: "spec1"}
	require.NoError(t, m.Publish(ctx, s))
	require.NoError(t, m.Remove(ctx, "spec1", "s2"))

	got, err := m.ListBySpec(ctx, "spec1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestListBySpecWithNoSeatsReturnsEmpty(t *testing.T) {
	m := newTestMirror(t)
	got, err := m.ListBySpec(context.Background(), "unknown-spec")
	require.NoError(t, err)
	require.Empty(t, got)
}
