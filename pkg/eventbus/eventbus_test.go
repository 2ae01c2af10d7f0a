package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := New()
	var received []SeatAvailableEvent

	bus.Subscribe(SeatAvailableEventType, func(event interface{}) {
		received = append(received, event.(SeatAvailableEvent))
	})

	bus.Publish(SeatAvailableEventType, SeatAvailableEvent{SpecID: "spec1", IntendedProxyID: "p1"})

	require.Len(t, received, 1)
	require.Equal(t, "spec1", received[0].SpecID)
	require.Equal(t, "p1", received[0].IntendedProxyID)
}

func TestPublishIgnoresMismatchedEventType(t *testing.T) {
	bus := New()
	called := false

	bus.Subscribe(SeatClaimedEventType, func(event interface{}) {
		called = true
	})

	bus.Publish(SeatAvailableEventType, SeatAvailableEvent{SpecID: "spec1"})

	require.False(t, called)
}

func TestPublishToMultipleSubscribersInOrder(t *testing.T) {
	bus := New()
	var order []int

	bus.Subscribe(PendingProxyEventType, func(event interface{}) { order = append(order, 1) })
	bus.Subscribe(PendingProxyEventType, func(event interface{}) { order = append(order, 2) })

	bus.Publish(PendingProxyEventType, PendingProxyEvent{SpecID: "spec1", ProxyID: "p1"})

	require.Equal(t, []int{1, 2}, order)
}

func TestPublishRecoversFromPanickingHandler(t *testing.T) {
	bus := New()
	secondCalled := false

	bus.Subscribe(SeatClaimedEventType, func(event interface{}) {
		panic("boom")
	})
	bus.Subscribe(SeatClaimedEventType, func(event interface{}) {
		secondCalled = true
	})

	require.NotPanics(t, func() {
		bus.Publish(SeatClaimedEventType, SeatClaimedEvent{SpecID: "spec1", ProxyID: "p1"})
	})
	require.True(t, secondCalled)
}
