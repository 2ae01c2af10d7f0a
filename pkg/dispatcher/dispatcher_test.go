package dispatcher

import (
	"context"
	"testing"
	"time"

	"proxysharing/pkg/delegateproxy"
	"proxysharing/pkg/eventbus"
	"proxysharing/pkg/proxy"
	"proxysharing/pkg/proxyspec"
	"proxysharing/pkg/runtimevalue"
	"proxysharing/pkg/seat"

	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T, opts ...Option) (*Dispatcher, *seat.InMemoryStore, *delegateproxy.InMemoryStore, *proxy.InMemoryStore, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	seats := seat.NewInMemoryStore(bus)
	delegates := delegateproxy.NewInMemoryStore()
	proxies := proxy.NewInMemoryStore()
	spec := &proxyspec.Spec{ID: "spec1"}

	defaultOpts := []Option{WithWaitUnit(10 * time.Millisecond), WithMaxAttempts(20)}
	d := New(spec, seats, delegates, proxies, bus, append(defaultOpts, opts...)...)
	return d, seats, delegates, proxies, bus
}

func TestImmediateClaim(t *testing.T) {
	d, seats, delegates, _, _ := newHarness(t)
	delegates.Put(&delegateproxy.DelegateProxy{ID: "d1", Targets: []string{"http://t1"}, Ready: true})
	seats.AddSeat("s1", "d1", "spec1")
	seats.AddSeat("s2", "d1", "spec1")

	p := proxy.New("p1", "spec1", "u1").Build()
	out, err := d.StartProxy(context.Background(), p)

	require.NoError(t, err)
	require.Equal(t, "d1", out.TargetID)
	require.Contains(t, out.Targets, "http://t1")
	require.NotEqual(t, p.Container.ID, out.Container.ID)

	seatID, ok, err := proxy.GetTyped(out, runtimevalue.SeatId)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, []string{"s1", "s2"}, seatID)

	require.Equal(t, 1, seats.NumClaimedSeats())
	require.Equal(t, 1, seats.NumUnclaimedSeats())
}

func TestWaitThenWake(t *testing.T) {
	d, seats, delegates, proxies, bus := newHarness(t, WithWaitUnit(50*time.Millisecond), WithMaxAttempts(100))
	delegates.Put(&delegateproxy.DelegateProxy{ID: "d1", Targets: []string{"http://t1"}, Ready: true})

	p := proxy.New("p2", "spec1", "u1").WithStatus(proxy.StatusStarting).Build()
	proxies.Put(context.Background(), p)

	resultCh := make(chan *proxy.Proxy, 1)
	go func() {
		out, err := d.StartProxy(context.Background(), p)
		require.NoError(t, err)
		resultCh <- out
	}()

	time.Sleep(20 * time.Millisecond)
	seats.AddSeat("sX", "d1", "spec1")
	bus.Publish(eventbus.SeatAvailableEventType, eventbus.SeatAvailableEvent{SpecID: "spec1", IntendedProxyID: "p2"})

	select {
	case out := <-resultCh:
		seatID, _, _ := proxy.GetTyped(out, runtimevalue.SeatId)
		require.Equal(t, "sX", seatID)
	case <-time.After(2 * time.Second):
		t.Fatal("startProxy did not return after wake")
	}
}

func TestExternalStopCancelsWait(t *testing.T) {
	d, _, _, proxies, _ := newHarness(t, WithWaitUnit(20*time.Millisecond), WithMaxAttempts(200))

	p := proxy.New("p3", "spec1", "u1").WithStatus(proxy.StatusStarting).Build()
	proxies.Put(context.Background(), p)

	resultCh := make(chan *proxy.Proxy, 1)
	go func() {
		out, err := d.StartProxy(context.Background(), p)
		require.NoError(t, err)
		resultCh <- out
	}()

	time.Sleep(30 * time.Millisecond)
	stopped := proxy.NewBuilder(p).WithStatus(proxy.StatusStopping).Build()
	proxies.Put(context.Background(), stopped)
	d.StopProxy(context.Background(), p, "user requested")

	select {
	case out := <-resultCh:
		require.Equal(t, p.ID, out.ID)
		_, ok, _ := proxy.GetTyped(out, runtimevalue.SeatId)
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("startProxy did not return after stop")
	}
}

func TestMissedEventSelfHeals(t *testing.T) {
	d, seats, delegates, proxies, _ := newHarness(t, WithWaitUnit(20*time.Millisecond), WithMaxAttempts(50))
	delegates.Put(&delegateproxy.DelegateProxy{ID: "d1", Targets: []string{"http://t1"}, Ready: true})

	p := proxy.New("p4", "spec1", "u1").WithStatus(proxy.StatusStarting).Build()
	proxies.Put(context.Background(), p)

	resultCh := make(chan *proxy.Proxy, 1)
	go func() {
		out, err := d.StartProxy(context.Background(), p)
		require.NoError(t, err)
		resultCh <- out
	}()

	time.Sleep(10 * time.Millisecond)
	seats.AddSeat("sY", "d1", "spec1")
	// No event published: the seat only becomes visible via the next
	// per-attempt timeout re-claim.

	select {
	case out := <-resultCh:
		seatID, _, _ := proxy.GetTyped(out, runtimevalue.SeatId)
		require.Equal(t, "sY", seatID)
	case <-time.After(2 * time.Second):
		t.Fatal("startProxy did not self-heal after a missed event")
	}
}

func TestPublicPathRetargeting(t *testing.T) {
	d, seats, delegates, _, _ := newHarness(t)
	delegates.Put(&delegateproxy.DelegateProxy{ID: "d9", Targets: []string{"http://t9"}, Ready: true})
	seats.AddSeat("s1", "d9", "spec1")

	b := proxy.New("p5", "spec1", "u1")
	proxy.SetValue(b, runtimevalue.PublicPath, "/app/p5/")
	p := b.Build()

	out, err := d.StartProxy(context.Background(), p)
	require.NoError(t, err)

	path, ok, err := proxy.GetTyped(out, runtimevalue.PublicPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "/app/d9/", path)
}

func TestSeatLeakPreventionOnMissingDelegate(t *testing.T) {
	d, seats, _, _, _ := newHarness(t)
	seats.AddSeat("s1", "ghost-delegate", "spec1")

	before := seats.NumUnclaimedSeats()

	p := proxy.New("p6", "spec1", "u1").Build()
	_, err := d.StartProxy(context.Background(), p)

	require.ErrorIs(t, err, ErrProxyFailedToStart)
	require.Equal(t, before, seats.NumUnclaimedSeats())
	require.Equal(t, 0, seats.NumClaimedSeats())
}

func TestStartProxyFailsAfterAttemptBudgetExhausted(t *testing.T) {
	d, _, _, proxies, _ := newHarness(t, WithWaitUnit(5*time.Millisecond), WithMaxAttempts(4))

	p := proxy.New("p7", "spec1", "u1").WithStatus(proxy.StatusStarting).Build()
	proxies.Put(context.Background(), p)
	start := time.Now()
	_, err := d.StartProxy(context.Background(), p)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrProxyFailedToStart)
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestSeatAvailableEventWithMismatchedSpecIsIgnored(t *testing.T) {
	d, seats, delegates, proxies, bus := newHarness(t, WithWaitUnit(20*time.Millisecond), WithMaxAttempts(5))
	delegates.Put(&delegateproxy.DelegateProxy{ID: "d1", Targets: []string{"http://t1"}, Ready: true})

	p := proxy.New("p8", "spec1", "u1").WithStatus(proxy.StatusStarting).Build()
	proxies.Put(context.Background(), p)

	resultCh := make(chan error, 1)
	go func() {
		_, err := d.StartProxy(context.Background(), p)
		resultCh <- err
	}()

	time.Sleep(5 * time.Millisecond)
	bus.Publish(eventbus.SeatAvailableEventType, eventbus.SeatAvailableEvent{SpecID: "other-spec", IntendedProxyID: "p8"})
	seats.AddSeat("s1", "d1", "spec1")

	select {
	case err := <-resultCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("startProxy never returned")
	}
}

func TestSeatAvailableEventForUnknownWaiterIsNoop(t *testing.T) {
	d, _, _, _, bus := newHarness(t)
	require.NotPanics(t, func() {
		bus.Publish(eventbus.SeatAvailableEventType, eventbus.SeatAvailableEvent{SpecID: "spec1", IntendedProxyID: "nobody-waiting"})
	})
	_ = d
}

func TestStopProxyIsIdempotent(t *testing.T) {
	d, seats, delegates, _, _ := newHarness(t)
	delegates.Put(&delegateproxy.DelegateProxy{ID: "d1", Targets: []string{"http://t1"}, Ready: true})
	seats.AddSeat("s1", "d1", "spec1")

	p := proxy.New("p9", "spec1", "u1").Build()
	out, err := d.StartProxy(context.Background(), p)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		d.StopProxy(context.Background(), out, "shutdown")
		d.StopProxy(context.Background(), out, "shutdown")
	})
	require.Equal(t, 1, seats.NumUnclaimedSeats())
}

func TestPauseAndResumeAreUnsupported(t *testing.T) {
	d, _, _, _, _ := newHarness(t)
	require.ErrorIs(t, d.PauseProxy(context.Background(), nil), ErrUnsupported)
	require.ErrorIs(t, d.ResumeProxy(context.Background(), nil), ErrUnsupported)
	require.False(t, d.SupportsPause())
}
