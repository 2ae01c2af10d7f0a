// Package dispatcher implements the per-spec scheduler that admits a
// proxy, claims or waits for a seat, retargets the proxy onto the
// claimed delegate workload, and releases seats on stop.
package dispatcher

import (
	"context"
	"time"

	"proxysharing/pkg/delegateproxy"
	"proxysharing/pkg/eventbus"
	"proxysharing/pkg/logger"
	"proxysharing/pkg/metrics"
	"proxysharing/pkg/pendingclaim"
	"proxysharing/pkg/proxy"
	"proxysharing/pkg/proxyspec"
	"proxysharing/pkg/runtimevalue"
	"proxysharing/pkg/seat"

	"github.com/google/uuid"
)

const (
	// DefaultWaitUnit is the per-attempt wait on a pending claim.
	DefaultWaitUnit = 3 * time.Second
	// DefaultMaxAttempts bounds the total wait to DefaultMaxAttempts *
	// DefaultWaitUnit (30 minutes at the defaults).
	DefaultMaxAttempts = 600
	// DefaultPendingTTL is the write-TTL on a proxy's pending claim
	// entry, independent of the attempt budget above.
	DefaultPendingTTL = 10 * time.Minute
)

// Dispatcher is the scheduling component for one ProxySpec.
type Dispatcher struct {
	spec *proxyspec.Spec

	seats     seat.Store
	delegates delegateproxy.Store
	proxies   proxy.Store
	bus       *eventbus.Bus
	metrics   metrics.Sink

	pending *pendingclaim.Table

	waitUnit    time.Duration
	maxAttempts int
}

// Option customizes a Dispatcher at construction. Tests use these to
// shrink WaitUnit/MaxAttempts/PendingTTL so wait-loop scenarios run in
// milliseconds instead of minutes.
type Option func(*Dispatcher)

func WithWaitUnit(d time.Duration) Option    { return func(dp *Dispatcher) { dp.waitUnit = d } }
func WithMaxAttempts(n int) Option           { return func(dp *Dispatcher) { dp.maxAttempts = n } }
func WithMetrics(m metrics.Sink) Option      { return func(dp *Dispatcher) { dp.metrics = m } }
func WithPendingTTL(ttl time.Duration) Option {
	return func(dp *Dispatcher) { dp.pending = pendingclaim.NewTable(ttl) }
}

// New builds a Dispatcher for spec, wired to its collaborators, and
// subscribes it to SeatAvailableEvent on the bus.
func New(
	spec *proxyspec.Spec,
	seats seat.Store,
	delegates delegateproxy.Store,
	proxies proxy.Store,
	bus *eventbus.Bus,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		spec:        spec,
		seats:       seats,
		delegates:   delegates,
		proxies:     proxies,
		bus:         bus,
		metrics:     metrics.NoopSink{},
		pending:     pendingclaim.NewTable(DefaultPendingTTL),
		waitUnit:    DefaultWaitUnit,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	if bus != nil {
		bus.Subscribe(eventbus.SeatAvailableEventType, func(event interface{}) {
			if evt, ok := event.(eventbus.SeatAvailableEvent); ok {
				d.onSeatAvailableEvent(evt)
			}
		})
	}
	return d
}

// publish is a nil-safe wrapper: a Dispatcher built without a bus
// (tests exercising only the claim/wait logic) still runs correctly,
// it just emits no observability events.
func (d *Dispatcher) publish(eventType eventbus.EventType, event interface{}) {
	if d.bus != nil {
		d.bus.Publish(eventType, event)
	}
}

// StartProxy admits p: it claims a free seat immediately if one
// exists, or registers a pending claim and waits, retrying on every
// wake and every per-attempt timeout, until a seat is claimed, the
// proxy is cancelled, or the attempt budget is exhausted.
func (d *Dispatcher) StartProxy(ctx context.Context, p *proxy.Proxy) (*proxy.Proxy, error) {
	startTime := time.Now()

	claimedSeat, ok := d.seats.ClaimSeat(ctx, p.ID)
	if !ok {
		claimedSeat, ok = d.waitForSeat(ctx, p)
		if !ok {
			return nil, ErrProxyFailedToStart
		}
		if claimedSeat == nil {
			// Cancelled while waiting: return the input proxy unchanged.
			return p, nil
		}
	}

	d.publish(eventbus.SeatClaimedEventType, eventbus.SeatClaimedEvent{SpecID: d.spec.ID, ProxyID: p.ID})
	d.metrics.ObserveSeatWait(d.spec.ID, time.Since(startTime))

	delegate, err := d.delegates.GetDelegateProxy(ctx, claimedSeat.DelegateProxyID)
	if err != nil {
		d.seats.ReleaseSeat(ctx, claimedSeat.ID)
		logger.WarnCtx(ctx, "dispatcher: delegate %s missing after seat claim for proxy %s: %v",
			claimedSeat.DelegateProxyID, p.ID, err)
		return nil, ErrProxyFailedToStart
	}

	return d.retarget(p, claimedSeat, delegate), nil
}

// waitForSeat runs the bounded claim-or-wait loop. It returns
// (seat, true) on success, (nil, true) if the proxy was cancelled
// while waiting (the caller must return the input proxy unchanged),
// or (nil, false) if the attempt budget was exhausted.
func (d *Dispatcher) waitForSeat(ctx context.Context, p *proxy.Proxy) (*seat.Seat, bool) {
	claim := d.pending.Insert(p.ID)
	defer d.pending.Invalidate(p.ID)

	d.publish(eventbus.PendingProxyEventType, eventbus.PendingProxyEvent{SpecID: d.spec.ID, ProxyID: p.ID})

	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		outcome := claim.Wait(d.waitUnit)
		if outcome == pendingclaim.Cancelled {
			return nil, true
		}
		// Completed or TimedOut both fall through to a re-check and a
		// re-attempt: a wake is a hint, not a guarantee, and a timeout is
		// defense against a missed event.

		if current, ok := d.proxies.GetProxy(ctx, p.ID); !ok || current.Status.IsStoppingOrStopped() {
			return nil, true
		}

		if s, ok := d.seats.ClaimSeat(ctx, p.ID); ok {
			return s, true
		}
	}
	return nil, false
}

// retarget produces the new Proxy snapshot per the claimed seat and
// delegate: fresh container id, TargetId/SeatId runtime values, and a
// PublicPath rewritten from the proxy's own id to the delegate's id.
func (d *Dispatcher) retarget(p *proxy.Proxy, s *seat.Seat, delegate *delegateproxy.DelegateProxy) *proxy.Proxy {
	b := proxy.NewBuilder(p).
		WithTargetID(delegate.ID).
		AppendTargets(delegate.Targets...).
		WithContainerID(uuid.NewString())

	if _, ok := p.Get(runtimevalue.PublicPath); ok {
		proxy.ReplaceInValue(b, runtimevalue.PublicPath, p.ID, delegate.ID)
	}
	proxy.SetValue(b, runtimevalue.TargetId, delegate.ID)
	proxy.SetValue(b, runtimevalue.SeatId, s.ID)

	return b.Build()
}

// StopProxy releases whatever seat p holds and cancels any pending
// claim still waiting on p's behalf. Both actions are idempotent, so
// repeated calls for the same proxy are harmless.
func (d *Dispatcher) StopProxy(ctx context.Context, p *proxy.Proxy, reason string) {
	if seatID, ok := p.Get(runtimevalue.SeatId); ok && seatID != "" {
		d.seats.ReleaseSeat(ctx, seatID)
		d.publish(eventbus.SeatReleasedEventType, eventbus.SeatReleasedEvent{
			SpecID:  d.spec.ID,
			SeatID:  seatID,
			ProxyID: p.ID,
			Reason:  reason,
		})
	}
	d.pending.Signal(p.ID, pendingclaim.Cancelled)
}

// onSeatAvailableEvent wakes the targeted waiter, if any. A broadcast
// event with no intended proxy is a no-op here: untargeted waiters
// self-heal on their next per-attempt timeout instead.
func (d *Dispatcher) onSeatAvailableEvent(evt eventbus.SeatAvailableEvent) {
	if evt.SpecID != d.spec.ID {
		return
	}
	if evt.IntendedProxyID == "" {
		return
	}
	d.pending.Signal(evt.IntendedProxyID, pendingclaim.Completed)
}

// PauseProxy is not supported for a shared proxy.
func (d *Dispatcher) PauseProxy(context.Context, *proxy.Proxy) error { return ErrUnsupported }

// ResumeProxy is not supported for a shared proxy.
func (d *Dispatcher) ResumeProxy(context.Context, *proxy.Proxy) error { return ErrUnsupported }

// SupportsPause always reports false for the sharing dispatcher.
func (d *Dispatcher) SupportsPause() bool { return false }

// SweepExpiredClaims evicts pending claims whose TTL has elapsed
// without waking them, and returns how many were removed. Called
// periodically by the background sweep job, never inline in the wait
// loop.
func (d *Dispatcher) SweepExpiredClaims() int {
	return d.pending.SweepExpired()
}

// SpecID reports the id of the spec this dispatcher serves.
func (d *Dispatcher) SpecID() string {
	return d.spec.ID
}

// PendingCount reports how many proxies are currently waiting on a
// seat for this dispatcher's spec.
func (d *Dispatcher) PendingCount() int {
	return d.pending.Len()
}

// PendingProxyIDs lists the proxies currently waiting on a seat for
// this dispatcher's spec.
func (d *Dispatcher) PendingProxyIDs() []string {
	return d.pending.ProxyIDs()
}

// AddRuntimeValuesBeforeSpel is a placeholder collaborators call
// before policy evaluation. Left as the identity until a concrete
// need for pre-policy runtime values is specified.
func (d *Dispatcher) AddRuntimeValuesBeforeSpel(_ interface{}, _ *proxyspec.Spec, p *proxy.Proxy) *proxy.Proxy {
	return p
}
