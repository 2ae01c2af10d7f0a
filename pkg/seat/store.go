package seat

import (
	"context"
	"sync"

	"proxysharing/pkg/eventbus"
	"proxysharing/pkg/logger"
)

// Store is the seat-inventory contract: claim, release, and inspect
// the seats belonging to ready delegate workloads.
type Store interface {
	ClaimSeat(ctx context.Context, claimantProxyID string) (*Seat, bool)
	ReleaseSeat(ctx context.Context, seatID string)
	GetSeat(ctx context.Context, seatID string) (*Seat, bool)
	NumUnclaimedSeats() int
	NumClaimedSeats() int
	NumUnclaimedSeatsForSpec(specID string) int
	NumClaimedSeatsForSpec(specID string) int
}

// Mirror is the cross-replica publication sink a Store reports every
// claim/release to, best-effort. Satisfied by *redismirror.SeatMirror;
// kept as a narrow interface here so this package never imports
// redismirror.
type Mirror interface {
	Publish(ctx context.Context, s *Seat) error
}

// InMemoryStore is the sole implementation: an in-process seat table
// guarded by a single mutex so ClaimSeat/ReleaseSeat stay short
// critical sections.
//
// Free seats are tracked in a FIFO queue of ids alongside the seat map
// so that ClaimSeat is fair across free seats under steady load —
// seats free longest are claimed first.
type InMemoryStore struct {
	mu     sync.Mutex
	seats  map[string]*Seat
	free   []string // FIFO queue of free seat ids
	bus    *eventbus.Bus
	mirror Mirror
}

// NewInMemoryStore creates an empty seat store. bus may be nil, in
// which case ReleaseSeat's SeatAvailableEvent publication is skipped —
// useful for tests that only care about claim/release accounting.
func NewInMemoryStore(bus *eventbus.Bus) *InMemoryStore {
	return &InMemoryStore{
		seats: make(map[string]*Seat),
		bus:   bus,
	}
}

// SetMirror wires the cross-replica publication sink. Optional; a nil
// mirror (the default) leaves ClaimSeat/ReleaseSeat local-only.
func (s *InMemoryStore) SetMirror(m Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = m
}

// publish fires the mirror outside the store's critical section so a
// slow or failing Redis round trip never holds the lock other claims
// and releases need. It still runs on the calling goroutine, before
// ClaimSeat/ReleaseSeat return. Failures are logged, never propagated —
// the mirror is observability, not a source of truth.
func (s *InMemoryStore) publish(seat Seat) {
	s.mu.Lock()
	m := s.mirror
	s.mu.Unlock()
	if m == nil {
		return
	}
	if err := m.Publish(context.Background(), &seat); err != nil {
		logger.Warnf("seat mirror publish failed for seat %s: %v", seat.ID, err)
	}
}

// AddSeat registers a new seat belonging to delegateProxyID under
// specID, unclaimed. Called when a delegate workload reports ready.
func (s *InMemoryStore) AddSeat(seatID, delegateProxyID, specID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seats[seatID]; exists {
		return
	}
	s.seats[seatID] = &Seat{ID: seatID, DelegateProxyID: delegateProxyID, SpecID: specID}
	s.free = append(s.free, seatID)
}

// RemoveSeat destroys a seat, e.g. when its delegate is retired.
func (s *InMemoryStore) RemoveSeat(seatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seats, seatID)
	s.removeFromFreeLocked(seatID)
}

// ClaimSeat atomically selects the longest-waiting free seat, marks it
// claimed, and returns it. Returns (nil, false) if none are free. The
// claim is mirrored best-effort after the lock is released.
func (s *InMemoryStore) ClaimSeat(_ context.Context, claimantProxyID string) (*Seat, bool) {
	s.mu.Lock()

	for len(s.free) > 0 {
		seatID := s.free[0]
		s.free = s.free[1:]

		seat, ok := s.seats[seatID]
		if !ok || seat.Claimed {
			// Stale entry (seat removed or double-queued); skip it.
			continue
		}

		seat.Claimed = true
		seat.ClaimantProxyID = claimantProxyID
		claimed := *seat
		s.mu.Unlock()

		s.publish(claimed)
		return &claimed, true
	}
	s.mu.Unlock()
	return nil, false
}

// ReleaseSeat marks a seat unclaimed. Idempotent: releasing an
// already-free or nonexistent seat is a no-op. Publishes a
// SeatAvailableEvent for the seat's spec with no intended proxy as a
// side effect, and mirrors the released seat best-effort. The
// Dispatcher ignores untargeted events, so this publication wakes no
// waiter directly; waiters pick the seat up on their next per-attempt
// timeout.
func (s *InMemoryStore) ReleaseSeat(_ context.Context, seatID string) {
	s.mu.Lock()
	seat, ok := s.seats[seatID]
	if !ok || !seat.Claimed {
		s.mu.Unlock()
		return
	}
	seat.Claimed = false
	seat.ClaimantProxyID = ""
	s.free = append(s.free, seatID)
	released := *seat
	s.mu.Unlock()

	s.publish(released)

	if s.bus != nil {
		s.bus.Publish(eventbus.SeatAvailableEventType, eventbus.SeatAvailableEvent{SpecID: released.SpecID})
	}
}

// GetSeat returns a snapshot of a seat by id.
func (s *InMemoryStore) GetSeat(_ context.Context, seatID string) (*Seat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok {
		return nil, false
	}
	snapshot := *seat
	return &snapshot, true
}

// NumUnclaimedSeats returns the count of currently free seats.
func (s *InMemoryStore) NumUnclaimedSeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, seat := range s.seats {
		if seat.free() {
			count++
		}
	}
	return count
}

// NumClaimedSeats returns the count of currently claimed seats.
func (s *InMemoryStore) NumClaimedSeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, seat := range s.seats {
		if !seat.free() {
			count++
		}
	}
	return count
}

// NumUnclaimedSeatsForSpec returns the count of currently free seats
// belonging to specID.
func (s *InMemoryStore) NumUnclaimedSeatsForSpec(specID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, seat := range s.seats {
		if seat.SpecID == specID && seat.free() {
			count++
		}
	}
	return count
}

// NumClaimedSeatsForSpec returns the count of currently claimed seats
// belonging to specID.
func (s *InMemoryStore) NumClaimedSeatsForSpec(specID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, seat := range s.seats {
		if seat.SpecID == specID && !seat.free() {
			count++
		}
	}
	return count
}

func (s *InMemoryStore) removeFromFreeLocked(seatID string) {
	for i, id := range s.free {
		if id == seatID {
			s.free = append(s.free[:i], s.free[i+1:]...)
			return
		}
	}
}
