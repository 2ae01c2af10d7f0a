// Package pendingclaim implements the per-dispatcher table of waiters
// with no seat yet. Entries expire after a write-TTL (default 10
// minutes) even without explicit removal; eviction delivers no signal
// to whatever goroutine is waiting on the entry — a waiter self-heals
// via its own per-attempt timeout and by polling the proxy's status.
//
// There is no off-the-shelf TTL cache in this codebase's dependency
// set, so the table is hand-rolled: a mutex-guarded map storing each
// entry's expiry alongside its value, with expiry checked lazily on
// every read and swept proactively by a periodic background job (see
// the sweep package) — the same lazy+active expiry shape the rest of
// this codebase uses for its Redis-TTL-backed repositories, adapted to
// an in-process table since the table is private to one dispatcher and
// never shared across processes.
package pendingclaim

import (
	"sync"
	"time"
)

// Outcome is the three-way result a waiter observes from a Claim,
// replacing exception-driven control flow in the wait loop.
type Outcome int

const (
	// Completed means a seat may be available; the event that woke the
	// waiter is a hint, not a guarantee — always re-attempt the claim.
	Completed Outcome = iota
	// Cancelled means the proxy was stopped externally while waiting.
	Cancelled
	// TimedOut means the per-wait timeout elapsed with no signal; the
	// caller should re-poll anyway as a defense against missed events.
	TimedOut
)

// Claim is a waiter record: a proxy with no seat yet, and the channel
// its owner selects on to learn why it woke up.
type Claim struct {
	ProxyID   string
	CreatedAt time.Time

	done chan Outcome
}

// Wait blocks until the claim is signalled or d elapses, whichever
// comes first. A timeout yields TimedOut without consuming any signal
// that might arrive moments later — callers re-enter Wait on the next
// loop iteration.
func (c *Claim) Wait(d time.Duration) Outcome {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case outcome := <-c.done:
		return outcome
	case <-timer.C:
		return TimedOut
	}
}

// entry pairs a Claim with its absolute expiry time.
type entry struct {
	claim     *Claim
	expiresAt time.Time
}

// Table maps proxyId to its pending Claim, TTL-expiring. At most one
// active entry per proxyId; Insert while one already exists is a
// caller bug — callers must not start two concurrent claims for the
// same proxy.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
}

// NewTable creates an empty table with the given write-TTL.
func NewTable(ttl time.Duration) *Table {
	return &Table{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// Insert creates and stores a new pending claim for proxyID. Panics if
// one already exists for proxyID, since duplicate insertion is
// explicitly undefined behavior the caller must never trigger.
func (t *Table) Insert(proxyID string) *Claim {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[proxyID]; ok && !t.expiredLocked(e) {
		panic("pendingclaim: duplicate insert for proxy " + proxyID)
	}

	claim := &Claim{
		ProxyID:   proxyID,
		CreatedAt: time.Now(),
		done:      make(chan Outcome, 1),
	}
	t.entries[proxyID] = &entry{claim: claim, expiresAt: time.Now().Add(t.ttl)}
	return claim
}

// GetIfPresent returns the live claim for proxyID, or nil if there is
// none or it has expired (lazily evicting the expired entry).
func (t *Table) GetIfPresent(proxyID string) *Claim {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[proxyID]
	if !ok {
		return nil
	}
	if t.expiredLocked(e) {
		delete(t.entries, proxyID)
		return nil
	}
	return e.claim
}

// Invalidate removes the entry for proxyID without signalling it. The
// dispatcher's wait loop calls it when it exits, whatever the outcome;
// TTL sweep eviction goes through SweepExpired instead.
func (t *Table) Invalidate(proxyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, proxyID)
}

// Signal delivers outcome to the claim for proxyID, if one is present
// and live, then removes it from the table. Returns false if there was
// nothing to signal (already completed, cancelled, or expired) — a
// harmless no-op, since stray events must never panic or error.
func (t *Table) Signal(proxyID string, outcome Outcome) bool {
	t.mu.Lock()
	e, ok := t.entries[proxyID]
	if !ok || t.expiredLocked(e) {
		delete(t.entries, proxyID)
		t.mu.Unlock()
		return false
	}
	delete(t.entries, proxyID)
	t.mu.Unlock()

	select {
	case e.claim.done <- outcome:
	default:
		// Already signalled once (shouldn't happen given single-writer
		// discipline, but the buffered channel makes it harmless).
	}
	return true
}

// SweepExpired proactively evicts every entry whose TTL has elapsed,
// without signalling them, and returns how many were removed. Called
// by the periodic background sweep job as defense-in-depth on top of
// the lazy eviction in GetIfPresent/Insert.
func (t *Table) SweepExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, e := range t.entries {
		if now.After(e.expiresAt) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the current number of entries in the table, including
// ones that are logically expired but not yet swept or accessed.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// ProxyIDs returns the proxy ids of every live entry, for introspection.
func (t *Table) ProxyIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.entries))
	now := time.Now()
	for id, e := range t.entries {
		if now.After(e.expiresAt) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (t *Table) expiredLocked(e *entry) bool {
	return time.Now().After(e.expiresAt)
}
