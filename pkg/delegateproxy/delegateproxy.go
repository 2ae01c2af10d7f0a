// Package delegateproxy implements the registry of delegate workloads —
// the real backends whose seats can be claimed. Delegate creation and
// draining are owned by the container-runtime adapters, out of scope
// here; this package only resolves delegateId → target endpoints.
package delegateproxy

import (
	"context"
	"errors"
	"sync"
)

// ErrDelegateMissing is returned when a delegate was retired between a
// seat claim and the subsequent target lookup. The Dispatcher treats
// this as a transient start failure.
var ErrDelegateMissing = errors.New("delegateproxy: delegate missing")

// DelegateProxy is a pre-warmed backend that hosts seats.
type DelegateProxy struct {
	ID      string
	Targets []string
	Ready   bool
}

// Store resolves a delegate workload's live target endpoints by id.
type Store interface {
	GetDelegateProxy(ctx context.Context, delegateID string) (*DelegateProxy, error)
}

// InMemoryStore is a process-local registry, populated by whatever
// component creates delegate workloads. Once a DelegateProxy is marked
// ready its Targets are treated as immutable.
type InMemoryStore struct {
	mu        sync.RWMutex
	delegates map[string]*DelegateProxy
}

// NewInMemoryStore creates an empty registry.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{delegates: make(map[string]*DelegateProxy)}
}

// Put registers or replaces a delegate workload.
func (s *InMemoryStore) Put(d *DelegateProxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegates[d.ID] = d
}

// Remove drops a delegate workload, e.g. when it is drained.
func (s *InMemoryStore) Remove(delegateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.delegates, delegateID)
}

// GetDelegateProxy resolves the current endpoints for delegateID.
func (s *InMemoryStore) GetDelegateProxy(_ context.Context, delegateID string) (*DelegateProxy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegates[delegateID]
	if !ok {
		return nil, ErrDelegateMissing
	}
	snapshot := *d
	snapshot.Targets = append([]string(nil), d.Targets...)
	return &snapshot, nil
}
