// Package seat implements the inventory of seats belonging to ready
// delegate workloads, with atomic claim/release. The transition from
// free to claimed is linearizable: exactly one caller ever wins a
// given seat.
package seat

// Seat is a single claimable slot on a delegate workload.
type Seat struct {
	ID              string
	DelegateProxyID string
	SpecID          string
	Claimed         bool
	ClaimantProxyID string
}

// free reports whether the seat is currently unclaimed.
func (s Seat) free() bool { return !s.Claimed }
