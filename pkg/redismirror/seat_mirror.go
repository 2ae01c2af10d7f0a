package redismirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proxysharing/pkg/seat"

	"github.com/go-redis/redis/v8"
)

const (
	seatKeyPrefix = "seatmirror:seat:"
	specSetPrefix = "seatmirror:spec:"
	mirrorTTL     = 5 * time.Minute
)

// mirroredSeat is the JSON row written for each seat. It mirrors the
// fields an admin surface might want to inspect cross-replica; it is
// not used to reconstruct SeatStore state on any code path.
type mirroredSeat struct {
	ID              string `json:"id"`
	DelegateProxyID string `json:"delegateProxyId"`
	SpecID          string `json:"specId"`
	Claimed         bool   `json:"claimed"`
	ClaimantProxyID string `json:"claimantProxyId,omitempty"`
}

// SeatMirror publishes seat snapshots to Redis with a TTL, for
// cross-replica observability only.
type SeatMirror struct {
	redis *redis.Client
}

// NewSeatMirror wraps an established redis client.
func NewSeatMirror(c *Client) *SeatMirror {
	return &SeatMirror{redis: c.GetClient()}
}

// Publish writes s's current state, refreshing its TTL and the TTL of
// the per-spec index set it belongs to.
func (m *SeatMirror) Publish(ctx context.Context, s *seat.Seat) error {
	row := mirroredSeat{
		ID:              s.ID,
		DelegateProxyID: s.DelegateProxyID,
		SpecID:          s.SpecID,
		Claimed:         s.Claimed,
		ClaimantProxyID: s.ClaimantProxyID,
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("redismirror: marshal seat %s: %w", s.ID, err)
	}

	specSetKey := specSetPrefix + s.SpecID

	pipe := m.redis.Pipeline()
	pipe.Set(ctx, seatKeyPrefix+s.ID, data, mirrorTTL)
	pipe.SAdd(ctx, specSetKey, s.ID)
	pipe.Expire(ctx, specSetKey, mirrorTTL*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redismirror: publish seat %s: %w", s.ID, err)
	}
	return nil
}

// Remove drops a seat's mirrored row, e.g. when it is destroyed.
func (m *SeatMirror) Remove(ctx context.Context, specID, seatID string) error {
	pipe := m.redis.Pipeline()
	pipe.Del(ctx, seatKeyPrefix+seatID)
	pipe.SRem(ctx, specSetPrefix+specID, seatID)
	_, err := pipe.Exec(ctx)
	return err
}

// ListBySpec returns the mirrored seats currently indexed under
// specID. Entries whose TTL has already elapsed are silently skipped
// rather than surfaced as errors — staleness here is expected.
func (m *SeatMirror) ListBySpec(ctx context.Context, specID string) ([]seat.Seat, error) {
	ids, err := m.redis.SMembers(ctx, specSetPrefix+specID).Result()
	if err != nil {
		return nil, fmt.Errorf("redismirror: list spec %s: %w", specID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := m.redis.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.Get(ctx, seatKeyPrefix+id))
	}
	_, _ = pipe.Exec(ctx)

	seats := make([]seat.Seat, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var row mirroredSeat
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			continue
		}
		seats = append(seats, seat.Seat{
			ID:              row.ID,
			DelegateProxyID: row.DelegateProxyID,
			SpecID:          row.SpecID,
			Claimed:         row.Claimed,
			ClaimantProxyID: row.ClaimantProxyID,
		})
	}
	return seats, nil
}
