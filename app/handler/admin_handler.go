// Package handler implements the HTTP admin surface: read-only
// introspection into seat occupancy and pending waiters, plus a manual
// stop endpoint for operators.
package handler

import (
	"context"
	"net/http"

	"proxysharing/pkg/dispatcher"
	"proxysharing/pkg/logger"
	"proxysharing/pkg/proxy"
	"proxysharing/pkg/seat"

	"github.com/gin-gonic/gin"
)

// SeatMirrorReader is the read side of the cross-replica seat mirror,
// consulted when a request names a spec this replica has no local
// dispatcher for. Satisfied by *redismirror.SeatMirror.
type SeatMirrorReader interface {
	ListBySpec(ctx context.Context, specID string) ([]seat.Seat, error)
}

// AdminHandler serves operator-facing introspection and control
// endpoints for a fleet of per-spec dispatchers.
type AdminHandler struct {
	seats       seat.Store
	proxies     proxy.Store
	dispatchers map[string]*dispatcher.Dispatcher
	mirror      SeatMirrorReader
}

// NewAdminHandler builds a handler over the shared seat store, the
// shared proxy store, and the set of dispatchers keyed by spec id.
// mirror may be nil, in which case a spec with no local dispatcher
// always reports unknown.
func NewAdminHandler(seats seat.Store, proxies proxy.Store, dispatchers map[string]*dispatcher.Dispatcher, mirror SeatMirrorReader) *AdminHandler {
	return &AdminHandler{seats: seats, proxies: proxies, dispatchers: dispatchers, mirror: mirror}
}

// GetSeats reports claimed/unclaimed seat counts for specId. If this
// replica runs no dispatcher for specId, it falls back to the
// cross-replica mirror so the admin surface reports a consistent
// picture regardless of which replica a request lands on.
func (h *AdminHandler) GetSeats(c *gin.Context) {
	specID := c.Param("specId")
	if _, ok := h.dispatchers[specID]; ok {
		c.JSON(http.StatusOK, gin.H{
			"specId":    specID,
			"claimed":   h.seats.NumClaimedSeatsForSpec(specID),
			"unclaimed": h.seats.NumUnclaimedSeatsForSpec(specID),
		})
		return
	}

	if h.mirror == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown spec"})
		return
	}

	mirrored, err := h.mirror.ListBySpec(c.Request.Context(), specID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "seat mirror unavailable"})
		return
	}
	if len(mirrored) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown spec"})
		return
	}

	claimed, unclaimed := 0, 0
	for _, s := range mirrored {
		if s.Claimed {
			claimed++
		} else {
			unclaimed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"specId":    specID,
		"claimed":   claimed,
		"unclaimed": unclaimed,
		"source":    "mirror",
	})
}

// GetPending reports how many proxies are currently waiting on a seat
// for the given spec.
func (h *AdminHandler) GetPending(c *gin.Context) {
	specID := c.Param("specId")
	d, ok := h.dispatchers[specID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown spec"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"specId":   specID,
		"pending":  d.PendingCount(),
		"proxyIds": d.PendingProxyIDs(),
	})
}

// StopProxy invokes Dispatcher.StopProxy for manual operator
// intervention. specId is passed as a query param since a proxy id
// alone doesn't identify which dispatcher owns it.
func (h *AdminHandler) StopProxy(c *gin.Context) {
	proxyID := c.Param("proxyId")
	specID := c.Query("specId")

	d, ok := h.dispatchers[specID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown spec"})
		return
	}

	p, ok := h.proxies.GetProxy(c.Request.Context(), proxyID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown proxy"})
		return
	}

	logger.InfoCtx(c.Request.Context(), "admin stop requested for proxy %s (spec %s)", proxyID, specID)
	d.StopProxy(c.Request.Context(), p, "admin requested stop")

	c.JSON(http.StatusOK, gin.H{"status": "stopped", "proxyId": proxyID})
}
