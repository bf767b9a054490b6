// Audit log endpoints.
//
// This file exposes read access to the append-only audit trail:
//   - GET /api/v1/audit/events       (filtered query, newest first)
//   - GET /api/v1/audit/summary      (windowed aggregation)
//   - GET /api/v1/audit/top-senders  (windowed sender ranking)
//
// All query parameters are optional; missing or unparsable values fall back
// to defaults and out-of-range values are clamped rather than rejected.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamrig/go-donation-backend/internal/audit"
	"github.com/streamrig/go-donation-backend/internal/utils"
)

// ListAuditEvents handles GET /api/v1/audit/events.
//
// Filters: limit, type, sender (case-insensitive), donationId, actionType,
// sinceAt (RFC 3339). Filters are conjunctive; events are returned newest
// first.
func (h *Handlers) ListAuditEvents(c *gin.Context) {
	opt := audit.QueryOptions{
		Limit:      utils.AtoiDefault(c.Query("limit"), 0),
		Type:       c.Query("type"),
		Sender:     c.Query("sender"),
		DonationID: c.Query("donationId"),
		ActionType: c.Query("actionType"),
	}
	if raw := c.Query("sinceAt"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sinceAt must be RFC 3339")
			return
		}
		opt.SinceAt = t
	}

	events := h.audit.Query(opt)
	ok(c, http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// GetAuditSummary handles GET /api/v1/audit/summary.
//
// The hours window defaults to 24 and is clamped to [1, 720].
func (h *Handlers) GetAuditSummary(c *gin.Context) {
	hours := utils.AtoiDefault(c.Query("hours"), 0)
	ok(c, http.StatusOK, h.audit.Summary(hours))
}

// GetTopSenders handles GET /api/v1/audit/top-senders.
//
// The hours window defaults to 24; limit defaults to 10 and is clamped
// to [1, 100].
func (h *Handlers) GetTopSenders(c *gin.Context) {
	hours := utils.AtoiDefault(c.Query("hours"), 0)
	limit := utils.AtoiDefault(c.Query("limit"), 0)
	ranks := h.audit.TopSenders(hours, limit)
	ok(c, http.StatusOK, gin.H{
		"hours":   clampedHours(hours),
		"senders": ranks,
	})
}

// clampedHours mirrors the report clamp so the response echoes the window
// actually used.
func clampedHours(hours int) int {
	switch {
	case hours <= 0:
		return 24
	case hours > 720:
		return 720
	default:
		return hours
	}
}
