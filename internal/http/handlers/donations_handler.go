// Donation archive endpoints.
//
// This file exposes read access to the SQLite donation archive, which keeps
// accepted donations beyond the bounded in-memory leaderboard window:
//   - GET  /api/v1/donations (newest first, limit clamped)
//   - GET  /api/v1/donations/:id
//   - HEAD /api/v1/donations/:id (existence check, no body)
//   - GET  /api/v1/senders/:sender/stats
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamrig/go-donation-backend/internal/http/middleware"
	"github.com/streamrig/go-donation-backend/internal/repo"
	"github.com/streamrig/go-donation-backend/internal/utils"
)

// ListDonations handles GET /api/v1/donations.
//
// The limit query parameter defaults to 100 and is clamped by the repository
// layer. Returns 503 when the archive is disabled (no database configured).
func (h *Handlers) ListDonations(c *gin.Context) {
	if h.archive == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeListFailed, "donation archive is disabled")
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 0)
	ctx := c.Request.Context()

	records, err := h.archive.List(ctx, limit)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("archive listing failed")
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list donations")
		return
	}
	total, err := h.archive.Count(ctx)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("archive count failed")
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list donations")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"donations": records,
		"total":     total,
	})
}

// GetDonation handles GET /api/v1/donations/:id.
func (h *Handlers) GetDonation(c *gin.Context) {
	if h.archive == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeListFailed, "donation archive is disabled")
		return
	}

	rec, err := h.archive.Get(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"donation": rec})
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "donation not found")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("archive lookup failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read donation")
	}
}

// HeadDonation handles HEAD /api/v1/donations/:id. Status-only: 204 when the
// id is archived, 404 when it is not.
func (h *Handlers) HeadDonation(c *gin.Context) {
	if h.archive == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	exists, err := h.archive.Has(c.Request.Context(), c.Param("id"))
	switch {
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Msg("archive existence check failed")
		c.Status(http.StatusInternalServerError)
	case exists:
		c.Status(http.StatusNoContent)
	default:
		c.Status(http.StatusNotFound)
	}
}

// GetSenderStats handles GET /api/v1/senders/:sender/stats. A sender with no
// archived donations yields zeroes rather than 404.
func (h *Handlers) GetSenderStats(c *gin.Context) {
	if h.archive == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeListFailed, "donation archive is disabled")
		return
	}

	sender := c.Param("sender")
	count, total, err := h.archive.SenderStats(c.Request.Context(), sender)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("sender stats failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not aggregate sender stats")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"sender":    sender,
		"donations": count,
		"total":     total,
	})
}
