// Moderation endpoints.
//
// This file exposes the blocklist management API:
//   - GET    /api/v1/moderation           (snapshot)
//   - POST   /api/v1/moderation/senders   (block sender)
//   - DELETE /api/v1/moderation/senders   (unblock sender)
//   - POST   /api/v1/moderation/keywords  (block keyword)
//   - DELETE /api/v1/moderation/keywords  (unblock keyword)
//
// Block and unblock both take a JSON body ({"value": ..., "reason": ...}) so
// values with slashes or spaces never have to survive URL encoding.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamrig/go-donation-backend/internal/domain"
	"github.com/streamrig/go-donation-backend/internal/moderation"
)

// BlockRequest is the JSON payload for blocking a sender or keyword.
type BlockRequest struct {
	// Value is the sender name or keyword to block.
	Value string `json:"value" binding:"required,min=1,max=200" example:"RudePerson42"`
	// Reason optionally records why the entry was added.
	Reason string `json:"reason" binding:"max=300" example:"spamming links"`
}

// UnblockRequest is the JSON payload for removing a blocklist entry.
type UnblockRequest struct {
	Value string `json:"value" binding:"required,min=1,max=200" example:"RudePerson42"`
}

// GetModeration handles GET /api/v1/moderation.
func (h *Handlers) GetModeration(c *gin.Context) {
	ok(c, http.StatusOK, h.moderation.Snapshot())
}

// BlockSender handles POST /api/v1/moderation/senders.
func (h *Handlers) BlockSender(c *gin.Context) {
	h.blockEntry(c, h.moderation.BlockSender)
}

// UnblockSender handles DELETE /api/v1/moderation/senders.
func (h *Handlers) UnblockSender(c *gin.Context) {
	h.unblockEntry(c, h.moderation.UnblockSender)
}

// BlockKeyword handles POST /api/v1/moderation/keywords.
func (h *Handlers) BlockKeyword(c *gin.Context) {
	h.blockEntry(c, h.moderation.BlockKeyword)
}

// UnblockKeyword handles DELETE /api/v1/moderation/keywords.
func (h *Handlers) UnblockKeyword(c *gin.Context) {
	h.unblockEntry(c, h.moderation.UnblockKeyword)
}

// blockEntry binds a BlockRequest and maps store errors to HTTP codes.
func (h *Handlers) blockEntry(c *gin.Context, block func(value, reason string) (*domain.ModerationEntry, error)) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value is required (1-200 chars)")
		return
	}
	entry, err := block(req.Value, req.Reason)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, entry)
	case errors.Is(err, moderation.ErrAlreadyBlocked):
		fail(c, http.StatusConflict, ErrCodeAlreadyBlocked, "entry already blocked")
	case errors.Is(err, moderation.ErrEmptyValue):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must not be blank")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update blocklist")
	}
}

// unblockEntry binds an UnblockRequest and maps store errors to HTTP codes.
func (h *Handlers) unblockEntry(c *gin.Context, unblock func(value string) error) {
	var req UnblockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value is required (1-200 chars)")
		return
	}
	err := unblock(req.Value)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, moderation.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "entry not found")
	case errors.Is(err, moderation.ErrEmptyValue):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must not be blank")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update blocklist")
	}
}
