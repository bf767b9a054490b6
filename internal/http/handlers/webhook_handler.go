// Donation webhook endpoint.
//
// This file exposes the inbound delivery endpoint for the payment provider:
//   - POST /webhook/donations
//
// Handlers are transport-thin: they authenticate the delivery, decode the
// payload, call the donation pipeline, and translate its outcome into an HTTP
// response. Deliveries are acknowledged with 200 whenever the payload was
// readable, even when the pipeline dropped it, so the provider does not retry
// events we have already decided about.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamrig/go-donation-backend/internal/audit"
	"github.com/streamrig/go-donation-backend/internal/domain"
	"github.com/streamrig/go-donation-backend/internal/http/middleware"
	"github.com/streamrig/go-donation-backend/internal/provider"
	"github.com/streamrig/go-donation-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// DonationPipeline covers the pipeline operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and must honor the provided
// context for cancellation and timeouts.
type DonationPipeline interface {
	// HandleWebhookEvent processes one provider delivery end to end.
	HandleWebhookEvent(ctx context.Context, body map[string]any) (services.Outcome, error)
	// RejectAuth records a failed webhook authentication attempt.
	RejectAuth(remoteIP string)
	// StateSnapshot returns the current leaderboard/music/error read model.
	StateSnapshot() services.Snapshot
	// ReloadRules re-reads the rules document and returns the active config.
	ReloadRules() domain.RulesConfig
}

// AuditReader exposes the audit log's query and reporting operations.
// *audit.Log satisfies it directly.
type AuditReader interface {
	Query(opt audit.QueryOptions) []domain.AuditEvent
	Summary(hours int) domain.Summary
	TopSenders(hours, limit int) []domain.SenderRank
}

// ModerationStore covers the blocklist operations consumed by HTTP handlers.
type ModerationStore interface {
	Snapshot() domain.ModerationSnapshot
	BlockSender(sender, reason string) (*domain.ModerationEntry, error)
	UnblockSender(sender string) error
	BlockKeyword(keyword, reason string) (*domain.ModerationEntry, error)
	UnblockKeyword(keyword string) error
}

// MusicControl covers the manual queue controls.
type MusicControl interface {
	Skip()
	ClearQueue()
}

// DonationArchive reads the persisted donation history.
type DonationArchive interface {
	List(ctx context.Context, limit int) ([]domain.DonationRecord, error)
	Count(ctx context.Context) (int64, error)
	Has(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*domain.DonationRecord, error)
	SenderStats(ctx context.Context, sender string) (count int64, total float64, err error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for webhook intake, state, audit,
// moderation, music, and the donation archive. It depends on abstract
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	pipeline   DonationPipeline
	audit      AuditReader
	moderation ModerationStore
	music      MusicControl
	archive    DonationArchive

	// webhookSecret guards POST /webhook/donations; empty disables the check.
	webhookSecret string
}

// New constructs a Handlers instance bound to the given collaborators.
func New(pipeline DonationPipeline, audit AuditReader, mod ModerationStore, music MusicControl, archive DonationArchive, webhookSecret string) *Handlers {
	return &Handlers{
		pipeline:      pipeline,
		audit:         audit,
		moderation:    mod,
		music:         music,
		archive:       archive,
		webhookSecret: webhookSecret,
	}
}

// PostDonationWebhook handles POST /webhook/donations.
//
// The delivery is authenticated against the configured shared secret first; a
// mismatch returns 401 and leaves an auth.rejected audit record. Valid JSON
// payloads always get a 200 acknowledgment carrying the pipeline outcome, so
// the provider never retries an event we dropped on purpose. Only bodies that
// are not JSON at all are answered with 400.
func (h *Handlers) PostDonationWebhook(c *gin.Context) {
	if !provider.VerifySecret(c.Request, h.webhookSecret) {
		h.pipeline.RejectAuth(c.ClientIP())
		fail(c, http.StatusUnauthorized, ErrCodeWebhookRejected, "invalid webhook secret")
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON object")
		return
	}

	outcome, err := h.pipeline.HandleWebhookEvent(c.Request.Context(), body)
	if err != nil {
		lg := middleware.LoggerFrom(c)
		switch {
		case errors.Is(err, services.ErrUnrecognizedPayload),
			errors.Is(err, services.ErrUnsupportedEventType),
			errors.Is(err, services.ErrProviderDisabled):
			lg.Warn().Err(err).Msg("webhook payload dropped")
		default:
			lg.Error().Err(err).Msg("webhook processing failed")
		}
		// Acknowledge anyway; the drop is already recorded in the audit log.
		ok(c, http.StatusOK, gin.H{"ok": false, "outcome": services.OutcomeIgnored})
		return
	}

	ok(c, http.StatusOK, gin.H{"ok": true, "outcome": outcome})
}
