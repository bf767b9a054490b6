package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/streamrig/go-donation-backend/internal/audit"
	"github.com/streamrig/go-donation-backend/internal/dispatch"
	"github.com/streamrig/go-donation-backend/internal/domain"
	"github.com/streamrig/go-donation-backend/internal/events"
	"github.com/streamrig/go-donation-backend/internal/moderation"
	"github.com/streamrig/go-donation-backend/internal/provider"
	"github.com/streamrig/go-donation-backend/internal/repo"
	"github.com/streamrig/go-donation-backend/internal/rules"
	"github.com/streamrig/go-donation-backend/internal/state"
)

// Outcome statuses reported by Process.
const (
	OutcomeAccepted  = "accepted"
	OutcomeBlocked   = "blocked"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// Outcome is the aggregated result of processing one donation.
type Outcome struct {
	Status  string            `json:"status"`
	Reason  string            `json:"reason,omitempty"`
	NewTop  bool              `json:"newTop,omitempty"`
	Results []dispatch.Result `json:"results,omitempty"`
}

// LastError is the most recent pipeline error, kept for the state snapshot.
type LastError struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Snapshot is the read model served by GET /api/v1/state.
type Snapshot struct {
	Donations     []domain.Donation   `json:"donations"`
	TopDonation   *domain.TopDonation `json:"topDonation"`
	Music         state.MusicSnapshot `json:"music"`
	LastWebhookAt *time.Time          `json:"lastWebhookAt,omitempty"`
	LastError     *LastError          `json:"lastError,omitempty"`
}

// DonationService owns the decision-and-dispatch pipeline. All pipeline
// shared state lives in the injected components; the service itself only
// tracks the last-webhook and last-error markers.
type DonationService struct {
	Rules      *rules.RuleSet
	Moderation *moderation.Store
	Board      *state.Leaderboard
	Music      *state.MusicState
	Audit      *audit.Log
	Dispatcher *dispatch.Dispatcher
	Sink       events.Publisher

	// DB enables the SQLite archive when non-nil.
	DB *gorm.DB

	// API resolves referenced provider events; Extract configures inline
	// payload extraction.
	API     *provider.APIClient
	Extract provider.ExtractConfig

	Now func() time.Time

	mu            sync.Mutex
	lastWebhookAt *time.Time
	lastError     *LastError
}

// HandleWebhookEvent turns an inbound provider payload into a processed
// donation. Payloads with an inline donation are processed directly; bare
// references are resolved through the provider API first. Unrecognized
// payloads are dropped with a donation.ignored audit record.
func (s *DonationService) HandleWebhookEvent(ctx context.Context, body map[string]any) (Outcome, error) {
	s.markWebhook()

	if extracted, ok, reason := provider.ExtractDonation(body, s.Extract); ok {
		d := domain.Donation{
			ID:      s.stableID(body),
			At:      s.now(),
			Value:   extracted.Value,
			Sender:  extracted.Sender,
			Message: extracted.Message,
			Status:  extracted.Status,
		}
		return s.Process(ctx, d), nil
	} else if reason != "" && !strings.HasPrefix(reason, "missing") {
		// Status-filtered payloads are intentionally ignored, not errors.
		s.ignore(reason, body)
		return Outcome{Status: OutcomeIgnored, Reason: reason}, nil
	}

	ref, ok := provider.ExtractRef(body)
	if !ok {
		s.ignore("unrecognized payload", body)
		return Outcome{Status: OutcomeIgnored, Reason: "unrecognized payload"}, ErrUnrecognizedPayload
	}

	if !s.API.Enabled() {
		log.Warn().Str("type", ref.Type).Str("id", ref.ID).
			Msg("webhook requires provider API fetch but credentials are not configured")
		s.ignore("provider api not configured", body)
		return Outcome{Status: OutcomeIgnored, Reason: "provider api not configured"}, ErrProviderDisabled
	}

	d, err := s.resolveRef(ctx, ref)
	if err != nil {
		s.recordError(err)
		s.Audit.Append(domain.AuditEvent{
			Type:   domain.AuditError,
			Detail: fmt.Sprintf("provider fetch %s:%s: %v", ref.Type, ref.ID, err),
		})
		return Outcome{Status: OutcomeIgnored, Reason: err.Error()}, err
	}
	return s.Process(ctx, d), nil
}

// resolveRef fetches the referenced provider record and converts it into a
// donation with the stable lp_<type>_<id> identifier.
func (s *DonationService) resolveRef(ctx context.Context, ref provider.Ref) (domain.Donation, error) {
	id := provider.StableID(ref.Type, ref.ID)

	switch {
	case strings.Contains(ref.Type, "message"), strings.Contains(ref.Type, "payment"):
		rec, err := s.API.FetchMessage(ctx, ref.ID)
		if err != nil && strings.Contains(ref.Type, "payment") {
			rec, err = s.API.FetchPayment(ctx, ref.ID)
		}
		if err != nil {
			return domain.Donation{}, err
		}
		return domain.Donation{
			ID:      id,
			At:      s.now(),
			Value:   recordAmount(rec, s.Extract.AmountMode),
			Message: strings.TrimSpace(firstString(rec, "message", "text", "comment")),
			Sender:  domain.NormalizeSender(firstString(rec, "username", "tipper", "name")),
			Status:  "paid",
		}, nil

	case strings.Contains(ref.Type, "subscription"):
		rec, err := s.API.FetchSubscription(ctx, ref.ID)
		if err != nil {
			return domain.Donation{}, err
		}
		months := 1
		if m, ok := rec["months"].(float64); ok && m >= 1 {
			months = int(m)
		}
		return domain.Donation{
			ID:      id,
			At:      s.now(),
			Value:   recordAmount(rec, s.Extract.AmountMode),
			Message: fmt.Sprintf("subscription (%dm)", months),
			Sender:  domain.NormalizeSender(firstString(rec, "username", "subscriber", "name")),
			Status:  "paid",
		}, nil
	}

	return domain.Donation{}, fmt.Errorf("%w: %s", ErrUnsupportedEventType, ref.Type)
}

// Process runs the decision-and-dispatch pipeline for one donation:
// moderation gate, context building, rule matching, dedup/top update,
// archival, audit, and the cooldown-gated action batch.
func (s *DonationService) Process(ctx context.Context, d domain.Donation) Outcome {
	d.Sender = domain.NormalizeSender(d.Sender)

	// Moderation gate: a block short-circuits the whole pipeline and leaves
	// exactly one audit record.
	if entry := s.Moderation.IsSenderBlocked(d.Sender); entry != nil {
		return s.block(d, "sender", entry)
	}
	if entry := s.Moderation.FindBlockedKeyword(d.Message); entry != nil {
		return s.block(d, "keyword", entry)
	}

	cfg := s.Rules.Current()
	dctx := rules.BuildContext(d, cfg)
	dctx.IsNewTop = s.Board.IsNewTop(d.Value)
	batch := rules.DecideActions(d, dctx, cfg)

	// Display copies of the derived fields.
	d.URL = dctx.URL
	d.VideoID = dctx.VideoID

	res := s.Board.Add(d)
	if res.Duplicate {
		log.Warn().Str("donation_id", d.ID).Msg("duplicate donation ignored")
		donationOutcomes.WithLabelValues(OutcomeDuplicate).Inc()
		s.Audit.Append(domain.AuditEvent{
			Type:       domain.AuditDonationDuplicate,
			DonationID: d.ID,
			Sender:     d.Sender,
			Value:      d.Value,
		})
		return Outcome{Status: OutcomeDuplicate}
	}

	// Archive write failures degrade to a warning; a conflict means the id
	// was accepted before a restart wiped the in-memory index.
	if s.DB != nil {
		inserted, err := repo.ArchiveDonation(ctx, s.DB, d)
		if err != nil {
			log.Warn().Err(err).Str("donation_id", d.ID).Msg("failed to archive donation")
		} else if !inserted {
			log.Warn().Str("donation_id", d.ID).Msg("donation already archived, treating as duplicate")
			donationOutcomes.WithLabelValues(OutcomeDuplicate).Inc()
			s.Audit.Append(domain.AuditEvent{
				Type:       domain.AuditDonationDuplicate,
				DonationID: d.ID,
				Sender:     d.Sender,
				Value:      d.Value,
			})
			return Outcome{Status: OutcomeDuplicate}
		}
	}

	donationOutcomes.WithLabelValues(OutcomeAccepted).Inc()
	s.Audit.Append(domain.AuditEvent{
		Type:       domain.AuditDonationAccepted,
		DonationID: d.ID,
		Sender:     d.Sender,
		Value:      d.Value,
		Message:    d.Message,
	})

	s.Sink.Publish(events.TopicDonationNew, d)
	if res.NewTop {
		s.Sink.Publish(events.TopicDonationTop, res.Top)
	}
	s.Sink.Publish(events.TopicStateUpdate, s.StateSnapshot())

	results := s.Dispatcher.ExecuteBatch(ctx, d, dctx, batch, cfg)
	for _, r := range results {
		if !r.OK && !r.Skipped {
			s.recordError(fmt.Errorf("%s: %s", r.Type, r.Reason))
		}
	}

	s.Sink.Publish(events.TopicDonationActions, map[string]any{
		"donationId": d.ID,
		"at":         s.now(),
		"results":    results,
	})

	return Outcome{Status: OutcomeAccepted, NewTop: res.NewTop, Results: results}
}

func (s *DonationService) block(d domain.Donation, by string, entry *domain.ModerationEntry) Outcome {
	log.Info().Str("donation_id", d.ID).Str("blocked_by", by).Str("matched", entry.Value).
		Msg("donation blocked by moderation")
	donationOutcomes.WithLabelValues(OutcomeBlocked).Inc()
	s.Audit.Append(domain.AuditEvent{
		Type:       domain.AuditDonationBlocked,
		DonationID: d.ID,
		Sender:     d.Sender,
		Value:      d.Value,
		BlockedBy:  by,
		Matched:    entry.Value,
	})
	return Outcome{Status: OutcomeBlocked, Reason: by}
}

func (s *DonationService) ignore(reason string, body map[string]any) {
	log.Warn().Str("reason", reason).Msg("webhook ignored")
	donationOutcomes.WithLabelValues(OutcomeIgnored).Inc()
	s.Audit.Append(domain.AuditEvent{
		Type:   domain.AuditDonationIgnored,
		Detail: reason,
	})
}

// RejectAuth records a failed webhook secret check.
func (s *DonationService) RejectAuth(remoteIP string) {
	s.Audit.Append(domain.AuditEvent{
		Type:   domain.AuditAuthRejected,
		Detail: "invalid webhook secret from " + remoteIP,
	})
}

// StateSnapshot assembles the read model for the state endpoint.
func (s *DonationService) StateSnapshot() Snapshot {
	s.mu.Lock()
	lastAt, lastErr := s.lastWebhookAt, s.lastError
	s.mu.Unlock()

	return Snapshot{
		Donations:     s.Board.Recent(),
		TopDonation:   s.Board.Top(),
		Music:         s.Music.Snapshot(),
		LastWebhookAt: lastAt,
		LastError:     lastErr,
	}
}

// ReloadRules swaps in the rules document and notifies observers.
func (s *DonationService) ReloadRules() domain.RulesConfig {
	cfg := s.Rules.Reload()
	s.Sink.Publish(events.TopicRulesReloaded, map[string]any{
		"at":   s.now(),
		"path": s.Rules.Path(),
	})
	return cfg
}

func (s *DonationService) recordError(err error) {
	s.mu.Lock()
	s.lastError = &LastError{
		ID:      "err_" + uuid.NewString(),
		At:      s.now(),
		Message: err.Error(),
	}
	s.mu.Unlock()
}

func (s *DonationService) markWebhook() {
	now := s.now()
	s.mu.Lock()
	s.lastWebhookAt = &now
	s.mu.Unlock()
}

func (s *DonationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// stableID derives the dedup id for an inline payload: the provider event
// reference when present, the bare external id next, and a random id as the
// last resort (id-less donations can never dedup).
func (s *DonationService) stableID(body map[string]any) string {
	if ref, ok := provider.ExtractRef(body); ok {
		return provider.StableID(ref.Type, ref.ID)
	}
	if ext := provider.ExtractExternalID(body); ext != "" {
		return provider.StableID(ext)
	}
	return "don_" + uuid.NewString()
}

// recordAmount reads a provider record's amount field under the configured
// amount mode. In auto mode an integral value is assumed to be cents,
// anything else currency units.
func recordAmount(rec map[string]any, mode string) float64 {
	raw := rec["amount"]
	if raw == nil {
		raw = rec["value"]
	}
	if raw == nil {
		raw = rec["valor"]
	}
	if mode == "" {
		mode = "auto"
	}
	v, ok := provider.NormalizeAmount(raw, mode)
	if !ok {
		return 0
	}
	return v
}

// firstString returns the first non-empty string value among the given keys.
func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
