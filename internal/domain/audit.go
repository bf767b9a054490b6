package domain

import "time"

// Audit event taxonomy. Events are append-only; the type string selects which
// optional fields are populated.
const (
	AuditDonationAccepted  = "donation.accepted"
	AuditDonationBlocked   = "donation.blocked"
	AuditDonationDuplicate = "donation.duplicate"
	AuditDonationIgnored   = "donation.ignored"
	AuditAuthRejected      = "auth.rejected"
	AuditActionExecuted    = "action.executed"
	AuditError             = "error"
)

// AuditEvent is an immutable record of a pipeline decision or outcome. ID and
// At are assigned by the audit log on append; all other fields are optional
// and depend on Type.
type AuditEvent struct {
	ID   string    `json:"id"`
	At   time.Time `json:"at"`
	Type string    `json:"type"`

	DonationID string  `json:"donationId,omitempty"`
	Sender     string  `json:"sender,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Message    string  `json:"message,omitempty"`

	// donation.blocked
	BlockedBy string `json:"blockedBy,omitempty"` // "sender" or "keyword"
	Matched   string `json:"matched,omitempty"`

	// action.executed
	ActionType string `json:"actionType,omitempty"`
	RuleID     string `json:"ruleId,omitempty"`
	OK         bool   `json:"ok,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// donation.ignored / auth.rejected
	Detail string `json:"detail,omitempty"`
}

// ActionStat tallies action.executed outcomes for one action type inside a
// report window.
type ActionStat struct {
	Total   int `json:"total"`
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SummaryTotals aggregates donation outcomes inside a report window.
type SummaryTotals struct {
	Donations          int     `json:"donations"`
	Value              float64 `json:"value"`
	AverageValue       float64 `json:"averageValue"`
	UniqueSenders      int     `json:"uniqueSenders"`
	BlockedDonations   int     `json:"blockedDonations"`
	DuplicateDonations int     `json:"duplicateDonations"`
	Errors             int     `json:"errors"`
}

// SummaryTop identifies the highest-value accepted donation in a window.
type SummaryTop struct {
	DonationID string  `json:"donationId"`
	Sender     string  `json:"sender"`
	Value      float64 `json:"value"`
}

// Summary is the windowed aggregation over the audit log.
type Summary struct {
	GeneratedAt time.Time                 `json:"generatedAt"`
	WindowHours int                       `json:"windowHours"`
	Totals      SummaryTotals             `json:"totals"`
	TopDonation *SummaryTop               `json:"topDonation"`
	ActionStats map[ActionType]ActionStat `json:"actionStats"`
}

// SenderRank is one row of the top-senders report.
type SenderRank struct {
	Sender     string    `json:"sender"`
	Donations  int       `json:"donations"`
	TotalValue float64   `json:"totalValue"`
	LastAt     time.Time `json:"lastAt"`
}
