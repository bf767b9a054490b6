// Package domain defines the core value types of the donation pipeline:
// donations, rules, actions, moderation entries, audit events, and the
// SQLite archive models. These types are shared across all layers and carry
// no behavior beyond normalization and validation helpers.
package domain

import (
	"strings"
	"time"
)

// AnonSender is the display name used when a provider payload carries no
// usable sender field.
const AnonSender = "Anon"

// Donation is a normalized, valued support event. It is immutable once
// constructed; URL and VideoID are derived by the context builder and copied
// onto the stored entry for display purposes only.
//
// ID is stable across provider redeliveries of the same external event and is
// the dedup key for at-most-once processing.
type Donation struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Value   float64   `json:"value"`
	Sender  string    `json:"sender"`
	Message string    `json:"message"`
	Status  string    `json:"status,omitempty"`
	URL     string    `json:"url,omitempty"`
	VideoID string    `json:"videoId,omitempty"`
}

// Context is the ephemeral rule-evaluation context derived from a donation.
// It is computed once per inbound event and discarded after dispatch.
type Context struct {
	// NormalizedMessage is the lowercased, whitespace-collapsed message.
	NormalizedMessage string
	// URL is the first whitelisted URL found in the message, or empty.
	URL string
	// VideoID is the platform video identifier parsed from URL, or empty.
	VideoID string
	// IsNewTop reports whether the donation's value strictly exceeds the
	// current leaderboard top. Computed by the caller before the donation
	// is recorded; ties are not a new top.
	IsNewTop bool
}

// TopDonation is the leaderboard's highest-value donation snapshot.
type TopDonation struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Value   float64   `json:"value"`
	Sender  string    `json:"sender"`
	Message string    `json:"message"`
}

// NormalizeSender trims the sender display string and substitutes AnonSender
// when it is empty.
func NormalizeSender(s string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return AnonSender
}
