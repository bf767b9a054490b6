package domain

import "time"

// ModerationEntry is one row of a moderation list. Value is the normalized
// lookup key (lowercase, trimmed); Label preserves the display form the
// operator typed.
type ModerationEntry struct {
	Value  string    `json:"value"`
	Label  string    `json:"label"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// ModerationSnapshot is the persisted moderation document: blocked senders
// (exact match) and blocked keywords (substring match), two independent lists.
type ModerationSnapshot struct {
	Version         int               `json:"version"`
	BlockedSenders  []ModerationEntry `json:"blockedSenders"`
	BlockedKeywords []ModerationEntry `json:"blockedKeywords"`
}
