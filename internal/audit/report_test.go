package audit

import (
	"testing"
	"time"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

func acceptedAt(l *Log, at time.Time, id, sender string, value float64) {
	prev := l.Now
	l.Now = func() time.Time { return at }
	l.Append(domain.AuditEvent{Type: domain.AuditDonationAccepted, DonationID: id, Sender: sender, Value: value})
	l.Now = prev
}

func TestSummary_Totals(t *testing.T) {
	l := Open("", 100)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	acceptedAt(l, now.Add(-time.Hour), "d1", "Alice", 10)
	acceptedAt(l, now.Add(-50*time.Minute), "d2", "bob", 20)
	acceptedAt(l, now.Add(-40*time.Minute), "d3", "ALICE", 30)
	l.Append(domain.AuditEvent{Type: domain.AuditDonationBlocked, Sender: "Mallory"})
	l.Append(domain.AuditEvent{Type: domain.AuditDonationDuplicate, DonationID: "d1"})
	l.Append(domain.AuditEvent{Type: domain.AuditError, Detail: "boom"})

	s := l.Summary(24)

	if s.Totals.Donations != 3 {
		t.Fatalf("donations = %d, want 3", s.Totals.Donations)
	}
	if s.Totals.Value != 60 {
		t.Fatalf("value = %v, want 60", s.Totals.Value)
	}
	if s.Totals.AverageValue != 20 {
		t.Fatalf("average = %v, want 20", s.Totals.AverageValue)
	}
	// Alice and ALICE fold to one sender.
	if s.Totals.UniqueSenders != 2 {
		t.Fatalf("unique senders = %d, want 2", s.Totals.UniqueSenders)
	}
	if s.Totals.BlockedDonations != 1 || s.Totals.DuplicateDonations != 1 || s.Totals.Errors != 1 {
		t.Fatalf("totals = %+v", s.Totals)
	}
	if s.TopDonation == nil || s.TopDonation.Value != 30 || s.TopDonation.DonationID != "d3" {
		t.Fatalf("top = %+v, want d3/30", s.TopDonation)
	}
	if s.WindowHours != 24 {
		t.Fatalf("window = %d, want 24", s.WindowHours)
	}
}

func TestSummary_WindowExcludesOldEvents(t *testing.T) {
	l := Open("", 100)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	acceptedAt(l, now.Add(-30*time.Hour), "old", "Alice", 500)
	acceptedAt(l, now.Add(-time.Hour), "new", "Bob", 5)

	s := l.Summary(24)
	if s.Totals.Donations != 1 || s.Totals.Value != 5 {
		t.Fatalf("window leaked old events: %+v", s.Totals)
	}
	if s.TopDonation.DonationID != "new" {
		t.Fatalf("top from outside window: %+v", s.TopDonation)
	}
}

func TestSummary_ActionStats(t *testing.T) {
	l := Open("", 100)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	l.Append(domain.AuditEvent{Type: domain.AuditActionExecuted, ActionType: "sfx.play", OK: true})
	l.Append(domain.AuditEvent{Type: domain.AuditActionExecuted, ActionType: "sfx.play", Skipped: true, Reason: "cooldown"})
	l.Append(domain.AuditEvent{Type: domain.AuditActionExecuted, ActionType: "sfx.play", Reason: "boom"})
	l.Append(domain.AuditEvent{Type: domain.AuditActionExecuted, ActionType: "obs.scene", OK: true})

	s := l.Summary(1)
	sfx := s.ActionStats["sfx.play"]
	if sfx.Total != 3 || sfx.OK != 1 || sfx.Skipped != 1 || sfx.Failed != 1 {
		t.Fatalf("sfx stats = %+v", sfx)
	}
	if obs := s.ActionStats["obs.scene"]; obs.Total != 1 || obs.OK != 1 {
		t.Fatalf("obs stats = %+v", obs)
	}
}

func TestSummary_ClampsWindow(t *testing.T) {
	l := Open("", 10)
	l.Now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	if got := l.Summary(0).WindowHours; got != 24 {
		t.Fatalf("hours 0 -> %d, want 24", got)
	}
	if got := l.Summary(100000).WindowHours; got != maxWindowHours {
		t.Fatalf("oversized window -> %d, want %d", got, maxWindowHours)
	}
}

func TestTopSenders_RankingAndTieBreaks(t *testing.T) {
	l := Open("", 100)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	// carol: 50 total in one donation, latest activity.
	acceptedAt(l, now.Add(-10*time.Minute), "c1", "Carol", 50)
	// alice: 50 total across two donations (ties carol on value, wins on count).
	acceptedAt(l, now.Add(-3*time.Hour), "a1", "Alice", 20)
	acceptedAt(l, now.Add(-2*time.Hour), "a2", "alice", 30)
	// bob: 10 total.
	acceptedAt(l, now.Add(-time.Hour), "b1", "Bob", 10)

	ranks := l.TopSenders(24, 10)
	if len(ranks) != 3 {
		t.Fatalf("ranks = %d, want 3", len(ranks))
	}
	if ranks[0].Sender != "alice" && ranks[0].Sender != "Alice" {
		t.Fatalf("rank 1 = %+v, want alice (tie broken by count)", ranks[0])
	}
	if ranks[0].Donations != 2 || ranks[0].TotalValue != 50 {
		t.Fatalf("alice aggregate = %+v", ranks[0])
	}
	if ranks[1].Sender != "Carol" {
		t.Fatalf("rank 2 = %+v, want Carol", ranks[1])
	}
	if ranks[2].Sender != "Bob" {
		t.Fatalf("rank 3 = %+v, want Bob", ranks[2])
	}
}

func TestTopSenders_LastAtTieBreakAndLimit(t *testing.T) {
	l := Open("", 100)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	// Same value, same count; later activity wins.
	acceptedAt(l, now.Add(-2*time.Hour), "e1", "Early", 10)
	acceptedAt(l, now.Add(-time.Hour), "l1", "Late", 10)

	ranks := l.TopSenders(24, 10)
	if ranks[0].Sender != "Late" {
		t.Fatalf("rank 1 = %+v, want Late", ranks[0])
	}

	if got := l.TopSenders(24, 1); len(got) != 1 {
		t.Fatalf("limit ignored: %d", len(got))
	}
}

func TestTopSenders_AnonymousFolded(t *testing.T) {
	l := Open("", 100)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	acceptedAt(l, now.Add(-time.Minute), "x1", "", 5)
	acceptedAt(l, now.Add(-time.Minute), "x2", "   ", 7)

	ranks := l.TopSenders(24, 10)
	if len(ranks) != 1 || ranks[0].Sender != domain.AnonSender || ranks[0].TotalValue != 12 {
		t.Fatalf("anonymous aggregation = %+v", ranks)
	}
}
