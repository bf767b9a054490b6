package audit

import (
	"sort"
	"time"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

const (
	minWindowHours = 1
	maxWindowHours = 24 * 30
)

func clampHours(hours int) int {
	if hours < minWindowHours {
		return 24
	}
	if hours > maxWindowHours {
		return maxWindowHours
	}
	return hours
}

// Summary computes the windowed aggregation over the in-memory view in a
// single pass: accepted-donation totals, unique senders, blocked/duplicate/
// error counts, the highest-value donation, and per-action-type outcome
// tallies.
func (l *Log) Summary(hours int) domain.Summary {
	h := clampHours(hours)
	since := l.Now().Add(-time.Duration(h) * time.Hour)

	s := domain.Summary{
		GeneratedAt: l.Now(),
		WindowHours: h,
		ActionStats: make(map[domain.ActionType]domain.ActionStat),
	}
	uniqueSenders := make(map[string]struct{})

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.events {
		if e.At.Before(since) {
			continue
		}

		switch e.Type {
		case domain.AuditDonationAccepted:
			s.Totals.Donations++
			s.Totals.Value += e.Value
			sender := domain.NormalizeSender(e.Sender)
			uniqueSenders[normalizeKey(sender)] = struct{}{}
			if s.TopDonation == nil || e.Value > s.TopDonation.Value {
				s.TopDonation = &domain.SummaryTop{
					DonationID: e.DonationID,
					Sender:     sender,
					Value:      e.Value,
				}
			}
		case domain.AuditDonationBlocked:
			s.Totals.BlockedDonations++
		case domain.AuditDonationDuplicate:
			s.Totals.DuplicateDonations++
		case domain.AuditError:
			s.Totals.Errors++
		case domain.AuditActionExecuted:
			name := domain.ActionType(e.ActionType)
			if name == "" {
				name = "unknown"
			}
			st := s.ActionStats[name]
			st.Total++
			switch {
			case e.Skipped:
				st.Skipped++
			case e.OK:
				st.OK++
			default:
				st.Failed++
			}
			s.ActionStats[name] = st
		}
	}

	s.Totals.UniqueSenders = len(uniqueSenders)
	if s.Totals.Donations > 0 {
		s.Totals.AverageValue = s.Totals.Value / float64(s.Totals.Donations)
	}
	return s
}

// TopSenders ranks accepted-donation senders inside the window by total value
// descending, breaking ties by donation count descending and then by most
// recent activity.
func (l *Log) TopSenders(hours, limit int) []domain.SenderRank {
	h := clampHours(hours)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	since := l.Now().Add(-time.Duration(h) * time.Hour)

	bySender := make(map[string]*domain.SenderRank)

	l.mu.Lock()
	for _, e := range l.events {
		if e.Type != domain.AuditDonationAccepted || e.At.Before(since) {
			continue
		}
		sender := domain.NormalizeSender(e.Sender)
		key := normalizeKey(sender)
		r, ok := bySender[key]
		if !ok {
			r = &domain.SenderRank{Sender: sender}
			bySender[key] = r
		}
		r.Sender = sender
		r.Donations++
		r.TotalValue += e.Value
		if e.At.After(r.LastAt) {
			r.LastAt = e.At
		}
	}
	l.mu.Unlock()

	out := make([]domain.SenderRank, 0, len(bySender))
	for _, r := range bySender {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalValue != out[j].TotalValue {
			return out[i].TotalValue > out[j].TotalValue
		}
		if out[i].Donations != out[j].Donations {
			return out[i].Donations > out[j].Donations
		}
		return out[i].LastAt.After(out[j].LastAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
