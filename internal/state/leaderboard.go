// Package state owns the pipeline's in-process mutable stores: the bounded
// leaderboard of recent donations, the cooldown map, and the music queue.
// Each store guards its own state with a mutex and is mutated only through
// its methods.
package state

import (
	"sync"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

// DefaultMaxDonations bounds the in-memory donation window.
const DefaultMaxDonations = 80

// AddResult reports the outcome of recording one donation.
type AddResult struct {
	Duplicate bool
	NewTop    bool
	Top       *domain.TopDonation
}

// Leaderboard deduplicates donations by id and tracks the highest-value
// donation seen. It keeps a bounded most-recent-first window of donations for
// display; eviction removes the evicted id from the dedup index in the same
// step.
type Leaderboard struct {
	mu        sync.Mutex
	max       int
	donations []domain.Donation
	ids       map[string]struct{}
	top       *domain.TopDonation
}

// NewLeaderboard constructs a leaderboard with the given window capacity;
// values <= 0 fall back to DefaultMaxDonations.
func NewLeaderboard(maxDonations int) *Leaderboard {
	if maxDonations <= 0 {
		maxDonations = DefaultMaxDonations
	}
	return &Leaderboard{
		max: maxDonations,
		ids: make(map[string]struct{}),
	}
}

// Add records a donation. The dedup check, insertion, eviction, and top
// update happen under one lock acquisition so two redeliveries of the same id
// can never both pass the duplicate check.
func (l *Leaderboard) Add(d domain.Donation) AddResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.ids[d.ID]; dup {
		return AddResult{Duplicate: true, Top: l.top}
	}

	l.donations = append([]domain.Donation{d}, l.donations...)
	l.ids[d.ID] = struct{}{}
	for len(l.donations) > l.max {
		evicted := l.donations[len(l.donations)-1]
		l.donations = l.donations[:len(l.donations)-1]
		delete(l.ids, evicted.ID)
	}

	if l.top == nil || d.Value > l.top.Value {
		l.top = &domain.TopDonation{
			ID: d.ID, At: d.At, Value: d.Value, Sender: d.Sender, Message: d.Message,
		}
		return AddResult{NewTop: true, Top: l.top}
	}

	return AddResult{Top: l.top}
}

// Top returns the current top-donation snapshot, or nil when nothing has been
// recorded.
func (l *Leaderboard) Top() *domain.TopDonation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.top
}

// IsNewTop reports whether value would strictly exceed the current top. Ties
// are not a new top.
func (l *Leaderboard) IsNewTop(value float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.top == nil || value > l.top.Value
}

// Recent returns a copy of the retained donation window, most recent first.
func (l *Leaderboard) Recent() []domain.Donation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Donation, len(l.donations))
	copy(out, l.donations)
	return out
}

// Len returns the number of retained donations.
func (l *Leaderboard) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.donations)
}
