package state

import (
	"sync"
	"time"
)

// CooldownGate rate-limits actions per cooldown key. It only remembers the
// last firing time per key; there is no persistence, so cooldowns reset on
// restart.
type CooldownGate struct {
	mu   sync.Mutex
	last map[string]time.Time

	// Now is the clock used for window checks; tests override it.
	Now func() time.Time
}

// NewCooldownGate constructs an empty gate on the wall clock.
func NewCooldownGate() *CooldownGate {
	return &CooldownGate{
		last: make(map[string]time.Time),
		Now:  time.Now,
	}
}

// CanRun reports whether an action keyed by key may fire given the cooldown
// window. A non-positive window never throttles; a key that has never fired
// is always allowed. CanRun does not update the last-fired time; a blocked
// check must not extend the cooldown.
func (g *CooldownGate) CanRun(key string, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[key]
	if !ok {
		return true
	}
	return g.Now().Sub(last) >= window
}

// MarkRan records now as key's last firing time. Call it only when the gated
// action is actually about to run.
func (g *CooldownGate) MarkRan(key string) {
	g.mu.Lock()
	g.last[key] = g.Now()
	g.mu.Unlock()
}
