package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

func don(id string, value float64) domain.Donation {
	return domain.Donation{ID: id, At: time.Now(), Value: value, Sender: "S", Message: "m"}
}

func TestLeaderboard_AddAndTop(t *testing.T) {
	lb := NewLeaderboard(10)

	res := lb.Add(don("d1", 10))
	if res.Duplicate {
		t.Fatalf("first add reported duplicate")
	}
	if !res.NewTop {
		t.Fatalf("first donation must become top")
	}
	if res.Top == nil || res.Top.Value != 10 {
		t.Fatalf("top = %+v, want value 10", res.Top)
	}

	// A lower value is not a new top.
	res = lb.Add(don("d2", 5))
	if res.NewTop {
		t.Fatalf("lower value reported as new top")
	}

	// A strictly higher value is.
	res = lb.Add(don("d3", 25))
	if !res.NewTop || res.Top.Value != 25 {
		t.Fatalf("higher value not promoted: %+v", res)
	}
}

func TestLeaderboard_TieIsNotNewTop(t *testing.T) {
	lb := NewLeaderboard(10)
	lb.Add(don("d1", 30))

	if lb.IsNewTop(30) {
		t.Fatalf("tie must not be a new top")
	}
	if res := lb.Add(don("d2", 30)); res.NewTop {
		t.Fatalf("equal-value donation promoted to top")
	}
	if got := lb.Top(); got.ID != "d1" {
		t.Fatalf("top id = %q, want d1 (first holder keeps the title)", got.ID)
	}
}

func TestLeaderboard_DuplicateID(t *testing.T) {
	lb := NewLeaderboard(10)
	lb.Add(don("dup", 10))

	res := lb.Add(don("dup", 999))
	if !res.Duplicate {
		t.Fatalf("second add of same id not reported duplicate")
	}
	if lb.Len() != 1 {
		t.Fatalf("len = %d, want 1", lb.Len())
	}
	if top := lb.Top(); top.Value != 10 {
		t.Fatalf("duplicate mutated top: %+v", top)
	}
}

func TestLeaderboard_EvictionFreesID(t *testing.T) {
	lb := NewLeaderboard(2)
	lb.Add(don("a", 1))
	lb.Add(don("b", 2))
	lb.Add(don("c", 3)) // evicts "a"

	if lb.Len() != 2 {
		t.Fatalf("len = %d, want 2", lb.Len())
	}
	recent := lb.Recent()
	if recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("recent order = %v, want [c b]", []string{recent[0].ID, recent[1].ID})
	}

	// The evicted id is free for reuse.
	if res := lb.Add(don("a", 4)); res.Duplicate {
		t.Fatalf("evicted id still counted as duplicate")
	}

	// Top survives eviction of its donation from the window.
	if top := lb.Top(); top == nil || top.Value != 4 {
		t.Fatalf("top = %+v, want value 4", top)
	}
}

func TestLeaderboard_ConcurrentSameID(t *testing.T) {
	lb := NewLeaderboard(80)

	const workers = 32
	var wg sync.WaitGroup
	dups := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dups <- lb.Add(don("same", 10)).Duplicate
		}()
	}
	wg.Wait()
	close(dups)

	accepted := 0
	for d := range dups {
		if !d {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("%d concurrent adds of one id accepted, want exactly 1", accepted)
	}
	if lb.Len() != 1 {
		t.Fatalf("len = %d, want 1", lb.Len())
	}
}

func TestLeaderboard_WindowCapacity(t *testing.T) {
	lb := NewLeaderboard(0) // falls back to default
	for i := 0; i < DefaultMaxDonations+20; i++ {
		lb.Add(don(fmt.Sprintf("d%d", i), float64(i)))
	}
	if lb.Len() != DefaultMaxDonations {
		t.Fatalf("len = %d, want %d", lb.Len(), DefaultMaxDonations)
	}
}
