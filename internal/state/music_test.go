package state

import "testing"

func TestMusicState_QueueOrder(t *testing.T) {
	m := NewMusicState()

	m.Enqueue(Track{ID: "a"})
	if n := m.Enqueue(Track{ID: "b"}); n != 2 {
		t.Fatalf("queue len after two enqueues = %d, want 2", n)
	}
	m.PushFront(Track{ID: "front"})

	want := []string{"front", "a", "b"}
	for _, id := range want {
		got := m.Shift()
		if got == nil || got.ID != id {
			t.Fatalf("shift = %+v, want id %q", got, id)
		}
	}
	if m.Shift() != nil {
		t.Fatalf("shift on empty queue returned a track")
	}
}

func TestMusicState_ClearAndSnapshot(t *testing.T) {
	m := NewMusicState()
	m.SetCurrent(&Track{ID: "playing"})
	m.Enqueue(Track{ID: "queued"})
	m.SetPlayer(true, true)

	snap := m.Snapshot()
	if snap.Current == nil || snap.Current.ID != "playing" {
		t.Fatalf("snapshot current = %+v", snap.Current)
	}
	if len(snap.Queue) != 1 || snap.Queue[0].ID != "queued" {
		t.Fatalf("snapshot queue = %+v", snap.Queue)
	}
	if !snap.Player.Connected || !snap.Player.Ready || snap.Player.LastSeenAt == nil {
		t.Fatalf("snapshot player = %+v", snap.Player)
	}

	// Mutating the snapshot's queue must not affect internal state.
	snap.Queue[0].ID = "mutated"
	if m.Snapshot().Queue[0].ID != "queued" {
		t.Fatalf("snapshot aliases internal queue")
	}

	m.Clear()
	if m.QueueLen() != 0 {
		t.Fatalf("clear left %d entries", m.QueueLen())
	}
}

func TestMusicState_PlayerReady(t *testing.T) {
	m := NewMusicState()
	if m.PlayerReady() {
		t.Fatalf("fresh state reports ready")
	}
	m.SetPlayer(true, false)
	if m.PlayerReady() {
		t.Fatalf("connected but not ready reports ready")
	}
	m.SetPlayer(true, true)
	if !m.PlayerReady() {
		t.Fatalf("connected and ready reports not ready")
	}
}
