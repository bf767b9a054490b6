package state

import (
	"sync"
	"time"
)

// Track is one playable entry built from a donation whose message carried a
// whitelisted, recognized video URL.
type Track struct {
	ID          string    `json:"id"`
	At          time.Time `json:"at"`
	URL         string    `json:"url"`
	VideoID     string    `json:"videoId"`
	VIP         bool      `json:"vip"`
	RequestedBy string    `json:"requestedBy"`
	Value       float64   `json:"value"`
	Message     string    `json:"message,omitempty"`
}

// PlayerStatus mirrors the remote player's connection lifecycle.
type PlayerStatus struct {
	Connected  bool       `json:"connected"`
	Ready      bool       `json:"ready"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// MusicSnapshot is the externally visible music state.
type MusicSnapshot struct {
	Current *Track       `json:"current"`
	Queue   []Track      `json:"queue"`
	Player  PlayerStatus `json:"player"`
}

// MusicState owns the current track, the FIFO queue, and the player status.
// All mutation goes through its methods; the music manager layers playback
// policy on top.
type MusicState struct {
	mu      sync.Mutex
	current *Track
	queue   []Track
	player  PlayerStatus

	Now func() time.Time
}

// NewMusicState constructs an empty music state on the wall clock.
func NewMusicState() *MusicState {
	return &MusicState{Now: time.Now}
}

// Snapshot returns a copy of the music state.
func (m *MusicState) Snapshot() MusicSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := make([]Track, len(m.queue))
	copy(q, m.queue)
	return MusicSnapshot{Current: m.current, Queue: q, Player: m.player}
}

// Current returns the playing track, or nil.
func (m *MusicState) Current() *Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetCurrent replaces the playing track (nil stops playback).
func (m *MusicState) SetCurrent(t *Track) {
	m.mu.Lock()
	m.current = t
	m.mu.Unlock()
}

// Enqueue appends a track to the queue and returns the new queue length.
func (m *MusicState) Enqueue(t Track) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, t)
	return len(m.queue)
}

// PushFront puts a track at the head of the queue (used by the resume
// interrupt behavior).
func (m *MusicState) PushFront(t Track) {
	m.mu.Lock()
	m.queue = append([]Track{t}, m.queue...)
	m.mu.Unlock()
}

// Shift removes and returns the head of the queue, or nil when empty.
func (m *MusicState) Shift() *Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	t := m.queue[0]
	m.queue = m.queue[1:]
	return &t
}

// Clear empties the queue.
func (m *MusicState) Clear() {
	m.mu.Lock()
	m.queue = nil
	m.mu.Unlock()
}

// QueueLen returns the queue length.
func (m *MusicState) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// SetPlayer updates the player's connection flags and stamps last-seen.
func (m *MusicState) SetPlayer(connected, ready bool) {
	m.mu.Lock()
	now := m.Now()
	m.player.Connected = connected
	m.player.Ready = ready
	m.player.LastSeenAt = &now
	m.mu.Unlock()
}

// PlayerReady reports whether the remote player is connected and ready.
func (m *MusicState) PlayerReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.player.Connected && m.player.Ready
}
