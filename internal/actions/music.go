package actions

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/streamrig/go-donation-backend/internal/domain"
	"github.com/streamrig/go-donation-backend/internal/events"
	"github.com/streamrig/go-donation-backend/internal/state"
)

// InterruptBehavior decides what happens to the playing track when a playNow
// action interrupts it.
type InterruptBehavior string

const (
	// InterruptDrop discards the interrupted track.
	InterruptDrop InterruptBehavior = "drop"
	// InterruptResume puts the interrupted track back at the queue head.
	InterruptResume InterruptBehavior = "resume"
)

// MusicManager layers playback policy over MusicState and publishes every
// transition through the event sink so overlays and the remote player stay
// in sync. It holds no state of its own.
type MusicManager struct {
	State     *state.MusicState
	Sink      events.Publisher
	Interrupt InterruptBehavior
}

// NewMusicManager wires a manager to its state and sink.
func NewMusicManager(st *state.MusicState, sink events.Publisher, interrupt InterruptBehavior) *MusicManager {
	if interrupt != InterruptResume {
		interrupt = InterruptDrop
	}
	return &MusicManager{State: st, Sink: sink, Interrupt: interrupt}
}

// BuildTrack converts a donation with a whitelisted, recognized video URL
// into a playable track. Returns nil when the context has no usable video.
func (m *MusicManager) BuildTrack(d domain.Donation, ctx domain.Context, vip bool) *state.Track {
	if ctx.URL == "" {
		return nil
	}
	if ctx.VideoID == "" {
		log.Warn().Str("url", ctx.URL).Msg("url not supported by player (missing video id)")
		return nil
	}
	return &state.Track{
		ID:          "trk_" + uuid.NewString(),
		At:          time.Now(),
		URL:         ctx.URL,
		VideoID:     ctx.VideoID,
		VIP:         vip,
		RequestedBy: d.Sender,
		Value:       d.Value,
		Message:     d.Message,
	}
}

// PlayNow interrupts the current track with t, honoring the configured
// interrupt behavior.
func (m *MusicManager) PlayNow(t *state.Track) {
	if t == nil {
		return
	}
	if current := m.State.Current(); current != nil && m.Interrupt == InterruptResume {
		m.State.PushFront(*current)
	}
	m.State.SetCurrent(t)
	m.Sink.Publish(events.TopicMusicPlay, t)
	m.publishState()
}

// Enqueue appends t to the queue, starting playback when the player is idle
// and ready.
func (m *MusicManager) Enqueue(t *state.Track) {
	if t == nil {
		return
	}
	m.State.Enqueue(*t)
	m.publishState()

	if m.State.Current() == nil && m.State.PlayerReady() {
		m.PlayNext()
	}
}

// PlayNext advances the queue, stopping playback when it is empty.
func (m *MusicManager) PlayNext() {
	next := m.State.Shift()
	m.State.SetCurrent(next)
	if next != nil {
		m.Sink.Publish(events.TopicMusicPlay, next)
	} else {
		m.Sink.Publish(events.TopicMusicStop, nil)
	}
	m.publishState()
}

// Skip drops the current track and advances the queue.
func (m *MusicManager) Skip() {
	log.Info().Msg("music skip requested")
	m.PlayNext()
}

// ClearQueue empties the queue without touching the current track.
func (m *MusicManager) ClearQueue() {
	m.State.Clear()
	m.publishState()
}

// OnPlayerConnected records that the remote player attached.
func (m *MusicManager) OnPlayerConnected() {
	m.State.SetPlayer(true, false)
	m.publishState()
}

// OnPlayerDisconnected records that the remote player detached.
func (m *MusicManager) OnPlayerDisconnected() {
	m.State.SetPlayer(false, false)
	m.publishState()
}

// OnPlayerReady marks the player ready, re-sends the current track (helps on
// refresh), and otherwise starts the queue.
func (m *MusicManager) OnPlayerReady() {
	m.State.SetPlayer(true, true)
	m.publishState()

	if current := m.State.Current(); current != nil {
		m.Sink.Publish(events.TopicMusicPlay, current)
		return
	}
	if m.State.QueueLen() > 0 {
		m.PlayNext()
	}
}

func (m *MusicManager) publishState() {
	m.Sink.Publish(events.TopicStateUpdate, m.State.Snapshot())
}
