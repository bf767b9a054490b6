// Package events defines the outbound event-sink contract used by the
// pipeline and the music manager to notify observers (overlays, dashboards)
// of state transitions. The decision pipeline publishes through this
// interface only; it has no dependency on any transport.
package events

import "github.com/rs/zerolog"

// Topics published by the pipeline and the music manager.
const (
	TopicDonationNew     = "donation:new"
	TopicDonationTop     = "donation:top"
	TopicDonationActions = "donation:actions"
	TopicStateUpdate     = "state:update"
	TopicMusicPlay       = "music:play"
	TopicMusicStop       = "music:stop"
	TopicSfxPlay         = "sfx:play"
	TopicRulesReloaded   = "rules:reloaded"
)

// Publisher delivers a payload to every observer of a topic. Implementations
// must not block the caller on slow observers and must never return control
// flow errors into the pipeline; publishing is fire-and-forget.
type Publisher interface {
	Publish(topic string, payload any)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(topic string, payload any)

// Publish implements Publisher.
func (f PublisherFunc) Publish(topic string, payload any) { f(topic, payload) }

// Discard is a Publisher that drops every event.
var Discard Publisher = PublisherFunc(func(string, any) {})

// LogSink publishes events as structured debug logs. It is the default sink
// when no broadcast transport is wired in.
type LogSink struct {
	Logger zerolog.Logger
}

// Publish implements Publisher.
func (s LogSink) Publish(topic string, payload any) {
	s.Logger.Debug().Str("topic", topic).Interface("payload", payload).Msg("event")
}

// Fanout replicates every event to each of its sinks in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(topic string, payload any) {
	for _, p := range f {
		p.Publish(topic, payload)
	}
}
