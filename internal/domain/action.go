package domain

import "strings"

// ActionType identifies one of the closed set of side effects the dispatcher
// knows how to execute. Types are namespaced as "<channel>.<kind>".
type ActionType string

// The closed action set. Anything else is reported as unknown by the
// dispatcher rather than silently dropped.
const (
	ActionMusicPlayNow       ActionType = "music.playNow"
	ActionMusicEnqueue       ActionType = "music.enqueue"
	ActionMinecraftRcon      ActionType = "minecraft.rcon"
	ActionMinecraftRconMulti ActionType = "minecraft.rconMulti"
	ActionSystemOpenURL      ActionType = "system.openUrl"
	ActionSfxPlay            ActionType = "sfx.play"
	ActionOBSScene           ActionType = "obs.scene"
	ActionOBSSourcePulse     ActionType = "obs.sourcePulse"
	ActionOBSText            ActionType = "obs.text"
	ActionOBSMediaRestart    ActionType = "obs.mediaRestart"
	ActionOBSMute            ActionType = "obs.mute"
	ActionOBSVolume          ActionType = "obs.volume"
	ActionWebhookRequest     ActionType = "webhook.request"
)

// Channel names used for per-channel conflict resolution. "music" and
// "minecraft" are reserved; every other type prefix collapses into "system".
const (
	ChannelMusic     = "music"
	ChannelMinecraft = "minecraft"
	ChannelSystem    = "system"
)

// Action is an operator-authored action template attached to a rule, plus the
// provenance stamped on it once the owning rule matches. Parameter fields are
// a union over the closed type set; only the fields relevant to Type are read.
type Action struct {
	Type ActionType `json:"type"`

	// Cooldown overrides. When CooldownKey is empty the action type is used;
	// when CooldownMS is nil the global cooldown map is consulted.
	CooldownKey string `json:"cooldownKey,omitempty"`
	CooldownMS  *int64 `json:"cooldownMs,omitempty"`

	// music.*
	VIP bool `json:"vip,omitempty"`

	// minecraft.*
	Command    string `json:"command,omitempty"`
	Count      int    `json:"count,omitempty"`
	IntervalMS int64  `json:"intervalMs,omitempty"`

	// sfx.play
	Src    string   `json:"src,omitempty"`
	Volume *float64 `json:"volume,omitempty"`

	// obs.*
	Scene      string   `json:"scene,omitempty"`
	Source     string   `json:"source,omitempty"`
	DurationMS int64    `json:"durationMs,omitempty"`
	Input      string   `json:"input,omitempty"`
	Text       string   `json:"text,omitempty"`
	Mute       bool     `json:"mute,omitempty"`
	VolumeMul  *float64 `json:"volumeMul,omitempty"`

	// webhook.request
	URL     string            `json:"url,omitempty"`
	Body    map[string]string `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Provenance, stamped by the rule engine when the owning rule matches.
	RuleID       string `json:"_ruleId,omitempty"`
	RulePriority int    `json:"_rulePriority,omitempty"`
}

// Channel derives the conflict-resolution channel from the action type's
// prefix before the first dot.
func (a Action) Channel() string {
	t := string(a.Type)
	if i := strings.IndexByte(t, '.'); i > 0 {
		switch t[:i] {
		case ChannelMusic:
			return ChannelMusic
		case ChannelMinecraft:
			return ChannelMinecraft
		}
	}
	return ChannelSystem
}

// MusicKindScore ranks music actions for conflict resolution: playNow beats
// enqueue beats anything else.
func (a Action) MusicKindScore() int {
	switch a.Type {
	case ActionMusicPlayNow:
		return 2
	case ActionMusicEnqueue:
		return 1
	default:
		return 0
	}
}

// ActionRef is the compact provenance view of a resolved action, recorded on
// leaderboard entries and in audit events.
type ActionRef struct {
	Type     ActionType `json:"type"`
	RuleID   string     `json:"ruleId"`
	Priority int        `json:"priority"`
}

// Ref returns the compact provenance view of the action.
func (a Action) Ref() ActionRef {
	return ActionRef{Type: a.Type, RuleID: a.RuleID, Priority: a.RulePriority}
}
