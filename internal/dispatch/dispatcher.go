// Package dispatch executes a resolved action list against the external
// collaborators: cooldown gating, collaborator invocation, per-action failure
// isolation, and audit recording. The dispatcher holds no action state beyond
// what it reads from the cooldown gate.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/streamrig/go-donation-backend/internal/actions"
	"github.com/streamrig/go-donation-backend/internal/audit"
	"github.com/streamrig/go-donation-backend/internal/domain"
	"github.com/streamrig/go-donation-backend/internal/events"
	"github.com/streamrig/go-donation-backend/internal/state"
)

// Collaborator contracts, implemented by the actions package and faked in
// tests. Every call is best-effort: an error is isolated to that action's
// result and never retried here.

// MusicInvoker plays or queues donation-built tracks.
type MusicInvoker interface {
	BuildTrack(d domain.Donation, ctx domain.Context, vip bool) *state.Track
	PlayNow(t *state.Track)
	Enqueue(t *state.Track)
}

// RconInvoker sends remote-console commands.
type RconInvoker interface {
	Send(command string) (string, error)
	SendMulti(command string, count int, interval time.Duration) error
}

// OBSInvoker drives the scene-control integration.
type OBSInvoker interface {
	SetScene(scene string) error
	PulseSource(scene, source string, duration time.Duration) error
	SetText(input, text string) error
	MediaRestart(input string) error
	SetMute(input string, mute bool) error
	SetVolume(input string, volumeMul float64) error
}

// WebhookPoster posts JSON to allow-listed hosts.
type WebhookPoster interface {
	Post(ctx context.Context, target string, body map[string]string, headers map[string]string) (actions.WebhookResult, error)
}

// URLOpener opens a URL on the host machine.
type URLOpener func(url string) error

// Result is the outcome of one dispatched action.
type Result struct {
	Type    domain.ActionType `json:"type"`
	RuleID  string            `json:"ruleId,omitempty"`
	OK      bool              `json:"ok"`
	Skipped bool              `json:"skipped,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}

// Dispatcher wires the cooldown gate, the collaborators, the event sink, and
// the audit log.
type Dispatcher struct {
	Gate    *state.CooldownGate
	Music   MusicInvoker
	Rcon    RconInvoker
	OBS     OBSInvoker
	Webhook WebhookPoster
	OpenURL URLOpener
	Sink    events.Publisher
	Audit   *audit.Log
}

// ExecuteBatch runs the resolved actions strictly in order. Each action is
// cooldown-gated, executed, and audited independently; a failure never stops
// the remainder of the batch.
func (dp *Dispatcher) ExecuteBatch(ctx context.Context, d domain.Donation, dctx domain.Context, batch []domain.Action, cfg domain.RulesConfig) []Result {
	results := make([]Result, 0, len(batch))
	for _, a := range batch {
		res := dp.executeOne(ctx, d, dctx, a, cfg)
		results = append(results, res)

		dp.Audit.Append(domain.AuditEvent{
			Type:       domain.AuditActionExecuted,
			DonationID: d.ID,
			Sender:     d.Sender,
			Value:      d.Value,
			ActionType: string(a.Type),
			RuleID:     a.RuleID,
			OK:         res.OK,
			Skipped:    res.Skipped,
			Reason:     res.Reason,
		})
	}
	return results
}

func (dp *Dispatcher) executeOne(ctx context.Context, d domain.Donation, dctx domain.Context, a domain.Action, cfg domain.RulesConfig) Result {
	res := Result{Type: a.Type, RuleID: a.RuleID}

	key := a.CooldownKey
	if key == "" {
		key = string(a.Type)
	}
	window := cooldownWindow(a, cfg)

	if !dp.Gate.CanRun(key, window) {
		res.Skipped = true
		res.Reason = "cooldown"
		observeAction(a.Type, "skipped", 0)
		return res
	}
	dp.Gate.MarkRan(key)

	start := time.Now()
	if err := dp.invoke(ctx, d, dctx, a); err != nil {
		res.Reason = err.Error()
		observeAction(a.Type, "failed", time.Since(start))
		return res
	}
	res.OK = true
	observeAction(a.Type, "ok", time.Since(start))
	return res
}

// invoke is the exhaustive dispatch over the closed action set. A panicking
// collaborator is converted into an error so the batch keeps going.
func (dp *Dispatcher) invoke(ctx context.Context, d domain.Donation, dctx domain.Context, a domain.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()

	switch a.Type {
	case domain.ActionMusicPlayNow:
		t := dp.Music.BuildTrack(d, dctx, a.VIP)
		if t == nil {
			return fmt.Errorf("track not supported")
		}
		dp.Music.PlayNow(t)
		return nil

	case domain.ActionMusicEnqueue:
		t := dp.Music.BuildTrack(d, dctx, false)
		if t == nil {
			return fmt.Errorf("track not supported")
		}
		dp.Music.Enqueue(t)
		return nil

	case domain.ActionMinecraftRcon:
		_, err := dp.Rcon.Send(actions.ExpandTemplate(a.Command, d, dctx))
		return err

	case domain.ActionMinecraftRconMulti:
		return dp.Rcon.SendMulti(actions.ExpandTemplate(a.Command, d, dctx), a.Count, time.Duration(a.IntervalMS)*time.Millisecond)

	case domain.ActionSystemOpenURL:
		if dctx.URL == "" {
			return fmt.Errorf("missing url")
		}
		return dp.OpenURL(dctx.URL)

	case domain.ActionSfxPlay:
		if a.Src == "" {
			return fmt.Errorf("missing src")
		}
		dp.Sink.Publish(events.TopicSfxPlay, map[string]any{"src": a.Src, "volume": a.Volume})
		return nil

	case domain.ActionOBSScene:
		return dp.OBS.SetScene(a.Scene)

	case domain.ActionOBSSourcePulse:
		return dp.OBS.PulseSource(a.Scene, a.Source, time.Duration(a.DurationMS)*time.Millisecond)

	case domain.ActionOBSText:
		return dp.OBS.SetText(a.Input, actions.ExpandTemplate(a.Text, d, dctx))

	case domain.ActionOBSMediaRestart:
		return dp.OBS.MediaRestart(a.Input)

	case domain.ActionOBSMute:
		return dp.OBS.SetMute(a.Input, a.Mute)

	case domain.ActionOBSVolume:
		if a.VolumeMul == nil {
			return fmt.Errorf("missing volumeMul")
		}
		return dp.OBS.SetVolume(a.Input, *a.VolumeMul)

	case domain.ActionWebhookRequest:
		target := actions.ExpandTemplate(a.URL, d, dctx)
		body := actions.ExpandTemplateMap(a.Body, d, dctx)
		headers := actions.ExpandTemplateMap(a.Headers, d, dctx)
		_, err := dp.Webhook.Post(ctx, target, body, headers)
		return err

	default:
		return fmt.Errorf("unknown_action:%s", a.Type)
	}
}

// cooldownWindow resolves the effective window: explicit override first, then
// the global per-type map, else unthrottled.
func cooldownWindow(a domain.Action, cfg domain.RulesConfig) time.Duration {
	if a.CooldownMS != nil {
		return time.Duration(*a.CooldownMS) * time.Millisecond
	}
	if ms, ok := cfg.Cooldowns[a.Type]; ok {
		return time.Duration(ms) * time.Millisecond
	}
	return 0
}
