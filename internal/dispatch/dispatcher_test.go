package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/streamrig/go-donation-backend/internal/actions"
	"github.com/streamrig/go-donation-backend/internal/audit"
	"github.com/streamrig/go-donation-backend/internal/domain"
	"github.com/streamrig/go-donation-backend/internal/events"
	"github.com/streamrig/go-donation-backend/internal/state"
)

type fakeMusic struct {
	built    int
	playNow  []*state.Track
	enqueued []*state.Track
	buildNil bool
}

func (f *fakeMusic) BuildTrack(d domain.Donation, ctx domain.Context, vip bool) *state.Track {
	f.built++
	if f.buildNil {
		return nil
	}
	return &state.Track{ID: "trk_" + d.ID, URL: ctx.URL, VideoID: ctx.VideoID, VIP: vip}
}
func (f *fakeMusic) PlayNow(t *state.Track) { f.playNow = append(f.playNow, t) }
func (f *fakeMusic) Enqueue(t *state.Track) { f.enqueued = append(f.enqueued, t) }

type fakeRcon struct {
	sent  []string
	multi []string
	err   error
	panic bool
}

func (f *fakeRcon) Send(command string) (string, error) {
	if f.panic {
		panic("rcon connection torn down")
	}
	f.sent = append(f.sent, command)
	return "", f.err
}
func (f *fakeRcon) SendMulti(command string, count int, interval time.Duration) error {
	f.multi = append(f.multi, command)
	return f.err
}

type fakeOBS struct {
	scenes []string
	texts  []string
	err    error
}

func (f *fakeOBS) SetScene(scene string) error { f.scenes = append(f.scenes, scene); return f.err }
func (f *fakeOBS) PulseSource(scene, source string, d time.Duration) error { return f.err }
func (f *fakeOBS) SetText(input, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}
func (f *fakeOBS) MediaRestart(input string) error          { return f.err }
func (f *fakeOBS) SetMute(input string, mute bool) error    { return f.err }
func (f *fakeOBS) SetVolume(input string, v float64) error  { return f.err }

type fakeWebhook struct {
	targets []string
	bodies  []map[string]string
	err     error
}

func (f *fakeWebhook) Post(ctx context.Context, target string, body map[string]string, headers map[string]string) (actions.WebhookResult, error) {
	f.targets = append(f.targets, target)
	f.bodies = append(f.bodies, body)
	return actions.WebhookResult{Status: 200}, f.err
}

type deps struct {
	music   *fakeMusic
	rcon    *fakeRcon
	obs     *fakeOBS
	webhook *fakeWebhook
	opened  []string
	audit   *audit.Log
	gate    *state.CooldownGate
}

func newDispatcher(t *testing.T) (*Dispatcher, *deps) {
	t.Helper()
	d := &deps{
		music:   &fakeMusic{},
		rcon:    &fakeRcon{},
		obs:     &fakeOBS{},
		webhook: &fakeWebhook{},
		audit:   audit.Open("", 100),
		gate:    state.NewCooldownGate(),
	}
	dp := &Dispatcher{
		Gate:    d.gate,
		Music:   d.music,
		Rcon:    d.rcon,
		OBS:     d.obs,
		Webhook: d.webhook,
		OpenURL: func(u string) error { d.opened = append(d.opened, u); return nil },
		Sink:    events.Discard,
		Audit:   d.audit,
	}
	return dp, d
}

func donation() domain.Donation {
	return domain.Donation{ID: "lp_1", Sender: "Alice", Value: 25, Message: "gg"}
}

func TestExecuteBatch_OrderAndIsolation(t *testing.T) {
	dp, d := newDispatcher(t)
	d.obs.err = errors.New("obs down")

	batch := []domain.Action{
		{Type: domain.ActionOBSScene, Scene: "alert", RuleID: "r1"},
		{Type: domain.ActionMinecraftRcon, Command: "say {sender}", RuleID: "r2"},
	}
	results := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, batch, domain.RulesConfig{})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].OK || results[0].Reason != "obs down" {
		t.Fatalf("failing action result = %+v", results[0])
	}
	if !results[1].OK {
		t.Fatalf("second action did not run after first failed: %+v", results[1])
	}
	if len(d.rcon.sent) != 1 || d.rcon.sent[0] != "say Alice" {
		t.Fatalf("rcon sent = %v", d.rcon.sent)
	}
}

func TestExecuteBatch_AuditsEveryAction(t *testing.T) {
	dp, d := newDispatcher(t)

	batch := []domain.Action{
		{Type: domain.ActionOBSScene, Scene: "a", RuleID: "r1"},
		{Type: domain.ActionSfxPlay, Src: "boom.mp3", RuleID: "r2"},
	}
	dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, batch, domain.RulesConfig{})

	got := d.audit.Query(audit.QueryOptions{Type: domain.AuditActionExecuted})
	if len(got) != 2 {
		t.Fatalf("audit records = %d, want 2", len(got))
	}
	for _, e := range got {
		if e.DonationID != "lp_1" || !e.OK {
			t.Fatalf("audit record = %+v", e)
		}
	}
}

func TestExecuteBatch_CooldownSkips(t *testing.T) {
	dp, _ := newDispatcher(t)
	cfg := domain.RulesConfig{Cooldowns: map[domain.ActionType]int64{domain.ActionOBSScene: 60_000}}

	a := domain.Action{Type: domain.ActionOBSScene, Scene: "alert"}
	first := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, cfg)
	second := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, cfg)

	if !first[0].OK {
		t.Fatalf("first run = %+v", first[0])
	}
	if !second[0].Skipped || second[0].Reason != "cooldown" {
		t.Fatalf("second run = %+v, want cooldown skip", second[0])
	}
}

func TestExecuteBatch_CooldownKeyOverride(t *testing.T) {
	dp, _ := newDispatcher(t)
	cfg := domain.RulesConfig{Cooldowns: map[domain.ActionType]int64{domain.ActionOBSScene: 60_000}}

	shared := domain.Action{Type: domain.ActionOBSScene, Scene: "a", CooldownKey: "alerts"}
	other := domain.Action{Type: domain.ActionOBSScene, Scene: "b"}

	dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{shared}, cfg)
	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{other}, cfg)

	// Distinct keys do not share a window.
	if !res[0].OK {
		t.Fatalf("action with separate key was throttled: %+v", res[0])
	}
}

func TestExecuteBatch_CooldownMSOverridesGlobal(t *testing.T) {
	dp, _ := newDispatcher(t)
	zero := int64(0)
	cfg := domain.RulesConfig{Cooldowns: map[domain.ActionType]int64{domain.ActionOBSScene: 60_000}}
	a := domain.Action{Type: domain.ActionOBSScene, Scene: "a", CooldownMS: &zero}

	dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, cfg)
	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, cfg)

	if !res[0].OK {
		t.Fatalf("zero override still throttled: %+v", res[0])
	}
}

func TestExecuteBatch_SkipDoesNotMarkRan(t *testing.T) {
	dp, d := newDispatcher(t)
	now := time.Now()
	d.gate.Now = func() time.Time { return now }
	cfg := domain.RulesConfig{Cooldowns: map[domain.ActionType]int64{domain.ActionSfxPlay: 10_000}}
	a := domain.Action{Type: domain.ActionSfxPlay, Src: "s.mp3"}

	dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, cfg)

	// Blocked checks inside the window must not extend it.
	now = now.Add(9 * time.Second)
	mid := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, cfg)
	if !mid[0].Skipped {
		t.Fatalf("mid-window run = %+v", mid[0])
	}

	now = now.Add(time.Second)
	after := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, cfg)
	if !after[0].OK {
		t.Fatalf("boundary run = %+v, want allowed", after[0])
	}
}

func TestInvoke_PanicRecovered(t *testing.T) {
	dp, d := newDispatcher(t)
	d.rcon.panic = true

	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{},
		[]domain.Action{{Type: domain.ActionMinecraftRcon, Command: "kill"}}, domain.RulesConfig{})

	if res[0].OK || res[0].Reason == "" {
		t.Fatalf("panicking action = %+v, want error result", res[0])
	}
}

func TestInvoke_MusicActions(t *testing.T) {
	dp, d := newDispatcher(t)
	ctx := domain.Context{URL: "https://youtu.be/abc", VideoID: "abc"}

	res := dp.ExecuteBatch(context.Background(), donation(), ctx, []domain.Action{
		{Type: domain.ActionMusicPlayNow, VIP: true},
		{Type: domain.ActionMusicEnqueue},
	}, domain.RulesConfig{})

	if !res[0].OK || !res[1].OK {
		t.Fatalf("results = %+v", res)
	}
	if len(d.music.playNow) != 1 || !d.music.playNow[0].VIP {
		t.Fatalf("playNow = %+v", d.music.playNow)
	}
	if len(d.music.enqueued) != 1 || d.music.enqueued[0].VIP {
		t.Fatalf("enqueued = %+v", d.music.enqueued)
	}
}

func TestInvoke_MusicUnsupportedTrack(t *testing.T) {
	dp, d := newDispatcher(t)
	d.music.buildNil = true

	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{},
		[]domain.Action{{Type: domain.ActionMusicEnqueue}}, domain.RulesConfig{})

	if res[0].OK || res[0].Reason != "track not supported" {
		t.Fatalf("result = %+v", res[0])
	}
	if len(d.music.enqueued) != 0 {
		t.Fatalf("nil track was enqueued")
	}
}

func TestInvoke_OpenURLRequiresContextURL(t *testing.T) {
	dp, d := newDispatcher(t)

	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{},
		[]domain.Action{{Type: domain.ActionSystemOpenURL}}, domain.RulesConfig{})
	if res[0].OK {
		t.Fatalf("open without url = %+v", res[0])
	}

	res = dp.ExecuteBatch(context.Background(), donation(), domain.Context{URL: "https://youtu.be/x"},
		[]domain.Action{{Type: domain.ActionSystemOpenURL}}, domain.RulesConfig{})
	if !res[0].OK || len(d.opened) != 1 || d.opened[0] != "https://youtu.be/x" {
		t.Fatalf("opened = %v result = %+v", d.opened, res[0])
	}
}

func TestInvoke_WebhookTemplating(t *testing.T) {
	dp, d := newDispatcher(t)

	a := domain.Action{
		Type: domain.ActionWebhookRequest,
		URL:  "https://hooks.example.com/d/{id}",
		Body: map[string]string{"who": "{sender}"},
	}
	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{}, []domain.Action{a}, domain.RulesConfig{})

	if !res[0].OK {
		t.Fatalf("result = %+v", res[0])
	}
	if d.webhook.targets[0] != "https://hooks.example.com/d/lp_1" {
		t.Fatalf("target = %q", d.webhook.targets[0])
	}
	if d.webhook.bodies[0]["who"] != "Alice" {
		t.Fatalf("body = %+v", d.webhook.bodies[0])
	}
}

func TestInvoke_OBSTextTemplated(t *testing.T) {
	dp, d := newDispatcher(t)

	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{},
		[]domain.Action{{Type: domain.ActionOBSText, Input: "label", Text: "{sender}: {value}"}}, domain.RulesConfig{})

	if !res[0].OK || d.obs.texts[0] != "Alice: 25" {
		t.Fatalf("texts = %v result = %+v", d.obs.texts, res[0])
	}
}

func TestInvoke_OBSVolumeRequiresMultiplier(t *testing.T) {
	dp, _ := newDispatcher(t)

	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{},
		[]domain.Action{{Type: domain.ActionOBSVolume, Input: "mic"}}, domain.RulesConfig{})
	if res[0].OK {
		t.Fatalf("missing volumeMul accepted: %+v", res[0])
	}
}

func TestInvoke_UnknownAction(t *testing.T) {
	dp, _ := newDispatcher(t)

	res := dp.ExecuteBatch(context.Background(), donation(), domain.Context{},
		[]domain.Action{{Type: domain.ActionType("made.up")}}, domain.RulesConfig{})
	if res[0].OK || res[0].Reason != "unknown_action:made.up" {
		t.Fatalf("result = %+v", res[0])
	}
}
