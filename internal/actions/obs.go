package actions

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// obs-websocket v5 opcodes.
const (
	obsOpHello      = 0
	obsOpIdentify   = 1
	obsOpIdentified = 2
	obsOpRequest    = 6
	obsOpResponse   = 7
)

const (
	obsDialTimeout = 5 * time.Second
	obsIOTimeout   = 10 * time.Second

	obsPulseMin     = 100 * time.Millisecond
	obsPulseMax     = 2 * time.Minute
	obsPulseDefault = 4 * time.Second

	obsVolumeMulMax = 20
)

// ErrOBSDisabled is returned when the OBS integration is switched off or has
// no endpoint configured.
var ErrOBSDisabled = errors.New("obs disabled or missing endpoint")

// OBSConfig holds the scene-control endpoint settings.
type OBSConfig struct {
	Enabled  bool
	URL      string
	Password string
}

// OBSClient talks the obs-websocket v5 protocol over a lazily established
// connection. Calls are serialized; any failed call drops the socket so the
// next invocation reconnects and re-identifies.
type OBSClient struct {
	cfg OBSConfig

	mu   sync.Mutex
	conn *websocket.Conn

	// sceneName::sourceName -> sceneItemId
	itemIDs map[string]float64

	// sleep is swapped out in tests so source pulses do not block.
	sleep func(time.Duration)
}

// NewOBSClient constructs a client; the socket is not opened yet.
func NewOBSClient(cfg OBSConfig) *OBSClient {
	return &OBSClient{cfg: cfg, itemIDs: make(map[string]float64), sleep: time.Sleep}
}

// Configured reports whether the integration can connect at all.
func (c *OBSClient) Configured() bool {
	return c.cfg.Enabled && strings.TrimSpace(c.cfg.URL) != ""
}

// SetScene switches the current program scene.
func (c *OBSClient) SetScene(scene string) error {
	scene = strings.TrimSpace(scene)
	if scene == "" {
		return errors.New("missing scene name")
	}
	_, err := c.call("SetCurrentProgramScene", map[string]any{"sceneName": scene})
	return err
}

// PulseSource enables a scene source, waits for the pulse duration, then
// disables it again. The duration is clamped to [100ms, 2m].
func (c *OBSClient) PulseSource(scene, source string, duration time.Duration) error {
	if duration <= 0 {
		duration = obsPulseDefault
	}
	if duration < obsPulseMin {
		duration = obsPulseMin
	}
	if duration > obsPulseMax {
		duration = obsPulseMax
	}

	if err := c.setSourceEnabled(scene, source, true); err != nil {
		return err
	}
	c.sleep(duration)
	return c.setSourceEnabled(scene, source, false)
}

// SetText replaces the text of a text input (overlay mode).
func (c *OBSClient) SetText(input, text string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return errors.New("missing input name")
	}
	_, err := c.call("SetInputSettings", map[string]any{
		"inputName":     input,
		"inputSettings": map[string]any{"text": text},
		"overlay":       true,
	})
	return err
}

// MediaRestart restarts a media input from the beginning.
func (c *OBSClient) MediaRestart(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return errors.New("missing input name")
	}
	_, err := c.call("TriggerMediaInputAction", map[string]any{
		"inputName":   input,
		"mediaAction": "OBS_WEBSOCKET_MEDIA_INPUT_ACTION_RESTART",
	})
	return err
}

// SetMute mutes or unmutes an input.
func (c *OBSClient) SetMute(input string, mute bool) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return errors.New("missing input name")
	}
	_, err := c.call("SetInputMute", map[string]any{"inputName": input, "inputMuted": mute})
	return err
}

// SetVolume sets an input's volume multiplier (1.0 = 100%), clamped to
// [0, 20].
func (c *OBSClient) SetVolume(input string, volumeMul float64) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return errors.New("missing input name")
	}
	if volumeMul < 0 {
		volumeMul = 0
	}
	if volumeMul > obsVolumeMulMax {
		volumeMul = obsVolumeMulMax
	}
	_, err := c.call("SetInputVolume", map[string]any{"inputName": input, "inputVolumeMul": volumeMul})
	return err
}

// Close tears down the socket if open.
func (c *OBSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}

func (c *OBSClient) setSourceEnabled(scene, source string, enabled bool) error {
	scene, source = strings.TrimSpace(scene), strings.TrimSpace(source)
	if scene == "" || source == "" {
		return errors.New("missing scene or source name")
	}

	id, err := c.sceneItemID(scene, source)
	if err != nil {
		return err
	}
	_, err = c.call("SetSceneItemEnabled", map[string]any{
		"sceneName":        scene,
		"sceneItemId":      id,
		"sceneItemEnabled": enabled,
	})
	return err
}

func (c *OBSClient) sceneItemID(scene, source string) (float64, error) {
	key := scene + "::" + source

	c.mu.Lock()
	id, ok := c.itemIDs[key]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	data, err := c.call("GetSceneItemId", map[string]any{"sceneName": scene, "sourceName": source})
	if err != nil {
		return 0, err
	}
	id, ok = data["sceneItemId"].(float64)
	if !ok {
		return 0, errors.New("sceneItemId not found")
	}

	c.mu.Lock()
	c.itemIDs[key] = id
	c.mu.Unlock()
	return id, nil
}

// call executes one obs-websocket request and waits for its response. The
// whole exchange happens under the client lock; donation batches execute
// actions sequentially so contention is not a concern.
func (c *OBSClient) call(requestType string, requestData map[string]any) (map[string]any, error) {
	if !c.Configured() {
		return nil, ErrOBSDisabled
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	data, err := c.requestLocked(requestType, requestData)
	if err != nil {
		log.Warn().Err(err).Str("request", requestType).Msg("obs call failed")
		c.dropLocked()
		return nil, err
	}
	return data, nil
}

func (c *OBSClient) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.itemIDs = make(map[string]float64)
}

type obsMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

func (c *OBSClient) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	log.Info().Str("url", c.cfg.URL).Msg("obs connecting")
	dialer := websocket.Dialer{HandshakeTimeout: obsDialTimeout}
	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.identifyLocked(); err != nil {
		c.dropLocked()
		return err
	}
	log.Info().Str("url", c.cfg.URL).Msg("obs connected")
	return nil
}

// identifyLocked performs the Hello/Identify/Identified handshake, answering
// the auth challenge when the server requires one.
func (c *OBSClient) identifyLocked() error {
	var hello struct {
		Authentication *struct {
			Challenge string `json:"challenge"`
			Salt      string `json:"salt"`
		} `json:"authentication"`
	}
	if err := c.readOpLocked(obsOpHello, &hello); err != nil {
		return fmt.Errorf("obs hello: %w", err)
	}

	identify := map[string]any{"rpcVersion": 1}
	if hello.Authentication != nil {
		if c.cfg.Password == "" {
			return errors.New("obs requires authentication but no password is configured")
		}
		identify["authentication"] = obsAuthResponse(c.cfg.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := c.writeOpLocked(obsOpIdentify, identify); err != nil {
		return fmt.Errorf("obs identify: %w", err)
	}

	var identified struct {
		NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
	}
	if err := c.readOpLocked(obsOpIdentified, &identified); err != nil {
		return fmt.Errorf("obs identified: %w", err)
	}
	return nil
}

func (c *OBSClient) requestLocked(requestType string, requestData map[string]any) (map[string]any, error) {
	reqID := uuid.NewString()
	if err := c.writeOpLocked(obsOpRequest, map[string]any{
		"requestType": requestType,
		"requestId":   reqID,
		"requestData": requestData,
	}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(obsIOTimeout)
	for time.Now().Before(deadline) {
		var resp struct {
			RequestID     string `json:"requestId"`
			RequestStatus struct {
				Result  bool   `json:"result"`
				Code    int    `json:"code"`
				Comment string `json:"comment"`
			} `json:"requestStatus"`
			ResponseData map[string]any `json:"responseData"`
		}
		op, raw, err := c.readLocked()
		if err != nil {
			return nil, err
		}
		// Skip event frames interleaved with the response.
		if op != obsOpResponse {
			continue
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		if resp.RequestID != reqID {
			continue
		}
		if !resp.RequestStatus.Result {
			return nil, fmt.Errorf("obs %s failed (code %d): %s", requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		return resp.ResponseData, nil
	}
	return nil, errors.New("obs response timeout")
}

func (c *OBSClient) writeOpLocked(op int, d any) error {
	payload, err := json.Marshal(map[string]any{"op": op, "d": d})
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(obsIOTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *OBSClient) readLocked() (int, json.RawMessage, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(obsIOTimeout))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	var msg obsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, nil, err
	}
	return msg.Op, msg.D, nil
}

func (c *OBSClient) readOpLocked(want int, out any) error {
	for {
		op, raw, err := c.readLocked()
		if err != nil {
			return err
		}
		if op != want {
			continue
		}
		return json.Unmarshal(raw, out)
	}
}

// obsAuthResponse derives the v5 auth string:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func obsAuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}
