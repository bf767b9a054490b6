package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	webhookMinTimeout     = 500 * time.Millisecond
	webhookDefaultTimeout = 3 * time.Second
	webhookMaxBodyEcho    = 1000
)

// ErrHostNotAllowed is returned when an outbound webhook targets a host
// outside the allow list.
var ErrHostNotAllowed = errors.New("webhook host not allowed")

// WebhookConfig restricts where outbound webhook actions may post and for how
// long a call may run before it is aborted.
type WebhookConfig struct {
	AllowHosts []string
	Timeout    time.Duration
}

// WebhookResult carries the HTTP outcome of an outbound webhook call.
type WebhookResult struct {
	Status int
	Body   string
}

// WebhookClient posts JSON payloads to allow-listed hosts. Calls are bounded
// by the configured timeout and are never retried; each action call is
// best-effort.
type WebhookClient struct {
	cfg  WebhookConfig
	http *http.Client
}

// NewWebhookClient constructs a client with the configured abort timeout.
func NewWebhookClient(cfg WebhookConfig) *WebhookClient {
	if cfg.Timeout < webhookMinTimeout {
		cfg.Timeout = webhookDefaultTimeout
	}
	return &WebhookClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Post sends body as JSON to target. A non-2xx response is returned as an
// error alongside the echoed status and truncated response body.
func (c *WebhookClient) Post(ctx context.Context, target string, body map[string]string, headers map[string]string) (WebhookResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return WebhookResult{}, errors.New("missing webhook url")
	}
	if !c.hostAllowed(target) {
		return WebhookResult{}, ErrHostNotAllowed
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return WebhookResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return WebhookResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if k = strings.TrimSpace(k); k != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return WebhookResult{}, err
	}
	defer resp.Body.Close()

	echo, _ := io.ReadAll(io.LimitReader(resp.Body, webhookMaxBodyEcho))
	result := WebhookResult{Status: resp.StatusCode, Body: string(echo)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("webhook HTTP %d", resp.StatusCode)
	}
	return result, nil
}

func (c *WebhookClient) hostAllowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range c.cfg.AllowHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "*" || h == host {
			return true
		}
	}
	return false
}
