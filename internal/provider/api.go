package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// API-level errors surfaced to the pipeline (and from there into the audit
// trail) when a referenced provider event cannot be resolved.
var (
	// ErrNotConfigured is returned when no static token or client
	// credentials are available.
	ErrNotConfigured = errors.New("provider API credentials not configured")

	// ErrRecordNotFound is returned when the API responds without a data
	// envelope for the requested id.
	ErrRecordNotFound = errors.New("provider record not found")
)

// APIConfig holds provider REST credentials and endpoints. Either a static
// access token or a client-credentials pair enables the client.
type APIConfig struct {
	AccessToken   string
	ClientID      string
	ClientSecret  string
	Scope         string
	APIBaseURL    string
	OAuthTokenURL string
	Timeout       time.Duration
}

// APIClient fetches full provider records for webhook events that arrive as
// bare references. OAuth client-credentials tokens are cached until shortly
// before expiry.
type APIClient struct {
	cfg  APIConfig
	http *http.Client

	mu          sync.Mutex
	cachedToken string
	expiresAt   time.Time
}

// NewAPIClient constructs a client with defaulted endpoints and timeout.
func NewAPIClient(cfg APIConfig) *APIClient {
	if cfg.Scope == "" {
		cfg.Scope = "messages:read subscriptions:read"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.livepix.gg"
	}
	if cfg.OAuthTokenURL == "" {
		cfg.OAuthTokenURL = "https://oauth.livepix.gg/oauth2/token"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &APIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether the client has any way to authenticate.
func (c *APIClient) Enabled() bool {
	return c.cfg.AccessToken != "" || (c.cfg.ClientID != "" && c.cfg.ClientSecret != "")
}

// FetchMessage retrieves a message record by id.
func (c *APIClient) FetchMessage(ctx context.Context, id string) (map[string]any, error) {
	return c.fetchData(ctx, "/v1/messages/"+url.PathEscape(id))
}

// FetchPayment retrieves a payment record by id.
func (c *APIClient) FetchPayment(ctx context.Context, id string) (map[string]any, error) {
	return c.fetchData(ctx, "/v1/payments/"+url.PathEscape(id))
}

// FetchSubscription retrieves a subscription record by id.
func (c *APIClient) FetchSubscription(ctx context.Context, id string) (map[string]any, error) {
	return c.fetchData(ctx, "/v1/subscriptions/"+url.PathEscape(id))
}

func (c *APIClient) fetchData(ctx context.Context, path string) (map[string]any, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, path, asBearer(token))
	if err != nil {
		return nil, err
	}
	// Some provider tokens are apiKey-style; retry raw on 401.
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		resp, err = c.get(ctx, path, token)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider API %s: HTTP %d %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("provider API %s: %w", path, err)
	}
	if envelope.Data == nil {
		return nil, ErrRecordNotFound
	}
	return envelope.Data, nil
}

func (c *APIClient) get(ctx context.Context, path, authorization string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authorization)
	return c.http.Do(req)
}

// accessToken returns the static token when configured, otherwise a cached or
// freshly fetched client-credentials token.
func (c *APIClient) accessToken(ctx context.Context) (string, error) {
	if c.cfg.AccessToken != "" {
		return c.cfg.AccessToken, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedToken != "" && time.Now().Before(c.expiresAt) {
		return c.cachedToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", c.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("oauth token failed: HTTP %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("oauth token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("oauth token missing access_token")
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = 3600
	}

	c.cachedToken = tok.AccessToken
	// Refresh slightly before expiry.
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)
	log.Debug().Time("expires_at", c.expiresAt).Msg("provider oauth token refreshed")
	return c.cachedToken, nil
}

func asBearer(token string) string {
	t := strings.TrimSpace(token)
	if t == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(t), "bearer ") {
		return t
	}
	return "Bearer " + t
}
