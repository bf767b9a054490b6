// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage paths, webhook authentication,
// rate limiting, collaborator endpoints, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-donation-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ProviderConfig holds payment provider settings: the shared secret the
// provider sends with webhook deliveries, the payload statuses that count
// as completed, and optional OAuth2 credentials for resolving thin
// reference events against the provider API.
type ProviderConfig struct {
	WebhookSecret    string        // WEBHOOK_SECRET (empty disables auth)
	AcceptedStatuses []string      // PROVIDER_ACCEPTED_STATUSES
	AmountMode       string        // PROVIDER_AMOUNT_MODE: auto|cents|units
	ValuePath        string        // PROVIDER_VALUE_PATH: dot path overriding value lookup
	MessagePath      string        // PROVIDER_MESSAGE_PATH
	SenderPath       string        // PROVIDER_SENDER_PATH
	StatusPath       string        // PROVIDER_STATUS_PATH
	ClientID         string        // PROVIDER_CLIENT_ID
	ClientSecret     string        // PROVIDER_CLIENT_SECRET
	Scope            string        // PROVIDER_SCOPE
	APIBaseURL       string        // PROVIDER_API_BASE_URL
	TokenURL         string        // PROVIDER_TOKEN_URL
	Timeout          time.Duration // PROVIDER_TIMEOUT
}

// RconConfig holds the Source RCON endpoint used by minecraft actions.
// An empty password disables the integration.
type RconConfig struct {
	Host     string // RCON_HOST
	Port     int    // RCON_PORT
	Password string // RCON_PASSWORD
}

// OBSConfig holds the obs-websocket endpoint used by obs actions.
type OBSConfig struct {
	Enabled  bool   // OBS_ENABLED
	URL      string // OBS_URL (ws://host:4455)
	Password string // OBS_PASSWORD
}

// OutboundConfig restricts where webhook.request actions may POST.
type OutboundConfig struct {
	AllowHosts []string      // OUTBOUND_ALLOW_HOSTS ("*" allows any)
	Timeout    time.Duration // OUTBOUND_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// Storage
	DBPath         string // SQLite archive path
	RulesPath      string // rules.json path
	AuditPath      string // audit NDJSON path
	ModerationPath string // moderation JSON document path

	// Pipeline
	MaxDonations   int    // leaderboard capacity
	AuditMaxEvents int    // in-memory audit window
	MusicInterrupt string // drop|resume behavior after playNow

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Collaborators
	Provider ProviderConfig
	Rcon     RconConfig
	OBS      OBSConfig
	Outbound OutboundConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath:         getenv("DB_PATH", "data/donations.db"),
		RulesPath:      getenv("RULES_PATH", "data/rules.json"),
		AuditPath:      getenv("AUDIT_PATH", "data/audit.ndjson"),
		ModerationPath: getenv("MODERATION_PATH", "data/moderation.json"),

		// Pipeline
		MaxDonations:   getint("MAX_DONATIONS", 80),
		AuditMaxEvents: getint("AUDIT_MAX_EVENTS", 5000),
		MusicInterrupt: strings.ToLower(getenv("MUSIC_INTERRUPT", "drop")),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 10.0),
		RateBurst: getint("RATE_BURST", 20),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Collaborators
		Provider: ProviderConfig{
			WebhookSecret:    getenv("WEBHOOK_SECRET", ""),
			AcceptedStatuses: splitCSV(getenv("PROVIDER_ACCEPTED_STATUSES", "approved,paid,completed,confirmed")),
			AmountMode:       strings.ToLower(getenv("PROVIDER_AMOUNT_MODE", "auto")),
			ValuePath:        getenv("PROVIDER_VALUE_PATH", ""),
			MessagePath:      getenv("PROVIDER_MESSAGE_PATH", ""),
			SenderPath:       getenv("PROVIDER_SENDER_PATH", ""),
			StatusPath:       getenv("PROVIDER_STATUS_PATH", ""),
			ClientID:         getenv("PROVIDER_CLIENT_ID", ""),
			ClientSecret:     getenv("PROVIDER_CLIENT_SECRET", ""),
			Scope:            getenv("PROVIDER_SCOPE", "messages:read subscriptions:read"),
			APIBaseURL:       getenv("PROVIDER_API_BASE_URL", "https://api.livepix.gg"),
			TokenURL:         getenv("PROVIDER_TOKEN_URL", "https://oauth.livepix.gg/oauth2/token"),
			Timeout:          getdur("PROVIDER_TIMEOUT", 10*time.Second),
		},
		Rcon: RconConfig{
			Host:     getenv("RCON_HOST", "127.0.0.1"),
			Port:     getint("RCON_PORT", 25575),
			Password: getenv("RCON_PASSWORD", ""),
		},
		OBS: OBSConfig{
			Enabled:  getbool("OBS_ENABLED", false),
			URL:      getenv("OBS_URL", "ws://127.0.0.1:4455"),
			Password: getenv("OBS_PASSWORD", ""),
		},
		Outbound: OutboundConfig{
			AllowHosts: splitCSV(getenv("OUTBOUND_ALLOW_HOSTS", "")),
			Timeout:    getdur("OUTBOUND_TIMEOUT", 8*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-donation-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.MusicInterrupt {
	case "drop", "resume":
	default:
		cfg.MusicInterrupt = "drop"
	}
	switch cfg.Provider.AmountMode {
	case "auto", "cents", "units":
	default:
		cfg.Provider.AmountMode = "auto"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.RulesPath) == "" {
		return cfg, errors.New("RULES_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.AuditPath) == "" {
		return cfg, errors.New("AUDIT_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.ModerationPath) == "" {
		return cfg, errors.New("MODERATION_PATH must not be empty")
	}
	if cfg.MaxDonations < 1 {
		return cfg, errors.New("MAX_DONATIONS must be >= 1")
	}
	if cfg.AuditMaxEvents < 1 {
		return cfg, errors.New("AUDIT_MAX_EVENTS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Provider.Timeout <= 0 || cfg.Outbound.Timeout <= 0 {
		return cfg, errors.New("collaborator timeouts must be positive durations")
	}
	if cfg.Rcon.Port < 1 || cfg.Rcon.Port > 65535 {
		return cfg, errors.New("RCON_PORT must be a valid TCP port")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
