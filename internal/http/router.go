// Package httpapi wires the HTTP transport (Gin) to the donation pipeline,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Webhook intake isolated from dashboard traffic (separate rate buckets)
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/streamrig/go-donation-backend/internal/audit"
	"github.com/streamrig/go-donation-backend/internal/config"
	"github.com/streamrig/go-donation-backend/internal/domain"
	"github.com/streamrig/go-donation-backend/internal/http/handlers"
	"github.com/streamrig/go-donation-backend/internal/http/middleware"
	"github.com/streamrig/go-donation-backend/internal/repo"
	"github.com/streamrig/go-donation-backend/internal/services"
)

// archiveShim adapts the repository free functions to the
// handlers.DonationArchive interface. This keeps the gorm handle out of the
// handlers package while reusing existing functions.
type archiveShim struct{ db *gorm.DB }

// List proxies repo.ListDonations.
func (a archiveShim) List(ctx context.Context, limit int) ([]domain.DonationRecord, error) {
	return repo.ListDonations(ctx, a.db, limit)
}

// Count proxies repo.CountDonations.
func (a archiveShim) Count(ctx context.Context) (int64, error) {
	return repo.CountDonations(ctx, a.db)
}

// Has proxies repo.HasDonation.
func (a archiveShim) Has(ctx context.Context, id string) (bool, error) {
	return repo.HasDonation(ctx, a.db, id)
}

// Get proxies repo.GetDonation.
func (a archiveShim) Get(ctx context.Context, id string) (*domain.DonationRecord, error) {
	return repo.GetDonation(ctx, a.db, id)
}

// SenderStats proxies repo.SenderStats.
func (a archiveShim) SenderStats(ctx context.Context, sender string) (int64, float64, error) {
	return repo.SenderStats(ctx, a.db, sender)
}

// Dependencies carries the constructed pipeline components the router wires
// into handlers. Everything is built in cmd/server and injected here.
type Dependencies struct {
	Pipeline   *services.DonationService
	Audit      *audit.Log
	Moderation handlers.ModerationStore
	Music      handlers.MusicControl

	// DB enables the archive endpoints when non-nil.
	DB *gorm.DB
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, the webhook intake
// route, and the versioned dashboard API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//  8. Per-group rate limiters (webhook and API buckets are independent)
func RegisterRoutes(r *gin.Engine, deps Dependencies, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging; webhook secrets must never reach the log
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Webhook-Secret"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Webhook-Secret"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: handlers ← pipeline/collaborators
	var archive handlers.DonationArchive
	if deps.DB != nil {
		archive = archiveShim{db: deps.DB}
	}
	h := handlers.New(deps.Pipeline, deps.Audit, deps.Moderation, deps.Music, archive, cfg.Provider.WebhookSecret)

	// Webhook intake: its own token bucket, sized for provider bursts, keyed
	// by IP so dashboard clients cannot starve deliveries.
	webhookRL := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.POST("/webhook/donations", webhookRL.Handler(), h.PostDonationWebhook)

	// Dashboard API: gzip plus its own rate bucket.
	apiRL := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(apiRL.Handler())
	{
		// Read models
		api.GET("/state", h.GetState)
		api.GET("/donations", h.ListDonations)
		api.GET("/donations/:id", h.GetDonation)
		api.HEAD("/donations/:id", h.HeadDonation)
		api.GET("/senders/:sender/stats", h.GetSenderStats)

		// Audit trail
		api.GET("/audit/events", h.ListAuditEvents)
		api.GET("/audit/summary", h.GetAuditSummary)
		api.GET("/audit/top-senders", h.GetTopSenders)

		// Moderation
		api.GET("/moderation", h.GetModeration)
		api.POST("/moderation/senders", h.BlockSender)
		api.DELETE("/moderation/senders", h.UnblockSender)
		api.POST("/moderation/keywords", h.BlockKeyword)
		api.DELETE("/moderation/keywords", h.UnblockKeyword)

		// Controls
		api.POST("/rules/reload", h.ReloadRules)
		api.POST("/music/skip", h.SkipTrack)
		api.POST("/music/clear", h.ClearQueue)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
