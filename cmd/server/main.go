// Command server runs the donation action backend: it receives payment
// provider webhooks, decides which stream actions each donation triggers, and
// executes them against the configured collaborators (music overlay, RCON,
// OBS, outbound webhooks).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamrig/go-donation-backend/internal/actions"
	"github.com/streamrig/go-donation-backend/internal/audit"
	"github.com/streamrig/go-donation-backend/internal/config"
	"github.com/streamrig/go-donation-backend/internal/dispatch"
	"github.com/streamrig/go-donation-backend/internal/events"
	httpapi "github.com/streamrig/go-donation-backend/internal/http"
	"github.com/streamrig/go-donation-backend/internal/moderation"
	"github.com/streamrig/go-donation-backend/internal/observability"
	"github.com/streamrig/go-donation-backend/internal/provider"
	"github.com/streamrig/go-donation-backend/internal/repo"
	"github.com/streamrig/go-donation-backend/internal/rules"
	"github.com/streamrig/go-donation-backend/internal/services"
	"github.com/streamrig/go-donation-backend/internal/state"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)

	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting donation backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Donation archive (optional; pipeline runs in-memory only when it fails).
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err == nil {
		err = repo.AutoMigrate(db)
	}
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.DBPath).Msg("donation archive disabled")
		db = nil
	}

	// Pipeline state.
	board := state.NewLeaderboard(cfg.MaxDonations)
	music := state.NewMusicState()
	gate := state.NewCooldownGate()
	ruleSet := rules.NewRuleSet(cfg.RulesPath)
	modStore := moderation.NewStore(cfg.ModerationPath)
	auditLog := audit.Open(cfg.AuditPath, cfg.AuditMaxEvents)
	defer auditLog.Close()

	sink := events.LogSink{Logger: log.Logger}

	// Collaborators.
	musicMgr := actions.NewMusicManager(music, sink, actions.InterruptBehavior(cfg.MusicInterrupt))
	rcon := actions.NewRconClient(actions.RconConfig{
		Host:     cfg.Rcon.Host,
		Port:     cfg.Rcon.Port,
		Password: cfg.Rcon.Password,
	})
	defer rcon.Close()
	obs := actions.NewOBSClient(actions.OBSConfig{
		Enabled:  cfg.OBS.Enabled,
		URL:      cfg.OBS.URL,
		Password: cfg.OBS.Password,
	})
	defer obs.Close()
	webhookOut := actions.NewWebhookClient(actions.WebhookConfig{
		AllowHosts: cfg.Outbound.AllowHosts,
		Timeout:    cfg.Outbound.Timeout,
	})

	dispatcher := &dispatch.Dispatcher{
		Gate:    gate,
		Music:   musicMgr,
		Rcon:    rcon,
		OBS:     obs,
		Webhook: webhookOut,
		OpenURL: actions.OpenURL,
		Sink:    sink,
		Audit:   auditLog,
	}

	// Self-disabling without credentials; referenced events are then ignored.
	api := provider.NewAPIClient(provider.APIConfig{
		ClientID:      cfg.Provider.ClientID,
		ClientSecret:  cfg.Provider.ClientSecret,
		Scope:         cfg.Provider.Scope,
		APIBaseURL:    cfg.Provider.APIBaseURL,
		OAuthTokenURL: cfg.Provider.TokenURL,
		Timeout:       cfg.Provider.Timeout,
	})

	svc := &services.DonationService{
		Rules:      ruleSet,
		Moderation: modStore,
		Board:      board,
		Music:      music,
		Audit:      auditLog,
		Dispatcher: dispatcher,
		Sink:       sink,
		DB:         db,
		API:        api,
		Extract: provider.ExtractConfig{
			AcceptedStatuses: cfg.Provider.AcceptedStatuses,
			AmountMode:       cfg.Provider.AmountMode,
			ValuePath:        cfg.Provider.ValuePath,
			MessagePath:      cfg.Provider.MessagePath,
			SenderPath:       cfg.Provider.SenderPath,
			StatusPath:       cfg.Provider.StatusPath,
		},
	}

	// HTTP transport.
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Dependencies{
		Pipeline:   svc,
		Audit:      auditLog,
		Moderation: modStore,
		Music:      musicMgr,
		DB:         db,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("stopped")
}

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
