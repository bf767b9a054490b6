package rules

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

// RuleSet is the explicit "current rules" handle passed into the pipeline.
// Reloads are an observable state transition: callers always read a complete
// document via Current, never a half-applied one.
type RuleSet struct {
	path string

	mu  sync.RWMutex
	cfg domain.RulesConfig
}

// NewRuleSet loads the rules document at path. An invalid or missing file
// degrades to an empty rule set rather than failing startup.
func NewRuleSet(path string) *RuleSet {
	rs := &RuleSet{path: path}
	rs.cfg = loadConfig(path)
	return rs
}

// Current returns the active rules configuration.
func (rs *RuleSet) Current() domain.RulesConfig {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.cfg
}

// Reload re-reads the rules document and swaps it in atomically. A broken
// document degrades to an empty rule set, same as at startup.
func (rs *RuleSet) Reload() domain.RulesConfig {
	cfg := loadConfig(rs.path)
	rs.mu.Lock()
	rs.cfg = cfg
	rs.mu.Unlock()
	log.Info().Str("path", rs.path).Int("rules", len(cfg.Rules)).Msg("rules reloaded")
	return cfg
}

// Path returns the location of the rules document.
func (rs *RuleSet) Path() string { return rs.path }

func loadConfig(path string) domain.RulesConfig {
	empty := domain.RulesConfig{Cooldowns: map[domain.ActionType]int64{}}
	if path == "" {
		return empty
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to load rules, using empty rule set")
		return empty
	}

	var cfg domain.RulesConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse rules, using empty rule set")
		return empty
	}
	if cfg.Cooldowns == nil {
		cfg.Cooldowns = map[domain.ActionType]int64{}
	}
	return cfg
}
