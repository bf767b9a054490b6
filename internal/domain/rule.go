package domain

// When is a rule's predicate specification. Every present predicate must hold
// for the rule to match; absent predicates are ignored.
type When struct {
	// MinValue requires donation.Value >= the threshold.
	MinValue *float64 `json:"minValue,omitempty"`
	// IsNewTop must equal the context's new-top flag when present.
	IsNewTop *bool `json:"isNewTop,omitempty"`
	// HasURL must equal the presence of a whitelisted URL when present.
	HasURL *bool `json:"hasUrl,omitempty"`
	// KeywordsAny requires at least one keyword as a substring of the
	// normalized message.
	KeywordsAny []string `json:"keywordsAny,omitempty"`
	// KeywordsAll requires every keyword as a substring.
	KeywordsAll []string `json:"keywordsAll,omitempty"`
	// Regex is matched case-insensitively against the raw message. An
	// unparsable pattern makes the rule never match.
	Regex string `json:"regex,omitempty"`
}

// Rule maps a predicate to an ordered list of action templates. Rules are
// operator-authored configuration, reloadable at runtime.
type Rule struct {
	ID       string   `json:"id"`
	Priority int      `json:"priority"`
	Enabled  *bool    `json:"enabled,omitempty"` // nil means enabled
	When     When     `json:"when"`
	Actions  []Action `json:"actions"`
}

// Disabled reports whether the rule is explicitly switched off.
func (r Rule) Disabled() bool { return r.Enabled != nil && !*r.Enabled }

// RulesConfig is the operator-facing rules document: the URL whitelist used
// by the context builder, the global per-type cooldown map, and the rule list.
type RulesConfig struct {
	URLWhitelist []string             `json:"urlWhitelist"`
	Cooldowns    map[ActionType]int64 `json:"cooldowns"`
	Rules        []Rule               `json:"rules"`
}
