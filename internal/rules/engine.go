package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

// matchRule reports whether every present predicate of the rule holds for the
// donation and its context. An unparsable regex makes the rule never match;
// it must not abort evaluation of other rules.
func matchRule(r domain.Rule, d domain.Donation, ctx domain.Context) bool {
	if r.Disabled() {
		return false
	}

	w := r.When

	if w.MinValue != nil && d.Value < *w.MinValue {
		return false
	}
	if w.IsNewTop != nil && *w.IsNewTop != ctx.IsNewTop {
		return false
	}
	if w.HasURL != nil && *w.HasURL != (ctx.URL != "") {
		return false
	}

	if len(w.KeywordsAny) > 0 {
		any := false
		for _, kw := range w.KeywordsAny {
			if includesKeyword(ctx.NormalizedMessage, kw) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	for _, kw := range w.KeywordsAll {
		if !includesKeyword(ctx.NormalizedMessage, kw) {
			return false
		}
	}

	if pat := strings.TrimSpace(w.Regex); pat != "" {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			// Fail closed: a bad pattern disables this rule only.
			return false
		}
		if !re.MatchString(d.Message) {
			return false
		}
	}

	return true
}

func includesKeyword(normalizedMessage, keyword string) bool {
	k := NormalizeText(keyword)
	if k == "" {
		return false
	}
	return strings.Contains(normalizedMessage, k)
}

// DecideActions maps (donation, context, rules) to the ordered,
// conflict-resolved action list. It is deterministic and side-effect-free;
// identical inputs always yield an identical output.
//
// Every matching rule contributes its action templates, stamped with the
// rule's id and priority. Collected actions are then grouped by channel: the
// music channel keeps only its top-ranked action (kind score descending, rule
// priority breaking ties), which stays at its collected position; every other
// channel keeps all actions. Survivors are sorted by rule priority
// descending, stable for equal priority, so collection order is preserved
// among ties.
func DecideActions(d domain.Donation, ctx domain.Context, cfg domain.RulesConfig) []domain.Action {
	var matched []domain.Action
	for _, r := range cfg.Rules {
		if !matchRule(r, d, ctx) {
			continue
		}
		for _, a := range r.Actions {
			if a.Type == "" {
				continue
			}
			a.RuleID = r.ID
			a.RulePriority = r.Priority
			matched = append(matched, a)
		}
	}

	bestMusic := -1
	for i := range matched {
		if matched[i].Channel() != domain.ChannelMusic {
			continue
		}
		if bestMusic < 0 ||
			matched[i].MusicKindScore() > matched[bestMusic].MusicKindScore() ||
			(matched[i].MusicKindScore() == matched[bestMusic].MusicKindScore() &&
				matched[i].RulePriority > matched[bestMusic].RulePriority) {
			bestMusic = i
		}
	}

	// The winning music action keeps its collected position so the stable
	// sort preserves order among equal priorities.
	resolved := make([]domain.Action, 0, len(matched))
	for i := range matched {
		if matched[i].Channel() == domain.ChannelMusic && i != bestMusic {
			continue
		}
		resolved = append(resolved, matched[i])
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].RulePriority > resolved[j].RulePriority
	})

	return resolved
}
