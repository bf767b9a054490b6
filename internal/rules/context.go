// Package rules implements the decision core of the pipeline: deriving a
// rule-evaluation context from a donation, matching operator rules against
// it, and resolving per-channel conflicts into an ordered action list. The
// package does no I/O and reads no clocks, so the policy logic is testable
// in isolation.
package rules

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	schemedURLRE = regexp.MustCompile(`(?i)https?://[^\s<>()]+`)
	bareWWWRE    = regexp.MustCompile(`(?i)\b(www\.[^\s<>()]+)\b`)
	trailingRE   = regexp.MustCompile(`[),.;:!?\]'"»]+$`)
)

// NormalizeText lowercases s and collapses runs of whitespace to single
// spaces. Both rule keywords and donation messages go through this before
// substring matching.
func NormalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// ExtractFirstURL returns the first URL-looking substring of text. Schemed
// http(s) URLs are preferred; a bare "www." host is accepted and coerced to
// https. Trailing punctuation common in chat is stripped. Returns "" when no
// candidate is found.
func ExtractFirstURL(text string) string {
	if m := schemedURLRE.FindString(text); m != "" {
		return trailingRE.ReplaceAllString(m, "")
	}
	if m := bareWWWRE.FindStringSubmatch(text); m != nil {
		return trailingRE.ReplaceAllString("https://"+m[1], "")
	}
	return ""
}

// IsWhitelistedURL reports whether the URL's hostname appears in the
// whitelist (case-insensitive exact match). Unparsable URLs are never
// whitelisted.
func IsWhitelistedURL(rawURL string, whitelist []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, w := range whitelist {
		if strings.ToLower(strings.TrimSpace(w)) == host {
			return true
		}
	}
	return false
}

// ParseVideoID extracts a platform video identifier from a video-hosting URL:
// the short-link host takes the first path segment, the canonical host takes
// the "v" query parameter on /watch, and the shorts/live/embed path prefixes
// take the following segment. Returns "" for anything else.
func ParseVideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	segs := splitPath(u.Path)

	if host == "youtu.be" {
		if len(segs) > 0 {
			return segs[0]
		}
		return ""
	}

	if strings.HasSuffix(host, "youtube.com") {
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		if len(segs) >= 2 {
			switch segs[0] {
			case "shorts", "live", "embed":
				return segs[1]
			}
		}
	}

	return ""
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// BuildContext derives the rule-evaluation context for a donation. The URL is
// kept only when its hostname is whitelisted; a video id is derived only from
// a kept URL. IsNewTop is left false; the pipeline computes it against the
// current leaderboard top before recording the donation.
func BuildContext(d domain.Donation, cfg domain.RulesConfig) domain.Context {
	ctx := domain.Context{NormalizedMessage: NormalizeText(d.Message)}

	if raw := ExtractFirstURL(d.Message); raw != "" && IsWhitelistedURL(raw, cfg.URLWhitelist) {
		ctx.URL = raw
		ctx.VideoID = ParseVideoID(raw)
	}

	return ctx
}
