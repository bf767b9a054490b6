package rules

import (
	"testing"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Hello   WORLD ", "hello world"},
		{"TABS\tand\nnewlines", "tabs and newlines"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractFirstURL(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"schemed", "check https://youtu.be/abc123 out", "https://youtu.be/abc123"},
		{"trailing punct stripped", "link: https://youtube.com/watch?v=x).", "https://youtube.com/watch?v=x"},
		{"bare www coerced", "go to www.youtube.com/watch now", "https://www.youtube.com/watch"},
		{"schemed wins over www", "https://a.com and www.b.com", "https://a.com"},
		{"none", "no links here", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractFirstURL(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsWhitelistedURL(t *testing.T) {
	wl := []string{"youtube.com", "YOUTU.BE "}

	cases := []struct {
		url  string
		want bool
	}{
		{"https://youtube.com/watch?v=x", true},
		{"https://YOUTU.BE/abc", true},
		{"https://evil.com/youtube.com", false},
		{"https://sub.youtube.com/x", false}, // exact hostname match only
		{"://broken", false},
	}
	for _, tc := range cases {
		if got := IsWhitelistedURL(tc.url, wl); got != tc.want {
			t.Errorf("IsWhitelistedURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestParseVideoID(t *testing.T) {
	cases := []struct{ url, want string }{
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=abc_-123", "abc_-123"},
		{"https://youtube.com/shorts/sh0rt1d", "sh0rt1d"},
		{"https://youtube.com/live/l1veid", "l1veid"},
		{"https://youtube.com/embed/emb3d", "emb3d"},
		{"https://youtube.com/playlist?list=x", ""},
		{"https://vimeo.com/12345", ""},
	}
	for _, tc := range cases {
		if got := ParseVideoID(tc.url); got != tc.want {
			t.Errorf("ParseVideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestBuildContext(t *testing.T) {
	cfg := domain.RulesConfig{URLWhitelist: []string{"youtu.be"}}

	d := domain.Donation{Message: "Play THIS https://youtu.be/vid42 now!"}
	ctx := BuildContext(d, cfg)
	if ctx.NormalizedMessage != "play this https://youtu.be/vid42 now!" {
		t.Fatalf("normalized = %q", ctx.NormalizedMessage)
	}
	if ctx.URL != "https://youtu.be/vid42" || ctx.VideoID != "vid42" {
		t.Fatalf("url=%q videoId=%q", ctx.URL, ctx.VideoID)
	}
	if ctx.IsNewTop {
		t.Fatalf("IsNewTop must be left for the pipeline to set")
	}

	// Non-whitelisted host: URL dropped entirely.
	d2 := domain.Donation{Message: "see https://example.com/x"}
	ctx2 := BuildContext(d2, cfg)
	if ctx2.URL != "" || ctx2.VideoID != "" {
		t.Fatalf("non-whitelisted url kept: %+v", ctx2)
	}
}
