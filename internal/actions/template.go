package actions

import (
	"strconv"
	"strings"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

// ExpandTemplate substitutes donation placeholders into an operator-authored
// template. Supported placeholders: {sender}, {value}, {message}, {id},
// {url}, {videoId}. Unknown placeholders are left untouched.
func ExpandTemplate(tmpl string, d domain.Donation, ctx domain.Context) string {
	if tmpl == "" || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	r := strings.NewReplacer(
		"{sender}", d.Sender,
		"{value}", strconv.FormatFloat(d.Value, 'f', -1, 64),
		"{message}", d.Message,
		"{id}", d.ID,
		"{url}", ctx.URL,
		"{videoId}", ctx.VideoID,
	)
	return r.Replace(tmpl)
}

// ExpandTemplateMap expands every value of m, returning a new map. A nil map
// expands to nil.
func ExpandTemplateMap(m map[string]string, d domain.Donation, ctx domain.Context) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = ExpandTemplate(v, d, ctx)
	}
	return out
}
