// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, a structured HTTP logger that scrubs
// credentials and obvious PII from request metadata before emitting logs.
// Webhook deliveries may carry the shared secret in a header or a query
// parameter, and donation payloads identify real people, so the access log
// must never echo either.
//
// Design goals:
//   - Default-safe: never logs request or response bodies
//   - Masks secret-bearing query parameters (token, secret, and variants)
//   - Masks sensitive headers (Authorization, Cookie, webhook secret headers,
//     plus custom ones)
//   - Redacts common identifiers (emails, UUIDs) from remaining values
//   - Produces structured JSON logs via zerolog
package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders specifies extra HTTP header names whose values will be fully
// replaced with "[REDACTED]". Matching is case-insensitive and merged with
// the built-in sensitive headers. MaskParams likewise adds query parameter
// names whose values are masked in the logged query string.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

// builtinMaskHeaders are always masked regardless of options.
var builtinMaskHeaders = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"x-webhook-secret",
	"x-livepix-secret",
	"x-hook-secret",
}

// builtinMaskParams are query parameters always masked regardless of options.
var builtinMaskParams = []string{"token", "secret", "key", "access_token"}

// RedactingLogger returns a Gin middleware that logs HTTP requests and
// responses with sensitive values scrubbed.
//
// Behavior:
//   - Logs method, path, query string, status, response size, latency,
//     and request headers (with scrubbing applied).
//   - Replaces the values of secret-bearing query parameters with
//     "[REDACTED]" while preserving parameter names; the logged query is
//     decoded and sorted by name.
//   - Applies regex-based substitution to redact email addresses and
//     UUID-like identifiers from the remaining query string and header
//     values.
//   - Logs in structured JSON format at INFO level by default, WARN for 4xx,
//     and ERROR for 5xx responses.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	// Compile regex patterns once.
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

	redact := func(s string) string {
		if s == "" {
			return s
		}
		out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
		return out
	}

	// Build mask sets (case-insensitive).
	maskHeaders := make(map[string]struct{}, len(builtinMaskHeaders)+len(opts.MaskHeaders))
	for _, h := range builtinMaskHeaders {
		maskHeaders[h] = struct{}{}
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	maskParams := make(map[string]struct{}, len(builtinMaskParams)+len(opts.MaskParams))
	for _, p := range builtinMaskParams {
		maskParams[p] = struct{}{}
	}
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			maskParams[p] = struct{}{}
		}
	}

	maskQuery := func(raw string) string {
		if raw == "" {
			return raw
		}
		vals, err := url.ParseQuery(raw)
		if err != nil {
			// Unparsable query strings are dropped rather than risked.
			return "[UNPARSABLE]"
		}
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		// The result is for logs only, so values stay decoded; re-encoding
		// would hide emails from the redaction patterns.
		var b strings.Builder
		for _, k := range keys {
			for _, v := range vals[k] {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(k)
				b.WriteByte('=')
				if _, ok := maskParams[strings.ToLower(k)]; ok {
					b.WriteString("[REDACTED]")
				} else {
					b.WriteString(redact(v))
				}
			}
		}
		return b.String()
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := maskQuery(c.Request.URL.RawQuery)

		// Scrub headers.
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			keyLower := strings.ToLower(k)
			val := strings.Join(vv, ", ")
			if _, ok := maskHeaders[keyLower]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(val)
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := c.Writer.Size()

		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		// Severity based on status.
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", size).
			Dur("latency", latency).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
