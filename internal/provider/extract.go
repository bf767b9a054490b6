// Package provider normalizes inbound payment-provider webhook payloads into
// donations and, when a payload only references an event, fetches the full
// record through the provider's REST API.
//
// Provider payloads are not stable: the value may live under several names
// and nesting levels, amounts arrive in cents or currency units, and sender
// and message fields vary by event kind. Extraction is therefore a tolerant
// multi-candidate lookup with operator-configurable override paths.
package provider

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

// ExtractConfig carries the operator overrides and the accepted-status filter
// for payload extraction. AmountMode ("auto", "cents", or "units") overrides
// the per-field unit convention; explicitly *_cents suffixed fields are
// always read as cents.
type ExtractConfig struct {
	ValuePath        string
	MessagePath      string
	SenderPath       string
	StatusPath       string
	AmountMode       string
	AcceptedStatuses []string
}

// Extracted is a provider-shape donation before id assignment.
type Extracted struct {
	Value   float64
	Message string
	Sender  string
	Status  string
}

// Ref identifies a provider event that must be fetched through the API
// before it can be processed.
type Ref struct {
	Type string
	ID   string
}

// getByPath walks a dot path through nested JSON objects. Returns nil when
// any segment is missing or not an object.
func getByPath(body map[string]any, dotPath string) any {
	parts := strings.Split(dotPath, ".")
	var cur any = body
	walked := false
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
		walked = true
	}
	if !walked {
		return nil
	}
	return cur
}

// asNumber coerces JSON numbers and numeric strings (comma decimal separator
// tolerated) to float64.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// NormalizeAmount converts a raw amount to currency units. Known units are
// converted directly; in auto mode a large integer is assumed to be cents
// (the provider API reports amounts that way).
func NormalizeAmount(raw any, unit string) (float64, bool) {
	n, ok := asNumber(raw)
	if !ok {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "cents", "centavos":
		return n / 100, true
	case "reais", "brl", "units":
		return n, true
	}
	if n == float64(int64(n)) && n >= 100 {
		return n / 100, true
	}
	return n, true
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return ""
	}
}

// candidate pairs a raw lookup with the unit its field convention implies.
type candidate struct {
	raw  any
	unit string
}

// ExtractDonation pulls value, message, sender, and status out of an inbound
// payload. A payload whose status is outside the accepted set, or that
// carries no usable value, yields ok=false with a short reason.
func ExtractDonation(body map[string]any, cfg ExtractConfig) (Extracted, bool, string) {
	var statusRaw any
	if cfg.StatusPath != "" {
		statusRaw = getByPath(body, cfg.StatusPath)
	}
	if statusRaw == nil {
		statusRaw = firstDefined(
			body["status"], body["event_status"],
			getByPath(body, "data.status"), getByPath(body, "payment.status"),
		)
	}
	status := strings.ToLower(strings.TrimSpace(asString(statusRaw)))

	if status != "" && len(cfg.AcceptedStatuses) > 0 {
		accepted := false
		for _, s := range cfg.AcceptedStatuses {
			if strings.EqualFold(strings.TrimSpace(s), status) {
				accepted = true
				break
			}
		}
		if !accepted {
			return Extracted{}, false, "ignored status=" + status
		}
	}

	candidates := []candidate{
		{raw: pathOrNil(body, cfg.ValuePath), unit: "auto"},
		{raw: body["value"], unit: "reais"},
		{raw: body["valor"], unit: "reais"},
		{raw: getByPath(body, "data.value"), unit: "reais"},
		{raw: getByPath(body, "payment.value"), unit: "reais"},
		{raw: body["amount"], unit: "cents"},
		{raw: getByPath(body, "data.amount"), unit: "cents"},
		{raw: getByPath(body, "payment.amount"), unit: "cents"},
	}

	// A non-auto amount mode overrides the field-convention unit.
	mode := strings.ToLower(strings.TrimSpace(cfg.AmountMode))
	forced := mode == "cents" || mode == "units"

	value, found := 0.0, false
	for _, c := range candidates {
		if c.raw == nil || c.raw == "" {
			continue
		}
		unit := c.unit
		if forced {
			unit = mode
		}
		if v, ok := NormalizeAmount(c.raw, unit); ok {
			value, found = v, true
			break
		}
	}
	if !found {
		centsRaw := firstDefined(
			body["value_cents"], body["amount_cents"],
			getByPath(body, "data.value_cents"), getByPath(body, "data.amount_cents"),
		)
		if centsRaw != nil {
			value, found = NormalizeAmount(centsRaw, "cents")
		}
	}
	if !found {
		return Extracted{}, false, "missing value"
	}

	messageRaw := firstDefined(
		pathOrNil(body, cfg.MessagePath),
		body["message"], body["mensagem"], body["comment"], body["description"],
		getByPath(body, "data.message"), getByPath(body, "data.comment"),
		getByPath(body, "payment.message"),
	)

	senderRaw := firstDefined(
		pathOrNil(body, cfg.SenderPath),
		body["sender"], body["from"], body["name"], body["tipper"], body["subscriber"],
		getByPath(body, "data.sender"), getByPath(body, "data.from"),
		getByPath(body, "data.tipper"), getByPath(body, "data.subscriber"),
		body["customer"], body["payer"],
	)

	return Extracted{
		Value:   value,
		Message: strings.TrimSpace(asString(messageRaw)),
		Sender:  normalizeSender(senderRaw),
		Status:  status,
	}, true, ""
}

// normalizeSender handles both plain string senders and object senders
// carrying name/fullName/username fields.
func normalizeSender(v any) string {
	switch s := v.(type) {
	case string:
		return domain.NormalizeSender(s)
	case map[string]any:
		for _, k := range []string{"name", "fullName", "username"} {
			if n := strings.TrimSpace(asString(s[k])); n != "" {
				return n
			}
		}
	}
	return domain.AnonSender
}

// ExtractRef pulls the event reference {type, id} out of a payload that
// carries no inline donation, inferring the type from id field names when the
// payload omits it. Returns ok=false when either part is missing.
func ExtractRef(body map[string]any) (Ref, bool) {
	typeRaw := firstDefined(
		body["type"], body["event"], body["kind"],
		getByPath(body, "data.type"), getByPath(body, "data.event"),
	)
	idRaw := firstDefined(
		body["messageId"], body["subscriptionId"], body["id"],
		getByPath(body, "data.messageId"), getByPath(body, "data.subscriptionId"),
		getByPath(body, "data.id"),
	)

	t := strings.ToLower(strings.TrimSpace(asString(typeRaw)))
	id := strings.TrimSpace(asString(idRaw))

	if t == "" {
		if firstDefined(body["messageId"], getByPath(body, "data.messageId")) != nil {
			t = "message"
		} else if firstDefined(body["subscriptionId"], getByPath(body, "data.subscriptionId")) != nil {
			t = "subscription"
		}
	}

	if t == "" || id == "" {
		return Ref{}, false
	}
	return Ref{Type: t, ID: id}, true
}

// ExtractExternalID returns the first provider-assigned identifier found in
// the payload, or "".
func ExtractExternalID(body map[string]any) string {
	idRaw := firstDefined(
		body["messageId"], body["subscriptionId"], body["pixId"], body["reference"], body["id"],
		getByPath(body, "data.messageId"), getByPath(body, "data.subscriptionId"),
		getByPath(body, "data.pixId"), getByPath(body, "data.reference"),
		getByPath(body, "data.id"),
	)
	return strings.TrimSpace(asString(idRaw))
}

var unsafeIDRE = regexp.MustCompile(`(?i)[^a-z0-9_-]+`)

// StableID builds the dedup id for a provider event: "lp_<type>_<id>" with
// unsafe characters collapsed, so redeliveries of the same external event map
// to the same donation id.
func StableID(parts ...string) string {
	out := "lp"
	for _, p := range parts {
		if p == "" {
			continue
		}
		out += "_" + unsafeIDRE.ReplaceAllString(p, "_")
	}
	return out
}

// VerifySecret checks the shared webhook secret against the request. The
// secret may arrive in the X-Webhook-Secret header (plus legacy variants), a
// bearer Authorization header, or the token/secret query parameters. An empty
// configured secret disables the check.
func VerifySecret(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	return readSecret(r) == secret
}

func readSecret(r *http.Request) string {
	for _, h := range []string{"X-Webhook-Secret", "X-Livepix-Secret", "X-Hook-Secret"} {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
	}
	q := r.URL.Query()
	if v := q.Get("token"); v != "" {
		return v
	}
	return q.Get("secret")
}

func pathOrNil(body map[string]any, path string) any {
	if path == "" {
		return nil
	}
	return getByPath(body, path)
}

func firstDefined(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
