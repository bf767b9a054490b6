package provider

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractDonation_ValueCandidates(t *testing.T) {
	cfg := ExtractConfig{}

	cases := []struct {
		name string
		body map[string]any
		want float64
	}{
		{"top-level value in units", map[string]any{"value": 12.5}, 12.5},
		{"valor alias", map[string]any{"valor": 7.0}, 7},
		{"nested data.value", map[string]any{"data": map[string]any{"value": 3.0}}, 3},
		{"payment.value", map[string]any{"payment": map[string]any{"value": 9.9}}, 9.9},
		{"amount is cents", map[string]any{"amount": 1500.0}, 15},
		{"data.amount is cents", map[string]any{"data": map[string]any{"amount": 250.0}}, 2.5},
		{"value_cents fallback", map[string]any{"value_cents": 500.0}, 5},
		{"numeric string with comma", map[string]any{"value": "10,50"}, 10.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, reason := ExtractDonation(tc.body, cfg)
			if !ok {
				t.Fatalf("not ok: %s", reason)
			}
			if got.Value != tc.want {
				t.Fatalf("value = %v, want %v", got.Value, tc.want)
			}
		})
	}
}

func TestExtractDonation_MissingValue(t *testing.T) {
	_, ok, reason := ExtractDonation(map[string]any{"message": "hi"}, ExtractConfig{})
	if ok {
		t.Fatalf("extracted a donation with no value")
	}
	if reason != "missing value" {
		t.Fatalf("reason = %q", reason)
	}
}

func TestExtractDonation_StatusFilter(t *testing.T) {
	cfg := ExtractConfig{AcceptedStatuses: []string{"approved", "paid"}}

	if _, ok, reason := ExtractDonation(map[string]any{"value": 10.0, "status": "PENDING"}, cfg); ok || !strings.HasPrefix(reason, "ignored status=") {
		t.Fatalf("pending status passed filter (ok=%v reason=%q)", ok, reason)
	}
	if got, ok, _ := ExtractDonation(map[string]any{"value": 10.0, "status": "Approved"}, cfg); !ok || got.Status != "approved" {
		t.Fatalf("accepted status rejected: ok=%v got=%+v", ok, got)
	}
	// Absent status is not filtered.
	if _, ok, _ := ExtractDonation(map[string]any{"value": 10.0}, cfg); !ok {
		t.Fatalf("statusless payload rejected")
	}
}

func TestExtractDonation_SenderShapes(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"plain string", map[string]any{"value": 1.0, "sender": "Alice"}, "Alice"},
		{"from alias", map[string]any{"value": 1.0, "from": "Bob"}, "Bob"},
		{"object with name", map[string]any{"value": 1.0, "sender": map[string]any{"name": "Carol"}}, "Carol"},
		{"object with username", map[string]any{"value": 1.0, "sender": map[string]any{"username": "dave99"}}, "dave99"},
		{"blank string goes anonymous", map[string]any{"value": 1.0, "sender": "   "}, "Anon"},
		{"missing goes anonymous", map[string]any{"value": 1.0}, "Anon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, _ := ExtractDonation(tc.body, ExtractConfig{})
			if !ok || got.Sender != tc.want {
				t.Fatalf("sender = %q (ok=%v), want %q", got.Sender, ok, tc.want)
			}
		})
	}
}

func TestExtractDonation_OperatorPathOverrides(t *testing.T) {
	cfg := ExtractConfig{
		ValuePath:   "payload.donation.total",
		MessagePath: "payload.note",
		SenderPath:  "payload.who",
	}
	body := map[string]any{
		"payload": map[string]any{
			"donation": map[string]any{"total": 42.0},
			"note":     "  custom path  ",
			"who":      "Eve",
		},
	}
	got, ok, _ := ExtractDonation(body, cfg)
	if !ok {
		t.Fatalf("override extraction failed")
	}
	if got.Value != 42 || got.Message != "custom path" || got.Sender != "Eve" {
		t.Fatalf("got = %+v", got)
	}
}

func TestExtractDonation_AmountModeOverride(t *testing.T) {
	cases := []struct {
		name string
		mode string
		body map[string]any
		want float64
	}{
		// "value" is read as units by convention; cents mode overrides that.
		{"cents over value field", "cents", map[string]any{"value": 2500.0}, 25},
		// "amount" is read as cents by convention; units mode overrides that.
		{"units over amount field", "units", map[string]any{"amount": 300.0}, 300},
		// Auto keeps the field conventions.
		{"auto keeps convention", "auto", map[string]any{"value": 2500.0}, 2500},
		// An explicit *_cents field is cents no matter the mode.
		{"cents suffix wins", "units", map[string]any{"value_cents": 750.0}, 7.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, reason := ExtractDonation(tc.body, ExtractConfig{AmountMode: tc.mode})
			if !ok {
				t.Fatalf("extraction failed: %s", reason)
			}
			if got.Value != tc.want {
				t.Fatalf("value = %v, want %v", got.Value, tc.want)
			}
		})
	}
}

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		raw  any
		unit string
		want float64
	}{
		{500.0, "cents", 5},
		{12.5, "reais", 12.5},
		{1500.0, "units", 1500}, // explicit units bypass the cents heuristic
		{1500.0, "auto", 15},  // large integer assumed cents
		{99.0, "auto", 99},    // small integer kept as units
		{10.5, "auto", 10.5},   // fractional never treated as cents
		{"2,50", "reais", 2.5}, // comma decimal separator
	}
	for _, tc := range cases {
		got, ok := NormalizeAmount(tc.raw, tc.unit)
		if !ok || got != tc.want {
			t.Errorf("NormalizeAmount(%v, %q) = %v (ok=%v), want %v", tc.raw, tc.unit, got, ok, tc.want)
		}
	}

	if _, ok := NormalizeAmount("not a number", "auto"); ok {
		t.Fatalf("garbage coerced to a number")
	}
}

func TestExtractRef(t *testing.T) {
	cases := []struct {
		name   string
		body   map[string]any
		want   Ref
		wantOK bool
	}{
		{"explicit type", map[string]any{"type": "Message", "id": "m1"}, Ref{Type: "message", ID: "m1"}, true},
		{"inferred from messageId", map[string]any{"messageId": "m2"}, Ref{Type: "message", ID: "m2"}, true},
		{"inferred from subscriptionId", map[string]any{"subscriptionId": "s1"}, Ref{Type: "subscription", ID: "s1"}, true},
		{"nested data", map[string]any{"data": map[string]any{"type": "payment", "id": "p1"}}, Ref{Type: "payment", ID: "p1"}, true},
		{"no id", map[string]any{"type": "message"}, Ref{}, false},
		{"nothing", map[string]any{"hello": "world"}, Ref{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractRef(tc.body)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("got %+v ok=%v, want %+v ok=%v", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestStableID(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"message", "abc-123"}, "lp_message_abc-123"},
		{[]string{"payment", "we!rd id#"}, "lp_payment_we_rd_id_"},
		{[]string{"", "x"}, "lp_x"},
		{nil, "lp"},
	}
	for _, tc := range cases {
		if got := StableID(tc.parts...); got != tc.want {
			t.Errorf("StableID(%v) = %q, want %q", tc.parts, got, tc.want)
		}
	}

	// Redelivery invariant: identical input, identical id.
	if StableID("message", "m1") != StableID("message", "m1") {
		t.Fatalf("StableID not deterministic")
	}
}

func TestVerifySecret(t *testing.T) {
	const secret = "s3cret"

	mk := func(target string, headers map[string]string) bool {
		r := httptest.NewRequest("POST", target, nil)
		for k, v := range headers {
			r.Header.Set(k, v)
		}
		return VerifySecret(r, secret)
	}

	if !mk("/webhook/donations", map[string]string{"X-Webhook-Secret": secret}) {
		t.Fatalf("header secret rejected")
	}
	if !mk("/webhook/donations", map[string]string{"X-Livepix-Secret": secret}) {
		t.Fatalf("legacy header rejected")
	}
	if !mk("/webhook/donations", map[string]string{"Authorization": "Bearer " + secret}) {
		t.Fatalf("bearer secret rejected")
	}
	if !mk("/webhook/donations?token="+secret, nil) {
		t.Fatalf("token query rejected")
	}
	if !mk("/webhook/donations?secret="+secret, nil) {
		t.Fatalf("secret query rejected")
	}
	if mk("/webhook/donations", map[string]string{"X-Webhook-Secret": "wrong"}) {
		t.Fatalf("wrong secret accepted")
	}
	if mk("/webhook/donations", nil) {
		t.Fatalf("missing secret accepted")
	}

	// Empty configured secret disables the check entirely.
	r := httptest.NewRequest("POST", "/webhook/donations", nil)
	if !VerifySecret(r, "") {
		t.Fatalf("empty configured secret must disable auth")
	}
}
