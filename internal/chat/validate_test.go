package chat

import (
	"errors"
	"strings"
	"testing"

	"auramind/pkg/domain"
)

func TestValidateMessageBounds(t *testing.T) {
	if _, err := validateMessage(strings.Repeat("a", 2000)); err != nil {
		t.Fatalf("message of exactly 2000 chars should pass: %v", err)
	}
	if _, err := validateMessage(strings.Repeat("a", 2001)); err == nil {
		t.Fatalf("message of 2001 chars should be rejected")
	}
	// The limit counts characters, not bytes: 2000 two-byte runes pass.
	if _, err := validateMessage(strings.Repeat("ü", 2000)); err != nil {
		t.Fatalf("message of 2000 multibyte chars should pass: %v", err)
	}
	if _, err := validateMessage(strings.Repeat("ü", 2001)); err == nil {
		t.Fatalf("message of 2001 multibyte chars should be rejected")
	}
	if _, err := validateMessage("   \n\t  "); err == nil {
		t.Fatalf("all-whitespace message should be rejected as empty")
	}
	trimmed, err := validateMessage("  hello  ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if trimmed != "hello" {
		t.Fatalf("message should be trimmed, got %q", trimmed)
	}

	var vErr *ValidationError
	_, err = validateMessage("")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateConversationID(t *testing.T) {
	if id, err := validateConversationID(""); err != nil || id != "" {
		t.Fatalf("empty id means new conversation: id=%q err=%v", id, err)
	}
	valid := "a3bb189e-8bf9-3888-9912-ace4e6543002"
	if id, err := validateConversationID(valid); err != nil || id != valid {
		t.Fatalf("canonical uuid should pass: %v", err)
	}
	// Only the canonical hyphenated form counts: no bare hex, urn prefix,
	// braces, trailing junk, or non-hex digits.
	for _, bad := range []string{
		"not-a-uuid",
		"a3bb189e8bf938889912ace4e6543002",
		"urn:uuid:a3bb189e-8bf9-3888-9912-ace4e6543002",
		"{a3bb189e-8bf9-3888-9912-ace4e6543002}",
		"a3bb189e-8bf9-3888-9912-ace4e6543002x",
		"g3bb189e-8bf9-3888-9912-ace4e6543002",
	} {
		if _, err := validateConversationID(bad); err == nil {
			t.Errorf("id %q should be rejected", bad)
		}
	}
}

func TestNormalizeContextType(t *testing.T) {
	cases := map[string]domain.ContextType{
		"chart":           domain.ContextChart,
		"transit":         domain.ContextTransit,
		"general":         domain.ContextGeneral,
		"transit_insight": domain.ContextTransitInsight,
		"chart_reading":   domain.ContextChartReading,
		"compatibility":   domain.ContextCompatibility,
		"dream":           domain.ContextDream,
		"journal":         domain.ContextJournal,
		"unknown_value":   domain.ContextGeneral,
		"":                domain.ContextGeneral,
		"CHART":           domain.ContextGeneral, // case-sensitive, like the clients send it
	}
	for input, want := range cases {
		if got := normalizeContextType(input); got != want {
			t.Errorf("normalizeContextType(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestValidateChartContextStripsUnknownKeys(t *testing.T) {
	filtered, err := validateChartContext(map[string]any{
		"type":      "Generator",
		"authority": "Sacral",
		"secret":    "x",
		"__proto__": "y",
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, ok := filtered["secret"]; ok {
		t.Fatalf("unlisted key should be stripped silently")
	}
	if _, ok := filtered["__proto__"]; ok {
		t.Fatalf("unlisted key should be stripped silently")
	}
	if filtered["type"] != "Generator" || filtered["authority"] != "Sacral" {
		t.Fatalf("allow-listed keys should survive: %v", filtered)
	}
}

func TestValidateChartContextSizeCap(t *testing.T) {
	big := map[string]any{"name": strings.Repeat("x", MaxChartContextSize)}
	if _, err := validateChartContext(big); err == nil {
		t.Fatalf("oversized chart context should be rejected")
	}
	if filtered, err := validateChartContext(nil); err != nil || filtered != nil {
		t.Fatalf("nil context passes through: %v", err)
	}

	// The cap counts serialized characters, not bytes. The wrapper
	// {"name":""} is 11 characters, so MaxChartContextSize-11 two-byte
	// runes serialize to exactly MaxChartContextSize characters.
	exact := map[string]any{"name": strings.Repeat("é", MaxChartContextSize-11)}
	if _, err := validateChartContext(exact); err != nil {
		t.Fatalf("multibyte context at the cap should pass: %v", err)
	}
	over := map[string]any{"name": strings.Repeat("é", MaxChartContextSize-10)}
	if _, err := validateChartContext(over); err == nil {
		t.Fatalf("multibyte context over the cap should be rejected")
	}
}
