package moderation

import (
	"errors"
	"testing"

	"github.com/realmchat/chat-engine/internal/chat"
)

const swordLink = "|cff0070dd|Hitem:19019:0:0:0|h[Thunderfury]|h|r"

func TestStripInvisible(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "hello world", "hello world"},
		{"zero width space", "he\u200bllo", "hello"},
		{"bidi override", "abc\u202edef", "abcdef"},
		{"tab run", "a\t\t b", "a b"},
		{"newline and bell", "a\n\ab", "a b"},
		{"trailing space", "hello   ", "hello"},
		{"leading kept single", "  hi", " hi"},
		{"control char", "a\x01b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripInvisible(tt.input); got != tt.want {
				t.Errorf("StripInvisible(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLinks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		severity int
		valid    bool
	}{
		{"no links", "hello there", 1, true},
		{"escaped pipe", "a || b", 1, true},
		{"item link", "buy " + swordLink + " now", 1, true},
		{"two links", swordLink + swordLink, 2, true},
		{"trailing pipe", "oops |", 1, false},
		{"unknown escape", "|Tinterface\\icon|t", 1, false},
		{"short color", "|cff00|Hitem:1|h[x]|h|r", 1, false},
		{"bad hex", "|cffzz70dd|Hitem:1|h[x]|h|r", 1, false},
		{"missing H", "|cff0070dd[x]|h|r", 1, false},
		{"missing data", "|cff0070dd|Hitem|h[x]|h|r", 1, false},
		{"missing reset", "|cff0070dd|Hitem:1|h[x]|h", 1, false},
		{"empty text", "|cff0070dd|Hitem:1|h[]|h|r", 1, false},
		{"nested brackets", "|cff0070dd|Hitem:1|h[a[b]|h|r", 1, false},
		{"wrong color sev1", "|cff71d5ff|Hitem:1|h[x]|h|r", 1, true},
		{"wrong color sev2", "|cff71d5ff|Hitem:1|h[x]|h|r", 2, false},
		{"unknown type sev2", "|cffffffff|Hfoo:1|h[x]|h|r", 2, false},
		{"spell sev2", "|cff71d5ff|Hspell:133|h[Fireball]|h|r", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidLinks(tt.input, tt.severity); got != tt.valid {
				t.Errorf("ValidLinks(%q, %d) = %v, want %v", tt.input, tt.severity, got, tt.valid)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	bad := "look |cff0070dd|Hitem:1|h[x]|h"

	t.Run("addon untouched", func(t *testing.T) {
		f := NewFilter(Policy{StripInvisible: true, LinkSeverity: 2})
		body := "CMD\tpay|load\u200b"
		got, err := f.Sanitize(body, chat.LanguageAddon)
		if err != nil || got != body {
			t.Errorf("Sanitize = %q, %v; want body unchanged", got, err)
		}
	})

	t.Run("strip disabled", func(t *testing.T) {
		f := NewFilter(Policy{})
		got, _ := f.Sanitize("a\u200bb", chat.LanguageCommon)
		if got != "a\u200bb" {
			t.Errorf("got %q, want unchanged body", got)
		}
	})

	t.Run("strip enabled", func(t *testing.T) {
		f := NewFilter(Policy{StripInvisible: true})
		got, _ := f.Sanitize("a\u200bb  c", chat.LanguageCommon)
		if got != "ab c" {
			t.Errorf("got %q, want %q", got, "ab c")
		}
	})

	t.Run("link check off", func(t *testing.T) {
		f := NewFilter(Policy{})
		if _, err := f.Sanitize(bad, chat.LanguageCommon); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("drop without kick", func(t *testing.T) {
		f := NewFilter(Policy{LinkSeverity: 1})
		_, err := f.Sanitize(bad, chat.LanguageCommon)
		if !errors.Is(err, ErrInvalidLink) {
			t.Fatalf("err = %v, want ErrInvalidLink", err)
		}
		r, _ := chat.AsRejection(err)
		if r.Kind != chat.KindContentRejected || r.Kick {
			t.Errorf("rejection = %+v, want content rejected without kick", r)
		}
	})

	t.Run("drop with kick", func(t *testing.T) {
		f := NewFilter(Policy{LinkSeverity: 1, KickOnViolation: true})
		_, err := f.Sanitize(bad, chat.LanguageCommon)
		r, ok := chat.AsRejection(err)
		if !ok || !r.Kick {
			t.Errorf("rejection = %+v, want kick", r)
		}
	})
}
