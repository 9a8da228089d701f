package gamedata

import (
	"strings"
	"testing"

	"github.com/realmchat/chat-engine/internal/chat"
)

func TestDefaultTables(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	orc, ok := tables.Language(chat.LanguageOrcish)
	if !ok {
		t.Fatal("expected Orcish descriptor")
	}
	if orc.Skill != 109 {
		t.Errorf("Orcish skill = %d, want 109", orc.Skill)
	}

	addon, ok := tables.Language(chat.LanguageAddon)
	if !ok || addon.Skill != 0 {
		t.Errorf("Addon descriptor = %+v ok=%v, want skill-free descriptor", addon, ok)
	}

	if _, ok := tables.Language(chat.Language(999)); ok {
		t.Error("unexpected descriptor for unknown language 999")
	}

	wave, ok := tables.TextEmote(101)
	if !ok || wave.Animation != 3 {
		t.Errorf("wave = %+v ok=%v, want animation 3", wave, ok)
	}
}

func TestLoadRejectsDuplicates(t *testing.T) {
	data := `
[[language]]
id = 1
name = "a"

[[language]]
id = 1
name = "b"
`
	if _, err := Load(strings.NewReader(data)); err == nil {
		t.Fatal("expected duplicate language error")
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load(strings.NewReader("[[language]\nid=")); err == nil {
		t.Fatal("expected decode error")
	}
}
