// Package gamedata loads the static language and text-emote tables that the
// chat gates consult. Tables are TOML; a default set is embedded.
package gamedata

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/realmchat/chat-engine/internal/chat"
)

//go:embed tables.toml
var defaultTables string

// LanguageDesc describes one speakable language.
type LanguageDesc struct {
	ID    chat.Language `toml:"id"`
	Name  string        `toml:"name"`
	Skill uint32        `toml:"skill"`
}

// TextEmote maps a text emote to the animation it plays.
type TextEmote struct {
	ID        uint32 `toml:"id"`
	Name      string `toml:"name"`
	Animation uint32 `toml:"animation"`
}

type file struct {
	Languages  []LanguageDesc `toml:"language"`
	TextEmotes []TextEmote    `toml:"text_emote"`
}

// Tables is an immutable, concurrency-safe lookup over the loaded data.
type Tables struct {
	languages map[chat.Language]LanguageDesc
	emotes    map[uint32]TextEmote
}

// Default parses the embedded tables.
func Default() (*Tables, error) {
	return parse(defaultTables)
}

// LoadFile parses tables from a TOML file on disk.
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gamedata: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses tables from r.
func Load(r io.Reader) (*Tables, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gamedata: read: %w", err)
	}
	return parse(string(data))
}

func parse(data string) (*Tables, error) {
	var f file
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("gamedata: decode: %w", err)
	}

	t := &Tables{
		languages: make(map[chat.Language]LanguageDesc, len(f.Languages)),
		emotes:    make(map[uint32]TextEmote, len(f.TextEmotes)),
	}
	for _, l := range f.Languages {
		if _, dup := t.languages[l.ID]; dup {
			return nil, fmt.Errorf("gamedata: duplicate language id %d", l.ID)
		}
		t.languages[l.ID] = l
	}
	for _, e := range f.TextEmotes {
		if _, dup := t.emotes[e.ID]; dup {
			return nil, fmt.Errorf("gamedata: duplicate text emote id %d", e.ID)
		}
		t.emotes[e.ID] = e
	}
	return t, nil
}

// Language returns the descriptor for id.
func (t *Tables) Language(id chat.Language) (LanguageDesc, bool) {
	l, ok := t.languages[id]
	return l, ok
}

// TextEmote returns the text emote entry for id.
func (t *Tables) TextEmote(id uint32) (TextEmote, bool) {
	e, ok := t.emotes[id]
	return e, ok
}
