// Package notice names the server notices sent to players when chat is
// refused and renders them through a golang.org/x/text message catalog.
package notice

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a notice string.
type Key string

const (
	UnknownLanguage    Key = "chat.unknown_language"
	LanguageNotLearned Key = "chat.language_not_learned"
	WaitBeforeSpeaking Key = "chat.wait_before_speaking"
	GMSilence          Key = "chat.gm_silence"
	SayLevelReq        Key = "chat.say_level_req"
	WhisperLevelReq    Key = "chat.whisper_level_req"
	ChannelLevelReq    Key = "chat.channel_level_req"
	PlayerNotFound     Key = "chat.player_not_found"
	WrongFaction       Key = "chat.wrong_faction"
	AFKDefault         Key = "chat.afk_default"
	DNDDefault         Key = "chat.dnd_default"
	GameNameTooShort   Key = "lobby.game_name_too_short"
	CheatDetected      Key = "lobby.cheat_detected"
	JoinGameFailed     Key = "lobby.join_failed"
)

// DefaultLocale is the locale every key has a string for.
var DefaultLocale = language.AmericanEnglish

var defaults = map[Key]string{
	UnknownLanguage:    "You don't know that language.",
	LanguageNotLearned: "You haven't learned that language yet.",
	WaitBeforeSpeaking: "You must wait %s before speaking again.",
	GMSilence:          "Silence is ON for %s",
	SayLevelReq:        "You must be level %d to speak.",
	WhisperLevelReq:    "You must be level %d to whisper.",
	ChannelLevelReq:    "You must be level %d to speak in channels.",
	PlayerNotFound:     "No player named '%s' is currently playing.",
	WrongFaction:       "You cannot whisper players of the opposing faction.",
	AFKDefault:         "Away from Keyboard",
	DNDDefault:         "Do not Disturb",
	GameNameTooShort:   "Game name is too short!",
	CheatDetected:      "Cheat detected, failed to add to game.",
	JoinGameFailed:     "Something went wrong trying to join this game!",
}

// Catalog resolves notice keys to localized text. A locale with no
// translations, or without the requested key, renders the default locale.
type Catalog struct {
	builder *catalog.Builder

	mu      sync.RWMutex
	tags    []language.Tag // DefaultLocale first
	keys    map[language.Tag]map[Key]bool
	matcher language.Matcher
}

// NewCatalog returns a catalog seeded with the default locale strings.
func NewCatalog() *Catalog {
	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(DefaultLocale)),
		keys:    make(map[language.Tag]map[Key]bool),
	}
	for key, text := range defaults {
		// Only fails on malformed tags; DefaultLocale is static.
		_ = c.Set(DefaultLocale, key, text)
	}
	return c
}

// Set registers or replaces the text of key for tag.
func (c *Catalog) Set(tag language.Tag, key Key, text string) error {
	if err := c.builder.SetString(tag, string(key), text); err != nil {
		return fmt.Errorf("notice: set %s/%s: %w", tag, key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[tag] == nil {
		c.keys[tag] = make(map[Key]bool)
		c.tags = append(c.tags, tag)
		c.matcher = language.NewMatcher(c.tags)
	}
	c.keys[tag][key] = true
	return nil
}

// Text renders key for tag with args.
func (c *Catalog) Text(tag language.Tag, key Key, args ...any) string {
	p := message.NewPrinter(c.resolve(tag, key), message.Catalog(c.builder))
	return p.Sprintf(string(key), args...)
}

// resolve picks the registered locale closest to tag that has key.
func (c *Catalog) resolve(tag language.Tag, key Key) language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.matcher == nil {
		return DefaultLocale
	}
	_, i, conf := c.matcher.Match(tag)
	if conf == language.No {
		return DefaultLocale
	}
	if best := c.tags[i]; c.keys[best][key] {
		return best
	}
	return DefaultLocale
}

// FormatWait renders a remaining mute duration the way the wait notice
// expects, e.g. "1 Hour(s) 5 Second(s)".
func FormatWait(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs <= 0 {
		return "0 Second(s)"
	}
	units := []struct {
		size int64
		name string
	}{
		{86400, "Day(s)"},
		{3600, "Hour(s)"},
		{60, "Minute(s)"},
		{1, "Second(s)"},
	}
	var parts []string
	for _, u := range units {
		if n := secs / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, u.name))
			secs %= u.size
		}
	}
	return strings.Join(parts, " ")
}
