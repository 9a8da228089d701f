// Package language decides which language a chat event is delivered in and
// whether the sender may use it at all.
package language

import (
	"errors"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/gamedata"
	"github.com/realmchat/chat-engine/internal/notice"
)

var (
	ErrUniversalClaimed   = errors.New("universal language claimed outside auto-reply")
	ErrUnknownLanguage    = errors.New("unknown language")
	ErrNotLearned         = errors.New("language not learned")
	ErrInvalidCombination = errors.New("invalid language/category combination")
	ErrAddonDisabled      = errors.New("addon channel disabled")
)

// Descriptors looks up language descriptors. *gamedata.Tables satisfies it.
type Descriptors interface {
	Language(id chat.Language) (gamedata.LanguageDesc, bool)
}

// Options are the administrative switches the gate honours.
type Options struct {
	AddonChannel      bool
	CrossFactionGroup bool
	CrossFactionGuild bool
}

// Gate resolves the delivery language of an event.
type Gate struct {
	langs Descriptors
	opts  Options
}

// NewGate creates a Gate over the given descriptor table.
func NewGate(langs Descriptors, opts Options) *Gate {
	return &Gate{langs: langs, opts: opts}
}

// Resolve returns the language ev is delivered in, or a *chat.Rejection.
func (g *Gate) Resolve(ev chat.Event, sender chat.Player) (chat.Language, error) {
	requested := ev.Language

	if requested == chat.LanguageUniversal && !ev.Category.IsAutoReply() {
		return 0, chat.RejectWithNotice(chat.KindProtocolViolation, ErrUniversalClaimed, notice.UnknownLanguage)
	}

	desc, ok := g.langs.Language(requested)
	if !ok {
		return 0, chat.RejectWithNotice(chat.KindProtocolViolation, ErrUnknownLanguage, notice.UnknownLanguage)
	}

	if desc.Skill != 0 && !sender.HasSkill(desc.Skill) && !sender.Comprehends(requested) {
		return 0, chat.RejectWithNotice(chat.KindPermissionDenied, ErrNotLearned, notice.LanguageNotLearned)
	}

	if requested == chat.LanguageAddon {
		if !ev.Category.AcceptsAddon() {
			return 0, chat.Reject(chat.KindProtocolViolation, ErrInvalidCombination)
		}
		if !g.opts.AddonChannel {
			return 0, chat.Reject(chat.KindSilentNoop, ErrAddonDisabled)
		}
		return chat.LanguageAddon, nil
	}

	return g.override(ev.Category, requested, sender), nil
}

// override applies the capability and administrative overrides, highest
// priority first.
func (g *Gate) override(category chat.Category, requested chat.Language, sender chat.Player) chat.Language {
	if sender.IsGameMaster() {
		return chat.LanguageUniversal
	}
	if lang, ok := sender.LanguageOverride(); ok {
		return lang
	}
	if sender.Can(chat.CapCrossFactionChat) {
		return chat.LanguageUniversal
	}
	if category.IsGroup() && g.opts.CrossFactionGroup {
		return chat.LanguageUniversal
	}
	if category.IsGuild() && g.opts.CrossFactionGuild {
		return chat.LanguageUniversal
	}
	return requested
}
