package audience

import (
	"context"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/notice"
)

func (r *Resolver) whisper(ctx context.Context, to string, lang chat.Language, sender chat.Player, body string) error {
	name, ok := NormalizeName(to)
	if !ok {
		return chat.RejectWithNotice(chat.KindNotFound, ErrTargetNotFound, notice.PlayerNotFound, to)
	}

	receiver, ok := r.world.PlayerByName(name)
	if !ok || (receiver.Can(chat.CapFilterWhispers) && !receiver.AcceptsWhispers() && !receiver.WhisperAllowed(sender.ID())) {
		return chat.RejectWithNotice(chat.KindNotFound, ErrTargetNotFound, notice.PlayerNotFound, to)
	}

	allowed := receiver.WhisperAllowed(sender.ID())
	if !sender.IsGameMaster() && sender.Level() < r.opts.WhisperLevel && !allowed {
		return chat.RejectWithNotice(chat.KindPermissionDenied, ErrLevelTooLow, notice.WhisperLevelReq, r.opts.WhisperLevel)
	}
	if sender.Faction() != receiver.Faction() && !sender.Can(chat.CapCrossFactionChat) && !allowed {
		return chat.RejectWithNotice(chat.KindPermissionDenied, ErrWrongFaction, notice.WrongFaction)
	}
	if sender.IsGMSilenced() && !receiver.IsGameMaster() {
		return chat.RejectWithNotice(chat.KindPermissionDenied, ErrSilenced, notice.GMSilence, sender.Name())
	}

	// Let the receiver answer: a low-level receiver could not whisper back,
	// and neither could anyone when a filtering sender refuses whispers.
	if receiver.Level() < r.opts.WhisperLevel ||
		(sender.Can(chat.CapFilterWhispers) && !sender.AcceptsWhispers() && !sender.WhisperAllowed(receiver.ID())) {
		sender.AllowWhispersFrom(receiver.ID())
	}

	addon := lang == chat.LanguageAddon
	if !addon {
		lang = chat.LanguageUniversal
	}

	msg := chat.NewMessage(chat.CategoryWhisper, lang, sender, body)
	msg.TargetID = receiver.ID()
	r.fanOut(sender, msg, KindWhisper, []chat.PlayerID{receiver.ID()})

	if addon {
		if r.addon != nil {
			r.addon.HandleAddon(ctx, sender, body)
		}
		return nil
	}

	inform := chat.NewMessage(chat.CategoryWhisperInform, lang, receiver, body)
	inform.TargetID = sender.ID()
	r.sink.Deliver(sender.ID(), inform)

	if afk, dnd, text := receiver.AutoReply().State(); afk || dnd {
		category := chat.CategoryAfk
		if dnd {
			category = chat.CategoryDnd
		}
		reply := chat.NewMessage(category, chat.LanguageUniversal, receiver, text)
		reply.TargetID = sender.ID()
		r.sink.Deliver(sender.ID(), reply)
	}
	return nil
}
