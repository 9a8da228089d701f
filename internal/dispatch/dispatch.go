// Package dispatch runs every inbound chat event through the gating pipeline
// and hands the survivors to the audience resolver. It is the only place
// where a rejection becomes a notice, a log line or a kick.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/audience"
	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/emote"
	langgate "github.com/realmchat/chat-engine/internal/language"
	"github.com/realmchat/chat-engine/internal/metrics"
	"github.com/realmchat/chat-engine/internal/moderation"
	"github.com/realmchat/chat-engine/internal/notice"
	"github.com/realmchat/chat-engine/internal/speech"
)

var (
	ErrWrongMessageType = errors.New("wrong message type")
	ErrInCombat         = errors.New("afk toggle suppressed in combat")
	ErrEmptyBody        = errors.New("empty message body")
	ErrCommand          = errors.New("body consumed by command")
)

// Notifier sends a plain server notice to a player in their locale.
type Notifier interface {
	Notify(to chat.PlayerID, key notice.Key, args ...any)
}

// Kicker terminates a player's connection. It must not block.
type Kicker interface {
	Kick(id chat.PlayerID, reason string)
}

// CommandParser may claim a chat body as a server command. A claimed body is
// never delivered.
type CommandParser interface {
	ParseCommand(ctx context.Context, sender chat.Player, body string) bool
}

// Config wires the pipeline stages. Commands and Emotes may be nil.
type Config struct {
	Languages *langgate.Gate
	Speech    *speech.Gate
	Filter    *moderation.Filter
	Resolver  *audience.Resolver
	Emotes    *emote.Broadcaster
	Commands  CommandParser
	Sink      chat.Sink
	Notifier  Notifier
	Kicker    Kicker
	Catalog   *notice.Catalog
}

// Dispatcher processes events for every session. Calls for one sender must
// be serialized by the caller; calls for different senders may run
// concurrently.
type Dispatcher struct {
	cfg       Config
	observers []audience.Observer
}

// New creates a Dispatcher. A nil Catalog falls back to the default notices.
func New(cfg Config) *Dispatcher {
	if cfg.Catalog == nil {
		cfg.Catalog = notice.NewCatalog()
	}
	return &Dispatcher{cfg: cfg}
}

// Observe registers o for delivered messages and auto-reply toggles.
// Register observers before the dispatcher is shared.
func (d *Dispatcher) Observe(o audience.Observer) {
	d.observers = append(d.observers, o)
	d.cfg.Resolver.Observe(o)
}

// HandleChat runs ev from sender through the pipeline. The returned error is
// the rejection that stopped it, already turned into its side effects; it
// is returned for callers that want to inspect it.
func (d *Dispatcher) HandleChat(ctx context.Context, sender chat.Player, ev chat.Event) error {
	start := time.Now()
	defer func() { metrics.DispatchLatency.Observe(time.Since(start).Seconds()) }()

	err := d.handle(ctx, sender, ev)
	if err != nil {
		d.reject(sender, ev, err)
	}
	return err
}

func (d *Dispatcher) handle(ctx context.Context, sender chat.Player, ev chat.Event) error {
	if !ev.Category.IsValid() || !ev.Category.IsInbound() {
		return chat.Reject(chat.KindProtocolViolation, ErrWrongMessageType)
	}
	metrics.ChatEvents.WithLabelValues(ev.Category.String()).Inc()

	lang, err := d.cfg.Languages.Resolve(ev, sender)
	if err != nil {
		return err
	}
	if err := d.cfg.Speech.Check(ctx, ev, lang, sender); err != nil {
		return err
	}

	body := ev.Body
	if !ev.Category.IsAutoReply() {
		if body == "" {
			return chat.Reject(chat.KindSilentNoop, ErrEmptyBody)
		}
		if d.cfg.Commands != nil && d.cfg.Commands.ParseCommand(ctx, sender, body) {
			return chat.Reject(chat.KindSilentNoop, ErrCommand)
		}
	}

	body, err = d.cfg.Filter.Sanitize(body, lang)
	if err != nil {
		return err
	}

	switch ev.Category {
	case chat.CategoryAfk:
		if sender.InCombat() {
			return chat.Reject(chat.KindSilentNoop, ErrInCombat)
		}
		d.observe(sender, chat.NewMessage(ev.Category, lang, sender, body))
		sender.AutoReply().RequestAFK(body, d.defaultReply(notice.AFKDefault))
		return nil
	case chat.CategoryDnd:
		d.observe(sender, chat.NewMessage(ev.Category, lang, sender, body))
		sender.AutoReply().RequestDND(body, d.defaultReply(notice.DNDDefault))
		return nil
	}

	return d.cfg.Resolver.Deliver(ctx, ev, lang, sender, body)
}

func (d *Dispatcher) defaultReply(key notice.Key) string {
	return d.cfg.Catalog.Text(notice.DefaultLocale, key)
}

func (d *Dispatcher) observe(sender chat.Player, msg chat.Message) {
	for _, o := range d.observers {
		o(sender, msg, 0)
	}
}

// HandleEmote plays an animation emote for sender.
func (d *Dispatcher) HandleEmote(ctx context.Context, sender chat.Player, anim uint32) {
	if d.cfg.Emotes == nil {
		return
	}
	d.cfg.Emotes.Emote(ctx, sender, anim)
}

// HandleTextEmote shows a text emote from sender aimed at target.
func (d *Dispatcher) HandleTextEmote(ctx context.Context, sender chat.Player, textEmote, emoteNum uint32, target uint64) error {
	if d.cfg.Emotes == nil {
		return nil
	}
	err := d.cfg.Emotes.TextEmote(ctx, sender, textEmote, emoteNum, target)
	if err != nil {
		d.reject(sender, chat.Event{Category: chat.CategoryTextEmote}, err)
	}
	return err
}

// HandleChatIgnored tells the ignored player that player has ignored them.
func (d *Dispatcher) HandleChatIgnored(_ context.Context, player chat.Player, ignored chat.PlayerID) {
	msg := chat.NewMessage(chat.CategoryIgnored, chat.LanguageUniversal, player, player.Name())
	d.cfg.Sink.Deliver(ignored, msg)
}

func (d *Dispatcher) reject(sender chat.Player, ev chat.Event, err error) {
	r, ok := chat.AsRejection(err)
	if !ok {
		log.Error().Err(err).Str("component", "dispatch").
			Uint64("player", uint64(sender.ID())).
			Str("category", ev.Category.String()).
			Msg("chat event failed")
		return
	}
	metrics.ChatRejections.WithLabelValues(r.Kind.String(), ev.Category.String()).Inc()

	switch r.Kind {
	case chat.KindSilentNoop:
		return
	case chat.KindProtocolViolation:
		log.Warn().Str("component", "dispatch").
			Uint64("player", uint64(sender.ID())).
			Str("name", sender.Name()).
			Str("category", ev.Category.String()).
			Uint32("language", uint32(ev.Language)).
			Err(r.Reason).
			Msg("protocol violation")
	case chat.KindContentRejected:
		log.Error().Str("component", "dispatch").
			Uint64("player", uint64(sender.ID())).
			Str("name", sender.Name()).
			Str("category", ev.Category.String()).
			Bool("kick", r.Kick).
			Err(r.Reason).
			Msg("content rejected")
		if r.Kick && d.cfg.Kicker != nil {
			metrics.Kicks.Inc()
			d.cfg.Kicker.Kick(sender.ID(), r.Reason.Error())
		}
	}

	if r.Notice != "" && d.cfg.Notifier != nil {
		d.cfg.Notifier.Notify(sender.ID(), r.Notice, r.Args...)
	}
}
