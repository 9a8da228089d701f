// Package audience selects the recipients of a gated chat message and fans
// it out. Every category has its own authorization rule and audience.
package audience

import (
	"context"
	"errors"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/metrics"
	"github.com/realmchat/chat-engine/internal/notice"
)

var (
	ErrNoAudience     = errors.New("no eligible audience")
	ErrDead           = errors.New("sender is dead")
	ErrLevelTooLow    = errors.New("sender level below requirement")
	ErrNotLeader      = errors.New("sender does not lead the group")
	ErrTargetNotFound = errors.New("whisper target not found")
	ErrWrongFaction   = errors.New("whisper target is of another faction")
	ErrSilenced       = errors.New("sender is under game-master silence")
	ErrUnhandled      = errors.New("category has no audience")
)

// Kind names the audience a message was fanned out to.
type Kind uint8

const (
	KindProximity Kind = iota + 1
	KindWhisper
	KindGroup
	KindGuild
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindProximity:
		return "proximity"
	case KindWhisper:
		return "whisper"
	case KindGroup:
		return "group"
	case KindGuild:
		return "guild"
	case KindChannel:
		return "channel"
	}
	return "none"
}

// Observer sees every message after authorization succeeds and before it is
// delivered. It must not retain or modify msg.
type Observer func(sender chat.Player, msg chat.Message, kind Kind)

// AddonHandler receives the payload of every delivered addon whisper.
type AddonHandler interface {
	HandleAddon(ctx context.Context, sender chat.Player, payload string)
}

// Options carries the administrative thresholds. A zero level disables the
// matching gate.
type Options struct {
	SayLevel     int
	WhisperLevel int
	ChannelLevel int
	SayRange     float64
	YellRange    float64
	EmoteRange   float64
}

// Resolver fans messages out. It is safe for concurrent use when its
// collaborators are.
type Resolver struct {
	world     World
	social    Social
	sink      chat.Sink
	addon     AddonHandler
	observers []Observer
	opts      Options
}

// NewResolver creates a Resolver delivering through sink.
func NewResolver(world World, social Social, sink chat.Sink, opts Options) *Resolver {
	return &Resolver{world: world, social: social, sink: sink, opts: opts}
}

// SetAddonHandler installs the handler for addon whispers.
func (r *Resolver) SetAddonHandler(h AddonHandler) {
	r.addon = h
}

// Observe appends an observer. Observers run in registration order.
// Register them before the resolver is shared.
func (r *Resolver) Observe(o Observer) {
	r.observers = append(r.observers, o)
}

// Deliver authorizes and fans out one message from sender. The returned
// error is a *chat.Rejection.
func (r *Resolver) Deliver(ctx context.Context, ev chat.Event, lang chat.Language, sender chat.Player, body string) error {
	switch ev.Category {
	case chat.CategorySay, chat.CategoryYell, chat.CategoryEmote:
		return r.proximity(ev.Category, lang, sender, body)
	case chat.CategoryWhisper:
		return r.whisper(ctx, ev.Target, lang, sender, body)
	case chat.CategoryParty, chat.CategoryPartyLeader:
		return r.party(ev.Category, lang, sender, body)
	case chat.CategoryGuild, chat.CategoryOfficer:
		return r.guild(ev.Category, lang, sender, body)
	case chat.CategoryRaid, chat.CategoryRaidLeader:
		return r.raid(ev.Category, lang, sender, body)
	case chat.CategoryRaidWarning:
		return r.raidWarning(lang, sender, body)
	case chat.CategoryBattleground, chat.CategoryBattlegroundLeader:
		return r.battleground(ev.Category, lang, sender, body)
	case chat.CategoryChannel:
		return r.channel(ev.Channel, lang, sender, body)
	}
	return chat.Reject(chat.KindProtocolViolation, ErrUnhandled)
}

func (r *Resolver) proximity(category chat.Category, lang chat.Language, sender chat.Player, body string) error {
	if !sender.IsAlive() {
		return chat.Reject(chat.KindSilentNoop, ErrDead)
	}

	radius := r.opts.SayRange
	switch category {
	case chat.CategoryYell:
		radius = r.opts.YellRange
	case chat.CategoryEmote:
		radius = r.opts.EmoteRange
	}

	if category != chat.CategoryEmote && sender.Level() < r.opts.SayLevel {
		return chat.RejectWithNotice(chat.KindPermissionDenied, ErrLevelTooLow, notice.SayLevelReq, r.opts.SayLevel)
	}

	msg := chat.NewMessage(category, lang, sender, body)
	r.fanOut(sender, msg, KindProximity, r.world.PlayersNear(sender.ID(), radius))
	return nil
}

// realGroup returns the sender's own group, preferring the original group
// over a temporary battleground group.
func (r *Resolver) realGroup(id chat.PlayerID) (Group, bool) {
	if g, ok := r.social.OriginalGroup(id); ok {
		return g, true
	}
	g, ok := r.social.CurrentGroup(id)
	if !ok || g.IsBattleground() {
		return nil, false
	}
	return g, true
}

func (r *Resolver) party(category chat.Category, lang chat.Language, sender chat.Player, body string) error {
	g, ok := r.realGroup(sender.ID())
	if !ok {
		return chat.Reject(chat.KindSilentNoop, ErrNoAudience)
	}
	if category == chat.CategoryPartyLeader && !g.IsLeader(sender.ID()) {
		return chat.Reject(chat.KindSilentNoop, ErrNotLeader)
	}

	recipients := make([]chat.PlayerID, 0, 5)
	for _, id := range g.SubgroupOf(sender.ID()) {
		if id != sender.ID() {
			recipients = append(recipients, id)
		}
	}
	r.fanOut(sender, chat.NewMessage(category, lang, sender, body), KindGroup, recipients)
	return nil
}

func (r *Resolver) raid(category chat.Category, lang chat.Language, sender chat.Player, body string) error {
	g, ok := r.realGroup(sender.ID())
	if !ok || !g.IsRaid() {
		return chat.Reject(chat.KindSilentNoop, ErrNoAudience)
	}
	if category == chat.CategoryRaidLeader && !g.IsLeader(sender.ID()) {
		return chat.Reject(chat.KindSilentNoop, ErrNotLeader)
	}
	r.fanOut(sender, chat.NewMessage(category, lang, sender, body), KindGroup, g.Members())
	return nil
}

func (r *Resolver) raidWarning(lang chat.Language, sender chat.Player, body string) error {
	g, ok := r.social.CurrentGroup(sender.ID())
	if !ok || !g.IsRaid() || g.IsBattleground() {
		return chat.Reject(chat.KindSilentNoop, ErrNoAudience)
	}
	if !g.IsLeader(sender.ID()) && !g.IsAssistant(sender.ID()) {
		return chat.Reject(chat.KindSilentNoop, ErrNotLeader)
	}
	r.fanOut(sender, chat.NewMessage(chat.CategoryRaidWarning, lang, sender, body), KindGroup, g.Members())
	return nil
}

// battleground always uses the current group: the battleground raid is never
// the original group.
func (r *Resolver) battleground(category chat.Category, lang chat.Language, sender chat.Player, body string) error {
	g, ok := r.social.CurrentGroup(sender.ID())
	if !ok || !g.IsBattleground() {
		return chat.Reject(chat.KindSilentNoop, ErrNoAudience)
	}
	if category == chat.CategoryBattlegroundLeader && !g.IsLeader(sender.ID()) {
		return chat.Reject(chat.KindSilentNoop, ErrNotLeader)
	}
	r.fanOut(sender, chat.NewMessage(category, lang, sender, body), KindGroup, g.Members())
	return nil
}

// guild messages are readable by every member regardless of faction, so
// they travel in Universal unless they carry addon payload.
func (r *Resolver) guild(category chat.Category, lang chat.Language, sender chat.Player, body string) error {
	if sender.GuildID() == 0 {
		return chat.Reject(chat.KindSilentNoop, ErrNoAudience)
	}
	g, ok := r.social.Guild(sender.GuildID())
	if !ok {
		return chat.Reject(chat.KindSilentNoop, ErrNoAudience)
	}

	if lang != chat.LanguageAddon {
		lang = chat.LanguageUniversal
	}
	officers := category == chat.CategoryOfficer
	r.fanOut(sender, chat.NewMessage(category, lang, sender, body), KindGuild, g.Members(officers))
	return nil
}

func (r *Resolver) channel(name string, lang chat.Language, sender chat.Player, body string) error {
	if !sender.Can(chat.CapSkipChannelLevelGate) && sender.Level() < r.opts.ChannelLevel {
		return chat.RejectWithNotice(chat.KindPermissionDenied, ErrLevelTooLow, notice.ChannelLevelReq, r.opts.ChannelLevel)
	}

	ch, ok := r.social.Channel(sender.Faction(), name)
	if !ok {
		return chat.Reject(chat.KindSilentNoop, ErrNoAudience)
	}

	msg := chat.NewMessage(chat.CategoryChannel, lang, sender, body)
	msg.Channel = ch.Name()
	r.fanOut(sender, msg, KindChannel, ch.Members())
	return nil
}

func (r *Resolver) fanOut(sender chat.Player, msg chat.Message, kind Kind, recipients []chat.PlayerID) {
	for _, o := range r.observers {
		o(sender, msg, kind)
	}
	for _, id := range recipients {
		r.sink.Deliver(id, msg)
	}
	metrics.FanOut.WithLabelValues(kind.String()).Observe(float64(len(recipients)))
}
