// Package emote broadcasts animation emotes and text emotes to nearby
// players.
package emote

import (
	"context"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/gamedata"
	"github.com/realmchat/chat-engine/internal/metrics"
)

// Animation ids that are postures rather than one-shot animations. A text
// emote linked to one of these never plays it.
const (
	AnimNone  uint32 = 0
	AnimSleep uint32 = 12
	AnimSit   uint32 = 13
	AnimKneel uint32 = 68
)

// Animation is a played emote animation.
type Animation struct {
	Actor chat.PlayerID `json:"actor"`
	Emote uint32        `json:"emote"`
}

// Text is a text emote line such as "You wave at Jaina."
type Text struct {
	Actor      chat.PlayerID `json:"actor"`
	ActorName  string        `json:"actor_name"`
	TextEmote  uint32        `json:"text_emote"`
	EmoteNum   uint32        `json:"emote_num"`
	TargetName string        `json:"target_name,omitempty"`
}

// Sink delivers emotes to one player.
type Sink interface {
	PlayAnimation(to chat.PlayerID, a Animation)
	ShowText(to chat.PlayerID, t Text)
}

// Unit is anything a text emote can target.
type Unit interface {
	Name() string
	IsCreature() bool
}

// World answers the spatial questions the broadcaster needs and forwards
// emotes to creature scripts.
type World interface {
	PlayersNear(id chat.PlayerID, radius float64) []chat.PlayerID
	Unit(guid uint64) (Unit, bool)
	ReceiveEmote(creature uint64, from chat.Player, textEmote uint32)
}

// MuteChecker rejects speech from muted players.
type MuteChecker interface {
	CheckMute(sender chat.Player) error
}

// Observer sees emotes before they are broadcast.
type Observer interface {
	OnEmote(sender chat.Player, anim uint32)
	OnTextEmote(sender chat.Player, textEmote, emoteNum uint32, target uint64)
}

// Options holds the broadcast radii.
type Options struct {
	AnimationRange float64
	TextRange      float64
}

// Broadcaster runs on the sender's session goroutine.
type Broadcaster struct {
	world     World
	tables    *gamedata.Tables
	mute      MuteChecker
	sink      Sink
	observers []Observer
	opts      Options
}

func NewBroadcaster(world World, tables *gamedata.Tables, mute MuteChecker, sink Sink, opts Options) *Broadcaster {
	return &Broadcaster{world: world, tables: tables, mute: mute, sink: sink, opts: opts}
}

// Observe appends an observer. Register observers before use.
func (b *Broadcaster) Observe(o Observer) {
	b.observers = append(b.observers, o)
}

// Emote plays anim for a living sender.
func (b *Broadcaster) Emote(_ context.Context, sender chat.Player, anim uint32) {
	if !sender.IsAlive() || sender.IsDied() {
		return
	}
	for _, o := range b.observers {
		o.OnEmote(sender, anim)
	}
	b.play(sender, anim)
}

func (b *Broadcaster) play(sender chat.Player, anim uint32) {
	a := Animation{Actor: sender.ID(), Emote: anim}
	for _, id := range b.world.PlayersNear(sender.ID(), b.opts.AnimationRange) {
		b.sink.PlayAnimation(id, a)
	}
	metrics.Emotes.WithLabelValues("anim").Inc()
}

// TextEmote shows a text emote and plays its animation. The returned error
// is a mute rejection.
func (b *Broadcaster) TextEmote(_ context.Context, sender chat.Player, textEmote, emoteNum uint32, target uint64) error {
	if !sender.IsAlive() {
		return nil
	}
	if err := b.mute.CheckMute(sender); err != nil {
		return err
	}

	for _, o := range b.observers {
		o.OnTextEmote(sender, textEmote, emoteNum, target)
	}

	em, ok := b.tables.TextEmote(textEmote)
	if !ok {
		return nil
	}

	switch em.Animation {
	case AnimSleep, AnimSit, AnimKneel, AnimNone:
	default:
		// Feigning death still shows the text, never the animation.
		if !sender.IsDied() {
			b.play(sender, em.Animation)
		}
	}

	unit, hasUnit := b.world.Unit(target)
	t := Text{
		Actor:     sender.ID(),
		ActorName: sender.Name(),
		TextEmote: textEmote,
		EmoteNum:  emoteNum,
	}
	if hasUnit {
		t.TargetName = unit.Name()
	}
	for _, id := range b.world.PlayersNear(sender.ID(), b.opts.TextRange) {
		b.sink.ShowText(id, t)
	}
	metrics.Emotes.WithLabelValues("text").Inc()

	if hasUnit && unit.IsCreature() {
		b.world.ReceiveEmote(target, sender, textEmote)
	}
	return nil
}
