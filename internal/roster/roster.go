// Package roster is the in-memory world of a standalone chat node: who is
// online, where they stand, and the groups, guilds and channels they belong
// to.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/audience"
	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/emote"
)

var (
	ErrInvalidName = errors.New("roster: invalid character name")
	ErrOnline      = errors.New("roster: character already online")
	ErrOffline     = errors.New("roster: character not online")
)

// MuteStore persists mute timers.
type MuteStore interface {
	Mute(ctx context.Context, id chat.PlayerID, d time.Duration, reason string) (time.Time, error)
	Unmute(ctx context.Context, id chat.PlayerID) error
}

// MuteLoader reads a persisted mute at login. *mute.Store satisfies it
// through LookupExpiry.
type MuteLoader interface {
	LookupExpiry(ctx context.Context, id chat.PlayerID) (time.Time, error)
}

// CreatureScript receives text emotes aimed at a creature.
type CreatureScript func(creature uint64, from chat.Player, textEmote uint32)

type creature struct {
	name string
}

func (c creature) Name() string     { return c.name }
func (c creature) IsCreature() bool { return true }

// Roster is safe for concurrent use.
type Roster struct {
	mu        sync.RWMutex
	byID      map[chat.PlayerID]*Player
	byName    map[string]*Player
	creatures map[uint64]creature

	mutes   MuteStore
	loader  MuteLoader
	script  CreatureScript
	onMute  []func(id chat.PlayerID, until time.Time)
	*Social // embedded so a Roster is also an audience.Social
}

var (
	_ audience.World = (*Roster)(nil)
	_ emote.World    = (*Roster)(nil)
)

// New creates an empty roster. mutes may be nil, which keeps mutes in
// memory only.
func New(mutes MuteStore) *Roster {
	r := &Roster{
		byID:      make(map[chat.PlayerID]*Player),
		byName:    make(map[string]*Player),
		creatures: make(map[uint64]creature),
		mutes:     mutes,
		Social:    NewSocial(),
	}
	if l, ok := mutes.(MuteLoader); ok {
		r.loader = l
	}
	return r
}

// SetCreatureScript installs the handler for emotes aimed at creatures.
func (r *Roster) SetCreatureScript(s CreatureScript) {
	r.script = s
}

// OnMute registers fn to run after every mute applied through Mute or Unmute.
// The zero time means unmuted.
func (r *Roster) OnMute(fn func(id chat.PlayerID, until time.Time)) {
	r.onMute = append(r.onMute, fn)
}

// Login brings a character online at pos. A persisted mute is loaded; a
// failing store is logged and ignored.
func (r *Roster) Login(ctx context.Context, prof Profile, pos Position) (*Player, error) {
	name, ok := audience.NormalizeName(prof.Name)
	if !ok {
		return nil, ErrInvalidName
	}
	p := newPlayer(prof, name, pos)

	if r.loader != nil {
		until, err := r.loader.LookupExpiry(ctx, prof.ID)
		if err != nil {
			log.Warn().Str("component", "roster").Uint64("player", uint64(prof.ID)).Err(err).Msg("mute lookup failed")
		}
		p.SetMuteExpiry(until)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[prof.ID]; ok {
		return nil, ErrOnline
	}
	if _, ok := r.byName[name]; ok {
		return nil, ErrOnline
	}
	r.byID[prof.ID] = p
	r.byName[name] = p
	if prof.GuildID != 0 {
		r.Social.JoinGuild(prof.GuildID, prof.ID, prof.GuildOfficer)
	}
	return p, nil
}

// Logout takes a character offline and drops its memberships.
func (r *Roster) Logout(id chat.PlayerID) {
	r.mu.Lock()
	p, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		delete(r.byName, p.Name())
	}
	r.mu.Unlock()
	if ok {
		r.Social.forget(id, p.GuildID())
	}
}

// Player returns an online player.
func (r *Roster) Player(id chat.PlayerID) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// Update applies a state change to an online player.
func (r *Roster) Update(id chat.PlayerID, s State) error {
	p, ok := r.Player(id)
	if !ok {
		return ErrOffline
	}
	p.Apply(s)
	return nil
}

// PlayerByName looks up an online player by normalized name.
func (r *Roster) PlayerByName(name string) (chat.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return p, true
}

// Online returns the number of online players.
func (r *Roster) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// PlayersNear returns every player within radius of id, id included.
func (r *Roster) PlayersNear(id chat.PlayerID, radius float64) []chat.PlayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	self, ok := r.byID[id]
	if !ok {
		return nil
	}
	at := self.Position()
	var ids []chat.PlayerID
	for pid, p := range r.byID {
		if pid == id || at.Distance(p.Position()) <= radius {
			ids = append(ids, pid)
		}
	}
	return ids
}

// AddCreature registers a scripted creature as a text emote target.
func (r *Roster) AddCreature(guid uint64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creatures[guid] = creature{name: name}
}

// Unit resolves a text emote target: an online player or a creature.
func (r *Roster) Unit(guid uint64) (emote.Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byID[chat.PlayerID(guid)]; ok {
		return playerUnit{p}, true
	}
	if c, ok := r.creatures[guid]; ok {
		return c, true
	}
	return nil, false
}

// ReceiveEmote forwards a text emote to the creature script.
func (r *Roster) ReceiveEmote(guid uint64, from chat.Player, textEmote uint32) {
	if r.script == nil {
		log.Debug().Str("component", "roster").Uint64("creature", guid).Uint32("text_emote", textEmote).Msg("emote at unscripted creature")
		return
	}
	r.script(guid, from, textEmote)
}

type playerUnit struct{ *Player }

func (playerUnit) IsCreature() bool { return false }

// Mute silences id for d and persists the timer. The player need not be
// online on this node.
func (r *Roster) Mute(ctx context.Context, id chat.PlayerID, d time.Duration, reason string) error {
	until := time.Now().Add(d)
	if r.mutes != nil {
		var err error
		if until, err = r.mutes.Mute(ctx, id, d, reason); err != nil {
			return fmt.Errorf("roster: mute %d: %w", id, err)
		}
	}
	r.ApplyMute(id, until)
	for _, fn := range r.onMute {
		fn(id, until)
	}
	return nil
}

// Unmute lifts a mute and removes it from the store.
func (r *Roster) Unmute(ctx context.Context, id chat.PlayerID) error {
	if r.mutes != nil {
		if err := r.mutes.Unmute(ctx, id); err != nil {
			return fmt.Errorf("roster: unmute %d: %w", id, err)
		}
	}
	r.ApplyMute(id, time.Time{})
	for _, fn := range r.onMute {
		fn(id, time.Time{})
	}
	return nil
}

// ApplyMute sets the mute timer of an online player without touching the
// store. Remote mute notifications use it.
func (r *Roster) ApplyMute(id chat.PlayerID, until time.Time) {
	if p, ok := r.Player(id); ok {
		p.SetMuteExpiry(until)
	}
}
