// Package chattest provides an in-memory chat.Player for tests.
package chattest

import (
	"sync"
	"time"

	"github.com/realmchat/chat-engine/internal/chat"
)

// Player is a configurable chat.Player. Zero values describe a live, level 0,
// faction-less player with no skills or effects who accepts whispers.
type Player struct {
	PlayerID      chat.PlayerID
	PlayerName    string
	Team          chat.Faction
	Lvl           int
	Guild         uint32
	Dead          bool
	DiedState     bool
	Combat        bool
	GM            bool
	Skills        map[uint32]bool
	Comprehend    map[chat.Language]bool
	Override      chat.Language
	HasOverride   bool
	Silenced      bool
	MutedUntil    time.Time
	Capabilities  map[chat.Capability]bool
	RefuseWhisper bool

	mu        sync.Mutex
	allowList map[chat.PlayerID]bool
	reply     chat.AutoReply
}

var _ chat.Player = (*Player)(nil)

func (p *Player) ID() chat.PlayerID { return p.PlayerID }
func (p *Player) Name() string { return p.PlayerName }
func (p *Player) Faction() chat.Faction { return p.Team }
func (p *Player) Level() int { return p.Lvl }
func (p *Player) GuildID() uint32 { return p.Guild }
func (p *Player) IsAlive() bool { return !p.Dead }
func (p *Player) IsDied() bool { return p.DiedState }
func (p *Player) InCombat() bool { return p.Combat }
func (p *Player) IsGameMaster() bool { return p.GM }
func (p *Player) IsGMSilenced() bool { return p.Silenced }
func (p *Player) MuteExpiry() time.Time { return p.MutedUntil }
func (p *Player) AcceptsWhispers() bool { return !p.RefuseWhisper }
func (p *Player) HasSkill(s uint32) bool { return p.Skills[s] }
func (p *Player) AutoReply() *chat.AutoReply {
	return &p.reply
}

func (p *Player) Comprehends(lang chat.Language) bool { return p.Comprehend[lang] }
func (p *Player) Can(c chat.Capability) bool { return p.Capabilities[c] }

func (p *Player) LanguageOverride() (chat.Language, bool) {
	return p.Override, p.HasOverride
}

func (p *Player) WhisperAllowed(from chat.PlayerID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowList[from]
}

func (p *Player) AllowWhispersFrom(from chat.PlayerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allowList == nil {
		p.allowList = make(map[chat.PlayerID]bool)
	}
	p.allowList[from] = true
}

// Recorder is a chat.Sink that keeps every delivery in order.
type Recorder struct {
	mu         sync.Mutex
	Deliveries []Delivery
}

// Delivery is one recorded message and its recipient.
type Delivery struct {
	To  chat.PlayerID
	Msg chat.Message
}

var _ chat.Sink = (*Recorder)(nil)

func (r *Recorder) Deliver(to chat.PlayerID, msg chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deliveries = append(r.Deliveries, Delivery{To: to, Msg: msg})
}

// Recipients returns the recipient ids in delivery order.
func (r *Recorder) Recipients() []chat.PlayerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]chat.PlayerID, len(r.Deliveries))
	for i, d := range r.Deliveries {
		ids[i] = d.To
	}
	return ids
}
