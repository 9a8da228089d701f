package roster

import (
	"math"
	"sync"
	"time"

	"github.com/realmchat/chat-engine/internal/chat"
)

// Profile is what a session presents at login.
type Profile struct {
	ID           chat.PlayerID     `json:"id"`
	Name         string            `json:"name"`
	Faction      chat.Faction      `json:"faction"`
	Level        int               `json:"level"`
	GuildID      uint32            `json:"guild_id,omitempty"`
	GuildOfficer bool              `json:"guild_officer,omitempty"`
	GameMaster   bool              `json:"gm,omitempty"`
	Skills       []uint32          `json:"skills,omitempty"`
	Capabilities []chat.Capability `json:"capabilities,omitempty"`
}

// Position is a point on one map.
type Position struct {
	Map uint32  `json:"map"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
}

// Distance returns the distance to q, or +Inf on another map.
func (p Position) Distance(q Position) float64 {
	if p.Map != q.Map {
		return math.Inf(1)
	}
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Player is an online character. Identity is fixed at login; everything
// else may change from any goroutine.
type Player struct {
	id      chat.PlayerID
	name    string
	faction chat.Faction

	mu         sync.RWMutex
	level      int
	guild      uint32
	gm         bool
	dead       bool
	died       bool
	combat     bool
	silenced   bool
	muteUntil  time.Time
	skills     map[uint32]bool
	comprehend map[chat.Language]bool
	override   chat.Language
	overridden bool
	caps       map[chat.Capability]bool
	refuse     bool
	allow      map[chat.PlayerID]bool
	pos        Position

	reply chat.AutoReply
}

var _ chat.Player = (*Player)(nil)

func newPlayer(p Profile, name string, pos Position) *Player {
	pl := &Player{
		id:         p.ID,
		name:       name,
		faction:    p.Faction,
		level:      p.Level,
		guild:      p.GuildID,
		gm:         p.GameMaster,
		skills:     make(map[uint32]bool, len(p.Skills)),
		comprehend: make(map[chat.Language]bool),
		caps:       make(map[chat.Capability]bool, len(p.Capabilities)),
		allow:      make(map[chat.PlayerID]bool),
		pos:        pos,
	}
	for _, s := range p.Skills {
		pl.skills[s] = true
	}
	for _, c := range p.Capabilities {
		pl.caps[c] = true
	}
	return pl
}

func (p *Player) ID() chat.PlayerID     { return p.id }
func (p *Player) Name() string          { return p.name }
func (p *Player) Faction() chat.Faction { return p.faction }

func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *Player) GuildID() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.guild
}

func (p *Player) IsAlive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.dead
}

func (p *Player) IsDied() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.died
}

func (p *Player) InCombat() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.combat
}

func (p *Player) IsGameMaster() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gm
}

func (p *Player) HasSkill(skill uint32) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.skills[skill]
}

func (p *Player) Comprehends(lang chat.Language) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.comprehend[lang]
}

func (p *Player) LanguageOverride() (chat.Language, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.override, p.overridden
}

func (p *Player) IsGMSilenced() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.silenced
}

func (p *Player) MuteExpiry() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muteUntil
}

func (p *Player) Can(c chat.Capability) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.caps[c]
}

func (p *Player) AcceptsWhispers() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.refuse
}

func (p *Player) WhisperAllowed(from chat.PlayerID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.allow[from]
}

func (p *Player) AllowWhispersFrom(from chat.PlayerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allow[from] = true
}

func (p *Player) AutoReply() *chat.AutoReply { return &p.reply }

// Position returns where the player stands.
func (p *Player) Position() Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

// State is a partial update of a player's mutable state. Nil fields are
// left unchanged. ClearOverride removes a forced language.
type State struct {
	Level          *int            `json:"level,omitempty"`
	GuildID        *uint32         `json:"guild_id,omitempty"`
	Dead           *bool           `json:"dead,omitempty"`
	Died           *bool           `json:"died,omitempty"`
	InCombat       *bool           `json:"in_combat,omitempty"`
	Silenced       *bool           `json:"silenced,omitempty"`
	RefuseWhispers *bool           `json:"refuse_whispers,omitempty"`
	Position       *Position       `json:"position,omitempty"`
	Learn          []uint32        `json:"learn,omitempty"`
	Comprehend     []chat.Language `json:"comprehend,omitempty"`
	Override       *chat.Language  `json:"override,omitempty"`
	ClearOverride  bool            `json:"clear_override,omitempty"`
}

// Apply updates the player from s.
func (p *Player) Apply(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Level != nil {
		p.level = *s.Level
	}
	if s.GuildID != nil {
		p.guild = *s.GuildID
	}
	if s.Dead != nil {
		p.dead = *s.Dead
	}
	if s.Died != nil {
		p.died = *s.Died
	}
	if s.InCombat != nil {
		p.combat = *s.InCombat
	}
	if s.Silenced != nil {
		p.silenced = *s.Silenced
	}
	if s.RefuseWhispers != nil {
		p.refuse = *s.RefuseWhispers
	}
	if s.Position != nil {
		p.pos = *s.Position
	}
	for _, skill := range s.Learn {
		p.skills[skill] = true
	}
	for _, lang := range s.Comprehend {
		p.comprehend[lang] = true
	}
	if s.Override != nil {
		p.override, p.overridden = *s.Override, true
	}
	if s.ClearOverride {
		p.override, p.overridden = 0, false
	}
}

// SetMuteExpiry replaces the mute timer. The zero time lifts the mute.
func (p *Player) SetMuteExpiry(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muteUntil = t
}
