package chat

import (
	"sync"
	"time"
)

// PlayerID is a player's world identity.
type PlayerID uint64

// Faction is a player's team. Chat between factions is language-scrambled
// unless an override applies.
type Faction uint8

const (
	FactionNone Faction = iota
	FactionAlliance
	FactionHorde
)

// Capability is a permission granted by the role collaborator.
type Capability uint8

const (
	// CapCrossFactionChat lets the holder speak Universal and whisper across factions.
	CapCrossFactionChat Capability = iota + 1
	// CapFilterWhispers lets the holder refuse whispers from players not on
	// their allow-list.
	CapFilterWhispers
	// CapSkipChannelLevelGate exempts the holder from the channel level floor.
	CapSkipChannelLevelGate
)

// Player is the view of an online character that chat dispatch reads. All
// methods must be safe to call from another player's session goroutine.
type Player interface {
	ID() PlayerID
	Name() string
	Faction() Faction
	Level() int
	GuildID() uint32

	IsAlive() bool
	// IsDied reports the died unit state, which includes feign death.
	IsDied() bool
	InCombat() bool
	IsGameMaster() bool

	HasSkill(skill uint32) bool
	// Comprehends reports an active comprehend-language effect for lang.
	Comprehends(lang Language) bool
	// LanguageOverride returns the language forced by the first active
	// language-modifying effect, if any.
	LanguageOverride() (Language, bool)
	IsGMSilenced() bool
	MuteExpiry() time.Time
	Can(c Capability) bool

	AcceptsWhispers() bool
	WhisperAllowed(from PlayerID) bool
	AllowWhispersFrom(from PlayerID)

	AutoReply() *AutoReply
}

// AutoReply is a player's AFK/DND state. At most one of the two flags is set.
type AutoReply struct {
	mu      sync.Mutex
	afk     bool
	dnd     bool
	message string
}

// State returns the current flags and reply text.
func (a *AutoReply) State() (afk, dnd bool, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.afk, a.dnd, a.message
}

// RequestAFK applies an Afk event body. Already AFK with an empty body turns
// AFK off; already AFK with a body only replaces the reply. Otherwise AFK is
// turned on with body or fallback, and DND is cleared.
func (a *AutoReply) RequestAFK(body, fallback string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.afk, a.dnd = request(a.afk, a.dnd, &a.message, body, fallback)
}

// RequestDND is the DND counterpart of RequestAFK.
func (a *AutoReply) RequestDND(body, fallback string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dnd, a.afk = request(a.dnd, a.afk, &a.message, body, fallback)
}

func request(on, other bool, message *string, body, fallback string) (bool, bool) {
	if on {
		if body == "" {
			return false, other
		}
		*message = body
		return true, other
	}
	if body == "" {
		body = fallback
	}
	*message = body
	return true, false
}
