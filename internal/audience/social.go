package audience

import "github.com/realmchat/chat-engine/internal/chat"

// World answers spatial and identity questions about online players.
type World interface {
	// PlayersNear returns every player within radius of id, id included.
	PlayersNear(id chat.PlayerID, radius float64) []chat.PlayerID
	// PlayerByName looks up an online player by normalized name.
	PlayerByName(name string) (chat.Player, bool)
}

// Group is a party, raid, or battleground group.
type Group interface {
	IsBattleground() bool
	IsRaid() bool
	IsLeader(id chat.PlayerID) bool
	IsAssistant(id chat.PlayerID) bool
	Members() []chat.PlayerID
	// SubgroupOf returns the members sharing id's subgroup, id included.
	SubgroupOf(id chat.PlayerID) []chat.PlayerID
}

// Guild is a guild roster.
type Guild interface {
	// Members returns the guild's online members, or only its officers.
	Members(officersOnly bool) []chat.PlayerID
}

// Channel is a named custom chat channel.
type Channel interface {
	Name() string
	Members() []chat.PlayerID
}

// Social resolves group, guild, and channel membership. Implementations
// synchronize their own state.
type Social interface {
	// OriginalGroup is the player's own group while they are temporarily
	// placed in a battleground group.
	OriginalGroup(id chat.PlayerID) (Group, bool)
	// CurrentGroup is the group the player is in right now.
	CurrentGroup(id chat.PlayerID) (Group, bool)
	Guild(id uint32) (Guild, bool)
	Channel(faction chat.Faction, name string) (Channel, bool)
}
