// Package lobby keeps the joinable game lobbies reached through the addon
// menu. Lobbies are keyed by game kind and instance id.
package lobby

import (
	"errors"
	"strings"

	"github.com/realmchat/chat-engine/internal/chat"
)

var (
	ErrNotFound      = errors.New("lobby: not found")
	ErrAlreadyMember = errors.New("lobby: already a member")
)

// Kind is the game kind a lobby belongs to.
type Kind uint32

// KindHungerGames is the arena kind offered by the addon menu.
const KindHungerGames Kind = 1

// Status follows a game from creation to teardown.
type Status uint8

const (
	StatusNone Status = iota
	StatusWaitQueue
	StatusWaitJoin
	StatusInProgress
	StatusWaitLeave
)

// Started reports whether players are being or have been sent in.
func (s Status) Started() bool { return s >= StatusWaitJoin }

// Leaving reports whether the game is being torn down.
func (s Status) Leaving() bool { return s == StatusWaitLeave }

// Member is one player in a lobby.
type Member struct {
	ID   chat.PlayerID
	Name string
}

// Game is a lobby record.
type Game struct {
	Kind       Kind
	InstanceID string
	Name       string
	Host       chat.PlayerID
	Status     Status
	Members    []Member
}

// HasMember reports whether id is in the lobby.
func (g *Game) HasMember(id chat.PlayerID) bool {
	for _, m := range g.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// MemberNames returns the member names joined by '-', the addon list
// delimiter.
func (g *Game) MemberNames() string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
	}
	return strings.Join(names, "-")
}
