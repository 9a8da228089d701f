package audience

import (
	"context"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/chat/chattest"
)

type fakeWorld struct {
	players map[string]*chattest.Player
	near    []chat.PlayerID
	radius  float64
}

func (w *fakeWorld) PlayersNear(id chat.PlayerID, radius float64) []chat.PlayerID {
	w.radius = radius
	return w.near
}

func (w *fakeWorld) PlayerByName(name string) (chat.Player, bool) {
	p, ok := w.players[name]
	if !ok {
		return nil, false
	}
	return p, true
}

type fakeGroup struct {
	bg, raid   bool
	leader     chat.PlayerID
	assistants map[chat.PlayerID]bool
	members    []chat.PlayerID
	subgroups  map[chat.PlayerID][]chat.PlayerID
}

func (g *fakeGroup) IsBattleground() bool { return g.bg }
func (g *fakeGroup) IsRaid() bool { return g.raid }
func (g *fakeGroup) IsLeader(id chat.PlayerID) bool { return g.leader == id }
func (g *fakeGroup) IsAssistant(id chat.PlayerID) bool { return g.assistants[id] }
func (g *fakeGroup) Members() []chat.PlayerID { return g.members }
func (g *fakeGroup) SubgroupOf(id chat.PlayerID) []chat.PlayerID {
	if sub, ok := g.subgroups[id]; ok {
		return sub
	}
	return g.members
}

type fakeGuild struct {
	all, officers []chat.PlayerID
}

func (g *fakeGuild) Members(officersOnly bool) []chat.PlayerID {
	if officersOnly {
		return g.officers
	}
	return g.all
}

type fakeChannel struct {
	name    string
	members []chat.PlayerID
}

func (c *fakeChannel) Name() string { return c.name }
func (c *fakeChannel) Members() []chat.PlayerID { return c.members }

type fakeSocial struct {
	original, current *fakeGroup
	guilds            map[uint32]*fakeGuild
	channels          map[string]*fakeChannel
}

func (s *fakeSocial) OriginalGroup(chat.PlayerID) (Group, bool) {
	if s.original == nil {
		return nil, false
	}
	return s.original, true
}

func (s *fakeSocial) CurrentGroup(chat.PlayerID) (Group, bool) {
	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

func (s *fakeSocial) Guild(id uint32) (Guild, bool) {
	g, ok := s.guilds[id]
	if !ok {
		return nil, false
	}
	return g, true
}

func (s *fakeSocial) Channel(f chat.Faction, name string) (Channel, bool) {
	c, ok := s.channels[name]
	if !ok {
		return nil, false
	}
	return c, true
}

type addonRecorder struct {
	payloads []string
}

func (a *addonRecorder) HandleAddon(_ context.Context, _ chat.Player, payload string) {
	a.payloads = append(a.payloads, payload)
}
