package roster

import (
	"strings"
	"sync"

	"github.com/realmchat/chat-engine/internal/audience"
	"github.com/realmchat/chat-engine/internal/chat"
)

// Group is a party, raid or battleground group.
type Group struct {
	mu         sync.RWMutex
	raid       bool
	bg         bool
	leader     chat.PlayerID
	assistants map[chat.PlayerID]bool
	members    []chat.PlayerID
	subgroup   map[chat.PlayerID]uint8
}

var _ audience.Group = (*Group)(nil)

// NewGroup creates a group led by leader, who is placed in subgroup 0.
func NewGroup(leader chat.PlayerID, raid bool) *Group {
	g := &Group{
		raid:       raid,
		leader:     leader,
		assistants: make(map[chat.PlayerID]bool),
		subgroup:   make(map[chat.PlayerID]uint8),
	}
	g.Add(leader, 0)
	return g
}

// NewBattlegroundGroup creates the temporary raid of a battleground.
func NewBattlegroundGroup(leader chat.PlayerID) *Group {
	g := NewGroup(leader, true)
	g.bg = true
	return g
}

// Add places id in subgroup sub, moving it if already a member.
func (g *Group) Add(id chat.PlayerID, sub uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.subgroup[id]; !ok {
		g.members = append(g.members, id)
	}
	g.subgroup[id] = sub
}

// Remove drops id from the group.
func (g *Group) Remove(id chat.PlayerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.subgroup[id]; !ok {
		return
	}
	delete(g.subgroup, id)
	delete(g.assistants, id)
	for i, m := range g.members {
		if m == id {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
}

// SetLeader hands leadership to id.
func (g *Group) SetLeader(id chat.PlayerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leader = id
}

// SetAssistant grants or revokes raid assistant.
func (g *Group) SetAssistant(id chat.PlayerID, on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if on {
		g.assistants[id] = true
	} else {
		delete(g.assistants, id)
	}
}

// ConvertToRaid turns a party into a raid.
func (g *Group) ConvertToRaid() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.raid = true
}

func (g *Group) IsBattleground() bool { return g.bg }

func (g *Group) IsRaid() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.raid
}

func (g *Group) IsLeader(id chat.PlayerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.leader == id
}

func (g *Group) IsAssistant(id chat.PlayerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.assistants[id]
}

func (g *Group) Members() []chat.PlayerID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]chat.PlayerID(nil), g.members...)
}

func (g *Group) SubgroupOf(id chat.PlayerID) []chat.PlayerID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sub, ok := g.subgroup[id]
	if !ok {
		return nil
	}
	var ids []chat.PlayerID
	for _, m := range g.members {
		if g.subgroup[m] == sub {
			ids = append(ids, m)
		}
	}
	return ids
}

// Guild is an online guild roster.
type Guild struct {
	mu       sync.RWMutex
	members  map[chat.PlayerID]bool // value: officer
	ordering []chat.PlayerID
}

var _ audience.Guild = (*Guild)(nil)

func (g *Guild) Members(officersOnly bool) []chat.PlayerID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]chat.PlayerID, 0, len(g.ordering))
	for _, id := range g.ordering {
		if !officersOnly || g.members[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Channel is a custom chat channel of one faction.
type Channel struct {
	mu      sync.RWMutex
	name    string
	members []chat.PlayerID
}

var _ audience.Channel = (*Channel)(nil)

func (c *Channel) Name() string { return c.name }

func (c *Channel) Members() []chat.PlayerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]chat.PlayerID(nil), c.members...)
}

type channelKey struct {
	faction chat.Faction
	name    string
}

// Social tracks group, guild and channel membership.
type Social struct {
	mu       sync.RWMutex
	groups   map[chat.PlayerID]*Group
	bgGroups map[chat.PlayerID]*Group
	guilds   map[uint32]*Guild
	channels map[channelKey]*Channel
}

var _ audience.Social = (*Social)(nil)

func NewSocial() *Social {
	return &Social{
		groups:   make(map[chat.PlayerID]*Group),
		bgGroups: make(map[chat.PlayerID]*Group),
		guilds:   make(map[uint32]*Guild),
		channels: make(map[channelKey]*Channel),
	}
}

// JoinGroup puts id in g. A battleground group is tracked apart from the
// player's own group, which is restored when the battleground ends.
func (s *Social) JoinGroup(id chat.PlayerID, g *Group, sub uint8) {
	g.Add(id, sub)
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.bg {
		s.bgGroups[id] = g
	} else {
		s.groups[id] = g
	}
}

// LeaveGroup removes id from its own group.
func (s *Social) LeaveGroup(id chat.PlayerID) {
	s.mu.Lock()
	g, ok := s.groups[id]
	delete(s.groups, id)
	s.mu.Unlock()
	if ok {
		g.Remove(id)
	}
}

// LeaveBattleground removes id from its battleground group.
func (s *Social) LeaveBattleground(id chat.PlayerID) {
	s.mu.Lock()
	g, ok := s.bgGroups[id]
	delete(s.bgGroups, id)
	s.mu.Unlock()
	if ok {
		g.Remove(id)
	}
}

// OriginalGroup returns the player's own group while a battleground group
// is in effect.
func (s *Social) OriginalGroup(id chat.PlayerID) (audience.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, inBG := s.bgGroups[id]; !inBG {
		return nil, false
	}
	g, ok := s.groups[id]
	if !ok {
		return nil, false
	}
	return g, true
}

// CurrentGroup returns the battleground group if any, else the own group.
func (s *Social) CurrentGroup(id chat.PlayerID) (audience.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.bgGroups[id]; ok {
		return g, true
	}
	if g, ok := s.groups[id]; ok {
		return g, true
	}
	return nil, false
}

// JoinGuild adds id to the online roster of guild.
func (s *Social) JoinGuild(guild uint32, id chat.PlayerID, officer bool) {
	s.mu.Lock()
	g, ok := s.guilds[guild]
	if !ok {
		g = &Guild{members: make(map[chat.PlayerID]bool)}
		s.guilds[guild] = g
	}
	s.mu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[id]; !ok {
		g.ordering = append(g.ordering, id)
	}
	g.members[id] = officer
}

// LeaveGuild removes id from the online roster of guild.
func (s *Social) LeaveGuild(guild uint32, id chat.PlayerID) {
	s.mu.RLock()
	g, ok := s.guilds[guild]
	s.mu.RUnlock()
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[id]; !ok {
		return
	}
	delete(g.members, id)
	for i, m := range g.ordering {
		if m == id {
			g.ordering = append(g.ordering[:i], g.ordering[i+1:]...)
			break
		}
	}
}

func (s *Social) Guild(id uint32) (audience.Guild, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guilds[id]
	if !ok {
		return nil, false
	}
	return g, true
}

func keyOf(faction chat.Faction, name string) channelKey {
	return channelKey{faction: faction, name: strings.ToLower(name)}
}

// JoinChannel adds id to the channel, creating it on first join. The first
// joiner's spelling becomes the channel name.
func (s *Social) JoinChannel(faction chat.Faction, name string, id chat.PlayerID) {
	k := keyOf(faction, name)
	s.mu.Lock()
	ch, ok := s.channels[k]
	if !ok {
		ch = &Channel{name: name}
		s.channels[k] = ch
	}
	s.mu.Unlock()

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for _, m := range ch.members {
		if m == id {
			return
		}
	}
	ch.members = append(ch.members, id)
}

// LeaveChannel removes id. An emptied channel is deleted.
func (s *Social) LeaveChannel(faction chat.Faction, name string, id chat.PlayerID) {
	k := keyOf(faction, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[k]
	if !ok {
		return
	}
	ch.mu.Lock()
	for i, m := range ch.members {
		if m == id {
			ch.members = append(ch.members[:i], ch.members[i+1:]...)
			break
		}
	}
	empty := len(ch.members) == 0
	ch.mu.Unlock()
	if empty {
		delete(s.channels, k)
	}
}

func (s *Social) Channel(faction chat.Faction, name string) (audience.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[keyOf(faction, name)]
	if !ok {
		return nil, false
	}
	return ch, true
}

// forget drops every membership of a player going offline.
func (s *Social) forget(id chat.PlayerID, guild uint32) {
	s.LeaveGroup(id)
	s.LeaveBattleground(id)
	if guild != 0 {
		s.LeaveGuild(guild, id)
	}

	s.mu.RLock()
	var joined []channelKey
	for k, ch := range s.channels {
		ch.mu.RLock()
		for _, m := range ch.members {
			if m == id {
				joined = append(joined, k)
				break
			}
		}
		ch.mu.RUnlock()
	}
	s.mu.RUnlock()
	for _, k := range joined {
		s.LeaveChannel(k.faction, k.name, id)
	}
}
