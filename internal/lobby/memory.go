package lobby

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/realmchat/chat-engine/internal/chat"
)

// Memory is a process-local registry. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	games map[Kind][]*Game
}

func NewMemory() *Memory {
	return &Memory{games: make(map[Kind][]*Game)}
}

// List returns copies of every lobby of kind in creation order.
func (m *Memory) List(_ context.Context, kind Kind) ([]Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Game, 0, len(m.games[kind]))
	for _, g := range m.games[kind] {
		out = append(out, clone(g))
	}
	return out, nil
}

// Create registers a lobby hosted by host with host as its only member. The
// instance id is generated.
func (m *Memory) Create(_ context.Context, kind Kind, name string, host Member) (Game, error) {
	g := &Game{
		Kind:       kind,
		InstanceID: uuid.NewString(),
		Name:       name,
		Host:       host.ID,
		Status:     StatusWaitQueue,
		Members:    []Member{host},
	}

	m.mu.Lock()
	m.games[kind] = append(m.games[kind], g)
	m.mu.Unlock()
	return clone(g), nil
}

// FindByName returns the oldest lobby of kind with exactly this name.
func (m *Memory) FindByName(_ context.Context, kind Kind, name string) (Game, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, g := range m.games[kind] {
		if g.Name == name {
			return clone(g), true, nil
		}
	}
	return Game{}, false, nil
}

// Join adds member to the lobby.
func (m *Memory) Join(_ context.Context, kind Kind, instanceID string, member Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.find(kind, instanceID)
	if g == nil {
		return ErrNotFound
	}
	if g.HasMember(member.ID) {
		return ErrAlreadyMember
	}
	g.Members = append(g.Members, member)
	return nil
}

// Leave removes id from every lobby of kind it belongs to. A lobby left
// without members is dropped.
func (m *Memory) Leave(_ context.Context, kind Kind, id chat.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.games[kind][:0]
	for _, g := range m.games[kind] {
		for i, member := range g.Members {
			if member.ID == id {
				g.Members = append(g.Members[:i], g.Members[i+1:]...)
				break
			}
		}
		if len(g.Members) > 0 {
			kept = append(kept, g)
		}
	}
	m.games[kind] = kept
	return nil
}

// SetStatus moves a lobby through its lifecycle.
func (m *Memory) SetStatus(_ context.Context, kind Kind, instanceID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.find(kind, instanceID)
	if g == nil {
		return ErrNotFound
	}
	g.Status = status
	return nil
}

// Remove drops a lobby.
func (m *Memory) Remove(_ context.Context, kind Kind, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	games := m.games[kind]
	for i, g := range games {
		if g.InstanceID == instanceID {
			m.games[kind] = append(games[:i], games[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) find(kind Kind, instanceID string) *Game {
	for _, g := range m.games[kind] {
		if g.InstanceID == instanceID {
			return g
		}
	}
	return nil
}

func clone(g *Game) Game {
	c := *g
	c.Members = append([]Member(nil), g.Members...)
	return c
}
