// Package perk persists the four talent perks a character selects from the
// arena addon.
package perk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/realmchat/chat-engine/internal/chat"
)

// ErrDuplicateRecords means a character has more than one perk row. Nothing
// is written in that case.
var ErrDuplicateRecords = errors.New("perk: multiple records for character")

// Selection is one perk id per slot.
type Selection [4]uint8

// ParseSelection reads four consecutive two-digit decimal fields from the
// start of s.
func ParseSelection(s string) (Selection, error) {
	var sel Selection
	if len(s) < 8 {
		return sel, fmt.Errorf("perk: selection %q shorter than 8 characters", s)
	}
	for i := range sel {
		hi, lo := s[2*i], s[2*i+1]
		if !isDigit(hi) || !isDigit(lo) {
			return Selection{}, fmt.Errorf("perk: field %d of %q is not two digits", i+1, s)
		}
		sel[i] = (hi-'0')*10 + (lo - '0')
	}
	return sel, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Memory keeps selections in process. It never holds duplicates.
type Memory struct {
	mu   sync.Mutex
	rows map[chat.PlayerID]Selection
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[chat.PlayerID]Selection)}
}

func (m *Memory) Save(_ context.Context, id chat.PlayerID, sel Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = sel
	return nil
}

func (m *Memory) Load(_ context.Context, id chat.PlayerID) (Selection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sel, ok := m.rows[id]
	return sel, ok, nil
}
