package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/chat/chattest"
)

func TestParseCommand(t *testing.T) {
	var ran []string
	c := NewCommands()
	c.Register("Roll", func(_ context.Context, _ chat.Player, args string) error {
		ran = append(ran, "roll:"+args)
		return nil
	})
	c.RegisterGM("mute", func(_ context.Context, _ chat.Player, args string) error {
		ran = append(ran, "mute:"+args)
		return errors.New("no such player")
	})

	player := &chattest.Player{PlayerID: 1}
	gm := &chattest.Player{PlayerID: 2, GM: true}

	tests := []struct {
		name    string
		gm      bool
		body    string
		claimed bool
		ran     string
	}{
		{"dot prefix", false, ".roll 6", true, "roll:6"},
		{"bang prefix case folded", false, "!ROLL", true, "roll:"},
		{"plain text", false, "roll 6", false, ""},
		{"bare prefix", false, ".", false, ""},
		{"unknown", false, ".dance", false, ""},
		{"gm only for player", false, ".mute Bob", false, ""},
		{"gm only for gm, error still claims", true, ".mute Bob", true, "mute:Bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran = nil
			sender := player
			if tt.gm {
				sender = gm
			}
			if got := c.ParseCommand(context.Background(), sender, tt.body); got != tt.claimed {
				t.Fatalf("ParseCommand(%q) = %v, want %v", tt.body, got, tt.claimed)
			}
			switch {
			case tt.ran == "" && len(ran) != 0:
				t.Errorf("ran %v, want nothing", ran)
			case tt.ran != "" && (len(ran) != 1 || ran[0] != tt.ran):
				t.Errorf("ran %v, want %q", ran, tt.ran)
			}
		})
	}
}
