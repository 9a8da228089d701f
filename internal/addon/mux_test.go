package addon

import (
	"context"
	"errors"
	"testing"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/chat/chattest"
	"github.com/realmchat/chat-engine/internal/lobby"
	"github.com/realmchat/chat-engine/internal/notice"
	"github.com/realmchat/chat-engine/internal/perk"
)

type sentNotice struct {
	to  chat.PlayerID
	key notice.Key
}

type fakeNotifier struct {
	sent []sentNotice
}

func (n *fakeNotifier) Notify(to chat.PlayerID, key notice.Key, _ ...any) {
	n.sent = append(n.sent, sentNotice{to: to, key: key})
}

type fakePerks struct {
	err   error
	saved []perk.Selection
}

func (p *fakePerks) Save(_ context.Context, _ chat.PlayerID, sel perk.Selection) error {
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, sel)
	return nil
}

type harness struct {
	mux      *Mux
	lobbies  *lobby.Memory
	perks    *fakePerks
	notifier *fakeNotifier
	sink     *chattest.Recorder
}

func newHarness() *harness {
	h := &harness{
		lobbies:  lobby.NewMemory(),
		perks:    &fakePerks{},
		notifier: &fakeNotifier{},
		sink:     &chattest.Recorder{},
	}
	h.mux = NewMux(h.lobbies, h.perks, h.notifier, NewSender(h.sink))
	return h
}

func (h *harness) games(t *testing.T) []lobby.Game {
	t.Helper()
	games, err := h.lobbies.List(context.Background(), lobby.KindHungerGames)
	if err != nil {
		t.Fatal(err)
	}
	return games
}

var (
	host  = &chattest.Player{PlayerID: 1, PlayerName: "Host"}
	guest = &chattest.Player{PlayerID: 2, PlayerName: "Guest"}
)

func TestSplit(t *testing.T) {
	tests := []struct {
		payload, command, rest string
	}{
		{"MAINMENU\tGetTheGamesAvailable", "MAINMENU", "GetTheGamesAvailable"},
		{"JoinGame\tname\twith tab", "JoinGame", "name\twith tab"},
		{"NOTABHERE", "NOTABHERE", ""},
		{"TRAIL\t", "TRAIL", ""},
	}
	for _, tt := range tests {
		c, r := Split(tt.payload)
		if c != tt.command || r != tt.rest {
			t.Errorf("Split(%q) = %q, %q; want %q, %q", tt.payload, c, r, tt.command, tt.rest)
		}
	}
}

func TestPayloadLengthBounds(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mux.HandleAddon(ctx, host, "C\tab") // 4 bytes
	long := "CREATEGAME\t" + string(make([]byte, 250))
	h.mux.HandleAddon(ctx, host, long)
	if len(h.notifier.sent) != 0 || len(h.games(t)) != 0 {
		t.Error("out-of-range payloads must have no effect")
	}
}

func TestCreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("too short", func(t *testing.T) {
		h := newHarness()
		h.mux.HandleAddon(ctx, host, "CREATEGAME\tab")
		if len(h.games(t)) != 0 {
			t.Error("lobby created for short name")
		}
		if len(h.notifier.sent) != 1 || h.notifier.sent[0].key != notice.GameNameTooShort {
			t.Errorf("notices = %+v", h.notifier.sent)
		}
	})

	t.Run("dash replaced", func(t *testing.T) {
		h := newHarness()
		h.mux.HandleAddon(ctx, host, "CREATEGAME\ta-b")
		games := h.games(t)
		if len(games) != 1 || games[0].Name != "a_b" {
			t.Fatalf("games = %+v", games)
		}
		if games[0].Host != host.ID() || !games[0].HasMember(host.ID()) || len(games[0].Members) != 1 {
			t.Errorf("lobby = %+v, want host as sole member", games[0])
		}
		if games[0].InstanceID == "" {
			t.Error("lobby has no instance id")
		}
	})

	t.Run("leaves previous lobby", func(t *testing.T) {
		h := newHarness()
		h.mux.HandleAddon(ctx, host, "CREATEGAME\tfirst")
		h.mux.HandleAddon(ctx, guest, "JoinGame\tfirst")
		h.mux.HandleAddon(ctx, guest, "CREATEGAME\tsecond")

		games := h.games(t)
		if len(games) != 2 {
			t.Fatalf("games = %d, want 2", len(games))
		}
		if games[0].HasMember(guest.ID()) {
			t.Error("guest still in first lobby")
		}
		if !games[1].HasMember(guest.ID()) {
			t.Error("guest not in own lobby")
		}
	})
}

func TestCreateGameTwiceListsOnlyNewLobby(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.mux.HandleAddon(ctx, host, "CREATEGAME\tfirst")
	h.mux.HandleAddon(ctx, host, "CREATEGAME\tsecond")

	h.mux.HandleAddon(ctx, guest, "MAINMENU\tGetTheGamesAvailable")
	if len(h.sink.Deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(h.sink.Deliveries))
	}
	if got, want := h.sink.Deliveries[0].Msg.Body, "0020101GAMES-1-second"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestMainMenu(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	open, _ := h.lobbies.Create(ctx, lobby.KindHungerGames, "open", lobby.Member{ID: 10})
	running, _ := h.lobbies.Create(ctx, lobby.KindHungerGames, "running", lobby.Member{ID: 11})
	closing, _ := h.lobbies.Create(ctx, lobby.KindHungerGames, "closing", lobby.Member{ID: 12})
	_, _ = h.lobbies.Create(ctx, lobby.KindHungerGames+1, "other", lobby.Member{ID: 13})
	_ = h.lobbies.SetStatus(ctx, lobby.KindHungerGames, running.InstanceID, lobby.StatusInProgress)
	_ = h.lobbies.SetStatus(ctx, lobby.KindHungerGames, closing.InstanceID, lobby.StatusWaitLeave)
	_ = open

	h.mux.HandleAddon(ctx, host, "MAINMENU\tGetTheGamesAvailable")

	if len(h.sink.Deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(h.sink.Deliveries))
	}
	want := "0020101GAMES-1-open-2-running"
	if got := h.sink.Deliveries[0].Msg.Body; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	h.mux.HandleAddon(ctx, host, "MAINMENU\tSomethingElse")
	if len(h.sink.Deliveries) != 1 {
		t.Error("unknown MAINMENU argument produced output")
	}
}

func TestPlayerList(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.mux.HandleAddon(ctx, host, "CREATEGAME\tmy-game")
	h.mux.HandleAddon(ctx, guest, "JoinGame\tmy_game")

	h.mux.HandleAddon(ctx, guest, "PLRSLB\tmy-game")
	if len(h.sink.Deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(h.sink.Deliveries))
	}
	if got := h.sink.Deliveries[0].Msg.Body; got != "0010101Host-Guest" {
		t.Errorf("body = %q", got)
	}

	h.mux.HandleAddon(ctx, guest, "PLRSLB\tmissing")
	if len(h.sink.Deliveries) != 1 || len(h.notifier.sent) != 0 {
		t.Error("unknown lobby must be a no-op")
	}
}

func TestJoinGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.mux.HandleAddon(ctx, host, "CREATEGAME\tarena")

	h.mux.HandleAddon(ctx, guest, "JoinGame\tarena")
	if g := h.games(t)[0]; !g.HasMember(guest.ID()) {
		t.Fatal("guest not added")
	}
	if len(h.notifier.sent) != 0 {
		t.Errorf("notices = %+v, want none", h.notifier.sent)
	}

	h.mux.HandleAddon(ctx, guest, "JoinGame\tarena")
	if len(h.notifier.sent) != 1 || h.notifier.sent[0].key != notice.CheatDetected {
		t.Errorf("notices = %+v, want cheat detected", h.notifier.sent)
	}

	h.mux.HandleAddon(ctx, guest, "JoinGame\tnowhere")
	if len(h.notifier.sent) != 2 || h.notifier.sent[1].key != notice.JoinGameFailed {
		t.Errorf("notices = %+v, want join failed", h.notifier.sent)
	}
}

func TestSelectTalents(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
		want    []perk.Selection
	}{
		{"valid", "SelectTalents\t12345678", []perk.Selection{{12, 34, 56, 78}}},
		{"too short", "SelectTalents\t1234567", nil},
		{"non digit", "SelectTalents\t1a345678", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.mux.HandleAddon(ctx, host, tt.payload)
			if len(h.perks.saved) != len(tt.want) {
				t.Fatalf("saved = %v, want %v", h.perks.saved, tt.want)
			}
			for i := range tt.want {
				if h.perks.saved[i] != tt.want[i] {
					t.Errorf("saved[%d] = %v, want %v", i, h.perks.saved[i], tt.want[i])
				}
			}
		})
	}

	t.Run("duplicate records", func(t *testing.T) {
		h := newHarness()
		h.perks.err = perk.ErrDuplicateRecords
		h.mux.HandleAddon(ctx, host, "SelectTalents\t01020304")
		if len(h.perks.saved) != 0 {
			t.Error("selection saved despite duplicate records")
		}
	})
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness()
	h.mux.HandleAddon(context.Background(), host, "FUTURECMD\targs")
	if len(h.sink.Deliveries) != 0 || len(h.notifier.sent) != 0 || len(h.games(t)) != 0 {
		t.Error("unknown command had an effect")
	}
}

func TestLobbyErrorsAreSwallowed(t *testing.T) {
	h := newHarness()
	h.mux.lobbies = failingLobbies{}
	h.mux.HandleAddon(context.Background(), host, "JoinGame\tarena")
	if len(h.notifier.sent) != 0 {
		t.Errorf("registry failure produced notices %+v", h.notifier.sent)
	}
}

type failingLobbies struct{}

var errRegistry = errors.New("registry down")

func (failingLobbies) List(context.Context, lobby.Kind) ([]lobby.Game, error) { return nil, errRegistry }
func (failingLobbies) Create(context.Context, lobby.Kind, string, lobby.Member) (lobby.Game, error) {
	return lobby.Game{}, errRegistry
}
func (failingLobbies) FindByName(context.Context, lobby.Kind, string) (lobby.Game, bool, error) {
	return lobby.Game{}, false, errRegistry
}
func (failingLobbies) Join(context.Context, lobby.Kind, string, lobby.Member) error { return errRegistry }
func (failingLobbies) Leave(context.Context, lobby.Kind, chat.PlayerID) error { return errRegistry }
