package addon

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/lobby"
	"github.com/realmchat/chat-engine/internal/metrics"
	"github.com/realmchat/chat-engine/internal/notice"
	"github.com/realmchat/chat-engine/internal/perk"
)

// Inbound payload limits, inclusive.
const (
	MinPayload = 5
	MaxPayload = 256
)

// Commands understood by the multiplexer. Matching is case-sensitive.
const (
	CmdMainMenu      = "MAINMENU"
	CmdCreateGame    = "CREATEGAME"
	CmdPlayerList    = "PLRSLB"
	CmdJoinGame      = "JoinGame"
	CmdSelectTalents = "SelectTalents"

	// MainMenuListGames is the MAINMENU argument asking for the game list.
	MainMenuListGames = "GetTheGamesAvailable"
)

// Lobbies is the lobby registry the menu reads and mutates.
type Lobbies interface {
	List(ctx context.Context, kind lobby.Kind) ([]lobby.Game, error)
	Create(ctx context.Context, kind lobby.Kind, name string, host lobby.Member) (lobby.Game, error)
	FindByName(ctx context.Context, kind lobby.Kind, name string) (lobby.Game, bool, error)
	Join(ctx context.Context, kind lobby.Kind, instanceID string, member lobby.Member) error
	Leave(ctx context.Context, kind lobby.Kind, id chat.PlayerID) error
}

// Perks stores talent selections.
type Perks interface {
	Save(ctx context.Context, id chat.PlayerID, sel perk.Selection) error
}

// Notifier sends a plain server notice to a player.
type Notifier interface {
	Notify(to chat.PlayerID, key notice.Key, args ...any)
}

// Mux dispatches inbound addon payloads. Handlers run on the sender's
// session goroutine.
type Mux struct {
	lobbies  Lobbies
	perks    Perks
	notifier Notifier
	sender   *Sender
	kind     lobby.Kind
}

// NewMux creates a Mux serving lobbies of KindHungerGames.
func NewMux(lobbies Lobbies, perks Perks, notifier Notifier, sender *Sender) *Mux {
	return &Mux{
		lobbies:  lobbies,
		perks:    perks,
		notifier: notifier,
		sender:   sender,
		kind:     lobby.KindHungerGames,
	}
}

// Split separates a payload at its first tab. A payload without a tab is all
// command with an empty rest.
func Split(payload string) (command, rest string) {
	command, rest, _ = strings.Cut(payload, "\t")
	return command, rest
}

// HandleAddon processes one reassembled payload from sender.
func (m *Mux) HandleAddon(ctx context.Context, sender chat.Player, payload string) {
	if len(payload) < MinPayload || len(payload) > MaxPayload {
		return
	}
	command, rest := Split(payload)

	log.Debug().Str("component", "addon").
		Uint64("player", uint64(sender.ID())).
		Str("command", command).
		Str("rest", rest).
		Msg("addon message")

	var err error
	switch command {
	case CmdMainMenu:
		err = m.mainMenu(ctx, sender, rest)
	case CmdCreateGame:
		err = m.createGame(ctx, sender, rest)
	case CmdPlayerList:
		err = m.playerList(ctx, sender, rest)
	case CmdJoinGame:
		err = m.joinGame(ctx, sender, rest)
	case CmdSelectTalents:
		err = m.selectTalents(ctx, sender, rest)
	default:
		return
	}
	metrics.AddonCommands.WithLabelValues(command).Inc()

	if err != nil {
		log.Error().Str("component", "addon").Err(err).
			Uint64("player", uint64(sender.ID())).
			Str("command", command).
			Msg("addon command failed")
	}
}

// gameName replaces the list delimiter so it cannot appear inside a name.
func gameName(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func (m *Mux) send(to chat.Player, text string, kind PacketKind) error {
	n, err := m.sender.SendFramed(to, text, kind)
	metrics.AddonFrames.Add(float64(n))
	return err
}

func (m *Mux) mainMenu(ctx context.Context, sender chat.Player, rest string) error {
	if rest != MainMenuListGames {
		return nil
	}
	games, err := m.lobbies.List(ctx, m.kind)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("GAMES")
	for _, g := range games {
		if g.Status.Leaving() {
			continue
		}
		if g.Status.Started() {
			b.WriteString("-2-")
		} else {
			b.WriteString("-1-")
		}
		b.WriteString(g.Name)
	}
	return m.send(sender, b.String(), PacketGameList)
}

func (m *Mux) createGame(ctx context.Context, sender chat.Player, rest string) error {
	if len(rest) < 3 {
		m.notifier.Notify(sender.ID(), notice.GameNameTooShort)
		return nil
	}
	name := gameName(rest)

	if err := m.lobbies.Leave(ctx, m.kind, sender.ID()); err != nil {
		return err
	}
	_, err := m.lobbies.Create(ctx, m.kind, name, lobby.Member{ID: sender.ID(), Name: sender.Name()})
	return err
}

func (m *Mux) playerList(ctx context.Context, sender chat.Player, rest string) error {
	g, ok, err := m.lobbies.FindByName(ctx, m.kind, gameName(rest))
	if err != nil || !ok {
		return err
	}
	return m.send(sender, g.MemberNames(), PacketPlayerList)
}

func (m *Mux) joinGame(ctx context.Context, sender chat.Player, rest string) error {
	g, ok, err := m.lobbies.FindByName(ctx, m.kind, gameName(rest))
	if err != nil {
		return err
	}
	if !ok {
		m.notifier.Notify(sender.ID(), notice.JoinGameFailed)
		return nil
	}

	err = m.lobbies.Join(ctx, m.kind, g.InstanceID, lobby.Member{ID: sender.ID(), Name: sender.Name()})
	switch {
	case errors.Is(err, lobby.ErrAlreadyMember):
		m.notifier.Notify(sender.ID(), notice.CheatDetected)
		return nil
	case errors.Is(err, lobby.ErrNotFound):
		m.notifier.Notify(sender.ID(), notice.JoinGameFailed)
		return nil
	}
	return err
}

func (m *Mux) selectTalents(ctx context.Context, sender chat.Player, rest string) error {
	sel, err := perk.ParseSelection(rest)
	if err != nil {
		return nil
	}
	err = m.perks.Save(ctx, sender.ID(), sel)
	if errors.Is(err, perk.ErrDuplicateRecords) {
		log.Warn().Str("component", "addon").
			Str("player", sender.Name()).
			Msg("character has multiple perk records")
		return nil
	}
	return err
}
