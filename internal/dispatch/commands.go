package dispatch

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/chat"
)

// CommandFunc runs a server command. args is the text after the command
// name with surrounding space removed.
type CommandFunc func(ctx context.Context, sender chat.Player, args string) error

type command struct {
	gmOnly bool
	fn     CommandFunc
}

// Commands is a CommandParser over a fixed table of named commands reached
// with a leading '.' or '!'. Bodies naming an unknown command are not
// claimed and are delivered as ordinary chat.
type Commands struct {
	table map[string]command
}

var _ CommandParser = (*Commands)(nil)

// NewCommands returns an empty command table.
func NewCommands() *Commands {
	return &Commands{table: make(map[string]command)}
}

// Register adds a command available to every player.
func (c *Commands) Register(name string, fn CommandFunc) {
	c.table[strings.ToLower(name)] = command{fn: fn}
}

// RegisterGM adds a command only game masters may run. For anyone else the
// body is not claimed.
func (c *Commands) RegisterGM(name string, fn CommandFunc) {
	c.table[strings.ToLower(name)] = command{gmOnly: true, fn: fn}
}

// ParseCommand claims body when it names a registered command.
func (c *Commands) ParseCommand(ctx context.Context, sender chat.Player, body string) bool {
	if len(body) < 2 || (body[0] != '.' && body[0] != '!') {
		return false
	}
	name, args, _ := strings.Cut(body[1:], " ")
	cmd, ok := c.table[strings.ToLower(name)]
	if !ok || (cmd.gmOnly && !sender.IsGameMaster()) {
		return false
	}

	if err := cmd.fn(ctx, sender, strings.TrimSpace(args)); err != nil {
		log.Warn().Str("component", "commands").
			Uint64("player", uint64(sender.ID())).
			Str("command", name).
			Err(err).
			Msg("command failed")
	}
	return true
}
