// Package node joins the websocket session layer to the chat pipeline. It
// turns client messages into pipeline calls and carries every outbound
// message, notice and kick to the connection of its recipient, locally or
// through the NATS bus when the recipient is hosted elsewhere.
package node

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/emote"
	"github.com/realmchat/chat-engine/internal/messaging"
	"github.com/realmchat/chat-engine/internal/notice"
	"github.com/realmchat/chat-engine/internal/protocol"
	"github.com/realmchat/chat-engine/internal/roster"
	"github.com/realmchat/chat-engine/internal/ws"
)

// requestTimeout bounds the store calls made while handling one message.
const requestTimeout = 3 * time.Second

// Bus carries frames between nodes. *messaging.NATSClient satisfies it.
type Bus interface {
	SubscribePlayer(id chat.PlayerID, deliver func(data []byte), kick func(reason string)) error
	UnsubscribePlayer(id chat.PlayerID) error
	PublishToPlayer(id chat.PlayerID, data []byte) error
	PublishKick(id chat.PlayerID, reason string) error
	PublishMute(u messaging.MuteUpdate) error
}

// Pipeline is the chat dispatcher. *dispatch.Dispatcher satisfies it.
type Pipeline interface {
	HandleChat(ctx context.Context, sender chat.Player, ev chat.Event) error
	HandleEmote(ctx context.Context, sender chat.Player, anim uint32)
	HandleTextEmote(ctx context.Context, sender chat.Player, textEmote, emoteNum uint32, target uint64) error
	HandleChatIgnored(ctx context.Context, player chat.Player, ignored chat.PlayerID)
}

// Transport finds and drops local connections. *ws.Server satisfies it.
type Transport interface {
	BindPlayer(c *ws.Connection) bool
	ConnByPlayer(id chat.PlayerID) (*ws.Connection, bool)
	RemoveConnection(c *ws.Connection)
}

// Config wires a Node. Bus may be nil for a single node deployment.
type Config struct {
	Roster  *roster.Roster
	Bus     Bus
	Catalog *notice.Catalog
}

// Node implements chat.Sink, emote.Sink and the notifier and kicker of the
// pipeline.
type Node struct {
	roster    *roster.Roster
	bus       Bus
	catalog   *notice.Catalog
	pipeline  Pipeline
	transport Transport
	onLogout  []func(ctx context.Context, id chat.PlayerID)
}

var (
	_ chat.Sink  = (*Node)(nil)
	_ emote.Sink = (*Node)(nil)
)

// New creates a Node. Mutes applied through the roster are broadcast on the
// bus so other nodes update their copy of the player.
func New(cfg Config) *Node {
	if cfg.Catalog == nil {
		cfg.Catalog = notice.NewCatalog()
	}
	n := &Node{roster: cfg.Roster, bus: cfg.Bus, catalog: cfg.Catalog}
	if n.bus != nil {
		n.roster.OnMute(func(id chat.PlayerID, until time.Time) {
			if err := n.bus.PublishMute(messaging.MuteUpdate{Player: id, Until: until}); err != nil {
				log.Warn().Str("component", "node").Uint64("player", uint64(id)).Err(err).Msg("mute broadcast failed")
			}
		})
	}
	return n
}

// SetPipeline installs the dispatcher. The pipeline is built with the node
// as its sink, so it is attached after construction.
func (n *Node) SetPipeline(p Pipeline) { n.pipeline = p }

// SetTransport installs the websocket server.
func (n *Node) SetTransport(t Transport) { n.transport = t }

// OnLogout registers fn to run after a character goes offline.
func (n *Node) OnLogout(fn func(ctx context.Context, id chat.PlayerID)) {
	n.onLogout = append(n.onLogout, fn)
}

// Register installs the client message handlers on d.
func (n *Node) Register(d *ws.MessageDispatcher) {
	d.Register(protocol.TypeLogin, n.handleLogin)
	d.Register(protocol.TypeChat, n.loggedIn(func(ctx context.Context, p *roster.Player, msg interface{}) {
		m := msg.(protocol.ChatMsg)
		_ = n.pipeline.HandleChat(ctx, p, m.Event())
	}))
	d.Register(protocol.TypeEmote, n.loggedIn(func(ctx context.Context, p *roster.Player, msg interface{}) {
		n.pipeline.HandleEmote(ctx, p, msg.(protocol.EmoteMsg).Emote)
	}))
	d.Register(protocol.TypeTextEmote, n.loggedIn(func(ctx context.Context, p *roster.Player, msg interface{}) {
		m := msg.(protocol.TextEmoteMsg)
		_ = n.pipeline.HandleTextEmote(ctx, p, m.TextEmote, m.EmoteNum, m.Target)
	}))
	d.Register(protocol.TypeChatIgnored, n.loggedIn(func(ctx context.Context, p *roster.Player, msg interface{}) {
		n.pipeline.HandleChatIgnored(ctx, p, msg.(protocol.ChatIgnoredMsg).Player)
	}))
	d.Register(protocol.TypeState, n.loggedIn(func(_ context.Context, p *roster.Player, msg interface{}) {
		_ = n.roster.Update(p.ID(), msg.(protocol.StateMsg).State)
	}))
}

type playerHandler func(ctx context.Context, p *roster.Player, msg interface{})

// loggedIn resolves the connection's character before calling h.
func (n *Node) loggedIn(h playerHandler) ws.MessageHandler {
	return func(conn *ws.Connection, msg interface{}) {
		id, ok := conn.Player()
		if !ok {
			ws.SendError(conn, "not_logged_in", "login first")
			return
		}
		p, ok := n.roster.Player(id)
		if !ok {
			ws.SendError(conn, "not_logged_in", "character is offline")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		h(ctx, p, msg)
	}
}

func (n *Node) handleLogin(conn *ws.Connection, msg interface{}) {
	m := msg.(protocol.LoginMsg)
	if _, ok := conn.Player(); ok {
		ws.SendError(conn, "already_logged_in", "connection already has a character")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	p, err := n.roster.Login(ctx, m.Profile, m.Position)
	switch {
	case errors.Is(err, roster.ErrInvalidName):
		ws.SendError(conn, "invalid_name", err.Error())
		return
	case errors.Is(err, roster.ErrOnline):
		ws.SendError(conn, "already_online", err.Error())
		return
	case err != nil:
		ws.SendError(conn, "login_failed", "login failed")
		return
	}

	conn.Bind(p.ID(), parseLocale(m.Locale))
	if !n.transport.BindPlayer(conn) {
		conn.Bind(0, notice.DefaultLocale)
		n.roster.Logout(p.ID())
		ws.SendError(conn, "already_online", "character is online on another connection")
		return
	}

	if n.bus != nil {
		id := p.ID()
		err := n.bus.SubscribePlayer(id, func(data []byte) {
			if err := conn.WriteMessage(data); err != nil {
				log.Debug().Str("component", "node").Uint64("player", uint64(id)).Err(err).Msg("relayed write failed")
			}
		}, func(reason string) {
			n.kickLocal(id, reason)
		})
		if err != nil {
			log.Warn().Str("component", "node").Uint64("player", uint64(id)).Err(err).Msg("bus subscribe failed")
		}
	}

	data, err := protocol.NewServerMessage(protocol.TypeLoggedIn, protocol.LoggedInMsg{
		SessionID: conn.ID,
		Player:    p.ID(),
		Name:      p.Name(),
	})
	if err == nil {
		_ = conn.WriteMessage(data)
	}
	log.Info().Str("component", "node").Str("conn", conn.ID).Uint64("player", uint64(p.ID())).Str("name", p.Name()).Msg("login")
}

func parseLocale(s string) language.Tag {
	if s == "" {
		return notice.DefaultLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return notice.DefaultLocale
	}
	return tag
}

// Disconnect takes the connection's character offline. It is the ws
// server's disconnect callback.
func (n *Node) Disconnect(conn *ws.Connection) {
	id, ok := conn.Player()
	if !ok {
		return
	}
	if n.bus != nil {
		if err := n.bus.UnsubscribePlayer(id); err != nil {
			log.Debug().Str("component", "node").Uint64("player", uint64(id)).Err(err).Msg("bus unsubscribe failed")
		}
	}
	n.roster.Logout(id)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	for _, fn := range n.onLogout {
		fn(ctx, id)
	}
	log.Info().Str("component", "node").Str("conn", conn.ID).Uint64("player", uint64(id)).Msg("logout")
}

// Deliver sends a composed chat message to one player.
func (n *Node) Deliver(to chat.PlayerID, msg chat.Message) {
	n.send(to, protocol.TypeMessage, msg)
}

// PlayAnimation sends an animation emote to one player.
func (n *Node) PlayAnimation(to chat.PlayerID, a emote.Animation) {
	n.send(to, protocol.TypeEmote, a)
}

// ShowText sends a text emote line to one player.
func (n *Node) ShowText(to chat.PlayerID, t emote.Text) {
	n.send(to, protocol.TypeTextEmote, t)
}

// Notify renders key in the recipient's locale and sends it as a notice.
// Players hosted on other nodes get the default locale.
func (n *Node) Notify(to chat.PlayerID, key notice.Key, args ...any) {
	tag := notice.DefaultLocale
	if c, ok := n.local(to); ok {
		tag = c.Locale()
	}
	n.send(to, protocol.TypeNotice, protocol.NoticeMsg{Text: n.catalog.Text(tag, key, args...)})
}

// Kick drops the player's connection wherever it is hosted.
func (n *Node) Kick(id chat.PlayerID, reason string) {
	if _, ok := n.local(id); ok {
		n.kickLocal(id, reason)
		return
	}
	if n.bus == nil {
		return
	}
	if err := n.bus.PublishKick(id, reason); err != nil {
		log.Warn().Str("component", "node").Uint64("player", uint64(id)).Err(err).Msg("kick publish failed")
	}
}

func (n *Node) kickLocal(id chat.PlayerID, reason string) {
	c, ok := n.local(id)
	if !ok {
		return
	}
	if data, err := protocol.NewServerMessage(protocol.TypeKicked, protocol.KickedMsg{Reason: reason}); err == nil {
		_ = c.WriteMessage(data)
	}
	log.Warn().Str("component", "node").Str("conn", c.ID).Uint64("player", uint64(id)).Str("reason", reason).Msg("kicked")
	n.transport.RemoveConnection(c)
}

func (n *Node) local(id chat.PlayerID) (*ws.Connection, bool) {
	if n.transport == nil {
		return nil, false
	}
	return n.transport.ConnByPlayer(id)
}

func (n *Node) send(to chat.PlayerID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Error().Str("component", "node").Str("type", msgType).Err(err).Msg("failed to build server message")
		return
	}
	if c, ok := n.local(to); ok {
		if err := c.WriteMessage(data); err != nil {
			log.Debug().Str("component", "node").Uint64("player", uint64(to)).Err(err).Msg("write failed")
		}
		return
	}
	if n.bus == nil {
		return
	}
	if err := n.bus.PublishToPlayer(to, data); err != nil {
		log.Warn().Str("component", "node").Uint64("player", uint64(to)).Err(err).Msg("publish failed")
	}
}
