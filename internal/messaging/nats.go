// Package messaging provides a NATS client wrapper for pub/sub messaging
// between chat nodes. It handles connection lifecycle, subject-based
// subscriptions, and convenience methods for per-player delivery, kicks and
// mute propagation.
package messaging

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/chat"
)

// NATS subject patterns used across chat nodes.
const (
	SubjectDeliver = "chat.deliver" // + .<player_id>, serialized server frames
	SubjectKick    = "chat.kick"    // + .<player_id>
	SubjectMute    = "chat.mute"    // broadcast to every node
)

// MuteUpdate announces a changed mute timer. The zero Until means unmuted.
type MuteUpdate struct {
	Player chat.PlayerID `json:"player"`
	Until  time.Time     `json:"until"`
}

// KickOrder asks the node hosting a player to drop the connection.
type KickOrder struct {
	Reason string `json:"reason"`
}

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "realmchat",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	logger := log.With().Str("component", "nats").Logger()
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("messaging: connect: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Msg("connected")

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// PlayerSubject returns the delivery subject of one player.
func PlayerSubject(id chat.PlayerID) string {
	return SubjectDeliver + "." + strconv.FormatUint(uint64(id), 10)
}

// KickSubject returns the kick subject of one player.
func KickSubject(id chat.PlayerID) string {
	return SubjectKick + "." + strconv.FormatUint(uint64(id), 10)
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("messaging: publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription under key for later cleanup.
func (c *NATSClient) Subscribe(key, subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("messaging: subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	old := c.subs[key]
	c.subs[key] = sub
	c.mu.Unlock()

	if old != nil {
		_ = old.Unsubscribe()
	}
	return nil
}

// SubscribePlayer routes frames and kick orders addressed to id to the
// given handlers. A second call for the same player replaces the first.
func (c *NATSClient) SubscribePlayer(id chat.PlayerID, deliver func(data []byte), kick func(reason string)) error {
	if err := c.Subscribe("deliver:"+PlayerSubject(id), PlayerSubject(id), func(msg *nats.Msg) {
		deliver(msg.Data)
	}); err != nil {
		return err
	}
	return c.Subscribe("kick:"+KickSubject(id), KickSubject(id), func(msg *nats.Msg) {
		var order KickOrder
		if err := json.Unmarshal(msg.Data, &order); err != nil {
			log.Warn().Str("component", "nats").Err(err).Uint64("player", uint64(id)).Msg("bad kick order")
			return
		}
		kick(order.Reason)
	})
}

// UnsubscribePlayer drops both subscriptions of id.
func (c *NATSClient) UnsubscribePlayer(id chat.PlayerID) error {
	derr := c.unsubscribe("deliver:" + PlayerSubject(id))
	kerr := c.unsubscribe("kick:" + KickSubject(id))
	if derr != nil {
		return derr
	}
	return kerr
}

// PublishToPlayer sends a serialized server frame to whichever node hosts id.
func (c *NATSClient) PublishToPlayer(id chat.PlayerID, data []byte) error {
	return c.Publish(PlayerSubject(id), data)
}

// PublishKick asks the node hosting id to drop the connection.
func (c *NATSClient) PublishKick(id chat.PlayerID, reason string) error {
	data, err := json.Marshal(KickOrder{Reason: reason})
	if err != nil {
		return fmt.Errorf("messaging: marshal kick: %w", err)
	}
	return c.Publish(KickSubject(id), data)
}

// PublishMute broadcasts a mute change to every node.
func (c *NATSClient) PublishMute(u MuteUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("messaging: marshal mute: %w", err)
	}
	return c.Publish(SubjectMute, data)
}

// SubscribeMutes delivers every broadcast mute change to handler.
func (c *NATSClient) SubscribeMutes(handler func(MuteUpdate)) error {
	return c.Subscribe(SubjectMute, SubjectMute, func(msg *nats.Msg) {
		var u MuteUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			log.Warn().Str("component", "nats").Err(err).Msg("bad mute update")
			return
		}
		handler(u)
	})
}

// Flush round-trips to the server so earlier subscriptions are in effect.
func (c *NATSClient) Flush() error {
	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("messaging: flush: %w", err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Warn().Str("component", "nats").Str("subscription", key).Err(err).Msg("drain failed")
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Warn().Str("component", "nats").Err(err).Msg("connection drain failed")
	}

	log.Info().Str("component", "nats").Msg("client closed")
}

// unsubscribe removes and unsubscribes the subscription stored under key.
func (c *NATSClient) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("messaging: no subscription %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("messaging: unsubscribe %s: %w", key, err)
	}
	return nil
}
