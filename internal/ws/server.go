// Package ws handles WebSocket connection management, including upgrading
// HTTP connections, maintaining active client sessions, and dispatching
// incoming messages to the appropriate handlers.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/metrics"
	"github.com/realmchat/chat-engine/internal/ratelimit"
)

// ErrNotConnected is returned when a write targets a connection that is gone.
var ErrNotConnected = errors.New("ws: not connected")

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	MaxConnections int           // hard cap on total connections
	MaxFrameSize   int64         // largest inbound message accepted
	WriteTimeout   time.Duration // timeout for WebSocket write operations
	Heartbeat      HeartbeatConfig
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		MaxConnections: 100000,
		MaxFrameSize:   4096,
		WriteTimeout:   10 * time.Second,
		Heartbeat:      DefaultHeartbeatConfig(),
	}
}

// ConnectLimiter throttles upgrades per remote IP.
type ConnectLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// Server is the WebSocket server built on gobwas/ws. Each upgraded
// connection gets one reader goroutine, so the messages of one session are
// handled strictly one at a time in arrival order.
type Server struct {
	config       ServerConfig
	conns        *ConnectionManager
	limiter      ConnectLimiter
	onMessage    func(conn *Connection, data []byte) // message handler callback
	onDisconnect func(conn *Connection)              // called when a connection is removed
	httpServer   *http.Server
	done         chan struct{}
	stopOnce     sync.Once
	readers      sync.WaitGroup
	startedAt    time.Time // server start time for uptime calculation
}

// NewServer creates a Server with the given configuration, connect limiter,
// and message callback. onMessage is called from the connection's reader
// goroutine for every complete text message. limiter may be nil.
func NewServer(config ServerConfig, limiter ConnectLimiter, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:    config,
		conns:     NewConnectionManager(),
		limiter:   limiter,
		onMessage: onMessage,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start configures the HTTP server, starts the heartbeat monitor and blocks
// on http.Server.ListenAndServe.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: s.Handler(),
	}

	StartHeartbeat(s, s.config.Heartbeat)

	log.Info().Str("component", "ws").
		Str("addr", s.config.ListenAddr).
		Int("max_conns", s.config.MaxConnections).
		Msg("server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade upgrades an HTTP request to a WebSocket connection using
// the gobwas/ws zero-copy upgrader and starts its reader goroutine.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if s.limiter != nil {
		ip := remoteIP(r)
		ok, err := s.limiter.Allow(r.Context(), ip, ratelimit.RuleConnect)
		if err != nil {
			log.Warn().Str("component", "ws").Err(err).Msg("connect limiter unavailable")
		} else if !ok {
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Warn().Str("component", "ws").Err(err).Msg("upgrade failed")
		return
	}

	c := newConnection(uuid.New().String(), conn, s.config.WriteTimeout)
	s.conns.Add(c)
	metrics.ConnectionsTotal.Inc()

	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		s.readLoop(c)
	}()

	log.Debug().Str("component", "ws").Str("conn", c.ID).Int("total", s.conns.Count()).Msg("new connection")
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handleHealth responds with the server's health status as JSON, including the
// current connection count and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// readLoop reads messages until the connection fails or closes. Control
// frames are answered through wsutil.ControlFrameHandler under the write
// mutex.
func (s *Server) readLoop(c *Connection) {
	defer s.RemoveConnection(c)

	control := wsutil.ControlFrameHandler(controlWriter{c}, ws.StateServerSide)
	for {
		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			return
		}

		// Any frame proves the connection is alive.
		c.Touch()

		if header.OpCode.IsControl() {
			if err := control(header, reader); err != nil {
				// wsutil.ClosedError after answering a close frame.
				return
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(reader, s.config.MaxFrameSize+1))
		if err != nil {
			return
		}
		if int64(len(data)) > s.config.MaxFrameSize {
			log.Warn().Str("component", "ws").Str("conn", c.ID).Int("size", len(data)).Msg("message too large")
			return
		}
		if len(data) == 0 || header.OpCode == ws.OpBinary {
			continue
		}

		if s.onMessage != nil {
			s.onMessage(c, data)
		}
	}
}

// SetOnDisconnect registers a callback invoked once when a connection is
// removed (read error, heartbeat timeout, kick or graceful close).
func (s *Server) SetOnDisconnect(fn func(conn *Connection)) {
	s.onDisconnect = fn
}

// RemoveConnection removes a connection from the connection manager and
// closes the underlying network connection. It is safe to call from any
// goroutine and more than once.
func (s *Server) RemoveConnection(c *Connection) {
	// Guard: only proceed if the connection was actually in the manager.
	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.ConnectionsTotal.Dec()

	if s.onDisconnect != nil {
		s.onDisconnect(c)
	}

	log.Debug().Str("component", "ws").Str("conn", c.ID).Int("total", s.conns.Count()).Msg("connection closed")
}

// BindPlayer indexes a connection under the character it logged in with.
func (s *Server) BindPlayer(c *Connection) bool {
	return s.conns.BindPlayer(c)
}

// ConnByPlayer returns the local connection of a player.
func (s *Server) ConnByPlayer(id chat.PlayerID) (*Connection, bool) {
	return s.conns.ByPlayer(id)
}

// SendMessage writes a WebSocket text frame to the connection identified by
// connID. It is goroutine-safe thanks to the per-connection write mutex.
func (s *Server) SendMessage(connID string, data []byte) error {
	c := s.conns.Get(connID)
	if c == nil {
		return fmt.Errorf("%w: connection %s", ErrNotConnected, connID)
	}
	return c.WriteMessage(data)
}

// Connections returns the ConnectionManager for external access to connection
// state (e.g., by the heartbeat).
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown stops the HTTP listener, signals the heartbeat to exit, closes
// all active connections and waits for their reader goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Str("component", "ws").Msg("shutting down server")

	s.stopOnce.Do(func() { close(s.done) })

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Warn().Str("component", "ws").Err(err).Msg("http shutdown error")
		}
	}

	for _, c := range s.conns.All() {
		s.RemoveConnection(c)
	}

	waited := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return fmt.Errorf("ws: shutdown: %w", ctx.Err())
	}

	log.Info().Str("component", "ws").Msg("server stopped, all connections closed")
	return nil
}
