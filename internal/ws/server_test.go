package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/realmchat/chat-engine/internal/protocol"
	"github.com/realmchat/chat-engine/internal/ratelimit"
)

type denyLimiter struct {
	err error
}

func (l denyLimiter) Allow(context.Context, string, ratelimit.Rule) (bool, error) {
	return false, l.err
}

// startServer runs s behind an httptest server and returns the /ws URL.
func startServer(t *testing.T, s *Server) string {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		ts.Close()
	})
	return "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/ws"
}

func dial(t *testing.T, url string) net.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn net.Conn, msg string) {
	t.Helper()
	if err := wsutil.WriteClientMessage(conn, ws.OpText, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMessage(t *testing.T, conn net.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return m
}

func TestServer_PingPong(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil, NewMessageDispatcher().Dispatch)
	conn := dial(t, startServer(t, s))

	send(t, conn, `{"type":"ping"}`)
	if got := readMessage(t, conn); got["type"] != protocol.TypePong {
		t.Errorf("expected pong, got %v", got)
	}
}

func TestServer_Errors(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil, NewMessageDispatcher().Dispatch)
	conn := dial(t, startServer(t, s))

	cases := []struct {
		name     string
		input    string
		wantCode string
	}{
		{"parse error", `{not json`, "parse_error"},
		{"unknown type", `{"type":"find_match"}`, "parse_error"},
		{"unregistered type", `{"type":"emote","emote":1}`, "unsupported_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			send(t, conn, tc.input)
			got := readMessage(t, conn)
			if got["type"] != protocol.TypeError || got["code"] != tc.wantCode {
				t.Errorf("expected error %s, got %v", tc.wantCode, got)
			}
		})
	}
}

func TestServer_HandlersRunInOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []uint32
	)
	done := make(chan struct{})
	d := NewMessageDispatcher()
	d.Register(protocol.TypeEmote, func(_ *Connection, msg interface{}) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, msg.(protocol.EmoteMsg).Emote)
		if len(seen) == 50 {
			close(done)
		}
	})
	s := NewServer(DefaultServerConfig(), nil, d.Dispatch)
	conn := dial(t, startServer(t, s))

	for i := 1; i <= 50; i++ {
		b, _ := json.Marshal(protocol.EmoteMsg{Type: protocol.TypeEmote, Emote: uint32(i)})
		send(t, conn, string(b))
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages not handled")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		if v != uint32(i+1) {
			t.Fatalf("message %d handled out of order: %v", i, seen)
		}
	}
}

func TestServer_Disconnect(t *testing.T) {
	gone := make(chan string, 1)
	s := NewServer(DefaultServerConfig(), nil, NewMessageDispatcher().Dispatch)
	s.SetOnDisconnect(func(c *Connection) { gone <- c.ID })
	conn := dial(t, startServer(t, s))

	send(t, conn, `{"type":"ping"}`)
	readMessage(t, conn)
	if s.Connections().Count() != 1 {
		t.Fatalf("expected 1 connection, got %d", s.Connections().Count())
	}

	conn.Close()
	select {
	case id := <-gone:
		if id == "" {
			t.Error("expected a connection id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback not called")
	}
	if s.Connections().Count() != 0 {
		t.Errorf("expected 0 connections, got %d", s.Connections().Count())
	}
}

func TestServer_MessageTooLarge(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxFrameSize = 16
	s := NewServer(cfg, nil, NewMessageDispatcher().Dispatch)
	conn := dial(t, startServer(t, s))

	send(t, conn, `{"type":"ping","padding":"xxxxxxxxxxxxxxxx"}`)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := wsutil.ReadServerText(conn); err == nil {
		t.Fatal("expected the server to drop the connection")
	}
}

func TestServer_ConnectLimiter(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		s := NewServer(DefaultServerConfig(), denyLimiter{}, nil)
		url := startServer(t, s)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if conn, _, _, err := ws.Dial(ctx, url); err == nil {
			conn.Close()
			t.Fatal("expected upgrade to be refused")
		}
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		s := NewServer(DefaultServerConfig(), denyLimiter{err: errors.New("redis down")}, NewMessageDispatcher().Dispatch)
		conn := dial(t, startServer(t, s))
		send(t, conn, `{"type":"ping"}`)
		if got := readMessage(t, conn); got["type"] != protocol.TypePong {
			t.Errorf("expected pong, got %v", got)
		}
	})
}

func TestServer_MaxConnections(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxConnections = 1
	s := NewServer(cfg, nil, NewMessageDispatcher().Dispatch)
	url := startServer(t, s)

	first := dial(t, url)
	send(t, first, `{"type":"ping"}`)
	readMessage(t, first)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if conn, _, _, err := ws.Dial(ctx, url); err == nil {
		conn.Close()
		t.Fatal("expected second connection to be refused")
	}
}
