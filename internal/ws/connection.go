package ws

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/text/language"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/notice"
)

// Connection represents a single WebSocket client connection with its
// associated metadata and a write mutex for serializing outbound frames.
type Connection struct {
	ID           string    // connection ID (UUID)
	Conn         net.Conn  // underlying TCP connection
	CreatedAt    time.Time // when the connection was established
	RemoteIP     string
	writeTimeout time.Duration
	lastSeen     atomic.Int64 // unix nanos of the last frame read
	writeMu      sync.Mutex   // serializes writes to this connection
	closeOnce    sync.Once

	mu     sync.RWMutex
	player chat.PlayerID
	locale language.Tag
}

func newConnection(id string, conn net.Conn, writeTimeout time.Duration) *Connection {
	c := &Connection{
		ID:           id,
		Conn:         conn,
		CreatedAt:    time.Now(),
		writeTimeout: writeTimeout,
		locale:       notice.DefaultLocale,
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		c.RemoteIP = addr.IP.String()
	}
	c.Touch()
	return c
}

// Touch records activity on the connection.
func (c *Connection) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the time of the last frame read from the client.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Bind attaches the logged-in character and its locale to the connection.
func (c *Connection) Bind(id chat.PlayerID, locale language.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = id
	c.locale = locale
}

// Player returns the character bound to the connection, if any.
func (c *Connection) Player() (chat.PlayerID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player, c.player != 0
}

// Locale returns the notice locale of the connection.
func (c *Connection) Locale() language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.locale
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.setWriteDeadline()
	defer c.clearWriteDeadline()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.setWriteDeadline()
	defer c.clearWriteDeadline()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

func (c *Connection) setWriteDeadline() {
	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
}

func (c *Connection) clearWriteDeadline() {
	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Time{})
	}
}

// controlWriter lets wsutil answer pings and closes under the write mutex.
type controlWriter struct{ c *Connection }

func (w controlWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.Conn.Write(p)
}

var _ io.Writer = controlWriter{}

// Close closes the underlying network connection. Repeated calls are no-ops.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.Conn.Close() })
	return err
}

// ConnectionManager is a thread-safe registry of connections keyed by
// connection ID and by logged-in player.
type ConnectionManager struct {
	mu       sync.RWMutex
	byID     map[string]*Connection        // connection_id -> Connection
	byPlayer map[chat.PlayerID]*Connection // player_id -> Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:     make(map[string]*Connection),
		byPlayer: make(map[chat.PlayerID]*Connection),
	}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.mu.Unlock()
}

// BindPlayer indexes conn under its bound player. It fails when another
// connection already holds that player.
func (cm *ConnectionManager) BindPlayer(conn *Connection) bool {
	id, ok := conn.Player()
	if !ok {
		return false
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if other, taken := cm.byPlayer[id]; taken && other != conn {
		return false
	}
	cm.byPlayer[id] = conn
	return true
}

// Remove removes a connection by ID and closes the underlying network
// connection. Returns true if the connection was found and removed, false if
// it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		if pid, bound := conn.Player(); bound && cm.byPlayer[pid] == conn {
			delete(cm.byPlayer, pid)
		}
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// ByPlayer returns the connection a player is logged in on.
func (cm *ConnectionManager) ByPlayer(id chat.PlayerID) (*Connection, bool) {
	cm.mu.RLock()
	conn, ok := cm.byPlayer[id]
	cm.mu.RUnlock()
	return conn, ok
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
