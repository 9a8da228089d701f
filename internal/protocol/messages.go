// Package protocol defines the WebSocket message types and structures used for
// communication between the game client and a chat node. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/roster"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeLogin       = "login"
	TypeChat        = "chat"
	TypeEmote       = "emote"
	TypeTextEmote   = "text_emote"
	TypeChatIgnored = "chat_ignored"
	TypeState       = "state"
	TypePing        = "ping"
)

// Server -> Client message types. TypeEmote and TypeTextEmote are shared
// with the client direction.
const (
	TypeLoggedIn = "logged_in"
	TypeMessage  = "message"
	TypeNotice   = "notice"
	TypeKicked   = "kicked"
	TypeError    = "error"
	TypePong     = "pong"
)

// ---------------------------------------------------------------------------
// Envelope is decoded first to read the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// LoginMsg brings a character online on this connection. It must be the
// first message of a session.
type LoginMsg struct {
	Type     string          `json:"type"`
	Profile  roster.Profile  `json:"profile"`
	Position roster.Position `json:"position"`
	Locale   string          `json:"locale,omitempty"`
}

// ChatMsg is one chat event. Target is read for whispers and Channel for
// channel messages.
type ChatMsg struct {
	Type     string        `json:"type"`
	Category chat.Category `json:"category"`
	Language chat.Language `json:"language"`
	Body     string        `json:"body"`
	Target   string        `json:"target,omitempty"`
	Channel  string        `json:"channel,omitempty"`
}

// Event converts the message into a dispatch event.
func (m ChatMsg) Event() chat.Event {
	return chat.Event{
		Category: m.Category,
		Language: m.Language,
		Body:     m.Body,
		Target:   m.Target,
		Channel:  m.Channel,
	}
}

// EmoteMsg plays an animation emote.
type EmoteMsg struct {
	Type  string `json:"type"`
	Emote uint32 `json:"emote"`
}

// TextEmoteMsg performs a text emote, optionally at a target unit.
type TextEmoteMsg struct {
	Type      string `json:"type"`
	TextEmote uint32 `json:"text_emote"`
	EmoteNum  uint32 `json:"emote_num"`
	Target    uint64 `json:"target,omitempty"`
}

// ChatIgnoredMsg reports that the client has ignored a player's message.
type ChatIgnoredMsg struct {
	Type   string        `json:"type"`
	Player chat.PlayerID `json:"player"`
}

// StateMsg updates the character's world state.
type StateMsg struct {
	Type  string       `json:"type"`
	State roster.State `json:"state"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// LoggedInMsg confirms a login and carries the connection id.
type LoggedInMsg struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	Player    chat.PlayerID `json:"player"`
	Name      string        `json:"name"`
}

// ServerChatMsg is a delivered chat message.
type ServerChatMsg struct {
	Type string `json:"type"`
	chat.Message
}

// NoticeMsg is a plain server notice.
type NoticeMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// KickedMsg is the last message before the server closes the connection.
type KickedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeLogin:
		var m LoginMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChat:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeEmote:
		var m EmoteMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTextEmote:
		var m TextEmoteMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatIgnored:
		var m ChatIgnoredMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeState:
		var m StateMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key, replacing
// whatever the payload carried there.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	// UseNumber keeps 64-bit player ids exact through the map.
	var m map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
