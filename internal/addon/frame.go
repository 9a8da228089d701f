// Package addon carries the arena addon sub-protocol over chat: inbound
// command dispatch for the lobby menu, and outbound framing of responses
// into fixed-size chunks with a fixed-width decimal header.
package addon

import (
	"errors"
	"fmt"

	"github.com/realmchat/chat-engine/internal/chat"
)

// ChunkSize is the largest payload slice carried by one frame.
const ChunkSize = 240

// HeaderSize is the width of the kind, index and count header.
const HeaderSize = 3 + 2 + 2

// PacketKind tells the client addon how to read a reassembled payload.
type PacketKind uint16

const (
	PacketPlayerList PacketKind = 1
	PacketGameList   PacketKind = 2
)

var (
	ErrTooLarge = errors.New("addon: payload needs more than 99 frames")
	ErrBadKind  = errors.New("addon: packet kind above 999")
)

// Frames splits text into frames of at most ChunkSize payload bytes. Each
// frame is the zero-padded 3-digit kind, 2-digit 1-based index and 2-digit
// count followed by its slice. Empty text yields no frames.
func Frames(text string, kind PacketKind) ([]string, error) {
	if kind > 999 {
		return nil, ErrBadKind
	}
	count := (len(text) + ChunkSize - 1) / ChunkSize
	if count > 99 {
		return nil, ErrTooLarge
	}

	frames := make([]string, 0, count)
	for i := 0; i < count; i++ {
		start := i * ChunkSize
		end := min(start+ChunkSize, len(text))
		frames = append(frames, fmt.Sprintf("%03d%02d%02d%s", kind, i+1, count, text[start:end]))
	}
	return frames, nil
}

// Sender writes framed responses to a player.
type Sender struct {
	sink chat.Sink
}

func NewSender(sink chat.Sink) *Sender {
	return &Sender{sink: sink}
}

// SendFramed delivers every frame of text to recipient, in index order, as
// System messages in the addon language. It returns the number of frames.
func (s *Sender) SendFramed(recipient chat.Player, text string, kind PacketKind) (int, error) {
	frames, err := Frames(text, kind)
	if err != nil {
		return 0, err
	}
	for _, f := range frames {
		msg := chat.NewMessage(chat.CategorySystem, chat.LanguageAddon, recipient, f)
		msg.TargetID = recipient.ID()
		s.sink.Deliver(recipient.ID(), msg)
	}
	return len(frames), nil
}
