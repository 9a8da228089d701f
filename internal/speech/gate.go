// Package speech decides whether a player may speak right now: mute timers
// and game-master silence. Accepted speech is reported to a flood recorder.
package speech

import (
	"context"
	"errors"
	"time"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/notice"
)

var (
	ErrMuted    = errors.New("sender is muted")
	ErrSilenced = errors.New("sender is under game-master silence")
)

// Recorder is told every time a player speaks outside the auto-reply
// categories. Implementations must not block for long; errors are theirs to
// handle.
type Recorder interface {
	RecordSpeech(ctx context.Context, sender chat.Player)
}

type nopRecorder struct{}

func (nopRecorder) RecordSpeech(context.Context, chat.Player) {}

// Gate checks speech restrictions.
type Gate struct {
	recorder Recorder
	now      func() time.Time
}

// NewGate creates a Gate. A nil recorder disables speech recording.
func NewGate(recorder Recorder) *Gate {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Gate{recorder: recorder, now: time.Now}
}

// Check returns nil when sender may speak ev in lang. Addon traffic is never
// restricted.
func (g *Gate) Check(ctx context.Context, ev chat.Event, lang chat.Language, sender chat.Player) error {
	if lang == chat.LanguageAddon {
		return nil
	}

	now := g.now()
	if expiry := sender.MuteExpiry(); expiry.After(now) {
		return chat.RejectWithNotice(chat.KindRateOrStateGate, ErrMuted,
			notice.WaitBeforeSpeaking, notice.FormatWait(expiry.Sub(now)))
	}
	if sender.IsGMSilenced() && ev.Category != chat.CategoryWhisper {
		return chat.RejectWithNotice(chat.KindPermissionDenied, ErrSilenced, notice.GMSilence, sender.Name())
	}

	if !ev.Category.IsAutoReply() {
		g.recorder.RecordSpeech(ctx, sender)
	}
	return nil
}

// CheckMute applies only the mute timer. Text emotes use it.
func (g *Gate) CheckMute(sender chat.Player) error {
	now := g.now()
	if expiry := sender.MuteExpiry(); expiry.After(now) {
		return chat.RejectWithNotice(chat.KindRateOrStateGate, ErrMuted,
			notice.WaitBeforeSpeaking, notice.FormatWait(expiry.Sub(now)))
	}
	return nil
}
