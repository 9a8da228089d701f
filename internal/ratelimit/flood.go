package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/metrics"
	"github.com/realmchat/chat-engine/internal/speech"
)

// Muter applies a timed mute to a player.
type Muter interface {
	Mute(ctx context.Context, id chat.PlayerID, d time.Duration, reason string) error
}

// FloodPolicy mutes a player for MuteTime after more than Count messages
// within Delay. A Count of zero or less disables flood control.
type FloodPolicy struct {
	Count    int
	Delay    time.Duration
	MuteTime time.Duration
}

// FloodGuard counts accepted speech and mutes flooding players. Game masters
// are never counted.
type FloodGuard struct {
	limiter *Limiter
	muter   Muter
	policy  FloodPolicy
}

var _ speech.Recorder = (*FloodGuard)(nil)

// NewFloodGuard creates a FloodGuard.
func NewFloodGuard(limiter *Limiter, muter Muter, policy FloodPolicy) *FloodGuard {
	return &FloodGuard{limiter: limiter, muter: muter, policy: policy}
}

// RecordSpeech counts one message from sender. The sender is muted once, by
// the message that crosses the quota; later messages in the same window do
// not extend the mute.
func (g *FloodGuard) RecordSpeech(ctx context.Context, sender chat.Player) {
	if sender.IsGameMaster() {
		return
	}
	rule := FloodRule(g.policy)
	if rule.disabled() {
		return
	}

	hit, err := g.limiter.Hit(ctx, PlayerIdentifier(sender.ID()), rule)
	if err != nil || !hit.First(rule) {
		return
	}

	if err := g.muter.Mute(ctx, sender.ID(), g.policy.MuteTime, "flood"); err != nil {
		log.Error().Str("component", "flood").
			Uint64("player", uint64(sender.ID())).
			Err(err).
			Msg("flood mute failed")
		return
	}
	metrics.FloodMutes.Inc()
	log.Info().Str("component", "flood").
		Uint64("player", uint64(sender.ID())).
		Str("name", sender.Name()).
		Int("count", hit.Count).
		Dur("mute", g.policy.MuteTime).
		Msg("player muted for flooding")
}
