// Package ratelimit keeps fixed-window counters in Redis. Websocket upgrades
// are counted per remote IP and accepted chat lines per player; a player who
// overruns the chat quota is muted.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/chat"
)

// Key prefixes of the counters.
const (
	ConnectKey = "rl:conn:"
	FloodKey   = "rl:chat:"
)

// Rule is a fixed-window quota: at most Limit hits per Window for each
// identifier under the Key prefix. A rule with a non-positive Limit or a
// Window under a millisecond never limits.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// RuleConnect allows 5 websocket upgrades per minute per IP.
var RuleConnect = Rule{Key: ConnectKey, Limit: 5, Window: time.Minute}

// FloodRule is the per-player chat quota of a flood policy.
func FloodRule(p FloodPolicy) Rule {
	return Rule{Key: FloodKey, Limit: p.Count, Window: p.Delay}
}

// PlayerIdentifier is the counter identifier of a player.
func PlayerIdentifier(id chat.PlayerID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (r Rule) disabled() bool {
	return r.Limit <= 0 || r.Window < time.Millisecond
}

// The counter and its expiry are set in one step so a key never outlives its
// window.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Hit is the state of a counter after one increment.
type Hit struct {
	Count   int
	Allowed bool
	ResetIn time.Duration
}

// First reports whether this hit is the one that crossed the limit.
func (h Hit) First(rule Rule) bool {
	return !h.Allowed && h.Count == rule.Limit+1
}

// Limiter counts hits in Redis. Redis errors are returned together with an
// allowed Hit, so callers fail open.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Hit counts one hit for identifier under rule.
func (l *Limiter) Hit(ctx context.Context, identifier string, rule Rule) (Hit, error) {
	if rule.disabled() {
		return Hit{Allowed: true}, nil
	}
	key := rule.Key + identifier

	res, err := hitScript.Run(ctx, l.client, []string{key}, rule.Window.Milliseconds()).Int64Slice()
	if err == nil && len(res) != 2 {
		err = fmt.Errorf("unexpected reply %v", res)
	}
	if err != nil {
		log.Warn().Str("component", "ratelimit").Str("key", key).Err(err).Msg("counter update failed, failing open")
		return Hit{Allowed: true}, fmt.Errorf("ratelimit: hit %s: %w", key, err)
	}

	h := Hit{Count: int(res[0]), ResetIn: time.Duration(res[1]) * time.Millisecond}
	h.Allowed = h.Count <= rule.Limit
	return h, nil
}

// Allow counts one hit and reports whether identifier is still within rule.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	h, err := l.Hit(ctx, identifier, rule)
	return h.Allowed, err
}

// Remaining returns the hits identifier has left in the current window. A
// counter that does not exist yet has the full limit left.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	if rule.disabled() {
		return rule.Limit, nil
	}
	key := rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		return rule.Limit, fmt.Errorf("ratelimit: remaining %s: %w", key, err)
	}
	return max(rule.Limit-count, 0), nil
}
