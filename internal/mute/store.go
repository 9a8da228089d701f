// Package mute keeps chat mute timers in Redis. A mute is a key with a TTL:
//
//	Key:   mute:<player id>
//	Value: <reason>
//	TTL:   remaining mute time
package mute

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/realmchat/chat-engine/internal/chat"
)

// MutePrefix is the Redis key prefix for mute records.
const MutePrefix = "mute:"

// ErrInvalidDuration is returned for a mute of zero or negative length.
var ErrInvalidDuration = errors.New("mute: duration must be positive")

// Record is an active mute.
type Record struct {
	Until  time.Time
	Reason string
}

// Store manages mute records in Redis.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// NewStore creates a mute store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

func key(id chat.PlayerID) string {
	return MutePrefix + strconv.FormatUint(uint64(id), 10)
}

// Mute silences id for d. A second mute replaces the first.
func (s *Store) Mute(ctx context.Context, id chat.PlayerID, d time.Duration, reason string) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	if err := s.client.Set(ctx, key(id), reason, d).Err(); err != nil {
		return time.Time{}, fmt.Errorf("mute: set %d: %w", id, err)
	}
	return s.now().Add(d), nil
}

// Unmute lifts a mute immediately. Unmuting a player who is not muted is
// not an error.
func (s *Store) Unmute(ctx context.Context, id chat.PlayerID) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("mute: del %d: %w", id, err)
	}
	return nil
}

// Lookup returns the active mute of id. Redis errors are returned so
// callers can fail open.
func (s *Store) Lookup(ctx context.Context, id chat.PlayerID) (Record, bool, error) {
	k := key(id)

	reason, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("mute: get %d: %w", id, err)
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("mute: pttl %d: %w", id, err)
	}
	// -2: expired between the two calls. -1: no TTL, which Mute never writes.
	if ttl <= 0 {
		return Record{}, false, nil
	}
	return Record{Until: s.now().Add(ttl), Reason: reason}, true, nil
}

// LookupExpiry returns when the mute of id ends, or the zero time.
func (s *Store) LookupExpiry(ctx context.Context, id chat.PlayerID) (time.Time, error) {
	rec, _, err := s.Lookup(ctx, id)
	return rec.Until, err
}
