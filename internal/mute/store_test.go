package mute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/realmchat/chat-engine/internal/chat"
)

// Test ids live far above anything a real roster assigns.
const testBase chat.PlayerID = 9_000_000_000

// newTestStore requires a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, MutePrefix+"9000000000*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStore(client)
}

func TestLookupNotMuted(t *testing.T) {
	store := newTestStore(t)

	_, muted, err := store.Lookup(context.Background(), testBase+1)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if muted {
		t.Error("expected not muted")
	}
}

func TestMuteAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := testBase + 2

	until, err := store.Mute(ctx, id, 30*time.Second, "flood")
	if err != nil {
		t.Fatalf("Mute() error: %v", err)
	}

	rec, muted, err := store.Lookup(ctx, id)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if !muted {
		t.Fatal("expected muted")
	}
	if rec.Reason != "flood" {
		t.Errorf("reason = %q, want flood", rec.Reason)
	}
	if d := until.Sub(rec.Until); d < -time.Second || d > time.Second {
		t.Errorf("until = %v, lookup says %v", until, rec.Until)
	}
}

func TestUnmute(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := testBase + 3

	if _, err := store.Mute(ctx, id, time.Minute, "gm"); err != nil {
		t.Fatalf("Mute() error: %v", err)
	}
	if err := store.Unmute(ctx, id); err != nil {
		t.Fatalf("Unmute() error: %v", err)
	}
	if _, muted, _ := store.Lookup(ctx, id); muted {
		t.Error("still muted after Unmute")
	}
	if err := store.Unmute(ctx, id); err != nil {
		t.Errorf("second Unmute() error: %v", err)
	}
}

func TestMuteExpires(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := testBase + 4

	if _, err := store.Mute(ctx, id, 200*time.Millisecond, "short"); err != nil {
		t.Fatalf("Mute() error: %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	if _, muted, _ := store.Lookup(ctx, id); muted {
		t.Error("mute outlived its TTL")
	}
}

func TestMuteRejectsNonPositive(t *testing.T) {
	store := &Store{now: time.Now}
	if _, err := store.Mute(context.Background(), 1, 0, "x"); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("err = %v, want ErrInvalidDuration", err)
	}
}
