package audience

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/chat/chattest"
	"github.com/realmchat/chat-engine/internal/notice"
)

var testOpts = Options{
	SayLevel:     5,
	WhisperLevel: 10,
	ChannelLevel: 15,
	SayRange:     25,
	YellRange:    300,
	EmoteRange:   30,
}

func newTestResolver(w *fakeWorld, s *fakeSocial) (*Resolver, *chattest.Recorder) {
	if w == nil {
		w = &fakeWorld{}
	}
	if s == nil {
		s = &fakeSocial{}
	}
	rec := &chattest.Recorder{}
	return NewResolver(w, s, rec, testOpts), rec
}

func deliver(r *Resolver, category chat.Category, sender chat.Player, body string) error {
	return r.Deliver(context.Background(), chat.Event{Category: category, Body: body}, chat.LanguageCommon, sender, body)
}

func TestProximity(t *testing.T) {
	tests := []struct {
		name     string
		category chat.Category
		sender   *chattest.Player
		radius   float64
		err      error
	}{
		{"say", chat.CategorySay, &chattest.Player{PlayerID: 1, Lvl: 5}, 25, nil},
		{"yell", chat.CategoryYell, &chattest.Player{PlayerID: 1, Lvl: 60}, 300, nil},
		{"emote ignores level", chat.CategoryEmote, &chattest.Player{PlayerID: 1, Lvl: 1}, 30, nil},
		{"say low level", chat.CategorySay, &chattest.Player{PlayerID: 1, Lvl: 4}, 0, ErrLevelTooLow},
		{"yell low level", chat.CategoryYell, &chattest.Player{PlayerID: 1, Lvl: 1}, 0, ErrLevelTooLow},
		{"dead say", chat.CategorySay, &chattest.Player{PlayerID: 1, Lvl: 60, Dead: true}, 0, ErrDead},
		{"dead emote", chat.CategoryEmote, &chattest.Player{PlayerID: 1, Dead: true}, 0, ErrDead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWorld{near: []chat.PlayerID{1, 2, 3}}
			r, rec := newTestResolver(w, nil)

			err := deliver(r, tt.category, tt.sender, "hi")
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if tt.err != nil {
				if len(rec.Deliveries) != 0 {
					t.Errorf("rejected message delivered %d times", len(rec.Deliveries))
				}
				return
			}
			if w.radius != tt.radius {
				t.Errorf("radius = %v, want %v", w.radius, tt.radius)
			}
			if got := rec.Recipients(); !reflect.DeepEqual(got, []chat.PlayerID{1, 2, 3}) {
				t.Errorf("recipients = %v", got)
			}
		})
	}
}

func TestSayLevelNotice(t *testing.T) {
	r, _ := newTestResolver(nil, nil)
	err := deliver(r, chat.CategorySay, &chattest.Player{PlayerID: 1, Lvl: 1}, "hi")
	rej, ok := chat.AsRejection(err)
	if !ok || rej.Notice != notice.SayLevelReq || rej.Kind != chat.KindPermissionDenied {
		t.Fatalf("rejection = %+v", rej)
	}
	if len(rej.Args) != 1 || rej.Args[0] != 5 {
		t.Errorf("args = %v, want [5]", rej.Args)
	}
}

func TestParty(t *testing.T) {
	sender := &chattest.Player{PlayerID: 1}
	party := &fakeGroup{leader: 2, members: []chat.PlayerID{1, 2, 3}}
	bg := &fakeGroup{bg: true, leader: 1, members: []chat.PlayerID{1, 7, 8}}
	raid := &fakeGroup{raid: true, leader: 1, members: []chat.PlayerID{1, 2, 3, 4, 5, 6},
		subgroups: map[chat.PlayerID][]chat.PlayerID{1: {1, 4, 5}}}

	tests := []struct {
		name     string
		social   *fakeSocial
		category chat.Category
		want     []chat.PlayerID
		err      error
	}{
		{"plain party excludes sender", &fakeSocial{current: party}, chat.CategoryParty, []chat.PlayerID{2, 3}, nil},
		{"original preferred over bg", &fakeSocial{original: party, current: bg}, chat.CategoryParty, []chat.PlayerID{2, 3}, nil},
		{"bg only is no audience", &fakeSocial{current: bg}, chat.CategoryParty, nil, ErrNoAudience},
		{"no group", &fakeSocial{}, chat.CategoryParty, nil, ErrNoAudience},
		{"raid subgroup", &fakeSocial{current: raid}, chat.CategoryParty, []chat.PlayerID{4, 5}, nil},
		{"party leader ok", &fakeSocial{current: raid}, chat.CategoryPartyLeader, []chat.PlayerID{4, 5}, nil},
		{"party leader not leader", &fakeSocial{current: party}, chat.CategoryPartyLeader, nil, ErrNotLeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newTestResolver(nil, tt.social)
			err := deliver(r, tt.category, sender, "inc")
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if tt.err != nil {
				if k := chat.KindOf(err); k != chat.KindSilentNoop {
					t.Errorf("kind = %s, want silent", k)
				}
				return
			}
			if got := rec.Recipients(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("recipients = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRaidAndBattleground(t *testing.T) {
	sender := &chattest.Player{PlayerID: 1}
	raidLed := &fakeGroup{raid: true, leader: 1, members: []chat.PlayerID{1, 2, 3}}
	raidOther := &fakeGroup{raid: true, leader: 2, assistants: map[chat.PlayerID]bool{1: true}, members: []chat.PlayerID{1, 2, 3}}
	raidPlain := &fakeGroup{raid: true, leader: 2, members: []chat.PlayerID{1, 2, 3}}
	party := &fakeGroup{leader: 1, members: []chat.PlayerID{1, 2}}
	bgLed := &fakeGroup{bg: true, raid: true, leader: 1, members: []chat.PlayerID{1, 8, 9}}
	bgOther := &fakeGroup{bg: true, raid: true, leader: 8, members: []chat.PlayerID{1, 8, 9}}

	tests := []struct {
		name     string
		social   *fakeSocial
		category chat.Category
		want     []chat.PlayerID
		err      error
	}{
		{"raid", &fakeSocial{current: raidPlain}, chat.CategoryRaid, []chat.PlayerID{1, 2, 3}, nil},
		{"raid from party", &fakeSocial{current: party}, chat.CategoryRaid, nil, ErrNoAudience},
		{"raid in bg", &fakeSocial{current: bgLed}, chat.CategoryRaid, nil, ErrNoAudience},
		{"raid original while in bg", &fakeSocial{original: raidPlain, current: bgLed}, chat.CategoryRaid, []chat.PlayerID{1, 2, 3}, nil},
		{"raid leader", &fakeSocial{current: raidLed}, chat.CategoryRaidLeader, []chat.PlayerID{1, 2, 3}, nil},
		{"raid leader not leader", &fakeSocial{current: raidPlain}, chat.CategoryRaidLeader, nil, ErrNotLeader},
		{"warning by leader", &fakeSocial{current: raidLed}, chat.CategoryRaidWarning, []chat.PlayerID{1, 2, 3}, nil},
		{"warning by assistant", &fakeSocial{current: raidOther}, chat.CategoryRaidWarning, []chat.PlayerID{1, 2, 3}, nil},
		{"warning by member", &fakeSocial{current: raidPlain}, chat.CategoryRaidWarning, nil, ErrNotLeader},
		{"warning in bg", &fakeSocial{current: bgLed}, chat.CategoryRaidWarning, nil, ErrNoAudience},
		{"warning in party", &fakeSocial{current: party}, chat.CategoryRaidWarning, nil, ErrNoAudience},
		{"battleground", &fakeSocial{original: raidPlain, current: bgOther}, chat.CategoryBattleground, []chat.PlayerID{1, 8, 9}, nil},
		{"battleground outside bg", &fakeSocial{current: raidPlain}, chat.CategoryBattleground, nil, ErrNoAudience},
		{"bg leader", &fakeSocial{current: bgLed}, chat.CategoryBattlegroundLeader, []chat.PlayerID{1, 8, 9}, nil},
		{"bg leader not leader", &fakeSocial{current: bgOther}, chat.CategoryBattlegroundLeader, nil, ErrNotLeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newTestResolver(nil, tt.social)
			err := deliver(r, tt.category, sender, "go")
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if tt.err == nil {
				if got := rec.Recipients(); !reflect.DeepEqual(got, tt.want) {
					t.Errorf("recipients = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestGuild(t *testing.T) {
	social := &fakeSocial{guilds: map[uint32]*fakeGuild{
		7: {all: []chat.PlayerID{1, 2, 3}, officers: []chat.PlayerID{1, 3}},
	}}

	t.Run("members in universal", func(t *testing.T) {
		r, rec := newTestResolver(nil, social)
		if err := deliver(r, chat.CategoryGuild, &chattest.Player{PlayerID: 1, Guild: 7}, "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := rec.Recipients(); !reflect.DeepEqual(got, []chat.PlayerID{1, 2, 3}) {
			t.Errorf("recipients = %v", got)
		}
		if lang := rec.Deliveries[0].Msg.Language; lang != chat.LanguageUniversal {
			t.Errorf("language = %d, want universal", lang)
		}
	})

	t.Run("officers", func(t *testing.T) {
		r, rec := newTestResolver(nil, social)
		if err := deliver(r, chat.CategoryOfficer, &chattest.Player{PlayerID: 1, Guild: 7}, "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := rec.Recipients(); !reflect.DeepEqual(got, []chat.PlayerID{1, 3}) {
			t.Errorf("recipients = %v", got)
		}
	})

	t.Run("addon keeps language", func(t *testing.T) {
		r, rec := newTestResolver(nil, social)
		ev := chat.Event{Category: chat.CategoryGuild, Body: "X\ty"}
		if err := r.Deliver(context.Background(), ev, chat.LanguageAddon, &chattest.Player{PlayerID: 1, Guild: 7}, ev.Body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lang := rec.Deliveries[0].Msg.Language; lang != chat.LanguageAddon {
			t.Errorf("language = %d, want addon", lang)
		}
	})

	t.Run("no guild", func(t *testing.T) {
		r, _ := newTestResolver(nil, social)
		if err := deliver(r, chat.CategoryGuild, &chattest.Player{PlayerID: 1}, "hello"); !errors.Is(err, ErrNoAudience) {
			t.Errorf("err = %v, want ErrNoAudience", err)
		}
		if err := deliver(r, chat.CategoryGuild, &chattest.Player{PlayerID: 1, Guild: 99}, "hello"); !errors.Is(err, ErrNoAudience) {
			t.Errorf("unknown guild: err = %v, want ErrNoAudience", err)
		}
	})
}

func TestChannel(t *testing.T) {
	social := &fakeSocial{channels: map[string]*fakeChannel{
		"Trade": {name: "Trade", members: []chat.PlayerID{1, 4}},
	}}

	tests := []struct {
		name    string
		sender  *chattest.Player
		channel string
		err     error
	}{
		{"member", &chattest.Player{PlayerID: 1, Lvl: 20}, "Trade", nil},
		{"low level", &chattest.Player{PlayerID: 1, Lvl: 3}, "Trade", ErrLevelTooLow},
		{"low level exempt", &chattest.Player{PlayerID: 1, Lvl: 3,
			Capabilities: map[chat.Capability]bool{chat.CapSkipChannelLevelGate: true}}, "Trade", nil},
		{"missing channel", &chattest.Player{PlayerID: 1, Lvl: 20}, "Nope", ErrNoAudience},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newTestResolver(nil, social)
			ev := chat.Event{Category: chat.CategoryChannel, Channel: tt.channel, Body: "wts"}
			err := r.Deliver(context.Background(), ev, chat.LanguageCommon, tt.sender, ev.Body)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if tt.err == nil && rec.Deliveries[0].Msg.Channel != "Trade" {
				t.Errorf("channel = %q", rec.Deliveries[0].Msg.Channel)
			}
		})
	}
}

func TestObserversRunBeforeDelivery(t *testing.T) {
	w := &fakeWorld{near: []chat.PlayerID{1, 2}}
	r, rec := newTestResolver(w, nil)

	var seen []Kind
	r.Observe(func(_ chat.Player, msg chat.Message, kind Kind) {
		if len(rec.Deliveries) != 0 {
			t.Error("observer ran after delivery")
		}
		seen = append(seen, kind)
	})

	if err := deliver(r, chat.CategorySay, &chattest.Player{PlayerID: 1, Lvl: 10}, "hi"); err != nil {
		t.Fatal(err)
	}
	if err := deliver(r, chat.CategorySay, &chattest.Player{PlayerID: 1, Lvl: 1}, "hi"); err == nil {
		t.Fatal("expected level rejection")
	}
	if !reflect.DeepEqual(seen, []Kind{KindProximity}) {
		t.Errorf("observed %v, want one proximity", seen)
	}
}

func TestUnhandledCategory(t *testing.T) {
	r, _ := newTestResolver(nil, nil)
	err := deliver(r, chat.CategorySystem, &chattest.Player{PlayerID: 1}, "x")
	if chat.KindOf(err) != chat.KindProtocolViolation {
		t.Errorf("kind = %s, want protocol violation", chat.KindOf(err))
	}
}
