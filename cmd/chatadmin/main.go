// Command chatadmin runs maintenance tasks against the chat stores.
//
//	chatadmin migrate
//	chatadmin mute <player-id> <duration> [reason]
//	chatadmin unmute <player-id>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/messaging"
	"github.com/realmchat/chat-engine/internal/mute"
	"github.com/realmchat/chat-engine/internal/perk"
)

type adminConfig struct {
	RedisAddr   string `env:"REDIS_ADDR"   envDefault:"localhost:6379"`
	NATSURL     string `env:"NATS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
}

var errUsage = errors.New("usage: chatadmin migrate | mute <player-id> <duration> [reason] | unmute <player-id>")

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var cfg adminConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := run(ctx, cfg, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("chatadmin failed")
	}
}

func run(ctx context.Context, cfg adminConfig, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "migrate":
		return migrate(ctx, cfg)
	case "mute":
		if len(args) < 3 {
			return errUsage
		}
		id, err := parsePlayer(args[1])
		if err != nil {
			return err
		}
		d, err := time.ParseDuration(args[2])
		if err != nil || d <= 0 {
			return fmt.Errorf("mute: invalid duration %q", args[2])
		}
		return setMute(ctx, cfg, id, d, strings.Join(args[3:], " "))
	case "unmute":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parsePlayer(args[1])
		if err != nil {
			return err
		}
		return setMute(ctx, cfg, id, 0, "")
	default:
		return errUsage
	}
}

func parsePlayer(s string) (chat.PlayerID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid player id %q", s)
	}
	return chat.PlayerID(n), nil
}

func migrate(ctx context.Context, cfg adminConfig) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate: DATABASE_URL is required")
	}
	db, err := perk.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := perk.Migrate(db); err != nil {
		return err
	}
	log.Info().Msg("perk schema up to date")
	return nil
}

// setMute persists the mute and tells running nodes about it. A zero d
// lifts the mute.
func setMute(ctx context.Context, cfg adminConfig, id chat.PlayerID, d time.Duration, reason string) error {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	store := mute.NewStore(rdb)

	var until time.Time
	if d > 0 {
		t, err := store.Mute(ctx, id, d, reason)
		if err != nil {
			return err
		}
		until = t
	} else if err := store.Unmute(ctx, id); err != nil {
		return err
	}

	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "realmchat-admin"
		bus, err := messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, nodes pick the mute up at next login")
		} else {
			defer bus.Close()
			if err := bus.PublishMute(messaging.MuteUpdate{Player: id, Until: until}); err != nil {
				return err
			}
			if err := bus.Flush(); err != nil {
				return err
			}
		}
	}

	log.Info().Uint64("player", uint64(id)).Time("until", until).Str("reason", reason).Msg("mute updated")
	return nil
}
