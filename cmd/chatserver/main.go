package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/realmchat/chat-engine/internal/addon"
	"github.com/realmchat/chat-engine/internal/audience"
	"github.com/realmchat/chat-engine/internal/chat"
	"github.com/realmchat/chat-engine/internal/config"
	"github.com/realmchat/chat-engine/internal/dispatch"
	"github.com/realmchat/chat-engine/internal/emote"
	"github.com/realmchat/chat-engine/internal/gamedata"
	langgate "github.com/realmchat/chat-engine/internal/language"
	"github.com/realmchat/chat-engine/internal/lobby"
	"github.com/realmchat/chat-engine/internal/messaging"
	"github.com/realmchat/chat-engine/internal/metrics"
	"github.com/realmchat/chat-engine/internal/moderation"
	"github.com/realmchat/chat-engine/internal/mute"
	"github.com/realmchat/chat-engine/internal/node"
	"github.com/realmchat/chat-engine/internal/notice"
	"github.com/realmchat/chat-engine/internal/perk"
	"github.com/realmchat/chat-engine/internal/ratelimit"
	"github.com/realmchat/chat-engine/internal/roster"
	"github.com/realmchat/chat-engine/internal/speech"
	"github.com/realmchat/chat-engine/internal/ws"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.ServerName == "" {
		cfg.ServerName, _ = os.Hostname()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "chat-1"
	}

	tables, err := loadTables(cfg.GameDataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game data")
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to Redis")
	}
	cancel()

	// --- NATS ---
	var bus *messaging.NATSClient
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "realmchat-" + cfg.ServerName
		bus, err = messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
	} else {
		log.Info().Msg("NATS_URL not set, running as a single node")
	}

	// --- Perks ---
	var perks addon.Perks = perk.NewMemory()
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := perk.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
		}
		if err := perk.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate perk schema")
		}
		defer db.Close()
		perks = perk.NewStore(db)
	}

	// --- World ---
	mutes := mute.NewStore(rdb)
	world := roster.New(mutes)
	world.SetCreatureScript(func(creature uint64, from chat.Player, textEmote uint32) {
		log.Debug().Str("component", "creature").Uint64("creature", creature).
			Str("from", from.Name()).Uint32("text_emote", textEmote).Msg("emote received")
	})

	catalog := notice.NewCatalog()
	var nodeBus node.Bus
	if bus != nil {
		nodeBus = bus
	}
	n := node.New(node.Config{Roster: world, Bus: nodeBus, Catalog: catalog})

	// --- Pipeline ---
	limiter := ratelimit.NewLimiter(rdb)
	speechGate := speech.NewGate(ratelimit.NewFloodGuard(limiter, world, cfg.Chat.FloodPolicy()))

	resolver := audience.NewResolver(world, world, n, cfg.Chat.AudienceOptions())
	lobbies := lobby.NewRedisStore(rdb)
	if cfg.Chat.AddonChannel {
		resolver.SetAddonHandler(addon.NewMux(lobbies, perks, n, addon.NewSender(n)))
	}
	n.OnLogout(func(ctx context.Context, id chat.PlayerID) {
		if err := lobbies.Leave(ctx, lobby.KindHungerGames, id); err != nil && !errors.Is(err, lobby.ErrNotFound) {
			log.Warn().Str("component", "lobby").Uint64("player", uint64(id)).Err(err).Msg("leave on logout failed")
		}
	})

	commands := dispatch.NewCommands()
	registerCommands(commands, world, n)

	pipeline := dispatch.New(dispatch.Config{
		Languages: langgate.NewGate(tables, cfg.Chat.LanguageOptions()),
		Speech:    speechGate,
		Filter:    moderation.NewFilter(cfg.Chat.FilterPolicy()),
		Resolver:  resolver,
		Emotes:    emote.NewBroadcaster(world, tables, speechGate, n, cfg.Chat.EmoteOptions()),
		Commands:  commands,
		Sink:      n,
		Notifier:  n,
		Kicker:    n,
		Catalog:   catalog,
	})
	n.SetPipeline(pipeline)

	// --- Session layer ---
	serverConfig := ws.DefaultServerConfig()
	serverConfig.ListenAddr = cfg.ListenAddr
	serverConfig.MaxConnections = cfg.MaxConnections
	serverConfig.WriteTimeout = cfg.WriteTimeout

	messages := ws.NewMessageDispatcher()
	n.Register(messages)
	server := ws.NewServer(serverConfig, limiter, messages.Dispatch)
	server.SetOnDisconnect(n.Disconnect)
	n.SetTransport(server)

	if bus != nil {
		if err := bus.SubscribeMutes(func(u messaging.MuteUpdate) {
			world.ApplyMute(u.Player, u.Until)
		}); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to mute updates")
		}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	log.Info().
		Str("listen_addr", cfg.ListenAddr).
		Str("metrics_addr", cfg.MetricsAddr).
		Str("redis_addr", cfg.RedisAddr).
		Str("nats_url", cfg.NATSURL).
		Bool("postgres", cfg.DatabaseURL != "").
		Str("server_name", cfg.ServerName).
		Msg("chat node starting")

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
		if bus != nil {
			bus.Close()
		}
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("redis close error")
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	<-stopped
	log.Info().Msg("chat node stopped")
}

func loadTables(path string) (*gamedata.Tables, error) {
	if path == "" {
		return gamedata.Default()
	}
	return gamedata.LoadFile(path)
}

// registerCommands installs the game-master chat commands.
func registerCommands(c *dispatch.Commands, world *roster.Roster, notifier dispatch.Notifier) {
	target := func(name string) (chat.Player, bool) {
		normalized, ok := audience.NormalizeName(name)
		if !ok {
			return nil, false
		}
		return world.PlayerByName(normalized)
	}

	// .mute <name> <minutes> [reason]
	c.RegisterGM("mute", func(ctx context.Context, sender chat.Player, args string) error {
		fields := strings.Fields(args)
		if len(fields) < 2 {
			return errors.New("usage: .mute <name> <minutes> [reason]")
		}
		p, ok := target(fields[0])
		if !ok {
			notifier.Notify(sender.ID(), notice.PlayerNotFound, fields[0])
			return nil
		}
		minutes, err := strconv.Atoi(fields[1])
		if err != nil || minutes <= 0 {
			return errors.New("mute: minutes must be a positive integer")
		}
		reason := strings.Join(fields[2:], " ")
		return world.Mute(ctx, p.ID(), time.Duration(minutes)*time.Minute, reason)
	})

	// .unmute <name>
	c.RegisterGM("unmute", func(ctx context.Context, sender chat.Player, args string) error {
		p, ok := target(strings.TrimSpace(args))
		if !ok {
			notifier.Notify(sender.ID(), notice.PlayerNotFound, strings.TrimSpace(args))
			return nil
		}
		return world.Unmute(ctx, p.ID())
	})
}
