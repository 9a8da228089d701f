// Package config loads node configuration from the environment, with flag
// overrides for the listen addresses and data paths.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/realmchat/chat-engine/internal/audience"
	"github.com/realmchat/chat-engine/internal/emote"
	langgate "github.com/realmchat/chat-engine/internal/language"
	"github.com/realmchat/chat-engine/internal/moderation"
	"github.com/realmchat/chat-engine/internal/ratelimit"
)

// Config holds chat node configuration.
type Config struct {
	ListenAddr     string        `env:"LISTEN_ADDR"     envDefault:":8080"`
	MetricsAddr    string        `env:"METRICS_ADDR"    envDefault:":9090"`
	RedisAddr      string        `env:"REDIS_ADDR"      envDefault:"localhost:6379"`
	NATSURL        string        `env:"NATS_URL"` // empty runs a single node
	DatabaseURL    string        `env:"DATABASE_URL"`
	ServerName     string        `env:"SERVER_NAME"`
	GameDataPath   string        `env:"CHAT_GAMEDATA"`
	MaxConnections int           `env:"MAX_CONNECTIONS" envDefault:"100000"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT"   envDefault:"10s"`
	Debug          bool          `env:"CHAT_DEBUG"`

	Chat Chat
}

// Chat holds the administrative chat switches and thresholds. A zero level
// requirement disables that gate.
type Chat struct {
	AddonChannel          bool          `env:"CHAT_ADDON_CHANNEL"           envDefault:"true"`
	CrossFactionGroup     bool          `env:"CHAT_CROSS_FACTION_GROUP"`
	CrossFactionGuild     bool          `env:"CHAT_CROSS_FACTION_GUILD"`
	FakeMessagePreventing bool          `env:"CHAT_FAKE_MESSAGE_PREVENTING"`
	StrictLinkChecking    int           `env:"CHAT_STRICT_LINK_CHECKING"`
	StrictLinkKick        bool          `env:"CHAT_STRICT_LINK_KICK"`
	SayLevelReq           int           `env:"CHAT_SAY_LEVEL_REQ"`
	WhisperLevelReq       int           `env:"CHAT_WHISPER_LEVEL_REQ"`
	ChannelLevelReq       int           `env:"CHAT_CHANNEL_LEVEL_REQ"`
	ListenRangeSay        float64       `env:"CHAT_LISTEN_RANGE_SAY"        envDefault:"25"`
	ListenRangeYell       float64       `env:"CHAT_LISTEN_RANGE_YELL"       envDefault:"300"`
	ListenRangeTextEmote  float64       `env:"CHAT_LISTEN_RANGE_TEXTEMOTE"  envDefault:"25"`
	VisibilityRange       float64       `env:"CHAT_VISIBILITY_RANGE"        envDefault:"100"`
	FloodMessageCount     int           `env:"CHAT_FLOOD_MESSAGE_COUNT"     envDefault:"10"`
	FloodMessageDelay     time.Duration `env:"CHAT_FLOOD_MESSAGE_DELAY"     envDefault:"1s"`
	FloodMuteTime         time.Duration `env:"CHAT_FLOOD_MUTE_TIME"         envDefault:"10s"`
}

// Parse loads the environment into a Config and then applies flags from args.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "websocket listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics listen address, empty to disable")
	fs.StringVar(&cfg.GameDataPath, "gamedata", cfg.GameDataPath, "language and text emote TOML tables, empty for the built-in set")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can honour.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("max connections must be positive, got %d", c.MaxConnections))
	}
	if c.Chat.StrictLinkChecking < 0 {
		errs = append(errs, fmt.Errorf("strict link checking must be >= 0, got %d", c.Chat.StrictLinkChecking))
	}
	for name, r := range map[string]float64{
		"say":        c.Chat.ListenRangeSay,
		"yell":       c.Chat.ListenRangeYell,
		"text emote": c.Chat.ListenRangeTextEmote,
		"visibility": c.Chat.VisibilityRange,
	} {
		if r < 0 {
			errs = append(errs, fmt.Errorf("%s range must be >= 0, got %g", name, r))
		}
	}
	if c.Chat.FloodMessageCount > 0 && c.Chat.FloodMessageDelay <= 0 {
		errs = append(errs, errors.New("flood message delay must be positive when flood control is on"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LanguageOptions returns the language gate switches.
func (c Chat) LanguageOptions() langgate.Options {
	return langgate.Options{
		AddonChannel:      c.AddonChannel,
		CrossFactionGroup: c.CrossFactionGroup,
		CrossFactionGuild: c.CrossFactionGuild,
	}
}

// FilterPolicy returns the content filter policy.
func (c Chat) FilterPolicy() moderation.Policy {
	return moderation.Policy{
		StripInvisible:  c.FakeMessagePreventing,
		LinkSeverity:    c.StrictLinkChecking,
		KickOnViolation: c.StrictLinkKick,
	}
}

// AudienceOptions returns the resolver thresholds. Emote chat shares the
// text emote range.
func (c Chat) AudienceOptions() audience.Options {
	return audience.Options{
		SayLevel:     c.SayLevelReq,
		WhisperLevel: c.WhisperLevelReq,
		ChannelLevel: c.ChannelLevelReq,
		SayRange:     c.ListenRangeSay,
		YellRange:    c.ListenRangeYell,
		EmoteRange:   c.ListenRangeTextEmote,
	}
}

// EmoteOptions returns the emote broadcast radii.
func (c Chat) EmoteOptions() emote.Options {
	return emote.Options{
		AnimationRange: c.VisibilityRange,
		TextRange:      c.ListenRangeTextEmote,
	}
}

// FloodPolicy returns the flood control policy.
func (c Chat) FloodPolicy() ratelimit.FloodPolicy {
	return ratelimit.FloodPolicy{
		Count:    c.FloodMessageCount,
		Delay:    c.FloodMessageDelay,
		MuteTime: c.FloodMuteTime,
	}
}
