package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Push transports.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// Unread sources.
const (
	UnreadHTTP  = "http"
	UnreadRedis = "redis"
)

// Settings tunes a watch session. Precedence: defaults < settings file <
// CHATPULSE_* environment < command-line flags.
type Settings struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Transport         string        `mapstructure:"transport"`
	UnreadSource      string        `mapstructure:"unread_source"`
	PingTimeout       time.Duration `mapstructure:"ping_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	FuzzySearch       bool          `mapstructure:"fuzzy_search"`
	DirectoryTTL      time.Duration `mapstructure:"directory_ttl"`

	Reconnect ReconnectSettings `mapstructure:"reconnect"`
	NATS      NATSSettings      `mapstructure:"nats"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Log       LogSettings       `mapstructure:"log"`
}

// ReconnectSettings bounds push reconnect backoff.
type ReconnectSettings struct {
	MinBackoff time.Duration `mapstructure:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

type NATSSettings struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogSettings struct {
	Format string `mapstructure:"format"` // text or json
}

// DefaultSettings mirrors the web client: a 10 second unread poll over
// HTTP with WebSocket push.
func DefaultSettings() Settings {
	return Settings{
		PollInterval:      10 * time.Second,
		Transport:         TransportWebSocket,
		UnreadSource:      UnreadHTTP,
		PingTimeout:       20 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		DirectoryTTL:      5 * time.Minute,
		Reconnect: ReconnectSettings{
			MinBackoff: time.Second,
			MaxBackoff: 30 * time.Second,
		},
		NATS: NATSSettings{
			URL:           "nats://127.0.0.1:4222",
			MaxReconnects: 60,
			ReconnectWait: 2 * time.Second,
		},
		Redis: RedisSettings{Addr: "127.0.0.1:6379"},
		Log:   LogSettings{Format: "text"},
	}
}

// Validate rejects settings a session cannot run with.
func (s Settings) Validate() error {
	var errs []error
	if s.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("poll_interval must be at least 1s, got %s", s.PollInterval))
	}
	switch s.Transport {
	case TransportWebSocket, TransportNATS:
	default:
		errs = append(errs, fmt.Errorf("transport must be %s or %s, got %q", TransportWebSocket, TransportNATS, s.Transport))
	}
	switch s.UnreadSource {
	case UnreadHTTP, UnreadRedis:
	default:
		errs = append(errs, fmt.Errorf("unread_source must be %s or %s, got %q", UnreadHTTP, UnreadRedis, s.UnreadSource))
	}
	if s.Reconnect.MinBackoff <= 0 || s.Reconnect.MaxBackoff < s.Reconnect.MinBackoff {
		errs = append(errs, fmt.Errorf("reconnect backoff must satisfy 0 < min_backoff <= max_backoff"))
	}
	if s.Log.Format != "text" && s.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", s.Log.Format))
	}
	return errors.Join(errs...)
}

var settingKeys = []string{
	"poll_interval", "transport", "unread_source", "ping_timeout",
	"heartbeat_interval", "fuzzy_search", "directory_ttl",
	"reconnect.min_backoff", "reconnect.max_backoff",
	"nats.url", "nats.max_reconnects", "nats.reconnect_wait",
	"redis.addr", "redis.password", "redis.db",
	"log.format",
}

// LoadSettings reads settings from path, or from settings.yaml in Dir()
// when path is empty. A missing default file is not an error; a missing
// explicit file is.
func LoadSettings(path string) (Settings, error) {
	def := DefaultSettings()
	v := viper.New()
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("transport", def.Transport)
	v.SetDefault("unread_source", def.UnreadSource)
	v.SetDefault("ping_timeout", def.PingTimeout)
	v.SetDefault("heartbeat_interval", def.HeartbeatInterval)
	v.SetDefault("fuzzy_search", def.FuzzySearch)
	v.SetDefault("directory_ttl", def.DirectoryTTL)
	v.SetDefault("reconnect.min_backoff", def.Reconnect.MinBackoff)
	v.SetDefault("reconnect.max_backoff", def.Reconnect.MaxBackoff)
	v.SetDefault("nats.url", def.NATS.URL)
	v.SetDefault("nats.max_reconnects", def.NATS.MaxReconnects)
	v.SetDefault("nats.reconnect_wait", def.NATS.ReconnectWait)
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.password", def.Redis.Password)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix("CHATPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range settingKeys {
		if err := v.BindEnv(key); err != nil {
			return Settings{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("failed to load settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
	s.UnreadSource = strings.ToLower(strings.TrimSpace(s.UnreadSource))
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}
