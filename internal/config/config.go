package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix prefixes every environment override, e.g.
// GRIDWAR_SERVER_WEBSOCKET_ADDRESS.
const EnvPrefix = "GRIDWAR"

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Match   MatchConfig   `mapstructure:"match"`
}

// ServerConfig holds the presentation endpoint settings.
type ServerConfig struct {
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	MaxSessions     int             `mapstructure:"max_sessions"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// WebSocketConfig holds the WebSocket listener settings.
type WebSocketConfig struct {
	Address         string   `mapstructure:"address"`
	ReadBufferSize  int      `mapstructure:"read_buffer_size"`
	WriteBufferSize int      `mapstructure:"write_buffer_size"`
	SendQueue       int      `mapstructure:"send_queue"`
	MaxMessageBytes int64    `mapstructure:"max_message_bytes"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RangeConfig is an inclusive stat range.
type RangeConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// MatchConfig controls dealing and per-session bookkeeping.
type MatchConfig struct {
	TokensPerTeam   int         `mapstructure:"tokens_per_team"`
	Health          RangeConfig `mapstructure:"health"`
	Attack          RangeConfig `mapstructure:"attack"`
	Seed            uint64      `mapstructure:"seed"`
	CheckInvariants bool        `mapstructure:"check_invariants"`
	RecordReplay    bool        `mapstructure:"record_replay"`
	ReplayLimit     int         `mapstructure:"replay_limit"`
	MessageLimit    int         `mapstructure:"message_limit"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// boardCells is the number of cells every deal must fill.
const boardCells = 64

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.send_queue", 256)
	v.SetDefault("server.websocket.max_message_bytes", 4096)
	v.SetDefault("server.websocket.allowed_origins", []string{"*"})
	v.SetDefault("server.max_sessions", 100)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("match.tokens_per_team", 32)
	v.SetDefault("match.health.min", 10)
	v.SetDefault("match.health.max", 20)
	v.SetDefault("match.attack.min", 3)
	v.SetDefault("match.attack.max", 8)
	v.SetDefault("match.seed", 0)
	v.SetDefault("match.check_invariants", false)
	v.SetDefault("match.record_replay", true)
	v.SetDefault("match.replay_limit", 512)
	v.SetDefault("match.message_limit", 200)
}

// Load reads the YAML file at path, applies GRIDWAR_ environment
// overrides and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.WebSocket.Address == "" {
		errs = append(errs, errors.New("server.websocket.address is required"))
	}
	if c.Server.WebSocket.SendQueue < 1 {
		errs = append(errs, fmt.Errorf("server.websocket.send_queue must be >= 1, got %d", c.Server.WebSocket.SendQueue))
	}
	if c.Server.WebSocket.MaxMessageBytes < 1 {
		errs = append(errs, fmt.Errorf("server.websocket.max_message_bytes must be >= 1, got %d", c.Server.WebSocket.MaxMessageBytes))
	}
	if c.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions must be >= 0, got %d", c.Server.MaxSessions))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if c.Match.TokensPerTeam*2 != boardCells {
		errs = append(errs, fmt.Errorf("match.tokens_per_team %d does not fill %d cells", c.Match.TokensPerTeam, boardCells))
	}
	errs = append(errs, c.Match.Health.validate("match.health"), c.Match.Attack.validate("match.attack"))
	if c.Match.ReplayLimit < 0 {
		errs = append(errs, fmt.Errorf("match.replay_limit must be >= 0, got %d", c.Match.ReplayLimit))
	}

	if err := multierr.Combine(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (r RangeConfig) validate(key string) error {
	if r.Min < 1 {
		return fmt.Errorf("%s.min must be >= 1, got %d", key, r.Min)
	}
	if r.Max < r.Min {
		return fmt.Errorf("%s.max %d is below min %d", key, r.Max, r.Min)
	}
	return nil
}
