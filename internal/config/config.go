// Package config loads the runtime configuration from an optional YAML file
// and environment variables prefixed with BP_.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/dialog"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/instruction"
	"github.com/lyoneil/Botpress/pkg/persistence/middleware"
	"github.com/lyoneil/Botpress/pkg/sandbox"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BP_"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultMiddlewareTimeout bounds middleware that declare no timeout.
const DefaultMiddlewareTimeout = 2 * time.Second

// DefaultMaxInputSize bounds incoming message text.
const DefaultMaxInputSize = 4096

// Config is the runtime configuration.
type Config struct {
	Server        ServerConfig         `yaml:"server" envPrefix:"SERVER_"`
	Log           LogConfig            `yaml:"log" envPrefix:"LOG_"`
	Dialog        DialogConfig         `yaml:"dialog" envPrefix:"DIALOG_"`
	Middleware    MiddlewareConfig     `yaml:"middleware" envPrefix:"MIDDLEWARE_"`
	Sandbox       sandbox.Config       `yaml:"sandbox" envPrefix:"SANDBOX_"`
	Storage       StorageConfig        `yaml:"storage" envPrefix:"STORAGE_"`
	Redis         RedisConfig          `yaml:"redis" envPrefix:"REDIS_"`
	Realtime      RealtimeConfig       `yaml:"realtime" envPrefix:"REALTIME_"`
	Flows         FlowsConfig          `yaml:"flows" envPrefix:"FLOWS_"`
	ActionServers []ActionServerConfig `yaml:"action_servers" envPrefix:"ACTION_SERVERS_"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
	// AppSecret signs admin realtime tokens. Admin sockets are refused without it.
	AppSecret   string   `yaml:"app_secret" env:"APP_SECRET"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type DialogConfig struct {
	EntryFlow    string `yaml:"entry_flow" env:"ENTRY_FLOW"`
	ErrorFlow    string `yaml:"error_flow" env:"ERROR_FLOW"`
	MaxSteps     int    `yaml:"max_steps" env:"MAX_STEPS"`
	LastMessages int    `yaml:"last_messages" env:"LAST_MESSAGES"`
}

type MiddlewareConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// MaxInputSize bounds the text of incoming messages, in bytes.
	MaxInputSize int `yaml:"max_input_size" env:"MAX_INPUT_SIZE"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is the database connection string, or the file path for bolt.
	DSN    string        `yaml:"dsn" env:"DSN"`
	TTL    time.Duration `yaml:"ttl" env:"TTL"`
	Prefix string        `yaml:"prefix" env:"PREFIX"`
	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string        `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	FallbackKeys  []string      `yaml:"fallback_keys" env:"FALLBACK_KEYS"`
	PIIPatterns   []string      `yaml:"pii_patterns" env:"PII_PATTERNS"`
	LockTTL       time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

type RealtimeConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Redis shares socket rooms and events between replicas.
	Redis      bool `yaml:"redis" env:"REDIS"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

type FlowsConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
	// SingleBot reads the flows of Dir directly instead of <Dir>/<botId>/flows.
	SingleBot bool `yaml:"single_bot" env:"SINGLE_BOT"`
}

type ActionServerConfig struct {
	ID      string `yaml:"id" env:"ID"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":3000"},
		Log:    LogConfig{Level: "info", Format: logging.FormatText},
		Dialog: DialogConfig{
			EntryFlow:    dialog.DefaultEntryFlow,
			ErrorFlow:    instruction.DefaultErrorFlow,
			MaxSteps:     dialog.DefaultMaxSteps,
			LastMessages: domain.DefaultLastMessagesLimit,
		},
		Middleware: MiddlewareConfig{Timeout: DefaultMiddlewareTimeout, MaxInputSize: DefaultMaxInputSize},
		Sandbox:    sandbox.Config{Timeout: sandbox.DefaultTimeout},
		Storage:    StorageConfig{Driver: DriverMemory},
		Redis:      RedisConfig{Addr: "localhost:6379"},
		Flows:      FlowsConfig{Dir: "bots"},
	}
}

// Load reads the YAML file at path, when given, over the defaults, then
// applies the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// BP_ACTION_SERVERS_<n>_ID and _BASE_URL replace the file list when set.
	servers := cfg.ActionServers
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if len(cfg.ActionServers) == 0 {
		cfg.ActionServers = servers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := c.Log.ParseLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatText, logging.FormatJSON, logging.FormatPretty:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Dialog.MaxSteps <= 0 {
		errs = append(errs, errors.New("dialog.max_steps must be positive"))
	}
	if c.Dialog.LastMessages < 0 {
		errs = append(errs, errors.New("dialog.last_messages cannot be negative"))
	}
	if c.Middleware.MaxInputSize < 0 {
		errs = append(errs, errors.New("middleware.max_input_size cannot be negative"))
	}
	if c.Middleware.Timeout < 0 || c.Sandbox.Timeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required by the redis storage driver"))
		}
	case DriverBolt, DriverPostgres, DriverSQLite:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required by the %s storage driver", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.EncryptionKey != "" {
		if _, err := c.Storage.Keys(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	} else if len(c.Storage.FallbackKeys) > 0 {
		errs = append(errs, errors.New("storage.fallback_keys need storage.encryption_key"))
	}

	if c.Realtime.Redis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by the realtime redis backplane"))
	}
	if c.Flows.Dir == "" {
		errs = append(errs, errors.New("flows.dir is required"))
	}

	seen := make(map[string]bool, len(c.ActionServers))
	for i, s := range c.ActionServers {
		if s.ID == "" || s.BaseURL == "" {
			errs = append(errs, fmt.Errorf("action_servers[%d]: id and base_url are required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("action_servers[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true
	}

	return errors.Join(errs...)
}

// ParseLevel returns the configured slog level.
func (l LogConfig) ParseLevel() (slog.Level, error) {
	return logging.ParseLevel(l.Level)
}

// Keys decodes the encryption configuration.
func (s StorageConfig) Keys() (middleware.EncryptionConfig, error) {
	active, err := middleware.ParseKey(s.EncryptionKey)
	if err != nil {
		return middleware.EncryptionConfig{}, err
	}
	cfg := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range s.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return middleware.EncryptionConfig{}, fmt.Errorf("fallback key %d: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	return cfg, nil
}
