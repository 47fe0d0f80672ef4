// Package config loads the daemon configuration: defaults, then an optional YAML file,
// then GOGUARD_* environment variables. A .env file, if named, is loaded into the
// environment first.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override. Field names are split on case, so
// Store.BoltPath is read from GOGUARD_STORE_BOLT_PATH.
const EnvPrefix = "GOGUARD"

// Store backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

// Config holds all daemon configuration.
type Config struct {
	Listen string `yaml:"listen" split_words:"true"`
	// AdminToken, when set, is required as a bearer token on the /v1 API.
	AdminToken string `yaml:"admin_token" split_words:"true"`

	Store   StoreConfig   `yaml:"store" split_words:"true"`
	Log     LogConfig     `yaml:"log" split_words:"true"`
	Monitor MonitorConfig `yaml:"monitor" split_words:"true"`
	Session SessionConfig `yaml:"session" split_words:"true"`
	Ticket  TicketConfig  `yaml:"ticket" split_words:"true"`
	Audit   AuditConfig   `yaml:"audit" split_words:"true"`
	Feed    FeedConfig    `yaml:"feed" split_words:"true"`
	Metrics MetricsConfig `yaml:"metrics" split_words:"true"`
}

// StoreConfig selects where the locked set and grant table live.
type StoreConfig struct {
	Backend       string   `yaml:"backend" split_words:"true"`
	BoltPath      string   `yaml:"bolt_path" split_words:"true"`
	RedisAddr     string   `yaml:"redis_addr" split_words:"true"`
	RedisPassword string   `yaml:"redis_password" split_words:"true"`
	RedisDB       int      `yaml:"redis_db" split_words:"true"`
	RedisPrefix   string   `yaml:"redis_prefix" split_words:"true"`
	Locked        []string `yaml:"locked" split_words:"true"`
}

type LogConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
}

type MonitorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" split_words:"true"`
	MinSpacing   time.Duration `yaml:"min_spacing" split_words:"true"`
	SelfApp      string        `yaml:"self_app" split_words:"true"`
	NeutralApps  []string      `yaml:"neutral_apps" split_words:"true"`
}

type SessionConfig struct {
	GracePeriod      time.Duration `yaml:"grace_period" split_words:"true"`
	ChallengeTimeout time.Duration `yaml:"challenge_timeout" split_words:"true"`
	SuspendDelay     time.Duration `yaml:"suspend_delay" split_words:"true"`
}

// TicketConfig carries the signing key hex-encoded. Empty generates a key per process.
type TicketConfig struct {
	Issuer string        `yaml:"issuer" split_words:"true"`
	KeyHex string        `yaml:"key" split_words:"true"`
	Leeway time.Duration `yaml:"leeway" split_words:"true"`
}

// AuditConfig enables the audit trail. An empty Path writes JSON lines to stderr.
type AuditConfig struct {
	Enabled      bool          `yaml:"enabled" split_words:"true"`
	Path         string        `yaml:"path" split_words:"true"`
	BufferSize   int           `yaml:"buffer_size" split_words:"true"`
	DropIfFull   bool          `yaml:"drop_if_full" split_words:"true"`
	FlushTimeout time.Duration `yaml:"flush_timeout" split_words:"true"`
}

// FeedConfig sizes the agent feed and enables the X11 fallback.
type FeedConfig struct {
	Capacity int  `yaml:"capacity" split_words:"true"`
	UseXprop bool `yaml:"use_xprop" split_words:"true"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" split_words:"true"`
	Latency bool `yaml:"latency" split_words:"true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	engine := goGuard.DefaultConfig()
	return Config{
		Listen: "127.0.0.1:7310",
		Store: StoreConfig{
			Backend:     BackendMemory,
			RedisPrefix: "gg",
		},
		Log: LogConfig{Level: "info"},
		Monitor: MonitorConfig{
			PollInterval: engine.Monitor.PollInterval,
			MinSpacing:   engine.Monitor.MinSpacing,
			SelfApp:      "goguard",
		},
		Session: SessionConfig{
			GracePeriod:      engine.Session.GracePeriod,
			ChallengeTimeout: engine.Session.ChallengeTimeout,
			SuspendDelay:     engine.Session.SuspendDelay,
		},
		Ticket: TicketConfig{
			Issuer: engine.Ticket.Issuer,
			Leeway: engine.Ticket.Leeway,
		},
		Audit: AuditConfig{
			BufferSize:   engine.Audit.BufferSize,
			DropIfFull:   engine.Audit.DropIfFull,
			FlushTimeout: engine.Audit.FlushTimeout,
		},
		Feed: FeedConfig{Capacity: 512},
		Metrics: MetricsConfig{
			Enabled: engine.Metrics.Enabled,
			Latency: engine.Metrics.EnableLatencyHistograms,
		},
	}
}

// Load builds the configuration. path names a YAML file and may be empty. dotenv names a
// .env file; a missing file is ignored.
func Load(path, dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the daemon-only settings and the derived engine configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return errors.New("listen address must not be empty")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Store.BoltPath == "" {
			return errors.New("store bolt_path required for the bolt backend")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("store redis_addr required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Feed.Capacity < 0 {
		return errors.New("feed capacity must be >= 0")
	}
	engine, err := c.Engine()
	if err != nil {
		return err
	}
	return engine.Validate()
}

// Engine maps the daemon configuration onto the engine's.
func (c Config) Engine() (goGuard.Config, error) {
	key, err := hex.DecodeString(c.Ticket.KeyHex)
	if err != nil {
		return goGuard.Config{}, fmt.Errorf("ticket key must be hex: %w", err)
	}
	cfg := goGuard.DefaultConfig()
	cfg.Monitor.PollInterval = c.Monitor.PollInterval
	cfg.Monitor.MinSpacing = c.Monitor.MinSpacing
	cfg.Monitor.SelfAppID = c.Monitor.SelfApp
	cfg.Monitor.NeutralApps = append([]string(nil), c.Monitor.NeutralApps...)
	cfg.Session.GracePeriod = c.Session.GracePeriod
	cfg.Session.ChallengeTimeout = c.Session.ChallengeTimeout
	cfg.Session.SuspendDelay = c.Session.SuspendDelay
	cfg.Ticket.Issuer = c.Ticket.Issuer
	cfg.Ticket.Key = key
	cfg.Ticket.Leeway = c.Ticket.Leeway
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull
	cfg.Audit.FlushTimeout = c.Audit.FlushTimeout
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Latency
	return cfg, nil
}

// Logging maps the log section onto [logging.Config].
func (c Config) Logging() logging.Config {
	out := logging.DefaultConfig()
	out.Level = c.Log.Level
	out.Development = c.Log.Development
	return out
}
