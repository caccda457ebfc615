// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Store backend names accepted in store.backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMatrix   = "matrix"
	BackendRelay    = "relay"
)

var backends = []string{BackendMemory, BackendRedis, BackendSQLite, BackendPostgres, BackendMatrix, BackendRelay}

// Config is the configuration of one scenesync peer.
type Config struct {
	Environment Environment `yaml:"environment"`

	Peer    PeerConfig    `yaml:"peer"`
	Sync    SyncConfig    `yaml:"sync"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides holds the sections an environment may override.
// Zero fields leave the base value in place.
type ConfigOverrides struct {
	Sync    *SyncConfig    `yaml:"sync,omitempty"`
	Store   *StoreConfig   `yaml:"store,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// PeerConfig identifies this peer. An empty ID means a fresh one is
// generated at startup.
type PeerConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SyncConfig tunes the synchronization engine.
type SyncConfig struct {
	// CoalesceWindow is the per-entity write debounce. Default: 50ms.
	CoalesceWindow time.Duration `yaml:"coalesce_window"`

	// GraceWindow is how long the echo gate stays closed after a
	// reconcile or bootstrap changed the scene. Default: 100ms.
	GraceWindow time.Duration `yaml:"grace_window"`

	// TieBreak is "none" or "store". Default: none.
	TieBreak string `yaml:"tie_break"`
}

// StoreConfig selects and configures the shared store.
type StoreConfig struct {
	// Backend is one of memory, redis, sqlite, postgres, matrix,
	// relay.
	Backend string `yaml:"backend"`

	// Room names the shared scene. Peers in the same room converge.
	Room string `yaml:"room"`

	Redis    RedisConfig    `yaml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Matrix   MatrixConfig   `yaml:"matrix"`
	Relay    RelayConfig    `yaml:"relay"`

	// MaxBackoff caps the delay between watch reconnects.
	// Default: 30s.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLiteConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

// MatrixConfig holds the account used to read and write room state.
// Store.Room is the room id or alias. An access token is preferred;
// without one, UserID and Password log in on every start.
type MatrixConfig struct {
	HomeserverURL string `yaml:"homeserver_url"`
	UserID        string `yaml:"user_id"`
	AccessToken   string `yaml:"access_token"`
	Password      string `yaml:"password"`
}

// RelayConfig points at a "scenesync relay" server. Listen is used by
// the server itself.
type RelayConfig struct {
	URL    string `yaml:"url"`
	Listen string `yaml:"listen"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Empty means text on a terminal and
	// JSON otherwise.
	Format string `yaml:"format"`
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Default returns the configuration every file is merged over.
func Default() *Config {
	return &Config{
		Environment: Development,
		Sync: SyncConfig{
			CoalesceWindow: 50 * time.Millisecond,
			GraceWindow:    100 * time.Millisecond,
			TieBreak:       "none",
		},
		Store: StoreConfig{
			Backend:    BackendMemory,
			Room:       "default",
			Redis:      RedisConfig{Address: "localhost:6379"},
			SQLite:     SQLiteConfig{Path: "${HOME}/.cache/scenesync/scene.db", PollInterval: 100 * time.Millisecond},
			Relay:      RelayConfig{URL: "http://localhost:7400", Listen: ":7400"},
			MaxBackoff: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads the file named by SCENESYNC_CONFIG. There is no
// fallback: an unset variable is an error.
func Load() (*Config, error) {
	configPath := os.Getenv("SCENESYNC_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SCENESYNC_CONFIG environment variable not set; " +
			"set it to the path of your scenesync.yaml, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the section for the
// configured environment, and expands ${VAR} references in path, URL,
// and credential fields. Other environment variables never override
// config values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFile on in-memory YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if sync := overrides.Sync; sync != nil {
		override(&c.Sync.CoalesceWindow, sync.CoalesceWindow)
		override(&c.Sync.GraceWindow, sync.GraceWindow)
		override(&c.Sync.TieBreak, sync.TieBreak)
	}

	if store := overrides.Store; store != nil {
		override(&c.Store.Backend, store.Backend)
		override(&c.Store.Room, store.Room)
		override(&c.Store.MaxBackoff, store.MaxBackoff)
		override(&c.Store.Redis.Address, store.Redis.Address)
		override(&c.Store.Redis.Password, store.Redis.Password)
		override(&c.Store.Redis.DB, store.Redis.DB)
		override(&c.Store.SQLite.Path, store.SQLite.Path)
		override(&c.Store.SQLite.PollInterval, store.SQLite.PollInterval)
		override(&c.Store.Postgres.URL, store.Postgres.URL)
		override(&c.Store.Matrix.HomeserverURL, store.Matrix.HomeserverURL)
		override(&c.Store.Matrix.UserID, store.Matrix.UserID)
		override(&c.Store.Matrix.AccessToken, store.Matrix.AccessToken)
		override(&c.Store.Matrix.Password, store.Matrix.Password)
		override(&c.Store.Relay.URL, store.Relay.URL)
		override(&c.Store.Relay.Listen, store.Relay.Listen)
	}

	if logging := overrides.Logging; logging != nil {
		override(&c.Logging.Level, logging.Level)
		override(&c.Logging.Format, logging.Format)
	}
}

func override[T comparable](dst *T, value T) {
	var zero T
	if value != zero {
		*dst = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":           os.Getenv("HOME"),
		"SCENESYNC_ROOM": c.Store.Room,
	}
	c.Store.SQLite.Path = expandVars(c.Store.SQLite.Path, vars)
	c.Store.Postgres.URL = expandVars(c.Store.Postgres.URL, vars)
	c.Store.Redis.Address = expandVars(c.Store.Redis.Address, vars)
	c.Store.Redis.Password = expandVars(c.Store.Redis.Password, vars)
	c.Store.Matrix.HomeserverURL = expandVars(c.Store.Matrix.HomeserverURL, vars)
	c.Store.Matrix.AccessToken = expandVars(c.Store.Matrix.AccessToken, vars)
	c.Store.Matrix.Password = expandVars(c.Store.Matrix.Password, vars)
	c.Store.Relay.URL = expandVars(c.Store.Relay.URL, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, consulting vars
// before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Sync.CoalesceWindow <= 0 {
		errs = append(errs, fmt.Errorf("sync.coalesce_window must be positive"))
	}
	if c.Sync.GraceWindow < 0 {
		errs = append(errs, fmt.Errorf("sync.grace_window must not be negative"))
	}
	if c.Sync.TieBreak != "none" && c.Sync.TieBreak != "store" {
		errs = append(errs, fmt.Errorf("sync.tie_break must be none or store, got %q", c.Sync.TieBreak))
	}

	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend must be one of: %v", backends))
	}
	if c.Store.Room == "" {
		errs = append(errs, fmt.Errorf("store.room is required"))
	}
	switch c.Store.Backend {
	case BackendRedis:
		if c.Store.Redis.Address == "" {
			errs = append(errs, fmt.Errorf("store.redis.address is required"))
		}
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("store.sqlite.path is required"))
		}
	case BackendPostgres:
		if c.Store.Postgres.URL == "" {
			errs = append(errs, fmt.Errorf("store.postgres.url is required"))
		}
	case BackendMatrix:
		if c.Store.Matrix.HomeserverURL == "" {
			errs = append(errs, fmt.Errorf("store.matrix.homeserver_url is required"))
		}
		if c.Store.Matrix.AccessToken == "" && (c.Store.Matrix.UserID == "" || c.Store.Matrix.Password == "") {
			errs = append(errs, fmt.Errorf("store.matrix.access_token, or user_id with password, is required"))
		}
	case BackendRelay:
		if c.Store.Relay.URL == "" {
			errs = append(errs, fmt.Errorf("store.relay.url is required"))
		}
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
