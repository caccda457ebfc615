// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scenesync/cmd/scenesync/cli"
	"github.com/bureau-foundation/scenesync/lib/config"
	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/scenesync"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/store/matrixstore"
	"github.com/bureau-foundation/scenesync/lib/store/pgstore"
	"github.com/bureau-foundation/scenesync/lib/store/redisstore"
	"github.com/bureau-foundation/scenesync/lib/store/relaystore"
	"github.com/bureau-foundation/scenesync/lib/store/sqlitestore"
)

// app carries the process streams so tests can run commands against
// buffers.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:    "scenesync",
		Summary: "Synchronize a shared 2-D scene",
		Description: `Synchronize a shared 2-D scene across peers.

Every peer keeps a local scene and a connection to one shared store:
Redis, SQLite, PostgreSQL, a Matrix room, or a scenesync relay. Local
edits are written to the store at most once per coalescing window, and
store changes are applied locally when they carry a strictly higher
version.`,
		Output: a.stderr,
		Subcommands: []*cli.Command{
			a.watchCommand(),
			a.inspectCommand(),
			a.exportCommand(),
			a.importCommand(),
			a.clearCommand(),
			a.relayCommand(),
			a.demoCommand(),
			a.versionCommand(),
		},
	}
}

// storeOptions are the flags shared by every command that opens the
// configured store.
type storeOptions struct {
	configPath string
	backend    string
	room       string
	logLevel   string
}

func (o *storeOptions) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "path to scenesync.yaml (default $SCENESYNC_CONFIG)")
	flagSet.StringVar(&o.backend, "backend", "", "store backend: memory, redis, sqlite, postgres, matrix, or relay")
	flagSet.StringVar(&o.room, "room", "", "room name (overrides store.room)")
	flagSet.StringVar(&o.logLevel, "log-level", "", "debug, info, warn, or error")
}

// load resolves the configuration and applies flag overrides.
func (o *storeOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
	case os.Getenv("SCENESYNC_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, err
	}

	if o.backend != "" {
		cfg.Store.Backend = o.backend
	}
	if o.room != "" {
		cfg.Store.Room = o.room
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// openStore connects the configured backend. Network and file
// backends are wrapped in a store.Mirror, whose close function drains
// queued writes before disconnecting.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemory(), func() error { return nil }, nil
	case config.BackendRedis:
		backend, err = redisstore.Open(ctx, redisstore.Config{
			Address:  cfg.Store.Redis.Address,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Room:     cfg.Store.Room,
			Logger:   logger,
		})
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLite.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
		backend, err = sqlitestore.Open(sqlitestore.Config{
			Path:         cfg.Store.SQLite.Path,
			PollInterval: cfg.Store.SQLite.PollInterval,
			Logger:       logger,
		})
	case config.BackendPostgres:
		backend, err = pgstore.Open(ctx, pgstore.Config{
			URL:    cfg.Store.Postgres.URL,
			Room:   cfg.Store.Room,
			Logger: logger,
		})
	case config.BackendMatrix:
		backend, err = matrixstore.Open(ctx, matrixstore.Config{
			HomeserverURL: cfg.Store.Matrix.HomeserverURL,
			UserID:        cfg.Store.Matrix.UserID,
			AccessToken:   cfg.Store.Matrix.AccessToken,
			Password:      cfg.Store.Matrix.Password,
			Room:          cfg.Store.Room,
			Logger:        logger,
		})
	case config.BackendRelay:
		backend, err = relaystore.Open(ctx, relaystore.Config{
			URL:  cfg.Store.Relay.URL,
			Room: cfg.Store.Room,
		})
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	mirror := store.NewMirror(store.MirrorConfig{
		Backend:    backend,
		Name:       cfg.Store.Backend,
		Logger:     logger.With("store", cfg.Store.Backend, "room", cfg.Store.Room),
		MaxBackoff: cfg.Store.MaxBackoff,
	})
	if err := mirror.Start(ctx); err != nil {
		mirror.Close()
		return nil, nil, err
	}
	return mirror, mirror.Close, nil
}

// engineConfig builds the engine configuration for one peer.
func engineConfig(cfg *config.Config, renderer scene.Renderer, shared store.Store, logger *slog.Logger) (scenesync.Config, error) {
	tieBreak, err := scenesync.ParseTieBreak(cfg.Sync.TieBreak)
	if err != nil {
		return scenesync.Config{}, err
	}
	return scenesync.Config{
		Renderer:       renderer,
		Store:          shared,
		Logger:         logger,
		PeerID:         cfg.Peer.ID,
		CoalesceWindow: cfg.Sync.CoalesceWindow,
		GraceWindow:    cfg.Sync.GraceWindow,
		TieBreak:       tieBreak,
	}, nil
}

// session is an opened configuration, logger, and store, the common
// prefix of every store command.
type session struct {
	config *config.Config
	logger *slog.Logger
	store  store.Store
	close  func() error
}

func (a *app) openSession(ctx context.Context, options *storeOptions) (*session, error) {
	cfg, err := options.load()
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(a.stderr, cfg.Logging)
	if err != nil {
		return nil, err
	}
	shared, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{config: cfg, logger: logger, store: shared, close: closeStore}, nil
}

// finish closes the store, logging rather than masking an earlier
// error.
func (s *session) finish() {
	if err := s.close(); err != nil {
		s.logger.Error("closing store", "error", err)
	}
}
