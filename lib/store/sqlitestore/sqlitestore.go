// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitestore keeps a scene in a local SQLite file so that
// several processes on one host can share it.
//
// SQLite has no change notification across connections, so Watch
// checks PRAGMA data_version on a connection it holds for the life of
// the watch. The value moves whenever another connection commits, at
// which point the watcher re-reads the table and reports the
// difference against its previous snapshot. The check runs on every
// poll tick and, where the platform supports it, as soon as fsnotify
// reports a write to the database or its WAL.
package sqlitestore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/scenesync/lib/clock"
	"github.com/bureau-foundation/scenesync/lib/codec"
	"github.com/bureau-foundation/scenesync/lib/sqlitepool"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// DefaultPollInterval is how often Watch checks for foreign commits.
const DefaultPollInterval = 100 * time.Millisecond

const recheckDelay = 20 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id         TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	version    INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Config configures a Backend.
type Config struct {
	// Path is the database file. Required.
	Path string

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// Clock drives polling and updated_at. Defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// Backend is a store.Backend over one SQLite file.
type Backend struct {
	pool         *sqlitepool.Pool
	path         string
	clock        clock.Clock
	pollInterval time.Duration
	logger       *slog.Logger
}

// Open opens (creating if needed) the database at config.Path.
func Open(config Config) (*Backend, error) {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   config.Path,
		Schema: schema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}
	return &Backend{
		pool:         pool,
		path:         config.Path,
		clock:        clk,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

func (b *Backend) Load(ctx context.Context) (map[string]wire.Entity, error) {
	var entities map[string]wire.Entity
	err := b.pool.With(ctx, func(conn *sqlite.Conn) error {
		var err error
		entities, err = b.load(conn)
		return err
	})
	return entities, err
}

func (b *Backend) Put(ctx context.Context, id string, entity wire.Entity) error {
	body, err := codec.Marshal(entity)
	if err != nil {
		return fmt.Errorf("sqlitestore: encoding entity %s: %w", id, err)
	}
	return b.pool.With(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO entities (id, body, version, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				body = excluded.body,
				version = excluded.version,
				updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{
				Args: []any{id, body, int64(entity.Version), b.clock.Now().UnixMilli()},
			})
		if err != nil {
			return fmt.Errorf("sqlitestore: writing entity %s: %w", id, err)
		}
		return nil
	})
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	return b.pool.With(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM entities WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{id},
		})
		if err != nil {
			return fmt.Errorf("sqlitestore: deleting entity %s: %w", id, err)
		}
		return nil
	})
}

// Watch holds one pool connection until ctx is done.
func (b *Backend) Watch(ctx context.Context, ready func(), apply func(store.Change)) error {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	defer b.pool.Put(conn)

	// Watch the files before reading the version so that no commit
	// lands unnoticed between the two.
	wake, stopNotify := b.notifyWrites(ctx)
	defer stopNotify()

	version, err := dataVersion(conn)
	if err != nil {
		return err
	}
	snapshot, err := b.load(conn)
	if err != nil {
		return err
	}
	ready()

	ticker := b.clock.NewTicker(b.pollInterval)
	defer ticker.Stop()
	// A file event can arrive before the writer publishes its commit
	// in the shared-memory index, so every wake is followed by one
	// more check shortly after.
	var recheck <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
			recheck = b.clock.After(recheckDelay)
		case <-recheck:
			recheck = nil
		}

		current, err := dataVersion(conn)
		if err != nil {
			return err
		}
		if current == version {
			continue
		}
		version = current

		next, err := b.load(conn)
		if err != nil {
			return err
		}
		for _, change := range Diff(snapshot, next) {
			apply(change)
		}
		snapshot = next
	}
}

// notifyWrites returns a channel that receives after the database
// file or its WAL is written. Without file notification it returns a
// nil channel and polling alone drives the watch.
func (b *Backend) notifyWrites(ctx context.Context) (<-chan struct{}, func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.logger.Debug("file notification unavailable, polling only", "error", err)
		return nil, func() {}
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		watcher.Close()
		b.logger.Debug("cannot watch database directory, polling only", "error", err)
		return nil, func() {}
	}

	base := filepath.Base(b.path)
	wake := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasPrefix(filepath.Base(event.Name), base) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Debug("file notification error", "error", err)
			}
		}
	}()
	return wake, func() {
		watcher.Close()
		<-done
	}
}

func (b *Backend) Close() error {
	return b.pool.Close()
}

// Diff returns the changes that turn before into after, deletions
// last. Order among upserts follows map iteration.
func Diff(before, after map[string]wire.Entity) []store.Change {
	var changes []store.Change
	for id, entity := range after {
		if previous, existed := before[id]; !existed || previous != entity {
			changes = append(changes, store.Change{ID: id, Entity: entity})
		}
	}
	for id := range before {
		if _, present := after[id]; !present {
			changes = append(changes, store.Change{ID: id, Deleted: true})
		}
	}
	return changes
}

// load reads every row. Rows that do not decode are logged and left
// out, so one corrupt entity does not hide the rest of the scene.
func (b *Backend) load(conn *sqlite.Conn) (map[string]wire.Entity, error) {
	entities := make(map[string]wire.Entity)
	err := sqlitex.Execute(conn, "SELECT id, body FROM entities", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id := stmt.ColumnText(0)
			body := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, body)
			var entity wire.Entity
			if err := codec.Unmarshal(body, &entity); err != nil {
				b.logger.Warn("skipping undecodable entity row", "entity_id", id, "error", err)
				return nil
			}
			entities[id] = entity
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: loading entities: %w", err)
	}
	return entities, nil
}

func dataVersion(conn *sqlite.Conn) (int64, error) {
	var version int64
	err := sqlitex.ExecuteTransient(conn, "PRAGMA data_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: reading data_version: %w", err)
	}
	return version, nil
}
