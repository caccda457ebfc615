// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pgstore keeps scenes in a PostgreSQL table shared by any
// number of rooms, and uses LISTEN/NOTIFY for change delivery.
//
// Rows live in scene_entities keyed by (room, id), with the entity's
// JSON wire form in a JSONB column so the table stays queryable from
// psql. Each write runs the upsert or delete and a pg_notify on the
// room's channel in one transaction; Postgres delivers the
// notification at commit.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS scene_entities (
	room       TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room, id)
)`

// Config selects the database and room.
type Config struct {
	// URL is a libpq connection string or postgres:// URL. Required.
	URL string

	// Room selects the rows and the notification channel. Required.
	Room string

	Logger *slog.Logger
}

// Backend is a store.Backend over PostgreSQL.
type Backend struct {
	pool    *pgxpool.Pool
	room    string
	channel string
	logger  *slog.Logger
}

// notification is the pg_notify payload.
type notification struct {
	ID      string       `json:"id"`
	Entity  *wire.Entity `json:"entity,omitempty"`
	Deleted bool         `json:"deleted,omitempty"`
}

// ChannelName returns the NOTIFY channel for room.
func ChannelName(room string) string {
	return "scenesync_" + room
}

// Open connects and creates the table if it does not exist.
func Open(ctx context.Context, config Config) (*Backend, error) {
	if config.URL == "" {
		return nil, errors.New("pgstore: URL is required")
	}
	if config.Room == "" {
		return nil, errors.New("pgstore: Room is required")
	}
	pool, err := pgxpool.New(ctx, config.URL)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connecting: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: creating schema: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{pool: pool, room: config.Room, channel: ChannelName(config.Room), logger: logger}, nil
}

// Load reads the room's rows. Rows whose body does not decode to an
// entity are logged and left out.
func (b *Backend) Load(ctx context.Context) (map[string]wire.Entity, error) {
	rows, err := b.pool.Query(ctx, "SELECT id, body FROM scene_entities WHERE room = $1", b.room)
	if err != nil {
		return nil, fmt.Errorf("pgstore: loading room %s: %w", b.room, err)
	}
	defer rows.Close()

	entities := make(map[string]wire.Entity)
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("pgstore: scanning row: %w", err)
		}
		var entity wire.Entity
		if err := json.Unmarshal(body, &entity); err != nil {
			b.logger.Warn("skipping undecodable entity row", "room", b.room, "entity_id", id, "error", err)
			continue
		}
		entities[id] = entity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: loading room %s: %w", b.room, err)
	}
	return entities, nil
}

func (b *Backend) Put(ctx context.Context, id string, entity wire.Entity) error {
	body, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("pgstore: encoding entity %s: %w", id, err)
	}
	payload, err := encodeNotification(store.Change{ID: id, Entity: entity})
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO scene_entities (room, id, body, version) VALUES ($1, $2, $3, $4)
			ON CONFLICT (room, id) DO UPDATE SET
				body = EXCLUDED.body,
				version = EXCLUDED.version,
				updated_at = now()`,
			b.room, id, string(body), int64(entity.Version)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", b.channel, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("pgstore: writing entity %s: %w", id, err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	payload, err := encodeNotification(store.Change{ID: id, Deleted: true})
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM scene_entities WHERE room = $1 AND id = $2", b.room, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", b.channel, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("pgstore: deleting entity %s: %w", id, err)
	}
	return nil
}

// Watch holds one pooled connection in LISTEN mode until ctx is done
// or the connection fails.
func (b *Backend) Watch(ctx context.Context, ready func(), apply func(store.Change)) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: acquiring listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{b.channel}.Sanitize()); err != nil {
		return fmt.Errorf("pgstore: LISTEN %s: %w", b.channel, err)
	}
	ready()

	for {
		received, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("pgstore: waiting on %s: %w", b.channel, err)
		}
		change, err := decodeNotification(received.Payload)
		if err != nil {
			b.logger.Debug("dropping malformed notification", "channel", b.channel, "error", err)
			continue
		}
		apply(change)
	}
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func encodeNotification(change store.Change) (string, error) {
	message := notification{ID: change.ID, Deleted: change.Deleted}
	if !change.Deleted {
		entity := change.Entity
		message.Entity = &entity
	}
	data, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("pgstore: encoding notification for %s: %w", change.ID, err)
	}
	return string(data), nil
}

func decodeNotification(payload string) (store.Change, error) {
	var message notification
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		return store.Change{}, fmt.Errorf("pgstore: decoding notification: %w", err)
	}
	if message.ID == "" {
		return store.Change{}, errors.New("pgstore: notification without id")
	}
	if !message.Deleted && message.Entity == nil {
		return store.Change{}, fmt.Errorf("pgstore: notification for %s has no entity", message.ID)
	}
	change := store.Change{ID: message.ID, Deleted: message.Deleted}
	if message.Entity != nil {
		change.Entity = *message.Entity
	}
	return change, nil
}
