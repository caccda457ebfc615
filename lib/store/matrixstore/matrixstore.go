// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrixstore keeps a scene as state events in a Matrix room.
//
// Each entity is one state event of type m.scenesync.entity whose
// state key is the entity id and whose content is the JSON wire form.
// Matrix state cannot be deleted, so a removal writes empty content;
// Load and Watch treat an empty event as absent.
package matrixstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
	"github.com/bureau-foundation/scenesync/messaging"
)

// EventType is the state event type holding one entity.
const EventType = "m.scenesync.entity"

// longPollTimeout is the /sync hold in milliseconds.
const longPollTimeout = 30000

// Config selects the homeserver, account, and room.
//
// With AccessToken set the token is checked against the homeserver and
// UserID is ignored. Otherwise UserID and Password log in.
type Config struct {
	HomeserverURL string
	UserID        string
	AccessToken   string
	Password      string

	// Room is a room id or alias. It is joined on Open.
	Room string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Backend is a store.Backend over one Matrix room.
type Backend struct {
	session *messaging.Session
	roomID  string
	filter  string
	logger  *slog.Logger
}

// Open joins the room and returns a Backend for it.
func Open(ctx context.Context, config Config) (*Backend, error) {
	if config.Room == "" {
		return nil, errors.New("matrixstore: Room is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: config.HomeserverURL,
		HTTPClient:    config.HTTPClient,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("matrixstore: %w", err)
	}
	session, err := authenticate(ctx, client, config)
	if err != nil {
		return nil, fmt.Errorf("matrixstore: %w", err)
	}
	roomID, err := session.JoinRoom(ctx, config.Room)
	if err != nil {
		return nil, fmt.Errorf("matrixstore: %w", err)
	}
	return &Backend{
		session: session,
		roomID:  roomID,
		filter:  messaging.RoomStateFilter(roomID, EventType),
		logger:  logger,
	}, nil
}

func authenticate(ctx context.Context, client *messaging.Client, config Config) (*messaging.Session, error) {
	if config.AccessToken == "" {
		if config.Password == "" {
			return nil, errors.New("AccessToken or Password is required")
		}
		return client.Login(ctx, config.UserID, config.Password)
	}
	probe, err := client.SessionFromToken("", config.AccessToken)
	if err != nil {
		return nil, err
	}
	userID, err := probe.WhoAmI(ctx)
	if err != nil {
		return nil, err
	}
	return client.SessionFromToken(userID, config.AccessToken)
}

// UserID returns the account the backend writes as.
func (b *Backend) UserID() string {
	return b.session.UserID()
}

// RoomID returns the joined room's id.
func (b *Backend) RoomID() string {
	return b.roomID
}

func (b *Backend) Load(ctx context.Context) (map[string]wire.Entity, error) {
	events, err := b.session.GetRoomState(ctx, b.roomID)
	if err != nil {
		return nil, fmt.Errorf("matrixstore: %w", err)
	}
	entities := make(map[string]wire.Entity)
	for _, event := range events {
		change, ok := b.decode(event)
		if !ok || change.Deleted {
			continue
		}
		entities[change.ID] = change.Entity
	}
	return entities, nil
}

func (b *Backend) Put(ctx context.Context, id string, entity wire.Entity) error {
	if _, err := b.session.SendStateEvent(ctx, b.roomID, EventType, id, entity); err != nil {
		return fmt.Errorf("matrixstore: %w", err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	if _, err := b.session.SendStateEvent(ctx, b.roomID, EventType, id, struct{}{}); err != nil {
		return fmt.Errorf("matrixstore: %w", err)
	}
	return nil
}

// Watch long-polls /sync from the current position. State events
// reach a client through both the state and the timeline sections of
// a sync response; both are applied, state first.
func (b *Backend) Watch(ctx context.Context, ready func(), apply func(store.Change)) error {
	response, err := b.session.Sync(ctx, messaging.SyncOptions{SetTimeout: true, Timeout: 0, Filter: b.filter})
	if err != nil {
		return fmt.Errorf("matrixstore: initial sync: %w", err)
	}
	since := response.NextBatch
	ready()

	for {
		response, err := b.session.Sync(ctx, messaging.SyncOptions{
			Since:      since,
			SetTimeout: true,
			Timeout:    longPollTimeout,
			Filter:     b.filter,
		})
		if err != nil {
			b.session.CloseIdleConnections()
			return fmt.Errorf("matrixstore: %w", err)
		}
		since = response.NextBatch

		room, joined := response.Rooms.Join[b.roomID]
		if !joined {
			continue
		}
		for _, section := range [][]messaging.Event{room.State.Events, room.Timeline.Events} {
			for _, event := range section {
				if change, ok := b.decode(event); ok {
					apply(change)
				}
			}
		}
	}
}

// Close is a no-op; the HTTP transport is shared.
func (b *Backend) Close() error {
	return nil
}

// decode turns an entity state event into a change. Events of other
// types and undecodable content are skipped.
func (b *Backend) decode(event messaging.Event) (store.Change, bool) {
	if event.Type != EventType || !event.IsState() || *event.StateKey == "" {
		return store.Change{}, false
	}
	id := *event.StateKey
	if isEmptyContent(event.Content) {
		return store.Change{ID: id, Deleted: true}, true
	}
	var entity wire.Entity
	if err := json.Unmarshal(event.Content, &entity); err != nil {
		b.logger.Warn("skipping undecodable entity event", "entity_id", id, "event_id", event.EventID, "error", err)
		return store.Change{}, false
	}
	return store.Change{ID: id, Entity: entity}, true
}

func isEmptyContent(content json.RawMessage) bool {
	trimmed := bytes.TrimSpace(content)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null"))
}
