// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relaystore is a store.Backend over a scenesync relay
// (lib/relay). Reads and writes are plain HTTP requests; Watch holds a
// WebSocket subscription to the room.
package relaystore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/scenesync/lib/relay"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// Config configures a Backend.
type Config struct {
	// URL is the relay's base URL, e.g. http://relay.internal:7400.
	// Required.
	URL string

	// Room selects the room. Required.
	Room string

	// HTTPClient defaults to a new http.Client.
	HTTPClient *http.Client

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Backend is a store.Backend for one relay room.
type Backend struct {
	entitiesURL string
	watchURL    string
	client      *http.Client
	dialer      *websocket.Dialer
}

// Open checks that the relay answers and returns a Backend for the
// room.
func Open(ctx context.Context, config Config) (*Backend, error) {
	if config.URL == "" {
		return nil, errors.New("relaystore: URL is required")
	}
	if config.Room == "" {
		return nil, errors.New("relaystore: Room is required")
	}
	base, err := url.Parse(strings.TrimSuffix(config.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("relaystore: parsing URL: %w", err)
	}
	var watchScheme string
	switch base.Scheme {
	case "http":
		watchScheme = "ws"
	case "https":
		watchScheme = "wss"
	default:
		return nil, fmt.Errorf("relaystore: URL scheme must be http or https, got %q", base.Scheme)
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	roomPath := base.String() + "/rooms/" + url.PathEscape(config.Room)
	watch := *base
	watch.Scheme = watchScheme
	backend := &Backend{
		entitiesURL: roomPath + "/entities",
		watchURL:    watch.String() + "/rooms/" + url.PathEscape(config.Room) + "/watch",
		client:      client,
		dialer:      dialer,
	}

	if err := backend.do(ctx, http.MethodGet, base.String()+"/healthz", nil, nil); err != nil {
		return nil, fmt.Errorf("relaystore: relay not reachable: %w", err)
	}
	return backend, nil
}

func (b *Backend) Load(ctx context.Context) (map[string]wire.Entity, error) {
	var entities []wire.Entity
	if err := b.do(ctx, http.MethodGet, b.entitiesURL, nil, &entities); err != nil {
		return nil, fmt.Errorf("relaystore: loading room: %w", err)
	}
	loaded := make(map[string]wire.Entity, len(entities))
	for _, entity := range entities {
		loaded[entity.ID] = entity
	}
	return loaded, nil
}

func (b *Backend) Put(ctx context.Context, id string, entity wire.Entity) error {
	// The relay keys by path and requires the body to agree.
	entity.ID = id
	body, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("relaystore: encoding entity %s: %w", id, err)
	}
	if err := b.do(ctx, http.MethodPut, b.entityURL(id), body, nil); err != nil {
		return fmt.Errorf("relaystore: writing entity %s: %w", id, err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	if err := b.do(ctx, http.MethodDelete, b.entityURL(id), nil, nil); err != nil {
		return fmt.Errorf("relaystore: deleting entity %s: %w", id, err)
	}
	return nil
}

// Watch subscribes to the room. The relay's snapshot frame marks the
// subscription as established; its content is not applied, since the
// caller reloads on ready.
func (b *Backend) Watch(ctx context.Context, ready func(), apply func(store.Change)) error {
	conn, _, err := b.dialer.DialContext(ctx, b.watchURL, nil)
	if err != nil {
		return fmt.Errorf("relaystore: subscribing: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
	}()

	var first relay.Message
	if err := conn.ReadJSON(&first); err != nil {
		return watchError(ctx, err)
	}
	if first.Type != relay.TypeSnapshot {
		return fmt.Errorf("relaystore: expected snapshot, got %q", first.Type)
	}
	ready()

	for {
		var message relay.Message
		if err := conn.ReadJSON(&message); err != nil {
			return watchError(ctx, err)
		}
		change, ok := toChange(message)
		if !ok {
			continue
		}
		apply(change)
	}
}

func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *Backend) entityURL(id string) string {
	return b.entitiesURL + "/" + url.PathEscape(id)
}

// do sends one request and decodes a JSON response into result when
// result is non-nil.
func (b *Backend) do(ctx context.Context, method, target string, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := b.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		message, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, target, response.Status, strings.TrimSpace(string(message)))
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(result)
}

// toChange converts a change frame. Frames of other types, and change
// frames without an entity that are not deletions, are ignored.
func toChange(message relay.Message) (store.Change, bool) {
	if message.Type != relay.TypeChange || message.ID == "" {
		return store.Change{}, false
	}
	if message.Deleted {
		return store.Change{ID: message.ID, Deleted: true}, true
	}
	if message.Entity == nil {
		return store.Change{}, false
	}
	return store.Change{ID: message.ID, Entity: *message.Entity}, true
}

func watchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("relaystore: subscription: %w", err)
}
