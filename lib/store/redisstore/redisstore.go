// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package redisstore keeps a room's entities in a Redis hash and
// announces every write on a pub/sub channel.
//
// The hash scenesync:room:<room> maps entity id to the entity's CBOR
// encoding. Each write updates the hash and publishes a change message
// on scenesync:room:<room>:changes in one MULTI/EXEC, so a subscriber
// never sees a change before the hash reflects it.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bureau-foundation/scenesync/lib/codec"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// Config selects the Redis server and room.
type Config struct {
	Address  string
	Password string
	DB       int

	// Room namespaces the keys. Required.
	Room string

	Logger *slog.Logger
}

// Backend is a store.Backend over Redis.
type Backend struct {
	client  *redis.Client
	hash    string
	channel string
	logger  *slog.Logger
}

// changeMessage is published for every write.
type changeMessage struct {
	ID      string       `cbor:"id"`
	Entity  *wire.Entity `cbor:"entity,omitempty"`
	Deleted bool         `cbor:"deleted,omitempty"`
}

// HashKey returns the hash holding room's entities.
func HashKey(room string) string {
	return "scenesync:room:" + room
}

// ChannelName returns the pub/sub channel carrying room's changes.
func ChannelName(room string) string {
	return HashKey(room) + ":changes"
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, config Config) (*Backend, error) {
	if config.Room == "" {
		return nil, errors.New("redisstore: Room is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: connecting to %s: %w", config.Address, err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		client:  client,
		hash:    HashKey(config.Room),
		channel: ChannelName(config.Room),
		logger:  logger,
	}, nil
}

// Load reads the hash. Fields that do not decode are logged and left
// out.
func (b *Backend) Load(ctx context.Context) (map[string]wire.Entity, error) {
	values, err := b.client.HGetAll(ctx, b.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: HGETALL %s: %w", b.hash, err)
	}
	entities := make(map[string]wire.Entity, len(values))
	for id, value := range values {
		var entity wire.Entity
		if err := codec.Unmarshal([]byte(value), &entity); err != nil {
			b.logger.Warn("skipping undecodable entity", "entity_id", id, "hash", b.hash, "error", err)
			continue
		}
		entities[id] = entity
	}
	return entities, nil
}

func (b *Backend) Put(ctx context.Context, id string, entity wire.Entity) error {
	value, err := codec.Marshal(entity)
	if err != nil {
		return fmt.Errorf("redisstore: encoding entity %s: %w", id, err)
	}
	message, err := encodeChange(store.Change{ID: id, Entity: entity})
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.hash, id, value)
		pipe.Publish(ctx, b.channel, message)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: writing entity %s: %w", id, err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	message, err := encodeChange(store.Change{ID: id, Deleted: true})
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, b.hash, id)
		pipe.Publish(ctx, b.channel, message)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: deleting entity %s: %w", id, err)
	}
	return nil
}

// Watch subscribes to the room's change channel. Malformed messages
// are dropped.
func (b *Backend) Watch(ctx context.Context, ready func(), apply func(store.Change)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redisstore: subscribing to %s: %w", b.channel, err)
	}
	ready()

	for {
		message, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("redisstore: receiving on %s: %w", b.channel, err)
		}
		change, err := decodeChange([]byte(message.Payload))
		if err != nil {
			b.logger.Debug("dropping malformed change message", "channel", b.channel, "error", err)
			continue
		}
		apply(change)
	}
}

func (b *Backend) Close() error {
	return b.client.Close()
}

func encodeChange(change store.Change) ([]byte, error) {
	message := changeMessage{ID: change.ID, Deleted: change.Deleted}
	if !change.Deleted {
		entity := change.Entity
		message.Entity = &entity
	}
	data, err := codec.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("redisstore: encoding change for %s: %w", change.ID, err)
	}
	return data, nil
}

func decodeChange(data []byte) (store.Change, error) {
	var message changeMessage
	if err := codec.Unmarshal(data, &message); err != nil {
		return store.Change{}, fmt.Errorf("redisstore: decoding change: %w", err)
	}
	if message.ID == "" {
		return store.Change{}, errors.New("redisstore: change without id")
	}
	if !message.Deleted && message.Entity == nil {
		return store.Change{}, fmt.Errorf("redisstore: change for %s has no entity", message.ID)
	}
	change := store.Change{ID: message.ID, Deleted: message.Deleted}
	if message.Entity != nil {
		change.Entity = *message.Entity
	}
	return change, nil
}
