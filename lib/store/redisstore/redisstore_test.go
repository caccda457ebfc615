// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/scenesync/lib/codec"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/testutil"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

func TestChangeMessageRoundtrip(t *testing.T) {
	entity := wire.Entity{ID: "a", Kind: wire.KindSegment, Fill: "#000", X1: 10, Y1: 10, X2: 50, Y2: 80, Version: 3}
	data, err := encodeChange(store.Change{ID: "a", Entity: entity})
	if err != nil {
		t.Fatalf("encodeChange: %v", err)
	}
	change, err := decodeChange(data)
	if err != nil {
		t.Fatalf("decodeChange: %v", err)
	}
	if change.ID != "a" || change.Deleted || change.Entity != entity {
		t.Fatalf("decoded %+v", change)
	}

	data, err = encodeChange(store.Change{ID: "a", Deleted: true})
	if err != nil {
		t.Fatalf("encodeChange(delete): %v", err)
	}
	change, err = decodeChange(data)
	if err != nil || !change.Deleted {
		t.Fatalf("decoded delete = %+v, %v", change, err)
	}
}

func TestDecodeChangeRejectsMalformed(t *testing.T) {
	for name, data := range map[string][]byte{
		"garbage":   []byte("not cbor"),
		"no id":     mustEncode(t, changeMessage{Deleted: true}),
		"no entity": mustEncode(t, changeMessage{ID: "a"}),
	} {
		if _, err := decodeChange(data); err == nil {
			t.Errorf("%s: decodeChange accepted malformed input", name)
		}
	}
}

func TestKeyNames(t *testing.T) {
	if HashKey("lobby") != "scenesync:room:lobby" || ChannelName("lobby") != "scenesync:room:lobby:changes" {
		t.Fatalf("keys = %s, %s", HashKey("lobby"), ChannelName("lobby"))
	}
}

func TestBackendAgainstServer(t *testing.T) {
	address := testutil.ExternalService(t, "SCENESYNC_TEST_REDIS")
	ctx := context.Background()
	room := testutil.UniqueID("room")

	writer, err := Open(ctx, Config{Address: address, Room: room})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer writer.Close()
	reader, err := Open(ctx, Config{Address: address, Room: room})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	defer writer.client.Del(ctx, HashKey(room))

	watchContext, cancel := context.WithCancel(ctx)
	defer cancel()
	ready := make(chan struct{})
	changes := make(chan store.Change, 4)
	go reader.Watch(watchContext, func() { close(ready) }, func(change store.Change) { changes <- change })
	testutil.RequireClosed(t, ready, 5*time.Second, "subscription ready")

	entity := wire.Entity{ID: "a", Kind: wire.KindRectangle, Fill: "#fff", Version: 1}
	if err := writer.Put(ctx, "a", entity); err != nil {
		t.Fatalf("Put: %v", err)
	}
	change := testutil.RequireReceive(t, changes, 5*time.Second, "put change")
	if change.Entity != entity {
		t.Fatalf("change = %+v", change)
	}

	loaded, err := reader.Load(ctx)
	if err != nil || loaded["a"] != entity {
		t.Fatalf("Load = %+v, %v", loaded, err)
	}

	if err := writer.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if change := testutil.RequireReceive(t, changes, 5*time.Second, "delete change"); !change.Deleted {
		t.Fatalf("change = %+v, want delete", change)
	}
}

func TestLoadSkipsUndecodableFields(t *testing.T) {
	address := testutil.ExternalService(t, "SCENESYNC_TEST_REDIS")
	ctx := context.Background()
	room := testutil.UniqueID("room")

	backend, err := Open(ctx, Config{Address: address, Room: room})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer backend.Close()
	defer backend.client.Del(ctx, HashKey(room))

	good := wire.Entity{ID: "good", Kind: wire.KindEllipse, Fill: "#0f0", Width: 8, Height: 8, Version: 1}
	if err := backend.Put(ctx, "good", good); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := backend.client.HSet(ctx, HashKey(room), "bad", "not cbor").Err(); err != nil {
		t.Fatalf("HSET corrupt field: %v", err)
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded["good"] != good {
		t.Fatalf("Load = %+v, want only the decodable entity", loaded)
	}
}

func mustEncode(t *testing.T, message changeMessage) []byte {
	t.Helper()
	data, err := codec.Marshal(message)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}
