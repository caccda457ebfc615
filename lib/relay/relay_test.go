// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/scenesync/lib/wire"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	relay := New(Config{})
	server := httptest.NewServer(relay)
	t.Cleanup(func() {
		relay.Close()
		server.Close()
	})
	return relay, server
}

func put(t *testing.T, server *httptest.Server, room string, entity wire.Entity) *http.Response {
	t.Helper()
	body, err := json.Marshal(entity)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	target := server.URL + "/rooms/" + url.PathEscape(room) + "/entities/" + url.PathEscape(entity.ID)
	request, err := http.NewRequest(http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	response, err := server.Client().Do(request)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	response.Body.Close()
	return response
}

func remove(t *testing.T, server *httptest.Server, room, id string) {
	t.Helper()
	request, err := http.NewRequest(http.MethodDelete, server.URL+"/rooms/"+url.PathEscape(room)+"/entities/"+url.PathEscape(id), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	response, err := server.Client().Do(request)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", response.StatusCode)
	}
}

func list(t *testing.T, server *httptest.Server, room string) []wire.Entity {
	t.Helper()
	response, err := server.Client().Get(server.URL + "/rooms/" + url.PathEscape(room) + "/entities")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer response.Body.Close()
	var entities []wire.Entity
	if err := json.NewDecoder(response.Body).Decode(&entities); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	return entities
}

func watch(t *testing.T, server *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	target := "ws" + strings.TrimPrefix(server.URL, "http") + "/rooms/" + url.PathEscape(room) + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:realclock test hang prevention
	var message Message
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return message
}

var square = wire.Entity{ID: "sq/1", Kind: wire.KindRectangle, Width: 10, Height: 10, Fill: "#fff", Version: 1}

func TestPutAndList(t *testing.T) {
	_, server := newTestServer(t)

	if response := put(t, server, "lobby", square); response.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT status = %d", response.StatusCode)
	}
	other := wire.Entity{ID: "a", Kind: wire.KindText, Fill: "#000", Text: "hi", Version: 1}
	put(t, server, "lobby", other)
	put(t, server, "elsewhere", other)

	entities := list(t, server, "lobby")
	if len(entities) != 2 || entities[0] != other || entities[1] != square {
		t.Fatalf("lobby = %+v, want [a, sq/1]", entities)
	}
	if entities := list(t, server, "empty"); len(entities) != 0 {
		t.Fatalf("empty room = %+v", entities)
	}
}

func TestPutRejectsBadEntities(t *testing.T) {
	_, server := newTestServer(t)

	mismatched := square
	mismatched.ID = "other"
	response, err := server.Client().Do(mustRequest(t, http.MethodPut, server.URL+"/rooms/r/entities/sq", mismatched))
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusBadRequest {
		t.Errorf("mismatched id status = %d, want 400", response.StatusCode)
	}

	invalid := wire.Entity{ID: "x", Kind: wire.KindRectangle}
	if response := put(t, server, "r", invalid); response.StatusCode != http.StatusBadRequest {
		t.Errorf("missing fill status = %d, want 400", response.StatusCode)
	}
}

func mustRequest(t *testing.T, method, target string, entity wire.Entity) *http.Request {
	t.Helper()
	body, err := json.Marshal(entity)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	request, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return request
}

func TestWatchSnapshotThenChanges(t *testing.T) {
	_, server := newTestServer(t)
	put(t, server, "lobby", square)

	conn := watch(t, server, "lobby")
	snapshot := readMessage(t, conn)
	if snapshot.Type != TypeSnapshot || len(snapshot.Entities) != 1 || snapshot.Entities[0] != square {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	moved := square
	moved.X = 99
	moved.Version = 2
	put(t, server, "lobby", moved)
	change := readMessage(t, conn)
	if change.Type != TypeChange || change.ID != square.ID || change.Entity == nil || *change.Entity != moved {
		t.Fatalf("change = %+v", change)
	}

	// Rewriting identical content is not a change.
	put(t, server, "lobby", moved)
	remove(t, server, "lobby", square.ID)
	change = readMessage(t, conn)
	if change.Type != TypeChange || change.ID != square.ID || !change.Deleted {
		t.Fatalf("change = %+v, want deletion", change)
	}
}

func TestWatchIsolatesRooms(t *testing.T) {
	_, server := newTestServer(t)
	lobby := watch(t, server, "lobby")
	readMessage(t, lobby)

	put(t, server, "elsewhere", square)
	put(t, server, "lobby", wire.Entity{ID: "mine", Kind: wire.KindEllipse, Fill: "#f00", Version: 1})

	change := readMessage(t, lobby)
	if change.ID != "mine" {
		t.Fatalf("lobby received %+v, want only its own room's change", change)
	}
}

func TestEmptyRoomsArePruned(t *testing.T) {
	relay, server := newTestServer(t)
	put(t, server, "lobby", square)
	if relay.Rooms() != 1 {
		t.Fatalf("Rooms = %d, want 1", relay.Rooms())
	}
	remove(t, server, "lobby", square.ID)
	if relay.Rooms() != 0 {
		t.Fatalf("Rooms after delete = %d, want 0", relay.Rooms())
	}
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	relay, server := newTestServer(t)
	conn := watch(t, server, "lobby")
	readMessage(t, conn)

	relay.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:realclock test hang prevention
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("read succeeded after Close")
	}
}

func TestHealth(t *testing.T) {
	_, server := newTestServer(t)
	response, err := server.Client().Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", response.StatusCode)
	}
}

func TestSlowSubscriberWarningNamesRoomAndRemote(t *testing.T) {
	var output bytes.Buffer
	relay := New(Config{Logger: slog.New(slog.NewJSONHandler(&output, nil))})

	// A subscriber whose queue is already full.
	sub := &subscriber{send: make(chan Message, 1), remote: "192.0.2.7:51000"}
	sub.send <- Message{Type: TypeSnapshot}

	relay.mu.Lock()
	room := relay.roomLocked("lobby")
	room.subscribers[sub] = struct{}{}
	relay.broadcastLocked("lobby", room, Message{Type: TypeChange, ID: "a", Deleted: true})
	_, kept := room.subscribers[sub]
	relay.mu.Unlock()

	if kept {
		t.Fatal("slow subscriber was not dropped")
	}
	var record map[string]any
	if err := json.Unmarshal(output.Bytes(), &record); err != nil {
		t.Fatalf("decoding log record %q: %v", output.String(), err)
	}
	if record["msg"] != "subscriber too slow, disconnecting" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record["room"] != "lobby" || record["remote"] != "192.0.2.7:51000" {
		t.Fatalf("record = %v, want room lobby and remote 192.0.2.7:51000", record)
	}
}
