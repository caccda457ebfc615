// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/scenesync/lib/clock"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

const (
	// DefaultSendBuffer is how many messages may queue for one
	// subscriber before it is dropped.
	DefaultSendBuffer = 256

	// DefaultPingInterval is how often idle subscribers are pinged.
	DefaultPingInterval = 30 * time.Second

	maxBodySize  = 1 << 20
	writeTimeout = 10 * time.Second
)

// Message types on a watch connection.
const (
	TypeSnapshot = "snapshot"
	TypeChange   = "change"
)

// Message is one frame on a watch connection.
type Message struct {
	Type string `json:"type"`

	// Entities is the room content, set on snapshots.
	Entities []wire.Entity `json:"entities,omitempty"`

	// ID, Entity, and Deleted describe a change.
	ID      string       `json:"id,omitempty"`
	Entity  *wire.Entity `json:"entity,omitempty"`
	Deleted bool         `json:"deleted,omitempty"`
}

// Config configures a Server.
type Config struct {
	Logger *slog.Logger

	// Clock drives subscriber pings. Defaults to clock.Real().
	Clock clock.Clock

	// SendBuffer defaults to DefaultSendBuffer.
	SendBuffer int

	// PingInterval defaults to DefaultPingInterval.
	PingInterval time.Duration
}

// Server is an http.Handler serving any number of rooms.
type Server struct {
	logger       *slog.Logger
	clock        clock.Clock
	sendBuffer   int
	pingInterval time.Duration
	router       *mux.Router
	upgrader     websocket.Upgrader

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
}

type room struct {
	entities    map[string]wire.Entity
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan Message
	remote string
}

// New returns a Server with no rooms. Rooms are created on first use.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	sendBuffer := config.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	pingInterval := config.PingInterval
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}

	s := &Server{
		logger:       logger,
		clock:        clk,
		sendBuffer:   sendBuffer,
		pingInterval: pingInterval,
		rooms:        make(map[string]*room),
		upgrader: websocket.Upgrader{
			// Peers are not browsers; there is no origin to check.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	router := mux.NewRouter().UseEncodedPath()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{room}/entities", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{room}/entities/{id}", s.handlePut).Methods(http.MethodPut)
	router.HandleFunc("/rooms/{room}/entities/{id}", s.handleDelete).Methods(http.MethodDelete)
	router.HandleFunc("/rooms/{room}/watch", s.handleWatch).Methods(http.MethodGet)
	s.router = router
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close disconnects every subscriber. Later watch requests are
// refused; reads and writes keep working.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, room := range s.rooms {
		for sub := range room.subscribers {
			s.dropLocked(room, sub)
		}
	}
}

// Rooms returns the number of rooms that hold entities or
// subscribers.
func (s *Server) Rooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "ok\n")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name, _, err := pathVars(r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	var entities []wire.Entity
	if room, ok := s.rooms[name]; ok {
		entities = sortedEntities(room.entities)
	}
	s.mu.Unlock()
	if entities == nil {
		entities = []wire.Entity{}
	}
	writeJSON(w, entities)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	name, id, err := pathVars(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var entity wire.Entity
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&entity); err != nil {
		http.Error(w, fmt.Sprintf("decoding entity: %v", err), http.StatusBadRequest)
		return
	}
	if entity.ID != id {
		http.Error(w, fmt.Sprintf("entity id %q does not match path id %q", entity.ID, id), http.StatusBadRequest)
		return
	}
	if err := entity.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	room := s.roomLocked(name)
	previous, existed := room.entities[id]
	room.entities[id] = entity
	if !existed || previous != entity {
		s.broadcastLocked(name, room, Message{Type: TypeChange, ID: id, Entity: &entity})
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name, id, err := pathVars(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if room, ok := s.rooms[name]; ok {
		if _, existed := room.entities[id]; existed {
			delete(room.entities, id)
			s.broadcastLocked(name, room, Message{Type: TypeChange, ID: id, Deleted: true})
		}
		s.pruneLocked(name, room)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	name, _, err := pathVars(r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Message, s.sendBuffer), remote: r.RemoteAddr}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"))
		conn.Close()
		return
	}
	room := s.roomLocked(name)
	// The snapshot is queued under the lock so that every later change
	// lands behind it.
	sub.send <- Message{Type: TypeSnapshot, Entities: sortedEntities(room.entities)}
	room.subscribers[sub] = struct{}{}
	count := len(room.subscribers)
	s.mu.Unlock()
	s.logger.Info("subscriber connected", "room", name, "subscribers", count, "remote", r.RemoteAddr)

	go s.writePump(sub)
	s.readPump(sub)

	s.mu.Lock()
	if room, ok := s.rooms[name]; ok {
		if _, present := room.subscribers[sub]; present {
			s.dropLocked(room, sub)
		}
		s.pruneLocked(name, room)
	}
	s.mu.Unlock()
	s.logger.Info("subscriber disconnected", "room", name, "remote", r.RemoteAddr)
}

// readPump consumes control frames until the connection fails.
// Subscribers send nothing else.
func (s *Server) readPump(sub *subscriber) {
	sub.conn.SetReadLimit(maxBodySize)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends queued messages and pings until the send channel is
// closed.
func (s *Server) writePump(sub *subscriber) {
	ticker := s.clock.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()
	for {
		select {
		case message, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:realclock // socket I/O deadline
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(message); err != nil {
				s.logger.Debug("subscriber write failed", "error", err)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:realclock // socket I/O deadline
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) roomLocked(name string) *room {
	r, ok := s.rooms[name]
	if !ok {
		r = &room{
			entities:    make(map[string]wire.Entity),
			subscribers: make(map[*subscriber]struct{}),
		}
		s.rooms[name] = r
	}
	return r
}

// pruneLocked forgets a room with no entities and no subscribers.
func (s *Server) pruneLocked(name string, r *room) {
	if len(r.entities) == 0 && len(r.subscribers) == 0 {
		delete(s.rooms, name)
	}
}

func (s *Server) broadcastLocked(name string, r *room, message Message) {
	for sub := range r.subscribers {
		select {
		case sub.send <- message:
		default:
			s.logger.Warn("subscriber too slow, disconnecting",
				"room", name, "remote", sub.remote, "queued", len(sub.send))
			s.dropLocked(r, sub)
		}
	}
}

// dropLocked closes the subscriber's queue; its writePump then closes
// the connection, which ends its readPump.
func (s *Server) dropLocked(r *room, sub *subscriber) {
	delete(r.subscribers, sub)
	close(sub.send)
}

func sortedEntities(entities map[string]wire.Entity) []wire.Entity {
	ids := slices.Sorted(maps.Keys(entities))
	sorted := make([]wire.Entity, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, entities[id])
	}
	return sorted
}

// pathVars returns the unescaped room and, when withID is set, entity
// id from the route.
func pathVars(r *http.Request, withID bool) (room, id string, err error) {
	vars := mux.Vars(r)
	room, err = url.PathUnescape(vars["room"])
	if err != nil || room == "" {
		return "", "", errors.New("invalid room")
	}
	if !withID {
		return room, "", nil
	}
	id, err = url.PathUnescape(vars["id"])
	if err != nil || id == "" {
		return "", "", errors.New("invalid entity id")
	}
	return room, id, nil
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	// Headers are sent by the first write; an encode error has no
	// one left to go to.
	_ = json.NewEncoder(w).Encode(value)
}
