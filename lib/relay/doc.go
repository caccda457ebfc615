// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay is a small HTTP and WebSocket server that holds scene
// rooms in memory and fans their changes out to subscribers. It is
// the server half of the relay store backend (lib/store/relaystore),
// for deployments that have no Redis, PostgreSQL, or Matrix server to
// share.
//
// Routes, with {room} and {id} path-escaped:
//
//	GET    /healthz                      liveness
//	GET    /rooms/{room}/entities        JSON array of the room, by id
//	PUT    /rooms/{room}/entities/{id}   write one entity (JSON body)
//	DELETE /rooms/{room}/entities/{id}   delete one entity
//	GET    /rooms/{room}/watch           WebSocket change stream
//
// A watch connection first receives a snapshot [Message] and then one
// change message per write or delete in the room, including the
// subscriber's own. The relay keeps the last write for each id; it
// does not compare versions, which is the peers' job. A subscriber
// that falls more than [DefaultSendBuffer] messages behind is
// disconnected and is expected to reconnect and reload.
package relay
