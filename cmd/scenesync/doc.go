// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Scenesync is the command-line peer for a shared scene.
//
// "scenesync watch" runs a headless peer that keeps an in-memory scene
// synchronized with the configured store and logs what it sees. The
// remaining commands operate on the store directly: inspect lists its
// entities, export and import move a scene to and from a file, and
// clear empties it. "scenesync relay" serves rooms to peers that use
// the relay backend. "scenesync demo" runs two peers in one process
// against an in-memory store and reports whether they converged.
//
// Configuration comes from --config, then $SCENESYNC_CONFIG, then
// built-in defaults (an in-memory store). --backend and --room
// override the file.
package main
