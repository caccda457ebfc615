// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store defines the shared, replicated key-value store that
// peers synchronize through, and the adapters that put real substrates
// behind it.
//
// The engine sees only Store: whole-entity Set and Delete, a sorted
// Entries snapshot, and an OnChange notification that fires for every
// change including the echo of this peer's own writes.
//
// Memory is an in-process store shared by several engines, which makes
// it the replication substrate for tests and the CLI demo. Mirror
// adapts a network Backend (see the redisstore, sqlitestore, pgstore,
// matrixstore, and relaystore packages) into a Store that never
// blocks its caller. Reads come from a local copy and writes are
// queued to a background writer. Remote changes arrive through a
// watcher goroutine.
package store
