// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases with the pragmas every
// scenesync component expects.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection, use it from one goroutine, and [Pool.Put] it back, or
// use [Pool.With] to do both. Connections are not safe for concurrent
// use.
//
// Every connection is prepared with:
//
//   - journal_mode=WAL, so a watcher polling on its own connection
//     never blocks writers
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - cache_size=-8192 (8 MB per connection)
//   - temp_store=MEMORY
//
// followed by Config.Schema, if set. The schema must be idempotent
// (CREATE TABLE IF NOT EXISTS) because it runs once per connection.
//
// SQL is written by hand and executed with sqlitex.Execute. There is
// no query builder.
package sqlitepool
