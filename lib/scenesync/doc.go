// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scenesync keeps a local scene synchronized with a shared,
// multi-writer store.
//
// An Engine joins five parts around one SyncContext:
//
//   - The Adapter maps scene entities to wire entities and back
//     through a table keyed by kind.
//   - The Propagator turns local Added and Modified events into one
//     coalesced store write per entity per window, and Removed events
//     into immediate deletes.
//   - The Reconciler runs whenever the store changes and creates,
//     updates, or removes local entities to match it. Conflicts are
//     settled by the Arbiter: a snapshot wins only with a strictly
//     higher version (optionally, the store's copy wins ties).
//   - The EchoGate is held while the engine itself writes to the
//     scene, so those writes are not mistaken for user edits and sent
//     back out.
//   - The Bootstrapper replaces the scene with the store's content on
//     (re)connect.
//
// Everything runs on a Loop: tasks execute one at a time, timers post
// into it, and no engine state is shared across goroutines. The
// coalescing and grace windows are timers on an injected clock, so
// tests drive them with clock.Fake.
//
// Failures are soft throughout. An entity without an id, or with a
// kind the adapter does not know, is logged and skipped; stale
// snapshots are ignored; store errors are logged and not retried.
package scenesync
