// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for scenesync
// packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that tests observing background goroutines (store
// watchers, writers) never hang. They are the only place in the test
// suite that waits on the wall clock; everything timing-related in the
// engine itself runs on a fake clock.
//
// [UniqueID] produces distinct entity and room names without reading
// the time. [ExternalService] gates tests that need a real Redis or
// Postgres server on an environment variable, and [DatabasePath]
// returns a fresh SQLite file path.
//
// All helpers call t.Fatalf or t.Skip rather than returning errors.
package testutil
