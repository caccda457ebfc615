// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import "errors"

// Every failure below is soft: the affected entity is skipped and
// logged, and processing of its siblings continues.
var (
	// ErrMissingIdentity reports an entity without an id.
	ErrMissingIdentity = errors.New("scenesync: entity has no id")

	// ErrUnknownKind reports a kind tag with no registered codec.
	ErrUnknownKind = errors.New("scenesync: unknown entity kind")

	// ErrStaleVersion reports an incoming snapshot that is not newer
	// than the local entity. It is the expected outcome of concurrent
	// writes and is never logged above debug level.
	ErrStaleVersion = errors.New("scenesync: stale version")
)
