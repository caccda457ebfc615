// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/bureau-foundation/scenesync/lib/wire"
)

// Store is a replicated mapping from entity id to wire entity.
type Store interface {
	// Set overwrites the entry for id.
	Set(ctx context.Context, id string, entity wire.Entity) error

	// Delete removes the entry for id. Deleting a missing id is not
	// an error.
	Delete(ctx context.Context, id string) error

	// Entries returns every entry sorted by id.
	Entries(ctx context.Context) ([]Entry, error)

	// OnChange registers fn to be called after any change to the
	// store's content. fn may run on any goroutine and must not
	// block.
	OnChange(fn func()) (unsubscribe func())
}

// Entry is one id and its stored entity.
type Entry struct {
	ID     string
	Entity wire.Entity
}

// Change is a single remote modification reported by a Backend.
type Change struct {
	ID      string
	Entity  wire.Entity
	Deleted bool
}
