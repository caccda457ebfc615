// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// SceneFingerprint hashes the synchronized entities of renderer.
// Two converged peers, and the store they share, have equal
// fingerprints.
func SceneFingerprint(renderer scene.Renderer) (string, error) {
	adapter := NewAdapter()
	var entities []wire.Entity
	for _, entity := range renderer.Entities() {
		if entity.Transient {
			continue
		}
		encoded, err := adapter.ToWire(entity)
		if err != nil {
			return "", fmt.Errorf("scenesync: fingerprinting %s: %w", entity.ID, err)
		}
		entities = append(entities, encoded)
	}
	return wire.Fingerprint(entities)
}

// StoreFingerprint hashes every entry of shared.
func StoreFingerprint(ctx context.Context, shared store.Store) (string, error) {
	entries, err := shared.Entries(ctx)
	if err != nil {
		return "", fmt.Errorf("scenesync: reading store: %w", err)
	}
	entities := make([]wire.Entity, 0, len(entries))
	for _, entry := range entries {
		entities = append(entities, entry.Entity)
	}
	return wire.Fingerprint(entities)
}
