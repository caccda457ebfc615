// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/bureau-foundation/scenesync/lib/wire"
)

// Memory is a Store held in process memory. Every engine attached to
// the same Memory sees every write, so it stands in for a replicated
// substrate with instant delivery. Listeners run synchronously on the
// writer's goroutine.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]wire.Entity
	writes    uint64
	listeners listeners
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]wire.Entity)}
}

func (m *Memory) Set(_ context.Context, id string, entity wire.Entity) error {
	m.mu.Lock()
	m.entries[id] = entity
	m.writes++
	m.mu.Unlock()
	m.listeners.notify()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	_, existed := m.entries[id]
	delete(m.entries, id)
	m.writes++
	m.mu.Unlock()
	if existed {
		m.listeners.notify()
	}
	return nil
}

func (m *Memory) Entries(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedEntries(m.entries), nil
}

func (m *Memory) OnChange(fn func()) func() {
	return m.listeners.add(fn)
}

// Get returns the stored entity for id.
func (m *Memory) Get(id string) (wire.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.entries[id]
	return entity, ok
}

// Writes counts Set and Delete calls, including deletes of missing
// ids.
func (m *Memory) Writes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func sortedEntries(entries map[string]wire.Entity) []Entry {
	sorted := make([]Entry, 0, len(entries))
	for id, entity := range entries {
		sorted = append(sorted, Entry{ID: id, Entity: entity})
	}
	slices.SortFunc(sorted, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
	return sorted
}
