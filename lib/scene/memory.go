// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"slices"
	"sync"
)

// Memory is an in-process Renderer. Observers are called synchronously
// on the mutating goroutine after the renderer's lock is released, so
// an observer may read the renderer.
type Memory struct {
	mu         sync.Mutex
	nextHandle uint64
	order      []uint64
	byHandle   map[uint64]*Entity
	byID       map[string]uint64

	nextObserver uint64
	observers    map[uint64]Observer
}

// NewMemory returns an empty scene.
func NewMemory() *Memory {
	return &Memory{
		byHandle:  make(map[uint64]*Entity),
		byID:      make(map[string]uint64),
		observers: make(map[uint64]Observer),
	}
}

func (m *Memory) Subscribe(observer Observer) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextObserver++
	key := m.nextObserver
	m.observers[key] = observer
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, key)
	}
}

func (m *Memory) Entities() []Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	entities := make([]Entity, 0, len(m.order))
	for _, handle := range m.order {
		entities = append(entities, *m.byHandle[handle])
	}
	return entities
}

func (m *Memory) Lookup(id string) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, ok := m.byID[id]
	if !ok {
		return Entity{}, false
	}
	return *m.byHandle[handle], true
}

// Add inserts entity. An id that is already present is cleared so the
// scene never holds two entities with one id.
func (m *Memory) Add(entity Entity) Entity {
	m.mu.Lock()
	m.nextHandle++
	entity.Handle = m.nextHandle
	if entity.Transient {
		entity.ID = ""
	}
	if entity.ID != "" {
		if _, taken := m.byID[entity.ID]; taken {
			entity.ID = ""
		} else {
			m.byID[entity.ID] = entity.Handle
		}
	}
	entity.Recompute()
	stored := entity
	m.byHandle[entity.Handle] = &stored
	m.order = append(m.order, entity.Handle)
	observers := m.observersLocked()
	m.mu.Unlock()

	notify(observers, Event{Type: Added, Entity: entity})
	return entity
}

func (m *Memory) Remove(handle uint64) bool {
	m.mu.Lock()
	entity, ok := m.byHandle[handle]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.byHandle, handle)
	if entity.ID != "" {
		delete(m.byID, entity.ID)
	}
	m.order = slices.DeleteFunc(m.order, func(candidate uint64) bool { return candidate == handle })
	snapshot := *entity
	observers := m.observersLocked()
	m.mu.Unlock()

	notify(observers, Event{Type: Removed, Entity: snapshot})
	return true
}

func (m *Memory) Mutate(handle uint64, fn func(*Entity)) bool {
	m.mu.Lock()
	entity, ok := m.byHandle[handle]
	if !ok {
		m.mu.Unlock()
		return false
	}
	id, transient := entity.ID, entity.Transient
	fn(entity)
	entity.Handle, entity.ID, entity.Transient = handle, id, transient
	entity.Recompute()
	snapshot := *entity
	observers := m.observersLocked()
	m.mu.Unlock()

	notify(observers, Event{Type: Modified, Entity: snapshot})
	return true
}

func (m *Memory) Identify(handle uint64, id string, version uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.byHandle[handle]
	if !ok || entity.Transient || id == "" {
		return false
	}
	if owner, taken := m.byID[id]; taken && owner != handle {
		return false
	}
	if entity.ID != "" && entity.ID != id {
		delete(m.byID, entity.ID)
	}
	entity.ID = id
	entity.Version = version
	m.byID[id] = handle
	return true
}

// Len returns the number of entities, transient ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

func (m *Memory) observersLocked() []Observer {
	keys := make([]uint64, 0, len(m.observers))
	for key := range m.observers {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	observers := make([]Observer, len(keys))
	for i, key := range keys {
		observers[i] = m.observers[key]
	}
	return observers
}

func notify(observers []Observer, event Event) {
	for _, observer := range observers {
		observer.Observe(event)
	}
}
