// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scene

// EventType distinguishes the three mutation notifications.
type EventType int

const (
	Added EventType = iota + 1
	Modified
	Removed
)

func (t EventType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event reports one mutation of the local scene. Entity is a snapshot
// taken after the mutation (before it, for Removed).
type Event struct {
	Type   EventType
	Entity Entity
}

// Observer receives mutation events.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(event Event) { f(event) }

// Renderer is the local scene as seen by the synchronization engine.
//
// Entities and Lookup return copies. Add, Remove, and Mutate notify
// observers; Identify does not, since identity and version are
// synchronization bookkeeping rather than visible changes.
type Renderer interface {
	// Subscribe registers an observer and returns a function that
	// removes it.
	Subscribe(Observer) (unsubscribe func())

	// Entities returns every entity, transient ones included, in
	// insertion order.
	Entities() []Entity

	// Lookup finds a synchronized entity by id.
	Lookup(id string) (Entity, bool)

	// Add inserts an entity and returns it with its handle assigned.
	Add(Entity) Entity

	// Remove deletes the entity with the given handle.
	Remove(handle uint64) bool

	// Mutate applies fn to the entity in place. The handle and id are
	// preserved whatever fn does.
	Mutate(handle uint64, fn func(*Entity)) bool

	// Identify sets the id and version of an entity without emitting
	// an event. It fails if another entity already holds the id.
	Identify(handle uint64, id string, version uint64) bool
}
