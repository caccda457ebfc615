// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/store"
)

// Propagator turns local mutation events into store writes. Added and
// Modified events schedule a write per id after the coalescing window;
// a burst of events for one id yields a single write of the final
// state. Removed events delete from the store at once.
type Propagator struct {
	sync     *SyncContext
	renderer scene.Renderer
	store    store.Store
	adapter  *Adapter
	window   time.Duration
	peer     string
	newID    func() string

	// forcing makes flush write even while the gate is held.
	forcing bool

	// ctx bounds store calls. Set by the engine on start.
	ctx context.Context
}

// PropagatorConfig configures a Propagator.
type PropagatorConfig struct {
	Renderer scene.Renderer
	Store    store.Store
	Adapter  *Adapter

	// Window is the coalescing window.
	Window time.Duration

	// Peer is written into the origin field of every snapshot.
	Peer string

	// NewID generates ids for entities created without one. Defaults
	// to random UUIDs.
	NewID func() string
}

// NewPropagator returns a Propagator sharing syncContext.
func NewPropagator(syncContext *SyncContext, config PropagatorConfig) *Propagator {
	adapter := config.Adapter
	if adapter == nil {
		adapter = NewAdapter()
	}
	newID := config.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Propagator{
		sync:     syncContext,
		renderer: config.Renderer,
		store:    config.Store,
		adapter:  adapter,
		window:   config.Window,
		peer:     config.Peer,
		newID:    newID,
		ctx:      context.Background(),
	}
}

// HandleEvent processes one local mutation event. It must run on the
// loop.
func (p *Propagator) HandleEvent(event scene.Event) {
	entity := event.Entity
	if entity.Transient {
		return
	}
	if p.sync.Gate.Active() {
		p.sync.Counters.suppressed.Add(1)
		return
	}

	switch event.Type {
	case scene.Added:
		if entity.ID == "" {
			id := p.newID()
			if !p.renderer.Identify(entity.Handle, id, entity.Version) {
				p.sync.Logger.Warn("assigning entity id failed", "handle", entity.Handle, "entity_id", id)
				p.sync.Counters.skipped.Add(1)
				return
			}
			entity.ID = id
		}
		p.schedule(entity.ID)

	case scene.Modified:
		if entity.ID == "" {
			p.sync.Logger.Warn("skipping modified entity", "handle", entity.Handle, "error", ErrMissingIdentity)
			p.sync.Counters.skipped.Add(1)
			return
		}
		p.schedule(entity.ID)

	case scene.Removed:
		if entity.ID == "" {
			return
		}
		p.sync.Scheduler.Cancel(entity.ID)
		if err := p.store.Delete(p.ctx, entity.ID); err != nil {
			p.sync.Logger.Warn("store delete failed", "entity_id", entity.ID, "error", err)
			return
		}
		p.sync.Counters.deletes.Add(1)
	}
}

// FlushAll writes every pending change now, gate or not, and returns
// how many were written or attempted. Must run on the loop.
func (p *Propagator) FlushAll() int {
	p.forcing = true
	defer func() { p.forcing = false }()
	return p.sync.Scheduler.Flush()
}

func (p *Propagator) schedule(id string) {
	if p.sync.Scheduler.Schedule(id, p.window, func() { p.flush(id) }) {
		p.sync.Counters.coalesced.Add(1)
	}
}

// flush writes the current state of id. While the echo gate is held
// the write is postponed by another window rather than dropped, since
// the pending change is a genuine local edit.
func (p *Propagator) flush(id string) {
	if p.sync.Gate.Active() && !p.forcing {
		p.sync.Counters.deferred.Add(1)
		p.schedule(id)
		return
	}

	entity, ok := p.renderer.Lookup(id)
	if !ok {
		return
	}
	snapshot, err := p.adapter.ToWire(entity)
	if err != nil {
		p.logSkip(id, err)
		return
	}
	snapshot.Version = NextVersion(entity.Version)
	snapshot.Origin = p.peer

	// Stamp the version locally first so the echo of this write
	// compares equal and is ignored.
	p.renderer.Identify(entity.Handle, id, snapshot.Version)

	if err := p.store.Set(p.ctx, id, snapshot); err != nil {
		// Nothing was published, so the local entity goes back to the
		// version the store last saw from it.
		p.renderer.Identify(entity.Handle, id, entity.Version)
		p.sync.Logger.Warn("store write failed", "entity_id", id, "version", snapshot.Version, "error", err)
		return
	}
	p.sync.Counters.propagations.Add(1)
	p.sync.Logger.Debug("propagated entity", "entity_id", id, "version", snapshot.Version, "kind", snapshot.Kind)
}

func (p *Propagator) logSkip(id string, err error) {
	p.sync.Counters.skipped.Add(1)
	if errors.Is(err, ErrStaleVersion) {
		p.sync.Logger.Debug("skipping entity", "entity_id", id, "error", err)
		return
	}
	p.sync.Logger.Warn("skipping entity", "entity_id", id, "error", err)
}
