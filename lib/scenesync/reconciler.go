// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// Report summarizes one reconciliation or bootstrap pass.
type Report struct {
	Added   int
	Updated int
	Removed int
	// Stale counts store entries not newer than the local entity.
	Stale int
	// Skipped counts entries dropped by soft failures.
	Skipped int
	// Unpublished counts local entities absent from the store because
	// their first write is still pending.
	Unpublished int
}

// Changed reports whether the pass wrote to the local scene.
func (r Report) Changed() bool {
	return r.Added+r.Updated+r.Removed > 0
}

func (r Report) String() string {
	return fmt.Sprintf("added=%d updated=%d removed=%d stale=%d skipped=%d unpublished=%d",
		r.Added, r.Updated, r.Removed, r.Stale, r.Skipped, r.Unpublished)
}

// Reconciler makes the local scene match the store.
type Reconciler struct {
	sync     *SyncContext
	renderer scene.Renderer
	store    store.Store
	adapter  *Adapter
	arbiter  Arbiter
	grace    time.Duration

	ctx context.Context
}

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	Renderer scene.Renderer
	Store    store.Store
	Adapter  *Adapter
	Arbiter  Arbiter

	// Grace is how long the echo gate stays held after a pass that
	// changed the scene.
	Grace time.Duration
}

// NewReconciler returns a Reconciler sharing syncContext.
func NewReconciler(syncContext *SyncContext, config ReconcilerConfig) *Reconciler {
	adapter := config.Adapter
	if adapter == nil {
		adapter = NewAdapter()
	}
	return &Reconciler{
		sync:     syncContext,
		renderer: config.Renderer,
		store:    config.Store,
		adapter:  adapter,
		arbiter:  config.Arbiter,
		grace:    config.Grace,
		ctx:      context.Background(),
	}
}

// Reconcile runs one pass: store entries missing locally are created,
// local entities missing from the store are removed, and entries
// present on both sides go through the arbiter. The echo gate is held
// for the pass and, if the pass touched the scene, for the grace
// period after it. Must run on the loop.
func (r *Reconciler) Reconcile() Report {
	var report Report
	gate := r.sync.Gate
	gate.Hold()
	defer func() {
		if report.Changed() {
			gate.ReleaseAfter(r.grace)
		} else {
			gate.Release()
		}
		r.sync.Counters.recordPass(report)
	}()

	entries, err := r.store.Entries(r.ctx)
	if err != nil {
		r.sync.Logger.Warn("reading store entries failed", "error", err)
		return report
	}

	local := localEntities(r.renderer)
	remote := make(map[string]wire.Entity, len(entries))
	for _, entry := range entries {
		remote[entry.ID] = entry.Entity
	}

	for _, id := range sortedKeys(local) {
		if _, present := remote[id]; present {
			continue
		}
		entity := local[id]
		if entity.Version == 0 && r.sync.Scheduler.Pending(id) {
			report.Unpublished++
			continue
		}
		r.sync.Scheduler.Cancel(id)
		if r.renderer.Remove(entity.Handle) {
			report.Removed++
		}
	}

	for _, entry := range entries {
		incoming := entry.Entity
		incoming.ID = entry.ID

		entity, exists := local[entry.ID]
		if !exists {
			created, err := r.adapter.FromWire(incoming)
			if err != nil {
				r.skip(&report, entry.ID, err)
				continue
			}
			r.renderer.Add(created)
			report.Added++
			continue
		}

		if err := r.accept(entity, incoming); err != nil {
			report.Stale++
			continue
		}
		if !r.adapter.Supports(incoming.Kind) {
			r.skip(&report, entry.ID, fmt.Errorf("%w: %q", ErrUnknownKind, incoming.Kind))
			continue
		}

		var applyErr error
		r.renderer.Mutate(entity.Handle, func(target *scene.Entity) {
			applyErr = r.adapter.ApplyWireUpdate(target, incoming)
		})
		if applyErr != nil {
			r.skip(&report, entry.ID, applyErr)
			continue
		}
		report.Updated++
	}

	if report.Changed() {
		r.sync.Logger.Debug("reconciled scene", "report", report.String())
	}
	return report
}

func (r *Reconciler) accept(entity scene.Entity, incoming wire.Entity) error {
	current, err := r.adapter.ToWire(entity)
	if err != nil {
		current = wire.Entity{ID: entity.ID, Version: entity.Version}
	}
	if err := r.arbiter.Accept(current, incoming); err != nil {
		return err
	}
	// An equal-version win must not overwrite an edit this peer has
	// not written yet; the pending write will supersede it.
	if incoming.Version == entity.Version && r.sync.Scheduler.Pending(entity.ID) {
		return ErrStaleVersion
	}
	return nil
}

func (r *Reconciler) skip(report *Report, id string, err error) {
	report.Skipped++
	if errors.Is(err, ErrStaleVersion) {
		return
	}
	r.sync.Logger.Warn("skipping store entry", "entity_id", id, "error", err)
}

// localEntities indexes the synchronized entities of the scene by id.
func localEntities(renderer scene.Renderer) map[string]scene.Entity {
	local := make(map[string]scene.Entity)
	for _, entity := range renderer.Entities() {
		if entity.Transient || entity.ID == "" {
			continue
		}
		local[entity.ID] = entity
	}
	return local
}

func sortedKeys(entities map[string]scene.Entity) []string {
	keys := make([]string, 0, len(entities))
	for id := range entities {
		keys = append(keys, id)
	}
	slices.Sort(keys)
	return keys
}
