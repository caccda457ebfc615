// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"context"
	"time"

	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/store"
)

// Bootstrapper materializes the store into a scene from scratch, and
// clears both sides on request.
type Bootstrapper struct {
	sync     *SyncContext
	renderer scene.Renderer
	store    store.Store
	adapter  *Adapter
	grace    time.Duration

	ctx context.Context
}

// NewBootstrapper returns a Bootstrapper sharing syncContext.
func NewBootstrapper(syncContext *SyncContext, renderer scene.Renderer, sharedStore store.Store, adapter *Adapter, grace time.Duration) *Bootstrapper {
	if adapter == nil {
		adapter = NewAdapter()
	}
	return &Bootstrapper{
		sync:     syncContext,
		renderer: renderer,
		store:    sharedStore,
		adapter:  adapter,
		grace:    grace,
		ctx:      context.Background(),
	}
}

// Run replaces every synchronized entity in the scene with the store's
// content. Transient entities are kept. Pending writes are discarded.
// Running it twice against an unchanged store yields the same scene.
// Must run on the loop.
func (b *Bootstrapper) Run() Report {
	var report Report
	b.sync.Gate.Hold()
	defer func() {
		if report.Changed() {
			b.sync.Gate.ReleaseAfter(b.grace)
		} else {
			b.sync.Gate.Release()
		}
		b.sync.Counters.recordPass(report)
	}()

	entries, err := b.store.Entries(b.ctx)
	if err != nil {
		b.sync.Logger.Warn("reading store entries failed", "error", err)
		return report
	}

	b.sync.Scheduler.CancelAll()
	report.Removed = b.removeSynchronized()

	for _, entry := range entries {
		incoming := entry.Entity
		incoming.ID = entry.ID
		created, err := b.adapter.FromWire(incoming)
		if err != nil {
			report.Skipped++
			b.sync.Logger.Warn("skipping store entry", "entity_id", entry.ID, "error", err)
			continue
		}
		b.renderer.Add(created)
		report.Added++
	}

	b.sync.Logger.Info("scene bootstrapped", "entities", report.Added, "skipped", report.Skipped)
	return report
}

// Clear removes every synchronized entity from the scene and every
// entry from the store. It returns the number of store entries
// deleted. Must run on the loop.
func (b *Bootstrapper) Clear() (int, error) {
	b.sync.Gate.Hold()
	removed := 0
	defer func() {
		if removed > 0 {
			b.sync.Gate.ReleaseAfter(b.grace)
		} else {
			b.sync.Gate.Release()
		}
	}()

	b.sync.Scheduler.CancelAll()
	removed = b.removeSynchronized()

	entries, err := b.store.Entries(b.ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, entry := range entries {
		if err := b.store.Delete(b.ctx, entry.ID); err != nil {
			b.sync.Logger.Warn("store delete failed", "entity_id", entry.ID, "error", err)
			continue
		}
		deleted++
	}
	b.sync.Counters.deletes.Add(uint64(deleted))
	b.sync.Logger.Info("scene cleared", "deleted", deleted)
	return deleted, nil
}

func (b *Bootstrapper) removeSynchronized() int {
	removed := 0
	for _, entity := range b.renderer.Entities() {
		if entity.Transient {
			continue
		}
		if b.renderer.Remove(entity.Handle) {
			removed++
		}
	}
	return removed
}
