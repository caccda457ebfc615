// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import "sync/atomic"

// Counters accumulate engine activity. They are safe to read from any
// goroutine.
type Counters struct {
	propagations atomic.Uint64
	deletes      atomic.Uint64
	coalesced    atomic.Uint64
	deferred     atomic.Uint64
	suppressed   atomic.Uint64
	skipped      atomic.Uint64
	passes       atomic.Uint64
	created      atomic.Uint64
	applied      atomic.Uint64
	removed      atomic.Uint64
	stale        atomic.Uint64
}

// Stats is a snapshot of Counters.
type Stats struct {
	// Propagations counts entity writes to the store.
	Propagations uint64
	// Deletes counts entity deletions sent to the store.
	Deletes uint64
	// Coalesced counts events that replaced a pending write.
	Coalesced uint64
	// Deferred counts writes postponed because the echo gate was held.
	Deferred uint64
	// Suppressed counts local events dropped as echoes.
	Suppressed uint64
	// Skipped counts entities dropped by soft failures.
	Skipped uint64

	// Passes counts reconciliation and bootstrap passes.
	Passes uint64
	// Created, Applied, and Removed count local scene changes made by
	// those passes.
	Created uint64
	Applied uint64
	Removed uint64
	// Stale counts snapshots rejected by the arbiter.
	Stale uint64
}

// Snapshot reads every counter.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Propagations: c.propagations.Load(),
		Deletes:      c.deletes.Load(),
		Coalesced:    c.coalesced.Load(),
		Deferred:     c.deferred.Load(),
		Suppressed:   c.suppressed.Load(),
		Skipped:      c.skipped.Load(),
		Passes:       c.passes.Load(),
		Created:      c.created.Load(),
		Applied:      c.applied.Load(),
		Removed:      c.removed.Load(),
		Stale:        c.stale.Load(),
	}
}

func (c *Counters) recordPass(report Report) {
	c.passes.Add(1)
	c.created.Add(uint64(report.Added))
	c.applied.Add(uint64(report.Updated))
	c.removed.Add(uint64(report.Removed))
	c.stale.Add(uint64(report.Stale))
	c.skipped.Add(uint64(report.Skipped))
}
