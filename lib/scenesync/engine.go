// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bureau-foundation/scenesync/lib/clock"
	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/store"
)

const (
	// DefaultCoalesceWindow is how long a burst of edits to one entity
	// is collected before a single write.
	DefaultCoalesceWindow = 50 * time.Millisecond

	// DefaultGraceWindow is how long local events are still treated as
	// echoes after the engine changed the scene.
	DefaultGraceWindow = 100 * time.Millisecond
)

// NewPeerID returns a fresh, time-ordered peer identifier.
func NewPeerID() string {
	return ulid.Make().String()
}

// Config configures an Engine.
type Config struct {
	// Renderer is the local scene. Required.
	Renderer scene.Renderer

	// Store is the shared store. Required.
	Store store.Store

	// Clock drives the coalescing and grace windows. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// PeerID identifies this peer in written snapshots. Defaults to
	// NewPeerID().
	PeerID string

	// CoalesceWindow defaults to DefaultCoalesceWindow.
	CoalesceWindow time.Duration

	// GraceWindow defaults to DefaultGraceWindow.
	GraceWindow time.Duration

	// TieBreak selects equal-version handling. Defaults to
	// TieBreakNone.
	TieBreak TieBreak

	// NewID generates ids for entities created without one. Defaults
	// to random UUIDs.
	NewID func() string
}

// Engine keeps one local scene synchronized with one shared store.
type Engine struct {
	sync         *SyncContext
	renderer     scene.Renderer
	store        store.Store
	peer         string
	propagator   *Propagator
	reconciler   *Reconciler
	bootstrapper *Bootstrapper

	reconcileQueued atomic.Bool

	mu           sync.Mutex
	started      bool
	unsubscribes []func()
}

// New validates config and returns a stopped Engine.
func New(config Config) (*Engine, error) {
	if config.Renderer == nil {
		return nil, errors.New("scenesync: Renderer is required")
	}
	if config.Store == nil {
		return nil, errors.New("scenesync: Store is required")
	}
	window := config.CoalesceWindow
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	grace := config.GraceWindow
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	peer := config.PeerID
	if peer == "" {
		peer = NewPeerID()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	syncContext := NewSyncContext(config.Clock, logger.With("peer", peer))
	adapter := NewAdapter()
	return &Engine{
		sync:     syncContext,
		renderer: config.Renderer,
		store:    config.Store,
		peer:     peer,
		propagator: NewPropagator(syncContext, PropagatorConfig{
			Renderer: config.Renderer,
			Store:    config.Store,
			Adapter:  adapter,
			Window:   window,
			Peer:     peer,
			NewID:    config.NewID,
		}),
		reconciler: NewReconciler(syncContext, ReconcilerConfig{
			Renderer: config.Renderer,
			Store:    config.Store,
			Adapter:  adapter,
			Arbiter:  Arbiter{TieBreak: config.TieBreak, Self: peer},
			Grace:    grace,
		}),
		bootstrapper: NewBootstrapper(syncContext, config.Renderer, config.Store, adapter, grace),
	}, nil
}

// PeerID returns the id written into this engine's snapshots.
func (e *Engine) PeerID() string { return e.peer }

// Start bootstraps the scene from the store and then subscribes to
// local events and store changes. ctx bounds store calls for the life
// of the engine.
func (e *Engine) Start(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return Report{}, errors.New("scenesync: engine already started")
	}
	e.started = true

	// Subscribe first so that a store change landing during the
	// bootstrap queues a pass behind it instead of being lost.
	e.unsubscribes = append(e.unsubscribes,
		e.renderer.Subscribe(scene.ObserverFunc(e.onSceneEvent)),
		e.store.OnChange(e.onStoreChange),
	)

	var report Report
	e.sync.Loop.Call(func() {
		e.propagator.ctx = ctx
		e.reconciler.ctx = ctx
		e.bootstrapper.ctx = ctx
		report = e.bootstrapper.Run()
	})
	e.sync.Logger.Info("sync engine started", "entities", report.Added)
	return report, nil
}

// Stop writes any pending coalesced changes and detaches from the
// renderer and the store.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.started = false

	flushed := e.Flush()
	for _, unsubscribe := range e.unsubscribes {
		unsubscribe()
	}
	e.unsubscribes = nil
	e.sync.Logger.Info("sync engine stopped", "flushed", flushed)
}

// Reconcile runs a reconciliation pass now.
func (e *Engine) Reconcile() Report {
	var report Report
	e.sync.Loop.Call(func() { report = e.reconciler.Reconcile() })
	return report
}

// Bootstrap re-runs the full replace, as after a reconnect.
func (e *Engine) Bootstrap() Report {
	var report Report
	e.sync.Loop.Call(func() { report = e.bootstrapper.Run() })
	return report
}

// Clear removes every synchronized entity locally and from the store.
func (e *Engine) Clear() (int, error) {
	var (
		deleted int
		err     error
	)
	e.sync.Loop.Call(func() { deleted, err = e.bootstrapper.Clear() })
	return deleted, err
}

// Flush writes every pending coalesced change immediately and returns
// how many were pending.
func (e *Engine) Flush() int {
	var flushed int
	e.sync.Loop.Call(func() { flushed = e.propagator.FlushAll() })
	return flushed
}

// Pending returns the number of coalesced writes waiting for their
// window to close.
func (e *Engine) Pending() int {
	var pending int
	e.sync.Loop.Call(func() { pending = e.sync.Scheduler.Len() })
	return pending
}

// Stats returns the engine's counters.
func (e *Engine) Stats() Stats {
	return e.sync.Counters.Snapshot()
}

func (e *Engine) onSceneEvent(event scene.Event) {
	e.sync.Loop.Post(func() { e.propagator.HandleEvent(event) })
}

// onStoreChange queues one reconciliation pass. Notifications arriving
// while a pass is queued are absorbed by it, since the pass reads the
// store's latest state when it runs.
func (e *Engine) onStoreChange() {
	if !e.reconcileQueued.CompareAndSwap(false, true) {
		return
	}
	e.sync.Loop.Post(func() {
		e.reconcileQueued.Store(false)
		e.reconciler.Reconcile()
	})
}
