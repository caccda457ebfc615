// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/scenesync/lib/clock"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// Backend is a network substrate holding one room's entities.
type Backend interface {
	// Load returns the full current content.
	Load(ctx context.Context) (map[string]wire.Entity, error)

	// Put writes one entity.
	Put(ctx context.Context, id string, entity wire.Entity) error

	// Remove deletes one entity.
	Remove(ctx context.Context, id string) error

	// Watch streams remote changes to apply until ctx is cancelled
	// or the subscription fails. It calls ready once the
	// subscription is established; changes committed before ready
	// may not be delivered, so the caller reloads at that point.
	Watch(ctx context.Context, ready func(), apply func(Change)) error

	// Close releases the backend's connections.
	Close() error
}

// MirrorConfig configures a Mirror.
type MirrorConfig struct {
	// Backend is the substrate to mirror. Required.
	Backend Backend

	// Name labels log lines, typically the backend kind.
	Name string

	// Clock drives reconnect backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives write failures and reconnects. Defaults to a
	// discarding logger.
	Logger *slog.Logger

	// MaxBackoff caps the delay between watch reconnects. The delay
	// starts at one second and doubles. Default: 30 seconds.
	MaxBackoff time.Duration

	// DrainTimeout bounds how long Close waits for queued writes.
	// Default: 5 seconds.
	DrainTimeout time.Duration
}

// Mirror is a Store over a Backend. It keeps a local copy of the
// backend's content so that Entries never waits on the network, and
// sends writes through a single ordered writer goroutine. Writes are
// fire-and-forget: a failed backend write is logged and not retried.
//
// While a local write for an id is queued or in flight, remote changes
// and reloads for that id are held back so that a stale remote value
// cannot briefly overwrite the newer local one. The last one held back
// is applied once the id's writes have all completed, unless another
// local write replaced it first.
type Mirror struct {
	backend      Backend
	name         string
	clock        clock.Clock
	logger       *slog.Logger
	maxBackoff   time.Duration
	drainTimeout time.Duration

	mu       sync.Mutex
	entries  map[string]wire.Entity
	inflight map[string]int
	deferred map[string]Change
	queue    []writeOp

	listeners listeners

	wake    chan struct{}
	closing chan struct{}
	cancel  context.CancelFunc
	group   sync.WaitGroup
	started bool
	closed  bool
}

type writeOp struct {
	id     string
	entity wire.Entity
	delete bool
}

// NewMirror returns an unstarted Mirror.
func NewMirror(config MirrorConfig) *Mirror {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	drainTimeout := config.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	return &Mirror{
		backend:      config.Backend,
		name:         config.Name,
		clock:        clk,
		logger:       logger.With("store", config.Name),
		maxBackoff:   maxBackoff,
		drainTimeout: drainTimeout,
		entries:      make(map[string]wire.Entity),
		inflight:     make(map[string]int),
		deferred:     make(map[string]Change),
		wake:         make(chan struct{}, 1),
		closing:      make(chan struct{}),
	}
}

// Start loads the backend's current content and starts the writer and
// watcher goroutines. The goroutines run until Close.
func (m *Mirror) Start(ctx context.Context) error {
	if m.backend == nil {
		return errors.New("store: mirror has no backend")
	}

	loaded, err := m.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("store: initial load from %s: %w", m.name, err)
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("store: mirror already started")
	}
	m.started = true
	m.entries = loaded
	if m.entries == nil {
		m.entries = make(map[string]wire.Entity)
	}
	m.mu.Unlock()

	watchContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel

	m.group.Add(2)
	go func() {
		defer m.group.Done()
		m.runWriter()
	}()
	go func() {
		defer m.group.Done()
		m.runWatcher(watchContext)
	}()

	m.logger.Info("store mirror started", "entries", len(loaded))
	m.listeners.notify()
	return nil
}

// Close stops the watcher, waits for queued writes to drain (bounded by
// DrainTimeout), and closes the backend.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	if started {
		m.cancel()
		close(m.closing)
		m.group.Wait()
	}
	return m.backend.Close()
}

func (m *Mirror) Set(_ context.Context, id string, entity wire.Entity) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("store: %s mirror is closed", m.name)
	}
	previous, existed := m.entries[id]
	m.entries[id] = entity
	m.enqueueLocked(writeOp{id: id, entity: entity})
	m.mu.Unlock()

	if !existed || previous != entity {
		m.listeners.notify()
	}
	return nil
}

func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("store: %s mirror is closed", m.name)
	}
	_, existed := m.entries[id]
	delete(m.entries, id)
	m.enqueueLocked(writeOp{id: id, delete: true})
	m.mu.Unlock()

	if existed {
		m.listeners.notify()
	}
	return nil
}

func (m *Mirror) Entries(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedEntries(m.entries), nil
}

func (m *Mirror) OnChange(fn func()) func() {
	return m.listeners.add(fn)
}

func (m *Mirror) enqueueLocked(op writeOp) {
	m.queue = append(m.queue, op)
	m.inflight[op.id]++
	delete(m.deferred, op.id)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) runWriter() {
	for {
		select {
		case <-m.wake:
			m.drain(context.Background())
		case <-m.closing:
			ctx, cancel := context.WithTimeout(context.Background(), m.drainTimeout)
			m.drain(ctx)
			cancel()
			return
		}
	}
}

// drain writes queued operations in order until the queue is empty.
func (m *Mirror) drain(ctx context.Context) {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		op := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		var err error
		if op.delete {
			err = m.backend.Remove(ctx, op.id)
		} else {
			err = m.backend.Put(ctx, op.id, op.entity)
		}
		if err != nil {
			m.logger.Warn("store write failed", "entity_id", op.id, "delete", op.delete, "error", err)
		}

		m.mu.Lock()
		m.inflight[op.id]--
		changed := false
		if m.inflight[op.id] <= 0 {
			delete(m.inflight, op.id)
			if change, held := m.deferred[op.id]; held {
				delete(m.deferred, op.id)
				changed = m.applyLocked(change)
			}
		}
		m.mu.Unlock()

		if changed {
			m.logger.Debug("applied remote change held during local write", "entity_id", op.id)
			m.listeners.notify()
		}
	}
}

func (m *Mirror) runWatcher(ctx context.Context) {
	backoff := time.Second
	for {
		err := m.backend.Watch(ctx, func() {
			backoff = time.Second
			m.reload(ctx)
		}, m.apply)
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("store watch failed, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(backoff):
		}
		backoff *= 2
		if backoff > m.maxBackoff {
			backoff = m.maxBackoff
		}
	}
}

// apply folds one remote change into the local copy.
func (m *Mirror) apply(change Change) {
	m.mu.Lock()
	changed := false
	if m.inflight[change.ID] > 0 {
		m.deferred[change.ID] = change
	} else {
		changed = m.applyLocked(change)
	}
	m.mu.Unlock()

	if changed {
		m.listeners.notify()
	}
}

// applyLocked updates the copy and reports whether it changed.
func (m *Mirror) applyLocked(change Change) bool {
	if change.Deleted {
		_, existed := m.entries[change.ID]
		delete(m.entries, change.ID)
		return existed
	}
	previous, existed := m.entries[change.ID]
	m.entries[change.ID] = change.Entity
	return !existed || previous != change.Entity
}

// reload replaces the local copy with the backend's content. Ids with
// local writes in flight are held back like remote changes.
func (m *Mirror) reload(ctx context.Context) {
	loaded, err := m.backend.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("store reload failed", "error", err)
		}
		return
	}

	m.mu.Lock()
	changed := false
	for id, entity := range loaded {
		if m.inflight[id] > 0 {
			m.deferred[id] = Change{ID: id, Entity: entity}
			continue
		}
		if previous, existed := m.entries[id]; !existed || previous != entity {
			m.entries[id] = entity
			changed = true
		}
	}
	for id := range m.entries {
		if _, present := loaded[id]; present {
			continue
		}
		if m.inflight[id] > 0 {
			m.deferred[id] = Change{ID: id, Deleted: true}
			continue
		}
		delete(m.entries, id)
		changed = true
	}
	m.mu.Unlock()

	if changed {
		m.listeners.notify()
	}
}
