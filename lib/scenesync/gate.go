// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"time"

	"github.com/bureau-foundation/scenesync/lib/clock"
)

// EchoGate marks the window during which local mutation events are
// side effects of the engine's own scene writes. It is a flag, not a
// lock: every method runs on the loop.
//
// A pass holds the gate while it writes to the scene and then releases
// it either at once or after a trailing grace period, so that events a
// renderer delivers late are still recognized as echoes. A grace
// period already running is never shortened.
type EchoGate struct {
	clock clock.Clock
	loop  *Loop

	active     bool
	releaseAt  time.Time
	timer      *clock.Timer
	generation uint64
}

// NewEchoGate returns an open gate.
func NewEchoGate(clk clock.Clock, loop *Loop) *EchoGate {
	return &EchoGate{clock: clk, loop: loop}
}

// Active reports whether local mutation events should be treated as
// echoes.
func (g *EchoGate) Active() bool { return g.active }

// Hold closes the gate.
func (g *EchoGate) Hold() { g.active = true }

// Release opens the gate unless a grace period is still running, in
// which case the gate opens when it ends.
func (g *EchoGate) Release() {
	if g.timer != nil {
		return
	}
	g.active = false
}

// ReleaseAfter keeps the gate closed for grace and then opens it. If a
// later release is already scheduled, that one stands.
func (g *EchoGate) ReleaseAfter(grace time.Duration) {
	if grace <= 0 {
		g.Release()
		return
	}
	deadline := g.clock.Now().Add(grace)
	if g.timer != nil && !deadline.After(g.releaseAt) {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}

	g.generation++
	generation := g.generation
	g.releaseAt = deadline
	g.timer = g.clock.AfterFunc(grace, func() {
		g.loop.Post(func() {
			if g.generation != generation {
				return
			}
			g.timer = nil
			g.releaseAt = time.Time{}
			g.active = false
		})
	})
}
