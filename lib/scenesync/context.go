// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"log/slog"

	"github.com/bureau-foundation/scenesync/lib/clock"
)

// SyncContext is the state shared by the propagator, the reconciler,
// and the bootstrapper of one engine: the loop they run on, the echo
// gate, the table of pending coalesced writes, and the counters.
type SyncContext struct {
	Clock     clock.Clock
	Loop      *Loop
	Gate      *EchoGate
	Scheduler *Scheduler
	Logger    *slog.Logger
	Counters  *Counters
}

// NewSyncContext wires a fresh loop, gate, and scheduler to clk. A nil
// clk means clock.Real() and a nil logger discards.
func NewSyncContext(clk clock.Clock, logger *slog.Logger) *SyncContext {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loop := NewLoop(logger)
	return &SyncContext{
		Clock:     clk,
		Loop:      loop,
		Gate:      NewEchoGate(clk, loop),
		Scheduler: NewScheduler(clk, loop),
		Logger:    logger,
		Counters:  &Counters{},
	}
}
