// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"log/slog"
	"sync"
)

// Loop runs tasks one at a time in the order they were posted. There
// is no dedicated goroutine: the first Post on an idle loop runs the
// task, and any task posted meanwhile (from that task or from another
// goroutine) is queued and run by the same caller before Post returns.
//
// All engine state (the echo gate, the scheduled-task table, the
// counters of a pass) is touched only from loop tasks, which is what
// makes the engine single-threaded without locks of its own.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewLoop returns an idle loop.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{logger: logger}
}

// Post schedules task. If the loop is idle, task and everything queued
// behind it run before Post returns; otherwise Post returns at once.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		next := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(next)
	}
}

// Call posts task and waits for it to finish. It must not be called
// from inside a loop task.
func (l *Loop) Call(task func()) {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		task()
	})
	<-done
}

func (l *Loop) run(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			l.logger.Error("scenesync task panicked", "panic", recovered)
		}
	}()
	task()
}
