// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"slices"
	"time"

	"github.com/bureau-foundation/scenesync/lib/clock"
)

// Scheduler is a table of deferred tasks keyed by entity id. At most
// one task is pending per id: scheduling again cancels the previous
// task and restarts the delay. Tasks run on the loop.
//
// Every method must be called from the loop.
type Scheduler struct {
	clock clock.Clock
	loop  *Loop

	sequence uint64
	tasks    map[string]*scheduledTask
}

type scheduledTask struct {
	sequence uint64
	timer    *clock.Timer
	run      func()
}

// NewScheduler returns an empty table.
func NewScheduler(clk clock.Clock, loop *Loop) *Scheduler {
	return &Scheduler{clock: clk, loop: loop, tasks: make(map[string]*scheduledTask)}
}

// Schedule arranges for run to be called after delay, replacing any
// task pending for id. It reports whether a pending task was replaced.
func (s *Scheduler) Schedule(id string, delay time.Duration, run func()) bool {
	replaced := s.Cancel(id)

	s.sequence++
	task := &scheduledTask{sequence: s.sequence, run: run}
	s.tasks[id] = task
	task.timer = s.clock.AfterFunc(delay, func() {
		s.loop.Post(func() { s.fire(id, task.sequence) })
	})
	return replaced
}

// fire runs the task for id if it is still the one that armed the
// timer. A timer that fired while its task was being replaced finds a
// newer sequence and does nothing.
func (s *Scheduler) fire(id string, sequence uint64) {
	task, ok := s.tasks[id]
	if !ok || task.sequence != sequence {
		return
	}
	delete(s.tasks, id)
	task.run()
}

// Cancel drops the task pending for id and reports whether there was
// one.
func (s *Scheduler) Cancel(id string) bool {
	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, id)
	return true
}

// CancelAll drops every pending task and returns how many there were.
func (s *Scheduler) CancelAll() int {
	count := len(s.tasks)
	for id := range s.tasks {
		s.Cancel(id)
	}
	return count
}

// Pending reports whether a task is waiting for id.
func (s *Scheduler) Pending(id string) bool {
	_, ok := s.tasks[id]
	return ok
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int { return len(s.tasks) }

// Flush runs every pending task now, in id order, and returns how many
// ran.
func (s *Scheduler) Flush() int {
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	ran := 0
	for _, id := range ids {
		task, ok := s.tasks[id]
		if !ok {
			continue
		}
		s.Cancel(id)
		task.run()
		ran++
	}
	return ran
}
