// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time moves only when Advance is
// called. It is safe for concurrent use.
//
// AfterFunc callbacks run synchronously inside Advance without the
// clock's lock held, so a callback may schedule further timers. A
// callback must not call Advance.
type FakeClock struct {
	mu       sync.Mutex
	current  time.Time
	sequence uint64
	waiters  []*fakeWaiter
	changed  *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time

	// sequence orders waiters that share a deadline by registration.
	sequence uint64

	// Exactly one of channel and callback is set.
	channel  chan time.Time
	callback func()

	// interval is non-zero for tickers, which are rescheduled after
	// every fire.
	interval time.Duration

	stopped bool
	fired   bool
}

// Fake returns a FakeClock reading initial until advanced.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock has advanced
// by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.registerLocked(&fakeWaiter{deadline: c.current.Add(d), channel: channel})
	return channel
}

// AfterFunc registers f to run during the Advance call that crosses
// now+d. If d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stopFunc:  func() bool { return false },
			resetFunc: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	waiter := &fakeWaiter{deadline: c.current.Add(d), callback: f}
	c.registerLocked(waiter)
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if waiter.stopped || waiter.fired {
				return false
			}
			waiter.stopped = true
			c.changed.Broadcast()
			return true
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !waiter.stopped && !waiter.fired
			if active {
				// Detach the old registration; the waiter is
				// re-registered below with a fresh sequence.
				waiter.stopped = true
				c.compactLocked()
			}
			waiter.stopped = false
			waiter.fired = false
			waiter.deadline = c.current.Add(d)
			c.registerLocked(waiter)
			return active
		},
	}
}

// NewTicker returns a Ticker firing every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{deadline: c.current.Add(d), channel: channel, interval: d}
	c.registerLocked(waiter)

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.stopped = true
			c.changed.Broadcast()
		},
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline is reached, in deadline order. Callbacks that register new
// timers falling inside the advanced span fire during the same call.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		waiter := c.popExpired(target)
		if waiter == nil {
			return
		}
		if waiter.callback != nil {
			waiter.callback()
			continue
		}
		select {
		case waiter.channel <- target:
		default:
		}
	}
}

// popExpired removes and returns the earliest waiter due at or before
// target, or nil. Tickers are rescheduled instead of removed.
func (c *FakeClock) popExpired(target time.Time) *fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.compactLocked()
	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}

	waiter := c.waiters[0]
	c.waiters = c.waiters[1:]
	if waiter.interval > 0 {
		waiter.deadline = waiter.deadline.Add(waiter.interval)
		c.registerLocked(waiter)
	} else {
		waiter.fired = true
	}
	return waiter
}

// WaitForTimers blocks until at least n waiters are pending. Use it
// before Advance when a goroutine under test registers its timer
// asynchronously.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of pending waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) registerLocked(waiter *fakeWaiter) {
	c.sequence++
	waiter.sequence = c.sequence
	c.waiters = append(c.waiters, waiter)
	slices.SortStableFunc(c.waiters, func(a, b *fakeWaiter) int {
		if compare := a.deadline.Compare(b.deadline); compare != 0 {
			return compare
		}
		if a.sequence < b.sequence {
			return -1
		}
		if a.sequence > b.sequence {
			return 1
		}
		return 0
	})
	c.changed.Broadcast()
}

func (c *FakeClock) compactLocked() {
	c.waiters = slices.DeleteFunc(c.waiters, func(waiter *fakeWaiter) bool {
		return waiter.stopped
	})
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped {
			count++
		}
	}
	return count
}
