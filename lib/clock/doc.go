// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// synchronization engine and the store backends.
//
// Coalescing windows, echo-suppression grace windows, store polling,
// and reconnect backoff all take a Clock instead of calling the time
// package. Production wiring passes Real(). Tests pass a FakeClock and
// drive time explicitly with Advance, which makes the coalescing and
// grace contracts testable without sleeping:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine := scenesync.New(scenesync.Config{Clock: fake, ...})
//	// ... emit ten modify events ...
//	fake.Advance(50 * time.Millisecond) // one coalesced write fires
//
// AfterFunc callbacks registered on a FakeClock run synchronously
// inside Advance, in deadline order. Callbacks sharing a deadline run
// in registration order.
package clock
