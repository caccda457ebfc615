// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"slices"
	"sync"
)

// listeners is the OnChange registry shared by Memory and Mirror.
type listeners struct {
	mu        sync.Mutex
	next      uint64
	callbacks map[uint64]func()
}

func (l *listeners) add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.callbacks == nil {
		l.callbacks = make(map[uint64]func())
	}
	l.next++
	key := l.next
	l.callbacks[key] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.callbacks, key)
	}
}

// notify calls every listener in registration order on the calling
// goroutine.
func (l *listeners) notify() {
	l.mu.Lock()
	keys := make([]uint64, 0, len(l.callbacks))
	for key := range l.callbacks {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	callbacks := make([]func(), len(keys))
	for i, key := range keys {
		callbacks[i] = l.callbacks[key]
	}
	l.mu.Unlock()

	for _, callback := range callbacks {
		callback()
	}
}
