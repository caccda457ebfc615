// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"

	"github.com/bureau-foundation/scenesync/lib/wire"
)

func TestMemorySetDeleteEntries(t *testing.T) {
	ctx := context.Background()
	memory := NewMemory()
	notifications := 0
	memory.OnChange(func() { notifications++ })

	for _, id := range []string{"c", "a", "b"} {
		if err := memory.Set(ctx, id, wire.Entity{ID: id, Kind: wire.KindRectangle, Fill: "#fff"}); err != nil {
			t.Fatalf("Set(%s): %v", id, err)
		}
	}
	if err := memory.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := memory.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete(missing): %v", err)
	}

	entries, err := memory.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "a" || entries[1].ID != "c" {
		t.Fatalf("Entries = %+v, want [a c]", entries)
	}
	if notifications != 4 {
		t.Errorf("notifications = %d, want 4 (three sets, one effective delete)", notifications)
	}
	if memory.Writes() != 5 {
		t.Errorf("Writes = %d, want 5", memory.Writes())
	}
}

func TestMemoryNotifiesEveryListener(t *testing.T) {
	memory := NewMemory()
	var order []string
	memory.OnChange(func() { order = append(order, "first") })
	unsubscribe := memory.OnChange(func() { order = append(order, "second") })

	memory.Set(context.Background(), "a", wire.Entity{ID: "a"})
	unsubscribe()
	memory.Set(context.Background(), "a", wire.Entity{ID: "a", Version: 1})

	want := []string{"first", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
