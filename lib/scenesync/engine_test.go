// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/scenesync/lib/clock"
	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/testutil"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// settle is long enough for every coalescing window and grace period
// started so far to close.
const settle = time.Second

type testPeer struct {
	scene  *scene.Memory
	engine *Engine
}

func newPeer(t *testing.T, name string, shared store.Store, fake *clock.FakeClock, tieBreak TieBreak) *testPeer {
	t.Helper()
	renderer := scene.NewMemory()
	renderer.Add(scene.Entity{Kind: scene.Rectangle, Width: 1000, Height: 1000, Transient: true})

	engine, err := New(Config{
		Renderer: renderer,
		Store:    shared,
		Clock:    fake,
		PeerID:   name,
		TieBreak: tieBreak,
		NewID:    func() string { return testutil.UniqueID(name) },
	})
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	if _, err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start(%s): %v", name, err)
	}
	// Let the bootstrap's grace period close before the test edits.
	fake.Advance(settle)
	return &testPeer{scene: renderer, engine: engine}
}

func (p *testPeer) mustLookup(t *testing.T, id string) scene.Entity {
	t.Helper()
	entity, ok := p.scene.Lookup(id)
	if !ok {
		t.Fatalf("entity %s not in scene", id)
	}
	return entity
}

func (p *testPeer) move(t *testing.T, id string, left float64) {
	t.Helper()
	entity := p.mustLookup(t, id)
	p.scene.Mutate(entity.Handle, func(target *scene.Entity) { target.Left = left })
}

func synchronizedCount(renderer *scene.Memory) int {
	count := 0
	for _, entity := range renderer.Entities() {
		if !entity.Transient {
			count++
		}
	}
	return count
}

func sceneFingerprint(t *testing.T, renderer *scene.Memory) string {
	t.Helper()
	fingerprint, err := SceneFingerprint(renderer)
	if err != nil {
		t.Fatalf("SceneFingerprint: %v", err)
	}
	return fingerprint
}

func storeFingerprint(t *testing.T, shared store.Store) string {
	t.Helper()
	fingerprint, err := StoreFingerprint(context.Background(), shared)
	if err != nil {
		t.Fatalf("StoreFingerprint: %v", err)
	}
	return fingerprint
}

func TestCoalescingWritesFinalStateOnce(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	peer := newPeer(t, "a", shared, fake, TieBreakNone)

	peer.scene.Add(scene.Entity{ID: "box", Kind: scene.Rectangle, Width: 10, Height: 10, Fill: "#fff"})
	fake.Advance(settle)
	writesBefore := shared.Writes()

	for i := 1; i <= 10; i++ {
		peer.move(t, "box", float64(i*10))
		fake.Advance(time.Millisecond)
	}
	fake.Advance(DefaultCoalesceWindow)

	if writes := shared.Writes() - writesBefore; writes != 1 {
		t.Fatalf("store writes = %d, want 1", writes)
	}
	stored, _ := shared.Get("box")
	if stored.X != 100 {
		t.Fatalf("stored x = %v, want 100 (the tenth event)", stored.X)
	}
	if stored.Version != 2 || stored.Origin != "a" {
		t.Fatalf("stored version/origin = %d/%q, want 2/a", stored.Version, stored.Origin)
	}
	if stats := peer.engine.Stats(); stats.Coalesced != 9 {
		t.Errorf("Coalesced = %d, want 9", stats.Coalesced)
	}
}

func TestEchoSuppressionSinglePropagation(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	alpha := newPeer(t, "alpha", shared, fake, TieBreakNone)
	beta := newPeer(t, "beta", shared, fake, TieBreakNone)

	alpha.scene.Add(scene.Entity{ID: "shared", Kind: scene.Ellipse, RadiusX: 5, RadiusY: 5, Fill: "#f00"})
	fake.Advance(settle)
	beta.mustLookup(t, "shared")

	before := alpha.engine.Stats().Propagations + beta.engine.Stats().Propagations
	alpha.move(t, "shared", 42)
	fake.Advance(settle)
	after := alpha.engine.Stats().Propagations + beta.engine.Stats().Propagations

	if after-before != 1 {
		t.Fatalf("propagations across one edit cycle = %d, want 1", after-before)
	}
	if got := beta.mustLookup(t, "shared"); got.Left != 42 || got.Version != 2 {
		t.Fatalf("beta entity = left %v version %d, want left 42 version 2", got.Left, got.Version)
	}
	if beta.engine.Stats().Suppressed == 0 {
		t.Error("beta suppressed no echo events")
	}
}

func TestDeletionPropagation(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	alpha := newPeer(t, "alpha", shared, fake, TieBreakNone)
	beta := newPeer(t, "beta", shared, fake, TieBreakNone)

	alpha.scene.Add(scene.Entity{ID: "doomed", Kind: scene.Triangle, Width: 3, Height: 4, Fill: "#0f0"})
	fake.Advance(settle)
	beta.mustLookup(t, "doomed")

	alpha.scene.Remove(alpha.mustLookup(t, "doomed").Handle)

	// Deletion is immediate: no window to wait out.
	if _, ok := shared.Get("doomed"); ok {
		t.Fatal("store still has the deleted entity")
	}
	if _, ok := beta.scene.Lookup("doomed"); ok {
		t.Fatal("beta still has the deleted entity")
	}
	if synchronizedCount(beta.scene) != 0 {
		t.Fatalf("beta has %d synchronized entities, want 0", synchronizedCount(beta.scene))
	}
}

func TestDeletionCancelsPendingWrite(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	peer := newPeer(t, "a", shared, fake, TieBreakNone)

	added := peer.scene.Add(scene.Entity{ID: "brief", Kind: scene.Rectangle, Fill: "#000"})
	peer.move(t, "brief", 5)
	peer.scene.Remove(added.Handle)
	fake.Advance(settle)

	if _, ok := shared.Get("brief"); ok {
		t.Fatal("cancelled write reached the store")
	}
	if stats := peer.engine.Stats(); stats.Propagations != 0 {
		t.Fatalf("Propagations = %d, want 0", stats.Propagations)
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	ctx := context.Background()
	for _, entity := range []wire.Entity{
		{ID: "one", Kind: wire.KindRectangle, Width: 10, Height: 10, Fill: "#111", Version: 3},
		{ID: "two", Kind: wire.KindSegment, Fill: "#222", X1: 10, Y1: 10, X2: 50, Y2: 80, Version: 1},
		{ID: "three", Kind: wire.KindText, Width: 40, Height: 10, Fill: "#333", FontSize: 32, Version: 7},
	} {
		shared.Set(ctx, entity.ID, entity)
	}

	peer := newPeer(t, "a", shared, fake, TieBreakNone)
	first := sceneFingerprint(t, peer.scene)

	report := peer.engine.Bootstrap()
	if report.Added != 3 || report.Removed != 3 {
		t.Fatalf("second bootstrap report = %s, want 3 added and 3 removed", report)
	}
	if synchronizedCount(peer.scene) != 3 {
		t.Fatalf("scene has %d synchronized entities, want 3", synchronizedCount(peer.scene))
	}
	if peer.scene.Len() != 4 {
		t.Fatalf("scene has %d entities, want 4 (transient grid kept)", peer.scene.Len())
	}
	if second := sceneFingerprint(t, peer.scene); second != first {
		t.Fatalf("scene changed across bootstraps: %s vs %s", first, second)
	}
	if segment := peer.mustLookup(t, "two"); segment.X2 != 50 || segment.Y2 != 80 {
		t.Fatalf("segment endpoint = (%v, %v), want (50, 80)", segment.X2, segment.Y2)
	}

	// Bootstrap's own scene writes are echoes, not edits.
	fake.Advance(settle)
	if stats := peer.engine.Stats(); stats.Propagations != 0 || stats.Deletes != 0 {
		t.Fatalf("bootstrap caused propagation: %+v", stats)
	}
}

func TestVersionMonotonicity(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	ctx := context.Background()
	base := wire.Entity{ID: "v", Kind: wire.KindRectangle, Width: 10, Height: 10, Fill: "#aaa", Version: 5}
	shared.Set(ctx, "v", base)
	peer := newPeer(t, "a", shared, fake, TieBreakNone)

	for _, version := range []uint64{5, 4, 0} {
		stale := base
		stale.Version = version
		stale.Fill = "#bad"
		shared.Set(ctx, "v", stale)
		if got := peer.mustLookup(t, "v"); got.Fill != "#aaa" || got.Version != 5 {
			t.Fatalf("version %d applied over 5: %+v", version, got)
		}
	}

	newer := base
	newer.Version = 6
	newer.Fill = "#0a0"
	newer.X = 33
	for range 2 {
		shared.Set(ctx, "v", newer)
	}
	got := peer.mustLookup(t, "v")
	if got.Fill != "#0a0" || got.Left != 33 || got.Version != 6 {
		t.Fatalf("version 6 not applied: %+v", got)
	}
	if synchronizedCount(peer.scene) != 1 {
		t.Fatalf("scene has %d synchronized entities after repeated apply, want 1", synchronizedCount(peer.scene))
	}
	if stats := peer.engine.Stats(); stats.Applied != 1 {
		t.Fatalf("Applied = %d, want 1", stats.Applied)
	}
}

func TestNewEntityGetsID(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	peer := newPeer(t, "a", shared, fake, TieBreakNone)

	added := peer.scene.Add(scene.Entity{Kind: scene.Text, Text: "anonymous", FontSize: 12, Fill: "#000"})
	fake.Advance(settle)

	entries, _ := shared.Entries(context.Background())
	if len(entries) != 1 {
		t.Fatalf("store has %d entries, want 1", len(entries))
	}
	id := entries[0].ID
	if id == "" {
		t.Fatal("entity propagated without an id")
	}
	if got := peer.mustLookup(t, id); got.Handle != added.Handle || got.Version != 1 {
		t.Fatalf("local entity = %+v, want the added entity at version 1", got)
	}
}

func TestUnknownKindDoesNotBlockSiblings(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	ctx := context.Background()
	shared.Set(ctx, "bad", wire.Entity{ID: "bad", Kind: "hexagon", Fill: "#000"})
	shared.Set(ctx, "good", wire.Entity{ID: "good", Kind: "rect", Fill: "#000", Width: 5, Height: 5})

	peer := newPeer(t, "a", shared, fake, TieBreakNone)
	if _, ok := peer.scene.Lookup("good"); !ok {
		t.Fatal("valid sibling of an unknown kind was not created")
	}
	if synchronizedCount(peer.scene) != 1 {
		t.Fatalf("scene has %d synchronized entities, want 1", synchronizedCount(peer.scene))
	}
	if peer.engine.Stats().Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", peer.engine.Stats().Skipped)
	}

	report := peer.engine.Reconcile()
	if report.Skipped != 1 || report.Added != 0 {
		t.Fatalf("reconcile report = %s, want one skip and nothing added", report)
	}
}

func TestUnpublishedEntitySurvivesReconcile(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	peer := newPeer(t, "a", shared, fake, TieBreakNone)

	peer.scene.Add(scene.Entity{ID: "draft", Kind: scene.Rectangle, Fill: "#000"})
	shared.Set(context.Background(), "other", wire.Entity{ID: "other", Kind: wire.KindEllipse, Fill: "#fff", Width: 2, Height: 2, Version: 1})

	if _, ok := peer.scene.Lookup("draft"); !ok {
		t.Fatal("reconcile removed an entity whose first write is pending")
	}
	fake.Advance(settle)
	if _, ok := shared.Get("draft"); !ok {
		t.Fatal("draft never reached the store")
	}
}

func TestClearRemovesEverywhere(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	alpha := newPeer(t, "alpha", shared, fake, TieBreakNone)
	beta := newPeer(t, "beta", shared, fake, TieBreakNone)

	for _, id := range []string{"x", "y", "z"} {
		alpha.scene.Add(scene.Entity{ID: id, Kind: scene.Rectangle, Width: 1, Height: 1, Fill: "#000"})
	}
	fake.Advance(settle)
	if synchronizedCount(beta.scene) != 3 {
		t.Fatalf("beta has %d entities before clear, want 3", synchronizedCount(beta.scene))
	}

	deleted, err := beta.engine.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("Clear deleted %d, want 3", deleted)
	}
	fake.Advance(settle)

	for name, peer := range map[string]*testPeer{"alpha": alpha, "beta": beta} {
		if count := synchronizedCount(peer.scene); count != 0 {
			t.Errorf("%s has %d synchronized entities after clear", name, count)
		}
		if peer.scene.Len() != 1 {
			t.Errorf("%s lost its transient grid", name)
		}
	}
	if entries, _ := shared.Entries(context.Background()); len(entries) != 0 {
		t.Fatalf("store has %d entries after clear", len(entries))
	}
}

func TestStopFlushesPendingWrites(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	peer := newPeer(t, "a", shared, fake, TieBreakNone)

	peer.scene.Add(scene.Entity{ID: "late", Kind: scene.Rectangle, Fill: "#000"})
	if peer.engine.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", peer.engine.Pending())
	}
	peer.engine.Stop()

	if _, ok := shared.Get("late"); !ok {
		t.Fatal("Stop did not flush the pending write")
	}
	peer.scene.Add(scene.Entity{ID: "ignored", Kind: scene.Rectangle, Fill: "#000"})
	fake.Advance(settle)
	if _, ok := shared.Get("ignored"); ok {
		t.Fatal("stopped engine propagated an edit")
	}
}

func TestTieBreak(t *testing.T) {
	for _, test := range []struct {
		tieBreak TieBreak
		wantFill string
	}{
		{TieBreakNone, "#00f"},
		{TieBreakStore, "#f00"},
	} {
		t.Run(test.tieBreak.String(), func(t *testing.T) {
			fake := clock.Fake(epoch)
			shared := store.NewMemory()
			ctx := context.Background()
			shared.Set(ctx, "contested", wire.Entity{ID: "contested", Kind: wire.KindRectangle, Width: 10, Height: 10, Fill: "#fff", Version: 1})
			peer := newPeer(t, "beta", shared, fake, test.tieBreak)

			entity := peer.mustLookup(t, "contested")
			peer.scene.Mutate(entity.Handle, func(target *scene.Entity) { target.Fill = "#00f" })
			fake.Advance(settle)

			// Another peer wrote the same next version and its write
			// landed last.
			shared.Set(ctx, "contested", wire.Entity{ID: "contested", Kind: wire.KindRectangle, Width: 10, Height: 10, Fill: "#f00", Version: 2, Origin: "gamma"})
			fake.Advance(settle)

			if got := peer.mustLookup(t, "contested"); got.Fill != test.wantFill {
				t.Fatalf("fill = %q, want %q", got.Fill, test.wantFill)
			}
		})
	}
}

func TestPeersConverge(t *testing.T) {
	fake := clock.Fake(epoch)
	shared := store.NewMemory()
	alpha := newPeer(t, "alpha", shared, fake, TieBreakNone)
	beta := newPeer(t, "beta", shared, fake, TieBreakNone)

	alpha.scene.Add(scene.Entity{ID: "a1", Kind: scene.Rectangle, Width: 10, Height: 20, Fill: "#100"})
	beta.scene.Add(scene.Entity{ID: "b1", Kind: scene.Segment, X1: 10, Y1: 10, X2: 50, Y2: 80, Fill: "#200", Stroke: "#200", StrokeWidth: 2})
	fake.Advance(settle)

	beta.move(t, "a1", 15)
	fake.Advance(10 * time.Millisecond)
	alpha.scene.Add(scene.Entity{Kind: scene.Text, Text: "note", FontSize: 32, FontFamily: "Arial", Width: 30, Height: 12, Fill: "#300"})
	fake.Advance(settle)
	alpha.scene.Remove(alpha.mustLookup(t, "b1").Handle)
	fake.Advance(settle)

	want := storeFingerprint(t, shared)
	if got := sceneFingerprint(t, alpha.scene); got != want {
		t.Errorf("alpha fingerprint %s, store %s", got, want)
	}
	if got := sceneFingerprint(t, beta.scene); got != want {
		t.Errorf("beta fingerprint %s, store %s", got, want)
	}
	if synchronizedCount(alpha.scene) != 2 || synchronizedCount(beta.scene) != 2 {
		t.Fatalf("entity counts = %d, %d; want 2, 2", synchronizedCount(alpha.scene), synchronizedCount(beta.scene))
	}
	if got := alpha.mustLookup(t, "a1"); got.Left != 15 {
		t.Fatalf("alpha a1 left = %v, want 15 from beta's edit", got.Left)
	}
}
