// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scenesync/cmd/scenesync/cli"
	"github.com/bureau-foundation/scenesync/lib/clock"
	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/scenesync"
	"github.com/bureau-foundation/scenesync/lib/store"
)

// demoSettle closes every coalescing window and grace period opened
// by one demo step.
const demoSettle = time.Second

type demoPeer struct {
	name   string
	scene  *scene.Memory
	engine *scenesync.Engine
}

func (a *app) demoCommand() *cli.Command {
	var (
		tieBreak string
		conflict bool
	)
	return &cli.Command{
		Name:    "demo",
		Summary: "Run two peers in-process and check that they converge",
		Description: `Run two peers, alpha and beta, against one in-memory store on a
simulated clock. They add, move, restyle, and delete entities, then
the demo compares both scene fingerprints with the store's.

With --conflict both peers also edit the same entity within one
coalescing window. Under tie-break "none" such a race can leave the
losing peer on its own value until the next edit; "store" resolves it
toward the store.

Exits 1 when the peers diverge.`,
		Usage: "scenesync demo [flags]",
		Flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&tieBreak, "tie-break", "none", "equal-version handling: none or store")
			flagSet.BoolVar(&conflict, "conflict", false, "add a simultaneous edit of one entity")
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("demo takes no positional arguments, got %q", args[0])
			}
			parsed, err := scenesync.ParseTieBreak(tieBreak)
			if err != nil {
				return err
			}
			return a.demo(parsed, conflict)
		},
	}
}

func (a *app) demo(tieBreak scenesync.TieBreak, conflict bool) error {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	shared := store.NewMemory()

	var peers []*demoPeer
	for _, name := range []string{"alpha", "beta"} {
		peer, err := startDemoPeer(name, shared, fake, tieBreak)
		if err != nil {
			return err
		}
		defer peer.engine.Stop()
		peers = append(peers, peer)
	}
	alpha, beta := peers[0], peers[1]

	step := func(description string, edit func()) {
		fmt.Fprintf(a.stdout, "- %s\n", description)
		edit()
		fake.Advance(demoSettle)
	}
	step("alpha adds a rectangle", func() {
		alpha.scene.Add(scene.Entity{ID: "card", Kind: scene.Rectangle, Left: 10, Top: 10, Width: 120, Height: 80, Fill: "#ffd54f"})
	})
	step("beta adds an ellipse and a caption", func() {
		beta.scene.Add(scene.Entity{ID: "dot", Kind: scene.Ellipse, Left: 200, Top: 40, RadiusX: 20, RadiusY: 20, Fill: "#e53935"})
		beta.scene.Add(scene.Entity{ID: "caption", Kind: scene.Text, Left: 10, Top: 100, Width: 60, Height: 24, Text: "todo", FontSize: 24, FontFamily: "Arial", Fill: "#212121"})
	})
	step("beta drags the rectangle in ten small moves", func() {
		for i := 1; i <= 10; i++ {
			beta.mutate("card", func(entity *scene.Entity) { entity.Left = 10 + float64(i*5) })
			fake.Advance(2 * time.Millisecond)
		}
	})
	step("alpha recolors the ellipse", func() {
		alpha.mutate("dot", func(entity *scene.Entity) { entity.Fill = "#43a047" })
	})
	step("alpha adds a segment without an id", func() {
		alpha.scene.Add(scene.Entity{Kind: scene.Segment, X1: 0, Y1: 0, X2: 100, Y2: 50, Fill: "#000", Stroke: "#000", StrokeWidth: 2})
	})
	if conflict {
		step("both peers edit the caption at once", func() {
			alpha.mutate("caption", func(entity *scene.Entity) { entity.Text = "done (alpha)" })
			beta.mutate("caption", func(entity *scene.Entity) { entity.Text = "done (beta)" })
		})
	}
	step("beta deletes the ellipse", func() {
		if entity, ok := beta.scene.Lookup("dot"); ok {
			beta.scene.Remove(entity.Handle)
		}
	})

	want, err := scenesync.StoreFingerprint(context.Background(), shared)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\nstore fingerprint %s (%d writes)\n\n", want, shared.Writes())

	converged := true
	table := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(table, "PEER\tENTITIES\tFINGERPRINT\tWRITES\tCOALESCED\tSUPPRESSED\tSTATE")
	for _, peer := range peers {
		got, err := scenesync.SceneFingerprint(peer.scene)
		if err != nil {
			return err
		}
		state := "converged"
		if got != want {
			state = "diverged"
			converged = false
		}
		stats := peer.engine.Stats()
		fmt.Fprintf(table, "%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
			peer.name, synchronizedCount(peer.scene), got,
			stats.Propagations, stats.Coalesced, stats.Suppressed, state)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	if !converged {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func startDemoPeer(name string, shared store.Store, fake *clock.FakeClock, tieBreak scenesync.TieBreak) (*demoPeer, error) {
	renderer := scene.NewMemory()
	// Every peer has a background grid that is never synchronized.
	renderer.Add(scene.Entity{Kind: scene.Rectangle, Width: 1000, Height: 1000, Fill: "#fafafa", Transient: true})

	sequence := 0
	engine, err := scenesync.New(scenesync.Config{
		Renderer: renderer,
		Store:    shared,
		Clock:    fake,
		PeerID:   name,
		TieBreak: tieBreak,
		NewID: func() string {
			sequence++
			return fmt.Sprintf("%s-%d", name, sequence)
		},
	})
	if err != nil {
		return nil, err
	}
	if _, err := engine.Start(context.Background()); err != nil {
		return nil, err
	}
	fake.Advance(demoSettle)
	return &demoPeer{name: name, scene: renderer, engine: engine}, nil
}

// mutate edits the entity with id, if this peer has it.
func (p *demoPeer) mutate(id string, edit func(*scene.Entity)) {
	if entity, ok := p.scene.Lookup(id); ok {
		p.scene.Mutate(entity.Handle, edit)
	}
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

