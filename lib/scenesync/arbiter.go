// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"fmt"
	"math"

	"github.com/bureau-foundation/scenesync/lib/wire"
)

// TieBreak selects what happens when an incoming snapshot carries the
// same version as the local entity.
type TieBreak int

const (
	// TieBreakNone ignores equal versions. Two peers that write the
	// same next version concurrently may keep different content until
	// one of them writes again.
	TieBreakNone TieBreak = iota

	// TieBreakStore applies an equal-version snapshot written by
	// another peer when its content differs from the local entity, so
	// every peer converges on whatever the store kept.
	TieBreakStore
)

func (t TieBreak) String() string {
	switch t {
	case TieBreakNone:
		return "none"
	case TieBreakStore:
		return "store"
	default:
		return fmt.Sprintf("TieBreak(%d)", int(t))
	}
}

// ParseTieBreak accepts "none" (or the empty string) and "store".
func ParseTieBreak(name string) (TieBreak, error) {
	switch name {
	case "", "none":
		return TieBreakNone, nil
	case "store":
		return TieBreakStore, nil
	default:
		return TieBreakNone, fmt.Errorf("scenesync: unknown tie-break %q (want none or store)", name)
	}
}

// Arbiter decides whether an incoming snapshot replaces the local
// entity. The base rule is last-writer-wins by version: strictly newer
// versions win, everything else is stale.
type Arbiter struct {
	TieBreak TieBreak

	// Self is this peer's id. Snapshots that this peer wrote never win
	// a tie.
	Self string
}

// Accept returns nil when incoming should be applied over local, or
// ErrStaleVersion. local is the wire form of the local entity.
func (a Arbiter) Accept(local, incoming wire.Entity) error {
	if incoming.Version > local.Version {
		return nil
	}
	if incoming.Version < local.Version || a.TieBreak != TieBreakStore {
		return ErrStaleVersion
	}
	if incoming.Origin == "" || incoming.Origin == a.Self || equivalent(local, incoming) {
		return ErrStaleVersion
	}
	return nil
}

// NextVersion is the version a peer writes when propagating a change
// to an entity it knows at version local.
func NextVersion(local uint64) uint64 {
	return local + 1
}

// equivalent compares the visible content of two snapshots, ignoring
// version and origin. Floating-point fields compare within a small
// tolerance since extents pass through a multiply and a divide.
func equivalent(a, b wire.Entity) bool {
	a, b = a.Normalize(), b.Normalize()
	numbers := [][2]float64{
		{a.X, b.X}, {a.Y, b.Y}, {a.Width, b.Width}, {a.Height, b.Height},
		{a.StrokeWidth, b.StrokeWidth}, {a.ScaleX, b.ScaleX}, {a.ScaleY, b.ScaleY},
		{a.Angle, b.Angle}, {a.FontSize, b.FontSize},
		{a.X1, b.X1}, {a.Y1, b.Y1}, {a.X2, b.X2}, {a.Y2, b.Y2},
	}
	for _, pair := range numbers {
		if math.Abs(pair[0]-pair[1]) > 1e-9*math.Max(1, math.Abs(pair[0])) {
			return false
		}
	}
	return a.ID == b.ID && a.Kind == b.Kind &&
		a.Fill == b.Fill && a.Stroke == b.Stroke &&
		a.Text == b.Text && a.FontFamily == b.FontFamily
}
