// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"errors"
	"math"
	"testing"

	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

const tolerance = 1e-6

func sampleEntities() []scene.Entity {
	return []scene.Entity{
		{ID: "rectangle", Kind: scene.Rectangle, Left: 10, Top: 20, Width: 100, Height: 50,
			Fill: "#ff0000", Stroke: "#000000", StrokeWidth: 2, ScaleX: 1.5, ScaleY: 0.75, Angle: 30, Version: 4},
		{ID: "ellipse", Kind: scene.Ellipse, Left: -5, Top: 7.25, RadiusX: 40, RadiusY: 15,
			Fill: "#00ff00", ScaleX: 3, ScaleY: 1.1, Version: 1},
		{ID: "triangle", Kind: scene.Triangle, Left: 0.1, Top: 0.2, Width: 33.3, Height: 66.6,
			Fill: "#0000ff", ScaleX: 1, ScaleY: 1, Angle: 359.5},
		{ID: "segment", Kind: scene.Segment, Left: 10, Top: 10, X1: 10, Y1: 10, X2: 50, Y2: 80,
			Fill: "#123456", Stroke: "#654321", StrokeWidth: 3, ScaleX: 1, ScaleY: 1, Version: 9},
		{ID: "text", Kind: scene.Text, Left: 300, Top: 400, Width: 120, Height: 40, Fill: "#111111",
			Text: "hello", FontSize: 32, FontFamily: "Inter", ScaleX: 2, ScaleY: 2, Version: 2},
	}
}

func TestRoundTripEveryKind(t *testing.T) {
	adapter := NewAdapter()
	for _, original := range sampleEntities() {
		t.Run(original.ID, func(t *testing.T) {
			encoded, err := adapter.ToWire(original)
			if err != nil {
				t.Fatalf("ToWire: %v", err)
			}
			decoded, err := adapter.FromWire(encoded)
			if err != nil {
				t.Fatalf("FromWire: %v", err)
			}
			if decoded.ID != original.ID || decoded.Kind != original.Kind || decoded.Version != original.Version {
				t.Fatalf("identity changed: got (%s, %v, %d), want (%s, %v, %d)",
					decoded.ID, decoded.Kind, decoded.Version, original.ID, original.Kind, original.Version)
			}
			requireGeometry(t, decoded, original)
		})
	}
}

func TestToWireCarriesVisualExtents(t *testing.T) {
	adapter := NewAdapter()
	encoded, err := adapter.ToWire(scene.Entity{ID: "r", Kind: scene.Rectangle, Width: 100, Height: 50, ScaleX: 2, ScaleY: 3, Fill: "#fff"})
	if err != nil {
		t.Fatalf("ToWire: %v", err)
	}
	if encoded.Width != 200 || encoded.Height != 150 {
		t.Fatalf("extents = (%v, %v), want (200, 150)", encoded.Width, encoded.Height)
	}
	if encoded.ScaleX != 2 || encoded.ScaleY != 3 {
		t.Fatalf("scale = (%v, %v), want (2, 3)", encoded.ScaleX, encoded.ScaleY)
	}

	ellipse, err := adapter.ToWire(scene.Entity{ID: "e", Kind: scene.Ellipse, RadiusX: 10, RadiusY: 5, ScaleX: 2, Fill: "#fff"})
	if err != nil {
		t.Fatalf("ToWire: %v", err)
	}
	if ellipse.Width != 40 || ellipse.Height != 10 {
		t.Fatalf("ellipse extents = (%v, %v), want (40, 10)", ellipse.Width, ellipse.Height)
	}
}

func TestSegmentAndTextFidelity(t *testing.T) {
	adapter := NewAdapter()

	segment := scene.Entity{ID: "s", Kind: scene.Segment, X1: 10, Y1: 10, X2: 50, Y2: 80, Fill: "#000"}
	encoded, _ := adapter.ToWire(segment)
	decoded, err := adapter.FromWire(encoded)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if decoded.X1 != 10 || decoded.Y1 != 10 || decoded.X2 != 50 || decoded.Y2 != 80 {
		t.Fatalf("endpoints = (%v,%v)-(%v,%v), want (10,10)-(50,80)", decoded.X1, decoded.Y1, decoded.X2, decoded.Y2)
	}

	text := scene.Entity{ID: "t", Kind: scene.Text, Text: "label", FontSize: 32, FontFamily: "Arial", Fill: "#000"}
	encoded, _ = adapter.ToWire(text)
	decoded, err = adapter.FromWire(encoded)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if decoded.FontSize != 32 {
		t.Fatalf("fontSize = %v, want 32", decoded.FontSize)
	}
}

func TestFromWireAppliesDefaultsAndAliases(t *testing.T) {
	adapter := NewAdapter()
	decoded, err := adapter.FromWire(wire.Entity{ID: "t", Kind: wire.KindText, Fill: "#000", Width: 10, Height: 10})
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if decoded.Text != "Text" || decoded.FontSize != 20 || decoded.FontFamily != "Arial" {
		t.Errorf("text defaults = (%q, %v, %q)", decoded.Text, decoded.FontSize, decoded.FontFamily)
	}
	if decoded.ScaleX != 1 || decoded.ScaleY != 1 || decoded.Angle != 0 || decoded.Version != 0 {
		t.Errorf("transform defaults = %+v", decoded)
	}

	circle, err := adapter.FromWire(wire.Entity{ID: "c", Kind: "circle", Fill: "#000", Width: 20, Height: 20, ScaleX: 2, ScaleY: 2})
	if err != nil {
		t.Fatalf("FromWire(circle): %v", err)
	}
	if circle.Kind != scene.Ellipse || circle.RadiusX != 5 {
		t.Errorf("circle decoded as %v with radius %v, want ellipse radius 5", circle.Kind, circle.RadiusX)
	}
}

func TestSoftFailures(t *testing.T) {
	adapter := NewAdapter()

	if _, err := adapter.ToWire(scene.Entity{Kind: scene.Rectangle}); !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("ToWire without id: %v, want ErrMissingIdentity", err)
	}
	if _, err := adapter.ToWire(scene.Entity{ID: "x", Kind: scene.Kind(99)}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ToWire unknown kind: %v, want ErrUnknownKind", err)
	}
	if _, err := adapter.FromWire(wire.Entity{ID: "x", Kind: "hexagon", Fill: "#000"}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("FromWire unknown kind: %v, want ErrUnknownKind", err)
	}
	if _, err := adapter.FromWire(wire.Entity{Kind: wire.KindRectangle}); !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("FromWire without id: %v, want ErrMissingIdentity", err)
	}
	entity := scene.Entity{ID: "x", Kind: scene.Rectangle}
	if err := adapter.ApplyWireUpdate(&entity, wire.Entity{ID: "x", Kind: "hexagon"}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ApplyWireUpdate unknown kind: %v, want ErrUnknownKind", err)
	}
}

func TestApplyWireUpdateKeepsIdentityAndRecomputes(t *testing.T) {
	adapter := NewAdapter()
	entity := scene.Entity{Handle: 7, ID: "r", Kind: scene.Rectangle, Width: 10, Height: 10, Version: 1}
	entity.Recompute()

	update := wire.Entity{ID: "other", Kind: wire.KindRectangle, X: 5, Y: 5, Width: 40, Height: 20, ScaleX: 2, ScaleY: 1, Fill: "#abc", Version: 2}
	if err := adapter.ApplyWireUpdate(&entity, update); err != nil {
		t.Fatalf("ApplyWireUpdate: %v", err)
	}
	if entity.ID != "r" || entity.Handle != 7 {
		t.Fatalf("identity changed to (%s, %d)", entity.ID, entity.Handle)
	}
	if entity.Version != 2 || entity.Width != 20 || entity.Fill != "#abc" {
		t.Fatalf("update not applied: %+v", entity)
	}
	if entity.Bounds != (scene.Rect{Left: 5, Top: 5, Right: 45, Bottom: 25}) {
		t.Fatalf("bounds = %+v, want recomputed", entity.Bounds)
	}
}

func TestApplyWireUpdateIdempotent(t *testing.T) {
	adapter := NewAdapter()
	update := wire.Entity{ID: "t", Kind: wire.KindText, X: 1, Y: 2, Width: 30, Height: 10, Fill: "#000", Text: "hi", FontSize: 14, Version: 5}

	once := scene.Entity{ID: "t", Kind: scene.Text}
	adapter.ApplyWireUpdate(&once, update)
	twice := once
	adapter.ApplyWireUpdate(&twice, update)
	if once != twice {
		t.Fatalf("second apply changed the entity:\n once  %+v\n twice %+v", once, twice)
	}
}

func requireGeometry(t *testing.T, got, want scene.Entity) {
	t.Helper()
	numbers := []struct {
		name      string
		got, want float64
	}{
		{"left", got.Left, want.Left},
		{"top", got.Top, want.Top},
		{"width", got.Width, want.Width},
		{"height", got.Height, want.Height},
		{"radiusX", got.RadiusX, want.RadiusX},
		{"radiusY", got.RadiusY, want.RadiusY},
		{"strokeWidth", got.StrokeWidth, want.StrokeWidth},
		{"scaleX", got.ScaleX, want.ScaleX},
		{"scaleY", got.ScaleY, want.ScaleY},
		{"angle", got.Angle, want.Angle},
		{"x1", got.X1, want.X1},
		{"y1", got.Y1, want.Y1},
		{"x2", got.X2, want.X2},
		{"y2", got.Y2, want.Y2},
		{"fontSize", got.FontSize, want.FontSize},
	}
	for _, number := range numbers {
		if math.Abs(number.got-number.want) > tolerance {
			t.Errorf("%s = %v, want %v", number.name, number.got, number.want)
		}
	}
	if got.Fill != want.Fill || got.Stroke != want.Stroke {
		t.Errorf("style = (%q, %q), want (%q, %q)", got.Fill, got.Stroke, want.Fill, want.Stroke)
	}
	if got.Text != want.Text || got.FontFamily != want.FontFamily {
		t.Errorf("text = (%q, %q), want (%q, %q)", got.Text, got.FontFamily, want.Text, want.FontFamily)
	}
}
