// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"math"
)

// Kind is the renderer-native shape type.
type Kind int

const (
	Rectangle Kind = iota + 1
	Ellipse
	Triangle
	Segment
	Text
)

func (k Kind) String() string {
	switch k {
	case Rectangle:
		return "rectangle"
	case Ellipse:
		return "ellipse"
	case Triangle:
		return "triangle"
	case Segment:
		return "segment"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Rect is an axis-aligned box in scene coordinates.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Entity is one object on the local scene.
//
// Width and Height are raw, pre-scale dimensions for rectangles,
// triangles, and text. Ellipses store their raw radii instead, and
// segments are defined by their endpoints. ScaleX and ScaleY multiply
// the raw size to give the visual size.
type Entity struct {
	Handle uint64
	ID     string
	Kind   Kind

	Left, Top     float64
	Width, Height float64
	RadiusX       float64
	RadiusY       float64

	Fill        string
	Stroke      string
	StrokeWidth float64

	ScaleX, ScaleY float64
	Angle          float64

	X1, Y1, X2, Y2 float64

	Text       string
	FontSize   float64
	FontFamily string

	// Version is the last version this peer wrote or applied.
	Version uint64

	// Transient entities (grid, background) are never synchronized.
	Transient bool

	// Bounds is the cached axis-aligned bounding box, maintained by
	// Recompute.
	Bounds Rect
}

// Synchronized reports whether the entity takes part in
// synchronization.
func (e *Entity) Synchronized() bool {
	return !e.Transient
}

// RawSize returns the unscaled width and height of the entity.
func (e *Entity) RawSize() (width, height float64) {
	switch e.Kind {
	case Ellipse:
		return 2 * e.RadiusX, 2 * e.RadiusY
	case Segment:
		return math.Abs(e.X2 - e.X1), math.Abs(e.Y2 - e.Y1)
	default:
		return e.Width, e.Height
	}
}

// Recompute refreshes the cached bounding box after a geometry change.
// Rotation is about the top-left anchor.
func (e *Entity) Recompute() {
	if e.Kind == Segment {
		e.Bounds = Rect{
			Left:   math.Min(e.X1, e.X2),
			Top:    math.Min(e.Y1, e.Y2),
			Right:  math.Max(e.X1, e.X2),
			Bottom: math.Max(e.Y1, e.Y2),
		}
		return
	}

	width, height := e.RawSize()
	width *= scaleOrOne(e.ScaleX)
	height *= scaleOrOne(e.ScaleY)

	radians := e.Angle * math.Pi / 180
	sin, cos := math.Sincos(radians)
	corners := [4][2]float64{{0, 0}, {width, 0}, {width, height}, {0, height}}

	bounds := Rect{Left: math.Inf(1), Top: math.Inf(1), Right: math.Inf(-1), Bottom: math.Inf(-1)}
	for _, corner := range corners {
		x := e.Left + corner[0]*cos - corner[1]*sin
		y := e.Top + corner[0]*sin + corner[1]*cos
		bounds.Left = math.Min(bounds.Left, x)
		bounds.Top = math.Min(bounds.Top, y)
		bounds.Right = math.Max(bounds.Right, x)
		bounds.Bottom = math.Max(bounds.Bottom, y)
	}
	e.Bounds = bounds
}

func scaleOrOne(scale float64) float64 {
	if scale == 0 {
		return 1
	}
	return scale
}
