// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"slices"
)

// Kind is the shape tag of a wire entity. Unrecognized tags are kept
// as-is so that a reader can skip them without failing the whole
// record.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindTriangle  Kind = "triangle"
	KindSegment   Kind = "segment"
	KindText      Kind = "text"
)

// Kinds lists the canonical kinds in a stable order.
var Kinds = []Kind{KindRectangle, KindEllipse, KindTriangle, KindSegment, KindText}

// aliases maps the tags written by older clients onto canonical kinds.
var aliases = map[Kind]Kind{
	"rect":   KindRectangle,
	"circle": KindEllipse,
	"line":   KindSegment,
}

// ParseKind returns the canonical kind for name, accepting legacy
// aliases. The boolean is false for unrecognized names.
func ParseKind(name string) (Kind, bool) {
	kind := Kind(name)
	if canonical, ok := aliases[kind]; ok {
		return canonical, true
	}
	return kind, kind.Known()
}

// Known reports whether k is a canonical kind.
func (k Kind) Known() bool {
	return slices.Contains(Kinds, k)
}

// Defaults applied on read.
const (
	DefaultScale             = 1.0
	DefaultText              = "Text"
	DefaultFontSize          = 20.0
	DefaultFontFamily        = "Arial"
	DefaultSegmentStrokeSize = 2.0
)

// Entity is the wire form of one scene entity. Width and Height are
// final visual extents (raw size multiplied by scale); the scale
// factors travel alongside so readers can recover the raw size.
type Entity struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Fill   string  `json:"fill"`

	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`

	ScaleX float64 `json:"scaleX,omitempty"`
	ScaleY float64 `json:"scaleY,omitempty"`
	// Angle is the rotation in degrees.
	Angle float64 `json:"angle,omitempty"`

	Version uint64 `json:"version,omitempty"`

	// Origin is the peer id of the writer. Only consulted by the
	// store-wins tie-break.
	Origin string `json:"origin,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`

	X1 float64 `json:"x1,omitempty"`
	Y1 float64 `json:"y1,omitempty"`
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`
}

// Normalize returns a copy of e with read defaults applied and a
// legacy kind tag replaced by its canonical name.
func (e Entity) Normalize() Entity {
	if kind, ok := ParseKind(string(e.Kind)); ok {
		e.Kind = kind
	}
	if e.ScaleX == 0 {
		e.ScaleX = DefaultScale
	}
	if e.ScaleY == 0 {
		e.ScaleY = DefaultScale
	}
	switch e.Kind {
	case KindText:
		if e.Text == "" {
			e.Text = DefaultText
		}
		if e.FontSize == 0 {
			e.FontSize = DefaultFontSize
		}
		if e.FontFamily == "" {
			e.FontFamily = DefaultFontFamily
		}
	case KindSegment:
		if e.Stroke == "" {
			e.Stroke = e.Fill
		}
		if e.StrokeWidth == 0 {
			e.StrokeWidth = DefaultSegmentStrokeSize
		}
	}
	return e
}

// Validate checks the required fields. It does not reject unknown
// kinds; callers that need a renderable entity check Kind separately.
func (e Entity) Validate() error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if e.Kind == "" {
		errs = append(errs, errors.New("kind is required"))
	}
	if e.Fill == "" {
		errs = append(errs, errors.New("fill is required"))
	}
	if e.FontSize < 0 {
		errs = append(errs, fmt.Errorf("fontSize %v is negative", e.FontSize))
	}
	if e.StrokeWidth < 0 {
		errs = append(errs, fmt.Errorf("strokeWidth %v is negative", e.StrokeWidth))
	}
	if len(errs) > 0 {
		return fmt.Errorf("wire: entity %q: %w", e.ID, errors.Join(errs...))
	}
	return nil
}
