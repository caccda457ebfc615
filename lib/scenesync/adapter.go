// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenesync

import (
	"fmt"

	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// kindCodec carries the per-kind part of the mapping between scene and
// wire entities. Fields common to every kind are handled by Adapter.
type kindCodec struct {
	wire  wire.Kind
	scene scene.Kind

	// capture copies kind-specific fields from the scene entity.
	capture func(entity *scene.Entity, out *wire.Entity)

	// restore sets kind-specific fields and the raw (unscaled) size on
	// the scene entity. rawWidth and rawHeight are the wire extents
	// divided by the wire scale factors.
	restore func(in wire.Entity, rawWidth, rawHeight float64, entity *scene.Entity)
}

func restoreBox(_ wire.Entity, rawWidth, rawHeight float64, entity *scene.Entity) {
	entity.Width, entity.Height = rawWidth, rawHeight
}

var defaultCodecs = []kindCodec{
	{
		wire:    wire.KindRectangle,
		scene:   scene.Rectangle,
		restore: restoreBox,
	},
	{
		wire:  wire.KindEllipse,
		scene: scene.Ellipse,
		restore: func(_ wire.Entity, rawWidth, rawHeight float64, entity *scene.Entity) {
			entity.RadiusX, entity.RadiusY = rawWidth/2, rawHeight/2
		},
	},
	{
		wire:    wire.KindTriangle,
		scene:   scene.Triangle,
		restore: restoreBox,
	},
	{
		wire:  wire.KindSegment,
		scene: scene.Segment,
		capture: func(entity *scene.Entity, out *wire.Entity) {
			out.X1, out.Y1, out.X2, out.Y2 = entity.X1, entity.Y1, entity.X2, entity.Y2
		},
		restore: func(in wire.Entity, _, _ float64, entity *scene.Entity) {
			entity.X1, entity.Y1, entity.X2, entity.Y2 = in.X1, in.Y1, in.X2, in.Y2
		},
	},
	{
		wire:  wire.KindText,
		scene: scene.Text,
		capture: func(entity *scene.Entity, out *wire.Entity) {
			out.Text, out.FontSize, out.FontFamily = entity.Text, entity.FontSize, entity.FontFamily
		},
		restore: func(in wire.Entity, rawWidth, rawHeight float64, entity *scene.Entity) {
			entity.Width, entity.Height = rawWidth, rawHeight
			entity.Text, entity.FontSize, entity.FontFamily = in.Text, in.FontSize, in.FontFamily
		},
	},
}

// Adapter converts between scene entities and wire entities through a
// table keyed by kind. Adding a shape kind is one table entry.
type Adapter struct {
	byWire  map[wire.Kind]*kindCodec
	byScene map[scene.Kind]*kindCodec
}

// NewAdapter returns an Adapter covering every built-in kind.
func NewAdapter() *Adapter {
	adapter := &Adapter{
		byWire:  make(map[wire.Kind]*kindCodec, len(defaultCodecs)),
		byScene: make(map[scene.Kind]*kindCodec, len(defaultCodecs)),
	}
	for i := range defaultCodecs {
		codec := &defaultCodecs[i]
		adapter.byWire[codec.wire] = codec
		adapter.byScene[codec.scene] = codec
	}
	return adapter
}

// Supports reports whether kind (canonical or legacy alias) has a
// codec.
func (a *Adapter) Supports(kind wire.Kind) bool {
	canonical, _ := wire.ParseKind(string(kind))
	_, ok := a.byWire[canonical]
	return ok
}

// ToWire captures entity in wire form. Width and Height become the
// visual extents (raw size times scale).
func (a *Adapter) ToWire(entity scene.Entity) (wire.Entity, error) {
	if entity.ID == "" {
		return wire.Entity{}, ErrMissingIdentity
	}
	codec, ok := a.byScene[entity.Kind]
	if !ok {
		return wire.Entity{}, fmt.Errorf("%w: %v (entity %s)", ErrUnknownKind, entity.Kind, entity.ID)
	}

	scaleX, scaleY := orOne(entity.ScaleX), orOne(entity.ScaleY)
	rawWidth, rawHeight := entity.RawSize()
	out := wire.Entity{
		ID:          entity.ID,
		Kind:        codec.wire,
		X:           entity.Left,
		Y:           entity.Top,
		Width:       rawWidth * scaleX,
		Height:      rawHeight * scaleY,
		Fill:        entity.Fill,
		Stroke:      entity.Stroke,
		StrokeWidth: entity.StrokeWidth,
		ScaleX:      scaleX,
		ScaleY:      scaleY,
		Angle:       entity.Angle,
		Version:     entity.Version,
	}
	if codec.capture != nil {
		codec.capture(&entity, &out)
	}
	return out, nil
}

// FromWire builds a new scene entity carrying the wire entity's id and
// version.
func (a *Adapter) FromWire(in wire.Entity) (scene.Entity, error) {
	in = in.Normalize()
	if in.ID == "" {
		return scene.Entity{}, ErrMissingIdentity
	}
	codec, ok := a.byWire[in.Kind]
	if !ok {
		return scene.Entity{}, fmt.Errorf("%w: %q (entity %s)", ErrUnknownKind, in.Kind, in.ID)
	}

	entity := scene.Entity{ID: in.ID, Kind: codec.scene}
	apply(codec, in, &entity)
	return entity, nil
}

// ApplyWireUpdate overwrites entity's geometry, style, transform, and
// kind-specific fields from in and stamps in's version. The entity's
// id and handle are left alone and its bounds are recomputed.
func (a *Adapter) ApplyWireUpdate(entity *scene.Entity, in wire.Entity) error {
	in = in.Normalize()
	codec, ok := a.byWire[in.Kind]
	if !ok {
		return fmt.Errorf("%w: %q (entity %s)", ErrUnknownKind, in.Kind, entity.ID)
	}

	if entity.Kind != codec.scene {
		// A kind change discards the old kind's specific fields.
		*entity = scene.Entity{
			Handle:    entity.Handle,
			ID:        entity.ID,
			Transient: entity.Transient,
			Kind:      codec.scene,
		}
	}
	apply(codec, in, entity)
	return nil
}

func apply(codec *kindCodec, in wire.Entity, entity *scene.Entity) {
	entity.Left, entity.Top = in.X, in.Y
	entity.Fill, entity.Stroke, entity.StrokeWidth = in.Fill, in.Stroke, in.StrokeWidth
	entity.ScaleX, entity.ScaleY = in.ScaleX, in.ScaleY
	entity.Angle = in.Angle
	entity.Version = in.Version
	codec.restore(in, in.Width/in.ScaleX, in.Height/in.ScaleY, entity)
	entity.Recompute()
}

func orOne(scale float64) float64 {
	if scale == 0 {
		return 1
	}
	return scale
}
