// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/internal/xrmath"
)

// PositionType says what a layer is locked to.
type PositionType uint8

// Position types.
const (
	WorldLocked PositionType = iota
	TrackerLocked
	FaceLocked
)

func (p PositionType) String() string {
	switch p {
	case WorldLocked:
		return "world"
	case TrackerLocked:
		return "tracker"
	case FaceLocked:
		return "face"
	default:
		return fmt.Sprintf("PositionType(%d)", uint8(p))
	}
}

// Flags modify how a layer is copied and composed.
type Flags uint32

// Layer flags.
const (
	// ContinuousUpdate copies the source texture every frame.
	ContinuousUpdate Flags = 1 << iota
	// NoAlphaChannel composes the layer as opaque.
	NoAlphaChannel
	// PremultipliedAlpha marks the source as straight alpha that must be
	// premultiplied during the copy.
	PremultipliedAlpha
	// SRGBSource marks the source as sRGB encoded.
	SRGBSource
	// Hidden keeps the layer allocated but skips submission.
	Hidden
	// QuadPreserveTexRatio sizes a quad from the texture aspect ratio.
	QuadPreserveTexRatio
	// InvertAlpha writes 1-alpha.
	InvertAlpha
)

// UVRect is a normalized source region.
type UVRect struct {
	Min, Max [2]float32
}

// FullUV covers the whole texture.
var FullUV = UVRect{Max: [2]float32{1, 1}}

// Descriptor is the value-typed description of a layer. Copying a
// Descriptor copies everything except the texture references, which are
// shared read-only handles.
type Descriptor struct {
	Width       uint32
	Height      uint32
	Format      gputypes.TextureFormat
	ArraySize   uint32
	SampleCount uint32
	MipCount    uint32

	Priority     int32
	PositionType PositionType
	Shape        Shape
	Transform    xrmath.Transform
	UVRect       UVRect
	Flags        Flags

	// Texture is the host-owned source image. LeftTexture, when set, is
	// the left-eye source of a stereo layer.
	Texture     backend.Texture
	LeftTexture backend.Texture
}

// NewDescriptor returns a single-sample RGBA8 quad descriptor of the given
// size, placed one metre in front of the origin.
func NewDescriptor(width, height uint32) Descriptor {
	return Descriptor{
		Width:       width,
		Height:      height,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		ArraySize:   1,
		SampleCount: 1,
		MipCount:    1,
		Shape:       Quad{Width: 1, Height: 1},
		Transform: xrmath.Transform{
			Rotation:    xrmath.Identity,
			Translation: xrmath.Vec3{X: 100},
			Scale:       xrmath.Vec3{X: 1, Y: 1, Z: 1},
		},
		UVRect: FullUV,
	}
}

// Has reports whether all bits in f are set.
func (d Descriptor) Has(f Flags) bool { return d.Flags&f == f }

// WithFlags returns a copy of d with f set or cleared.
func (d Descriptor) WithFlags(f Flags, on bool) Descriptor {
	if on {
		d.Flags |= f
	} else {
		d.Flags &^= f
	}
	return d
}

// normalized fills zero counts with 1 and a nil shape with a unit quad.
func (d Descriptor) normalized() Descriptor {
	if d.ArraySize == 0 {
		d.ArraySize = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	if d.MipCount == 0 {
		d.MipCount = 1
	}
	if d.Shape == nil {
		d.Shape = Quad{Width: 1, Height: 1}
	}
	return d
}
