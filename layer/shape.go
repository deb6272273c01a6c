// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

// ShapeKind discriminates Shape variants.
type ShapeKind uint8

// Shape kinds.
const (
	KindQuad ShapeKind = iota
	KindCylinder
	KindEquirect
	KindCubemap
	KindProjection
)

func (k ShapeKind) String() string {
	switch k {
	case KindQuad:
		return "quad"
	case KindCylinder:
		return "cylinder"
	case KindEquirect:
		return "equirect"
	case KindCubemap:
		return "cubemap"
	case KindProjection:
		return "projection"
	}
	return "unknown"
}

// Shape is the closed set of layer geometries. Match on it with a type
// switch; only types in this package implement it.
type Shape interface {
	Kind() ShapeKind
	isShape()
}

// Quad is a flat rectangle, sized in metres.
type Quad struct {
	Width, Height float32
}

// Cylinder is a curved strip around the viewer.
type Cylinder struct {
	Radius     float32
	OverlayArc float32
	Height     float32
}

// Equirect is a sphere mapped with an equirectangular texture.
type Equirect struct {
	Radius                 float32
	CentralHorizontalAngle float32
	UpperVerticalAngle     float32
	LowerVerticalAngle     float32
}

// Cubemap is a six-face environment.
type Cubemap struct{}

// Projection is a full-view stereo projection, used by the eye layer and
// the black background layer.
type Projection struct{}

// Kind implements Shape.
func (Quad) Kind() ShapeKind { return KindQuad }

// Kind implements Shape.
func (Cylinder) Kind() ShapeKind { return KindCylinder }

// Kind implements Shape.
func (Equirect) Kind() ShapeKind { return KindEquirect }

// Kind implements Shape.
func (Cubemap) Kind() ShapeKind { return KindCubemap }

// Kind implements Shape.
func (Projection) Kind() ShapeKind { return KindProjection }

func (Quad) isShape()       {}
func (Cylinder) isShape()   {}
func (Equirect) isShape()   {}
func (Cubemap) isShape()    {}
func (Projection) isShape() {}

// faces returns the swapchain array layers a shape needs per eye.
func faces(s Shape) uint32 {
	if _, ok := s.(Cubemap); ok {
		return 6
	}
	return 1
}
