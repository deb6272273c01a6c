// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xrmath

import "github.com/chewxy/math32"

// Mat4 is a row-major 4x4 matrix used with row vectors.
type Mat4 [4][4]float32

// Frustum describes an eye's field of view as half-angles in radians.
// Left and Down are normally negative.
type Frustum struct {
	Left, Right, Up, Down float32
	Near, Far             float32
}

// DefaultFrustum is used until the driver reports real values.
var DefaultFrustum = Frustum{
	Left:  -0.88119,
	Right: 0.88119,
	Up:    0.88119,
	Down:  -0.88119,
	Near:  0.0508,
	Far:   100,
}

// FrustumFromNearPlane converts extents measured on the near plane into
// half-angles. Drivers commonly report the frustum that way.
func FrustumFromNearPlane(left, right, up, down, near, far float32) Frustum {
	if near <= 0 {
		return DefaultFrustum
	}
	return Frustum{
		Left:  math32.Atan(left / near),
		Right: math32.Atan(right / near),
		Up:    math32.Atan(up / near),
		Down:  math32.Atan(down / near),
		Near:  near,
		Far:   far,
	}
}

// FOV returns the horizontal and vertical field of view in radians.
func (f Frustum) FOV() (h, v float32) {
	return f.Right - f.Left, f.Up - f.Down
}

// OffAxisProjection builds a reversed-Z, infinite-far, off-axis projection
// for the frustum. worldToMeters is the engine world scale (100 for
// centimetres); the near plane is expressed in world units.
func OffAxisProjection(f Frustum, worldToMeters float32) Mat4 {
	r := math32.Tan(f.Right)
	l := math32.Tan(f.Left)
	u := math32.Tan(f.Up)
	d := math32.Tan(f.Down)

	invRL := 1 / (r - l)
	invTB := 1 / (u - d)
	zNear := f.Near * worldToMeters / 100

	return Mat4{
		{2 * invRL, 0, 0, 0},
		{0, 2 * invTB, 0, 0},
		{-(r + l) * invRL, -(u + d) * invTB, 0, 1},
		{0, 0, zNear, 0},
	}
}

// RadToDeg converts radians to degrees.
func RadToDeg(r float32) float32 { return r * 180 / math32.Pi }
