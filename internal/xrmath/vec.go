// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package xrmath provides the small float32 vector, quaternion and matrix
// toolkit used for head poses and eye projections.
//
// Coordinates follow the host engine convention: X forward, Y right, Z up,
// with row-vector matrices (v' = v * M).
package xrmath

import "github.com/chewxy/math32"

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Up is the world up axis.
var Up = Vec3{Z: 1}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float32 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Len returns the Euclidean length.
func (v Vec3) Len() float32 { return math32.Sqrt(v.Dot(v)) }

// Quat is a rotation quaternion.
type Quat struct {
	X, Y, Z, W float32
}

// Identity is the identity rotation.
var Identity = Quat{W: 1}

// QuatFromAxisAngle builds a rotation of angle radians around axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	l := axis.Len()
	if l == 0 {
		return Identity
	}
	s, c := math32.Sin(angle*0.5), math32.Cos(angle*0.5)
	a := axis.Scale(s / l)
	return Quat{a.X, a.Y, a.Z, c}
}

// Mul returns q * o (apply o first, then q).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Conjugate returns the inverse of a unit quaternion.
func (q Quat) Conjugate() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

// Normalize returns q scaled to unit length. A zero quaternion yields Identity.
func (q Quat) Normalize() Quat {
	n := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n == 0 {
		return Identity
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Pose is a rigid transform.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// IdentityPose has no rotation and no translation.
var IdentityPose = Pose{Orientation: Identity}

// Transform is a pose with a uniform-per-axis scale, used for layer placement
// and the tracking-to-world mapping.
type Transform struct {
	Rotation    Quat
	Translation Vec3
	Scale       Vec3
}

// IdentityTransform is the neutral transform.
var IdentityTransform = Transform{Rotation: Identity, Scale: Vec3{1, 1, 1}}

// Apply maps a point through the transform: scale, rotate, translate.
func (t Transform) Apply(p Vec3) Vec3 {
	s := Vec3{p.X * t.Scale.X, p.Y * t.Scale.Y, p.Z * t.Scale.Z}
	return t.Rotation.Rotate(s).Add(t.Translation)
}
