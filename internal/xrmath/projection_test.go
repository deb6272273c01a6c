// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xrmath

import (
	"math"
	"testing"
)

const eps = 1e-5

func near(a, b float64) bool { return math.Abs(a-b) <= eps }

func TestOffAxisProjectionSymmetric(t *testing.T) {
	f := Frustum{Left: -0.4, Right: 0.4, Up: 0.4, Down: -0.4, Near: 0.05, Far: 100}
	m := OffAxisProjection(f, 100)

	tr, tl := math.Tan(0.4), math.Tan(-0.4)
	tu, td := math.Tan(0.4), math.Tan(-0.4)
	wantX := 2 / (tr - tl)
	wantY := 2 / (tu - td)

	if !near(float64(m[0][0]), wantX) {
		t.Errorf("m[0][0] = %v, want %v", m[0][0], wantX)
	}
	if !near(float64(m[1][1]), wantY) {
		t.Errorf("m[1][1] = %v, want %v", m[1][1], wantY)
	}
	if m[2][2] != 0 {
		t.Errorf("m[2][2] = %v, want 0 (reversed infinite Z)", m[2][2])
	}
	if m[3][3] != 0 {
		t.Errorf("m[3][3] = %v, want 0", m[3][3])
	}
	if !near(float64(m[3][2]), 0.05) {
		t.Errorf("m[3][2] = %v, want 0.05", m[3][2])
	}
	if m[2][3] != 1 {
		t.Errorf("m[2][3] = %v, want 1", m[2][3])
	}
	if m[2][0] != 0 || m[2][1] != 0 {
		t.Errorf("symmetric frustum should have no off-axis terms, got %v %v", m[2][0], m[2][1])
	}
}

func TestOffAxisProjectionAsymmetric(t *testing.T) {
	f := Frustum{Left: -0.7, Right: 0.5, Up: 0.6, Down: -0.8, Near: 0.1}
	m := OffAxisProjection(f, 100)

	r, l := math.Tan(0.5), math.Tan(-0.7)
	u, d := math.Tan(0.6), math.Tan(-0.8)

	tests := []struct {
		name string
		got  float32
		want float64
	}{
		{"xx", m[0][0], 2 / (r - l)},
		{"yy", m[1][1], 2 / (u - d)},
		{"zx", m[2][0], -(r + l) / (r - l)},
		{"zy", m[2][1], -(u + d) / (u - d)},
	}
	for _, tt := range tests {
		if !near(float64(tt.got), tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestOffAxisProjectionWorldScale(t *testing.T) {
	f := Frustum{Left: -0.4, Right: 0.4, Up: 0.4, Down: -0.4, Near: 0.05}
	m := OffAxisProjection(f, 1)
	if !near(float64(m[3][2]), 0.0005) {
		t.Errorf("near term = %v, want 0.0005 for metres", m[3][2])
	}
}

func TestFrustumFromNearPlane(t *testing.T) {
	f := FrustumFromNearPlane(-0.05, 0.05, 0.05, -0.05, 0.05, 100)
	if !near(float64(f.Right), math.Pi/4) || !near(float64(f.Left), -math.Pi/4) {
		t.Errorf("horizontal angles = %v..%v, want ±pi/4", f.Left, f.Right)
	}
	if got := FrustumFromNearPlane(1, 1, 1, 1, 0, 1); got != DefaultFrustum {
		t.Errorf("zero near plane should fall back to the default frustum, got %+v", got)
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Up, math.Pi/2)
	v := q.Rotate(Vec3{X: 1})
	if !near(float64(v.X), 0) || !near(float64(v.Y), 1) || !near(float64(v.Z), 0) {
		t.Errorf("rotate X by 90deg around Z = %+v, want (0,1,0)", v)
	}
	back := q.Conjugate().Rotate(v)
	if !near(float64(back.X), 1) {
		t.Errorf("conjugate rotation = %+v, want (1,0,0)", back)
	}
}
