// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package frame defines the per-frame value object carried through the
// game, render and RHI stages, and the timeline that numbers frames and
// throttles them to the display.
//
// A Frame is owned by exactly one stage. Handing it to the next stage means
// handing over a Clone; the sender never mutates what it sent.
package frame

import (
	"fmt"

	"github.com/gogpu/xrbridge/internal/xrmath"
)

// DefaultWorldToMeters is the engine world scale in units per metre.
const DefaultWorldToMeters = 100

// Flags are per-frame state bits.
type Flags uint8

// Frame flags.
const (
	// HasWaited is set once the display wait for this frame number happened.
	HasWaited Flags = 1 << iota
	// RenderingEnabled means the frame is submitted to the compositor.
	RenderingEnabled
	// SplashShown means the splash producer owns the compositor.
	SplashShown
	// PositionValid means the tracked position is usable.
	PositionValid
	// OrientationValid means the tracked orientation is usable.
	OrientationValid
)

// Tracking is a predicted head pose with its derivatives.
type Tracking struct {
	Pose                xrmath.Pose
	Velocity            xrmath.Vec3
	AngularVelocity     xrmath.Vec3
	Acceleration        xrmath.Vec3
	AngularAcceleration xrmath.Vec3
	ViewCount           int32
	PositionValid       bool
	OrientationValid    bool
}

// Frame describes one rendered frame. It holds no references, so a struct
// copy is a deep copy.
type Frame struct {
	// Number is assigned on the game thread from the Timeline.
	Number uint64
	// PredictedDisplayTime is in milliseconds on the driver clock.
	PredictedDisplayTime float64
	// WorldToMetersScale is the world scale snapshotted at frame start.
	WorldToMetersScale float32
	// Tracking is the pose sampled for this frame.
	Tracking Tracking
	// TrackingToWorld maps tracking space into world space.
	TrackingToWorld xrmath.Transform
	// Flags holds per-frame state.
	Flags Flags
	// FrameNumberFromGame is the game frame this frame was derived from.
	// Splash frames carry zero.
	FrameNumberFromGame uint64
	// SubmitIndex is the RHI frame index, assigned when the render stage
	// hands the frame to the RHI stage. Zero until then.
	SubmitIndex uint64
}

// New returns a frame with default scale and rendering enabled.
func New(number uint64) *Frame {
	return &Frame{
		Number:             number,
		WorldToMetersScale: DefaultWorldToMeters,
		TrackingToWorld:    xrmath.IdentityTransform,
		Flags:              RenderingEnabled,
		Tracking:           Tracking{Pose: xrmath.IdentityPose, ViewCount: 2},
	}
}

// Clone returns an independent copy of f. Clone of nil is nil.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// Has reports whether all bits in fl are set.
func (f *Frame) Has(fl Flags) bool { return f.Flags&fl == fl }

// Set turns the bits in fl on or off.
func (f *Frame) Set(fl Flags, on bool) {
	if on {
		f.Flags |= fl
	} else {
		f.Flags &^= fl
	}
}

// Submittable reports whether the frame goes to the compositor: rendering is
// enabled and the splash is not covering it.
func (f *Frame) Submittable() bool {
	return f.Has(RenderingEnabled) && !f.Has(SplashShown)
}

// ApplyTracking stores a sampled pose and its validity bits.
func (f *Frame) ApplyTracking(t Tracking) {
	f.Tracking = t
	f.Set(PositionValid, t.PositionValid)
	f.Set(OrientationValid, t.OrientationValid)
}

func (f *Frame) String() string {
	if f == nil {
		return "frame(nil)"
	}
	return fmt.Sprintf("frame(#%d t=%.2fms waited=%t render=%t splash=%t)",
		f.Number, f.PredictedDisplayTime, f.Has(HasWaited), f.Has(RenderingEnabled), f.Has(SplashShown))
}
