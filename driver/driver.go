// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package driver defines the compositor and tracking interfaces the frame
// pipeline consumes, plus a registry of driver implementations.
//
// A driver is opaque to the pipeline: it paces frames with WaitFrame,
// brackets each RHI frame with BeginFrame and EndFrame, owns swapchain
// memory and reports which frames the compositor has finished reading.
//
// Implementations register themselves in init:
//
//	func init() {
//	    driver.Register("sim", 10, newSim, nil)
//	}
package driver

import (
	"errors"
	"log/slog"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/event"
	"github.com/gogpu/xrbridge/frame"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
)

// Errors returned by drivers and the registry.
var (
	// ErrNotRunning is returned by frame calls while the compositor session
	// is not running.
	ErrNotRunning = errors.New("driver: compositor not running")

	// ErrNoDriverAvailable is returned when no registered driver can be
	// created.
	ErrNoDriverAvailable = errors.New("driver: no driver available")

	// ErrDriverNotFound is returned for an unknown driver name.
	ErrDriverNotFound = errors.New("driver: not found")
)

// Eye selects one view of a stereo pair.
type Eye uint8

// Eyes.
const (
	EyeLeft Eye = iota
	EyeRight
)

func (e Eye) String() string {
	if e == EyeLeft {
		return "left"
	}
	return "right"
}

// Sign returns -1 for the left eye and +1 for the right.
func (e Eye) Sign() float32 {
	if e == EyeLeft {
		return -1
	}
	return 1
}

// Submission is one layer handed to the compositor at present.
type Submission struct {
	Frame *frame.Frame
	Layer *layer.Layer
	// Image is the swapchain slot the compositor reads.
	Image int
}

// NewSubmission captures l's current swapchain slot.
func NewSubmission(f *frame.Frame, l *layer.Layer) Submission {
	s := Submission{Frame: f, Layer: l}
	if sc := l.Swapchain(); sc != nil {
		s.Image = sc.Index()
	}
	return s
}

// Compositor is the VR runtime's compositor session.
//
// WaitFrame is called on the game goroutine, CreateSwapchain on the render
// stage, and BeginFrame, SubmitLayer, EndFrame and LastCompletedFrame on the
// RHI stage. The query methods may be called from any goroutine.
type Compositor interface {
	frame.Waiter
	layer.Allocator

	// IsRunning reports whether the session accepts frames.
	IsRunning() bool

	// RefreshRate is the display rate in Hz, or 0 when unknown.
	RefreshRate() float32

	// BeginFrame opens RHI frame index.
	BeginFrame(index uint64) error

	// SubmitLayer adds a layer to the frame opened by BeginFrame.
	SubmitLayer(s Submission) error

	// EndFrame hands the frame to the compositor.
	EndFrame(index uint64) error

	// LastCompletedFrame is the highest RHI frame index the compositor has
	// finished reading. Resources retired at or before it may be freed.
	LastCompletedFrame() uint64

	// Frustum returns the eye's field of view.
	Frustum(eye Eye) xrmath.Frustum

	// RecommendedTextureSize is the per-eye render size at pixel density 1.
	RecommendedTextureSize() (width, height uint32)

	// PollEvent returns the next pending notification.
	PollEvent() (event.Event, bool)

	// Close ends the session and frees driver resources.
	Close() error
}

// PoseSource predicts the head pose.
type PoseSource interface {
	// PredictedPose samples tracking at a display time in milliseconds.
	PredictedPose(displayTime float64) frame.Tracking

	// IPD is the current interpupillary distance in metres.
	IPD() float32
}

// RefreshRateSetter is implemented by drivers whose display rate can be
// requested. The driver reports the applied rate with an
// event.RefreshRateChanged.
type RefreshRateSetter interface {
	SetRefreshRate(hz float32)
}

// FoveationSetter is implemented by drivers with fixed foveated rendering.
type FoveationSetter interface {
	SetFoveationLevel(level int)
}

// Options are passed to driver factories.
type Options struct {
	// Backend allocates swapchain images.
	Backend backend.Backend

	// RefreshRate requests a display rate. Zero keeps the driver default.
	RefreshRate float32

	// Logger, when set, replaces the driver's logger.
	Logger *slog.Logger
}
