// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xrbridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/backend/software"
	"github.com/gogpu/xrbridge/config"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/event"
	"github.com/gogpu/xrbridge/frame"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
	"github.com/gogpu/xrbridge/pipeline"
	"github.com/gogpu/xrbridge/splash"
)

// HMD is the host adapter: it composes the compositor driver, the layer
// table, the frame pipeline and the splash screen.
//
// Apart from Present, Shutdown, SessionID and AllocateRenderTarget, methods
// must be called from the game goroutine.
type HMD struct {
	drv      driver.Compositor
	pose     driver.PoseSource
	backend  backend.Backend
	settings *config.Settings
	loader   TextureLoader

	pipe   *pipeline.Pipeline
	splash *splash.Controller
	layers *layer.Table
	events *event.Queue

	session uuid.UUID
	detach  func()

	initialized bool
	shutdown    atomic.Bool

	frustums        [2]xrmath.Frustum
	recommended     [2]uint32
	pixelDensity    float32
	worldToMeters   float32
	trackingToWorld xrmath.Transform

	renderingEnabled bool
	inputFocus       bool
	seeThrough       int
	refreshRate      float32
	targetFrameRate  float32

	mrcEnabled bool
	mrcLayer   layer.ID
	mrcIDs     []layer.ID
}

// New creates an HMD on drv. pose may be nil when drv also implements
// driver.PoseSource.
func New(drv driver.Compositor, pose driver.PoseSource, opts ...Option) (*HMD, error) {
	if drv == nil {
		return nil, ErrNoDriver
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}
	if pose == nil {
		pose, _ = drv.(driver.PoseSource)
	}
	b, err := resolveBackend(drv, o.backend)
	if err != nil {
		return nil, err
	}
	s := o.settings
	if s == nil {
		d := config.Default()
		s = &d
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	ids := layer.NewIDAllocator()
	pipe := pipeline.New(o.pipeline, drv, pose, b)
	o.splash.AutoShow = s.Splash.AutoShow
	h := &HMD{
		drv:              drv,
		pose:             pose,
		backend:          b,
		settings:         s,
		loader:           o.loader,
		pipe:             pipe,
		splash:           splash.New(pipe, ids, o.splash),
		layers:           layer.NewTable(ids),
		events:           event.NewQueue(o.events),
		session:          uuid.New(),
		frustums:         [2]xrmath.Frustum{xrmath.DefaultFrustum, xrmath.DefaultFrustum},
		pixelDensity:     s.PixelDensity,
		worldToMeters:    frame.DefaultWorldToMeters,
		trackingToWorld:  xrmath.IdentityTransform,
		renderingEnabled: drv.IsRunning(),
		inputFocus:       true,
		refreshRate:      drv.RefreshRate(),
		mrcEnabled:       s.MRCEnabled,
	}
	h.detach = attachLogger(drv, b)
	xrlog.Logger().Info("xrbridge: hmd created", "session", h.session)
	return h, nil
}

// resolveBackend prefers an explicit backend, then the driver's own, then
// the registry default.
func resolveBackend(drv driver.Compositor, b backend.Backend) (backend.Backend, error) {
	if b != nil {
		return b, nil
	}
	if bp, ok := drv.(interface{ Backend() backend.Backend }); ok && bp.Backend() != nil {
		return bp.Backend(), nil
	}
	b, err := backend.Default()
	if err != nil {
		xrlog.Logger().Warn("xrbridge: no registered backend, using software", "err", err)
		return software.New(), nil
	}
	return b, nil
}

// Initialize queries the eye frustums, creates the eye layer and loads the
// splash layers named in the settings. It is a no-op once initialized.
func (h *HMD) Initialize(ctx context.Context) error {
	if h.shutdown.Load() {
		return ErrShutdown
	}
	if h.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h.refreshFrustums()
	h.applyDriverSettings()
	w, hh := h.drv.RecommendedTextureSize()
	h.recommended = [2]uint32{w, hh}

	if err := h.layers.CreateEye(h.eyeDescriptor()); err != nil {
		return fmt.Errorf("xrbridge: %w", err)
	}
	h.loadSplashes()
	h.initialized = true

	rw, rh := h.IdealRenderTargetSize()
	xrlog.Logger().Info("xrbridge: initialized",
		"session", h.session, "render_target", fmt.Sprintf("%dx%d", rw, rh),
		"tracking", h.settings.TrackingMode, "multiview", h.settings.Multiview)
	return nil
}

// IsInitialized reports whether Initialize succeeded.
func (h *HMD) IsInitialized() bool { return h.initialized }

// SessionID identifies this HMD instance in logs.
func (h *HMD) SessionID() uuid.UUID { return h.session }

// Settings returns a copy of the active settings.
func (h *HMD) Settings() *config.Settings { return h.settings.Clone() }

// Events is the host event queue. Events pushed here, such as settings
// reloads, are handled with the driver's events at the next game frame.
func (h *HMD) Events() *event.Queue { return h.events }

// Driver returns the compositor driver.
func (h *HMD) Driver() driver.Compositor { return h.drv }

// Pipeline returns the frame pipeline.
func (h *HMD) Pipeline() *pipeline.Pipeline { return h.pipe }

// Splash returns the loading screen controller.
func (h *HMD) Splash() *splash.Controller { return h.splash }

// SetWorldToMetersScale sets the world units per metre used from the next
// frame. Non-positive values are ignored.
func (h *HMD) SetWorldToMetersScale(s float32) {
	if s > 0 {
		h.worldToMeters = s
	}
}

// SetTrackingToWorld sets the tracking-space to world transform used from
// the next frame.
func (h *HMD) SetTrackingToWorld(t xrmath.Transform) {
	h.trackingToWorld = t
}

// IsRenderingEnabled reports whether frames are submitted to the compositor.
func (h *HMD) IsRenderingEnabled() bool { return h.renderingEnabled }

// OnStartGameFrame handles pending events, applies a pending splash switch
// and begins a game frame. It reports whether a frame was begun.
func (h *HMD) OnStartGameFrame() bool {
	if !h.initialized || h.shutdown.Load() {
		return false
	}
	h.drainEvents()
	h.splash.SwitchActive()
	return h.pipe.BeginFrame(pipeline.GameState{
		WorldToMetersScale: h.worldToMeters,
		TrackingToWorld:    h.trackingToWorld,
		RenderingEnabled:   h.renderingEnabled,
		SplashShown:        h.splash.IsShown(),
	})
}

// OnEndGameFrame performs the display wait for the current game frame if
// it has not happened yet, and closes the frame.
func (h *HMD) OnEndGameFrame(ctx context.Context) error {
	if !h.initialized {
		return ErrNotInitialized
	}
	return h.pipe.EndFrame(ctx)
}

// WaitFrame performs the display wait early, before OnEndGameFrame.
func (h *HMD) WaitFrame(ctx context.Context) error {
	if !h.initialized {
		return ErrNotInitialized
	}
	return h.pipe.WaitFrame(ctx)
}

// OnBeginRendering resizes the eye layer if the ideal render target changed
// and hands the frame and a layer snapshot to the render stage.
func (h *HMD) OnBeginRendering() bool {
	if !h.initialized || h.shutdown.Load() {
		return false
	}
	h.refreshEyeLayer()
	return h.pipe.CommitToRender(h.layers, h.splash.IsShown())
}

// Present ends the frame most recently begun on the RHI stage. Only needed
// with WithManualPresent.
func (h *HMD) Present() bool {
	return h.pipe.Present()
}

// Flush waits until the render and RHI stages are idle.
func (h *HMD) Flush() { h.pipe.Flush() }

// Shutdown hides the splash, stops the pipeline, releases every swapchain
// and closes the driver. Safe to call more than once.
func (h *HMD) Shutdown() error {
	if h.shutdown.Swap(true) {
		return nil
	}
	h.splash.Shutdown()
	h.pipe.Shutdown()
	h.detach()
	if err := h.drv.Close(); err != nil {
		return fmt.Errorf("xrbridge: close driver: %w", err)
	}
	xrlog.Logger().Info("xrbridge: shut down", "session", h.session)
	return nil
}
