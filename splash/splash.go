// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package splash drives the compositor with loading-screen layers while the
// host cannot render content.
//
// The controller is a second frame producer on the pipeline's stages. It
// shares the frame timeline, so it obeys the same display-wait throttling,
// and it reconciles its layers against the pipeline's retained render list,
// so switching between splash and content never leaves the compositor with
// duplicate or orphaned layer ids.
package splash

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/frame"
	"github.com/gogpu/xrbridge/internal/stage"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
)

// MaxOutstanding is the number of splash frames that may be between the
// render and RHI stages at once.
const MaxOutstanding = 1

// Host is the frame pipeline the controller renders through.
// *pipeline.Pipeline implements it.
type Host interface {
	// Context is cancelled when the host shuts down.
	Context() context.Context
	Driver() driver.Compositor
	Pose() driver.PoseSource
	Backend() backend.Backend
	Timeline() *frame.Timeline
	RenderStage() stage.Executor
	RHIStage() stage.Executor
	ReconcileRetained(incoming []*layer.Layer) []*layer.Layer
	NextSubmitIndex() uint64
	Drain() int
	ShuttingDown() bool
}

// Desc describes one splash image.
type Desc struct {
	// Texture is the image to show. Splashes without one are skipped.
	Texture backend.Texture
	// Transform places the quad, in metres, relative to the tracker.
	Transform xrmath.Transform
	// QuadSize is the quad size in metres.
	QuadSize [2]float32
	// UVRect selects part of the texture. Zero means the whole texture.
	UVRect layer.UVRect
	// NoAlpha composes the splash as opaque.
	NoAlpha bool
	// LiveUpdate copies the texture every splash frame.
	LiveUpdate bool
}

// Descriptor converts d into a tracker-locked quad layer descriptor.
func (d Desc) Descriptor() layer.Descriptor {
	ld := layer.NewDescriptor(0, 0)
	ld.PositionType = layer.TrackerLocked
	ld.Transform = d.Transform
	if ld.Transform.Rotation == (xrmath.Quat{}) {
		ld.Transform.Rotation = xrmath.Identity
	}
	ld.Shape = layer.Quad{Width: d.QuadSize[0], Height: d.QuadSize[1]}
	if d.UVRect != (layer.UVRect{}) {
		ld.UVRect = d.UVRect
	}
	ld.Texture = d.Texture
	if d.Texture != nil {
		ld.Format = d.Texture.Format()
	}
	ld.Flags = layer.QuadPreserveTexRatio
	if d.NoAlpha {
		ld.Flags |= layer.NoAlphaChannel
	}
	if d.LiveUpdate {
		ld.Flags |= layer.ContinuousUpdate
	}
	return ld
}

// blackDesc is the opaque projection layer drawn behind the splash quads.
func blackDesc() layer.Descriptor {
	d := layer.NewDescriptor(8, 8)
	d.PositionType = layer.TrackerLocked
	d.Shape = layer.Projection{}
	d.Format = gputypes.TextureFormatRGBA8Unorm
	return d
}

// Config configures a Controller.
type Config struct {
	// AutoShow shows the splash around map loads.
	AutoShow bool
	// Interval overrides the tick period. Zero uses the display refresh.
	Interval time.Duration
	// NoTicker disables the tick goroutine; the owner calls Tick on the
	// render stage instead.
	NoTicker bool
}

// Stats are controller counters.
type Stats struct {
	Frames      uint64
	Skipped     uint64
	Outstanding int32
}

// Controller is the splash state machine. Show, Hide, SwitchActive and the
// load-map hooks run on the game goroutine; Tick runs on the render stage.
type Controller struct {
	host Host
	ids  *layer.IDAllocator

	// game goroutine
	cfg         Config
	descs       []Desc
	shouldShow  bool
	needsUpdate bool
	ticker      *ticker

	shown atomic.Bool

	// mu guards entries, which the render stage snapshots every tick.
	mu      sync.Mutex
	entries *layer.Table

	outstanding atomic.Int32
	frames      atomic.Uint64
	skipped     atomic.Uint64
}

// New creates a hidden controller. ids must be the allocator of the
// host's layer table.
func New(host Host, ids *layer.IDAllocator, cfg Config) *Controller {
	if ids == nil {
		ids = layer.NewIDAllocator()
	}
	return &Controller{host: host, ids: ids, cfg: cfg}
}

// IsShown reports whether the splash owns the compositor.
func (c *Controller) IsShown() bool { return c.shown.Load() }

// AutoShow reports the auto-show setting.
func (c *Controller) AutoShow() bool { return c.cfg.AutoShow }

// SetAutoShow changes the auto-show setting.
func (c *Controller) SetAutoShow(on bool) { c.cfg.AutoShow = on }

// AddSplash registers a splash image. It takes effect at the next show.
func (c *Controller) AddSplash(d Desc) {
	c.descs = append(c.descs, d)
}

// ClearSplashes forgets all splash images.
func (c *Controller) ClearSplashes() {
	c.descs = nil
}

// Show requests the splash. SwitchActive applies it.
func (c *Controller) Show() {
	c.shouldShow = true
	c.needsUpdate = !c.IsShown()
}

// Hide requests hiding the splash. SwitchActive applies it.
func (c *Controller) Hide() {
	c.shouldShow = false
	c.needsUpdate = c.IsShown()
}

// SwitchActive applies a pending Show or Hide. The host calls it when a
// game frame begins.
func (c *Controller) SwitchActive() {
	if !c.needsUpdate {
		return
	}
	switch {
	case c.shouldShow && !c.IsShown():
		c.show()
	case !c.shouldShow && c.IsShown():
		c.hide()
	}
	c.needsUpdate = false
}

// OnPreLoadMap shows the splash at once when auto-show is on.
func (c *Controller) OnPreLoadMap(name string) {
	if !c.cfg.AutoShow {
		return
	}
	xrlog.Logger().Info("splash: pre load map", "map", name)
	if !c.IsShown() {
		c.show()
	}
}

// OnPostLoadMap hides the splash when auto-show is on, unless it was shown
// explicitly.
func (c *Controller) OnPostLoadMap() {
	if c.cfg.AutoShow && !c.shouldShow {
		c.Hide()
	}
}

func (c *Controller) show() {
	entries := layer.NewTable(c.ids)
	for _, d := range c.descs {
		if d.Texture == nil {
			continue
		}
		entries.Create(d.Descriptor(), layer.RoleSplash)
	}
	if entries.Len() == 0 {
		xrlog.Logger().Info("splash: no splash layers to show")
		return
	}
	entries.Create(blackDesc(), layer.RoleSplash|layer.RoleBlackBackground)

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.shown.Store(true)
	if !c.cfg.NoTicker {
		c.ticker = startTicker(c.interval(), func() { c.host.RenderStage().Submit(c.Tick) })
	}
	xrlog.Logger().Info("splash: shown", "layers", entries.Len())
}

func (c *Controller) hide() {
	c.shown.Store(false)
	if c.ticker != nil {
		c.ticker.stop()
		c.ticker = nil
	}
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	xrlog.Logger().Info("splash: hidden")
}

func (c *Controller) interval() time.Duration {
	if c.cfg.Interval > 0 {
		return c.cfg.Interval
	}
	hz := c.host.Driver().RefreshRate()
	if hz <= 0 {
		hz = frame.DefaultRefreshRate
	}
	return time.Duration(float64(time.Second) / float64(hz))
}

// Shutdown hides the splash and stops the ticker.
func (c *Controller) Shutdown() {
	if c.IsShown() {
		c.hide()
	}
	c.shouldShow, c.needsUpdate = false, false
}

// Stats returns a snapshot of the controller counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Frames:      c.frames.Load(),
		Skipped:     c.skipped.Load(),
		Outstanding: c.outstanding.Load(),
	}
}

// FramesOutstanding is the number of splash frames begun on the render
// stage whose RHI work has not run yet.
func (c *Controller) FramesOutstanding() int32 { return c.outstanding.Load() }
