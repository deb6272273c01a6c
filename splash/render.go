// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splash

import (
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/frame"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/layer"
)

// Tick renders one splash frame. It must run on the render stage. It does
// nothing while the splash is hidden, while the compositor is not running,
// or while a previous splash frame is still queued on the RHI stage.
func (c *Controller) Tick() {
	if !c.IsShown() || c.host.ShuttingDown() {
		return
	}
	drv := c.host.Driver()
	if !drv.IsRunning() {
		c.skipped.Add(1)
		return
	}
	if c.outstanding.Load() >= MaxOutstanding {
		c.skipped.Add(1)
		return
	}

	c.mu.Lock()
	if c.entries == nil {
		c.mu.Unlock()
		return
	}
	entries := c.entries.Snapshot()
	c.mu.Unlock()

	c.render(drv, entries)
}

func (c *Controller) render(drv driver.Compositor, entries []*layer.Layer) {
	log := xrlog.Logger()
	tl := c.host.Timeline()

	f := frame.New(tl.Next())
	f.PredictedDisplayTime = tl.PredictNext(drv.RefreshRate())

	// The splash only renders frame numbers nobody has waited on yet, so it
	// never runs ahead of the display.
	f.Set(frame.RenderingEnabled, false)
	blocked, err := tl.WaitFor(c.host.Context(), f.Number, drv)
	switch {
	case c.host.ShuttingDown():
		return
	case err != nil:
		log.Warn("splash: wait frame failed", "frame", f.Number, "err", err)
	case blocked:
		f.PredictedDisplayTime = tl.LastPredicted()
		f.Set(frame.HasWaited, true)
		f.Set(frame.RenderingEnabled, true)
		tl.Advance(f.Number)
		c.outstanding.Add(1)
	}
	rendering := f.Has(frame.RenderingEnabled)

	if rendering {
		if pose := c.host.Pose(); pose != nil {
			f.ApplyTracking(pose.PredictedPose(f.PredictedDisplayTime))
		}
	}

	retained := c.host.ReconcileRetained(entries)
	b := c.host.Backend()
	for _, l := range retained {
		if err := l.CopyContents(b); err != nil {
			log.Warn("splash: layer copy failed", "layer", l.ID(), "err", err)
		}
	}
	if err := b.Submit(); err != nil {
		log.Warn("splash: backend submit failed", "frame", f.Number, "err", err)
	}
	if rendering {
		f.SubmitIndex = c.host.NextSubmitIndex()
	}

	rl := layer.CloneAll(retained)
	if !c.host.RHIStage().Submit(func() { c.present(f, rl) }) && rendering {
		c.outstanding.Add(-1)
	}
	c.frames.Add(1)
}

// present runs on the RHI stage: it begins the compositor frame, submits
// every splash layer in priority order and ends the frame.
func (c *Controller) present(f *frame.Frame, layers []*layer.Layer) {
	log := xrlog.Logger()
	drv := c.host.Driver()
	rendering := f.Has(frame.RenderingEnabled)
	if rendering {
		defer c.outstanding.Add(-1)
	}
	if c.host.ShuttingDown() {
		return
	}
	defer c.host.Drain()

	if !rendering {
		return
	}
	if !drv.IsRunning() {
		log.Warn("splash: compositor not running", "frame", f.Number)
		return
	}
	if err := drv.BeginFrame(f.SubmitIndex); err != nil {
		log.Warn("splash: begin frame failed", "frame", f.Number, "err", err)
		return
	}
	for _, l := range layers {
		if sc := l.Swapchain(); sc != nil {
			sc.Advance()
		}
	}

	layer.SortForSubmission(layers)
	for _, l := range layers {
		if !l.Visible() {
			continue
		}
		if err := drv.SubmitLayer(driver.NewSubmission(f, l)); err != nil {
			log.Warn("splash: submit layer failed", "layer", l.ID(), "err", err)
		}
	}
	if err := drv.EndFrame(f.SubmitIndex); err != nil {
		log.Warn("splash: end frame failed", "frame", f.Number, "err", err)
	}
}
