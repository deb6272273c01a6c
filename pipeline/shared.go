// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/deferred"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/frame"
	"github.com/gogpu/xrbridge/internal/stage"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/layer"
)

// The methods in this file let a secondary frame producer, the splash
// screen, drive the same stages, timeline and retained layer list.

// Driver returns the compositor.
func (p *Pipeline) Driver() driver.Compositor { return p.drv }

// Pose returns the tracking source, possibly nil.
func (p *Pipeline) Pose() driver.PoseSource { return p.pose }

// Backend returns the graphics backend.
func (p *Pipeline) Backend() backend.Backend { return p.backend }

// Timeline returns the shared frame timeline.
func (p *Pipeline) Timeline() *frame.Timeline { return p.timeline }

// Deletions returns the deletion queue.
func (p *Pipeline) Deletions() *deferred.Queue { return p.deletions }

// RenderStage returns the render executor.
func (p *Pipeline) RenderStage() stage.Executor { return p.render }

// RHIStage returns the RHI executor.
func (p *Pipeline) RHIStage() stage.Executor { return p.rhi }

// ShuttingDown reports whether Shutdown has begun.
func (p *Pipeline) ShuttingDown() bool { return p.shutdown.Load() }

// Context is cancelled by Shutdown. Stage tasks that block on the
// compositor wait with it.
func (p *Pipeline) Context() context.Context { return p.ctx }

// ReconcileRetained merges incoming against the retained render list,
// installs the result as the new retained list and returns it. It must run
// on the render stage.
func (p *Pipeline) ReconcileRetained(incoming []*layer.Layer) []*layer.Layer {
	p.reconcile(incoming)
	return p.retained
}

func (p *Pipeline) reconcile(incoming []*layer.Layer) {
	p.retained = layer.Reconcile(incoming, p.retained, p.initLayer, p.retire)
	var eye layer.Swapchain
	for _, l := range p.retained {
		if l.Is(layer.RoleEye) {
			eye = l.Swapchain()
			break
		}
	}
	if eye == nil {
		p.eye.Store(nil)
	} else {
		p.eye.Store(&eyeRef{eye})
	}
}

type eyeRef struct{ sc layer.Swapchain }

// EyeSwapchain returns the eye layer's swapchain once the render stage has
// initialized it. Safe from any goroutine.
func (p *Pipeline) EyeSwapchain() (layer.Swapchain, bool) {
	r := p.eye.Load()
	if r == nil {
		return nil, false
	}
	return r.sc, true
}

// Retained returns clones of the retained render list. It must run on the
// render stage.
func (p *Pipeline) Retained() []*layer.Layer { return layer.CloneAll(p.retained) }

// NextSubmitIndex allocates the next RHI frame index. It must run on the
// render stage.
func (p *Pipeline) NextSubmitIndex() uint64 {
	p.lastIndex++
	p.lastHanded.Store(p.lastIndex)
	return p.lastIndex
}

// LastSubmitIndex is the most recent RHI frame index handed off.
func (p *Pipeline) LastSubmitIndex() uint64 { return p.lastHanded.Load() }

// Drain releases retired resources the compositor has finished with. It
// runs on the RHI stage.
func (p *Pipeline) Drain() int {
	return p.deletions.Drain(p.drv.LastCompletedFrame())
}

func (p *Pipeline) initLayer(l, prev *layer.Layer) bool {
	return l.Initialize(p.drv, prev, p.retire)
}

// retire tags old with the last RHI index handed off: that frame may still
// reference it, later ones cannot.
func (p *Pipeline) retire(old *layer.Layer) {
	p.deletions.Retire(old, p.lastIndex)
	xrlog.Logger().Debug("pipeline: layer retired", "layer", old.ID(), "at", p.lastIndex)
}
