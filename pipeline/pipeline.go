// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pipeline moves frames from the game goroutine through the render
// and RHI stages to the compositor.
//
// Each frame passes through six steps:
//
//	game:   BeginFrame -> WaitFrame -> CommitToRender
//	render: reconcile layers, late-latch pose, copy layer contents, submit
//	RHI:    begin compositor frame, advance swapchains
//	RHI:    Present: submit layers in priority order, end frame, drain
//
// Every hand-off is a Clone. The game goroutine may open frame N+1 while
// the render stage still works on N and the RHI stage presents N-1.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/deferred"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/frame"
	"github.com/gogpu/xrbridge/internal/stage"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
)

// Config configures a Pipeline. Zero values select defaults.
type Config struct {
	// AutoPresent queues Present right after each RHI begin. Hosts without
	// a present callback set it.
	AutoPresent bool

	// Render and RHI run the render and RHI stages. Nil creates a Loop.
	Render stage.Executor
	RHI    stage.Executor

	// Timeline numbers frames. Share one with the splash producer. Nil
	// creates a private timeline.
	Timeline *frame.Timeline

	// Deletions receives retired swapchains. Nil creates a private queue.
	Deletions *deferred.Queue
}

// GameState is the host state snapshotted when a frame begins.
type GameState struct {
	WorldToMetersScale float32
	TrackingToWorld    xrmath.Transform
	RenderingEnabled   bool
	SplashShown        bool
}

// Snapshotter produces the id-sorted layer clones for one frame.
// layer.Table implements it.
type Snapshotter interface {
	Snapshot() []*layer.Layer
}

// Stats are pipeline counters.
type Stats struct {
	Begun      uint64
	Committed  uint64
	Rendered   uint64
	Presented  uint64
	NotRunning uint64
	// Overrun counts frames ended by the next RHI begin because no
	// Present arrived in between.
	Overrun uint64
}

// Pipeline is the three-stage frame pipeline. BeginFrame, WaitFrame,
// EndFrame and CommitToRender must be called from one goroutine, the game
// goroutine. Present, Flush and Shutdown may be called from any goroutine.
type Pipeline struct {
	drv       driver.Compositor
	pose      driver.PoseSource
	backend   backend.Backend
	render    stage.Executor
	rhi       stage.Executor
	timeline  *frame.Timeline
	deletions *deferred.Queue
	autoPres  bool

	shutdown atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc

	// game goroutine
	gameFrame *frame.Frame
	pending   *frame.Frame
	forwarded *frame.Frame

	// render stage
	retained  []*layer.Layer
	lastIndex uint64

	// lastHanded mirrors lastIndex for readers outside the render stage.
	lastHanded atomic.Uint64
	eye        atomic.Pointer[eyeRef]

	// RHI stage
	rhiFrame  *frame.Frame
	rhiLayers []*layer.Layer

	begun, committed, rendered, presented, notRunning, overrun atomic.Uint64

	// presentHook observes frames at the RHI end. Tests only.
	presentHook func(*frame.Frame, []*layer.Layer)
}

// New creates a pipeline. pose may be nil, in which case frames keep the
// identity pose.
func New(cfg Config, drv driver.Compositor, pose driver.PoseSource, b backend.Backend) *Pipeline {
	if cfg.Render == nil {
		cfg.Render = stage.NewLoop("render")
	}
	if cfg.RHI == nil {
		cfg.RHI = stage.NewLoop("rhi", stage.WithLockedThread())
	}
	if cfg.Timeline == nil {
		cfg.Timeline = frame.NewTimeline()
	}
	if cfg.Deletions == nil {
		cfg.Deletions = &deferred.Queue{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		ctx:       ctx,
		cancel:    cancel,
		drv:       drv,
		pose:      pose,
		backend:   b,
		render:    cfg.Render,
		rhi:       cfg.RHI,
		timeline:  cfg.Timeline,
		deletions: cfg.Deletions,
		autoPres:  cfg.AutoPresent,
	}
}

// BeginFrame opens a game frame if none is open and reports whether it did.
func (p *Pipeline) BeginFrame(state GameState) bool {
	if p.shutdown.Load() || p.gameFrame != nil {
		return false
	}
	n := p.timeline.Next()
	f := frame.New(n)
	f.PredictedDisplayTime = p.timeline.PredictNext(p.drv.RefreshRate())
	if state.WorldToMetersScale > 0 {
		f.WorldToMetersScale = state.WorldToMetersScale
	}
	if state.TrackingToWorld != (xrmath.Transform{}) {
		f.TrackingToWorld = state.TrackingToWorld
	}
	f.Set(frame.RenderingEnabled, state.RenderingEnabled)
	f.Set(frame.SplashShown, state.SplashShown)
	f.Set(frame.HasWaited, p.timeline.Waited() >= n)
	if !state.SplashShown && p.pose != nil {
		f.ApplyTracking(p.pose.PredictedPose(f.PredictedDisplayTime))
	}

	p.gameFrame = f
	p.pending = f
	p.begun.Add(1)
	xrlog.Logger().Debug("pipeline: begin frame", "frame", n, "waited", f.Has(frame.HasWaited))
	return true
}

// GameFrame returns a copy of the open game frame, or nil.
func (p *Pipeline) GameFrame() *frame.Frame { return p.gameFrame.Clone() }

// WaitFrame blocks on the compositor's display wait unless the splash is
// shown or the frame number already consumed a wait. It is a no-op without
// an open frame. Only context errors and driver wait errors are returned.
func (p *Pipeline) WaitFrame(ctx context.Context) error {
	f := p.gameFrame
	if f == nil || f.Has(frame.HasWaited) {
		return nil
	}
	if f.Has(frame.SplashShown) {
		f.Set(frame.HasWaited, true)
		return nil
	}
	blocked, err := p.timeline.WaitFor(ctx, f.Number, p.drv)
	if err != nil {
		return err
	}
	if blocked {
		f.PredictedDisplayTime = p.timeline.LastPredicted()
	}
	f.Set(frame.HasWaited, true)
	return nil
}

// EndFrame waits if needed and closes the game frame. The frame stays
// pending for CommitToRender.
func (p *Pipeline) EndFrame(ctx context.Context) error {
	err := p.WaitFrame(ctx)
	p.gameFrame = nil
	return err
}

// CommitToRender hands the pending frame and a layer snapshot to the render
// stage. It does nothing unless the pending frame has waited and was not
// already forwarded. splashShown is the splash state at commit time.
func (p *Pipeline) CommitToRender(layers Snapshotter, splashShown bool) bool {
	f := p.pending
	if p.shutdown.Load() || f == nil || !f.Has(frame.HasWaited) || f == p.forwarded {
		return false
	}
	p.forwarded = f
	f.Set(frame.SplashShown, splashShown)
	if f.Has(frame.RenderingEnabled) && !splashShown {
		p.timeline.Advance(f.Number)
	}

	rf := f.Clone()
	rf.FrameNumberFromGame = f.Number
	snap := layers.Snapshot()
	if !p.render.Submit(func() { p.renderTask(rf, snap) }) {
		return false
	}
	p.committed.Add(1)
	return true
}

// renderTask is step 4 on the render stage.
func (p *Pipeline) renderTask(f *frame.Frame, incoming []*layer.Layer) {
	if p.shutdown.Load() {
		return
	}
	log := xrlog.Logger()
	splash := f.Has(frame.SplashShown)

	// While the splash is shown it owns the retained list.
	if !splash {
		p.reconcile(incoming)
		if p.pose != nil {
			f.ApplyTracking(p.pose.PredictedPose(f.PredictedDisplayTime))
		}
	}

	if f.Submittable() {
		for _, l := range p.retained {
			if err := l.CopyContents(p.backend); err != nil {
				log.Warn("pipeline: layer copy failed", "layer", l.ID(), "err", err)
			}
		}
		if err := p.backend.Submit(); err != nil {
			log.Warn("pipeline: backend submit failed", "frame", f.Number, "err", err)
		}
		f.SubmitIndex = p.NextSubmitIndex()
	} else {
		f.SubmitIndex = p.lastIndex
	}

	rf := f.Clone()
	rl := layer.CloneAll(p.retained)
	p.rendered.Add(1)
	p.rhi.Submit(func() { p.beginRHI(rf, rl) })
	if p.autoPres {
		p.rhi.Submit(p.endRHI)
	}
}

// beginRHI is step 5 on the RHI stage.
func (p *Pipeline) beginRHI(f *frame.Frame, layers []*layer.Layer) {
	if p.shutdown.Load() || f == nil {
		return
	}
	if prev := p.rhiFrame; prev != nil {
		// A begun frame must reach EndFrame before the next BeginFrame.
		p.overrun.Add(1)
		xrlog.Logger().Warn("pipeline: frame not presented before next begin, ending it",
			"frame", prev.Number, "next", f.Number)
		p.endRHI()
	}
	p.rhiFrame = f
	p.rhiLayers = layers
	if !f.Submittable() {
		return
	}
	if !p.drv.IsRunning() {
		p.notRunning.Add(1)
		xrlog.Logger().Warn("pipeline: compositor not running", "stage", "begin", "frame", f.Number)
		return
	}
	if err := p.drv.BeginFrame(f.SubmitIndex); err != nil {
		xrlog.Logger().Warn("pipeline: begin frame failed", "frame", f.Number, "err", err)
		return
	}
	for _, l := range layers {
		if sc := l.Swapchain(); sc != nil {
			sc.Advance()
		}
	}
}

// Present queues the RHI end for the frame most recently begun on the RHI
// stage. It reports whether the task was queued.
func (p *Pipeline) Present() bool {
	if p.shutdown.Load() {
		return false
	}
	return p.rhi.Submit(p.endRHI)
}

// endRHI is step 6 on the RHI stage.
func (p *Pipeline) endRHI() {
	if p.shutdown.Load() {
		return
	}
	f, layers := p.rhiFrame, p.rhiLayers
	if f == nil {
		return
	}
	p.rhiFrame, p.rhiLayers = nil, nil

	if f.Submittable() {
		p.submit(f, layers)
	}
	p.Drain()
	p.presented.Add(1)
	if p.presentHook != nil {
		p.presentHook(f, layers)
	}
}

func (p *Pipeline) submit(f *frame.Frame, layers []*layer.Layer) {
	log := xrlog.Logger()
	if !p.drv.IsRunning() {
		p.notRunning.Add(1)
		log.Warn("pipeline: compositor not running", "stage", "end", "frame", f.Number)
		return
	}
	layer.SortForSubmission(layers)
	for _, l := range layers {
		if !l.Visible() {
			continue
		}
		if err := p.drv.SubmitLayer(driver.NewSubmission(f, l)); err != nil {
			log.Warn("pipeline: submit layer failed", "layer", l.ID(), "err", err)
		}
	}
	if err := p.drv.EndFrame(f.SubmitIndex); err != nil {
		log.Warn("pipeline: end frame failed", "frame", f.Number, "err", err)
	}
}

// Flush waits until both stages are idle.
func (p *Pipeline) Flush() {
	p.render.Flush()
	p.rhi.Flush()
}

// Shutdown stops the pipeline. Queued stage tasks become no-ops, then the
// retained swapchains and every pending deletion are released. Safe to call
// more than once.
func (p *Pipeline) Shutdown() {
	if p.shutdown.Swap(true) {
		return
	}
	p.cancel()
	p.render.Close()
	p.rhi.Close()

	n := len(p.retained)
	for _, l := range p.retained {
		if sc := l.Swapchain(); sc != nil {
			sc.Release()
		}
	}
	p.retained = nil
	p.eye.Store(nil)
	p.rhiFrame, p.rhiLayers = nil, nil
	n += p.deletions.ReleaseAll()
	xrlog.Logger().Info("pipeline: shut down", "released", n)
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Begun:      p.begun.Load(),
		Committed:  p.committed.Load(),
		Rendered:   p.rendered.Load(),
		Presented:  p.presented.Load(),
		NotRunning: p.notRunning.Load(),
		Overrun:    p.overrun.Load(),
	}
}
