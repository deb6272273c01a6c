// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package sim is a simulated compositor driver. It paces frames against a
// virtual display clock, keeps swapchain images in a graphics backend and
// reports frame completion a fixed number of frames late, the way a real
// compositor holds images while they are on screen.
//
// The driver registers itself under the name "sim":
//
//	import _ "github.com/gogpu/xrbridge/driver/sim"
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/backend/software"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/event"
	"github.com/gogpu/xrbridge/frame"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
)

// Name is the registry name of the simulated driver.
const Name = "sim"

func init() {
	driver.Register(Name, 10, func(opts driver.Options) (driver.Compositor, error) {
		cfg := DefaultConfig()
		if opts.RefreshRate > 0 {
			cfg.RefreshRate = opts.RefreshRate
		}
		d := New(opts.Backend, cfg)
		if opts.Logger != nil {
			d.SetLogger(opts.Logger)
		}
		return d, nil
	}, nil)
}

// Config controls the simulation.
type Config struct {
	// RefreshRate is the display rate in Hz.
	RefreshRate float32
	// CompletionLag is how many RHI frames the compositor holds before it
	// reports them complete.
	CompletionLag uint64
	// RingSize is the number of images per swapchain.
	RingSize int
	// Width and Height are the recommended per-eye render size.
	Width, Height uint32
	// Paced makes WaitFrame sleep until the next display interval. Tests
	// leave it off so frames run as fast as they are requested.
	Paced bool
	// YawRate rotates the simulated head, in radians per second.
	YawRate float32
	// EventQueueSize bounds pending notifications.
	EventQueueSize int
}

// DefaultConfig returns a 72 Hz headset with a two-frame completion lag.
func DefaultConfig() Config {
	return Config{
		RefreshRate:    72,
		CompletionLag:  2,
		RingSize:       3,
		Width:          1440,
		Height:         1584,
		EventQueueSize: event.DefaultCapacity,
	}
}

// Stats are driver counters.
type Stats struct {
	Waits            uint64
	Begins           uint64
	Ends             uint64
	Submits          uint64
	LiveSwapchains   int64
	ReleasedChains   uint64
	RejectedNotReady uint64
}

// Driver is the simulated compositor. It implements driver.Compositor and
// driver.PoseSource.
type Driver struct {
	cfg       Config
	backend   backend.Backend
	runtimeID string
	start     time.Time
	ipd       driver.IPD

	running   atomic.Bool
	waits     atomic.Uint64
	completed atomic.Uint64
	begins    atomic.Uint64
	ends      atomic.Uint64
	submits   atomic.Uint64
	live      atomic.Int64
	released  atomic.Uint64
	rejected  atomic.Uint64
	foveation atomic.Int32

	mu        sync.Mutex
	predicted float64
	frustums  [2]xrmath.Frustum
	open      uint64
	pending   []layer.ID
	history   map[uint64][]layer.ID
	events    *event.Queue

	logger atomic.Pointer[slog.Logger]
}

// New creates a running simulated session. A nil backend selects a private
// software backend.
func New(b backend.Backend, cfg Config) *Driver {
	def := DefaultConfig()
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = def.RefreshRate
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = def.RingSize
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if b == nil {
		b = software.New()
	}
	d := &Driver{
		cfg:       cfg,
		backend:   b,
		runtimeID: uuid.NewString(),
		start:     time.Now(),
		frustums:  [2]xrmath.Frustum{xrmath.DefaultFrustum, xrmath.DefaultFrustum},
		history:   make(map[uint64][]layer.ID),
		events:    event.NewQueue(cfg.EventQueueSize),
	}
	d.logger.Store(xrlog.Logger())
	d.running.Store(true)
	d.events.Push(event.SessionStateChanged{State: event.SessionReady})
	return d
}

// SetLogger replaces the driver logger.
func (d *Driver) SetLogger(l *slog.Logger) {
	if l == nil {
		l = xrlog.Nop()
	}
	d.logger.Store(l)
}

func (d *Driver) log() *slog.Logger { return d.logger.Load() }

// RuntimeID identifies this simulated session.
func (d *Driver) RuntimeID() string { return d.runtimeID }

// Backend returns the backend swapchain images live in.
func (d *Driver) Backend() backend.Backend { return d.backend }

// IsRunning implements driver.Compositor.
func (d *Driver) IsRunning() bool { return d.running.Load() }

// SetRunning starts or stops the session and reports the transition as an
// event.
func (d *Driver) SetRunning(on bool) {
	if d.running.Swap(on) == on {
		return
	}
	state := event.SessionStopping
	if on {
		state = event.SessionReady
	}
	d.Inject(event.SessionStateChanged{State: state})
	d.log().Info("sim: session state", "running", on)
}

func (d *Driver) period() time.Duration {
	return time.Duration(float64(time.Second) / float64(d.RefreshRate()))
}

// WaitFrame implements frame.Waiter. Each call admits one display interval.
func (d *Driver) WaitFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := d.waits.Add(1)
	vsync := d.start.Add(time.Duration(n) * d.period())
	if d.cfg.Paced {
		timer := time.NewTimer(time.Until(vsync))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	d.mu.Lock()
	d.predicted = float64(vsync.Sub(d.start)) / float64(time.Millisecond)
	d.mu.Unlock()
	return nil
}

// PredictedDisplayTime implements frame.Waiter.
func (d *Driver) PredictedDisplayTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.predicted
}

// RefreshRate implements driver.Compositor.
func (d *Driver) RefreshRate() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.RefreshRate
}

// SetRefreshRate implements driver.RefreshRateSetter. It changes the
// display rate and notifies the host.
func (d *Driver) SetRefreshRate(hz float32) {
	if hz <= 0 {
		return
	}
	d.mu.Lock()
	d.cfg.RefreshRate = hz
	d.mu.Unlock()
	d.Inject(event.RefreshRateChanged{Rate: hz})
}

// SetFoveationLevel implements driver.FoveationSetter.
func (d *Driver) SetFoveationLevel(level int) {
	d.foveation.Store(int32(level))
	d.log().Debug("sim: foveation level", "level", level)
}

// FoveationLevel is the last requested foveation level.
func (d *Driver) FoveationLevel() int { return int(d.foveation.Load()) }

// BeginFrame implements driver.Compositor.
func (d *Driver) BeginFrame(index uint64) error {
	if !d.IsRunning() {
		d.rejected.Add(1)
		return driver.ErrNotRunning
	}
	d.mu.Lock()
	d.open = index
	d.pending = d.pending[:0]
	d.mu.Unlock()
	d.begins.Add(1)
	return nil
}

// SubmitLayer implements driver.Compositor.
func (d *Driver) SubmitLayer(s driver.Submission) error {
	if !d.IsRunning() {
		d.rejected.Add(1)
		return driver.ErrNotRunning
	}
	if s.Layer == nil || s.Layer.Swapchain() == nil {
		return fmt.Errorf("sim: submit layer without swapchain")
	}
	d.mu.Lock()
	d.pending = append(d.pending, s.Layer.ID())
	d.mu.Unlock()
	d.submits.Add(1)
	return nil
}

// EndFrame implements driver.Compositor. Frame index-CompletionLag becomes
// complete.
func (d *Driver) EndFrame(index uint64) error {
	if !d.IsRunning() {
		d.rejected.Add(1)
		return driver.ErrNotRunning
	}
	d.mu.Lock()
	if d.open != index {
		d.log().Warn("sim: end frame without matching begin", "open", d.open, "index", index)
	}
	d.history[index] = append([]layer.ID(nil), d.pending...)
	delete(d.history, index-min(index, 64))
	d.mu.Unlock()

	if index > d.cfg.CompletionLag {
		done := index - d.cfg.CompletionLag
		for {
			cur := d.completed.Load()
			if done <= cur || d.completed.CompareAndSwap(cur, done) {
				break
			}
		}
	}
	d.ends.Add(1)
	return nil
}

// LastCompletedFrame implements driver.Compositor.
func (d *Driver) LastCompletedFrame() uint64 { return d.completed.Load() }

// Submitted returns the layer ids submitted for RHI frame index, in
// submission order.
func (d *Driver) Submitted(index uint64) ([]layer.ID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids, ok := d.history[index]
	return append([]layer.ID(nil), ids...), ok
}

// Frustum implements driver.Compositor.
func (d *Driver) Frustum(eye driver.Eye) xrmath.Frustum {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frustums[eye&1]
}

// SetFrustum overrides an eye frustum and notifies the host.
func (d *Driver) SetFrustum(eye driver.Eye, f xrmath.Frustum) {
	d.mu.Lock()
	d.frustums[eye&1] = f
	d.mu.Unlock()
	d.Inject(event.FrustumChanged{})
}

// RecommendedTextureSize implements driver.Compositor.
func (d *Driver) RecommendedTextureSize() (uint32, uint32) {
	return d.cfg.Width, d.cfg.Height
}

// PredictedPose implements driver.PoseSource. The simulated head turns
// about the up axis at YawRate.
func (d *Driver) PredictedPose(displayTime float64) frame.Tracking {
	yaw := d.cfg.YawRate * float32(displayTime/1000)
	return frame.Tracking{
		Pose: xrmath.Pose{
			Orientation: xrmath.QuatFromAxisAngle(xrmath.Up, yaw),
		},
		AngularVelocity:  xrmath.Vec3{Z: d.cfg.YawRate},
		ViewCount:        2,
		PositionValid:    true,
		OrientationValid: true,
	}
}

// IPD implements driver.PoseSource.
func (d *Driver) IPD() float32 { return d.ipd.Load() }

// SetIPD changes the IPD and notifies the host.
func (d *Driver) SetIPD(v float32) {
	if d.ipd.Store(v) {
		d.Inject(event.IPDChanged{IPD: v})
	}
}

// Inject queues a notification for PollEvent.
func (d *Driver) Inject(e event.Event) {
	if d.events.Push(e) {
		d.log().Warn("sim: event queue full, dropped oldest", "event", e)
	}
}

// PollEvent implements driver.Compositor.
func (d *Driver) PollEvent() (event.Event, bool) {
	return d.events.Pop()
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Waits:            d.waits.Load(),
		Begins:           d.begins.Load(),
		Ends:             d.ends.Load(),
		Submits:          d.submits.Load(),
		LiveSwapchains:   d.live.Load(),
		ReleasedChains:   d.released.Load(),
		RejectedNotReady: d.rejected.Load(),
	}
}

// Close implements driver.Compositor.
func (d *Driver) Close() error {
	d.SetRunning(false)
	return nil
}
