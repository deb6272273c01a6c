package splash

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/xrbridge/backend/software"
	"github.com/gogpu/xrbridge/driver/sim"
	"github.com/gogpu/xrbridge/internal/stage"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
	"github.com/gogpu/xrbridge/pipeline"
)

type fixture struct {
	c      *Controller
	p      *pipeline.Pipeline
	drv    *sim.Driver
	render *stage.Manual
	rhi    *stage.Manual
	ids    *layer.IDAllocator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	be := software.New()
	drv := sim.New(be, sim.DefaultConfig())
	fx := &fixture{
		drv:    drv,
		render: stage.NewManual(),
		rhi:    stage.NewManual(),
		ids:    layer.NewIDAllocator(),
	}
	fx.p = pipeline.New(pipeline.Config{AutoPresent: true, Render: fx.render, RHI: fx.rhi}, drv, drv, be)
	cfg.NoTicker = true
	fx.c = New(fx.p, fx.ids, cfg)
	t.Cleanup(func() {
		fx.c.Shutdown()
		fx.p.Shutdown()
	})
	return fx
}

func (fx *fixture) addSplash() {
	fx.c.AddSplash(Desc{
		Texture:   software.NewTexture(image.NewRGBA(image.Rect(0, 0, 32, 16))),
		Transform: xrmath.Transform{Translation: xrmath.Vec3{X: 5}},
		QuadSize:  [2]float32{2, 1},
	})
}

// tick queues one Tick and runs the render stage only.
func (fx *fixture) tick() {
	fx.render.Submit(fx.c.Tick)
	fx.render.RunPending()
}

func TestShowNeedsSwitchActive(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.addSplash()

	fx.c.Show()
	assert.False(t, fx.c.IsShown(), "applied on the next switch")
	fx.c.SwitchActive()
	assert.True(t, fx.c.IsShown())

	fx.c.Hide()
	assert.True(t, fx.c.IsShown())
	fx.c.SwitchActive()
	assert.False(t, fx.c.IsShown())

	// Hide while hidden is not an update.
	fx.c.Hide()
	fx.c.SwitchActive()
	assert.False(t, fx.c.IsShown())
}

func TestShowWithoutTextures(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.c.AddSplash(Desc{})
	fx.c.Show()
	fx.c.SwitchActive()
	assert.False(t, fx.c.IsShown())

	fx.tick()
	assert.Zero(t, fx.c.Stats().Frames)
}

func TestTickRendersSplashFrame(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.addSplash()
	fx.c.Show()
	fx.c.SwitchActive()

	fx.tick()
	fx.rhi.RunPending()

	require.Equal(t, uint64(1), fx.c.Stats().Frames)
	assert.Equal(t, uint64(1), fx.drv.Stats().Waits)
	assert.Equal(t, uint64(1), fx.drv.Stats().Ends)
	assert.Equal(t, uint64(2), fx.p.Timeline().Next())

	got, ok := fx.drv.Submitted(fx.p.LastSubmitIndex())
	require.True(t, ok)
	// The black background sorts below the splash quad.
	assert.Equal(t, []layer.ID{2, 1}, got)
	assert.Zero(t, fx.c.FramesOutstanding())
}

func TestTickCapsOutstandingFrames(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.addSplash()
	fx.c.Show()
	fx.c.SwitchActive()

	fx.tick()
	assert.Equal(t, int32(1), fx.c.FramesOutstanding())
	fx.tick()
	fx.tick()
	assert.Equal(t, int32(1), fx.c.FramesOutstanding())
	assert.Equal(t, uint64(2), fx.c.Stats().Skipped)
	assert.Equal(t, uint64(1), fx.drv.Stats().Waits)

	fx.rhi.RunPending()
	assert.Zero(t, fx.c.FramesOutstanding())

	fx.tick()
	fx.rhi.RunPending()
	assert.Equal(t, uint64(2), fx.drv.Stats().Waits)
	assert.Equal(t, uint64(2), fx.drv.Stats().Ends)
}

func TestTickAfterGameConsumedWait(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.addSplash()

	// The game goroutine waited for frame 1 but has not committed it.
	blocked, err := fx.p.Timeline().WaitFor(context.Background(), 1, fx.drv)
	require.NoError(t, err)
	require.True(t, blocked)

	fx.c.Show()
	fx.c.SwitchActive()
	fx.tick()
	fx.rhi.RunPending()

	assert.Equal(t, uint64(1), fx.c.Stats().Frames)
	assert.Zero(t, fx.c.FramesOutstanding())
	assert.Equal(t, uint64(1), fx.drv.Stats().Waits)
	assert.Zero(t, fx.drv.Stats().Begins, "a frame that did not wait is not submitted")
	assert.Zero(t, fx.drv.Stats().Ends)
	assert.Zero(t, fx.p.LastSubmitIndex())

	// Once the game frame moves on, the splash waits and renders again and
	// the outstanding cap still holds.
	fx.p.Timeline().Advance(1)
	fx.tick()
	fx.tick()
	assert.Equal(t, int32(1), fx.c.FramesOutstanding())
	assert.Equal(t, uint64(1), fx.c.Stats().Skipped)
	fx.rhi.RunPending()
	assert.Zero(t, fx.c.FramesOutstanding())
	assert.Equal(t, uint64(2), fx.drv.Stats().Waits)
	assert.Equal(t, uint64(1), fx.drv.Stats().Ends)
}

// blockingDriver never admits a frame until its context is cancelled.
type blockingDriver struct {
	*sim.Driver
	entered chan struct{}
}

func (d *blockingDriver) WaitFrame(ctx context.Context) error {
	close(d.entered)
	<-ctx.Done()
	return ctx.Err()
}

func TestShutdownUnblocksTick(t *testing.T) {
	be := software.New()
	drv := &blockingDriver{Driver: sim.New(be, sim.DefaultConfig()), entered: make(chan struct{})}
	render, rhi := stage.NewManual(), stage.NewManual()
	p := pipeline.New(pipeline.Config{AutoPresent: true, Render: render, RHI: rhi}, drv, drv, be)
	c := New(p, nil, Config{NoTicker: true})
	c.AddSplash(Desc{Texture: software.NewTexture(image.NewRGBA(image.Rect(0, 0, 8, 8)))})
	c.Show()
	c.SwitchActive()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Tick()
	}()
	<-drv.entered
	p.Shutdown()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Tick still blocked after Shutdown")
	}
	c.Shutdown()
	assert.Zero(t, c.FramesOutstanding())
	assert.Zero(t, drv.Stats().LiveSwapchains)
}

func TestTickSkipsWhenNotRunning(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.addSplash()
	fx.c.Show()
	fx.c.SwitchActive()
	fx.drv.SetRunning(false)

	fx.tick()
	assert.Zero(t, fx.c.Stats().Frames)
	assert.Equal(t, uint64(1), fx.c.Stats().Skipped)
	assert.Zero(t, fx.drv.Stats().Waits)
}

func TestLoadMapAutoShow(t *testing.T) {
	fx := newFixture(t, Config{AutoShow: true})
	fx.addSplash()

	fx.c.OnPreLoadMap("/maps/lobby")
	assert.True(t, fx.c.IsShown(), "pre load shows at once")

	fx.c.OnPostLoadMap()
	assert.True(t, fx.c.IsShown())
	fx.c.SwitchActive()
	assert.False(t, fx.c.IsShown())

	// An explicit show outlives the map load.
	fx.c.Show()
	fx.c.SwitchActive()
	fx.c.OnPreLoadMap("/maps/arena")
	fx.c.OnPostLoadMap()
	fx.c.SwitchActive()
	assert.True(t, fx.c.IsShown())
}

func TestLoadMapWithoutAutoShow(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.addSplash()
	fx.c.OnPreLoadMap("/maps/lobby")
	assert.False(t, fx.c.IsShown())

	fx.c.SetAutoShow(true)
	assert.True(t, fx.c.AutoShow())
	fx.c.OnPreLoadMap("/maps/lobby")
	assert.True(t, fx.c.IsShown())
}

func TestHideHandsBackToContent(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.addSplash()
	fx.c.Show()
	fx.c.SwitchActive()
	fx.tick()
	fx.rhi.RunPending()
	require.Equal(t, int64(2), fx.drv.Stats().LiveSwapchains)

	fx.c.Hide()
	fx.c.SwitchActive()

	table := layer.NewTable(fx.ids)
	require.NoError(t, table.CreateEye(layer.NewDescriptor(16, 16)))
	state := pipeline.GameState{RenderingEnabled: true}
	require.True(t, fx.p.BeginFrame(state))
	n := fx.p.GameFrame().Number
	assert.Equal(t, uint64(2), n, "content continues after the splash frame")
	require.NoError(t, fx.p.EndFrame(context.Background()))
	require.True(t, fx.p.CommitToRender(table, false))
	fx.render.RunPending()
	fx.rhi.RunPending()

	assert.Equal(t, 2, fx.p.Deletions().Len()+int(fx.drv.Stats().ReleasedChains))
	_, ok := fx.p.EyeSwapchain()
	assert.True(t, ok)
}

func TestTickerDrivesFrames(t *testing.T) {
	be := software.New()
	drv := sim.New(be, sim.DefaultConfig())
	p := pipeline.New(pipeline.Config{}, drv, drv, be)
	defer p.Shutdown()

	c := New(p, nil, Config{Interval: time.Millisecond})
	c.AddSplash(Desc{Texture: software.NewTexture(image.NewRGBA(image.Rect(0, 0, 8, 8)))})
	c.Show()
	c.SwitchActive()

	require.Eventually(t, func() bool { return c.Stats().Frames >= 3 },
		5*time.Second, time.Millisecond)

	c.Hide()
	c.SwitchActive()
	p.Flush()
	frames := c.Stats().Frames
	time.Sleep(10 * time.Millisecond)
	p.Flush()
	assert.Equal(t, frames, c.Stats().Frames, "ticker stopped")
	assert.Zero(t, c.FramesOutstanding())
}

func TestDescriptor(t *testing.T) {
	d := Desc{
		Texture:    software.NewTexture(image.NewRGBA(image.Rect(0, 0, 4, 4))),
		QuadSize:   [2]float32{3, 2},
		NoAlpha:    true,
		LiveUpdate: true,
	}.Descriptor()
	assert.Equal(t, layer.TrackerLocked, d.PositionType)
	assert.Equal(t, layer.Quad{Width: 3, Height: 2}, d.Shape)
	assert.Equal(t, xrmath.Identity, d.Transform.Rotation)
	assert.Equal(t, layer.FullUV, d.UVRect)
	assert.True(t, d.Has(layer.QuadPreserveTexRatio|layer.NoAlphaChannel|layer.ContinuousUpdate))
}
