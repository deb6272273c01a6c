package xrbridge

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/backend/software"
	"github.com/gogpu/xrbridge/config"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/driver/sim"
	"github.com/gogpu/xrbridge/event"
	"github.com/gogpu/xrbridge/internal/stage"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
	"github.com/gogpu/xrbridge/splash"
)

type testHMD struct {
	*HMD
	drv    *sim.Driver
	render *stage.Manual
	rhi    *stage.Manual
}

func newTestHMD(t *testing.T, opts ...Option) *testHMD {
	t.Helper()
	drv := sim.New(nil, sim.Config{Width: 32, Height: 16})
	th := &testHMD{drv: drv, render: stage.NewManual(), rhi: stage.NewManual()}
	opts = append([]Option{
		WithExecutors(th.render, th.rhi),
		WithSplashConfig(splash.Config{NoTicker: true}),
	}, opts...)
	h, err := New(drv, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	th.HMD = h
	t.Cleanup(func() { h.Shutdown() })
	if err := h.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return th
}

// frame runs one full frame through every stage.
func (th *testHMD) frame(t *testing.T) {
	t.Helper()
	if !th.OnStartGameFrame() {
		t.Fatal("OnStartGameFrame returned false")
	}
	if err := th.OnEndGameFrame(context.Background()); err != nil {
		t.Fatalf("OnEndGameFrame: %v", err)
	}
	if !th.OnBeginRendering() {
		t.Fatal("OnBeginRendering returned false")
	}
	th.render.RunPending()
	th.rhi.RunPending()
}

func approx(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-3 }

func TestInitializeCreatesEyeLayer(t *testing.T) {
	h := newTestHMD(t)

	ids := h.LayerIDs()
	if len(ids) != 1 || ids[0] != layer.EyeLayerID {
		t.Fatalf("LayerIDs() = %v, want [0]", ids)
	}
	d, _ := h.GetLayerDesc(layer.EyeLayerID)
	w, hh := h.IdealRenderTargetSize()
	if d.Width != w || d.Height != hh {
		t.Errorf("eye layer %dx%d, want %dx%d", d.Width, d.Height, w, hh)
	}
	if err := h.Initialize(context.Background()); err != nil {
		t.Errorf("second Initialize: %v", err)
	}
	if h.SessionID() == uuid.Nil {
		t.Error("SessionID is nil")
	}
}

func TestNotInitialized(t *testing.T) {
	h, err := New(sim.New(nil, sim.Config{Width: 8, Height: 8}), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Shutdown()
	if h.OnStartGameFrame() {
		t.Error("OnStartGameFrame before Initialize")
	}
	if err := h.OnEndGameFrame(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("OnEndGameFrame error = %v, want ErrNotInitialized", err)
	}
}

func TestIdealRenderTargetSize(t *testing.T) {
	tests := []struct {
		name      string
		rec       [2]uint32
		density   float32
		multiview bool
		wantW     uint32
		wantH     uint32
	}{
		{"aligned", [2]uint32{1000, 1000}, 1, false, 2000, 1000},
		{"round up", [2]uint32{1000, 1001}, 1, false, 2000, 1004},
		{"multiview", [2]uint32{1000, 1001}, 1, true, 1000, 1004},
		{"half density", [2]uint32{1001, 1001}, 0.5, false, 1004, 504},
		{"clamped", [2]uint32{5000, 5000}, 2, false, MaxRenderTargetWidth, MaxRenderTargetHeight},
	}
	h := newTestHMD(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.recommended = tt.rec
			h.pixelDensity = tt.density
			h.settings.Multiview = tt.multiview
			w, hh := h.IdealRenderTargetSize()
			if w != tt.wantW || hh != tt.wantH {
				t.Errorf("IdealRenderTargetSize() = %dx%d, want %dx%d", w, hh, tt.wantW, tt.wantH)
			}
			if w%4 != 0 || hh%4 != 0 {
				t.Errorf("%dx%d not a multiple of 4", w, hh)
			}
		})
	}
}

func TestSetPixelDensityClamps(t *testing.T) {
	h := newTestHMD(t)
	for _, tt := range []struct{ in, want float32 }{
		{0.1, 0.5}, {0.75, 0.75}, {3, 2},
	} {
		h.SetPixelDensity(tt.in)
		if got := h.PixelDensity(); got != tt.want {
			t.Errorf("SetPixelDensity(%g) -> %g, want %g", tt.in, got, tt.want)
		}
	}
}

func TestFrameLoop(t *testing.T) {
	h := newTestHMD(t)
	if _, ok := h.AllocateRenderTarget(); ok {
		t.Error("render target available before the first frame")
	}
	for range 5 {
		h.frame(t)
	}
	st := h.drv.Stats()
	if st.Waits != 5 || st.Begins != 5 || st.Ends != 5 {
		t.Errorf("waits/begins/ends = %d/%d/%d, want 5/5/5", st.Waits, st.Begins, st.Ends)
	}
	tex, ok := h.AllocateRenderTarget()
	if !ok {
		t.Fatal("no render target after frames")
	}
	w, hh := h.IdealRenderTargetSize()
	if tex.Width() != int(w) || tex.Height() != int(hh) {
		t.Errorf("render target %dx%d, want %dx%d", tex.Width(), tex.Height(), w, hh)
	}
}

func TestMaskHiddenArea(t *testing.T) {
	h := newTestHMD(t)
	h.frame(t)
	tex, ok := h.AllocateRenderTarget()
	if !ok {
		t.Fatal("no render target")
	}
	if err := h.MaskHiddenArea(tex); err != nil {
		t.Fatalf("MaskHiddenArea: %v", err)
	}
	img := tex.(*software.Texture).Slice(0)
	if a := img.RGBAAt(0, 0).A; a != 255 {
		t.Errorf("corner alpha = %d, want 255 after masking", a)
	}
	w, hh := h.IdealRenderTargetSize()
	if got := img.RGBAAt(int(w)/4, int(hh)/2); got.A != 0 {
		t.Errorf("left lens center = %v, want untouched", got)
	}
	if err := h.MaskHiddenArea(nil); err != nil {
		t.Errorf("MaskHiddenArea(nil) = %v", err)
	}
}

func TestSessionStoppingDisablesRendering(t *testing.T) {
	h := newTestHMD(t)
	h.frame(t)
	h.drv.Inject(event.SessionStateChanged{State: event.SessionStopping})
	h.frame(t)
	if h.IsRenderingEnabled() {
		t.Error("rendering still enabled after stopping")
	}
	if got := h.drv.Stats().Begins; got != 1 {
		t.Errorf("Begins = %d, want 1", got)
	}

	h.drv.Inject(event.SessionStateChanged{State: event.SessionFocused})
	h.frame(t)
	if got := h.drv.Stats().Begins; got != 2 {
		t.Errorf("Begins = %d, want 2", got)
	}
}

func TestRenderTextureChangedResizesEye(t *testing.T) {
	h := newTestHMD(t)
	h.frame(t)
	h.drv.Inject(event.RenderTextureChanged{Width: 64, Height: 40})
	h.frame(t)

	d, _ := h.GetLayerDesc(layer.EyeLayerID)
	if d.Width != 128 || d.Height != 40 {
		t.Errorf("eye layer %dx%d, want 128x40", d.Width, d.Height)
	}
	if h.Pipeline().Deletions().Len()+int(h.drv.Stats().ReleasedChains) != 1 {
		t.Error("old eye swapchain was not retired")
	}
}

func TestEventsUpdateState(t *testing.T) {
	h := newTestHMD(t)
	h.drv.Inject(event.FoveationLevelChanged{Level: config.FoveationHigh})
	h.drv.Inject(event.RefreshRateChanged{Rate: 90})
	h.drv.Inject(event.TargetFrameRateChanged{Rate: 72})
	h.drv.Inject(event.InputFocusChanged{Focused: false})
	h.drv.Inject(event.SeeThroughStateChanged{State: 2})
	h.drv.SetIPD(0.07)
	h.frame(t)

	if h.FoveationLevel() != config.FoveationHigh {
		t.Errorf("FoveationLevel = %d", h.FoveationLevel())
	}
	if h.RefreshRate() != 90 || h.TargetFrameRate() != 72 {
		t.Errorf("rates = %g/%g", h.RefreshRate(), h.TargetFrameRate())
	}
	if h.InputFocus() || h.SeeThroughState() != 2 {
		t.Error("focus or see-through not applied")
	}
	_, pos := h.RelativeEyePose(driver.EyeRight)
	if !approx(pos.Y, 0.5*0.07*100) {
		t.Errorf("right eye offset = %g, want 3.5", pos.Y)
	}
	_, pos = h.RelativeEyePose(driver.EyeLeft)
	if !approx(pos.Y, -3.5) {
		t.Errorf("left eye offset = %g, want -3.5", pos.Y)
	}
}

func TestFrustumChangedEvent(t *testing.T) {
	h := newTestHMD(t)
	f := xrmath.Frustum{Left: -0.5, Right: 0.5, Up: 0.4, Down: -0.4, Near: 0.1, Far: 100}
	h.drv.SetFrustum(driver.EyeLeft, f)
	h.drv.SetFrustum(driver.EyeRight, f)
	h.frame(t)

	if h.Frustum(driver.EyeLeft) != f {
		t.Errorf("Frustum(left) = %+v", h.Frustum(driver.EyeLeft))
	}
	hf, vf := h.FieldOfView()
	if !approx(hf, xrmath.RadToDeg(1)) || !approx(vf, xrmath.RadToDeg(0.8)) {
		t.Errorf("FieldOfView() = %g, %g", hf, vf)
	}
	m := h.StereoProjectionMatrix(driver.EyeLeft)
	if !approx(m[3][2], 0.1) {
		t.Errorf("near term = %g, want 0.1", m[3][2])
	}
}

func TestSettingsChangedEvent(t *testing.T) {
	h := newTestHMD(t)
	h.CreateMRCLayer(nil, nil)

	s := config.Default()
	s.PixelDensity = 1.5
	s.Splash.AutoShow = false
	s.MRCEnabled = false
	h.mrcEnabled = true
	h.Events().Push(event.SettingsChanged{Settings: &s})
	h.frame(t)

	if h.PixelDensity() != 1.5 {
		t.Errorf("PixelDensity = %g, want 1.5", h.PixelDensity())
	}
	if h.Splash().AutoShow() {
		t.Error("auto show still on")
	}
	if len(h.LayerIDs()) != 1 {
		t.Errorf("MRC layer survived disabling: %v", h.LayerIDs())
	}
}

func TestSettingsReachDriver(t *testing.T) {
	s := config.Default()
	s.RefreshRate = 90
	s.FoveationLevel = config.FoveationMedium
	h := newTestHMD(t, WithSettings(&s))

	if got := h.drv.RefreshRate(); got != 90 {
		t.Errorf("driver refresh rate = %g, want 90", got)
	}
	if got := h.RefreshRate(); got != 90 {
		t.Errorf("RefreshRate() = %g, want 90", got)
	}
	if got := h.drv.FoveationLevel(); got != config.FoveationMedium {
		t.Errorf("driver foveation = %d, want %d", got, config.FoveationMedium)
	}

	reload := s
	reload.RefreshRate = 120
	reload.FoveationLevel = config.FoveationTop
	h.Events().Push(event.SettingsChanged{Settings: &reload})
	h.frame(t)
	if got := h.drv.RefreshRate(); got != 120 {
		t.Errorf("driver refresh rate after reload = %g, want 120", got)
	}
	if got := h.drv.FoveationLevel(); got != config.FoveationTop {
		t.Errorf("driver foveation after reload = %d", got)
	}

	// Zero keeps whatever the driver runs at.
	keep := reload
	keep.RefreshRate = 0
	h.Events().Push(event.SettingsChanged{Settings: &keep})
	h.frame(t)
	if got := h.drv.RefreshRate(); got != 120 {
		t.Errorf("driver refresh rate = %g, want 120 kept", got)
	}
}

func TestMRCLayer(t *testing.T) {
	h := newTestHMD(t)
	fg := software.NewTexture(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	bg := software.NewTexture(image.NewRGBA(image.Rect(0, 0, 8, 8)))

	id := h.CreateMRCLayer(bg, fg)
	if again := h.CreateMRCLayer(bg, fg); again != id {
		t.Errorf("second CreateMRCLayer = %d, want %d", again, id)
	}
	d, _ := h.GetLayerDesc(id)
	if d.PositionType != layer.FaceLocked || !d.Has(layer.ContinuousUpdate|layer.NoAlphaChannel) {
		t.Errorf("unexpected MRC descriptor %+v", d)
	}
	if d.LeftTexture != backend.Texture(bg) {
		t.Error("background not on the left texture")
	}

	if n := h.DestroyAllMRCLayers(); n != 1 {
		t.Errorf("DestroyAllMRCLayers() = %d, want 1", n)
	}
	if n := h.DestroyAllMRCLayers(); n != 0 {
		t.Errorf("second DestroyAllMRCLayers() = %d, want 0", n)
	}
	h.drv.Inject(event.MRCStatusChanged{Enabled: true})
	h.frame(t)
	if !h.MRCEnabled() {
		t.Error("MRC not enabled by event")
	}
	if h.CreateMRCLayer(bg, fg) == id {
		t.Error("recreated MRC layer reused a destroyed id")
	}
}

func TestLayerCRUD(t *testing.T) {
	h := newTestHMD(t)
	if h.DestroyLayer(layer.EyeLayerID) {
		t.Error("eye layer destroyed")
	}
	d := layer.NewDescriptor(16, 16)
	d.Texture = software.NewTexture(image.NewRGBA(image.Rect(0, 0, 16, 16)))
	id := h.CreateLayer(d)

	d.Priority = 4
	if err := h.SetLayerDesc(id, d); err != nil {
		t.Fatal(err)
	}
	got, ok := h.GetLayerDesc(id)
	if !ok || got.Priority != 4 {
		t.Errorf("GetLayerDesc = %+v, %v", got, ok)
	}
	if !h.MarkTextureForUpdate(id) {
		t.Error("MarkTextureForUpdate failed")
	}
	h.frame(t)
	if got := h.drv.Stats().LiveSwapchains; got != 2 {
		t.Errorf("LiveSwapchains = %d, want 2", got)
	}
	if !h.DestroyLayer(id) || h.DestroyLayer(id) {
		t.Error("DestroyLayer should succeed exactly once")
	}
	if err := h.SetLayerDesc(id, d); !errors.Is(err, layer.ErrLayerNotFound) {
		t.Errorf("SetLayerDesc on destroyed layer: %v", err)
	}
}

func TestDebugCanvasLayerDesc(t *testing.T) {
	d := DebugCanvasLayerDesc(software.NewTexture(image.NewRGBA(image.Rect(0, 0, 4, 4))))
	if d.Priority != layer.DebugCanvasPriority {
		t.Errorf("Priority = %d", d.Priority)
	}
	if d.PositionType != layer.FaceLocked {
		t.Errorf("PositionType = %v", d.PositionType)
	}
}

func TestCurrentPoseNeckModel(t *testing.T) {
	s := config.Default()
	s.TrackingMode = config.Tracking3DoF
	h := newTestHMD(t, WithSettings(&s))

	if _, _, ok := h.CurrentPose(); ok {
		t.Error("pose without an open frame")
	}
	h.OnStartGameFrame()
	q, pos, ok := h.CurrentPose()
	if !ok {
		t.Fatal("no pose")
	}
	if q != xrmath.Identity {
		t.Errorf("orientation = %+v", q)
	}
	// Identity orientation: forward neck offset, no height.
	if !approx(pos.X, 8.05) || !approx(pos.Y, 0) || !approx(pos.Z, 0) {
		t.Errorf("position = %+v, want (8.05, 0, 0)", pos)
	}
}

func TestLoadingScreen(t *testing.T) {
	h := newTestHMD(t)
	h.AddSplash(splash.Desc{Texture: software.NewTexture(image.NewRGBA(image.Rect(0, 0, 8, 8)))})

	h.OnPreLoadMap("/maps/lobby")
	if !h.IsLoadingScreenShown() {
		t.Fatal("auto-show did not show the loading screen")
	}
	h.frame(t)
	if got := h.drv.Stats().Waits; got != 0 {
		t.Errorf("game frames waited %d times under the splash", got)
	}

	h.OnPostLoadMap()
	h.frame(t)
	if h.IsLoadingScreenShown() {
		t.Error("loading screen still shown after the map loaded")
	}

	h.ShowLoadingScreen()
	h.frame(t)
	if !h.IsLoadingScreenShown() {
		t.Error("ShowLoadingScreen had no effect")
	}
	h.HideLoadingScreen()
	h.frame(t)
	if h.IsLoadingScreenShown() {
		t.Error("HideLoadingScreen had no effect")
	}
}

func TestSplashLayersFromSettings(t *testing.T) {
	s := config.Default()
	s.Splash.Layers = []config.SplashLayer{
		{Texture: "logo.png", Translation: [3]float32{300, 0, 0}, Size: [2]float32{2, 1}},
		{Texture: "missing.png"},
	}
	loader := func(path string) (backend.Texture, error) {
		if path != "logo.png" {
			return nil, errors.New("not found")
		}
		return software.NewTexture(image.NewRGBA(image.Rect(0, 0, 8, 8))), nil
	}
	h := newTestHMD(t, WithSettings(&s), WithTextureLoader(loader))
	h.ShowLoadingScreen()
	h.frame(t)
	if !h.IsLoadingScreenShown() {
		t.Error("configured splash not shown")
	}

	noLoader := newTestHMD(t, WithSettings(&s))
	noLoader.ShowLoadingScreen()
	noLoader.frame(t)
	if noLoader.IsLoadingScreenShown() {
		t.Error("splash shown without textures")
	}
}

func TestShutdown(t *testing.T) {
	h := newTestHMD(t)
	h.frame(t)
	if err := h.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := h.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
	if h.drv.IsRunning() {
		t.Error("driver still running")
	}
	if got := h.drv.Stats().LiveSwapchains; got != 0 {
		t.Errorf("LiveSwapchains = %d after shutdown", got)
	}
	if h.OnStartGameFrame() {
		t.Error("frame begun after shutdown")
	}
	if err := h.Initialize(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("Initialize after shutdown: %v", err)
	}
}

func TestShutdownFromAnotherGoroutine(t *testing.T) {
	h := newTestHMD(t)
	h.frame(t)

	done := make(chan error, 1)
	go func() { done <- h.Shutdown() }()
	for i := 0; i < 1000; i++ {
		h.OnBeginRendering()
	}
	if err := <-done; err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if h.OnBeginRendering() {
		t.Error("frame committed after shutdown")
	}
}
