// Command xrsim runs the xrbridge frame pipeline against the simulated
// compositor and reports frame statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"image"
	"image/color"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/xrbridge"
	"github.com/gogpu/xrbridge/backend"
	_ "github.com/gogpu/xrbridge/backend/gpu"
	"github.com/gogpu/xrbridge/backend/software"
	"github.com/gogpu/xrbridge/config"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/driver/sim"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
	"github.com/gogpu/xrbridge/splash"
)

func main() {
	var (
		frames   = flag.Int("frames", 360, "game frames to run, 0 runs until interrupted")
		refresh  = flag.Float64("refresh", 0, "simulated display refresh rate in Hz, 0 uses refresh_rate from the settings")
		paced    = flag.Bool("paced", true, "pace frames to the simulated display")
		drvName  = flag.String("driver", sim.Name, "compositor driver")
		backName = flag.String("backend", backend.NameSoftware, "graphics backend: software or hal")
		cfgPath  = flag.String("config", "", "settings file, watched for changes")
		splashN  = flag.Int("splash", 72, "frames to show the loading screen for")
		quads    = flag.Int("quads", 3, "quad layers to create")
		manual   = flag.Bool("manual-present", false, "present from a separate goroutine")
		verbose  = flag.Bool("v", false, "debug logging, overrides log_level")
		interval = flag.Duration("stats", time.Second, "statistics interval")
	)
	flag.Parse()

	settings, err := loadSettings(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	level := logLevel(settings, *verbose)
	xrbridge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	b := openBackend(*backName)
	if c, ok := b.(interface{ Close() }); ok {
		defer c.Close()
	}
	drv, err := openDriver(*drvName, b, float32(*refresh), *paced)
	if err != nil {
		log.Fatalf("Failed to open driver %q: %v (available: %v)", *drvName, err, driver.Available())
	}

	opts := []xrbridge.Option{
		xrbridge.WithBackend(b),
		xrbridge.WithSettings(settings),
		xrbridge.WithTextureLoader(solidLoader),
	}
	if *manual {
		opts = append(opts, xrbridge.WithManualPresent())
	}
	hmd, err := xrbridge.New(drv, nil, opts...)
	if err != nil {
		log.Fatalf("Failed to create HMD: %v", err)
	}
	defer hmd.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := hmd.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	for i := range *quads {
		hmd.CreateLayer(quadDesc(i))
	}
	hmd.AddSplash(splash.Desc{
		Texture:   solid(color.RGBA{R: 32, G: 96, B: 200, A: 255}),
		Transform: xrmath.Transform{Rotation: xrmath.Identity, Translation: xrmath.Vec3{X: 400}},
		QuadSize:  [2]float32{200, 100},
	})

	g, ctx := errgroup.WithContext(ctx)
	presents := make(chan struct{}, 1)
	gameDone := make(chan struct{})

	g.Go(func() error {
		defer close(gameDone)
		return runGame(ctx, hmd, *frames, *splashN, presents)
	})
	if *manual {
		g.Go(func() error { return runPresent(ctx, hmd, presents, gameDone) })
	}
	if *cfgPath != "" {
		g.Go(func() error {
			err := config.Watch(ctx, *cfgPath, hmd.Events())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error { return runStats(ctx, hmd, drv, *interval, gameDone) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Simulation failed: %v", err)
	}
	hmd.Flush()
	logStats(hmd, drv)
}

func loadSettings(path string) (*config.Settings, error) {
	if path == "" {
		s := config.Default()
		return &s, nil
	}
	return config.LoadOrDefault(path)
}

// logLevel is debug with -v and the settings' log_level otherwise.
func logLevel(s *config.Settings, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	lvl, err := s.SlogLevel()
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func openBackend(name string) backend.Backend {
	b, err := backend.Get(name)
	if err != nil {
		xrbridge.Logger().Warn("xrsim: backend unavailable, using software", "backend", name, "err", err)
		return software.New()
	}
	return b
}

func openDriver(name string, b backend.Backend, refresh float32, paced bool) (driver.Compositor, error) {
	if name != sim.Name {
		return driver.OpenByName(name, driver.Options{Backend: b, RefreshRate: refresh})
	}
	cfg := sim.DefaultConfig()
	if refresh > 0 {
		cfg.RefreshRate = refresh
	}
	cfg.Paced = paced
	cfg.YawRate = 0.5
	return sim.New(b, cfg), nil
}

// runGame drives the host side of the frame loop. The loading screen covers
// the first splashFrames frames, like a level load.
func runGame(ctx context.Context, hmd *xrbridge.HMD, frames, splashFrames int, presents chan<- struct{}) error {
	if splashFrames > 0 {
		hmd.OnPreLoadMap("/sim/startup")
		hmd.ShowLoadingScreen()
	}
	for n := 0; frames == 0 || n < frames; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n == splashFrames {
			hmd.OnPostLoadMap()
			hmd.HideLoadingScreen()
		}
		hmd.OnStartGameFrame()
		if err := hmd.OnEndGameFrame(ctx); err != nil {
			return err
		}
		if hmd.OnBeginRendering() {
			select {
			case presents <- struct{}{}:
			default:
			}
		}
		if hmd.IsLoadingScreenShown() {
			// The splash paces itself; the host only idles.
			time.Sleep(time.Second / 72)
		}
	}
	return nil
}

func runPresent(ctx context.Context, hmd *xrbridge.HMD, presents <-chan struct{}, done <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-presents:
			hmd.Present()
		}
	}
}

func runStats(ctx context.Context, hmd *xrbridge.HMD, drv driver.Compositor, every time.Duration, done <-chan struct{}) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-t.C:
			logStats(hmd, drv)
		}
	}
}

func logStats(hmd *xrbridge.HMD, drv driver.Compositor) {
	ps := hmd.Pipeline().Stats()
	ss := hmd.Splash().Stats()
	attrs := []any{
		"session", hmd.SessionID(),
		"committed", ps.Committed,
		"presented", ps.Presented,
		"splash_frames", ss.Frames,
		"completed", drv.LastCompletedFrame(),
		"pending_deletes", hmd.Pipeline().Deletions().Len(),
	}
	if s, ok := drv.(*sim.Driver); ok {
		st := s.Stats()
		attrs = append(attrs, "swapchains", st.LiveSwapchains, "submits", st.Submits)
	}
	xrbridge.Logger().Info("xrsim: stats", attrs...)
}

func quadDesc(i int) layer.Descriptor {
	d := layer.NewDescriptor(0, 0)
	d.Texture = solid(color.RGBA{R: uint8(80 * i), G: 200, B: 80, A: 255})
	d.Priority = int32(i)
	d.Transform.Translation = xrmath.Vec3{X: 300, Y: float32(i-1) * 120}
	if i%2 == 1 {
		d.Flags |= layer.ContinuousUpdate
	}
	return d
}

func solid(c color.RGBA) *software.Texture {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return software.NewTexture(img)
}

// solidLoader stands in for image decoding: every configured splash texture
// becomes a grey square.
func solidLoader(string) (backend.Texture, error) {
	return solid(color.RGBA{R: 128, G: 128, B: 128, A: 255}), nil
}
