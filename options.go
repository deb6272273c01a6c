package xrbridge

import (
	"log/slog"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/config"
	"github.com/gogpu/xrbridge/internal/stage"
	"github.com/gogpu/xrbridge/pipeline"
	"github.com/gogpu/xrbridge/splash"
)

// Option configures an HMD during creation.
// Use functional options to customize HMD behavior.
//
// Example:
//
//	// Simulated compositor with the CPU backend
//	hmd, err := xrbridge.New(drv, nil)
//
//	// Custom backend and settings file
//	s, _ := config.LoadOrDefault("xr.toml")
//	hmd, err := xrbridge.New(drv, nil,
//	    xrbridge.WithBackend(gpuBackend),
//	    xrbridge.WithSettings(s))
type Option func(*options)

// TextureLoader resolves a splash texture path from the settings file.
type TextureLoader func(path string) (backend.Texture, error)

// options holds optional configuration for HMD creation.
type options struct {
	backend  backend.Backend
	settings *config.Settings
	logger   *slog.Logger
	pipeline pipeline.Config
	splash   splash.Config
	loader   TextureLoader
	events   int
}

// defaultOptions returns the default HMD options.
func defaultOptions() options {
	return options{
		pipeline: pipeline.Config{AutoPresent: true},
	}
}

// WithBackend sets the graphics backend used for layer copies.
// Without it the driver's backend is used if it exposes one, otherwise the
// highest-priority registered backend.
func WithBackend(b backend.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithSettings sets the initial settings. The HMD keeps a private copy.
//
// Example:
//
//	s, err := config.Load("xr.toml")
//	if err != nil {
//	    return err
//	}
//	hmd, err := xrbridge.New(drv, nil, xrbridge.WithSettings(s))
func WithSettings(s *config.Settings) Option {
	return func(o *options) {
		if s != nil {
			o.settings = s.Clone()
		}
	}
}

// WithLogger sets the package logger, like SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPipelineConfig replaces the frame pipeline configuration.
func WithPipelineConfig(cfg pipeline.Config) Option {
	return func(o *options) {
		o.pipeline = cfg
	}
}

// WithExecutors runs the render and RHI stages on the given executors.
// Tests pass stage.Manual values to step frames deterministically.
func WithExecutors(render, rhi stage.Executor) Option {
	return func(o *options) {
		o.pipeline.Render = render
		o.pipeline.RHI = rhi
	}
}

// WithManualPresent disables the automatic present after each RHI begin.
// The host must then call HMD.Present once per frame.
func WithManualPresent() Option {
	return func(o *options) {
		o.pipeline.AutoPresent = false
	}
}

// WithSplashConfig sets the loading screen configuration. AutoShow is taken
// from the settings.
func WithSplashConfig(cfg splash.Config) Option {
	return func(o *options) {
		o.splash = cfg
	}
}

// WithTextureLoader sets how splash texture paths from the settings are
// loaded. Without a loader those splash layers are skipped.
func WithTextureLoader(fn TextureLoader) Option {
	return func(o *options) {
		o.loader = fn
	}
}

// WithEventCapacity bounds the HMD event queue.
func WithEventCapacity(n int) Option {
	return func(o *options) {
		o.events = n
	}
}
