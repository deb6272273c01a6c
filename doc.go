// Package xrbridge connects a game engine's frame loop to a VR compositor.
//
// # Overview
//
// An HMD owns the compositor layers (the stereo eye buffer, quads, splash
// screens and mixed reality capture surfaces) and moves each frame through
// three execution contexts:
//
//   - game: the host's main loop. Begins frames, blocks on the display wait
//     and edits layers.
//   - render: reconciles the layer list against live swapchains, late-latches
//     the head pose and copies layer textures.
//   - RHI: begins the compositor frame, submits layers in priority order and
//     ends the frame.
//
// Every hand-off between contexts is a copy, so the game goroutine can start
// frame N+1 while frame N renders and frame N-1 is presented.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/xrbridge"
//	    "github.com/gogpu/xrbridge/driver"
//	    _ "github.com/gogpu/xrbridge/driver/sim"
//	)
//
//	drv, err := driver.Open(driver.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hmd, err := xrbridge.New(drv, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer hmd.Shutdown()
//	if err := hmd.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for running {
//	    hmd.OnStartGameFrame()
//	    // simulate
//	    hmd.OnEndGameFrame(ctx)
//	    hmd.OnBeginRendering()
//	}
//
// # Packages
//
//   - layer: layer descriptors, the game-side layer table and swapchain
//     reconciliation
//   - pipeline: the game, render and RHI stages
//   - splash: the loading screen producer
//   - driver: the compositor interface and driver registry; driver/sim is a
//     simulated compositor
//   - backend: render-target allocation and texture copies; backend/software
//     and backend/gpu implement it
//   - config: TOML settings with hot reload
//   - event: compositor notifications
//
// # Logging
//
// xrbridge is silent by default. SetLogger enables structured logging for
// the package and every sub-package.
package xrbridge
