// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xrbridge

import (
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/splash"
)

// OnPreLoadMap shows the loading screen at once when auto-show is on.
func (h *HMD) OnPreLoadMap(name string) { h.splash.OnPreLoadMap(name) }

// OnPostLoadMap hides an auto-shown loading screen at the next game frame.
func (h *HMD) OnPostLoadMap() { h.splash.OnPostLoadMap() }

// ShowLoadingScreen shows the loading screen at the next game frame.
func (h *HMD) ShowLoadingScreen() { h.splash.Show() }

// HideLoadingScreen hides the loading screen at the next game frame.
func (h *HMD) HideLoadingScreen() { h.splash.Hide() }

// IsLoadingScreenShown reports whether the splash owns the compositor.
func (h *HMD) IsLoadingScreenShown() bool { return h.splash.IsShown() }

// AddSplash registers a loading screen image.
func (h *HMD) AddSplash(d splash.Desc) { h.splash.AddSplash(d) }

// ClearSplashes removes every loading screen image.
func (h *HMD) ClearSplashes() { h.splash.ClearSplashes() }

// loadSplashes registers the splash layers listed in the settings.
func (h *HMD) loadSplashes() {
	layers := h.settings.Splash.Layers
	if len(layers) == 0 {
		return
	}
	log := xrlog.Logger()
	if h.loader == nil {
		log.Warn("xrbridge: splash layers configured without a texture loader", "count", len(layers))
		return
	}
	for _, sl := range layers {
		tex, err := h.loader(sl.Texture)
		if err != nil {
			log.Warn("xrbridge: splash texture load failed", "path", sl.Texture, "err", err)
			continue
		}
		h.splash.AddSplash(splash.Desc{
			Texture: tex,
			Transform: xrmath.Transform{
				Rotation:    xrmath.Identity,
				Translation: xrmath.Vec3{X: sl.Translation[0], Y: sl.Translation[1], Z: sl.Translation[2]},
				Scale:       xrmath.Vec3{X: 1, Y: 1, Z: 1},
			},
			QuadSize:   sl.Size,
			NoAlpha:    sl.NoAlpha,
			LiveUpdate: sl.LiveUpdate,
		})
	}
}
