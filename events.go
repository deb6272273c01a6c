// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xrbridge

import (
	"github.com/gogpu/xrbridge/config"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/event"
	"github.com/gogpu/xrbridge/internal/xrlog"
)

// drainEvents moves the driver's pending events into the HMD queue and
// handles everything queued, once per game frame.
func (h *HMD) drainEvents() int {
	for {
		e, ok := h.drv.PollEvent()
		if !ok {
			break
		}
		if h.events.Push(e) {
			xrlog.Logger().Warn("xrbridge: event queue full, oldest event dropped")
		}
	}
	return h.events.Drain(h.handleEvent)
}

func (h *HMD) handleEvent(e event.Event) {
	log := xrlog.Logger()
	log.Debug("xrbridge: event", "event", e)

	switch e := e.(type) {
	case event.SessionStateChanged:
		switch e.State {
		case event.SessionReady, event.SessionFocused:
			h.renderingEnabled = true
		case event.SessionIdle, event.SessionStopping:
			h.renderingEnabled = false
		}
		log.Info("xrbridge: session state", "state", e.State, "rendering", h.renderingEnabled)
	case event.SeeThroughStateChanged:
		h.seeThrough = e.State
	case event.FoveationLevelChanged:
		h.settings.FoveationLevel = e.Level
	case event.FrustumChanged:
		h.refreshFrustums()
	case event.RenderTextureChanged:
		h.recommended = [2]uint32{e.Width, e.Height}
	case event.TargetFrameRateChanged:
		h.targetFrameRate = e.Rate
	case event.IPDChanged:
		// The pose source already holds the new value.
		log.Info("xrbridge: ipd changed", "ipd", e.IPD)
	case event.MRCStatusChanged:
		h.mrcEnabled = e.Enabled
		if !e.Enabled {
			h.DestroyAllMRCLayers()
		}
	case event.RefreshRateChanged:
		h.refreshRate = e.Rate
		log.Info("xrbridge: refresh rate changed", "hz", e.Rate)
	case event.InputFocusChanged:
		h.inputFocus = e.Focused
	case event.SettingsChanged:
		s, ok := e.Settings.(*config.Settings)
		if !ok {
			log.Error("xrbridge: settings event without settings", "payload", e.Settings)
			return
		}
		h.applySettings(s)
	default:
		log.Error("xrbridge: unhandled event", "type", e)
	}
}

// applySettings takes the values that can change at runtime.
func (h *HMD) applySettings(s *config.Settings) {
	h.settings = s.Clone()
	h.applyDriverSettings()
	h.SetPixelDensity(s.PixelDensity)
	h.splash.SetAutoShow(s.Splash.AutoShow)
	if !s.MRCEnabled && h.mrcEnabled {
		h.DestroyAllMRCLayers()
	}
	h.mrcEnabled = s.MRCEnabled
	xrlog.Logger().Info("xrbridge: settings applied")
}

// applyDriverSettings requests the configured refresh rate and foveation
// level from drivers that accept them. A zero refresh rate keeps the
// driver's own.
func (h *HMD) applyDriverSettings() {
	log := xrlog.Logger()
	if hz := h.settings.RefreshRate; hz > 0 && hz != h.drv.RefreshRate() {
		if rs, ok := h.drv.(driver.RefreshRateSetter); ok {
			rs.SetRefreshRate(hz)
			log.Info("xrbridge: refresh rate requested", "hz", hz)
		} else {
			log.Warn("xrbridge: driver cannot change refresh rate", "hz", hz)
		}
	}
	h.refreshRate = h.drv.RefreshRate()
	if fs, ok := h.drv.(driver.FoveationSetter); ok {
		fs.SetFoveationLevel(h.settings.FoveationLevel)
	}
}

func (h *HMD) refreshFrustums() {
	h.frustums[driver.EyeLeft] = h.drv.Frustum(driver.EyeLeft)
	h.frustums[driver.EyeRight] = h.drv.Frustum(driver.EyeRight)
}

// InputFocus reports whether the application holds input focus.
func (h *HMD) InputFocus() bool { return h.inputFocus }

// SeeThroughState is the last reported camera passthrough state.
func (h *HMD) SeeThroughState() int { return h.seeThrough }

// RefreshRate is the last reported display refresh rate in Hz.
func (h *HMD) RefreshRate() float32 { return h.refreshRate }

// TargetFrameRate is the last application frame rate request, or 0.
func (h *HMD) TargetFrameRate() float32 { return h.targetFrameRate }

// FoveationLevel is the active fixed foveation level.
func (h *HMD) FoveationLevel() int { return h.settings.FoveationLevel }

// MRCEnabled reports whether mixed reality capture is on.
func (h *HMD) MRCEnabled() bool { return h.mrcEnabled }
