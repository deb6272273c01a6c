// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package event defines the closed set of device notifications consumed by
// the HMD once per game tick, and the bounded queue that carries them.
package event

import "fmt"

// Event is one of the variants declared in this package. The set is closed:
// only types in this package implement it.
type Event interface {
	isEvent()
	fmt.Stringer
}

// SessionState is the compositor session lifecycle state.
type SessionState int

// Session states reported by the driver.
const (
	SessionIdle SessionState = iota
	SessionReady
	SessionFocused
	SessionStopping
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionReady:
		return "ready"
	case SessionFocused:
		return "focused"
	case SessionStopping:
		return "stopping"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// SessionStateChanged reports a session lifecycle transition.
type SessionStateChanged struct{ State SessionState }

// SeeThroughStateChanged reports camera passthrough state.
type SeeThroughStateChanged struct{ State int }

// FoveationLevelChanged reports a new fixed foveation level.
type FoveationLevelChanged struct{ Level int }

// FrustumChanged asks the HMD to re-query eye frustums.
type FrustumChanged struct{}

// RenderTextureChanged reports a new recommended eye texture size.
type RenderTextureChanged struct{ Width, Height uint32 }

// TargetFrameRateChanged reports an application frame rate request.
type TargetFrameRateChanged struct{ Rate float32 }

// IPDChanged reports a new interpupillary distance in metres.
type IPDChanged struct{ IPD float32 }

// MRCStatusChanged reports mixed reality capture being toggled.
type MRCStatusChanged struct{ Enabled bool }

// RefreshRateChanged reports the display refresh rate in Hz.
type RefreshRateChanged struct{ Rate float32 }

// InputFocusChanged reports whether the application holds input focus.
type InputFocusChanged struct{ Focused bool }

// SettingsChanged carries freshly loaded settings. Payload is opaque here to
// keep this package free of config imports.
type SettingsChanged struct{ Settings any }

func (SessionStateChanged) isEvent()    {}
func (SeeThroughStateChanged) isEvent() {}
func (FoveationLevelChanged) isEvent()  {}
func (FrustumChanged) isEvent()         {}
func (RenderTextureChanged) isEvent()   {}
func (TargetFrameRateChanged) isEvent() {}
func (IPDChanged) isEvent()             {}
func (MRCStatusChanged) isEvent()       {}
func (RefreshRateChanged) isEvent()     {}
func (InputFocusChanged) isEvent()      {}
func (SettingsChanged) isEvent()        {}

func (e SessionStateChanged) String() string { return "session state: " + e.State.String() }
func (e SeeThroughStateChanged) String() string {
	return fmt.Sprintf("see-through state: %d", e.State)
}
func (e FoveationLevelChanged) String() string { return fmt.Sprintf("foveation level: %d", e.Level) }
func (FrustumChanged) String() string          { return "frustum changed" }
func (e RenderTextureChanged) String() string {
	return fmt.Sprintf("render texture: %dx%d", e.Width, e.Height)
}
func (e TargetFrameRateChanged) String() string {
	return fmt.Sprintf("target frame rate: %g", e.Rate)
}
func (e IPDChanged) String() string         { return fmt.Sprintf("ipd: %g", e.IPD) }
func (e MRCStatusChanged) String() string   { return fmt.Sprintf("mrc enabled: %t", e.Enabled) }
func (e RefreshRateChanged) String() string { return fmt.Sprintf("refresh rate: %g", e.Rate) }
func (e InputFocusChanged) String() string  { return fmt.Sprintf("input focus: %t", e.Focused) }
func (SettingsChanged) String() string      { return "settings changed" }
