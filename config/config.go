// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package config loads, saves and watches the TOML settings file.
//
// A settings file looks like:
//
//	tracking_mode = "6dof"
//	refresh_rate = 90
//	pixel_density = 1.2
//	log_level = "info"
//
//	[splash]
//	auto_show = true
//
//	[[splash.layers]]
//	texture = "splash/logo.png"
//	translation = [500, 0, 100]
//	size = [200, 100]
//
// Missing keys keep their Default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jinzhu/copier"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidSettings is returned by Validate and Load for out-of-range
// values.
var ErrInvalidSettings = errors.New("config: invalid settings")

// TrackingMode selects rotational-only or full positional tracking.
type TrackingMode string

// Tracking modes.
const (
	Tracking3DoF TrackingMode = "3dof"
	Tracking6DoF TrackingMode = "6dof"
)

// Foveation levels.
const (
	FoveationNone = iota
	FoveationLow
	FoveationMedium
	FoveationHigh
	FoveationTop
)

// Pixel density bounds.
const (
	MinPixelDensity = 0.5
	MaxPixelDensity = 2.0
)

// DefaultNeckOffset is the neck model offset in metres: forward, right, up.
var DefaultNeckOffset = [3]float32{0.0805, 0, 0.075}

// Settings are the user-tunable HMD settings.
type Settings struct {
	TrackingMode   TrackingMode `toml:"tracking_mode"`
	FoveationLevel int          `toml:"foveation_level"`
	RefreshRate    float32      `toml:"refresh_rate"`
	NeckOffset     [3]float32   `toml:"neck_offset"`
	MRCEnabled     bool         `toml:"mrc_enabled"`
	PixelDensity   float32      `toml:"pixel_density"`
	Multiview      bool         `toml:"multiview"`
	MSAA           int          `toml:"msaa"`
	LogLevel       string       `toml:"log_level"`

	Splash Splash `toml:"splash"`
}

// Splash configures the loading screen.
type Splash struct {
	AutoShow bool          `toml:"auto_show"`
	Layers   []SplashLayer `toml:"layers"`
}

// SplashLayer is one loading-screen image. Texture is a path resolved by
// the host's texture loader.
type SplashLayer struct {
	Texture     string     `toml:"texture"`
	Translation [3]float32 `toml:"translation"`
	Size        [2]float32 `toml:"size"`
	NoAlpha     bool       `toml:"no_alpha"`
	LiveUpdate  bool       `toml:"live_update"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	return Settings{
		TrackingMode: Tracking6DoF,
		NeckOffset:   DefaultNeckOffset,
		PixelDensity: 1,
		MSAA:         1,
		LogLevel:     "info",
		Splash:       Splash{AutoShow: true},
	}
}

// Validate reports the first out-of-range value, wrapped in
// ErrInvalidSettings.
func (s *Settings) Validate() error {
	switch {
	case s.TrackingMode != Tracking3DoF && s.TrackingMode != Tracking6DoF:
		return fmt.Errorf("%w: tracking_mode %q", ErrInvalidSettings, s.TrackingMode)
	case s.FoveationLevel < FoveationNone || s.FoveationLevel > FoveationTop:
		return fmt.Errorf("%w: foveation_level %d", ErrInvalidSettings, s.FoveationLevel)
	case s.RefreshRate < 0:
		return fmt.Errorf("%w: refresh_rate %g", ErrInvalidSettings, s.RefreshRate)
	case s.PixelDensity < MinPixelDensity || s.PixelDensity > MaxPixelDensity:
		return fmt.Errorf("%w: pixel_density %g", ErrInvalidSettings, s.PixelDensity)
	}
	switch s.MSAA {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: msaa %d", ErrInvalidSettings, s.MSAA)
	}
	if _, err := s.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidSettings, s.LogLevel)
	}
	return nil
}

// SlogLevel parses LogLevel. An empty level is Info.
func (s *Settings) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	err := lvl.UnmarshalText([]byte(s.LogLevel))
	return lvl, err
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	out := new(Settings)
	if err := copier.CopyWithOption(out, s, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on mismatched kinds, which cannot happen here.
		panic(err)
	}
	return out
}

// Decode reads settings from r on top of Default and validates them.
func Decode(r io.Reader) (*Settings, error) {
	s := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and validates the settings file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Settings, error) {
	s, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		d := Default()
		return &d, nil
	}
	return s, err
}

// Save writes s to path.
func Save(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
