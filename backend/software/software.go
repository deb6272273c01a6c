// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software implements backend.Backend with CPU images. It is the
// default backend of the simulator and the reference for tests.
package software

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/internal/blit"
)

func init() {
	backend.Register(backend.NameSoftware, 10, func() (backend.Backend, error) {
		return New(), nil
	})
}

// Texture is a CPU image with one RGBA8 plane per array slice.
type Texture struct {
	label  string
	format gputypes.TextureFormat
	slices []*image.RGBA
	owner  *Backend
}

// NewTexture wraps img as a layer source texture.
func NewTexture(img image.Image) *Texture {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		blit.Draw(rgba, img, blit.Options{})
	}
	return &Texture{format: gputypes.TextureFormatRGBA8Unorm, slices: []*image.RGBA{rgba}}
}

// Width implements backend.Texture.
func (t *Texture) Width() int { return t.slices[0].Bounds().Dx() }

// Height implements backend.Texture.
func (t *Texture) Height() int { return t.slices[0].Bounds().Dy() }

// Format implements backend.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Pixels returns the first array slice.
func (t *Texture) Pixels() image.Image { return t.slices[0] }

// Slice returns array slice i.
func (t *Texture) Slice(i int) *image.RGBA { return t.slices[i] }

// Label returns the allocation label.
func (t *Texture) Label() string { return t.label }

// Backend is a CPU implementation of backend.Backend. Safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	live     map[*Texture]struct{}
	submits  atomic.Uint64
	blits    atomic.Uint64
	released atomic.Uint64
}

// New creates a software backend.
func New() *Backend {
	return &Backend{live: make(map[*Texture]struct{})}
}

func supported(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return true
	}
	return false
}

// AllocateRenderTarget implements backend.Backend.
func (b *Backend) AllocateRenderTarget(desc backend.TextureDesc) (backend.Texture, error) {
	desc = desc.Normalized()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("software: allocate %q: %w", desc.Label, backend.ErrInvalidSize)
	}
	if !supported(desc.Format) {
		return nil, fmt.Errorf("software: allocate %q (%v): %w", desc.Label, desc.Format, backend.ErrUnsupportedFormat)
	}
	t := &Texture{label: desc.Label, format: desc.Format, owner: b}
	for range desc.ArraySize {
		t.slices = append(t.slices, image.NewRGBA(image.Rect(0, 0, int(desc.Width), int(desc.Height))))
	}
	b.mu.Lock()
	b.live[t] = struct{}{}
	b.mu.Unlock()
	return t, nil
}

// ReleaseRenderTarget implements backend.Backend.
func (b *Backend) ReleaseRenderTarget(tex backend.Texture) {
	t, ok := tex.(*Texture)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.live[t]; ok {
		delete(b.live, t)
		b.released.Add(1)
	}
}

func (b *Backend) owned(tex backend.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t.owner != b {
		return nil, backend.ErrInvalidTexture
	}
	b.mu.Lock()
	_, live := b.live[t]
	b.mu.Unlock()
	if !live {
		return nil, backend.ErrInvalidTexture
	}
	return t, nil
}

// Blit implements backend.Backend. Every array slice of dst receives the
// source image.
func (b *Backend) Blit(dst, src backend.Texture, opts backend.BlitOptions) error {
	d, err := b.owned(dst)
	if err != nil {
		return fmt.Errorf("software: blit destination: %w", err)
	}
	r, ok := src.(backend.Readable)
	if !ok {
		return fmt.Errorf("software: blit source %T: %w", src, backend.ErrFormatMismatch)
	}
	o := blit.Options{
		SrcRect:      opts.SrcRect,
		DstRect:      opts.DstRect,
		Premultiply:  opts.Premultiply,
		NoAlphaWrite: opts.NoAlphaWrite,
		SRGBSource:   opts.SRGBSource,
		InvertAlpha:  opts.InvertAlpha,
		FlipY:        opts.FlipY,
	}
	for _, s := range d.slices {
		blit.Draw(s, r.Pixels(), o)
	}
	b.blits.Add(1)
	return nil
}

// Clear implements backend.Backend.
func (b *Backend) Clear(dst backend.Texture, c gputypes.Color) error {
	d, err := b.owned(dst)
	if err != nil {
		return fmt.Errorf("software: clear: %w", err)
	}
	a := float64(c.A)
	rgba := color.RGBA{
		R: unorm(float64(c.R) * a),
		G: unorm(float64(c.G) * a),
		B: unorm(float64(c.B) * a),
		A: unorm(a),
	}
	for _, s := range d.slices {
		blit.Fill(s, rgba)
	}
	return nil
}

// MaskHiddenArea implements backend.HiddenAreaMasker on every array slice.
func (b *Backend) MaskHiddenArea(dst backend.Texture, sideBySide bool) error {
	d, err := b.owned(dst)
	if err != nil {
		return fmt.Errorf("software: mask: %w", err)
	}
	for _, s := range d.slices {
		blit.MaskHiddenArea(s, sideBySide)
	}
	return nil
}

func unorm(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Submit implements backend.Backend. CPU work is already complete, so this
// only counts frames.
func (b *Backend) Submit() error {
	b.submits.Add(1)
	return nil
}

// Stats reports counters for diagnostics and tests.
type Stats struct {
	Live     int
	Released uint64
	Blits    uint64
	Submits  uint64
}

// Stats returns a snapshot of the backend counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	live := len(b.live)
	b.mu.Unlock()
	return Stats{
		Live:     live,
		Released: b.released.Load(),
		Blits:    b.blits.Load(),
		Submits:  b.submits.Load(),
	}
}
