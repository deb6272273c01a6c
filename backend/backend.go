// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backend defines the graphics backend consumed by the frame
// pipeline: render-target allocation, layer texture blits and GPU command
// submission.
//
// Two implementations ship with xrbridge:
//
//   - backend/software: CPU images, used by tests and the simulator
//   - backend/gpu: gogpu/wgpu HAL textures
package backend

import (
	"errors"
	"image"

	"github.com/gogpu/gputypes"
)

// Errors returned by backends.
var (
	// ErrInvalidTexture is returned when a texture does not belong to the
	// backend or has been released.
	ErrInvalidTexture = errors.New("backend: invalid texture")

	// ErrFormatMismatch is returned when a blit source cannot be converted
	// to the destination format.
	ErrFormatMismatch = errors.New("backend: format mismatch")

	// ErrUnsupportedFormat is returned when allocating a texture in a format
	// the backend cannot store.
	ErrUnsupportedFormat = errors.New("backend: unsupported texture format")

	// ErrInvalidSize is returned for zero-sized allocations.
	ErrInvalidSize = errors.New("backend: invalid texture size")
)

// Texture is an image owned by a backend or supplied by the host as a layer
// source.
type Texture interface {
	Width() int
	Height() int
	Format() gputypes.TextureFormat
}

// Readable is a texture whose pixels are available on the CPU.
// Layer source textures must implement it for the CPU blit path.
type Readable interface {
	Texture
	Pixels() image.Image
}

// TextureDesc describes a render target allocation.
type TextureDesc struct {
	Label       string
	Width       uint32
	Height      uint32
	ArraySize   uint32
	MipCount    uint32
	SampleCount uint32
	Format      gputypes.TextureFormat
}

// Normalized returns d with zero counts replaced by 1.
func (d TextureDesc) Normalized() TextureDesc {
	if d.ArraySize == 0 {
		d.ArraySize = 1
	}
	if d.MipCount == 0 {
		d.MipCount = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	return d
}

// BlitOptions controls a texture copy.
type BlitOptions struct {
	// SrcRect is the source region. Empty means the whole source.
	SrcRect image.Rectangle
	// DstRect is the destination region. Empty means the whole destination.
	DstRect image.Rectangle

	// Premultiply treats the source as straight alpha and multiplies color
	// by alpha while copying.
	Premultiply bool
	// NoAlphaWrite preserves the destination alpha channel.
	NoAlphaWrite bool
	// SRGBSource decodes sRGB-encoded source color to linear.
	SRGBSource bool
	// InvertAlpha writes 1-alpha.
	InvertAlpha bool
	// FlipY mirrors the source vertically.
	FlipY bool
}

// Backend is the graphics backend used on the render thread.
type Backend interface {
	// AllocateRenderTarget creates a texture suitable as a swapchain image.
	AllocateRenderTarget(desc TextureDesc) (Texture, error)

	// ReleaseRenderTarget frees a texture created by AllocateRenderTarget.
	ReleaseRenderTarget(tex Texture)

	// Blit copies src into dst.
	Blit(dst, src Texture, opts BlitOptions) error

	// Clear fills dst with a solid color.
	Clear(dst Texture, c gputypes.Color) error

	// Submit flushes recorded GPU work for the frame.
	Submit() error
}

// HiddenAreaMasker is implemented by backends that can black out the
// pixels of an eye render target the lenses never show.
type HiddenAreaMasker interface {
	// MaskHiddenArea fills everything outside the lens area of dst with
	// opaque black. sideBySide selects one lens per horizontal half.
	MaskHiddenArea(dst Texture, sideBySide bool) error
}
