// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package blit implements the CPU layer copy shared by the software and HAL
// backends: rect-to-rect scaling followed by per-pixel alpha and color
// adjustments.
package blit

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Options mirrors backend.BlitOptions without importing it.
type Options struct {
	SrcRect, DstRect image.Rectangle
	Premultiply      bool
	NoAlphaWrite     bool
	SRGBSource       bool
	InvertAlpha      bool
	FlipY            bool
}

// srgbToLinear maps 8-bit sRGB values to 8-bit linear values.
var srgbToLinear [256]uint8

func init() {
	for i := range srgbToLinear {
		c := float64(i) / 255
		var l float64
		if c <= 0.04045 {
			l = c / 12.92
		} else {
			l = math.Pow((c+0.055)/1.055, 2.4)
		}
		srgbToLinear[i] = uint8(math.Round(l * 255))
	}
}

// Draw copies src into dst according to opts.
func Draw(dst *image.RGBA, src image.Image, opts Options) {
	sr := opts.SrcRect
	if sr.Empty() {
		sr = src.Bounds()
	}
	dr := opts.DstRect
	if dr.Empty() {
		dr = dst.Bounds()
	}
	dr = dr.Intersect(dst.Bounds())
	if dr.Empty() || sr.Empty() {
		return
	}

	tmp := image.NewRGBA(image.Rect(0, 0, dr.Dx(), dr.Dy()))
	if sr.Dx() == dr.Dx() && sr.Dy() == dr.Dy() {
		draw.Copy(tmp, image.Point{}, src, sr, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(tmp, tmp.Bounds(), src, sr, draw.Src, nil)
	}

	if opts.FlipY {
		flipRows(tmp)
	}
	adjust(tmp, opts)

	for y := 0; y < dr.Dy(); y++ {
		so := y * tmp.Stride
		do := dst.PixOffset(dr.Min.X, dr.Min.Y+y)
		row := tmp.Pix[so : so+dr.Dx()*4]
		if !opts.NoAlphaWrite {
			copy(dst.Pix[do:do+len(row)], row)
			continue
		}
		for x := 0; x < len(row); x += 4 {
			copy(dst.Pix[do+x:do+x+3], row[x:x+3])
		}
	}
}

func flipRows(img *image.RGBA) {
	h := img.Bounds().Dy()
	w := img.Bounds().Dx() * 4
	buf := make([]byte, w)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : y*img.Stride+w]
		bot := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+w]
		copy(buf, top)
		copy(top, bot)
		copy(bot, buf)
	}
}

func adjust(img *image.RGBA, opts Options) {
	if !opts.SRGBSource && !opts.Premultiply && !opts.InvertAlpha {
		return
	}
	p := img.Pix
	for i := 0; i+3 < len(p); i += 4 {
		if opts.SRGBSource {
			p[i] = srgbToLinear[p[i]]
			p[i+1] = srgbToLinear[p[i+1]]
			p[i+2] = srgbToLinear[p[i+2]]
		}
		if opts.Premultiply {
			a := uint32(p[i+3])
			p[i] = uint8(uint32(p[i]) * a / 255)
			p[i+1] = uint8(uint32(p[i+1]) * a / 255)
			p[i+2] = uint8(uint32(p[i+2]) * a / 255)
		}
		if opts.InvertAlpha {
			p[i+3] = 255 - p[i+3]
		}
	}
}

// Fill sets every pixel of dst to c.
func Fill(dst *image.RGBA, c color.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// MaskHiddenArea paints opaque black over the pixels outside each eye's
// lens circle. A side-by-side image holds one eye per half.
func MaskHiddenArea(dst *image.RGBA, sideBySide bool) {
	b := dst.Bounds()
	eyes := 1
	if sideBySide {
		eyes = 2
	}
	ew := b.Dx() / eyes
	if ew == 0 || b.Dy() == 0 {
		return
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		v := 2*(float64(y-b.Min.Y)+0.5)/float64(b.Dy()) - 1
		for x := b.Min.X; x < b.Max.X; x++ {
			lx := (x - b.Min.X) % ew
			u := 2*(float64(lx)+0.5)/float64(ew) - 1
			if u*u+v*v <= 1 {
				continue
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = 0, 0, 0, 255
		}
	}
}
