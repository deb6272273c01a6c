// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/internal/xrlog"
)

// ErrLayerNotFound is returned when a layer id is not in the table.
var ErrLayerNotFound = errors.New("layer: not found")

// ID identifies a layer for the lifetime of the process.
type ID uint32

// EyeLayerID is reserved for the primary stereo eye-buffer layer.
const EyeLayerID ID = 0

// Role tags what a layer is used for.
type Role uint8

// Layer roles.
const (
	RoleEye Role = 1 << iota
	RoleSplash
	RoleMRC
	RoleBlackBackground
)

func (r Role) String() string {
	if r == 0 {
		return "quad"
	}
	var parts []string
	for _, p := range []struct {
		bit  Role
		name string
	}{{RoleEye, "eye"}, {RoleSplash, "splash"}, {RoleMRC, "mrc"}, {RoleBlackBackground, "black"}} {
		if r&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "|")
}

// Swapchain is a ring of compositor images. Index and Advance may be called
// from different goroutines; implementations synchronize them.
type Swapchain interface {
	// Index is the image the compositor will read for the current frame.
	Index() int
	// Len is the ring size.
	Len() int
	// Advance moves the ring to the next image.
	Advance()
	// Image returns the texture backing ring slot i.
	Image(i int) backend.Texture
	// Release frees the images. Called only from the deletion queue.
	Release()
}

// SwapchainDesc describes the swapchain a layer needs.
type SwapchainDesc struct {
	Label       string
	LayerID     ID
	Roles       Role
	Kind        ShapeKind
	Width       uint32
	Height      uint32
	Format      gputypes.TextureFormat
	ArraySize   uint32
	FaceCount   uint32
	SampleCount uint32
	MipCount    uint32
	// Static swapchains are written once.
	Static bool
}

// Allocator creates swapchains. The compositor driver implements it.
type Allocator interface {
	CreateSwapchain(desc SwapchainDesc) (Swapchain, error)
}

// Layer is one compositor surface. Layers held by the table are never
// mutated; changes install a modified clone. A clone shares the swapchain
// handle of its source.
type Layer struct {
	id            ID
	desc          Descriptor
	roles         Role
	swapchain     Swapchain
	updateTexture bool

	// fresh is set when Initialize allocated a new swapchain whose images
	// have not received the source texture yet.
	fresh bool
}

// New creates a layer without GPU resources.
func New(id ID, desc Descriptor, roles Role) *Layer {
	return &Layer{id: id, desc: desc.normalized(), roles: roles}
}

// Clone returns a shallow copy sharing the swapchain handle.
func (l *Layer) Clone() *Layer {
	c := *l
	return &c
}

// WithDescriptor returns a clone carrying d.
func (l *Layer) WithDescriptor(d Descriptor) *Layer {
	c := l.Clone()
	c.desc = d.normalized()
	return c
}

// ID returns the layer id.
func (l *Layer) ID() ID { return l.id }

// Descriptor returns a copy of the descriptor.
func (l *Layer) Descriptor() Descriptor { return l.desc }

// Roles returns the role tags.
func (l *Layer) Roles() Role { return l.roles }

// Is reports whether the layer has role r.
func (l *Layer) Is(r Role) bool { return l.roles&r != 0 }

// Swapchain returns the GPU resource, nil until initialized.
func (l *Layer) Swapchain() Swapchain { return l.swapchain }

// UpdateTexture reports whether the source texture is copied this frame.
func (l *Layer) UpdateTexture() bool { return l.updateTexture }

// Visible reports whether the layer is submitted to the compositor.
func (l *Layer) Visible() bool {
	return l.swapchain != nil && !l.desc.Has(Hidden)
}

// Priority is the submission order key. Role tags take fixed slots: the eye
// layer is always first, the black background sits at zero and splash
// layers are ordered by distance.
func (l *Layer) Priority() int32 {
	switch {
	case l.Is(RoleEye):
		return EyePriority
	case l.Is(RoleBlackBackground):
		return BlackPriority
	case l.Is(RoleSplash):
		d := float64(l.desc.Transform.Translation.X) * 1000
		d = math.Max(0, math.Min(d, math.MaxInt32))
		return math.MaxInt32 - int32(d)
	}
	return l.desc.Priority
}

func (l *Layer) needsSwapchain() bool {
	return l.Is(RoleEye|RoleBlackBackground) || l.desc.Texture != nil
}

// SwapchainDesc derives the swapchain parameters from the descriptor. A zero
// width or height takes the source texture size.
func (l *Layer) SwapchainDesc() SwapchainDesc {
	d := l.desc
	w, h := d.Width, d.Height
	if (w == 0 || h == 0) && d.Texture != nil {
		w, h = uint32(d.Texture.Width()), uint32(d.Texture.Height())
	}
	return SwapchainDesc{
		Label:       fmt.Sprintf("layer-%d", l.id),
		LayerID:     l.id,
		Roles:       l.roles,
		Kind:        d.Shape.Kind(),
		Width:       w,
		Height:      h,
		Format:      d.Format,
		ArraySize:   d.ArraySize,
		FaceCount:   faces(d.Shape),
		SampleCount: d.SampleCount,
		MipCount:    d.MipCount,
		Static:      !l.Is(RoleEye) && !d.Has(ContinuousUpdate),
	}
}

// CanReuse reports whether b's swapchain can serve a. Roles, format,
// dimensions, array size and sample count must all match.
func CanReuse(a, b *Layer) bool {
	if a == nil || b == nil {
		return false
	}
	da, db := a.SwapchainDesc(), b.SwapchainDesc()
	return da.Roles == db.Roles &&
		da.Format == db.Format &&
		da.Width == db.Width &&
		da.Height == db.Height &&
		da.ArraySize == db.ArraySize &&
		da.SampleCount == db.SampleCount
}

// Initialize gives l a swapchain on the render stage. With a compatible prev
// the handle is carried forward; otherwise a new one is allocated and prev
// handed to retire. On failure it returns false and leaves prev untouched.
func (l *Layer) Initialize(alloc Allocator, prev *Layer, retire func(*Layer)) bool {
	if !l.needsSwapchain() {
		return false
	}
	if prev != nil && prev.swapchain != nil && CanReuse(l, prev) {
		l.swapchain = prev.swapchain
		l.fresh = prev.fresh
		return true
	}
	sc, err := alloc.CreateSwapchain(l.SwapchainDesc())
	if err != nil {
		xrlog.Logger().Warn("layer: create swapchain failed", "layer", l.id, "err", err)
		return false
	}
	l.swapchain = sc
	l.fresh = true
	if prev != nil && prev.swapchain != nil {
		retire(prev)
	}
	return true
}

// CopyContents writes the source texture into the swapchain image the next
// Advance will expose. Black layers are cleared once; eye layers are
// rendered by the host and skipped.
func (l *Layer) CopyContents(b backend.Backend) error {
	sc := l.swapchain
	if sc == nil || l.Is(RoleEye) || sc.Len() == 0 {
		return nil
	}
	if !l.fresh && !l.updateTexture {
		return nil
	}
	next := (sc.Index() + 1) % sc.Len()

	if l.Is(RoleBlackBackground) {
		for i := range sc.Len() {
			img := sc.Image(i)
			if img == nil {
				continue
			}
			if err := b.Clear(img, gputypes.Color{A: 1}); err != nil {
				return err
			}
		}
		l.fresh = false
		return nil
	}

	src := l.desc.Texture
	if src == nil {
		return nil
	}
	dst := sc.Image(next)
	if dst == nil {
		return nil
	}
	opts := backend.BlitOptions{
		SrcRect:      uvToRect(l.desc.UVRect, src.Width(), src.Height()),
		DstRect:      image.Rect(0, 0, dst.Width(), dst.Height()),
		Premultiply:  l.desc.Has(PremultipliedAlpha),
		NoAlphaWrite: l.desc.Has(NoAlphaChannel),
		SRGBSource:   l.desc.Has(SRGBSource),
		InvertAlpha:  l.desc.Has(InvertAlpha),
	}
	if err := b.Blit(dst, src, opts); err != nil {
		return err
	}
	// A new ring gets the source in every slot so a later Advance never
	// exposes an empty image.
	if l.fresh {
		for i := range sc.Len() {
			if i == next {
				continue
			}
			if img := sc.Image(i); img != nil {
				if err := b.Blit(img, src, opts); err != nil {
					return err
				}
			}
		}
	}
	l.fresh = false
	return nil
}

func uvToRect(uv UVRect, w, h int) image.Rectangle {
	if uv == (UVRect{}) {
		uv = FullUV
	}
	r := image.Rect(
		int(uv.Min[0]*float32(w)), int(uv.Min[1]*float32(h)),
		int(uv.Max[0]*float32(w)), int(uv.Max[1]*float32(h)),
	)
	return r.Intersect(image.Rect(0, 0, w, h))
}

func (l *Layer) String() string {
	return fmt.Sprintf("layer(%d %s %dx%d prio=%d)", l.id, l.roles, l.desc.Width, l.desc.Height, l.Priority())
}
