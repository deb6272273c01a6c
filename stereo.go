// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xrbridge

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/config"
	"github.com/gogpu/xrbridge/driver"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
)

// Render target limits.
const (
	MaxRenderTargetWidth  = 8192
	MaxRenderTargetHeight = 4096

	renderTargetAlign = 4
)

// IdealRenderTargetSize is the side-by-side render target size at the
// current pixel density, halved horizontally with multiview, rounded up to
// a multiple of 4 and clamped to 8192x4096.
func (h *HMD) IdealRenderTargetSize() (width, height uint32) {
	div := float32(1)
	if h.settings.Multiview {
		div = 2
	}
	w := uint32(math32.Ceil(float32(h.recommended[0]*2) * h.pixelDensity / div))
	hh := uint32(math32.Ceil(float32(h.recommended[1]) * h.pixelDensity))
	return min(alignUp(w), MaxRenderTargetWidth), min(alignUp(hh), MaxRenderTargetHeight)
}

func alignUp(v uint32) uint32 {
	return (v + renderTargetAlign - 1) &^ (renderTargetAlign - 1)
}

// PixelDensity is the render target scale.
func (h *HMD) PixelDensity() float32 { return h.pixelDensity }

// SetPixelDensity sets the render target scale, clamped to [0.5, 2]. The eye
// layer is resized at the next OnBeginRendering.
func (h *HMD) SetPixelDensity(v float32) {
	h.pixelDensity = min(max(v, config.MinPixelDensity), config.MaxPixelDensity)
}

func (h *HMD) eyeDescriptor() layer.Descriptor {
	w, hh := h.IdealRenderTargetSize()
	d := layer.NewDescriptor(w, hh)
	d.Shape = layer.Projection{}
	d.SampleCount = uint32(h.settings.MSAA)
	if h.settings.Multiview {
		d.ArraySize = 2
	}
	return d
}

// refreshEyeLayer installs a new eye descriptor when the ideal size or
// sampling changed. The render stage then reallocates the eye swapchain.
func (h *HMD) refreshEyeLayer() {
	cur, ok := h.layers.Descriptor(layer.EyeLayerID)
	if !ok {
		return
	}
	want := h.eyeDescriptor()
	if cur.Width == want.Width && cur.Height == want.Height &&
		cur.ArraySize == want.ArraySize && cur.SampleCount == want.SampleCount {
		return
	}
	cur.Width, cur.Height = want.Width, want.Height
	cur.ArraySize, cur.SampleCount = want.ArraySize, want.SampleCount
	if err := h.layers.SetDescriptor(layer.EyeLayerID, cur); err != nil {
		xrlog.Logger().Warn("xrbridge: eye layer resize failed", "err", err)
		return
	}
	xrlog.Logger().Info("xrbridge: eye layer resized", "width", cur.Width, "height", cur.Height)
}

// AllocateRenderTarget returns the eye swapchain image the host renders the
// next frame into. It reports false until the render stage has created the
// eye swapchain. Call it from the render stage.
func (h *HMD) AllocateRenderTarget() (backend.Texture, bool) {
	sc, ok := h.pipe.EyeSwapchain()
	if !ok || sc.Len() == 0 {
		return nil, false
	}
	img := sc.Image((sc.Index() + 1) % sc.Len())
	return img, img != nil
}

// MaskHiddenArea blacks out the pixels of an eye render target that the
// lenses never show. Backends without a mask pass leave tex untouched.
func (h *HMD) MaskHiddenArea(tex backend.Texture) error {
	m, ok := h.backend.(backend.HiddenAreaMasker)
	if !ok || tex == nil {
		return nil
	}
	return m.MaskHiddenArea(tex, !h.settings.Multiview)
}

// Frustum returns the cached field of view of eye.
func (h *HMD) Frustum(eye driver.Eye) xrmath.Frustum { return h.frustums[eye] }

// StereoProjectionMatrix returns eye's reversed-Z projection at the
// current world scale.
func (h *HMD) StereoProjectionMatrix(eye driver.Eye) xrmath.Mat4 {
	return xrmath.OffAxisProjection(h.frustums[eye], h.worldToMeters)
}

// FieldOfView returns the horizontal and vertical field of view in degrees,
// averaged over both eyes.
func (h *HMD) FieldOfView() (hfov, vfov float32) {
	lh, lv := h.frustums[driver.EyeLeft].FOV()
	rh, rv := h.frustums[driver.EyeRight].FOV()
	return xrmath.RadToDeg(lh+rh) / 2, xrmath.RadToDeg(lv+rv) / 2
}

// IPD returns the interpupillary distance in metres.
func (h *HMD) IPD() float32 {
	if h.pose == nil {
		return driver.DefaultIPD
	}
	return h.pose.IPD()
}

// RelativeEyePose returns eye's offset from the head centre in world units.
func (h *HMD) RelativeEyePose(eye driver.Eye) (xrmath.Quat, xrmath.Vec3) {
	off := eye.Sign() * 0.5 * h.IPD() * h.worldToMeters
	return xrmath.Identity, xrmath.Vec3{Y: off}
}

// CurrentPose returns the head orientation and position in world units for
// the open game frame. It reports false without one.
//
// In 3DoF mode the position comes from the neck model: the neck offset
// rotated by the head orientation, lowered by the neck height.
func (h *HMD) CurrentPose() (xrmath.Quat, xrmath.Vec3, bool) {
	f := h.pipe.GameFrame()
	if f == nil {
		return xrmath.Identity, xrmath.Vec3{}, false
	}
	t := f.Tracking
	orient := t.Pose.Orientation
	if orient == (xrmath.Quat{}) {
		orient = xrmath.Identity
	}
	scale := f.WorldToMetersScale

	if h.settings.TrackingMode == config.Tracking3DoF {
		n := h.settings.NeckOffset
		neck := xrmath.Vec3{X: n[0], Y: n[1], Z: n[2]}
		pos := orient.Rotate(neck).Sub(xrmath.Up.Scale(neck.Z))
		return orient, pos.Scale(scale), true
	}
	return orient, t.Pose.Position.Scale(scale), true
}
