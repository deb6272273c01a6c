// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xrbridge

import (
	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/internal/xrlog"
	"github.com/gogpu/xrbridge/internal/xrmath"
	"github.com/gogpu/xrbridge/layer"
)

// CreateLayer adds a layer and returns its id. The swapchain is created by
// the render stage on the next committed frame.
func (h *HMD) CreateLayer(desc layer.Descriptor) layer.ID {
	id := h.layers.Create(desc, 0)
	xrlog.Logger().Debug("xrbridge: layer created", "layer", id)
	return id
}

// DestroyLayer removes a layer. The eye layer cannot be destroyed.
func (h *HMD) DestroyLayer(id layer.ID) bool {
	if id == layer.EyeLayerID {
		return false
	}
	return h.layers.Destroy(id)
}

// SetLayerDesc replaces a layer's descriptor.
func (h *HMD) SetLayerDesc(id layer.ID, desc layer.Descriptor) error {
	return h.layers.SetDescriptor(id, desc)
}

// GetLayerDesc returns a layer's descriptor.
func (h *HMD) GetLayerDesc(id layer.ID) (layer.Descriptor, bool) {
	return h.layers.Descriptor(id)
}

// MarkTextureForUpdate copies a static layer's texture on the next frame.
func (h *HMD) MarkTextureForUpdate(id layer.ID) bool {
	return h.layers.MarkTextureForUpdate(id)
}

// LayerIDs returns every layer id in ascending order.
func (h *HMD) LayerIDs() []layer.ID { return h.layers.SortedIDs() }

// CreateMRCLayer creates the mixed reality capture layer composing the
// foreground over the background capture. It returns the existing id when
// the layer already exists.
func (h *HMD) CreateMRCLayer(background, foreground backend.Texture) layer.ID {
	if len(h.mrcIDs) > 0 {
		return h.mrcLayer
	}
	d := layer.NewDescriptor(0, 0)
	d.PositionType = layer.FaceLocked
	d.Texture = foreground
	d.LeftTexture = background
	if foreground != nil {
		d.Format = foreground.Format()
	}
	d.Flags = layer.ContinuousUpdate | layer.QuadPreserveTexRatio | layer.NoAlphaChannel

	id := h.layers.Create(d, layer.RoleMRC)
	h.mrcLayer = id
	h.mrcIDs = append(h.mrcIDs, id)
	xrlog.Logger().Debug("xrbridge: mrc layer created", "layer", id)
	return id
}

// DestroyAllMRCLayers destroys every MRC layer and reports how many there
// were. A second call destroys nothing.
func (h *HMD) DestroyAllMRCLayers() int {
	n := 0
	for _, id := range h.mrcIDs {
		if h.layers.Destroy(id) {
			n++
		}
	}
	h.mrcIDs = nil
	return n
}

// DebugCanvasLayerDesc returns the descriptor for a face-locked debug
// overlay drawing tex above every other layer.
func DebugCanvasLayerDesc(tex backend.Texture) layer.Descriptor {
	d := layer.NewDescriptor(0, 0)
	d.PositionType = layer.FaceLocked
	d.Priority = layer.DebugCanvasPriority
	d.Shape = layer.Quad{Width: 1, Height: 1}
	d.Transform = xrmath.Transform{
		Rotation:    xrmath.Identity,
		Translation: xrmath.Vec3{X: 100},
		Scale:       xrmath.Vec3{X: 1, Y: 1, Z: 1},
	}
	d.Texture = tex
	if tex != nil {
		d.Format = tex.Format()
	}
	d.Flags = layer.ContinuousUpdate
	return d
}
