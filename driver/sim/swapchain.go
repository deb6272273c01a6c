// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sim

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/layer"
)

// Swapchain is a ring of backend render targets. Index and Advance are
// atomic; Release frees the images exactly once.
type Swapchain struct {
	desc    layer.SwapchainDesc
	owner   *Driver
	images  []backend.Texture
	index   atomic.Int64
	release sync.Once
}

// CreateSwapchain implements layer.Allocator. Static swapchains get a single
// image; the rest get Config.RingSize.
func (d *Driver) CreateSwapchain(desc layer.SwapchainDesc) (layer.Swapchain, error) {
	n := d.cfg.RingSize
	if desc.Static {
		n = 1
	}
	layers := max(desc.ArraySize, 1) * max(desc.FaceCount, 1)
	sc := &Swapchain{desc: desc, owner: d}
	for i := range n {
		tex, err := d.backend.AllocateRenderTarget(backend.TextureDesc{
			Label:       fmt.Sprintf("%s[%d]", desc.Label, i),
			Width:       desc.Width,
			Height:      desc.Height,
			ArraySize:   layers,
			MipCount:    desc.MipCount,
			SampleCount: desc.SampleCount,
			Format:      desc.Format,
		})
		if err != nil {
			for _, t := range sc.images {
				d.backend.ReleaseRenderTarget(t)
			}
			return nil, fmt.Errorf("sim: create swapchain %q: %w", desc.Label, err)
		}
		sc.images = append(sc.images, tex)
	}
	d.live.Add(1)
	d.log().Debug("sim: swapchain created", "layer", desc.LayerID, "images", n,
		"size", fmt.Sprintf("%dx%d", desc.Width, desc.Height))
	return sc, nil
}

// Desc returns the creation parameters.
func (s *Swapchain) Desc() layer.SwapchainDesc { return s.desc }

// Index implements layer.Swapchain.
func (s *Swapchain) Index() int { return int(s.index.Load()) }

// Len implements layer.Swapchain.
func (s *Swapchain) Len() int { return len(s.images) }

// Advance implements layer.Swapchain.
func (s *Swapchain) Advance() {
	n := int64(len(s.images))
	for {
		cur := s.index.Load()
		if s.index.CompareAndSwap(cur, (cur+1)%n) {
			return
		}
	}
}

// Image implements layer.Swapchain.
func (s *Swapchain) Image(i int) backend.Texture {
	if i < 0 || i >= len(s.images) {
		return nil
	}
	return s.images[i]
}

// Release implements layer.Swapchain.
func (s *Swapchain) Release() {
	s.release.Do(func() {
		for _, t := range s.images {
			s.owner.backend.ReleaseRenderTarget(t)
		}
		s.owner.live.Add(-1)
		s.owner.released.Add(1)
	})
}
