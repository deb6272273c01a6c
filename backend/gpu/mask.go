// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// compileWGSL compiles WGSL source to SPIR-V words.
func compileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// maskPipeline returns the hidden-area pipeline for key, building the
// shader module and layout on first use. Caller holds b.mu.
func (b *Backend) maskPipeline(key maskKey) (hal.RenderPipeline, error) {
	if p, ok := b.masks[key]; ok {
		return p, nil
	}
	if b.shader == nil {
		code, err := compileWGSL(maskShaderWGSL)
		if err != nil {
			return nil, err
		}
		shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  "hidden_area_mask",
			Source: hal.ShaderSource{SPIRV: code},
		})
		if err != nil {
			return nil, fmt.Errorf("create shader module: %w", err)
		}
		b.shader = shader
	}
	if b.layout == nil {
		layout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label: "hidden_area_mask_layout",
		})
		if err != nil {
			return nil, fmt.Errorf("create pipeline layout: %w", err)
		}
		b.layout = layout
	}

	entry := "fs_single"
	if key.sideBySide {
		entry = "fs_side_by_side"
	}
	p, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "hidden_area_mask_" + entry,
		Layout: b.layout,
		Vertex: hal.VertexState{
			Module:     b.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     b.shader,
			EntryPoint: entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    key.format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: key.samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}
	b.masks[key] = p
	return p, nil
}

// destroyPipelines frees the mask pipelines, layout and shader. Caller
// holds b.mu.
func (b *Backend) destroyPipelines() {
	for k, p := range b.masks {
		b.device.DestroyRenderPipeline(p)
		delete(b.masks, k)
	}
	if b.layout != nil {
		b.device.DestroyPipelineLayout(b.layout)
		b.layout = nil
	}
	if b.shader != nil {
		b.device.DestroyShaderModule(b.shader)
		b.shader = nil
	}
}
