// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu implements backend.Backend on a gogpu/wgpu HAL device.
//
// Every texture keeps a CPU shadow image per array slice. Layer blits run
// the shared CPU blit on the shadow and upload it with Queue.WriteTexture,
// so any source that implements backend.Readable can be copied, including
// other textures of this backend. Clears and the hidden-area mask are
// recorded as render passes and flushed by Submit.
//
// The backend either opens its own device through a registered HAL backend or shares one
// with the host through a gpucontext.DeviceProvider that also exposes the
// HAL device and queue.
package gpu

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrbridge/backend"
	"github.com/gogpu/xrbridge/internal/blit"
	"github.com/gogpu/xrbridge/internal/xrlog"
)

func init() {
	backend.Register(backend.NameHAL, 20, func() (backend.Backend, error) {
		return Open(gputypes.BackendVulkan)
	})
}

//go:embed shaders/mask.wgsl
var maskShaderWGSL string

// submitTimeout bounds the fence wait in Submit.
const submitTimeout = 5 * time.Second

// Errors returned by the GPU backend.
var (
	// ErrNoHALProvider is returned when a device provider does not expose
	// HAL types.
	ErrNoHALProvider = errors.New("gpu: provider does not expose HAL device and queue")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("gpu: backend closed")

	// ErrSubmitTimeout is returned when the GPU does not signal the submit
	// fence in time.
	ErrSubmitTimeout = errors.New("gpu: submit timed out")
)

// Texture is a HAL texture with a CPU shadow copy.
type Texture struct {
	label   string
	desc    backend.TextureDesc
	tex     hal.Texture
	views   []hal.TextureView
	shadows []*image.RGBA
	owner   *Backend
}

// Width implements backend.Texture.
func (t *Texture) Width() int { return int(t.desc.Width) }

// Height implements backend.Texture.
func (t *Texture) Height() int { return int(t.desc.Height) }

// Format implements backend.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// Pixels implements backend.Readable with the first slice's shadow.
func (t *Texture) Pixels() image.Image { return t.shadows[0] }

// Shadow returns the CPU copy of array slice i.
func (t *Texture) Shadow(i int) *image.RGBA { return t.shadows[i] }

// HAL returns the underlying HAL texture.
func (t *Texture) HAL() hal.Texture { return t.tex }

// Label returns the allocation label.
func (t *Texture) Label() string { return t.label }

type maskKey struct {
	format     gputypes.TextureFormat
	samples    uint32
	sideBySide bool
}

// Backend is a backend.Backend on a HAL device. Safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	shared   bool
	closed   bool
	live     map[*Texture]struct{}
	pending  []hal.CommandBuffer

	shader  hal.ShaderModule
	layout  hal.PipelineLayout
	masks   map[maskKey]hal.RenderPipeline
	uploads atomic.Uint64
	submits atomic.Uint64
}

// New creates a backend on device and queue. The backend does not take
// ownership of the device.
func New(device hal.Device, queue hal.Queue) *Backend {
	return &Backend{
		device: device,
		queue:  queue,
		shared: true,
		live:   make(map[*Texture]struct{}),
		masks:  make(map[maskKey]hal.RenderPipeline),
	}
}

// NewFromProvider creates a backend sharing the host's GPU device. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHALProvider, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHALProvider, hp.HalQueue())
	}
	return New(device, queue), nil
}

// Open creates a backend on a device of the given HAL backend, preferring
// a discrete or integrated GPU. Close destroys the device.
func Open(kind gputypes.Backend) (*Backend, error) {
	api, ok := hal.GetBackend(kind)
	if !ok {
		return nil, fmt.Errorf("gpu: %v: %w", kind, backend.ErrBackendNotAvailable)
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapters: %w", backend.ErrBackendNotAvailable)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}
	b := New(open.Device, open.Queue)
	b.shared = false
	b.instance = instance
	xrlog.Logger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return b, nil
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
		return nil, fmt.Errorf("gpu: allocate %q: %w", desc.Label, backend.ErrInvalidSize)
	}
	if !supported(desc.Format) {
		return nil, fmt.Errorf("gpu: allocate %q (%v): %w", desc.Label, desc.Format, backend.ErrUnsupportedFormat)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	usage := gputypes.TextureUsageRenderAttachment
	if desc.SampleCount == 1 {
		usage |= gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: desc.ArraySize},
		MipLevelCount: desc.MipCount,
		SampleCount:   desc.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: allocate %q: %w", desc.Label, err)
	}

	t := &Texture{label: desc.Label, desc: desc, tex: tex, owner: b}
	for i := range desc.ArraySize {
		view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s_slice_%d", desc.Label, i),
			Format:          desc.Format,
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			BaseArrayLayer:  i,
			ArrayLayerCount: 1,
		})
		if err != nil {
			b.destroy(t)
			return nil, fmt.Errorf("gpu: allocate %q view %d: %w", desc.Label, i, err)
		}
		t.views = append(t.views, view)
		t.shadows = append(t.shadows, image.NewRGBA(image.Rect(0, 0, int(desc.Width), int(desc.Height))))
	}
	b.live[t] = struct{}{}
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
	if _, ok := b.live[t]; !ok {
		return
	}
	delete(b.live, t)
	b.destroy(t)
}

// destroy frees t's HAL objects. Caller holds b.mu.
func (b *Backend) destroy(t *Texture) {
	for _, v := range t.views {
		b.device.DestroyTextureView(v)
	}
	t.views = nil
	if t.tex != nil {
		b.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// owned returns tex as a live texture of b. Caller holds b.mu.
func (b *Backend) owned(tex backend.Texture) (*Texture, error) {
	if b.closed {
		return nil, ErrClosed
	}
	t, ok := tex.(*Texture)
	if !ok || t.owner != b {
		return nil, backend.ErrInvalidTexture
	}
	if _, live := b.live[t]; !live {
		return nil, backend.ErrInvalidTexture
	}
	return t, nil
}

// Blit implements backend.Backend. Every array slice of dst receives the
// source image. Multisampled destinations cannot be uploaded to.
func (b *Backend) Blit(dst, src backend.Texture, opts backend.BlitOptions) error {
	r, ok := src.(backend.Readable)
	if !ok {
		return fmt.Errorf("gpu: blit source %T: %w", src, backend.ErrFormatMismatch)
	}
	pixels := r.Pixels()

	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.owned(dst)
	if err != nil {
		return fmt.Errorf("gpu: blit destination: %w", err)
	}
	if d.desc.SampleCount > 1 {
		return fmt.Errorf("gpu: blit into multisampled %q: %w", d.label, backend.ErrFormatMismatch)
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
	for _, s := range d.shadows {
		blit.Draw(s, pixels, o)
	}
	b.upload(d)
	return nil
}

// upload writes every shadow slice of t to the GPU. Caller holds b.mu.
func (b *Backend) upload(t *Texture) {
	w, h := t.desc.Width, t.desc.Height
	data := make([]byte, 0, len(t.shadows)*int(w*h*4))
	for _, s := range t.shadows {
		data = append(data, rowsFor(s, t.desc.Format)...)
	}
	b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: uint32(len(t.shadows))},
	)
	b.uploads.Add(1)
}

// rowsFor returns the shadow pixels in the texture's byte order.
func rowsFor(s *image.RGBA, f gputypes.TextureFormat) []byte {
	if f != gputypes.TextureFormatBGRA8Unorm {
		return s.Pix
	}
	out := make([]byte, len(s.Pix))
	for i := 0; i < len(s.Pix); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = s.Pix[i+2], s.Pix[i+1], s.Pix[i], s.Pix[i+3]
	}
	return out
}

// Clear implements backend.Backend with one clear pass per array slice.
// The color is premultiplied before it is stored.
func (b *Backend) Clear(dst backend.Texture, c gputypes.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.owned(dst)
	if err != nil {
		return fmt.Errorf("gpu: clear: %w", err)
	}
	pre := gputypes.Color{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A}

	cb, err := b.encode("clear_"+d.label, func(enc hal.CommandEncoder) {
		for i, v := range d.views {
			rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
				Label: fmt.Sprintf("clear_%s_%d", d.label, i),
				ColorAttachments: []hal.RenderPassColorAttachment{{
					View:       v,
					LoadOp:     gputypes.LoadOpClear,
					StoreOp:    gputypes.StoreOpStore,
					ClearValue: pre,
				}},
			})
			rp.End()
		}
	})
	if err != nil {
		return fmt.Errorf("gpu: clear %q: %w", d.label, err)
	}
	b.pending = append(b.pending, cb)

	fill := color.RGBA{R: unorm(float64(pre.R)), G: unorm(float64(pre.G)), B: unorm(float64(pre.B)), A: unorm(float64(pre.A))}
	for _, s := range d.shadows {
		blit.Fill(s, fill)
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

// encode records one command buffer. Caller holds b.mu.
func (b *Backend) encode(label string, record func(hal.CommandEncoder)) (hal.CommandBuffer, error) {
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	record(enc)
	cb, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cb, nil
}

// MaskHiddenArea implements backend.HiddenAreaMasker.
func (b *Backend) MaskHiddenArea(dst backend.Texture, sideBySide bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.owned(dst)
	if err != nil {
		return fmt.Errorf("gpu: mask: %w", err)
	}
	pipeline, err := b.maskPipeline(maskKey{format: d.desc.Format, samples: d.desc.SampleCount, sideBySide: sideBySide})
	if err != nil {
		return fmt.Errorf("gpu: mask %q: %w", d.label, err)
	}
	cb, err := b.encode("mask_"+d.label, func(enc hal.CommandEncoder) {
		for i, v := range d.views {
			rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
				Label: fmt.Sprintf("mask_%s_%d", d.label, i),
				ColorAttachments: []hal.RenderPassColorAttachment{{
					View:    v,
					LoadOp:  gputypes.LoadOpLoad,
					StoreOp: gputypes.StoreOpStore,
				}},
			})
			rp.SetPipeline(pipeline)
			rp.Draw(3, 1, 0, 0)
			rp.End()
		}
	})
	if err != nil {
		return fmt.Errorf("gpu: mask %q: %w", d.label, err)
	}
	b.pending = append(b.pending, cb)
	for _, s := range d.shadows {
		blit.MaskHiddenArea(s, sideBySide)
	}
	return nil
}

// Submit implements backend.Backend. It submits the recorded passes and
// waits for the GPU to finish them.
func (b *Backend) Submit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.submits.Add(1)
	if len(b.pending) == 0 {
		return nil
	}
	cbs := b.pending
	b.pending = nil
	defer func() {
		for _, cb := range cbs {
			b.device.FreeCommandBuffer(cb)
		}
	}()

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)
	if err := b.queue.Submit(cbs, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	ok, err := b.device.Wait(fence, 1, submitTimeout)
	if err != nil {
		return fmt.Errorf("gpu: wait for GPU: %w", err)
	}
	if !ok {
		return ErrSubmitTimeout
	}
	return nil
}

// Stats reports counters for diagnostics and tests.
type Stats struct {
	Live    int
	Pending int
	Uploads uint64
	Submits uint64
}

// Stats returns a snapshot of the backend counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Live:    len(b.live),
		Pending: len(b.pending),
		Uploads: b.uploads.Load(),
		Submits: b.submits.Load(),
	}
}

// Close releases every texture and pipeline. A device opened by Open is
// destroyed too. Close is idempotent.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, cb := range b.pending {
		b.device.FreeCommandBuffer(cb)
	}
	b.pending = nil
	for t := range b.live {
		b.destroy(t)
	}
	clear(b.live)
	b.destroyPipelines()
	if !b.shared {
		b.device.Destroy()
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}
