package rhi

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuDevice implements Device on top of the cogentcore WebGPU bindings.
type wgpuDevice struct {
	mu *sync.Mutex

	label string

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	forceFallbackAdapter bool
	presentMode          PresentMode

	swapChain *wgpuSwapChain

	// emptyLayout fills unused set indices in pipeline layouts.
	emptyLayout *wgpu.BindGroupLayout
	// zeroSlice is reused by ClearTexture for every slice upload.
	zeroSlice []byte
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice creates the WebGPU instance, surface, adapter, device and swapchain for a window surface.
// The calling goroutine is locked to its OS thread, since surfaces must be used from the thread that created the window.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window
//   - surfaceSize: returns the window framebuffer size; polled by SwapChain.AutoResize
//   - options: functional options for adapter and present configuration
//
// Returns:
//   - Device: the device
//   - SwapChain: the swapchain configured to the current surface size
//   - error: an error if any step of device creation fails
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, surfaceSize func() (int, int), options ...DeviceBuilderOption) (Device, SwapChain, error) {
	runtime.LockOSThread()

	if surfaceDescriptor == nil {
		return nil, nil, errors.New("rhi: nil surface descriptor")
	}

	d := &wgpuDevice{
		mu:          &sync.Mutex{},
		label:       "Foreground Device",
		instance:    wgpu.CreateInstance(nil),
		presentMode: PresentModeVSync,
	}
	for _, opt := range options {
		opt(d)
	}

	surface := d.instance.CreateSurface(surfaceDescriptor)

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rhi: failed to request adapter: %w", err)
	}
	d.adapter = a

	// Engine common, material, per-primitive and voxel sets use 0-3; leave headroom for debug sets.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: d.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rhi: failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	sc := &wgpuSwapChain{
		mu:          &sync.Mutex{},
		device:      d,
		surface:     surface,
		sizeFn:      surfaceSize,
		presentMode: d.presentMode,
	}
	w, h := surfaceSize()
	sc.configure(uint32(max(w, 1)), uint32(max(h, 1)))
	d.swapChain = sc

	return d, sc, nil
}

func (d *wgpuDevice) CreateBuffer(desc *BufferDesc) (Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: create buffer %q: %w", desc.Label, err)
	}
	return &wgpuBuffer{label: desc.Label, size: desc.Size, buf: buf}, nil
}

func (d *wgpuDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok || b.buf == nil {
		return ErrReleased
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

func (d *wgpuDevice) CreateTexture(desc *TextureDesc) (Texture, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: common.Coalesce(desc.DepthOrArrayLayers, 1),
		},
		MipLevelCount: common.Coalesce(desc.MipLevelCount, 1),
		SampleCount:   common.Coalesce(desc.SampleCount, 1),
		Dimension:     common.Coalesce(desc.Dimension, wgpu.TextureDimension2D),
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: create texture %q: %w", desc.Label, err)
	}
	return &wgpuTexture{desc: *desc, tex: tex}, nil
}

func (d *wgpuDevice) WriteTexture(tex Texture, data []byte, bytesPerRow uint32) error {
	t, ok := tex.(*wgpuTexture)
	if !ok || t.tex == nil {
		return ErrReleased
	}
	layers := common.Coalesce(t.desc.DepthOrArrayLayers, 1)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: t.desc.Height,
		},
		&wgpu.Extent3D{
			Width:              t.desc.Width,
			Height:             t.desc.Height,
			DepthOrArrayLayers: layers,
		},
	)
	return nil
}

// clearTexture zero-fills tex one slice at a time so the staging upload never exceeds one slice.
func (d *wgpuDevice) clearTexture(t *wgpuTexture) {
	bytesPerRow := t.desc.Width * BytesPerTexel(t.desc.Format)
	sliceSize := int(bytesPerRow * t.desc.Height)

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.zeroSlice) < sliceSize {
		d.zeroSlice = make([]byte, sliceSize)
	}
	for z := range common.Coalesce(t.desc.DepthOrArrayLayers, 1) {
		d.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  t.tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{Z: z},
				Aspect:   wgpu.TextureAspectAll,
			},
			d.zeroSlice[:sliceSize],
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: t.desc.Height,
			},
			&wgpu.Extent3D{
				Width:              t.desc.Width,
				Height:             t.desc.Height,
				DepthOrArrayLayers: 1,
			},
		)
	}
}

func (d *wgpuDevice) CreateSampler(desc *SamplerDesc) (Sampler, error) {
	s := desc.SamplerStagingData
	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(s.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(s.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(s.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
		Compare:       s.Compare,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: create sampler %q: %w", desc.Label, err)
	}
	return &wgpuSampler{label: desc.Label, s: samp}, nil
}

func (d *wgpuDevice) CreateShaderModule(desc *ShaderModuleDesc) (ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Code,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: compile %q: %w", desc.Label, err)
	}
	return &wgpuShaderModule{label: desc.Label, m: m}, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayout, error) {
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: desc.Entries,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: create bind group layout %q: %w", desc.Label, err)
	}
	return &wgpuBindGroupLayout{label: desc.Label, l: l}, nil
}

func (d *wgpuDevice) CreatePipelineLayout(desc *PipelineLayoutDesc) (PipelineLayout, error) {
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		if wl, ok := l.(*wgpuBindGroupLayout); ok && wl != nil {
			layouts[i] = wl.l
			continue
		}
		empty, err := d.emptyBindGroupLayout()
		if err != nil {
			return nil, err
		}
		layouts[i] = empty
	}

	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: create pipeline layout %q: %w", desc.Label, err)
	}
	return &wgpuPipelineLayout{label: desc.Label, l: pl}, nil
}

// emptyBindGroupLayout lazily creates the layout used for set-index gaps.
func (d *wgpuDevice) emptyBindGroupLayout() (*wgpu.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.emptyLayout != nil {
		return d.emptyLayout, nil
	}
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "Empty Set"})
	if err != nil {
		return nil, fmt.Errorf("rhi: create empty bind group layout: %w", err)
	}
	d.emptyLayout = l
	return l, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipeline, error) {
	layout, ok := desc.Layout.(*wgpuPipelineLayout)
	if !ok {
		return nil, fmt.Errorf("rhi: pipeline %q has no layout", desc.Label)
	}
	vs, ok := desc.VertexModule.(*wgpuShaderModule)
	if !ok {
		return nil, fmt.Errorf("rhi: pipeline %q has no vertex module", desc.Label)
	}

	var fragment *wgpu.FragmentState
	if fs, ok := desc.FragmentModule.(*wgpuShaderModule); ok && fs != nil {
		fragment = &wgpu.FragmentState{
			Module:     fs.m,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    desc.ColorTargets,
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.l,
		Vertex: wgpu.VertexState{
			Module:     vs.m,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment:     fragment,
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample: wgpu.MultisampleState{
			Count: common.Coalesce(desc.Multisample.Count, 1),
			Mask:  common.Coalesce(desc.Multisample.Mask, 0xFFFFFFFF),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: create render pipeline %q: %w", desc.Label, err)
	}
	return &wgpuRenderPipeline{label: desc.Label, p: created}, nil
}

func (d *wgpuDevice) CreateBindGroup(desc *BindGroupDesc) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("rhi: bind group %q has no layout", desc.Label)
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			b, ok := e.Buffer.(*wgpuBuffer)
			if !ok || b.buf == nil {
				return nil, fmt.Errorf("rhi: bind group %q binding %d: %w", desc.Label, e.Binding, ErrReleased)
			}
			entry.Buffer = b.buf
			entry.Offset = e.Offset
			entry.Size = common.Coalesce(e.Size, wgpu.WholeSize)
		case e.TextureView != nil:
			v, ok := e.TextureView.(*wgpuTextureView)
			if !ok || v.v == nil {
				return nil, fmt.Errorf("rhi: bind group %q binding %d: %w", desc.Label, e.Binding, ErrReleased)
			}
			entry.TextureView = v.v
		case e.Sampler != nil:
			s, ok := e.Sampler.(*wgpuSampler)
			if !ok || s.s == nil {
				return nil, fmt.Errorf("rhi: bind group %q binding %d: %w", desc.Label, e.Binding, ErrReleased)
			}
			entry.Sampler = s.s
		default:
			return nil, fmt.Errorf("rhi: bind group %q binding %d has no resource", desc.Label, e.Binding)
		}
		entries[i] = entry
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.l,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("rhi: create bind group %q: %w", desc.Label, err)
	}
	return &wgpuBindGroup{label: desc.Label, bg: bg}, nil
}

func (d *wgpuDevice) CreateRenderPass(desc *RenderPassDesc) (RenderPass, error) {
	if len(desc.ColorAttachments) == 0 && desc.DepthStencil == nil {
		return nil, fmt.Errorf("rhi: render pass %q has no attachments", desc.Label)
	}
	return newRenderPass(*desc, d.swapChain.Format()), nil
}

func (d *wgpuDevice) BeginCommands(label string) (CommandContext, error) {
	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("rhi: create command encoder %q: %w", label, err)
	}
	return &wgpuCommands{device: d, encoder: encoder}, nil
}

func (d *wgpuDevice) WaitIdle() {
	d.device.Poll(true, nil)
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.emptyLayout != nil {
		d.emptyLayout.Release()
		d.emptyLayout = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
