package rhitest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

type resource struct {
	label    string
	released bool
}

func (r *resource) Label() string { return r.label }
func (r *resource) Release()      { r.released = true }

// Released reports whether Release was called.
func (r *resource) Released() bool { return r.released }

// Object backs samplers and bind group layouts.
type Object struct {
	resource
}

// Buffer is a recorded buffer.
type Buffer struct {
	resource
	Desc rhi.BufferDesc
}

func (b *Buffer) Size() uint64 { return b.Desc.Size }

// Texture is a recorded texture. Releasing it removes it from its device's live set.
type Texture struct {
	resource
	desc      rhi.TextureDesc
	onRelease func()
}

func (t *Texture) Desc() rhi.TextureDesc { return t.desc }

func (t *Texture) Release() {
	if t.released {
		return
	}
	t.released = true
	if t.onRelease != nil {
		t.onRelease()
	}
}

func (t *Texture) CreateView(desc *rhi.TextureViewDesc) (rhi.TextureView, error) {
	if t.released {
		return nil, rhi.ErrReleased
	}
	label := t.label + " View"
	if desc != nil && desc.Label != "" {
		label = desc.Label
	}
	return &TextureView{resource: resource{label: label}, tex: t}, nil
}

// TextureView is a recorded texture view.
type TextureView struct {
	resource
	tex rhi.Texture
}

func (v *TextureView) Texture() rhi.Texture { return v.tex }

// ShaderModule keeps the WGSL it was created from.
type ShaderModule struct {
	resource
	Code string
}

// PipelineLayout keeps its set layouts, nil for gaps.
type PipelineLayout struct {
	resource
	Sets []rhi.BindGroupLayout
}

// RenderPipeline keeps its descriptor.
type RenderPipeline struct {
	resource
	Desc rhi.RenderPipelineDesc
}

// BindGroup keeps its descriptor so passes can report what they read.
type BindGroup struct {
	resource
	Desc rhi.BindGroupDesc
}

// RenderPass is a recorded render pass object.
type RenderPass struct {
	resource
	desc   rhi.RenderPassDesc
	colors []wgpu.TextureFormat
	depth  wgpu.TextureFormat
}

func (p *RenderPass) Desc() rhi.RenderPassDesc           { return p.desc }
func (p *RenderPass) ColorFormats() []wgpu.TextureFormat { return p.colors }
func (p *RenderPass) DepthFormat() wgpu.TextureFormat    { return p.depth }

// SwapChain is a scripted rhi.SwapChain.
type SwapChain struct {
	mu *sync.Mutex

	width, height  uint32
	surfaceW       uint32
	surfaceH       uint32
	format         wgpu.TextureFormat
	failAcquire    bool
	acquired       bool
	acquires       int
	presents       int
	autoResizes    int
	swapchainImage *Texture
}

var _ rhi.SwapChain = &SwapChain{}

// NewSwapChain creates a swapchain of the given size in BGRA8.
func NewSwapChain(width, height uint32) *SwapChain {
	return &SwapChain{
		mu:       &sync.Mutex{},
		width:    width,
		height:   height,
		surfaceW: width,
		surfaceH: height,
		format:   wgpu.TextureFormatBGRA8Unorm,
		swapchainImage: &Texture{
			resource: resource{label: "Swapchain"},
			desc:     rhi.TextureDesc{Label: "Swapchain", Width: width, Height: height, Format: wgpu.TextureFormatBGRA8Unorm},
		},
	}
}

// SetSurfaceSize changes the size the next AutoResize picks up.
func (s *SwapChain) SetSurfaceSize(width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaceW, s.surfaceH = width, height
}

// FailAcquire makes AcquireNextImage fail until called again with false.
func (s *SwapChain) FailAcquire(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAcquire = fail
}

// Presents returns the number of presented images.
func (s *SwapChain) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// Acquires returns the number of successful acquisitions.
func (s *SwapChain) Acquires() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquires
}

// AutoResizes returns the number of AutoResize calls.
func (s *SwapChain) AutoResizes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoResizes
}

func (s *SwapChain) Size() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *SwapChain) Format() wgpu.TextureFormat { return s.format }

func (s *SwapChain) AcquireNextImage() (rhi.TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAcquire {
		return nil, fmt.Errorf("%w: %w", rhi.ErrSurfaceUnavailable, ErrInjected)
	}
	if s.acquired {
		return nil, fmt.Errorf("previous frame not yet presented: %w", rhi.ErrSurfaceUnavailable)
	}
	s.acquired = true
	s.acquires++
	return &TextureView{resource: resource{label: "Swapchain View"}, tex: s.swapchainImage}, nil
}

func (s *SwapChain) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acquired {
		return nil
	}
	s.acquired = false
	s.presents++
	return nil
}

func (s *SwapChain) AutoResize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoResizes++
	if s.surfaceW == s.width && s.surfaceH == s.height {
		return false
	}
	s.width, s.height = s.surfaceW, s.surfaceH
	s.swapchainImage.desc.Width, s.swapchainImage.desc.Height = s.width, s.height
	return true
}
