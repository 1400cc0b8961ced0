package rhi

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	label string
	size  uint64
	buf   *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }
func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type wgpuTexture struct {
	desc TextureDesc
	tex  *wgpu.Texture
}

func (t *wgpuTexture) Label() string     { return t.desc.Label }
func (t *wgpuTexture) Desc() TextureDesc { return t.desc }
func (t *wgpuTexture) Release() {
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

func (t *wgpuTexture) CreateView(desc *TextureViewDesc) (TextureView, error) {
	if t.tex == nil {
		return nil, ErrReleased
	}

	var (
		view *wgpu.TextureView
		err  error
	)
	label := t.desc.Label + " View"
	if desc == nil {
		view, err = t.tex.CreateView(nil)
	} else {
		label = common.Coalesce(desc.Label, label)
		view, err = t.tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           label,
			Format:          t.desc.Format,
			Dimension:       desc.Dimension,
			BaseMipLevel:    0,
			MipLevelCount:   common.Coalesce(t.desc.MipLevelCount, 1),
			BaseArrayLayer:  0,
			ArrayLayerCount: arrayLayerCount(t.desc, desc.Dimension),
			Aspect:          common.Coalesce(desc.Aspect, wgpu.TextureAspectAll),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("rhi: create view of %q: %w", t.desc.Label, err)
	}
	return &wgpuTextureView{label: label, v: view, tex: t}, nil
}

// arrayLayerCount returns the layer count of a view; 3D textures expose their depth through a single layer.
func arrayLayerCount(desc TextureDesc, dim wgpu.TextureViewDimension) uint32 {
	if dim == wgpu.TextureViewDimension3D || desc.Dimension == wgpu.TextureDimension3D {
		return 1
	}
	return common.Coalesce(desc.DepthOrArrayLayers, 1)
}

type wgpuTextureView struct {
	label string
	v     *wgpu.TextureView
	tex   *wgpuTexture
}

func (v *wgpuTextureView) Label() string    { return v.label }
func (v *wgpuTextureView) Texture() Texture { return v.tex }
func (v *wgpuTextureView) Release() {
	if v.v != nil {
		v.v.Release()
		v.v = nil
	}
}

type wgpuSampler struct {
	label string
	s     *wgpu.Sampler
}

func (s *wgpuSampler) Label() string { return s.label }
func (s *wgpuSampler) Release() {
	if s.s != nil {
		s.s.Release()
		s.s = nil
	}
}

type wgpuShaderModule struct {
	label string
	m     *wgpu.ShaderModule
}

func (m *wgpuShaderModule) Label() string { return m.label }
func (m *wgpuShaderModule) Release() {
	if m.m != nil {
		m.m.Release()
		m.m = nil
	}
}

type wgpuBindGroupLayout struct {
	label string
	l     *wgpu.BindGroupLayout
}

func (l *wgpuBindGroupLayout) Label() string { return l.label }
func (l *wgpuBindGroupLayout) Release() {
	if l.l != nil {
		l.l.Release()
		l.l = nil
	}
}

type wgpuPipelineLayout struct {
	label string
	l     *wgpu.PipelineLayout
}

func (l *wgpuPipelineLayout) Label() string { return l.label }
func (l *wgpuPipelineLayout) Release() {
	if l.l != nil {
		l.l.Release()
		l.l = nil
	}
}

type wgpuRenderPipeline struct {
	label string
	p     *wgpu.RenderPipeline
}

func (p *wgpuRenderPipeline) Label() string { return p.label }
func (p *wgpuRenderPipeline) Release() {
	if p.p != nil {
		p.p.Release()
		p.p = nil
	}
}

type wgpuBindGroup struct {
	label string
	bg    *wgpu.BindGroup
}

func (b *wgpuBindGroup) Label() string { return b.label }
func (b *wgpuBindGroup) Release() {
	if b.bg != nil {
		b.bg.Release()
		b.bg = nil
	}
}

// renderPass holds no GPU object; WebGPU passes are described at record time.
type renderPass struct {
	desc         RenderPassDesc
	colorFormats []wgpu.TextureFormat
	depthFormat  wgpu.TextureFormat
}

func newRenderPass(desc RenderPassDesc, swapchainFormat wgpu.TextureFormat) *renderPass {
	p := &renderPass{desc: desc, depthFormat: wgpu.TextureFormatUndefined}

	if len(desc.ColorFormats) > 0 {
		p.colorFormats = append(p.colorFormats, desc.ColorFormats...)
	} else {
		for _, a := range desc.ColorAttachments {
			if a.View == nil {
				p.colorFormats = append(p.colorFormats, swapchainFormat)
				continue
			}
			p.colorFormats = append(p.colorFormats, a.View.Texture().Desc().Format)
		}
	}
	if desc.DepthStencil != nil && desc.DepthStencil.View != nil {
		p.depthFormat = desc.DepthStencil.View.Texture().Desc().Format
	}
	return p
}

func (p *renderPass) Label() string                      { return p.desc.Label }
func (p *renderPass) Desc() RenderPassDesc               { return p.desc }
func (p *renderPass) ColorFormats() []wgpu.TextureFormat { return p.colorFormats }
func (p *renderPass) DepthFormat() wgpu.TextureFormat    { return p.depthFormat }
func (p *renderPass) Release()                           {}
