package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

// Formats of the targets the MegaPipeline allocates.
const (
	GBufferAlbedoFormat = wgpu.TextureFormatRGBA8Unorm
	GBufferNormalFormat = wgpu.TextureFormatRGBA8Unorm
	DepthFormat         = wgpu.TextureFormatDepth32Float
	AOFormat            = wgpu.TextureFormatR8Unorm
	LightingFormat      = wgpu.TextureFormatRGBA16Float
	VoxelFormat         = wgpu.TextureFormatR32Uint
	voxelDummyFormat    = wgpu.TextureFormatR8Unorm
)

const attachmentUsage = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding

// renderTarget is a texture with the view passes render into and read from.
type renderTarget struct {
	texture rhi.Texture
	view    rhi.TextureView
}

// newRenderTarget creates a single-mip target. Render targets are never 1D, so the zero Dimension selects 2D.
func newRenderTarget(device rhi.Device, desc *rhi.TextureDesc, viewDesc *rhi.TextureViewDesc) (renderTarget, error) {
	if desc.DepthOrArrayLayers == 0 {
		desc.DepthOrArrayLayers = 1
	}
	if desc.Dimension == wgpu.TextureDimension1D {
		desc.Dimension = wgpu.TextureDimension2D
	}
	desc.MipLevelCount, desc.SampleCount = 1, 1

	tex, err := device.CreateTexture(desc)
	if err != nil {
		return renderTarget{}, fmt.Errorf("create target %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(viewDesc)
	if err != nil {
		tex.Release()
		return renderTarget{}, fmt.Errorf("create view of %q: %w", desc.Label, err)
	}
	return renderTarget{texture: tex, view: view}, nil
}

func (t *renderTarget) release() {
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
	*t = renderTarget{}
}

// frameTargets are the swapchain-sized targets, the passes rendering into them and the descriptor sets reading
// them. Resize replaces the whole set.
type frameTargets struct {
	width, height uint32

	albedo, normal, depth renderTarget
	aoVisibility, aoBlur  renderTarget
	lighting              renderTarget

	gbufferPass   rhi.RenderPass
	aoPass        rhi.RenderPass
	blurPass      rhi.RenderPass
	lightingPass  rhi.RenderPass
	compositePass rhi.RenderPass

	aoInputs        bind_group_provider.BindGroupProvider
	blurInputs      bind_group_provider.BindGroupProvider
	lightingInputs  bind_group_provider.BindGroupProvider
	compositeInputs bind_group_provider.BindGroupProvider
}

// fixedTargets do not depend on the swapchain size and live as long as the pipeline.
type fixedTargets struct {
	shadow      renderTarget
	voxels      renderTarget
	voxelDummy  renderTarget
	white       renderTarget
	shadowPass  rhi.RenderPass
	voxelPass   rhi.RenderPass
	lightBuffer rhi.Buffer
}

func (m *megaPipeline) createFixedTargets() error {
	f := &m.fixed
	var err error

	if f.shadow, err = newRenderTarget(m.device, &rhi.TextureDesc{
		Label:  "shadow.depth",
		Width:  m.shadowResolution,
		Height: m.shadowResolution,
		Format: DepthFormat,
		Usage:  attachmentUsage,
	}, nil); err != nil {
		return err
	}
	if f.shadowPass, err = m.device.CreateRenderPass(&rhi.RenderPassDesc{
		Label:        "shadow",
		Width:        m.shadowResolution,
		Height:       m.shadowResolution,
		DepthStencil: &rhi.Attachment{View: f.shadow.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore, ClearDepth: 1},
	}); err != nil {
		return fmt.Errorf("create shadow pass: %w", err)
	}

	r := m.voxelResolution
	if f.voxels, err = newRenderTarget(m.device, &rhi.TextureDesc{
		Label:              "voxels",
		Width:              r,
		Height:             r,
		DepthOrArrayLayers: r,
		Dimension:          wgpu.TextureDimension3D,
		Format:             VoxelFormat,
		Usage:              wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	}, &rhi.TextureViewDesc{Label: "voxels View", Dimension: wgpu.TextureViewDimension3D}); err != nil {
		return err
	}
	// The voxelization pass only stores into the volume; the attachment gives it an extent.
	if f.voxelDummy, err = newRenderTarget(m.device, &rhi.TextureDesc{
		Label:  "voxelize.target",
		Width:  r,
		Height: r,
		Format: voxelDummyFormat,
		Usage:  wgpu.TextureUsageRenderAttachment,
	}, nil); err != nil {
		return err
	}
	if f.voxelPass, err = m.device.CreateRenderPass(&rhi.RenderPassDesc{
		Label:            "voxelize",
		Width:            r,
		Height:           r,
		ColorAttachments: []rhi.Attachment{{View: f.voxelDummy.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpDiscard}},
	}); err != nil {
		return fmt.Errorf("create voxelize pass: %w", err)
	}

	if f.white, err = newRenderTarget(m.device, &rhi.TextureDesc{
		Label:  "white",
		Width:  1,
		Height: 1,
		Format: wgpu.TextureFormatRGBA8Unorm,
		Usage:  wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	}, nil); err != nil {
		return err
	}
	if err := m.device.WriteTexture(f.white.texture, []byte{255, 255, 255, 255}, 4); err != nil {
		return fmt.Errorf("upload white texture: %w", err)
	}

	if f.lightBuffer, err = m.device.CreateBuffer(&rhi.BufferDesc{
		Label: "lights",
		Size:  light.ListBufferSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return fmt.Errorf("create light buffer: %w", err)
	}
	return nil
}

func (f *fixedTargets) release() {
	for _, t := range []*renderTarget{&f.shadow, &f.voxels, &f.voxelDummy, &f.white} {
		t.release()
	}
	for _, p := range []rhi.RenderPass{f.shadowPass, f.voxelPass} {
		if p != nil {
			p.Release()
		}
	}
	f.shadowPass, f.voxelPass = nil, nil
	if f.lightBuffer != nil {
		f.lightBuffer.Release()
		f.lightBuffer = nil
	}
}

// createFrameTargets allocates the swapchain-sized targets at the current swapchain size. On failure the
// partially created set is released.
func (m *megaPipeline) createFrameTargets() (*frameTargets, error) {
	w, h := m.swapchain.Size()
	w, h = max(w, 1), max(h, 1)
	t := &frameTargets{width: w, height: h}
	if err := m.fillFrameTargets(t); err != nil {
		t.release()
		return nil, err
	}
	return t, nil
}

func (m *megaPipeline) fillFrameTargets(t *frameTargets) error {
	w, h := t.width, t.height
	var err error
	for _, target := range []struct {
		dst    *renderTarget
		label  string
		format wgpu.TextureFormat
	}{
		{&t.albedo, "gbuffer.albedo", GBufferAlbedoFormat},
		{&t.normal, "gbuffer.normal", GBufferNormalFormat},
		{&t.depth, "gbuffer.depth", DepthFormat},
		{&t.aoVisibility, "ao.visibility", AOFormat},
		{&t.aoBlur, "ao.blur", AOFormat},
		{&t.lighting, "lighting", LightingFormat},
	} {
		if *target.dst, err = newRenderTarget(m.device, &rhi.TextureDesc{
			Label:  target.label,
			Width:  w,
			Height: h,
			Format: target.format,
			Usage:  attachmentUsage,
		}, nil); err != nil {
			return err
		}
	}

	cleared := func(view rhi.TextureView) rhi.Attachment {
		return rhi.Attachment{View: view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore}
	}
	passes := []struct {
		dst  *rhi.RenderPass
		desc rhi.RenderPassDesc
	}{
		{&t.gbufferPass, rhi.RenderPassDesc{
			Label:            "gbuffer",
			ColorAttachments: []rhi.Attachment{cleared(t.albedo.view), cleared(t.normal.view)},
			DepthStencil:     &rhi.Attachment{View: t.depth.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore, ClearDepth: 1},
		}},
		{&t.aoPass, rhi.RenderPassDesc{Label: "ao.visibility", ColorAttachments: []rhi.Attachment{cleared(t.aoVisibility.view)}}},
		{&t.blurPass, rhi.RenderPassDesc{Label: "ao.blur", ColorAttachments: []rhi.Attachment{cleared(t.aoBlur.view)}}},
		{&t.lightingPass, rhi.RenderPassDesc{Label: "lighting", ColorAttachments: []rhi.Attachment{cleared(t.lighting.view)}}},
		{&t.compositePass, rhi.RenderPassDesc{Label: "composite", ColorAttachments: []rhi.Attachment{cleared(nil)}}},
	}
	for _, p := range passes {
		p.desc.Width, p.desc.Height = w, h
		if *p.dst, err = m.device.CreateRenderPass(&p.desc); err != nil {
			return fmt.Errorf("create %s pass: %w", p.desc.Label, err)
		}
	}

	return m.createInputSets(t)
}

// createInputSets creates the descriptor sets through which the post chain reads the targets.
func (m *megaPipeline) createInputSets(t *frameTargets) error {
	for _, name := range []string{"AOInputs", "AOBlurInputs", "LightingInputs", "CompositeInputs"} {
		if m.library.GetParameterBlock(name) == nil {
			return fmt.Errorf("library %s has no %s block", m.library.Name(), name)
		}
	}

	ao := m.library.GetParameterBlock("AOInputs")
	t.aoInputs = ao.CreateDescriptorSet("ao.visibility.inputs")
	ao.BindImageView(t.aoInputs, "gbuffer_depth", t.depth.view)
	ao.BindImageView(t.aoInputs, "gbuffer_normal", t.normal.view)

	blur := m.library.GetParameterBlock("AOBlurInputs")
	t.blurInputs = blur.CreateDescriptorSet("ao.blur.inputs")
	blur.BindImageView(t.blurInputs, "ao_input", t.aoVisibility.view)

	lighting := m.library.GetParameterBlock("LightingInputs")
	t.lightingInputs = lighting.CreateDescriptorSet("lighting.inputs")
	lighting.BindImageView(t.lightingInputs, "gbuffer_albedo", t.albedo.view)
	lighting.BindImageView(t.lightingInputs, "gbuffer_normal", t.normal.view)
	lighting.BindImageView(t.lightingInputs, "gbuffer_depth", t.depth.view)
	lighting.BindImageView(t.lightingInputs, "ao_texture", t.aoBlur.view)
	lighting.BindImageView(t.lightingInputs, "shadow_map", m.fixed.shadow.view)
	lighting.BindSampler(t.lightingInputs, "shadow_sampler", m.samplers[SamplerShadow])
	lighting.BindBuffer(t.lightingInputs, "lights", m.fixed.lightBuffer, 0, light.ListBufferSize)

	composite := m.library.GetParameterBlock("CompositeInputs")
	t.compositeInputs = composite.CreateDescriptorSet("composite.inputs")
	composite.BindImageView(t.compositeInputs, "lighting_texture", t.lighting.view)
	composite.BindImageView(t.compositeInputs, "gbuffer_albedo", t.albedo.view)
	composite.BindImageView(t.compositeInputs, "gbuffer_normal", t.normal.view)
	composite.BindImageView(t.compositeInputs, "gbuffer_depth", t.depth.view)
	composite.BindImageView(t.compositeInputs, "ao_texture", t.aoBlur.view)
	composite.BindImageView(t.compositeInputs, "shadow_map", m.fixed.shadow.view)
	composite.BindImageView(t.compositeInputs, "voxels", m.fixed.voxels.view)
	return nil
}

func (t *frameTargets) release() {
	for _, s := range []bind_group_provider.BindGroupProvider{t.aoInputs, t.blurInputs, t.lightingInputs, t.compositeInputs} {
		if s != nil {
			s.Release()
		}
	}
	for _, p := range []rhi.RenderPass{t.gbufferPass, t.aoPass, t.blurPass, t.lightingPass, t.compositePass} {
		if p != nil {
			p.Release()
		}
	}
	for _, target := range []*renderTarget{&t.albedo, &t.normal, &t.depth, &t.aoVisibility, &t.aoBlur, &t.lighting} {
		target.release()
	}
}
