package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTarget(t *testing.T, d *rhitest.Device, label string, format wgpu.TextureFormat) rhi.TextureView {
	t.Helper()
	tex, err := d.CreateTexture(&rhi.TextureDesc{Label: label, Width: 4, Height: 4, DepthOrArrayLayers: 1, Format: format})
	require.NoError(t, err)
	v, err := tex.CreateView(nil)
	require.NoError(t, err)
	return v
}

func TestBuildFollowsPassFormats(t *testing.T) {
	d := rhitest.NewDevice()
	pass, err := d.CreateRenderPass(&rhi.RenderPassDesc{
		Label: "gbuffer",
		ColorAttachments: []rhi.Attachment{
			{View: newTarget(t, d, "albedo", wgpu.TextureFormatRGBA8Unorm)},
			{View: newTarget(t, d, "normal", wgpu.TextureFormatRGBA8Unorm)},
		},
		DepthStencil: &rhi.Attachment{View: newTarget(t, d, "depth", wgpu.TextureFormatDepth32Float)},
	})
	require.NoError(t, err)

	vs, _ := d.CreateShaderModule(&rhi.ShaderModuleDesc{Label: "vs"})
	fs, _ := d.CreateShaderModule(&rhi.ShaderModuleDesc{Label: "fs"})
	layout, _ := d.CreatePipelineLayout(&rhi.PipelineLayoutDesc{Label: "layout"})

	p := NewPipeline("_GBuffer", WithShaders(vs, fs), WithLayout(layout), WithCullMode(wgpu.CullModeBack))
	p.SetDepthState(true, false)

	built, err := p.Build(d, pass)
	require.NoError(t, err)
	desc := built.(*rhitest.RenderPipeline).Desc

	require.Len(t, desc.ColorTargets, 2)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, desc.ColorTargets[1].Format)
	assert.Nil(t, desc.ColorTargets[0].Blend)
	require.NotNil(t, desc.DepthStencil)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, desc.DepthStencil.Format)
	assert.False(t, desc.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, wgpu.CompareFunctionLess, desc.DepthStencil.DepthCompare)
	assert.Equal(t, wgpu.CullModeBack, desc.Primitive.CullMode)
	assert.Equal(t, DefaultVertexEntryPoint, desc.VertexEntryPoint)
}

func TestBuildDepthOnly(t *testing.T) {
	d := rhitest.NewDevice()
	pass, err := d.CreateRenderPass(&rhi.RenderPassDesc{
		Label:        "shadow",
		DepthStencil: &rhi.Attachment{View: newTarget(t, d, "shadow", wgpu.TextureFormatDepth32Float)},
	})
	require.NoError(t, err)

	vs, _ := d.CreateShaderModule(&rhi.ShaderModuleDesc{Label: "vs"})
	layout, _ := d.CreatePipelineLayout(&rhi.PipelineLayoutDesc{Label: "layout"})
	p := NewPipeline("_ZOnly", WithShaders(vs, nil), WithLayout(layout), WithDepthBias(2, 1.5))

	built, err := p.Build(d, pass)
	require.NoError(t, err)
	desc := built.(*rhitest.RenderPipeline).Desc
	assert.Empty(t, desc.ColorTargets)
	assert.Nil(t, desc.FragmentModule)
	assert.Equal(t, int32(2), desc.DepthStencil.DepthBias)
}

func TestBuildIncomplete(t *testing.T) {
	d := rhitest.NewDevice()
	pass, err := d.CreateRenderPass(&rhi.RenderPassDesc{Label: "p", ColorAttachments: []rhi.Attachment{{}}})
	require.NoError(t, err)

	_, err = NewPipeline("empty").Build(d, pass)
	assert.ErrorIs(t, err, ErrIncomplete)
}
