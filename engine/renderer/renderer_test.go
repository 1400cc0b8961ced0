package renderer

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/Carmen-Shannon/foreground/engine/shape"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rendererFixture struct {
	device  *rhitest.Device
	bctx    bootstrap.Context
	library pipelang.Library
	pass    rhi.RenderPass
	viewSet bind_group_provider.BindGroupProvider
	white   rhi.TextureView
}

func newRendererFixture(t *testing.T) *rendererFixture {
	t.Helper()
	d := rhitest.NewDevice()
	bctx := bootstrap.NewContext(bootstrap.WithWorkers(1))
	require.NoError(t, bctx.Init(d))
	t.Cleanup(bctx.Release)

	lib, err := internalLibrary(bctx.Pipelang())
	require.NoError(t, err)

	target := func(label string, format wgpu.TextureFormat) renderTarget {
		rt, err := newRenderTarget(d, &rhi.TextureDesc{Label: label, Width: 64, Height: 64, Format: format, Usage: attachmentUsage}, nil)
		require.NoError(t, err)
		return rt
	}
	albedo := target("albedo", GBufferAlbedoFormat)
	normal := target("normal", GBufferNormalFormat)
	depth := target("depth", DepthFormat)
	white := target("white", wgpu.TextureFormatRGBA8Unorm)

	pass, err := d.CreateRenderPass(&rhi.RenderPassDesc{
		Label:  "gbuffer",
		Width:  64,
		Height: 64,
		ColorAttachments: []rhi.Attachment{
			{View: albedo.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore},
			{View: normal.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore},
		},
		DepthStencil: &rhi.Attachment{View: depth.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore, ClearDepth: 1},
	})
	require.NoError(t, err)

	sampler, err := d.CreateSampler(&rhi.SamplerDesc{Label: "sampler"})
	require.NoError(t, err)
	block := lib.GetParameterBlock(engineCommonBlock)
	set := block.CreateDescriptorSet("test.common")
	for _, name := range []string{"nice_sampler", "linear_sampler", "nearest_sampler"} {
		block.BindSampler(set, name, sampler)
	}
	var g camera.GPUGlobalConstants
	require.NoError(t, block.BindConstants(d, set, "globals", g.Marshal()))

	return &rendererFixture{device: d, bctx: bctx, library: lib, pass: pass, viewSet: set, white: white.view}
}

func (f *rendererFixture) gbuffer() PrimitiveRenderer {
	r := NewGBufferRenderer(f.bctx, f.library, f.pass, WithFallbackTexture(f.white))
	r.SetViewSet(f.viewSet)
	return r
}

// renderOnce records one list into a fresh command context and returns the recorded pass.
func (f *rendererFixture) renderOnce(t *testing.T, r PrimitiveRenderer, models []mgl32.Mat4, prims []primitive.Primitive) (int, rhitest.PassRecord) {
	t.Helper()
	f.device.ResetRecording()
	cmd, err := f.device.BeginCommands("test")
	require.NoError(t, err)
	defer cmd.Release()
	rc, err := cmd.BeginRenderPass(r.Pass())
	require.NoError(t, err)
	n := r.RenderList(rc, models, prims)
	require.NoError(t, rc.End())
	require.NoError(t, cmd.Submit())
	rec, ok := f.device.Pass(r.Pass().Label())
	require.True(t, ok)
	return n, rec
}

func (f *rendererFixture) cube() primitive.Primitive {
	return f.bctx.Registry().Create(shape.Cube(1), material.NewBasicMaterial())
}

func TestGBufferRendererDrawsAndShares(t *testing.T) {
	f := newRendererFixture(t)
	r := f.gbuffer()
	defer r.Release()

	a, b := f.cube(), f.cube()
	defer a.Release()
	defer b.Release()

	n, rec := f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(2, 0, 0)}, []primitive.Primitive{a, b})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, r.Draws())
	assert.Equal(t, 2, r.CacheLen())
	assert.Equal(t, 1, r.PipelineCount())
	require.Len(t, rec.Draws, 2)
	assert.Equal(t, rec.Draws[0].Pipeline, rec.Draws[1].Pipeline)
	assert.True(t, rec.Draws[0].Indexed)
	assert.Equal(t, "test.common", rec.Draws[0].BindGroups[0])
	assert.Contains(t, rec.Draws[0].BindGroups[1], "material.")

	// A second list reuses the cached pipeline.
	pipelines := f.device.Pipelines()
	_, _ = f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{a})
	assert.Equal(t, pipelines, f.device.Pipelines())
}

func TestSamePrimitiveTwiceGetsDistinctConstants(t *testing.T) {
	f := newRendererFixture(t)
	r := f.gbuffer()
	defer r.Release()

	p := f.cube()
	defer p.Release()

	n, rec := f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, 3, 0)}, []primitive.Primitive{p, p})
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, r.CacheLen())
	require.Len(t, rec.Draws, 2)
	assert.NotEqual(t, rec.Draws[0].BindGroups[2], rec.Draws[1].BindGroups[2])
}

func TestDestroyedPrimitivesAreEvicted(t *testing.T) {
	f := newRendererFixture(t)
	r := f.gbuffer()
	defer r.Release()

	p := f.cube()
	_, _ = f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{p})
	require.Equal(t, 1, r.CacheLen())

	p.Release()
	require.False(t, f.bctx.Registry().Alive(p.ID()))

	n, rec := f.renderOnce(t, r, nil, nil)
	assert.Zero(t, n)
	assert.Empty(t, rec.Draws)
	assert.Zero(t, r.CacheLen())
	assert.Equal(t, 1, r.PipelineCount())
}

func TestShaderFailureSkipsPrimitive(t *testing.T) {
	f := newRendererFixture(t)
	f.device.FailShader = func(label string) bool { return strings.Contains(label, "GBufferPS") }
	r := f.gbuffer()
	defer r.Release()

	p := f.cube()
	defer p.Release()

	n, rec := f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{p})
	assert.Zero(t, n)
	assert.Empty(t, rec.Draws)
	assert.Zero(t, r.CacheLen())
	assert.Zero(t, r.PipelineCount())

	f.device.FailShader = nil
	n, _ = f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{p})
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.CacheLen())
}

func TestRenderListWithoutViewSet(t *testing.T) {
	f := newRendererFixture(t)
	r := NewGBufferRenderer(f.bctx, f.library, f.pass, WithFallbackTexture(f.white))
	defer r.Release()

	p := f.cube()
	defer p.Release()

	n, rec := f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{p})
	assert.Zero(t, n)
	assert.Empty(t, rec.Draws)
}

func TestMismatchedListsDrawTheShorter(t *testing.T) {
	f := newRendererFixture(t)
	r := f.gbuffer()
	defer r.Release()

	a, b := f.cube(), f.cube()
	defer a.Release()
	defer b.Release()

	n, _ := f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{a, b})
	assert.Equal(t, 1, n)
}

func TestRenderTargetDimension(t *testing.T) {
	d := rhitest.NewDevice()
	flat, err := newRenderTarget(d, &rhi.TextureDesc{Label: "flat", Width: 4, Height: 4, Format: AOFormat, Usage: attachmentUsage}, nil)
	require.NoError(t, err)
	defer flat.release()
	desc := flat.texture.(*rhitest.Texture).Desc()
	assert.Equal(t, wgpu.TextureDimension2D, desc.Dimension)
	assert.Equal(t, uint32(1), desc.DepthOrArrayLayers)
	assert.Equal(t, uint32(1), desc.MipLevelCount)

	volume, err := newRenderTarget(d, &rhi.TextureDesc{
		Label:              "volume",
		Width:              4,
		Height:             4,
		DepthOrArrayLayers: 4,
		Dimension:          wgpu.TextureDimension3D,
		Format:             VoxelFormat,
		Usage:              wgpu.TextureUsageStorageBinding,
	}, nil)
	require.NoError(t, err)
	defer volume.release()
	desc = volume.texture.(*rhitest.Texture).Desc()
	assert.Equal(t, wgpu.TextureDimension3D, desc.Dimension)
	assert.Equal(t, uint32(4), desc.DepthOrArrayLayers)
}

func TestVoxelizeRendererBindsVolume(t *testing.T) {
	f := newRendererFixture(t)
	volume, err := newRenderTarget(f.device, &rhi.TextureDesc{
		Label:              "voxels",
		Width:              8,
		Height:             8,
		DepthOrArrayLayers: 8,
		Dimension:          wgpu.TextureDimension3D,
		Format:             VoxelFormat,
		Usage:              wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
	}, &rhi.TextureViewDesc{Label: "voxels View", Dimension: wgpu.TextureViewDimension3D})
	require.NoError(t, err)
	target, err := newRenderTarget(f.device, &rhi.TextureDesc{Label: "voxelize.target", Width: 8, Height: 8, Format: voxelDummyFormat, Usage: wgpu.TextureUsageRenderAttachment}, nil)
	require.NoError(t, err)
	pass, err := f.device.CreateRenderPass(&rhi.RenderPassDesc{
		Label:            "voxelize",
		Width:            8,
		Height:           8,
		ColorAttachments: []rhi.Attachment{{View: target.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpDiscard}},
	})
	require.NoError(t, err)

	r := NewVoxelizeRenderer(f.bctx, f.library, pass, volume.view, WithFallbackTexture(f.white))
	r.SetViewSet(f.viewSet)
	defer r.Release()
	assert.Equal(t, "voxelize", r.Name())

	p := f.cube()
	defer p.Release()

	n, rec := f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{p})
	assert.Equal(t, 1, n)
	require.Len(t, rec.Draws, 1)
	assert.Equal(t, "voxelize.voxels", rec.Draws[0].BindGroups[3])
	assert.True(t, rec.ReadsTexture("voxels"))
}

func TestZOnlyRendererSkipsMaterial(t *testing.T) {
	f := newRendererFixture(t)
	shadow, err := newRenderTarget(f.device, &rhi.TextureDesc{Label: "shadow.depth", Width: 32, Height: 32, Format: DepthFormat, Usage: attachmentUsage}, nil)
	require.NoError(t, err)
	pass, err := f.device.CreateRenderPass(&rhi.RenderPassDesc{
		Label:        "shadow",
		Width:        32,
		Height:       32,
		DepthStencil: &rhi.Attachment{View: shadow.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore, ClearDepth: 1},
	})
	require.NoError(t, err)

	block := f.library.GetParameterBlock(shadowCommonBlock)
	set := block.CreateDescriptorSet("shadow_common")
	require.NoError(t, block.BindConstants(f.device, set, "shadow", make([]byte, 64)))

	r := NewZOnlyRenderer(f.bctx, f.library, pass)
	r.SetViewSet(set)
	defer r.Release()

	p := f.cube()
	defer p.Release()

	n, rec := f.renderOnce(t, r, []mgl32.Mat4{mgl32.Ident4()}, []primitive.Primitive{p})
	assert.Equal(t, 1, n)
	require.Len(t, rec.Draws, 1)
	_, hasMaterial := rec.Draws[0].BindGroups[1]
	assert.False(t, hasMaterial)
	assert.Equal(t, "shadow_common", rec.Draws[0].BindGroups[0])
}
