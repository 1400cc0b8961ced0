package renderer

import (
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/Carmen-Shannon/foreground/engine/scene"
	"github.com/Carmen-Shannon/foreground/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type megaFixture struct {
	device    *rhitest.Device
	swapchain *rhitest.SwapChain
	bctx      bootstrap.Context
	scene     scene.Scene
	camera    scene.SceneNode
	pipeline  MegaPipeline
}

// newMegaFixture builds a pipeline with small targets and a scene holding one cube in front of the camera and
// one directional light.
func newMegaFixture(t *testing.T, options ...MegaPipelineBuilderOption) *megaFixture {
	t.Helper()
	d := rhitest.NewDevice()
	bctx := bootstrap.NewContext(bootstrap.WithWorkers(1))
	require.NoError(t, bctx.Init(d))
	t.Cleanup(bctx.Release)
	return newMegaFixtureOn(t, d, bctx, options...)
}

// newMegaFixtureOn is newMegaFixture over an initialised context, for tests that create libraries first.
func newMegaFixtureOn(t *testing.T, d *rhitest.Device, bctx bootstrap.Context, options ...MegaPipelineBuilderOption) *megaFixture {
	t.Helper()
	sc := rhitest.NewSwapChain(320, 240)
	opts := append([]MegaPipelineBuilderOption{WithShadowResolution(64), WithVoxelResolution(16)}, options...)
	mp, err := NewMegaPipeline(bctx, sc, opts...)
	require.NoError(t, err)
	t.Cleanup(mp.Release)

	s := scene.NewScene("mega")
	cam := s.RootNode().CreateChildNode(scene.WithNodeName("camera"), scene.WithCamera(camera.NewCamera(camera.WithFar(100))))
	p := bctx.Registry().Create(shape.Cube(1), material.NewBasicMaterial())
	s.RootNode().CreateChildNode(scene.WithNodeName("cube"), scene.WithPosition(mgl32.Vec3{0, 0, -5}), scene.WithPrimitives(p))
	p.Release()
	s.RootNode().CreateChildNode(scene.WithNodeName("sun"), scene.WithLights(light.NewLight(light.LightTypeDirectional)))

	return &megaFixture{device: d, swapchain: sc, bctx: bctx, scene: s, camera: cam, pipeline: mp}
}

func (f *megaFixture) setMainView(t *testing.T) {
	t.Helper()
	v, err := scene.NewSceneView(f.camera)
	require.NoError(t, err)
	f.pipeline.SetSceneView(v, nil, nil)
}

func TestMegaPipelineFrame(t *testing.T) {
	f := newMegaFixture(t)
	assert.Equal(t, StateInitialized, f.pipeline.State())
	f.setMainView(t)

	require.NoError(t, f.pipeline.Render())
	assert.Equal(t, StateRendering, f.pipeline.State())
	assert.Equal(t, []string{"gbuffer", "shadow", "voxelize", "ao.visibility", "ao.blur", "lighting", "composite"}, f.device.PassLabels())
	assert.Equal(t, 1, f.device.Submits())
	assert.Equal(t, 1, f.swapchain.Presents())
	assert.Contains(t, f.device.Clears(), "voxels")

	gbuffer, ok := f.device.Pass("gbuffer")
	require.True(t, ok)
	assert.Len(t, gbuffer.Draws, 1)
	shadow, ok := f.device.Pass("shadow")
	require.True(t, ok)
	assert.Len(t, shadow.Draws, 1)
	voxelize, ok := f.device.Pass("voxelize")
	require.True(t, ok)
	assert.Len(t, voxelize.Draws, 1)

	lighting, ok := f.device.Pass("lighting")
	require.True(t, ok)
	assert.True(t, lighting.ReadsTexture("gbuffer.albedo"))
	assert.True(t, lighting.ReadsTexture("shadow.depth"))
	composite, ok := f.device.Pass("composite")
	require.True(t, ok)
	assert.True(t, composite.ReadsTexture("lighting"))
	assert.True(t, composite.ReadsTexture("voxels"))

	stats := f.pipeline.Stats()
	assert.Equal(t, uint64(1), stats.Frame)
	assert.Equal(t, 1, stats.VisiblePrimitives)
	assert.Equal(t, 1, stats.Draws["gbuffer"])
	assert.Equal(t, f.device.PassLabels(), stats.Passes)
}

func TestMegaPipelineNoViewIsNoop(t *testing.T) {
	f := newMegaFixture(t)
	require.NoError(t, f.pipeline.Render())
	assert.Empty(t, f.device.PassLabels())
	assert.Zero(t, f.swapchain.Acquires())
}

func TestMegaPipelineSkipsFrameWithoutImage(t *testing.T) {
	f := newMegaFixture(t)
	f.setMainView(t)

	f.swapchain.FailAcquire(true)
	require.NoError(t, f.pipeline.Render())
	assert.Empty(t, f.device.PassLabels())
	assert.Equal(t, uint64(1), f.pipeline.Stats().SkippedFrames)
	assert.Zero(t, f.pipeline.Stats().Frame)

	f.swapchain.FailAcquire(false)
	require.NoError(t, f.pipeline.Render())
	assert.Equal(t, uint64(1), f.pipeline.Stats().Frame)
	assert.Equal(t, 1, f.swapchain.Presents())
}

func TestMegaPipelineResize(t *testing.T) {
	f := newMegaFixture(t)
	f.setMainView(t)
	require.NoError(t, f.pipeline.Render())
	live := f.device.LiveTextures()

	first := f.pipeline.GBufferPass()
	f.swapchain.SetSurfaceSize(640, 480)
	require.NoError(t, f.pipeline.Resize())
	second := f.pipeline.GBufferPass()
	assert.NotSame(t, first, second)
	assert.Equal(t, live, f.device.LiveTextures())
	assert.Equal(t, uint32(640), second.Desc().Width)

	require.NoError(t, f.pipeline.Resize())
	assert.NotSame(t, second, f.pipeline.GBufferPass())
	assert.Equal(t, live, f.device.LiveTextures())
	assert.Equal(t, StateRendering, f.pipeline.State())

	gbuffer, _, _ := f.pipeline.Renderers()
	assert.Same(t, f.pipeline.GBufferPass(), gbuffer.Pass())

	f.device.ResetRecording()
	require.NoError(t, f.pipeline.Render())
	assert.Len(t, f.device.PassLabels(), 7)
}

func TestMegaPipelineLightCap(t *testing.T) {
	f := newMegaFixture(t)
	for range light.MaxLightsPerType + 1 {
		f.scene.RootNode().CreateChildNode(scene.WithLights(light.NewLight(light.LightTypePoint)))
	}
	f.setMainView(t)
	require.NoError(t, f.pipeline.Render())

	assert.Equal(t, 1, f.pipeline.Stats().LightsDropped)
	data := f.device.BufferData("lights")
	require.Len(t, data, int(light.ListBufferSize))
	assert.Equal(t, uint32(light.MaxLightsPerType), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[4:8]))
}

func TestMegaPipelineShadowWithoutCaster(t *testing.T) {
	f := newMegaFixture(t)
	sun := f.scene.FindNode("sun")
	require.NotNil(t, sun)
	require.NoError(t, f.scene.RootNode().RemoveChildNode(sun))
	f.setMainView(t)

	require.NoError(t, f.pipeline.Render())
	shadow, ok := f.device.Pass("shadow")
	require.True(t, ok)
	assert.Empty(t, shadow.Draws)
	gbuffer, ok := f.device.Pass("gbuffer")
	require.True(t, ok)
	assert.Len(t, gbuffer.Draws, 1)
}

func TestMegaPipelineOverlay(t *testing.T) {
	calls := 0
	f := newMegaFixture(t, WithOverlay(func(rc rhi.RenderContext) { calls++ }))
	f.setMainView(t)
	require.NoError(t, f.pipeline.Render())
	assert.Equal(t, 1, calls)

	f.pipeline.SetOverlay(nil)
	require.NoError(t, f.pipeline.Render())
	assert.Equal(t, 1, calls)
}

func TestMegaPipelineSamplers(t *testing.T) {
	f := newMegaFixture(t)
	for k := SamplerLinear; k < samplerCount; k++ {
		assert.NotNil(t, f.pipeline.Sampler(k))
	}
	assert.Nil(t, f.pipeline.Sampler(samplerCount))
	assert.Equal(t, InternalLibrary, f.pipeline.Library().Name())
}

func TestNewMegaPipelineRequiresInit(t *testing.T) {
	_, err := NewMegaPipeline(bootstrap.NewContext(), rhitest.NewSwapChain(8, 8))
	assert.ErrorIs(t, err, bootstrap.ErrNotInitialized)
	assert.Panics(t, func() { _, _ = NewMegaPipeline(nil, nil) })
}

func TestCreateRenderPipelineKinds(t *testing.T) {
	d := rhitest.NewDevice()
	bctx := bootstrap.NewContext(bootstrap.WithWorkers(1))
	require.NoError(t, bctx.Init(d))
	defer bctx.Release()

	_, err := CreateRenderPipeline(bctx, rhitest.NewSwapChain(8, 8), RenderPipelineKindDeferred)
	assert.ErrorIs(t, err, ErrUnsupported)

	rp, err := CreateRenderPipeline(bctx, rhitest.NewSwapChain(8, 8), RenderPipelineKindMega, WithVoxelResolution(8), WithShadowResolution(8))
	require.NoError(t, err)
	defer rp.Release()
	assert.Equal(t, StateInitialized, rp.State())
}

func TestMegaPipelineComposesFromProvidedLibrary(t *testing.T) {
	bctx := bootstrap.NewContext(bootstrap.WithWorkers(1))
	require.NoError(t, bctx.Init(rhitest.NewDevice()))
	t.Cleanup(bctx.Release)

	lib, err := bctx.Pipelang().CreateLibrary("edited", pipelang.InternalFS)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())

	mp, err := NewMegaPipeline(bctx, rhitest.NewSwapChain(64, 64), WithLibrary(lib), WithShadowResolution(16), WithVoxelResolution(8))
	require.NoError(t, err)
	defer mp.Release()
	assert.Same(t, lib, mp.Library())

	_, builtIn := bctx.Pipelang().GetLibrary(InternalLibrary)
	assert.False(t, builtIn)
}

// writeInternalLibrary copies the built-in library to a temporary directory so a test can edit its stages.
func writeInternalLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	err := fs.WalkDir(pipelang.InternalFS, ".", func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if e.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(pipelang.InternalFS, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	require.NoError(t, err)
	return dir
}

func TestMegaPipelineRebuildsAfterLibraryReload(t *testing.T) {
	d := rhitest.NewDevice()
	bctx := bootstrap.NewContext(bootstrap.WithWorkers(1))
	require.NoError(t, bctx.Init(d))
	t.Cleanup(bctx.Release)

	dir := writeInternalLibrary(t)
	lib, err := bctx.Pipelang().CreateDirLibrary(dir)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())

	f := newMegaFixtureOn(t, d, bctx, WithLibrary(lib))
	f.setMainView(t)
	require.NoError(t, f.pipeline.Render())
	require.NoError(t, f.pipeline.Render())
	modules, pipelines := d.ShaderModules(), d.Pipelines()
	require.NoError(t, f.pipeline.Render())
	assert.Equal(t, modules, d.ShaderModules())
	assert.Equal(t, pipelines, d.Pipelines())

	path := filepath.Join(dir, "stages", "gbuffer_ps.wgsl")
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(src, []byte("\n// reloaded\n")...), 0o644))
	require.NoError(t, lib.Parse())
	assert.Equal(t, uint64(2), lib.Generation())

	d.ResetRecording()
	require.NoError(t, f.pipeline.Render())
	assert.Greater(t, d.ShaderModules(), modules)
	assert.Greater(t, d.Pipelines(), pipelines)
	assert.Equal(t, []string{"gbuffer", "shadow", "voxelize", "ao.visibility", "ao.blur", "lighting", "composite"}, d.PassLabels())
	gbuffer, ok := d.Pass("gbuffer")
	require.True(t, ok)
	assert.Len(t, gbuffer.Draws, 1)

	modules, pipelines = d.ShaderModules(), d.Pipelines()
	require.NoError(t, f.pipeline.Render())
	assert.Equal(t, modules, d.ShaderModules())
	assert.Equal(t, pipelines, d.Pipelines())
}
