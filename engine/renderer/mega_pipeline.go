package renderer

import (
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultVoxelResolution is the default edge length of the voxel volume.
const DefaultVoxelResolution = 512

// SamplerKind names the samplers the MegaPipeline creates.
type SamplerKind int

const (
	// SamplerLinear filters linearly and repeats.
	SamplerLinear SamplerKind = iota
	// SamplerLinearClamped filters linearly and clamps to the edge.
	SamplerLinearClamped
	// SamplerNearest uses nearest filtering and repeats.
	SamplerNearest
	// SamplerNice is trilinear with 16x anisotropy.
	SamplerNice
	// SamplerShadow is the depth comparison sampler of the shadow map.
	SamplerShadow
	// SamplerVoxel uses nearest filtering and clamps to the edge.
	SamplerVoxel

	samplerCount
)

// megaPipeline is the implementation of the MegaPipeline interface.
type megaPipeline struct {
	mu *sync.Mutex

	bctx      bootstrap.Context
	device    rhi.Device
	swapchain rhi.SwapChain
	library   pipelang.Library
	state     State

	shadowResolution uint32
	voxelResolution  uint32
	shadowHalfExtent float32
	overlay          OverlayFunc

	samplers [samplerCount]rhi.Sampler
	fixed    fixedTargets
	targets  *frameTargets

	commonMain   bind_group_provider.BindGroupProvider
	commonVoxel  bind_group_provider.BindGroupProvider
	shadowCommon bind_group_provider.BindGroupProvider

	gbuffer  PrimitiveRenderer
	shadow   PrimitiveRenderer
	voxelize PrimitiveRenderer

	aoPass        *postPass
	blurPass      *postPass
	lightingPass  *postPass
	compositePass *postPass

	view, shadowView, voxelView scene.SceneView

	// generation is the library generation the sets and post pipelines were built from.
	generation uint64

	lights light.List
	stats  Stats
}

// MegaPipeline renders a scene view in one submission: a gbuffer pass, a shadow map, a voxelized copy of the
// scene, screen-space ambient occlusion with a blur, deferred lighting and a composite that adds one bounce of
// voxel-traced indirect light before presenting.
//
// A MegaPipeline is driven from the render thread. Its methods lock internally so Resize and Render never run
// at the same time.
type MegaPipeline interface {
	RenderPipeline

	// Library returns the Pipelang library the pipeline composes from: Internal unless WithLibrary was given.
	// The pipeline rebuilds its sets and pipelines on the first Render after the library is re-parsed.
	Library() pipelang.Library

	// GBufferPass returns the current gbuffer render pass. Resize replaces it.
	GBufferPass() rhi.RenderPass

	// Sampler returns one of the pipeline's samplers.
	//
	// Parameters:
	//   - kind: the sampler to return
	//
	// Returns:
	//   - rhi.Sampler: the sampler, or nil for an unknown kind
	Sampler(kind SamplerKind) rhi.Sampler

	// SetOverlay replaces the callback run inside the composite pass. A nil callback disables the overlay.
	SetOverlay(fn OverlayFunc)

	// Renderers returns the per-primitive renderers of the gbuffer, shadow and voxelization passes.
	Renderers() (gbuffer, shadow, voxelize PrimitiveRenderer)
}

var _ MegaPipeline = &megaPipeline{}

// NewMegaPipeline creates every sampler, target, pass, descriptor set and pipeline of the conductor.
// It panics on a nil context or swapchain.
//
// Parameters:
//   - bctx: the bootstrap context, initialized with the device that owns swapchain
//   - swapchain: the swapchain presented to
//   - options: functional options for the pipeline
//
// Returns:
//   - MegaPipeline: the pipeline in StateInitialized
//   - error: bootstrap.ErrNotInitialized before Init, or the first resource creation failure
func NewMegaPipeline(bctx bootstrap.Context, swapchain rhi.SwapChain, options ...MegaPipelineBuilderOption) (MegaPipeline, error) {
	if bctx == nil || swapchain == nil {
		panic(fmt.Sprintf("renderer: NewMegaPipeline requires a context and a swapchain (context %v, swapchain %v)", bctx != nil, swapchain != nil))
	}
	if !bctx.Initialized() {
		return nil, bootstrap.ErrNotInitialized
	}

	m := &megaPipeline{
		mu:               &sync.Mutex{},
		bctx:             bctx,
		device:           bctx.Device(),
		swapchain:        swapchain,
		shadowResolution: light.ShadowMapResolution,
		voxelResolution:  DefaultVoxelResolution,
		shadowHalfExtent: light.DefaultShadowHalfExtent,
		stats:            Stats{Draws: make(map[string]int)},
		aoPass:           newPostPass("ao.visibility", "AOInputs", "AOVisibilityPS"),
		blurPass:         newPostPass("ao.blur", "AOBlurInputs", "AOBlurPS"),
		lightingPass:     newPostPass("lighting", "LightingInputs", "LightingPS"),
		compositePass:    newPostPass("composite", "CompositeInputs", "CompositePS"),
	}
	for _, opt := range options {
		opt(m)
	}

	if err := m.init(); err != nil {
		m.Release()
		return nil, err
	}
	m.state = StateInitialized
	return m, nil
}

func (m *megaPipeline) init() error {
	if err := m.createSamplers(); err != nil {
		return err
	}

	if m.library == nil {
		lib, err := internalLibrary(m.bctx.Pipelang())
		if err != nil {
			return err
		}
		m.library = lib
	}

	if err := m.createFixedTargets(); err != nil {
		return err
	}
	if err := m.createViewSets(); err != nil {
		return err
	}
	targets, err := m.createFrameTargets()
	if err != nil {
		return err
	}
	m.targets = targets

	lib := m.library
	white := WithFallbackTexture(m.fixed.white.view)
	m.gbuffer = NewGBufferRenderer(m.bctx, lib, m.targets.gbufferPass, white)
	m.shadow = NewZOnlyRenderer(m.bctx, lib, m.fixed.shadowPass)
	m.voxelize = NewVoxelizeRenderer(m.bctx, lib, m.fixed.voxelPass, m.fixed.voxels.view, white)
	m.setViewSets()
	m.generation = lib.Generation()
	return m.buildPostPasses()
}

func (m *megaPipeline) setViewSets() {
	m.gbuffer.SetViewSet(m.commonMain)
	m.shadow.SetViewSet(m.shadowCommon)
	m.voxelize.SetViewSet(m.commonVoxel)
}

// buildPostPasses (re)builds the pipelines of the post chain against the current frame targets.
func (m *megaPipeline) buildPostPasses() error {
	for _, p := range []struct {
		post *postPass
		pass rhi.RenderPass
	}{
		{m.aoPass, m.targets.aoPass},
		{m.blurPass, m.targets.blurPass},
		{m.lightingPass, m.targets.lightingPass},
		{m.compositePass, m.targets.compositePass},
	} {
		if err := p.post.build(m.device, m.library, p.pass); err != nil {
			return err
		}
	}
	return nil
}

// syncLibrary rebuilds everything the pipeline created from library blocks and pipelines after the library
// was re-parsed: the view sets, the frame targets with their input sets and the post chain. The
// per-primitive renderers rebuild their own caches. On failure the previous resources stay in use and the
// rebuild is retried on the next frame.
func (m *megaPipeline) syncLibrary() error {
	g := m.library.Generation()
	if g == m.generation {
		return nil
	}

	old := []bind_group_provider.BindGroupProvider{m.commonMain, m.commonVoxel, m.shadowCommon}
	if err := m.createViewSets(); err != nil {
		for _, s := range []bind_group_provider.BindGroupProvider{m.commonMain, m.commonVoxel, m.shadowCommon} {
			if s != nil && !slices.Contains(old, s) {
				s.Release()
			}
		}
		m.commonMain, m.commonVoxel, m.shadowCommon = old[0], old[1], old[2]
		return fmt.Errorf("reload %s: %w", m.library.Name(), err)
	}
	for _, s := range old {
		if s != nil {
			s.Release()
		}
	}
	m.setViewSets()

	t, err := m.createFrameTargets()
	if err != nil {
		return fmt.Errorf("reload %s: %w", m.library.Name(), err)
	}
	m.targets.release()
	m.targets = t
	m.gbuffer.SetPass(t.gbufferPass)

	if err := m.buildPostPasses(); err != nil {
		return fmt.Errorf("reload %s: %w", m.library.Name(), err)
	}
	m.generation = g
	log.Printf("renderer: rebuilt from %s generation %d", m.library.Name(), g)
	return nil
}

// internalLibrary returns the Internal library of ctx, creating and parsing it on first use.
func internalLibrary(ctx pipelang.Context) (pipelang.Library, error) {
	if ctx == nil {
		return nil, bootstrap.ErrNotInitialized
	}
	if lib, ok := ctx.GetLibrary(InternalLibrary); ok {
		return lib, nil
	}
	lib, err := ctx.CreateLibrary(InternalLibrary, pipelang.InternalFS)
	if err != nil {
		return nil, err
	}
	if err := lib.Parse(); err != nil {
		return nil, fmt.Errorf("parse %s library: %w", InternalLibrary, err)
	}
	return lib, nil
}

func (m *megaPipeline) createSamplers() error {
	linear := common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeRepeat,
		AddressModeV: wgpu.AddressModeRepeat,
		AddressModeW: wgpu.AddressModeRepeat,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeLinear,
	}
	clamped := linear
	clamped.AddressModeU, clamped.AddressModeV, clamped.AddressModeW = wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge
	nearest := linear
	nearest.MagFilter, nearest.MinFilter, nearest.MipmapFilter = wgpu.FilterModeNearest, wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	nice := linear
	nice.MaxAnisotropy = 16
	shadow := clamped
	shadow.Compare = wgpu.CompareFunctionLessEqual
	voxel := nearest
	voxel.AddressModeU, voxel.AddressModeV, voxel.AddressModeW = wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge

	descs := [samplerCount]rhi.SamplerDesc{
		SamplerLinear:        {Label: "sampler.linear", SamplerStagingData: linear},
		SamplerLinearClamped: {Label: "sampler.linear_clamped", SamplerStagingData: clamped},
		SamplerNearest:       {Label: "sampler.nearest", SamplerStagingData: nearest},
		SamplerNice:          {Label: "sampler.nice", SamplerStagingData: nice},
		SamplerShadow:        {Label: "sampler.shadow", SamplerStagingData: shadow},
		SamplerVoxel:         {Label: "sampler.voxel", SamplerStagingData: voxel},
	}
	for i := range descs {
		s, err := m.device.CreateSampler(&descs[i])
		if err != nil {
			return fmt.Errorf("create %s: %w", descs[i].Label, err)
		}
		m.samplers[i] = s
	}
	return nil
}

// createViewSets creates the EngineCommon sets of the main and voxel views and the ShadowCommon set.
func (m *megaPipeline) createViewSets() error {
	engineCommon := m.library.GetParameterBlock(engineCommonBlock)
	shadowCommon := m.library.GetParameterBlock(shadowCommonBlock)
	if engineCommon == nil || shadowCommon == nil {
		return fmt.Errorf("library %s lacks %s or %s", m.library.Name(), engineCommonBlock, shadowCommonBlock)
	}

	var zero camera.GPUGlobalConstants
	for _, dst := range []*bind_group_provider.BindGroupProvider{&m.commonMain, &m.commonVoxel} {
		label := "engine_common.main"
		if dst == &m.commonVoxel {
			label = "engine_common.voxel"
		}
		set := engineCommon.CreateDescriptorSet(label)
		engineCommon.BindSampler(set, "nice_sampler", m.samplers[SamplerNice])
		engineCommon.BindSampler(set, "linear_sampler", m.samplers[SamplerLinear])
		engineCommon.BindSampler(set, "nearest_sampler", m.samplers[SamplerNearest])
		if err := engineCommon.BindConstants(m.device, set, "globals", zero.Marshal()); err != nil {
			set.Release()
			return err
		}
		*dst = set
	}

	m.shadowCommon = shadowCommon.CreateDescriptorSet("shadow_common")
	var u light.GPUShadowUniform
	return shadowCommon.BindConstants(m.device, m.shadowCommon, "shadow", u.Marshal())
}

func (m *megaPipeline) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *megaPipeline) Library() pipelang.Library {
	return m.library
}

func (m *megaPipeline) GBufferPass() rhi.RenderPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.targets == nil {
		return nil
	}
	return m.targets.gbufferPass
}

func (m *megaPipeline) Sampler(kind SamplerKind) rhi.Sampler {
	if kind < 0 || kind >= samplerCount {
		return nil
	}
	return m.samplers[kind]
}

func (m *megaPipeline) SetOverlay(fn OverlayFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = fn
}

func (m *megaPipeline) Renderers() (PrimitiveRenderer, PrimitiveRenderer, PrimitiveRenderer) {
	return m.gbuffer, m.shadow, m.voxelize
}

func (m *megaPipeline) SetSceneView(view, shadowView, voxelView scene.SceneView) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.distinctViews()
	m.view, m.shadowView, m.voxelView = view, shadowView, voxelView
	current := m.distinctViews()
	for _, v := range old {
		if !slices.Contains(current, v) {
			v.Release()
		}
	}
}

// distinctViews returns the set views without nils or repeats.
func (m *megaPipeline) distinctViews() []scene.SceneView {
	var out []scene.SceneView
	for _, v := range []scene.SceneView{m.view, m.shadowView, m.voxelView} {
		if v != nil && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func (m *megaPipeline) Render() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view == nil || m.targets == nil {
		return nil
	}
	if err := m.syncLibrary(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	views := m.distinctViews()
	defer func() {
		for _, v := range views {
			v.FrameFinished()
		}
	}()

	if _, err := m.swapchain.AcquireNextImage(); err != nil {
		m.stats.SkippedFrames++
		return nil
	}
	// The acquired image is always handed back, also when recording fails.
	presented := false
	defer func() {
		if !presented {
			if err := m.swapchain.Present(); err != nil {
				log.Printf("renderer: present after failed frame: %v", err)
			}
		}
	}()

	if s := m.view.Node().Scene(); s != nil {
		s.UpdateAccelStructure()
	}
	for _, v := range views {
		v.PrepareToRender()
	}

	shadowVP, haveShadow, err := m.writeFrameConstants()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	cmd, err := m.device.BeginCommands("frame")
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer cmd.Release()

	frame := frameRecord{draws: make(map[string]int)}
	if err := m.record(cmd, &frame, shadowVP, haveShadow); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := cmd.Submit(); err != nil {
		return fmt.Errorf("render: submit: %w", err)
	}
	presented = true
	if err := m.swapchain.Present(); err != nil {
		return fmt.Errorf("render: present: %w", err)
	}

	m.state = StateRendering
	m.stats.Frame++
	m.stats.Passes = frame.passes
	m.stats.Draws = frame.draws
	m.stats.VisiblePrimitives = len(m.view.VisiblePrimitives())
	m.stats.LightsDropped = m.lights.Dropped()
	return nil
}

// writeFrameConstants uploads the per-view constants, the light list and the shadow and voxel constants.
// It returns the shadow view-projection and whether the frame has a shadow caster source.
func (m *megaPipeline) writeFrameConstants() (mgl32.Mat4, bool, error) {
	engineCommon := m.library.GetParameterBlock(engineCommonBlock)
	for _, vs := range []struct {
		view scene.SceneView
		set  bind_group_provider.BindGroupProvider
	}{
		{m.view, m.commonMain},
		{m.voxelSource(), m.commonVoxel},
	} {
		g := camera.NewGPUGlobalConstants(vs.view.CameraPosition(), vs.view.View(), vs.view.Projection(), vs.view.InvProjection())
		if err := engineCommon.BindConstants(m.device, vs.set, "globals", g.Marshal()); err != nil {
			return mgl32.Mat4{}, false, err
		}
	}

	if s := m.view.Node().Scene(); s != nil {
		s.CollectLights(&m.lights)
	} else {
		m.lights.Reset()
	}
	if err := m.device.WriteBuffer(m.fixed.lightBuffer, 0, m.lights.Marshal()); err != nil {
		return mgl32.Mat4{}, false, fmt.Errorf("write lights: %w", err)
	}

	vp, ok := m.shadowViewProjection()
	u := light.GPUShadowUniform{LightVP: [16]float32(vp)}
	if err := m.library.GetParameterBlock(shadowCommonBlock).BindConstants(m.device, m.shadowCommon, "shadow", u.Marshal()); err != nil {
		return mgl32.Mat4{}, false, err
	}
	sd := light.NewShadowData(vp, m.shadowHalfExtent, int(m.shadowResolution))
	if err := m.library.GetParameterBlock("LightingInputs").BindConstants(m.device, m.targets.lightingInputs, "shadow_data", sd.Marshal()); err != nil {
		return mgl32.Mat4{}, false, err
	}

	r := float32(m.voxelResolution)
	vc := GPUVoxelConstants{VoxelVP: [16]float32(m.voxelSource().ViewProjection()), Resolution: [4]float32{r, r, r, 0}}
	if err := m.library.GetParameterBlock("CompositeInputs").BindConstants(m.device, m.targets.compositeInputs, "voxel_constants", vc.Marshal()); err != nil {
		return mgl32.Mat4{}, false, err
	}
	return vp, ok, nil
}

// shadowViewProjection uses the shadow view when one is set, otherwise an orthographic frustum of the primary
// directional light centered on the camera.
func (m *megaPipeline) shadowViewProjection() (mgl32.Mat4, bool) {
	if m.shadowView != nil {
		return m.shadowView.ViewProjection(), true
	}
	if l, ok := m.lights.PrimaryDirectional(); ok {
		return light.DirectionalShadowViewProjection(mgl32.Vec3(l.Direction), m.view.CameraPosition(),
			m.shadowHalfExtent, light.DefaultShadowNear, light.DefaultShadowFar), true
	}
	return mgl32.Ident4(), false
}

func (m *megaPipeline) shadowSource() scene.SceneView {
	if m.shadowView != nil {
		return m.shadowView
	}
	return m.view
}

func (m *megaPipeline) voxelSource() scene.SceneView {
	if m.voxelView != nil {
		return m.voxelView
	}
	return m.view
}

// frameRecord collects the pass order and draw counts of one frame.
type frameRecord struct {
	passes []string
	draws  map[string]int
}

func (m *megaPipeline) beginPass(cmd rhi.CommandContext, frame *frameRecord, pass rhi.RenderPass) (rhi.RenderContext, error) {
	rc, err := cmd.BeginRenderPass(pass)
	if err != nil {
		return nil, fmt.Errorf("begin %s: %w", pass.Label(), err)
	}
	frame.passes = append(frame.passes, pass.Label())
	return rc, nil
}

// geometryPass records one per-primitive renderer into pass. A nil list still runs the renderer so its cache
// is collected.
func (m *megaPipeline) geometryPass(cmd rhi.CommandContext, frame *frameRecord, pass rhi.RenderPass, r PrimitiveRenderer, view scene.SceneView) error {
	rc, err := m.beginPass(cmd, frame, pass)
	if err != nil {
		return err
	}
	var n int
	if view != nil {
		n = r.RenderList(rc, view.VisibleModelMatrices(), view.VisiblePrimitives())
	} else {
		n = r.RenderList(rc, nil, nil)
	}
	frame.draws[pass.Label()] = n
	return rc.End()
}

func (m *megaPipeline) postProcess(cmd rhi.CommandContext, frame *frameRecord, p *postPass, pass rhi.RenderPass, inputs bind_group_provider.BindGroupProvider, overlay OverlayFunc) error {
	commonGroup, err := m.commonMain.BindGroup(m.device)
	if err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	inputGroup, err := inputs.BindGroup(m.device)
	if err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	rc, err := m.beginPass(cmd, frame, pass)
	if err != nil {
		return err
	}
	p.record(rc, commonGroup, inputGroup)
	frame.draws[pass.Label()] = 1
	if overlay != nil {
		overlay(rc)
	}
	return rc.End()
}

// record encodes the frame: gbuffer, shadow, voxel clear and voxelization, AO, AO blur, lighting, composite.
func (m *megaPipeline) record(cmd rhi.CommandContext, frame *frameRecord, _ mgl32.Mat4, haveShadow bool) error {
	t := m.targets
	if err := m.geometryPass(cmd, frame, t.gbufferPass, m.gbuffer, m.view); err != nil {
		return err
	}

	var casters scene.SceneView
	if haveShadow {
		casters = m.shadowSource()
	}
	if err := m.geometryPass(cmd, frame, m.fixed.shadowPass, m.shadow, casters); err != nil {
		return err
	}

	if err := cmd.ClearTexture(m.fixed.voxels.texture); err != nil {
		return fmt.Errorf("clear voxels: %w", err)
	}
	if err := m.geometryPass(cmd, frame, m.fixed.voxelPass, m.voxelize, m.voxelSource()); err != nil {
		return err
	}

	for _, p := range []struct {
		post    *postPass
		pass    rhi.RenderPass
		inputs  bind_group_provider.BindGroupProvider
		overlay OverlayFunc
	}{
		{m.aoPass, t.aoPass, t.aoInputs, nil},
		{m.blurPass, t.blurPass, t.blurInputs, nil},
		{m.lightingPass, t.lightingPass, t.lightingInputs, nil},
		{m.compositePass, t.compositePass, t.compositeInputs, m.overlay},
	} {
		if err := m.postProcess(cmd, frame, p.post, p.pass, p.inputs, p.overlay); err != nil {
			return err
		}
	}
	return nil
}

func (m *megaPipeline) Resize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	m.state = StateResizing
	defer func() { m.state = prev }()

	m.swapchain.AutoResize()
	t, err := m.createFrameTargets()
	if err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	if m.targets != nil {
		m.targets.release()
	}
	m.targets = t
	m.gbuffer.SetPass(t.gbufferPass)
	return nil
}

func (m *megaPipeline) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Passes = slices.Clone(m.stats.Passes)
	s.Draws = maps.Clone(m.stats.Draws)
	return s
}

func (m *megaPipeline) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.distinctViews() {
		v.Release()
	}
	m.view, m.shadowView, m.voxelView = nil, nil, nil

	for _, r := range []PrimitiveRenderer{m.gbuffer, m.shadow, m.voxelize} {
		if r != nil {
			r.Release()
		}
	}
	m.gbuffer, m.shadow, m.voxelize = nil, nil, nil
	for _, p := range []*postPass{m.aoPass, m.blurPass, m.lightingPass, m.compositePass} {
		p.release()
	}
	if m.targets != nil {
		m.targets.release()
		m.targets = nil
	}
	for _, s := range []bind_group_provider.BindGroupProvider{m.commonMain, m.commonVoxel, m.shadowCommon} {
		if s != nil {
			s.Release()
		}
	}
	m.commonMain, m.commonVoxel, m.shadowCommon = nil, nil, nil
	m.fixed.release()
	for i, s := range m.samplers {
		if s != nil {
			s.Release()
			m.samplers[i] = nil
		}
	}
	m.state = StateUninitialized
}
