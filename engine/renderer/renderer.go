package renderer

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrUnsupported is returned for render pipeline kinds and features the renderer does not implement.
var ErrUnsupported = errors.New("renderer: unsupported")

// ErrNoViewSet is returned when a list is rendered before SetViewSet.
var ErrNoViewSet = errors.New("renderer: no view descriptor set")

// Names of the Internal library entries the per-primitive renderers compose.
const (
	InternalLibrary   = "Internal"
	engineCommonBlock = "EngineCommon"
	perPrimitiveBlock = "PerPrimitive"
	materialBlock     = "BasicMaterialParams"
	voxelDataBlock    = "VoxelData"
	shadowCommonBlock = "ShadowCommon"
	standardTriMesh   = "StandardTriMesh"
)

// primitiveRenderer is the implementation of the PrimitiveRenderer interface. The GBuffer, Voxelize and ZOnly
// renderers are instances of it that differ in composition, pipeline state and extra descriptor sets.
type primitiveRenderer struct {
	mu *sync.Mutex

	name     string
	bctx     bootstrap.Context
	library  pipelang.Library
	pass     rhi.RenderPass
	fallback rhi.TextureView

	cache     *primitiveCache
	pipelines map[string]rhi.RenderPipeline
	viewSet   bind_group_provider.BindGroupProvider

	// compose returns the stage list for a primitive; materialStages is nil for renderers without a material.
	compose      func(materialStages []string) []string
	configure    func(p pipeline.Pipeline)
	usesMaterial bool
	// extraSet, when set, returns a descriptor set bound after the per-primitive constants.
	extraSet func(device rhi.Device) (uint32, rhi.BindGroup, error)
	// release frees what extraSet built; it runs on Release and when the library is re-parsed.
	release func()

	// generation is the library generation the cached pipelines and sets were built from.
	generation uint64
	draws      int
}

// PrimitiveRenderer draws lists of primitives into one render pass. It caches a pipeline and descriptor sets
// per primitive; entries of destroyed primitives are evicted at the start of every RenderList, and every
// pipeline and entry is dropped when the library has been re-parsed since they were built.
//
// A PrimitiveRenderer is not safe for concurrent RenderList calls on the same render context.
type PrimitiveRenderer interface {
	// Name returns the renderer's label.
	Name() string

	// Pass returns the render pass pipelines are built against.
	Pass() rhi.RenderPass

	// SetPass replaces the render pass. Cached pipelines stay valid as long as the new pass has the same formats.
	//
	// Parameters:
	//   - pass: the new render pass
	SetPass(pass rhi.RenderPass)

	// SetViewSet sets the descriptor set bound at set 0 once per list: EngineCommon for the gbuffer and
	// voxelize renderers, ShadowCommon for the z-only renderer.
	//
	// Parameters:
	//   - set: the per-view descriptor set
	SetViewSet(set bind_group_provider.BindGroupProvider)

	// RenderList records one draw per primitive. Cache entries of destroyed primitives are evicted first, also
	// for an empty list. A primitive whose pipeline or descriptor sets cannot be built is logged and skipped for
	// this call; nothing is cached for it.
	//
	// Parameters:
	//   - rc: the render context of the renderer's pass
	//   - modelMatrices: the world transform of each primitive
	//   - primitives: the primitives to draw, parallel to modelMatrices
	//
	// Returns:
	//   - int: the number of draws recorded
	RenderList(rc rhi.RenderContext, modelMatrices []mgl32.Mat4, primitives []primitive.Primitive) int

	// Draws returns the number of draws the last RenderList recorded.
	Draws() int

	// CacheLen returns the number of cached primitive entries.
	CacheLen() int

	// PipelineCount returns the number of distinct pipelines built so far.
	PipelineCount() int

	// Release frees the cached pipelines and descriptor sets. The view set is owned by the caller.
	Release()
}

var _ PrimitiveRenderer = &primitiveRenderer{}

func newPrimitiveRenderer(name string, bctx bootstrap.Context, library pipelang.Library, pass rhi.RenderPass, options ...RendererBuilderOption) *primitiveRenderer {
	if bctx == nil || library == nil || pass == nil {
		panic(fmt.Sprintf("renderer %s: bootstrap context, library and pass are required", name))
	}
	r := &primitiveRenderer{
		mu:        &sync.Mutex{},
		name:      name,
		bctx:      bctx,
		library:   library,
		pass:      pass,
		cache:     newPrimitiveCache(),
		pipelines: make(map[string]rhi.RenderPipeline),
		configure: func(pipeline.Pipeline) {},
	}
	for _, opt := range options {
		opt(r)
	}
	r.generation = library.Generation()
	return r
}

func (r *primitiveRenderer) Name() string {
	return r.name
}

func (r *primitiveRenderer) Pass() rhi.RenderPass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pass
}

func (r *primitiveRenderer) SetPass(pass rhi.RenderPass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pass = pass
}

func (r *primitiveRenderer) SetViewSet(set bind_group_provider.BindGroupProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewSet = set
}

func (r *primitiveRenderer) RenderList(rc rhi.RenderContext, modelMatrices []mgl32.Mat4, primitives []primitive.Primitive) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.garbageCollect(r.bctx.Registry())
	r.syncLibrary()
	r.draws = 0
	if len(primitives) == 0 {
		return 0
	}
	n := len(primitives)
	if len(modelMatrices) != n {
		log.Printf("renderer %s: %d model matrices for %d primitives", r.name, len(modelMatrices), n)
		n = min(n, len(modelMatrices))
	}

	device := r.bctx.Device()
	if r.viewSet == nil {
		log.Printf("renderer %s: %v", r.name, ErrNoViewSet)
		return 0
	}
	viewGroup, err := r.viewSet.BindGroup(device)
	if err != nil {
		log.Printf("renderer %s: view set: %v", r.name, err)
		return 0
	}

	r.cache.resetUse()
	boundSet0 := false
	var bound rhi.RenderPipeline
	for i, p := range primitives[:n] {
		if !p.Alive() {
			continue
		}
		if err := r.draw(device, rc, p, modelMatrices[i], &bound, &boundSet0, viewGroup); err != nil {
			log.Printf("renderer %s: skipping primitive %s: %v", r.name, p.ID(), err)
			continue
		}
		r.draws++
	}
	return r.draws
}

// draw resolves everything one primitive needs before binding anything, so a failure leaves the pass state
// untouched.
func (r *primitiveRenderer) draw(device rhi.Device, rc rhi.RenderContext, p primitive.Primitive, model mgl32.Mat4, bound *rhi.RenderPipeline, boundSet0 *bool, viewGroup rhi.BindGroup) error {
	mesh, err := triangleMesh(p.Shape())
	if err != nil {
		return err
	}
	entry, err := r.entry(device, p, mesh)
	if err != nil {
		return err
	}
	if err := mesh.Upload(device); err != nil {
		return err
	}

	var materialGroup rhi.BindGroup
	if r.usesMaterial {
		set, err := r.materialSet(device, p.Material())
		if err != nil {
			return err
		}
		if materialGroup, err = set.BindGroup(device); err != nil {
			return fmt.Errorf("material %q: %w", p.Material().Name(), err)
		}
	}

	primitiveGroup, err := r.primitiveSet(device, p.ID(), entry, model)
	if err != nil {
		return err
	}

	var (
		extraIndex uint32
		extraGroup rhi.BindGroup
	)
	if r.extraSet != nil {
		if extraIndex, extraGroup, err = r.extraSet(device); err != nil {
			return err
		}
	}

	if *bound != entry.pipeline {
		rc.BindRenderPipeline(entry.pipeline)
		*bound = entry.pipeline
	}
	if !*boundSet0 {
		rc.BindBindGroup(0, viewGroup)
		*boundSet0 = true
	}
	if materialGroup != nil {
		rc.BindBindGroup(1, materialGroup)
	}
	rc.BindBindGroup(2, primitiveGroup)
	if extraGroup != nil {
		rc.BindBindGroup(extraIndex, extraGroup)
	}
	mesh.BindVertexInput(rc, entry.attribs)
	mesh.Draw(rc)
	return nil
}

// entry returns the cache entry of p, building the pipeline on a miss. Pipelines are shared by composition
// and topology.
func (r *primitiveRenderer) entry(device rhi.Device, p primitive.Primitive, mesh shape.TriangleMesh) (*cacheEntry, error) {
	if e, ok := r.cache.get(p.ID()); ok {
		return e, nil
	}

	var matStages []string
	if r.usesMaterial {
		var err error
		if matStages, err = materialStages(p.Material()); err != nil {
			return nil, err
		}
	}
	stages := r.compose(matStages)
	key := fmt.Sprintf("%s#%d", pipelang.PipelineKey(stages), mesh.Topology())

	pl, ok := r.pipelines[key]
	if !ok {
		desc := pipeline.NewPipeline(pipelang.PipelineKey(stages))
		r.configure(desc)
		if err := r.library.GetPipeline(desc, stages); err != nil {
			return nil, err
		}
		desc.SetTopology(mesh.Topology())
		built, err := desc.Build(device, r.pass)
		if err != nil {
			return nil, err
		}
		pl = built
		r.pipelines[key] = pl
	}

	e := &cacheEntry{pipeline: pl, attribs: r.library.GetVertexAttribs(standardTriMesh)}
	r.cache.put(p.ID(), e)
	return e, nil
}

func (r *primitiveRenderer) materialSet(device rhi.Device, m material.Material) (bind_group_provider.BindGroupProvider, error) {
	switch m.Kind() {
	case material.KindBasic:
		if bm, ok := m.(material.BasicMaterial); ok {
			return bm.DescriptorSet(device, r.library.GetParameterBlock(materialBlock), r.fallback)
		}
	}
	return nil, fmt.Errorf("%s: %w", m.Kind(), material.ErrUnknownKind)
}

// primitiveSet hands out the next PerPrimitive set of entry for this list and uploads the constants into it.
func (r *primitiveRenderer) primitiveSet(device rhi.Device, id primitive.ID, entry *cacheEntry, model mgl32.Mat4) (rhi.BindGroup, error) {
	block := r.library.GetParameterBlock(perPrimitiveBlock)
	if block == nil {
		return nil, fmt.Errorf("library %s has no %s block", r.library.Name(), perPrimitiveBlock)
	}
	if entry.used == len(entry.sets) {
		label := fmt.Sprintf("%s.primitive.%s.%d", r.name, id, len(entry.sets))
		entry.sets = append(entry.sets, block.CreateDescriptorSet(label))
	}
	set := entry.sets[entry.used]
	entry.used++

	c := NewGPUPrimitiveConstants(model)
	if err := block.BindConstants(device, set, "primitive", c.Marshal()); err != nil {
		return nil, err
	}
	return set.BindGroup(device)
}

// syncLibrary drops the pipelines, cache entries and extra sets built from an older library generation.
// Callers hold r.mu.
func (r *primitiveRenderer) syncLibrary() {
	g := r.library.Generation()
	if g == r.generation {
		return
	}
	r.generation = g
	r.releaseBuilt()
}

// releaseBuilt frees every cached pipeline, entry and extra set. Callers hold r.mu.
func (r *primitiveRenderer) releaseBuilt() {
	r.cache.release()
	for key, p := range r.pipelines {
		p.Release()
		delete(r.pipelines, key)
	}
	if r.release != nil {
		r.release()
	}
}

func (r *primitiveRenderer) Draws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draws
}

func (r *primitiveRenderer) CacheLen() int {
	return r.cache.len()
}

func (r *primitiveRenderer) PipelineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}

func (r *primitiveRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseBuilt()
}

// materialStages returns the composition entries that bind and evaluate a material of m's kind.
func materialStages(m material.Material) ([]string, error) {
	switch m.Kind() {
	case material.KindBasic:
		return []string{materialBlock, "BasicMaterial"}, nil
	default:
		return nil, fmt.Errorf("%s: %w", m.Kind(), material.ErrUnknownKind)
	}
}

func triangleMesh(s shape.Shape) (shape.TriangleMesh, error) {
	switch s.Kind() {
	case shape.KindTriangleMesh:
		if m, ok := s.(shape.TriangleMesh); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", s.Kind(), shape.ErrUnknownKind)
}
