package pipelang

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ErrInvalidName is returned for block, vertex attribs and stage names that cannot appear in a pipeline key.
var ErrInvalidName = errors.New("pipelang: names must be non-empty and must not contain '_'")

// keySeparator joins the names of a composition into its pipeline key.
const keySeparator = "_"

// library is the implementation of the Library interface.
type library struct {
	mu *sync.Mutex

	ctx  *pipelangContext
	name string
	fsys fs.FS
	dir  string

	blocks  map[string]ParameterBlock
	attribs map[string]*VertexAttribs
	stages  map[string]Stage
	structs map[string]string

	// layouts caches the pipeline layout of every composition key assembled from this library.
	layouts map[string]rhi.PipelineLayout
	// generation increments on every successful Parse.
	generation uint64
}

// Library is a named set of parameter blocks, vertex attribute maps, stages and WGSL structs. Pipelines are
// assembled from ordered stage lists that name any of them.
type Library interface {
	// Name returns the library's name in its context.
	Name() string

	// Dir returns the backing directory, or "" for libraries not backed by a directory.
	Dir() string

	// Parse loads library.yaml and the sources it names, then creates the descriptor layouts.
	// Every block, vertex attribs map, struct and stage the description defines replaces the entry of that
	// name; entries added through the Add methods that the description does not name are kept. The pipeline
	// layouts and shaders assembled from the previous contents are dropped and Generation advances. A failed
	// Parse changes nothing.
	//
	// Returns:
	//   - error: an error if the description or a source cannot be read or is invalid
	Parse() error

	// Generation returns the number of successful Parse calls. Pipelines and descriptor sets built from an
	// older generation use layouts and shaders the library no longer hands out and must be rebuilt.
	Generation() uint64

	// PipelineLayout returns the cached pipeline layout of a composition key, or nil.
	//
	// Parameters:
	//   - key: the key PipelineKey returns for the composition
	//
	// Returns:
	//   - rhi.PipelineLayout: the layout, or nil before the composition was assembled
	PipelineLayout(key string) rhi.PipelineLayout

	// RecreateDeviceResources creates every missing descriptor layout on the context's device.
	//
	// Returns:
	//   - error: the first layout creation failure
	RecreateDeviceResources() error

	// GetParameterBlock returns the named block, or nil.
	GetParameterBlock(name string) ParameterBlock

	// GetVertexAttribs returns the named attribute map, or nil.
	GetVertexAttribs(name string) *VertexAttribs

	// AddParameterBlock registers pb under name, replacing any block of that name.
	//
	// Returns:
	//   - error: ErrInvalidName if name cannot appear in a composition
	AddParameterBlock(name string, pb ParameterBlock) error

	// AddVertexAttribs registers attribs under name, replacing any map of that name.
	//
	// Returns:
	//   - error: ErrInvalidName if name cannot appear in a composition
	AddVertexAttribs(name string, attribs *VertexAttribs) error

	// AddStage registers a stage under its name.
	//
	// Returns:
	//   - error: ErrInvalidName if the stage name cannot appear in a composition
	AddStage(stage Stage) error

	// GetStage looks up a stage by name.
	GetStage(name string) (Stage, bool)

	// AddStruct registers the WGSL source of a struct that bindings and //@pl:include lines can name.
	AddStruct(name, source string)

	// GetPipeline fills desc with the shaders, layout, vertex buffers and state of a stage composition.
	// Shaders come from the context's shader cache under keys scoped to this library, the layout from the
	// library's layout cache; on a miss the layout is built from the composition's parameter blocks, WGSL is
	// generated and compiled. A failure caches nothing except
	// the layout.
	//
	// Parameters:
	//   - desc: the pipeline descriptor to fill
	//   - stages: the ordered composition
	//
	// Returns:
	//   - error: an error if a name is unknown, code generation fails or a shader does not compile
	GetPipeline(desc pipeline.Pipeline, stages []string) error

	// PrecacheShaders assembles every composition in parallel so later GetPipeline calls hit the caches.
	//
	// Parameters:
	//   - ctx: cancels the remaining work on the first failure
	//   - compositions: the stage lists to assemble
	//
	// Returns:
	//   - error: the first failure
	PrecacheShaders(ctx context.Context, compositions [][]string) error
}

var _ Library = &library{}

// PipelineKey returns the cache key of a composition: "_" followed by each stage name. Libraries reject
// names containing "_", so distinct compositions never share a key.
//
// Parameters:
//   - stages: the ordered composition
//
// Returns:
//   - string: the key
func PipelineKey(stages []string) string {
	var b strings.Builder
	for _, s := range stages {
		b.WriteString(keySeparator)
		b.WriteString(s)
	}
	return b.String()
}

// ValidName reports whether name can be used for a block, vertex attribs map or stage.
func ValidName(name string) bool {
	return name != "" && !strings.Contains(name, keySeparator)
}

func checkName(kind, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%s %q: %w", kind, name, ErrInvalidName)
	}
	return nil
}

func newLibrary(ctx *pipelangContext, name string, fsys fs.FS, dir string) *library {
	return &library{
		mu:      &sync.Mutex{},
		ctx:     ctx,
		name:    name,
		fsys:    fsys,
		dir:     dir,
		blocks:  make(map[string]ParameterBlock),
		attribs: make(map[string]*VertexAttribs),
		stages:  make(map[string]Stage),
		structs: make(map[string]string),
		layouts: make(map[string]rhi.PipelineLayout),
	}
}

// shaderPrefix scopes the library's shader cache keys. Library names never contain the separator.
func (l *library) shaderPrefix() string {
	return l.name + librarySeparator
}

func (l *library) shaderKey(c *composition, suffix string) string {
	return l.shaderPrefix() + c.key + suffix
}

func (l *library) Name() string {
	return l.name
}

func (l *library) Dir() string {
	return l.dir
}

func (l *library) Parse() error {
	data, err := fs.ReadFile(l.fsys, LibraryFile)
	if err != nil {
		return fmt.Errorf("library %s: %w", l.name, err)
	}
	var desc libraryDescription
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return fmt.Errorf("library %s: parse %s: %w", l.name, LibraryFile, err)
	}

	structs := make(map[string]string, len(desc.Structs))
	for name, path := range desc.Structs {
		src, err := fs.ReadFile(l.fsys, path)
		if err != nil {
			return fmt.Errorf("library %s: struct %s: %w", l.name, name, err)
		}
		structs[name] = string(src)
	}

	blocks := make(map[string]ParameterBlock, len(desc.ParameterBlocks))
	for name, bd := range desc.ParameterBlocks {
		if err := checkName("parameter block", name); err != nil {
			return fmt.Errorf("library %s: %w", l.name, err)
		}
		pb := NewParameterBlock(name)
		pb.SetSetIndex(bd.Set)
		for _, b := range bd.Bindings {
			if err := pb.AddBinding(b.Name, b.Binding, b.Type, b.Count, b.Stages); err != nil {
				return fmt.Errorf("library %s: %w", l.name, err)
			}
			if b.WGSL != "" {
				if err := pb.SetWGSLType(b.Name, b.WGSL); err != nil {
					return fmt.Errorf("library %s: %w", l.name, err)
				}
			}
		}
		blocks[name] = pb
	}

	attribs := make(map[string]*VertexAttribs, len(desc.VertexAttribs))
	for name, ads := range desc.VertexAttribs {
		if err := checkName("vertex attribs", name); err != nil {
			return fmt.Errorf("library %s: %w", l.name, err)
		}
		va := NewVertexAttribs()
		for _, a := range ads {
			if err := va.AddAttribute(a.Semantic, a.Location); err != nil {
				return fmt.Errorf("library %s: vertex attribs %s: %w", l.name, name, err)
			}
		}
		attribs[name] = va
	}

	stages := make(map[string]Stage, len(desc.Stages))
	for name, sd := range desc.Stages {
		if err := checkName("stage", name); err != nil {
			return fmt.Errorf("library %s: %w", l.name, err)
		}
		stage := Stage{Name: name, Kind: sd.Kind, State: sd.State}
		switch sd.Kind {
		case StageKindVertex, StageKindFragment:
			src, err := fs.ReadFile(l.fsys, sd.Source)
			if err != nil {
				return fmt.Errorf("library %s: stage %s: %w", l.name, name, err)
			}
			stage.Source = string(src)
		case StageKindState:
		default:
			return fmt.Errorf("library %s: stage %s: unknown kind %q", l.name, name, sd.Kind)
		}
		if stage.State != nil {
			if err := stage.State.Validate(); err != nil {
				return fmt.Errorf("library %s: stage %s: %w", l.name, name, err)
			}
		}
		stages[name] = stage
	}

	l.mu.Lock()
	maps.Copy(l.blocks, blocks)
	maps.Copy(l.attribs, attribs)
	maps.Copy(l.structs, structs)
	maps.Copy(l.stages, stages)
	l.releaseLayoutsLocked()
	l.generation++
	l.mu.Unlock()

	if n := l.ctx.ShaderCache().Invalidate(l.shaderPrefix()); n > 0 {
		log.Printf("pipelang: %s: dropped %d shaders", l.name, n)
	}
	return l.RecreateDeviceResources()
}

func (l *library) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

func (l *library) PipelineLayout(key string) rhi.PipelineLayout {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.layouts[key]
}

// storePipelineLayout caches layout under key unless another caller got there first, in which case layout
// is released and the cached one returned. A layout built before the last Parse is returned uncached.
func (l *library) storePipelineLayout(key string, generation uint64, layout rhi.PipelineLayout) rhi.PipelineLayout {
	l.mu.Lock()
	defer l.mu.Unlock()
	if generation != l.generation {
		return layout
	}
	if existing, ok := l.layouts[key]; ok {
		layout.Release()
		return existing
	}
	l.layouts[key] = layout
	return layout
}

// releaseLayoutsLocked releases every cached pipeline layout. Callers hold l.mu.
func (l *library) releaseLayoutsLocked() {
	for key, layout := range l.layouts {
		layout.Release()
		delete(l.layouts, key)
	}
}

// releaseLayouts releases every cached pipeline layout.
func (l *library) releaseLayouts() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLayoutsLocked()
}

func (l *library) RecreateDeviceResources() error {
	device := l.ctx.Device()
	if device == nil {
		return nil
	}
	for _, pb := range l.parameterBlocks() {
		if err := pb.CreateDescriptorLayout(device); err != nil {
			return err
		}
	}
	return nil
}

// dropDeviceResources releases the pipeline layouts and forgets every descriptor layout so the next
// RecreateDeviceResources targets a new device.
func (l *library) dropDeviceResources() {
	l.releaseLayouts()
	for _, pb := range l.parameterBlocks() {
		pb.CreateDescriptorLayout(nil)
	}
}

func (l *library) parameterBlocks() []ParameterBlock {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ParameterBlock, 0, len(l.blocks))
	for _, pb := range l.blocks {
		out = append(out, pb)
	}
	return out
}

func (l *library) GetParameterBlock(name string) ParameterBlock {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocks[name]
}

func (l *library) GetVertexAttribs(name string) *VertexAttribs {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attribs[name]
}

func (l *library) AddParameterBlock(name string, pb ParameterBlock) error {
	if err := checkName("parameter block", name); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks[name] = pb
	return nil
}

func (l *library) AddVertexAttribs(name string, attribs *VertexAttribs) error {
	if err := checkName("vertex attribs", name); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attribs[name] = attribs
	return nil
}

func (l *library) AddStage(stage Stage) error {
	if err := checkName("stage", stage.Name); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages[stage.Name] = stage
	return nil
}

func (l *library) GetStage(name string) (Stage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stages[name]
	return s, ok
}

func (l *library) AddStruct(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.structs[name] = source
}

// resolve looks up every name of a composition. Blocks, attribs and stages are tried in that order.
// It also returns the structs and the generation the lookup saw.
func (l *library) resolve(stages []string) (*composition, map[string]string, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := &composition{key: PipelineKey(stages)}
	for _, name := range stages {
		if pb, ok := l.blocks[name]; ok {
			c.blocks = append(c.blocks, pb)
			continue
		}
		if va, ok := l.attribs[name]; ok {
			if c.attribs != nil {
				return nil, nil, 0, fmt.Errorf("%s: more than one vertex attribs entry", c.key)
			}
			c.attribs = va
			continue
		}
		s, ok := l.stages[name]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s: unknown stage %q in library %s", c.key, name, l.name)
		}
		switch s.Kind {
		case StageKindVertex:
			c.vertex = append(c.vertex, s)
		case StageKindFragment:
			c.fragment = append(c.fragment, s)
		}
		if s.State != nil {
			c.states = append(c.states, s.State)
		}
	}
	if len(c.vertex) == 0 {
		return nil, nil, 0, fmt.Errorf("%s: no vertex stage", c.key)
	}
	return c, maps.Clone(l.structs), l.generation, nil
}

func (l *library) GetPipeline(desc pipeline.Pipeline, stages []string) error {
	return l.getPipeline(context.Background(), desc, stages)
}

func (l *library) getPipeline(ctx context.Context, desc pipeline.Pipeline, stages []string) error {
	c, structs, generation, err := l.resolve(stages)
	if err != nil {
		return err
	}
	cache := l.ctx.ShaderCache()

	vs := cache.RetrieveShader(l.shaderKey(c, "_VS"))
	ps := cache.RetrieveShader(l.shaderKey(c, "_PS"))
	layout := l.PipelineLayout(c.key)
	if vs != nil && layout != nil && (ps != nil || c.depthOnly()) {
		l.fill(desc, c, vs, ps, layout)
		return nil
	}

	if layout == nil {
		if layout, err = l.createPipelineLayout(c, generation); err != nil {
			return err
		}
	}

	src, err := generate(c, structs)
	if err != nil {
		return err
	}

	vs, err = l.compile(ctx, cache, l.shaderKey(c, "_VS"), StageVertex, src.VS)
	if err != nil {
		return err
	}
	ps = nil
	if !c.depthOnly() {
		if ps, err = l.compile(ctx, cache, l.shaderKey(c, "_PS"), StageFragment, src.PS); err != nil {
			return err
		}
	}

	l.fill(desc, c, vs, ps, layout)
	return nil
}

// createPipelineLayout builds and caches the layout of c. Each block sits at its set index; unused sets stay nil.
func (l *library) createPipelineLayout(c *composition, generation uint64) (rhi.PipelineLayout, error) {
	device := l.ctx.Device()
	if device == nil {
		return nil, fmt.Errorf("%s: %w", c.key, ErrNoDevice)
	}

	var sets []rhi.BindGroupLayout
	for _, pb := range c.blocks {
		if err := pb.CreateDescriptorLayout(device); err != nil {
			return nil, err
		}
		idx := int(pb.SetIndex())
		if idx >= len(sets) {
			sets = append(sets, make([]rhi.BindGroupLayout, idx+1-len(sets))...)
		}
		if sets[idx] != nil {
			log.Printf("pipelang: %s: set %d is claimed twice, %s wins", c.key, idx, pb.Name())
		}
		sets[idx] = pb.DescriptorSetLayout()
	}

	layout, err := device.CreatePipelineLayout(&rhi.PipelineLayoutDesc{Label: c.key, BindGroupLayouts: sets})
	if err != nil {
		return nil, fmt.Errorf("%s: create pipeline layout: %w", c.key, err)
	}
	return l.storePipelineLayout(c.key, generation, layout), nil
}

// compile dumps the source when the context has a dump directory and compiles it through the shader cache.
func (l *library) compile(ctx context.Context, cache ShaderCache, key, stage, source string) (rhi.ShaderModule, error) {
	env := CompileEnvironment{Stage: stage, Key: key, Source: source}
	if dir := l.ctx.DumpDir(); dir != "" {
		path := filepath.Join(dir, dumpFileName(key))
		if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
			log.Printf("pipelang: dumping %s: %v", path, err)
		} else {
			env.SourcePath = path
		}
	}
	return cache.RetrieveOrCompileShader(ctx, key, env)
}

// dumpFileName turns a shader key into a file name: path separators, ':' and '|' become '.'.
func dumpFileName(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '|':
			return '.'
		}
		return r
	}, key) + ".wgsl"
}

// fill writes the assembled pieces and the stage state onto desc.
func (l *library) fill(desc pipeline.Pipeline, c *composition, vs, ps rhi.ShaderModule, layout rhi.PipelineLayout) {
	desc.SetPipelineKey(c.key)
	desc.SetShaders(vs, ps)
	desc.SetLayout(layout)
	if c.attribs != nil {
		desc.SetVertexBuffers(c.attribs.BufferLayouts())
	} else {
		desc.SetVertexBuffers(nil)
	}
	for _, s := range c.states {
		s.Apply(desc)
	}
}

func (l *library) PrecacheShaders(ctx context.Context, compositions [][]string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, stages := range compositions {
		g.Go(func() error {
			return l.getPipeline(gctx, pipeline.NewPipeline(PipelineKey(stages)), stages)
		})
	}
	return g.Wait()
}
