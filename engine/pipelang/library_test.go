package pipelang

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/foreground/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineKey(t *testing.T) {
	assert.Equal(t, "_A_B_C", PipelineKey([]string{"A", "B", "C"}))
	assert.Equal(t, "", PipelineKey(nil))
	assert.True(t, ValidName("GBufferPS"))
	assert.False(t, ValidName("A_B"))
	assert.False(t, ValidName(""))
}

func TestNamesContainingTheKeySeparatorAreRejected(t *testing.T) {
	for _, yaml := range []string{
		"stages:\n  A_B: {kind: state}\n",
		"parameter_blocks:\n  Per_Draw: {set: 0}\n",
		"vertex_attribs:\n  Tri_Mesh: []\n",
	} {
		lib, err := NewContext(nil).CreateLibrary("names", fstest.MapFS{"library.yaml": {Data: []byte(yaml)}})
		require.NoError(t, err)
		assert.ErrorIs(t, lib.Parse(), ErrInvalidName, yaml)
		assert.Equal(t, uint64(0), lib.Generation())
	}

	lib, err := NewContext(nil).CreateLibrary("names", fstest.MapFS{})
	require.NoError(t, err)
	assert.ErrorIs(t, lib.AddStage(Stage{Name: "A_B", Kind: StageKindState}), ErrInvalidName)
	assert.ErrorIs(t, lib.AddParameterBlock("Per_Draw", NewParameterBlock("Per_Draw")), ErrInvalidName)
	assert.ErrorIs(t, lib.AddVertexAttribs("Tri_Mesh", NewVertexAttribs()), ErrInvalidName)
	require.NoError(t, lib.AddStage(Stage{Name: "AB", Kind: StageKindState}))
	_, ok := lib.GetStage("AB")
	assert.True(t, ok)
}

func TestParseInternalLibrary(t *testing.T) {
	_, _, lib := newInternal(t)

	for _, name := range []string{"EngineCommon", "BasicMaterialParams", "PerPrimitive", "VoxelData", "ShadowCommon",
		"AOInputs", "AOBlurInputs", "LightingInputs", "CompositeInputs"} {
		pb := lib.GetParameterBlock(name)
		require.NotNil(t, pb, name)
		assert.NotNil(t, pb.DescriptorSetLayout(), name)
	}
	assert.Equal(t, uint32(3), lib.GetParameterBlock("VoxelData").SetIndex())

	va := lib.GetVertexAttribs("StandardTriMesh")
	require.NotNil(t, va)
	loc, ok := va.Location(SemanticTexCoord0)
	require.True(t, ok)
	assert.Equal(t, uint32(2), loc)

	s, ok := lib.GetStage("VoxelRasterizer")
	require.True(t, ok)
	assert.Equal(t, StageKindState, s.Kind)
	assert.Nil(t, lib.GetParameterBlock("Missing"))
}

func TestGetPipelineIsIdempotent(t *testing.T) {
	cc := &countingCompiler{}
	_, _, lib := newInternal(t, WithShaderCompiler(cc))

	first := pipeline.NewPipeline("gbuffer")
	require.NoError(t, lib.GetPipeline(first, gbufferStages))
	second := pipeline.NewPipeline("gbuffer")
	require.NoError(t, lib.GetPipeline(second, gbufferStages))

	assert.Same(t, first.VertexShader(), second.VertexShader())
	assert.Same(t, first.FragmentShader(), second.FragmentShader())
	assert.Same(t, first.Layout(), second.Layout())

	key := PipelineKey(gbufferStages)
	assert.Equal(t, []string{"Internal|" + key + "_VS", "Internal|" + key + "_PS"}, cc.Calls())
	assert.Equal(t, key, first.PipelineKey())
	assert.Len(t, first.VertexBuffers(), 3)
}

func TestGetPipelineGeneratesWGSL(t *testing.T) {
	_, _, lib := newInternal(t)
	desc := pipeline.NewPipeline("gbuffer")
	require.NoError(t, lib.GetPipeline(desc, gbufferStages))

	vs := desc.VertexShader().(*rhitest.ShaderModule).Code
	assert.Contains(t, vs, "@group(0) @binding(3) var<uniform> globals: GlobalConstants;")
	assert.Contains(t, vs, "@group(2) @binding(0) var<uniform> primitive: PrimitiveConstants;")
	assert.Contains(t, vs, "@group(1) @binding(1) var base_color_tex: texture_2d<f32>;")
	assert.Contains(t, vs, "@location(2) texcoord0: vec2<f32>,")
	assert.Contains(t, vs, "@vertex")
	assert.NotContains(t, vs, "@fragment")
	assert.Equal(t, 1, strings.Count(vs, "struct Interpolants"))

	ps := desc.FragmentShader().(*rhitest.ShaderModule).Code
	assert.Contains(t, ps, "fn material_base_color")
	assert.Contains(t, ps, "@fragment")
	assert.NotContains(t, ps, "struct VertexInput")
}

func TestGetPipelineLayoutLeavesGaps(t *testing.T) {
	_, _, lib := newInternal(t)
	desc := pipeline.NewPipeline("zonly")
	require.NoError(t, lib.GetPipeline(desc, zOnlyStages))

	sets := desc.Layout().(*rhitest.PipelineLayout).Sets
	require.Len(t, sets, 3)
	assert.Same(t, lib.GetParameterBlock("ShadowCommon").DescriptorSetLayout(), sets[0])
	assert.Nil(t, sets[1])
	assert.Same(t, lib.GetParameterBlock("PerPrimitive").DescriptorSetLayout(), sets[2])
}

func TestDepthOnlyCompositionHasNoFragmentShader(t *testing.T) {
	d, _, lib := newInternal(t)
	desc := pipeline.NewPipeline("zonly")
	require.NoError(t, lib.GetPipeline(desc, zOnlyStages))

	assert.NotNil(t, desc.VertexShader())
	assert.Nil(t, desc.FragmentShader())
	assert.Equal(t, 1, d.ShaderModules())
	assert.Equal(t, int32(2), desc.DepthBias())
}

func TestStateStageIsApplied(t *testing.T) {
	_, _, lib := newInternal(t)
	desc := pipeline.NewPipeline("voxel")
	require.NoError(t, lib.GetPipeline(desc, voxelStages))

	assert.False(t, desc.DepthTestEnabled())
	assert.False(t, desc.DepthWriteEnabled())
	assert.Equal(t, wgpu.CullModeNone, desc.CullMode())
	assert.Equal(t, wgpu.ColorWriteMask(0), desc.WriteMask())
	assert.Len(t, desc.Layout().(*rhitest.PipelineLayout).Sets, 4)
}

func TestFailedCompileCachesOnlyTheLayout(t *testing.T) {
	d, ctx, lib := newInternal(t)
	d.FailShader = func(label string) bool { return strings.HasSuffix(label, "_PS") }

	desc := pipeline.NewPipeline("gbuffer")
	require.Error(t, lib.GetPipeline(desc, gbufferStages))

	key := PipelineKey(gbufferStages)
	assert.NotNil(t, lib.PipelineLayout(key))
	assert.NotNil(t, ctx.ShaderCache().RetrieveShader("Internal|"+key+"_VS"))
	assert.Nil(t, ctx.ShaderCache().RetrieveShader("Internal|"+key+"_PS"))

	d.FailShader = nil
	require.NoError(t, lib.GetPipeline(desc, gbufferStages))
	assert.NotNil(t, desc.FragmentShader())
}

func TestGetPipelineUnknownStage(t *testing.T) {
	_, _, lib := newInternal(t)
	err := lib.GetPipeline(pipeline.NewPipeline("x"), []string{"EngineCommon", "NoSuchStage"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchStage")
}

func TestGetPipelineWithoutDevice(t *testing.T) {
	ctx := NewContext(nil)
	lib, err := ctx.CreateLibrary("Internal", InternalFS)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())

	err = lib.GetPipeline(pipeline.NewPipeline("gbuffer"), gbufferStages)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestDumpDirReceivesGeneratedSources(t *testing.T) {
	dir := t.TempDir()
	_, _, lib := newInternal(t, WithDumpDir(dir))
	require.NoError(t, lib.GetPipeline(pipeline.NewPipeline("gbuffer"), gbufferStages))

	key := PipelineKey(gbufferStages)
	for _, suffix := range []string{"_VS.wgsl", "_PS.wgsl"} {
		data, err := os.ReadFile(filepath.Join(dir, "Internal."+key+suffix))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestPrecacheShaders(t *testing.T) {
	cc := &countingCompiler{}
	_, ctx, lib := newInternal(t, WithShaderCompiler(cc))

	require.NoError(t, lib.PrecacheShaders(context.Background(), [][]string{gbufferStages, voxelStages, zOnlyStages}))
	assert.Len(t, cc.Calls(), 5)
	assert.Equal(t, 5, ctx.ShaderCache().Len())

	require.NoError(t, lib.GetPipeline(pipeline.NewPipeline("voxel"), voxelStages))
	assert.Len(t, cc.Calls(), 5)
}

func TestStructIncludesAreOrderedAndDeduplicated(t *testing.T) {
	fsys := fstest.MapFS{
		"library.yaml": {Data: []byte(`
structs:
  Inner: inner.wgsl
  Outer: outer.wgsl
parameter_blocks:
  Block:
    set: 0
    bindings:
      - {name: data, binding: 0, type: readonly_buffer, stages: V, wgsl: Outer}
stages:
  VS: {kind: vertex, source: vs.wgsl}
`)},
		"inner.wgsl": {Data: []byte("struct Inner { x: f32, }\n")},
		"outer.wgsl": {Data: []byte("//@pl:include Inner\nstruct Outer { inner: Inner, }\n")},
		"vs.wgsl":    {Data: []byte("//@pl:include Inner\n@vertex\nfn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(data.inner.x); }\n")},
	}
	ctx := NewContext(rhitest.NewDevice())
	lib, err := ctx.CreateLibrary("test", fsys)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())

	desc := pipeline.NewPipeline("p")
	require.NoError(t, lib.GetPipeline(desc, []string{"Block", "VS"}))

	vs := desc.VertexShader().(*rhitest.ShaderModule).Code
	assert.Equal(t, 1, strings.Count(vs, "struct Inner"))
	assert.Less(t, strings.Index(vs, "struct Inner"), strings.Index(vs, "struct Outer"))
	assert.Contains(t, vs, "var<storage, read> data: Outer;")
	assert.NotContains(t, vs, "VertexInput")
	assert.Nil(t, desc.FragmentShader())
}

func TestParseRejectsUnknownStageKind(t *testing.T) {
	fsys := fstest.MapFS{
		"library.yaml": {Data: []byte("stages:\n  X: {kind: geometry, source: x.wgsl}\n")},
	}
	lib, err := NewContext(nil).CreateLibrary("bad", fsys)
	require.NoError(t, err)
	assert.Error(t, lib.Parse())
}

func TestDumpFileNameFlattensDirectoryLibraries(t *testing.T) {
	assert.Equal(t, ".tmp.shaders._A_B_VS.wgsl", dumpFileName("/tmp/shaders|_A_B_VS"))
	assert.Equal(t, "Internal._A_PS.wgsl", dumpFileName("Internal|_A_PS"))
}

func TestLibrariesDoNotShareShaders(t *testing.T) {
	d, ctx, internal := newInternal(t)
	dir := copyInternal(t)
	editStage(t, dir, "gbuffer_ps.wgsl", "// edited in the directory library")
	edited, err := ctx.CreateDirLibrary(dir)
	require.NoError(t, err)
	require.NoError(t, edited.Parse())

	a := pipeline.NewPipeline("gbuffer")
	require.NoError(t, internal.GetPipeline(a, gbufferStages))
	b := pipeline.NewPipeline("gbuffer")
	require.NoError(t, edited.GetPipeline(b, gbufferStages))

	assert.NotSame(t, a.FragmentShader(), b.FragmentShader())
	assert.NotSame(t, a.VertexShader(), b.VertexShader())
	assert.NotSame(t, a.Layout(), b.Layout())
	assert.Contains(t, b.FragmentShader().(*rhitest.ShaderModule).Code, "// edited in the directory library")
	assert.NotContains(t, a.FragmentShader().(*rhitest.ShaderModule).Code, "// edited in the directory library")
	assert.Equal(t, 4, d.ShaderModules())
	assert.Equal(t, 4, ctx.ShaderCache().Len())
}

func TestParseDropsOnlyItsOwnCaches(t *testing.T) {
	_, ctx, internal := newInternal(t)
	dir := copyInternal(t)
	lib, err := ctx.CreateDirLibrary(dir)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())
	assert.Equal(t, uint64(1), lib.Generation())

	require.NoError(t, internal.GetPipeline(pipeline.NewPipeline("gbuffer"), gbufferStages))
	require.NoError(t, lib.GetPipeline(pipeline.NewPipeline("gbuffer"), gbufferStages))
	key := PipelineKey(gbufferStages)
	oldLayout := lib.PipelineLayout(key)
	oldBlock := lib.GetParameterBlock("PerPrimitive")
	require.NotNil(t, oldLayout)
	require.Equal(t, 4, ctx.ShaderCache().Len())

	path := filepath.Join(dir, LibraryFile)
	desc, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.Replace(string(desc),
		"{name: primitive, binding: 0, type: uniform, stages: V, wgsl: PrimitiveConstants}",
		"{name: primitive, binding: 0, type: uniform, stages: VP, wgsl: PrimitiveConstants}", 1)
	require.NotEqual(t, string(desc), edited)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	require.NoError(t, lib.Parse())

	assert.Equal(t, uint64(2), lib.Generation())
	assert.Nil(t, lib.PipelineLayout(key))
	assert.True(t, oldLayout.(*rhitest.PipelineLayout).Released())
	assert.Equal(t, 2, ctx.ShaderCache().Len())
	assert.NotNil(t, ctx.ShaderCache().RetrieveShader("Internal|"+key+"_VS"))
	assert.NotNil(t, internal.PipelineLayout(key))

	block := lib.GetParameterBlock("PerPrimitive")
	assert.NotSame(t, oldBlock, block)
	b, ok := block.Binding("primitive")
	require.True(t, ok)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, b.Stages)
	assert.NotNil(t, block.DescriptorSetLayout())
}

func TestFailedParseKeepsGeneration(t *testing.T) {
	dir := copyInternal(t)
	ctx := NewContext(rhitest.NewDevice())
	lib, err := ctx.CreateDirLibrary(dir)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())
	require.NoError(t, lib.GetPipeline(pipeline.NewPipeline("gbuffer"), gbufferStages))

	require.NoError(t, os.WriteFile(filepath.Join(dir, LibraryFile), []byte("stages: ["), 0o644))
	assert.Error(t, lib.Parse())
	assert.Equal(t, uint64(1), lib.Generation())
	assert.Equal(t, 2, ctx.ShaderCache().Len())
	assert.NotNil(t, lib.PipelineLayout(PipelineKey(gbufferStages)))
}

// editStage appends line to a stage source of the library in dir.
func editStage(t *testing.T, dir, file, line string) {
	t.Helper()
	path := filepath.Join(dir, "stages", file)
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(src, []byte("\n"+line+"\n")...), 0o644))
}
