package pipelang

import (
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStages(t *testing.T) {
	mask, err := ParseStages("VP")
	require.NoError(t, err)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, mask)

	mask, err = ParseStages("VGP")
	require.NoError(t, err)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, mask)

	_, err = ParseStages("VX")
	assert.Error(t, err)
}

func TestAddBinding(t *testing.T) {
	pb := NewParameterBlock("Test")
	require.NoError(t, pb.AddBinding("tex", 1, "texture2D", 1, "P"))
	require.NoError(t, pb.AddBinding("consts", 0, "uniform", 1, "VP"))

	assert.Error(t, pb.AddBinding("other", 2, "cubemap", 1, "P"))
	assert.Error(t, pb.AddBinding("tex", 3, "texture2D", 1, "P"))
	assert.Error(t, pb.AddBinding("dup_slot", 1, "sampler", 1, "P"))
	assert.Error(t, pb.AddBinding("bad_stage", 4, "sampler", 1, "Q"))

	bindings := pb.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, "consts", bindings[0].Name)
	assert.Equal(t, "texture_2d<f32>", bindings[1].WGSLType)

	require.NoError(t, pb.SetWGSLType("consts", "Consts"))
	b, ok := pb.Binding("consts")
	require.True(t, ok)
	assert.Equal(t, "Consts", b.WGSLType)
	assert.Error(t, pb.SetWGSLType("missing", "X"))
}

func TestDescriptorLayoutIsIdempotent(t *testing.T) {
	d := rhitest.NewDevice()
	pb := NewParameterBlock("Test")
	require.NoError(t, pb.AddBinding("s", 0, "sampler", 1, "P"))

	require.NoError(t, pb.CreateDescriptorLayout(d))
	first := pb.DescriptorSetLayout()
	require.NotNil(t, first)
	require.NoError(t, pb.CreateDescriptorLayout(d))
	assert.Same(t, first, pb.DescriptorSetLayout())

	require.NoError(t, pb.CreateDescriptorLayout(nil))
	assert.Nil(t, pb.DescriptorSetLayout())
	require.NoError(t, pb.CreateDescriptorLayout(d))
	assert.NotSame(t, first, pb.DescriptorSetLayout())
}

func TestBindByNameSkipsUnknownNames(t *testing.T) {
	d := rhitest.NewDevice()
	pb := NewParameterBlock("Test")
	require.NoError(t, pb.AddBinding("consts", 0, "uniform", 1, "V"))
	require.NoError(t, pb.SetWGSLType("consts", "Consts"))
	require.NoError(t, pb.CreateDescriptorLayout(d))

	ds := pb.CreateDescriptorSet("test.set")
	require.NoError(t, pb.BindConstants(d, ds, "consts", make([]byte, 64)))
	require.NoError(t, pb.BindConstants(d, ds, "nope", make([]byte, 64)))
	assert.Equal(t, []int{0}, ds.Bindings())

	bg, err := ds.BindGroup(d)
	require.NoError(t, err)
	assert.Len(t, bg.(*rhitest.BindGroup).Desc.Entries, 1)
}

func TestClassifyResource(t *testing.T) {
	e := classifyResource(0, wgpu.ShaderStageFragment, DescriptorTypeTexture3D, "texture_3d<u32>")
	assert.Equal(t, wgpu.TextureSampleTypeUint, e.Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension3D, e.Texture.ViewDimension)

	e = classifyResource(1, wgpu.ShaderStageFragment, DescriptorTypeImage3D, "texture_storage_3d<r32uint, write>")
	assert.Equal(t, wgpu.TextureFormatR32Uint, e.StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, e.StorageTexture.Access)

	e = classifyResource(2, wgpu.ShaderStageFragment, DescriptorTypeTextureDepth, "texture_depth_2d")
	assert.Equal(t, wgpu.TextureSampleTypeDepth, e.Texture.SampleType)

	e = classifyResource(3, wgpu.ShaderStageFragment, DescriptorTypeSamplerComparison, "sampler_comparison")
	assert.Equal(t, wgpu.SamplerBindingTypeComparison, e.Sampler.Type)
}

func TestVertexAttribs(t *testing.T) {
	va := NewVertexAttribs()
	require.NoError(t, va.AddAttribute("Position", 0))
	require.NoError(t, va.AddAttribute("TexCoord0", 4))
	assert.Error(t, va.AddAttribute("Banana", 1))
	assert.Error(t, va.AddAttribute("Normal", 0))

	s, ok := va.Semantic(4)
	require.True(t, ok)
	assert.Equal(t, SemanticTexCoord0, s)
	_, ok = va.Location(SemanticNormal)
	assert.False(t, ok)

	layouts := va.BufferLayouts()
	require.Len(t, layouts, 2)
	assert.Equal(t, uint64(12), layouts[0].ArrayStride)
	assert.Equal(t, uint32(4), layouts[1].Attributes[0].ShaderLocation)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, layouts[1].Attributes[0].Format)
}
