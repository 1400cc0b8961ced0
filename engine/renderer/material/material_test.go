package material

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func materialBlock(t *testing.T, d *rhitest.Device) pipelang.ParameterBlock {
	t.Helper()
	lib, err := pipelang.NewContext(d).CreateLibrary("Internal", pipelang.InternalFS)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())
	pb := lib.GetParameterBlock("BasicMaterialParams")
	require.NotNil(t, pb)
	return pb
}

func whiteView(t *testing.T, d *rhitest.Device) rhi.TextureView {
	t.Helper()
	tex, err := d.CreateTexture(&rhi.TextureDesc{Label: "white", Width: 1, Height: 1, DepthOrArrayLayers: 1, Format: wgpu.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	v, err := tex.CreateView(nil)
	require.NoError(t, err)
	return v
}

func pngTexture(t *testing.T, name string) *common.ImportedTexture {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &common.ImportedTexture{Name: name, Data: buf.Bytes(), MimeType: "image/png"}
}

func TestConstantsLayout(t *testing.T) {
	m := NewBasicMaterial(WithBaseColor([4]float32{0.5, 0.25, 1, 1}), WithMetallic(0.75), WithRoughness(0.2))
	c := m.Constants()
	assert.Equal(t, 48, c.Size())
	assert.Equal(t, uint32(0), c.UseTextures)

	buf := c.Marshal()
	require.Len(t, buf, 48)
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))
	assert.Equal(t, float32(0.75), math.Float32frombits(binary.LittleEndian.Uint32(buf[20:])))
	assert.Equal(t, float32(0.2), math.Float32frombits(binary.LittleEndian.Uint32(buf[24:])))

	textured := NewBasicMaterial(WithBaseColorTexture(&common.ImportedTexture{Name: "albedo"}))
	assert.Equal(t, uint32(1), textured.Constants().UseTextures)
	assert.Equal(t, KindBasic, textured.Kind())
}

func TestDescriptorSetUsesFallbackWithoutImages(t *testing.T) {
	d := rhitest.NewDevice()
	pb := materialBlock(t, d)
	white := whiteView(t, d)

	m := NewBasicMaterial(WithName("plain"))
	ds, err := m.DescriptorSet(d, pb, white)
	require.NoError(t, err)
	assert.Same(t, white, ds.TextureView(1))
	assert.Same(t, white, ds.TextureView(2))
	assert.Len(t, d.BufferData("material.plain.constants0"), 48)

	again, err := m.DescriptorSet(d, pb, white)
	require.NoError(t, err)
	assert.Same(t, ds, again)

	_, err = ds.BindGroup(d)
	require.NoError(t, err)
}

func TestDescriptorSetUploadsImages(t *testing.T) {
	d := rhitest.NewDevice()
	pb := materialBlock(t, d)
	white := whiteView(t, d)
	live := d.LiveTextures()

	m := NewBasicMaterial(WithName("brick"), WithBaseColorTexture(pngTexture(t, "albedo")))
	ds, err := m.DescriptorSet(d, pb, white)
	require.NoError(t, err)
	assert.Equal(t, live+1, d.LiveTextures())
	assert.Equal(t, "material.brick.albedo", ds.TextureView(1).Texture().Label())
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, ds.TextureView(1).Texture().Desc().Format)
	assert.Same(t, white, ds.TextureView(2))

	m.Release()
	assert.Equal(t, live, d.LiveTextures())
}

func TestBrokenImageFallsBack(t *testing.T) {
	d := rhitest.NewDevice()
	pb := materialBlock(t, d)
	white := whiteView(t, d)

	broken := &common.ImportedTexture{Name: "broken", Data: []byte("not an image")}
	m := NewBasicMaterial(WithName("broken"), WithBaseColorTexture(broken))
	ds, err := m.DescriptorSet(d, pb, white)
	require.NoError(t, err)
	assert.Same(t, white, ds.TextureView(1))
}

func TestFactorChangeReuploadsConstants(t *testing.T) {
	d := rhitest.NewDevice()
	pb := materialBlock(t, d)
	white := whiteView(t, d)

	m := NewBasicMaterial(WithName("tint"))
	_, err := m.DescriptorSet(d, pb, white)
	require.NoError(t, err)

	m.SetBaseColor([4]float32{0, 1, 0, 1})
	_, err = m.DescriptorSet(d, pb, white)
	require.NoError(t, err)
	buf := d.BufferData("material.tint.constants0")
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))
	assert.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])))
}
