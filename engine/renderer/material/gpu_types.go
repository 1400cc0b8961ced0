package material

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUMaterialConstants is the GPU-aligned representation of the MaterialConstants uniform of the
// BasicMaterialParams set.
// Size: 48 bytes (WGSL uniform aligned).
type GPUMaterialConstants struct {
	BaseColor         [4]float32 // offset  0: RGBA albedo factor (vec4<f32>)
	MetallicRoughness [4]float32 // offset 16: g = metallic, b = roughness (vec4<f32>)
	UseTextures       uint32     // offset 32: 1 when the images modulate the factors
	_pad              [3]uint32  // offset 36: padding to 48 bytes
}

// Size returns the size of the GPUMaterialConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUMaterialConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUMaterialConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.BaseColor[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.MetallicRoughness[i]))
	}
	binary.LittleEndian.PutUint32(buf[32:36], g.UseTextures)
	return buf
}
