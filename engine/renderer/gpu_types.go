package renderer

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUPrimitiveConstants is the PerPrimitive uniform written before each draw.
// Size: 128 bytes (two mat4x4<f32>).
type GPUPrimitiveConstants struct {
	Model  [16]float32 // offset  0: object-to-world matrix
	Normal [16]float32 // offset 64: inverse-transpose of the model matrix, padded to 4x4
}

// NewGPUPrimitiveConstants packs the model matrix and its normal matrix.
//
// Parameters:
//   - model: the object-to-world matrix
//
// Returns:
//   - GPUPrimitiveConstants: the packed constants
func NewGPUPrimitiveConstants(model mgl32.Mat4) GPUPrimitiveConstants {
	return GPUPrimitiveConstants{
		Model:  model,
		Normal: common.NormalMatrix(model),
	}
}

// Size returns the size of the GPUPrimitiveConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (128)
func (g *GPUPrimitiveConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPrimitiveConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 128-byte buffer ready for GPU upload
func (g *GPUPrimitiveConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Model[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.Normal[i]))
	}
	return buf
}

// GPUVoxelConstants is the voxel_constants uniform read by the composite pass.
// Size: 80 bytes.
//
// Layout:
//
//	mat4x4<f32> voxel_vp    (64 bytes, offset 0)
//	vec4<f32>   resolution  (16 bytes, offset 64), xyz = volume size in voxels
type GPUVoxelConstants struct {
	VoxelVP    [16]float32
	Resolution [4]float32
}

// Size returns the size of the GPUVoxelConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUVoxelConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVoxelConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPUVoxelConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.VoxelVP[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.Resolution[i]))
	}
	return buf
}
