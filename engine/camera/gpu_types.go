package camera

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUGlobalConstants is the GPU-aligned representation of the GlobalConstants uniform of the EngineCommon set.
// Size: 208 bytes (WGSL uniform aligned).
type GPUGlobalConstants struct {
	CameraPosition [4]float32  // offset   0: world-space camera position, w = 1 (vec4<f32>)
	ViewMatrix     [16]float32 // offset  16: world-to-view matrix (mat4x4<f32>)
	ProjMatrix     [16]float32 // offset  80: projection matrix (mat4x4<f32>)
	InvProjMatrix  [16]float32 // offset 144: inverse projection matrix (mat4x4<f32>)
}

// NewGPUGlobalConstants packs the per-view constants of a frame.
//
// Parameters:
//   - position: world-space camera position
//   - view: world-to-view matrix
//   - proj: projection matrix
//   - invProj: inverse projection matrix
//
// Returns:
//   - GPUGlobalConstants: the packed constants
func NewGPUGlobalConstants(position mgl32.Vec3, view, proj, invProj mgl32.Mat4) GPUGlobalConstants {
	return GPUGlobalConstants{
		CameraPosition: [4]float32{position.X(), position.Y(), position.Z(), 1},
		ViewMatrix:     view,
		ProjMatrix:     proj,
		InvProjMatrix:  invProj,
	}
}

// Size returns the size of the GPUGlobalConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (208)
func (g *GPUGlobalConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUGlobalConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUGlobalConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.CameraPosition[i]))
	}
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.ViewMatrix[i]))
		binary.LittleEndian.PutUint32(buf[80+i*4:], math.Float32bits(g.ProjMatrix[i]))
		binary.LittleEndian.PutUint32(buf[144+i*4:], math.Float32bits(g.InvProjMatrix[i]))
	}
	return buf
}
