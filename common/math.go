package common

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Axis conventions shared by the scene graph and the camera. Cameras look down -Z.
var (
	Forward = mgl32.Vec3{0, 0, -1}
	Up      = mgl32.Vec3{0, 1, 0}
	Right   = mgl32.Vec3{1, 0, 0}
	One     = mgl32.Vec3{1, 1, 1}
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// Perspective creates a right-handed perspective projection matrix mapping depth to the WebGPU clip range [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Ortho creates a right-handed orthographic projection matrix mapping depth to [0, 1].
//
// Parameters:
//   - left, right, bottom, top: view volume extents
//   - near, far: clip plane distances
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	out := mgl32.Ident4()
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = -1 / (far - near)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = -near / (far - near)
	return out
}

// ComposeTransform builds T * R * S.
//
// Parameters:
//   - position: translation
//   - rotation: orientation
//   - scale: per-axis scale
//
// Returns:
//   - mgl32.Mat4: the affine transform
func ComposeTransform(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	m := rotation.Normalize().Mat4()
	for c := range 3 {
		for r := range 3 {
			m[c*4+r] *= scale[c]
		}
	}
	m[12], m[13], m[14] = position[0], position[1], position[2]
	return m
}

// DecomposeTransform splits an affine transform without shear into translation, rotation and scale.
// A negative determinant is folded into the X scale.
//
// Parameters:
//   - m: the affine transform
//
// Returns:
//   - mgl32.Vec3: translation
//   - mgl32.Quat: rotation
//   - mgl32.Vec3: scale
func DecomposeTransform(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	position := mgl32.Vec3{m[12], m[13], m[14]}
	scale := mgl32.Vec3{
		m.Col(0).Vec3().Len(),
		m.Col(1).Vec3().Len(),
		m.Col(2).Vec3().Len(),
	}
	if m.Mat3().Det() < 0 {
		scale[0] = -scale[0]
	}

	var basis [3]mgl32.Vec3
	for c := range 3 {
		if scale[c] == 0 {
			basis[c] = mgl32.Vec3{}
			basis[c][c] = 1
			continue
		}
		basis[c] = m.Col(c).Vec3().Mul(1 / scale[c])
	}
	rotation := mgl32.Mat4ToQuat(mgl32.Mat3FromCols(basis[0], basis[1], basis[2]).Mat4()).Normalize()
	return position, rotation, scale
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of m, widened back to a 4x4 for std140 upload.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat4 {
	upper := m.Mat3()
	if upper.Det() == 0 {
		return mgl32.Ident4()
	}
	return upper.Inv().Transpose().Mat4()
}

// TransformPoint applies an affine transform to a position.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// TransformDirection applies the linear part of a transform to a direction.
func TransformDirection(m mgl32.Mat4, d mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(d.Vec4(0)).Vec3()
}
