package shape

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// TriangleMeshBuilderOption is a functional option for configuring a TriangleMesh via NewTriangleMesh.
type TriangleMeshBuilderOption func(*triangleMesh)

// WithLabel sets the debug label used for the mesh buffers.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - TriangleMeshBuilderOption: a function that sets the label
func WithLabel(label string) TriangleMeshBuilderOption {
	return func(m *triangleMesh) {
		m.label = label
	}
}

// WithNormals sets the per-vertex normal stream.
//
// Parameters:
//   - normals: one normal per position
//
// Returns:
//   - TriangleMeshBuilderOption: a function that sets the normals
func WithNormals(normals []mgl32.Vec3) TriangleMeshBuilderOption {
	return func(m *triangleMesh) {
		m.normals = normals
	}
}

// WithTexCoords sets the first texture coordinate stream.
//
// Parameters:
//   - texcoords: one coordinate per position
//
// Returns:
//   - TriangleMeshBuilderOption: a function that sets the texture coordinates
func WithTexCoords(texcoords []mgl32.Vec2) TriangleMeshBuilderOption {
	return func(m *triangleMesh) {
		m.texcoords = texcoords
	}
}

// WithIndices makes the mesh indexed.
//
// Parameters:
//   - indices: 32-bit vertex indices
//
// Returns:
//   - TriangleMeshBuilderOption: a function that sets the indices
func WithIndices(indices []uint32) TriangleMeshBuilderOption {
	return func(m *triangleMesh) {
		m.indices = indices
	}
}

// WithTopology overrides the triangle list topology.
//
// Parameters:
//   - topology: the primitive topology
//
// Returns:
//   - TriangleMeshBuilderOption: a function that sets the topology
func WithTopology(topology wgpu.PrimitiveTopology) TriangleMeshBuilderOption {
	return func(m *triangleMesh) {
		m.topology = topology
	}
}
