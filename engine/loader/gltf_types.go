package loader

import (
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// ImportedScene is the device-independent result of importing a scene file. It is cached by the Loader and
// instantiated into a scene graph any number of times; every instance shares the same primitives.
type ImportedScene struct {
	// Name is the cache key the scene was imported under.
	Name string

	// Meshes holds the primitives of each mesh of the file, indexed like the file's mesh list.
	// The ImportedScene holds one reference to each primitive until it is evicted.
	Meshes [][]primitive.Primitive

	// Materials holds the materials created for the file, plus the default material if any primitive had none.
	Materials []material.BasicMaterial

	// Nodes holds the node hierarchy, indexed like the file's node list.
	Nodes []ImportedNode

	// Roots lists the indices of the top-level nodes.
	Roots []int
}

// ImportedNode is one node of an imported hierarchy.
type ImportedNode struct {
	Name     string
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	// Mesh is an index into ImportedScene.Meshes, or -1.
	Mesh     int
	Children []int
}

// PrimitiveCount returns the number of primitives over all meshes.
func (s *ImportedScene) PrimitiveCount() int {
	n := 0
	for _, m := range s.Meshes {
		n += len(m)
	}
	return n
}

// release drops the references the scene holds. Instances already in a scene graph keep their own
// references, so they keep rendering.
func (s *ImportedScene) release() {
	for _, m := range s.Meshes {
		for _, p := range m {
			p.Release()
		}
	}
	s.Meshes = nil
}
