package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// importDocument converts a decoded glTF document into an ImportedScene.
//
// Parameters:
//   - doc: the decoded document
//   - dir: the directory external image URIs are relative to
//   - reg: the registry the primitives are created in
//
// Returns:
//   - *ImportedScene: the imported scene
//   - error: error if the node hierarchy references missing nodes
func importDocument(doc *gltf.Document, dir string, reg *primitive.Registry) (*ImportedScene, error) {
	images := extractImages(doc, dir)
	materials := extractMaterials(doc, images)

	var defaultMaterial material.BasicMaterial
	fallback := func() material.BasicMaterial {
		if defaultMaterial == nil {
			defaultMaterial = material.NewBasicMaterial(material.WithName("default"))
		}
		return defaultMaterial
	}

	s := &ImportedScene{
		Meshes: extractMeshes(doc, materials, fallback, reg),
	}
	s.Materials = materials
	if defaultMaterial != nil {
		s.Materials = append(s.Materials, defaultMaterial)
	}

	nodes, err := extractNodes(doc, len(s.Meshes))
	if err != nil {
		s.release()
		return nil, err
	}
	s.Nodes = nodes
	s.Roots = rootNodes(doc)
	return s, nil
}

// extractNodes reads the node hierarchy. A node with a matrix is decomposed into translation, rotation and scale.
func extractNodes(doc *gltf.Document, meshCount int) ([]ImportedNode, error) {
	nodes := make([]ImportedNode, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		n := ImportedNode{
			Name: common.Coalesce(gn.Name, fmt.Sprintf("node%d", i)),
			Mesh: -1,
		}
		if gn.Matrix != identityMatrix && gn.Matrix != [16]float64{} {
			var m mgl32.Mat4
			for k, v := range gn.Matrix {
				m[k] = float32(v)
			}
			n.Position, n.Rotation, n.Scale = common.DecomposeTransform(m)
		} else {
			t := gn.TranslationOrDefault()
			r := gn.RotationOrDefault()
			sc := gn.ScaleOrDefault()
			n.Position = mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
			n.Rotation = mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
			n.Scale = mgl32.Vec3{float32(sc[0]), float32(sc[1]), float32(sc[2])}
		}
		if gn.Mesh != nil && *gn.Mesh < meshCount {
			n.Mesh = *gn.Mesh
		}
		for _, c := range gn.Children {
			if c < 0 || c >= len(doc.Nodes) {
				return nil, fmt.Errorf("node %q references missing child %d", n.Name, c)
			}
			n.Children = append(n.Children, c)
		}
		nodes[i] = n
	}
	return nodes, nil
}

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// rootNodes returns the nodes of the default scene, or every parentless node when the file has no default scene.
func rootNodes(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return append([]int(nil), doc.Scenes[*doc.Scene].Nodes...)
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c >= 0 && c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// instantiate builds one instance of the imported hierarchy below parent, under a container node named after
// the scene. Every node that references a mesh retains its primitives.
//
// Parameters:
//   - s: the imported scene
//   - parent: the node the instance is attached to
//
// Returns:
//   - scene.SceneNode: the container node
func instantiate(s *ImportedScene, parent scene.SceneNode) scene.SceneNode {
	root := parent.CreateChildNode(scene.WithNodeName(s.Name))
	// glTF forbids cycles but files in the wild have them; a node is instanced once per path at most.
	visiting := make([]bool, len(s.Nodes))
	var build func(at scene.SceneNode, idx int)
	build = func(at scene.SceneNode, idx int) {
		if idx < 0 || idx >= len(s.Nodes) || visiting[idx] {
			return
		}
		visiting[idx] = true
		defer func() { visiting[idx] = false }()

		n := s.Nodes[idx]
		opts := []scene.NodeBuilderOption{
			scene.WithNodeName(n.Name),
			scene.WithPosition(n.Position),
			scene.WithRotation(n.Rotation),
			scene.WithScale(n.Scale),
		}
		if n.Mesh >= 0 && n.Mesh < len(s.Meshes) {
			opts = append(opts, scene.WithPrimitives(s.Meshes[n.Mesh]...))
		}
		node := at.CreateChildNode(opts...)
		for _, c := range n.Children {
			build(node, c)
		}
	}
	for _, r := range s.Roots {
		build(root, r)
	}
	return root
}
