package loader

import (
	"errors"
	"fmt"
	"log"

	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/shape"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var (
	errNoPositions         = errors.New("primitive has no POSITION attribute")
	errUnsupportedTopology = errors.New("unsupported primitive mode")
)

// extractMeshes converts every mesh of the document into primitives created in reg. A glTF primitive that
// cannot be converted is logged and skipped; the rest of its mesh is kept.
//
// Parameters:
//   - doc: the decoded document
//   - materials: the materials indexed like doc.Materials
//   - fallback: returns the material for primitives without one
//   - reg: the registry the primitives are created in
//
// Returns:
//   - [][]primitive.Primitive: the primitives of each mesh
func extractMeshes(doc *gltf.Document, materials []material.BasicMaterial, fallback func() material.BasicMaterial, reg *primitive.Registry) [][]primitive.Primitive {
	meshes := make([][]primitive.Primitive, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			label := fmt.Sprintf("%s_p%d", gm.Name, pi)
			if gm.Name == "" {
				label = fmt.Sprintf("mesh%d_p%d", mi, pi)
			}
			mesh, err := extractTriangleMesh(doc, prim, label)
			if err != nil {
				log.Printf("[Loader] skipping %s: %v", label, err)
				continue
			}
			var mat material.BasicMaterial
			if prim.Material != nil && *prim.Material < len(materials) {
				mat = materials[*prim.Material]
			} else {
				mat = fallback()
			}
			meshes[mi] = append(meshes[mi], reg.Create(mesh, mat))
		}
	}
	return meshes
}

// extractTriangleMesh reads the position, normal, texture coordinate and index streams of one primitive.
// Normals are generated when the file has none.
func extractTriangleMesh(doc *gltf.Document, prim *gltf.Primitive, label string) (shape.TriangleMesh, error) {
	topology, err := primitiveTopology(prim.Mode)
	if err != nil {
		return nil, err
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errNoPositions
	}
	raw, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	positions := toVec3(raw)

	opts := []shape.TriangleMeshBuilderOption{shape.WithLabel(label), shape.WithTopology(topology)}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		opts = append(opts, shape.WithIndices(indices))
	}

	var normals []mgl32.Vec3
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		n, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
		normals = toVec3(n)
	}
	if len(normals) != len(positions) {
		normals = generateNormals(positions, indices, topology)
	}
	opts = append(opts, shape.WithNormals(normals))

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uv, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("texcoords: %w", err)
		}
		texcoords := make([]mgl32.Vec2, len(uv))
		for i, t := range uv {
			texcoords[i] = mgl32.Vec2(t)
		}
		opts = append(opts, shape.WithTexCoords(texcoords))
	}

	return shape.NewTriangleMesh(positions, opts...), nil
}

// primitiveTopology maps a glTF primitive mode to a pipeline topology. Loops and fans have no equivalent.
func primitiveTopology(mode gltf.PrimitiveMode) (wgpu.PrimitiveTopology, error) {
	switch mode {
	case gltf.PrimitiveTriangles:
		return wgpu.PrimitiveTopologyTriangleList, nil
	case gltf.PrimitiveTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, nil
	case gltf.PrimitiveLines:
		return wgpu.PrimitiveTopologyLineList, nil
	case gltf.PrimitiveLineStrip:
		return wgpu.PrimitiveTopologyLineStrip, nil
	case gltf.PrimitivePoints:
		return wgpu.PrimitiveTopologyPointList, nil
	default:
		return 0, fmt.Errorf("%w %d", errUnsupportedTopology, mode)
	}
}

func toVec3(v [][3]float32) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(v))
	for i, p := range v {
		out[i] = mgl32.Vec3(p)
	}
	return out
}

// generateNormals computes smooth vertex normals by summing area-weighted face normals.
// Non-triangle topologies get +Y.
func generateNormals(positions []mgl32.Vec3, indices []uint32, topology wgpu.PrimitiveTopology) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))
	if topology != wgpu.PrimitiveTopologyTriangleList && topology != wgpu.PrimitiveTopologyTriangleStrip {
		for i := range normals {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
		return normals
	}

	index := func(i int) uint32 {
		if indices != nil {
			return indices[i]
		}
		return uint32(i)
	}
	count := len(positions)
	if indices != nil {
		count = len(indices)
	}

	addFace := func(a, b, c uint32) {
		if int(a) >= len(positions) || int(b) >= len(positions) || int(c) >= len(positions) {
			return
		}
		n := positions[b].Sub(positions[a]).Cross(positions[c].Sub(positions[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	if topology == wgpu.PrimitiveTopologyTriangleList {
		for i := 0; i+2 < count; i += 3 {
			addFace(index(i), index(i+1), index(i+2))
		}
	} else {
		for i := 0; i+2 < count; i++ {
			if i%2 == 0 {
				addFace(index(i), index(i+1), index(i+2))
			} else {
				addFace(index(i+1), index(i), index(i+2))
			}
		}
	}

	for i, n := range normals {
		if n.Len() > 1e-12 {
			normals[i] = n.Normalize()
		} else {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	return normals
}
