package shape

import "github.com/go-gl/mathgl/mgl32"

// cubeFaces lists each face as its outward normal and the two in-plane axes spanning it.
var cubeFaces = [6][3]mgl32.Vec3{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

// Cube builds an indexed, axis-aligned cube centered on the origin with per-face normals and texture coordinates.
//
// Parameters:
//   - size: the edge length
//   - options: extra options applied after the generated streams
//
// Returns:
//   - TriangleMesh: a 24-vertex, 36-index mesh
func Cube(size float32, options ...TriangleMeshBuilderOption) TriangleMesh {
	h := size / 2
	positions := make([]mgl32.Vec3, 0, 24)
	normals := make([]mgl32.Vec3, 0, 24)
	texcoords := make([]mgl32.Vec2, 0, 24)
	indices := make([]uint32, 0, 36)

	corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range cubeFaces {
		n, u, v := f[0], f[1], f[2]
		base := uint32(len(positions))
		for _, c := range corners {
			p := n.Add(u.Mul(c[0])).Add(v.Mul(c[1])).Mul(h)
			positions = append(positions, p)
			normals = append(normals, n)
			texcoords = append(texcoords, mgl32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	opts := append([]TriangleMeshBuilderOption{
		WithLabel("cube"),
		WithNormals(normals),
		WithTexCoords(texcoords),
		WithIndices(indices),
	}, options...)
	return NewTriangleMesh(positions, opts...)
}

// Plane builds an indexed square on the XZ plane facing +Y, centered on the origin.
//
// Parameters:
//   - size: the edge length
//   - options: extra options applied after the generated streams
//
// Returns:
//   - TriangleMesh: a 4-vertex, 6-index mesh
func Plane(size float32, options ...TriangleMeshBuilderOption) TriangleMesh {
	h := size / 2
	positions := []mgl32.Vec3{{-h, 0, h}, {h, 0, h}, {h, 0, -h}, {-h, 0, -h}}
	normals := []mgl32.Vec3{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}}
	texcoords := []mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	opts := append([]TriangleMeshBuilderOption{
		WithLabel("plane"),
		WithNormals(normals),
		WithTexCoords(texcoords),
		WithIndices([]uint32{0, 1, 2, 0, 2, 3}),
	}, options...)
	return NewTriangleMesh(positions, opts...)
}
