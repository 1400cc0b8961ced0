package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: n·p + d = 0
// where n is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance from p to the plane. Positive values lie on the normal's side.
func (p Plane) SignedDistance(v mgl32.Vec3) float32 {
	return p.Normal.Dot(v) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// Intersection classifies a volume against a frustum.
type Intersection int

const (
	// Outside means the volume lies entirely in the negative half-space of at least one plane.
	Outside Intersection = iota
	// Intersect means the volume straddles at least one plane.
	Intersect
	// Inside means the volume is in the positive half-space of every plane.
	Inside
)

// String returns the name of the classification.
func (i Intersection) String() string {
	switch i {
	case Outside:
		return "outside"
	case Intersect:
		return "intersect"
	case Inside:
		return "inside"
	default:
		return "unknown"
	}
}

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix and map depth to the WebGPU
// clip range [0, 1], so the near plane is row 2 alone rather than row 3 + row 2.
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	var f Frustum
	f.Planes[FrustumLeft] = planeFromVec4(r3.Add(r0))
	f.Planes[FrustumRight] = planeFromVec4(r3.Sub(r0))
	f.Planes[FrustumBottom] = planeFromVec4(r3.Add(r1))
	f.Planes[FrustumTop] = planeFromVec4(r3.Sub(r1))
	f.Planes[FrustumNear] = planeFromVec4(r2)
	f.Planes[FrustumFar] = planeFromVec4(r3.Sub(r2))
	return f
}

// planeFromVec4 builds a normalized plane from (a, b, c, d) coefficients.
func planeFromVec4(v mgl32.Vec4) Plane {
	p := Plane{Normal: v.Vec3(), Distance: v[3]}
	if length := p.Normal.Len(); length > 0 {
		inv := 1 / length
		p.Normal = p.Normal.Mul(inv)
		p.Distance *= inv
	}
	return p
}

// IntersectBox classifies b against the frustum using the positive/negative vertex test.
// The test is conservative: a box near a frustum corner may report Intersect while lying outside.
//
// Parameters:
//   - b: the world-space box to classify
//
// Returns:
//   - Intersection: Outside, Intersect or Inside
func (f Frustum) IntersectBox(b BoundingBox) Intersection {
	result := Inside
	for _, p := range f.Planes {
		var pos, neg mgl32.Vec3
		for k := range 3 {
			if p.Normal[k] >= 0 {
				pos[k], neg[k] = b.Max[k], b.Min[k]
			} else {
				pos[k], neg[k] = b.Min[k], b.Max[k]
			}
		}
		if p.SignedDistance(pos) < 0 {
			return Outside
		}
		if p.SignedDistance(neg) < 0 {
			result = Intersect
		}
	}
	return result
}

// ContainsPoint reports whether v lies inside or on every plane.
func (f Frustum) ContainsPoint(v mgl32.Vec3) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(v) < 0 {
			return false
		}
	}
	return true
}
