package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BoundingBox is an axis-aligned box described by its minimum and maximum corners.
// The zero value is a degenerate box at the origin, which is a valid (point) box.
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewBoundingBox creates a BoundingBox from two corners, ordering the components so that Min <= Max.
//
// Parameters:
//   - a: first corner
//   - b: second corner
//
// Returns:
//   - BoundingBox: the box spanning both corners
func NewBoundingBox(a, b mgl32.Vec3) BoundingBox {
	return BoundingBox{
		Min: mgl32.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])},
		Max: mgl32.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])},
	}
}

// PointBox returns a degenerate box containing only p.
func PointBox(p mgl32.Vec3) BoundingBox {
	return BoundingBox{Min: p, Max: p}
}

// BoundingBoxFromPoints computes the tightest box around a set of points.
// An empty slice yields the zero box.
//
// Parameters:
//   - points: positions to enclose
//
// Returns:
//   - BoundingBox: the enclosing box
func BoundingBoxFromPoints(points []mgl32.Vec3) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	b := PointBox(points[0])
	for _, p := range points[1:] {
		b = b.MergePoint(p)
	}
	return b
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the full extent of the box along each axis.
func (b BoundingBox) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// HalfExtents returns half of Size.
func (b BoundingBox) HalfExtents() mgl32.Vec3 {
	return b.Size().Mul(0.5)
}

// Merge returns the smallest box containing both b and o.
func (b BoundingBox) Merge(o BoundingBox) BoundingBox {
	return BoundingBox{
		Min: mgl32.Vec3{min(b.Min[0], o.Min[0]), min(b.Min[1], o.Min[1]), min(b.Min[2], o.Min[2])},
		Max: mgl32.Vec3{max(b.Max[0], o.Max[0]), max(b.Max[1], o.Max[1]), max(b.Max[2], o.Max[2])},
	}
}

// MergePoint returns the smallest box containing both b and p.
func (b BoundingBox) MergePoint(p mgl32.Vec3) BoundingBox {
	return b.Merge(PointBox(p))
}

// Contains reports whether p lies inside the box, boundaries included.
func (b BoundingBox) Contains(p mgl32.Vec3) bool {
	for i := range 3 {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether two boxes share any point.
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	for i := range 3 {
		if b.Max[i] < o.Min[i] || b.Min[i] > o.Max[i] {
			return false
		}
	}
	return true
}

// Corners returns the 8 corners of the box. Corner i takes Max on axis k when bit k of i is set.
func (b BoundingBox) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range 8 {
		for k := range 3 {
			if i&(1<<k) != 0 {
				out[i][k] = b.Max[k]
			} else {
				out[i][k] = b.Min[k]
			}
		}
	}
	return out
}

// Transformed returns the axis-aligned box enclosing b after applying the affine transform m.
// Uses Arvo's method: each output axis accumulates the min/max contribution of every matrix element.
//
// Reference: Graphics Gems, "Transforming Axis-Aligned Bounding Boxes" (J. Arvo, 1990)
//
// Parameters:
//   - m: an affine transform (column-major)
//
// Returns:
//   - BoundingBox: the transformed box
func (b BoundingBox) Transformed(m mgl32.Mat4) BoundingBox {
	out := BoundingBox{
		Min: mgl32.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)},
		Max: mgl32.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)},
	}
	for i := range 3 {
		for j := range 3 {
			e := m.At(i, j) * b.Min[j]
			f := m.At(i, j) * b.Max[j]
			if e < f {
				out.Min[i] += e
				out.Max[i] += f
			} else {
				out.Min[i] += f
				out.Max[i] += e
			}
		}
	}
	return out
}

// Ray is a half-line starting at Origin and extending along Direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// IntersectBox runs the slab test against b.
//
// Parameters:
//   - b: the box to test
//
// Returns:
//   - float32: distance along the ray (in Direction units) to the entry point, 0 if the origin is inside
//   - bool: true if the ray hits the box
func (r Ray) IntersectBox(b BoundingBox) (float32, bool) {
	tMin := float32(0)
	tMax := float32(math.MaxFloat32)
	for i := range 3 {
		if r.Direction[i] == 0 {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / r.Direction[i]
		t0 := (b.Min[i] - r.Origin[i]) * inv
		t1 := (b.Max[i] - r.Origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = max(tMin, t0)
		tMax = min(tMax, t1)
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}
