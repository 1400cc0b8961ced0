package octree

import "github.com/go-gl/mathgl/mgl32"

// OctreeBuilderOption is a functional option for configuring an Octree.
type OctreeBuilderOption func(*octree)

// WithCenter sets the center of the root cell.
//
// Parameters:
//   - center: world-space center of the root cell
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithCenter(center mgl32.Vec3) OctreeBuilderOption {
	return func(o *octree) {
		o.cells[0].Center = center
	}
}

// WithMaxDepth sets the subdivision limit. The root is depth 0.
//
// Parameters:
//   - depth: maximum depth; negative values are treated as 0
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithMaxDepth(depth int) OctreeBuilderOption {
	return func(o *octree) {
		o.maxDepth = max(depth, 0)
	}
}

// WithReservedCells pre-reserves room for n cells.
//
// Parameters:
//   - n: number of cells to reserve
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithReservedCells(n int) OctreeBuilderOption {
	return func(o *octree) {
		if n <= cap(o.cells) {
			return
		}
		cells := make([]Cell, len(o.cells), n)
		copy(cells, o.cells)
		o.cells = cells
	}
}
