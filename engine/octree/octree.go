// Package octree implements a loose octree spatial index over objects with world-space bounding boxes.
package octree

import (
	"sync"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Object is anything the octree can index. Identity is interface equality, so pointer types index by address.
type Object interface {
	// WorldBoundingBox returns the object's current world-space bounds.
	WorldBoundingBox() common.BoundingBox
}

// Cell is one cubic region of the tree.
type Cell struct {
	// Center is the cell center in world space.
	Center mgl32.Vec3
	// HalfSize is the half width of the nominal (tight) cell bounds.
	HalfSize float32
	// ChildrenStart is the index of the first of the 8 children, or 0 when the cell has no children yet.
	ChildrenStart int

	objects []Object
}

// LooseBounds returns the loose cell bounds, twice the nominal extent.
func (c Cell) LooseBounds() common.BoundingBox {
	e := mgl32.Vec3{2 * c.HalfSize, 2 * c.HalfSize, 2 * c.HalfSize}
	return common.NewBoundingBox(c.Center.Sub(e), c.Center.Add(e))
}

// Bounds returns the nominal cell bounds.
func (c Cell) Bounds() common.BoundingBox {
	e := mgl32.Vec3{c.HalfSize, c.HalfSize, c.HalfSize}
	return common.NewBoundingBox(c.Center.Sub(e), c.Center.Add(e))
}

// Octree is a loose octree. Cells are appended to a flat slice and never removed; each live object is stored in exactly one cell.
// All methods are safe for concurrent use. Object bounds are read before the tree lock is taken.
type Octree interface {
	// InsertObject inserts o, descending while its bounds fit inside a child octant. Inserting a present object relocates it.
	//
	// Parameters:
	//   - o: the object to insert
	InsertObject(o Object)

	// EraseObject removes o. Unknown objects are ignored.
	//
	// Parameters:
	//   - o: the object to remove
	//
	// Returns:
	//   - bool: true if o was present
	EraseObject(o Object) bool

	// UpdateObject re-inserts o after its bounds changed. It is an erase followed by a full insert.
	//
	// Parameters:
	//   - o: the object to relocate
	UpdateObject(o Object)

	// IntersectFrustum appends to result every object whose world box is not outside f.
	//
	// Parameters:
	//   - f: the frustum to test against
	//   - result: slice to append to, may be nil
	//
	// Returns:
	//   - []Object: result with the visible objects appended
	IntersectFrustum(f common.Frustum, result []Object) []Object

	// IntersectRay appends to result every object whose world box is hit by r.
	//
	// Parameters:
	//   - r: the ray to test
	//   - result: slice to append to, may be nil
	//
	// Returns:
	//   - []Object: result with the hit objects appended
	IntersectRay(r common.Ray, result []Object) []Object

	// Len returns the number of indexed objects.
	Len() int

	// CellCount returns the number of allocated cells, including the root.
	CellCount() int

	// CellOf returns the index of the cell holding o.
	//
	// Returns:
	//   - int: the cell index
	//   - bool: false if o is not indexed
	CellOf(o Object) (int, bool)

	// Cell returns a copy of cell i without its object set.
	Cell(i int) Cell

	// CellObjects returns a copy of the object set stored at cell i.
	CellObjects(i int) []Object

	// Contains reports whether o is indexed.
	Contains(o Object) bool

	// MaxDepth returns the subdivision limit.
	MaxDepth() int
}

type octree struct {
	mu *sync.RWMutex

	cells    []Cell
	cellOf   map[Object]int
	maxDepth int
}

var _ Octree = &octree{}

// DefaultMaxDepth is the subdivision limit used when WithMaxDepth is not given.
const DefaultMaxDepth = 7

// defaultReservedCells pre-reserves the root plus 64 full subdivisions.
const defaultReservedCells = 513

// NewOctree creates an octree whose root cell spans [-halfWidth, halfWidth] around the center.
//
// Parameters:
//   - halfWidth: half width of the root cell; must be positive
//   - options: functional options for center, depth and reservation
//
// Returns:
//   - Octree: the new octree
func NewOctree(halfWidth float32, options ...OctreeBuilderOption) Octree {
	o := &octree{
		mu:       &sync.RWMutex{},
		maxDepth: DefaultMaxDepth,
		cells:    make([]Cell, 0, defaultReservedCells),
		cellOf:   make(map[Object]int),
	}
	o.cells = append(o.cells, Cell{HalfSize: halfWidth})

	for _, opt := range options {
		opt(o)
	}
	if o.cells[0].HalfSize <= 0 {
		panic("octree: half width must be positive")
	}
	return o
}

func (o *octree) InsertObject(obj Object) {
	box := obj.WorldBoundingBox()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.eraseLocked(obj)
	o.insertLocked(obj, box)
}

func (o *octree) insertLocked(obj Object, box common.BoundingBox) {
	center := box.Center()
	size := box.Size()

	cell := 0
	for depth := 0; ; depth++ {
		c := o.cells[cell]
		if depth >= o.maxDepth || !fitsChild(c, center, size) {
			break
		}
		if c.ChildrenStart == 0 {
			o.split(cell)
			c = o.cells[cell]
		}
		cell = c.ChildrenStart + octant(c.Center, center)
	}

	o.cells[cell].objects = append(o.cells[cell].objects, obj)
	o.cellOf[obj] = cell
}

// fitsChild reports whether a box with the given center and size belongs in a child of c.
func fitsChild(c Cell, center, size mgl32.Vec3) bool {
	for i := range 3 {
		if size[i] >= c.HalfSize {
			return false
		}
	}
	return c.Bounds().Contains(center)
}

// octant returns x | y<<1 | z<<2 where each bit is set when the point lies strictly above the cell center on that axis.
func octant(cellCenter, p mgl32.Vec3) int {
	idx := 0
	for axis := range 3 {
		if p[axis] > cellCenter[axis] {
			idx |= 1 << axis
		}
	}
	return idx
}

func (o *octree) split(cell int) {
	parent := o.cells[cell]
	quarter := parent.HalfSize / 2
	start := len(o.cells)

	for i := range 8 {
		offset := mgl32.Vec3{}
		for axis := range 3 {
			bit := float32((i >> axis) & 1)
			offset[axis] = quarter * (2*bit - 1)
		}
		o.cells = append(o.cells, Cell{
			Center:   parent.Center.Add(offset),
			HalfSize: quarter,
		})
	}
	o.cells[cell].ChildrenStart = start
}

func (o *octree) EraseObject(obj Object) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.eraseLocked(obj)
}

func (o *octree) eraseLocked(obj Object) bool {
	cell, ok := o.cellOf[obj]
	if !ok {
		return false
	}
	objects := o.cells[cell].objects
	for i, other := range objects {
		if other == obj {
			o.cells[cell].objects = append(objects[:i], objects[i+1:]...)
			break
		}
	}
	delete(o.cellOf, obj)
	return true
}

func (o *octree) UpdateObject(obj Object) {
	box := obj.WorldBoundingBox()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.eraseLocked(obj)
	o.insertLocked(obj, box)
}

func (o *octree) IntersectFrustum(f common.Frustum, result []Object) []Object {
	o.mu.RLock()
	candidates := o.collect(func(c Cell) bool {
		return f.IntersectBox(c.LooseBounds()) != common.Outside
	})
	o.mu.RUnlock()

	for _, obj := range candidates {
		if f.IntersectBox(obj.WorldBoundingBox()) != common.Outside {
			result = append(result, obj)
		}
	}
	return result
}

func (o *octree) IntersectRay(r common.Ray, result []Object) []Object {
	o.mu.RLock()
	candidates := o.collect(func(c Cell) bool {
		_, hit := r.IntersectBox(c.LooseBounds())
		return hit
	})
	o.mu.RUnlock()

	for _, obj := range candidates {
		if _, hit := r.IntersectBox(obj.WorldBoundingBox()); hit {
			result = append(result, obj)
		}
	}
	return result
}

// collect gathers the objects of every cell reachable through cells accepted by visit. The root is always visited.
// Object bounds are tested by the caller after the lock is released.
func (o *octree) collect(visit func(Cell) bool) []Object {
	var out []Object
	var walk func(cell int)
	walk = func(cell int) {
		c := o.cells[cell]
		out = append(out, c.objects...)
		if c.ChildrenStart == 0 {
			return
		}
		for i := range 8 {
			child := c.ChildrenStart + i
			if visit(o.cells[child]) {
				walk(child)
			}
		}
	}
	walk(0)
	return out
}

func (o *octree) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.cellOf)
}

func (o *octree) CellCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.cells)
}

func (o *octree) CellOf(obj Object) (int, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	cell, ok := o.cellOf[obj]
	return cell, ok
}

func (o *octree) Cell(i int) Cell {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c := o.cells[i]
	c.objects = nil
	return c
}

func (o *octree) CellObjects(i int) []Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Object(nil), o.cells[i].objects...)
}

func (o *octree) Contains(obj Object) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.cellOf[obj]
	return ok
}

func (o *octree) MaxDepth() int {
	return o.maxDepth
}
