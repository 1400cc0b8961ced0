// Package primitive pairs a shape with a material and tracks its lifetime in a generational arena.
package primitive

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/shape"
)

// ID identifies a primitive for its whole lifetime. The low 32 bits are the arena slot and the high 32 bits
// the slot generation, so an ID is never live again once its primitive is destroyed.
type ID uint64

// Slot returns the arena slot of the ID.
func (id ID) Slot() uint32 {
	return uint32(id)
}

// Generation returns the slot generation of the ID.
func (id ID) Generation() uint32 {
	return uint32(id >> 32)
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Slot(), id.Generation())
}

func makeID(slot, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(slot))
}

type primitive struct {
	id       ID
	shape    shape.Shape
	material material.Material
	refs     atomic.Int32
	registry *Registry
}

// Primitive is the unit a renderer draws: one shape with one material.
// Primitives are shared by reference counting. The creator holds the first reference.
type Primitive interface {
	// ID returns the stable identifier.
	//
	// Returns:
	//   - ID: the identifier
	ID() ID

	// Shape returns the geometry.
	//
	// Returns:
	//   - shape.Shape: the shape
	Shape() shape.Shape

	// Material returns the material.
	//
	// Returns:
	//   - material.Material: the material
	Material() material.Material

	// BoundingBox returns the local-space bounds of the shape.
	BoundingBox() common.BoundingBox

	// Retain adds a reference.
	Retain()

	// Release drops a reference. The last release destroys the primitive: it stops being alive in its registry
	// and its shape GPU buffers are freed. Materials are owned by their creator and are left untouched.
	Release()

	// RefCount returns the current reference count.
	RefCount() int

	// Alive reports whether the primitive has not been destroyed.
	Alive() bool
}

var _ Primitive = &primitive{}

func (p *primitive) ID() ID {
	return p.id
}

func (p *primitive) Shape() shape.Shape {
	return p.shape
}

func (p *primitive) Material() material.Material {
	return p.material
}

func (p *primitive) BoundingBox() common.BoundingBox {
	return p.shape.BoundingBox()
}

func (p *primitive) Retain() {
	p.refs.Add(1)
}

func (p *primitive) Release() {
	switch n := p.refs.Add(-1); {
	case n == 0:
		p.registry.destroy(p)
		p.shape.Release()
	case n < 0:
		panic(fmt.Sprintf("primitive: %s released more often than retained", p.id))
	}
}

func (p *primitive) RefCount() int {
	return int(p.refs.Load())
}

func (p *primitive) Alive() bool {
	return p.registry.Alive(p.id)
}
