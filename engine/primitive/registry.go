package primitive

import (
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/shape"
)

type slot struct {
	generation uint32
	prim       *primitive
}

// Registry is the liveness table of primitives. Renderers garbage-collect their per-primitive caches against it.
// All methods are safe for concurrent use.
type Registry struct {
	mu    *sync.Mutex
	slots []slot
	free  []uint32
	live  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{mu: &sync.Mutex{}}
}

// Create registers a new primitive holding one reference owned by the caller.
//
// Parameters:
//   - s: the geometry
//   - m: the material
//
// Returns:
//   - Primitive: the live primitive
func (r *Registry) Create(s shape.Shape, m material.Material) Primitive {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}
	p := &primitive{
		id:       makeID(idx, r.slots[idx].generation),
		shape:    s,
		material: m,
		registry: r,
	}
	p.refs.Store(1)
	r.slots[idx].prim = p
	r.live++
	return p
}

// Alive reports whether id names a primitive that has not been destroyed.
//
// Parameters:
//   - id: the primitive ID
//
// Returns:
//   - bool: true if the primitive is alive
func (r *Registry) Alive(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(id) != nil
}

// Get returns the live primitive for id.
//
// Parameters:
//   - id: the primitive ID
//
// Returns:
//   - Primitive: the primitive
//   - bool: false if the ID is not alive
func (r *Registry) Get(id ID) (Primitive, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.lookup(id); p != nil {
		return p, true
	}
	return nil, false
}

// Len returns the number of live primitives.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *Registry) lookup(id ID) *primitive {
	idx := id.Slot()
	if int(idx) >= len(r.slots) {
		return nil
	}
	s := r.slots[idx]
	if s.prim == nil || s.generation != id.Generation() {
		return nil
	}
	return s.prim
}

func (r *Registry) destroy(p *primitive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookup(p.id) != p {
		return
	}
	idx := p.id.Slot()
	r.slots[idx].prim = nil
	r.slots[idx].generation++
	r.free = append(r.free, idx)
	r.live--
}
