package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// cacheEntry holds what a renderer built for one primitive. The pipeline is shared with every primitive of the
// same composition and topology and is owned by the renderer; the descriptor sets are owned by the entry.
type cacheEntry struct {
	pipeline rhi.RenderPipeline
	attribs  *pipelang.VertexAttribs

	// sets holds one PerPrimitive set per draw of the primitive within a list, so a primitive shared by
	// several nodes never overwrites constants an earlier draw of the same submission reads.
	sets []bind_group_provider.BindGroupProvider
	used int
}

func (e *cacheEntry) release() {
	for _, s := range e.sets {
		s.Release()
	}
	e.sets = nil
}

// primitiveCache maps primitive IDs to their per-renderer resources. Entries of destroyed primitives are
// evicted by garbageCollect.
type primitiveCache struct {
	mu      *sync.Mutex
	entries map[primitive.ID]*cacheEntry
}

func newPrimitiveCache() *primitiveCache {
	return &primitiveCache{
		mu:      &sync.Mutex{},
		entries: make(map[primitive.ID]*cacheEntry),
	}
}

func (c *primitiveCache) get(id primitive.ID) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *primitiveCache) put(id primitive.ID, e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[id]; ok && old != e {
		old.release()
	}
	c.entries[id] = e
}

// resetUse starts a new list: every entry hands out its sets from the first one again.
func (c *primitiveCache) resetUse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.used = 0
	}
}

// garbageCollect releases the entries whose primitive is no longer alive in registry.
//
// Parameters:
//   - registry: the registry the cached IDs were issued by
//
// Returns:
//   - int: the number of evicted entries
func (c *primitiveCache) garbageCollect(registry *primitive.Registry) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for id, e := range c.entries {
		if registry.Alive(id) {
			continue
		}
		e.release()
		delete(c.entries, id)
		evicted++
	}
	return evicted
}

func (c *primitiveCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *primitiveCache) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		e.release()
		delete(c.entries, id)
	}
}
