package scene

import (
	"slices"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/octree"
)

// DefaultOctreeHalfWidth is the half width of the octree root cell when no option overrides it.
const DefaultOctreeHalfWidth = 100

// Scene owns a tree of SceneNodes rooted at a single root node and the octree indexing their world bounds.
// Scenes can be swapped via the Active flag to switch between levels.
// A Scene is not safe for concurrent use. The octree alone is.
type Scene interface {
	// Name returns the scene name.
	Name() string

	// SetName renames the scene.
	SetName(name string)

	// Active reports whether the scene is rendered.
	Active() bool

	// SetActive sets whether the scene is rendered.
	SetActive(active bool)

	// RootNode returns the root of the node tree.
	RootNode() SceneNode

	// Octree returns the spatial index over the scene's nodes.
	Octree() octree.Octree

	// UpdateAccelStructure forces every stale world transform and re-registers the affected nodes in the octree.
	// It returns immediately when nothing changed since the last call.
	UpdateAccelStructure()

	// Walk visits every node depth-first, parents before children, children in insertion order.
	//
	// Parameters:
	//   - fn: called per node; returning false stops the walk
	Walk(fn func(SceneNode) bool)

	// FindNode returns the first node named name in depth-first order.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - SceneNode: the node, or nil
	FindNode(name string) SceneNode

	// NodeCount returns the number of nodes, including the root.
	NodeCount() int

	// CollectLights resets list and fills it with every light in the scene in depth-first order, placed at the
	// world transform of its node.
	//
	// Parameters:
	//   - list: the destination list
	CollectLights(list *light.List)

	// Pick returns the node with primitives whose world box is hit first by r.
	//
	// Parameters:
	//   - r: the ray
	//
	// Returns:
	//   - SceneNode: the nearest node, or nil
	//   - float32: the hit distance along the ray
	Pick(r common.Ray) (SceneNode, float32)

	// Clear removes every child of the root.
	//
	// Returns:
	//   - error: ErrNodePinned if a pinned node blocks the removal; unpinned siblings are still removed
	Clear() error
}

type scene struct {
	name   string
	active bool
	root   *sceneNode
	octree octree.Octree

	halfWidth   float32
	octreeOpts  []octree.OctreeBuilderOption
	pending     bool
	orderDirty  bool
	nodeCount   int
	queryBuffer []octree.Object
}

var _ Scene = &scene{}

// NewScene creates a scene with an empty root node and its octree.
//
// Parameters:
//   - name: the scene name
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		name:      name,
		active:    true,
		halfWidth: DefaultOctreeHalfWidth,
	}
	for _, opt := range options {
		opt(s)
	}
	s.octree = octree.NewOctree(s.halfWidth, s.octreeOpts...)
	s.root = newSceneNode(s, nil, WithNodeName("root"))
	s.register(s.root)
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) SetName(name string) {
	s.name = name
}

func (s *scene) Active() bool {
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.active = active
}

func (s *scene) RootNode() SceneNode {
	return s.root
}

func (s *scene) Octree() octree.Octree {
	return s.octree
}

// register computes the world transform of a new node and indexes it.
func (s *scene) register(n *sceneNode) {
	n.WorldTransform()
	n.inOctree = true
	s.octree.InsertObject(n)
	s.nodeCount++
	s.orderDirty = true
}

func (s *scene) unregister(n *sceneNode) {
	if n.inOctree {
		s.octree.EraseObject(n)
		n.inOctree = false
		s.nodeCount--
	}
	s.orderDirty = true
}

func (s *scene) UpdateAccelStructure() {
	if !s.pending {
		return
	}
	s.pending = false
	s.root.walk(func(n *sceneNode) {
		if n.worldDirty {
			n.WorldTransform()
			return
		}
		if n.reindex {
			n.reindex = false
			s.octree.UpdateObject(n)
		}
	})
}

func (s *scene) Walk(fn func(SceneNode) bool) {
	s.root.walkUntil(func(n *sceneNode) bool {
		return fn(n)
	})
}

func (s *scene) FindNode(name string) SceneNode {
	if s.root.name == name {
		return s.root
	}
	return s.root.FindChild(name)
}

func (s *scene) NodeCount() int {
	return s.nodeCount
}

func (s *scene) CollectLights(list *light.List) {
	list.Reset()
	s.root.walk(func(n *sceneNode) {
		if len(n.lights) == 0 {
			return
		}
		world := n.WorldTransform()
		for _, l := range n.lights {
			list.Add(l, world)
		}
	})
}

func (s *scene) Pick(r common.Ray) (SceneNode, float32) {
	s.UpdateAccelStructure()
	s.queryBuffer = s.octree.IntersectRay(r, s.queryBuffer[:0])

	var (
		best *sceneNode
		dist float32
	)
	for _, o := range s.queryBuffer {
		n := o.(*sceneNode)
		if len(n.primitives) == 0 {
			continue
		}
		t, ok := r.IntersectBox(n.WorldBoundingBox())
		if ok && (best == nil || t < dist) {
			best, dist = n, t
		}
	}
	clear(s.queryBuffer)
	if best == nil {
		return nil, 0
	}
	return best, dist
}

func (s *scene) Clear() error {
	var firstErr error
	for _, c := range slices.Clone(s.root.children) {
		if err := s.root.RemoveChildNode(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// renumber assigns depth-first order indices when the tree shape changed.
func (s *scene) renumber() {
	if !s.orderDirty {
		return
	}
	i := 0
	s.root.walk(func(n *sceneNode) {
		n.order = i
		i++
	})
	s.orderDirty = false
}
