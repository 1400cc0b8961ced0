package scene

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/octree"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrNodePinned is returned when removing a node that is pinned by a SceneView, or whose subtree holds one.
	ErrNodePinned = errors.New("scene: node is pinned")

	// ErrNotChild is returned when removing a node that is not a direct child.
	ErrNotChild = errors.New("scene: node is not a child")
)

var unnamedNodes atomic.Uint64

type sceneNode struct {
	name     string
	scene    *scene
	parent   *sceneNode
	children []*sceneNode

	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3

	world      mgl32.Mat4
	worldDirty bool

	bounds      common.BoundingBox
	boundsDirty bool

	// reindex is set when the octree entry is stale while the world transform is not.
	reindex  bool
	inOctree bool
	order    int
	pins     int

	primitives []primitive.Primitive
	lights     []light.Light
	camera     camera.Camera
}

// SceneNode is a node of the scene graph: a local transform, the primitives, lights and camera placed by it,
// and the children it owns. World transforms are computed lazily and cached until a mutation on the path from
// the root invalidates them.
//
// A SceneNode is not safe for concurrent use. Callers serialize scene mutation against rendering.
type SceneNode interface {
	camera.Mover
	octree.Object

	// Name returns the node name.
	Name() string

	// SetName renames the node.
	SetName(name string)

	// Scene returns the scene owning the node.
	Scene() Scene

	// Parent returns the parent node, or nil for the root.
	Parent() SceneNode

	// Children returns the owned children in insertion order.
	Children() []SceneNode

	// CreateChildNode creates a child, registers it in the scene octree and returns it.
	//
	// Parameters:
	//   - options: functional options for the initial name, transform and components
	//
	// Returns:
	//   - SceneNode: the new child
	CreateChildNode(options ...NodeBuilderOption) SceneNode

	// RemoveChildNode evicts child and its subtree from the octree, drops their primitive references and detaches
	// them. The subtree must not be pinned.
	//
	// Parameters:
	//   - child: a direct child of this node
	//
	// Returns:
	//   - error: ErrNotChild or ErrNodePinned
	RemoveChildNode(child SceneNode) error

	// FindChild returns the first node named name in the subtree below this node, depth-first.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - SceneNode: the node, or nil if none matches
	FindChild(name string) SceneNode

	// Primitives returns the primitives placed by the node.
	Primitives() []primitive.Primitive

	// AddPrimitive retains p and places it at the node.
	//
	// Parameters:
	//   - p: the primitive
	AddPrimitive(p primitive.Primitive)

	// RemovePrimitive releases p and removes it from the node.
	//
	// Parameters:
	//   - p: the primitive
	//
	// Returns:
	//   - bool: false if the node did not hold p
	RemovePrimitive(p primitive.Primitive) bool

	// Lights returns the lights placed by the node.
	Lights() []light.Light

	// AddLight places l at the node.
	AddLight(l light.Light)

	// RemoveLight removes l from the node.
	//
	// Returns:
	//   - bool: false if the node did not hold l
	RemoveLight(l light.Light) bool

	// Camera returns the camera placed by the node, or nil.
	Camera() camera.Camera

	// SetCamera places c at the node. A nil camera removes it.
	SetCamera(c camera.Camera)

	// Pin marks the node as referenced by a view. Pinned nodes cannot be removed.
	Pin()

	// Unpin drops one pin.
	Unpin()

	// Pinned reports whether the node holds at least one pin.
	Pinned() bool

	// BoundingBox returns the merged local bounds of the primitives, or a point box at the origin for a node
	// without primitives.
	BoundingBox() common.BoundingBox

	// Position returns the translation relative to the parent.
	Position() mgl32.Vec3

	// Rotation returns the rotation relative to the parent.
	Rotation() mgl32.Quat

	// Scale returns the scale relative to the parent.
	Scale() mgl32.Vec3

	// Direction returns the forward (-Z) axis in parent space.
	Direction() mgl32.Vec3

	// LocalTransform returns the transform relative to the parent.
	LocalTransform() mgl32.Mat4

	// WorldTransform returns the cached world transform, recomputing it and re-registering the node in the
	// octree when a mutation invalidated it.
	WorldTransform() mgl32.Mat4

	// WorldPosition returns the translation of the world transform.
	WorldPosition() mgl32.Vec3

	// WorldScale returns the scale of the world transform.
	WorldScale() mgl32.Vec3

	// WorldDirection returns the forward (-Z) axis in world space.
	WorldDirection() mgl32.Vec3

	// SetPosition sets the translation relative to the parent.
	SetPosition(p mgl32.Vec3)

	// SetRotation sets the rotation relative to the parent.
	SetRotation(q mgl32.Quat)

	// SetDirection rotates the node so its forward axis points along dir in parent space, keeping +Y up.
	SetDirection(dir mgl32.Vec3)

	// SetScale sets the scale relative to the parent.
	SetScale(s mgl32.Vec3)

	// SetUniformScale sets the same scale on every axis.
	SetUniformScale(s float32)

	// SetTransform sets translation, rotation and scale at once.
	SetTransform(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3)

	// SetTransformMatrix decomposes m into the local translation, rotation and scale. Shear is lost.
	SetTransformMatrix(m mgl32.Mat4)

	// SetWorldPosition places the node at p in world space.
	SetWorldPosition(p mgl32.Vec3)

	// SetWorldRotation sets the world-space rotation.
	SetWorldRotation(q mgl32.Quat)

	// SetWorldDirection points the forward axis along dir in world space.
	SetWorldDirection(dir mgl32.Vec3)

	// SetWorldScale sets the world-space scale, assuming the parent chain carries no rotation-induced shear.
	SetWorldScale(s mgl32.Vec3)

	// SetWorldTransform sets the local transform so that the world transform equals m.
	SetWorldTransform(m mgl32.Mat4)

	// RotateAround orbits the node about an axis through point. Point and axis are expressed in space.
	//
	// Parameters:
	//   - point: a point on the rotation axis
	//   - axis: the rotation axis
	//   - angle: the angle in radians
	//   - space: the space point and axis are given in
	RotateAround(point, axis mgl32.Vec3, angle float32, space common.TransformSpace)

	// Pitch rotates about the X axis of space.
	Pitch(angle float32, space common.TransformSpace)

	// Yaw rotates about the Y axis of space.
	Yaw(angle float32, space common.TransformSpace)

	// Roll rotates about the Z axis of space.
	Roll(angle float32, space common.TransformSpace)

	// LookAt turns the forward axis toward target with up as the reference up vector, both expressed in space.
	//
	// Returns:
	//   - bool: false if target coincides with the node or the direction is parallel to up; nothing changes then
	LookAt(target, up mgl32.Vec3, space common.TransformSpace) bool

	// ScaleBy multiplies the local scale component-wise.
	ScaleBy(factor mgl32.Vec3)
}

var _ SceneNode = &sceneNode{}

func newSceneNode(s *scene, parent *sceneNode, options ...NodeBuilderOption) *sceneNode {
	n := &sceneNode{
		scene:       s,
		parent:      parent,
		rotation:    mgl32.QuatIdent(),
		scale:       common.One,
		world:       mgl32.Ident4(),
		worldDirty:  true,
		boundsDirty: true,
	}
	for _, opt := range options {
		opt(n)
	}
	if n.name == "" {
		n.name = fmt.Sprintf("unnamed%d", unnamedNodes.Add(1)-1)
	}
	return n
}

func (n *sceneNode) Name() string {
	return n.name
}

func (n *sceneNode) SetName(name string) {
	n.name = name
}

func (n *sceneNode) Scene() Scene {
	if n.scene == nil {
		return nil
	}
	return n.scene
}

func (n *sceneNode) Parent() SceneNode {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *sceneNode) Children() []SceneNode {
	out := make([]SceneNode, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *sceneNode) CreateChildNode(options ...NodeBuilderOption) SceneNode {
	child := newSceneNode(n.scene, n, options...)
	n.children = append(n.children, child)
	for _, p := range child.primitives {
		p.Retain()
	}
	if n.scene != nil {
		n.scene.register(child)
	}
	return child
}

func (n *sceneNode) RemoveChildNode(child SceneNode) error {
	c, ok := child.(*sceneNode)
	if !ok || c.parent != n {
		return ErrNotChild
	}
	if c.subtreePinned() {
		return fmt.Errorf("remove %q: %w", c.name, ErrNodePinned)
	}
	idx := slices.Index(n.children, c)
	if idx < 0 {
		return ErrNotChild
	}
	n.children = slices.Delete(n.children, idx, idx+1)

	c.walk(func(d *sceneNode) {
		if d.scene != nil {
			d.scene.unregister(d)
		}
		for _, p := range d.primitives {
			p.Release()
		}
		d.primitives = nil
		d.boundsDirty = true
		d.scene = nil
	})
	c.parent = nil
	return nil
}

func (n *sceneNode) FindChild(name string) SceneNode {
	var found *sceneNode
	n.walkUntil(func(d *sceneNode) bool {
		if d != n && d.name == name {
			found = d
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return found
}

// walk visits the subtree depth-first, parents before children, children in insertion order.
func (n *sceneNode) walk(fn func(*sceneNode)) {
	n.walkUntil(func(d *sceneNode) bool {
		fn(d)
		return true
	})
}

func (n *sceneNode) walkUntil(fn func(*sceneNode) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.walkUntil(fn) {
			return false
		}
	}
	return true
}

func (n *sceneNode) subtreePinned() bool {
	pinned := false
	n.walkUntil(func(d *sceneNode) bool {
		pinned = d.pins > 0
		return !pinned
	})
	return pinned
}

func (n *sceneNode) Primitives() []primitive.Primitive {
	return n.primitives
}

func (n *sceneNode) AddPrimitive(p primitive.Primitive) {
	p.Retain()
	n.primitives = append(n.primitives, p)
	n.boundsChanged()
}

func (n *sceneNode) RemovePrimitive(p primitive.Primitive) bool {
	idx := slices.Index(n.primitives, p)
	if idx < 0 {
		return false
	}
	n.primitives = slices.Delete(n.primitives, idx, idx+1)
	p.Release()
	n.boundsChanged()
	return true
}

func (n *sceneNode) Lights() []light.Light {
	return n.lights
}

func (n *sceneNode) AddLight(l light.Light) {
	n.lights = append(n.lights, l)
}

func (n *sceneNode) RemoveLight(l light.Light) bool {
	idx := slices.Index(n.lights, l)
	if idx < 0 {
		return false
	}
	n.lights = slices.Delete(n.lights, idx, idx+1)
	return true
}

func (n *sceneNode) Camera() camera.Camera {
	return n.camera
}

func (n *sceneNode) SetCamera(c camera.Camera) {
	n.camera = c
}

func (n *sceneNode) Pin() {
	n.pins++
}

func (n *sceneNode) Unpin() {
	if n.pins > 0 {
		n.pins--
	}
}

func (n *sceneNode) Pinned() bool {
	return n.pins > 0
}

func (n *sceneNode) BoundingBox() common.BoundingBox {
	if n.boundsDirty {
		if len(n.primitives) == 0 {
			n.bounds = common.PointBox(mgl32.Vec3{})
		} else {
			b := n.primitives[0].BoundingBox()
			for _, p := range n.primitives[1:] {
				b = b.Merge(p.BoundingBox())
			}
			n.bounds = b
		}
		n.boundsDirty = false
	}
	return n.bounds
}

func (n *sceneNode) WorldBoundingBox() common.BoundingBox {
	return n.BoundingBox().Transformed(n.WorldTransform())
}

// boundsChanged invalidates the local box and schedules an octree refresh.
func (n *sceneNode) boundsChanged() {
	n.boundsDirty = true
	n.reindex = true
	if n.scene != nil {
		n.scene.pending = true
	}
}
