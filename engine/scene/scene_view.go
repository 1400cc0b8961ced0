package scene

import (
	"errors"
	"slices"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/Carmen-Shannon/foreground/engine/octree"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoCamera is returned when a SceneView is created for a node without a camera.
var ErrNoCamera = errors.New("scene: node has no camera")

// CullingMode selects how a SceneView determines visibility.
type CullingMode int

const (
	// CullingModeFrustum queries the scene octree with the camera frustum.
	CullingModeFrustum CullingMode = iota
	// CullingModeNone treats every node as visible.
	CullingModeNone
)

func (m CullingMode) String() string {
	switch m {
	case CullingModeFrustum:
		return "frustum"
	case CullingModeNone:
		return "none"
	default:
		return "unknown"
	}
}

// SceneView renders a scene through the camera of a pinned node. It caches the view matrices and the visible
// primitives of one frame.
type SceneView interface {
	// Node returns the camera node.
	Node() SceneNode

	// Camera returns the camera of the node.
	Camera() camera.Camera

	// CullingMode returns the visibility mode.
	CullingMode() CullingMode

	// SetCullingMode changes the visibility mode from the next PrepareToRender.
	SetCullingMode(mode CullingMode)

	// PrepareToRender caches the view matrices and fills the visible lists in depth-first order.
	PrepareToRender()

	// FrameFinished clears the visible lists, keeping their capacity.
	FrameFinished()

	// Release unpins the node. The view must not be used afterwards.
	Release()

	// View returns the world-to-view matrix.
	View() mgl32.Mat4

	// Projection returns the projection matrix.
	Projection() mgl32.Mat4

	// InvProjection returns the inverse projection matrix.
	InvProjection() mgl32.Mat4

	// ViewProjection returns Projection * View.
	ViewProjection() mgl32.Mat4

	// CameraPosition returns the camera's world position.
	CameraPosition() mgl32.Vec3

	// Frustum returns the world-space frustum of the last PrepareToRender.
	Frustum() common.Frustum

	// VisibleNodes returns the nodes found visible.
	VisibleNodes() []SceneNode

	// VisibleModelMatrices returns one world matrix per visible primitive, parallel to VisiblePrimitives.
	VisibleModelMatrices() []mgl32.Mat4

	// VisiblePrimitives returns the primitives of the visible nodes.
	VisiblePrimitives() []primitive.Primitive
}

type sceneView struct {
	node     *sceneNode
	cam      camera.Camera
	mode     CullingMode
	released bool

	view, proj, invProj, viewProj mgl32.Mat4
	position                      mgl32.Vec3
	frustum                       common.Frustum

	query      []octree.Object
	nodes      []SceneNode
	matrices   []mgl32.Mat4
	primitives []primitive.Primitive
}

var _ SceneView = &sceneView{}

// NewSceneView creates a view through the camera of node and pins the node.
//
// Parameters:
//   - node: a node holding a camera
//   - options: functional options to configure the view
//
// Returns:
//   - SceneView: the view
//   - error: ErrNoCamera if node has no camera
func NewSceneView(node SceneNode, options ...SceneViewBuilderOption) (SceneView, error) {
	n, ok := node.(*sceneNode)
	if !ok || n.camera == nil {
		return nil, ErrNoCamera
	}
	v := &sceneView{
		node:     n,
		cam:      n.camera,
		mode:     CullingModeFrustum,
		view:     mgl32.Ident4(),
		proj:     mgl32.Ident4(),
		invProj:  mgl32.Ident4(),
		viewProj: mgl32.Ident4(),
	}
	for _, opt := range options {
		opt(v)
	}
	n.Pin()
	return v, nil
}

func (v *sceneView) Node() SceneNode {
	return v.node
}

func (v *sceneView) Camera() camera.Camera {
	return v.cam
}

func (v *sceneView) CullingMode() CullingMode {
	return v.mode
}

func (v *sceneView) SetCullingMode(mode CullingMode) {
	v.mode = mode
}

func (v *sceneView) PrepareToRender() {
	s := v.node.scene
	if s != nil {
		s.UpdateAccelStructure()
	}

	world := v.node.WorldTransform()
	v.view = world.Inv()
	v.proj = v.cam.ProjectionMatrix()
	v.invProj = v.cam.InverseProjectionMatrix()
	v.viewProj = v.proj.Mul4(v.view)
	v.position = mgl32.Vec3{world[12], world[13], world[14]}
	v.frustum = common.ExtractFrustumFromMatrix(v.viewProj)

	if s == nil {
		return
	}
	switch v.mode {
	case CullingModeNone:
		s.root.walk(v.appendNode)
	default:
		v.query = s.octree.IntersectFrustum(v.frustum, v.query[:0])
		s.renumber()
		slices.SortFunc(v.query, func(a, b octree.Object) int {
			return a.(*sceneNode).order - b.(*sceneNode).order
		})
		for _, o := range v.query {
			v.appendNode(o.(*sceneNode))
		}
		clear(v.query)
	}
}

func (v *sceneView) appendNode(n *sceneNode) {
	v.nodes = append(v.nodes, n)
	if len(n.primitives) == 0 {
		return
	}
	world := n.WorldTransform()
	for _, p := range n.primitives {
		v.matrices = append(v.matrices, world)
		v.primitives = append(v.primitives, p)
	}
}

func (v *sceneView) FrameFinished() {
	clear(v.nodes)
	clear(v.primitives)
	v.nodes = v.nodes[:0]
	v.matrices = v.matrices[:0]
	v.primitives = v.primitives[:0]
}

func (v *sceneView) Release() {
	if v.released {
		return
	}
	v.released = true
	v.FrameFinished()
	v.node.Unpin()
}

func (v *sceneView) View() mgl32.Mat4 {
	return v.view
}

func (v *sceneView) Projection() mgl32.Mat4 {
	return v.proj
}

func (v *sceneView) InvProjection() mgl32.Mat4 {
	return v.invProj
}

func (v *sceneView) ViewProjection() mgl32.Mat4 {
	return v.viewProj
}

func (v *sceneView) CameraPosition() mgl32.Vec3 {
	return v.position
}

func (v *sceneView) Frustum() common.Frustum {
	return v.frustum
}

func (v *sceneView) VisibleNodes() []SceneNode {
	return v.nodes
}

func (v *sceneView) VisibleModelMatrices() []mgl32.Mat4 {
	return v.matrices
}

func (v *sceneView) VisiblePrimitives() []primitive.Primitive {
	return v.primitives
}
