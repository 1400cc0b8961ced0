package scene

import (
	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/octree"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithOctreeHalfWidth sets the half width of the octree root cell. Objects outside it are kept at the root.
//
// Parameters:
//   - halfWidth: the root half width
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOctreeHalfWidth(halfWidth float32) SceneBuilderOption {
	return func(s *scene) {
		if halfWidth > 0 {
			s.halfWidth = halfWidth
		}
	}
}

// WithOctreeOptions forwards options to the scene octree.
//
// Parameters:
//   - options: octree options such as octree.WithMaxDepth
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOctreeOptions(options ...octree.OctreeBuilderOption) SceneBuilderOption {
	return func(s *scene) {
		s.octreeOpts = append(s.octreeOpts, options...)
	}
}

// NodeBuilderOption is a functional option for configuring a SceneNode created by CreateChildNode.
type NodeBuilderOption func(n *sceneNode)

// WithNodeName names the node instead of the generated "unnamed<N>".
func WithNodeName(name string) NodeBuilderOption {
	return func(n *sceneNode) {
		n.name = name
	}
}

// WithPosition sets the initial translation.
func WithPosition(p mgl32.Vec3) NodeBuilderOption {
	return func(n *sceneNode) {
		n.position = p
	}
}

// WithRotation sets the initial rotation.
func WithRotation(q mgl32.Quat) NodeBuilderOption {
	return func(n *sceneNode) {
		n.rotation = q.Normalize()
	}
}

// WithScale sets the initial scale.
func WithScale(s mgl32.Vec3) NodeBuilderOption {
	return func(n *sceneNode) {
		n.scale = s
	}
}

// WithCamera places a camera at the node.
func WithCamera(c camera.Camera) NodeBuilderOption {
	return func(n *sceneNode) {
		n.camera = c
	}
}

// WithLights places lights at the node.
func WithLights(lights ...light.Light) NodeBuilderOption {
	return func(n *sceneNode) {
		n.lights = append(n.lights, lights...)
	}
}

// WithPrimitives places primitives at the node. The node retains each of them.
func WithPrimitives(prims ...primitive.Primitive) NodeBuilderOption {
	return func(n *sceneNode) {
		n.primitives = append(n.primitives, prims...)
	}
}
