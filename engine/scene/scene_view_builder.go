package scene

// SceneViewBuilderOption is a functional option for configuring a SceneView.
type SceneViewBuilderOption func(v *sceneView)

// WithCullingMode sets the visibility mode. The default is CullingModeFrustum.
//
// Parameters:
//   - mode: the culling mode
//
// Returns:
//   - SceneViewBuilderOption: option function to apply
func WithCullingMode(mode CullingMode) SceneViewBuilderOption {
	return func(v *sceneView) {
		v.mode = mode
	}
}
