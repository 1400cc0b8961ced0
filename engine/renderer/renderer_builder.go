package renderer

import (
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// RendererBuilderOption is a functional option applied to a per-primitive renderer during construction.
type RendererBuilderOption func(*primitiveRenderer)

// WithFallbackTexture sets the texture view bound in place of material images that are missing or fail to decode.
//
// Parameters:
//   - view: typically a 1x1 white texture
//
// Returns:
//   - RendererBuilderOption: a function that applies the fallback texture option to a renderer
func WithFallbackTexture(view rhi.TextureView) RendererBuilderOption {
	return func(r *primitiveRenderer) {
		r.fallback = view
	}
}

// WithRendererName overrides the renderer's label, which prefixes its log lines and descriptor set labels.
//
// Parameters:
//   - name: the label
//
// Returns:
//   - RendererBuilderOption: a function that applies the name option to a renderer
func WithRendererName(name string) RendererBuilderOption {
	return func(r *primitiveRenderer) {
		if name != "" {
			r.name = name
		}
	}
}
