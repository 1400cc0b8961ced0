package renderer

import (
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
)

// MegaPipelineBuilderOption is a functional option applied to a MegaPipeline during construction via NewMegaPipeline.
type MegaPipelineBuilderOption func(*megaPipeline)

// WithShadowResolution sets the width and height of the shadow map. Defaults to light.ShadowMapResolution.
//
// Parameters:
//   - resolution: the shadow map size in texels
//
// Returns:
//   - MegaPipelineBuilderOption: a function that applies the shadow resolution option
func WithShadowResolution(resolution uint32) MegaPipelineBuilderOption {
	return func(m *megaPipeline) {
		if resolution > 0 {
			m.shadowResolution = resolution
		}
	}
}

// WithVoxelResolution sets the edge length of the voxel volume. Defaults to DefaultVoxelResolution.
//
// Parameters:
//   - resolution: the volume size in voxels along each axis
//
// Returns:
//   - MegaPipelineBuilderOption: a function that applies the voxel resolution option
func WithVoxelResolution(resolution uint32) MegaPipelineBuilderOption {
	return func(m *megaPipeline) {
		if resolution > 0 {
			m.voxelResolution = resolution
		}
	}
}

// WithShadowHalfExtent sets the half size in world units of the orthographic frustum used for the primary
// directional light when no shadow view is set.
//
// Parameters:
//   - halfExtent: the half extent
//
// Returns:
//   - MegaPipelineBuilderOption: a function that applies the half extent option
func WithShadowHalfExtent(halfExtent float32) MegaPipelineBuilderOption {
	return func(m *megaPipeline) {
		if halfExtent > 0 {
			m.shadowHalfExtent = halfExtent
		}
	}
}

// WithOverlay sets the callback run inside the composite pass.
//
// Parameters:
//   - fn: the overlay callback
//
// Returns:
//   - MegaPipelineBuilderOption: a function that applies the overlay option
func WithOverlay(fn OverlayFunc) MegaPipelineBuilderOption {
	return func(m *megaPipeline) {
		m.overlay = fn
	}
}

// WithLibrary composes from lib instead of the built-in library. lib must be parsed and must define the same
// blocks and stages, e.g. an on-disk copy of pipelang.InternalFS that is watched for edits.
//
// Parameters:
//   - lib: the library
//
// Returns:
//   - MegaPipelineBuilderOption: a function that applies the library option
func WithLibrary(lib pipelang.Library) MegaPipelineBuilderOption {
	return func(m *megaPipeline) {
		m.library = lib
	}
}
