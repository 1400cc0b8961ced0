package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/scene"
)

// RenderPipelineKind identifies a frame conductor implementation.
type RenderPipelineKind int

const (
	// RenderPipelineKindMega selects the MegaPipeline: gbuffer, shadow, voxelization and the post chain.
	RenderPipelineKindMega RenderPipelineKind = iota

	// RenderPipelineKindDeferred names the plain deferred conductor, which is not implemented.
	RenderPipelineKindDeferred
)

func (k RenderPipelineKind) String() string {
	switch k {
	case RenderPipelineKindMega:
		return "mega"
	case RenderPipelineKindDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("RenderPipelineKind(%d)", int(k))
	}
}

// State is the lifecycle state of a render pipeline.
type State int

const (
	// StateUninitialized is the state before construction finished.
	StateUninitialized State = iota
	// StateInitialized means every resource exists and no frame was rendered yet.
	StateInitialized
	// StateRendering means at least one frame was rendered.
	StateRendering
	// StateResizing is held while the size-dependent targets are recreated.
	StateResizing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRendering:
		return "rendering"
	case StateResizing:
		return "resizing"
	default:
		return "unknown"
	}
}

// Stats describes the last rendered frame.
type Stats struct {
	// Frame counts the frames rendered, skipped frames excluded.
	Frame uint64
	// SkippedFrames counts frames skipped because no swapchain image could be acquired.
	SkippedFrames uint64
	// Passes lists the recorded passes in order.
	Passes []string
	// Draws holds the draw count of every pass.
	Draws map[string]int
	// VisiblePrimitives is the primitive count of the main view after culling.
	VisiblePrimitives int
	// LightsDropped counts lights dropped by the per-type cap.
	LightsDropped int
}

// RenderPipeline conducts the frame of one swapchain.
type RenderPipeline interface {
	// State returns the lifecycle state.
	State() State

	// SetSceneView sets the views rendered from. A nil shadow or voxel view falls back to the main view.
	// The pipeline owns the wrappers: replacing a view releases the previous one.
	//
	// Parameters:
	//   - view: the main camera view
	//   - shadowView: the view the shadow map is rendered from, or nil
	//   - voxelView: the view the voxel volume is built from, or nil
	SetSceneView(view, shadowView, voxelView scene.SceneView)

	// Render records and presents one frame. It is a no-op without a view. When no swapchain image can be
	// acquired the frame is skipped and nil is returned.
	//
	// Returns:
	//   - error: an error if recording or submission fails
	Render() error

	// Resize resizes the swapchain and recreates every size-dependent target, also when the size is unchanged.
	// No GPU work referencing the old targets may be in flight.
	//
	// Returns:
	//   - error: an error if a target cannot be recreated
	Resize() error

	// Stats returns the statistics of the last frame.
	Stats() Stats

	// Release frees every resource, including the owned views.
	Release()
}

// CreateRenderPipeline creates the frame conductor of the given kind.
//
// Parameters:
//   - bctx: the initialized bootstrap context
//   - swapchain: the swapchain to present to
//   - kind: the conductor kind
//   - options: functional options for the MegaPipeline
//
// Returns:
//   - RenderPipeline: the conductor
//   - error: ErrUnsupported for kinds other than RenderPipelineKindMega, or a construction error
func CreateRenderPipeline(bctx bootstrap.Context, swapchain rhi.SwapChain, kind RenderPipelineKind, options ...MegaPipelineBuilderOption) (RenderPipeline, error) {
	switch kind {
	case RenderPipelineKindMega:
		return NewMegaPipeline(bctx, swapchain, options...)
	default:
		return nil, fmt.Errorf("render pipeline %s: %w", kind, ErrUnsupported)
	}
}
