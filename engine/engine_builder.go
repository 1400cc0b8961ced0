package engine

import (
	"time"

	"github.com/Carmen-Shannon/foreground/engine/profiler"
	"github.com/Carmen-Shannon/foreground/engine/renderer"
)

// GameBuilderOption is a functional option for configuring a Game.
// Use the With* functions to create options that are applied directly to the game instance.
type GameBuilderOption func(*game)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - GameBuilderOption: option function to apply
func WithProfiling(enabled bool) GameBuilderOption {
	return func(g *game) {
		g.profilingEnabled.Store(enabled)
	}
}

// WithProfiler replaces the default profiler.
func WithProfiler(p *profiler.Profiler) GameBuilderOption {
	return func(g *game) {
		if p != nil {
			g.profiler = p
		}
	}
}

// WithTickRate sets the logic tick rate in ticks per second.
// Values <= 0 will be treated as the default (DefaultTickRate).
//
// Parameters:
//   - hz: target ticks per second
//
// Returns:
//   - GameBuilderOption: option function to apply
func WithTickRate(hz float64) GameBuilderOption {
	return func(g *game) {
		g.tickInterval.Store(int64(tickInterval(hz)))
	}
}

// WithTickInterval sets the time between logic ticks directly.
func WithTickInterval(d time.Duration) GameBuilderOption {
	return func(g *game) {
		if d > 0 {
			g.tickInterval.Store(int64(d))
		}
	}
}

// WithRenderPipeline sets the pipeline rendered each frame.
//
// Parameters:
//   - p: the render pipeline
//
// Returns:
//   - GameBuilderOption: option function to apply
func WithRenderPipeline(p renderer.RenderPipeline) GameBuilderOption {
	return func(g *game) {
		g.pipeline = p
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - GameBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) GameBuilderOption {
	return func(g *game) {
		if fps <= 0 {
			g.renderFrameLimit = 0
			return
		}
		g.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
