package renderer

import (
	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// NewZOnlyRenderer creates the depth-only renderer of the shadow pass. It binds no material; the view set is
// the ShadowCommon set holding the shadow view-projection.
//
// Parameters:
//   - bctx: the initialized bootstrap context
//   - library: the Internal Pipelang library
//   - pass: a depth-only render pass
//   - options: functional options for the renderer
//
// Returns:
//   - PrimitiveRenderer: the renderer
func NewZOnlyRenderer(bctx bootstrap.Context, library pipelang.Library, pass rhi.RenderPass, options ...RendererBuilderOption) PrimitiveRenderer {
	r := newPrimitiveRenderer("shadow", bctx, library, pass, options...)
	r.compose = func([]string) []string {
		return []string{shadowCommonBlock, standardTriMesh, perPrimitiveBlock, "ZOnlyVS", "ShadowRasterizer"}
	}
	return r
}
