package renderer

import (
	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

// NewGBufferRenderer creates the renderer that fills the geometry buffer: albedo and metallic in the first
// color target, the encoded world normal and roughness in the second, plus depth.
//
// Parameters:
//   - bctx: the initialized bootstrap context
//   - library: the Internal Pipelang library
//   - pass: the gbuffer render pass
//   - options: functional options for the renderer
//
// Returns:
//   - PrimitiveRenderer: the renderer
func NewGBufferRenderer(bctx bootstrap.Context, library pipelang.Library, pass rhi.RenderPass, options ...RendererBuilderOption) PrimitiveRenderer {
	r := newPrimitiveRenderer("gbuffer", bctx, library, pass, options...)
	r.usesMaterial = true
	r.compose = func(materialStages []string) []string {
		stages := []string{engineCommonBlock, standardTriMesh, perPrimitiveBlock, "StaticMeshVS"}
		stages = append(stages, materialStages...)
		return append(stages, "GBufferPS")
	}
	r.configure = func(p pipeline.Pipeline) {
		p.SetCullMode(wgpu.CullModeNone)
		p.SetDepthState(true, true)
	}
	return r
}
