package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// OverlayFunc records extra draws into the composite pass after the scene has been composited, e.g. a UI.
type OverlayFunc func(rc rhi.RenderContext)

// postPass is one full-screen material of the post chain: a single triangle covering the target, reading the
// previous targets through the inputs set at index 1 and EngineCommon at index 0.
type postPass struct {
	name     string
	stages   []string
	pipeline rhi.RenderPipeline
}

func newPostPass(name, inputs, fragment string) *postPass {
	return &postPass{
		name:   name,
		stages: []string{engineCommonBlock, inputs, "FullscreenVS", fragment},
	}
}

// build assembles the pipeline against pass. The pipeline stays valid for any pass with the same format.
func (p *postPass) build(device rhi.Device, library pipelang.Library, pass rhi.RenderPass) error {
	desc := pipeline.NewPipeline(pipelang.PipelineKey(p.stages))
	desc.SetDepthState(false, false)
	if err := library.GetPipeline(desc, p.stages); err != nil {
		return fmt.Errorf("post pass %s: %w", p.name, err)
	}
	built, err := desc.Build(device, pass)
	if err != nil {
		return fmt.Errorf("post pass %s: %w", p.name, err)
	}
	if p.pipeline != nil {
		p.pipeline.Release()
	}
	p.pipeline = built
	return nil
}

// record draws the full-screen triangle into rc.
func (p *postPass) record(rc rhi.RenderContext, common, inputs rhi.BindGroup) {
	rc.BindRenderPipeline(p.pipeline)
	rc.BindBindGroup(0, common)
	rc.BindBindGroup(1, inputs)
	rc.Draw(3, 1, 0, 0)
}

func (p *postPass) release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}
