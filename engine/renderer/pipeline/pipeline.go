package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

// Default shader entry points emitted by pipeline code generation.
const (
	DefaultVertexEntryPoint   = "vs_main"
	DefaultFragmentEntryPoint = "fs_main"
)

// ErrIncomplete is returned by Build when the descriptor lacks a vertex shader or a layout.
var ErrIncomplete = errors.New("pipeline descriptor is incomplete")

// pipeline is the implementation of the Pipeline interface.
// It holds everything needed to create a render pipeline against a render pass.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// the following shader references are required before Build; fragmentShader may stay nil for depth-only pipelines.

	vertexShader, fragmentShader rhi.ShaderModule
	vertexEntryPoint             string
	fragmentEntryPoint           string
	layout                       rhi.PipelineLayout
	vertexBuffers                []wgpu.VertexBufferLayout

	// The following properties configure pipeline state and can be toggled/set with the builder options
	// or by pipeline stages during assembly.

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState
}

// Pipeline is a render pipeline descriptor: shader modules, pipeline layout, vertex input and fixed-function
// state. Pipelang fills the shaders, layout and stage state; Build turns the descriptor into an
// rhi.RenderPipeline compatible with a render pass's attachment formats.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// VertexShader returns the vertex shader module, or nil if not set.
	VertexShader() rhi.ShaderModule

	// FragmentShader returns the fragment shader module, or nil for depth-only pipelines.
	FragmentShader() rhi.ShaderModule

	// Layout returns the pipeline layout, or nil if not set.
	Layout() rhi.PipelineLayout

	// VertexBuffers returns the vertex buffer layouts in slot order.
	VertexBuffers() []wgpu.VertexBufferLayout

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// DepthBias returns the depth bias value configured for this pipeline.
	//
	// Returns:
	//   - int32: the depth bias value for this pipeline
	DepthBias() int32

	// DepthBiasSlopeScale returns the depth bias slope scale configured for this pipeline.
	//
	// Returns:
	//   - float32: the depth bias slope scale for this pipeline
	DepthBiasSlopeScale() float32

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// SetPipelineKey sets the cache key.
	SetPipelineKey(key string)

	// SetShaders sets the vertex and fragment shader modules. A nil fragment module makes the pipeline depth-only.
	//
	// Parameters:
	//   - vs: the vertex shader module
	//   - fs: the fragment shader module, or nil
	SetShaders(vs, fs rhi.ShaderModule)

	// SetLayout sets the pipeline layout.
	SetLayout(layout rhi.PipelineLayout)

	// SetVertexBuffers sets the vertex buffer layouts in slot order.
	SetVertexBuffers(buffers []wgpu.VertexBufferLayout)

	// SetDepthState sets the depth test and write flags.
	//
	// Parameters:
	//   - test: enable the depth test
	//   - write: enable depth writes
	SetDepthState(test, write bool)

	// SetDepthBias sets the constant and slope-scaled depth bias.
	SetDepthBias(bias int32, slopeScale float32)

	// SetCullMode sets the cull mode.
	SetCullMode(mode wgpu.CullMode)

	// SetTopology sets the primitive topology.
	SetTopology(topology wgpu.PrimitiveTopology)

	// WriteMask returns the color write mask applied to every color target.
	WriteMask() wgpu.ColorWriteMask

	// SetWriteMask sets the color write mask. A zero mask keeps a pass's color attachments untouched.
	SetWriteMask(mask wgpu.ColorWriteMask)

	// Build creates the GPU pipeline for a render pass. Color targets follow the pass's color formats and
	// the depth state is emitted only when the pass has a depth attachment.
	//
	// Parameters:
	//   - device: the device creating the pipeline
	//   - pass: the render pass the pipeline must be compatible with
	//
	// Returns:
	//   - rhi.RenderPipeline: the created pipeline
	//   - error: ErrIncomplete (wrapped) if shaders or layout are missing, or the device error
	Build(device rhi.Device, pass rhi.RenderPass) (rhi.RenderPipeline, error)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline descriptor.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline descriptor with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:        pipelineKey,
		vertexEntryPoint:   DefaultVertexEntryPoint,
		fragmentEntryPoint: DefaultFragmentEntryPoint,
		depthTestEnabled:   true,
		depthWriteEnabled:  true,
		blendEnabled:       false,
		cullMode:           wgpu.CullModeNone,
		topology:           wgpu.PrimitiveTopologyTriangleList,
		frontFace:          wgpu.FrontFaceCCW,
		writeMask:          wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) VertexShader() rhi.ShaderModule {
	return p.vertexShader
}

func (p *pipeline) FragmentShader() rhi.ShaderModule {
	return p.fragmentShader
}

func (p *pipeline) Layout() rhi.PipelineLayout {
	return p.layout
}

func (p *pipeline) VertexBuffers() []wgpu.VertexBufferLayout {
	return p.vertexBuffers
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) SetPipelineKey(key string) {
	p.pipelineKey = key
}

func (p *pipeline) SetShaders(vs, fs rhi.ShaderModule) {
	p.vertexShader = vs
	p.fragmentShader = fs
}

func (p *pipeline) SetLayout(layout rhi.PipelineLayout) {
	p.layout = layout
}

func (p *pipeline) SetVertexBuffers(buffers []wgpu.VertexBufferLayout) {
	p.vertexBuffers = buffers
}

func (p *pipeline) SetDepthState(test, write bool) {
	p.depthTestEnabled = test
	p.depthWriteEnabled = write
}

func (p *pipeline) SetDepthBias(bias int32, slopeScale float32) {
	p.depthBias = bias
	p.depthBiasSlopeScale = slopeScale
}

func (p *pipeline) SetCullMode(mode wgpu.CullMode) {
	p.cullMode = mode
}

func (p *pipeline) SetTopology(topology wgpu.PrimitiveTopology) {
	p.topology = topology
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) SetWriteMask(mask wgpu.ColorWriteMask) {
	p.writeMask = mask
}

func (p *pipeline) Build(device rhi.Device, pass rhi.RenderPass) (rhi.RenderPipeline, error) {
	if p.vertexShader == nil || p.layout == nil {
		return nil, fmt.Errorf("pipeline %q: %w", p.pipelineKey, ErrIncomplete)
	}

	var targets []wgpu.ColorTargetState
	if p.fragmentShader != nil {
		for _, format := range pass.ColorFormats() {
			target := wgpu.ColorTargetState{
				Format:    format,
				WriteMask: p.writeMask,
			}
			if p.blendEnabled {
				target.Blend = p.blendState
			}
			targets = append(targets, target)
		}
	}

	desc := &rhi.RenderPipelineDesc{
		Label:              p.pipelineKey + "@" + pass.Label(),
		Layout:             p.layout,
		VertexModule:       p.vertexShader,
		VertexEntryPoint:   p.vertexEntryPoint,
		VertexBuffers:      p.vertexBuffers,
		FragmentModule:     p.fragmentShader,
		FragmentEntryPoint: p.fragmentEntryPoint,
		ColorTargets:       targets,
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
	}

	if depthFormat := pass.DepthFormat(); depthFormat != wgpu.TextureFormatUndefined {
		depthCompare := wgpu.CompareFunctionAlways
		if p.depthTestEnabled {
			depthCompare = wgpu.CompareFunctionLess
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              depthFormat,
			DepthWriteEnabled:   p.depthWriteEnabled,
			DepthCompare:        depthCompare,
			DepthBias:           p.depthBias,
			DepthBiasSlopeScale: p.depthBiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("build pipeline %q: %w", p.pipelineKey, err)
	}
	return created, nil
}
