// Package rhi is the render-hardware-interface boundary between the renderer core and the GPU backend.
// The wgpu enums (formats, usages, load/store ops, pipeline state) are used as plain vocabulary so the
// core never touches backend objects directly. The WebGPU implementation lives in this package, and a
// recording implementation for tests lives in rhi/rhitest.
package rhi

import (
	"errors"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrSurfaceUnavailable is returned by SwapChain.AcquireNextImage when no image can be acquired this frame.
	ErrSurfaceUnavailable = errors.New("rhi: swapchain image unavailable")
	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("rhi: resource already released")
)

// Resource is any GPU object owned by the caller.
type Resource interface {
	// Label returns the debug label given at creation.
	Label() string

	// Release frees the GPU object. Releasing twice is a no-op.
	Release()
}

// Buffer is a linear GPU allocation.
type Buffer interface {
	Resource

	// Size returns the buffer size in bytes.
	Size() uint64
}

// Texture is a 2D or 3D image allocation.
type Texture interface {
	Resource

	// Desc returns the descriptor the texture was created with.
	Desc() TextureDesc

	// CreateView creates a view over the whole texture. A nil descriptor derives the view from the texture.
	//
	// Parameters:
	//   - desc: optional view descriptor
	//
	// Returns:
	//   - TextureView: the created view
	//   - error: an error if the backend rejects the view
	CreateView(desc *TextureViewDesc) (TextureView, error)
}

// TextureView is a typed view into a Texture.
type TextureView interface {
	Resource

	// Texture returns the texture the view was created from.
	Texture() Texture
}

// Sampler, ShaderModule, BindGroupLayout, PipelineLayout, RenderPipeline and BindGroup carry no
// caller-visible state beyond their label.
type (
	Sampler         interface{ Resource }
	ShaderModule    interface{ Resource }
	BindGroupLayout interface{ Resource }
	PipelineLayout  interface{ Resource }
	RenderPipeline  interface{ Resource }
	BindGroup       interface{ Resource }
)

// RenderPass is a reusable description of the attachments a pass renders into.
// Pipelines are built against a pass's formats, so a pipeline stays valid across passes with equal formats.
type RenderPass interface {
	Resource

	// Desc returns the descriptor the pass was created with.
	Desc() RenderPassDesc

	// ColorFormats returns the formats of the color attachments in order.
	ColorFormats() []wgpu.TextureFormat

	// DepthFormat returns the depth attachment format, or wgpu.TextureFormatUndefined for color-only passes.
	DepthFormat() wgpu.TextureFormat
}

// BufferDesc describes a buffer allocation.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

// TextureDesc describes a texture allocation.
type TextureDesc struct {
	Label              string
	Width              uint32
	Height             uint32
	DepthOrArrayLayers uint32
	Dimension          wgpu.TextureDimension
	Format             wgpu.TextureFormat
	Usage              wgpu.TextureUsage
	MipLevelCount      uint32
	SampleCount        uint32
}

// TextureViewDesc overrides the default view of a texture.
type TextureViewDesc struct {
	Label     string
	Dimension wgpu.TextureViewDimension
	Aspect    wgpu.TextureAspect
}

// SamplerDesc describes a sampler. Zero fields in the staging data receive backend defaults.
type SamplerDesc struct {
	Label string
	common.SamplerStagingData
}

// ShaderModuleDesc carries WGSL source for compilation.
type ShaderModuleDesc struct {
	Label string
	Code  string
}

// BindGroupLayoutDesc describes the bindings of one descriptor set. The wgpu entry type is pure data.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []wgpu.BindGroupLayoutEntry
}

// PipelineLayoutDesc lists descriptor-set layouts by set index. Nil entries are unused sets.
type PipelineLayoutDesc struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
}

// BindGroupEntry binds one resource to a binding slot. Exactly one of Buffer, TextureView or Sampler is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDesc describes a descriptor-set instance.
type BindGroupDesc struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// RenderPipelineDesc describes a complete graphics pipeline. FragmentModule may be nil for depth-only pipelines.
type RenderPipelineDesc struct {
	Label              string
	Layout             PipelineLayout
	VertexModule       ShaderModule
	VertexEntryPoint   string
	VertexBuffers      []wgpu.VertexBufferLayout
	FragmentModule     ShaderModule
	FragmentEntryPoint string
	ColorTargets       []wgpu.ColorTargetState
	DepthStencil       *wgpu.DepthStencilState
	Primitive          wgpu.PrimitiveState
	Multisample        wgpu.MultisampleState
}

// Attachment is one render target of a pass.
type Attachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearColor wgpu.Color
	ClearDepth float32
}

// RenderPassDesc describes the attachments and extent of a render pass.
// A nil View on a color attachment means "the current swapchain image".
type RenderPassDesc struct {
	Label            string
	Width            uint32
	Height           uint32
	Layers           uint32
	ColorAttachments []Attachment
	ColorFormats     []wgpu.TextureFormat
	DepthStencil     *Attachment
}

// Device creates GPU resources and command contexts.
type Device interface {
	// CreateBuffer allocates a buffer.
	CreateBuffer(desc *BufferDesc) (Buffer, error)

	// WriteBuffer uploads data at offset into buf through the queue.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CreateTexture allocates a texture.
	CreateTexture(desc *TextureDesc) (Texture, error)

	// WriteTexture uploads a full mip-0 image (all slices) to tex.
	//
	// Parameters:
	//   - tex: destination texture
	//   - data: tightly packed texel data
	//   - bytesPerRow: row pitch of data
	WriteTexture(tex Texture, data []byte, bytesPerRow uint32) error

	// CreateSampler creates a sampler.
	CreateSampler(desc *SamplerDesc) (Sampler, error)

	// CreateShaderModule compiles WGSL into a shader module.
	CreateShaderModule(desc *ShaderModuleDesc) (ShaderModule, error)

	// CreateBindGroupLayout creates a descriptor-set layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayout, error)

	// CreatePipelineLayout creates a pipeline layout.
	CreatePipelineLayout(desc *PipelineLayoutDesc) (PipelineLayout, error)

	// CreateRenderPipeline creates a graphics pipeline.
	CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipeline, error)

	// CreateBindGroup creates a descriptor-set instance.
	CreateBindGroup(desc *BindGroupDesc) (BindGroup, error)

	// CreateRenderPass creates a render pass object from its attachments.
	CreateRenderPass(desc *RenderPassDesc) (RenderPass, error)

	// BeginCommands starts recording a command list for one submission.
	BeginCommands(label string) (CommandContext, error)

	// WaitIdle blocks until all submitted work has finished.
	WaitIdle()

	// Release destroys the device.
	Release()
}

// SwapChain is the presentable image chain of a window surface.
type SwapChain interface {
	// Size returns the current image size in pixels.
	Size() (width, height uint32)

	// Format returns the image format.
	Format() wgpu.TextureFormat

	// AcquireNextImage acquires the image for this frame. It returns ErrSurfaceUnavailable (possibly wrapped)
	// when the frame must be skipped.
	AcquireNextImage() (TextureView, error)

	// Present presents the acquired image.
	Present() error

	// AutoResize reconfigures the chain to the surface's current size.
	//
	// Returns:
	//   - bool: true if the size changed
	AutoResize() bool
}

// CommandContext records passes for a single submission.
type CommandContext interface {
	// BeginRenderPass starts recording into pass. The returned context must be ended before the next pass begins.
	BeginRenderPass(pass RenderPass) (RenderContext, error)

	// ClearTexture zero-fills every slice of tex before the next recorded pass executes.
	ClearTexture(tex Texture) error

	// Submit finishes recording and submits the commands.
	Submit() error

	// Release discards the context without submitting if Submit was not called.
	Release()
}

// RenderContext records draw state and draw calls inside one render pass.
type RenderContext interface {
	// BindRenderPipeline sets the current pipeline.
	BindRenderPipeline(p RenderPipeline)

	// BindBindGroup binds a descriptor set at a set index.
	BindBindGroup(index uint32, bg BindGroup)

	// BindVertexBuffer binds a vertex buffer to a slot.
	BindVertexBuffer(slot uint32, buf Buffer, offset uint64)

	// BindIndexBuffer binds the index buffer.
	BindIndexBuffer(buf Buffer, format wgpu.IndexFormat, offset uint64)

	// Draw issues a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed issues an indexed draw.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// End closes the pass.
	End() error
}

// BytesPerTexel returns the size of one texel for the uncompressed formats the renderer allocates.
// Unknown formats report 4.
func BytesPerTexel(format wgpu.TextureFormat) uint32 {
	switch format {
	case wgpu.TextureFormatR8Unorm, wgpu.TextureFormatR8Uint:
		return 1
	case wgpu.TextureFormatRG8Unorm, wgpu.TextureFormatR16Float:
		return 2
	case wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRG32Float:
		return 8
	case wgpu.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
