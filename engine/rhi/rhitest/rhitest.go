// Package rhitest provides a recording rhi.Device and rhi.SwapChain for tests that exercise the renderer without a GPU.
package rhitest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrInjected is returned by operations failed through a Device or SwapChain hook.
var ErrInjected = errors.New("rhitest: injected failure")

// DrawRecord is one recorded draw call.
type DrawRecord struct {
	Pipeline string
	Indexed  bool
	Count    uint32
	// BindGroups holds the labels bound at each set index when the draw was issued.
	BindGroups map[uint32]string
	// VertexBuffers holds the labels bound at each vertex slot when the draw was issued.
	VertexBuffers map[uint32]string
}

// PassRecord is one recorded render pass.
type PassRecord struct {
	Label string
	Draws []DrawRecord
	// Bound lists every bind group bound during the pass, in bind order.
	Bound []*BindGroup
}

// ReadsTexture reports whether any bind group bound in the pass references a view of the texture with the given label.
func (p PassRecord) ReadsTexture(label string) bool {
	for _, bg := range p.Bound {
		for _, e := range bg.Desc.Entries {
			if e.TextureView != nil && e.TextureView.Texture() != nil && e.TextureView.Texture().Label() == label {
				return true
			}
		}
	}
	return false
}

// Device is a recording rhi.Device. All methods are safe for concurrent use.
type Device struct {
	mu *sync.Mutex

	// SwapchainFormat is reported for color attachments that target the swapchain.
	SwapchainFormat wgpu.TextureFormat

	// FailShader, when set, fails shader module creation for labels it returns true for.
	FailShader func(label string) bool

	passes         []PassRecord
	clears         []string
	submits        int
	shaderModules  int
	pipelines      int
	bindGroups     int
	liveTextures   map[*Texture]struct{}
	writtenBuffers map[string][]byte
}

var _ rhi.Device = &Device{}

// NewDevice creates an empty recording device.
func NewDevice() *Device {
	return &Device{
		mu:              &sync.Mutex{},
		SwapchainFormat: wgpu.TextureFormatBGRA8Unorm,
		liveTextures:    make(map[*Texture]struct{}),
		writtenBuffers:  make(map[string][]byte),
	}
}

// Passes returns the passes recorded by submitted and unsubmitted command contexts, in record order.
func (d *Device) Passes() []PassRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PassRecord(nil), d.passes...)
}

// PassLabels returns the labels of the recorded passes in order.
func (d *Device) PassLabels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.passes))
	for i, p := range d.passes {
		out[i] = p.Label
	}
	return out
}

// Pass returns the last recorded pass with the given label.
func (d *Device) Pass(label string) (PassRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.passes) - 1; i >= 0; i-- {
		if d.passes[i].Label == label {
			return d.passes[i], true
		}
	}
	return PassRecord{}, false
}

// Clears returns the labels of textures cleared through CommandContext.ClearTexture.
func (d *Device) Clears() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clears...)
}

// ResetRecording forgets recorded passes, clears and submits.
func (d *Device) ResetRecording() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.passes = nil
	d.clears = nil
	d.submits = 0
}

// Submits returns the number of submitted command contexts.
func (d *Device) Submits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

// ShaderModules returns the number of shader modules created.
func (d *Device) ShaderModules() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shaderModules
}

// Pipelines returns the number of render pipelines created.
func (d *Device) Pipelines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipelines
}

// LiveTextures returns the number of textures created and not yet released.
func (d *Device) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.liveTextures)
}

// BufferData returns the last bytes written to the buffer with the given label.
func (d *Device) BufferData(label string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writtenBuffers[label]
}

func (d *Device) CreateBuffer(desc *rhi.BufferDesc) (rhi.Buffer, error) {
	return &Buffer{resource: resource{label: desc.Label}, Desc: *desc}, nil
}

func (d *Device) WriteBuffer(buf rhi.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok || b.released {
		return rhi.ErrReleased
	}
	if offset+uint64(len(data)) > b.Desc.Size {
		return fmt.Errorf("rhitest: write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.label, b.Desc.Size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writtenBuffers[b.label] = append([]byte(nil), data...)
	return nil
}

func (d *Device) CreateTexture(desc *rhi.TextureDesc) (rhi.Texture, error) {
	t := &Texture{resource: resource{label: desc.Label}, desc: *desc}
	t.onRelease = func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.liveTextures, t)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveTextures[t] = struct{}{}
	return t, nil
}

func (d *Device) WriteTexture(tex rhi.Texture, data []byte, bytesPerRow uint32) error {
	t, ok := tex.(*Texture)
	if !ok || t.released {
		return rhi.ErrReleased
	}
	if bytesPerRow < t.desc.Width*rhi.BytesPerTexel(t.desc.Format) {
		return fmt.Errorf("rhitest: row pitch %d too small for %q", bytesPerRow, t.label)
	}
	return nil
}

func (d *Device) CreateSampler(desc *rhi.SamplerDesc) (rhi.Sampler, error) {
	return &Object{resource: resource{label: desc.Label}}, nil
}

func (d *Device) CreateShaderModule(desc *rhi.ShaderModuleDesc) (rhi.ShaderModule, error) {
	if d.FailShader != nil && d.FailShader(desc.Label) {
		return nil, fmt.Errorf("compile %q: %w", desc.Label, ErrInjected)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shaderModules++
	return &ShaderModule{resource: resource{label: desc.Label}, Code: desc.Code}, nil
}

func (d *Device) CreateBindGroupLayout(desc *rhi.BindGroupLayoutDesc) (rhi.BindGroupLayout, error) {
	return &Object{resource: resource{label: desc.Label}}, nil
}

func (d *Device) CreatePipelineLayout(desc *rhi.PipelineLayoutDesc) (rhi.PipelineLayout, error) {
	return &PipelineLayout{resource: resource{label: desc.Label}, Sets: append([]rhi.BindGroupLayout(nil), desc.BindGroupLayouts...)}, nil
}

func (d *Device) CreateRenderPipeline(desc *rhi.RenderPipelineDesc) (rhi.RenderPipeline, error) {
	if desc.Layout == nil || desc.VertexModule == nil {
		return nil, fmt.Errorf("rhitest: pipeline %q is incomplete", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines++
	return &RenderPipeline{resource: resource{label: desc.Label}, Desc: *desc}, nil
}

func (d *Device) CreateBindGroup(desc *rhi.BindGroupDesc) (rhi.BindGroup, error) {
	if desc.Layout == nil {
		return nil, fmt.Errorf("rhitest: bind group %q has no layout", desc.Label)
	}
	for _, e := range desc.Entries {
		if e.Buffer == nil && e.TextureView == nil && e.Sampler == nil {
			return nil, fmt.Errorf("rhitest: bind group %q binding %d has no resource", desc.Label, e.Binding)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindGroups++
	return &BindGroup{resource: resource{label: desc.Label}, Desc: *desc}, nil
}

func (d *Device) CreateRenderPass(desc *rhi.RenderPassDesc) (rhi.RenderPass, error) {
	if len(desc.ColorAttachments) == 0 && desc.DepthStencil == nil {
		return nil, fmt.Errorf("rhitest: render pass %q has no attachments", desc.Label)
	}
	p := &RenderPass{resource: resource{label: desc.Label}, desc: *desc, depth: wgpu.TextureFormatUndefined}
	if len(desc.ColorFormats) > 0 {
		p.colors = append(p.colors, desc.ColorFormats...)
	} else {
		for _, a := range desc.ColorAttachments {
			if a.View == nil {
				p.colors = append(p.colors, d.SwapchainFormat)
				continue
			}
			p.colors = append(p.colors, a.View.Texture().Desc().Format)
		}
	}
	if desc.DepthStencil != nil && desc.DepthStencil.View != nil {
		p.depth = desc.DepthStencil.View.Texture().Desc().Format
	}
	return p, nil
}

func (d *Device) BeginCommands(label string) (rhi.CommandContext, error) {
	return &CommandContext{device: d, label: label}, nil
}

func (d *Device) WaitIdle() {}

func (d *Device) Release() {}

// CommandContext records passes into its Device.
type CommandContext struct {
	device *Device
	label  string
	open   *RenderContext
	done   bool
}

var _ rhi.CommandContext = &CommandContext{}

func (c *CommandContext) BeginRenderPass(pass rhi.RenderPass) (rhi.RenderContext, error) {
	if c.done {
		return nil, rhi.ErrReleased
	}
	if c.open != nil {
		return nil, errors.New("rhitest: previous render pass not ended")
	}
	for _, a := range pass.Desc().ColorAttachments {
		if v, ok := a.View.(*TextureView); ok && v.released {
			return nil, fmt.Errorf("rhitest: pass %q renders into released view: %w", pass.Label(), rhi.ErrReleased)
		}
	}
	c.open = &RenderContext{cmd: c, record: PassRecord{Label: pass.Label()}, bound: make(map[uint32]string), vertex: make(map[uint32]string)}
	return c.open, nil
}

func (c *CommandContext) ClearTexture(tex rhi.Texture) error {
	t, ok := tex.(*Texture)
	if !ok || t.released {
		return rhi.ErrReleased
	}
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	c.device.clears = append(c.device.clears, t.label)
	return nil
}

func (c *CommandContext) Submit() error {
	if c.done {
		return rhi.ErrReleased
	}
	if c.open != nil {
		return errors.New("rhitest: submit with an open render pass")
	}
	c.done = true
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	c.device.submits++
	return nil
}

func (c *CommandContext) Release() {
	c.done = true
}

// RenderContext records draws for one pass.
type RenderContext struct {
	cmd      *CommandContext
	record   PassRecord
	pipeline string
	bound    map[uint32]string
	vertex   map[uint32]string
}

var _ rhi.RenderContext = &RenderContext{}

func (r *RenderContext) BindRenderPipeline(p rhi.RenderPipeline) {
	r.pipeline = p.Label()
}

func (r *RenderContext) BindBindGroup(index uint32, bg rhi.BindGroup) {
	r.bound[index] = bg.Label()
	if b, ok := bg.(*BindGroup); ok {
		r.record.Bound = append(r.record.Bound, b)
	}
}

func (r *RenderContext) BindVertexBuffer(slot uint32, buf rhi.Buffer, offset uint64) {
	r.vertex[slot] = buf.Label()
}

func (r *RenderContext) BindIndexBuffer(buf rhi.Buffer, format wgpu.IndexFormat, offset uint64) {}

func (r *RenderContext) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.draw(false, vertexCount)
}

func (r *RenderContext) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.draw(true, indexCount)
}

func (r *RenderContext) draw(indexed bool, count uint32) {
	bound := make(map[uint32]string, len(r.bound))
	for k, v := range r.bound {
		bound[k] = v
	}
	vertex := make(map[uint32]string, len(r.vertex))
	for k, v := range r.vertex {
		vertex[k] = v
	}
	r.record.Draws = append(r.record.Draws, DrawRecord{Pipeline: r.pipeline, Indexed: indexed, Count: count, BindGroups: bound, VertexBuffers: vertex})
}

func (r *RenderContext) End() error {
	if r.cmd == nil {
		return nil
	}
	d := r.cmd.device
	d.mu.Lock()
	d.passes = append(d.passes, r.record)
	d.mu.Unlock()
	r.cmd.open = nil
	r.cmd = nil
	return nil
}
