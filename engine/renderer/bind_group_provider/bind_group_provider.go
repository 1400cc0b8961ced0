package bind_group_provider

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoLayout is returned when a bind group is requested from a provider created without a layout.
var ErrNoLayout = errors.New("bind group provider has no layout")

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label string

	// layout is the descriptor-set layout this provider instantiates. It is owned by the parameter block.
	layout rhi.BindGroupLayout

	// entries holds the staged resources keyed by binding index.
	entries map[int]rhi.BindGroupEntry
	// owned holds the constant buffers this provider allocated itself, released with the provider.
	owned map[int]rhi.Buffer

	// bindGroup is the built bind group, or nil until first requested.
	bindGroup rhi.BindGroup
	// dirty is set whenever a staged entry changes after the bind group was built.
	dirty bool
}

// BindGroupProvider is one instance of a descriptor-set layout: the resources staged for each binding slot
// and the bind group built from them.
//
// Usage pattern:
//  1. A parameter block creates the provider from its layout
//  2. Resources are staged by binding index (SetBuffer, SetTextureView, SetSampler, SetConstants)
//  3. BindGroup builds the GPU bind group lazily, rebuilding it only after a staged resource changes
//  4. Release frees the bind group and any buffers the provider allocated
type BindGroupProvider interface {
	// Release releases the bind group and the constant buffers allocated by this provider.
	// Resources staged with SetBuffer, SetTextureView or SetSampler are not owned and are left alone.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Layout returns the descriptor-set layout this provider instantiates.
	//
	// Returns:
	//   - rhi.BindGroupLayout: the layout, or nil if none was given
	Layout() rhi.BindGroupLayout

	// Buffer returns the buffer staged at a binding, or nil if none.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - rhi.Buffer: the buffer or nil
	Buffer(binding int) rhi.Buffer

	// TextureView returns the texture view staged at a binding, or nil if none.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - rhi.TextureView: the texture view or nil
	TextureView(binding int) rhi.TextureView

	// Sampler returns the sampler staged at a binding, or nil if none.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - rhi.Sampler: the sampler or nil
	Sampler(binding int) rhi.Sampler

	// Bindings returns the staged binding indices in ascending order.
	//
	// Returns:
	//   - []int: the staged binding indices
	Bindings() []int

	// SetBuffer stages a buffer range at a binding. A zero size binds the rest of the buffer.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer to bind
	//   - offset: byte offset into the buffer
	//   - size: byte size of the bound range
	SetBuffer(binding int, buf rhi.Buffer, offset, size uint64)

	// SetTextureView stages a texture view at a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view to bind
	SetTextureView(binding int, tv rhi.TextureView)

	// SetSampler stages a sampler at a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler to bind
	SetSampler(binding int, s rhi.Sampler)

	// SetConstants uploads data into a uniform buffer owned by this provider at a binding.
	// The buffer is allocated on first use and reallocated only when data outgrows it.
	//
	// Parameters:
	//   - device: the device used to allocate and write the buffer
	//   - binding: the binding index
	//   - data: the constant data
	//
	// Returns:
	//   - error: an error if allocation or upload fails
	SetConstants(device rhi.Device, binding int, data []byte) error

	// BindGroup returns the bind group for the staged resources, building it on first use and rebuilding it
	// after any staged resource changed.
	//
	// Parameters:
	//   - device: the device used to build the bind group
	//
	// Returns:
	//   - rhi.BindGroup: the bind group
	//   - error: an error if the provider has no layout or the device rejects the bind group
	BindGroup(device rhi.Device) (rhi.BindGroup, error)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: debug label for the provider and its bind group
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:      &sync.Mutex{},
		label:   label,
		entries: make(map[int]rhi.BindGroupEntry),
		owned:   make(map[int]rhi.Buffer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Layout() rhi.BindGroupLayout {
	return p.layout
}

func (p *bindGroupProvider) Buffer(binding int) rhi.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[binding].Buffer
}

func (p *bindGroupProvider) TextureView(binding int) rhi.TextureView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[binding].TextureView
}

func (p *bindGroupProvider) Sampler(binding int) rhi.Sampler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[binding].Sampler
}

func (p *bindGroupProvider) Bindings() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.entries))
}

func (p *bindGroupProvider) SetBuffer(binding int, buf rhi.Buffer, offset, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage(binding, rhi.BindGroupEntry{Binding: uint32(binding), Buffer: buf, Offset: offset, Size: size})
}

func (p *bindGroupProvider) SetTextureView(binding int, tv rhi.TextureView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage(binding, rhi.BindGroupEntry{Binding: uint32(binding), TextureView: tv})
}

func (p *bindGroupProvider) SetSampler(binding int, s rhi.Sampler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage(binding, rhi.BindGroupEntry{Binding: uint32(binding), Sampler: s})
}

func (p *bindGroupProvider) SetConstants(device rhi.Device, binding int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := alignUniform(uint64(len(data)))
	buf := p.owned[binding]
	if buf == nil || buf.Size() < size {
		created, err := device.CreateBuffer(&rhi.BufferDesc{
			Label: fmt.Sprintf("%s.constants%d", p.label, binding),
			Size:  size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("allocate constants for %s binding %d: %w", p.label, binding, err)
		}
		if buf != nil {
			buf.Release()
		}
		buf = created
		p.owned[binding] = buf
		p.stage(binding, rhi.BindGroupEntry{Binding: uint32(binding), Buffer: buf, Size: size})
	}

	if err := device.WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("write constants for %s binding %d: %w", p.label, binding, err)
	}
	return nil
}

func (p *bindGroupProvider) BindGroup(device rhi.Device) (rhi.BindGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bindGroup != nil && !p.dirty {
		return p.bindGroup, nil
	}
	if p.layout == nil {
		return nil, fmt.Errorf("%s: %w", p.label, ErrNoLayout)
	}

	entries := make([]rhi.BindGroupEntry, 0, len(p.entries))
	for _, binding := range slices.Sorted(maps.Keys(p.entries)) {
		entries = append(entries, p.entries[binding])
	}
	bg, err := device.CreateBindGroup(&rhi.BindGroupDesc{
		Label:   p.label,
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	p.dirty = false
	return bg, nil
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, buf := range p.owned {
		buf.Release()
		delete(p.owned, i)
		delete(p.entries, i)
	}
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	p.dirty = false
}

// stage records an entry and marks the bind group for rebuild when the entry differs. Callers hold p.mu.
func (p *bindGroupProvider) stage(binding int, e rhi.BindGroupEntry) {
	if old, ok := p.entries[binding]; ok && old == e {
		return
	}
	p.entries[binding] = e
	p.dirty = true
}

// alignUniform rounds a uniform buffer size up to 16 bytes.
func alignUniform(size uint64) uint64 {
	return (max(size, 16) + 15) &^ 15
}
