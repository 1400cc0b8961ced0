package pipelang

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

// DescriptorType is the kind of resource a binding holds.
type DescriptorType string

const (
	DescriptorTypeSampler           DescriptorType = "sampler"
	DescriptorTypeSamplerComparison DescriptorType = "sampler_comparison"
	DescriptorTypeTexture2D         DescriptorType = "texture2D"
	DescriptorTypeTexture3D         DescriptorType = "texture3D"
	DescriptorTypeTextureDepth      DescriptorType = "textureDepth"
	DescriptorTypeImage2D           DescriptorType = "image2D"
	DescriptorTypeImage3D           DescriptorType = "image3D"
	DescriptorTypeUniform           DescriptorType = "uniform"
	DescriptorTypeBuffer            DescriptorType = "buffer"
	DescriptorTypeReadOnlyBuffer    DescriptorType = "readonly_buffer"
)

// defaultWGSLTypes gives the WGSL type declared for a binding that does not name one.
// Buffer bindings have no default: their struct type must be named.
var defaultWGSLTypes = map[DescriptorType]string{
	DescriptorTypeSampler:           "sampler",
	DescriptorTypeSamplerComparison: "sampler_comparison",
	DescriptorTypeTexture2D:         "texture_2d<f32>",
	DescriptorTypeTexture3D:         "texture_3d<f32>",
	DescriptorTypeTextureDepth:      "texture_depth_2d",
	DescriptorTypeImage2D:           "texture_storage_2d<rgba8unorm, write>",
	DescriptorTypeImage3D:           "texture_storage_3d<r32uint, write>",
	DescriptorTypeUniform:           "",
	DescriptorTypeBuffer:            "",
	DescriptorTypeReadOnlyBuffer:    "",
}

// Binding is one named resource slot of a parameter block.
type Binding struct {
	Name     string
	Binding  uint32
	Type     DescriptorType
	Count    uint32
	Stages   wgpu.ShaderStage
	WGSLType string
}

// ParseStages converts a stage letter string into a shader stage mask. V is vertex, P is fragment and
// C is compute. D, H and G name tessellation and geometry stages, which are accepted, logged and ignored.
//
// Parameters:
//   - stages: the stage letters, e.g. "VP"
//
// Returns:
//   - wgpu.ShaderStage: the stage mask
//   - error: an error on any other letter
func ParseStages(stages string) (wgpu.ShaderStage, error) {
	var mask wgpu.ShaderStage
	for _, ch := range stages {
		switch ch {
		case 'V':
			mask |= wgpu.ShaderStageVertex
		case 'P':
			mask |= wgpu.ShaderStageFragment
		case 'C':
			mask |= wgpu.ShaderStageCompute
		case 'D', 'H', 'G':
			log.Printf("pipelang: stage %q has no WebGPU equivalent, ignoring", ch)
		default:
			return 0, fmt.Errorf("unknown stage letter %q in %q", ch, stages)
		}
	}
	return mask, nil
}

// parameterBlock is the implementation of the ParameterBlock interface.
type parameterBlock struct {
	mu *sync.Mutex

	name     string
	setIndex uint32
	bindings map[string]Binding

	layout rhi.BindGroupLayout
}

// ParameterBlock is a named collection of resource bindings that maps to one descriptor set. It produces a
// descriptor-set layout lazily and keeps it until the device changes.
type ParameterBlock interface {
	// Name returns the block's name in its library.
	Name() string

	// AddBinding registers one named resource.
	//
	// Parameters:
	//   - name: the resource name, also the WGSL variable name
	//   - binding: the binding slot
	//   - descriptorType: one of the DescriptorType names, e.g. "uniform" or "texture2D"
	//   - count: the array count; values above 1 are recorded but bound as a single resource
	//   - stages: the stage letters that access the resource, see ParseStages
	//
	// Returns:
	//   - error: an error if the type or a stage letter is unknown, or the name or slot is taken
	AddBinding(name string, binding uint32, descriptorType string, count uint32, stages string) error

	// SetWGSLType overrides the WGSL type declared for a binding, e.g. a struct name for a uniform.
	//
	// Parameters:
	//   - name: the binding name
	//   - wgslType: the WGSL type
	//
	// Returns:
	//   - error: an error if the binding does not exist
	SetWGSLType(name, wgslType string) error

	// Binding looks up a binding by name.
	Binding(name string) (Binding, bool)

	// Bindings returns all bindings ordered by slot.
	Bindings() []Binding

	// SetSetIndex sets the descriptor set index the block occupies in pipeline layouts.
	SetSetIndex(index uint32)

	// SetIndex returns the descriptor set index.
	SetIndex() uint32

	// CreateDescriptorLayout creates the layout on device. It returns immediately if a layout exists.
	// A nil device drops the layout so the next device creates a fresh one.
	//
	// Parameters:
	//   - device: the device, or nil after device teardown
	//
	// Returns:
	//   - error: an error if the device rejects the layout
	CreateDescriptorLayout(device rhi.Device) error

	// DescriptorSetLayout returns the layout, or nil before CreateDescriptorLayout.
	DescriptorSetLayout() rhi.BindGroupLayout

	// CreateDescriptorSet creates an empty descriptor-set instance of this block's layout.
	//
	// Parameters:
	//   - label: debug label of the instance
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the new instance
	CreateDescriptorSet(label string) bind_group_provider.BindGroupProvider

	// BindBuffer stages a buffer range at the named binding of ds. Unknown names are logged and skipped.
	BindBuffer(ds bind_group_provider.BindGroupProvider, name string, buf rhi.Buffer, offset, size uint64)

	// BindConstants uploads data to a constant buffer owned by ds at the named binding.
	// Unknown names are logged and skipped.
	//
	// Returns:
	//   - error: an error if the upload fails
	BindConstants(device rhi.Device, ds bind_group_provider.BindGroupProvider, name string, data []byte) error

	// BindImageView stages a texture view at the named binding of ds. Unknown names are logged and skipped.
	BindImageView(ds bind_group_provider.BindGroupProvider, name string, view rhi.TextureView)

	// BindSampler stages a sampler at the named binding of ds. Unknown names are logged and skipped.
	BindSampler(ds bind_group_provider.BindGroupProvider, name string, sampler rhi.Sampler)
}

var _ ParameterBlock = &parameterBlock{}

// NewParameterBlock creates an empty parameter block at set index 0.
//
// Parameters:
//   - name: the block's name
//
// Returns:
//   - ParameterBlock: the new block
func NewParameterBlock(name string) ParameterBlock {
	return &parameterBlock{
		mu:       &sync.Mutex{},
		name:     name,
		bindings: make(map[string]Binding),
	}
}

func (p *parameterBlock) Name() string {
	return p.name
}

func (p *parameterBlock) AddBinding(name string, binding uint32, descriptorType string, count uint32, stages string) error {
	dt := DescriptorType(descriptorType)
	wgslType, ok := defaultWGSLTypes[dt]
	if !ok {
		return fmt.Errorf("%s.%s: unknown descriptor type %q", p.name, name, descriptorType)
	}
	mask, err := ParseStages(stages)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", p.name, name, err)
	}
	if count > 1 {
		log.Printf("pipelang: %s.%s declares %d elements, binding arrays are bound as a single resource", p.name, name, count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.bindings[name]; exists {
		return fmt.Errorf("%s: binding %q already exists", p.name, name)
	}
	for _, b := range p.bindings {
		if b.Binding == binding {
			return fmt.Errorf("%s: slot %d already holds %q", p.name, binding, b.Name)
		}
	}
	p.bindings[name] = Binding{
		Name:     name,
		Binding:  binding,
		Type:     dt,
		Count:    max(count, 1),
		Stages:   mask,
		WGSLType: wgslType,
	}
	return nil
}

func (p *parameterBlock) SetWGSLType(name, wgslType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bindings[name]
	if !ok {
		return fmt.Errorf("%s: no binding %q", p.name, name)
	}
	b.WGSLType = wgslType
	p.bindings[name] = b
	return nil
}

func (p *parameterBlock) Binding(name string) (Binding, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bindings[name]
	return b, ok
}

func (p *parameterBlock) Bindings() []Binding {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Binding, 0, len(p.bindings))
	for _, b := range p.bindings {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Binding) int { return int(a.Binding) - int(b.Binding) })
	return out
}

func (p *parameterBlock) SetSetIndex(index uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setIndex = index
}

func (p *parameterBlock) SetIndex() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setIndex
}

func (p *parameterBlock) CreateDescriptorLayout(device rhi.Device) error {
	if device == nil {
		p.mu.Lock()
		p.layout = nil
		p.mu.Unlock()
		return nil
	}

	p.mu.Lock()
	exists := p.layout != nil
	p.mu.Unlock()
	if exists {
		return nil
	}

	bindings := p.Bindings()
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		entries = append(entries, classifyResource(b.Binding, b.Stages, b.Type, b.WGSLType))
	}
	layout, err := device.CreateBindGroupLayout(&rhi.BindGroupLayoutDesc{
		Label:   p.name,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create layout for %s: %w", p.name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.layout != nil {
		layout.Release()
		return nil
	}
	p.layout = layout
	return nil
}

func (p *parameterBlock) DescriptorSetLayout() rhi.BindGroupLayout {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layout
}

func (p *parameterBlock) CreateDescriptorSet(label string) bind_group_provider.BindGroupProvider {
	return bind_group_provider.NewBindGroupProvider(label, bind_group_provider.WithBindGroupLayout(p.DescriptorSetLayout()))
}

func (p *parameterBlock) BindBuffer(ds bind_group_provider.BindGroupProvider, name string, buf rhi.Buffer, offset, size uint64) {
	if b, ok := p.lookup(name); ok {
		ds.SetBuffer(int(b.Binding), buf, offset, size)
	}
}

func (p *parameterBlock) BindConstants(device rhi.Device, ds bind_group_provider.BindGroupProvider, name string, data []byte) error {
	b, ok := p.lookup(name)
	if !ok {
		return nil
	}
	return ds.SetConstants(device, int(b.Binding), data)
}

func (p *parameterBlock) BindImageView(ds bind_group_provider.BindGroupProvider, name string, view rhi.TextureView) {
	if b, ok := p.lookup(name); ok {
		ds.SetTextureView(int(b.Binding), view)
	}
}

func (p *parameterBlock) BindSampler(ds bind_group_provider.BindGroupProvider, name string, sampler rhi.Sampler) {
	if b, ok := p.lookup(name); ok {
		ds.SetSampler(int(b.Binding), sampler)
	}
}

// lookup resolves a binding for the Bind* methods, warning on unknown names.
func (p *parameterBlock) lookup(name string) (Binding, bool) {
	b, ok := p.Binding(name)
	if !ok {
		log.Printf("pipelang: %s has no binding %q, skipping", p.name, name)
	}
	return b, ok
}
