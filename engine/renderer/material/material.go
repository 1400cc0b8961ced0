package material

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
)

// Kind identifies the concrete material variant. Renderers switch on it to pick the material stages of a
// pipeline composition.
type Kind int

const (
	// KindBasic is a BasicMaterial.
	KindBasic Kind = iota
)

func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	default:
		return "unknown"
	}
}

// ErrUnknownKind is returned when a renderer meets a material kind it has no stages for.
var ErrUnknownKind = errors.New("material: unknown kind")

// Material is the closed set of surface descriptions a primitive can carry.
type Material interface {
	// Kind returns the concrete variant.
	Kind() Kind

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Release frees the GPU resources the material created. The material can be used again afterwards;
	// resources are recreated on demand.
	Release()
}

// basicMaterial is the implementation of the BasicMaterial interface.
type basicMaterial struct {
	mu *sync.Mutex

	name                     string
	baseColor                [4]float32
	metallic                 float32
	roughness                float32
	baseColorTexture         *common.ImportedTexture
	metallicRoughnessTexture *common.ImportedTexture

	// device resources, created by DescriptorSet
	device         rhi.Device
	set            bind_group_provider.BindGroupProvider
	textures       []rhi.Texture
	baseColorView  rhi.TextureView
	metalRoughView rhi.TextureView
	constantsDirty bool
}

// BasicMaterial is a metallic-roughness surface with an optional base color image and an optional
// metallic-roughness image, bound through the BasicMaterialParams parameter block.
//
// Surface properties are read when the descriptor set is built; changing a factor re-uploads the
// material constants on the next DescriptorSet call.
type BasicMaterial interface {
	Material

	// BaseColor retrieves the albedo RGBA factor.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// Metallic retrieves the metallic factor. 0 is dielectric, 1 is fully metallic.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor. 0 is perfectly smooth, 1 is fully rough.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// BaseColorTexture retrieves the base color image, or nil if none is set.
	BaseColorTexture() *common.ImportedTexture

	// MetallicRoughnessTexture retrieves the metallic-roughness image (G roughness, B metallic), or nil.
	MetallicRoughnessTexture() *common.ImportedTexture

	// SetBaseColor sets the albedo RGBA factor.
	SetBaseColor(color [4]float32)

	// SetMetallic sets the metallic factor.
	SetMetallic(metallic float32)

	// SetRoughness sets the roughness factor.
	SetRoughness(roughness float32)

	// Constants packs the material factors for upload.
	//
	// Returns:
	//   - GPUMaterialConstants: the packed constants
	Constants() GPUMaterialConstants

	// DescriptorSet returns the material's descriptor set for block, creating it and uploading the images
	// on first use. An image that fails to decode logs a warning and is replaced by fallback.
	//
	// Parameters:
	//   - device: the device owning the resources
	//   - block: the BasicMaterialParams parameter block
	//   - fallback: a white texture view bound in place of missing images
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the material's descriptor set
	//   - error: an error if a GPU resource cannot be created
	DescriptorSet(device rhi.Device, block pipelang.ParameterBlock, fallback rhi.TextureView) (bind_group_provider.BindGroupProvider, error)
}

var _ BasicMaterial = &basicMaterial{}

// NewBasicMaterial creates a white, fully rough dielectric material with the provided options applied.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - BasicMaterial: a new BasicMaterial instance
func NewBasicMaterial(options ...MaterialBuilderOption) BasicMaterial {
	m := &basicMaterial{
		mu:             &sync.Mutex{},
		baseColor:      [4]float32{1, 1, 1, 1},
		metallic:       0.0,
		roughness:      1.0,
		constantsDirty: true,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *basicMaterial) Kind() Kind {
	return KindBasic
}

func (m *basicMaterial) Name() string {
	return m.name
}

func (m *basicMaterial) BaseColor() [4]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseColor
}

func (m *basicMaterial) Metallic() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metallic
}

func (m *basicMaterial) Roughness() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roughness
}

func (m *basicMaterial) BaseColorTexture() *common.ImportedTexture {
	return m.baseColorTexture
}

func (m *basicMaterial) MetallicRoughnessTexture() *common.ImportedTexture {
	return m.metallicRoughnessTexture
}

func (m *basicMaterial) SetBaseColor(color [4]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseColor = color
	m.constantsDirty = true
}

func (m *basicMaterial) SetMetallic(metallic float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metallic = metallic
	m.constantsDirty = true
}

func (m *basicMaterial) SetRoughness(roughness float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roughness = roughness
	m.constantsDirty = true
}

func (m *basicMaterial) Constants() GPUMaterialConstants {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.constants()
}

// constants packs the factors. Caller must hold the mutex.
func (m *basicMaterial) constants() GPUMaterialConstants {
	c := GPUMaterialConstants{
		BaseColor:         m.baseColor,
		MetallicRoughness: [4]float32{0, m.metallic, m.roughness, 0},
	}
	if m.baseColorTexture != nil || m.metallicRoughnessTexture != nil {
		c.UseTextures = 1
	}
	return c
}

func (m *basicMaterial) DescriptorSet(device rhi.Device, block pipelang.ParameterBlock, fallback rhi.TextureView) (bind_group_provider.BindGroupProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != device || (m.set != nil && m.set.Layout() != block.DescriptorSetLayout()) {
		m.releaseLocked()
	}

	if m.set == nil {
		m.device = device
		m.baseColorView = m.uploadLocked(device, m.baseColorTexture, wgpu.TextureFormatRGBA8UnormSrgb, fallback)
		m.metalRoughView = m.uploadLocked(device, m.metallicRoughnessTexture, wgpu.TextureFormatRGBA8Unorm, fallback)
		m.set = block.CreateDescriptorSet(fmt.Sprintf("material.%s", m.name))
		m.constantsDirty = true
	}

	block.BindImageView(m.set, "base_color_tex", m.baseColorView)
	block.BindImageView(m.set, "metallic_roughness_tex", m.metalRoughView)
	if m.constantsDirty {
		c := m.constants()
		if err := block.BindConstants(device, m.set, "material", c.Marshal()); err != nil {
			return nil, fmt.Errorf("material %q constants: %w", m.name, err)
		}
		m.constantsDirty = false
	}
	return m.set, nil
}

// uploadLocked decodes tex and uploads it, returning fallback when there is no image or it cannot be used.
func (m *basicMaterial) uploadLocked(device rhi.Device, tex *common.ImportedTexture, format wgpu.TextureFormat, fallback rhi.TextureView) rhi.TextureView {
	if tex == nil {
		return fallback
	}
	staging, err := tex.Decode()
	if err != nil {
		log.Printf("material %q: %v, using fallback texture", m.name, err)
		return fallback
	}

	created, err := device.CreateTexture(&rhi.TextureDesc{
		Label:              fmt.Sprintf("material.%s.%s", m.name, tex.Name),
		Width:              staging.Width,
		Height:             staging.Height,
		DepthOrArrayLayers: 1,
		Dimension:          wgpu.TextureDimension2D,
		Format:             format,
		Usage:              wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		MipLevelCount:      1,
		SampleCount:        1,
	})
	if err != nil {
		log.Printf("material %q: create texture %q: %v, using fallback texture", m.name, tex.Name, err)
		return fallback
	}
	if err := device.WriteTexture(created, staging.Pixels, staging.Width*4); err != nil {
		created.Release()
		log.Printf("material %q: upload texture %q: %v, using fallback texture", m.name, tex.Name, err)
		return fallback
	}
	view, err := created.CreateView(nil)
	if err != nil {
		created.Release()
		log.Printf("material %q: view texture %q: %v, using fallback texture", m.name, tex.Name, err)
		return fallback
	}
	m.textures = append(m.textures, created)
	return view
}

func (m *basicMaterial) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *basicMaterial) releaseLocked() {
	if m.set != nil {
		m.set.Release()
		m.set = nil
	}
	for _, t := range m.textures {
		t.Release()
	}
	m.textures = nil
	m.baseColorView, m.metalRoughView = nil, nil
	m.device = nil
}
