package material

import "github.com/Carmen-Shannon/foreground/common"

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*basicMaterial)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *basicMaterial) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the albedo RGBA factor of the material.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *basicMaterial) {
		m.baseColor = color
	}
}

// WithMetallic is an option builder that sets the metallic factor of the material.
//
// Parameters:
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic option to a material
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *basicMaterial) {
		m.metallic = metallic
	}
}

// WithRoughness is an option builder that sets the roughness factor of the material.
//
// Parameters:
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *basicMaterial) {
		m.roughness = roughness
	}
}

// WithBaseColorTexture is an option builder that sets the base color image.
//
// Parameters:
//   - tex: the imported image data
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color texture option to a material
func WithBaseColorTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *basicMaterial) {
		m.baseColorTexture = tex
	}
}

// WithMetallicRoughnessTexture is an option builder that sets the metallic-roughness image.
//
// Parameters:
//   - tex: the imported image data
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic-roughness texture option to a material
func WithMetallicRoughnessTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *basicMaterial) {
		m.metallicRoughnessTexture = tex
	}
}
