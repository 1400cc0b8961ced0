package pipelang

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Semantic identifies the meaning of a vertex attribute independently of its shader location.
type Semantic uint32

const (
	SemanticPosition Semantic = iota + 1
	SemanticNormal
	SemanticTangent
	SemanticTexCoord0
	SemanticTexCoord1
	SemanticColor0
	SemanticJoints0
	SemanticWeights0
)

// semanticInfo describes how one semantic is fed to the vertex stage.
type semanticInfo struct {
	name     string
	field    string
	wgslType string
	format   wgpu.VertexFormat
	size     uint64
}

var semanticTable = map[Semantic]semanticInfo{
	SemanticPosition:  {"Position", "position", "vec3<f32>", wgpu.VertexFormatFloat32x3, 12},
	SemanticNormal:    {"Normal", "normal", "vec3<f32>", wgpu.VertexFormatFloat32x3, 12},
	SemanticTangent:   {"Tangent", "tangent", "vec4<f32>", wgpu.VertexFormatFloat32x4, 16},
	SemanticTexCoord0: {"TexCoord0", "texcoord0", "vec2<f32>", wgpu.VertexFormatFloat32x2, 8},
	SemanticTexCoord1: {"TexCoord1", "texcoord1", "vec2<f32>", wgpu.VertexFormatFloat32x2, 8},
	SemanticColor0:    {"Color0", "color0", "vec4<f32>", wgpu.VertexFormatFloat32x4, 16},
	SemanticJoints0:   {"Joints0", "joints0", "vec4<u32>", wgpu.VertexFormatUint32x4, 16},
	SemanticWeights0:  {"Weights0", "weights0", "vec4<f32>", wgpu.VertexFormatFloat32x4, 16},
}

func (s Semantic) String() string {
	if info, ok := semanticTable[s]; ok {
		return info.name
	}
	return fmt.Sprintf("Semantic(%d)", uint32(s))
}

// ParseSemantic resolves a semantic by its name, e.g. "Position" or "TexCoord0".
//
// Parameters:
//   - name: the semantic name
//
// Returns:
//   - Semantic: the semantic
//   - error: an error if the name is unknown
func ParseSemantic(name string) (Semantic, error) {
	for s, info := range semanticTable {
		if info.name == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown vertex semantic %q", name)
}

// Stride returns the byte size of one element of the semantic's tightly packed vertex stream.
func (s Semantic) Stride() uint64 {
	return semanticTable[s].size
}

// VertexAttribs maps shader locations to vertex semantics. Each attribute is fed from its own vertex
// buffer, bound at the slot equal to its rank in location order.
type VertexAttribs struct {
	byLocation map[uint32]Semantic
}

// NewVertexAttribs creates an empty attribute map.
func NewVertexAttribs() *VertexAttribs {
	return &VertexAttribs{byLocation: make(map[uint32]Semantic)}
}

// AddAttribute maps a shader location to a named semantic.
//
// Parameters:
//   - name: the semantic name
//   - location: the shader location
//
// Returns:
//   - error: an error if the name is unknown or the location is taken by another semantic
func (v *VertexAttribs) AddAttribute(name string, location uint32) error {
	s, err := ParseSemantic(name)
	if err != nil {
		return err
	}
	if existing, ok := v.byLocation[location]; ok && existing != s {
		return fmt.Errorf("location %d already holds %s", location, existing)
	}
	v.byLocation[location] = s
	return nil
}

// AttributesByLocation returns a copy of the location to semantic map.
func (v *VertexAttribs) AttributesByLocation() map[uint32]Semantic {
	return maps.Clone(v.byLocation)
}

// Locations returns the mapped locations in ascending order. The index of a location in this slice is the
// vertex buffer slot of its attribute.
func (v *VertexAttribs) Locations() []uint32 {
	return slices.Sorted(maps.Keys(v.byLocation))
}

// Location returns the shader location of a semantic.
//
// Parameters:
//   - s: the semantic
//
// Returns:
//   - uint32: the location
//   - bool: false if the semantic is not mapped
func (v *VertexAttribs) Location(s Semantic) (uint32, bool) {
	for loc, sem := range v.byLocation {
		if sem == s {
			return loc, true
		}
	}
	return 0, false
}

// Semantic returns the semantic at a shader location.
//
// Parameters:
//   - location: the shader location
//
// Returns:
//   - Semantic: the semantic
//   - bool: false if the location is not mapped
func (v *VertexAttribs) Semantic(location uint32) (Semantic, bool) {
	s, ok := v.byLocation[location]
	return s, ok
}

// BufferLayouts returns one vertex buffer layout per attribute in slot order.
func (v *VertexAttribs) BufferLayouts() []wgpu.VertexBufferLayout {
	locations := v.Locations()
	layouts := make([]wgpu.VertexBufferLayout, 0, len(locations))
	for _, loc := range locations {
		info := semanticTable[v.byLocation[loc]]
		layouts = append(layouts, wgpu.VertexBufferLayout{
			ArrayStride: info.size,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         info.format,
				Offset:         0,
				ShaderLocation: loc,
			}},
		})
	}
	return layouts
}

// wgslInput renders the VertexInput struct consumed by generated vertex stages.
func (v *VertexAttribs) wgslInput() string {
	var b strings.Builder
	b.WriteString("struct VertexInput {\n")
	for _, loc := range v.Locations() {
		info := semanticTable[v.byLocation[loc]]
		fmt.Fprintf(&b, "    @location(%d) %s: %s,\n", loc, info.field, info.wgslType)
	}
	b.WriteString("}\n")
	return b.String()
}
