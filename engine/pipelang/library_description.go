package pipelang

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// LibraryFile is the description file every library directory holds.
const LibraryFile = "library.yaml"

// libraryDescription is the YAML form of a library.
type libraryDescription struct {
	Structs         map[string]string                    `yaml:"structs"`
	ParameterBlocks map[string]parameterBlockDescription `yaml:"parameter_blocks"`
	VertexAttribs   map[string][]vertexAttribDescription `yaml:"vertex_attribs"`
	Stages          map[string]stageDescription          `yaml:"stages"`
}

type parameterBlockDescription struct {
	Set      uint32               `yaml:"set"`
	Bindings []bindingDescription `yaml:"bindings"`
}

type bindingDescription struct {
	Name    string `yaml:"name"`
	Binding uint32 `yaml:"binding"`
	Type    string `yaml:"type"`
	Count   uint32 `yaml:"count"`
	Stages  string `yaml:"stages"`
	WGSL    string `yaml:"wgsl"`
}

type vertexAttribDescription struct {
	Semantic string `yaml:"semantic"`
	Location uint32 `yaml:"location"`
}

type stageDescription struct {
	Kind   StageKind   `yaml:"kind"`
	Source string      `yaml:"source"`
	State  *StageState `yaml:"state"`
}

// StageKind says which shader a stage contributes source to.
type StageKind string

const (
	StageKindVertex   StageKind = "vertex"
	StageKindFragment StageKind = "fragment"
	// StageKindState stages carry only pipeline state.
	StageKindState StageKind = "state"
)

// Stage is one named piece of a composition.
type Stage struct {
	Name   string
	Kind   StageKind
	Source string
	State  *StageState
}

// StageState is the fixed-function state a stage imposes on the pipelines it takes part in.
// Nil and empty fields leave the descriptor's value alone.
type StageState struct {
	Cull       string  `yaml:"cull"`
	DepthTest  *bool   `yaml:"depth_test"`
	DepthWrite *bool   `yaml:"depth_write"`
	Topology   string  `yaml:"topology"`
	DepthBias  int32   `yaml:"depth_bias"`
	SlopeScale float32 `yaml:"slope_scale"`
	ColorWrite *bool   `yaml:"color_write"`
}

var cullModes = map[string]wgpu.CullMode{
	"none":  wgpu.CullModeNone,
	"front": wgpu.CullModeFront,
	"back":  wgpu.CullModeBack,
}

var topologies = map[string]wgpu.PrimitiveTopology{
	"point_list":     wgpu.PrimitiveTopologyPointList,
	"line_list":      wgpu.PrimitiveTopologyLineList,
	"line_strip":     wgpu.PrimitiveTopologyLineStrip,
	"triangle_list":  wgpu.PrimitiveTopologyTriangleList,
	"triangle_strip": wgpu.PrimitiveTopologyTriangleStrip,
}

// Validate reports unknown cull mode or topology names.
func (s *StageState) Validate() error {
	if s.Cull != "" {
		if _, ok := cullModes[s.Cull]; !ok {
			return fmt.Errorf("unknown cull mode %q", s.Cull)
		}
	}
	if s.Topology != "" {
		if _, ok := topologies[s.Topology]; !ok {
			return fmt.Errorf("unknown topology %q", s.Topology)
		}
	}
	return nil
}

// Apply writes the state onto desc.
//
// Parameters:
//   - desc: the pipeline descriptor being assembled
func (s *StageState) Apply(desc pipeline.Pipeline) {
	if mode, ok := cullModes[s.Cull]; ok {
		desc.SetCullMode(mode)
	}
	if topology, ok := topologies[s.Topology]; ok {
		desc.SetTopology(topology)
	}
	test, write := desc.DepthTestEnabled(), desc.DepthWriteEnabled()
	if s.DepthTest != nil {
		test = *s.DepthTest
	}
	if s.DepthWrite != nil {
		write = *s.DepthWrite
	}
	desc.SetDepthState(test, write)
	if s.DepthBias != 0 || s.SlopeScale != 0 {
		desc.SetDepthBias(s.DepthBias, s.SlopeScale)
	}
	if s.ColorWrite != nil {
		if *s.ColorWrite {
			desc.SetWriteMask(wgpu.ColorWriteMaskAll)
		} else {
			desc.SetWriteMask(wgpu.ColorWriteMask(0))
		}
	}
}
