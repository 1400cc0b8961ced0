package shape

import (
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// triangleMesh is the implementation of the TriangleMesh interface.
type triangleMesh struct {
	mu *sync.Mutex

	label     string
	topology  wgpu.PrimitiveTopology
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	texcoords []mgl32.Vec2
	indices   []uint32
	bounds    common.BoundingBox

	device  rhi.Device
	streams map[pipelang.Semantic]rhi.Buffer
	index   rhi.Buffer
}

// TriangleMesh is indexed or non-indexed geometry with one vertex stream per attribute.
// The CPU copies are immutable after construction; GPU buffers are created on the first Upload.
type TriangleMesh interface {
	Shape

	// Label returns the debug label of the mesh.
	Label() string

	// Topology returns the primitive topology the mesh is drawn with.
	Topology() wgpu.PrimitiveTopology

	// VertexCount returns the number of vertices.
	VertexCount() uint32

	// IndexCount returns the number of indices, 0 for non-indexed meshes.
	IndexCount() uint32

	// Indexed reports whether the mesh carries an index buffer.
	Indexed() bool

	// HasAttribute reports whether the mesh provides a vertex stream for the semantic.
	//
	// Parameters:
	//   - s: the vertex semantic
	//
	// Returns:
	//   - bool: true if the stream exists
	HasAttribute(s pipelang.Semantic) bool

	// Upload creates the GPU buffers on device. It is a no-op once uploaded to the same device.
	//
	// Parameters:
	//   - device: the device owning the buffers
	//
	// Returns:
	//   - error: an error if a buffer cannot be created or written
	Upload(device rhi.Device) error

	// BindVertexInput binds the mesh streams at the slots attribs assigns them. An attribute the mesh does not
	// provide logs a warning and is skipped.
	//
	// Parameters:
	//   - rc: the render context
	//   - attribs: the pipeline's vertex attribute map
	//
	// Returns:
	//   - int: the number of streams bound
	BindVertexInput(rc rhi.RenderContext, attribs *pipelang.VertexAttribs) int

	// Draw issues the draw call: indexed when the mesh has indices, otherwise non-indexed.
	//
	// Parameters:
	//   - rc: the render context
	Draw(rc rhi.RenderContext)
}

var _ TriangleMesh = &triangleMesh{}

// NewTriangleMesh creates a triangle list mesh from positions.
//
// Parameters:
//   - positions: the vertex positions
//   - options: functional options adding streams, indices or a topology
//
// Returns:
//   - TriangleMesh: the mesh
func NewTriangleMesh(positions []mgl32.Vec3, options ...TriangleMeshBuilderOption) TriangleMesh {
	m := &triangleMesh{
		mu:        &sync.Mutex{},
		label:     "mesh",
		topology:  wgpu.PrimitiveTopologyTriangleList,
		positions: positions,
		streams:   make(map[pipelang.Semantic]rhi.Buffer),
	}
	for _, opt := range options {
		opt(m)
	}
	m.bounds = common.BoundingBoxFromPoints(positions)
	return m
}

func (m *triangleMesh) Kind() Kind {
	return KindTriangleMesh
}

func (m *triangleMesh) Label() string {
	return m.label
}

func (m *triangleMesh) BoundingBox() common.BoundingBox {
	return m.bounds
}

func (m *triangleMesh) Topology() wgpu.PrimitiveTopology {
	return m.topology
}

func (m *triangleMesh) VertexCount() uint32 {
	return uint32(len(m.positions))
}

func (m *triangleMesh) IndexCount() uint32 {
	return uint32(len(m.indices))
}

func (m *triangleMesh) Indexed() bool {
	return len(m.indices) > 0
}

func (m *triangleMesh) HasAttribute(s pipelang.Semantic) bool {
	switch s {
	case pipelang.SemanticPosition:
		return len(m.positions) > 0
	case pipelang.SemanticNormal:
		return len(m.normals) > 0
	case pipelang.SemanticTexCoord0:
		return len(m.texcoords) > 0
	default:
		return false
	}
}

func (m *triangleMesh) Upload(device rhi.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == device && len(m.streams) > 0 {
		return nil
	}
	m.releaseLocked()

	for s, data := range m.streamData() {
		buf, err := m.createBuffer(device, fmt.Sprintf("%s.%s", m.label, s), wgpu.BufferUsageVertex, data)
		if err != nil {
			m.releaseLocked()
			return err
		}
		m.streams[s] = buf
	}
	if len(m.indices) > 0 {
		buf, err := m.createBuffer(device, m.label+".indices", wgpu.BufferUsageIndex, common.SliceToBytes(m.indices))
		if err != nil {
			m.releaseLocked()
			return err
		}
		m.index = buf
	}
	m.device = device
	return nil
}

// streamData views every present vertex stream as tightly packed bytes.
func (m *triangleMesh) streamData() map[pipelang.Semantic][]byte {
	out := make(map[pipelang.Semantic][]byte, 3)
	if len(m.positions) > 0 {
		out[pipelang.SemanticPosition] = common.SliceToBytes(m.positions)
	}
	if len(m.normals) > 0 {
		out[pipelang.SemanticNormal] = common.SliceToBytes(m.normals)
	}
	if len(m.texcoords) > 0 {
		out[pipelang.SemanticTexCoord0] = common.SliceToBytes(m.texcoords)
	}
	return out
}

func (m *triangleMesh) createBuffer(device rhi.Device, label string, usage wgpu.BufferUsage, data []byte) (rhi.Buffer, error) {
	buf, err := device.CreateBuffer(&rhi.BufferDesc{Label: label, Size: uint64(len(data)), Usage: usage | wgpu.BufferUsageCopyDst})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := device.WriteBuffer(buf, 0, data); err != nil {
		buf.Release()
		return nil, fmt.Errorf("write %s: %w", label, err)
	}
	return buf, nil
}

func (m *triangleMesh) BindVertexInput(rc rhi.RenderContext, attribs *pipelang.VertexAttribs) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	bound := 0
	for slot, loc := range attribs.Locations() {
		s, _ := attribs.Semantic(loc)
		buf, ok := m.streams[s]
		if !ok {
			log.Printf("shape: mesh %q has no %s stream for location %d, skipping", m.label, s, loc)
			continue
		}
		rc.BindVertexBuffer(uint32(slot), buf, 0)
		bound++
	}
	return bound
}

func (m *triangleMesh) Draw(rc rhi.RenderContext) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index != nil {
		rc.BindIndexBuffer(m.index, wgpu.IndexFormatUint32, 0)
		rc.DrawIndexed(uint32(len(m.indices)), 1, 0, 0, 0)
		return
	}
	rc.Draw(uint32(len(m.positions)), 1, 0, 0)
}

func (m *triangleMesh) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *triangleMesh) releaseLocked() {
	for s, buf := range m.streams {
		buf.Release()
		delete(m.streams, s)
	}
	if m.index != nil {
		m.index.Release()
		m.index = nil
	}
	m.device = nil
}
