package loader

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/scene"
	"github.com/Carmen-Shannon/foreground/engine/shape"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleDocument returns a document with one red triangle below a translated root node.
func triangleDocument() *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	metallic, roughness := 0.25, 0.75
	doc.Materials = []*gltf.Material{{
		Name: "red",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 0, 0, 1},
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
			Material:   gltf.Index(0),
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Children: []int{1}, Translation: [3]float64{0, 0, -5}},
		{Name: "leaf", Mesh: gltf.Index(0), Scale: [3]float64{2, 2, 2}},
	}
	doc.Scenes[0].Nodes = []int{0}
	return doc
}

func newTestLoader(t *testing.T) (Loader, scene.SceneNode) {
	t.Helper()
	l := NewLoader(bootstrap.NewContext(), BackendTypeGLTF)
	t.Cleanup(l.Release)
	return l, scene.NewScene("test").RootNode()
}

func TestImportBuildsHierarchy(t *testing.T) {
	l, root := newTestLoader(t)

	inst, err := l.Import("tri", triangleDocument(), "", root)
	require.NoError(t, err)
	assert.Equal(t, "tri", inst.Name())

	gltfRoot := inst.FindChild("root")
	require.NotNil(t, gltfRoot)
	assert.Equal(t, mgl32.Vec3{0, 0, -5}, gltfRoot.Position())

	leaf := gltfRoot.FindChild("leaf")
	require.NotNil(t, leaf)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, leaf.Scale())
	require.Len(t, leaf.Primitives(), 1)

	p := leaf.Primitives()[0]
	mesh, ok := p.Shape().(shape.TriangleMesh)
	require.True(t, ok)
	assert.Equal(t, uint32(3), mesh.IndexCount())
	assert.Equal(t, "tri_p0", mesh.Label())
	mat, ok := p.Material().(material.BasicMaterial)
	require.True(t, ok)
	assert.Equal(t, "red", mat.Name())
	assert.Equal(t, [4]float32{1, 0, 0, 1}, mat.BaseColor())
	assert.InDelta(t, 0.25, mat.Metallic(), 1e-6)
	assert.InDelta(t, 0.75, mat.Roughness(), 1e-6)
}

func TestInstancesSharePrimitives(t *testing.T) {
	l, root := newTestLoader(t)
	doc := triangleDocument()

	a, err := l.Import("tri", doc, "", root)
	require.NoError(t, err)
	b, err := l.Import("tri", doc, "", root)
	require.NoError(t, err)

	pa := a.FindChild("root").FindChild("leaf").Primitives()[0]
	pb := b.FindChild("root").FindChild("leaf").Primitives()[0]
	assert.Same(t, pa, pb)
	assert.Equal(t, 3, pa.RefCount())

	require.True(t, l.Evict("tri"))
	assert.False(t, l.Evict("tri"))
	assert.Nil(t, l.Get("tri"))
	assert.True(t, pa.Alive())

	require.NoError(t, root.RemoveChildNode(a))
	require.NoError(t, root.RemoveChildNode(b))
	assert.False(t, pa.Alive())
}

func TestLoadBinaryFromDisk(t *testing.T) {
	l, root := newTestLoader(t)
	path := filepath.Join(t.TempDir(), "tri.glb")
	require.NoError(t, gltf.SaveBinary(triangleDocument(), path))

	_, err := l.Load(path, root)
	require.NoError(t, err)
	_, err = l.Load(path, root)
	require.NoError(t, err)

	assert.Equal(t, []string{path}, l.Names())
	s := l.Get(path)
	require.NotNil(t, s)
	assert.Equal(t, "tri.glb", s.Name)
	assert.Equal(t, 1, s.PrimitiveCount())
	assert.Len(t, root.Children(), 2)
}

func TestLoadReader(t *testing.T) {
	l, root := newTestLoader(t)
	path := filepath.Join(t.TempDir(), "tri.glb")
	require.NoError(t, gltf.SaveBinary(triangleDocument(), path))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	inst, err := l.LoadReader("stream", f, root)
	require.NoError(t, err)
	assert.Equal(t, "stream", inst.Name())
	assert.NotNil(t, l.Get("stream"))
}

func TestLoadErrors(t *testing.T) {
	l, root := newTestLoader(t)

	_, err := l.Load("model.fbx", root)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = l.Load(filepath.Join(t.TempDir(), "missing.gltf"), root)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, l.Names())

	l.Release()
	_, err = l.Import("tri", triangleDocument(), "", root)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestUnconvertiblePrimitivesAreSkipped(t *testing.T) {
	l, root := newTestLoader(t)
	doc := triangleDocument()
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}})
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	doc.Meshes[0].Primitives = append(doc.Meshes[0].Primitives,
		&gltf.Primitive{Attributes: map[string]int{gltf.NORMAL: nrm}},
		&gltf.Primitive{Attributes: map[string]int{gltf.POSITION: pos}, Mode: gltf.PrimitiveTriangleFan},
		&gltf.Primitive{Attributes: map[string]int{gltf.POSITION: pos}},
	)

	_, err := l.Import("tri", doc, "", root)
	require.NoError(t, err)
	s := l.Get("tri")
	require.Len(t, s.Meshes, 1)
	require.Len(t, s.Meshes[0], 2)

	// The primitive without a material gets the shared default.
	assert.Len(t, s.Materials, 2)
	assert.Equal(t, "default", s.Meshes[0][1].Material().Name())
}

func TestMatrixNodeIsDecomposed(t *testing.T) {
	l, root := newTestLoader(t)
	doc := triangleDocument()
	doc.Nodes[0].Translation = [3]float64{}
	doc.Nodes[0].Matrix = [16]float64{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 1, 2, 3, 1}

	inst, err := l.Import("tri", doc, "", root)
	require.NoError(t, err)
	n := inst.FindChild("root")
	assert.True(t, n.Position().ApproxEqual(mgl32.Vec3{1, 2, 3}))
	assert.True(t, n.Scale().ApproxEqual(mgl32.Vec3{2, 2, 2}))
}

func TestDefaultSceneMissingUsesParentlessNodes(t *testing.T) {
	doc := triangleDocument()
	doc.Scene = nil
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "loose"})
	assert.Equal(t, []int{0, 2}, rootNodes(doc))
}

func TestEmbeddedImageBecomesBaseColorTexture(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	doc := triangleDocument()
	doc.Images = []*gltf.Image{{
		Name:     "albedo",
		MimeType: "image/png",
		URI:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(0)}}
	doc.Materials[0].PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: 0}

	l, root := newTestLoader(t)
	_, err := l.Import("textured", doc, "", root)
	require.NoError(t, err)

	tex := l.Get("textured").Materials[0].BaseColorTexture()
	require.NotNil(t, tex)
	assert.Equal(t, "albedo", tex.Name)
	assert.Equal(t, buf.Bytes(), tex.Data)
	staging, err := tex.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), staging.Width)
}

func TestExternalImageResolvesAgainstDirectory(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Images = []*gltf.Image{{URI: "textures/wood.png"}}
	images := extractImages(doc, "/assets")
	require.Len(t, images, 1)
	assert.Equal(t, filepath.Join("/assets", "textures", "wood.png"), images[0].Path)

	// A stream import has no directory to resolve against.
	assert.Nil(t, extractImages(doc, "")[0])
}

func TestGenerateNormals(t *testing.T) {
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	normals := generateNormals(positions, nil, wgpu.PrimitiveTopologyTriangleList)
	for _, n := range normals {
		assert.True(t, n.ApproxEqual(mgl32.Vec3{0, 0, 1}))
	}

	lines := generateNormals(positions, nil, wgpu.PrimitiveTopologyLineList)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, lines[0])
}
