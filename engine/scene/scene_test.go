package scene

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/Carmen-Shannon/foreground/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	scene    Scene
	registry *primitive.Registry
	camera   SceneNode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := NewScene("fixture")
	cam := s.RootNode().CreateChildNode(WithNodeName("camera"), WithCamera(camera.NewCamera(camera.WithFar(100))))
	return &fixture{scene: s, registry: primitive.NewRegistry(), camera: cam}
}

func (f *fixture) cube(parent SceneNode, name string, at mgl32.Vec3) SceneNode {
	p := f.registry.Create(shape.Cube(1), material.NewBasicMaterial())
	n := parent.CreateChildNode(WithNodeName(name), WithPosition(at), WithPrimitives(p))
	p.Release()
	return n
}

func names(nodes []SceneNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

func TestSceneViewRequiresCamera(t *testing.T) {
	s := NewScene("nocam")
	_, err := NewSceneView(s.RootNode())
	assert.ErrorIs(t, err, ErrNoCamera)
}

func TestFrustumCulling(t *testing.T) {
	f := newFixture(t)
	front := f.cube(f.scene.RootNode(), "front", mgl32.Vec3{0, 0, -10})
	f.cube(f.scene.RootNode(), "behind", mgl32.Vec3{0, 0, 10})
	f.cube(front, "nested", mgl32.Vec3{0, 0, -5})

	v, err := NewSceneView(f.camera)
	require.NoError(t, err)
	defer v.Release()
	assert.Equal(t, CullingModeFrustum, v.CullingMode())

	v.PrepareToRender()
	visible := names(v.VisibleNodes())
	assert.Contains(t, visible, "front")
	assert.Contains(t, visible, "nested")
	assert.NotContains(t, visible, "behind")
	require.Len(t, v.VisiblePrimitives(), 2)
	require.Len(t, v.VisibleModelMatrices(), 2)
	assertVec(t, mgl32.Vec3{0, 0, -10}, common.TransformPoint(v.VisibleModelMatrices()[0], mgl32.Vec3{}))
	assertVec(t, mgl32.Vec3{0, 0, -15}, common.TransformPoint(v.VisibleModelMatrices()[1], mgl32.Vec3{}))
	v.FrameFinished()

	// A mutation after the last frame is picked up by the next one.
	f.scene.FindNode("behind").SetPosition(mgl32.Vec3{0, 0, -20})
	v.PrepareToRender()
	assert.Contains(t, names(v.VisibleNodes()), "behind")
	assert.Len(t, v.VisiblePrimitives(), 3)
}

func TestCullingModeNoneIsDepthFirst(t *testing.T) {
	f := newFixture(t)
	a := f.cube(f.scene.RootNode(), "a", mgl32.Vec3{0, 0, 50})
	f.cube(a, "a1", mgl32.Vec3{1, 0, 0})
	f.cube(f.scene.RootNode(), "b", mgl32.Vec3{0, 0, -5})
	f.cube(a, "a2", mgl32.Vec3{2, 0, 0})

	v, err := NewSceneView(f.camera, WithCullingMode(CullingModeNone))
	require.NoError(t, err)
	v.PrepareToRender()
	assert.Equal(t, []string{"root", "camera", "a", "a1", "a2", "b"}, names(v.VisibleNodes()))
	assert.Len(t, v.VisiblePrimitives(), 4)
}

func TestFrustumResultsFollowTreeOrder(t *testing.T) {
	f := newFixture(t)
	for i := range 20 {
		// Spread the nodes over several octree cells.
		f.cube(f.scene.RootNode(), fmt.Sprintf("n%02d", i), mgl32.Vec3{float32(i%5) - 2, float32(i/5) - 2, -float32(5 + 4*(i%3))})
	}
	v, err := NewSceneView(f.camera)
	require.NoError(t, err)
	v.PrepareToRender()

	got := names(v.VisibleNodes())
	var expected []string
	f.scene.Walk(func(n SceneNode) bool {
		for _, name := range got {
			if name == n.Name() {
				expected = append(expected, name)
			}
		}
		return true
	})
	assert.Equal(t, expected, got)
	assert.Len(t, v.VisiblePrimitives(), 20)
}

func TestViewMatrices(t *testing.T) {
	f := newFixture(t)
	f.camera.SetPosition(mgl32.Vec3{0, 2, 5})
	v, err := NewSceneView(f.camera)
	require.NoError(t, err)
	v.PrepareToRender()

	assertVec(t, mgl32.Vec3{0, 2, 5}, v.CameraPosition())
	assertVec(t, mgl32.Vec3{0, -2, -5}, common.TransformPoint(v.View(), mgl32.Vec3{}))
	assert.True(t, v.Projection().Mul4(v.View()).ApproxEqualThreshold(v.ViewProjection(), eps))
	assert.True(t, v.Projection().Mul4(v.InvProjection()).ApproxEqualThreshold(mgl32.Ident4(), eps))
}

func TestFrameFinishedKeepsCapacity(t *testing.T) {
	f := newFixture(t)
	f.cube(f.scene.RootNode(), "a", mgl32.Vec3{0, 0, -5})
	v, err := NewSceneView(f.camera)
	require.NoError(t, err)

	v.PrepareToRender()
	require.NotEmpty(t, v.VisiblePrimitives())
	v.FrameFinished()
	assert.Empty(t, v.VisibleNodes())
	assert.Empty(t, v.VisiblePrimitives())
	assert.Empty(t, v.VisibleModelMatrices())
	assert.Positive(t, cap(v.VisiblePrimitives()))
}

func TestViewPinsCameraNode(t *testing.T) {
	f := newFixture(t)
	v, err := NewSceneView(f.camera)
	require.NoError(t, err)
	assert.True(t, f.camera.Pinned())
	assert.ErrorIs(t, f.scene.RootNode().RemoveChildNode(f.camera), ErrNodePinned)

	v.Release()
	v.Release()
	assert.False(t, f.camera.Pinned())
	require.NoError(t, f.scene.RootNode().RemoveChildNode(f.camera))
}

func TestCollectLightsCapsPerTypeInTreeOrder(t *testing.T) {
	s := NewScene("lights")
	for i := range light.MaxLightsPerType + 1 {
		parent, at := s.RootNode(), mgl32.Vec3{float32(i), 0, 0}
		if i%2 == 1 {
			parent, at = s.RootNode().Children()[len(s.RootNode().Children())-1], mgl32.Vec3{1, 0, 0}
		}
		parent.CreateChildNode(
			WithPosition(at),
			WithLights(light.NewLight(light.LightTypePoint)),
		)
	}
	s.RootNode().CreateChildNode(WithLights(light.NewLight(light.LightTypeDirectional)))
	s.RootNode().CreateChildNode(WithLights(light.NewLight(light.LightTypePoint, light.WithEnabled(false))))

	var list light.List
	s.CollectLights(&list)
	point, directional, spot := list.Counts()
	assert.Equal(t, light.MaxLightsPerType, point)
	assert.Equal(t, 1, directional)
	assert.Equal(t, 0, spot)
	assert.Equal(t, 1, list.Dropped())

	// Depth-first order matches creation order here, so the last one created is the one dropped.
	for i := range light.MaxLightsPerType {
		assert.Equal(t, float32(i), list.Point[i].Position[0])
	}
}

func TestPick(t *testing.T) {
	f := newFixture(t)
	f.cube(f.scene.RootNode(), "near", mgl32.Vec3{0, 0, -3})
	f.cube(f.scene.RootNode(), "far", mgl32.Vec3{0, 0, -8})

	hit, dist := f.scene.Pick(common.Ray{Direction: common.Forward})
	require.NotNil(t, hit)
	assert.Equal(t, "near", hit.Name())
	assert.InDelta(t, 2.5, dist, eps)

	miss, _ := f.scene.Pick(common.Ray{Direction: common.Up})
	assert.Nil(t, miss)
}
