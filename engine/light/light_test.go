package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLightDefaults(t *testing.T) {
	p := NewLight(LightTypePoint)
	assert.Equal(t, [3]float32{1, 1, 1}, p.Color())
	assert.True(t, p.Enabled())
	assert.False(t, p.CastsShadows())

	d := NewLight(LightTypeDirectional, WithIntensity(3), WithColor(1, 0.5, 0))
	assert.True(t, d.CastsShadows())
	assert.Equal(t, float32(3), d.Intensity())
	assert.Equal(t, [3]float32{1, 0.5, 0}, d.Color())
}

func TestListCapsEachTypeAtOneHundred(t *testing.T) {
	var list List
	point := NewLight(LightTypePoint)
	spot := NewLight(LightTypeSpot)

	for i := range MaxLightsPerType + 1 {
		stored := list.Add(point, mgl32.Translate3D(float32(i), 0, 0))
		assert.Equal(t, i < MaxLightsPerType, stored, "light %d", i)
	}
	require.True(t, list.Add(spot, mgl32.Ident4()))

	p, d, s := list.Counts()
	assert.Equal(t, MaxLightsPerType, p)
	assert.Equal(t, 0, d)
	assert.Equal(t, 1, s)
	assert.Equal(t, 1, list.Dropped())

	// The first hundred are kept in collection order.
	assert.Equal(t, [3]float32{99, 0, 0}, list.Point[99].Position)

	list.Reset()
	p, _, _ = list.Counts()
	assert.Zero(t, p)
	assert.Zero(t, list.Dropped())
}

func TestListSkipsDisabledLights(t *testing.T) {
	var list List
	assert.False(t, list.Add(NewLight(LightTypePoint, WithEnabled(false)), mgl32.Ident4()))
	assert.Zero(t, list.Dropped())
}

func TestToGPULightUsesNodeTransform(t *testing.T) {
	world := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(90)))
	g := ToGPULight(NewLight(LightTypeSpot), world)

	assert.Equal(t, uint32(LightTypeSpot), g.LightType)
	assert.InDelta(t, 1, g.Position[0], 1e-5)
	assert.InDelta(t, 2, g.Position[1], 1e-5)
	assert.InDelta(t, 3, g.Position[2], 1e-5)

	// -Z rotated 90 degrees about +Y points down -X.
	assert.InDelta(t, -1, g.Direction[0], 1e-5)
	assert.InDelta(t, 0, g.Direction[2], 1e-5)
}

func TestListMarshalLayout(t *testing.T) {
	var list List
	list.Add(NewLight(LightTypePoint), mgl32.Ident4())
	list.Add(NewLight(LightTypeDirectional, WithIntensity(7)), mgl32.Ident4())

	buf := list.Marshal()
	require.Len(t, buf, int(ListBufferSize))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[8:12]))

	lightSize := (&GPULight{}).Size()
	require.Equal(t, 64, lightSize)
	dirOffset := 16 + MaxLightsPerType*lightSize
	assert.Equal(t, uint32(LightTypeDirectional), binary.LittleEndian.Uint32(buf[dirOffset+12:]))
	assert.Equal(t, float32(7), math.Float32frombits(binary.LittleEndian.Uint32(buf[dirOffset+28:])))
}

func TestDirectionalShadowViewProjectionCentersOnTarget(t *testing.T) {
	center := mgl32.Vec3{5, 0, -5}
	vp := DirectionalShadowViewProjection(mgl32.Vec3{0, -1, 0}, center, DefaultShadowHalfExtent, DefaultShadowNear, DefaultShadowFar)

	clip := vp.Mul4x1(center.Vec4(1))
	assert.InDelta(t, 0, clip.X(), 1e-4)
	assert.InDelta(t, 0, clip.Y(), 1e-4)
	assert.Greater(t, clip.Z(), float32(0))
	assert.Less(t, clip.Z(), float32(1))

	f := common.ExtractFrustumFromMatrix(vp)
	assert.True(t, f.ContainsPoint(center.Add(mgl32.Vec3{30, 0, 30})))
	assert.False(t, f.ContainsPoint(center.Add(mgl32.Vec3{50, 0, 0})))
}

func TestShadowDataNormalBias(t *testing.T) {
	s := NewShadowData(mgl32.Ident4(), 40, 2048)
	assert.InDelta(t, 2*40.0/2048*3, s.NormalBias, 1e-6)
	assert.Len(t, s.Marshal(), s.Size())
}
