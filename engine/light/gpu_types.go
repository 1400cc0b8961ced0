package light

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxLightsPerType is the capacity of each per-type light array. Lights collected beyond it are
// dropped without error, in collection order.
const MaxLightsPerType = 100

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct of the lighting pass.
// Size: 64 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position     [3]float32 // offset  0: world-space position (point/spot) or unused (directional)
	LightType    uint32     // offset 12: 0 = point, 1 = directional, 2 = spot
	Color        [3]float32 // offset 16: RGB color
	Intensity    float32    // offset 28: scalar multiplier
	Direction    [3]float32 // offset 32: normalized direction (directional/spot) or unused (point)
	LightRange   float32    // offset 44: attenuation cutoff distance
	InnerCone    float32    // offset 48: cos(inner half-angle) for spot
	OuterCone    float32    // offset 52: cos(outer half-angle) for spot
	CastsShadows uint32     // offset 56: 1 = casts shadows, 0 = does not
	_pad         uint32     // offset 60: padding to 64-byte alignment
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight into dst, which must hold at least 64 bytes.
//
// Parameters:
//   - dst: destination buffer
func (g *GPULight) Marshal(dst []byte) {
	putVec3 := func(off int, v [3]float32) {
		for i := range 3 {
			binary.LittleEndian.PutUint32(dst[off+i*4:], math.Float32bits(v[i]))
		}
	}
	putVec3(0, g.Position)
	binary.LittleEndian.PutUint32(dst[12:16], g.LightType)
	putVec3(16, g.Color)
	binary.LittleEndian.PutUint32(dst[28:32], math.Float32bits(g.Intensity))
	putVec3(32, g.Direction)
	binary.LittleEndian.PutUint32(dst[44:48], math.Float32bits(g.LightRange))
	binary.LittleEndian.PutUint32(dst[48:52], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(dst[52:56], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint32(dst[56:60], g.CastsShadows)
	binary.LittleEndian.PutUint32(dst[60:64], 0)
}

// ToGPULight places a Light at a node's world transform.
//
// Parameters:
//   - l: the Light to convert
//   - world: world transform of the node holding the light
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light, world mgl32.Mat4) GPULight {
	shadowVal := uint32(0)
	if l.CastsShadows() {
		shadowVal = 1
	}
	dir := common.TransformDirection(world, common.Forward)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	return GPULight{
		Position:     common.TransformPoint(world, mgl32.Vec3{}),
		LightType:    uint32(l.Type()),
		Color:        l.Color(),
		Intensity:    l.Intensity(),
		Direction:    dir,
		LightRange:   l.Range(),
		InnerCone:    l.InnerCone(),
		OuterCone:    l.OuterCone(),
		CastsShadows: shadowVal,
	}
}

// GPULightHeader is the header of the light storage buffer.
// Size: 16 bytes.
type GPULightHeader struct {
	PointCount       uint32 // offset 0
	DirectionalCount uint32 // offset 4
	SpotCount        uint32 // offset 8
	_pad             uint32 // offset 12
}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// ListBufferSize is the byte size of a marshaled List: the header followed by three full arrays.
var ListBufferSize = uint64((&GPULightHeader{}).Size() + 3*MaxLightsPerType*(&GPULight{}).Size())

// List holds the lights collected for one frame in fixed-capacity arrays, one per light type.
// The zero value is an empty list. A List is not safe for concurrent use.
type List struct {
	Point       [MaxLightsPerType]GPULight
	Directional [MaxLightsPerType]GPULight
	Spot        [MaxLightsPerType]GPULight

	pointCount       int
	directionalCount int
	spotCount        int

	// first directional light collected, for the fallback shadow view
	firstDirectional *GPULight

	dropped int
}

// Reset empties the list for a new frame.
func (l *List) Reset() {
	l.pointCount, l.directionalCount, l.spotCount = 0, 0, 0
	l.firstDirectional = nil
	l.dropped = 0
}

// Add appends a light placed at world. Disabled lights are skipped. When the array for the light's type is
// full the light is dropped silently and counted.
//
// Parameters:
//   - light: the light component
//   - world: world transform of the node holding it
//
// Returns:
//   - bool: true if the light was stored
func (l *List) Add(light Light, world mgl32.Mat4) bool {
	if !light.Enabled() {
		return false
	}

	var (
		arr   *[MaxLightsPerType]GPULight
		count *int
	)
	switch light.Type() {
	case LightTypePoint:
		arr, count = &l.Point, &l.pointCount
	case LightTypeDirectional:
		arr, count = &l.Directional, &l.directionalCount
	case LightTypeSpot:
		arr, count = &l.Spot, &l.spotCount
	default:
		return false
	}

	if *count >= MaxLightsPerType {
		l.dropped++
		return false
	}
	arr[*count] = ToGPULight(light, world)
	if light.Type() == LightTypeDirectional && l.firstDirectional == nil {
		l.firstDirectional = &arr[*count]
	}
	*count++
	return true
}

// Counts returns the number of stored lights per type.
//
// Returns:
//   - point, directional, spot: stored light counts
func (l *List) Counts() (point, directional, spot int) {
	return l.pointCount, l.directionalCount, l.spotCount
}

// Dropped returns the number of lights dropped this frame because their type's array was full.
//
// Returns:
//   - int: dropped light count
func (l *List) Dropped() int {
	return l.dropped
}

// PrimaryDirectional returns the first directional light collected this frame.
//
// Returns:
//   - GPULight: the light
//   - bool: false if the frame has no directional light
func (l *List) PrimaryDirectional() (GPULight, bool) {
	if l.firstDirectional == nil {
		return GPULight{}, false
	}
	return *l.firstDirectional, true
}

// Marshal serializes the list into a buffer of ListBufferSize bytes:
//
//	[GPULightHeader] [point × 100] [directional × 100] [spot × 100]
//
// Unused slots are zero.
//
// Returns:
//   - []byte: the marshaled buffer ready for GPU upload
func (l *List) Marshal() []byte {
	buf := make([]byte, ListBufferSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(l.pointCount))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(l.directionalCount))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(l.spotCount))

	lightSize := (&GPULight{}).Size()
	offset := (&GPULightHeader{}).Size()
	for _, group := range []struct {
		arr   *[MaxLightsPerType]GPULight
		count int
	}{
		{&l.Point, l.pointCount},
		{&l.Directional, l.directionalCount},
		{&l.Spot, l.spotCount},
	} {
		for i := range group.count {
			group.arr[i].Marshal(buf[offset+i*lightSize:])
		}
		offset += MaxLightsPerType * lightSize
	}
	return buf
}

// GPUShadowData is the GPU-aligned representation of directional shadow data read by the lighting pass.
// Size: 80 bytes (std430 / WGSL aligned).
//
// Layout:
//
//	mat4x4<f32> light_vp       (64 bytes, offset 0)
//	vec2<f32>   texel_size     ( 8 bytes, offset 64)
//	f32         bias           ( 4 bytes, offset 72)
//	f32         normal_bias    ( 4 bytes, offset 76)
type GPUShadowData struct {
	LightVP    [16]float32 // orthographic view-projection from light's perspective
	TexelSize  [2]float32  // 1.0 / shadow_map_resolution for PCF offset calculations
	Bias       float32     // depth comparison bias to reduce shadow acne
	NormalBias float32     // world-space normal-offset distance for shadow lookup
}

// Size returns the size of the GPUShadowData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (s *GPUShadowData) Size() int {
	return int(unsafe.Sizeof(*s))
}

// ComputeNormalBias derives the world-space normal-offset bias from the shadow
// map parameters and stores it in the receiver's NormalBias field.
//
// Parameters:
//   - halfExtent: orthographic frustum half-size in world units
//   - scale: multiplier on the per-texel world size (typically 2.0 to 4.0)
//   - resolution: shadow map resolution in texels (width and height)
func (s *GPUShadowData) ComputeNormalBias(halfExtent, scale float32, resolution int) {
	texelWorldSize := 2.0 * halfExtent / float32(resolution)
	s.NormalBias = texelWorldSize * scale
}

// Marshal serializes the GPUShadowData struct into a byte buffer suitable for
// GPU uniform upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (s *GPUShadowData) Marshal() []byte {
	buf := make([]byte, 80)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(s.LightVP[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(s.TexelSize[0]))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(s.TexelSize[1]))
	binary.LittleEndian.PutUint32(buf[72:76], math.Float32bits(s.Bias))
	binary.LittleEndian.PutUint32(buf[76:80], math.Float32bits(s.NormalBias))
	return buf
}

// GPUShadowUniform is the ShadowCommon uniform bound by the depth-only pass.
// Size: 64 bytes (mat4x4<f32>).
type GPUShadowUniform struct {
	LightVP [16]float32 // view-projection of the shadow view
}

// Size returns the size of the GPUShadowUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (u *GPUShadowUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPUShadowUniform struct into a byte buffer suitable for
// GPU uniform upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (u *GPUShadowUniform) Marshal() []byte {
	buf := make([]byte, 64)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(u.LightVP[i]))
	}
	return buf
}
