package light

import (
	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowMapResolution is the width and height in texels of the shadow depth pass.
const ShadowMapResolution = 2048

// DefaultShadowHalfExtent is the default orthographic half-extent (in world units)
// used for the directional light shadow frustum when no explicit shadow view is set.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultShadowNear is the default near plane for the directional light's
// orthographic shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane for the directional light's
// orthographic shadow projection.
const DefaultShadowFar float32 = 200.0

// DefaultShadowBias is the constant depth bias applied to shadow comparisons
// to reduce shadow acne artifacts.
const DefaultShadowBias float32 = 0.001

// DefaultShadowNormalBiasScale is the multiplier applied to the shadow map
// texel world-size to compute the normal-offset bias.
const DefaultShadowNormalBiasScale float32 = 3.0

// DirectionalShadowViewProjection builds an orthographic view-projection for a directional light,
// centered on center and looking along the light direction.
//
// Parameters:
//   - lightDir: normalized direction the light points (from light toward scene)
//   - center: world-space center of the shadow frustum, typically the camera position
//   - halfExtent: half-size of the orthographic frustum in world units
//   - near, far: clip distances along the light direction
//
// Returns:
//   - mgl32.Mat4: the light view-projection matrix
func DirectionalShadowViewProjection(lightDir, center mgl32.Vec3, halfExtent, near, far float32) mgl32.Mat4 {
	eye := center.Sub(lightDir.Mul(far * 0.5))

	// Light pointing nearly straight up or down needs another up vector.
	up := common.Up
	if lightDir.Y() > 0.99 || lightDir.Y() < -0.99 {
		up = common.Right
	}

	view := mgl32.LookAtV(eye, center, up)
	proj := common.Ortho(-halfExtent, halfExtent, -halfExtent, halfExtent, near, far)
	return proj.Mul4(view)
}

// NewShadowData fills the lighting-pass shadow constants for a light view-projection.
//
// Parameters:
//   - lightVP: the shadow view-projection
//   - halfExtent: orthographic half extent used for the normal bias
//   - resolution: shadow map resolution in texels
//
// Returns:
//   - GPUShadowData: the packed shadow constants
func NewShadowData(lightVP mgl32.Mat4, halfExtent float32, resolution int) GPUShadowData {
	s := GPUShadowData{
		LightVP:   lightVP,
		TexelSize: [2]float32{1 / float32(resolution), 1 / float32(resolution)},
		Bias:      DefaultShadowBias,
	}
	s.ComputeNormalBias(halfExtent, DefaultShadowNormalBiasScale, resolution)
	return s
}
