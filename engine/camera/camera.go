package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultFovY is the default vertical field of view, 59 degrees in radians.
const DefaultFovY = float32(59.0 * math.Pi / 180.0)

type cameraImpl struct {
	mu *sync.Mutex

	orthographic bool

	fov    float32
	aspect float32
	near   float32
	far    float32

	magX float32
	magY float32

	matrixValid             bool
	projectionMatrix        mgl32.Mat4
	inverseProjectionMatrix mgl32.Mat4
}

// Camera defines the projection of a view. The view matrix comes from the scene node that holds the camera.
// The projection is cached and recomputed only after a parameter changes.
type Camera interface {
	// Orthographic reports whether the camera uses an orthographic projection.
	//
	// Returns:
	//   - bool: true for orthographic, false for perspective
	Orthographic() bool

	// Fov returns the vertical field of view in radians. Perspective only.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height). Perspective only.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Mag returns the orthographic half extents.
	//
	// Returns:
	//   - x, y: half width and half height of the view volume
	Mag() (x, y float32)

	// ProjectionMatrix returns the projection matrix in WebGPU clip space (depth in [0, 1]).
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// InverseProjectionMatrix returns the inverse of ProjectionMatrix.
	// Used by screen-space passes to reconstruct view-space positions from depth.
	//
	// Returns:
	//   - mgl32.Mat4: the inverse projection matrix
	InverseProjectionMatrix() mgl32.Mat4

	// Frustum builds the world-space frustum for a view matrix.
	//
	// Parameters:
	//   - view: world-to-view matrix of the node holding the camera
	//
	// Returns:
	//   - common.Frustum: the frustum
	Frustum(view mgl32.Mat4) common.Frustum

	// SetOrthographic switches between orthographic and perspective projection.
	//
	// Parameters:
	//   - ortho: true for orthographic
	SetOrthographic(ortho bool)

	// SetFov sets the vertical field of view in radians.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height).
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far clipping plane distance.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)

	// SetMag sets the orthographic half extents.
	//
	// Parameters:
	//   - x, y: half width and half height of the view volume
	SetMag(x, y float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new perspective Camera with a 59 degree vertical field of view,
// aspect 1, near 0.1 and far 1000.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		fov:    DefaultFovY,
		aspect: 1.0,
		near:   0.1,
		far:    1000.0,
		magX:   1.0,
		magY:   1.0,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Orthographic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orthographic
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Mag() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.magX, c.magY
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
	return c.projectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) Frustum(view mgl32.Mat4) common.Frustum {
	return common.ExtractFrustumFromMatrix(c.ProjectionMatrix().Mul4(view))
}

func (c *cameraImpl) SetOrthographic(ortho bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orthographic = ortho
	c.matrixValid = false
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.matrixValid = false
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.matrixValid = false
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.matrixValid = false
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.matrixValid = false
}

func (c *cameraImpl) SetMag(x, y float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.magX, c.magY = x, y
	c.matrixValid = false
}

// updateMatrices recomputes the projection and its inverse when a parameter changed since the last call.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	if c.matrixValid {
		return
	}
	if c.orthographic {
		c.projectionMatrix = common.Ortho(-c.magX, c.magX, -c.magY, c.magY, c.near, c.far)
	} else {
		c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	}
	c.inverseProjectionMatrix = c.projectionMatrix.Inv()
	c.matrixValid = true
}
