package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Controls is the input a FlyController reads each tick. Implementations update their values atomically
// from the input thread.
type Controls interface {
	// Axes returns the strafe (x, right positive) and move (y, forward positive) axes in [-1, 1].
	Axes() (x, y float32)

	// ConsumeLook returns the look deltas accumulated since the last call and resets them.
	// Yaw is positive to the right, pitch is positive downward (screen-space mouse deltas).
	ConsumeLook() (yaw, pitch float32)
}

// Mover is the transform surface a FlyController drives. Scene nodes implement it.
type Mover interface {
	WorldRotation() mgl32.Quat
	Rotate(delta mgl32.Quat, space common.TransformSpace)
	Translate(delta mgl32.Vec3, space common.TransformSpace)
}

// FlyController moves a node like a free-flying camera: movement stays in the horizontal plane,
// yaw turns around world up and pitch turns around the horizontal right axis.
type FlyController interface {
	// Tick applies the controls to target for one logic step.
	//
	// Parameters:
	//   - target: the node to move
	//   - elapsed: step duration in seconds
	Tick(target Mover, elapsed float64)

	// MoveSpeed returns the movement speed in units per second.
	//
	// Returns:
	//   - float32: the movement speed
	MoveSpeed() float32

	// LookSensitivity returns the radians turned per unit of look delta.
	//
	// Returns:
	//   - float32: the look sensitivity
	LookSensitivity() float32
}

type flyControllerImpl struct {
	mu *sync.Mutex

	controls        Controls
	moveSpeed       float32
	lookSensitivity float32
}

var _ FlyController = &flyControllerImpl{}

// NewFlyController creates a fly controller reading from controls.
//
// Parameters:
//   - controls: the input source
//   - options: functional options to configure the controller
//
// Returns:
//   - FlyController: the newly created controller
func NewFlyController(controls Controls, options ...FlyControllerOption) FlyController {
	fc := &flyControllerImpl{
		mu:              &sync.Mutex{},
		controls:        controls,
		moveSpeed:       4.0,
		lookSensitivity: 0.005,
	}
	for _, option := range options {
		option(fc)
	}
	return fc
}

func (fc *flyControllerImpl) MoveSpeed() float32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.moveSpeed
}

func (fc *flyControllerImpl) LookSensitivity() float32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.lookSensitivity
}

func (fc *flyControllerImpl) Tick(target Mover, elapsed float64) {
	fc.mu.Lock()
	moveSpeed, sensitivity := fc.moveSpeed, fc.lookSensitivity
	fc.mu.Unlock()

	lookX, lookY := fc.controls.ConsumeLook()
	axisX, axisY := fc.controls.Axes()

	dYaw := -sensitivity * lookX
	dPitch := -sensitivity * lookY

	rotation := target.WorldRotation()
	look := rotation.Rotate(common.Forward)
	up := rotation.Rotate(common.Up)

	forward, right := horizontalAxes(look, up)

	yaw := mgl32.QuatRotate(dYaw, common.Up)
	pitch := mgl32.QuatRotate(dPitch, right)
	delta := yaw.Mul(pitch)

	// Drop the pitch when it would roll the camera past the pole.
	if delta.Rotate(up).Dot(common.Up) < 0 {
		delta = yaw
	}
	if dYaw != 0 || dPitch != 0 {
		target.Rotate(delta, common.TransformSpaceWorld)
	}

	step := moveSpeed * float32(elapsed)
	if axisY != 0 {
		target.Translate(forward.Mul(step*axisY), common.TransformSpaceWorld)
	}
	if axisX != 0 {
		target.Translate(right.Mul(step*axisX), common.TransformSpaceWorld)
	}
}

// horizontalAxes returns the forward and right movement directions projected onto the horizontal plane.
// Near the poles the forward direction comes from the up vector instead of the look vector.
func horizontalAxes(look, up mgl32.Vec3) (forward, right mgl32.Vec3) {
	lookDotDown := look.Dot(mgl32.Vec3{0, -1, 0})
	if math.Abs(float64(lookDotDown)) > 0.5 {
		sign := float32(1)
		if lookDotDown < 0 {
			sign = -1
		}
		forward = mgl32.Vec3{up.X(), 0, up.Z()}.Mul(sign)
	} else {
		forward = mgl32.Vec3{look.X(), 0, look.Z()}
	}
	if forward.Len() < 1e-6 {
		forward = common.Forward
	}
	forward = forward.Normalize()
	right = mgl32.Vec3{-forward.Z(), 0, forward.X()}
	return forward, right
}
