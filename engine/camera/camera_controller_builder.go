package camera

// FlyControllerOption is a functional option for configuring a FlyController.
type FlyControllerOption func(*flyControllerImpl)

// WithMoveSpeed sets the movement speed.
//
// Parameters:
//   - speed: units per second at full axis deflection
//
// Returns:
//   - FlyControllerOption: functional option to set the move speed
func WithMoveSpeed(speed float32) FlyControllerOption {
	return func(fc *flyControllerImpl) {
		fc.moveSpeed = speed
	}
}

// WithLookSensitivity sets the look sensitivity.
//
// Parameters:
//   - sensitivity: radians per unit of look delta (one pixel of mouse motion)
//
// Returns:
//   - FlyControllerOption: functional option to set the look sensitivity
func WithLookSensitivity(sensitivity float32) FlyControllerOption {
	return func(fc *flyControllerImpl) {
		fc.lookSensitivity = sensitivity
	}
}
