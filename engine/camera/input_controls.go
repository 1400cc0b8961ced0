package camera

import (
	"math"
	"sync/atomic"

	"github.com/Carmen-Shannon/foreground/common"
)

// InputControls turns key and cursor events into the values a FlyController reads.
// Events arrive on the window thread and the values are read from the logic goroutine, so every value
// shared between the two is atomic.
type InputControls struct {
	forward, back, left, right atomic.Bool
	looking                    atomic.Bool

	// look deltas as float64 bits
	lookX, lookY atomic.Uint64

	// last cursor position, window thread only
	lastX, lastY float64
	haveLast     bool
}

var _ Controls = &InputControls{}

// NewInputControls creates controls with nothing pressed.
func NewInputControls() *InputControls {
	return &InputControls{}
}

// Key records a key transition. W/A/S/D and the arrow keys drive the axes.
//
// Parameters:
//   - keyCode: the GLFW key code
//   - pressed: true on press or repeat, false on release
func (c *InputControls) Key(keyCode uint32, pressed bool) {
	switch keyCode {
	case common.KeyW, common.KeyUpArrow:
		c.forward.Store(pressed)
	case common.KeyS, common.KeyDownArrow:
		c.back.Store(pressed)
	case common.KeyA, common.KeyLeftArrow:
		c.left.Store(pressed)
	case common.KeyD, common.KeyRightArrow:
		c.right.Store(pressed)
	}
}

// SetLooking enables or disables mouse look. Cursor motion only accumulates while looking.
func (c *InputControls) SetLooking(looking bool) {
	c.looking.Store(looking)
	c.haveLast = false
}

// CursorMoved records a cursor position in window coordinates.
func (c *InputControls) CursorMoved(x, y float64) {
	if c.haveLast && c.looking.Load() {
		addFloat(&c.lookX, x-c.lastX)
		addFloat(&c.lookY, y-c.lastY)
	}
	c.lastX, c.lastY, c.haveLast = x, y, true
}

func (c *InputControls) Axes() (float32, float32) {
	var x, y float32
	if c.right.Load() {
		x++
	}
	if c.left.Load() {
		x--
	}
	if c.forward.Load() {
		y++
	}
	if c.back.Load() {
		y--
	}
	return x, y
}

func (c *InputControls) ConsumeLook() (float32, float32) {
	x := math.Float64frombits(c.lookX.Swap(0))
	y := math.Float64frombits(c.lookY.Swap(0))
	return float32(x), float32(y)
}

func addFloat(v *atomic.Uint64, delta float64) {
	for {
		old := v.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if v.CompareAndSwap(old, next) {
			return
		}
	}
}
