package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/camera"
	"github.com/cogentcore/webgpu/wgpu"
)

// MouseButtonRight is the button id reported for the right mouse button, which enables mouse look when
// controls are attached.
const MouseButtonRight = 1

// Window is the application window: it owns the surface the swapchain presents to and forwards input
// events. All methods except Size are called on the thread that created the window.
type Window interface {
	// SetUpdateCallback sets the function called once per message loop iteration, after events are polled.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called with the new framebuffer size in pixels.
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the function called on key press, repeat and release.
	//
	// Parameters:
	//   - callback: receives the GLFW key code and whether the key is down
	SetKeyCallback(callback func(keyCode uint32, pressed bool))

	// SetCursorCallback sets the function called with the cursor position in window coordinates.
	SetCursorCallback(callback func(x, y float64))

	// SetMouseButtonCallback sets the function called on mouse button transitions.
	SetMouseButtonCallback(callback func(button int, pressed bool))

	// AttachControls routes key, cursor and right mouse button events into controls, after the callbacks set
	// on the window.
	//
	// Parameters:
	//   - controls: the controls to feed, or nil to detach
	AttachControls(controls *camera.InputControls)

	// SurfaceDescriptor returns the platform surface descriptor for the WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil when the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Size returns the framebuffer size in pixels. It is safe to call from any goroutine.
	Size() (width, height int)

	// IsRunning reports whether the window is open.
	IsRunning() bool

	// Close destroys the window.
	//
	// Returns:
	//   - error: an error if the window was never created
	Close() error

	// ProcessMessages runs the message loop until the window closes.
	ProcessMessages()
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title               string
	minWidth, minHeight int
	maxWidth, maxHeight int

	// sizeMu guards width and height, which are read by the render loop.
	sizeMu        *sync.Mutex
	width, height int

	// internalWindow holds the GLFW state.
	internalWindow *glfwWindow

	onUpdate      func()
	onResize      func(width, height int)
	onKey         func(keyCode uint32, pressed bool)
	onCursor      func(x, y float64)
	onMouseButton func(button int, pressed bool)
	controls      *camera.InputControls
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. The calling goroutine is locked to its OS thread.
// It panics if the platform window cannot be created.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:     "Foreground",
		minWidth:  320,
		minHeight: 200,
		sizeMu:    &sync.Mutex{},
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyCallback(callback func(keyCode uint32, pressed bool)) {
	w.onKey = callback
}

func (w *engineWindow) SetCursorCallback(callback func(x, y float64)) {
	w.onCursor = callback
}

func (w *engineWindow) SetMouseButtonCallback(callback func(button int, pressed bool)) {
	w.onMouseButton = callback
}

func (w *engineWindow) AttachControls(controls *camera.InputControls) {
	w.controls = controls
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) Size() (int, int) {
	w.sizeMu.Lock()
	defer w.sizeMu.Unlock()
	return w.width, w.height
}

func (w *engineWindow) setSize(width, height int) {
	w.sizeMu.Lock()
	w.width, w.height = width, height
	w.sizeMu.Unlock()
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

// The dispatch helpers are called from the GLFW callbacks.

func (w *engineWindow) keyEvent(keyCode uint32, pressed bool) {
	if w.onKey != nil {
		w.onKey(keyCode, pressed)
	}
	if w.controls != nil {
		w.controls.Key(keyCode, pressed)
	}
}

func (w *engineWindow) cursorEvent(x, y float64) {
	if w.onCursor != nil {
		w.onCursor(x, y)
	}
	if w.controls != nil {
		w.controls.CursorMoved(x, y)
	}
}

func (w *engineWindow) mouseButtonEvent(button int, pressed bool) {
	if w.onMouseButton != nil {
		w.onMouseButton(button, pressed)
	}
	if w.controls != nil && button == MouseButtonRight {
		w.controls.SetLooking(pressed)
	}
}

func (w *engineWindow) resizeEvent(width, height int) {
	w.setSize(width, height)
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
