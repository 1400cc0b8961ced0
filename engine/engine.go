package engine

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/foreground/engine/profiler"
	"github.com/Carmen-Shannon/foreground/engine/renderer"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// DefaultTickRate is the logic tick rate in ticks per second.
const DefaultTickRate = 120

// maxLogicLag is how far the logic loop may fall behind before it stops catching up and restarts its schedule.
const maxLogicLag = 250 * time.Millisecond

// Window is the part of window.Window the game drives.
type Window interface {
	SetUpdateCallback(callback func())
	SetResizeCallback(callback func(width, height int))
	ProcessMessages()
	IsRunning() bool
	Close() error
}

// ResizeEvent carries the new framebuffer size in pixels.
type ResizeEvent struct {
	Width, Height int
}

// game implements the Game interface.
// Coordinates the logic goroutine and the render loop on the window thread.
type game struct {
	// frameMu is held around every logic tick and every rendered frame, so the scene graph is never mutated
	// while it is traversed.
	frameMu *sync.Mutex

	window   Window
	device   rhi.Device
	pipeline renderer.RenderPipeline

	tickInterval atomic.Int64
	running      atomic.Bool
	quit         chan struct{}
	quitOnce     sync.Once
	wg           sync.WaitGroup

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	renderFrameLimit time.Duration
	lastRender       time.Time

	now   func() time.Time
	sleep func(time.Duration)

	onInit       Event[Game]
	onLogicTick  Event[float64]
	onRenderTick Event[float64]
	onResize     Event[ResizeEvent]
}

// Game is the application shell: it runs the logic tick on its own goroutine at a fixed rate and renders on
// the window thread, and exposes both as events.
//
// The logic tick and the frame never overlap. Handlers of OnLogicTick may mutate the scene graph freely.
type Game interface {
	// OnInit fires once from Run, on the window thread, before the first tick.
	OnInit() *Event[Game]

	// OnLogicTick fires at the tick rate with the seconds elapsed since the previous tick.
	OnLogicTick() *Event[float64]

	// OnRenderTick fires on the window thread before each frame is rendered, with the seconds since the
	// previous frame.
	OnRenderTick() *Event[float64]

	// OnResize fires on the window thread after the framebuffer changed size and the device is idle. Handlers
	// resize the render pipeline and update camera aspect ratios.
	OnResize() *Event[ResizeEvent]

	// Window returns the window, or nil for a headless game.
	Window() Window

	// Device returns the device.
	Device() rhi.Device

	// SetRenderPipeline sets the pipeline rendered each frame. The game does not release it.
	SetRenderPipeline(p renderer.RenderPipeline)

	// RenderPipeline returns the pipeline rendered each frame, or nil.
	RenderPipeline() renderer.RenderPipeline

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the logic tick rate. It takes effect from the next tick.
	//
	// Parameters:
	//   - hz: ticks per second (defaults to DefaultTickRate if <= 0)
	SetTickRate(hz float64)

	// TickInterval returns the time between logic ticks.
	TickInterval() time.Duration

	// Run fires OnInit, starts the logic goroutine and runs the window message loop until the window closes
	// or Quit is called. It must be called on the thread that created the window.
	Run()

	// Quit stops the logic goroutine and makes Run return. Safe to call multiple times and from any goroutine.
	Quit()
}

var _ Game = &game{}

// NewGame creates a Game rendering into w. It panics on a nil device.
//
// Parameters:
//   - w: the window, or nil for a game driven without one
//   - device: the device the render pipeline was created on
//   - options: functional options for game configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Game: the newly created game
func NewGame(w Window, device rhi.Device, options ...GameBuilderOption) Game {
	if device == nil {
		panic("engine: NewGame called with a nil device")
	}
	g := &game{
		frameMu:  &sync.Mutex{},
		window:   w,
		device:   device,
		quit:     make(chan struct{}),
		profiler: profiler.NewProfiler(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	g.tickInterval.Store(int64(time.Second / DefaultTickRate))

	for _, opt := range options {
		opt(g)
	}

	if w != nil {
		w.SetResizeCallback(g.resize)
		w.SetUpdateCallback(g.update)
	}
	return g
}

func (g *game) OnInit() *Event[Game] {
	return &g.onInit
}

func (g *game) OnLogicTick() *Event[float64] {
	return &g.onLogicTick
}

func (g *game) OnRenderTick() *Event[float64] {
	return &g.onRenderTick
}

func (g *game) OnResize() *Event[ResizeEvent] {
	return &g.onResize
}

func (g *game) Window() Window {
	return g.window
}

func (g *game) Device() rhi.Device {
	return g.device
}

func (g *game) SetRenderPipeline(p renderer.RenderPipeline) {
	g.frameMu.Lock()
	g.pipeline = p
	g.frameMu.Unlock()
}

func (g *game) RenderPipeline() renderer.RenderPipeline {
	g.frameMu.Lock()
	defer g.frameMu.Unlock()
	return g.pipeline
}

func (g *game) EnableProfiler() {
	g.profilingEnabled.Store(true)
}

func (g *game) DisableProfiler() {
	g.profilingEnabled.Store(false)
}

func (g *game) SetTickRate(hz float64) {
	g.tickInterval.Store(int64(tickInterval(hz)))
}

func (g *game) TickInterval() time.Duration {
	return time.Duration(g.tickInterval.Load())
}

func tickInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = DefaultTickRate
	}
	return time.Duration(float64(time.Second) / hz)
}

func (g *game) Run() {
	if g.window == nil {
		panic("engine: Run needs a window")
	}
	g.running.Store(true)
	g.lastRender = g.now()
	g.onInit.Trigger(g)

	g.wg.Go(g.logicLoop)
	g.window.ProcessMessages()

	g.Quit()
	g.wg.Wait()
	// The update callback closes the window after Quit; a window closed by the user is still to be destroyed.
	_ = g.window.Close()
}

func (g *game) Quit() {
	g.quitOnce.Do(func() {
		g.running.Store(false)
		close(g.quit)
	})
}

// logicLoop fires OnLogicTick on a fixed schedule, sleeping until each deadline. A loop that falls more than
// maxLogicLag behind drops the missed ticks.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (g *game) logicLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Game] logic goroutine recovered from panic: %v", r)
			g.Quit()
		}
	}()

	last := g.now()
	deadline := last
	for {
		deadline = deadline.Add(g.TickInterval())
		if wait := deadline.Sub(g.now()); wait > 0 {
			g.sleep(wait)
		} else if -wait > maxLogicLag {
			deadline = g.now()
		}

		select {
		case <-g.quit:
			return
		default:
		}

		now := g.now()
		elapsed := now.Sub(last).Seconds()
		last = now

		g.frameMu.Lock()
		g.onLogicTick.Trigger(elapsed)
		g.frameMu.Unlock()
	}
}

// update is the window loop callback: it closes the window after Quit, and renders a frame otherwise.
func (g *game) update() {
	if !g.running.Load() {
		if err := g.window.Close(); err != nil {
			log.Printf("[Game] closing window: %v", err)
		}
		return
	}
	g.renderFrame()
}

// renderFrame fires OnRenderTick and renders the pipeline under the frame mutex, then feeds the profiler and
// applies the frame limit.
func (g *game) renderFrame() {
	start := g.now()
	dt := start.Sub(g.lastRender).Seconds()
	g.lastRender = start

	g.frameMu.Lock()
	g.onRenderTick.Trigger(dt)
	var stats renderer.Stats
	var err error
	p := g.pipeline
	if p != nil {
		err = p.Render()
		stats = p.Stats()
	}
	g.frameMu.Unlock()

	if err != nil {
		log.Printf("[Game] render failed: %v", err)
	}

	if p != nil && g.profilingEnabled.Load() {
		g.profiler.Tick(profiler.FrameStats{
			Draws:             stats.Draws,
			VisiblePrimitives: stats.VisiblePrimitives,
			SkippedFrames:     stats.SkippedFrames,
		})
	}

	if g.renderFrameLimit > 0 {
		if remaining := g.renderFrameLimit - g.now().Sub(start); remaining > 0 {
			g.sleep(remaining)
		}
	}
}

// resize waits for the GPU to finish the frames in flight and fires OnResize. A zero size, reported while the
// window is minimized, is ignored.
func (g *game) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	g.frameMu.Lock()
	defer g.frameMu.Unlock()
	g.device.WaitIdle()
	g.onResize.Trigger(ResizeEvent{Width: width, Height: height})
}
