package profiler

import (
	"fmt"
	"log"
	"maps"
	"runtime"
	"slices"
	"strings"
	"time"
)

// FrameStats is what the render loop reports to the profiler each frame.
type FrameStats struct {
	// Draws holds the draw count per pass.
	Draws map[string]int
	// VisiblePrimitives is the primitive count of the main view after culling.
	VisiblePrimitives int
	// SkippedFrames is the running count of frames skipped for lack of a swapchain image.
	SkippedFrames uint64
}

// Profiler tracks frame rate, draw counts and memory statistics and logs them at an interval.
// A Profiler is used from the render loop only.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           FrameStats
	logf           func(format string, args ...any)
	now            func() time.Time
}

// NewProfiler creates a Profiler logging once per second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		logf:           log.Printf,
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick records one rendered frame and logs the statistics when the interval has elapsed.
//
// Parameters:
//   - stats: the statistics of the frame
//
// Returns:
//   - bool: true if stats were logged this tick
func (p *Profiler) Tick(stats FrameStats) bool {
	p.frameCount++
	p.last = stats
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a ring of the last 256 pauses.
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logf("[Profiler] FPS: %.2f | Visible: %d | Draws: %s | Skipped: %d | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		fps, stats.VisiblePrimitives, FormatDraws(stats.Draws), stats.SkippedFrames, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the statistics passed to the latest Tick.
func (p *Profiler) Last() FrameStats {
	return p.last
}

// FormatDraws renders draw counts as "pass=n" pairs sorted by pass name.
func FormatDraws(draws map[string]int) string {
	if len(draws) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(draws))
	for _, pass := range slices.Sorted(maps.Keys(draws)) {
		parts = append(parts, fmt.Sprintf("%s=%d", pass, draws[pass]))
	}
	return strings.Join(parts, " ")
}
