package profiler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickLogsAtInterval(t *testing.T) {
	now := time.Unix(0, 0)
	var lines []string
	p := NewProfiler(
		WithInterval(time.Second),
		WithClock(func() time.Time { return now }),
		WithLogger(func(format string, args ...any) { lines = append(lines, fmt.Sprintf(format, args...)) }),
	)

	stats := FrameStats{Draws: map[string]int{"shadow": 2, "gbuffer": 3}, VisiblePrimitives: 3}
	for range 49 {
		now = now.Add(20 * time.Millisecond)
		assert.False(t, p.Tick(stats))
	}
	now = now.Add(20 * time.Millisecond)
	assert.True(t, p.Tick(stats))

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[Profiler] FPS: 50.00")
	assert.Contains(t, lines[0], "Draws: gbuffer=3 shadow=2")
	assert.Contains(t, lines[0], "Visible: 3")
	assert.Equal(t, stats, p.Last())
}

func TestFormatDraws(t *testing.T) {
	assert.Equal(t, "-", FormatDraws(nil))
	assert.Equal(t, "a=1 b=0", FormatDraws(map[string]int{"b": 0, "a": 1}))
}
