package camera

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/stretchr/testify/assert"
)

func TestAxes(t *testing.T) {
	c := NewInputControls()
	c.Key(common.KeyW, true)
	c.Key(common.KeyD, true)
	x, y := c.Axes()
	assert.Equal(t, float32(1), x)
	assert.Equal(t, float32(1), y)

	c.Key(common.KeyS, true)
	c.Key(common.KeyLeftArrow, true)
	x, y = c.Axes()
	assert.Zero(t, x)
	assert.Zero(t, y)

	c.Key(common.KeyW, false)
	c.Key(common.KeyD, false)
	x, y = c.Axes()
	assert.Equal(t, float32(-1), x)
	assert.Equal(t, float32(-1), y)
}

func TestLookOnlyWhileLooking(t *testing.T) {
	c := NewInputControls()
	c.CursorMoved(10, 10)
	c.CursorMoved(20, 30)
	x, y := c.ConsumeLook()
	assert.Zero(t, x)
	assert.Zero(t, y)

	c.SetLooking(true)
	c.CursorMoved(20, 30)
	c.CursorMoved(25, 20)
	c.CursorMoved(30, 25)
	x, y = c.ConsumeLook()
	assert.Equal(t, float32(10), x)
	assert.Equal(t, float32(-5), y)

	x, y = c.ConsumeLook()
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestConcurrentLookAccumulation(t *testing.T) {
	c := NewInputControls()
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 1000 {
				addFloat(&c.lookX, 1)
			}
		})
	}
	wg.Wait()
	x, _ := c.ConsumeLook()
	assert.Equal(t, float32(8000), x)
}
