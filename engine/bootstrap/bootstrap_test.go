package bootstrap

import (
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitOnce(t *testing.T) {
	c := NewContext(WithWorkers(2))
	assert.False(t, c.Initialized())
	assert.Nil(t, c.Pipelang())
	assert.NotNil(t, c.Registry())

	d := rhitest.NewDevice()
	require.NoError(t, c.Init(d))
	assert.True(t, c.Initialized())
	assert.Same(t, d, c.Device())
	require.NotNil(t, c.Pipelang())
	assert.NotNil(t, c.WorkerPool())
	assert.Same(t, d, c.Pipelang().Device())

	assert.ErrorIs(t, c.Init(rhitest.NewDevice()), ErrAlreadyInitialized)
	assert.Same(t, d, c.Device())

	c.Release()
	assert.False(t, c.Initialized())
	assert.Nil(t, c.WorkerPool())
}

func TestInitNilDevicePanics(t *testing.T) {
	c := NewContext()
	assert.Panics(t, func() { _ = c.Init(nil) })
}

func TestRegistrySurvivesInit(t *testing.T) {
	c := NewContext()
	reg := c.Registry()
	require.NoError(t, c.Init(rhitest.NewDevice()))
	defer c.Release()
	assert.Same(t, reg, c.Registry())
}
