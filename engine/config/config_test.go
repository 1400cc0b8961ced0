package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/foreground/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 120, c.Logic.TickRate)
	assert.Equal(t, time.Second/120, c.TickInterval())
	assert.Equal(t, scene.CullingModeFrustum, c.CullingMode())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreground.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
title = "demo"

[render]
culling = "none"
voxel_resolution = 128

[pipelang]
dump_dir = "shaders"
validator = ["naga", "--validate"]
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", c.Window.Title)
	assert.Equal(t, 1280, c.Window.Width)
	assert.Equal(t, uint32(128), c.Render.VoxelResolution)
	assert.Equal(t, "vsync", c.Render.PresentMode)
	assert.Equal(t, scene.CullingModeNone, c.CullingMode())
	assert.Equal(t, []string{"naga", "--validate"}, c.Pipelang.Validator)

	o := c.Options()
	assert.Len(t, o.Device, 2)
	assert.Len(t, o.Pipeline, 3)
	assert.Len(t, o.View, 1)
	assert.Len(t, o.Bootstrap, 1)
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		data string
		err  error
	}{
		{"unknown key", "[render]\nbloom = true\n", ErrUnknownKey},
		{"bad present mode", "[render]\npresent_mode = \"triple\"\n", ErrInvalid},
		{"bad culling", "[render]\nculling = \"occlusion\"\n", ErrInvalid},
		{"zero tick rate", "[logic]\ntick_rate = 0\n", ErrInvalid},
		{"negative size", "[window]\nwidth = -1\n", ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeRoundTrip(t *testing.T) {
	c := Default()
	c.Window.Title = "round trip"
	c.Pipelang.HotReload = true
	c.Pipelang.Validator = []string{"naga"}
	data, err := c.Encode()
	require.NoError(t, err)

	back, err := Parse(string(data))
	require.NoError(t, err)
	assert.Equal(t, c, back)
}
