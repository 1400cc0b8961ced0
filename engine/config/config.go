// Package config reads the engine configuration file and turns it into the builder options of the packages
// it configures.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/light"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/renderer"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/scene"
	"github.com/pelletier/go-toml/v2"
)

var (
	// ErrInvalid is wrapped by every validation error returned from Load and Validate.
	ErrInvalid = errors.New("config: invalid value")
	// ErrUnknownKey is returned for keys the configuration does not define.
	ErrUnknownKey = errors.New("config: unknown key")
)

// Window is the [window] section.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Render is the [render] section.
type Render struct {
	// PresentMode is "vsync" or "uncapped".
	PresentMode string `toml:"present_mode"`
	// Culling is "frustum" or "none".
	Culling          string  `toml:"culling"`
	VoxelResolution  uint32  `toml:"voxel_resolution"`
	ShadowResolution uint32  `toml:"shadow_resolution"`
	ShadowHalfExtent float32 `toml:"shadow_half_extent"`
	ForceFallback    bool    `toml:"force_fallback_adapter"`
}

// Logic is the [logic] section.
type Logic struct {
	// TickRate is the logic loop frequency in Hz.
	TickRate int `toml:"tick_rate"`
	// Workers bounds the worker pool used for shader compilation. Zero selects the default.
	Workers int `toml:"workers"`
}

// Pipelang is the [pipelang] section.
type Pipelang struct {
	// HotReload watches the library directory and reloads it on change.
	HotReload bool `toml:"hot_reload"`
	// LibraryDir is an optional directory library loaded next to the Internal one.
	LibraryDir string `toml:"library_dir"`
	// DumpDir receives every generated shader source when set.
	DumpDir string `toml:"dump_dir"`
	// Validator is an external command run on each generated source, e.g. ["naga"].
	Validator []string `toml:"validator"`
}

// Config is the whole configuration file.
type Config struct {
	Window   Window   `toml:"window"`
	Render   Render   `toml:"render"`
	Logic    Logic    `toml:"logic"`
	Pipelang Pipelang `toml:"pipelang"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Window: Window{Title: "Foreground", Width: 1280, Height: 720},
		Render: Render{
			PresentMode:      "vsync",
			Culling:          "frustum",
			VoxelResolution:  renderer.DefaultVoxelResolution,
			ShadowResolution: light.ShadowMapResolution,
			ShadowHalfExtent: light.DefaultShadowHalfExtent,
		},
		Logic: Logic{TickRate: 120},
	}
}

// Load reads a TOML file on top of Default. Keys missing from the file keep their default value; unknown
// keys are an error.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the merged configuration
//   - error: an error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	c, err := decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML text like Load.
func Parse(data string) (Config, error) {
	c, err := decode(strings.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func decode(r io.Reader) (Config, error) {
	c := Default()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrUnknownKey, strict.String())
		}
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Encode writes c as TOML.
//
// Returns:
//   - []byte: the encoded file
//   - error: an error if encoding fails
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("window size %dx%d: %w", c.Window.Width, c.Window.Height, ErrInvalid)
	case c.Render.PresentMode != "vsync" && c.Render.PresentMode != "uncapped":
		return fmt.Errorf("present_mode %q: %w", c.Render.PresentMode, ErrInvalid)
	case c.Render.Culling != "frustum" && c.Render.Culling != "none":
		return fmt.Errorf("culling %q: %w", c.Render.Culling, ErrInvalid)
	case c.Render.VoxelResolution == 0 || c.Render.ShadowResolution == 0:
		return fmt.Errorf("voxel_resolution %d, shadow_resolution %d: %w", c.Render.VoxelResolution, c.Render.ShadowResolution, ErrInvalid)
	case c.Render.ShadowHalfExtent <= 0:
		return fmt.Errorf("shadow_half_extent %g: %w", c.Render.ShadowHalfExtent, ErrInvalid)
	case c.Logic.TickRate <= 0:
		return fmt.Errorf("tick_rate %d: %w", c.Logic.TickRate, ErrInvalid)
	case c.Logic.Workers < 0:
		return fmt.Errorf("workers %d: %w", c.Logic.Workers, ErrInvalid)
	}
	return nil
}

// TickInterval returns the logic step duration.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Logic.TickRate)
}

// CullingMode returns the configured scene view culling mode.
func (c Config) CullingMode() scene.CullingMode {
	if c.Render.Culling == "none" {
		return scene.CullingModeNone
	}
	return scene.CullingModeFrustum
}

// Options groups the builder options derived from a Config, one slice per configured constructor.
type Options struct {
	Device    []rhi.DeviceBuilderOption
	Bootstrap []bootstrap.ContextBuilderOption
	Pipeline  []renderer.MegaPipelineBuilderOption
	View      []scene.SceneViewBuilderOption
}

// Options maps c onto builder options.
//
// Returns:
//   - Options: the options for rhi.NewWGPUDevice, bootstrap.NewContext,
//     renderer.NewMegaPipeline and scene.NewSceneView
func (c Config) Options() Options {
	o := Options{
		Device: []rhi.DeviceBuilderOption{
			rhi.WithPresentMode(rhi.ParsePresentMode(c.Render.PresentMode)),
			rhi.WithForceFallbackAdapter(c.Render.ForceFallback),
		},
		Pipeline: []renderer.MegaPipelineBuilderOption{
			renderer.WithVoxelResolution(c.Render.VoxelResolution),
			renderer.WithShadowResolution(c.Render.ShadowResolution),
			renderer.WithShadowHalfExtent(c.Render.ShadowHalfExtent),
		},
		View: []scene.SceneViewBuilderOption{scene.WithCullingMode(c.CullingMode())},
	}

	var pl []pipelang.ContextBuilderOption
	if c.Pipelang.DumpDir != "" {
		pl = append(pl, pipelang.WithDumpDir(c.Pipelang.DumpDir))
	}
	if len(c.Pipelang.Validator) > 0 {
		pl = append(pl, pipelang.WithValidator(pipelang.CommandValidator{Command: c.Pipelang.Validator[0], Args: c.Pipelang.Validator[1:]}))
	}
	if len(pl) > 0 {
		o.Bootstrap = append(o.Bootstrap, bootstrap.WithPipelangOptions(pl...))
	}
	if c.Logic.Workers > 0 {
		o.Bootstrap = append(o.Bootstrap, bootstrap.WithWorkers(c.Logic.Workers))
	}
	return o
}
