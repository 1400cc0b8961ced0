package pipelang

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

var (
	// ErrUnsupported is returned for features WebGPU cannot express.
	ErrUnsupported = errors.New("pipelang: unsupported")
	// ErrNoDevice is returned when device resources are needed but the context has no device.
	ErrNoDevice = errors.New("pipelang: no device")
)

// Compiler turns WGSL into a shader module.
type Compiler interface {
	// Compile compiles env.Source on device.
	//
	// Parameters:
	//   - ctx: cancels long-running validation
	//   - device: the device creating the module
	//   - env: the compile environment with the final source
	//
	// Returns:
	//   - rhi.ShaderModule: the compiled module
	//   - error: the compile failure
	Compile(ctx context.Context, device rhi.Device, env CompileEnvironment) (rhi.ShaderModule, error)
}

// Validator checks a shader before it reaches the device.
type Validator interface {
	Validate(ctx context.Context, env CompileEnvironment) error
}

// DeviceCompiler compiles in-process through rhi.Device.CreateShaderModule, optionally running a Validator first.
type DeviceCompiler struct {
	Validator Validator
}

var _ Compiler = DeviceCompiler{}

func (c DeviceCompiler) Compile(ctx context.Context, device rhi.Device, env CompileEnvironment) (rhi.ShaderModule, error) {
	if device == nil {
		return nil, fmt.Errorf("compile %s: %w", env.Key, ErrNoDevice)
	}
	if c.Validator != nil {
		if err := c.Validator.Validate(ctx, env); err != nil {
			return nil, fmt.Errorf("validate %s: %w", env.Key, err)
		}
	}
	module, err := device.CreateShaderModule(&rhi.ShaderModuleDesc{Label: env.Key, Code: env.Source})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", env.Key, err)
	}
	return module, nil
}

// CommandValidator runs an external validator such as naga on the shader source file. The file path is
// appended to Args. When the environment has no dumped file the source is written to a temporary one.
type CommandValidator struct {
	Command string
	Args    []string
}

var _ Validator = CommandValidator{}

func (v CommandValidator) Validate(ctx context.Context, env CompileEnvironment) error {
	path := env.SourcePath
	if path == "" || env.Replacements != nil || env.Definitions != nil {
		f, err := os.CreateTemp("", "pipelang-*.wgsl")
		if err != nil {
			return err
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(env.Source); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		path = f.Name()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, v.Command, append(append([]string(nil), v.Args...), path)...)
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", v.Command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
