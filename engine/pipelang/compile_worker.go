package pipelang

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// Shader stage names carried by a CompileEnvironment.
const (
	StageVertex   = "vertex"
	StageFragment = "fragment"
)

// CompileEnvironment is everything needed to compile one shader permutation.
type CompileEnvironment struct {
	// Stage is StageVertex or StageFragment.
	Stage string
	// Key is the shader cache key, also used as the module label.
	Key string
	// Source is the WGSL source. When empty it is read from SourcePath.
	Source string
	// SourcePath is the dumped source file, if any. Validators run against it.
	SourcePath string
	// Definitions are emitted as module-scope WGSL constants ahead of the source.
	Definitions map[string]string
	// Replacements are literal substitutions applied to the source before compiling.
	Replacements map[string]string
}

// CompileResult is the outcome of an asynchronous compile.
type CompileResult struct {
	Key    string
	Module rhi.ShaderModule
	Err    error
}

// CompileWorker compiles one CompileEnvironment.
type CompileWorker struct {
	env CompileEnvironment
}

// taskIDs numbers tasks submitted to worker pools.
var taskIDs atomic.Int64

// NewCompileWorker creates a worker for env.
//
// Parameters:
//   - env: the compile environment
//
// Returns:
//   - *CompileWorker: the worker
func NewCompileWorker(env CompileEnvironment) *CompileWorker {
	return &CompileWorker{env: env}
}

// Environment returns the worker's compile environment.
func (w *CompileWorker) Environment() CompileEnvironment {
	return w.env
}

// Source resolves the final WGSL source: file contents when Source is empty, then definitions, then
// replacements in key order.
//
// Returns:
//   - string: the source to compile
//   - error: an error if the source file cannot be read
func (w *CompileWorker) Source() (string, error) {
	src := w.env.Source
	if src == "" && w.env.SourcePath != "" {
		data, err := os.ReadFile(w.env.SourcePath)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", w.env.SourcePath, err)
		}
		src = string(data)
	}

	if len(w.env.Definitions) > 0 {
		var b strings.Builder
		for _, k := range slices.Sorted(maps.Keys(w.env.Definitions)) {
			fmt.Fprintf(&b, "const %s = %s;\n", k, w.env.Definitions[k])
		}
		src = b.String() + src
	}
	for _, k := range slices.Sorted(maps.Keys(w.env.Replacements)) {
		src = strings.ReplaceAll(src, k, w.env.Replacements[k])
	}
	return src, nil
}

// Compile runs the compiler synchronously.
//
// Parameters:
//   - ctx: cancels validation
//   - device: the device the module is created on
//   - compiler: the compiler to run
//
// Returns:
//   - rhi.ShaderModule: the compiled module
//   - error: an error if the source cannot be resolved or compilation fails
func (w *CompileWorker) Compile(ctx context.Context, device rhi.Device, compiler Compiler) (rhi.ShaderModule, error) {
	if w.env.Stage != StageVertex && w.env.Stage != StageFragment {
		return nil, fmt.Errorf("%s: unsupported shader stage %q: %w", w.env.Key, w.env.Stage, ErrUnsupported)
	}
	src, err := w.Source()
	if err != nil {
		return nil, err
	}
	env := w.env
	env.Source = src
	return compiler.Compile(ctx, device, env)
}

// CompileAsync submits the compile to pool and returns a channel that receives exactly one result.
//
// Parameters:
//   - pool: the worker pool running the compile
//   - device: the device the module is created on
//   - compiler: the compiler to run
//
// Returns:
//   - <-chan CompileResult: receives the result when the task finishes
func (w *CompileWorker) CompileAsync(pool worker.DynamicWorkerPool, device rhi.Device, compiler Compiler) <-chan CompileResult {
	out := make(chan CompileResult, 1)
	pool.SubmitTask(worker.Task{
		ID: int(taskIDs.Add(1)),
		Do: func() (any, error) {
			module, err := w.Compile(context.Background(), device, compiler)
			out <- CompileResult{Key: w.env.Key, Module: module, Err: err}
			return module, err
		},
	})
	return out
}
