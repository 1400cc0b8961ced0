package pipelang

import "github.com/Carmen-Shannon/automation/tools/worker"

// ContextBuilderOption is a functional option for configuring a Pipelang Context.
type ContextBuilderOption func(*pipelangContext)

// WithDumpDir writes every generated shader to dir as <library>.<key>_VS.wgsl and <library>.<key>_PS.wgsl,
// with path separators in the library name replaced by dots.
//
// Parameters:
//   - dir: the dump directory, created if missing
//
// Returns:
//   - ContextBuilderOption: option function to apply
func WithDumpDir(dir string) ContextBuilderOption {
	return func(c *pipelangContext) {
		c.dumpDir = dir
	}
}

// WithShaderCompiler replaces the compiler used by the shader cache.
//
// Parameters:
//   - compiler: the compiler
//
// Returns:
//   - ContextBuilderOption: option function to apply
func WithShaderCompiler(compiler Compiler) ContextBuilderOption {
	return func(c *pipelangContext) {
		if compiler != nil {
			c.compiler = compiler
		}
	}
}

// WithValidator runs v on every shader before the device compiles it.
//
// Parameters:
//   - v: the validator, e.g. a CommandValidator running naga
//
// Returns:
//   - ContextBuilderOption: option function to apply
func WithValidator(v Validator) ContextBuilderOption {
	return func(c *pipelangContext) {
		c.compiler = DeviceCompiler{Validator: v}
	}
}

// WithWorkerPool runs shader compiles on pool.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - ContextBuilderOption: option function to apply
func WithWorkerPool(pool worker.DynamicWorkerPool) ContextBuilderOption {
	return func(c *pipelangContext) {
		c.pool = pool
	}
}
