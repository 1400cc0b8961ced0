package pipelang

import "github.com/Carmen-Shannon/automation/tools/worker"

// ShaderCacheBuilderOption is a functional option for configuring a ShaderCache.
type ShaderCacheBuilderOption func(*shaderCache)

// WithCompiler replaces the compiler used on cache misses.
//
// Parameters:
//   - compiler: the compiler; nil keeps DeviceCompiler
//
// Returns:
//   - ShaderCacheBuilderOption: option function to apply
func WithCompiler(compiler Compiler) ShaderCacheBuilderOption {
	return func(c *shaderCache) {
		if compiler != nil {
			c.compiler = compiler
		}
	}
}

// WithCompilePool runs cache-miss compiles on pool.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - ShaderCacheBuilderOption: option function to apply
func WithCompilePool(pool worker.DynamicWorkerPool) ShaderCacheBuilderOption {
	return func(c *shaderCache) {
		c.pool = pool
	}
}
