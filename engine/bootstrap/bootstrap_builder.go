package bootstrap

import "github.com/Carmen-Shannon/foreground/engine/pipelang"

// ContextBuilderOption is a functional option for configuring a Context via NewContext.
type ContextBuilderOption func(*bootstrapContext)

// WithWorkers sets the maximum number of worker goroutines. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the worker count (minimum 1)
//
// Returns:
//   - ContextBuilderOption: a function that sets the worker count
func WithWorkers(n int) ContextBuilderOption {
	return func(c *bootstrapContext) {
		c.workers = max(n, 1)
	}
}

// WithQueueSize sets the task queue capacity of the worker pool.
//
// Parameters:
//   - n: the queue capacity
//
// Returns:
//   - ContextBuilderOption: a function that sets the queue size
func WithQueueSize(n int) ContextBuilderOption {
	return func(c *bootstrapContext) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithPipelangOptions forwards options to the Pipelang context created by Init.
//
// Parameters:
//   - opts: Pipelang context options such as pipelang.WithDumpDir
//
// Returns:
//   - ContextBuilderOption: a function that appends the options
func WithPipelangOptions(opts ...pipelang.ContextBuilderOption) ContextBuilderOption {
	return func(c *bootstrapContext) {
		c.pipelangOpt = append(c.pipelangOpt, opts...)
	}
}
