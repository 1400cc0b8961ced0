// Package bootstrap holds the process-wide rendering state that every renderer shares: the device, the
// primitive registry, the Pipelang context and the worker pool.
package bootstrap

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// ErrAlreadyInitialized is returned by Init on an initialized context.
var ErrAlreadyInitialized = errors.New("bootstrap: context already initialized")

// ErrNotInitialized is returned when a component needs a device before Init ran.
var ErrNotInitialized = errors.New("bootstrap: context not initialized")

type bootstrapContext struct {
	mu *sync.Mutex

	device      rhi.Device
	registry    *primitive.Registry
	pipelang    pipelang.Context
	pool        worker.DynamicWorkerPool
	workers     int
	queueSize   int
	pipelangOpt []pipelang.ContextBuilderOption
}

// Context is passed explicitly to everything that would otherwise reach for a global: renderers look up the
// device, the primitive registry and the Pipelang context through it.
// All methods are safe for concurrent use.
type Context interface {
	// Init binds the context to a device and creates the Pipelang context and the worker pool.
	// It panics on a nil device.
	//
	// Parameters:
	//   - device: the device every resource is created on
	//
	// Returns:
	//   - error: ErrAlreadyInitialized on the second call
	Init(device rhi.Device) error

	// Initialized reports whether Init succeeded.
	Initialized() bool

	// Device returns the device, or nil before Init.
	Device() rhi.Device

	// Registry returns the primitive registry. It exists from construction so primitives can be created before
	// the device.
	Registry() *primitive.Registry

	// Pipelang returns the Pipelang context, or nil before Init.
	Pipelang() pipelang.Context

	// WorkerPool returns the pool used for asynchronous shader compilation, or nil before Init.
	WorkerPool() worker.DynamicWorkerPool

	// Release frees the Pipelang resources and stops the worker pool. The device is owned by the caller.
	Release()
}

var _ Context = &bootstrapContext{}

// NewContext creates an uninitialized context.
//
// Parameters:
//   - options: functional options to configure the context
//
// Returns:
//   - Context: the new context
func NewContext(options ...ContextBuilderOption) Context {
	c := &bootstrapContext{
		mu:        &sync.Mutex{},
		registry:  primitive.NewRegistry(),
		workers:   max(runtime.NumCPU()-1, 1),
		queueSize: 256,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *bootstrapContext) Init(device rhi.Device) error {
	if device == nil {
		panic("bootstrap: Init called with a nil device")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return ErrAlreadyInitialized
	}
	c.device = device
	c.pool = worker.NewDynamicWorkerPool(c.workers, c.queueSize, 1*time.Second)
	opts := append([]pipelang.ContextBuilderOption{pipelang.WithWorkerPool(c.pool)}, c.pipelangOpt...)
	c.pipelang = pipelang.NewContext(device, opts...)
	return nil
}

func (c *bootstrapContext) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}

func (c *bootstrapContext) Device() rhi.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *bootstrapContext) Registry() *primitive.Registry {
	return c.registry
}

func (c *bootstrapContext) Pipelang() pipelang.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipelang
}

func (c *bootstrapContext) WorkerPool() worker.DynamicWorkerPool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool
}

func (c *bootstrapContext) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipelang != nil {
		c.pipelang.Release()
		c.pipelang = nil
	}
	if c.pool != nil {
		c.pool.Stop()
		c.pool = nil
	}
	c.device = nil
}
