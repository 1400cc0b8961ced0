package pipelang

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"golang.org/x/sync/singleflight"
)

// shaderCache is the implementation of the ShaderCache interface.
type shaderCache struct {
	mu *sync.Mutex

	device   rhi.Device
	compiler Compiler
	// pool runs compiles off the calling goroutine when set.
	pool worker.DynamicWorkerPool

	modules     map[string]rhi.ShaderModule
	lastCompile map[string]time.Time
	// generation increments on every device change and invalidation so compiles started before either are
	// not cached.
	generation uint64

	group singleflight.Group
}

// ShaderCache maps permutation keys to compiled shader modules. Concurrent compiles of the same key are
// collapsed into one.
type ShaderCache interface {
	// Device returns the device modules are compiled on.
	Device() rhi.Device

	// SetDevice replaces the device and empties the cache.
	SetDevice(device rhi.Device)

	// Compiler returns the compiler used on cache misses.
	Compiler() Compiler

	// InsertShader stores a module under key, releasing any module it replaces.
	InsertShader(key string, module rhi.ShaderModule)

	// RetrieveShader returns the module cached under key, or nil.
	RetrieveShader(key string) rhi.ShaderModule

	// RetrieveOrCompileShader returns the cached module or compiles env and caches the result.
	// Failed compiles are not cached.
	//
	// Parameters:
	//   - ctx: cancels validation of a compile this call starts
	//   - key: the cache key
	//   - env: the compile environment used on a miss
	//
	// Returns:
	//   - rhi.ShaderModule: the module
	//   - error: the compile failure
	RetrieveOrCompileShader(ctx context.Context, key string, env CompileEnvironment) (rhi.ShaderModule, error)

	// LastCompiled returns when key was last compiled.
	LastCompiled(key string) (time.Time, bool)

	// Invalidate drops and releases every module whose key starts with prefix. An empty prefix drops all.
	// Compiles already running when Invalidate is called are not cached, and later calls do not wait on them.
	//
	// Returns:
	//   - int: the number of modules dropped
	Invalidate(prefix string) int

	// Len returns the number of cached modules.
	Len() int
}

var _ ShaderCache = &shaderCache{}

// NewShaderCache creates an empty cache that compiles with DeviceCompiler unless configured otherwise.
//
// Parameters:
//   - device: the device modules are compiled on, may be nil until SetDevice
//   - opts: a variadic list of ShaderCacheBuilderOption functions
//
// Returns:
//   - ShaderCache: the cache
func NewShaderCache(device rhi.Device, opts ...ShaderCacheBuilderOption) ShaderCache {
	c := &shaderCache{
		mu:          &sync.Mutex{},
		device:      device,
		compiler:    DeviceCompiler{},
		modules:     make(map[string]rhi.ShaderModule),
		lastCompile: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *shaderCache) Device() rhi.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *shaderCache) SetDevice(device rhi.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = device
	c.generation++
	c.dropLocked("")
}

func (c *shaderCache) Compiler() Compiler {
	return c.compiler
}

func (c *shaderCache) InsertShader(key string, module rhi.ShaderModule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.modules[key]; ok && old != module {
		old.Release()
	}
	c.modules[key] = module
}

func (c *shaderCache) RetrieveShader(key string) rhi.ShaderModule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modules[key]
}

func (c *shaderCache) RetrieveOrCompileShader(ctx context.Context, key string, env CompileEnvironment) (rhi.ShaderModule, error) {
	if m := c.RetrieveShader(key); m != nil {
		return m, nil
	}

	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	// Calls only share a compile started in the same generation.
	v, err, _ := c.group.Do(strconv.FormatUint(generation, 10)+"/"+key, func() (any, error) {
		c.mu.Lock()
		if m, ok := c.modules[key]; ok {
			c.mu.Unlock()
			return m, nil
		}
		device := c.device
		c.mu.Unlock()

		env.Key = key
		module, err := c.compile(ctx, device, env)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if generation == c.generation {
			c.modules[key] = module
			c.lastCompile[key] = time.Now()
		}
		return module, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(rhi.ShaderModule), nil
}

// compile runs env on the pool when one is configured and waits for the result.
func (c *shaderCache) compile(ctx context.Context, device rhi.Device, env CompileEnvironment) (rhi.ShaderModule, error) {
	w := NewCompileWorker(env)
	if c.pool == nil {
		return w.Compile(ctx, device, c.compiler)
	}
	select {
	case res := <-w.CompileAsync(c.pool, device, c.compiler):
		return res.Module, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *shaderCache) LastCompiled(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastCompile[key]
	return t, ok
}

func (c *shaderCache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.dropLocked(prefix)
}

func (c *shaderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

// dropLocked releases and removes modules under prefix. Callers hold c.mu.
func (c *shaderCache) dropLocked(prefix string) int {
	dropped := 0
	for key, m := range c.modules {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		m.Release()
		delete(c.modules, key)
		dropped++
	}
	return dropped
}
