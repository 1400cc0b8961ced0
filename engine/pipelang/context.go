package pipelang

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// librarySeparator ends the library name at the front of every shader cache key.
const librarySeparator = "|"

// pipelangContext is the implementation of the Context interface.
type pipelangContext struct {
	mu *sync.Mutex

	device    rhi.Device
	libraries map[string]*library

	shaderCache ShaderCache
	compiler    Compiler
	pool        worker.DynamicWorkerPool
	dumpDir     string
}

// Context owns the libraries and the shader cache of one device. Shader cache keys start with the name of
// the library that assembled them, so libraries never share shaders.
type Context interface {
	// Device returns the current device, or nil.
	Device() rhi.Device

	// SetDevice replaces the device and rebuilds every device resource through NotifyDeviceChange.
	//
	// Parameters:
	//   - device: the new device, or nil on teardown
	SetDevice(device rhi.Device)

	// NotifyDeviceChange recreates every library's descriptor layouts, empties the libraries' pipeline layout
	// caches and resets the shader cache to the current device.
	NotifyDeviceChange()

	// CreateLibrary registers a library backed by fsys. The library is empty until Parse.
	//
	// Parameters:
	//   - name: the library name
	//   - fsys: the file system holding library.yaml and the sources it names
	//
	// Returns:
	//   - Library: the new library
	//   - error: an error if a library with that name exists or the name is empty or contains '|'
	CreateLibrary(name string, fsys fs.FS) (Library, error)

	// CreateDirLibrary registers a library backed by a directory on disk, named by the directory.
	// Directory libraries can be watched for changes.
	//
	// Parameters:
	//   - dir: the directory holding library.yaml
	//
	// Returns:
	//   - Library: the new library
	//   - error: an error if the library exists
	CreateDirLibrary(dir string) (Library, error)

	// GetLibrary looks up a library by name.
	GetLibrary(name string) (Library, bool)

	// ShaderCache returns the shader cache.
	ShaderCache() ShaderCache

	// DumpDir returns the directory generated sources are written to, or "" when dumping is off.
	DumpDir() string

	// Release frees the cached pipeline layouts and shader modules.
	Release()
}

var _ Context = &pipelangContext{}

// NewContext creates a Pipelang context for device.
//
// Parameters:
//   - device: the device, may be nil until SetDevice
//   - opts: a variadic list of ContextBuilderOption functions
//
// Returns:
//   - Context: the new context
func NewContext(device rhi.Device, opts ...ContextBuilderOption) Context {
	c := &pipelangContext{
		mu:        &sync.Mutex{},
		device:    device,
		libraries: make(map[string]*library),
		compiler:  DeviceCompiler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.shaderCache = NewShaderCache(device, WithCompiler(c.compiler), WithCompilePool(c.pool))

	if c.dumpDir != "" {
		if err := os.MkdirAll(c.dumpDir, 0o755); err != nil {
			log.Printf("pipelang: cannot create dump directory %s, dumping disabled: %v", c.dumpDir, err)
			c.dumpDir = ""
		}
	}
	return c
}

func (c *pipelangContext) Device() rhi.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *pipelangContext) SetDevice(device rhi.Device) {
	c.mu.Lock()
	c.device = device
	c.mu.Unlock()
	c.NotifyDeviceChange()
}

func (c *pipelangContext) NotifyDeviceChange() {
	c.mu.Lock()
	device := c.device
	libs := make([]*library, 0, len(c.libraries))
	for _, l := range c.libraries {
		libs = append(libs, l)
	}
	c.mu.Unlock()

	for _, l := range libs {
		l.dropDeviceResources()
		if err := l.RecreateDeviceResources(); err != nil {
			log.Printf("pipelang: recreating %s: %v", l.Name(), err)
		}
	}
	c.shaderCache.SetDevice(device)
}

func (c *pipelangContext) CreateLibrary(name string, fsys fs.FS) (Library, error) {
	return c.createLibrary(name, fsys, "")
}

func (c *pipelangContext) CreateDirLibrary(dir string) (Library, error) {
	return c.createLibrary(dir, os.DirFS(dir), dir)
}

func (c *pipelangContext) createLibrary(name string, fsys fs.FS, dir string) (Library, error) {
	if name == "" || strings.Contains(name, librarySeparator) {
		return nil, fmt.Errorf("library name %q must be non-empty and must not contain %q", name, librarySeparator)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.libraries[name]; exists {
		return nil, fmt.Errorf("library %q already exists", name)
	}
	l := newLibrary(c, name, fsys, dir)
	c.libraries[name] = l
	return l, nil
}

func (c *pipelangContext) GetLibrary(name string) (Library, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.libraries[name]
	if !ok {
		return nil, false
	}
	return l, true
}

func (c *pipelangContext) ShaderCache() ShaderCache {
	return c.shaderCache
}

func (c *pipelangContext) DumpDir() string {
	return c.dumpDir
}

func (c *pipelangContext) Release() {
	c.mu.Lock()
	libs := make([]*library, 0, len(c.libraries))
	for _, l := range c.libraries {
		libs = append(libs, l)
	}
	c.mu.Unlock()
	for _, l := range libs {
		l.releaseLayouts()
	}
	c.shaderCache.Invalidate("")
}
