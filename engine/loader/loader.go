package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/scene"
	"github.com/qmuntal/gltf"
	"golang.org/x/sync/singleflight"
)

// LoaderBackendType identifies the scene file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

var (
	// ErrUnsupportedFormat is returned for a file extension no backend handles.
	ErrUnsupportedFormat = errors.New("loader: unsupported file format")
	// ErrReleased is returned by every import after Release.
	ErrReleased = errors.New("loader: released")
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu *sync.RWMutex

	bctx     bootstrap.Context
	backends []loaderBackend
	cache    map[string]*ImportedScene
	group    singleflight.Group
	released bool
}

// Loader imports scene files into the scene graph and caches the imported data, so a file loaded twice is
// read once and both instances share their primitives and materials.
// All methods are safe for concurrent use; concurrent loads of the same file share one import.
type Loader interface {
	// Load imports the file at path, or reuses the cached import, and instantiates it below parent.
	//
	// Parameters:
	//   - path: the file path; the backend is chosen by extension
	//   - parent: the node the instance is attached to
	//
	// Returns:
	//   - scene.SceneNode: the container node of the instance, named after the file
	//   - error: ErrUnsupportedFormat, ErrReleased, or the import error
	Load(path string, parent scene.SceneNode) (scene.SceneNode, error)

	// LoadReader imports a self-contained glTF stream (GLB, or JSON with embedded buffers) cached under name,
	// and instantiates it below parent.
	//
	// Parameters:
	//   - name: the cache key
	//   - r: the stream, read only when name is not cached
	//   - parent: the node the instance is attached to
	//
	// Returns:
	//   - scene.SceneNode: the container node of the instance
	//   - error: ErrReleased or the decode error
	LoadReader(name string, r io.Reader, parent scene.SceneNode) (scene.SceneNode, error)

	// Import converts an already decoded document cached under name, and instantiates it below parent.
	// It replaces nothing: a cached name is instantiated from the cache.
	//
	// Parameters:
	//   - name: the cache key
	//   - doc: the document
	//   - dir: the directory external image URIs are relative to
	//   - parent: the node the instance is attached to
	//
	// Returns:
	//   - scene.SceneNode: the container node of the instance
	//   - error: ErrReleased or the import error
	Import(name string, doc *gltf.Document, dir string, parent scene.SceneNode) (scene.SceneNode, error)

	// Get returns the cached import for name, or nil.
	Get(name string) *ImportedScene

	// Names returns the cached names in sorted order.
	Names() []string

	// Evict drops the cached import for name. Instances already in a scene keep rendering; the primitives are
	// destroyed when the last instance is removed.
	//
	// Returns:
	//   - bool: true if name was cached
	Evict(name string) bool

	// Release evicts everything and frees the GPU resources of the cached materials. Later imports fail.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a Loader creating its primitives in the registry of bctx.
// It panics on a nil context.
//
// Parameters:
//   - bctx: the bootstrap context
//   - backendType: the default backend (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(bctx bootstrap.Context, backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	if bctx == nil {
		panic("loader: NewLoader called with a nil bootstrap context")
	}
	l := &loader{
		mu:    &sync.RWMutex{},
		bctx:  bctx,
		cache: make(map[string]*ImportedScene),
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backends = append(l.backends, newGLTFLoaderBackend())
	default:
		panic(fmt.Sprintf("loader: unknown backend type %d", backendType))
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string, parent scene.SceneNode) (scene.SceneNode, error) {
	key := filepath.Clean(path)
	backend, err := l.resolveBackend(key)
	if err != nil {
		return nil, err
	}
	return l.instance(key, parent, func() (*ImportedScene, error) {
		return backend.Load(key, l.bctx.Registry())
	})
}

func (l *loader) LoadReader(name string, r io.Reader, parent scene.SceneNode) (scene.SceneNode, error) {
	backend := l.backends[0]
	return l.instance(name, parent, func() (*ImportedScene, error) {
		return backend.LoadReader(r, l.bctx.Registry())
	})
}

func (l *loader) Import(name string, doc *gltf.Document, dir string, parent scene.SceneNode) (scene.SceneNode, error) {
	if doc == nil {
		return nil, fmt.Errorf("import %q: nil document", name)
	}
	return l.instance(name, parent, func() (*ImportedScene, error) {
		return importDocument(doc, dir, l.bctx.Registry())
	})
}

// instance returns an instance of the cached import for key, importing it first if needed.
func (l *loader) instance(key string, parent scene.SceneNode, load func() (*ImportedScene, error)) (scene.SceneNode, error) {
	if parent == nil {
		panic("loader: nil parent node")
	}
	s, err := l.cached(key, load)
	if err != nil {
		return nil, err
	}
	return instantiate(s, parent), nil
}

func (l *loader) cached(key string, load func() (*ImportedScene, error)) (*ImportedScene, error) {
	l.mu.RLock()
	if l.released {
		l.mu.RUnlock()
		return nil, ErrReleased
	}
	if s, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return s, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do(key, func() (any, error) {
		l.mu.RLock()
		s, ok := l.cache[key]
		l.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := load()
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		s.Name = filepath.Base(key)

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.released {
			s.release()
			return nil, ErrReleased
		}
		l.cache[key] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ImportedScene), nil
}

func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, b := range l.backends {
		if slices.Contains(b.Extensions(), ext) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

func (l *loader) Get(name string) *ImportedScene {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.cache[name]; ok {
		return s
	}
	return l.cache[filepath.Clean(name)]
}

func (l *loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.cache))
	for k := range l.cache {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func (l *loader) Evict(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.cache[name]
	if !ok {
		return false
	}
	delete(l.cache, name)
	s.release()
	return true
}

func (l *loader) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, s := range l.cache {
		s.release()
		for _, m := range s.Materials {
			m.Release()
		}
		delete(l.cache, name)
	}
	l.released = true
}
