package loader

import (
	"io"

	"github.com/Carmen-Shannon/foreground/engine/primitive"
)

// loaderBackend defines the generic interface for importing scene files.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load imports the file at path. Primitives are created in reg.
	//
	// Parameters:
	//   - path: the file path to load
	//   - reg: the registry the primitives are created in
	//
	// Returns:
	//   - *ImportedScene: the imported scene, without a Name
	//   - error: error if the file cannot be read or decoded
	Load(path string, reg *primitive.Registry) (*ImportedScene, error)

	// LoadReader imports a self-contained file from a stream. External resources cannot be resolved.
	//
	// Parameters:
	//   - r: the reader providing the file data
	//   - reg: the registry the primitives are created in
	//
	// Returns:
	//   - *ImportedScene: the imported scene, without a Name
	//   - error: error if the stream cannot be decoded
	LoadReader(r io.Reader, reg *primitive.Registry) (*ImportedScene, error)

	// Extensions lists the lower-case file extensions the backend handles, including the dot.
	Extensions() []string
}
