package loader

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/Carmen-Shannon/foreground/engine/primitive"
	"github.com/qmuntal/gltf"
)

// gltfLoaderBackend imports glTF 2.0 files, both the JSON (.gltf) and the binary (.glb) container.
type gltfLoaderBackend struct{}

var _ loaderBackend = &gltfLoaderBackend{}

func newGLTFLoaderBackend() loaderBackend {
	return &gltfLoaderBackend{}
}

func (b *gltfLoaderBackend) Load(path string, reg *primitive.Registry) (*ImportedScene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open glTF %s: %w", path, err)
	}
	return importDocument(doc, filepath.Dir(path), reg)
}

func (b *gltfLoaderBackend) LoadReader(r io.Reader, reg *primitive.Registry) (*ImportedScene, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode glTF stream: %w", err)
	}
	return importDocument(doc, "", reg)
}

func (b *gltfLoaderBackend) Extensions() []string {
	return []string{".gltf", ".glb"}
}
