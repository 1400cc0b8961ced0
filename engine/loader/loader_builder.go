package loader

import (
	"log"

	"github.com/qmuntal/gltf"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithDocument is an option builder that pre-populates the cache with a decoded glTF document.
// A document that fails to import is skipped and logged.
//
// Parameters:
//   - key: the cache key for the document
//   - doc: the document to import
//
// Returns:
//   - LoaderBuilderOption: a function that applies the document option to a loader
func WithDocument(key string, doc *gltf.Document) LoaderBuilderOption {
	return func(l *loader) {
		if _, err := l.cached(key, func() (*ImportedScene, error) {
			return importDocument(doc, "", l.bctx.Registry())
		}); err != nil {
			log.Printf("[Loader] preloading %q: %v", key, err)
		}
	}
}
