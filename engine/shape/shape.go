// Package shape holds the drawable geometry a primitive carries.
package shape

import (
	"errors"

	"github.com/Carmen-Shannon/foreground/common"
)

// Kind identifies the concrete shape variant. Renderers switch on it to pick the vertex input stages of a
// pipeline composition.
type Kind int

const (
	// KindTriangleMesh is a TriangleMesh.
	KindTriangleMesh Kind = iota
)

func (k Kind) String() string {
	switch k {
	case KindTriangleMesh:
		return "triangle_mesh"
	default:
		return "unknown"
	}
}

// ErrUnknownKind is returned when a renderer meets a shape kind it has no stages for.
var ErrUnknownKind = errors.New("shape: unknown kind")

// Shape is the closed set of geometry a primitive can draw.
type Shape interface {
	// Kind returns the concrete variant.
	Kind() Kind

	// BoundingBox returns the local-space bounds of the geometry.
	BoundingBox() common.BoundingBox

	// Release frees the GPU buffers of the shape. They are recreated on the next upload.
	Release()
}
