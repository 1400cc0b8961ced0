package pipelang

import (
	"embed"
	"io/fs"
)

//go:embed assets/internal
var internalAssets embed.FS

// InternalFS is the renderer's built-in library: the EngineCommon, material, per-primitive, voxel, shadow
// and post-processing blocks with the stages that use them.
var InternalFS = mustSub(internalAssets, "assets/internal")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
