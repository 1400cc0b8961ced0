package pipelang

import (
	"context"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/foreground/engine/rhi"
	"github.com/Carmen-Shannon/foreground/engine/rhi/rhitest"
	"github.com/stretchr/testify/require"
)

// countingCompiler records every compile it is asked to run.
type countingCompiler struct {
	mu    sync.Mutex
	keys  []string
	inner DeviceCompiler
}

func (c *countingCompiler) Compile(ctx context.Context, device rhi.Device, env CompileEnvironment) (rhi.ShaderModule, error) {
	c.mu.Lock()
	c.keys = append(c.keys, env.Key)
	c.mu.Unlock()
	return c.inner.Compile(ctx, device, env)
}

func (c *countingCompiler) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

// newInternal parses the built-in library on a recording device.
func newInternal(t *testing.T, opts ...ContextBuilderOption) (*rhitest.Device, Context, Library) {
	t.Helper()
	d := rhitest.NewDevice()
	ctx := NewContext(d, opts...)
	lib, err := ctx.CreateLibrary("Internal", InternalFS)
	require.NoError(t, err)
	require.NoError(t, lib.Parse())
	return d, ctx, lib
}

var (
	gbufferStages = []string{
		"EngineCommon", "StandardTriMesh", "PerPrimitive", "StaticMeshVS",
		"BasicMaterialParams", "BasicMaterial", "GBufferPS",
	}
	voxelStages = []string{
		"EngineCommon", "StandardTriMesh", "PerPrimitive", "VoxelVS", "VoxelRasterizer",
		"BasicMaterialParams", "BasicMaterial", "VoxelData", "VoxelPS",
	}
	zOnlyStages = []string{"ShadowCommon", "StandardTriMesh", "PerPrimitive", "ZOnlyVS", "ShadowRasterizer"}
)
