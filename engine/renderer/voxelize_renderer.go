package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/foreground/engine/bootstrap"
	"github.com/Carmen-Shannon/foreground/engine/pipelang"
	"github.com/Carmen-Shannon/foreground/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/foreground/engine/rhi"
)

// NewVoxelizeRenderer creates the renderer that writes the base color of every primitive into the voxel
// volume. Each triangle is rasterized on the volume face its normal points at most; the fragment stage stores
// into the volume and writes no color.
//
// The VoxelData set binding the volume is created on the first draw and shared by every primitive.
//
// Parameters:
//   - bctx: the initialized bootstrap context
//   - library: the Internal Pipelang library
//   - pass: the voxelization pass
//   - volume: a 3D R32Uint storage view of the voxel volume
//   - options: functional options for the renderer
//
// Returns:
//   - PrimitiveRenderer: the renderer
func NewVoxelizeRenderer(bctx bootstrap.Context, library pipelang.Library, pass rhi.RenderPass, volume rhi.TextureView, options ...RendererBuilderOption) PrimitiveRenderer {
	r := newPrimitiveRenderer("voxelize", bctx, library, pass, options...)
	r.usesMaterial = true
	r.compose = func(materialStages []string) []string {
		stages := []string{engineCommonBlock, standardTriMesh, perPrimitiveBlock, "VoxelVS", "VoxelRasterizer"}
		stages = append(stages, materialStages...)
		return append(stages, voxelDataBlock, "VoxelPS")
	}

	var voxels bind_group_provider.BindGroupProvider
	r.extraSet = func(device rhi.Device) (uint32, rhi.BindGroup, error) {
		block := library.GetParameterBlock(voxelDataBlock)
		if block == nil {
			return 0, nil, fmt.Errorf("library %s has no %s block", library.Name(), voxelDataBlock)
		}
		if voxels == nil {
			voxels = block.CreateDescriptorSet("voxelize.voxels")
			block.BindImageView(voxels, "voxels", volume)
		}
		bg, err := voxels.BindGroup(device)
		if err != nil {
			return 0, nil, err
		}
		return block.SetIndex(), bg, nil
	}
	r.release = func() {
		if voxels != nil {
			voxels.Release()
			voxels = nil
		}
	}
	return r
}
