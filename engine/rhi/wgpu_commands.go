package rhi

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuCommands struct {
	device  *wgpuDevice
	encoder *wgpu.CommandEncoder
	open    *wgpuRenderContext
}

var _ CommandContext = &wgpuCommands{}

func (c *wgpuCommands) BeginRenderPass(pass RenderPass) (RenderContext, error) {
	if c.encoder == nil {
		return nil, ErrReleased
	}
	if c.open != nil {
		return nil, errors.New("rhi: previous render pass not ended")
	}

	desc := pass.Desc()
	colors := make([]wgpu.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, a := range desc.ColorAttachments {
		view, err := c.resolveView(a.View)
		if err != nil {
			return nil, fmt.Errorf("rhi: pass %q color %d: %w", desc.Label, i, err)
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearColor,
		}
	}

	rpd := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if ds := desc.DepthStencil; ds != nil {
		view, err := c.resolveView(ds.View)
		if err != nil {
			return nil, fmt.Errorf("rhi: pass %q depth: %w", desc.Label, err)
		}
		rpd.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     ds.LoadOp,
			DepthStoreOp:    ds.StoreOp,
			DepthClearValue: ds.ClearDepth,
		}
	}

	c.open = &wgpuRenderContext{cmd: c, pass: c.encoder.BeginRenderPass(rpd)}
	return c.open, nil
}

func (c *wgpuCommands) resolveView(v TextureView) (*wgpu.TextureView, error) {
	if v == nil {
		cur := c.device.swapChain.currentView()
		if cur == nil {
			return nil, ErrSurfaceUnavailable
		}
		return cur.v, nil
	}
	wv, ok := v.(*wgpuTextureView)
	if !ok || wv.v == nil {
		return nil, ErrReleased
	}
	return wv.v, nil
}

func (c *wgpuCommands) ClearTexture(tex Texture) error {
	t, ok := tex.(*wgpuTexture)
	if !ok || t.tex == nil {
		return ErrReleased
	}
	// Queue writes are ordered before the submission that follows them.
	c.device.clearTexture(t)
	return nil
}

func (c *wgpuCommands) Submit() error {
	if c.encoder == nil {
		return ErrReleased
	}
	if c.open != nil {
		return errors.New("rhi: submit with an open render pass")
	}

	commandBuffer, err := c.encoder.Finish(nil)
	if err != nil {
		c.Release()
		return fmt.Errorf("rhi: finish command encoder: %w", err)
	}

	c.device.mu.Lock()
	c.device.queue.Submit(commandBuffer)
	c.device.mu.Unlock()

	commandBuffer.Release()
	c.Release()
	return nil
}

func (c *wgpuCommands) Release() {
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
	c.open = nil
}

type wgpuRenderContext struct {
	cmd  *wgpuCommands
	pass *wgpu.RenderPassEncoder
}

var _ RenderContext = &wgpuRenderContext{}

func (r *wgpuRenderContext) BindRenderPipeline(p RenderPipeline) {
	if wp, ok := p.(*wgpuRenderPipeline); ok && wp.p != nil {
		r.pass.SetPipeline(wp.p)
	}
}

func (r *wgpuRenderContext) BindBindGroup(index uint32, bg BindGroup) {
	if wb, ok := bg.(*wgpuBindGroup); ok && wb.bg != nil {
		r.pass.SetBindGroup(index, wb.bg, nil)
	}
}

func (r *wgpuRenderContext) BindVertexBuffer(slot uint32, buf Buffer, offset uint64) {
	if wb, ok := buf.(*wgpuBuffer); ok && wb.buf != nil {
		r.pass.SetVertexBuffer(slot, wb.buf, offset, wgpu.WholeSize)
	}
}

func (r *wgpuRenderContext) BindIndexBuffer(buf Buffer, format wgpu.IndexFormat, offset uint64) {
	if wb, ok := buf.(*wgpuBuffer); ok && wb.buf != nil {
		r.pass.SetIndexBuffer(wb.buf, format, offset, wgpu.WholeSize)
	}
}

func (r *wgpuRenderContext) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *wgpuRenderContext) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (r *wgpuRenderContext) End() error {
	if r.pass == nil {
		return nil
	}
	r.pass.End()
	r.pass.Release()
	r.pass = nil
	r.cmd.open = nil
	return nil
}
