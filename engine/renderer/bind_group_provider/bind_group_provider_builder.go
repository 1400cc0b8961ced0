package bind_group_provider

import "github.com/Carmen-Shannon/foreground/engine/rhi"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroupLayout sets the descriptor-set layout this provider instantiates.
//
// Parameters:
//   - bgl: the bind group layout to use for this provider
//
// Returns:
//   - BindGroupProviderOption: a function that sets the bind group layout for this provider
func WithBindGroupLayout(bgl rhi.BindGroupLayout) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.layout = bgl
	}
}

// WithBuffer stages a whole buffer at a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf rhi.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.stage(binding, rhi.BindGroupEntry{Binding: uint32(binding), Buffer: buf})
	}
}

// WithBuffers stages multiple whole buffers using a map of binding indices to buffers.
//
// Parameters:
//   - buffers: a map of binding indices to buffers to associate with this provider
//
// Returns:
//   - BindGroupProviderOption: a function that sets multiple buffers for this provider
func WithBuffers(buffers map[int]rhi.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for binding, buf := range buffers {
			p.stage(binding, rhi.BindGroupEntry{Binding: uint32(binding), Buffer: buf})
		}
	}
}
