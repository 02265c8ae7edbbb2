package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption configures a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroupLayout sets the layout bind groups are built against, borrowed from the pipeline.
func WithBindGroupLayout(bgl *wgpu.BindGroupLayout) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.layout = bgl
	}
}
