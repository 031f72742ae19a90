package bind_group_provider

import "github.com/Carmen-Shannon/phex-go/engine/renderer/resource"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithGroup sets the bind group index the provider fills. The default is 0.
//
// Parameters:
//   - group: the bind group index
//
// Returns:
//   - BindGroupProviderOption: a function that sets the group for this provider
func WithGroup(group int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.group = group
	}
}

// WithBuffer sets a buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding uint32, buf *resource.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithTexture sets a texture for a specific binding index.
func WithTexture(binding uint32, tex *resource.Texture) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textures[binding] = tex
	}
}

// WithSampler sets a sampler for a specific binding index.
func WithSampler(binding uint32, s *resource.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = s
	}
}

// WithVertexBuffer sets the mesh vertex buffer and its vertex count.
//
// Parameters:
//   - buf: the vertex buffer
//   - count: the number of vertices it holds
//
// Returns:
//   - BindGroupProviderOption: a function that sets the mesh for this provider
func WithVertexBuffer(buf *resource.Buffer, count uint32) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.vertexBuffer = buf
		p.vertexCount = count
	}
}
