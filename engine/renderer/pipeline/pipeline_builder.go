package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithColorFormat sets the color target format. It must match the surface's render format.
//
// Parameters:
//   - format: the color target texture format
//
// Returns:
//   - PipelineBuilderOption: a function that applies the color format option to a pipeline
func WithColorFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.colorFormat = format
	}
}

// WithBlendEnabled enables or disables color blending on the pipeline.
//
// Parameters:
//   - enabled: true to enable blending, false to disable
//
// Returns:
//   - PipelineBuilderOption: a function that applies the blend enabled option to a pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithCullMode sets the face culling mode for the pipeline.
//
// Parameters:
//   - mode: the wgpu.CullMode to use (e.g. CullModeNone, CullModeBack)
//
// Returns:
//   - PipelineBuilderOption: a function that applies the cull mode option to a pipeline
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithTopology sets the primitive topology for the pipeline.
//
// Parameters:
//   - topology: the wgpu.PrimitiveTopology to use (e.g. TriangleList, LineList)
//
// Returns:
//   - PipelineBuilderOption: a function that applies the topology option to a pipeline
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}

// WithFrontFace sets the front face winding order for the pipeline.
func WithFrontFace(face wgpu.FrontFace) PipelineBuilderOption {
	return func(p *pipeline) {
		p.frontFace = face
	}
}

// WithWriteMask sets the color write mask for the pipeline.
func WithWriteMask(mask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = mask
	}
}

// WithBlendState replaces the blend state used when blending is enabled. A nil state is ignored.
//
// Parameters:
//   - state: the blend state for color and alpha
//
// Returns:
//   - PipelineBuilderOption: a function that applies the blend state option to a pipeline
func WithBlendState(state *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		if state != nil {
			p.blendState = state
		}
	}
}
