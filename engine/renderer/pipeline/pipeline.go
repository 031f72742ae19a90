package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrAlreadyBuilt is returned when a second GPU handle is set on a pipeline.
var ErrAlreadyBuilt = errors.New("pipeline already built")

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	key    string
	shader shader.Shader
	handle resource.Resource
	// released blocks a rebuild after Release
	released bool

	colorFormat  wgpu.TextureFormat
	blendEnabled bool
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	blendState   *wgpu.BlendState
}

// Pipeline is the fixed render state of the engine: one shader holding both stages plus the
// rasterizer, blend and color target settings. It becomes immutable once its GPU handle is set.
type Pipeline interface {
	// Label retrieves the unique identifier for this Pipeline.
	//
	// Returns:
	//   - string: the pipeline key
	Label() string

	// Shader retrieves the compiled shader.
	//
	// Returns:
	//   - shader.Shader: the shader providing vs_main and fs_main
	Shader() shader.Shader

	// Slots returns the shader's binding slots for a group. A resource.Manager validates bind groups
	// against these.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - []shader.BindingSlot: the slots sorted by binding, nil if the group is not declared
	Slots(group int) []shader.BindingSlot

	// Handle retrieves the backend pipeline object.
	//
	// Returns:
	//   - resource.Resource: the GPU pipeline, or nil before it is built
	Handle() resource.Resource

	// SetHandle stores the backend pipeline object. A pipeline is built once.
	//
	// Parameters:
	//   - h: the GPU pipeline
	//
	// Returns:
	//   - error: ErrAlreadyBuilt if a handle is already set
	SetHandle(h resource.Resource) error

	// Built reports whether a GPU handle is set.
	Built() bool

	// ColorFormat returns the color target format, which matches the surface's render format.
	ColorFormat() wgpu.TextureFormat

	// BlendEnabled returns whether color blending is enabled for this pipeline.
	BlendEnabled() bool

	// CullMode returns the face culling mode for this pipeline.
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology for this pipeline.
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order for this pipeline.
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask for this pipeline.
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state used when blending is enabled.
	BlendState() *wgpu.BlendState

	// Release releases the GPU handle if one is set. The pipeline cannot be rebuilt afterwards.
	Release()
}

var _ Pipeline = &pipeline{}
var _ resource.Layout = &pipeline{}

// NewPipeline creates a Pipeline around a compiled shader.
//
// Defaults: triangle list, counter-clockwise front face, no culling, alpha blending and all
// color channels written. The color format must be set with WithColorFormat before building;
// the Renderer does this from the surface.
//
// Parameters:
//   - key: the unique identifier for this pipeline
//   - s: the compiled shader
//   - options: variadic list of PipelineBuilderOption functions to configure the Pipeline
//
// Returns:
//   - Pipeline: the configured pipeline
//   - error: an error if the shader is nil
func NewPipeline(key string, s shader.Shader, options ...PipelineBuilderOption) (Pipeline, error) {
	if s == nil {
		return nil, fmt.Errorf("pipeline %q: shader is nil", key)
	}
	p := &pipeline{
		key:          key,
		shader:       s,
		blendEnabled: true,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}

	for _, opt := range options {
		opt(p)
	}

	return p, nil
}

func (p *pipeline) Label() string {
	return p.key
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Slots(group int) []shader.BindingSlot {
	return p.shader.Slots(group)
}

func (p *pipeline) Handle() resource.Resource {
	return p.handle
}

func (p *pipeline) SetHandle(h resource.Resource) error {
	if p.handle != nil || p.released {
		return fmt.Errorf("%w: %q", ErrAlreadyBuilt, p.key)
	}
	p.handle = h
	return nil
}

func (p *pipeline) Built() bool {
	return p.handle != nil
}

func (p *pipeline) ColorFormat() wgpu.TextureFormat {
	return p.colorFormat
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Release() {
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
	p.released = true
}
