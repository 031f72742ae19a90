package renderer

import (
	"github.com/Carmen-Shannon/phex-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing. This is the default.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// String returns the configuration name of the mode.
func (m PresentMode) String() string {
	if m == PresentModeUncapped {
		return "uncapped"
	}
	return "vsync"
}

// SurfaceCapabilities is what the adapter supports for the window's surface.
type SurfaceCapabilities struct {
	Formats      []wgpu.TextureFormat
	PresentModes []wgpu.PresentMode
}

// SurfaceConfig is the configuration applied to the surface.
type SurfaceConfig struct {
	// Format is the surface format. It is also the render target view format and the
	// pipeline's color format.
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	PresentMode wgpu.PresentMode
}

// DrawCommand is one resolved draw handed to the backend.
type DrawCommand struct {
	Pipeline resource.Resource
	// BindGroups is indexed by group; nil entries are not set.
	BindGroups    []resource.Resource
	VertexBuffer  resource.Resource
	VertexCount   uint32
	InstanceCount uint32
}

// RendererBackend is the GPU API behind the Renderer. It is a resource.Device for the resource
// manager plus the surface, pipeline and per-frame command operations.
//
// A frame is driven as AcquireFrame, queue writes, BeginPass, Draw..., EndFrame, Present.
// DiscardFrame drops whatever part of a frame is in flight.
type RendererBackend interface {
	resource.Device

	// SurfaceCapabilities queries the formats and present modes the surface supports.
	//
	// Returns:
	//   - SurfaceCapabilities: the supported formats and present modes, in preference order
	SurfaceCapabilities() SurfaceCapabilities

	// ConfigureSurface applies a configuration. The alpha mode is the first one the surface supports.
	//
	// Parameters:
	//   - cfg: format, extent and present mode
	//
	// Returns:
	//   - error: an error if the surface cannot be configured
	ConfigureSurface(cfg SurfaceConfig) error

	// CreateRenderPipeline creates the GPU pipeline, its layout and bind group layouts.
	//
	// Parameters:
	//   - p: the pipeline description
	//
	// Returns:
	//   - resource.Resource: the GPU pipeline handle, accepted by CreateBindGroup as a layout
	//   - error: an error if the shader module, layouts or pipeline cannot be created
	CreateRenderPipeline(p pipeline.Pipeline) (resource.Resource, error)

	// AcquireFrame acquires the next surface image and its view.
	//
	// Returns:
	//   - error: an error if no image is available; the surface should be reconfigured
	AcquireFrame() error

	// BeginPass creates the command encoder and begins the render pass on the acquired image.
	//
	// Parameters:
	//   - clear: the color the image is cleared to
	//
	// Returns:
	//   - error: an error if no image is acquired or the encoder cannot be created
	BeginPass(clear wgpu.Color) error

	// Draw encodes one draw in the open pass.
	Draw(cmd DrawCommand) error

	// EndFrame ends the pass and submits the command buffer.
	EndFrame() error

	// Present presents the acquired image and releases it.
	Present()

	// DiscardFrame releases any pass, encoder or image of an unfinished frame.
	DiscardFrame()

	// ReleaseSurface releases the surface. It is called after every pipeline is released.
	ReleaseSurface()

	// Release releases the queue, device, adapter and instance.
	Release()
}
