package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/logging"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/phex-go/engine/window"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	surface     SurfaceController
	resources   resource.Manager
	pipeline    pipeline.Pipeline

	// width and height are the latest requested surface size.
	width    uint32
	height   uint32
	released bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	preferSRGB           bool
}

// Renderer is the high-level rendering API. It owns the backend device, the surface, the single
// render pipeline and the resource manager, and renders one frame at a time from a FrameSource.
//
// Teardown runs in reverse dependency order: resources, pipeline, surface, device.
type Renderer interface {
	// Backend returns the GPU backend.
	Backend() RendererBackend

	// Surface returns the surface controller.
	Surface() SurfaceController

	// Resources returns the manager owning every buffer, texture, sampler and bind group.
	Resources() resource.Manager

	// Pipeline returns the built pipeline, or nil before BuildPipeline.
	Pipeline() pipeline.Pipeline

	// BuildPipeline compiles the shader and creates the render pipeline. The color format is the
	// surface format. Only one pipeline is built per renderer.
	//
	// Parameters:
	//   - key: unique name of the pipeline and its shader
	//   - source: annotated WGSL declaring vs_main and fs_main
	//   - options: pipeline state options
	//
	// Returns:
	//   - pipeline.Pipeline: the built pipeline
	//   - error: a *shader.CompilationError for bad source, or an error wrapping ErrPipeline
	BuildPipeline(key, source string, options ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error)

	// Resize records a new surface size. The surface is reconfigured before the next frame acquires.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// AspectRatio returns width divided by height of the latest size, or 1 when either is zero.
	AspectRatio() float32

	// UploadMesh creates a vertex buffer holding the mesh and returns a provider carrying it.
	//
	// Parameters:
	//   - label: debug label of the buffer and provider
	//   - mesh: the vertices to upload
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: a provider with only the vertex buffer set
	//   - error: an error if the mesh is empty or the buffer cannot be created
	UploadMesh(label string, mesh geometry.Mesh) (bind_group_provider.BindGroupProvider, error)

	// WriteBuffers queues buffer writes on the device queue.
	//
	// Parameters:
	//   - writes: writes targeting buffers held by providers
	//
	// Returns:
	//   - error: the first write that fails validation
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// RenderFrame renders one frame: acquire, upload, begin pass, draw, end pass and submit,
	// prePresent, present.
	//
	// Parameters:
	//   - source: supplies the frame's buffer writes and draw calls
	//   - prePresent: called after submission and before present; may be nil
	//
	// Returns:
	//   - FrameResult: FramePresented, or FrameSkipped when no surface image was available
	//   - error: a fatal error; the acquired image has already been released
	RenderFrame(source FrameSource, prePresent func()) (FrameResult, error)

	// Release releases resources, the pipeline, the surface and the device, in that order.
	// It is safe to call more than once.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates the backend for the window, negotiates the surface and configures it at the
// window's size. A zero-sized window leaves the surface to be configured on the first frame.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - w: the window the surface is bound to
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error wrapping ErrDevice or ErrSurface
func NewRenderer(backendType RendererBackendType, w window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		presentMode: PresentModeVSync,
		preferSRGB:  true,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			backend, err := newWGPURendererBackend(w.SurfaceDescriptor(), r.forceFallbackAdapter)
			if err != nil {
				return nil, err
			}
			r.backend = backend
		default:
			return nil, fmt.Errorf("%w: unknown backend type %d", ErrDevice, backendType)
		}
	}

	surface, err := newSurfaceController(r.backend, r.presentMode, r.preferSRGB)
	if err != nil {
		r.backend.ReleaseSurface()
		r.backend.Release()
		return nil, err
	}
	r.surface = surface
	r.resources = resource.NewManager(r.backend)

	r.width, r.height = clampExtent(w.Width()), clampExtent(w.Height())
	if err := r.surface.Configure(r.width, r.height); err != nil && !errors.Is(err, ErrZeroExtent) {
		r.Release()
		return nil, err
	}

	logging.Info("renderer ready", "format", r.surface.Format(), "present_mode", r.presentMode.String(),
		"width", r.width, "height", r.height)
	return r, nil
}

func clampExtent(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) Surface() SurfaceController {
	return r.surface
}

func (r *renderer) Resources() resource.Manager {
	return r.resources
}

func (r *renderer) Pipeline() pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipeline
}

func (r *renderer) BuildPipeline(key, source string, options ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil, fmt.Errorf("%w: renderer released", ErrPipeline)
	}
	if r.pipeline != nil {
		return nil, fmt.Errorf("%w: pipeline %q already built", ErrPipeline, r.pipeline.Label())
	}

	s, err := shader.NewShader(key, source)
	if err != nil {
		return nil, err
	}

	options = append(options, pipeline.WithColorFormat(r.surface.Format()))
	p, err := pipeline.NewPipeline(key, s, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	handle, err := r.backend.CreateRenderPipeline(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPipeline, key, err)
	}
	if err := p.SetHandle(handle); err != nil {
		handle.Release()
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	r.pipeline = p
	logging.Debug("pipeline built", "key", key, "groups", s.Groups())
	return p, nil
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.width, r.height = clampExtent(width), clampExtent(height)
	r.surface.Resize(r.width, r.height)
}

func (r *renderer) AspectRatio() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aspectRatio()
}

func (r *renderer) aspectRatio() float32 {
	if r.width == 0 || r.height == 0 {
		return 1
	}
	return float32(r.width) / float32(r.height)
}

func (r *renderer) UploadMesh(label string, mesh geometry.Mesh) (bind_group_provider.BindGroupProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := mesh.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("mesh %q has no vertices", label)
	}
	buf, err := r.resources.CreateBuffer(label, resource.BufferUsageVertex, uint64(len(data)))
	if err != nil {
		return nil, err
	}
	if err := r.resources.WriteBuffer(buf, 0, data); err != nil {
		_ = buf.Release()
		return nil, err
	}
	return bind_group_provider.NewBindGroupProvider(label,
		bind_group_provider.WithVertexBuffer(buf, mesh.VertexCount()),
	), nil
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeBuffers(writes)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return
	}
	r.released = true

	r.resources.Release()
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	r.surface.TearDown()
	r.backend.Release()
	logging.Debug("renderer released")
}
