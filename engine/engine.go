// Package engine ties a window, a renderer and a draw strategy into one explicitly owned value.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
	"github.com/Carmen-Shannon/phex-go/engine/logging"
	"github.com/Carmen-Shannon/phex-go/engine/profiler"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/strategy"
	"github.com/Carmen-Shannon/phex-go/engine/window"
	"golang.org/x/exp/rand"
)

// ErrShutdown is returned by RenderFrame after Shutdown.
var ErrShutdown = errors.New("engine is shut down")

const (
	defaultInstanceCount = 100
	defaultSeed          = 1
)

// engine implements the Engine interface.
type engine struct {
	window   window.Window
	renderer renderer.Renderer
	strategy strategy.Strategy

	profiler         *profiler.Profiler
	profilingEnabled bool
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	kind            strategy.Kind
	instanceCount   int
	seed            uint64
	objects         []instance.Object
	mesh            *geometry.Mesh
	ring            *geometry.RingParams
	image           *common.TextureStagingData
	rendererOptions []renderer.RendererBuilderOption
	strategyOptions []strategy.StrategyBuilderOption

	optionErr error
	shutdown  bool
}

// Engine owns the renderer and the draw strategy of one window. All methods run on the window thread.
type Engine interface {
	// Window returns the window the engine draws into.
	Window() window.Window

	// Renderer returns the underlying renderer.
	Renderer() renderer.Renderer

	// Strategy returns the draw strategy chosen at construction.
	Strategy() strategy.Strategy

	// HandleResize records a new surface size. The surface is reconfigured before the next
	// frame acquires an image; a zero size pauses rendering until a non-zero size arrives.
	//
	// Parameters:
	//   - width: new width in pixels
	//   - height: new height in pixels
	HandleResize(width, height int)

	// RenderFrame draws one frame with the strategy and presents it.
	//
	// Returns:
	//   - renderer.FrameResult: FramePresented, or FrameSkipped when the surface had no image
	//   - error: a fatal render error, or ErrShutdown
	RenderFrame() (renderer.FrameResult, error)

	// Run drives RenderFrame from the window's message loop until the window closes. A fatal
	// render error shuts the engine down, closes the window and is returned.
	//
	// Returns:
	//   - error: the fatal render error, or nil on a normal close
	Run() error

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Shutdown releases the strategy's resources and then the renderer. It is safe to call more
	// than once. The window stays open and belongs to the caller.
	Shutdown()
}

// NewEngine creates the renderer for w, builds the pipeline and uploads the objects through the
// selected strategy.
//
// Parameters:
//   - w: the window to draw into
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the ready engine
//   - error: an option, device, surface, pipeline or resource error
func NewEngine(w window.Window, options ...EngineBuilderOption) (Engine, error) {
	if w == nil {
		return nil, errors.New("engine needs a window")
	}
	e := &engine{
		window:        w,
		profiler:      profiler.NewProfiler(),
		kind:          strategy.KindUniformPerInstance,
		instanceCount: defaultInstanceCount,
		seed:          defaultSeed,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.optionErr != nil {
		return nil, e.optionErr
	}

	mesh, err := e.resolveMesh()
	if err != nil {
		return nil, err
	}
	if e.objects == nil {
		e.objects = instance.RandomObjects(e.instanceCount, rand.New(rand.NewSource(e.seed)))
	}

	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, w, e.rendererOptions...)
	if err != nil {
		return nil, err
	}
	s, err := strategy.New(e.kind, e.strategyOptions...)
	if err != nil {
		r.Release()
		return nil, err
	}
	if err := s.Init(r, e.objects, mesh, e.image); err != nil {
		_ = s.Release()
		r.Release()
		return nil, fmt.Errorf("%s strategy: %w", e.kind, err)
	}
	e.renderer = r
	e.strategy = s

	w.SetResizeCallback(e.HandleResize)
	logging.Info("engine ready",
		"strategy", e.kind,
		"instances", len(e.objects),
		"mesh", mesh.Label,
		"vertices", mesh.VertexCount(),
	)
	return e, nil
}

// resolveMesh picks the explicit mesh, then the ring parameters, then the strategy's default: a
// quad for the textured strategy and the default ring otherwise.
func (e *engine) resolveMesh() (geometry.Mesh, error) {
	switch {
	case e.mesh != nil:
		return *e.mesh, nil
	case e.ring != nil:
		if err := e.ring.Validate(); err != nil {
			return geometry.Mesh{}, err
		}
		return geometry.RingMesh(*e.ring), nil
	case e.kind == strategy.KindTexturedQuad:
		return geometry.Quad(), nil
	default:
		return geometry.RingMesh(geometry.DefaultRingParams()), nil
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Strategy() strategy.Strategy {
	return e.strategy
}

func (e *engine) HandleResize(width, height int) {
	if e.shutdown {
		return
	}
	e.renderer.Resize(width, height)
}

func (e *engine) RenderFrame() (renderer.FrameResult, error) {
	if e.shutdown {
		return renderer.FrameSkipped, ErrShutdown
	}
	res, err := e.renderer.RenderFrame(e.strategy, e.window.PrePresentNotify)
	if err != nil {
		return res, err
	}

	if e.profilingEnabled {
		if res == renderer.FramePresented {
			e.profiler.Tick()
		} else {
			e.profiler.Skip()
		}
	}
	return res, nil
}

func (e *engine) Run() error {
	var runErr error
	e.window.SetUpdateCallback(func() {
		if runErr != nil {
			return
		}
		start := time.Now()
		if _, err := e.RenderFrame(); err != nil {
			runErr = err
			logging.Error("render failed, closing window", "err", err)
			// the surface must go before its native window
			e.Shutdown()
			if cerr := e.window.Close(); cerr != nil {
				logging.Warn("window close failed", "err", cerr)
			}
			return
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	})
	e.window.ProcessMessages()
	e.window.SetUpdateCallback(nil)
	return runErr
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) Shutdown() {
	if e.shutdown {
		return
	}
	e.shutdown = true
	if err := e.strategy.Release(); err != nil {
		logging.Warn("strategy release", "err", err)
	}
	e.renderer.Release()
	logging.Info("engine shut down")
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
