package engine

import (
	"fmt"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/config"
	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/strategy"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameDuration(fps)
	}
}

// WithStrategy selects the draw strategy. The default is strategy.KindUniformPerInstance.
//
// Parameters:
//   - kind: the strategy
//   - options: options passed to strategy.New
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithStrategy(kind strategy.Kind, options ...strategy.StrategyBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.kind = kind
		e.strategyOptions = append(e.strategyOptions, options...)
	}
}

// WithInstanceCount sets how many random objects are generated. Ignored when WithObjects is given.
//
// Parameters:
//   - n: the object count, negative values are treated as zero
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithInstanceCount(n int) EngineBuilderOption {
	return func(e *engine) {
		e.instanceCount = max(n, 0)
	}
}

// WithSeed seeds the random object generator so runs are reproducible.
func WithSeed(seed uint64) EngineBuilderOption {
	return func(e *engine) {
		e.seed = seed
	}
}

// WithObjects draws exactly these objects instead of random ones.
//
// Parameters:
//   - objects: the objects in draw order; the engine updates their per-frame data in place
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithObjects(objects []instance.Object) EngineBuilderOption {
	return func(e *engine) {
		if objects == nil {
			objects = []instance.Object{}
		}
		e.objects = objects
	}
}

// WithMesh sets the geometry every object is drawn with. It takes precedence over WithRing.
func WithMesh(mesh geometry.Mesh) EngineBuilderOption {
	return func(e *engine) {
		e.mesh = &mesh
	}
}

// WithRing draws every object as a ring generated from params. The parameters are validated
// when the engine is created.
func WithRing(params geometry.RingParams) EngineBuilderOption {
	return func(e *engine) {
		e.ring = &params
	}
}

// WithImage sets the decoded image sampled by strategy.KindTexturedQuad.
//
// Parameters:
//   - image: RGBA pixels with dimensions, see common.DecodeImage
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithImage(image common.TextureStagingData) EngineBuilderOption {
	return func(e *engine) {
		e.image = &image
	}
}

// WithRendererOptions forwards options to renderer.NewRenderer.
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithConfig applies a loaded config file: strategy, scene, present mode and profiling. Options
// given after it override what it sets. A config that names an image loads it from disk.
//
// Parameters:
//   - cfg: the config, see config.Load
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		if err := cfg.Validate(); err != nil {
			e.optionErr = err
			return
		}
		kind, _ := cfg.StrategyKind()
		mode, _ := cfg.PresentMode()
		mesh, _ := cfg.Mesh()

		e.kind = kind
		e.instanceCount = cfg.Scene.Instances
		e.seed = cfg.Scene.Seed
		e.mesh = &mesh
		e.profilingEnabled = cfg.Render.Profiling
		e.renderFrameLimit = frameDuration(cfg.Render.FrameLimit)
		e.rendererOptions = append(e.rendererOptions,
			renderer.WithPresentMode(mode),
			renderer.WithSRGB(cfg.Render.SRGB),
			renderer.WithForceSoftwareRenderer(cfg.Render.ForceSoftware),
		)

		if cfg.Scene.Image != "" {
			image, err := common.LoadImage(cfg.Scene.Image)
			if err != nil {
				e.optionErr = fmt.Errorf("scene.image: %w", err)
				return
			}
			e.image = &image
		}
	}
}
