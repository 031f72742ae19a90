// Package config loads the engine settings from a TOML file and watches it for changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/strategy"
	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned for a file that does not decode or holds an unusable value.
var ErrInvalidConfig = errors.New("invalid config")

// Mesh names accepted by scene.mesh.
const (
	MeshRing     = "ring"
	MeshTriangle = "triangle"
	MeshQuad     = "quad"
)

// Config is the full set of file settings. Missing keys keep the values of Default.
type Config struct {
	LogLevel string       `toml:"log_level"`
	Window   WindowConfig `toml:"window"`
	Render   RenderConfig `toml:"render"`
	Scene    SceneConfig  `toml:"scene"`
}

// WindowConfig is the host window.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// RenderConfig selects how frames are drawn and presented.
type RenderConfig struct {
	// Strategy is "uniform", "bulk_storage" or "textured".
	Strategy string `toml:"strategy"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode   string  `toml:"present_mode"`
	SRGB          bool    `toml:"srgb"`
	ForceSoftware bool    `toml:"force_software"`
	FrameLimit    float64 `toml:"frame_limit"`
	Profiling     bool    `toml:"profiling"`
}

// SceneConfig describes what is drawn.
type SceneConfig struct {
	Instances int    `toml:"instances"`
	Seed      uint64 `toml:"seed"`
	// Mesh is "ring", "triangle" or "quad". Empty picks the strategy's default.
	Mesh string `toml:"mesh"`
	// Image is the path of the image the textured strategy samples.
	Image string     `toml:"image"`
	Ring  RingConfig `toml:"ring"`
}

// RingConfig mirrors geometry.RingParams.
type RingConfig struct {
	Radius      float32 `toml:"radius"`
	InnerRadius float32 `toml:"inner_radius"`
	Segments    int     `toml:"segments"`
	StartAngle  float32 `toml:"start_angle"`
	EndAngle    float32 `toml:"end_angle"`
}

// Default returns the settings used when no file is given.
//
// Returns:
//   - Config: uniform strategy, vsync, 100 ring instances in an 800x600 window
func Default() Config {
	ring := geometry.DefaultRingParams()
	return Config{
		LogLevel: "info",
		Window:   WindowConfig{Title: "phex", Width: 800, Height: 600},
		Render: RenderConfig{
			Strategy:    strategy.KindUniformPerInstance.String(),
			PresentMode: "vsync",
			SRGB:        true,
		},
		Scene: SceneConfig{
			Instances: 100,
			Seed:      1,
			Ring: RingConfig{
				Radius:      ring.Radius,
				InnerRadius: ring.InnerRadius,
				Segments:    ring.Segments,
				StartAngle:  ring.StartAngle,
				EndAngle:    ring.EndAngle,
			},
		},
	}
}

// Decode reads a TOML document on top of Default. Unknown keys are rejected.
//
// Parameters:
//   - r: the document
//
// Returns:
//   - Config: the decoded and validated settings
//   - error: ErrInvalidConfig wrapping the decode or validation failure
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return Config{}, fmt.Errorf("%w: line %d column %d: %w", ErrInvalidConfig, row, col, err)
		}
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load decodes the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every enumerated and ranged value.
//
// Returns:
//   - error: ErrInvalidConfig naming the first bad key, or nil
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if _, err := c.StrategyKind(); err != nil {
		return fmt.Errorf("%w: render.strategy: %w", ErrInvalidConfig, err)
	}
	if _, err := c.PresentMode(); err != nil {
		return fmt.Errorf("%w: render.present_mode: %w", ErrInvalidConfig, err)
	}
	if c.Render.FrameLimit < 0 {
		return fmt.Errorf("%w: render.frame_limit must not be negative", ErrInvalidConfig)
	}
	if c.Scene.Instances < 0 {
		return fmt.Errorf("%w: scene.instances must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Mesh(); err != nil {
		return fmt.Errorf("%w: scene: %w", ErrInvalidConfig, err)
	}
	return nil
}

// StrategyKind parses render.strategy.
func (c Config) StrategyKind() (strategy.Kind, error) {
	return strategy.ParseKind(c.Render.Strategy)
}

// PresentMode parses render.present_mode. "fifo" and "immediate" are accepted as aliases.
func (c Config) PresentMode() (renderer.PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Render.PresentMode)) {
	case "vsync", "fifo", "":
		return renderer.PresentModeVSync, nil
	case "uncapped", "immediate":
		return renderer.PresentModeUncapped, nil
	default:
		return 0, fmt.Errorf("unknown present mode %q", c.Render.PresentMode)
	}
}

// RingParams returns scene.ring as geometry parameters.
func (c Config) RingParams() geometry.RingParams {
	r := c.Scene.Ring
	return geometry.RingParams{
		Radius:      r.Radius,
		InnerRadius: r.InnerRadius,
		Segments:    r.Segments,
		StartAngle:  r.StartAngle,
		EndAngle:    r.EndAngle,
	}
}

// Mesh builds the mesh named by scene.mesh. An empty name gives the quad for the textured
// strategy and the configured ring otherwise.
//
// Returns:
//   - geometry.Mesh: the mesh
//   - error: an unknown mesh name, or the ring validation error
func (c Config) Mesh() (geometry.Mesh, error) {
	name := strings.ToLower(strings.TrimSpace(c.Scene.Mesh))
	if name == "" {
		name = MeshRing
		if kind, err := c.StrategyKind(); err == nil && kind == strategy.KindTexturedQuad {
			name = MeshQuad
		}
	}
	switch name {
	case MeshRing:
		params := c.RingParams()
		if err := params.Validate(); err != nil {
			return geometry.Mesh{}, err
		}
		return geometry.RingMesh(params), nil
	case MeshTriangle:
		return geometry.Triangle(), nil
	case MeshQuad:
		return geometry.Quad(), nil
	default:
		return geometry.Mesh{}, fmt.Errorf("unknown mesh %q", c.Scene.Mesh)
	}
}
