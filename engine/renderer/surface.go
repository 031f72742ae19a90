package renderer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/phex-go/engine/logging"
	"github.com/cogentcore/webgpu/wgpu"
)

// SurfaceState is the lifecycle state of the presentation surface.
type SurfaceState int

const (
	// SurfaceUnconfigured is the state before the first successful Configure.
	SurfaceUnconfigured SurfaceState = iota
	// SurfaceConfigured means images can be acquired. Configure may be called again.
	SurfaceConfigured
	// SurfaceTornDown is terminal.
	SurfaceTornDown
)

// String returns a lower-case name for the state.
func (s SurfaceState) String() string {
	switch s {
	case SurfaceUnconfigured:
		return "unconfigured"
	case SurfaceConfigured:
		return "configured"
	case SurfaceTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("SurfaceState(%d)", int(s))
	}
}

var srgbFormats = []wgpu.TextureFormat{
	wgpu.TextureFormatBGRA8UnormSrgb,
	wgpu.TextureFormatRGBA8UnormSrgb,
}

// surfaceController is the implementation of SurfaceController.
type surfaceController struct {
	backend RendererBackend
	state   SurfaceState

	format      wgpu.TextureFormat
	presentMode wgpu.PresentMode
	config      SurfaceConfig

	// pendingWidth and pendingHeight hold the latest requested size. dirty means the next
	// Acquire must reconfigure to it first.
	pendingWidth  uint32
	pendingHeight uint32
	dirty         bool
}

// SurfaceController owns the presentation surface of one window.
//
// The format and present mode are negotiated once at construction. Every size change goes through
// Resize, and the surface is reconfigured before the next image is acquired.
type SurfaceController interface {
	// State returns the current lifecycle state.
	State() SurfaceState

	// Config returns the configuration last applied to the surface.
	//
	// Returns:
	//   - SurfaceConfig: the applied configuration, zero-sized before the first Configure
	Config() SurfaceConfig

	// Format returns the negotiated surface format. It is also the render target format.
	Format() wgpu.TextureFormat

	// Configure applies the negotiated format and present mode at the given size.
	//
	// Parameters:
	//   - width: surface width in pixels
	//   - height: surface height in pixels
	//
	// Returns:
	//   - error: ErrZeroExtent if either dimension is zero, ErrSurfaceTornDown after TearDown,
	//     or ErrSurface if the backend rejects the configuration
	Configure(width, height uint32) error

	// Resize records a new size. The last call before an Acquire wins.
	//
	// Parameters:
	//   - width: new width in pixels
	//   - height: new height in pixels
	Resize(width, height uint32)

	// Acquire acquires the next surface image, reconfiguring first if the size changed.
	//
	// Returns:
	//   - error: a recoverable error (ErrSurfaceUnconfigured, ErrSurfaceAcquire, ErrZeroExtent) when
	//     the frame should be skipped, or a fatal one
	Acquire() error

	// TearDown releases the surface. Further Configure and Acquire calls fail.
	TearDown()
}

var _ SurfaceController = &surfaceController{}

// newSurfaceController negotiates the surface format and present mode against the backend's
// capabilities. The surface stays unconfigured until Configure.
//
// Parameters:
//   - backend: the renderer backend owning the surface
//   - mode: the requested present mode
//   - preferSRGB: whether an sRGB format is preferred
//
// Returns:
//   - SurfaceController: the controller
//   - error: ErrSurface if the surface advertises no formats
func newSurfaceController(backend RendererBackend, mode PresentMode, preferSRGB bool) (SurfaceController, error) {
	caps := backend.SurfaceCapabilities()
	format, ok := negotiateFormat(caps.Formats, preferSRGB)
	if !ok {
		return nil, fmt.Errorf("%w: surface advertises no formats", ErrSurface)
	}
	presentMode := negotiatePresentMode(caps.PresentModes, mode)

	logging.Debug("surface negotiated", "format", format, "present_mode", presentMode)
	return &surfaceController{
		backend:     backend,
		state:       SurfaceUnconfigured,
		format:      format,
		presentMode: presentMode,
	}, nil
}

// negotiateFormat picks the first sRGB format, or the first non-sRGB one when sRGB is not
// preferred. Without a match the first advertised format is used.
func negotiateFormat(formats []wgpu.TextureFormat, preferSRGB bool) (wgpu.TextureFormat, bool) {
	if len(formats) == 0 {
		return wgpu.TextureFormatUndefined, false
	}
	for _, f := range formats {
		if slices.Contains(srgbFormats, f) == preferSRGB {
			return f, true
		}
	}
	return formats[0], true
}

// negotiatePresentMode maps the requested mode onto what the surface advertises. Fifo is always
// supported, so it is the fallback.
func negotiatePresentMode(modes []wgpu.PresentMode, mode PresentMode) wgpu.PresentMode {
	if mode == PresentModeUncapped {
		for _, m := range []wgpu.PresentMode{wgpu.PresentModeImmediate, wgpu.PresentModeMailbox} {
			if slices.Contains(modes, m) {
				return m
			}
		}
	}
	return wgpu.PresentModeFifo
}

func (s *surfaceController) State() SurfaceState {
	return s.state
}

func (s *surfaceController) Config() SurfaceConfig {
	return s.config
}

func (s *surfaceController) Format() wgpu.TextureFormat {
	return s.format
}

func (s *surfaceController) Configure(width, height uint32) error {
	if s.state == SurfaceTornDown {
		return ErrSurfaceTornDown
	}
	s.pendingWidth, s.pendingHeight = width, height
	s.dirty = true
	if width == 0 || height == 0 {
		return ErrZeroExtent
	}

	cfg := SurfaceConfig{
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: s.presentMode,
	}
	if err := s.backend.ConfigureSurface(cfg); err != nil {
		return fmt.Errorf("%w: configure %dx%d: %w", ErrSurface, width, height, err)
	}

	s.config = cfg
	s.state = SurfaceConfigured
	s.dirty = false
	logging.Debug("surface configured", "width", width, "height", height)
	return nil
}

func (s *surfaceController) Resize(width, height uint32) {
	if s.state == SurfaceTornDown {
		return
	}
	s.pendingWidth, s.pendingHeight = width, height
	s.dirty = true
}

func (s *surfaceController) Acquire() error {
	if s.state == SurfaceTornDown {
		return ErrSurfaceTornDown
	}
	if s.dirty {
		if err := s.Configure(s.pendingWidth, s.pendingHeight); err != nil {
			return err
		}
	}
	if s.state != SurfaceConfigured {
		return ErrSurfaceUnconfigured
	}

	if err := s.backend.AcquireFrame(); err != nil {
		// The image may be outdated or lost, so reconfigure at the current size next time.
		s.pendingWidth, s.pendingHeight = s.config.Width, s.config.Height
		s.dirty = true
		return errors.Join(ErrSurfaceAcquire, err)
	}
	return nil
}

func (s *surfaceController) TearDown() {
	if s.state == SurfaceTornDown {
		return
	}
	s.state = SurfaceTornDown
	s.dirty = false
	s.backend.ReleaseSurface()
}
