package renderer

import "errors"

// Fatal errors. The engine logs the failing stage and stops.
var (
	ErrDevice          = errors.New("device error")
	ErrPipeline        = errors.New("pipeline error")
	ErrSurface         = errors.New("surface error")
	ErrSurfaceTornDown = errors.New("surface torn down")
	ErrSubmission      = errors.New("submission error")
	ErrInvalidDraw     = errors.New("invalid draw")
)

// Recoverable errors. The frame is skipped and the next one retries.
var (
	ErrSurfaceAcquire      = errors.New("surface image acquire failed")
	ErrSurfaceUnconfigured = errors.New("surface not configured")
	ErrZeroExtent          = errors.New("surface extent is zero")
)

// IsRecoverable reports whether err only costs the current frame.
//
// Parameters:
//   - err: an error returned by the renderer
//
// Returns:
//   - bool: true for acquire failures, an unconfigured surface or a zero extent
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSurfaceAcquire) ||
		errors.Is(err, ErrSurfaceUnconfigured) ||
		errors.Is(err, ErrZeroExtent)
}
