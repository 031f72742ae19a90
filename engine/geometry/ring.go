// Package geometry generates the procedural 2D vertex data drawn by the engine.
package geometry

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// ErrInvalidRing is returned by RingParams.Validate when the parameters cannot describe a ring.
var ErrInvalidRing = errors.New("invalid ring parameters")

// Point is a single 2D position in normalized device coordinates.
type Point struct {
	X, Y float32
}

// RingParams describes an annular sector.
type RingParams struct {
	Radius      float32
	InnerRadius float32
	Segments    int
	StartAngle  float32
	EndAngle    float32
}

// DefaultRingParams returns a full ring with outer radius 0.5, inner radius 0.25 and 24 segments.
//
// Returns:
//   - RingParams: the default ring parameters
func DefaultRingParams() RingParams {
	return RingParams{
		Radius:      0.5,
		InnerRadius: 0.25,
		Segments:    24,
		StartAngle:  0,
		EndAngle:    2 * math32.Pi,
	}
}

// Validate rejects parameters that would produce an empty or degenerate ring.
// GenerateRing itself accepts any input; callers that want early failure validate first.
//
// Returns:
//   - error: ErrInvalidRing wrapped with the offending field, or nil
func (p RingParams) Validate() error {
	switch {
	case p.Segments <= 0:
		return fmt.Errorf("%w: segments must be positive, got %d", ErrInvalidRing, p.Segments)
	case p.Radius <= 0:
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidRing, p.Radius)
	case p.InnerRadius < 0:
		return fmt.Errorf("%w: inner radius must not be negative, got %v", ErrInvalidRing, p.InnerRadius)
	case p.InnerRadius >= p.Radius:
		return fmt.Errorf("%w: inner radius %v must be smaller than radius %v", ErrInvalidRing, p.InnerRadius, p.Radius)
	case p.StartAngle == p.EndAngle:
		return fmt.Errorf("%w: start and end angle are equal", ErrInvalidRing)
	}
	return nil
}

// Generate runs GenerateRing with these parameters.
//
// Returns:
//   - []Point: Segments*6 points
func (p RingParams) Generate() []Point {
	return GenerateRing(p.Radius, p.InnerRadius, p.Segments, p.StartAngle, p.EndAngle)
}

// GenerateRing triangulates an annular sector between startAngle and endAngle (radians).
// Each of the segments equal angular steps yields two counter-clockwise triangles:
// (outer0, outer1, inner0) and (inner0, outer1, inner1).
// Boundary points are computed once per step, so the edge shared by neighbouring segments is bit-for-bit identical.
// segments <= 0 yields an empty slice. innerRadius > radius is accepted and produces inverted triangles.
//
// Parameters:
//   - radius: the outer radius
//   - innerRadius: the inner radius
//   - segments: the number of angular steps
//   - startAngle: the angle of the first boundary in radians
//   - endAngle: the angle of the last boundary in radians
//
// Returns:
//   - []Point: exactly segments*6 points
func GenerateRing(radius, innerRadius float32, segments int, startAngle, endAngle float32) []Point {
	if segments <= 0 {
		return []Point{}
	}

	step := (endAngle - startAngle) / float32(segments)
	outer := make([]Point, segments+1)
	inner := make([]Point, segments+1)
	for i := 0; i <= segments; i++ {
		angle := startAngle + step*float32(i)
		if i == segments {
			angle = endAngle
		}
		cos, sin := math32.Cos(angle), math32.Sin(angle)
		outer[i] = Point{X: cos * radius, Y: sin * radius}
		inner[i] = Point{X: cos * innerRadius, Y: sin * innerRadius}
	}

	points := make([]Point, 0, segments*6)
	for i := 0; i < segments; i++ {
		points = append(points,
			outer[i], outer[i+1], inner[i],
			inner[i], outer[i+1], inner[i+1],
		)
	}
	return points
}
