// Package instance holds the per-object data drawn by the engine and packs it into GPU-ready blocks.
package instance

import (
	"golang.org/x/exp/rand"
)

// Randomization ranges for generated objects.
const (
	MinOffset = -0.9
	MaxOffset = 0.9
	MinScale  = 0.2
	MaxScale  = 0.5
)

// Base is the per-object data written once at creation.
type Base struct {
	Color  [4]float32
	Offset [2]float32
}

// Extra is the per-object data recomputed every frame.
type Extra struct {
	ScaleXY [2]float32
}

// Object is one drawable instance. Base never changes after creation; Extra follows the window aspect ratio.
type Object struct {
	Scale float32
	Base  Base
	Extra Extra
}

// NewObject builds an object from explicit values. Extra is computed for an aspect ratio of 1.
//
// Parameters:
//   - color: RGBA color
//   - offset: clip-space offset
//   - scale: uniform scale
//
// Returns:
//   - Object: the new object
func NewObject(color [4]float32, offset [2]float32, scale float32) Object {
	o := Object{
		Scale: scale,
		Base:  Base{Color: color, Offset: offset},
	}
	o.UpdateExtra(1)
	return o
}

// UpdateExtra recomputes the per-frame scale so the object keeps its proportions at the given aspect ratio.
//
// Parameters:
//   - aspect: window width / height, must be > 0
func (o *Object) UpdateExtra(aspect float32) {
	o.Extra.ScaleXY = [2]float32{o.Scale / aspect, o.Scale}
}

// RandomObjects creates n objects with colors in [0, 1], offsets in [MinOffset, MaxOffset] and scales in [MinScale, MaxScale].
//
// Parameters:
//   - n: the number of objects
//   - rng: the random source, seeded by the caller for reproducible output
//
// Returns:
//   - []Object: n objects in creation order
func RandomObjects(n int, rng *rand.Rand) []Object {
	if n <= 0 {
		return nil
	}
	objects := make([]Object, n)
	for i := range objects {
		color := [4]float32{rng.Float32(), rng.Float32(), rng.Float32(), 1}
		offset := [2]float32{
			randomRange(rng, MinOffset, MaxOffset),
			randomRange(rng, MinOffset, MaxOffset),
		}
		objects[i] = NewObject(color, offset, randomRange(rng, MinScale, MaxScale))
	}
	return objects
}

func randomRange(rng *rand.Rand, lo, hi float32) float32 {
	return lo + rng.Float32()*(hi-lo)
}
