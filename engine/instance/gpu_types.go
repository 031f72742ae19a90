package instance

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUInstanceBaseSource is the canonical WGSL definition of the InstanceBase struct.
// Matches GPUInstanceBase layout exactly (32 bytes).
//
//go:embed assets/instance_base.wgsl
var GPUInstanceBaseSource string

// GPUInstanceScaleSource is the canonical WGSL definition of the InstanceScale struct.
// Matches GPUInstanceScale layout exactly (32 bytes).
//
//go:embed assets/instance_scale.wgsl
var GPUInstanceScaleSource string

// GPUInstanceBase is the GPU-aligned form of an object's immutable data.
// Size: 32 bytes.
type GPUInstanceBase struct {
	Color  [4]float32 // offset 0 (16 bytes)
	Offset [2]float32 // offset 16 (8 bytes)
	_pad0  [2]float32 // offset 24 (8 bytes)
}

// GPUInstanceScale is the GPU-aligned form of an object's per-frame data.
// Size: 32 bytes, padded so the record satisfies the 32-byte minimum record size on its own.
type GPUInstanceScale struct {
	Scale [2]float32 // offset 0 (8 bytes)
	_pad0 [2]float32 // offset 8 (8 bytes)
	_pad1 [4]float32 // offset 16 (16 bytes)
}

// Size returns the size of the GPUInstanceBase struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUInstanceBase) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo writes the record into dst, which must hold at least 32 bytes. Padding is zeroed.
//
// Parameters:
//   - dst: destination slice
func (g *GPUInstanceBase) MarshalTo(dst []byte) {
	putFloats(dst[0:16], g.Color[:])
	putFloats(dst[16:24], g.Offset[:])
	clear(dst[24:32])
}

// Marshal serializes the record for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUInstanceBase) Marshal() []byte {
	buf := make([]byte, 32)
	g.MarshalTo(buf)
	return buf
}

// Size returns the size of the GPUInstanceScale struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUInstanceScale) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo writes the record into dst, which must hold at least 32 bytes. Padding is zeroed.
//
// Parameters:
//   - dst: destination slice
func (g *GPUInstanceScale) MarshalTo(dst []byte) {
	putFloats(dst[0:8], g.Scale[:])
	clear(dst[8:32])
}

// Marshal serializes the record for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUInstanceScale) Marshal() []byte {
	buf := make([]byte, 32)
	g.MarshalTo(buf)
	return buf
}

func putFloats(dst []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
