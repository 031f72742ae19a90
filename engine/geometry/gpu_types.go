package geometry

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct shared by every pipeline.
// Matches GPUVertex layout exactly (16 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single 2D vertex.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
// Size: 16 bytes (no padding required).
type GPUVertex struct {
	Position [2]float32 // offset 0: clip-space position before instance scale/offset (8 bytes)
	TexCoord [2]float32 // offset 8: UV texture coordinate (8 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 16)
	g.MarshalTo(buf)
	return buf
}

// MarshalTo serializes the vertex into dst, which must hold at least 16 bytes.
//
// Parameters:
//   - dst: destination slice
func (g *GPUVertex) MarshalTo(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(g.TexCoord[0]))
	binary.LittleEndian.PutUint32(dst[12:16], math.Float32bits(g.TexCoord[1]))
}
