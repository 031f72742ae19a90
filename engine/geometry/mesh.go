package geometry

// Mesh is an immutable, non-indexed triangle list ready for upload as a vertex buffer.
type Mesh struct {
	Label    string
	Vertices []GPUVertex
}

// VertexCount returns the number of vertices drawn for this mesh.
func (m Mesh) VertexCount() uint32 {
	return uint32(len(m.Vertices))
}

// Bytes serializes every vertex little-endian in order.
//
// Returns:
//   - []byte: len(Vertices)*16 bytes
func (m Mesh) Bytes() []byte {
	stride := (&GPUVertex{}).Size()
	buf := make([]byte, len(m.Vertices)*stride)
	for i := range m.Vertices {
		m.Vertices[i].MarshalTo(buf[i*stride:])
	}
	return buf
}

// RingMesh builds a mesh from GenerateRing. Texture coordinates map the outer radius's bounding square onto [0, 1].
//
// Parameters:
//   - params: the ring parameters, not validated here
//
// Returns:
//   - Mesh: the ring mesh with len(points) vertices
func RingMesh(params RingParams) Mesh {
	points := params.Generate()
	vertices := make([]GPUVertex, len(points))
	span := params.Radius * 2
	for i, p := range points {
		vertices[i].Position = [2]float32{p.X, p.Y}
		if span != 0 {
			vertices[i].TexCoord = [2]float32{p.X/span + 0.5, 0.5 - p.Y/span}
		}
	}
	return Mesh{Label: "ring", Vertices: vertices}
}

// Triangle returns a single counter-clockwise triangle.
func Triangle() Mesh {
	return Mesh{
		Label: "triangle",
		Vertices: []GPUVertex{
			{Position: [2]float32{0.0, 0.5}, TexCoord: [2]float32{0.5, 0.0}},
			{Position: [2]float32{-0.5, -0.5}, TexCoord: [2]float32{0.0, 1.0}},
			{Position: [2]float32{0.5, -0.5}, TexCoord: [2]float32{1.0, 1.0}},
		},
	}
}

// Quad returns a unit quad centered on the origin as two counter-clockwise triangles,
// with texture coordinates covering the full image (v grows downward).
func Quad() Mesh {
	tl := GPUVertex{Position: [2]float32{-0.5, 0.5}, TexCoord: [2]float32{0, 0}}
	tr := GPUVertex{Position: [2]float32{0.5, 0.5}, TexCoord: [2]float32{1, 0}}
	bl := GPUVertex{Position: [2]float32{-0.5, -0.5}, TexCoord: [2]float32{0, 1}}
	br := GPUVertex{Position: [2]float32{0.5, -0.5}, TexCoord: [2]float32{1, 1}}
	return Mesh{
		Label:    "quad",
		Vertices: []GPUVertex{tl, bl, br, tl, br, tr},
	}
}
