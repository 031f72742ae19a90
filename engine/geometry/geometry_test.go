package geometry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRingVertexCount(t *testing.T) {
	for _, segments := range []int{1, 2, 3, 24, 100} {
		points := GenerateRing(0.5, 0.25, segments, 0, 2*math32.Pi)
		assert.Len(t, points, segments*6, "segments=%d", segments)
	}
}

func TestGenerateRingEmpty(t *testing.T) {
	assert.Empty(t, GenerateRing(0.5, 0.25, 0, 0, 2*math32.Pi))
	assert.Empty(t, GenerateRing(0.5, 0.25, -3, 0, 2*math32.Pi))
}

func TestGenerateRingDefaultWithinBounds(t *testing.T) {
	points := DefaultRingParams().Generate()
	require.Len(t, points, 144)

	const eps = 1e-5
	for i, p := range points {
		r := math32.Sqrt(p.X*p.X + p.Y*p.Y)
		assert.GreaterOrEqual(t, r, float32(0.25-eps), "point %d", i)
		assert.LessOrEqual(t, r, float32(0.5+eps), "point %d", i)
	}
}

func TestGenerateRingSharedEdgesBitEqual(t *testing.T) {
	const segments = 24
	points := GenerateRing(0.5, 0.25, segments, 0, 2*math32.Pi)

	for s := 0; s < segments; s++ {
		tri := points[s*6 : s*6+6]
		// both triangles of a segment share the outer1-inner0 diagonal
		assert.Equal(t, tri[2], tri[3], "segment %d inner0", s)
		assert.Equal(t, tri[1], tri[4], "segment %d outer1", s)

		if s+1 < segments {
			next := points[(s+1)*6 : (s+1)*6+6]
			assert.Equal(t, math.Float32bits(tri[1].X), math.Float32bits(next[0].X), "segment %d outer edge", s)
			assert.Equal(t, math.Float32bits(tri[1].Y), math.Float32bits(next[0].Y), "segment %d outer edge", s)
			assert.Equal(t, math.Float32bits(tri[5].X), math.Float32bits(next[2].X), "segment %d inner edge", s)
			assert.Equal(t, math.Float32bits(tri[5].Y), math.Float32bits(next[2].Y), "segment %d inner edge", s)
		}
	}
}

func TestGenerateRingCounterClockwise(t *testing.T) {
	points := GenerateRing(0.5, 0.25, 8, 0, 2*math32.Pi)
	for i := 0; i < len(points); i += 3 {
		a, b, c := points[i], points[i+1], points[i+2]
		cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
		assert.Greater(t, cross, float32(0), "triangle %d", i/3)
	}
}

func TestGenerateRingInvertedRadiiAccepted(t *testing.T) {
	points := GenerateRing(0.25, 0.5, 4, 0, math32.Pi)
	assert.Len(t, points, 24)
}

func TestGenerateRingPartialSector(t *testing.T) {
	points := GenerateRing(1, 0.5, 2, 0, math32.Pi/2)
	require.Len(t, points, 12)
	// first outer point sits on the start angle, last outer point on the end angle
	assert.InDelta(t, 1.0, points[0].X, 1e-6)
	assert.InDelta(t, 0.0, points[0].Y, 1e-6)
	assert.InDelta(t, 0.0, points[10].X, 1e-6)
	assert.InDelta(t, 1.0, points[10].Y, 1e-6)
}

func TestRingParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *RingParams)
		wantErr bool
	}{
		{"default", func(p *RingParams) {}, false},
		{"zero segments", func(p *RingParams) { p.Segments = 0 }, true},
		{"zero radius", func(p *RingParams) { p.Radius = 0 }, true},
		{"negative inner", func(p *RingParams) { p.InnerRadius = -0.1 }, true},
		{"inner not smaller", func(p *RingParams) { p.InnerRadius = p.Radius }, true},
		{"empty sweep", func(p *RingParams) { p.EndAngle = p.StartAngle }, true},
		{"solid disc", func(p *RingParams) { p.InnerRadius = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultRingParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRing)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMeshBytes(t *testing.T) {
	mesh := Triangle()
	require.Equal(t, uint32(3), mesh.VertexCount())

	buf := mesh.Bytes()
	require.Len(t, buf, 3*16)

	x := math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20]))
	u := math.Float32frombits(binary.LittleEndian.Uint32(buf[24:28]))
	assert.Equal(t, float32(-0.5), x)
	assert.Equal(t, float32(0.0), u)
}

func TestGPUVertexSize(t *testing.T) {
	v := GPUVertex{}
	assert.Equal(t, 16, v.Size())
	assert.Len(t, v.Marshal(), 16)
	assert.Contains(t, GPUVertexSource, "struct VertexInput")
}

func TestRingMesh(t *testing.T) {
	mesh := RingMesh(DefaultRingParams())
	assert.Equal(t, uint32(144), mesh.VertexCount())
	for _, v := range mesh.Vertices {
		assert.GreaterOrEqual(t, v.TexCoord[0], float32(-1e-6))
		assert.LessOrEqual(t, v.TexCoord[0], float32(1+1e-6))
	}
}

func TestQuadCoversUnitSquare(t *testing.T) {
	mesh := Quad()
	require.Equal(t, uint32(6), mesh.VertexCount())
	for i := 0; i < 6; i += 3 {
		a, b, c := mesh.Vertices[i].Position, mesh.Vertices[i+1].Position, mesh.Vertices[i+2].Position
		cross := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
		assert.Greater(t, cross, float32(0))
	}
}
