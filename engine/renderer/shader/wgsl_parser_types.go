package shader

import "github.com/cogentcore/webgpu/wgpu"

// SlotKind is the resource category a bind group slot expects.
type SlotKind int

const (
	// KindUnknown is a declaration the parser could not classify.
	KindUnknown SlotKind = iota
	// KindUniformBuffer is a var<uniform> buffer.
	KindUniformBuffer
	// KindStorageBuffer is a var<storage> buffer.
	KindStorageBuffer
	// KindTexture is a sampled texture.
	KindTexture
	// KindSampler is a filtering or comparison sampler.
	KindSampler
)

func (k SlotKind) String() string {
	switch k {
	case KindUniformBuffer:
		return "uniform buffer"
	case KindStorageBuffer:
		return "storage buffer"
	case KindTexture:
		return "texture"
	case KindSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// BindingSlot describes one @binding of a bind group as the shader declares it.
type BindingSlot struct {
	Binding uint32
	Kind    SlotKind
	// MinBindingSize is the smallest buffer that satisfies the declared type. For a runtime-sized
	// array it is one element. Zero for textures and samplers.
	MinBindingSize uint64
	Name           string
}

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// wgslTypeLayout holds the byte size and alignment of a WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}
