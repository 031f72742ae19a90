// Package resource owns the device buffers, textures, samplers and bind groups a frame reads from.
// Every allocation is checked against the pipeline's parsed layout before it reaches the device,
// and every handle is released in reverse dependency order.
package resource

import (
	"errors"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/shader"
)

var (
	ErrZeroSize         = errors.New("buffer size must be greater than zero")
	ErrOutOfRange       = errors.New("write exceeds buffer size")
	ErrMisaligned       = errors.New("write offset and length must be multiples of 4")
	ErrReleased         = errors.New("resource already released")
	ErrInvalidImage     = errors.New("invalid decoded image")
	ErrLayoutMismatch   = errors.New("bindings do not match pipeline layout")
	ErrUnknownResource  = errors.New("resource not owned by this manager")
	ErrInUse            = errors.New("resource referenced by a live bind group")
	ErrManagerReleased  = errors.New("resource manager released")
	errMultipleBindings = errors.New("binding must name exactly one resource")
)

// CopyAlignment is the byte granularity of buffer sizes and queue writes.
const CopyAlignment = 4

// Resource is a device-side object owned by exactly one handle.
type Resource interface {
	Release()
}

// BufferUsage is the role a buffer plays in the pipeline.
type BufferUsage int

const (
	BufferUsageUniform BufferUsage = iota
	BufferUsageStorage
	BufferUsageVertex
)

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageUniform:
		return "uniform"
	case BufferUsageStorage:
		return "storage"
	case BufferUsageVertex:
		return "vertex"
	default:
		return "unknown"
	}
}

// slotKind maps the usage to the binding slot it can fill.
func (u BufferUsage) slotKind() shader.SlotKind {
	switch u {
	case BufferUsageUniform:
		return shader.KindUniformBuffer
	case BufferUsageStorage:
		return shader.KindStorageBuffer
	default:
		return shader.KindUnknown
	}
}

// BindGroupEntry is one validated binding handed to the device.
type BindGroupEntry struct {
	Binding uint32
	Kind    shader.SlotKind
	Buffer  Resource
	Size    uint64
	Texture Resource
	Sampler Resource
}

// Device is the allocation surface of a renderer backend.
type Device interface {
	// CreateBuffer allocates a buffer that can be written from the queue.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: the buffer role
	//   - size: byte size, already rounded to CopyAlignment
	//
	// Returns:
	//   - Resource: the device buffer
	//   - error: an error if allocation fails
	CreateBuffer(label string, usage BufferUsage, size uint64) (Resource, error)

	// WriteBuffer queues a write into a buffer created by CreateBuffer.
	WriteBuffer(buf Resource, offset uint64, data []byte) error

	// CreateTexture allocates a texture of exactly the image's extent and uploads it once.
	//
	// Parameters:
	//   - label: debug label
	//   - image: RGBA pixels and dimensions
	//
	// Returns:
	//   - Resource: the texture and its view
	//   - error: an error if allocation fails
	CreateTexture(label string, image common.TextureStagingData) (Resource, error)

	// CreateSampler creates an immutable sampler.
	CreateSampler(label string, cfg common.SamplerStagingData) (Resource, error)

	// CreateBindGroup binds entries against one group of a built pipeline.
	//
	// Parameters:
	//   - label: debug label
	//   - layout: the pipeline handle owning the group layouts
	//   - group: the bind group index
	//   - entries: validated entries sorted by binding
	//
	// Returns:
	//   - Resource: the device bind group
	//   - error: an error if creation fails
	CreateBindGroup(label string, layout Resource, group int, entries []BindGroupEntry) (Resource, error)
}

// Layout is the part of a built pipeline a bind group is validated against.
type Layout interface {
	Label() string
	Handle() Resource
	Slots(group int) []shader.BindingSlot
}

// Binding names the resource for one slot. Exactly one of Buffer, Texture or Sampler is set.
type Binding struct {
	Binding uint32
	Buffer  *Buffer
	Texture *Texture
	Sampler *Sampler
}

// BufferBinding binds a buffer at a slot.
func BufferBinding(binding uint32, buf *Buffer) Binding {
	return Binding{Binding: binding, Buffer: buf}
}

// TextureBinding binds a texture at a slot.
func TextureBinding(binding uint32, tex *Texture) Binding {
	return Binding{Binding: binding, Texture: tex}
}

// SamplerBinding binds a sampler at a slot.
func SamplerBinding(binding uint32, s *Sampler) Binding {
	return Binding{Binding: binding, Sampler: s}
}

// Counts reports the live handles of each kind.
type Counts struct {
	Buffers    int
	Textures   int
	Samplers   int
	BindGroups int
}
