package resource

import (
	"github.com/google/uuid"
)

// handle is the bookkeeping shared by every resource kind.
type handle struct {
	id       uuid.UUID
	label    string
	owner    *manager
	gpu      Resource
	refs     int
	released bool
}

func newHandle(owner *manager, label string, gpu Resource) handle {
	return handle{id: uuid.New(), label: label, owner: owner, gpu: gpu}
}

// ID returns the handle's unique id.
func (h *handle) ID() uuid.UUID { return h.id }

// Label returns the debug label.
func (h *handle) Label() string { return h.label }

// Handle returns the device object, or nil once released.
func (h *handle) Handle() Resource {
	if h.released {
		return nil
	}
	return h.gpu
}

// Released reports whether the handle has been released.
func (h *handle) Released() bool { return h.released }

// Refs returns the number of live bind groups that reference this resource.
func (h *handle) Refs() int { return h.refs }

// Buffer is a sized, typed region of device memory.
type Buffer struct {
	handle
	usage BufferUsage
	size  uint64
}

// Usage returns the buffer's role.
func (b *Buffer) Usage() BufferUsage { return b.usage }

// Size returns the allocated byte size.
func (b *Buffer) Size() uint64 { return b.size }

// Release frees the buffer. It fails with ErrInUse while a bind group references it.
func (b *Buffer) Release() error {
	return b.owner.releaseBuffer(b)
}

// Texture is a decoded image resident on the device.
type Texture struct {
	handle
	width, height uint32
}

// Width returns the texture width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// Release frees the texture. It fails with ErrInUse while a bind group references it.
func (t *Texture) Release() error {
	return t.owner.releaseTexture(t)
}

// Sampler is an immutable texture sampler.
type Sampler struct {
	handle
}

// Release frees the sampler. It fails with ErrInUse while a bind group references it.
func (s *Sampler) Release() error {
	return s.owner.releaseSampler(s)
}

// BindGroup is an immutable association of slots to resources for one group of a pipeline.
type BindGroup struct {
	handle
	group    int
	buffers  []*Buffer
	textures []*Texture
	samplers []*Sampler
}

// Group returns the bind group index the group was created for.
func (g *BindGroup) Group() int { return g.group }

// Release frees the bind group and drops its references on the bound resources.
func (g *BindGroup) Release() error {
	return g.owner.releaseBindGroup(g)
}
