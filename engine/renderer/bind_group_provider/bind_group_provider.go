package bind_group_provider

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string
	// group is the bind group index this provider fills.
	group int

	// The following handles are owned by a resource.Manager. The provider only groups them by binding
	// and releases them in dependency order.

	// bindGroup is nil until Build succeeds.
	bindGroup *resource.BindGroup
	buffers   map[uint32]*resource.Buffer
	textures  map[uint32]*resource.Texture
	samplers  map[uint32]*resource.Sampler

	// vertexBuffer and vertexCount describe a mesh. A provider may hold a mesh and no bind group.
	vertexBuffer *resource.Buffer
	vertexCount  uint32
}

// BindGroupProvider groups the resources bound at one bind group index, plus optionally the mesh
// drawn with them. Strategies hold providers; the Renderer reads buffers from them for uploads and
// bind groups from them for draws.
//
// Usage pattern:
//  1. Create a provider for a group index and allocate its buffers, textures and samplers
//  2. Store them with SetBuffer, SetTexture and SetSampler under their binding indices
//  3. Call Build with the manager and the built pipeline to create the bind group
//  4. Queue BufferWrite values against the provider each frame
//  5. Release the provider before the manager is released
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the bind group index this provider fills.
	Group() int

	// BindGroup returns the created bind group, or nil before Build.
	//
	// Returns:
	//   - *resource.BindGroup: the bind group or nil
	BindGroup() *resource.BindGroup

	// Buffer returns the buffer stored at a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *resource.Buffer: the buffer or nil
	Buffer(binding uint32) *resource.Buffer

	// Texture returns the texture stored at a binding, or nil.
	Texture(binding uint32) *resource.Texture

	// Sampler returns the sampler stored at a binding, or nil.
	Sampler(binding uint32) *resource.Sampler

	// SetBuffer stores a buffer at a binding. It has no effect on an already built bind group.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer handle
	SetBuffer(binding uint32, buf *resource.Buffer)

	// SetTexture stores a texture at a binding.
	SetTexture(binding uint32, tex *resource.Texture)

	// SetSampler stores a sampler at a binding.
	SetSampler(binding uint32, s *resource.Sampler)

	// Bindings lists the stored resources as manager bindings, sorted by binding index.
	//
	// Returns:
	//   - []resource.Binding: one binding per stored resource
	Bindings() []resource.Binding

	// Build creates the bind group from the stored resources. A provider is built once.
	//
	// Parameters:
	//   - m: the manager owning the stored resources
	//   - layout: the built pipeline
	//
	// Returns:
	//   - error: the manager's validation error, or an error if the provider is already built
	Build(m resource.Manager, layout resource.Layout) error

	// VertexBuffer returns the mesh vertex buffer, or nil.
	VertexBuffer() *resource.Buffer

	// VertexCount returns the number of vertices drawn from the mesh.
	VertexCount() uint32

	// SetVertexBuffer stores the mesh vertex buffer and its vertex count.
	//
	// Parameters:
	//   - buf: a vertex buffer handle
	//   - count: the number of vertices it holds
	SetVertexBuffer(buf *resource.Buffer, count uint32)

	// Release releases the bind group, then the samplers, textures, buffers and vertex buffer.
	// Handles already released elsewhere are skipped.
	//
	// Returns:
	//   - error: the joined errors of handles that could not be released
	Release() error
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: a debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:    label,
		buffers:  make(map[uint32]*resource.Buffer),
		textures: make(map[uint32]*resource.Texture),
		samplers: make(map[uint32]*resource.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() int {
	return p.group
}

func (p *bindGroupProvider) BindGroup() *resource.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding uint32) *resource.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Texture(binding uint32) *resource.Texture {
	return p.textures[binding]
}

func (p *bindGroupProvider) Sampler(binding uint32) *resource.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) SetBuffer(binding uint32, buf *resource.Buffer) {
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetTexture(binding uint32, tex *resource.Texture) {
	p.textures[binding] = tex
}

func (p *bindGroupProvider) SetSampler(binding uint32, s *resource.Sampler) {
	p.samplers[binding] = s
}

func (p *bindGroupProvider) Bindings() []resource.Binding {
	bindings := make([]resource.Binding, 0, len(p.buffers)+len(p.textures)+len(p.samplers))
	for _, b := range slices.Sorted(maps.Keys(p.buffers)) {
		bindings = append(bindings, resource.BufferBinding(b, p.buffers[b]))
	}
	for _, b := range slices.Sorted(maps.Keys(p.textures)) {
		bindings = append(bindings, resource.TextureBinding(b, p.textures[b]))
	}
	for _, b := range slices.Sorted(maps.Keys(p.samplers)) {
		bindings = append(bindings, resource.SamplerBinding(b, p.samplers[b]))
	}
	slices.SortStableFunc(bindings, func(a, b resource.Binding) int { return int(a.Binding) - int(b.Binding) })
	return bindings
}

func (p *bindGroupProvider) Build(m resource.Manager, layout resource.Layout) error {
	if p.bindGroup != nil {
		return fmt.Errorf("provider %q already built", p.label)
	}
	bg, err := m.CreateBindGroup(p.label, layout, p.group, p.Bindings())
	if err != nil {
		return err
	}
	p.bindGroup = bg
	return nil
}

func (p *bindGroupProvider) VertexBuffer() *resource.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) VertexCount() uint32 {
	return p.vertexCount
}

func (p *bindGroupProvider) SetVertexBuffer(buf *resource.Buffer, count uint32) {
	p.vertexBuffer = buf
	p.vertexCount = count
}

func (p *bindGroupProvider) Release() error {
	var errs []error
	release := func(released bool, fn func() error) {
		if released {
			return
		}
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.bindGroup != nil {
		release(p.bindGroup.Released(), p.bindGroup.Release)
		p.bindGroup = nil
	}
	for b, s := range p.samplers {
		release(s.Released(), s.Release)
		delete(p.samplers, b)
	}
	for b, t := range p.textures {
		release(t.Released(), t.Release)
		delete(p.textures, b)
	}
	for b, buf := range p.buffers {
		release(buf.Released(), buf.Release)
		delete(p.buffers, b)
	}
	if p.vertexBuffer != nil {
		release(p.vertexBuffer.Released(), p.vertexBuffer.Release)
		p.vertexBuffer = nil
		p.vertexCount = 0
	}
	return errors.Join(errs...)
}
