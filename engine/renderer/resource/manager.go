package resource

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/logging"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/shader"
)

type manager struct {
	mu     *sync.Mutex
	device Device
	closed bool

	// creation order, released in reverse
	buffers    []*Buffer
	textures   []*Texture
	samplers   []*Sampler
	bindGroups []*BindGroup
}

// Manager owns every buffer, texture, sampler and bind group allocated on a device.
//
// Handles returned by a Manager stay valid until released through the handle or through
// Manager.Release. A resource referenced by a live bind group cannot be released on its own.
type Manager interface {
	// CreateBuffer allocates a buffer. The size is rounded up to CopyAlignment.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: uniform, storage or vertex
	//   - size: the requested byte size, must be non-zero
	//
	// Returns:
	//   - *Buffer: the new buffer handle
	//   - error: ErrZeroSize, or the device error
	CreateBuffer(label string, usage BufferUsage, size uint64) (*Buffer, error)

	// WriteBuffer queues data into a buffer at offset.
	//
	// Parameters:
	//   - buf: a live buffer owned by this manager
	//   - offset: byte offset, a multiple of CopyAlignment
	//   - data: bytes to write, length a multiple of CopyAlignment
	//
	// Returns:
	//   - error: ErrUnknownResource, ErrReleased, ErrOutOfRange or ErrMisaligned
	WriteBuffer(buf *Buffer, offset uint64, data []byte) error

	// CreateTextureFromDecodedImage uploads an RGBA image into a texture of the same extent.
	//
	// Parameters:
	//   - label: debug label
	//   - pixels: tightly packed RGBA bytes
	//   - width: image width in pixels
	//   - height: image height in pixels
	//
	// Returns:
	//   - *Texture: the new texture handle
	//   - error: ErrInvalidImage when a dimension is zero or len(pixels) != width*height*4
	CreateTextureFromDecodedImage(label string, pixels []byte, width, height uint32) (*Texture, error)

	// CreateSampler creates an immutable sampler. Zero fields take linear filtering and repeat addressing.
	CreateSampler(label string, cfg common.SamplerStagingData) (*Sampler, error)

	// CreateBindGroup binds resources to one group of a built pipeline. The bindings must match the
	// group's slots one to one: same binding indices, the kind each slot expects, and buffers at
	// least the slot's minimum binding size.
	//
	// Parameters:
	//   - label: debug label
	//   - layout: the built pipeline
	//   - group: the bind group index
	//   - bindings: one binding per slot, in any order
	//
	// Returns:
	//   - *BindGroup: the new bind group handle
	//   - error: ErrLayoutMismatch or ErrUnknownResource describing the first bad binding
	CreateBindGroup(label string, layout Layout, group int, bindings []Binding) (*BindGroup, error)

	// Counts returns the number of live handles of each kind.
	Counts() Counts

	// Release frees every live handle: bind groups, then samplers, textures and buffers.
	// It is safe to call more than once.
	Release()
}

var _ Manager = &manager{}

// NewManager creates a Manager allocating on device.
//
// Parameters:
//   - device: the backend device
//
// Returns:
//   - Manager: an empty manager
func NewManager(device Device) Manager {
	return &manager{
		mu:     &sync.Mutex{},
		device: device,
	}
}

func (m *manager) CreateBuffer(label string, usage BufferUsage, size uint64) (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerReleased
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: %q", ErrZeroSize, label)
	}
	size = common.AlignUp(size, CopyAlignment)

	gpu, err := m.device.CreateBuffer(label, usage, size)
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	buf := &Buffer{handle: newHandle(m, label, gpu), usage: usage, size: size}
	m.buffers = append(m.buffers, buf)

	logging.Debug("buffer created", "label", label, "usage", usage, "size", size)
	return buf, nil
}

func (m *manager) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buf == nil || buf.owner != m {
		return ErrUnknownResource
	}
	if buf.released {
		return fmt.Errorf("%w: buffer %q", ErrReleased, buf.label)
	}
	end := offset + uint64(len(data))
	if end > buf.size || end < offset {
		return fmt.Errorf("%w: buffer %q write [%d, %d) size %d", ErrOutOfRange, buf.label, offset, end, buf.size)
	}
	if offset%CopyAlignment != 0 || len(data)%CopyAlignment != 0 {
		return fmt.Errorf("%w: buffer %q offset %d length %d", ErrMisaligned, buf.label, offset, len(data))
	}
	if len(data) == 0 {
		return nil
	}
	return m.device.WriteBuffer(buf.gpu, offset, data)
}

func (m *manager) CreateTextureFromDecodedImage(label string, pixels []byte, width, height uint32) (*Texture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerReleased
	}
	image := common.TextureStagingData{Pixels: pixels, Width: width, Height: height}
	if !image.Valid() {
		return nil, fmt.Errorf("%w: %q is %dx%d with %d bytes", ErrInvalidImage, label, width, height, len(pixels))
	}

	gpu, err := m.device.CreateTexture(label, image)
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", label, err)
	}
	tex := &Texture{handle: newHandle(m, label, gpu), width: width, height: height}
	m.textures = append(m.textures, tex)

	logging.Debug("texture created", "label", label, "width", width, "height", height)
	return tex, nil
}

func (m *manager) CreateSampler(label string, cfg common.SamplerStagingData) (*Sampler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerReleased
	}
	gpu, err := m.device.CreateSampler(label, cfg)
	if err != nil {
		return nil, fmt.Errorf("create sampler %q: %w", label, err)
	}
	s := &Sampler{handle: newHandle(m, label, gpu)}
	m.samplers = append(m.samplers, s)
	return s, nil
}

func (m *manager) CreateBindGroup(label string, layout Layout, group int, bindings []Binding) (*BindGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerReleased
	}
	if layout == nil || layout.Handle() == nil {
		return nil, fmt.Errorf("%w: bind group %q: pipeline is not built", ErrLayoutMismatch, label)
	}
	slots := layout.Slots(group)
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: bind group %q: pipeline %q declares no group %d", ErrLayoutMismatch, label, layout.Label(), group)
	}
	if len(bindings) != len(slots) {
		return nil, fmt.Errorf("%w: bind group %q: %d bindings for %d slots", ErrLayoutMismatch, label, len(bindings), len(slots))
	}

	sorted := slices.Clone(bindings)
	slices.SortFunc(sorted, func(a, b Binding) int { return int(a.Binding) - int(b.Binding) })

	bg := &BindGroup{group: group}
	entries := make([]BindGroupEntry, len(sorted))
	for i, b := range sorted {
		entry, err := m.validateBinding(b, slots[i])
		if err != nil {
			return nil, fmt.Errorf("bind group %q: %w", label, err)
		}
		entries[i] = entry
		switch {
		case b.Buffer != nil:
			bg.buffers = append(bg.buffers, b.Buffer)
		case b.Texture != nil:
			bg.textures = append(bg.textures, b.Texture)
		case b.Sampler != nil:
			bg.samplers = append(bg.samplers, b.Sampler)
		}
	}

	gpu, err := m.device.CreateBindGroup(label, layout.Handle(), group, entries)
	if err != nil {
		return nil, fmt.Errorf("create bind group %q: %w", label, err)
	}
	bg.handle = newHandle(m, label, gpu)
	for _, b := range bg.buffers {
		b.refs++
	}
	for _, t := range bg.textures {
		t.refs++
	}
	for _, s := range bg.samplers {
		s.refs++
	}
	m.bindGroups = append(m.bindGroups, bg)

	logging.Debug("bind group created", "label", label, "group", group, "entries", len(entries))
	return bg, nil
}

// validateBinding checks one binding against the slot at the same sorted position.
func (m *manager) validateBinding(b Binding, slot shader.BindingSlot) (BindGroupEntry, error) {
	if b.Binding != slot.Binding {
		return BindGroupEntry{}, fmt.Errorf("%w: binding %d where slot %d (%s) is declared", ErrLayoutMismatch, b.Binding, slot.Binding, slot.Name)
	}

	set := 0
	for _, ok := range []bool{b.Buffer != nil, b.Texture != nil, b.Sampler != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return BindGroupEntry{}, fmt.Errorf("%w: binding %d: %w", ErrLayoutMismatch, b.Binding, errMultipleBindings)
	}

	entry := BindGroupEntry{Binding: b.Binding, Kind: slot.Kind}
	var (
		h    *handle
		kind shader.SlotKind
	)
	switch {
	case b.Buffer != nil:
		h, kind = &b.Buffer.handle, b.Buffer.usage.slotKind()
		entry.Buffer, entry.Size = b.Buffer.gpu, b.Buffer.size
	case b.Texture != nil:
		h, kind = &b.Texture.handle, shader.KindTexture
		entry.Texture = b.Texture.gpu
	case b.Sampler != nil:
		h, kind = &b.Sampler.handle, shader.KindSampler
		entry.Sampler = b.Sampler.gpu
	}

	if h.owner != m {
		return BindGroupEntry{}, fmt.Errorf("%w: binding %d (%q)", ErrUnknownResource, b.Binding, h.label)
	}
	if h.released {
		return BindGroupEntry{}, fmt.Errorf("%w: binding %d (%q) is released", ErrUnknownResource, b.Binding, h.label)
	}
	if kind != slot.Kind {
		return BindGroupEntry{}, fmt.Errorf("%w: binding %d (%s) expects a %s, got a %s", ErrLayoutMismatch, b.Binding, slot.Name, slot.Kind, kind)
	}
	if b.Buffer != nil && b.Buffer.size < slot.MinBindingSize {
		return BindGroupEntry{}, fmt.Errorf("%w: binding %d (%s) needs %d bytes, buffer %q has %d",
			ErrLayoutMismatch, b.Binding, slot.Name, slot.MinBindingSize, h.label, b.Buffer.size)
	}
	return entry, nil
}

func (m *manager) Counts() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Counts{
		Buffers:    len(m.buffers),
		Textures:   len(m.textures),
		Samplers:   len(m.samplers),
		BindGroups: len(m.bindGroups),
	}
}

func (m *manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	counts := Counts{len(m.buffers), len(m.textures), len(m.samplers), len(m.bindGroups)}

	for i := len(m.bindGroups) - 1; i >= 0; i-- {
		m.dropBindGroup(m.bindGroups[i])
	}
	for i := len(m.samplers) - 1; i >= 0; i-- {
		m.samplers[i].free()
	}
	for i := len(m.textures) - 1; i >= 0; i-- {
		m.textures[i].free()
	}
	for i := len(m.buffers) - 1; i >= 0; i-- {
		m.buffers[i].free()
	}
	m.bindGroups, m.samplers, m.textures, m.buffers = nil, nil, nil, nil
	m.closed = true

	logging.Debug("resources released", "buffers", counts.Buffers, "textures", counts.Textures,
		"samplers", counts.Samplers, "bind_groups", counts.BindGroups)
}

func (m *manager) releaseBuffer(b *Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := b.checkReleasable(); err != nil {
		return err
	}
	b.free()
	m.buffers = slices.DeleteFunc(m.buffers, func(x *Buffer) bool { return x == b })
	return nil
}

func (m *manager) releaseTexture(t *Texture) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := t.checkReleasable(); err != nil {
		return err
	}
	t.free()
	m.textures = slices.DeleteFunc(m.textures, func(x *Texture) bool { return x == t })
	return nil
}

func (m *manager) releaseSampler(s *Sampler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := s.checkReleasable(); err != nil {
		return err
	}
	s.free()
	m.samplers = slices.DeleteFunc(m.samplers, func(x *Sampler) bool { return x == s })
	return nil
}

func (m *manager) releaseBindGroup(g *BindGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g.released {
		return fmt.Errorf("%w: bind group %q", ErrReleased, g.label)
	}
	m.dropBindGroup(g)
	m.bindGroups = slices.DeleteFunc(m.bindGroups, func(x *BindGroup) bool { return x == g })
	return nil
}

// dropBindGroup frees the group and its references. The caller removes it from the list.
func (m *manager) dropBindGroup(g *BindGroup) {
	g.free()
	for _, b := range g.buffers {
		b.refs--
	}
	for _, t := range g.textures {
		t.refs--
	}
	for _, s := range g.samplers {
		s.refs--
	}
}

func (h *handle) checkReleasable() error {
	if h.released {
		return fmt.Errorf("%w: %q", ErrReleased, h.label)
	}
	if h.refs > 0 {
		return fmt.Errorf("%w: %q has %d bind group references", ErrInUse, h.label, h.refs)
	}
	return nil
}

func (h *handle) free() {
	if h.released {
		return
	}
	if h.gpu != nil {
		h.gpu.Release()
	}
	h.released = true
}
