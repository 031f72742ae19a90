package resource

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/shader"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	kind  string
	label string
	log   *[]string
}

func (o *fakeObject) Release() {
	*o.log = append(*o.log, "release "+o.kind+" "+o.label)
}

type fakeWrite struct {
	label  string
	offset uint64
	data   []byte
}

type fakeDevice struct {
	log        []string
	writes     []fakeWrite
	bindGroups [][]BindGroupEntry
	failNext   error
}

func (d *fakeDevice) object(kind, label string) (Resource, error) {
	if err := d.failNext; err != nil {
		d.failNext = nil
		return nil, err
	}
	d.log = append(d.log, "create "+kind+" "+label)
	return &fakeObject{kind: kind, label: label, log: &d.log}, nil
}

func (d *fakeDevice) CreateBuffer(label string, _ BufferUsage, _ uint64) (Resource, error) {
	return d.object("buffer", label)
}

func (d *fakeDevice) WriteBuffer(buf Resource, offset uint64, data []byte) error {
	d.writes = append(d.writes, fakeWrite{buf.(*fakeObject).label, offset, data})
	return nil
}

func (d *fakeDevice) CreateTexture(label string, _ common.TextureStagingData) (Resource, error) {
	return d.object("texture", label)
}

func (d *fakeDevice) CreateSampler(label string, _ common.SamplerStagingData) (Resource, error) {
	return d.object("sampler", label)
}

func (d *fakeDevice) CreateBindGroup(label string, _ Resource, _ int, entries []BindGroupEntry) (Resource, error) {
	d.bindGroups = append(d.bindGroups, entries)
	return d.object("bindgroup", label)
}

type fakeLayout struct {
	built bool
	slots map[int][]shader.BindingSlot
}

func (l *fakeLayout) Label() string { return "test pipeline" }

func (l *fakeLayout) Handle() Resource {
	if !l.built {
		return nil
	}
	return &fakeObject{kind: "pipeline", log: new([]string)}
}

func (l *fakeLayout) Slots(group int) []shader.BindingSlot { return l.slots[group] }

func instancedLayout() *fakeLayout {
	return &fakeLayout{built: true, slots: map[int][]shader.BindingSlot{
		0: {
			{Binding: 0, Kind: shader.KindStorageBuffer, MinBindingSize: 32, Name: "bases"},
			{Binding: 1, Kind: shader.KindStorageBuffer, MinBindingSize: 32, Name: "scales"},
		},
		1: {
			{Binding: 0, Kind: shader.KindTexture, Name: "tex"},
			{Binding: 1, Kind: shader.KindSampler, Name: "samp"},
		},
	}}
}

func TestCreateBuffer(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev)

	buf, err := m.CreateBuffer("base", BufferUsageStorage, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(32), buf.Size(), "size rounds up to copy alignment")
	assert.Equal(t, BufferUsageStorage, buf.Usage())
	assert.Equal(t, "base", buf.Label())
	assert.NotEqual(t, uuid.Nil, buf.ID())

	_, err = m.CreateBuffer("empty", BufferUsageUniform, 0)
	assert.ErrorIs(t, err, ErrZeroSize)

	dev.failNext = errors.New("out of memory")
	_, err = m.CreateBuffer("oom", BufferUsageUniform, 4)
	assert.ErrorContains(t, err, "out of memory")

	assert.Equal(t, Counts{Buffers: 1}, m.Counts())
}

func TestWriteBuffer(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev)
	buf, err := m.CreateBuffer("scale", BufferUsageUniform, 32)
	require.NoError(t, err)

	tests := []struct {
		name    string
		offset  uint64
		data    []byte
		wantErr error
	}{
		{name: "full", offset: 0, data: make([]byte, 32)},
		{name: "tail", offset: 28, data: make([]byte, 4)},
		{name: "empty", offset: 32, data: nil},
		{name: "past end", offset: 16, data: make([]byte, 20), wantErr: ErrOutOfRange},
		{name: "offset past end", offset: 36, data: nil, wantErr: ErrOutOfRange},
		{name: "odd offset", offset: 2, data: make([]byte, 4), wantErr: ErrMisaligned},
		{name: "odd length", offset: 0, data: make([]byte, 6), wantErr: ErrMisaligned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.WriteBuffer(buf, tt.offset, tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
	require.Len(t, dev.writes, 2, "empty and rejected writes never reach the device")
	assert.Equal(t, uint64(28), dev.writes[1].offset)

	other := NewManager(&fakeDevice{})
	assert.ErrorIs(t, other.WriteBuffer(buf, 0, make([]byte, 4)), ErrUnknownResource)

	require.NoError(t, buf.Release())
	assert.ErrorIs(t, m.WriteBuffer(buf, 0, make([]byte, 4)), ErrReleased)
}

func TestCreateTextureFromDecodedImage(t *testing.T) {
	m := NewManager(&fakeDevice{})

	tex, err := m.CreateTextureFromDecodedImage("img", make([]byte, 2*3*4), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.Width())
	assert.Equal(t, uint32(3), tex.Height())

	tests := []struct {
		name          string
		pixels        int
		width, height uint32
	}{
		{"zero width", 0, 0, 4},
		{"zero height", 0, 4, 0},
		{"short", 15, 2, 2},
		{"long", 17, 2, 2},
	}
	for _, tt := range tests {
		_, err := m.CreateTextureFromDecodedImage(tt.name, make([]byte, tt.pixels), tt.width, tt.height)
		assert.ErrorIs(t, err, ErrInvalidImage, tt.name)
	}
	assert.Equal(t, 1, m.Counts().Textures)
}

func TestCreateBindGroup(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev)
	layout := instancedLayout()

	bases, err := m.CreateBuffer("bases", BufferUsageStorage, 100*32)
	require.NoError(t, err)
	scales, err := m.CreateBuffer("scales", BufferUsageStorage, 100*32)
	require.NoError(t, err)

	bg, err := m.CreateBindGroup("instances", layout, 0, []Binding{
		BufferBinding(1, scales),
		BufferBinding(0, bases),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, bg.Group())
	assert.NotNil(t, bg.Handle())

	require.Len(t, dev.bindGroups, 1)
	entries := dev.bindGroups[0]
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(0), entries[0].Binding, "entries are sorted by binding")
	assert.Equal(t, uint64(3200), entries[0].Size)
	assert.Equal(t, shader.KindStorageBuffer, entries[1].Kind)

	assert.Equal(t, 1, bases.Refs())
	assert.ErrorIs(t, bases.Release(), ErrInUse)

	require.NoError(t, bg.Release())
	assert.Equal(t, 0, bases.Refs())
	assert.NoError(t, bases.Release())
	assert.ErrorIs(t, bg.Release(), ErrReleased)
}

func TestCreateBindGroupTextured(t *testing.T) {
	m := NewManager(&fakeDevice{})
	tex, err := m.CreateTextureFromDecodedImage("img", make([]byte, 4), 1, 1)
	require.NoError(t, err)
	samp, err := m.CreateSampler("samp", common.SamplerStagingData{})
	require.NoError(t, err)

	_, err = m.CreateBindGroup("material", instancedLayout(), 1, []Binding{
		TextureBinding(0, tex),
		SamplerBinding(1, samp),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tex.Refs())
	assert.Equal(t, 1, samp.Refs())
	assert.ErrorIs(t, samp.Release(), ErrInUse)
}

func TestCreateBindGroupMismatch(t *testing.T) {
	m := NewManager(&fakeDevice{})
	layout := instancedLayout()

	storage, err := m.CreateBuffer("storage", BufferUsageStorage, 64)
	require.NoError(t, err)
	small, err := m.CreateBuffer("small", BufferUsageStorage, 16)
	require.NoError(t, err)
	uniform, err := m.CreateBuffer("uniform", BufferUsageUniform, 64)
	require.NoError(t, err)
	samp, err := m.CreateSampler("samp", common.SamplerStagingData{})
	require.NoError(t, err)
	released, err := m.CreateBuffer("released", BufferUsageStorage, 64)
	require.NoError(t, err)
	require.NoError(t, released.Release())

	foreign, err := NewManager(&fakeDevice{}).CreateBuffer("foreign", BufferUsageStorage, 64)
	require.NoError(t, err)

	tests := []struct {
		name     string
		layout   Layout
		group    int
		bindings []Binding
		wantErr  error
	}{
		{name: "unbuilt pipeline", layout: &fakeLayout{slots: layout.slots}, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(1, storage)}, wantErr: ErrLayoutMismatch},
		{name: "undeclared group", layout: layout, group: 3, bindings: []Binding{BufferBinding(0, storage)}, wantErr: ErrLayoutMismatch},
		{name: "too few", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage)}, wantErr: ErrLayoutMismatch},
		{name: "too many", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(1, storage), BufferBinding(2, storage)}, wantErr: ErrLayoutMismatch},
		{name: "wrong index", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(2, storage)}, wantErr: ErrLayoutMismatch},
		{name: "duplicate index", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(0, storage)}, wantErr: ErrLayoutMismatch},
		{name: "uniform for storage", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(1, uniform)}, wantErr: ErrLayoutMismatch},
		{name: "sampler for storage", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), SamplerBinding(1, samp)}, wantErr: ErrLayoutMismatch},
		{name: "below min size", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(1, small)}, wantErr: ErrLayoutMismatch},
		{name: "two resources", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), {Binding: 1, Buffer: storage, Sampler: samp}}, wantErr: ErrLayoutMismatch},
		{name: "no resource", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), {Binding: 1}}, wantErr: ErrLayoutMismatch},
		{name: "released", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(1, released)}, wantErr: ErrUnknownResource},
		{name: "foreign", layout: layout, group: 0, bindings: []Binding{BufferBinding(0, storage), BufferBinding(1, foreign)}, wantErr: ErrUnknownResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateBindGroup(tt.name, tt.layout, tt.group, tt.bindings)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, storage.Refs(), "failed bind groups take no references")
	assert.Equal(t, 0, m.Counts().BindGroups)
}

func TestManagerReleaseOrder(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev)

	buf, err := m.CreateBuffer("buf", BufferUsageStorage, 64)
	require.NoError(t, err)
	tex, err := m.CreateTextureFromDecodedImage("tex", make([]byte, 4), 1, 1)
	require.NoError(t, err)
	samp, err := m.CreateSampler("samp", common.SamplerStagingData{})
	require.NoError(t, err)
	_, err = m.CreateBindGroup("bg1", instancedLayout(), 1, []Binding{TextureBinding(0, tex), SamplerBinding(1, samp)})
	require.NoError(t, err)
	_, err = m.CreateBindGroup("bg0", instancedLayout(), 0, []Binding{BufferBinding(0, buf), BufferBinding(1, buf)})
	require.NoError(t, err)
	dev.log = nil

	m.Release()
	assert.Equal(t, []string{
		"release bindgroup bg0",
		"release bindgroup bg1",
		"release sampler samp",
		"release texture tex",
		"release buffer buf",
	}, dev.log)
	assert.Equal(t, Counts{}, m.Counts())
	assert.True(t, buf.Released())
	assert.Nil(t, buf.Handle())

	m.Release()
	assert.Len(t, dev.log, 5, "second release is a no-op")

	_, err = m.CreateBuffer("late", BufferUsageUniform, 4)
	assert.ErrorIs(t, err, ErrManagerReleased)
}

func TestBufferUsageString(t *testing.T) {
	assert.Equal(t, "uniform", BufferUsageUniform.String())
	assert.Equal(t, "storage", BufferUsageStorage.String())
	assert.Equal(t, "vertex", BufferUsageVertex.String())
	assert.Equal(t, "unknown", BufferUsage(9).String())
}
