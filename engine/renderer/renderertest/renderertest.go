// Package renderertest provides a recording backend and window so the renderer, strategies and
// engine can be exercised without a GPU or a display.
package renderertest

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// Recorder is a call log shared by a Backend and a Window so ordering across both can be asserted.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a formatted call.
func (r *Recorder) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the log.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsWithPrefix returns the logged calls starting with prefix, in order.
func (r *Recorder) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Index returns the position of the first call equal to call, or -1.
func (r *Recorder) Index(call string) int {
	return slices.Index(r.Calls(), call)
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Handle is a fake GPU object. Releasing it records "release <kind> <label>".
type Handle struct {
	Kind     string
	Label    string
	Released bool
	rec      *Recorder

	// contents of a buffer handle
	data []byte
}

// Release implements resource.Resource.
func (h *Handle) Release() {
	h.Released = true
	h.rec.Record("release %s %s", h.Kind, h.Label)
}

// BufferWrite is one recorded queue write.
type BufferWrite struct {
	Buffer string
	Offset uint64
	Data   []byte
}

// Backend is a renderer.RendererBackend that records every call and creates Handle values.
type Backend struct {
	Rec *Recorder

	// Caps is returned by SurfaceCapabilities.
	Caps renderer.SurfaceCapabilities
	// AcquireFailures makes the next n AcquireFrame calls fail.
	AcquireFailures int
	// ConfigureErr, PipelineErr and EndFrameErr are returned by their operations when set.
	ConfigureErr error
	PipelineErr  error
	EndFrameErr  error

	Configs  []renderer.SurfaceConfig
	Writes   []BufferWrite
	Draws    []renderer.DrawCommand
	Textures []common.TextureStagingData

	inFrame bool
	buffers map[string]*Handle
}

var _ renderer.RendererBackend = &Backend{}

// NewBackend returns a backend advertising BGRA8Unorm, BGRA8UnormSrgb and Fifo/Immediate.
func NewBackend(rec *Recorder) *Backend {
	return &Backend{
		Rec: rec,
		Caps: renderer.SurfaceCapabilities{
			Formats:      []wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb},
			PresentModes: []wgpu.PresentMode{wgpu.PresentModeFifo, wgpu.PresentModeImmediate},
		},
	}
}

func (b *Backend) handle(kind, label string) *Handle {
	b.Rec.Record("create %s %s", kind, label)
	return &Handle{Kind: kind, Label: label, rec: b.Rec}
}

// LabelOf returns the label of a fake handle, or "" for anything else.
func LabelOf(res resource.Resource) string {
	if h, ok := res.(*Handle); ok {
		return h.Label
	}
	return ""
}

func (b *Backend) CreateBuffer(label string, usage resource.BufferUsage, size uint64) (resource.Resource, error) {
	h := b.handle("buffer", label)
	h.data = make([]byte, size)
	if b.buffers == nil {
		b.buffers = make(map[string]*Handle)
	}
	b.buffers[label] = h
	return h, nil
}

// WriteBuffer records the write and applies it to the buffer's contents.
func (b *Backend) WriteBuffer(buf resource.Resource, offset uint64, data []byte) error {
	label := LabelOf(buf)
	b.Rec.Record("write %s %d %d", label, offset, len(data))
	b.Writes = append(b.Writes, BufferWrite{Buffer: label, Offset: offset, Data: slices.Clone(data)})
	if h, ok := buf.(*Handle); ok {
		if offset+uint64(len(data)) > uint64(len(h.data)) {
			return fmt.Errorf("write [%d, %d) past end of buffer %q (%d bytes)", offset, offset+uint64(len(data)), label, len(h.data))
		}
		copy(h.data[offset:], data)
	}
	return nil
}

// Contents returns a copy of the bytes held by the most recently created buffer with label, or nil.
func (b *Backend) Contents(label string) []byte {
	h, ok := b.buffers[label]
	if !ok {
		return nil
	}
	return slices.Clone(h.data)
}

func (b *Backend) CreateTexture(label string, image common.TextureStagingData) (resource.Resource, error) {
	b.Textures = append(b.Textures, image)
	return b.handle("texture", label), nil
}

func (b *Backend) CreateSampler(label string, cfg common.SamplerStagingData) (resource.Resource, error) {
	return b.handle("sampler", label), nil
}

func (b *Backend) CreateBindGroup(label string, layout resource.Resource, group int, entries []resource.BindGroupEntry) (resource.Resource, error) {
	return b.handle("bind_group", label), nil
}

func (b *Backend) SurfaceCapabilities() renderer.SurfaceCapabilities {
	return b.Caps
}

func (b *Backend) ConfigureSurface(cfg renderer.SurfaceConfig) error {
	if b.ConfigureErr != nil {
		return b.ConfigureErr
	}
	b.Rec.Record("configure %dx%d", cfg.Width, cfg.Height)
	b.Configs = append(b.Configs, cfg)
	return nil
}

func (b *Backend) CreateRenderPipeline(p pipeline.Pipeline) (resource.Resource, error) {
	if b.PipelineErr != nil {
		return nil, b.PipelineErr
	}
	return b.handle("pipeline", p.Label()), nil
}

func (b *Backend) AcquireFrame() error {
	if b.AcquireFailures > 0 {
		b.AcquireFailures--
		b.Rec.Record("acquire_failed")
		return fmt.Errorf("surface texture outdated")
	}
	b.inFrame = true
	b.Rec.Record("acquire")
	return nil
}

func (b *Backend) BeginPass(clear wgpu.Color) error {
	if !b.inFrame {
		return fmt.Errorf("no surface image acquired")
	}
	b.Rec.Record("begin_pass")
	return nil
}

func (b *Backend) Draw(cmd renderer.DrawCommand) error {
	b.Draws = append(b.Draws, cmd)
	b.Rec.Record("draw %d %d", cmd.VertexCount, cmd.InstanceCount)
	return nil
}

func (b *Backend) EndFrame() error {
	if b.EndFrameErr != nil {
		return b.EndFrameErr
	}
	b.Rec.Record("submit")
	return nil
}

func (b *Backend) Present() {
	b.inFrame = false
	b.Rec.Record("present")
}

func (b *Backend) DiscardFrame() {
	b.inFrame = false
	b.Rec.Record("discard")
}

func (b *Backend) ReleaseSurface() {
	b.Rec.Record("release_surface")
}

func (b *Backend) Release() {
	b.Rec.Record("release_device")
}
