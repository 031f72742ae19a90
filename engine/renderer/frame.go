package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/phex-go/engine/logging"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// FrameResult reports what RenderFrame did with the frame.
type FrameResult int

const (
	// FramePresented means the frame was submitted and presented.
	FramePresented FrameResult = iota
	// FrameSkipped means no surface image was available. Nothing was uploaded or submitted.
	FrameSkipped
)

// String returns a lower-case name for the result.
func (r FrameResult) String() string {
	if r == FrameSkipped {
		return "skipped"
	}
	return "presented"
}

// ClearColor is the color every frame is cleared to.
var ClearColor = wgpu.Color{R: 0.019, G: 0.019, B: 0.019, A: 1}

// DrawCall is one draw of the frame. Mesh supplies the vertex buffer and vertex count.
// BindGroups are bound at their provider's group index.
type DrawCall struct {
	Label         string
	Mesh          bind_group_provider.BindGroupProvider
	BindGroups    []bind_group_provider.BindGroupProvider
	InstanceCount uint32
}

// FrameSource produces the uploads and draws of each frame.
type FrameSource interface {
	// PrepareFrame packs the per-frame data for the current aspect ratio.
	//
	// Parameters:
	//   - aspect: surface width divided by height
	//
	// Returns:
	//   - []bind_group_provider.BufferWrite: the writes queued before the pass
	//   - error: an error if the data cannot be packed
	PrepareFrame(aspect float32) ([]bind_group_provider.BufferWrite, error)

	// DrawCalls returns the draws in submission order.
	DrawCalls() []DrawCall
}

func (r *renderer) RenderFrame(source FrameSource, prePresent func()) (FrameResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return FrameSkipped, fmt.Errorf("%w: renderer released", ErrSurfaceTornDown)
	}
	if r.pipeline == nil || !r.pipeline.Built() {
		return FrameSkipped, fmt.Errorf("%w: pipeline is not built", ErrInvalidDraw)
	}

	if err := r.surface.Acquire(); err != nil {
		if IsRecoverable(err) {
			logging.Debug("frame skipped", "reason", err)
			return FrameSkipped, nil
		}
		return FrameSkipped, err
	}

	if err := r.encodeFrame(source); err != nil {
		r.backend.DiscardFrame()
		return FrameSkipped, err
	}

	if prePresent != nil {
		prePresent()
	}
	r.backend.Present()
	return FramePresented, nil
}

// encodeFrame uploads, records and submits one frame on an acquired image.
func (r *renderer) encodeFrame(source FrameSource) error {
	writes, err := source.PrepareFrame(r.aspectRatio())
	if err != nil {
		return fmt.Errorf("prepare frame: %w", err)
	}
	if err := r.writeBuffers(writes); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if err := r.backend.BeginPass(ClearColor); err != nil {
		return fmt.Errorf("%w: begin pass: %w", ErrSubmission, err)
	}

	for _, call := range source.DrawCalls() {
		if call.InstanceCount == 0 {
			continue
		}
		cmd, err := r.resolveDraw(call)
		if err != nil {
			return err
		}
		if err := r.backend.Draw(cmd); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidDraw, call.Label, err)
		}
	}

	if err := r.backend.EndFrame(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	return nil
}

// resolveDraw turns a DrawCall into backend handles, checking every resource is built and live.
func (r *renderer) resolveDraw(call DrawCall) (DrawCommand, error) {
	if call.Mesh == nil {
		return DrawCommand{}, fmt.Errorf("%w: %s: no mesh", ErrInvalidDraw, call.Label)
	}
	vb := call.Mesh.VertexBuffer()
	if vb == nil || vb.Handle() == nil || call.Mesh.VertexCount() == 0 {
		return DrawCommand{}, fmt.Errorf("%w: %s: mesh %q has no vertex buffer", ErrInvalidDraw, call.Label, call.Mesh.Label())
	}

	cmd := DrawCommand{
		Pipeline:      r.pipeline.Handle(),
		VertexBuffer:  vb.Handle(),
		VertexCount:   call.Mesh.VertexCount(),
		InstanceCount: call.InstanceCount,
	}
	for _, p := range call.BindGroups {
		bg := p.BindGroup()
		if bg == nil || bg.Handle() == nil {
			return DrawCommand{}, fmt.Errorf("%w: %s: provider %q is not built", ErrInvalidDraw, call.Label, p.Label())
		}
		group := p.Group()
		for len(cmd.BindGroups) <= group {
			cmd.BindGroups = append(cmd.BindGroups, nil)
		}
		if cmd.BindGroups[group] != nil {
			return DrawCommand{}, fmt.Errorf("%w: %s: group %d bound twice", ErrInvalidDraw, call.Label, group)
		}
		cmd.BindGroups[group] = bg.Handle()
	}
	for _, g := range r.pipeline.Shader().Groups() {
		if g >= len(cmd.BindGroups) || cmd.BindGroups[g] == nil {
			return DrawCommand{}, fmt.Errorf("%w: %s: group %d is not bound", ErrInvalidDraw, call.Label, g)
		}
	}
	return cmd, nil
}

func (r *renderer) writeBuffers(writes []bind_group_provider.BufferWrite) error {
	for _, w := range writes {
		if w.Provider == nil {
			return fmt.Errorf("buffer write without a provider")
		}
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			return fmt.Errorf("provider %q has no buffer at binding %d", w.Provider.Label(), w.Binding)
		}
		if err := r.resources.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("provider %q binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}
