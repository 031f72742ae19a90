package renderertest

import (
	"github.com/Carmen-Shannon/phex-go/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a window.Window that runs for a bounded number of loop iterations. Set MaxIterations
// or call Close from the update callback, or ProcessMessages never returns.
type Window struct {
	Rec *Recorder

	W, H int
	// MaxIterations stops the loop after that many iterations. Zero runs until Close.
	MaxIterations int
	Iterations    int
	Closed        bool

	update func()
	resize func(width, height int)
}

var _ window.Window = &Window{}

// NewWindow returns a running window of the given size.
func NewWindow(rec *Recorder, width, height int) *Window {
	return &Window{Rec: rec, W: width, H: height}
}

// Resize changes the size and fires the resize callback like a framebuffer size event.
func (w *Window) Resize(width, height int) {
	w.W, w.H = width, height
	if w.resize != nil {
		w.resize(width, height)
	}
}

func (w *Window) SetUpdateCallback(callback func()) {
	w.update = callback
}

func (w *Window) SetResizeCallback(callback func(width, height int)) {
	w.resize = callback
}

func (w *Window) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return nil
}

func (w *Window) PrePresentNotify() {
	w.Rec.Record("pre_present_notify")
}

func (w *Window) IsRunning() bool {
	if w.Closed {
		return false
	}
	return w.MaxIterations == 0 || w.Iterations < w.MaxIterations
}

func (w *Window) Close() error {
	w.Closed = true
	w.Rec.Record("window_close")
	return nil
}

// ProcessMessages loops like the platform window: one update callback per iteration until the
// window closes or MaxIterations is reached.
func (w *Window) ProcessMessages() {
	for w.IsRunning() {
		w.Iterations++
		if w.update != nil {
			w.update()
		}
	}
}

func (w *Window) Width() int {
	return w.W
}

func (w *Window) Height() int {
	return w.H
}
