package engine_test

import (
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine"
	"github.com/Carmen-Shannon/phex-go/engine/config"
	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/phex-go/engine/strategy"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatAt(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
}

type harness struct {
	rec     *renderertest.Recorder
	backend *renderertest.Backend
	window  *renderertest.Window
}

func newHarness(w, h int) *harness {
	rec := renderertest.NewRecorder()
	return &harness{
		rec:     rec,
		backend: renderertest.NewBackend(rec),
		window:  renderertest.NewWindow(rec, w, h),
	}
}

func (h *harness) engine(t *testing.T, options ...engine.EngineBuilderOption) engine.Engine {
	t.Helper()
	opts := append([]engine.EngineBuilderOption{engine.WithRendererOptions(renderer.WithBackend(h.backend))}, options...)
	e, err := engine.NewEngine(h.window, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Shutdown)
	return e
}

func (h *harness) writes(label string) []renderertest.BufferWrite {
	var out []renderertest.BufferWrite
	for _, w := range h.backend.Writes {
		if w.Buffer == label {
			out = append(out, w)
		}
	}
	return out
}

func TestSingleInstanceAtSquareAspect(t *testing.T) {
	for _, kind := range []strategy.Kind{strategy.KindUniformPerInstance, strategy.KindBulkStorageInstanced} {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(600, 600)
			e := h.engine(t,
				engine.WithStrategy(kind),
				engine.WithObjects([]instance.Object{
					instance.NewObject([4]float32{1, 0, 0, 1}, [2]float32{0, 0}, 0.3),
				}),
			)

			res, err := e.RenderFrame()
			require.NoError(t, err)
			assert.Equal(t, renderer.FramePresented, res)

			label := "instance scales"
			if kind == strategy.KindUniformPerInstance {
				label = "object 0 scale"
			}
			scales := h.writes(label)
			require.Len(t, scales, 1)
			assert.InDelta(t, 0.3, floatAt(scales[0].Data, 0), 1e-6)
			assert.InDelta(t, 0.3, floatAt(scales[0].Data, 4), 1e-6)

			require.Len(t, h.backend.Draws, 1)
			assert.Equal(t, uint32(1), h.backend.Draws[0].InstanceCount)
		})
	}
}

func TestHundredRandomInstances(t *testing.T) {
	h := newHarness(800, 600)
	e := h.engine(t,
		engine.WithStrategy(strategy.KindBulkStorageInstanced),
		engine.WithInstanceCount(100),
		engine.WithSeed(7),
	)

	objects := e.Strategy().Objects()
	require.Len(t, objects, 100)
	for _, o := range objects {
		for _, c := range o.Base.Color {
			assert.True(t, c >= 0 && c <= 1)
		}
		for _, v := range o.Base.Offset {
			assert.True(t, v >= instance.MinOffset && v <= instance.MaxOffset)
		}
		assert.True(t, o.Scale >= instance.MinScale && o.Scale <= instance.MaxScale)
	}

	bases := h.writes("instance bases")
	require.Len(t, bases, 1)
	assert.Len(t, bases[0].Data, 100*instance.MinRecordSize)

	_, err := e.RenderFrame()
	require.NoError(t, err)
	require.Len(t, h.backend.Draws, 1)
	assert.Equal(t, uint32(100), h.backend.Draws[0].InstanceCount)
}

func TestSeedIsReproducible(t *testing.T) {
	a := newHarness(800, 600).engine(t, engine.WithInstanceCount(10), engine.WithSeed(3))
	b := newHarness(800, 600).engine(t, engine.WithInstanceCount(10), engine.WithSeed(3))
	assert.Equal(t, a.Strategy().Objects(), b.Strategy().Objects())
}

func TestRingGeometry(t *testing.T) {
	h := newHarness(800, 600)
	e := h.engine(t, engine.WithInstanceCount(1), engine.WithRing(geometry.DefaultRingParams()))

	_, err := e.RenderFrame()
	require.NoError(t, err)
	require.Len(t, h.backend.Draws, 1)
	assert.Equal(t, uint32(144), h.backend.Draws[0].VertexCount)
}

func TestInvalidRing(t *testing.T) {
	h := newHarness(800, 600)
	params := geometry.DefaultRingParams()
	params.Segments = 0
	_, err := engine.NewEngine(h.window,
		engine.WithRendererOptions(renderer.WithBackend(h.backend)),
		engine.WithRing(params),
	)
	assert.ErrorIs(t, err, geometry.ErrInvalidRing)
	assert.Empty(t, h.rec.Calls(), "nothing is created for bad geometry")
}

func TestAcquireFailureSkipsFrame(t *testing.T) {
	h := newHarness(800, 600)
	e := h.engine(t, engine.WithInstanceCount(4), engine.WithProfiling(true))

	h.rec.Reset()
	h.backend.AcquireFailures = 1
	res, err := e.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FrameSkipped, res)
	assert.Equal(t, []string{"acquire_failed"}, h.rec.Calls())

	res, err = e.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, res)
	assert.Contains(t, h.rec.Calls(), "present")
}

func TestResizeFromWindow(t *testing.T) {
	h := newHarness(800, 600)
	e := h.engine(t, engine.WithInstanceCount(1))

	h.window.Resize(300, 200)
	h.rec.Reset()
	_, err := e.RenderFrame()
	require.NoError(t, err)
	require.NotEmpty(t, h.rec.Calls())
	assert.Equal(t, "configure 300x200", h.rec.Calls()[0])
	assert.InDelta(t, 1.5, e.Renderer().AspectRatio(), 1e-6)

	h.window.Resize(0, 0)
	res, err := e.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FrameSkipped, res)
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	h := newHarness(800, 600)
	h.window.MaxIterations = 3
	e := h.engine(t, engine.WithInstanceCount(2))

	require.NoError(t, e.Run())
	assert.Len(t, h.rec.CallsWithPrefix("present"), 3)
	assert.Len(t, h.rec.CallsWithPrefix("pre_present_notify"), 3)
}

func TestRunReturnsFatalError(t *testing.T) {
	h := newHarness(800, 600)
	h.window.MaxIterations = 10
	e := h.engine(t, engine.WithInstanceCount(2))

	h.backend.EndFrameErr = errors.New("device lost")
	err := e.Run()
	require.ErrorIs(t, err, renderer.ErrSubmission)
	assert.True(t, h.window.Closed)
	assert.Equal(t, 1, h.window.Iterations)
	assert.Empty(t, h.rec.CallsWithPrefix("present"))
	assert.Len(t, h.rec.CallsWithPrefix("discard"), 1)

	assert.Less(t, h.rec.Index("release_surface"), h.rec.Index("window_close"))
	assert.Less(t, h.rec.Index("release_device"), h.rec.Index("window_close"))
	_, err = e.RenderFrame()
	assert.ErrorIs(t, err, engine.ErrShutdown)
}

func TestShutdown(t *testing.T) {
	h := newHarness(800, 600)
	e := h.engine(t, engine.WithInstanceCount(2))

	e.Shutdown()
	e.Shutdown()
	calls := h.rec.Calls()
	assert.Equal(t, "release_device", calls[len(calls)-1])
	assert.Len(t, h.rec.CallsWithPrefix("release_device"), 1)

	// Bind groups go before the buffers they reference, the surface before the device.
	assert.Less(t, h.rec.Index("release bind_group object 0"), h.rec.Index("release buffer object 0 base"))
	assert.Less(t, h.rec.Index("release_surface"), h.rec.Index("release_device"))

	_, err := e.RenderFrame()
	assert.ErrorIs(t, err, engine.ErrShutdown)
	e.HandleResize(10, 10)
}

func TestTexturedNeedsImage(t *testing.T) {
	h := newHarness(800, 600)
	_, err := engine.NewEngine(h.window,
		engine.WithRendererOptions(renderer.WithBackend(h.backend)),
		engine.WithStrategy(strategy.KindTexturedQuad),
	)
	require.ErrorIs(t, err, strategy.ErrImageRequired)
	calls := h.rec.Calls()
	assert.Equal(t, "release_device", calls[len(calls)-1])
}

func TestTexturedQuad(t *testing.T) {
	h := newHarness(800, 600)
	img := common.TextureStagingData{Pixels: make([]byte, 2*2*4), Width: 2, Height: 2}
	e := h.engine(t,
		engine.WithStrategy(strategy.KindTexturedQuad),
		engine.WithInstanceCount(5),
		engine.WithImage(img),
	)
	require.Len(t, h.backend.Textures, 1)

	_, err := e.RenderFrame()
	require.NoError(t, err)
	require.Len(t, h.backend.Draws, 1)
	assert.Equal(t, uint32(6), h.backend.Draws[0].VertexCount)
	assert.Equal(t, uint32(5), h.backend.Draws[0].InstanceCount)
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Strategy = "bulk_storage"
	cfg.Render.PresentMode = "uncapped"
	cfg.Scene.Instances = 12
	cfg.Scene.Mesh = config.MeshTriangle

	h := newHarness(800, 600)
	e := h.engine(t, engine.WithConfig(cfg))
	assert.Equal(t, strategy.KindBulkStorageInstanced, e.Strategy().Kind())
	assert.Len(t, e.Strategy().Objects(), 12)
	require.NotEmpty(t, h.backend.Configs)
	assert.Equal(t, wgpu.PresentModeImmediate, e.Renderer().Surface().Config().PresentMode)

	_, err := e.RenderFrame()
	require.NoError(t, err)
	assert.Contains(t, h.rec.Calls(), "draw 3 12")
}

func TestWithConfigTexturedDrawsQuad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.Render.Strategy = "textured"
	cfg.Scene.Instances = 3
	cfg.Scene.Image = path

	h := newHarness(800, 600)
	e := h.engine(t, engine.WithConfig(cfg))
	_, err = e.RenderFrame()
	require.NoError(t, err)
	assert.Contains(t, h.rec.Calls(), "draw 6 3")
}

func TestWithConfigInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Strategy = "deferred"
	h := newHarness(800, 600)
	_, err := engine.NewEngine(h.window, engine.WithRendererOptions(renderer.WithBackend(h.backend)), engine.WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = config.Default()
	cfg.Scene.Image = "does-not-exist.png"
	_, err = engine.NewEngine(h.window, engine.WithRendererOptions(renderer.WithBackend(h.backend)), engine.WithConfig(cfg))
	assert.ErrorContains(t, err, "scene.image")
}

func TestRepeatedFramesRewriteSameScales(t *testing.T) {
	h := newHarness(800, 600)
	e := h.engine(t, engine.WithStrategy(strategy.KindBulkStorageInstanced), engine.WithInstanceCount(5))

	_, err := e.RenderFrame()
	require.NoError(t, err)
	first := h.backend.Contents("instance scales")
	require.Len(t, first, 5*instance.MinRecordSize)

	_, err = e.RenderFrame()
	require.NoError(t, err)
	assert.Len(t, h.writes("instance scales"), 2)
	assert.Equal(t, first, h.backend.Contents("instance scales"))
}
