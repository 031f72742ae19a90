package renderer_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uniformSource = `//@phex:include vertex
//@phex:include instance_base
//@phex:include instance_scale
//@phex:group 0 0 uniform base instance_base
//@phex:group 0 1 uniform scale instance_scale

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(vin: VertexInput) -> VertexOutput {
    var vout: VertexOutput;
    vout.clip_position = vec4<f32>(vin.position * scale.scale + base.offset, 0.0, 1.0);
    vout.color = base.color;
    return vout;
}

@fragment
fn fs_main(fin: VertexOutput) -> @location(0) vec4<f32> {
    return fin.color;
}
`

type fixture struct {
	r       renderer.Renderer
	backend *renderertest.Backend
	window  *renderertest.Window
	rec     *renderertest.Recorder
}

func newFixture(t *testing.T, options ...renderer.RendererBuilderOption) *fixture {
	t.Helper()
	rec := renderertest.NewRecorder()
	backend := renderertest.NewBackend(rec)
	win := renderertest.NewWindow(rec, 800, 600)
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win, append([]renderer.RendererBuilderOption{renderer.WithBackend(backend)}, options...)...)
	require.NoError(t, err)
	return &fixture{r: r, backend: backend, window: win, rec: rec}
}

// scene builds the pipeline, one uniform provider and a triangle mesh.
func (f *fixture) scene(t *testing.T) (bind_group_provider.BindGroupProvider, bind_group_provider.BindGroupProvider) {
	t.Helper()
	_, err := f.r.BuildPipeline("uniform", uniformSource)
	require.NoError(t, err)

	m := f.r.Resources()
	base, err := m.CreateBuffer("base", resource.BufferUsageUniform, 32)
	require.NoError(t, err)
	scale, err := m.CreateBuffer("scale", resource.BufferUsageUniform, 32)
	require.NoError(t, err)

	p := bind_group_provider.NewBindGroupProvider("object 0",
		bind_group_provider.WithGroup(0),
		bind_group_provider.WithBuffer(0, base),
		bind_group_provider.WithBuffer(1, scale),
	)
	require.NoError(t, p.Build(m, f.r.Pipeline()))

	mesh, err := f.r.UploadMesh("triangle", geometry.Triangle())
	require.NoError(t, err)
	return p, mesh
}

type testSource struct {
	writes   []bind_group_provider.BufferWrite
	calls    []renderer.DrawCall
	aspects  []float32
	failWith error
}

func (s *testSource) PrepareFrame(aspect float32) ([]bind_group_provider.BufferWrite, error) {
	s.aspects = append(s.aspects, aspect)
	return s.writes, s.failWith
}

func (s *testSource) DrawCalls() []renderer.DrawCall {
	return s.calls
}

func singleDraw(p, mesh bind_group_provider.BindGroupProvider) *testSource {
	return &testSource{
		writes: []bind_group_provider.BufferWrite{{Provider: p, Binding: 1, Data: make([]byte, 32)}},
		calls: []renderer.DrawCall{{
			Label:         "object 0",
			Mesh:          mesh,
			BindGroups:    []bind_group_provider.BindGroupProvider{p},
			InstanceCount: 1,
		}},
	}
}

func TestNewRendererFormatNegotiation(t *testing.T) {
	tests := []struct {
		name    string
		formats []wgpu.TextureFormat
		srgb    bool
		want    wgpu.TextureFormat
	}{
		{
			name:    "first srgb format",
			formats: []wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8UnormSrgb},
			srgb:    true,
			want:    wgpu.TextureFormatRGBA8UnormSrgb,
		},
		{
			name:    "no srgb falls back to first",
			formats: []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatBGRA8Unorm},
			srgb:    true,
			want:    wgpu.TextureFormatRGBA8Unorm,
		},
		{
			name:    "srgb off picks first linear",
			formats: []wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatBGRA8Unorm},
			srgb:    false,
			want:    wgpu.TextureFormatBGRA8Unorm,
		},
		{
			name:    "srgb off with only srgb",
			formats: []wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb},
			srgb:    false,
			want:    wgpu.TextureFormatBGRA8UnormSrgb,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := renderertest.NewRecorder()
			backend := renderertest.NewBackend(rec)
			backend.Caps.Formats = tt.formats

			r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderertest.NewWindow(rec, 640, 480),
				renderer.WithBackend(backend), renderer.WithSRGB(tt.srgb))
			require.NoError(t, err)

			assert.Equal(t, tt.want, r.Surface().Format())
			require.Len(t, backend.Configs, 1)
			assert.Equal(t, tt.want, backend.Configs[0].Format)
			assert.Equal(t, uint32(640), backend.Configs[0].Width)
			assert.Equal(t, uint32(480), backend.Configs[0].Height)
			assert.Equal(t, renderer.SurfaceConfigured, r.Surface().State())
		})
	}
}

func TestNewRendererNoFormats(t *testing.T) {
	rec := renderertest.NewRecorder()
	backend := renderertest.NewBackend(rec)
	backend.Caps.Formats = nil

	_, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderertest.NewWindow(rec, 640, 480), renderer.WithBackend(backend))
	require.ErrorIs(t, err, renderer.ErrSurface)
	assert.Equal(t, []string{"release_surface", "release_device"}, rec.Calls())
}

func TestNewRendererConfigureFailure(t *testing.T) {
	rec := renderertest.NewRecorder()
	backend := renderertest.NewBackend(rec)
	backend.ConfigureErr = errors.New("unsupported")

	_, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderertest.NewWindow(rec, 640, 480), renderer.WithBackend(backend))
	require.ErrorIs(t, err, renderer.ErrSurface)
	assert.False(t, renderer.IsRecoverable(err))
	assert.Equal(t, []string{"release_surface", "release_device"}, rec.Calls())
}

func TestPresentModeNegotiation(t *testing.T) {
	tests := []struct {
		name      string
		mode      renderer.PresentMode
		available []wgpu.PresentMode
		want      wgpu.PresentMode
	}{
		{"vsync", renderer.PresentModeVSync, []wgpu.PresentMode{wgpu.PresentModeFifo, wgpu.PresentModeImmediate}, wgpu.PresentModeFifo},
		{"uncapped immediate", renderer.PresentModeUncapped, []wgpu.PresentMode{wgpu.PresentModeFifo, wgpu.PresentModeMailbox, wgpu.PresentModeImmediate}, wgpu.PresentModeImmediate},
		{"uncapped mailbox", renderer.PresentModeUncapped, []wgpu.PresentMode{wgpu.PresentModeFifo, wgpu.PresentModeMailbox}, wgpu.PresentModeMailbox},
		{"uncapped fallback", renderer.PresentModeUncapped, []wgpu.PresentMode{wgpu.PresentModeFifo}, wgpu.PresentModeFifo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := renderertest.NewRecorder()
			backend := renderertest.NewBackend(rec)
			backend.Caps.PresentModes = tt.available

			_, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderertest.NewWindow(rec, 640, 480),
				renderer.WithBackend(backend), renderer.WithPresentMode(tt.mode))
			require.NoError(t, err)
			require.Len(t, backend.Configs, 1)
			assert.Equal(t, tt.want, backend.Configs[0].PresentMode)
		})
	}
}

func TestPresentModeString(t *testing.T) {
	assert.Equal(t, "vsync", renderer.PresentModeVSync.String())
	assert.Equal(t, "uncapped", renderer.PresentModeUncapped.String())
}

func TestBuildPipeline(t *testing.T) {
	f := newFixture(t)

	p, err := f.r.BuildPipeline("uniform", uniformSource)
	require.NoError(t, err)
	assert.True(t, p.Built())
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, p.ColorFormat())
	assert.Same(t, p, f.r.Pipeline())
	assert.Contains(t, f.rec.Calls(), "create pipeline uniform")

	_, err = f.r.BuildPipeline("again", uniformSource)
	require.ErrorIs(t, err, renderer.ErrPipeline)
	assert.Same(t, p, f.r.Pipeline())
}

func TestBuildPipelineCompilationError(t *testing.T) {
	f := newFixture(t)

	_, err := f.r.BuildPipeline("broken", "@vertex fn vs_main( -> {")
	var compileErr *shader.CompilationError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "broken", compileErr.Key)
	assert.NotEmpty(t, compileErr.Diagnostic)
	assert.Nil(t, f.r.Pipeline())
}

func TestBuildPipelineBackendError(t *testing.T) {
	f := newFixture(t)
	f.backend.PipelineErr = errors.New("device lost")

	_, err := f.r.BuildPipeline("uniform", uniformSource)
	require.ErrorIs(t, err, renderer.ErrPipeline)
	assert.Nil(t, f.r.Pipeline())
}

func TestUploadMesh(t *testing.T) {
	f := newFixture(t)

	mesh, err := f.r.UploadMesh("triangle", geometry.Triangle())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), mesh.VertexCount())
	require.NotNil(t, mesh.VertexBuffer())
	assert.Equal(t, resource.BufferUsageVertex, mesh.VertexBuffer().Usage())
	calls := f.rec.Calls()
	assert.Equal(t, []string{"create buffer triangle", "write triangle 0 48"}, calls[len(calls)-2:])

	_, err = f.r.UploadMesh("empty", geometry.Mesh{})
	assert.Error(t, err)
}

func TestRenderFrameOrdering(t *testing.T) {
	f := newFixture(t)
	p, mesh := f.scene(t)
	f.rec.Reset()

	res, err := f.r.RenderFrame(singleDraw(p, mesh), f.window.PrePresentNotify)
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, res)

	assert.Equal(t, []string{
		"acquire",
		"write scale 0 32",
		"begin_pass",
		"draw 3 1",
		"submit",
		"pre_present_notify",
		"present",
	}, f.rec.Calls())

	require.Len(t, f.backend.Draws, 1)
	draw := f.backend.Draws[0]
	assert.Equal(t, "uniform", renderertest.LabelOf(draw.Pipeline))
	assert.Equal(t, "triangle", renderertest.LabelOf(draw.VertexBuffer))
	require.Len(t, draw.BindGroups, 1)
	assert.Equal(t, "object 0", renderertest.LabelOf(draw.BindGroups[0]))
}

func TestRenderFrameAcquireFailureSkips(t *testing.T) {
	f := newFixture(t)
	p, mesh := f.scene(t)
	f.backend.AcquireFailures = 1
	f.rec.Reset()

	source := singleDraw(p, mesh)
	res, err := f.r.RenderFrame(source, f.window.PrePresentNotify)
	require.NoError(t, err)
	assert.Equal(t, renderer.FrameSkipped, res)
	assert.Equal(t, []string{"acquire_failed"}, f.rec.Calls())
	assert.Empty(t, source.aspects)

	// The next frame reconfigures at the same size before acquiring.
	f.rec.Reset()
	res, err = f.r.RenderFrame(source, f.window.PrePresentNotify)
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, res)
	calls := f.rec.Calls()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{"configure 800x600", "acquire"}, calls[:2])
}

func TestRenderFrameResizeLastWriteWins(t *testing.T) {
	f := newFixture(t)
	p, mesh := f.scene(t)
	f.rec.Reset()

	f.r.Resize(100, 100)
	f.r.Resize(300, 200)
	assert.Empty(t, f.rec.CallsWithPrefix("configure"))
	assert.InDelta(t, 1.5, f.r.AspectRatio(), 1e-6)

	source := singleDraw(p, mesh)
	_, err := f.r.RenderFrame(source, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"configure 300x200"}, f.rec.CallsWithPrefix("configure"))
	assert.Less(t, f.rec.Index("configure 300x200"), f.rec.Index("acquire"))
	assert.Equal(t, []float32{1.5}, source.aspects)
	assert.Equal(t, uint32(300), f.r.Surface().Config().Width)
}

func TestRenderFrameZeroExtentSkips(t *testing.T) {
	f := newFixture(t)
	p, mesh := f.scene(t)
	f.rec.Reset()

	f.r.Resize(0, 0)
	res, err := f.r.RenderFrame(singleDraw(p, mesh), nil)
	require.NoError(t, err)
	assert.Equal(t, renderer.FrameSkipped, res)
	assert.Empty(t, f.rec.Calls())
	assert.InDelta(t, 1.0, f.r.AspectRatio(), 1e-6)

	f.r.Resize(400, 400)
	res, err = f.r.RenderFrame(singleDraw(p, mesh), nil)
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, res)
	assert.Contains(t, f.rec.Calls(), "configure 400x400")
}

func TestRenderFrameZeroSizedWindowStartsUnconfigured(t *testing.T) {
	rec := renderertest.NewRecorder()
	backend := renderertest.NewBackend(rec)
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderertest.NewWindow(rec, 0, 0), renderer.WithBackend(backend))
	require.NoError(t, err)
	assert.Equal(t, renderer.SurfaceUnconfigured, r.Surface().State())
	assert.Empty(t, backend.Configs)

	r.Resize(320, 240)
	require.NoError(t, r.Surface().Acquire())
	assert.Equal(t, renderer.SurfaceConfigured, r.Surface().State())
	r.Backend().DiscardFrame()
}

func TestRenderFrameInvalidDraws(t *testing.T) {
	tests := []struct {
		name  string
		build func(p, mesh bind_group_provider.BindGroupProvider) renderer.DrawCall
	}{
		{
			name: "no mesh",
			build: func(p, _ bind_group_provider.BindGroupProvider) renderer.DrawCall {
				return renderer.DrawCall{Label: "d", BindGroups: []bind_group_provider.BindGroupProvider{p}, InstanceCount: 1}
			},
		},
		{
			name: "mesh without vertex buffer",
			build: func(p, _ bind_group_provider.BindGroupProvider) renderer.DrawCall {
				return renderer.DrawCall{Label: "d", Mesh: p, BindGroups: []bind_group_provider.BindGroupProvider{p}, InstanceCount: 1}
			},
		},
		{
			name: "unbuilt provider",
			build: func(_, mesh bind_group_provider.BindGroupProvider) renderer.DrawCall {
				return renderer.DrawCall{Label: "d", Mesh: mesh, BindGroups: []bind_group_provider.BindGroupProvider{bind_group_provider.NewBindGroupProvider("empty")}, InstanceCount: 1}
			},
		},
		{
			name: "group not bound",
			build: func(_, mesh bind_group_provider.BindGroupProvider) renderer.DrawCall {
				return renderer.DrawCall{Label: "d", Mesh: mesh, InstanceCount: 1}
			},
		},
		{
			name: "group bound twice",
			build: func(p, mesh bind_group_provider.BindGroupProvider) renderer.DrawCall {
				return renderer.DrawCall{Label: "d", Mesh: mesh, BindGroups: []bind_group_provider.BindGroupProvider{p, p}, InstanceCount: 1}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p, mesh := f.scene(t)
			f.rec.Reset()

			source := &testSource{calls: []renderer.DrawCall{tt.build(p, mesh)}}
			res, err := f.r.RenderFrame(source, f.window.PrePresentNotify)
			require.ErrorIs(t, err, renderer.ErrInvalidDraw)
			assert.False(t, renderer.IsRecoverable(err))
			assert.Equal(t, renderer.FrameSkipped, res)
			assert.Equal(t, []string{"acquire", "begin_pass", "discard"}, f.rec.Calls())
		})
	}
}

func TestRenderFrameSkipsZeroInstanceDraws(t *testing.T) {
	f := newFixture(t)
	p, mesh := f.scene(t)
	f.rec.Reset()

	source := singleDraw(p, mesh)
	source.calls[0].InstanceCount = 0
	res, err := f.r.RenderFrame(source, nil)
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, res)
	assert.Empty(t, f.rec.CallsWithPrefix("draw"))
}

func TestRenderFrameFatalErrors(t *testing.T) {
	t.Run("submission", func(t *testing.T) {
		f := newFixture(t)
		p, mesh := f.scene(t)
		f.backend.EndFrameErr = errors.New("queue lost")
		f.rec.Reset()

		_, err := f.r.RenderFrame(singleDraw(p, mesh), f.window.PrePresentNotify)
		require.ErrorIs(t, err, renderer.ErrSubmission)
		assert.Equal(t, -1, f.rec.Index("present"))
		assert.Equal(t, -1, f.rec.Index("pre_present_notify"))
		assert.NotEqual(t, -1, f.rec.Index("discard"))
	})

	t.Run("prepare", func(t *testing.T) {
		f := newFixture(t)
		p, mesh := f.scene(t)
		f.rec.Reset()

		source := singleDraw(p, mesh)
		source.failWith = fmt.Errorf("pack failed")
		_, err := f.r.RenderFrame(source, nil)
		require.Error(t, err)
		assert.Equal(t, []string{"acquire", "discard"}, f.rec.Calls())
	})

	t.Run("misaligned write", func(t *testing.T) {
		f := newFixture(t)
		p, mesh := f.scene(t)
		f.rec.Reset()

		source := singleDraw(p, mesh)
		source.writes[0].Data = make([]byte, 6)
		_, err := f.r.RenderFrame(source, nil)
		require.ErrorIs(t, err, resource.ErrMisaligned)
		assert.Equal(t, []string{"acquire", "discard"}, f.rec.Calls())
	})

	t.Run("no pipeline", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.r.RenderFrame(&testSource{}, nil)
		require.ErrorIs(t, err, renderer.ErrInvalidDraw)
		assert.Empty(t, f.rec.CallsWithPrefix("acquire"))
	})
}

func TestReleaseOrder(t *testing.T) {
	f := newFixture(t)
	f.scene(t)
	f.rec.Reset()

	f.r.Release()
	calls := f.rec.Calls()

	bindGroup := f.rec.Index("release bind_group object 0")
	base := f.rec.Index("release buffer base")
	vertex := f.rec.Index("release buffer triangle")
	pipe := f.rec.Index("release pipeline uniform")
	surface := f.rec.Index("release_surface")
	device := f.rec.Index("release_device")

	for _, i := range []int{bindGroup, base, vertex, pipe, surface, device} {
		require.NotEqual(t, -1, i, "calls: %v", calls)
	}
	assert.Less(t, bindGroup, base)
	assert.Less(t, base, pipe)
	assert.Less(t, vertex, pipe)
	assert.Less(t, pipe, surface)
	assert.Less(t, surface, device)
	assert.Equal(t, renderer.SurfaceTornDown, f.r.Surface().State())

	f.rec.Reset()
	f.r.Release()
	assert.Empty(t, f.rec.Calls())

	_, err := f.r.RenderFrame(&testSource{}, nil)
	assert.Error(t, err)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, renderer.IsRecoverable(fmt.Errorf("frame: %w", renderer.ErrSurfaceAcquire)))
	assert.True(t, renderer.IsRecoverable(renderer.ErrZeroExtent))
	assert.True(t, renderer.IsRecoverable(renderer.ErrSurfaceUnconfigured))
	assert.False(t, renderer.IsRecoverable(renderer.ErrSurfaceTornDown))
	assert.False(t, renderer.IsRecoverable(renderer.ErrSubmission))
	assert.False(t, renderer.IsRecoverable(nil))
}
