package renderer

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	// Frame state, held from AcquireFrame until Present or DiscardFrame.
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// GPU handles returned to the resource manager and pipeline.
type (
	wgpuBuffer    struct{ buf *wgpu.Buffer }
	wgpuSampler   struct{ sampler *wgpu.Sampler }
	wgpuBindGroup struct{ bindGroup *wgpu.BindGroup }
	wgpuTexture   struct {
		texture *wgpu.Texture
		view    *wgpu.TextureView
	}
	wgpuPipeline struct {
		pipeline *wgpu.RenderPipeline
		layout   *wgpu.PipelineLayout
		groups   []*wgpu.BindGroupLayout
		module   *wgpu.ShaderModule
	}
)

func (b *wgpuBuffer) Release()    { b.buf.Release() }
func (s *wgpuSampler) Release()   { s.sampler.Release() }
func (g *wgpuBindGroup) Release() { g.bindGroup.Release() }

func (t *wgpuTexture) Release() {
	t.view.Release()
	t.texture.Release()
}

func (p *wgpuPipeline) Release() {
	p.pipeline.Release()
	p.layout.Release()
	for _, g := range p.groups {
		g.Release()
	}
	p.module.Release()
}

// newWGPURendererBackend creates the instance, surface, adapter, device and queue. The calling
// goroutine is locked to its OS thread, which must be the window thread.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (RendererBackend, error) {
	if surfaceDescriptor == nil {
		return nil, fmt.Errorf("%w: window has no surface descriptor", ErrDevice)
	}
	runtime.LockOSThread()

	b := &wgpuRendererBackendImpl{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.surface.Release()
		b.instance.Release()
		return nil, fmt.Errorf("%w: request adapter: %w", ErrDevice, err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "phex device",
	})
	if err != nil {
		b.surface.Release()
		b.adapter.Release()
		b.instance.Release()
		return nil, fmt.Errorf("%w: request device: %w", ErrDevice, err)
	}
	b.device = device
	b.queue = device.GetQueue()

	return b, nil
}

func (b *wgpuRendererBackendImpl) SurfaceCapabilities() SurfaceCapabilities {
	b.mu.Lock()
	defer b.mu.Unlock()

	caps := b.surface.GetCapabilities(b.adapter)
	return SurfaceCapabilities{
		Formats:      slices.Clone(caps.Formats),
		PresentModes: slices.Clone(caps.PresentModes),
	}
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(cfg SurfaceConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	caps := b.surface.GetCapabilities(b.adapter)
	if len(caps.AlphaModes) == 0 {
		return fmt.Errorf("surface reports no alpha modes")
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      cfg.Format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		PresentMode: cfg.PresentMode,
		AlphaMode:   caps.AlphaModes[0],
	})
	return nil
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, usage resource.BufferUsage, size uint64) (resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var gpuUsage wgpu.BufferUsage
	switch usage {
	case resource.BufferUsageUniform:
		gpuUsage = wgpu.BufferUsageUniform
	case resource.BufferUsageStorage:
		gpuUsage = wgpu.BufferUsageStorage
	case resource.BufferUsageVertex:
		gpuUsage = wgpu.BufferUsageVertex
	default:
		return nil, fmt.Errorf("unknown buffer usage %d", usage)
	}

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gpuUsage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buf: buf}, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf resource.Resource, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("write to foreign buffer %T", buf)
	}
	b.queue.WriteBuffer(wb.buf, offset, data)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, image common.TextureStagingData) (resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	extent := wgpu.Extent3D{
		Width:              image.Width,
		Height:             image.Height,
		DepthOrArrayLayers: 1,
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		image.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  image.Width * 4,
			RowsPerImage: image.Height,
		},
		&extent,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{texture: tex, view: view}, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, cfg common.SamplerStagingData) (resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(cfg.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(cfg.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(cfg.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(cfg.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(cfg.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(cfg.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   cfg.LodMinClamp,
		LodMaxClamp:   common.Coalesce(cfg.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(cfg.MaxAnisotropy, 1),
		Compare:       cfg.Compare,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: s}, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(label string, layout resource.Resource, group int, entries []resource.BindGroupEntry) (resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := layout.(*wgpuPipeline)
	if !ok {
		return nil, fmt.Errorf("bind group layout from foreign pipeline %T", layout)
	}
	if group < 0 || group >= len(p.groups) {
		return nil, fmt.Errorf("pipeline has no bind group layout %d", group)
	}

	gpuEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		gpuEntries[i].Binding = e.Binding
		switch {
		case e.Buffer != nil:
			gpuEntries[i].Buffer = e.Buffer.(*wgpuBuffer).buf
			gpuEntries[i].Offset = 0
			gpuEntries[i].Size = wgpu.WholeSize
		case e.Texture != nil:
			gpuEntries[i].TextureView = e.Texture.(*wgpuTexture).view
		case e.Sampler != nil:
			gpuEntries[i].Sampler = e.Sampler.(*wgpuSampler).sampler
		}
	}

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  p.groups[group],
		Entries: gpuEntries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{bindGroup: bg}, nil
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(p pipeline.Pipeline) (resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := p.Shader()
	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, fmt.Errorf("create shader module %q: %w", s.Key(), err)
	}
	created := &wgpuPipeline{module: module}
	fail := func(err error) (resource.Resource, error) {
		for _, g := range created.groups {
			if g != nil {
				g.Release()
			}
		}
		if created.layout != nil {
			created.layout.Release()
		}
		module.Release()
		return nil, err
	}

	// Groups without declarations still need a layout so the indices line up.
	groups := s.Groups()
	maxGroup := -1
	if len(groups) > 0 {
		maxGroup = groups[len(groups)-1]
	}
	for g := 0; g <= maxGroup; g++ {
		desc := s.BindGroupLayoutDescriptor(g)
		desc.Label = fmt.Sprintf("%s group %d", p.Label(), g)
		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			return fail(fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr))
		}
		created.groups = append(created.groups, layout)
	}

	created.layout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Label(),
		BindGroupLayouts: created.groups,
	})
	if err != nil {
		return fail(err)
	}

	target := wgpu.ColorTargetState{
		Format:    p.ColorFormat(),
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		target.Blend = p.BlendState()
	}

	created.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.Label() + " Render Pipeline",
		Layout: created.layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: s.EntryPoint(wgpu.ShaderStageVertex),
			Buffers:    s.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: s.EntryPoint(wgpu.ShaderStageFragment),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fail(err)
	}
	return created, nil
}

func (b *wgpuRendererBackendImpl) AcquireFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A held image means the previous frame was never presented or discarded.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackendImpl) BeginPass(clear wgpu.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView == nil {
		return fmt.Errorf("no surface image acquired")
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.frameView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
	})
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(cmd DrawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return fmt.Errorf("draw outside a render pass")
	}
	p, ok := cmd.Pipeline.(*wgpuPipeline)
	if !ok {
		return fmt.Errorf("draw with foreign pipeline %T", cmd.Pipeline)
	}
	vb, ok := cmd.VertexBuffer.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("draw with foreign vertex buffer %T", cmd.VertexBuffer)
	}

	b.framePass.SetPipeline(p.pipeline)
	for i, res := range cmd.BindGroups {
		if res == nil {
			continue
		}
		bg, ok := res.(*wgpuBindGroup)
		if !ok {
			return fmt.Errorf("draw with foreign bind group %T", res)
		}
		b.framePass.SetBindGroup(uint32(i), bg.bindGroup, nil)
	}
	b.framePass.SetVertexBuffer(0, vb.buf, 0, wgpu.WholeSize)
	b.framePass.Draw(cmd.VertexCount, cmd.InstanceCount, 0, 0)
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return fmt.Errorf("end frame without a render pass")
	}
	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameImage()
}

func (b *wgpuRendererBackendImpl) DiscardFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil {
		b.framePass.End()
		b.framePass = nil
	}
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.releaseFrameImage()
}

func (b *wgpuRendererBackendImpl) releaseFrameImage() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) ReleaseSurface() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
