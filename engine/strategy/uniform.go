package strategy

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
)

// Bindings of the instance group (group 0) shared by every strategy's shader.
const (
	bindingBase  uint32 = 0
	bindingScale uint32 = 1
)

// uniformPerInstance draws each object with its own pair of uniform buffers.
type uniformPerInstance struct {
	*base
	providers []bind_group_provider.BindGroupProvider
	calls     []renderer.DrawCall
	extra     []byte
}

var _ Strategy = &uniformPerInstance{}

func (s *uniformPerInstance) Init(r renderer.Renderer, objects []instance.Object, mesh geometry.Mesh, _ *common.TextureStagingData) error {
	if err := s.init(r, objects, mesh); err != nil {
		return err
	}

	stride := s.packer.Stride()
	bases := s.packer.PackBase(objects)
	m := r.Resources()

	for i := range objects {
		label := fmt.Sprintf("object %d", i)
		baseBuf, err := m.CreateBuffer(label+" base", resource.BufferUsageUniform, stride)
		if err != nil {
			return err
		}
		scaleBuf, err := m.CreateBuffer(label+" scale", resource.BufferUsageUniform, stride)
		if err != nil {
			return err
		}

		p := bind_group_provider.NewBindGroupProvider(label,
			bind_group_provider.WithBuffer(bindingBase, baseBuf),
			bind_group_provider.WithBuffer(bindingScale, scaleBuf),
		)
		s.providers = append(s.providers, p)
		if err := p.Build(m, r.Pipeline()); err != nil {
			return err
		}
		if err := m.WriteBuffer(baseBuf, 0, bases[uint64(i)*stride:uint64(i+1)*stride]); err != nil {
			return err
		}

		s.calls = append(s.calls, renderer.DrawCall{
			Label:         label,
			Mesh:          s.mesh,
			BindGroups:    []bind_group_provider.BindGroupProvider{p},
			InstanceCount: 1,
		})
	}
	s.extra = make([]byte, s.packer.BlockSize(len(objects)))
	return nil
}

// PrepareFrame writes one scale record into each object's scale buffer.
func (s *uniformPerInstance) PrepareFrame(aspect float32) ([]bind_group_provider.BufferWrite, error) {
	if s.r == nil {
		return nil, ErrNotInitialized
	}
	if err := s.packer.PackExtraInto(s.extra, s.objects, aspect); err != nil {
		return nil, err
	}

	stride := s.packer.Stride()
	writes := make([]bind_group_provider.BufferWrite, len(s.providers))
	for i, p := range s.providers {
		writes[i] = bind_group_provider.BufferWrite{
			Provider: p,
			Binding:  bindingScale,
			Data:     s.extra[uint64(i)*stride : uint64(i+1)*stride],
		}
	}
	return writes, nil
}

func (s *uniformPerInstance) DrawCalls() []renderer.DrawCall {
	return s.calls
}

func (s *uniformPerInstance) Release() error {
	var errs []error
	for _, p := range s.providers {
		errs = append(errs, p.Release())
	}
	s.providers = nil
	s.calls = nil
	errs = append(errs, s.release())
	return errors.Join(errs...)
}
