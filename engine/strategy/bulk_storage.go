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

// bulkStorageInstanced holds every object in one pair of storage buffers and draws them all with
// a single instanced draw.
type bulkStorageInstanced struct {
	*base
	instances bind_group_provider.BindGroupProvider
	calls     []renderer.DrawCall
	extra     []byte
}

var _ Strategy = &bulkStorageInstanced{}

func (s *bulkStorageInstanced) Init(r renderer.Renderer, objects []instance.Object, mesh geometry.Mesh, _ *common.TextureStagingData) error {
	if err := s.initInstances(r, objects, mesh); err != nil {
		return err
	}
	s.calls = []renderer.DrawCall{{
		Label:         s.kind.String(),
		Mesh:          s.mesh,
		BindGroups:    []bind_group_provider.BindGroupProvider{s.instances},
		InstanceCount: uint32(len(objects)),
	}}
	return nil
}

// initInstances builds the pipeline, uploads the mesh and creates the group 0 storage buffers,
// uploading the base block once.
func (s *bulkStorageInstanced) initInstances(r renderer.Renderer, objects []instance.Object, mesh geometry.Mesh) error {
	if s.packer.Stride() != instance.MinRecordSize {
		return fmt.Errorf("%w: stride %d, record size %d", ErrUnpackedStride, s.packer.Stride(), instance.MinRecordSize)
	}
	if err := s.init(r, objects, mesh); err != nil {
		return err
	}

	// An empty set still needs one record so the bind group satisfies the minimum binding size.
	size := max(s.packer.BlockSize(len(objects)), s.packer.Stride())
	m := r.Resources()
	bases, err := m.CreateBuffer("instance bases", resource.BufferUsageStorage, size)
	if err != nil {
		return err
	}
	scales, err := m.CreateBuffer("instance scales", resource.BufferUsageStorage, size)
	if err != nil {
		_ = bases.Release()
		return err
	}

	s.instances = bind_group_provider.NewBindGroupProvider("instances",
		bind_group_provider.WithBuffer(bindingBase, bases),
		bind_group_provider.WithBuffer(bindingScale, scales),
	)
	if err := s.instances.Build(m, r.Pipeline()); err != nil {
		return err
	}
	if len(objects) > 0 {
		if err := m.WriteBuffer(bases, 0, s.packer.PackBase(objects)); err != nil {
			return err
		}
	}
	s.extra = make([]byte, s.packer.BlockSize(len(objects)))
	return nil
}

// PrepareFrame uploads the whole scale block in one write.
func (s *bulkStorageInstanced) PrepareFrame(aspect float32) ([]bind_group_provider.BufferWrite, error) {
	if s.r == nil {
		return nil, ErrNotInitialized
	}
	if len(s.objects) == 0 {
		return nil, nil
	}
	if err := s.packer.PackExtraInto(s.extra, s.objects, aspect); err != nil {
		return nil, err
	}
	return []bind_group_provider.BufferWrite{{
		Provider: s.instances,
		Binding:  bindingScale,
		Data:     s.extra,
	}}, nil
}

func (s *bulkStorageInstanced) DrawCalls() []renderer.DrawCall {
	return s.calls
}

func (s *bulkStorageInstanced) Release() error {
	var errs []error
	if s.instances != nil {
		errs = append(errs, s.instances.Release())
		s.instances = nil
	}
	s.calls = nil
	errs = append(errs, s.release())
	return errors.Join(errs...)
}
