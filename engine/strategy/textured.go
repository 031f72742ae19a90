package strategy

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/bind_group_provider"
)

// Bindings of the image group (group 1).
const (
	imageGroup                 = 1
	bindingImage        uint32 = 0
	bindingImageSampler uint32 = 1
)

// texturedQuad is bulk storage instancing that samples one decoded image.
type texturedQuad struct {
	bulkStorageInstanced
	image bind_group_provider.BindGroupProvider
}

var _ Strategy = &texturedQuad{}

func (s *texturedQuad) Init(r renderer.Renderer, objects []instance.Object, mesh geometry.Mesh, image *common.TextureStagingData) error {
	if image == nil {
		return ErrImageRequired
	}
	if !image.Valid() {
		return fmt.Errorf("%w: %dx%d image with %d bytes", ErrImageRequired, image.Width, image.Height, len(image.Pixels))
	}
	if err := s.initInstances(r, objects, mesh); err != nil {
		return err
	}

	m := r.Resources()
	tex, err := m.CreateTextureFromDecodedImage("quad image", image.Pixels, image.Width, image.Height)
	if err != nil {
		return err
	}
	samp, err := m.CreateSampler("quad image sampler", s.sampler)
	if err != nil {
		_ = tex.Release()
		return err
	}
	s.image = bind_group_provider.NewBindGroupProvider("quad image",
		bind_group_provider.WithGroup(imageGroup),
		bind_group_provider.WithTexture(bindingImage, tex),
		bind_group_provider.WithSampler(bindingImageSampler, samp),
	)
	if err := s.image.Build(m, r.Pipeline()); err != nil {
		return err
	}

	s.calls = []renderer.DrawCall{{
		Label:         s.kind.String(),
		Mesh:          s.mesh,
		BindGroups:    []bind_group_provider.BindGroupProvider{s.instances, s.image},
		InstanceCount: uint32(len(objects)),
	}}
	return nil
}

func (s *texturedQuad) Release() error {
	var err error
	if s.image != nil {
		err = s.image.Release()
		s.image = nil
	}
	return errors.Join(err, s.bulkStorageInstanced.Release())
}
