// Package strategy holds the ways the engine draws its objects. Every strategy owns the GPU
// resources of its objects and feeds the renderer one frame at a time; the engine picks one at
// construction and never switches.
package strategy

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
	"github.com/Carmen-Shannon/phex-go/engine/renderer"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/bind_group_provider"
)

//go:embed assets/uniform.wgsl
var uniformSource string

//go:embed assets/bulk_storage.wgsl
var bulkStorageSource string

//go:embed assets/textured.wgsl
var texturedSource string

var (
	// ErrUnknownKind is returned by ParseKind and New for an unrecognized strategy.
	ErrUnknownKind = errors.New("unknown draw strategy")
	// ErrImageRequired is returned by the textured strategy when no image is supplied.
	ErrImageRequired = errors.New("textured strategy requires an image")
	// ErrNotInitialized is returned by PrepareFrame before Init.
	ErrNotInitialized = errors.New("strategy is not initialized")
	// ErrUnpackedStride is returned when a storage strategy's packer pads records beyond the WGSL
	// array element size.
	ErrUnpackedStride = errors.New("storage records must be tightly packed")
)

// Kind selects a draw strategy.
type Kind int

const (
	// KindUniformPerInstance gives every object its own uniform buffers and bind group, and draws
	// each object separately.
	KindUniformPerInstance Kind = iota
	// KindBulkStorageInstanced packs every object into two storage buffers and issues one
	// instanced draw.
	KindBulkStorageInstanced
	// KindTexturedQuad is KindBulkStorageInstanced sampling a decoded image in group 1.
	KindTexturedQuad
)

var kindNames = map[Kind]string{
	KindUniformPerInstance:   "uniform",
	KindBulkStorageInstanced: "bulk_storage",
	KindTexturedQuad:         "textured",
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a configuration name: "uniform", "bulk_storage" or "textured".
//
// Parameters:
//   - s: the name, case-insensitive
//
// Returns:
//   - Kind: the parsed kind
//   - error: ErrUnknownKind for any other name
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Source returns the WGSL program the kind draws with.
func (k Kind) Source() string {
	switch k {
	case KindUniformPerInstance:
		return uniformSource
	case KindBulkStorageInstanced:
		return bulkStorageSource
	case KindTexturedQuad:
		return texturedSource
	default:
		return ""
	}
}

// Strategy allocates the resources of a set of objects and supplies the uploads and draws of each
// frame. It is a renderer.FrameSource.
type Strategy interface {
	renderer.FrameSource

	// Kind returns which strategy this is.
	Kind() Kind

	// Init builds the pipeline, uploads the mesh and allocates the object resources. Base records
	// are uploaded here, once.
	//
	// Parameters:
	//   - r: the renderer the resources are created on
	//   - objects: the objects in draw order; the strategy keeps and updates them
	//   - mesh: the geometry every object is drawn with
	//   - image: the decoded image, required by KindTexturedQuad and ignored otherwise
	//
	// Returns:
	//   - error: a pipeline, resource or precondition error
	Init(r renderer.Renderer, objects []instance.Object, mesh geometry.Mesh, image *common.TextureStagingData) error

	// Objects returns the objects being drawn.
	Objects() []instance.Object

	// Release releases every provider the strategy created and stops its packer. The pipeline
	// belongs to the renderer.
	//
	// Returns:
	//   - error: the joined release errors
	Release() error
}

// New creates an uninitialized strategy.
//
// Parameters:
//   - kind: the strategy to create
//   - options: functional options
//
// Returns:
//   - Strategy: the strategy
//   - error: ErrUnknownKind for an unknown kind
func New(kind Kind, options ...StrategyBuilderOption) (Strategy, error) {
	b := &base{kind: kind}
	for _, opt := range options {
		opt(b)
	}
	if b.packer == nil {
		b.packer = instance.NewPacker()
	}

	switch kind {
	case KindUniformPerInstance:
		return &uniformPerInstance{base: b}, nil
	case KindBulkStorageInstanced:
		return &bulkStorageInstanced{base: b}, nil
	case KindTexturedQuad:
		return &texturedQuad{bulkStorageInstanced: bulkStorageInstanced{base: b}}, nil
	default:
		b.packer.Release()
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}

// base is the state shared by every strategy.
type base struct {
	kind    Kind
	packer  instance.Packer
	sampler common.SamplerStagingData

	r       renderer.Renderer
	objects []instance.Object
	mesh    bind_group_provider.BindGroupProvider
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) Objects() []instance.Object {
	return b.objects
}

// init builds the pipeline and uploads the mesh.
func (b *base) init(r renderer.Renderer, objects []instance.Object, mesh geometry.Mesh) error {
	if b.r != nil {
		return fmt.Errorf("%s strategy already initialized", b.kind)
	}
	if _, err := r.BuildPipeline(b.kind.String(), b.kind.Source()); err != nil {
		return err
	}
	meshProvider, err := r.UploadMesh(common.Coalesce(mesh.Label, "mesh"), mesh)
	if err != nil {
		return err
	}

	b.r = r
	b.objects = objects
	b.mesh = meshProvider
	return nil
}

// release releases the mesh provider and stops the packer.
func (b *base) release() error {
	var err error
	if b.mesh != nil {
		err = b.mesh.Release()
		b.mesh = nil
	}
	b.packer.Release()
	return err
}
