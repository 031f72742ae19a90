// Package shader turns annotated WGSL source into a validated program plus the layout metadata the
// pipeline and resource manager need: bind group layouts, binding slots and vertex buffer layouts.
package shader

import (
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
)

type shader struct {
	key           string
	source        string
	bindGroups    parsedBindGroups
	vertexLayouts []wgpu.VertexBufferLayout
	module        *wgpu.ShaderModuleDescriptor
	declarations  []Annotation
}

// Shader is a compiled WGSL program holding both the vs_main and fs_main stages.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source.
	//
	// Returns:
	//   - string: plain WGSL with all annotations expanded
	Source() string

	// EntryPoint returns the entry point name for a stage.
	//
	// Parameters:
	//   - stage: wgpu.ShaderStageVertex or wgpu.ShaderStageFragment
	//
	// Returns:
	//   - string: vs_main, fs_main, or empty for any other stage
	EntryPoint(stage wgpu.ShaderStage) string

	// Groups returns the declared bind group indices in ascending order.
	Groups() []int

	// BindGroupLayoutDescriptor retrieves the layout descriptor of one group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor, or an empty one if the group is not declared
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors retrieves all layout descriptors keyed by group index.
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// Slots returns the slots of one group sorted by binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - []BindingSlot: the declared slots, nil if the group is not declared
	Slots(group int) []BindingSlot

	// BindingFromVarName finds the binding index of a variable within a group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the WGSL variable name
	//
	// Returns:
	//   - uint32: the binding index
	//   - bool: false if the variable is not declared in the group
	BindingFromVarName(group int, varName string) (uint32, bool)

	// VertexLayouts retrieves the vertex buffer layouts, one per vertex buffer slot.
	VertexLayouts() []wgpu.VertexBufferLayout

	// Module returns the module descriptor passed to the device.
	Module() *wgpu.ShaderModuleDescriptor

	// Declarations returns the group annotations found while pre-processing.
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes, compiles and parses WGSL source. Compilation runs the naga front end so
// errors surface here with the compiler's diagnostic rather than later on the device.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - source: annotated WGSL declaring @vertex fn vs_main and @fragment fn fs_main
//
// Returns:
//   - Shader: the compiled shader
//   - error: a *CompilationError describing the failing step
func NewShader(key string, source string) (Shader, error) {
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, newCompilationError(key, "preprocess", err)
	}
	if err := compile(key, processed); err != nil {
		return nil, err
	}

	return &shader{
		key:           key,
		source:        processed,
		bindGroups:    parseBindGroups(processed, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment),
		vertexLayouts: parseVertexLayouts(processed),
		module: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: processed,
			},
		},
		declarations: slices.Clone(pp.Declarations()),
	}, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint(stage wgpu.ShaderStage) string {
	switch stage {
	case wgpu.ShaderStageVertex:
		return VertexEntryPoint
	case wgpu.ShaderStageFragment:
		return FragmentEntryPoint
	default:
		return ""
	}
}

func (s *shader) Groups() []int {
	groups := make([]int, 0, len(s.bindGroups.layouts))
	for g := range s.bindGroups.layouts {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.bindGroups.layouts[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroups.layouts
}

func (s *shader) Slots(group int) []BindingSlot {
	return s.bindGroups.slots[group]
}

func (s *shader) BindingFromVarName(group int, varName string) (uint32, bool) {
	for _, slot := range s.bindGroups.slots[group] {
		if slot.Name == varName {
			return slot.Binding, true
		}
	}
	return 0, false
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
