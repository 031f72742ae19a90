package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/phex-go/engine/geometry"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
)

// registryEntry pairs an embedded WGSL struct source with the type name it declares.
type registryEntry struct {
	Source string
	Type   string
}

type preProcessor struct {
	structRegistry       map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string
	declarations         []Annotation
}

// PreProcessor expands @phex: annotations in WGSL source.
type PreProcessor interface {
	// Process replaces include annotations with the registered struct source and group annotations
	// with generated @group/@binding declarations. Each struct is injected at most once per call.
	//
	// Parameters:
	//   - source: the annotated WGSL source
	//
	// Returns:
	//   - string: plain WGSL
	//   - error: an error if any annotation is malformed
	Process(source string) (string, error)

	// Declarations returns the group annotations collected by the most recent Process call, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that knows the engine's vertex and instance record structs.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgVertex:        {Source: geometry.GPUVertexSource, Type: "VertexInput"},
			AnnotationArgInstanceBase:  {Source: instance.GPUInstanceBaseSource, Type: "InstanceBase"},
			AnnotationArgInstanceScale: {Source: instance.GPUInstanceScaleSource, Type: "InstanceScale"},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgUniform:     "var<uniform>",
			annotationArgStorageRead: "var<storage, read>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if included[a.Args[0]] {
				continue
			}
			included[a.Args[0]] = true
			out = append(out, strings.TrimRight(p.structRegistry[a.Args[0]].Source, "\n"))
		case AnnotationTypeBindingGroup:
			wgslType := p.resolveType(string(a.Args[2]))
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// resolveType maps a struct key, or array<key>, to its WGSL type name.
func (p *preProcessor) resolveType(arg string) string {
	if inner, ok := strings.CutPrefix(arg, "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		return fmt.Sprintf("array<%s>", p.structRegistry[AnnotationArg(inner)].Type)
	}
	return p.structRegistry[AnnotationArg(arg)].Type
}
