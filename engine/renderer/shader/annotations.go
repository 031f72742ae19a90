// annotations.go defines the annotation syntax understood by the phex WGSL pre-processor.
// Annotations are single-line WGSL comments prefixed with @phex: that inject the engine's
// canonical struct definitions and generate @group/@binding declarations for them, so the
// WGSL layout of a record can never drift from the Go type that packs it.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix marks a phex annotation inside a WGSL comment line.
const annotationPrefix = "@phex:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct.
	//
	// Syntax: //@phex:include <struct_type>
	//
	// Example: //@phex:include instance_base
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding variable declaration for a registered
	// struct type (optionally wrapped in array<>) and records it in the declarations list.
	//
	// Syntax: //@phex:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@phex:group 0 0 storage_read bases array<instance_base>
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation is a single parsed @phex: annotation.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include: [0] = struct type key
	//   - group:   [0] = address space, [1] = var name, [2] = struct type key, optionally array<key>
	Args []AnnotationArg

	// Line is the 1-based source line the annotation was found on.
	Line int

	// Group and Binding are set for group annotations only.
	Group   *int
	Binding *int
}

// AnnotationArg is a typed annotation argument.
type AnnotationArg string

// Struct type arguments. Each maps to a Go GPU type with an embedded .wgsl asset.
const (
	// AnnotationArgVertex identifies the VertexInput struct (engine/geometry/assets/vertex.wgsl).
	AnnotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgInstanceBase identifies the InstanceBase struct (engine/instance/assets/instance_base.wgsl).
	AnnotationArgInstanceBase AnnotationArg = "instance_base"

	// AnnotationArgInstanceScale identifies the InstanceScale struct (engine/instance/assets/instance_scale.wgsl).
	AnnotationArgInstanceScale AnnotationArg = "instance_scale"
)

// Address space arguments.
const (
	// annotationArgUniform maps to var<uniform>.
	annotationArgUniform AnnotationArg = "uniform"

	// annotationArgStorageRead maps to var<storage, read>.
	annotationArgStorageRead AnnotationArg = "storage_read"
)

var validStructTypes = []AnnotationArg{
	AnnotationArgVertex,
	AnnotationArgInstanceBase,
	AnnotationArgInstanceScale,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgUniform,
	annotationArgStorageRead,
}

// parseAnnotation parses one WGSL source line. Lines without the prefix return nil, nil.
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @phex annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @phex include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @phex include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @phex group annotation requires five arguments (group, binding, address space, var name, type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil || group < 0 {
			return nil, fmt.Errorf("line %d: invalid group number %q in @phex group annotation", lineNum, args[1])
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil || binding < 0 {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @phex group annotation", lineNum, args[2])
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @phex group annotation", lineNum, args[3])
		}
		elem := args[5]
		if inner, isArray := strings.CutPrefix(elem, "array<"); isArray {
			elem = strings.TrimSuffix(inner, ">")
			if AnnotationArg(args[3]) == annotationArgUniform {
				return nil, fmt.Errorf("line %d: runtime-sized array %q cannot live in a uniform buffer", lineNum, args[5])
			}
		}
		if !slices.Contains(validStructTypes, AnnotationArg(elem)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @phex group annotation", lineNum, elem)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @phex annotation type %q", lineNum, args[0])
	}
}
