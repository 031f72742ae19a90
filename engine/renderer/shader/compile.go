package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Required entry point names.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// ErrMissingEntryPoint is wrapped by a CompilationError when vs_main or fs_main is absent.
var ErrMissingEntryPoint = errors.New("missing entry point")

// CompilationError reports a shader that failed to pre-process, parse, lower or validate.
type CompilationError struct {
	// Key is the shader key.
	Key string
	// Stage names the failing step: "preprocess", "parse", "lower", "validate" or "entry".
	Stage string
	// Diagnostic is the compiler's message.
	Diagnostic string

	err error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("shader %q: %s failed: %s", e.Key, e.Stage, e.Diagnostic)
}

func (e *CompilationError) Unwrap() error {
	return e.err
}

func newCompilationError(key, stage string, err error) *CompilationError {
	return &CompilationError{Key: key, Stage: stage, Diagnostic: err.Error(), err: err}
}

// compile runs the WGSL front end over source and checks that both render entry points exist with
// the right stage. The SPIR-V output is not needed; the device compiles WGSL itself.
func compile(key, source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return newCompilationError(key, "parse", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return newCompilationError(key, "lower", err)
	}
	validationErrors, err := naga.Validate(module)
	if err != nil {
		return newCompilationError(key, "validate", err)
	}
	if len(validationErrors) > 0 {
		msgs := make([]string, len(validationErrors))
		for i, ve := range validationErrors {
			msgs[i] = ve.Error()
		}
		return &CompilationError{Key: key, Stage: "validate", Diagnostic: strings.Join(msgs, "; "), err: validationErrors[0]}
	}

	for _, want := range []struct {
		name  string
		stage ir.ShaderStage
	}{
		{VertexEntryPoint, ir.StageVertex},
		{FragmentEntryPoint, ir.StageFragment},
	} {
		if !hasEntryPoint(module.EntryPoints, want.name, want.stage) {
			return &CompilationError{
				Key:        key,
				Stage:      "entry",
				Diagnostic: fmt.Sprintf("no %s entry point named %s", stageName(want.stage), want.name),
				err:        ErrMissingEntryPoint,
			}
		}
	}
	return nil
}

func hasEntryPoint(eps []ir.EntryPoint, name string, stage ir.ShaderStage) bool {
	for _, ep := range eps {
		if ep.Name == name && ep.Stage == stage {
			return true
		}
	}
	return false
}

func stageName(s ir.ShaderStage) string {
	if s == ir.StageVertex {
		return "@vertex"
	}
	return "@fragment"
}
