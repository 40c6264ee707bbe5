package pil

import (
	"github.com/ace-zkvm/ace/ast"
)

// CompileResult bundles the parsed program with any non-fatal diagnostics
// a caller may want to surface (e.g. unused-definition warnings), kept
// separate from the fatal parse/type errors that abort compilation.
type CompileResult struct {
	Program  *ast.Program
	Warnings []string
}

// Compile runs stages A (parse) and B (minimal type check) over src,
// producing a Program ready for condenser.Condense. This mirrors the
// phase pipeline go-corset's Compiler.Compile runs (resolve, type-check,
// preprocess, translate) at a scale appropriate to this spec's Non-goal
// of not rebuilding a full PIL front end: two phases instead of four,
// errors accumulated across the whole file rather than aborting on the
// first one.
func Compile(src string) (*CompileResult, []error) {
	program, errs := ParseSource(src)
	if len(errs) > 0 {
		return nil, errs
	}

	checker := newTypeChecker(program)
	if errs := checker.run(); len(errs) > 0 {
		return nil, errs
	}

	return &CompileResult{Program: program, Warnings: checker.warnings}, nil
}
