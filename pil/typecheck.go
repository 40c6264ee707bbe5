package pil

import (
	"fmt"

	"github.com/ace-zkvm/ace/ast"
)

// typeChecker implements the thin slice of spec §2's stage B this repo
// needs: a check of public declarations and a free-variable walk that
// warns (rather than errors) on unresolved references, since many valid
// references resolve against intrinsics the condenser recognizes by name
// (package condenser's evalSymbol) rather than against anything visible
// to a single-file syntactic check. A full Hindley-Milner-style inference
// over the `expr`/`int`/`fe`/`Constr[]` type language spec.md's GLOSSARY
// mentions is out of scope (spec §1 Non-goals), since the condenser's
// evaluator already rejects ill-typed programs dynamically when it tries
// to convert a Value to an unexpected shape.
type typeChecker struct {
	prog     *ast.Program
	warnings []string
	errs     []error
}

func newTypeChecker(prog *ast.Program) *typeChecker {
	return &typeChecker{prog: prog}
}

func (tc *typeChecker) run() []error {
	tc.checkPublics()
	for name, def := range tc.prog.Definitions {
		if def.Value == nil {
			continue
		}
		bound := map[string]bool{}
		free := map[string]bool{}
		collectReferences(def.Value, bound, free)
		for ref := range free {
			if _, ok := tc.prog.Definitions[ref]; !ok {
				tc.warnings = append(tc.warnings, fmt.Sprintf("definition %q references unresolved name %q", name, ref))
			}
		}
	}
	for _, id := range tc.prog.Identities {
		bound := map[string]bool{}
		free := map[string]bool{}
		collectReferences(id.Expr, bound, free)
		for ref := range free {
			if _, ok := tc.prog.Definitions[ref]; !ok {
				tc.warnings = append(tc.warnings, fmt.Sprintf("identity at line %d references unresolved name %q", id.Line, ref))
			}
		}
	}
	return tc.errs
}

func (tc *typeChecker) checkPublics() {
	for _, pub := range tc.prog.Publics {
		if _, ok := tc.prog.Definitions[pub.Column]; !ok {
			tc.errs = append(tc.errs, fmt.Errorf("pil: public %q references undeclared column %q", pub.Name, pub.Column))
		}
	}
}

// collectReferences walks expr, adding every Reference name not locally
// bound (by a Lambda parameter or MatchArm binding) to free.
func collectReferences(expr ast.Expression, bound map[string]bool, free map[string]bool) {
	switch e := expr.(type) {
	case ast.Reference:
		if !bound[e.Name] {
			free[e.Name] = true
		}
	case ast.Next:
		collectReferences(e.Inner, bound, free)
	case ast.BinOp:
		collectReferences(e.Left, bound, free)
		collectReferences(e.Right, bound, free)
	case ast.UnOp:
		collectReferences(e.Inner, bound, free)
	case ast.FunctionCall:
		collectReferences(e.Callee, bound, free)
		for _, a := range e.Args {
			collectReferences(a, bound, free)
		}
	case ast.Lambda:
		inner := map[string]bool{}
		for k := range bound {
			inner[k] = true
		}
		for _, param := range e.Params {
			inner[param] = true
		}
		collectReferences(e.Body, inner, free)
	case ast.ArrayLit:
		for _, el := range e.Elements {
			collectReferences(el, bound, free)
		}
	case ast.TupleLit:
		for _, el := range e.Elements {
			collectReferences(el, bound, free)
		}
	case ast.IndexExpr:
		collectReferences(e.Base, bound, free)
		collectReferences(e.Index, bound, free)
	case ast.MatchExpr:
		collectReferences(e.Scrutinee, bound, free)
		for _, arm := range e.Arms {
			inner := map[string]bool{}
			for k := range bound {
				inner[k] = true
			}
			bindPatternNames(arm.Pattern, inner)
			collectReferences(arm.Body, inner, free)
		}
	case ast.IfExpr:
		collectReferences(e.Cond, bound, free)
		collectReferences(e.Then, bound, free)
		collectReferences(e.Else, bound, free)
	case ast.ConstrCall:
		for _, a := range e.Args {
			collectReferences(a, bound, free)
		}
	case ast.Builtin:
		for _, a := range e.Args {
			collectReferences(a, bound, free)
		}
	case ast.NumberLit, ast.StringLit, ast.TraitMethodRef:
		// leaves
	}
}

func bindPatternNames(p ast.Pattern, bound map[string]bool) {
	switch pat := p.(type) {
	case ast.BindPattern:
		bound[pat.Name] = true
	case ast.TuplePattern:
		for _, el := range pat.Elements {
			bindPatternNames(el, bound)
		}
	}
}
