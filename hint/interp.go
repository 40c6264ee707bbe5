// Package hint implements the small interpreter spec §9 asks for: prover
// hints may perform arbitrary pure computation over already-known cells,
// including recursion, using field arithmetic, integer arithmetic, pattern
// matching, and array/tuple construction and closure application.
//
// It is deliberately a tree-walking interpreter, not a JIT: "A JIT for the
// hint language is optional and out of scope" (spec §9). It is grounded in
// the same mechanism the teacher uses to let user code call out to
// arbitrary Go logic during witness generation -- gnark's
// constraint/solver.Hint / RegisterHint -- generalized here from "opaque Go
// callback" to "interpreted expression", since PIL hints are themselves
// user-written PIL closures, not precompiled Go functions.
package hint

import (
	"fmt"

	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
)

// QueryCallback answers the "please provide the input at index k"-style
// string queries a hint may issue (spec §6). Returning (nil, nil) means "no
// value available"; the hint then fails per spec §7 ("Query failure").
type QueryCallback func(query string) (*field.Element, error)

// CellReader resolves an already-known witness cell's current value. Hints
// read cells, never write them directly -- the witness generator is the
// only thing that applies a hint's returned value, and only provisionally
// (spec §4.3: "hints are non-authoritative").
type CellReader func(column string, rowOffset int) (field.Element, bool)

// Interpreter evaluates prover-hint closures against a specific witness-
// generation row window.
type Interpreter struct {
	Modulus *field.Modulus
	Cells   CellReader
	Query   QueryCallback
}

// Eval runs the hint closure with the given positional arguments (typically
// the row index, or nothing for a zero-argument hint) and returns the
// resulting Value, or an error if the hint's computation fails (including a
// failed Query).
func (in *Interpreter) Eval(closure ast.ClosureValue, args []ast.Value) (ast.Value, error) {
	if len(args) != len(closure.Lambda.Params) {
		return nil, fmt.Errorf("hint arity mismatch: expected %d arguments, got %d",
			len(closure.Lambda.Params), len(args))
	}
	env := make(map[string]ast.Value, len(args)+len(closure.Capture))
	for k, v := range closure.Capture {
		env[k] = v
	}
	for i, p := range closure.Lambda.Params {
		env[p] = args[i]
	}
	return in.eval(closure.Lambda.Body, &frame{vars: env})
}

type frame struct {
	parent *frame
	vars   map[string]ast.Value
}

func (f *frame) lookup(name string) (ast.Value, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (in *Interpreter) eval(expr ast.Expression, env *frame) (ast.Value, error) {
	switch e := expr.(type) {
	case ast.NumberLit:
		return ast.IntValue{Value: e.Value}, nil
	case ast.StringLit:
		return ast.StringValue{Value: e.Value}, nil
	case ast.Reference:
		if v, ok := env.lookup(e.Name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("hint: undefined variable %q", e.Name)
	case ast.Lambda:
		lam := e
		return ast.ClosureValue{Lambda: &lam, Capture: snapshot(env)}, nil
	case ast.ArrayLit:
		vals := make([]ast.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := in.eval(el, env)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return ast.ArrayValue{Elements: vals}, nil
	case ast.TupleLit:
		vals := make([]ast.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := in.eval(el, env)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return ast.TupleValue{Elements: vals}, nil
	case ast.IndexExpr:
		return in.evalIndex(e, env)
	case ast.IfExpr:
		cond, err := in.eval(e.Cond, env)
		if err != nil {
			return nil, err
		}
		bv, ok := cond.(ast.BoolValue)
		if !ok {
			return nil, fmt.Errorf("hint: if condition must be boolean")
		}
		if bv.Value {
			return in.eval(e.Then, env)
		}
		return in.eval(e.Else, env)
	case ast.MatchExpr:
		return in.evalMatch(e, env)
	case ast.BinOp:
		return in.evalBinOp(e, env)
	case ast.UnOp:
		return in.evalUnOp(e, env)
	case ast.FunctionCall:
		return in.evalCall(e, env)
	case ast.Builtin:
		return in.evalQueryBuiltin(e, env)
	default:
		return nil, fmt.Errorf("hint: unsupported expression node %T", expr)
	}
}

func snapshot(env *frame) map[string]ast.Value {
	out := map[string]ast.Value{}
	for cur := env; cur != nil; cur = cur.parent {
		for k, v := range cur.vars {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}

func (in *Interpreter) evalIndex(e ast.IndexExpr, env *frame) (ast.Value, error) {
	base, err := in.eval(e.Base, env)
	if err != nil {
		return nil, err
	}
	idxV, err := in.eval(e.Index, env)
	if err != nil {
		return nil, err
	}
	idx, ok := idxV.(ast.IntValue)
	if !ok {
		return nil, fmt.Errorf("hint: index must be an integer")
	}
	i := int(idx.Value.Int64())
	switch b := base.(type) {
	case ast.ArrayValue:
		if i < 0 || i >= len(b.Elements) {
			return nil, fmt.Errorf("hint: array index out of range")
		}
		return b.Elements[i], nil
	case ast.TupleValue:
		if i < 0 || i >= len(b.Elements) {
			return nil, fmt.Errorf("hint: tuple index out of range")
		}
		return b.Elements[i], nil
	default:
		return nil, fmt.Errorf("hint: cannot index %T", base)
	}
}

func (in *Interpreter) evalMatch(e ast.MatchExpr, env *frame) (ast.Value, error) {
	scrut, err := in.eval(e.Scrutinee, env)
	if err != nil {
		return nil, err
	}
	for _, arm := range e.Arms {
		binds, ok := matchPattern(arm.Pattern, scrut)
		if !ok {
			continue
		}
		return in.eval(arm.Body, &frame{parent: env, vars: binds})
	}
	return nil, fmt.Errorf("hint: non-exhaustive match")
}

func matchPattern(p ast.Pattern, v ast.Value) (map[string]ast.Value, bool) {
	switch pp := p.(type) {
	case ast.WildcardPattern:
		return map[string]ast.Value{}, true
	case ast.BindPattern:
		return map[string]ast.Value{pp.Name: v}, true
	case ast.LiteralPattern:
		iv, ok := v.(ast.IntValue)
		if !ok || iv.Value.Cmp(pp.Value) != 0 {
			return nil, false
		}
		return map[string]ast.Value{}, true
	case ast.TuplePattern:
		tv, ok := v.(ast.TupleValue)
		if !ok || len(tv.Elements) != len(pp.Elements) {
			return nil, false
		}
		binds := map[string]ast.Value{}
		for i, sub := range pp.Elements {
			subBinds, ok := matchPattern(sub, tv.Elements[i])
			if !ok {
				return nil, false
			}
			for k, v := range subBinds {
				binds[k] = v
			}
		}
		return binds, true
	default:
		return nil, false
	}
}

func (in *Interpreter) evalBinOp(e ast.BinOp, env *frame) (ast.Value, error) {
	l, err := in.eval(e.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := in.eval(e.Right, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpAnd, ast.OpOr:
		lb, ok1 := l.(ast.BoolValue)
		rb, ok2 := r.(ast.BoolValue)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("hint: boolean op on non-boolean")
		}
		if e.Op == ast.OpAnd {
			return ast.BoolValue{Value: lb.Value && rb.Value}, nil
		}
		return ast.BoolValue{Value: lb.Value || rb.Value}, nil
	case ast.OpEq:
		li, lok := l.(ast.IntValue)
		ri, rok := r.(ast.IntValue)
		if lok && rok {
			return ast.BoolValue{Value: li.Value.Cmp(ri.Value) == 0}, nil
		}
		lf, lok := l.(ast.FieldValue)
		rf, rok := r.(ast.FieldValue)
		if lok && rok {
			return ast.BoolValue{Value: lf.Elem.Equal(rf.Elem)}, nil
		}
		return nil, fmt.Errorf("hint: equality requires matching int or field operands")
	}

	lf, err := in.toField(l)
	if err != nil {
		return nil, err
	}
	rf, err := in.toField(r)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpAdd:
		return ast.FieldValue{Elem: lf.Add(rf)}, nil
	case ast.OpSub:
		return ast.FieldValue{Elem: lf.Sub(rf)}, nil
	case ast.OpMul:
		return ast.FieldValue{Elem: lf.Mul(rf)}, nil
	case ast.OpPow:
		return ast.FieldValue{Elem: lf.Pow(rf.Uint64())}, nil
	default:
		return nil, fmt.Errorf("hint: unsupported binary operator")
	}
}

func (in *Interpreter) toField(v ast.Value) (field.Element, error) {
	switch vv := v.(type) {
	case ast.FieldValue:
		return vv.Elem, nil
	case ast.IntValue:
		return in.Modulus.FromBigInt(vv.Value), nil
	default:
		return field.Element{}, fmt.Errorf("hint: expected numeric value, got %T", v)
	}
}

func (in *Interpreter) evalUnOp(e ast.UnOp, env *frame) (ast.Value, error) {
	v, err := in.eval(e.Inner, env)
	if err != nil {
		return nil, err
	}
	if e.Op == ast.OpNot {
		bv, ok := v.(ast.BoolValue)
		if !ok {
			return nil, fmt.Errorf("hint: 'not' on non-boolean")
		}
		return ast.BoolValue{Value: !bv.Value}, nil
	}
	fv, err := in.toField(v)
	if err != nil {
		return nil, err
	}
	return ast.FieldValue{Elem: fv.Neg()}, nil
}

func (in *Interpreter) evalCall(e ast.FunctionCall, env *frame) (ast.Value, error) {
	callee, err := in.eval(e.Callee, env)
	if err != nil {
		return nil, err
	}
	closure, ok := callee.(ast.ClosureValue)
	if !ok {
		return nil, fmt.Errorf("hint: cannot call non-function value %T", callee)
	}
	args := make([]ast.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := in.eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if len(args) != len(closure.Lambda.Params) {
		return nil, fmt.Errorf("hint: arity mismatch calling closure")
	}
	binds := make(map[string]ast.Value, len(args))
	for i, p := range closure.Lambda.Params {
		binds[p] = args[i]
	}
	return in.eval(closure.Lambda.Body, &frame{parent: &frame{vars: closure.Capture}, vars: binds})
}

// evalQueryBuiltin handles the cell-read and query-callback builtins a hint
// body may invoke. These are encoded as ast.Builtin nodes whose Kind is not
// inspected here; package
// hint interprets two extra pseudo-builtins identified by the string
// literal in Args[0] for simplicity, since ast.BuiltinKind is owned by the
// condenser's builtin set and hints need a couple more.
func (in *Interpreter) evalQueryBuiltin(e ast.Builtin, env *frame) (ast.Value, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("hint: builtin requires at least one argument")
	}
	nameV, err := in.eval(e.Args[0], env)
	if err != nil {
		return nil, err
	}
	name, ok := nameV.(ast.StringValue)
	if !ok {
		return nil, fmt.Errorf("hint: builtin selector must be a string literal")
	}

	switch name.Value {
	case "cell":
		if len(e.Args) != 3 {
			return nil, fmt.Errorf("hint: cell(column, rowOffset) expects 2 arguments")
		}
		colV, err := in.eval(e.Args[1], env)
		if err != nil {
			return nil, err
		}
		col, ok := colV.(ast.StringValue)
		if !ok {
			return nil, fmt.Errorf("hint: cell column must be a string")
		}
		offV, err := in.eval(e.Args[2], env)
		if err != nil {
			return nil, err
		}
		off, ok := offV.(ast.IntValue)
		if !ok {
			return nil, fmt.Errorf("hint: cell row offset must be an integer")
		}
		v, known := in.Cells(col.Value, int(off.Value.Int64()))
		if !known {
			return nil, fmt.Errorf("hint: cell %s[%d] is not yet known", col.Value, off.Value.Int64())
		}
		return ast.FieldValue{Elem: v}, nil

	case "query":
		if len(e.Args) != 2 {
			return nil, fmt.Errorf("hint: query(str) expects 1 argument")
		}
		qV, err := in.eval(e.Args[1], env)
		if err != nil {
			return nil, err
		}
		q, ok := qV.(ast.StringValue)
		if !ok {
			return nil, fmt.Errorf("hint: query argument must be a string")
		}
		if in.Query == nil {
			return nil, fmt.Errorf("hint: query %q issued but no query callback is configured", q.Value)
		}
		v, err := in.Query(q.Value)
		if err != nil {
			return nil, fmt.Errorf("hint: query %q failed: %w", q.Value, err)
		}
		if v == nil {
			return nil, fmt.Errorf("hint: query %q returned no value", q.Value)
		}
		return ast.FieldValue{Elem: *v}, nil

	default:
		return nil, fmt.Errorf("hint: unknown builtin %q", name.Value)
	}
}
