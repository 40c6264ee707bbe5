package condenser

import (
	"fmt"
	"math/big"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
)

// Env is a lexical evaluation environment: a chain of name -> Value frames.
// Lambdas close over their defining Env's bindings, which is how
// ClosureValue.Capture gets populated.
type Env struct {
	parent *Env
	vars   map[string]ast.Value
}

func (e *Env) lookup(name string) (ast.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func childEnv(parent *Env, binds map[string]ast.Value) *Env {
	return &Env{parent: parent, vars: binds}
}

// Eval evaluates expr under env, resolving free identifiers first against
// env and then against the Condenser's top-level Program.Definitions
// (memoized per spec §4.1's caching rule).
func (c *Condenser) Eval(expr ast.Expression, env *Env) (ast.Value, error) {
	switch e := expr.(type) {
	case ast.NumberLit:
		return ast.IntValue{Value: e.Value}, nil

	case ast.StringLit:
		return ast.StringValue{Value: e.Value}, nil

	case ast.Reference:
		if env != nil {
			if v, ok := env.lookup(e.Name); ok {
				return v, nil
			}
		}
		return c.evalSymbol(e.Name, "")

	case ast.Next:
		inner, err := c.Eval(e.Inner, env)
		if err != nil {
			return nil, err
		}
		av, ok := inner.(ast.AlgebraicValue)
		if !ok {
			return nil, fmt.Errorf("'next' applied to non-algebraic value %T", inner)
		}
		ref, ok := av.Expr.(ast.AlgColumnRef)
		if !ok {
			return nil, fmt.Errorf("'next' applies only to column references")
		}
		ref.Next = true
		return ast.AlgebraicValue{Expr: ref}, nil

	case ast.BinOp:
		return c.evalBinOp(e, env)

	case ast.UnOp:
		return c.evalUnOp(e, env)

	case ast.Lambda:
		capture := captureEnv(&e, env)
		lam := e
		return ast.ClosureValue{Lambda: &lam, Capture: capture}, nil

	case ast.ArrayLit:
		vals := make([]ast.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := c.Eval(el, env)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return ast.ArrayValue{Elements: vals}, nil

	case ast.TupleLit:
		vals := make([]ast.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := c.Eval(el, env)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return ast.TupleValue{Elements: vals}, nil

	case ast.IndexExpr:
		return c.evalIndex(e, env)

	case ast.IfExpr:
		cond, err := c.Eval(e.Cond, env)
		if err != nil {
			return nil, err
		}
		bv, ok := cond.(ast.BoolValue)
		if !ok {
			return nil, fmt.Errorf("if condition must be boolean, got %T", cond)
		}
		if bv.Value {
			return c.Eval(e.Then, env)
		}
		return c.Eval(e.Else, env)

	case ast.MatchExpr:
		return c.evalMatch(e, env)

	case ast.FunctionCall:
		return c.evalCall(e, env)

	case ast.TraitMethodRef:
		return c.resolveTraitMethod(e)

	case ast.ConstrCall:
		return c.evalConstrCall(e, env)

	case ast.Builtin:
		return c.evalBuiltin(e, env)

	default:
		return nil, fmt.Errorf("condenser: unhandled expression node %T", expr)
	}
}

// evalSymbol resolves a top-level name, applying the referential-
// transparency cache described in spec §4.1: the same (symbol, type-args)
// pair always yields the identical Value, and a cache hit mid-resolution
// (inProgress == true) is a cyclic-definition error.
func (c *Condenser) evalSymbol(name, typeArgs string) (ast.Value, error) {
	key := cacheKey{symbol: name, typeArgs: typeArgs}
	if entry, ok := c.cache[key]; ok {
		if entry.inProgress {
			return nil, fmt.Errorf("cyclic definition involving %q", name)
		}
		return entry.value, nil
	}

	def, ok := c.program.Definitions[name]
	if !ok {
		// Might be a column already declared earlier in source order.
		if col, ok := c.analyzed.Column(name); ok {
			return algebraicRefValue(col), nil
		}
		return nil, fmt.Errorf("undefined symbol %q", name)
	}

	c.cache[key] = cacheEntry{inProgress: true}

	if def.Kind != ast.KindValue {
		// Column symbols referenced before their declaration statement runs
		// in source order is a condenser bug in the caller, not a user
		// error; declareColumn always runs first for such names, but guard
		// anyway.
		col, ok := c.analyzed.Column(name)
		if !ok {
			delete(c.cache, key)
			return nil, fmt.Errorf("column %q referenced before its declaration", name)
		}
		v := algebraicRefValue(col)
		c.cache[key] = cacheEntry{value: v}
		return v, nil
	}

	v, err := c.Eval(def.Value, nil)
	if err != nil {
		delete(c.cache, key)
		return nil, err
	}
	c.cache[key] = cacheEntry{value: v}
	return v, nil
}

func algebraicRefValue(col *analyzed.Column) ast.Value {
	return ast.AlgebraicValue{Expr: ast.AlgColumnRef{PolyID: col.ID}}
}

func (c *Condenser) evalBinOp(e ast.BinOp, env *Env) (ast.Value, error) {
	l, err := c.Eval(e.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := c.Eval(e.Right, env)
	if err != nil {
		return nil, err
	}

	if e.Op == ast.OpAnd || e.Op == ast.OpOr {
		lb, ok1 := l.(ast.BoolValue)
		rb, ok2 := r.(ast.BoolValue)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("boolean operator applied to non-boolean operands")
		}
		if e.Op == ast.OpAnd {
			return ast.BoolValue{Value: lb.Value && rb.Value}, nil
		}
		return ast.BoolValue{Value: lb.Value || rb.Value}, nil
	}

	if e.Op == ast.OpEq {
		return evalEquals(l, r)
	}

	lAlg, err := c.toAlgebraic(l)
	if err != nil {
		return nil, err
	}
	rAlg, err := c.toAlgebraic(r)
	if err != nil {
		return nil, err
	}

	var opKind ast.AlgOpKind
	switch e.Op {
	case ast.OpAdd:
		opKind = ast.AlgAdd
	case ast.OpSub:
		opKind = ast.AlgSub
	case ast.OpMul:
		opKind = ast.AlgMul
	case ast.OpPow:
		opKind = ast.AlgPow
		if _, isNum := rAlg.(ast.AlgNumber); !isNum {
			return nil, fmt.Errorf("exponent must be a constant")
		}
	}
	return ast.AlgebraicValue{Expr: ast.AlgBinOp{Op: opKind, Left: lAlg, Right: rAlg}}, nil
}

func evalEquals(l, r ast.Value) (ast.Value, error) {
	li, lok := l.(ast.IntValue)
	ri, rok := r.(ast.IntValue)
	if lok && rok {
		return ast.BoolValue{Value: li.Value.Cmp(ri.Value) == 0}, nil
	}
	return nil, fmt.Errorf("equality is only defined over integers in this evaluator")
}

func (c *Condenser) evalUnOp(e ast.UnOp, env *Env) (ast.Value, error) {
	v, err := c.Eval(e.Inner, env)
	if err != nil {
		return nil, err
	}
	if e.Op == ast.OpNot {
		bv, ok := v.(ast.BoolValue)
		if !ok {
			return nil, fmt.Errorf("'not' applied to non-boolean")
		}
		return ast.BoolValue{Value: !bv.Value}, nil
	}
	alg, err := c.toAlgebraic(v)
	if err != nil {
		return nil, err
	}
	return ast.AlgebraicValue{Expr: ast.AlgNeg{Inner: alg}}, nil
}

// toAlgebraic coerces a Value into an AlgebraicExpr, lifting integer and
// field literals into AlgNumber. This is where arbitrary-precision surface
// integers finally get reduced modulo the field (spec §3).
func (c *Condenser) toAlgebraic(v ast.Value) (ast.AlgebraicExpr, error) {
	switch vv := v.(type) {
	case ast.AlgebraicValue:
		return vv.Expr, nil
	case ast.IntValue:
		return ast.AlgNumber{Value: c.modulus.FromBigInt(vv.Value)}, nil
	case ast.FieldValue:
		return ast.AlgNumber{Value: vv.Elem}, nil
	default:
		return nil, fmt.Errorf("expected algebraic expression, got %T", v)
	}
}

func (c *Condenser) evalIndex(e ast.IndexExpr, env *Env) (ast.Value, error) {
	base, err := c.Eval(e.Base, env)
	if err != nil {
		return nil, err
	}
	idxV, err := c.Eval(e.Index, env)
	if err != nil {
		return nil, err
	}
	idxInt, ok := idxV.(ast.IntValue)
	if !ok {
		return nil, fmt.Errorf("index must be an integer")
	}
	idx := int(idxInt.Value.Int64())

	switch b := base.(type) {
	case ast.ArrayValue:
		if idx < 0 || idx >= len(b.Elements) {
			return nil, fmt.Errorf("array index %d out of bounds (len %d)", idx, len(b.Elements))
		}
		return b.Elements[idx], nil
	case ast.TupleValue:
		if idx < 0 || idx >= len(b.Elements) {
			return nil, fmt.Errorf("tuple index %d out of bounds (len %d)", idx, len(b.Elements))
		}
		return b.Elements[idx], nil
	default:
		return nil, fmt.Errorf("cannot index into %T", base)
	}
}

func (c *Condenser) evalMatch(e ast.MatchExpr, env *Env) (ast.Value, error) {
	scrut, err := c.Eval(e.Scrutinee, env)
	if err != nil {
		return nil, err
	}
	for _, arm := range e.Arms {
		binds, ok := matchPattern(arm.Pattern, scrut)
		if !ok {
			continue
		}
		return c.Eval(arm.Body, childEnv(env, binds))
	}
	return nil, fmt.Errorf("non-exhaustive match")
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

func (c *Condenser) evalCall(e ast.FunctionCall, env *Env) (ast.Value, error) {
	callee, err := c.Eval(e.Callee, env)
	if err != nil {
		return nil, err
	}
	args := make([]ast.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := c.Eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	closure, ok := callee.(ast.ClosureValue)
	if !ok {
		return nil, fmt.Errorf("cannot call non-function value %T", callee)
	}
	return c.applyClosure(closure, args)
}

func (c *Condenser) applyClosure(closure ast.ClosureValue, args []ast.Value) (ast.Value, error) {
	if len(args) != len(closure.Lambda.Params) {
		return nil, fmt.Errorf("arity mismatch: expected %d arguments, got %d",
			len(closure.Lambda.Params), len(args))
	}
	binds := make(map[string]ast.Value, len(args)+len(closure.Capture))
	for k, v := range closure.Capture {
		binds[k] = v
	}
	for i, p := range closure.Lambda.Params {
		binds[p] = args[i]
	}
	return c.Eval(closure.Lambda.Body, childEnv(nil, binds))
}

// captureEnv walks lam.Body collecting every free variable's current value
// from env, producing the capture vector a ClosureValue carries forward
// (spec §9: "closures carry a captured-environment vector").
func captureEnv(lam *ast.Lambda, env *Env) map[string]ast.Value {
	if env == nil {
		return nil
	}
	params := make(map[string]bool, len(lam.Params))
	for _, p := range lam.Params {
		params[p] = true
	}
	free := map[string]bool{}
	collectFreeVars(lam.Body, params, free)

	capture := make(map[string]ast.Value, len(free))
	for name := range free {
		if v, ok := env.lookup(name); ok {
			capture[name] = v
		}
	}
	return capture
}

func collectFreeVars(expr ast.Expression, bound map[string]bool, out map[string]bool) {
	switch e := expr.(type) {
	case ast.Reference:
		if !bound[e.Name] {
			out[e.Name] = true
		}
	case ast.Next:
		collectFreeVars(e.Inner, bound, out)
	case ast.BinOp:
		collectFreeVars(e.Left, bound, out)
		collectFreeVars(e.Right, bound, out)
	case ast.UnOp:
		collectFreeVars(e.Inner, bound, out)
	case ast.FunctionCall:
		collectFreeVars(e.Callee, bound, out)
		for _, a := range e.Args {
			collectFreeVars(a, bound, out)
		}
	case ast.Lambda:
		inner := make(map[string]bool, len(bound)+len(e.Params))
		for k := range bound {
			inner[k] = true
		}
		for _, p := range e.Params {
			inner[p] = true
		}
		collectFreeVars(e.Body, inner, out)
	case ast.ArrayLit:
		for _, el := range e.Elements {
			collectFreeVars(el, bound, out)
		}
	case ast.TupleLit:
		for _, el := range e.Elements {
			collectFreeVars(el, bound, out)
		}
	case ast.IndexExpr:
		collectFreeVars(e.Base, bound, out)
		collectFreeVars(e.Index, bound, out)
	case ast.IfExpr:
		collectFreeVars(e.Cond, bound, out)
		collectFreeVars(e.Then, bound, out)
		collectFreeVars(e.Else, bound, out)
	case ast.MatchExpr:
		collectFreeVars(e.Scrutinee, bound, out)
		for _, arm := range e.Arms {
			collectFreeVars(arm.Body, bound, out)
		}
	case ast.ConstrCall:
		for _, a := range e.Args {
			collectFreeVars(a, bound, out)
		}
	case ast.Builtin:
		for _, a := range e.Args {
			collectFreeVars(a, bound, out)
		}
	}
}

func bigIntFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
