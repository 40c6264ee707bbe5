package condenser

import (
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
)

// evalConstrCall implements the side-effecting half of spec §4.1: each time
// evaluation constructs a Constr::Identity/Lookup/Permutation/Connection
// value, translate it into an analyzed.Identity and append it, rather than
// returning it to the caller.
func (c *Condenser) evalConstrCall(e ast.ConstrCall, env *Env) (ast.Value, error) {
	switch e.Kind {
	case ast.ConstrIdentity:
		return c.appendPolynomialIdentity(e, env)
	case ast.ConstrLookup:
		return c.appendBusPair(e, env, true)
	case ast.ConstrPermutation:
		return c.appendBusPair(e, env, false)
	case ast.ConstrConnection:
		return c.appendConnection(e, env)
	default:
		return nil, fmt.Errorf("unsupported Constr kind %d", e.Kind)
	}
}

func (c *Condenser) appendPolynomialIdentity(e ast.ConstrCall, env *Env) (ast.Value, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("Constr::Identity expects 2 arguments, got %d", len(e.Args))
	}
	left, err := c.evalAlgebraic(e.Args[0], env)
	if err != nil {
		return nil, err
	}
	right, err := c.evalAlgebraic(e.Args[1], env)
	if err != nil {
		return nil, err
	}

	id := &analyzed.Identity{
		ID:         c.analyzed.AllocIdentityID(),
		Kind:       analyzed.KindPolynomial,
		Expr:       ast.AlgBinOp{Op: ast.AlgSub, Left: left, Right: right},
		SourceLine: c.currentLine,
	}
	c.analyzed.Identities = append(c.analyzed.Identities, id)
	return ast.ConstrValue{}, nil
}

// appendBusPair desugars a lookup (isLookup == true) or permutation
// (isLookup == false) into a bus send/receive pair, per spec §3: "a lookup
// is a send whose receive has unconstrained multiplicity; a permutation's
// send and receive both have selector-driven multiplicity."
func (c *Condenser) appendBusPair(e ast.ConstrCall, env *Env, isLookup bool) (ast.Value, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("lookup/permutation expects 2 arguments (left, right), got %d", len(e.Args))
	}
	left, err := c.evalSelectedExpressions(e.Args[0], env)
	if err != nil {
		return nil, err
	}
	right, err := c.evalSelectedExpressions(e.Args[1], env)
	if err != nil {
		return nil, err
	}
	if len(left.Values) != len(right.Values) {
		return nil, fmt.Errorf("lookup/permutation tuple length mismatch: left has %d, right has %d",
			len(left.Values), len(right.Values))
	}

	interactionID := c.analyzed.AllocIdentityID()

	var mult ast.AlgebraicExpr
	if !isLookup {
		mult = left.Selector
	}

	sendID := &analyzed.Identity{
		ID:            c.analyzed.AllocIdentityID(),
		Kind:          analyzed.KindBusSend,
		InteractionID: interactionID,
		Tuple:         left,
		Multiplicity:  mult,
		SourceLine:    c.currentLine,
	}
	var recvMult ast.AlgebraicExpr
	if !isLookup {
		recvMult = right.Selector
	}
	// isLookup leaves recvMult nil: unconstrained multiplicity, balanced
	// against the send side by the witness generator rather than a fixed
	// per-row expression (spec §3).
	recvID := &analyzed.Identity{
		ID:            c.analyzed.AllocIdentityID(),
		Kind:          analyzed.KindBusReceive,
		InteractionID: interactionID,
		Tuple:         right,
		Multiplicity:  recvMult,
		SourceLine:    c.currentLine,
	}

	c.analyzed.Identities = append(c.analyzed.Identities, sendID, recvID)
	c.analyzed.BusConnections[interactionID] = &analyzed.BusConnection{
		ID:       interactionID,
		Left:     left,
		Right:    right,
		IsLookup: isLookup,
	}
	return ast.ConstrValue{}, nil
}

func (c *Condenser) appendConnection(e ast.ConstrCall, env *Env) (ast.Value, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("Constr::Connection expects 2 arguments, got %d", len(e.Args))
	}
	left, err := c.evalAlgebraicList(e.Args[0], env)
	if err != nil {
		return nil, err
	}
	right, err := c.evalAlgebraicList(e.Args[1], env)
	if err != nil {
		return nil, err
	}
	if len(left) != len(right) {
		return nil, fmt.Errorf("connection column-set length mismatch: %d vs %d", len(left), len(right))
	}

	id := &analyzed.Identity{
		ID:         c.analyzed.AllocIdentityID(),
		Kind:       analyzed.KindConnect,
		LeftCols:   left,
		RightCols:  right,
		SourceLine: c.currentLine,
	}
	c.analyzed.Identities = append(c.analyzed.Identities, id)
	return ast.ConstrValue{}, nil
}

func (c *Condenser) evalAlgebraic(expr ast.Expression, env *Env) (ast.AlgebraicExpr, error) {
	v, err := c.Eval(expr, env)
	if err != nil {
		return nil, err
	}
	return c.toAlgebraic(v)
}

func (c *Condenser) evalAlgebraicList(expr ast.Expression, env *Env) ([]ast.AlgebraicExpr, error) {
	v, err := c.Eval(expr, env)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(ast.ArrayValue)
	if !ok {
		return nil, fmt.Errorf("expected an array of algebraic expressions, got %T", v)
	}
	out := make([]ast.AlgebraicExpr, len(arr.Elements))
	for i, el := range arr.Elements {
		alg, err := c.toAlgebraic(el)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = alg
	}
	return out, nil
}

// evalSelectedExpressions evaluates the surface-language form
// `selector $ [v1, v2, ...]` (an ArrayLit whose first element, by
// convention in this surface language, doubles as the selector when wrapped
// in a TupleLit {selector, values}) into a SelectedExpressions. Both plain
// arrays (selector defaults to "always selected") and explicit
// selector-tagged tuples are accepted.
func (c *Condenser) evalSelectedExpressions(expr ast.Expression, env *Env) (analyzed.SelectedExpressions, error) {
	v, err := c.Eval(expr, env)
	if err != nil {
		return analyzed.SelectedExpressions{}, err
	}
	switch vv := v.(type) {
	case ast.ArrayValue:
		values := make([]ast.AlgebraicExpr, len(vv.Elements))
		for i, el := range vv.Elements {
			alg, err := c.toAlgebraic(el)
			if err != nil {
				return analyzed.SelectedExpressions{}, fmt.Errorf("element %d: %w", i, err)
			}
			values[i] = alg
		}
		return analyzed.SelectedExpressions{Values: values}, nil
	case ast.TupleValue:
		if len(vv.Elements) != 2 {
			return analyzed.SelectedExpressions{}, fmt.Errorf("selector tuple must have 2 elements (selector, values)")
		}
		sel, err := c.toAlgebraic(vv.Elements[0])
		if err != nil {
			return analyzed.SelectedExpressions{}, fmt.Errorf("selector: %w", err)
		}
		arr, ok := vv.Elements[1].(ast.ArrayValue)
		if !ok {
			return analyzed.SelectedExpressions{}, fmt.Errorf("expected an array of values after selector")
		}
		values := make([]ast.AlgebraicExpr, len(arr.Elements))
		for i, el := range arr.Elements {
			alg, err := c.toAlgebraic(el)
			if err != nil {
				return analyzed.SelectedExpressions{}, fmt.Errorf("element %d: %w", i, err)
			}
			values[i] = alg
		}
		return analyzed.SelectedExpressions{Selector: sel, Values: values}, nil
	default:
		return analyzed.SelectedExpressions{}, fmt.Errorf("expected selected-expressions array or tuple, got %T", v)
	}
}
