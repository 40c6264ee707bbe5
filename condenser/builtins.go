package condenser

import (
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
)

// evalBuiltin implements spec §4.1's "side-effecting symbol lookups":
// allocate a column, attach a hint, query the degree, query the field
// modulus.
func (c *Condenser) evalBuiltin(e ast.Builtin, env *Env) (ast.Value, error) {
	switch e.Kind {
	case ast.BuiltinAllocateColumn:
		return c.builtinAllocateColumn(e, env)
	case ast.BuiltinAttachHint:
		return c.builtinAttachHint(e, env)
	case ast.BuiltinQueryDegree:
		return ast.IntValue{Value: bigIntFromUint64(c.degree)}, nil
	case ast.BuiltinQueryModulus:
		return ast.IntValue{Value: c.modulus.BigInt()}, nil
	default:
		return nil, fmt.Errorf("unsupported builtin %d", e.Kind)
	}
}

// builtinAllocateColumn implements "Allocate column": generate a fresh,
// unused name in the current namespace, assign a fresh PolyID, record the
// symbol, and (for fixed columns) attach the provided function-value as the
// column's generator (spec §4.1).
func (c *Condenser) builtinAllocateColumn(e ast.Builtin, env *Env) (ast.Value, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("allocate-column expects at least a namespace argument")
	}
	nsVal, err := c.Eval(e.Args[0], env)
	if err != nil {
		return nil, err
	}
	ns, ok := nsVal.(ast.StringValue)
	if !ok {
		return nil, fmt.Errorf("allocate-column namespace must be a string")
	}

	idx := c.namespaceCounters[ns.Value]
	c.namespaceCounters[ns.Value] = idx + 1
	name := fmt.Sprintf("%s::__generated_%d", ns.Value, idx)

	pt := analyzed.Committed
	var generator ast.Expression
	if len(e.Args) >= 2 {
		pt = analyzed.Constant
		generator = e.Args[1]
	}

	id := c.analyzed.AllocPolyID(pt)
	col := &analyzed.Column{ID: id, Name: name, Degree: c.degree}

	if generator != nil {
		vals, err := c.evalFixedGenerator(generator)
		if err != nil {
			return nil, fmt.Errorf("generated fixed column %q: %w", name, err)
		}
		col.FixedValues = vals
	}

	c.analyzed.Symbols[name] = &analyzed.SymbolEntry{Column: col}
	return algebraicRefValue(col), nil
}

// builtinAttachHint implements "Attach hint": require the first argument to
// be a reference to a committed column that does not already have a hint;
// convert the second argument (a closure) to a stored function value;
// reject closures that capture outer variables. The kinds of function the
// closure body calls are not checked.
func (c *Condenser) builtinAttachHint(e ast.Builtin, env *Env) (ast.Value, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("attach-hint expects 2 arguments (column, closure)")
	}
	colVal, err := c.Eval(e.Args[0], env)
	if err != nil {
		return nil, err
	}
	av, ok := colVal.(ast.AlgebraicValue)
	if !ok {
		return nil, fmt.Errorf("attach-hint first argument must be a column reference")
	}
	ref, ok := av.Expr.(ast.AlgColumnRef)
	if !ok || ref.PolyID.PType != analyzed.Committed {
		return nil, fmt.Errorf("attach-hint first argument must reference a committed column")
	}

	col := c.findColumnByPolyID(ref.PolyID)
	if col == nil {
		return nil, fmt.Errorf("attach-hint: no column found for PolyID %+v", ref.PolyID)
	}
	if col.Hint != nil {
		return nil, fmt.Errorf("column %q already has a hint attached", col.Name)
	}

	closureVal, err := c.Eval(e.Args[1], env)
	if err != nil {
		return nil, err
	}
	closure, ok := closureVal.(ast.ClosureValue)
	if !ok {
		return nil, fmt.Errorf("attach-hint second argument must be a closure")
	}
	if len(closure.Capture) > 0 {
		return nil, fmt.Errorf("hint closure for column %q must not capture outer variables", col.Name)
	}

	col.Hint = &closure
	return ast.ConstrValue{}, nil
}

func (c *Condenser) findColumnByPolyID(id ast.PolyIDRef) *analyzed.Column {
	for _, e := range c.analyzed.Symbols {
		if e.Column != nil && e.Column.ID == id {
			return e.Column
		}
	}
	return nil
}
