// Package condenser implements spec §4.1: it evaluates every user
// expression appearing in an identity, intermediate-column definition, or
// prover hint, turning it into either a pure algebraic expression or a
// constraint appended to the identity list.
package condenser

import (
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Condenser carries all of the mutable, evaluation-scoped state spec §4.1
// describes: the referential-transparency cache keyed on (symbol,
// type-arguments), the trait-impl resolution index, and the Analyzed value
// being built up.
type Condenser struct {
	program *ast.Program
	modulus *field.Modulus
	degree  uint64

	analyzed *analyzed.Analyzed
	traits   *TraitImplIndex

	// cache implements spec §4.1 "Caching": evaluating the same
	// (symbol, type-arguments) pair twice must yield the identical value.
	cache map[cacheKey]cacheEntry

	// namespace counters back BuiltinAllocateColumn's "generate a fresh,
	// unused name in the current namespace" requirement.
	namespaceCounters map[string]int

	// currentLine tracks the source line of the identity statement
	// currently being evaluated, so that a Constr appended mid-evaluation
	// can record it on the resulting Identity for error messages.
	currentLine int

	log zerolog.Logger
}

type cacheKey struct {
	symbol   string
	typeArgs string // canonicalized type-argument string, "" if none
}

type cacheEntry struct {
	inProgress bool // detects recursive definitions (spec §4.1 "cycle")
	value      ast.Value
}

// Option configures a Condenser, following the teacher's functional-option
// convention (frontend.CompileOption in gnark).
type Option func(*Condenser)

// WithLogger overrides the default logger (zerolog's global log.Logger).
func WithLogger(l zerolog.Logger) Option {
	return func(c *Condenser) { c.log = l }
}

// New constructs a Condenser for the given type-checked Program, field
// modulus, and declared degree (used to answer BuiltinQueryDegree).
func New(program *ast.Program, modulus *field.Modulus, degree uint64, opts ...Option) *Condenser {
	c := &Condenser{
		program:           program,
		modulus:           modulus,
		degree:            degree,
		analyzed:          analyzed.New(),
		traits:            NewTraitImplIndex(program.TraitImpls),
		cache:             make(map[cacheKey]cacheEntry),
		namespaceCounters: make(map[string]int),
		log:               log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Condense runs the full algorithm described in spec §4.1: iterate
// SourceOrder, evaluating each definition/identity/public statement, and
// return the accumulated Analyzed or the first error encountered.
func Condense(program *ast.Program, modulus *field.Modulus, degree uint64, opts ...Option) (*analyzed.Analyzed, error) {
	c := New(program, modulus, degree, opts...)
	if err := c.run(); err != nil {
		return nil, err
	}
	return c.analyzed, nil
}

func (c *Condenser) run() error {
	c.analyzed.SourceOrder = c.program.SourceOrder

	for _, item := range c.program.SourceOrder {
		switch item.Kind {
		case ast.SourceDefinition:
			if err := c.condenseDefinition(item.Name); err != nil {
				return fmt.Errorf("condensing %q: %w", item.Name, err)
			}
		case ast.SourceIdentity:
			if err := c.condenseIdentityStmt(c.program.Identities[item.Idx]); err != nil {
				return fmt.Errorf("condensing identity at line %d: %w",
					c.program.Identities[item.Idx].Line, err)
			}
		case ast.SourcePublic:
			if err := c.condensePublic(item.Name); err != nil {
				return fmt.Errorf("condensing public %q: %w", item.Name, err)
			}
		}
	}
	return nil
}

func (c *Condenser) condenseDefinition(name string) error {
	def, ok := c.program.Definitions[name]
	if !ok {
		return fmt.Errorf("undefined symbol %q", name)
	}

	switch def.Kind {
	case ast.KindWitnessColumn, ast.KindFixedColumn:
		return c.declareColumn(name, def)
	case ast.KindIntermediateColumn:
		return c.declareIntermediate(name, def)
	default:
		// Plain value/function definitions are evaluated lazily, on first
		// reference, via Eval's cache -- not eagerly here. Nothing to do.
		return nil
	}
}

func (c *Condenser) declareColumn(name string, def *ast.Definition) error {
	pt := analyzed.Committed
	if def.Kind == ast.KindFixedColumn {
		pt = analyzed.Constant
	}
	id := c.analyzed.AllocPolyID(pt)
	col := &analyzed.Column{ID: id, Name: name, Degree: c.degree}

	if pt == analyzed.Constant && def.Value != nil {
		// A fixed column's defining expression is a generator function
		// (row index -> field element), evaluated eagerly into its value
		// vector here rather than lazily, since nothing downstream
		// re-evaluates a fixed column's generator.
		vals, err := c.evalFixedGenerator(def.Value)
		if err != nil {
			return err
		}
		col.FixedValues = vals
	}

	c.analyzed.Symbols[name] = &analyzed.SymbolEntry{Column: col, Definition: def}
	return nil
}

func (c *Condenser) declareIntermediate(name string, def *ast.Definition) error {
	id := c.analyzed.AllocPolyID(analyzed.Intermediate)
	col := &analyzed.Column{ID: id, Name: name}

	v, err := c.Eval(def.Value, nil)
	if err != nil {
		return err
	}

	var exprs []ast.AlgebraicExpr
	switch vv := v.(type) {
	case ast.AlgebraicValue:
		exprs = []ast.AlgebraicExpr{vv.Expr}
	case ast.ArrayValue:
		for i, el := range vv.Elements {
			av, ok := el.(ast.AlgebraicValue)
			if !ok {
				return fmt.Errorf("intermediate column %q element %d: expected algebraic expression", name, i)
			}
			exprs = append(exprs, av.Expr)
		}
	default:
		return fmt.Errorf("intermediate column %q: expected algebraic expression, got %T", name, v)
	}

	col.IntermediateDef = exprs
	c.analyzed.Symbols[name] = &analyzed.SymbolEntry{Column: col, Definition: def}
	c.analyzed.Intermediates[name] = &analyzed.IntermediateEntry{Column: col, Exprs: exprs}
	return nil
}

func (c *Condenser) condenseIdentityStmt(stmt *ast.IdentityStmt) error {
	// Evaluating an identity statement does not produce a value the
	// condenser cares about; instead, each Constr-constructing call inside
	// it appends to c.analyzed.Identities as a side effect (spec §4.1).
	// c.currentLine threads the source line through for error messages.
	c.currentLine = stmt.Line
	_, err := c.Eval(stmt.Expr, nil)
	return err
}

func (c *Condenser) condensePublic(name string) error {
	for _, p := range c.program.Publics {
		if p.Name == name {
			if _, ok := c.analyzed.Column(p.Column); !ok {
				return fmt.Errorf("public %q references undeclared column %q", name, p.Column)
			}
			c.analyzed.Publics = append(c.analyzed.Publics, p)
			return nil
		}
	}
	return fmt.Errorf("undefined public %q", name)
}

// evalFixedGenerator evaluates a fixed column's generator expression
// (expected to be a closure `|row| -> fe`) over every row [0, degree) to
// produce its immutable value vector.
func (c *Condenser) evalFixedGenerator(expr ast.Expression) ([]field.Element, error) {
	v, err := c.Eval(expr, nil)
	if err != nil {
		return nil, err
	}
	closure, ok := v.(ast.ClosureValue)
	if !ok {
		return nil, fmt.Errorf("fixed column generator must be a closure, got %T", v)
	}

	vals := make([]field.Element, c.degree)
	for row := uint64(0); row < c.degree; row++ {
		arg := ast.IntValue{Value: bigIntFromUint64(row)}
		out, err := c.applyClosure(closure, []ast.Value{arg})
		if err != nil {
			return nil, fmt.Errorf("evaluating fixed column generator at row %d: %w", row, err)
		}
		fv, ok := out.(ast.FieldValue)
		if !ok {
			return nil, fmt.Errorf("fixed column generator at row %d: expected field value, got %T", row, out)
		}
		vals[row] = fv.Elem
	}
	return vals, nil
}
