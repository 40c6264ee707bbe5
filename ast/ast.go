// Package ast defines the surface-language abstract syntax that the
// condenser (package condenser) evaluates: definitions, identity
// statements, trait declarations and implementations, and the runtime
// Values those evaluate to (including closures and algebraic references).
//
// This is deliberately thin: full parsing and type checking (spec §2's
// stages A and B) are outside the core this specification covers; package
// pil provides just enough of both to hand the condenser a well-formed
// Program.
package ast

import "math/big"

// Program is the output of stages A+B: a type-checked set of definitions,
// identities and public declarations, plus the source order the condenser
// must iterate in for deterministic output (spec §4.1).
type Program struct {
	Definitions  map[string]*Definition
	Identities   []*IdentityStmt
	Publics      []*PublicDecl
	TraitImpls   []*TraitImplementation
	SourceOrder  []SourceItem
}

// SourceItem identifies one top-level statement, for deterministic
// iteration by the condenser.
type SourceItem struct {
	Kind SourceItemKind
	Name string // for Definition/PublicDecl; unused for Identity
	Idx  int    // index into Program.Identities when Kind == SourceIdentity
}

// SourceItemKind distinguishes the three kinds of top-level statement the
// condenser walks in source order.
type SourceItemKind uint8

const (
	SourceDefinition SourceItemKind = iota
	SourceIdentity
	SourcePublic
)

// Definition is a named symbol: a column declaration, an intermediate
// column, a constant, or a function/value definition.
type Definition struct {
	Name string
	// Type is the declared type, e.g. "expr", "expr[4]", "int -> expr".
	// Nil for inferred definitions.
	Type *TypeScheme
	// Value is the (possibly generic) defining expression. For a plain
	// `col witness x;` declaration Value is nil and Kind distinguishes it.
	Value Expression
	Kind  DefinitionKind
}

// DefinitionKind distinguishes column declarations (which the condenser
// must allocate PolyIDs for) from ordinary value/function definitions
// (which the condenser only evaluates on demand).
type DefinitionKind uint8

const (
	KindWitnessColumn DefinitionKind = iota
	KindFixedColumn
	KindIntermediateColumn
	KindValue
)

// TypeScheme is a (possibly polymorphic) type, e.g. `T: FromSlice -> Constr[]`.
type TypeScheme struct {
	TypeVars []string
	Body     Type
}

// Type is the minimal type language the condenser's trait resolver needs to
// unify against: base names, type applications (arrays), and function
// arrows.
type Type struct {
	Name string // "expr", "int", "fe", "bool", "Constr", "" for Array/Func
	Args []Type // array element type / function arg types
	Ret  *Type  // function return type, nil otherwise
}

// PublicDecl declares a public input: a named reference to a specific row of
// a specific column.
type PublicDecl struct {
	Name   string
	Column string
	Row    int
}

// IdentityStmt is a top-level statement that evaluates, for side effect, to
// one or more Constr values (spec §4.1: "rather than returning, accumulates
// side effects").
type IdentityStmt struct {
	Expr Expression
	Line int
}

// TraitImplementation binds a trait's function name to a concrete
// expression for a specific instantiation of the trait's type parameters
// (spec §4.1 trait resolution).
type TraitImplementation struct {
	Trait    string
	TypeArgs []Type
	Methods  map[string]Expression
}

// Expression is the surface-language expression AST the condenser
// evaluates. It is a sum type over the concrete node kinds below.
type Expression interface{ isExpression() }

type (
	// NumberLit is an arbitrary-precision integer literal.
	NumberLit struct{ Value *big.Int }

	// StringLit is used only in query hints and error messages, never in
	// algebraic position.
	StringLit struct{ Value string }

	// Reference is a bare identifier lookup, resolved against the current
	// evaluation environment and then Program.Definitions.
	Reference struct{ Name string }

	// Next is `<expr>'`, the "value on the following row" marker; only
	// valid when expr evaluates to a column reference.
	Next struct{ Inner Expression }

	// BinOp is a binary algebraic or boolean operator.
	BinOp struct {
		Op          BinOpKind
		Left, Right Expression
	}

	// UnOp is unary negation or boolean not.
	UnOp struct {
		Op    UnOpKind
		Inner Expression
	}

	// FunctionCall applies a function value (possibly a trait method
	// reference) to arguments.
	FunctionCall struct {
		Callee Expression
		Args   []Expression
	}

	// TraitMethodRef is `Trait::method::<T1,...,Tn>`, resolved at
	// evaluation time against the registered TraitImplementations (spec
	// §4.1).
	TraitMethodRef struct {
		Trait    string
		Method   string
		TypeArgs []Type
	}

	// Lambda is a closure literal; the evaluator pairs it with the outer
	// values the body reads in ClosureValue.Capture.
	Lambda struct {
		Params []string
		Body   Expression
	}

	// ArrayLit builds an array value.
	ArrayLit struct{ Elements []Expression }

	// TupleLit builds a tuple value.
	TupleLit struct{ Elements []Expression }

	// IndexExpr indexes into an array or tuple value.
	IndexExpr struct {
		Base  Expression
		Index Expression
	}

	// MatchExpr is a pattern-match over a value, used by prover-hint code
	// (hint/interp.go) and occasionally by pure definitions.
	MatchExpr struct {
		Scrutinee Expression
		Arms      []MatchArm
	}

	// IfExpr is a boolean conditional; both branches must agree in type.
	IfExpr struct {
		Cond, Then, Else Expression
	}

	// ConstrCall wraps one of the well-known constraint-constructing
	// builtins: `Constr::Identity`, `Constr::Lookup`, `Constr::Permutation`,
	// `Constr::Connection` (spec §4.1). Evaluating it is what the
	// condenser intercepts to append an Identity to its output.
	ConstrCall struct {
		Kind ConstrKind
		Args []Expression
	}

	// Builtin is one of the side-effecting symbol lookups the condenser
	// must special-case: allocate a column, attach a hint, query the
	// degree, query the field modulus (spec §4.1).
	Builtin struct {
		Kind BuiltinKind
		Args []Expression
	}
)

func (NumberLit) isExpression()      {}
func (StringLit) isExpression()      {}
func (Reference) isExpression()      {}
func (Next) isExpression()           {}
func (BinOp) isExpression()          {}
func (UnOp) isExpression()           {}
func (FunctionCall) isExpression()   {}
func (TraitMethodRef) isExpression() {}
func (Lambda) isExpression()         {}
func (ArrayLit) isExpression()       {}
func (TupleLit) isExpression()       {}
func (IndexExpr) isExpression()      {}
func (MatchExpr) isExpression()      {}
func (IfExpr) isExpression()         {}
func (ConstrCall) isExpression()     {}
func (Builtin) isExpression()        {}

// BinOpKind enumerates the binary operators in algebraic and boolean
// position.
type BinOpKind uint8

const (
	OpAdd BinOpKind = iota
	OpSub
	OpMul
	OpPow
	OpEq
	OpAnd
	OpOr
)

// UnOpKind enumerates the unary operators.
type UnOpKind uint8

const (
	OpNeg UnOpKind = iota
	OpNot
)

// ConstrKind enumerates the constraint-constructing builtins (spec §3
// Identity kinds).
type ConstrKind uint8

const (
	ConstrIdentity ConstrKind = iota
	ConstrLookup
	ConstrPermutation
	ConstrConnection
	ConstrBusSend
	ConstrBusReceive
)

// BuiltinKind enumerates the side-effecting symbol lookups spec §4.1 names.
type BuiltinKind uint8

const (
	BuiltinAllocateColumn BuiltinKind = iota
	BuiltinAttachHint
	BuiltinQueryDegree
	BuiltinQueryModulus
)

// MatchArm is one arm of a MatchExpr.
type MatchArm struct {
	Pattern Pattern
	Body    Expression
}

// Pattern is the minimal pattern language used in hint code: wildcards,
// literals, bindings, and tuple/array destructuring.
type Pattern interface{ isPattern() }

type (
	WildcardPattern struct{}
	LiteralPattern  struct{ Value *big.Int }
	BindPattern     struct{ Name string }
	TuplePattern    struct{ Elements []Pattern }
)

func (WildcardPattern) isPattern() {}
func (LiteralPattern) isPattern()  {}
func (BindPattern) isPattern()     {}
func (TuplePattern) isPattern()    {}
