package analyzed

import "github.com/ace-zkvm/ace/ast"

// AlgebraicExpr is re-exported from ast for callers that only import
// analyzed.
type AlgebraicExpr = ast.AlgebraicExpr

// IdentityKind enumerates the three identity shapes spec §3 defines:
// Polynomial, Connect, and the Bus send/receive pair that Lookups and
// Permutations desugar into at condensation time.
type IdentityKind uint8

const (
	// KindPolynomial is `expr = 0` on every row.
	KindPolynomial IdentityKind = iota
	// KindConnect ties two sets of column references into a fixed
	// permutation (copy constraints).
	KindConnect
	// KindBusSend emits a tuple with a multiplicity.
	KindBusSend
	// KindBusReceive matches a tuple with a (possibly unconstrained)
	// multiplicity.
	KindBusReceive
)

// SelectedExpressions is a selector-gated tuple of algebraic expressions,
// the payload of a bus send or receive (spec §3 "Bus connection").
type SelectedExpressions struct {
	Selector AlgebraicExpr // nil means "always selected" (selector == 1)
	Values   []AlgebraicExpr
}

// Identity is one canonical, fully condensed constraint.
type Identity struct {
	ID   uint64
	Kind IdentityKind

	// Polynomial: Expr = 0.
	Expr AlgebraicExpr

	// Connect: LeftCols must be a fixed permutation of RightCols.
	LeftCols, RightCols []AlgebraicExpr

	// BusSend / BusReceive: interaction id ties a send to its receive(s);
	// Multiplicity is nil on both sides of a lookup (unconstrained receive
	// multiplicity); on each side of a permutation it is that side's
	// selector, which is nil when the side has no selector.
	InteractionID uint64
	Tuple         SelectedExpressions
	Multiplicity  AlgebraicExpr

	// SourceLine is kept for error messages (spec §7: "reported with the
	// identity text and the row").
	SourceLine int
}

// BusConnection pairs a send (caller side) with the information needed to
// locate its receive (callee side), mirroring spec §3's
// "(id, left, right, multiplicity_column?)".
type BusConnection struct {
	ID                  uint64
	Left, Right         SelectedExpressions
	MultiplicityColumn  *PolyID
	IsLookup            bool // true: unconstrained receive multiplicity
}
