package jit

import (
	"errors"

	"github.com/bits-and-blooms/bitset"
)

// ErrNonlinearSymbolic mirrors witgen.ErrNonlinear, for the codegen path:
// a term multiplied two not-yet-resolved variables together, so it cannot
// be linearized into a single affine assignment this round.
var ErrNonlinearSymbolic = errors.New("jit: expression is not affine in its unknowns")

// Effect is one instruction in the vector spec §4.4 calls "a vector of
// Effects that computes the remaining (output) parameters": Assignment,
// RangeConstraint, Assertion, MachineCall, or Branch.
type Effect interface{ isEffect() }

// Assignment sets Target to the value of Expr, an affine combination over
// already-known Variables.
type Assignment struct {
	Target Variable
	Expr   *SymExpr
}

func (Assignment) isEffect() {}

// RangeConstraintEffect records that Target's possible values have been
// narrowed, without fully determining it (spec §4.3a/§4.4 shared
// vocabulary).
type RangeConstraintEffect struct {
	Target     Variable
	Constraint RangeConstraint
}

func (RangeConstraintEffect) isEffect() {}

// Assertion checks Lhs == Rhs (if ExpectEqual) or Lhs != Rhs, failing
// witness generation at runtime if violated -- used for the nonzero-check
// half of a Division-pattern identity.
type Assertion struct {
	Lhs, Rhs    *SymExpr
	ExpectEqual bool
}

func (Assertion) isEffect() {}

// MachineCall dispatches to another BlockMachine's connection, once its
// selector is known-one and the callee reports (via can_process) that it
// can handle the derived known-bits pattern.
type MachineCall struct {
	IdentityID uint64
	KnownBits  *bitset.BitSet
	Vars       []Variable
}

func (MachineCall) isEffect() {}

// Branch bisects on a variable with a non-singleton range constraint:
// Hi/Lo are the effect streams for the two halves. Branches are emitted
// in tail position with no merge step (spec §9's explicit Open Question
// resolution: "implementers should treat branches as tail-position").
type Branch struct {
	Condition Variable
	Hi, Lo    []Effect
}

func (Branch) isEffect() {}
