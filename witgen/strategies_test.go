package witgen

import (
	"testing"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/machines"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, cols ...string) (*MutableState, map[string]analyzed.PolyID) {
	t.Helper()
	m := field.Goldilocks()
	ids := map[string]analyzed.PolyID{}
	part := &machines.Part{Name: "test", Columns: map[analyzed.PolyID]*analyzed.Column{}}
	for _, name := range cols {
		id := analyzed.PolyID{ID: uint64(len(ids)), PType: analyzed.Committed}
		ids[name] = id
		part.Columns[id] = &analyzed.Column{ID: id, Name: name}
	}
	s := NewMutableState(part, m, 8, zerolog.Nop())
	return s, ids
}

func ref(id analyzed.PolyID) ast.AlgColumnRef { return ast.AlgColumnRef{PolyID: id} }

func addIdentity(expr ast.AlgebraicExpr) *analyzed.Identity {
	return &analyzed.Identity{Kind: analyzed.KindPolynomial, Expr: expr}
}

// TestSolveSingleUnknown exercises spec §4.3a strategy 2: c = a + b with a,
// b known solves directly for c.
func TestSolveSingleUnknown(t *testing.T) {
	s, ids := newTestState(t, "a", "b", "c")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["a"], 0, m.FromUint64(3)))
	require.NoError(t, s.SetKnown(ids["b"], 0, m.FromUint64(4)))

	// c - (a + b) = 0
	expr := ast.AlgBinOp{
		Op:   ast.AlgSub,
		Left: ref(ids["c"]),
		Right: ast.AlgBinOp{
			Op:   ast.AlgAdd,
			Left: ref(ids["a"]),
			Right: ref(ids["b"]),
		},
	}
	assigns, progress, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.NoError(t, err)
	require.True(t, progress)
	require.Len(t, assigns, 1)
	for k, v := range assigns {
		require.NoError(t, s.SetKnown(k.col, k.row, v))
	}
	require.True(t, s.Get(ids["c"], 0).Value.Equal(m.FromUint64(7)))
}

// TestSolveConstantSatisfied exercises strategy 1 with a satisfied
// constant residual (all cells already Known, expression collapses to 0).
func TestSolveConstantSatisfied(t *testing.T) {
	s, ids := newTestState(t, "a")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["a"], 0, m.FromUint64(5)))

	expr := ast.AlgBinOp{Op: ast.AlgSub, Left: ref(ids["a"]), Right: ast.AlgNumber{Value: m.FromUint64(5)}}
	assigns, progress, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.NoError(t, err)
	require.True(t, progress)
	require.Empty(t, assigns)
}

// TestSolveConstantViolated exercises spec §8 scenario 4-adjacent behavior
// at the affine layer: a residual constant that is nonzero is unsatisfiable.
func TestSolveConstantViolated(t *testing.T) {
	s, ids := newTestState(t, "a")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["a"], 0, m.FromUint64(5)))

	expr := ast.AlgBinOp{Op: ast.AlgSub, Left: ref(ids["a"]), Right: ast.AlgNumber{Value: m.FromUint64(6)}}
	_, _, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.Error(t, err)
}

// TestSolveRangeDecomposition exercises spec §8 scenario 3 in its real,
// multi-unknown form: a = a0 + 256*a1 + 65536*a2, with only a known and
// a0/a1/a2 each byte-range-constrained (none of them pre-resolved), all
// three limbs must be read off simultaneously from a's bits.
func TestSolveRangeDecomposition(t *testing.T) {
	s, ids := newTestState(t, "a", "a0", "a1", "a2")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["a"], 0, m.FromUint64(0x010203)))
	s.SetRange(ids["a0"], 0, FromBitWidth(8))
	s.SetRange(ids["a1"], 0, FromBitWidth(8))
	s.SetRange(ids["a2"], 0, FromBitWidth(8))

	// a - (a0 + 256*a1 + 65536*a2) = 0
	sumExpr := ast.AlgBinOp{
		Op:   ast.AlgAdd,
		Left: ref(ids["a0"]),
		Right: ast.AlgBinOp{
			Op:   ast.AlgAdd,
			Left: ast.AlgBinOp{Op: ast.AlgMul, Left: ast.AlgNumber{Value: m.FromUint64(256)}, Right: ref(ids["a1"])},
			Right: ast.AlgBinOp{Op: ast.AlgMul, Left: ast.AlgNumber{Value: m.FromUint64(65536)}, Right: ref(ids["a2"])},
		},
	}
	expr := ast.AlgBinOp{Op: ast.AlgSub, Left: ref(ids["a"]), Right: sumExpr}

	assigns, progress, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.NoError(t, err)
	require.True(t, progress)
	require.Len(t, assigns, 3)
	require.True(t, assigns[cellKey{col: ids["a0"], row: 0}].Equal(m.FromUint64(3)))
	require.True(t, assigns[cellKey{col: ids["a1"], row: 0}].Equal(m.FromUint64(2)))
	require.True(t, assigns[cellKey{col: ids["a2"], row: 0}].Equal(m.FromUint64(1)))
}

// TestSolveDivisionPattern exercises spec §4.3a strategy 3: n - (d*q + r)
// = 0 with n known, d a known constant divisor, q a fully unknown
// quotient column, and r a remainder column range-constrained to less
// than d -- Euclidean division must resolve both q and r in one step.
func TestSolveDivisionPattern(t *testing.T) {
	s, ids := newTestState(t, "n", "q", "r")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["n"], 0, m.FromUint64(23)))
	s.SetRange(ids["r"], 0, FromBitWidth(3)) // r < 8

	// n - (8*q + r) = 0
	expr := ast.AlgBinOp{
		Op:   ast.AlgSub,
		Left: ref(ids["n"]),
		Right: ast.AlgBinOp{
			Op:   ast.AlgAdd,
			Left: ast.AlgBinOp{Op: ast.AlgMul, Left: ast.AlgNumber{Value: m.FromUint64(8)}, Right: ref(ids["q"])},
			Right: ref(ids["r"]),
		},
	}

	assigns, progress, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.NoError(t, err)
	require.True(t, progress)
	require.Len(t, assigns, 2)
	require.True(t, assigns[cellKey{col: ids["q"], row: 0}].Equal(m.FromUint64(2)), "23 / 8 = 2")
	require.True(t, assigns[cellKey{col: ids["r"], row: 0}].Equal(m.FromUint64(7)), "23 %% 8 = 7")
}

// TestSolveDivisionPatternRejectsOversizedRemainder exercises the guard
// that keeps the division-pattern strategy from firing when the declared
// remainder bound doesn't actually fit under the divisor, since floor
// division wouldn't be the unique solution there.
func TestSolveDivisionPatternRejectsOversizedRemainder(t *testing.T) {
	s, ids := newTestState(t, "n", "q", "r")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["n"], 0, m.FromUint64(23)))
	s.SetRange(ids["r"], 0, FromBitWidth(4)) // r < 16, not < 8

	expr := ast.AlgBinOp{
		Op:   ast.AlgSub,
		Left: ref(ids["n"]),
		Right: ast.AlgBinOp{
			Op:   ast.AlgAdd,
			Left: ast.AlgBinOp{Op: ast.AlgMul, Left: ast.AlgNumber{Value: m.FromUint64(8)}, Right: ref(ids["q"])},
			Right: ref(ids["r"]),
		},
	}

	_, progress, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.NoError(t, err)
	require.False(t, progress)
}

// TestSolveConstraintTransfer exercises spec §8 scenario 6: a copy
// constraint a - b = 0 with a known propagates to b.
func TestSolveConstraintTransfer(t *testing.T) {
	s, ids := newTestState(t, "a", "b")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["a"], 0, m.FromUint64(7)))

	expr := ast.AlgBinOp{Op: ast.AlgSub, Left: ref(ids["a"]), Right: ref(ids["b"])}
	assigns, progress, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.NoError(t, err)
	require.True(t, progress)
	require.Len(t, assigns, 1)
	for k, v := range assigns {
		require.Equal(t, ids["b"], k.col)
		require.True(t, v.Equal(m.FromUint64(7)))
	}
}

// TestSolveNonlinearWithTwoUnknownsMakesNoProgress exercises the "not yet
// solvable" path: a product of two still-unknown cells is left for a later
// pass rather than failing outright.
func TestSolveNonlinearWithTwoUnknownsMakesNoProgress(t *testing.T) {
	s, ids := newTestState(t, "x", "y")
	expr := ast.AlgBinOp{Op: ast.AlgMul, Left: ref(ids["x"]), Right: ref(ids["y"])}
	assigns, progress, err := solveIdentityRow(addIdentity(expr), 0, s)
	require.NoError(t, err)
	require.False(t, progress)
	require.Empty(t, assigns)
}

func TestMutableStateSetKnownConflictErrors(t *testing.T) {
	s, ids := newTestState(t, "a")
	m := s.Modulus
	require.NoError(t, s.SetKnown(ids["a"], 0, m.FromUint64(1)))
	err := s.SetKnown(ids["a"], 0, m.FromUint64(2))
	require.Error(t, err)
}

func TestMutableStateAllKnown(t *testing.T) {
	s, ids := newTestState(t, "a", "b")
	m := s.Modulus
	require.False(t, s.AllKnown())
	for row := uint64(0); row < s.Degree; row++ {
		require.NoError(t, s.SetKnown(ids["a"], row, m.FromUint64(1)))
		require.NoError(t, s.SetKnown(ids["b"], row, m.FromUint64(2)))
	}
	require.True(t, s.AllKnown())
}
