package jit

import (
	"testing"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/machines"
	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/require"
)

func addBlockPart(t *testing.T) (*machines.Part, *analyzed.BusConnection, analyzed.PolyID, analyzed.PolyID, analyzed.PolyID) {
	t.Helper()
	x := analyzed.PolyID{ID: 0, PType: analyzed.Committed}
	y := analyzed.PolyID{ID: 1, PType: analyzed.Committed}
	z := analyzed.PolyID{ID: 2, PType: analyzed.Committed}

	part := &machines.Part{
		Name:      "Add",
		Variant:   machines.VariantBlock,
		BlockSize: 1,
		Columns: map[analyzed.PolyID]*analyzed.Column{
			x: {ID: x, Name: "Add.a"},
			y: {ID: y, Name: "Add.b"},
			z: {ID: z, Name: "Add.c"},
		},
		Identities: []*analyzed.Identity{
			{
				Kind: analyzed.KindPolynomial,
				Expr: ast.AlgBinOp{
					Op:   ast.AlgSub,
					Left: ast.AlgColumnRef{PolyID: z},
					Right: ast.AlgBinOp{
						Op:   ast.AlgAdd,
						Left: ast.AlgColumnRef{PolyID: x},
						Right: ast.AlgColumnRef{PolyID: y},
					},
				},
			},
		},
	}
	conn := &analyzed.BusConnection{
		ID: 1,
		Right: analyzed.SelectedExpressions{
			Values: []analyzed.AlgebraicExpr{
				ast.AlgColumnRef{PolyID: x},
				ast.AlgColumnRef{PolyID: y},
				ast.AlgColumnRef{PolyID: z},
			},
		},
	}
	return part, conn, x, y, z
}

// TestGenerateCodeAddition exercises spec §8 scenario 1 at the JIT layer:
// given x and y known, the generated effect stream computes z = x + y.
func TestGenerateCodeAddition(t *testing.T) {
	part, conn, x, y, z := addBlockPart(t)
	m := field.Goldilocks()

	known := bitset.New(3)
	known.Set(0)
	known.Set(1)

	effects, err := GenerateCode(part, conn, m, known, nil)
	require.NoError(t, err)
	require.NotEmpty(t, effects)

	env := map[Variable]field.Element{
		Param(0): m.FromUint64(3),
		Param(1): m.FromUint64(4),
	}
	interp := &Interpreter{Modulus: m}
	require.NoError(t, interp.Run(effects, env))

	require.True(t, env[Cell(z, 0)].Equal(m.FromUint64(7)))
	_ = x
	_ = y
}

// TestGenerateCodeFailsWhenOutputUnreachable exercises spec §4.4's failure
// mode: with no parameter known, nothing can seed the block's identities
// and codegen must report that it cannot derive the outputs.
func TestGenerateCodeFailsWhenOutputUnreachable(t *testing.T) {
	part, conn, _, _, _ := addBlockPart(t)
	m := field.Goldilocks()

	known := bitset.New(3) // nothing known
	_, err := GenerateCode(part, conn, m, known, nil)
	require.Error(t, err)
}
