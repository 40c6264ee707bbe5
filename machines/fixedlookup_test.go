package machines

import (
	"testing"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
	"github.com/stretchr/testify/require"
)

// byteRangeAnalyzed builds a minimal Analyzed with a single fixed column
// holding the 256 values 0..255, the classic byte-range lookup table.
func byteRangeAnalyzed(t *testing.T) (*analyzed.Analyzed, analyzed.PolyID) {
	t.Helper()
	m := field.Goldilocks()
	a := analyzed.New()
	id := a.AllocPolyID(analyzed.Constant)
	values := make([]field.Element, 256)
	for i := range values {
		values[i] = m.FromUint64(uint64(i))
	}
	col := &analyzed.Column{ID: id, Name: "BYTE", FixedValues: values}
	a.Symbols["BYTE"] = &analyzed.SymbolEntry{Column: col}
	return a, id
}

func TestBuildFixedLookupTableAndContains(t *testing.T) {
	a, id := byteRangeAnalyzed(t)
	m := field.Goldilocks()

	conn := &analyzed.BusConnection{
		ID: 7,
		Right: analyzed.SelectedExpressions{
			Values: []analyzed.AlgebraicExpr{ast.AlgColumnRef{PolyID: id}},
		},
	}

	tables, err := BuildFixedLookupTables(a, []*analyzed.BusConnection{conn})
	require.NoError(t, err)
	require.Len(t, tables, 1)

	tbl := tables[0]
	require.Equal(t, 256, tbl.NumRows())
	require.Same(t, conn, tbl.Connection)
	require.Greater(t, tbl.CompressedWords(), 0)

	row, ok := tbl.Contains([]field.Element{m.FromUint64(17)})
	require.True(t, ok)
	require.Equal(t, 17, row)

	_, ok = tbl.Contains([]field.Element{m.FromUint64(9999)})
	require.False(t, ok)
}

func TestFixedLookupTableWrongArityNeverMatches(t *testing.T) {
	a, id := byteRangeAnalyzed(t)
	conn := &analyzed.BusConnection{
		ID: 1,
		Right: analyzed.SelectedExpressions{
			Values: []analyzed.AlgebraicExpr{ast.AlgColumnRef{PolyID: id}},
		},
	}
	tables, err := BuildFixedLookupTables(a, []*analyzed.BusConnection{conn})
	require.NoError(t, err)

	_, ok := tables[0].Contains([]field.Element{field.Goldilocks().FromUint64(1), field.Goldilocks().FromUint64(2)})
	require.False(t, ok)
}

func TestBuildFixedLookupTableRejectsNonColumnRef(t *testing.T) {
	a, _ := byteRangeAnalyzed(t)
	conn := &analyzed.BusConnection{
		ID: 2,
		Right: analyzed.SelectedExpressions{
			Values: []analyzed.AlgebraicExpr{ast.AlgNumber{Value: field.Goldilocks().FromUint64(5)}},
		},
	}
	_, err := BuildFixedLookupTables(a, []*analyzed.BusConnection{conn})
	require.Error(t, err)
}

func TestBuildFixedLookupTableRejectsMismatchedRowCounts(t *testing.T) {
	m := field.Goldilocks()
	a := analyzed.New()
	id1 := a.AllocPolyID(analyzed.Constant)
	a.Symbols["A"] = &analyzed.SymbolEntry{Column: &analyzed.Column{
		ID: id1, Name: "A", FixedValues: []field.Element{m.FromUint64(0), m.FromUint64(1)},
	}}
	id2 := a.AllocPolyID(analyzed.Constant)
	a.Symbols["B"] = &analyzed.SymbolEntry{Column: &analyzed.Column{
		ID: id2, Name: "B", FixedValues: []field.Element{m.FromUint64(0)},
	}}

	conn := &analyzed.BusConnection{
		ID: 3,
		Right: analyzed.SelectedExpressions{
			Values: []analyzed.AlgebraicExpr{
				ast.AlgColumnRef{PolyID: id1},
				ast.AlgColumnRef{PolyID: id2},
			},
		},
	}
	_, err := BuildFixedLookupTables(a, []*analyzed.BusConnection{conn})
	require.Error(t, err)
}

func TestFixedLookupTableMultiColumnTuple(t *testing.T) {
	m := field.Goldilocks()
	a := analyzed.New()
	idA := a.AllocPolyID(analyzed.Constant)
	idB := a.AllocPolyID(analyzed.Constant)
	a.Symbols["A"] = &analyzed.SymbolEntry{Column: &analyzed.Column{
		ID: idA, Name: "A", FixedValues: []field.Element{m.FromUint64(0), m.FromUint64(1), m.FromUint64(2)},
	}}
	a.Symbols["B"] = &analyzed.SymbolEntry{Column: &analyzed.Column{
		ID: idB, Name: "B", FixedValues: []field.Element{m.FromUint64(10), m.FromUint64(11), m.FromUint64(12)},
	}}

	conn := &analyzed.BusConnection{
		ID: 4,
		Right: analyzed.SelectedExpressions{
			Values: []analyzed.AlgebraicExpr{
				ast.AlgColumnRef{PolyID: idA},
				ast.AlgColumnRef{PolyID: idB},
			},
		},
	}
	tables, err := BuildFixedLookupTables(a, []*analyzed.BusConnection{conn})
	require.NoError(t, err)

	row, ok := tables[0].Contains([]field.Element{m.FromUint64(1), m.FromUint64(11)})
	require.True(t, ok)
	require.Equal(t, 1, row)

	_, ok = tables[0].Contains([]field.Element{m.FromUint64(1), m.FromUint64(12)})
	require.False(t, ok)
}
