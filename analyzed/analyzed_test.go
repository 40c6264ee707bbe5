package analyzed

import (
	"testing"

	"github.com/ace-zkvm/ace/ast"
	"github.com/stretchr/testify/require"
)

func addColumn(a *Analyzed, name string, pt PType) *Column {
	col := &Column{ID: a.AllocPolyID(pt), Name: name}
	a.Symbols[name] = &SymbolEntry{Column: col}
	return col
}

func TestColumnLookupByNameAndID(t *testing.T) {
	a := New()
	c1 := addColumn(a, "a", Committed)
	c2 := addColumn(a, "b", Committed)
	addColumn(a, "k", Constant)

	got, ok := a.Column("a")
	require.True(t, ok)
	require.Equal(t, c1, got)

	got, ok = a.ColumnByID(c2.ID)
	require.True(t, ok)
	require.Equal(t, c2, got)

	_, ok = a.Column("missing")
	require.False(t, ok)

	_, ok = a.ColumnByID(PolyID{ID: 999, PType: Committed})
	require.False(t, ok)
}

func TestWitnessAndFixedColumnsOrderedByID(t *testing.T) {
	a := New()
	// Register in non-alphabetical name order to make sure the accessor sorts
	// by PolyID, not by name or map iteration order.
	cB := addColumn(a, "b", Committed)
	cA := addColumn(a, "a", Committed)
	fX := addColumn(a, "x", Constant)

	witnesses := a.WitnessColumns()
	require.Len(t, witnesses, 2)
	require.Equal(t, cB.ID.ID, witnesses[0].ID.ID)
	require.Equal(t, cA.ID.ID, witnesses[1].ID.ID)

	fixed := a.FixedColumns()
	require.Len(t, fixed, 1)
	require.Equal(t, fX, fixed[0])
}

func TestAllocIdentityIDIsMonotonic(t *testing.T) {
	a := New()
	first := a.AllocIdentityID()
	second := a.AllocIdentityID()
	require.Equal(t, first+1, second)
}

func TestAllocPolyIDIsDensePerType(t *testing.T) {
	a := New()
	c0 := a.AllocPolyID(Committed)
	f0 := a.AllocPolyID(Constant)
	c1 := a.AllocPolyID(Committed)

	require.Equal(t, uint64(0), c0.ID)
	require.Equal(t, uint64(0), f0.ID)
	require.Equal(t, uint64(1), c1.ID)
}

func TestEmptyAnalyzedHasNoColumns(t *testing.T) {
	a := New()
	require.Nil(t, a.WitnessColumns())
	require.Nil(t, a.FixedColumns())
}

func TestSymbolEntryCarriesDefinition(t *testing.T) {
	a := New()
	def := &ast.Definition{Name: "x", Kind: ast.KindWitnessColumn}
	col := &Column{ID: a.AllocPolyID(Committed), Name: "x"}
	a.Symbols["x"] = &SymbolEntry{Column: col, Definition: def}

	entry := a.Symbols["x"]
	require.Same(t, def, entry.Definition)
}
