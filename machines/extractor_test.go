package machines

import (
	"testing"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
	"github.com/stretchr/testify/require"
)

// TestExtractFixedLookupStaysOutOfMachines exercises spec §4.2: a bus
// connection whose right side is purely fixed columns becomes a
// FixedLookup entry, and the left-side witness column is left in the base
// (Vm) machine rather than seeding a new one.
func TestExtractFixedLookupStaysOutOfMachines(t *testing.T) {
	m := field.Goldilocks()
	a := analyzed.New()

	byteID := a.AllocPolyID(analyzed.Constant)
	values := make([]field.Element, 256)
	for i := range values {
		values[i] = m.FromUint64(uint64(i))
	}
	a.Symbols["BYTE"] = &analyzed.SymbolEntry{Column: &analyzed.Column{ID: byteID, Name: "BYTE", FixedValues: values}}

	aID := a.AllocPolyID(analyzed.Committed)
	a.Symbols["main.a"] = &analyzed.SymbolEntry{Column: &analyzed.Column{ID: aID, Name: "main.a"}}

	interactionID := a.AllocIdentityID()
	conn := &analyzed.BusConnection{
		ID:       interactionID,
		IsLookup: true,
		Left:     analyzed.SelectedExpressions{Values: []analyzed.AlgebraicExpr{ast.AlgColumnRef{PolyID: aID}}},
		Right:    analyzed.SelectedExpressions{Values: []analyzed.AlgebraicExpr{ast.AlgColumnRef{PolyID: byteID}}},
	}
	a.BusConnections[interactionID] = conn

	sendID := a.AllocIdentityID()
	a.Identities = append(a.Identities, &analyzed.Identity{
		ID: sendID, Kind: analyzed.KindBusSend, InteractionID: interactionID,
		Tuple: conn.Left,
	})
	recvID := a.AllocIdentityID()
	a.Identities = append(a.Identities, &analyzed.Identity{
		ID: recvID, Kind: analyzed.KindBusReceive, InteractionID: interactionID,
		Tuple: conn.Right,
	})

	result, err := Extract(a)
	require.NoError(t, err)
	require.Len(t, result.FixedLookups, 1)
	require.Equal(t, interactionID, result.FixedLookups[0].ID)

	require.Len(t, result.Machines, 1)
	base := result.Machines[0]
	require.Equal(t, VariantVm, base.Variant)
	_, ok := base.Columns[aID]
	require.True(t, ok, "the lookup's left-side column should remain in the base machine")
}

// TestExtractRowConnectedClosureMergesOnlySharedIdentities checks that two
// witness columns tied together by their own polynomial identity, with no
// bus connection seeding a machine for them, end up together in the base
// machine that collects every column no connection claims.
func TestExtractRowConnectedClosureMergesOnlySharedIdentities(t *testing.T) {
	a := analyzed.New()

	aID := a.AllocPolyID(analyzed.Committed)
	bID := a.AllocPolyID(analyzed.Committed)
	a.Symbols["p.a"] = &analyzed.SymbolEntry{Column: &analyzed.Column{ID: aID, Name: "p.a"}}
	a.Symbols["p.b"] = &analyzed.SymbolEntry{Column: &analyzed.Column{ID: bID, Name: "p.b"}}

	// a - b = 0 links the two columns into one identity's column-ref set.
	a.Identities = append(a.Identities, &analyzed.Identity{
		ID:   a.AllocIdentityID(),
		Kind: analyzed.KindPolynomial,
		Expr: ast.AlgBinOp{Op: ast.AlgSub, Left: ast.AlgColumnRef{PolyID: aID}, Right: ast.AlgColumnRef{PolyID: bID}},
	})

	result, err := Extract(a)
	require.NoError(t, err)
	require.Len(t, result.Machines, 1)
	require.Len(t, result.Machines[0].Identities, 1)
	require.Len(t, result.Machines[0].Columns, 2)
}
