package hint_test

import (
	"math/big"
	"testing"

	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/hint"
	"github.com/stretchr/testify/require"
)

// TestEvalSimpleArithmeticHint exercises spec §9's basic hint capability:
// field arithmetic over a closure argument.
func TestEvalSimpleArithmeticHint(t *testing.T) {
	m := field.Goldilocks()
	in := &hint.Interpreter{Modulus: m}

	closure := ast.ClosureValue{
		Lambda: &ast.Lambda{
			Params: []string{"row"},
			Body:   ast.BinOp{Op: ast.OpAdd, Left: ast.Reference{Name: "row"}, Right: ast.NumberLit{Value: big.NewInt(1)}},
		},
	}

	out, err := in.Eval(closure, []ast.Value{ast.IntValue{Value: big.NewInt(41)}})
	require.NoError(t, err)
	fv, ok := out.(ast.FieldValue)
	require.True(t, ok)
	require.Equal(t, m.FromUint64(42), fv.Elem)
}

// TestEvalQueryCallbackFailureIsSurfaced exercises spec §6/§7's query-callback path: a hint
// that issues a string query and fails cleanly when no value is available.
func TestEvalQueryCallbackFailureIsSurfaced(t *testing.T) {
	m := field.Goldilocks()
	queried := false
	in := &hint.Interpreter{
		Modulus: m,
		Query: func(q string) (*field.Element, error) {
			queried = true
			require.Equal(t, "input[0]", q)
			return nil, nil
		},
	}

	closure := ast.ClosureValue{
		Lambda: &ast.Lambda{
			Params: nil,
			Body:   ast.Builtin{Args: []ast.Expression{ast.StringLit{Value: "query"}, ast.StringLit{Value: "input[0]"}}},
		},
	}

	_, err := in.Eval(closure, nil)
	require.Error(t, err)
	require.True(t, queried)
}

// TestEvalArityMismatch exercises the arity-check guard on hint calls.
func TestEvalArityMismatch(t *testing.T) {
	m := field.Goldilocks()
	in := &hint.Interpreter{Modulus: m}
	closure := ast.ClosureValue{Lambda: &ast.Lambda{Params: []string{"a", "b"}, Body: ast.NumberLit{Value: big.NewInt(0)}}}
	_, err := in.Eval(closure, []ast.Value{ast.IntValue{Value: big.NewInt(1)}})
	require.Error(t, err)
}
