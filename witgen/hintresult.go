package witgen

import (
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
)

// hintResultToField coerces a hint closure's return value into a field
// element: FieldValue is used as-is, IntValue is reduced modulo the
// running field, BoolValue maps to 0/1. Any other shape (arrays, tuples,
// strings) is not a valid witness value and is rejected.
func hintResultToField(v ast.Value, m *field.Modulus) (field.Element, bool) {
	switch val := v.(type) {
	case ast.FieldValue:
		return val.Elem, true
	case ast.IntValue:
		return m.FromBigInt(val.Value), true
	case ast.BoolValue:
		if val.Value {
			return m.One(), true
		}
		return m.Zero(), true
	default:
		return field.Element{}, false
	}
}
