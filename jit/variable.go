// Package jit implements spec §4.4: given a BlockMachine and a bit vector
// of which formal parameters are known inputs, produce a vector of
// Effects that computes the remaining outputs -- the hot path block
// machines are called through billions of times, so an identity
// interpreter per call is too slow.
package jit

import "github.com/ace-zkvm/ace/analyzed"

// VarKind distinguishes the three places a jit Variable can come from.
type VarKind uint8

const (
	// VarParam is one of the block connection's formal parameters, the
	// `Param(i)` spec §4.4 names.
	VarParam VarKind = iota
	// VarCell is a committed/fixed cell at a row offset relative to the
	// block, processed over rows [-1, B+1) per spec §4.4.
	VarCell
	// VarLocal is a generated temporary, e.g. the result of a
	// Division-pattern or Bit-decomposition intermediate step.
	VarLocal
)

// Variable identifies one symbolic value a WitgenInference reasons about.
// It is intentionally a plain comparable struct (not an interface) so it
// can be used directly as a map key throughout the solver and the RPN
// encoder.
type Variable struct {
	Kind      VarKind
	Index     int // VarParam: parameter index. VarLocal: temporary ID.
	Col       analyzed.PolyID
	RowOffset int // relative to the block's row 0
}

// Param constructs the Variable for formal parameter i.
func Param(i int) Variable { return Variable{Kind: VarParam, Index: i} }

// Cell constructs the Variable for a column at a row offset relative to
// the block being coded.
func Cell(col analyzed.PolyID, rowOffset int) Variable {
	return Variable{Kind: VarCell, Col: col, RowOffset: rowOffset}
}

// local allocates a fresh temporary variable; see WitgenInference.newLocal.
func local(id int) Variable {
	return Variable{Kind: VarLocal, Index: id}
}
