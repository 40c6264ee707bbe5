// Package analyzed holds the data model the condenser produces and every
// downstream component (machine extractor, witness generator, JIT codegen)
// consumes: PolyID, Column, Identity, Analyzed (spec §3).
package analyzed

import (
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
)

// PolyID is re-exported from ast so that analyzed and condenser share one
// definition without an import cycle (ast has no dependency on analyzed).
type PolyID = ast.PolyIDRef

// PType is re-exported from ast; see ast.PType for the three column kinds.
type PType = ast.PType

const (
	Committed    = ast.Committed
	Constant     = ast.Constant
	Intermediate = ast.Intermediate
)

// Column describes one committed, fixed, or intermediate polynomial.
type Column struct {
	ID     PolyID
	Name   string
	Stage  uint32
	Degree uint64 // rows per column; 0 means "inherit the global degree"

	// FixedValues holds the immutable value vector for Constant columns. It
	// is nil for Committed/Intermediate columns.
	FixedValues []field.Element

	// Hint is the attached witness-generation hint for a Committed column,
	// if any (spec §4.1 "Attach hint").
	Hint *ast.ClosureValue

	// IntermediateDef holds the inlined definition for an Intermediate
	// column (one AlgebraicExpr per array element if the column was
	// declared as an array).
	IntermediateDef []ast.AlgebraicExpr
}

// IsWitness reports whether this column's values must be supplied by the
// witness generator (as opposed to being precomputed or inlined).
func (c *Column) IsWitness() bool { return c.ID.PType == Committed }
