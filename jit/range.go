package jit

import "github.com/ace-zkvm/ace/witgen"

// RangeConstraint is shared with the eager witness generator (spec
// §4.3a/§4.4 describe the same abstraction in both places): a candidate-bit
// mask plus inclusive bounds. Reusing the type means a RangeConstraintEffect
// produced here and a range constraint propagated during the eager
// fallback path compare equal without a conversion step.
type RangeConstraint = witgen.RangeConstraint

var (
	unconstrainedRange = witgen.Unconstrained
	exactRange         = witgen.Exact
)
