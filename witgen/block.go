package witgen

import (
	"context"
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/field"
)

// FillBlock runs block-filling (spec §4.3, VariantBlock): MutableState's
// row modulus is already the machine's BlockSize for a block machine (see
// rowModulus), so a single call to FillVm solves one representative
// instance of the block. Each subsequent instance of the block in the
// full trace is identical up to the external bus-call arguments it
// receives, so the caller replicates the solved block across instances
// via ExpandBlockInstances rather than re-running the solver per
// instance.
func FillBlock(ctx context.Context, s *MutableState) error {
	if s.Part.BlockSize == 0 {
		return fmt.Errorf("witgen: block machine %q has zero block size", s.Part.Name)
	}
	return FillVm(ctx, s)
}

// ExpandBlockInstances replicates a solved block's per-row values for one
// column across every instance of that block in a trace of the given
// total length.
func ExpandBlockInstances(s *MutableState, col analyzed.PolyID, totalRows uint64) ([]field.Element, error) {
	blockSize := s.Part.BlockSize
	out := make([]field.Element, totalRows)
	for row := uint64(0); row < totalRows; row++ {
		cell := s.Get(col, row%blockSize)
		if cell.Status != Known {
			return nil, fmt.Errorf("witgen: block column %+v row %d within block not resolved", col, row%blockSize)
		}
		out[row] = cell.Value
	}
	return out, nil
}
