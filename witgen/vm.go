package witgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
)

// FillVm runs the general row-filling strategy (spec §4.3, VariantVm): for
// each row, apply every strategy in solveIdentityRow plus connect/bus
// handling until no identity makes further progress, then move to the
// next row. Copy constraints (KindConnect) can link non-adjacent rows, so
// after an initial forward pass the loop revisits earlier rows whose
// connect partners only just became known (spec §4.3 "copy-constraint
// cycles").
func FillVm(ctx context.Context, s *MutableState) error {
	if _, err := fillToFixedPoint(ctx, s); err != nil {
		return err
	}
	if !s.AllKnown() {
		unknown := s.UnknownCells()
		if len(unknown) > 0 {
			return fmt.Errorf("witgen: stalled with %d unresolved cells (e.g. column %+v row %d)",
				len(unknown), unknown[0].col, unknown[0].row)
		}
	}
	return nil
}

// fillToFixedPoint runs solving rounds until no identity makes further
// progress, WITHOUT erroring if the machine is left incomplete -- used by
// RunParallel, where a machine may only become solvable once another
// machine answers one of its bus calls in a later global round.
func fillToFixedPoint(ctx context.Context, s *MutableState) (bool, error) {
	rows := s.rowModulus()
	dirty := make([]bool, rows)
	for i := range dirty {
		dirty[i] = true
	}

	anyProgress := false
	for iterations := 0; iterations < int(rows)*4+16; iterations++ {
		progressed := false
		for row := uint64(0); row < rows; row++ {
			if !dirty[row] {
				continue
			}
			select {
			case <-ctx.Done():
				return anyProgress, ctx.Err()
			default:
			}
			madeProgress, affectedRows, err := fillRow(ctx, s, row)
			if err != nil {
				return anyProgress, fmt.Errorf("witgen: row %d: %w", row, err)
			}
			if madeProgress {
				progressed = true
				anyProgress = true
				for _, r := range affectedRows {
					dirty[r] = true
				}
			} else {
				dirty[row] = false
			}
		}
		if !progressed {
			break
		}
	}
	return anyProgress, nil
}

// fillRow runs one pass of every identity owned by the machine against a
// single row, returning whether anything changed and which rows (possibly
// this one, possibly a connect partner) should be revisited.
func fillRow(ctx context.Context, s *MutableState, row uint64) (bool, []uint64, error) {
	progressed := false
	var affected []uint64

	for _, id := range s.Part.Identities {
		switch id.Kind {
		case analyzed.KindPolynomial:
			assigns, ok, err := solveIdentityRow(id, row, s)
			if err != nil {
				return false, nil, fmt.Errorf("identity %d: %w", id.ID, err)
			}
			if ok {
				for k, v := range assigns {
					if err := s.SetKnown(k.col, k.row, v); err != nil {
						return false, nil, err
					}
					affected = append(affected, k.row)
				}
				progressed = true
			}

		case analyzed.KindConnect:
			changed, rows, err := solveConnectIdentity(id, row, s)
			if err != nil {
				return false, nil, err
			}
			if changed {
				progressed = true
				affected = append(affected, rows...)
			}

		case analyzed.KindBusSend:
			changed, err := trySend(ctx, id, row, s)
			if err != nil {
				return false, nil, err
			}
			if changed {
				progressed = true
				affected = append(affected, row)
			}
		}
	}

	return progressed, affected, nil
}

// solveConnectIdentity treats each (LeftCols[i], RightCols[i]) pair of a
// KindConnect identity as a copy constraint `left = right`, propagating
// Known/RangeConstrained status between the two sides at this row.
func solveConnectIdentity(id *analyzed.Identity, row uint64, s *MutableState) (bool, []uint64, error) {
	if len(id.LeftCols) != len(id.RightCols) {
		return false, nil, fmt.Errorf("connect identity %d: mismatched column counts", id.ID)
	}
	changed := false
	var affected []uint64
	for i := range id.LeftCols {
		eq := ast.AlgBinOp{Op: ast.AlgSub, Left: id.LeftCols[i], Right: id.RightCols[i]}
		assigns, ok := tryConstraintTransfer(eq, row, s)
		if !ok {
			continue
		}
		for k, v := range assigns {
			if err := s.SetKnown(k.col, k.row, v); err != nil {
				return false, nil, err
			}
			affected = append(affected, k.row)
		}
		changed = true
	}
	return changed, affected, nil
}

// trySend attempts to resolve a KindBusSend identity by evaluating its
// tuple: once every value in the tuple and the selector are Known, it
// dispatches a MachineCall to whichever machine owns the matching
// KindBusReceive. It assigns no cells and never reports progress, so send
// values that are still unknown are not resolved through the receiver.
func trySend(ctx context.Context, id *analyzed.Identity, row uint64, s *MutableState) (bool, error) {
	if s.MachineCall == nil {
		return false, nil
	}
	args := make([]field.Element, 0, len(id.Tuple.Values))
	for _, v := range id.Tuple.Values {
		a, err := linearize(v, row, s)
		if err != nil || len(a.terms) != 0 {
			return false, nil
		}
		args = append(args, a.constant)
	}
	if id.Tuple.Selector != nil {
		sel, err := linearize(id.Tuple.Selector, row, s)
		if err != nil || len(sel.terms) != 0 {
			return false, nil
		}
		if sel.constant.IsZero() {
			return false, nil
		}
	}

	_, err := s.MachineCall(ctx, id.InteractionID, args)
	if err != nil {
		if errors.Is(err, ErrCallNotReady) {
			return false, nil
		}
		return false, fmt.Errorf("bus send %d: %w", id.ID, err)
	}
	// The send side's own columns are already fully known (that is what
	// made args resolvable); a successful call only confirms the
	// receiver agrees, it does not assign anything further here.
	return false, nil
}
