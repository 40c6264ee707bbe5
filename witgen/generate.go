package witgen

import (
	"context"
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/hint"
	"github.com/ace-zkvm/ace/internal/profiler"
	"github.com/ace-zkvm/ace/machines"
	"github.com/rs/zerolog"
)

// Result is the fully solved witness: every committed column's values
// across the whole trace, assembled from each machine's (possibly
// block-scoped) MutableState.
type Result struct {
	Columns map[analyzed.PolyID][]field.Element

	// Profile is the merged per-machine solve-time event log for this
	// Generate call (spec §9): Options.Profiler if the caller supplied one,
	// otherwise the Profiler Generate created for this call. Never nil.
	Profile *profiler.Profiler
}

// Options configures a Generate call (spec §4.3's MutableState bundle
// inputs that come from outside the condenser/extractor: public inputs,
// the prover query callback, externally supplied witness columns).
type Options struct {
	Publics map[string]field.Element
	Query   hint.QueryCallback

	// ExternalWitness lets a caller pre-seed specific cells (e.g. values
	// computed by a previous proving stage) before the solver runs. Per
	// the resolved Open Question in spec §9, these are trusted as-is and
	// only checked for consistency if the solver later derives a
	// conflicting value for the same cell.
	ExternalWitness map[analyzed.PolyID]map[uint64]field.Element

	Log zerolog.Logger

	// Profiler, if set, collects per-machine solve-time spans (spec §9's
	// thread-local event log); a caller that wants timing data owns this
	// Profiler for exactly this one Generate call. Left nil, Generate
	// creates its own and returns it in Result.Profile.
	Profiler *profiler.Profiler
}

// Generate runs spec §4.3's full witness generation pipeline: build one
// MutableState per extracted machine, seed it with fixed-column values,
// hints, publics and any external witness, then solve every machine to a
// global fixed point via RunParallel, finally assembling the per-column
// trace.
func Generate(ctx context.Context, an *analyzed.Analyzed, ex *machines.Extraction, modulus *field.Modulus, degree uint64, opts Options) (*Result, error) {
	fixedLookups, err := machines.BuildFixedLookupTables(an, ex.FixedLookups)
	if err != nil {
		return nil, fmt.Errorf("witgen: %w", err)
	}

	states := make([]*MutableState, 0, len(ex.Machines))

	for _, part := range ex.Machines {
		s := NewMutableState(part, modulus, degree, opts.Log)
		if opts.Query != nil {
			s.Query = opts.Query
		}
		for name, v := range opts.Publics {
			s.Publics[name] = v
		}

		if err := seedFixedColumns(s, part); err != nil {
			return nil, fmt.Errorf("witgen: seeding machine %q: %w", part.Name, err)
		}
		if err := seedExternalWitness(s, part, opts.ExternalWitness); err != nil {
			return nil, fmt.Errorf("witgen: machine %q: %w", part.Name, err)
		}
		if err := runHints(s, part); err != nil {
			return nil, fmt.Errorf("witgen: machine %q: %w", part.Name, err)
		}

		states = append(states, s)
	}

	prof := opts.Profiler
	if prof == nil {
		prof = profiler.New()
	}
	if err := RunParallel(ctx, states, fixedLookups, prof); err != nil {
		return nil, err
	}

	result, err := assembleResult(states, degree)
	if err != nil {
		return nil, err
	}
	result.Profile = prof

	if totals := prof.TotalByMachine(); len(totals) > 0 {
		evt := opts.Log.Debug()
		for machine, d := range totals {
			evt = evt.Dur(machine, d)
		}
		evt.Msg("witgen: machine solve times")
	}
	return result, nil
}

// seedFixedColumns copies each fixed column's precomputed values in as
// Known cells -- fixed columns are never solved, only read.
func seedFixedColumns(s *MutableState, part *machines.Part) error {
	for id, col := range part.Columns {
		if id.PType != analyzed.Constant || col.FixedValues == nil {
			continue
		}
		for row, v := range col.FixedValues {
			s.SetKnownExternal(id, uint64(row), v)
		}
	}
	return nil
}

func seedExternalWitness(s *MutableState, part *machines.Part, external map[analyzed.PolyID]map[uint64]field.Element) error {
	for id := range part.Columns {
		rows, ok := external[id]
		if !ok {
			continue
		}
		for row, v := range rows {
			s.SetKnownExternal(id, row, v)
		}
	}
	return nil
}

// runHints evaluates each prover function's hint closure, per row, for
// machines where the extractor attached one (spec §4.2 "Prover-function
// attachment"); a hint's result seeds the cell as Known, same as an
// external witness value, since hints are themselves an escape hatch for
// values the polynomial identities alone cannot pin down (spec §7).
func runHints(s *MutableState, part *machines.Part) error {
	for _, col := range part.ProverFunctions {
		if col.Hint == nil {
			continue
		}
		rows := s.rowModulus()
		for row := uint64(0); row < rows; row++ {
			if s.Get(col.ID, row).Status == Known {
				continue
			}
			reader := func(colName string, rowOffset int) (field.Element, bool) {
				target, ok := part.ColumnByName(colName)
				if !ok {
					return field.Element{}, false
				}
				r := (int(row) + rowOffset + int(rows)) % int(rows)
				cell := s.Get(target, uint64(r))
				return cell.Value, cell.Status == Known
			}
			interp := hint.Interpreter{Modulus: s.Modulus, Cells: reader, Query: s.Query}
			v, err := interp.Eval(*col.Hint, nil)
			if err != nil {
				// Hints are best-effort: a hint that cannot yet resolve
				// (its dependent cells are not known) is not a hard
				// error, the solver may still pin the column down via
				// polynomial identities.
				continue
			}
			elem, ok := hintResultToField(v, s.Modulus)
			if !ok {
				continue
			}
			if err := s.SetKnown(col.ID, row, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func assembleResult(states []*MutableState, degree uint64) (*Result, error) {
	out := &Result{Columns: map[analyzed.PolyID][]field.Element{}}
	for _, s := range states {
		for id := range s.Part.Columns {
			if id.PType != analyzed.Committed {
				continue
			}
			values := make([]field.Element, degree)
			for row := uint64(0); row < degree; row++ {
				cell := s.Get(id, row)
				if cell.Status != Known {
					return nil, fmt.Errorf("witgen: column %+v row %d never resolved", id, row)
				}
				values[row] = cell.Value
			}
			out.Columns[id] = values
		}
	}
	return out, nil
}
