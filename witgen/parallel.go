package witgen

import (
	"context"
	"fmt"

	"github.com/ace-zkvm/ace/internal/profiler"
	"github.com/ace-zkvm/ace/machines"
	"golang.org/x/sync/errgroup"
)

// RunParallel drives witness generation for every machine to completion.
// Machines are independent except through bus calls (spec §4.3
// "parallelism possible not mandated"): each global round runs every
// not-yet-complete machine's fixed-point solver concurrently via
// errgroup, then checks whether the round made progress anywhere before
// starting the next one. This lets, e.g., a ROM machine and the main VM
// solve concurrently even though the VM's bus sends depend on the ROM
// having already resolved. fixedLookups answers sends whose target is a
// FixedLookup connection rather than another machine. prof records one
// "solve_machine" span per machine per round; each goroutine gets its own
// Profiler (spec §9's thread-local event log) and merges into prof once
// its span ends.
func RunParallel(ctx context.Context, states []*MutableState, fixedLookups []*machines.FixedLookupTable, prof *profiler.Profiler) error {
	router := NewRouter(states).WithFixedLookups(fixedLookups)
	for _, s := range states {
		s.MachineCall = router.Call
	}
	if prof == nil {
		prof = profiler.New()
	}

	for round := 0; ; round++ {
		pending := make([]*MutableState, 0, len(states))
		for _, s := range states {
			if !s.AllKnown() {
				pending = append(pending, s)
			}
		}
		if len(pending) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		progress := make([]bool, len(pending))
		for i, s := range pending {
			i, s := i, s
			g.Go(func() error {
				local := profiler.New()
				stop := local.Span(s.Part.Name, "solve_machine")
				// BlockMachine and Vm both solve through the same
				// fixed-point loop; rowModulus already scopes a block
				// machine down to one representative block (see
				// MutableState.rowModulus).
				made, err := fillToFixedPoint(gctx, s)
				stop()
				prof.Merge(local)
				progress[i] = made
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("witgen: round %d: %w", round, err)
		}

		anyProgress := false
		for _, p := range progress {
			anyProgress = anyProgress || p
		}
		if !anyProgress {
			return fmt.Errorf("witgen: round %d made no progress across %d unresolved machines", round, len(pending))
		}
	}
}
