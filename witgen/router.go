package witgen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/machines"
)

// ErrCallNotReady is returned by Router.Call when the receiving machine
// has not yet resolved the row the call would match against; callers
// treat it as "no progress yet", not a failure, since another machine's
// solving may unblock it on a later round (spec §4.3's cross-machine
// solving order is not fixed in advance).
var ErrCallNotReady = errors.New("witgen: receiving machine not yet ready")

type receiver struct {
	state    *MutableState
	identity *analyzed.Identity
}

// Router dispatches KindBusSend calls to the machine owning the matching
// KindBusReceive, serializing access to receiver state since multiple
// sender machines may run concurrently (see RunParallel). Interactions
// whose right side is a FixedLookup (spec §4.2: these are not machines,
// just a read-only table) are answered directly from the precomputed
// fixed-lookup tables instead of a receiver's MutableState.
type Router struct {
	mu        sync.Mutex
	receivers map[uint64]receiver
	fixedByID map[uint64]*machines.FixedLookupTable
}

// NewRouter indexes every machine's KindBusReceive identities by
// InteractionID so Call can find the right target in O(1).
func NewRouter(states []*MutableState) *Router {
	r := &Router{receivers: map[uint64]receiver{}}
	for _, st := range states {
		for _, id := range st.Part.Identities {
			if id.Kind == analyzed.KindBusReceive {
				r.receivers[id.InteractionID] = receiver{state: st, identity: id}
			}
		}
	}
	return r
}

// WithFixedLookups attaches the extracted FixedLookup tables so Call can
// resolve sends against them.
func (r *Router) WithFixedLookups(tables []*machines.FixedLookupTable) *Router {
	r.fixedByID = make(map[uint64]*machines.FixedLookupTable, len(tables))
	for _, t := range tables {
		r.fixedByID[t.Connection.ID] = t
	}
	return r
}

// Call implements the MutableState.MachineCall hook: look up the tuple
// values of whichever row of the receiver's table matches args, erroring
// with ErrCallNotReady if the receiver has not finished solving yet.
func (r *Router) Call(ctx context.Context, interactionID uint64, args []field.Element) ([]field.Element, error) {
	r.mu.Lock()
	recv, ok := r.receivers[interactionID]
	fixed, fixedOK := r.fixedByID[interactionID]
	r.mu.Unlock()

	if !ok {
		if fixedOK {
			if _, contained := fixed.Contains(args); contained {
				return args, nil
			}
			return nil, fmt.Errorf("witgen: interaction %d: args %v not present in fixed lookup table", interactionID, args)
		}
		return nil, fmt.Errorf("witgen: no machine receives interaction %d", interactionID)
	}
	if !recv.state.AllKnown() {
		return nil, ErrCallNotReady
	}

	rows := recv.state.rowModulus()
	for row := uint64(0); row < rows; row++ {
		match := true
		values := make([]field.Element, 0, len(recv.identity.Tuple.Values))
		for _, v := range recv.identity.Tuple.Values {
			a, err := linearize(v, row, recv.state)
			if err != nil || len(a.terms) != 0 {
				match = false
				break
			}
			values = append(values, a.constant)
		}
		if !match || len(values) != len(args) {
			continue
		}
		allEqual := true
		for i := range values {
			if !values[i].Equal(args[i]) {
				allEqual = false
				break
			}
		}
		if allEqual {
			return values, nil
		}
	}
	return nil, fmt.Errorf("witgen: interaction %d: no matching row for args %v", interactionID, args)
}
