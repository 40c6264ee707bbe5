// Package machines implements spec §4.2: partitioning the flat identity set
// into machines by row-connectivity, and the machine variants spec §4.2's
// table enumerates (SortedWitnesses, DoubleSortedWitness, WriteOnceMemory,
// BlockMachine, FixedLookup, Vm).
package machines

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/rs/zerolog/log"
)

// Variant names the specialization the extractor chose for a Machine, per
// the feature-matching table in spec §4.2. The extractor returns this enum
// tag rather than using interface dispatch for machine behavior, per the
// design note in spec §9 ("the calling code goes through the tag rather
// than virtual dispatch to permit inlining").
type Variant uint8

const (
	VariantVm Variant = iota
	VariantBlock
	VariantSortedWitnesses
	VariantDoubleSortedWitness16
	VariantDoubleSortedWitness32
	VariantWriteOnceMemory
	VariantFixedLookup
)

func (v Variant) String() string {
	switch v {
	case VariantVm:
		return "Vm"
	case VariantBlock:
		return "BlockMachine"
	case VariantSortedWitnesses:
		return "SortedWitnesses"
	case VariantDoubleSortedWitness16:
		return "DoubleSortedWitness16"
	case VariantDoubleSortedWitness32:
		return "DoubleSortedWitness32"
	case VariantWriteOnceMemory:
		return "WriteOnceMemory"
	case VariantFixedLookup:
		return "FixedLookup"
	default:
		return "unknown"
	}
}

// Part is the output of extraction for one machine: the columns and
// identities it owns, plus the metadata needed to pick a runtime
// implementation (blockSize/latchRow for BlockMachine, etc.).
type Part struct {
	Name       string
	Variant    Variant
	Columns    map[analyzed.PolyID]*analyzed.Column
	Identities []*analyzed.Identity

	// ProverFunctions are the hint-like closures attached at top level and
	// assigned to this machine because they reference one of its columns
	// (spec §4.2 "Prover-function attachment").
	ProverFunctions []*analyzed.Column

	// BlockSize and LatchRow are set only for VariantBlock.
	BlockSize uint64
	LatchRow  uint64

	// Publics lists the public declarations this machine's identities
	// reference (spec §4.2 "Publics tracking").
	Publics []string
}

// Extraction is the full result of running the extractor: the machines,
// the fixed-lookup connections that were not promoted to machines, and the
// leftover base ("Vm") machine.
type Extraction struct {
	Machines     []*Part
	FixedLookups []*analyzed.BusConnection
}

// Extract partitions an.Identities into machines following spec §4.2's
// algorithm.
func Extract(an *analyzed.Analyzed) (*Extraction, error) {
	ex := &extractorState{
		an:          an,
		assigned:    map[analyzed.PolyID]*Part{},
		claimed:     map[uint64]bool{},
		publicsUsed: map[string]string{},
	}
	return ex.run()
}

type extractorState struct {
	an          *analyzed.Analyzed
	assigned    map[analyzed.PolyID]*Part // witness column -> owning Part
	claimed     map[uint64]bool           // identity ID -> already placed
	publicsUsed map[string]string         // public name -> owning machine name
	result      Extraction
}

func (ex *extractorState) run() (*Extraction, error) {
	// Any connection whose right side is purely fixed columns becomes a
	// FixedLookup entry rather than a machine (spec §4.2).
	remaining := map[uint64]*analyzed.BusConnection{}
	for id, conn := range ex.an.BusConnections {
		if ex.isFixedLookup(conn) {
			ex.result.FixedLookups = append(ex.result.FixedLookups, conn)
			ex.claimReceiveFor(conn)
			continue
		}
		remaining[id] = conn
	}

	// Stable order: connections sorted by ID, so extraction is
	// deterministic (spec §5).
	var ids []uint64
	for id := range remaining {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		conn := remaining[id]
		seed := ex.unassignedRightColumns(conn)
		if len(seed) == 0 {
			continue // receiver already exists in some machine
		}
		part, err := ex.buildMachine(seed)
		if err != nil {
			return nil, err
		}
		ex.result.Machines = append(ex.result.Machines, part)
	}

	if err := ex.buildBaseMachine(); err != nil {
		return nil, err
	}

	if err := ex.attachProverFunctions(); err != nil {
		return nil, err
	}
	if err := ex.trackPublics(); err != nil {
		return nil, err
	}

	return &ex.result, nil
}

func (ex *extractorState) isFixedLookup(conn *analyzed.BusConnection) bool {
	for _, v := range conn.Right.Values {
		for _, ref := range analyzed.ColumnRefs(v) {
			if ref.PType != analyzed.Constant {
				return false
			}
		}
	}
	if conn.Right.Selector != nil {
		for _, ref := range analyzed.ColumnRefs(conn.Right.Selector) {
			if ref.PType != analyzed.Constant {
				return false
			}
		}
	}
	return true
}

func (ex *extractorState) claimReceiveFor(conn *analyzed.BusConnection) {
	for id, identity := range ex.identitiesOf(conn.ID) {
		if identity.Kind == analyzed.KindBusReceive {
			ex.claimed[id] = true
		}
	}
}

func (ex *extractorState) identitiesOf(interactionID uint64) map[uint64]*analyzed.Identity {
	out := map[uint64]*analyzed.Identity{}
	for _, id := range ex.an.Identities {
		if id.InteractionID == interactionID && (id.Kind == analyzed.KindBusSend || id.Kind == analyzed.KindBusReceive) {
			out[id.ID] = id
		}
	}
	return out
}

func (ex *extractorState) unassignedRightColumns(conn *analyzed.BusConnection) map[analyzed.PolyID]bool {
	out := map[analyzed.PolyID]bool{}
	for _, v := range conn.Right.Values {
		for _, ref := range analyzed.ColumnRefs(v) {
			if ref.PType == analyzed.Committed {
				if _, taken := ex.assigned[ref]; !taken {
					out[ref] = true
				}
			}
		}
	}
	return out
}

// buildMachine computes the row-connected closure starting from seed (spec
// §4.2's core algorithm) and collects the owning identities.
func (ex *extractorState) buildMachine(seed map[analyzed.PolyID]bool) (*Part, error) {
	closure := map[analyzed.PolyID]bool{}
	for k := range seed {
		closure[k] = true
	}

	changed := true
	for changed {
		changed = false
		for _, id := range ex.an.Identities {
			if ex.claimed[id.ID] {
				continue
			}
			switch id.Kind {
			case analyzed.KindPolynomial, analyzed.KindConnect:
				refs := analyzed.IdentityColumnRefs(id)
				if intersects(refs, closure) {
					for _, r := range refs {
						if r.PType == analyzed.Committed && !closure[r] {
							closure[r] = true
							changed = true
						}
					}
				}
			case analyzed.KindBusSend:
				// Lookups do not cross: only extend the closure with
				// other columns on the SAME (left) side.
				left := analyzed.LeftColumnRefs(id)
				if intersects(left, closure) {
					for _, r := range left {
						if r.PType == analyzed.Committed && !closure[r] {
							closure[r] = true
							changed = true
						}
					}
				}
			case analyzed.KindBusReceive:
				right := analyzed.RightColumnRefs(id)
				if intersects(right, closure) {
					for _, r := range right {
						if r.PType == analyzed.Committed && !closure[r] {
							closure[r] = true
							changed = true
						}
					}
				}
			}
		}
	}

	part := &Part{Columns: map[analyzed.PolyID]*analyzed.Column{}}
	for polyID := range closure {
		col := ex.findColumn(polyID)
		if col == nil {
			return nil, fmt.Errorf("extractor: no column found for %+v", polyID)
		}
		part.Columns[polyID] = col
		ex.assigned[polyID] = part
	}

	for _, id := range ex.an.Identities {
		if ex.claimed[id.ID] {
			continue
		}
		switch id.Kind {
		case analyzed.KindPolynomial, analyzed.KindConnect:
			refs := analyzed.IdentityColumnRefs(id)
			if allIn(refs, closure) {
				part.Identities = append(part.Identities, id)
				ex.claimed[id.ID] = true
			}
		case analyzed.KindBusSend:
			left := analyzed.LeftColumnRefs(id)
			if len(left) > 0 && allIn(left, closure) {
				part.Identities = append(part.Identities, id)
				ex.claimed[id.ID] = true
			}
		case analyzed.KindBusReceive:
			right := analyzed.RightColumnRefs(id)
			if len(right) > 0 && allIn(right, closure) {
				part.Identities = append(part.Identities, id)
				ex.claimed[id.ID] = true
			}
		}
	}

	part.Name = deriveName(part.Columns)
	selectVariant(part)
	return part, nil
}

// buildBaseMachine collects identities and witness columns not yet claimed
// by any machine into the base ("Vm") machine (spec §4.2).
func (ex *extractorState) buildBaseMachine() error {
	base := &Part{Name: "main", Variant: VariantVm, Columns: map[analyzed.PolyID]*analyzed.Column{}}

	for _, col := range ex.an.WitnessColumns() {
		if _, taken := ex.assigned[col.ID]; !taken {
			base.Columns[col.ID] = col
			ex.assigned[col.ID] = base
		}
	}
	for _, id := range ex.an.Identities {
		if !ex.claimed[id.ID] {
			base.Identities = append(base.Identities, id)
			ex.claimed[id.ID] = true
		}
	}

	if len(base.Columns) > 0 || len(base.Identities) > 0 {
		ex.result.Machines = append(ex.result.Machines, base)
	}
	return nil
}

// attachProverFunctions attaches each witness column's hint to the machine
// that owns that column. Other columns the hint references are not
// considered, and no warning is logged; a hinted column owned by no
// machine has its hint attached nowhere.
func (ex *extractorState) attachProverFunctions() error {
	for _, col := range ex.an.WitnessColumns() {
		if col.Hint == nil {
			continue
		}
		owner, ok := ex.assigned[col.ID]
		if !ok {
			continue
		}
		owner.ProverFunctions = append(owner.ProverFunctions, col)
	}
	return nil
}

// trackPublics implements spec §4.2: record which public declarations each
// machine's identities reference; a public referenced by more than one
// machine is a hard error.
func (ex *extractorState) trackPublics() error {
	publicColumns := map[string]string{} // column name -> public name
	for _, p := range ex.an.Publics {
		publicColumns[p.Column] = p.Name
	}
	if len(publicColumns) == 0 {
		return nil
	}

	for _, part := range ex.result.Machines {
		seen := map[string]bool{}
		for _, id := range part.Identities {
			for _, ref := range analyzed.IdentityColumnRefs(id) {
				col := part.Columns[ref]
				if col == nil {
					continue
				}
				if pubName, ok := publicColumns[col.Name]; ok && !seen[pubName] {
					seen[pubName] = true
					if owner, taken := ex.publicsUsed[pubName]; taken && owner != part.Name {
						return fmt.Errorf("public %q referenced by multiple machines: %q and %q",
							pubName, owner, part.Name)
					}
					ex.publicsUsed[pubName] = part.Name
					part.Publics = append(part.Publics, pubName)
				}
			}
		}
	}
	return nil
}

func intersects(refs []analyzed.PolyID, set map[analyzed.PolyID]bool) bool {
	for _, r := range refs {
		if r.PType == analyzed.Committed && set[r] {
			return true
		}
	}
	return false
}

func allIn(refs []analyzed.PolyID, set map[analyzed.PolyID]bool) bool {
	any := false
	for _, r := range refs {
		if r.PType != analyzed.Committed {
			continue
		}
		any = true
		if !set[r] {
			return false
		}
	}
	return any
}

func (ex *extractorState) findColumn(id analyzed.PolyID) *analyzed.Column {
	for _, c := range ex.an.WitnessColumns() {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ColumnByName finds a column owned by this machine by its fully
// qualified name, used by the witness generator's hint cell-reader
// callback (spec §7).
func (p *Part) ColumnByName(name string) (analyzed.PolyID, bool) {
	for id, col := range p.Columns {
		if col.Name == name {
			return id, true
		}
	}
	return analyzed.PolyID{}, false
}

// deriveName picks a human-readable machine name derived from the namespace
// of the closure's first column, by PolyID order (spec §4.2).
func deriveName(cols map[analyzed.PolyID]*analyzed.Column) string {
	var first *analyzed.Column
	for _, c := range cols {
		if first == nil || c.ID.ID < first.ID.ID {
			first = c
		}
	}
	if first == nil {
		return "unnamed"
	}
	if idx := strings.Index(first.Name, "::"); idx >= 0 {
		return first.Name[:idx]
	}
	return first.Name
}

// selectVariant chooses a Variant by feature matching, per spec §4.2's
// table. Detection order matters: more specific shapes are checked before
// the generic BlockMachine / Vm fallbacks.
func selectVariant(part *Part) {
	if isSortedWitnesses(part) {
		part.Variant = VariantSortedWitnesses
		return
	}
	if w, ok := isDoubleSortedWitness(part); ok {
		part.Variant = w
		return
	}
	if isWriteOnceMemory(part) {
		part.Variant = VariantWriteOnceMemory
		return
	}
	if b, latch, ok := detectBlockLatch(part); ok {
		part.Variant = VariantBlock
		part.BlockSize = b
		part.LatchRow = latch
		return
	}
	part.Variant = VariantVm
	log.Debug().Str("machine", part.Name).Msg("no specialized variant matched; running as Vm")
}
