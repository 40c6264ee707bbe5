// Package witgen implements spec §4.3: the witness generator that fills in
// committed-column values row by row (or block by block) by propagating
// Known / RangeConstrained / Unknown cell statuses to a fixed point.
package witgen

import (
	"context"
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/hint"
	"github.com/ace-zkvm/ace/machines"
	"github.com/rs/zerolog"
)

// CellStatus is the three-valued lattice spec §4.3 assigns to every cell
// during witness generation.
type CellStatus uint8

const (
	Unknown CellStatus = iota
	RangeConstrained
	Known
)

// Cell is one committed column's value at one row, together with its
// current status.
type Cell struct {
	Status CellStatus
	Value  field.Element
	Range  RangeConstraint
}

type cellKey struct {
	col analyzed.PolyID
	row uint64
}

// MutableState is the per-machine mutable witness-generation context spec
// §4.3 calls the "MutableState bundle": the grid of cells owned by one
// machine, the fixed columns it reads, its publics, and the callbacks it
// needs to reach into the rest of the system (queries, cross-machine
// lookups, the next-stage challenge/witness barrier).
type MutableState struct {
	Part     *machines.Part
	Modulus  *field.Modulus
	Degree   uint64
	Log      zerolog.Logger

	cells map[cellKey]*Cell

	// Publics holds the public values assigned to this machine, populated
	// before generation starts (spec §4.2 "Publics tracking").
	Publics map[string]field.Element

	// Query answers prover queries a hint closure issues (spec §7).
	Query hint.QueryCallback

	// Challenges holds verifier challenges drawn for later proving stages,
	// keyed by challenge ID (spec §6's staged-witness/challenge model).
	Challenges map[uint64]field.Element

	// MachineCall dispatches a bus send to whichever machine receives it,
	// returning the receiver's resolved tuple values (spec §4.3's
	// "MachineCall" effect and its role in cross-machine solving).
	MachineCall func(ctx context.Context, interactionID uint64, args []field.Element) ([]field.Element, error)

	// NextStageWitness implements spec §6's "next_stage_witness" callback:
	// once this machine's prior-stage columns are fully known, later-stage
	// columns (e.g. ones depending on a verifier challenge) may be
	// requested.
	NextStageWitness func(stage uint32) error
}

// NewMutableState allocates an all-Unknown cell grid for part, sized to
// part.Columns x the machine's degree (block machines use BlockSize rows
// per instance at generation time instead; see BlockSize on Part).
func NewMutableState(part *machines.Part, modulus *field.Modulus, degree uint64, log zerolog.Logger) *MutableState {
	return &MutableState{
		Part:    part,
		Modulus: modulus,
		Degree:  degree,
		Log:     log,
		cells:      make(map[cellKey]*Cell),
		Publics:    make(map[string]field.Element),
		Challenges: make(map[uint64]field.Element),
	}
}

func (s *MutableState) key(col analyzed.PolyID, row uint64) cellKey {
	return cellKey{col: col, row: row % s.rowModulus()}
}

func (s *MutableState) rowModulus() uint64 {
	if s.Part.Variant == machines.VariantBlock && s.Part.BlockSize > 0 {
		return s.Part.BlockSize
	}
	return s.Degree
}

// Get returns the current cell at (col, row), defaulting to Unknown.
func (s *MutableState) Get(col analyzed.PolyID, row uint64) Cell {
	if c, ok := s.cells[s.key(col, row)]; ok {
		return *c
	}
	return Cell{Status: Unknown}
}

// SetKnown records a fully-determined value, erroring if a conflicting
// value was already known there. This is also where a solver-derived value
// that conflicts with an external witness value surfaces, at the moment
// the conflict is detected -- see SetKnownExternal.
func (s *MutableState) SetKnown(col analyzed.PolyID, row uint64, v field.Element) error {
	k := s.key(col, row)
	if existing, ok := s.cells[k]; ok && existing.Status == Known {
		if !existing.Value.Equal(v) {
			return fmt.Errorf("conflicting values for column %+v row %d: %s vs %s",
				col, row, existing.Value.String(), v.String())
		}
		return nil
	}
	s.cells[k] = &Cell{Status: Known, Value: v}
	return nil
}

// SetKnownExternal records a value supplied from outside the solver (an
// already-fixed witness column, or a value another machine produced). Per
// the resolved Open Question in spec §9, external values are accepted
// as-is; SetKnown's consistency check still fires if the solver later
// derives a conflicting value for the same cell, surfacing the conflict at
// the point of detection rather than rejecting the external value up
// front.
func (s *MutableState) SetKnownExternal(col analyzed.PolyID, row uint64, v field.Element) {
	s.cells[s.key(col, row)] = &Cell{Status: Known, Value: v}
}

// SetRange narrows a cell's range constraint, intersecting with whatever
// was already known (spec §4.3a monotonicity: range constraints only ever
// tighten, never loosen).
func (s *MutableState) SetRange(col analyzed.PolyID, row uint64, rc RangeConstraint) {
	k := s.key(col, row)
	existing, ok := s.cells[k]
	if !ok {
		s.cells[k] = &Cell{Status: RangeConstrained, Range: rc}
		return
	}
	if existing.Status == Known {
		return
	}
	existing.Status = RangeConstrained
	existing.Range = existing.Range.Intersect(rc)
}

// AllKnown reports whether every cell owned by the machine has status
// Known, the termination condition for the fixed-point loop (spec §4.3).
func (s *MutableState) AllKnown() bool {
	rows := s.rowModulus()
	for polyID := range s.Part.Columns {
		for row := uint64(0); row < rows; row++ {
			if s.Get(polyID, row).Status != Known {
				return false
			}
		}
	}
	return true
}

// UnknownCells lists every cell still not Known, for diagnostics when the
// fixed point stalls (spec §4.3 edge case: no progress possible).
func (s *MutableState) UnknownCells() []cellKey {
	var out []cellKey
	rows := s.rowModulus()
	for polyID := range s.Part.Columns {
		for row := uint64(0); row < rows; row++ {
			if s.Get(polyID, row).Status != Known {
				out = append(out, cellKey{col: polyID, row: row})
			}
		}
	}
	return out
}
