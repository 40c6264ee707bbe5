package analyzed

import "github.com/ace-zkvm/ace/ast"

// SymbolEntry is one entry of Analyzed's symbol table: the Column
// declaration for that name, plus its original source Definition when one
// exists (intermediate columns and plain values keep theirs around for
// error messages and for the idempotence check in spec §8).
type SymbolEntry struct {
	Column     *Column
	Definition *ast.Definition
}

// IntermediateEntry records an intermediate column's inlined algebraic
// definition(s), keyed by name, matching spec §4's "a mapping from
// intermediate name to (Symbol, Vec<AlgebraicExpression>)".
type IntermediateEntry struct {
	Column *Column
	Exprs  []AlgebraicExpr
}

// Analyzed is the condenser's output contract (spec §4.1): the fully
// elaborated, field-agnostic constraint system plus enough bookkeeping for
// deterministic downstream iteration.
type Analyzed struct {
	// Symbols maps every declared name (committed/fixed column, constant,
	// function) to its entry.
	Symbols map[string]*SymbolEntry

	// Intermediates maps intermediate-column names to their inlined
	// definitions.
	Intermediates map[string]*IntermediateEntry

	// Identities is the canonical, condensed identity list, in the order
	// they were appended during evaluation (source order, spec §5
	// "Ordering guarantees").
	Identities []*Identity

	// BusConnections collects every lookup/permutation send/receive pair
	// produced by desugaring, keyed by InteractionID, for the machine
	// extractor (spec §4.2).
	BusConnections map[uint64]*BusConnection

	// Publics is the resolved list of public declarations.
	Publics []*ast.PublicDecl

	// SourceOrder is carried through unchanged from the input Program, for
	// any caller needing the original top-level statement order rather
	// than identity-append order.
	SourceOrder []ast.SourceItem

	// nextIdentityID and nextPolyID back the condenser's fresh-ID
	// allocators; kept here (rather than only in condenser.Condenser) so
	// that a partially-built Analyzed can be inspected mid-condensation by
	// tests.
	nextIdentityID uint64
	nextPolyID     map[PType]uint64
}

// New returns an empty Analyzed ready for the condenser to populate.
func New() *Analyzed {
	return &Analyzed{
		Symbols:        make(map[string]*SymbolEntry),
		Intermediates:  make(map[string]*IntermediateEntry),
		BusConnections: make(map[uint64]*BusConnection),
		nextPolyID:     make(map[PType]uint64),
	}
}

// AllocIdentityID returns a fresh, dense, monotonically increasing identity
// ID; ties between identities sharing a source row are broken by this ID
// per spec §5.
func (a *Analyzed) AllocIdentityID() uint64 {
	id := a.nextIdentityID
	a.nextIdentityID++
	return id
}

// AllocPolyID returns a fresh, dense PolyID for the given column kind. IDs
// are dense within each PType and stable across the pipeline once assigned
// (spec §3).
func (a *Analyzed) AllocPolyID(pt PType) PolyID {
	id := a.nextPolyID[pt]
	a.nextPolyID[pt]++
	return PolyID{ID: id, PType: pt}
}

// Column looks up a column by name.
func (a *Analyzed) Column(name string) (*Column, bool) {
	e, ok := a.Symbols[name]
	if !ok || e.Column == nil {
		return nil, false
	}
	return e.Column, true
}

// ColumnByID looks up a column by its PolyID rather than its name, for
// callers (e.g. the machine extractor's fixed-lookup tables) that only
// have algebraic references in hand.
func (a *Analyzed) ColumnByID(id PolyID) (*Column, bool) {
	for _, e := range a.Symbols {
		if e.Column != nil && e.Column.ID == id {
			return e.Column, true
		}
	}
	return nil, false
}

// WitnessColumns returns every Committed column in PolyID order, the order
// the witness generator must produce output columns in (spec §5 "Output
// columns appear in declaration order").
func (a *Analyzed) WitnessColumns() []*Column {
	return a.columnsOfType(Committed)
}

// FixedColumns returns every Constant column in PolyID order.
func (a *Analyzed) FixedColumns() []*Column {
	return a.columnsOfType(Constant)
}

func (a *Analyzed) columnsOfType(pt PType) []*Column {
	byID := make(map[uint64]*Column)
	var maxID uint64
	found := false
	for _, e := range a.Symbols {
		if e.Column == nil || e.Column.ID.PType != pt {
			continue
		}
		byID[e.Column.ID.ID] = e.Column
		if !found || e.Column.ID.ID > maxID {
			maxID = e.Column.ID.ID
			found = true
		}
	}
	if !found {
		return nil
	}
	out := make([]*Column, 0, len(byID))
	for i := uint64(0); i <= maxID; i++ {
		if c, ok := byID[i]; ok {
			out = append(out, c)
		}
	}
	return out
}
