package jit

import (
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/machines"
	"github.com/bits-and-blooms/bitset"
)

// maxBranchDepth bounds recursive bisection; the branching example in
// spec §4.4/§9 is a single two-way split (an `(x-0)*(x-1)=0` gate), and
// nothing in the corpus needs deeper trees, so this is a generous but
// finite backstop against a pathological identity set.
const maxBranchDepth = 8

// CanProcess answers whether the machine that owns interactionID can
// generate code for the given known-bits pattern -- spec §4.4's
// `can_process` callback, used to decide whether a cross-machine
// MachineCall effect can be emitted instead of falling back to Branch or
// stalling.
type CanProcess func(interactionID uint64, knownBits *bitset.BitSet) bool

// WitgenInference is spec §4.4's per-call codegen state: which Variables
// are known so far, their range constraints, and the Effect stream built
// up as the fixed-point loop makes progress.
type WitgenInference struct {
	part       *machines.Part
	modulus    *field.Modulus
	canProcess CanProcess

	known      map[Variable]bool
	ranges     map[Variable]RangeConstraint
	// pinned holds variables a branch has fixed to one concrete root, so
	// that identities multiplying a pinned variable against an unknown
	// one (e.g. the indicator-polynomial idiom for piecewise definitions)
	// become linear within that branch (spec §4.4's bisection recipe).
	pinned     map[Variable]field.Element
	effects    []Effect
	publics    map[string]field.Element
	challenges map[uint64]field.Element

	nextLocalID int
	depth       int
}

func newWitgenInference(part *machines.Part, modulus *field.Modulus, canProcess CanProcess, depth int) *WitgenInference {
	return &WitgenInference{
		part:       part,
		modulus:    modulus,
		canProcess: canProcess,
		known:      map[Variable]bool{},
		ranges:     map[Variable]RangeConstraint{},
		pinned:     map[Variable]field.Element{},
		publics:    map[string]field.Element{},
		challenges: map[uint64]field.Element{},
		depth:      depth,
	}
}

func (inf *WitgenInference) publicValue(name string) field.Element {
	if v, ok := inf.publics[name]; ok {
		return v
	}
	return inf.modulus.Zero()
}

func (inf *WitgenInference) challengeValue(id uint64) field.Element {
	if v, ok := inf.challenges[id]; ok {
		return v
	}
	return inf.modulus.Zero()
}

func (inf *WitgenInference) newLocal() Variable {
	v := local(inf.nextLocalID)
	inf.nextLocalID++
	return v
}

func (inf *WitgenInference) emit(e Effect) { inf.effects = append(inf.effects, e) }

func (inf *WitgenInference) clone() *WitgenInference {
	c := newWitgenInference(inf.part, inf.modulus, inf.canProcess, inf.depth)
	for k, v := range inf.known {
		c.known[k] = v
	}
	for k, v := range inf.ranges {
		c.ranges[k] = v
	}
	for k, v := range inf.pinned {
		c.pinned[k] = v
	}
	c.nextLocalID = inf.nextLocalID
	return c
}

// GenerateCode implements spec §4.4's `generate_code(can_process,
// identity_id, known_args)`: given a BlockMachine and which formal
// parameters of one of its bus connections are known inputs, produce the
// Effect vector that computes the remaining (output) parameters.
func GenerateCode(part *machines.Part, conn *analyzed.BusConnection, modulus *field.Modulus, knownArgs *bitset.BitSet, canProcess CanProcess) ([]Effect, error) {
	inf := newWitgenInference(part, modulus, canProcess, 0)

	for i, formal := range conn.Right.Values {
		if !knownArgs.Test(uint(i)) {
			continue
		}
		sym, err := inf.linearizeSymbolic(formal, 0)
		if err != nil {
			return nil, fmt.Errorf("jit: parameter %d is not a plain column reference: %w", i, err)
		}
		if len(sym.Terms) != 1 || !sym.Constant.IsZero() {
			return nil, fmt.Errorf("jit: parameter %d must be a bare column reference", i)
		}
		for target := range sym.Terms {
			inf.emit(Assignment{Target: target, Expr: varSym(Param(i), modulus)})
			inf.known[target] = true
		}
	}

	if err := inf.run(); err != nil {
		return nil, err
	}
	return inf.effects, nil
}

// run drives the fixed-point loop over rows [-1, B+1) described in spec
// §4.4, falling back to root-pattern branch bisection when no identity
// can make further progress.
func (inf *WitgenInference) run() error {
	blockSize := int(inf.part.BlockSize)
	if blockSize == 0 {
		blockSize = 1
	}

	stalled := true
	for round := 0; round < blockSize*4+16; round++ {
		progressed := false
		for row := -1; row < blockSize+1; row++ {
			for _, id := range inf.part.Identities {
				ok, err := inf.tryIdentity(id, row)
				if err != nil {
					return err
				}
				progressed = progressed || ok
			}
		}
		if !progressed {
			stalled = true
			break
		}
		stalled = false
	}
	if !stalled {
		return nil
	}

	// A stall after every block cell is known is completion, not a dead end.
	complete := true
	for col := range inf.part.Columns {
		for row := 0; row < blockSize; row++ {
			if !inf.known[Cell(col, row)] {
				complete = false
			}
		}
	}
	if complete {
		return nil
	}

	if inf.depth >= maxBranchDepth {
		return fmt.Errorf("jit: reached max branch depth (%d) without resolving all outputs", maxBranchDepth)
	}
	return inf.branchOnRootPattern()
}

// tryIdentity attempts one identity at one row via the same strategies as
// witgen's eager solver (Constant, Single-unknown), symbolically: a
// resolvable identity becomes an Assignment effect instead of a concrete
// value (spec §4.4).
func (inf *WitgenInference) tryIdentity(id *analyzed.Identity, row int) (bool, error) {
	switch id.Kind {
	case analyzed.KindPolynomial:
		return inf.trySolvePolynomial(id.Expr, row)
	case analyzed.KindBusSend:
		return inf.tryMachineCall(id, row)
	default:
		return false, nil
	}
}

func (inf *WitgenInference) trySolvePolynomial(expr ast.AlgebraicExpr, row int) (bool, error) {
	sym, err := inf.linearizeSymbolic(expr, row)
	if err != nil {
		if err == ErrNonlinearSymbolic {
			return false, nil
		}
		return false, err
	}

	unknownVar, unknownCount := inf.singleUnknown(sym)
	switch unknownCount {
	case 0:
		// Every variable in the expression is already known; the
		// identity is assumed satisfied by construction (the underlying
		// constraint system enforces it independently of codegen).
		return false, nil
	case 1:
		rhs := isolate(sym, unknownVar, inf.modulus)
		inf.emit(Assignment{Target: unknownVar, Expr: rhs})
		inf.known[unknownVar] = true
		return true, nil
	default:
		return false, nil
	}
}

func (inf *WitgenInference) singleUnknown(sym *SymExpr) (Variable, int) {
	var found Variable
	count := 0
	for v := range sym.Terms {
		if inf.known[v] {
			continue
		}
		found = v
		count++
	}
	return found, count
}

// isolate solves `coeff*target + rest = 0` for target, returning `rest' =
// -rest/coeff` as a SymExpr over the remaining (known) variables.
func isolate(sym *SymExpr, target Variable, m *field.Modulus) *SymExpr {
	coeff := sym.Terms[target]
	rest := &SymExpr{Terms: map[Variable]field.Element{}, Constant: sym.Constant}
	for v, c := range sym.Terms {
		if v == target {
			continue
		}
		rest.Terms[v] = c
	}
	invCoeff := coeff.Inverse()
	return rest.scale(invCoeff.Mul(m.FromInt64(-1)))
}

// tryMachineCall implements spec §4.4's cross-machine dispatch: once a
// send identity's selector is the constant one, record which of its tuple
// values are fully known as a known-bits pattern and ask the receiver
// whether it can process that pattern; if so, emit a MachineCall and mark
// its variables known.
func (inf *WitgenInference) tryMachineCall(id *analyzed.Identity, row int) (bool, error) {
	if inf.canProcess == nil {
		return false, nil
	}
	if id.Tuple.Selector != nil {
		sel, err := inf.linearizeSymbolic(id.Tuple.Selector, row)
		if err != nil || !inf.fullyKnown(sel) || !sel.Constant.Equal(inf.modulus.One()) {
			return false, nil
		}
	}

	knownBits := bitset.New(uint(len(id.Tuple.Values)))
	vars := make([]Variable, len(id.Tuple.Values))
	for i, v := range id.Tuple.Values {
		sym, err := inf.linearizeSymbolic(v, row)
		if err != nil {
			return false, nil
		}
		if len(sym.Terms) == 1 && sym.Constant.IsZero() {
			for target := range sym.Terms {
				vars[i] = target
			}
		} else {
			vars[i] = inf.newLocal()
		}
		if inf.fullyKnown(sym) {
			knownBits.Set(uint(i))
		}
	}

	if !inf.canProcess(id.InteractionID, knownBits) {
		return false, nil
	}

	inf.emit(MachineCall{IdentityID: id.ID, KnownBits: knownBits, Vars: vars})
	progressed := false
	for i, v := range vars {
		if !knownBits.Test(uint(i)) && !inf.known[v] {
			inf.known[v] = true
			progressed = true
		}
	}
	return progressed, nil
}

func (inf *WitgenInference) fullyKnown(sym *SymExpr) bool {
	for v := range sym.Terms {
		if !inf.known[v] {
			return false
		}
	}
	return true
}

// branchOnRootPattern implements spec §9's bisection recipe for the
// common case a polynomial identity pins a variable to one of a small,
// explicit set of roots (e.g. `(x-0)*(x-1)=0`): find such an identity on
// a not-yet-known variable and recurse once per root, producing
// Effect::Branch in tail position (no merge step, per the resolved Open
// Question).
func (inf *WitgenInference) branchOnRootPattern() error {
	for _, id := range inf.part.Identities {
		if id.Kind != analyzed.KindPolynomial {
			continue
		}
		for row := -1; row < int(inf.part.BlockSize)+1; row++ {
			v, roots, ok := detectRootPattern(id.Expr, row, inf)
			// Only a variable already known (typically a formal
			// parameter) makes a valid runtime branch condition: the
			// interpreter needs its concrete value to pick Hi or Lo
			// (spec §8 test 5, "x known, y unknown").
			if !ok || !inf.known[v] {
				continue
			}
			if _, alreadyPinned := inf.pinned[v]; alreadyPinned {
				continue
			}
			return inf.emitBranch(v, roots)
		}
	}
	return fmt.Errorf("jit: stalled, no progress and no recognizable branch pattern")
}

func (inf *WitgenInference) emitBranch(v Variable, roots []field.Element) error {
	if len(roots) != 2 {
		return fmt.Errorf("jit: branch bisection only supports two-way splits, got %d roots", len(roots))
	}

	lo := inf.clone()
	lo.depth = inf.depth + 1
	lo.pinned[v] = roots[0]
	if err := lo.run(); err != nil {
		return err
	}

	hi := inf.clone()
	hi.depth = inf.depth + 1
	hi.pinned[v] = roots[1]
	if err := hi.run(); err != nil {
		return err
	}

	inf.emit(Branch{Condition: v, Hi: hi.effects, Lo: lo.effects})
	for k := range hi.known {
		inf.known[k] = true
	}
	return nil
}

// detectRootPattern matches `(X - c0) * (X - c1) = 0` for a single
// not-yet-known column variable X and two distinct known constants.
func detectRootPattern(expr ast.AlgebraicExpr, row int, inf *WitgenInference) (Variable, []field.Element, bool) {
	bin, ok := expr.(ast.AlgBinOp)
	if !ok || bin.Op != ast.AlgMul {
		return Variable{}, nil, false
	}
	v0, c0, ok0 := factorRoot(bin.Left, row, inf)
	v1, c1, ok1 := factorRoot(bin.Right, row, inf)
	if !ok0 || !ok1 || v0 != v1 || c0.Equal(c1) {
		return Variable{}, nil, false
	}
	return v0, []field.Element{c0, c1}, true
}

// factorRoot matches `X - c` (a variable minus a known constant).
func factorRoot(expr ast.AlgebraicExpr, row int, inf *WitgenInference) (Variable, field.Element, bool) {
	bin, ok := expr.(ast.AlgBinOp)
	if !ok || bin.Op != ast.AlgSub {
		return Variable{}, field.Element{}, false
	}
	sym, err := inf.linearizeSymbolic(bin, row)
	if err != nil || len(sym.Terms) != 1 {
		return Variable{}, field.Element{}, false
	}
	for v, coeff := range sym.Terms {
		if !coeff.Equal(inf.modulus.One()) {
			return Variable{}, field.Element{}, false
		}
		return v, sym.Constant.Mul(inf.modulus.FromInt64(-1)), true
	}
	return Variable{}, field.Element{}, false
}
