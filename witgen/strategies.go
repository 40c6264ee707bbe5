package witgen

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
)

func errRangeDecompositionViolated(residual *big.Int, width uint) error {
	return fmt.Errorf("witgen: range-decomposition residual %s exceeds %d-bit total width", residual.String(), width)
}

// solveIdentityRow attempts every strategy spec §4.3a lists, in order, for
// one KindPolynomial identity at one row. It returns the assignments it
// could derive and whether it made progress; a false with a nil error
// means "try again once other identities have made progress this round".
func solveIdentityRow(id *analyzed.Identity, row uint64, s *MutableState) (map[cellKey]field.Element, bool, error) {
	a, err := linearize(id.Expr, row, s)
	if err != nil {
		if !errors.Is(err, ErrNonlinear) {
			return nil, false, err
		}
		// A genuine product of two not-yet-known cells: none of the
		// structural strategies below operate on raw nonlinear terms, but
		// constraint-transfer only needs the identity's top-level shape.
		if assigns, ok := tryConstraintTransfer(id.Expr, row, s); ok {
			return assigns, true, nil
		}
		return nil, false, nil
	}

	// Strategy: Constant / Single-unknown, via the general affine path.
	assigns, ok, err := solveStep(a, s)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return assigns, true, nil
	}

	// More than one unknown remains but the expression is still affine:
	// try the structural strategies that can resolve several cells at
	// once from the same equation.
	if assigns, ok, err := tryDivisionPattern(a, s); err != nil || ok {
		return assigns, ok, err
	}
	if assigns, ok, err := tryRangeDecomposition(a, s); err != nil || ok {
		return assigns, ok, err
	}
	if assigns, ok := tryConstraintTransfer(id.Expr, row, s); ok {
		return assigns, true, nil
	}
	return nil, false, nil
}

// tryDivisionPattern implements spec §4.3a's "Division-pattern" strategy:
// an affine equation of the shape `d*q + r - n = 0` (the PIL idiom for
// `q, r = n / d, n % d`), where n is already known (folded into the
// constant by linearize), d is a known constant, q is the unknown
// quotient, and r is a remainder column range-constrained to less than d.
// Euclidean division of n by d is the unique solution and is computed
// directly rather than waiting for q or r to resolve first.
func tryDivisionPattern(a *affineExpr, s *MutableState) (map[cellKey]field.Element, bool, error) {
	if len(a.terms) != 2 {
		return nil, false, nil
	}
	type term struct {
		key   cellKey
		coeff field.Element
	}
	terms := make([]term, 0, 2)
	for k, c := range a.terms {
		terms = append(terms, term{k, c})
	}

	one := s.Modulus.One()
	negOne := one.Neg()

	for i := 0; i < 2; i++ {
		q, r := terms[i], terms[1-i]
		if !(r.coeff.Equal(one) || r.coeff.Equal(negOne)) {
			continue
		}
		rCell := s.Get(r.key.col, r.key.row)
		if rCell.Status != RangeConstrained {
			continue
		}
		_, rMax := rCell.Range.Bounds()
		if rMax == nil {
			continue
		}

		// Normalize the divisor by the remainder's unit coefficient: if r
		// appears as -r, q's coefficient is likewise negated, so dividing
		// it out recovers the true (positive) divisor.
		d := q.coeff.Mul(r.coeff)
		dBig := d.BigInt()
		if dBig.Sign() <= 0 || rMax.Cmp(dBig) >= 0 {
			// Either not a well-formed positive divisor, or the
			// remainder's declared bound doesn't fit under it -- floor
			// division wouldn't be the unique solution here.
			continue
		}

		// sum(terms) + constant = 0, and coeff_q = d * r.coeff (r.coeff is
		// its own inverse), so n = d*q + r = r.coeff * -constant.
		n := a.constant.Neg().Mul(r.coeff).BigInt()
		qVal := new(big.Int)
		rVal := new(big.Int)
		qVal.DivMod(n, dBig, rVal)

		return map[cellKey]field.Element{
			q.key: s.Modulus.FromBigInt(qVal),
			r.key: s.Modulus.FromBigInt(rVal),
		}, true, nil
	}
	return nil, false, nil
}

// tryRangeDecomposition implements spec §4.3a's "Bit-decomposition"
// strategy in its general, multi-unknown form: every unknown term in the
// affine equation is range-constrained to its own power-of-two-sized,
// non-overlapping slice of bits (as in `col a0, a1, a2` each byte-range-
// checked and combined via `a = a0 + 256*a1 + 65536*a2`), so the whole
// decomposition is read off the shared target in one pass -- it does not
// require all but one of the limbs to already be known.
func tryRangeDecomposition(a *affineExpr, s *MutableState) (map[cellKey]field.Element, bool, error) {
	if len(a.terms) == 0 {
		return nil, false, nil
	}

	type limb struct {
		key   cellKey
		shift uint
		width uint
	}
	limbs := make([]limb, 0, len(a.terms))
	allNeg := false
	signSet := false
	for k, coeff := range a.terms {
		cell := s.Get(k.col, k.row)
		if cell.Status != RangeConstrained {
			return nil, false, nil
		}
		shift, neg, ok := powerOfTwoShift(coeff)
		if !ok {
			return nil, false, nil
		}
		if !signSet {
			allNeg, signSet = neg, true
		} else if neg != allNeg {
			// The limbs must all carry the same sign (the whole sum is
			// either added to or subtracted from the target as one unit);
			// a mix means this isn't the decomposition idiom.
			return nil, false, nil
		}
		_, max := cell.Range.Bounds()
		if max == nil {
			return nil, false, nil
		}
		limbs = append(limbs, limb{key: k, shift: shift, width: uint(max.BitLen())})
	}

	sort.Slice(limbs, func(i, j int) bool { return limbs[i].shift < limbs[j].shift })
	expected := uint(0)
	for _, l := range limbs {
		if l.shift != expected {
			// A gap or an overlap between limbs: not a clean disjoint
			// partition of the bits, so this isn't (yet) solvable as a
			// single decomposition.
			return nil, false, nil
		}
		expected += l.width
	}
	totalWidth := expected

	// sum(terms) + constant = 0 with every term carrying the same sign s
	// (s = -1 when the limbs were written as `known - decomposition`, +1
	// when written the other way around) means the decomposed value is
	// s * -constant.
	decomposed := a.constant.Neg()
	if allNeg {
		decomposed = decomposed.Neg()
	}
	target := decomposed.BigInt()
	if uint(target.BitLen()) > totalWidth {
		return nil, false, errRangeDecompositionViolated(target, totalWidth)
	}

	assigns := make(map[cellKey]field.Element, len(limbs))
	for _, l := range limbs {
		mask := new(big.Int).Lsh(big.NewInt(1), l.width)
		mask.Sub(mask, big.NewInt(1))
		v := new(big.Int).Rsh(target, l.shift)
		v.And(v, mask)
		assigns[l.key] = s.Modulus.FromBigInt(v)
	}
	return assigns, true, nil
}

// powerOfTwoShift reports the shift s such that coeff == 2^s (neg false)
// or coeff == -2^s (neg true). Field elements are always canonically
// non-negative, so a "negative" coefficient (the common case when a limb
// sum is subtracted from a known total) is detected by negating first.
func powerOfTwoShift(coeff field.Element) (shift uint, neg bool, ok bool) {
	if s, ok := exactPowerOfTwo(coeff.BigInt()); ok {
		return s, false, true
	}
	if s, ok := exactPowerOfTwo(coeff.Neg().BigInt()); ok {
		return s, true, true
	}
	return 0, false, false
}

func exactPowerOfTwo(v *big.Int) (uint, bool) {
	if v.Sign() <= 0 {
		return 0, false
	}
	if new(big.Int).And(v, new(big.Int).Sub(v, big.NewInt(1))).Sign() != 0 {
		return 0, false
	}
	return uint(v.BitLen() - 1), true
}

// tryConstraintTransfer matches a direct copy constraint `a - b = 0` (or
// `a = b` desugared the same way) where one side is Known or
// RangeConstrained and the other is Unknown, propagating the tighter
// status across (spec §4.3a "Constraint-transfer").
func tryConstraintTransfer(expr ast.AlgebraicExpr, row uint64, s *MutableState) (map[cellKey]field.Element, bool) {
	bin, ok := expr.(ast.AlgBinOp)
	if !ok || bin.Op != ast.AlgSub {
		return nil, false
	}
	leftRef, lok := bin.Left.(ast.AlgColumnRef)
	rightRef, rok := bin.Right.(ast.AlgColumnRef)
	if !lok || !rok {
		return nil, false
	}
	lr := row
	if leftRef.Next {
		lr = (row + 1) % s.rowModulus()
	}
	rr := row
	if rightRef.Next {
		rr = (row + 1) % s.rowModulus()
	}
	left := s.Get(leftRef.PolyID, lr)
	right := s.Get(rightRef.PolyID, rr)

	switch {
	case left.Status == Known && right.Status != Known:
		return map[cellKey]field.Element{s.key(rightRef.PolyID, rr): left.Value}, true
	case right.Status == Known && left.Status != Known:
		return map[cellKey]field.Element{s.key(leftRef.PolyID, lr): right.Value}, true
	case left.Status == RangeConstrained && right.Status == Unknown:
		s.SetRange(rightRef.PolyID, rr, left.Range)
		return map[cellKey]field.Element{}, true
	case right.Status == RangeConstrained && left.Status == Unknown:
		s.SetRange(leftRef.PolyID, lr, right.Range)
		return map[cellKey]field.Element{}, true
	}
	return nil, false
}
