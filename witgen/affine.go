package witgen

import (
	"errors"
	"fmt"

	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
)

// ErrNonlinear signals that an identity's expression could not be reduced
// to an affine combination of unknown cells (e.g. a product of two
// unknowns) -- the row filler treats this as "no progress this round" for
// the identity rather than a hard failure, since a later pass may have
// resolved one of the unknowns in the meantime.
var ErrNonlinear = errors.New("witgen: expression is not affine in its unknowns")

// affineExpr is `sum(coeff_i * unknown_i) + constant`, the normal form
// spec §4.3a's solving strategies all operate on.
type affineExpr struct {
	terms    map[cellKey]field.Element
	constant field.Element
}

func newAffineExpr(zero field.Element) *affineExpr {
	return &affineExpr{terms: map[cellKey]field.Element{}, constant: zero}
}

func (a *affineExpr) addConstant(v field.Element) {
	a.constant = a.constant.Add(v)
}

func (a *affineExpr) addTerm(k cellKey, coeff field.Element) {
	if coeff.IsZero() {
		return
	}
	if existing, ok := a.terms[k]; ok {
		sum := existing.Add(coeff)
		if sum.IsZero() {
			delete(a.terms, k)
		} else {
			a.terms[k] = sum
		}
		return
	}
	a.terms[k] = coeff
}

func (a *affineExpr) scale(c field.Element) *affineExpr {
	out := newAffineExpr(a.constant.Mul(c))
	for k, v := range a.terms {
		out.terms[k] = v.Mul(c)
	}
	return out
}

func (a *affineExpr) add(other *affineExpr) *affineExpr {
	out := newAffineExpr(a.constant.Add(other.constant))
	for k, v := range a.terms {
		out.terms[k] = v
	}
	for k, v := range other.terms {
		out.addTerm(k, v)
	}
	return out
}

// linearize evaluates expr at the given base row against s, substituting
// Known cells with their values and leaving not-yet-Known cells as affine
// unknowns. It returns ErrNonlinear if two unknowns are multiplied
// together.
func linearize(expr ast.AlgebraicExpr, row uint64, s *MutableState) (*affineExpr, error) {
	zero := s.Modulus.Zero()
	switch e := expr.(type) {
	case ast.AlgNumber:
		return &affineExpr{terms: map[cellKey]field.Element{}, constant: e.Value}, nil

	case ast.AlgColumnRef:
		r := row
		if e.Next {
			r = (row + 1) % s.rowModulus()
		}
		cell := s.Get(e.PolyID, r)
		if cell.Status == Known {
			return &affineExpr{terms: map[cellKey]field.Element{}, constant: cell.Value}, nil
		}
		a := newAffineExpr(zero)
		a.addTerm(s.key(e.PolyID, r), s.Modulus.One())
		return a, nil

	case ast.AlgPublic:
		v, ok := s.Publics[e.Name]
		if !ok {
			return nil, fmt.Errorf("public %q not yet available", e.Name)
		}
		return &affineExpr{terms: map[cellKey]field.Element{}, constant: v}, nil

	case ast.AlgChallenge:
		v, ok := s.Challenges[e.ID]
		if !ok {
			return nil, fmt.Errorf("challenge %d not yet drawn", e.ID)
		}
		return &affineExpr{terms: map[cellKey]field.Element{}, constant: v}, nil

	case ast.AlgNeg:
		inner, err := linearize(e.Inner, row, s)
		if err != nil {
			return nil, err
		}
		return inner.scale(s.Modulus.FromInt64(-1)), nil

	case ast.AlgBinOp:
		left, err := linearize(e.Left, row, s)
		if err != nil {
			return nil, err
		}
		right, err := linearize(e.Right, row, s)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case ast.AlgAdd:
			return left.add(right), nil
		case ast.AlgSub:
			return left.add(right.scale(s.Modulus.FromInt64(-1))), nil
		case ast.AlgMul:
			return mulAffine(left, right, s)
		case ast.AlgPow:
			return powAffine(left, right, s)
		}
	}
	return nil, fmt.Errorf("witgen: unsupported expression node %T", expr)
}

func mulAffine(left, right *affineExpr, s *MutableState) (*affineExpr, error) {
	if len(left.terms) > 0 && len(right.terms) > 0 {
		return nil, ErrNonlinear
	}
	if len(left.terms) == 0 {
		return right.scale(left.constant), nil
	}
	return left.scale(right.constant), nil
}

func powAffine(base, exp *affineExpr, s *MutableState) (*affineExpr, error) {
	if len(base.terms) > 0 {
		return nil, ErrNonlinear
	}
	if len(exp.terms) > 0 {
		return nil, ErrNonlinear
	}
	result := s.Modulus.One()
	v := base.constant
	e := exp.constant.Uint64()
	for i := uint64(0); i < e; i++ {
		result = result.Mul(v)
	}
	return &affineExpr{terms: map[cellKey]field.Element{}, constant: result}, nil
}

// solveStep applies spec §4.3a's strategies, in order, to one affine
// expression that must equal zero. It returns the set of cell assignments
// it could derive, or (nil, false, nil) if no strategy applies yet.
func solveStep(a *affineExpr, s *MutableState) (map[cellKey]field.Element, bool, error) {
	switch len(a.terms) {
	case 0:
		// Strategy: Constant. No unknowns left; the identity must already
		// hold.
		if !a.constant.IsZero() {
			return nil, false, fmt.Errorf("witgen: identity violated, residual %s", a.constant.String())
		}
		return map[cellKey]field.Element{}, true, nil

	case 1:
		// Strategy: Single-unknown. coeff*x + constant = 0 => x =
		// -constant/coeff.
		for k, coeff := range a.terms {
			invCoeff, err := safeInverse(coeff)
			if err != nil {
				return nil, false, err
			}
			x := a.constant.Mul(invCoeff).Mul(s.Modulus.FromInt64(-1))
			return map[cellKey]field.Element{k: x}, true, nil
		}
	}
	return nil, false, nil
}

func safeInverse(v field.Element) (field.Element, error) {
	if v.IsZero() {
		return v, fmt.Errorf("witgen: cannot invert zero coefficient")
	}
	return v.Inverse(), nil
}
