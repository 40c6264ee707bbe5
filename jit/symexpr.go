package jit

import (
	"fmt"
	"sort"

	"github.com/ace-zkvm/ace/ast"
	"github.com/ace-zkvm/ace/field"
)

// SymExpr is spec §4.4's "AffineSymbolicExpression": an affine combination
// of SymbolicExpressions over Variables, i.e. sum(coeff_i * var_i) +
// constant, kept entirely symbolic (no MutableState, no concrete cell
// values) so it can be flattened to RPN and reused across every
// invocation of a cached effect stream.
type SymExpr struct {
	Terms    map[Variable]field.Element
	Constant field.Element
}

func newSymExpr(zero field.Element) *SymExpr {
	return &SymExpr{Terms: map[Variable]field.Element{}, Constant: zero}
}

func constSym(v field.Element) *SymExpr {
	return &SymExpr{Terms: map[Variable]field.Element{}, Constant: v}
}

func varSym(v Variable, m *field.Modulus) *SymExpr {
	return &SymExpr{Terms: map[Variable]field.Element{v: m.One()}, Constant: m.Zero()}
}

func (a *SymExpr) addTerm(v Variable, coeff field.Element) {
	if coeff.IsZero() {
		return
	}
	if existing, ok := a.Terms[v]; ok {
		sum := existing.Add(coeff)
		if sum.IsZero() {
			delete(a.Terms, v)
		} else {
			a.Terms[v] = sum
		}
		return
	}
	a.Terms[v] = coeff
}

func (a *SymExpr) add(b *SymExpr) *SymExpr {
	out := &SymExpr{Terms: map[Variable]field.Element{}, Constant: a.Constant.Add(b.Constant)}
	for v, c := range a.Terms {
		out.Terms[v] = c
	}
	for v, c := range b.Terms {
		out.addTerm(v, c)
	}
	return out
}

func (a *SymExpr) scale(c field.Element) *SymExpr {
	out := &SymExpr{Terms: map[Variable]field.Element{}, Constant: a.Constant.Mul(c)}
	for v, coeff := range a.Terms {
		out.Terms[v] = coeff.Mul(c)
	}
	return out
}

// neg, for the unknowns-isolation step: -a.
func (a *SymExpr) neg(minusOne field.Element) *SymExpr {
	return a.scale(minusOne)
}

// sortedVars returns a's variables in a deterministic order, for RPN
// flattening (map iteration order is not stable, and the compiled effect
// stream must be byte-identical across runs -- spec §8 determinism).
func (a *SymExpr) sortedVars() []Variable {
	out := make([]Variable, 0, len(a.Terms))
	for v := range a.Terms {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		vi, vj := out[i], out[j]
		if vi.Kind != vj.Kind {
			return vi.Kind < vj.Kind
		}
		if vi.Kind == VarCell {
			if vi.Col.PType != vj.Col.PType {
				return vi.Col.PType < vj.Col.PType
			}
			if vi.Col.ID != vj.Col.ID {
				return vi.Col.ID < vj.Col.ID
			}
			return vi.RowOffset < vj.RowOffset
		}
		return vi.Index < vj.Index
	})
	return out
}

// linearizeSymbolic mirrors witgen's linearize, but over Variables instead
// of concrete MutableState cells: every column reference becomes a
// Variable atom regardless of whether the inference has marked it known,
// since "known" here only means "may appear on the right-hand side of an
// assignment", not "has a concrete value yet" (spec §4.4).
func (inf *WitgenInference) linearizeSymbolic(expr ast.AlgebraicExpr, rowOffset int) (*SymExpr, error) {
	switch e := expr.(type) {
	case ast.AlgNumber:
		return constSym(e.Value), nil

	case ast.AlgColumnRef:
		ro := rowOffset
		if e.Next {
			ro++
		}
		v := Cell(e.PolyID, ro)
		if pinnedVal, ok := inf.pinned[v]; ok {
			return constSym(pinnedVal), nil
		}
		return varSym(v, inf.modulus), nil

	case ast.AlgPublic:
		return constSym(inf.publicValue(e.Name)), nil

	case ast.AlgChallenge:
		return constSym(inf.challengeValue(e.ID)), nil

	case ast.AlgNeg:
		inner, err := inf.linearizeSymbolic(e.Inner, rowOffset)
		if err != nil {
			return nil, err
		}
		return inner.neg(inf.modulus.FromInt64(-1)), nil

	case ast.AlgBinOp:
		left, err := inf.linearizeSymbolic(e.Left, rowOffset)
		if err != nil {
			return nil, err
		}
		right, err := inf.linearizeSymbolic(e.Right, rowOffset)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case ast.AlgAdd:
			return left.add(right), nil
		case ast.AlgSub:
			return left.add(right.neg(inf.modulus.FromInt64(-1))), nil
		case ast.AlgMul:
			if len(left.Terms) > 0 && len(right.Terms) > 0 {
				return nil, ErrNonlinearSymbolic
			}
			if len(left.Terms) == 0 {
				return right.scale(left.Constant), nil
			}
			return left.scale(right.Constant), nil
		case ast.AlgPow:
			if len(left.Terms) > 0 {
				return nil, ErrNonlinearSymbolic
			}
			exp := right.Constant.Uint64()
			result := inf.modulus.One()
			for i := uint64(0); i < exp; i++ {
				result = result.Mul(left.Constant)
			}
			return constSym(result), nil
		}
	}
	return nil, fmt.Errorf("jit: unsupported expression node %T", expr)
}
