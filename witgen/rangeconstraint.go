package witgen

import (
	"math/big"

	"github.com/ace-zkvm/ace/field"
	"github.com/bits-and-blooms/bitset"
)

// RangeConstraint narrows a cell's possible values without fully
// determining them: a bitmask of candidate bits plus a [Min,Max] bound
// (spec §4.3's "RangeConstrained" cell status). It is the same notion the
// JIT's symbolic solver reasons over (package jit), just evaluated eagerly
// here against concrete field values instead of symbolic expressions.
type RangeConstraint struct {
	mask     *bitset.BitSet
	min, max *big.Int
}

// Unconstrained returns the range constraint that rules nothing out, for a
// value known to fit in bits bits.
func Unconstrained(bits uint) RangeConstraint {
	mask := bitset.New(bits)
	for i := uint(0); i < bits; i++ {
		mask.Set(i)
	}
	max := new(big.Int).Lsh(big.NewInt(1), bits)
	max.Sub(max, big.NewInt(1))
	return RangeConstraint{mask: mask, min: big.NewInt(0), max: max}
}

// Exact returns the range constraint satisfied by exactly one value.
func Exact(v field.Element) RangeConstraint {
	bi := v.BigInt()
	mask := bitset.New(uint(bi.BitLen()) + 1)
	for i := 0; i < bi.BitLen(); i++ {
		if bi.Bit(i) == 1 {
			mask.Set(uint(i))
		}
	}
	return RangeConstraint{mask: mask, min: new(big.Int).Set(bi), max: new(big.Int).Set(bi)}
}

// FromBitWidth builds the range constraint for a value known to be one of
// the 2^width values addressable by width bits, e.g. the output of a
// bit-decomposition hint (spec §4.3a "Bit-decomposition" strategy).
func FromBitWidth(width uint) RangeConstraint {
	return Unconstrained(width)
}

// Intersect combines two constraints on the same cell, narrowing the mask
// and bounds to their overlap.
func (rc RangeConstraint) Intersect(other RangeConstraint) RangeConstraint {
	var mask *bitset.BitSet
	switch {
	case rc.mask == nil:
		mask = other.mask
	case other.mask == nil:
		mask = rc.mask
	default:
		mask = rc.mask.Intersection(other.mask)
	}
	min := rc.min
	if other.min != nil && (min == nil || other.min.Cmp(min) > 0) {
		min = other.min
	}
	max := rc.max
	if other.max != nil && (max == nil || other.max.Cmp(max) < 0) {
		max = other.max
	}
	return RangeConstraint{mask: mask, min: min, max: max}
}

// IsSingleton reports whether the constraint pins down exactly one value,
// and returns it if so.
func (rc RangeConstraint) IsSingleton() (*big.Int, bool) {
	if rc.min != nil && rc.max != nil && rc.min.Cmp(rc.max) == 0 {
		return new(big.Int).Set(rc.min), true
	}
	return nil, false
}

// AllowsBit reports whether bit i can possibly be set, per the mask.
func (rc RangeConstraint) AllowsBit(i uint) bool {
	if rc.mask == nil {
		return true
	}
	return rc.mask.Test(i)
}

// Bounds returns the inclusive [min, max] this constraint guarantees, or
// nil, nil if unbounded.
func (rc RangeConstraint) Bounds() (min, max *big.Int) {
	return rc.min, rc.max
}

// Mask exposes the underlying candidate-bit mask, for callers (e.g. the
// branch-bisection logic in package jit) that split ranges bit by bit.
func (rc RangeConstraint) Mask() *bitset.BitSet {
	return rc.mask
}
