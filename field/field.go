// Package field implements the prime field F over which every algebraic
// expression, identity and witness value is defined.
//
// The modulus is fixed for the lifetime of a pipeline invocation but chosen
// at runtime (spec: "commonly 64-bit Goldilocks or <=32-bit Baby Bear /
// Mersenne-31"). Rather than hand-writing three independent arithmetic
// implementations, the per-family packages under field/goldilocks,
// field/babybear and field/m31 are generated from a single template (see
// internal/fieldgen) and each just hands back a *Modulus with the family's
// prime baked in; all arithmetic is implemented once, here.
package field

import (
	"fmt"
	"math/big"
)

// Family identifies which concrete prime a Modulus was constructed for. It
// exists so callers can distinguish "same bit pattern, different field" without
// comparing big.Int moduli on every hot-path operation.
type Family uint8

const (
	// FamilyGeneric is any modulus not recognized as one of the named
	// families below; arithmetic still works, it is just not tagged.
	FamilyGeneric Family = iota
	FamilyGoldilocks
	FamilyBabyBear
	FamilyMersenne31
)

func (f Family) String() string {
	switch f {
	case FamilyGoldilocks:
		return "goldilocks"
	case FamilyBabyBear:
		return "babybear"
	case FamilyMersenne31:
		return "mersenne31"
	default:
		return "generic"
	}
}

// Modulus is the runtime-chosen prime that all Elements constructed through
// it are reduced modulo. A Modulus is immutable and safe for concurrent use
// once constructed; machines and the witness generator share a single
// Modulus for the duration of a pipeline invocation.
type Modulus struct {
	p      *big.Int
	family Family
}

// NewModulus constructs a Modulus from an arbitrary prime. The caller is
// responsible for p actually being prime; this package does not run a
// primality test (the core does not validate user trust assumptions, per
// spec's Non-goals).
func NewModulus(p *big.Int) *Modulus {
	return &Modulus{p: new(big.Int).Set(p), family: FamilyGeneric}
}

func newNamedModulus(hex string, family Family) *Modulus {
	p, ok := new(big.Int).SetString(hex, 0)
	if !ok {
		panic(fmt.Sprintf("field: invalid modulus literal %q", hex))
	}
	return &Modulus{p: p, family: family}
}

// Family reports which named prime family this Modulus was built from, if
// any.
func (m *Modulus) Family() Family { return m.family }

// BitLen returns the bit length of the modulus.
func (m *Modulus) BitLen() int { return m.p.BitLen() }

// BigInt returns a copy of the modulus as a big.Int.
func (m *Modulus) BigInt() *big.Int { return new(big.Int).Set(m.p) }

// Zero returns the additive identity of this field.
func (m *Modulus) Zero() Element { return Element{v: new(big.Int), m: m} }

// One returns the multiplicative identity of this field.
func (m *Modulus) One() Element { return Element{v: big.NewInt(1), m: m} }

// FromUint64 constructs an Element from a native integer, reducing modulo m.
func (m *Modulus) FromUint64(v uint64) Element {
	return m.FromBigInt(new(big.Int).SetUint64(v))
}

// FromInt64 constructs an Element from a signed native integer, reducing
// modulo m (negative values wrap around, matching the "modulo field size"
// language used throughout spec §3/§4.3a).
func (m *Modulus) FromInt64(v int64) Element {
	return m.FromBigInt(big.NewInt(v))
}

// FromBigInt constructs an Element from an arbitrary-precision integer
// (surface-language integer literals are arbitrary precision per spec §3),
// reducing modulo m.
func (m *Modulus) FromBigInt(v *big.Int) Element {
	r := new(big.Int).Mod(v, m.p)
	return Element{v: r, m: m}
}

// Element is a single value of the field F. The zero value is not usable;
// always obtain Elements from a Modulus (Zero, One, From*) or from arithmetic
// on existing Elements sharing the same Modulus.
type Element struct {
	v *big.Int
	m *Modulus
}

func (e Element) mustShare(o Element) {
	if e.m != o.m {
		panic("field: operands belong to different moduli")
	}
}

// Modulus returns the field this element belongs to.
func (e Element) Modulus() *Modulus { return e.m }

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool { return e.v.Sign() == 0 }

// Equal reports whether e and o denote the same field value.
func (e Element) Equal(o Element) bool {
	e.mustShare(o)
	return e.v.Cmp(o.v) == 0
}

// Add returns e + o.
func (e Element) Add(o Element) Element {
	e.mustShare(o)
	r := new(big.Int).Add(e.v, o.v)
	r.Mod(r, e.m.p)
	return Element{v: r, m: e.m}
}

// Sub returns e - o.
func (e Element) Sub(o Element) Element {
	e.mustShare(o)
	r := new(big.Int).Sub(e.v, o.v)
	r.Mod(r, e.m.p)
	return Element{v: r, m: e.m}
}

// Mul returns e * o.
func (e Element) Mul(o Element) Element {
	e.mustShare(o)
	r := new(big.Int).Mul(e.v, o.v)
	r.Mod(r, e.m.p)
	return Element{v: r, m: e.m}
}

// Neg returns -e.
func (e Element) Neg() Element {
	r := new(big.Int).Neg(e.v)
	r.Mod(r, e.m.p)
	return Element{v: r, m: e.m}
}

// Pow returns e^exp for a non-negative exponent, used for the '^' operator
// in algebraic expressions (spec §3).
func (e Element) Pow(exp uint64) Element {
	r := new(big.Int).Exp(e.v, new(big.Int).SetUint64(exp), e.m.p)
	return Element{v: r, m: e.m}
}

// Inverse returns the multiplicative inverse of e. Panics if e is zero;
// callers (affine solving, division-pattern detection) must check IsZero
// first since "divide by zero" during witness generation should surface as
// a constraint-unsatisfiable error, not a panic.
func (e Element) Inverse() Element {
	if e.IsZero() {
		panic("field: inverse of zero")
	}
	r := new(big.Int).ModInverse(e.v, e.m.p)
	return Element{v: r, m: e.m}
}

// BigInt returns the canonical (0 <= x < modulus) integer representation.
func (e Element) BigInt() *big.Int { return new(big.Int).Set(e.v) }

// Uint64 returns the canonical representation truncated to 64 bits; valid
// whenever the caller knows the modulus fits in 64 bits (Goldilocks, Baby
// Bear, Mersenne-31 all do).
func (e Element) Uint64() uint64 { return e.v.Uint64() }

// String implements fmt.Stringer for debugging and error messages.
func (e Element) String() string { return e.v.String() }

// Goldilocks returns the Modulus for the 64-bit Goldilocks prime
// 2^64 - 2^32 + 1, used by Plonky2/Plonky3-family STARK provers.
func Goldilocks() *Modulus { return goldilocksModulus }

// BabyBear returns the Modulus for the 31-bit Baby Bear prime 2^31 - 2^27 + 1.
func BabyBear() *Modulus { return babyBearModulus }

// Mersenne31 returns the Modulus for the Mersenne prime 2^31 - 1.
func Mersenne31() *Modulus { return mersenne31Modulus }

var (
	goldilocksModulus = newNamedModulus("0xFFFFFFFF00000001", FamilyGoldilocks)
	babyBearModulus   = newNamedModulus("0x78000001", FamilyBabyBear)
	mersenne31Modulus = newNamedModulus("0x7FFFFFFF", FamilyMersenne31)
)
