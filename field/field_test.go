package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamedModuli(t *testing.T) {
	cases := []struct {
		name   string
		m      *Modulus
		family Family
		bits   int
	}{
		{"goldilocks", Goldilocks(), FamilyGoldilocks, 64},
		{"babybear", BabyBear(), FamilyBabyBear, 31},
		{"mersenne31", Mersenne31(), FamilyMersenne31, 31},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.family, c.m.Family())
			require.Equal(t, c.bits, c.m.BitLen())
			require.Equal(t, c.name, c.family.String())
		})
	}
}

func TestArithmeticWrapsModulo(t *testing.T) {
	m := BabyBear()
	p := m.BigInt()

	a := m.FromBigInt(new(big.Int).Sub(p, big.NewInt(1))) // p-1
	one := m.One()

	sum := a.Add(one)
	require.True(t, sum.IsZero(), "p-1 + 1 should wrap to 0 mod p")

	diff := m.Zero().Sub(one)
	require.True(t, diff.Equal(a), "0 - 1 should equal p-1")
}

func TestMulAndInverse(t *testing.T) {
	m := Goldilocks()
	a := m.FromUint64(12345)
	require.False(t, a.IsZero())

	inv := a.Inverse()
	require.True(t, a.Mul(inv).Equal(m.One()))
}

func TestInverseOfZeroPanics(t *testing.T) {
	m := Mersenne31()
	require.Panics(t, func() { m.Zero().Inverse() })
}

func TestPow(t *testing.T) {
	m := Goldilocks()
	a := m.FromUint64(3)
	require.True(t, a.Pow(0).Equal(m.One()))
	require.True(t, a.Pow(1).Equal(a))
	require.True(t, a.Pow(4).Equal(a.Mul(a).Mul(a).Mul(a)))
}

func TestFromInt64Negative(t *testing.T) {
	m := BabyBear()
	neg := m.FromInt64(-1)
	p := m.BigInt()
	require.Equal(t, new(big.Int).Sub(p, big.NewInt(1)), neg.BigInt())
}

func TestMustShareAcrossModuliPanics(t *testing.T) {
	a := Goldilocks().One()
	b := BabyBear().One()
	require.Panics(t, func() { a.Add(b) })
}

func TestUint64RoundTrip(t *testing.T) {
	m := Goldilocks()
	a := m.FromUint64(0xdeadbeef)
	require.Equal(t, uint64(0xdeadbeef), a.Uint64())
}

func TestGenericModulusIsUntagged(t *testing.T) {
	m := NewModulus(big.NewInt(97))
	require.Equal(t, FamilyGeneric, m.Family())
	a := m.FromUint64(50)
	b := m.FromUint64(50)
	require.True(t, a.Add(b).Equal(m.FromUint64(3))) // 100 mod 97 == 3
}
