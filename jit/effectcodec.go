package jit

import (
	"bytes"
	"fmt"

	"github.com/ace-zkvm/ace/field"
	"github.com/bits-and-blooms/bitset"
	"github.com/icza/bitio"
)

func unconstrainedBits(n uint) *bitset.BitSet {
	return bitset.New(n)
}

// effectTag discriminates Effect variants in the encoded form.
type effectTag uint8

const (
	tagAssignment effectTag = iota
	tagRangeConstraint
	tagAssertion
	tagMachineCall
	tagBranch
)

// EncodeEffects serializes an effect stream (including nested Branch
// effects) to bytes, the format the JIT cache persists compiled effects
// in before consensys/compress shrinks it further (jit/cache.go).
func EncodeEffects(effects []Effect, modulusByteLen int) ([]byte, error) {
	var buf bytes.Buffer
	bw := bitio.NewWriter(&buf)
	if err := writeEffects(bw, effects, modulusByteLen); err != nil {
		return nil, err
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEffects(bw *bitio.Writer, effects []Effect, byteLen int) error {
	if err := bw.WriteBits(uint64(len(effects)), 32); err != nil {
		return err
	}
	for _, e := range effects {
		if err := writeEffect(bw, e, byteLen); err != nil {
			return err
		}
	}
	return nil
}

func writeEffect(bw *bitio.Writer, e Effect, byteLen int) error {
	switch eff := e.(type) {
	case Assignment:
		if err := bw.WriteBits(uint64(tagAssignment), 3); err != nil {
			return err
		}
		if err := encodeVariable(bw, eff.Target); err != nil {
			return err
		}
		return writeInstrs(bw, Flatten(eff.Expr), byteLen)

	case Assertion:
		if err := bw.WriteBits(uint64(tagAssertion), 3); err != nil {
			return err
		}
		if err := writeInstrs(bw, Flatten(eff.Lhs), byteLen); err != nil {
			return err
		}
		if err := writeInstrs(bw, Flatten(eff.Rhs), byteLen); err != nil {
			return err
		}
		return bw.WriteBool(eff.ExpectEqual)

	case MachineCall:
		if err := bw.WriteBits(uint64(tagMachineCall), 3); err != nil {
			return err
		}
		if err := bw.WriteBits(eff.IdentityID, 64); err != nil {
			return err
		}
		if err := bw.WriteBits(uint64(len(eff.Vars)), 16); err != nil {
			return err
		}
		for i, v := range eff.Vars {
			known := eff.KnownBits != nil && eff.KnownBits.Test(uint(i))
			if err := bw.WriteBool(known); err != nil {
				return err
			}
			if err := encodeVariable(bw, v); err != nil {
				return err
			}
		}
		return nil

	case Branch:
		if err := bw.WriteBits(uint64(tagBranch), 3); err != nil {
			return err
		}
		if err := encodeVariable(bw, eff.Condition); err != nil {
			return err
		}
		if err := writeEffects(bw, eff.Hi, byteLen); err != nil {
			return err
		}
		return writeEffects(bw, eff.Lo, byteLen)

	case RangeConstraintEffect:
		// Range constraints are codegen-time bookkeeping, not something
		// the runtime interpreter replays; they are omitted from the
		// persisted form.
		return bw.WriteBits(uint64(tagRangeConstraint), 3)

	default:
		return fmt.Errorf("jit: cannot encode effect type %T", e)
	}
}

func writeInstrs(bw *bitio.Writer, instrs []Instr, byteLen int) error {
	if err := bw.WriteBits(uint64(len(instrs)), 16); err != nil {
		return err
	}
	for _, in := range instrs {
		if err := bw.WriteBits(uint64(in.Op), opBits); err != nil {
			return err
		}
		switch in.Op {
		case OpPushVar:
			if err := encodeVariable(bw, in.Var); err != nil {
				return err
			}
		case OpPushConst, OpMulConst:
			if err := encodeElement(bw, in.Const, byteLen); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeEffects reverses EncodeEffects.
func DecodeEffects(data []byte, byteLen int, m *field.Modulus) ([]Effect, error) {
	br := bitio.NewReader(bytes.NewReader(data))
	return readEffects(br, byteLen, m)
}

func readEffects(br *bitio.Reader, byteLen int, m *field.Modulus) ([]Effect, error) {
	n, err := br.ReadBits(32)
	if err != nil {
		return nil, err
	}
	out := make([]Effect, 0, n)
	for i := uint64(0); i < n; i++ {
		e, err := readEffect(br, byteLen, m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func readEffect(br *bitio.Reader, byteLen int, m *field.Modulus) (Effect, error) {
	tagBits, err := br.ReadBits(3)
	if err != nil {
		return nil, err
	}
	switch effectTag(tagBits) {
	case tagAssignment:
		v, err := decodeVariable(br)
		if err != nil {
			return nil, err
		}
		instrs, err := readInstrs(br, byteLen, m)
		if err != nil {
			return nil, err
		}
		return Assignment{Target: v, Expr: instrsToSymExpr(instrs, m)}, nil

	case tagAssertion:
		lhs, err := readInstrs(br, byteLen, m)
		if err != nil {
			return nil, err
		}
		rhs, err := readInstrs(br, byteLen, m)
		if err != nil {
			return nil, err
		}
		eq, err := br.ReadBool()
		if err != nil {
			return nil, err
		}
		return Assertion{Lhs: instrsToSymExpr(lhs, m), Rhs: instrsToSymExpr(rhs, m), ExpectEqual: eq}, nil

	case tagMachineCall:
		id, err := br.ReadBits(64)
		if err != nil {
			return nil, err
		}
		n, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		vars := make([]Variable, n)
		knownBits := unconstrainedBits(uint(n))
		for i := uint64(0); i < n; i++ {
			known, err := br.ReadBool()
			if err != nil {
				return nil, err
			}
			v, err := decodeVariable(br)
			if err != nil {
				return nil, err
			}
			vars[i] = v
			if known {
				knownBits.Set(uint(i))
			} else {
				knownBits.Clear(uint(i))
			}
		}
		return MachineCall{IdentityID: id, KnownBits: knownBits, Vars: vars}, nil

	case tagBranch:
		cond, err := decodeVariable(br)
		if err != nil {
			return nil, err
		}
		hi, err := readEffects(br, byteLen, m)
		if err != nil {
			return nil, err
		}
		lo, err := readEffects(br, byteLen, m)
		if err != nil {
			return nil, err
		}
		return Branch{Condition: cond, Hi: hi, Lo: lo}, nil

	case tagRangeConstraint:
		return RangeConstraintEffect{}, nil

	default:
		return nil, fmt.Errorf("jit: unknown effect tag %d", tagBits)
	}
}

func readInstrs(br *bitio.Reader, byteLen int, m *field.Modulus) ([]Instr, error) {
	n, err := br.ReadBits(16)
	if err != nil {
		return nil, err
	}
	out := make([]Instr, 0, n)
	for i := uint64(0); i < n; i++ {
		opBitsVal, err := br.ReadBits(opBits)
		if err != nil {
			return nil, err
		}
		in := Instr{Op: Op(opBitsVal)}
		switch in.Op {
		case OpPushVar:
			v, err := decodeVariable(br)
			if err != nil {
				return nil, err
			}
			in.Var = v
		case OpPushConst, OpMulConst:
			elem, err := decodeElement(br, byteLen, m)
			if err != nil {
				return nil, err
			}
			in.Const = elem
		}
		out = append(out, in)
	}
	return out, nil
}

// instrsToSymExpr reconstructs a SymExpr from its flattened form -- the
// decoded cache entry only needs to be re-Flatten()-able for
// interpretation, so this just replays the RPN program abstractly rather
// than recovering the exact original tree shape (which Flatten does not
// preserve either).
func instrsToSymExpr(instrs []Instr, m *field.Modulus) *SymExpr {
	out := newSymExpr(m.Zero())
	var pendingVar *Variable
	for _, in := range instrs {
		switch in.Op {
		case OpPushVar:
			v := in.Var
			pendingVar = &v
		case OpMulConst:
			if pendingVar != nil {
				out.addTerm(*pendingVar, in.Const)
				pendingVar = nil
			}
		case OpPushConst:
			out.Constant = out.Constant.Add(in.Const)
		}
	}
	return out
}
