package jit

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/field"
	"github.com/icza/bitio"
)

func bytesToBigInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// Op is one instruction in the RPN-flattened form of a SymExpr, the
// "stack-machine over an RPN-flattened expression tree" spec §4.4
// describes as the reference (interpreter) execution path for a compiled
// effect stream.
type Op uint8

const (
	OpPushVar Op = iota
	OpPushConst
	OpMulConst // multiply top of stack by a constant operand
	OpAdd      // pop two, push their sum
)

// Instr is one flattened instruction. Only the fields relevant to Op are
// populated.
type Instr struct {
	Op    Op
	Var   Variable
	Const field.Element
}

// Flatten converts a SymExpr's affine terms into an RPN instruction
// sequence: push each term's variable and multiply by its coefficient,
// accumulate with OpAdd, finally add the constant. Variable order is
// deterministic (SymExpr.sortedVars) so the flattened form -- and
// anything hashed or cached from it -- is stable across runs (spec §8).
func Flatten(e *SymExpr) []Instr {
	vars := e.sortedVars()
	var out []Instr
	for i, v := range vars {
		out = append(out, Instr{Op: OpPushVar, Var: v})
		out = append(out, Instr{Op: OpMulConst, Const: e.Terms[v]})
		if i > 0 {
			out = append(out, Instr{Op: OpAdd})
		}
	}
	out = append(out, Instr{Op: OpPushConst, Const: e.Constant})
	if len(vars) > 0 {
		out = append(out, Instr{Op: OpAdd})
	}
	return out
}

// Eval runs a flattened instruction sequence against a concrete variable
// environment, the interpreter-path counterpart to the native-compiled
// path spec §4.4 says "must be semantically identical".
func Eval(instrs []Instr, env map[Variable]field.Element, m *field.Modulus) (field.Element, error) {
	var stack []field.Element
	pop := func() field.Element {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	for _, in := range instrs {
		switch in.Op {
		case OpPushVar:
			v, ok := env[in.Var]
			if !ok {
				return field.Element{}, fmt.Errorf("jit: variable %+v not bound during interpretation", in.Var)
			}
			stack = append(stack, v)
		case OpPushConst:
			stack = append(stack, in.Const)
		case OpMulConst:
			top := pop()
			stack = append(stack, top.Mul(in.Const))
		case OpAdd:
			b := pop()
			a := pop()
			stack = append(stack, a.Add(b))
		default:
			return field.Element{}, fmt.Errorf("jit: unknown opcode %d", in.Op)
		}
	}
	if len(stack) != 1 {
		return field.Element{}, fmt.Errorf("jit: malformed instruction stream, stack depth %d at end", len(stack))
	}
	return stack[0], nil
}

// varKindBits/polyTypeBits size the bit-packed fields used by
// Encode/Decode below; wide enough for the enums defined in this package
// and in package analyzed without wasting bits on a byte-aligned format.
const (
	opBits      = 2
	varKindBits = 2
	polyTypeBits = 2
)

// Encode bit-packs a flattened instruction stream with icza/bitio, the
// compact format the JIT cache persists compiled effects in (spec §4.4
// "compiled to native code... or interpreted"; this is the interpreter
// path's on-disk/in-cache representation, further compressed by
// consensys/compress in jit/cache.go).
func Encode(w io.Writer, instrs []Instr, modulusByteLen int) error {
	bw := bitio.NewWriter(w)
	if err := bw.WriteBits(uint64(len(instrs)), 32); err != nil {
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
			if err := encodeElement(bw, in.Const, modulusByteLen); err != nil {
				return err
			}
		}
	}
	return bw.Close()
}

func encodeVariable(bw *bitio.Writer, v Variable) error {
	if err := bw.WriteBits(uint64(v.Kind), varKindBits); err != nil {
		return err
	}
	switch v.Kind {
	case VarParam, VarLocal:
		return bw.WriteBits(uint64(v.Index), 32)
	case VarCell:
		if err := bw.WriteBits(uint64(v.Col.PType), polyTypeBits); err != nil {
			return err
		}
		if err := bw.WriteBits(v.Col.ID, 64); err != nil {
			return err
		}
		return bw.WriteBits(uint64(int64(v.RowOffset)), 32)
	}
	return fmt.Errorf("jit: unknown variable kind %d", v.Kind)
}

func encodeElement(bw *bitio.Writer, e field.Element, byteLen int) error {
	b := e.BigInt().Bytes()
	padded := make([]byte, byteLen)
	copy(padded[byteLen-len(b):], b)
	_, err := bw.Write(padded)
	return err
}

// Decode reverses Encode, reconstructing field elements against modulus m.
func Decode(r io.Reader, modulusByteLen int, m *field.Modulus) ([]Instr, error) {
	br := bitio.NewReader(r)
	n, err := br.ReadBits(32)
	if err != nil {
		return nil, err
	}
	instrs := make([]Instr, 0, n)
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
			elem, err := decodeElement(br, modulusByteLen, m)
			if err != nil {
				return nil, err
			}
			in.Const = elem
		}
		instrs = append(instrs, in)
	}
	return instrs, nil
}

func decodeVariable(br *bitio.Reader) (Variable, error) {
	kindBits, err := br.ReadBits(varKindBits)
	if err != nil {
		return Variable{}, err
	}
	v := Variable{Kind: VarKind(kindBits)}
	switch v.Kind {
	case VarParam, VarLocal:
		idx, err := br.ReadBits(32)
		if err != nil {
			return Variable{}, err
		}
		v.Index = int(idx)
	case VarCell:
		pt, err := br.ReadBits(polyTypeBits)
		if err != nil {
			return Variable{}, err
		}
		id, err := br.ReadBits(64)
		if err != nil {
			return Variable{}, err
		}
		ro, err := br.ReadBits(32)
		if err != nil {
			return Variable{}, err
		}
		v.Col = analyzed.PolyID{ID: id, PType: analyzed.PType(pt)}
		v.RowOffset = int(int32(ro))
	default:
		return Variable{}, fmt.Errorf("jit: unknown variable kind %d", kindBits)
	}
	return v, nil
}

func decodeElement(br *bitio.Reader, byteLen int, m *field.Modulus) (field.Element, error) {
	buf := make([]byte, byteLen)
	if _, err := io.ReadFull(br, buf); err != nil {
		return field.Element{}, err
	}
	return m.FromBigInt(bytesToBigInt(buf)), nil
}
