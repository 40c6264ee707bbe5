package jit

import (
	"fmt"

	"github.com/ace-zkvm/ace/field"
)

// MachineCallFunc resolves a MachineCall effect at runtime: given the
// interaction and the current (possibly partial) variable bindings, it
// returns the values of every Vars entry (spec §4.4's cross-machine
// dispatch).
type MachineCallFunc func(identityID uint64, vars []Variable, env map[Variable]field.Element) ([]field.Element, error)

// Interpreter executes an Effect stream against a concrete runtime
// environment -- spec §4.4's reference path ("a stack-machine over an
// RPN-flattened expression tree"), required to be semantically identical
// to whatever a native-compiled path would produce. This repository only
// implements the interpreter path; native compilation via an
// out-of-process toolchain is explicitly named as an alternative, not a
// requirement (spec §4.4), and is not built here.
type Interpreter struct {
	Modulus     *field.Modulus
	MachineCall MachineCallFunc
}

// Run executes effects in order, mutating env in place. Branch effects
// pick Hi or Lo based on the condition variable's already-bound value and
// recurse; nothing merges afterward (spec §9's tail-position resolution).
func (in *Interpreter) Run(effects []Effect, env map[Variable]field.Element) error {
	for _, e := range effects {
		if err := in.step(e, env); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) step(e Effect, env map[Variable]field.Element) error {
	switch eff := e.(type) {
	case Assignment:
		v, err := Eval(Flatten(eff.Expr), env, in.Modulus)
		if err != nil {
			return fmt.Errorf("jit: assignment to %+v: %w", eff.Target, err)
		}
		env[eff.Target] = v
		return nil

	case RangeConstraintEffect:
		// Recorded for the caller's benefit (e.g. further branch
		// bisection upstream); the interpreter itself has nothing to
		// enforce here since range constraints narrow possibility, they
		// do not by themselves determine a value.
		return nil

	case Assertion:
		lhs, err := Eval(Flatten(eff.Lhs), env, in.Modulus)
		if err != nil {
			return err
		}
		rhs, err := Eval(Flatten(eff.Rhs), env, in.Modulus)
		if err != nil {
			return err
		}
		equal := lhs.Equal(rhs)
		if equal != eff.ExpectEqual {
			return fmt.Errorf("jit: assertion failed: %s vs %s (expectEqual=%v)", lhs.String(), rhs.String(), eff.ExpectEqual)
		}
		return nil

	case MachineCall:
		if in.MachineCall == nil {
			return fmt.Errorf("jit: machine call effect for interaction %d but no MachineCall handler configured", eff.IdentityID)
		}
		results, err := in.MachineCall(eff.IdentityID, eff.Vars, env)
		if err != nil {
			return err
		}
		if len(results) != len(eff.Vars) {
			return fmt.Errorf("jit: machine call for interaction %d returned %d values, expected %d",
				eff.IdentityID, len(results), len(eff.Vars))
		}
		for i, v := range eff.Vars {
			env[v] = results[i]
		}
		return nil

	case Branch:
		cond, ok := env[eff.Condition]
		if !ok {
			return fmt.Errorf("jit: branch condition %+v not bound", eff.Condition)
		}
		branch := eff.Lo
		if !cond.IsZero() {
			branch = eff.Hi
		}
		return in.Run(branch, env)

	default:
		return fmt.Errorf("jit: unknown effect type %T", e)
	}
}
