package condenser

import (
	"fmt"
	"strings"

	"github.com/ace-zkvm/ace/ast"
)

// TraitImplIndex resolves `TraitName::fn_name::<T1,...,Tn>` references
// against the set of registered TraitImplementations (spec §4.1), memoizing
// each resolution. It is the "SolvedTraitImpls index" spec §9 names.
type TraitImplIndex struct {
	byTrait map[string][]*ast.TraitImplementation
	solved  map[string]*ast.TraitImplementation
}

// NewTraitImplIndex groups impls by trait name for fast candidate lookup.
func NewTraitImplIndex(impls []*ast.TraitImplementation) *TraitImplIndex {
	idx := &TraitImplIndex{
		byTrait: make(map[string][]*ast.TraitImplementation),
		solved:  make(map[string]*ast.TraitImplementation),
	}
	for _, impl := range impls {
		idx.byTrait[impl.Trait] = append(idx.byTrait[impl.Trait], impl)
	}
	return idx
}

// Resolve finds the single TraitImplementation whose parametric type scheme
// unifies with typeArgs. Exactly one impl must match; zero is a hard error,
// and more than one indicates a type-checker bug (ambiguity should have been
// rejected at type-check time, spec §4.1) so it is also reported as an
// error here rather than silently picking one.
func (idx *TraitImplIndex) Resolve(trait string, typeArgs []ast.Type) (*ast.TraitImplementation, error) {
	key := memoKey(trait, typeArgs)
	if impl, ok := idx.solved[key]; ok {
		return impl, nil
	}

	candidates := idx.byTrait[trait]
	var matches []*ast.TraitImplementation
	for _, cand := range candidates {
		if unifies(cand.TypeArgs, typeArgs) {
			matches = append(matches, cand)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no implementation of trait %q found for type arguments %s", trait, typeArgsString(typeArgs))
	case 1:
		idx.solved[key] = matches[0]
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous implementations of trait %q for type arguments %s (%d candidates)",
			trait, typeArgsString(typeArgs), len(matches))
	}
}

func memoKey(trait string, typeArgs []ast.Type) string {
	return trait + "::" + typeArgsString(typeArgs)
}

func typeArgsString(args []ast.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = typeString(a)
	}
	return "<" + strings.Join(parts, ",") + ">"
}

func typeString(t ast.Type) string {
	if t.Ret != nil {
		argParts := make([]string, len(t.Args))
		for i, a := range t.Args {
			argParts[i] = typeString(a)
		}
		return "(" + strings.Join(argParts, ",") + ") -> " + typeString(*t.Ret)
	}
	if len(t.Args) > 0 {
		argParts := make([]string, len(t.Args))
		for i, a := range t.Args {
			argParts[i] = typeString(a)
		}
		return t.Name + "[" + strings.Join(argParts, ",") + "]"
	}
	return t.Name
}

// unifies reports whether a candidate impl's declared type scheme can bind
// to the requested concrete type arguments. This is a structural match
// (names/arities must align); full unification with free type variables in
// the scheme is the type checker's job upstream -- by the time the
// condenser runs, typeArgs are already fully concrete (spec names this
// "TraitName::fn_name::<T1,...,Tn>" with concrete T_i).
func unifies(schemeArgs, concreteArgs []ast.Type) bool {
	if len(schemeArgs) != len(concreteArgs) {
		return false
	}
	for i := range schemeArgs {
		if !typeMatches(schemeArgs[i], concreteArgs[i]) {
			return false
		}
	}
	return true
}

func typeMatches(pattern, concrete ast.Type) bool {
	// A bare name of at most two characters starting with an uppercase
	// letter (T, T1, ...) is treated as a type variable, matching anything
	// (the scheme is polymorphic in it).
	if isTypeVar(pattern.Name) && len(pattern.Args) == 0 && pattern.Ret == nil {
		return true
	}
	if pattern.Name != concrete.Name || len(pattern.Args) != len(concrete.Args) {
		return false
	}
	for i := range pattern.Args {
		if !typeMatches(pattern.Args[i], concrete.Args[i]) {
			return false
		}
	}
	if (pattern.Ret == nil) != (concrete.Ret == nil) {
		return false
	}
	if pattern.Ret != nil && !typeMatches(*pattern.Ret, *concrete.Ret) {
		return false
	}
	return true
}

func isTypeVar(name string) bool {
	return len(name) >= 1 && name[0] >= 'A' && name[0] <= 'Z' && len(name) <= 2
}

// resolveTraitMethod evaluates a TraitMethodRef by resolving it through the
// Condenser's TraitImplIndex and then evaluating the matched method body,
// itself cached under the (trait::method, type-args) key like any other
// symbol (spec §4.1 caching).
func (c *Condenser) resolveTraitMethod(e ast.TraitMethodRef) (ast.Value, error) {
	key := cacheKey{symbol: e.Trait + "::" + e.Method, typeArgs: typeArgsString(e.TypeArgs)}
	if entry, ok := c.cache[key]; ok {
		if entry.inProgress {
			return nil, fmt.Errorf("cyclic trait method resolution for %s::%s", e.Trait, e.Method)
		}
		return entry.value, nil
	}

	impl, err := c.traits.Resolve(e.Trait, e.TypeArgs)
	if err != nil {
		return nil, err
	}
	body, ok := impl.Methods[e.Method]
	if !ok {
		return nil, fmt.Errorf("trait implementation for %s<%s> has no method %q",
			e.Trait, typeArgsString(e.TypeArgs), e.Method)
	}

	c.cache[key] = cacheEntry{inProgress: true}
	v, err := c.Eval(body, nil)
	if err != nil {
		delete(c.cache, key)
		return nil, err
	}
	c.cache[key] = cacheEntry{value: v}
	return v, nil
}
