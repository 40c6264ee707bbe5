// Package ace is the top-level entry point for the constraint-compilation
// and witness-generation pipeline spec.md describes: parse PIL source,
// condense it into an Analyzed constraint system, extract it into
// machines, then solve every machine for a concrete witness.
//
// This mirrors gnark's frontend.Compile -> backend.Setup/Prove shape: one
// small orchestrating entry point in front of several independently
// testable packages, rather than a god-object pipeline type.
package ace

import (
	"context"
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/condenser"
	"github.com/ace-zkvm/ace/field"
	"github.com/ace-zkvm/ace/hint"
	"github.com/ace-zkvm/ace/internal/profiler"
	"github.com/ace-zkvm/ace/machines"
	"github.com/ace-zkvm/ace/pil"
	"github.com/ace-zkvm/ace/witgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Pipeline carries everything needed to go from PIL source text to a
// solved witness: the field the system is defined over, the declared
// trace degree, and the logger every stage threads through (spec §10
// ambient stack).
type Pipeline struct {
	Modulus *field.Modulus
	Degree  uint64
	Log     zerolog.Logger
}

// NewPipeline constructs a Pipeline for the given field and degree, logging
// through zerolog's global log.Logger unless overridden via WithLogger.
func NewPipeline(modulus *field.Modulus, degree uint64) *Pipeline {
	return &Pipeline{Modulus: modulus, Degree: degree, Log: log.Logger}
}

// PipelineOption configures a Pipeline, following the same functional-option
// convention as condenser.Option and gnark's frontend.CompileOption.
type PipelineOption func(*Pipeline)

// WithLogger overrides the Pipeline's logger.
func WithLogger(l zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.Log = l }
}

// Apply applies options to an already-constructed Pipeline.
func (p *Pipeline) Apply(opts ...PipelineOption) *Pipeline {
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompiledConstraintSystem is the result of Compile: the elaborated
// constraint system plus its extraction into machines, ready for witness
// generation. Keeping these two outputs bundled lets a caller compile once
// and generate many witnesses against the same extraction (spec §6: "a
// constraint system... is an artifact that can be serialized, shared...
// and consumed many times for many different witnesses").
type CompiledConstraintSystem struct {
	Analyzed   *analyzed.Analyzed
	Extraction *machines.Extraction
}

// Compile runs stages A through §4.2: parse src, condense it against the
// Pipeline's modulus and degree, and extract the result into machines.
func (p *Pipeline) Compile(src string) (*CompiledConstraintSystem, error) {
	result, errs := pil.Compile(src)
	if len(errs) > 0 {
		return nil, fmt.Errorf("ace: parsing PIL source: %w", errs[0])
	}
	for _, w := range result.Warnings {
		p.Log.Warn().Str("component", "pil").Msg(w)
	}

	an, err := condenser.Condense(result.Program, p.Modulus, p.Degree, condenser.WithLogger(p.Log))
	if err != nil {
		return nil, fmt.Errorf("ace: condensing program: %w", err)
	}

	ex, err := machines.Extract(an)
	if err != nil {
		return nil, fmt.Errorf("ace: extracting machines: %w", err)
	}

	return &CompiledConstraintSystem{Analyzed: an, Extraction: ex}, nil
}

// WitnessInputs bundles the externally supplied inputs a witness
// generation run needs: public values, the prover-query callback hints
// use to ask for externally computed data, and any witness cells computed
// by an earlier proving stage (spec §6's "next_stage_witness").
type WitnessInputs struct {
	Publics         map[string]field.Element
	Query           hint.QueryCallback
	ExternalWitness map[analyzed.PolyID]map[uint64]field.Element

	// Profiler, if set, collects per-machine solve-time spans for this
	// generation run (spec §9); left nil, the run's profiling data is
	// still available afterward via witgen.Result.Profile, just not
	// retained by the caller ahead of time.
	Profiler *profiler.Profiler
}

// GenerateWitness runs spec §4.3's full solving pipeline against an
// already-compiled constraint system, returning every committed column's
// values across the whole trace.
func (p *Pipeline) GenerateWitness(ctx context.Context, cs *CompiledConstraintSystem, in WitnessInputs) (*witgen.Result, error) {
	opts := witgen.Options{
		Publics:         in.Publics,
		Query:           in.Query,
		ExternalWitness: in.ExternalWitness,
		Log:             p.Log,
		Profiler:        in.Profiler,
	}
	result, err := witgen.Generate(ctx, cs.Analyzed, cs.Extraction, p.Modulus, p.Degree, opts)
	if err != nil {
		return nil, fmt.Errorf("ace: generating witness: %w", err)
	}
	return result, nil
}

// CompileAndGenerateWitness is the common single-shot path: compile src and
// immediately solve it for a witness, for callers that have no need to
// reuse the compiled constraint system across multiple witnesses.
func (p *Pipeline) CompileAndGenerateWitness(ctx context.Context, src string, in WitnessInputs) (*witgen.Result, error) {
	cs, err := p.Compile(src)
	if err != nil {
		return nil, err
	}
	return p.GenerateWitness(ctx, cs, in)
}

// Publics extracts the resolved public-input values (name -> field
// element) from a solved witness, per spec §6's public-input surface: a
// public is just a named reference to one cell of the witness.
func Publics(cs *CompiledConstraintSystem, witness *witgen.Result) (map[string]field.Element, error) {
	out := make(map[string]field.Element, len(cs.Analyzed.Publics))
	for _, pub := range cs.Analyzed.Publics {
		col, ok := cs.Analyzed.Column(pub.Column)
		if !ok {
			return nil, fmt.Errorf("ace: public %q references undeclared column %q", pub.Name, pub.Column)
		}
		values, ok := witness.Columns[col.ID]
		if !ok {
			return nil, fmt.Errorf("ace: public %q's column %q was not solved", pub.Name, pub.Column)
		}
		row := pub.Row
		if row < 0 || row >= len(values) {
			return nil, fmt.Errorf("ace: public %q references out-of-range row %d", pub.Name, row)
		}
		out[pub.Name] = values[row]
	}
	return out, nil
}
