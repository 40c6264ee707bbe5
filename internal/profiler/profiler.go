// Package profiler implements the thread-local profiling event log referred
// to in spec §9 ("Global mutable state ... the profiler's thread-local event
// log is kept behind explicit handles ... the profiler is thread-local and
// its lifecycle matches the witness-generation call"). Each witness
// generation invocation owns exactly one *Profiler; machines record events
// against it as they run, and it is handed back to the caller in
// witgen.Result.Profile when the invocation completes.
package profiler

import (
	"context"
	"runtime/pprof"
	"sync"
	"time"
)

// Event is a single recorded span: some machine did some kind of work for
// some duration.
type Event struct {
	Machine  string
	Kind     string // "solve_row", "block_call", "jit_codegen", ...
	Duration time.Duration
}

// Profiler accumulates Events for a single witness-generation invocation. Its
// methods are guarded by a mutex and are safe for concurrent use; callers
// running machines in parallel (witgen/parallel.go) still construct one
// Profiler per goroutine and merge via Merge, mirroring a thread-local log.
type Profiler struct {
	mu     sync.Mutex
	events []Event
	labels pprof.LabelSet
}

// New constructs an empty Profiler tagged with the given pprof labels (e.g.
// "stage", "invocation_id") so that, if the host process is also being
// profiled with pprof.Do, witness-generation time is attributable in the
// resulting profile.
func New(labels ...string) *Profiler {
	return &Profiler{labels: pprof.Labels(labels...)}
}

// Record appends an Event. Safe for concurrent use.
func (p *Profiler) Record(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Span starts timing a unit of work; the returned func records it on stop.
func (p *Profiler) Span(machine, kind string) func() {
	start := time.Now()
	return func() {
		p.Record(Event{Machine: machine, Kind: kind, Duration: time.Since(start)})
	}
}

// Do runs fn with this Profiler's pprof labels attached to the current
// goroutine, so CPU samples taken by an external pprof.StartCPUProfile are
// labeled with the invocation's metadata.
func (p *Profiler) Do(ctx context.Context, fn func()) {
	pprof.Do(ctx, p.labels, func(context.Context) { fn() })
}

// Events returns a snapshot of recorded events, grouped by machine.
func (p *Profiler) Events() map[string][]Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]Event)
	for _, e := range p.events {
		out[e.Machine] = append(out[e.Machine], e)
	}
	return out
}

// Merge folds another Profiler's events into p, used to combine per-goroutine
// thread-local logs after parallel machine execution completes.
func (p *Profiler) Merge(other *Profiler) {
	other.mu.Lock()
	events := append([]Event(nil), other.events...)
	other.mu.Unlock()

	p.mu.Lock()
	p.events = append(p.events, events...)
	p.mu.Unlock()
}

// TotalByMachine sums recorded duration per machine name, the figure logged
// at the end of a witness-generation invocation.
func (p *Profiler) TotalByMachine() map[string]time.Duration {
	totals := make(map[string]time.Duration)
	for machine, events := range p.Events() {
		var total time.Duration
		for _, e := range events {
			total += e.Duration
		}
		totals[machine] = total
	}
	return totals
}
