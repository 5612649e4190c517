// Package trace records the ordered steps of one evaluation.
//
// A Tracer is single-use and not safe for concurrent use: the engine creates
// one per evaluation. Steps are append-only and appear in execution order.
// Durations are whole milliseconds measured against the injected Clock, so a
// fixed clock yields zero durations and byte-stable traces.
package trace

import (
	"time"

	"github.com/solatis/experiences/internal/types"
)

// Skipped is the output recorded for a stage that did not run.
const Skipped = "skipped"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Tracer accumulates TraceSteps.
type Tracer struct {
	clock   Clock
	started time.Time
	steps   []types.TraceStep

	open      bool
	stepStart time.Time
}

// New starts a trace; the total duration is measured from this call.
func New(clock Clock) *Tracer {
	return &Tracer{
		clock:   clock,
		started: clock.Now(),
		steps:   make([]types.TraceStep, 0, 8),
	}
}

// Begin opens a step. An already open step is closed as failed first.
func (t *Tracer) Begin(step string, input any) {
	if t.open {
		t.End(nil, false)
	}
	t.steps = append(t.steps, types.TraceStep{Step: step, Input: input})
	t.open = true
	t.stepStart = t.clock.Now()
}

// End closes the open step. No-op when no step is open.
func (t *Tracer) End(output any, passed bool) {
	if !t.open {
		return
	}
	s := &t.steps[len(t.steps)-1]
	s.Output = output
	s.Passed = passed
	s.Duration = t.clock.Now().Sub(t.stepStart).Milliseconds()
	t.open = false
}

// Fail closes the open step with the error text as output.
func (t *Tracer) Fail(err error) {
	var out any
	if err != nil {
		out = err.Error()
	}
	t.End(out, false)
}

// Skip records a step that did not run.
func (t *Tracer) Skip(step string, input any) {
	if t.open {
		t.End(nil, false)
	}
	t.steps = append(t.steps, types.TraceStep{
		Step:   step,
		Input:  input,
		Output: Skipped,
	})
}

// Len returns the number of recorded steps.
func (t *Tracer) Len() int {
	return len(t.steps)
}

// Finish closes any open step as failed and returns the steps together with
// the total elapsed milliseconds since New.
func (t *Tracer) Finish() ([]types.TraceStep, int64) {
	if t.open {
		t.End(nil, false)
	}
	return t.steps, t.clock.Now().Sub(t.started).Milliseconds()
}
