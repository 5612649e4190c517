// Package engine composes the registry, targeting, frequency, priority,
// trace and bus packages into the public evaluation surface.
//
// An Engine is an explicit instance constructed with its collaborators
// (frequency KV, clock, logger). Several engines may coexist; none of them
// touch process-wide state.
//
// Evaluation pipeline (Evaluate and Preview):
//
//	consent -> registry -> targeting -> frequency -> priority -> decision
//
// Every stage is present in every Decision, in this order. A stage that did
// not run records passed=false with output "skipped", so the step sequence
// depends only on the engine configuration, never on the outcome.
//
// EvaluateAll produces one Decision per registered experience with the
// stages consent -> targeting -> frequency -> decision and no priority
// competition between siblings.
//
// Counters change only after a shown event has been published for the
// winner. Preview and PreviewAll run the same pipeline with no event and no
// counter change.
package engine
