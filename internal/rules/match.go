// internal/rules/match.go
package rules

import (
	"github.com/solatis/experiences/internal/types"
)

/*
 * Targeting evaluation.
 *
 * Evaluates a CompiledTargeting against a Context with AND semantics: every
 * configured condition must pass. Empty rules match unconditionally.
 *
 * Evaluation flow:
 *   1. Empty rule fast-path (matches, no conditions run)
 *   2. Conditions in ascending cost order, short-circuit on first failure
 *   3. Record the failing condition for reasons and trace output
 *
 * Match is pure: no I/O, no clock, no mutation of the compiled rule.
 */

// MatchResult contains the outcome of targeting evaluation.
type MatchResult struct {
	Matched  bool
	FailedOn Operator // OpUnspecified when matched
	Checked  int      // conditions executed before the result was known
	Err      error    // CEL runtime error, if any
}

// Match checks whether ctx satisfies the compiled targeting rule.
func Match(ct *CompiledTargeting, ctx types.Context) MatchResult {
	if ct.IsEmpty() {
		return MatchResult{Matched: true}
	}

	result := MatchResult{}
	for i := range ct.Conditions {
		cond := &ct.Conditions[i]
		result.Checked++
		ok, err := Compare(cond, ctx)
		if err != nil {
			result.FailedOn = cond.Operator
			result.Err = err
			return result
		}
		if !ok {
			result.FailedOn = cond.Operator
			return result
		}
	}

	result.Matched = true
	return result
}

// Matches compiles rule and evaluates it against ctx in one call.
// Convenience for callers holding an uncompiled rule; the engine compiles
// once at registration and calls Match instead.
func Matches(ctx types.Context, rule types.TargetingRule) (bool, error) {
	ct, err := Compile(rule)
	if err != nil {
		return false, err
	}
	return Match(ct, ctx).Matched, nil
}
