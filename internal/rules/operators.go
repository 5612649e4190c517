// internal/rules/operators.go
package rules

import (
	"strings"

	"github.com/solatis/experiences/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the four targeting variants against a Context:
 *   - equals: exact string equality with Context.URL (cost band 1)
 *   - contains: case-sensitive substring of Context.URL (cost band 2)
 *   - matches: precompiled RE2 pattern against Context.URL (cost band 4)
 *   - expression: precompiled CEL program over url/referrer/timestamp (cost band 8)
 *
 * Function-based dispatch: a switch over the Operator tag rather than an
 * interface per variant; the variants differ by a single line each.
 */

// Compare applies one compiled condition to the context.
// A CEL runtime error is returned alongside false; no other operator errors.
func Compare(cond *CompiledCondition, ctx types.Context) (bool, error) {
	switch cond.Operator {
	case OpEquals:
		return ctx.URL == cond.Value, nil
	case OpContains:
		return strings.Contains(ctx.URL, cond.Value), nil
	case OpMatches:
		if cond.Pattern == nil {
			return false, nil
		}
		return cond.Pattern.MatchString(ctx.URL), nil
	case OpExpression:
		return evalExpression(cond, ctx)
	default:
		return false, nil
	}
}

// evalExpression runs the CEL program with the context as activation.
// Non-bool results cannot occur (rejected at compile time) but are treated as false.
func evalExpression(cond *CompiledCondition, ctx types.Context) (bool, error) {
	if cond.Program == nil {
		return false, nil
	}
	out, _, err := cond.Program.Eval(map[string]any{
		"url":       ctx.URL,
		"referrer":  ctx.Referrer,
		"timestamp": ctx.Timestamp,
	})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}
