// internal/rules/compile.go
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/solatis/experiences/internal/types"
)

/*
 * Targeting rule compilation and validation.
 *
 * Compiles types.TargetingRule to CompiledTargeting: a flat AND list of
 * tagged conditions (contains | equals | matches | expression), ordered by
 * ascending cost for short-circuit evaluation.
 *
 * Compilation workflow:
 *   1. Expand each configured url sub-rule into one condition
 *   2. Compile matches patterns as RE2 source; flags use inline (?i) syntax
 *   3. Compile the CEL expression and require a bool result type
 *   4. Order conditions by ascending cost (stable sort for determinism)
 *
 * Compile-time validation moves pattern and expression errors to
 * registration, so Match never has to report a configuration error.
 *
 * Stable sort keeps equal-cost conditions in declaration order, which keeps
 * the failing condition reported in MatchResult identical across runs.
 */

// Operator tags the variant of a compiled condition.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEquals
	OpContains
	OpMatches
	OpExpression
)

// String returns the rule field name the operator was compiled from.
func (op Operator) String() string {
	switch op {
	case OpEquals:
		return "url.equals"
	case OpContains:
		return "url.contains"
	case OpMatches:
		return "url.matches"
	case OpExpression:
		return "expression"
	default:
		return "unspecified"
	}
}

// CompiledCondition is one pre-processed targeting check.
type CompiledCondition struct {
	Operator Operator
	Value    string         // configured string or pattern/expression source
	Pattern  *regexp.Regexp // OpMatches only
	Program  cel.Program    // OpExpression only
	Cost     int
}

// CompiledTargeting is a fully validated rule ready for Match.
// Zero conditions means the rule matches unconditionally.
type CompiledTargeting struct {
	Conditions []CompiledCondition // ordered by ascending cost
}

// IsEmpty reports whether the compiled rule matches unconditionally.
func (ct *CompiledTargeting) IsEmpty() bool {
	return ct == nil || len(ct.Conditions) == 0
}

// CEL cost limit bounds evaluation work per expression.
const celCostLimit = 100000

// celEnv is shared by every compiled expression. Variables mirror Context.
var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("url", cel.StringType),
		cel.Variable("referrer", cel.StringType),
		cel.Variable("timestamp", cel.IntType),
	)
})

// Compile validates and pre-processes a targeting rule.
// Errors are *types.ConfigError with Field set; ExperienceID is left for
// the caller (registry) to fill in.
func Compile(rule types.TargetingRule) (*CompiledTargeting, error) {
	compiled := &CompiledTargeting{}

	if u := rule.URL; u != nil {
		if u.Equals != "" {
			compiled.Conditions = append(compiled.Conditions, CompiledCondition{
				Operator: OpEquals,
				Value:    u.Equals,
			})
		}
		if u.Contains != "" {
			compiled.Conditions = append(compiled.Conditions, CompiledCondition{
				Operator: OpContains,
				Value:    u.Contains,
			})
		}
		if u.Matches != "" {
			re, err := compilePattern(u.Matches)
			if err != nil {
				return nil, &types.ConfigError{
					Field: "targeting.url.matches",
					Err:   fmt.Errorf("%w: %v", types.ErrInvalidPattern, err),
				}
			}
			compiled.Conditions = append(compiled.Conditions, CompiledCondition{
				Operator: OpMatches,
				Value:    u.Matches,
				Pattern:  re,
			})
		}
	}

	if rule.Expression != "" {
		prog, err := compileExpression(rule.Expression)
		if err != nil {
			return nil, &types.ConfigError{
				Field: "targeting.expression",
				Err:   fmt.Errorf("%w: %v", types.ErrInvalidExpression, err),
			}
		}
		compiled.Conditions = append(compiled.Conditions, CompiledCondition{
			Operator: OpExpression,
			Value:    rule.Expression,
			Program:  prog,
		})
	}

	for i := range compiled.Conditions {
		c := &compiled.Conditions[i]
		c.Cost = CalculateConditionCost(c.Operator, c.Value)
	}

	sort.SliceStable(compiled.Conditions, func(i, j int) bool {
		return compiled.Conditions[i].Cost < compiled.Conditions[j].Cost
	})

	return compiled, nil
}

// compilePattern compiles RE2 source verbatim. Slashes are ordinary
// characters: /shop/ matches only URLs containing "/shop/".
func compilePattern(src string) (*regexp.Regexp, error) {
	return regexp.Compile(src)
}

// compileExpression type-checks a CEL predicate and builds its program.
// Non-bool expressions are rejected here rather than evaluating to false.
func compileExpression(expr string) (cel.Program, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}

	prog, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}
