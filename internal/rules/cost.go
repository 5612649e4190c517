// internal/rules/cost.go
package rules

/*
 * Cost model for targeting condition evaluation.
 *
 * Cost formula: operator_cost * CostBand + min(len(value) / CostBytesPerUnit, CostBand - 1)
 *
 * Cheaper conditions run first so a failing equals check short-circuits
 * before a regexp or CEL program is executed. Value length only orders
 * conditions within the same operator band; the clamp keeps a long equals
 * string from sorting after a short regexp.
 */

// Canonical cost constants.
const (
	CostEquals     = 1
	CostContains   = 2
	CostMatches    = 4
	CostExpression = 8

	// Width of one operator band.
	CostBand = 1000

	// Value bytes per extra cost unit within a band.
	CostBytesPerUnit = 64
)

// CalculateConditionCost computes the ordering cost for a single condition.
func CalculateConditionCost(op Operator, value string) int {
	lengthCost := len(value) / CostBytesPerUnit
	if lengthCost > CostBand-1 {
		lengthCost = CostBand - 1
	}
	return operatorCost(op)*CostBand + lengthCost
}

// operatorCost returns base cost for operator execution.
func operatorCost(op Operator) int {
	switch op {
	case OpEquals:
		return CostEquals
	case OpContains:
		return CostContains
	case OpMatches:
		return CostMatches
	default:
		return CostExpression
	}
}
