package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DependencyEffect is one triggered action from evaluating a field's
// dependency rules against submitted form values.
type DependencyEffect struct {
	DependencyID string `json:"dependencyId"`
	Action       string `json:"action"`
	TargetID     string `json:"targetFieldId"`
	PrefillValue any    `json:"prefillValue,omitempty"`
}

// Comparison operators are compiled to expr-lang programs over a
// {value, expected} environment and cached for the process lifetime.
var comparisonExprs = map[string]string{
	"==":           "value == expected",
	"=":            "value == expected",
	"equals":       "value == expected",
	"!=":           "value != expected",
	"not_equals":   "value != expected",
	">":            "value > expected",
	">=":           "value >= expected",
	"<":            "value < expected",
	"<=":           "value <= expected",
	"contains":     `value contains expected`,
	"is_empty":     `value == nil || value == ""`,
	"is_not_empty": `value != nil && value != ""`,
}

var (
	comparisonOnce  sync.Once
	comparisonProgs map[string]*vm.Program
)

func compiledComparisons() map[string]*vm.Program {
	comparisonOnce.Do(func() {
		comparisonProgs = make(map[string]*vm.Program, len(comparisonExprs))
		for op, src := range comparisonExprs {
			prog, err := expr.Compile(src, expr.AsBool())
			if err != nil {
				// Operator table is static; a compile failure is a programming error.
				panic(fmt.Sprintf("compile comparison %q: %v", op, err))
			}
			comparisonProgs[op] = prog
		}
	})
	return comparisonProgs
}

// EvaluateComparison applies a single operator to an actual and expected
// value. Unknown operators and type-mismatched comparisons evaluate to
// false rather than failing.
func EvaluateComparison(operator string, actual, expected any) bool {
	prog, ok := compiledComparisons()[strings.TrimSpace(operator)]
	if !ok {
		return false
	}
	result, err := expr.Run(prog, map[string]any{"value": actual, "expected": expected})
	if err != nil {
		return false
	}
	matched, _ := result.(bool)
	return matched
}

// EvaluateDependencies runs every rule of a field against the submitted
// values and returns the effects of the rules whose condition sequences
// match. Groups within a sequence are OR-ed; conditions within a group
// are AND-ed. A rule without a parseable sequence falls back to its
// top-level dependsOnId/condition/value triple.
func EvaluateDependencies(deps []FieldDependency, values map[string]any) []DependencyEffect {
	effects := []DependencyEffect{}
	for _, dep := range deps {
		if !dependencyMatches(dep, values) {
			continue
		}
		effect := DependencyEffect{
			DependencyID: dep.ID,
			Action:       "show",
			TargetID:     dep.DependsOnID,
		}
		if dep.Params != nil {
			if dep.Params.Action != "" {
				effect.Action = dep.Params.Action
			}
			effect.PrefillValue = dep.Params.PrefillValue
		}
		effects = append(effects, effect)
	}
	return effects
}

func dependencyMatches(dep FieldDependency, values map[string]any) bool {
	if groups := conditionGroups(dep.Sequence); len(groups) > 0 {
		for _, group := range groups {
			if groupMatches(group, values) {
				return true
			}
		}
		return false
	}

	// Legacy single-condition rules keep the comparison on the row itself.
	if dep.Condition == "" {
		return false
	}
	return EvaluateComparison(dep.Condition, values[dep.DependsOnID], dep.Value)
}

// conditionGroups extracts sequence.conditions as [][]condition maps.
func conditionGroups(sequence any) [][]map[string]any {
	seq, ok := sequence.(map[string]any)
	if !ok {
		return nil
	}
	rawGroups, ok := seq["conditions"].([]any)
	if !ok {
		return nil
	}

	groups := make([][]map[string]any, 0, len(rawGroups))
	for _, rawGroup := range rawGroups {
		list, ok := rawGroup.([]any)
		if !ok {
			continue
		}
		group := make([]map[string]any, 0, len(list))
		for _, rawCond := range list {
			if cond, ok := rawCond.(map[string]any); ok {
				group = append(group, cond)
			}
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func groupMatches(group []map[string]any, values map[string]any) bool {
	for _, cond := range group {
		target, _ := cond["targetFieldId"].(string)
		operator, _ := cond["operator"].(string)
		if operator == "" {
			operator, _ = cond["condition"].(string)
		}
		if !EvaluateComparison(operator, values[target], cond["value"]) {
			return false
		}
	}
	return true
}
