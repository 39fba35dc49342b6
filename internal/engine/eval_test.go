package engine

import "testing"

func TestEvaluateComparison(t *testing.T) {
	cases := []struct {
		op       string
		actual   any
		expected any
		want     bool
	}{
		{"==", "yes", "yes", true},
		{"==", "yes", "no", false},
		{"equals", float64(5), float64(5), true},
		{"!=", "a", "b", true},
		{">", float64(10), float64(5), true},
		{"<=", float64(5), float64(5), true},
		{"contains", "hello world", "world", true},
		{"contains", "hello", "world", false},
		{"is_empty", "", nil, true},
		{"is_empty", "x", nil, false},
		{"is_not_empty", "x", nil, true},
	}
	for _, tc := range cases {
		if got := EvaluateComparison(tc.op, tc.actual, tc.expected); got != tc.want {
			t.Fatalf("%s(%v, %v) = %v, want %v", tc.op, tc.actual, tc.expected, got, tc.want)
		}
	}
}

func TestEvaluateComparison_Degenerate(t *testing.T) {
	// Unknown operators and mismatched types evaluate to false, never panic.
	if EvaluateComparison("no_such_op", 1, 1) {
		t.Fatal("unknown operator matched")
	}
	if EvaluateComparison(">", "text", float64(3)) {
		t.Fatal("type mismatch matched")
	}
}

func TestEvaluateDependencies_SequenceGroups(t *testing.T) {
	deps := []FieldDependency{{
		ID:          "d1",
		DependsOnID: "f-source",
		Sequence: map[string]any{
			"conditions": []any{
				// Group 1: country == FR AND age > 18
				[]any{
					map[string]any{"targetFieldId": "country", "operator": "==", "value": "FR"},
					map[string]any{"targetFieldId": "age", "operator": ">", "value": float64(18)},
				},
				// Group 2: vip == true
				[]any{
					map[string]any{"targetFieldId": "vip", "operator": "==", "value": true},
				},
			},
		},
		Params: &DependencyParams{Action: "prefill", PrefillValue: "TVA 20%"},
	}}

	// First group fully satisfied.
	effects := EvaluateDependencies(deps, map[string]any{"country": "FR", "age": float64(30)})
	if len(effects) != 1 {
		t.Fatalf("got %d effects", len(effects))
	}
	if effects[0].Action != "prefill" || effects[0].PrefillValue != "TVA 20%" {
		t.Fatalf("effect = %+v", effects[0])
	}

	// First group half satisfied, second group satisfied: OR applies.
	effects = EvaluateDependencies(deps, map[string]any{"country": "FR", "vip": true})
	if len(effects) != 1 {
		t.Fatalf("OR across groups failed: %v", effects)
	}

	// No group satisfied.
	effects = EvaluateDependencies(deps, map[string]any{"country": "DE", "age": float64(30)})
	if len(effects) != 0 {
		t.Fatalf("unexpected effects: %v", effects)
	}
}

func TestEvaluateDependencies_LegacyFallback(t *testing.T) {
	deps := []FieldDependency{{
		ID:          "d1",
		DependsOnID: "status",
		Condition:   "==",
		Value:       "active",
	}}

	effects := EvaluateDependencies(deps, map[string]any{"status": "active"})
	if len(effects) != 1 {
		t.Fatalf("legacy rule did not match: %v", effects)
	}
	if effects[0].Action != "show" {
		t.Fatalf("default action = %s, want show", effects[0].Action)
	}
	if effects[0].TargetID != "status" {
		t.Fatalf("target = %s", effects[0].TargetID)
	}

	if got := EvaluateDependencies(deps, map[string]any{"status": "archived"}); len(got) != 0 {
		t.Fatalf("unexpected match: %v", got)
	}
}

func TestEvaluateDependencies_EmptyRuleNeverMatches(t *testing.T) {
	deps := []FieldDependency{{ID: "d1", DependsOnID: "x"}}
	effects := EvaluateDependencies(deps, map[string]any{"x": "anything"})
	if len(effects) != 0 {
		t.Fatalf("rule with no condition matched: %v", effects)
	}
	if effects == nil {
		t.Fatal("expected empty slice, got nil")
	}
}
