package engine

import "testing"

func lookupsWith(nodeID string, f bool, c bool, tb bool) Lookups {
	lk := Lookups{
		FormulaByNode:   map[string]*Formula{},
		ConditionByNode: map[string]*Condition{},
		TableByNode:     map[string]*Table{},
	}
	if f {
		lk.FormulaByNode[nodeID] = &Formula{ID: "f1", NodeID: nodeID}
	}
	if c {
		lk.ConditionByNode[nodeID] = &Condition{ID: "c1", NodeID: nodeID}
	}
	if tb {
		lk.TableByNode[nodeID] = &Table{ID: "t1", NodeID: nodeID}
	}
	return lk
}

func TestClassify_SourceRefPrefixes(t *testing.T) {
	cases := []struct {
		sourceRef string
		want      Capacity
	}{
		{"formula:abc", CapacityFormula},
		{"node-formula:abc", CapacityFormula},
		{"condition:abc", CapacityCondition},
		{"table:abc", CapacityTable},
	}
	for _, tc := range cases {
		v := &Variable{ID: "v1", NodeID: "n1", SourceRef: tc.sourceRef}
		got := Classify(v, lookupsWith("n1", false, false, false))
		if got.Capacity != tc.want {
			t.Fatalf("sourceRef=%q: got %s, want %s", tc.sourceRef, got.Capacity, tc.want)
		}
	}
}

func TestClassify_ExplicitRefOutranksStructure(t *testing.T) {
	// A condition: ref wins even when the node also owns a formula.
	v := &Variable{ID: "v1", NodeID: "n1", SourceRef: "condition:c9"}
	got := Classify(v, lookupsWith("n1", true, true, true))
	if got.Capacity != CapacityCondition {
		t.Fatalf("got %s, want condition", got.Capacity)
	}
	if !got.HasFormula || !got.HasCondition || !got.HasTable {
		t.Fatal("structural flags must report ownership regardless of capacity")
	}
}

func TestClassify_Fixed(t *testing.T) {
	v := &Variable{ID: "v1", NodeID: "n1", SourceType: "fixed"}
	if got := Classify(v, lookupsWith("n1", false, false, false)); got.Capacity != CapacityFixed {
		t.Fatalf("sourceType=fixed: got %s", got.Capacity)
	}

	v = &Variable{ID: "v1", NodeID: "n1", FixedValue: "42"}
	if got := Classify(v, lookupsWith("n1", false, false, false)); got.Capacity != CapacityFixed {
		t.Fatalf("fixedValue set: got %s", got.Capacity)
	}
}

func TestClassify_UnrecognizedRefIsData(t *testing.T) {
	v := &Variable{ID: "v1", NodeID: "n1", SourceRef: "some-node-id"}
	got := Classify(v, lookupsWith("n1", true, false, false))
	if got.Capacity != CapacityData {
		t.Fatalf("got %s, want data", got.Capacity)
	}
}

func TestClassify_StructuralFallbackOrder(t *testing.T) {
	cases := []struct {
		f, c, tb bool
		want     Capacity
	}{
		{true, true, true, CapacityFormula},
		{false, true, true, CapacityCondition},
		{false, false, true, CapacityTable},
		{false, false, false, CapacityData},
	}
	for _, tc := range cases {
		v := &Variable{ID: "v1", NodeID: "n1"}
		got := Classify(v, lookupsWith("n1", tc.f, tc.c, tc.tb))
		if got.Capacity != tc.want {
			t.Fatalf("f=%v c=%v t=%v: got %s, want %s", tc.f, tc.c, tc.tb, got.Capacity, tc.want)
		}
	}
}

func TestClassify_Total(t *testing.T) {
	// The empty variable still classifies; the floor is data.
	got := Classify(&Variable{}, lookupsWith("", false, false, false))
	if got.Capacity != CapacityData {
		t.Fatalf("empty variable classified as %s", got.Capacity)
	}
}

func TestSourceRefID(t *testing.T) {
	if got := SourceRefID("formula:abc-123"); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
	if got := SourceRefID("untagged"); got != "untagged" {
		t.Fatalf("got %q", got)
	}
}
