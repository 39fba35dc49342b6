package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeLoader struct {
	variables  []*Variable
	formulas   []*Formula
	conditions []*Condition
	tables     []*Table
	err        error
}

func (f *fakeLoader) LoadVariables(ctx context.Context, treeID string) ([]*Variable, error) {
	return f.variables, f.err
}
func (f *fakeLoader) LoadFormulas(ctx context.Context, treeID string) ([]*Formula, error) {
	return f.formulas, nil
}
func (f *fakeLoader) LoadConditions(ctx context.Context, treeID string) ([]*Condition, error) {
	return f.conditions, nil
}
func (f *fakeLoader) LoadTables(ctx context.Context, treeID string) ([]*Table, error) {
	return f.tables, nil
}

func TestResolveCapabilities_OnePerVariable(t *testing.T) {
	loader := &fakeLoader{
		variables: []*Variable{
			{ID: "v1", NodeID: "n1"},
			{ID: "v2", NodeID: "n2", SourceRef: "formula:f9"},
			{ID: "v3", NodeID: "n3", SourceType: "fixed"},
		},
	}
	caps, err := NewResolver(loader).ResolveCapabilities(context.Background(), "tree-1", ResolveOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(caps) != len(loader.variables) {
		t.Fatalf("got %d capabilities for %d variables", len(caps), len(loader.variables))
	}
	for i, cap := range caps {
		if cap.VariableID != loader.variables[i].ID {
			t.Fatalf("capability %d bound to %s", i, cap.VariableID)
		}
	}
}

func TestResolveCapabilities_EmptyTree(t *testing.T) {
	caps, err := NewResolver(&fakeLoader{}).ResolveCapabilities(context.Background(), "tree-1", ResolveOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if caps == nil || len(caps) != 0 {
		t.Fatalf("empty tree resolved to %v", caps)
	}
}

func TestResolveCapabilities_LoaderErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewResolver(&fakeLoader{err: boom}).ResolveCapabilities(context.Background(), "tree-1", ResolveOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped loader error", err)
	}
}

func TestResolveCapabilities_StructuralInferenceWithDeps(t *testing.T) {
	// A variable with no sourceRef on a node owning a formula classifies
	// as formula, and dependency extraction reads the formula's tokens.
	loader := &fakeLoader{
		variables: []*Variable{{ID: "v1", NodeID: "n1"}},
		formulas: []*Formula{{
			ID:     "f1",
			NodeID: "n1",
			Tokens: []any{map[string]any{"type": "ref", "value": "n2"}},
		}},
	}
	caps, err := NewResolver(loader).ResolveCapabilities(context.Background(), "tree-1",
		ResolveOptions{ExtractDependencies: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cap := caps[0]
	if cap.Capacity != CapacityFormula {
		t.Fatalf("capacity = %s, want formula", cap.Capacity)
	}
	if !cap.HasFormula {
		t.Fatal("hasFormula = false")
	}
	if !reflect.DeepEqual(cap.Dependencies, []string{"n2"}) {
		t.Fatalf("dependencies = %v, want [n2]", cap.Dependencies)
	}
}

func TestResolveCapabilities_RawAttachment(t *testing.T) {
	formula := &Formula{ID: "f1", NodeID: "n1", Tokens: []any{}}
	loader := &fakeLoader{
		variables: []*Variable{{ID: "v1", NodeID: "n1", SourceRef: "formula:f1"}},
		formulas:  []*Formula{formula},
	}

	caps, err := NewResolver(loader).ResolveCapabilities(context.Background(), "tree-1", ResolveOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if caps[0].Raw != nil {
		t.Fatal("raw attached without IncludeRaw")
	}

	caps, err = NewResolver(loader).ResolveCapabilities(context.Background(), "tree-1",
		ResolveOptions{IncludeRaw: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if caps[0].Raw != formula {
		t.Fatalf("raw = %v, want the owning formula", caps[0].Raw)
	}
}

func TestResolveCapabilities_ConditionDeps(t *testing.T) {
	loader := &fakeLoader{
		variables: []*Variable{{ID: "v1", NodeID: "n1", SourceRef: "condition:c1"}},
		conditions: []*Condition{{
			ID:     "c1",
			NodeID: "n1",
			ConditionSet: map[string]any{
				"all": []any{map[string]any{"ref": "@value." + nodeA}},
			},
		}},
	}
	caps, err := NewResolver(loader).ResolveCapabilities(context.Background(), "tree-1",
		ResolveOptions{ExtractDependencies: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(caps[0].Dependencies, []string{nodeA}) {
		t.Fatalf("dependencies = %v", caps[0].Dependencies)
	}
}

func TestResolveCapabilities_TableHasNoDeps(t *testing.T) {
	loader := &fakeLoader{
		variables: []*Variable{{ID: "v1", NodeID: "n1", SourceRef: "table:t1"}},
		tables:    []*Table{{ID: "t1", NodeID: "n1", Meta: map[string]any{"ref": "ignored"}}},
	}
	caps, err := NewResolver(loader).ResolveCapabilities(context.Background(), "tree-1",
		ResolveOptions{ExtractDependencies: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if caps[0].Dependencies != nil {
		t.Fatalf("table capability carries deps: %v", caps[0].Dependencies)
	}
}
