package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fieldengine/internal/config"
	"fieldengine/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		Name:   "engine_test",
		Path:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s
}

func seedField(t *testing.T, s *store.Store) string {
	t.Helper()
	id := store.GenerateUUID()
	pb := s.Dialect.NewParamBuilder()
	_, err := store.Exec(context.Background(), s.DB, fmt.Sprintf(
		"INSERT INTO fields (id, label) VALUES (%s, %s)", pb.Add(id), pb.Add("Test field")),
		pb.Params()...)
	if err != nil {
		t.Fatalf("seed field: %v", err)
	}
	return id
}

func TestDependencyStore_CreateDefaultsOrder(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	ctx := context.Background()
	fieldID := seedField(t, s)

	// First rule with no explicit order lands at 0.
	deps, err := ds.Create(ctx, fieldID, CreateDependencyInput{
		Name:          "first",
		TargetFieldID: "f-a",
		Operator:      "==",
		Value:         "x",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(deps) != 1 || deps[0].Order != 0 {
		t.Fatalf("first rule order = %v", deps)
	}

	// Second rule appends at max+1.
	deps, err = ds.Create(ctx, fieldID, CreateDependencyInput{
		Name:          "second",
		TargetFieldID: "f-b",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(deps) != 2 || deps[1].Order != 1 {
		t.Fatalf("second rule order = %v", deps)
	}

	// Explicit order wins over the default.
	deps, err = ds.Create(ctx, fieldID, CreateDependencyInput{
		Name:          "third",
		TargetFieldID: "f-c",
		Order:         intPtr(10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if deps[len(deps)-1].Order != 10 {
		t.Fatalf("explicit order ignored: %v", deps)
	}
}

func TestDependencyStore_CreateResolvesTargetFromSequence(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	ctx := context.Background()
	fieldID := seedField(t, s)

	deps, err := ds.Create(ctx, fieldID, CreateDependencyInput{
		Name: "seq-derived",
		Sequence: map[string]any{
			"conditions": []any{
				[]any{map[string]any{"targetFieldId": "f-origin", "operator": "==", "value": "1"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if deps[0].DependsOnID != "f-origin" {
		t.Fatalf("dependsOnId = %q, want f-origin", deps[0].DependsOnID)
	}
}

func TestDependencyStore_CreateWithoutTargetFails(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	fieldID := seedField(t, s)

	_, err := ds.Create(context.Background(), fieldID, CreateDependencyInput{Name: "no target"})
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Status != 400 {
		t.Fatalf("got %v, want 400 validation error", err)
	}
}

func TestDependencyStore_UpdateReturnsFullList(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	ctx := context.Background()
	fieldID := seedField(t, s)

	deps, err := ds.Create(ctx, fieldID, CreateDependencyInput{
		Name:          "rule",
		TargetFieldID: "f-a",
		Action:        "hide",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	depID := deps[0].ID

	newName := "renamed"
	deps, err = ds.Update(ctx, fieldID, depID, UpdateDependencyInput{Name: &newName})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if deps[0].Name != "renamed" {
		t.Fatalf("name = %q", deps[0].Name)
	}
	// Untouched fields survive the partial update.
	if deps[0].Params == nil || deps[0].Params.Action != "hide" {
		t.Fatalf("params lost in update: %+v", deps[0].Params)
	}
}

func TestDependencyStore_UpdateMissing(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	fieldID := seedField(t, s)

	name := "x"
	_, err := ds.Update(context.Background(), fieldID, "no-such-id", UpdateDependencyInput{Name: &name})
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Status != 404 {
		t.Fatalf("got %v, want 404", err)
	}
}

func TestDependencyStore_Delete(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	ctx := context.Background()
	fieldID := seedField(t, s)

	deps, err := ds.Create(ctx, fieldID, CreateDependencyInput{Name: "rule", TargetFieldID: "f-a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ds.Delete(ctx, fieldID, deps[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var appErr *AppError
	if err := ds.Delete(ctx, fieldID, deps[0].ID); !errors.As(err, &appErr) || appErr.Status != 404 {
		t.Fatalf("second delete: got %v, want 404", err)
	}
}

func TestDependencyStore_ReorderAtomic(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	ctx := context.Background()
	fieldID := seedField(t, s)

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		deps, err := ds.Create(ctx, fieldID, CreateDependencyInput{Name: name, TargetFieldID: "f-" + name})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		ids = append(ids, deps[len(deps)-1].ID)
	}

	// Swap first and last.
	err := ds.Reorder(ctx, fieldID, []OrderUpdate{
		{ID: ids[0], Order: 2},
		{ID: ids[1], Order: 1},
		{ID: ids[2], Order: 0},
	})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	deps, err := ds.List(ctx, fieldID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if deps[0].ID != ids[2] || deps[2].ID != ids[0] {
		t.Fatalf("reorder not applied: %v", deps)
	}

	// A batch naming a foreign rule aborts without touching the others.
	err = ds.Reorder(ctx, fieldID, []OrderUpdate{
		{ID: ids[0], Order: 0},
		{ID: "not-ours", Order: 1},
	})
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Status != 404 {
		t.Fatalf("got %v, want 404", err)
	}
	deps, err = ds.List(ctx, fieldID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if deps[0].ID != ids[2] {
		t.Fatalf("failed batch leaked a partial write: %v", deps)
	}
}

func TestDependencyStore_MalformedSequenceRecovers(t *testing.T) {
	s := testStore(t)
	ds := NewDependencyStore(s)
	ctx := context.Background()
	fieldID := seedField(t, s)

	// Corrupted legacy row written directly, bypassing the store.
	pb := s.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, s.DB, fmt.Sprintf(
		`INSERT INTO field_dependencies (id, field_id, name, sequence, ord, depends_on_id)
		 VALUES (%s, %s, %s, %s, %s, %s)`,
		pb.Add(store.GenerateUUID()), pb.Add(fieldID), pb.Add("legacy"),
		pb.Add(`{"conditions": [truncated`), pb.Add(0), pb.Add("f-x")), pb.Params()...)
	if err != nil {
		t.Fatalf("seed corrupted row: %v", err)
	}

	deps, err := ds.List(ctx, fieldID)
	if err != nil {
		t.Fatalf("list must not fail on corrupted blobs: %v", err)
	}
	list, ok := deps[0].Sequence.([]any)
	if !ok || len(list) != 0 {
		t.Fatalf("corrupted sequence decoded to %v, want empty array", deps[0].Sequence)
	}
}

func intPtr(v int) *int { return &v }
