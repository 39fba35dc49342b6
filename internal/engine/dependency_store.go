package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fieldengine/internal/store"
)

// FieldDependency is an ordered rule chaining condition groups to an
// action (show, hide, prefill) on its owning field.
type FieldDependency struct {
	ID          string            `json:"id"`
	FieldID     string            `json:"fieldId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Sequence    any               `json:"sequence"`
	Order       int               `json:"order"`
	DependsOnID string            `json:"dependsOnId"`
	Condition   string            `json:"condition"`
	Value       string            `json:"value,omitempty"`
	Params      *DependencyParams `json:"params,omitempty"`
}

// DependencyParams carries the rule's effect.
type DependencyParams struct {
	Action       string `json:"action,omitempty"`
	PrefillValue any    `json:"prefillValue,omitempty"`
}

// CreateDependencyInput is the POST body for a new dependency rule.
type CreateDependencyInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Sequence      any    `json:"sequence"`
	Order         *int   `json:"order"`
	TargetFieldID string `json:"targetFieldId"`
	Operator      string `json:"operator"`
	Value         string `json:"value"`
	Action        string `json:"action"`
	PrefillValue  any    `json:"prefillValue"`
}

// UpdateDependencyInput is the partial PUT body. Nil fields are left
// untouched, never nulled.
type UpdateDependencyInput struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Sequence      any     `json:"sequence"`
	Order         *int    `json:"order"`
	TargetFieldID *string `json:"targetFieldId"`
	Operator      *string `json:"operator"`
	Value         *string `json:"value"`
	Action        *string `json:"action"`
	PrefillValue  any     `json:"prefillValue"`
}

// OrderUpdate is one entry of a batch reorder.
type OrderUpdate struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// DependencyStore owns FieldDependency persistence.
type DependencyStore struct {
	store *store.Store
}

func NewDependencyStore(s *store.Store) *DependencyStore {
	return &DependencyStore{store: s}
}

// List returns the field's dependency rules ascending by order, with
// sequences decoded.
func (ds *DependencyStore) List(ctx context.Context, fieldID string) ([]FieldDependency, error) {
	return ds.list(ctx, ds.store.DB, fieldID)
}

func (ds *DependencyStore) list(ctx context.Context, q store.Querier, fieldID string) ([]FieldDependency, error) {
	pb := ds.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, q, fmt.Sprintf(
		`SELECT id, field_id, name, description, sequence, ord, depends_on_id, condition, value, params
		 FROM field_dependencies WHERE field_id = %s ORDER BY ord ASC`, pb.Add(fieldID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}

	deps := make([]FieldDependency, 0, len(rows))
	for _, row := range rows {
		deps = append(deps, dependencyFromRow(row))
	}
	return deps, nil
}

func dependencyFromRow(row map[string]any) FieldDependency {
	dep := FieldDependency{
		ID:          str(row["id"]),
		FieldID:     str(row["field_id"]),
		Name:        str(row["name"]),
		Description: str(row["description"]),
		Sequence:    DecodeSequence(row["sequence"]),
		Order:       intVal(row["ord"]),
		DependsOnID: str(row["depends_on_id"]),
		Condition:   str(row["condition"]),
		Value:       str(row["value"]),
	}
	if raw := DecodeSequence(row["params"]); raw != nil {
		if m, ok := raw.(map[string]any); ok {
			dep.Params = &DependencyParams{
				Action:       str(m["action"]),
				PrefillValue: m["prefillValue"],
			}
		}
	}
	return dep
}

// Create inserts a rule and returns the field's full recomputed list.
// The referenced field is resolved from the explicit targetFieldId or
// from the first condition of the sequence; neither resolving is a
// validation error, not a guess.
func (ds *DependencyStore) Create(ctx context.Context, fieldID string, in CreateDependencyInput) ([]FieldDependency, error) {
	dependsOnID := in.TargetFieldID
	if dependsOnID == "" {
		dependsOnID = firstConditionTarget(in.Sequence)
	}
	if dependsOnID == "" {
		return nil, ValidationError("targetFieldId is required to create a dependency")
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		max, err := ds.maxOrder(ctx, fieldID)
		if err != nil {
			return nil, err
		}
		if max >= 0 {
			order = max + 1
		}
	}

	seq := "[]"
	if in.Sequence != nil {
		encoded, err := EncodeSequence(in.Sequence)
		if err != nil {
			return nil, ValidationError("sequence is not serializable")
		}
		seq = encoded
	}

	var params any
	if in.Action != "" || in.PrefillValue != nil {
		encoded, err := EncodeSequence(DependencyParams{Action: in.Action, PrefillValue: in.PrefillValue})
		if err != nil {
			return nil, ValidationError("params are not serializable")
		}
		params = encoded
	}

	pb := ds.store.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, ds.store.DB, fmt.Sprintf(
		`INSERT INTO field_dependencies (id, field_id, name, description, sequence, ord, depends_on_id, condition, value, params)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(store.GenerateUUID()), pb.Add(fieldID), pb.Add(in.Name), pb.Add(in.Description),
		pb.Add(seq), pb.Add(order), pb.Add(dependsOnID), pb.Add(in.Operator),
		pb.Add(nilIfEmpty(in.Value)), pb.Add(params)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("create dependency: %w", store.MapError(ds.store.Dialect, err))
	}

	return ds.List(ctx, fieldID)
}

// firstConditionTarget digs sequence.conditions[0][0].targetFieldId out of
// a loosely-shaped sequence body.
func firstConditionTarget(sequence any) string {
	seq, ok := sequence.(map[string]any)
	if !ok {
		return ""
	}
	groups, ok := seq["conditions"].([]any)
	if !ok || len(groups) == 0 {
		return ""
	}
	group, ok := groups[0].([]any)
	if !ok || len(group) == 0 {
		return ""
	}
	cond, ok := group[0].(map[string]any)
	if !ok {
		return ""
	}
	target, _ := cond["targetFieldId"].(string)
	return target
}

// maxOrder returns the highest order for the field, or -1 when it has no
// dependencies yet.
func (ds *DependencyStore) maxOrder(ctx context.Context, fieldID string) (int, error) {
	pb := ds.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, ds.store.DB, fmt.Sprintf(
		`SELECT MAX(ord) AS max_ord FROM field_dependencies WHERE field_id = %s`, pb.Add(fieldID)),
		pb.Params()...)
	if err != nil {
		return -1, fmt.Errorf("max order: %w", err)
	}
	if row["max_ord"] == nil {
		return -1, nil
	}
	return intVal(row["max_ord"]), nil
}

// Update applies a partial change and returns the full recomputed list.
func (ds *DependencyStore) Update(ctx context.Context, fieldID, depID string, in UpdateDependencyInput) ([]FieldDependency, error) {
	pb := ds.store.Dialect.NewParamBuilder()
	existing, err := store.QueryRow(ctx, ds.store.DB, fmt.Sprintf(
		`SELECT id, params FROM field_dependencies WHERE id = %s AND field_id = %s`,
		pb.Add(depID), pb.Add(fieldID)), pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError("dependency", depID)
		}
		return nil, fmt.Errorf("fetch dependency: %w", err)
	}

	set := []string{}
	upb := ds.store.Dialect.NewParamBuilder()
	addSet := func(col string, v any) {
		set = append(set, fmt.Sprintf("%s = %s", col, upb.Add(v)))
	}

	if in.Name != nil {
		addSet("name", *in.Name)
	}
	if in.Description != nil {
		addSet("description", *in.Description)
	}
	if in.Sequence != nil {
		encoded, err := EncodeSequence(in.Sequence)
		if err != nil {
			return nil, ValidationError("sequence is not serializable")
		}
		addSet("sequence", encoded)
	}
	if in.Order != nil {
		addSet("ord", *in.Order)
	}
	if in.TargetFieldID != nil {
		addSet("depends_on_id", *in.TargetFieldID)
	}
	if in.Operator != nil {
		addSet("condition", *in.Operator)
	}
	if in.Value != nil {
		addSet("value", *in.Value)
	}
	if in.Action != nil || in.PrefillValue != nil {
		params := DependencyParams{PrefillValue: in.PrefillValue}
		if in.Action != nil {
			params.Action = *in.Action
		}
		encoded, err := EncodeSequence(params)
		if err != nil {
			return nil, ValidationError("params are not serializable")
		}
		addSet("params", encoded)
	}

	if len(set) > 0 {
		stmt := fmt.Sprintf("UPDATE field_dependencies SET %s, updated_at = %s WHERE id = %s",
			strings.Join(set, ", "), ds.store.Dialect.NowExpr(), upb.Add(str(existing["id"])))
		if _, err := store.Exec(ctx, ds.store.DB, stmt, upb.Params()...); err != nil {
			return nil, fmt.Errorf("update dependency: %w", store.MapError(ds.store.Dialect, err))
		}
	}

	return ds.List(ctx, fieldID)
}

// Delete removes one rule by ID. Missing rules report NotFound.
func (ds *DependencyStore) Delete(ctx context.Context, fieldID, depID string) error {
	pb := ds.store.Dialect.NewParamBuilder()
	n, err := store.Exec(ctx, ds.store.DB, fmt.Sprintf(
		`DELETE FROM field_dependencies WHERE id = %s AND field_id = %s`,
		pb.Add(depID), pb.Add(fieldID)), pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete dependency: %w", err)
	}
	if n == 0 {
		return NotFoundError("dependency", depID)
	}
	return nil
}

// Reorder applies a full batch of {id, order} pairs atomically. A pair
// naming a rule outside the field aborts the whole batch, leaving the
// prior ordering intact.
func (ds *DependencyStore) Reorder(ctx context.Context, fieldID string, updates []OrderUpdate) error {
	return ds.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			pb := ds.store.Dialect.NewParamBuilder()
			n, err := store.Exec(ctx, tx, fmt.Sprintf(
				`UPDATE field_dependencies SET ord = %s, updated_at = %s WHERE id = %s AND field_id = %s`,
				pb.Add(u.Order), ds.store.Dialect.NowExpr(), pb.Add(u.ID), pb.Add(fieldID)), pb.Params()...)
			if err != nil {
				return fmt.Errorf("reorder dependency %s: %w", u.ID, err)
			}
			if n == 0 {
				return NotFoundError("dependency", u.ID)
			}
		}
		return nil
	})
}

func intVal(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
