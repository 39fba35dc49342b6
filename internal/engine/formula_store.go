package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fieldengine/internal/store"
)

// FieldFormula is a named, ordered token sequence owned by a field.
type FieldFormula struct {
	ID             string `json:"id"`
	FieldID        string `json:"fieldId"`
	Name           string `json:"name"`
	Sequence       []any  `json:"sequence"`
	Order          int    `json:"order"`
	TargetProperty string `json:"targetProperty,omitempty"`
}

// CreateFormulaInput is the POST body for a new formula.
type CreateFormulaInput struct {
	Name           string `json:"name"`
	Sequence       any    `json:"sequence"`
	Order          *int   `json:"order"`
	TargetProperty string `json:"targetProperty"`
}

// UpdateFormulaInput is the partial PUT body.
type UpdateFormulaInput struct {
	Name           *string `json:"name"`
	Sequence       any     `json:"sequence"`
	Order          *int    `json:"order"`
	TargetProperty *string `json:"targetProperty"`
}

// FormulaStore owns FieldFormula persistence.
type FormulaStore struct {
	store *store.Store
}

func NewFormulaStore(s *store.Store) *FormulaStore {
	return &FormulaStore{store: s}
}

// List returns the field's formulas ascending by order, sequences decoded.
func (fs *FormulaStore) List(ctx context.Context, fieldID string) ([]FieldFormula, error) {
	pb := fs.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, fs.store.DB, fmt.Sprintf(
		`SELECT id, field_id, name, sequence, ord, target_property
		 FROM field_formulas WHERE field_id = %s ORDER BY ord ASC`, pb.Add(fieldID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list formulas: %w", err)
	}

	formulas := make([]FieldFormula, 0, len(rows))
	for _, row := range rows {
		formulas = append(formulas, FieldFormula{
			ID:             str(row["id"]),
			FieldID:        str(row["field_id"]),
			Name:           str(row["name"]),
			Sequence:       DecodeSequenceSlice(row["sequence"]),
			Order:          intVal(row["ord"]),
			TargetProperty: str(row["target_property"]),
		})
	}
	return formulas, nil
}

// Create inserts a formula and returns the field's full recomputed list.
func (fs *FormulaStore) Create(ctx context.Context, fieldID string, in CreateFormulaInput) ([]FieldFormula, error) {
	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		max, err := fs.maxOrder(ctx, fieldID)
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

	pb := fs.store.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, fs.store.DB, fmt.Sprintf(
		`INSERT INTO field_formulas (id, field_id, name, sequence, ord, target_property)
		 VALUES (%s, %s, %s, %s, %s, %s)`,
		pb.Add(store.GenerateUUID()), pb.Add(fieldID), pb.Add(in.Name),
		pb.Add(seq), pb.Add(order), pb.Add(in.TargetProperty)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("create formula: %w", store.MapError(fs.store.Dialect, err))
	}

	return fs.List(ctx, fieldID)
}

func (fs *FormulaStore) maxOrder(ctx context.Context, fieldID string) (int, error) {
	pb := fs.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, fs.store.DB, fmt.Sprintf(
		`SELECT MAX(ord) AS max_ord FROM field_formulas WHERE field_id = %s`, pb.Add(fieldID)),
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
func (fs *FormulaStore) Update(ctx context.Context, fieldID, formulaID string, in UpdateFormulaInput) ([]FieldFormula, error) {
	if _, err := fs.fetch(ctx, fieldID, formulaID); err != nil {
		return nil, err
	}

	set := []string{}
	pb := fs.store.Dialect.NewParamBuilder()
	addSet := func(col string, v any) {
		set = append(set, fmt.Sprintf("%s = %s", col, pb.Add(v)))
	}

	if in.Name != nil {
		addSet("name", *in.Name)
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
	if in.TargetProperty != nil {
		addSet("target_property", *in.TargetProperty)
	}

	if len(set) > 0 {
		stmt := fmt.Sprintf("UPDATE field_formulas SET %s, updated_at = %s WHERE id = %s",
			strings.Join(set, ", "), fs.store.Dialect.NowExpr(), pb.Add(formulaID))
		if _, err := store.Exec(ctx, fs.store.DB, stmt, pb.Params()...); err != nil {
			return nil, fmt.Errorf("update formula: %w", store.MapError(fs.store.Dialect, err))
		}
	}

	return fs.List(ctx, fieldID)
}

// Delete removes one formula and returns the field's full recomputed list.
func (fs *FormulaStore) Delete(ctx context.Context, fieldID, formulaID string) ([]FieldFormula, error) {
	pb := fs.store.Dialect.NewParamBuilder()
	n, err := store.Exec(ctx, fs.store.DB, fmt.Sprintf(
		`DELETE FROM field_formulas WHERE id = %s AND field_id = %s`,
		pb.Add(formulaID), pb.Add(fieldID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("delete formula: %w", err)
	}
	if n == 0 {
		return nil, NotFoundError("formula", formulaID)
	}
	return fs.List(ctx, fieldID)
}

// DeleteSequenceElement removes exactly one element of the formula's
// sequence by index, re-serializes the remainder and returns the field's
// full formula list.
func (fs *FormulaStore) DeleteSequenceElement(ctx context.Context, fieldID, formulaID string, index int) ([]FieldFormula, error) {
	if index < 0 {
		return nil, ValidationError("invalid sequence index")
	}

	row, err := fs.fetch(ctx, fieldID, formulaID)
	if err != nil {
		return nil, err
	}

	sequence := DecodeSequenceSlice(row["sequence"])
	if index >= len(sequence) {
		return nil, ValidationError("sequence index out of range")
	}

	next := make([]any, 0, len(sequence)-1)
	next = append(next, sequence[:index]...)
	next = append(next, sequence[index+1:]...)

	encoded, err := EncodeSequence(next)
	if err != nil {
		return nil, fmt.Errorf("encode sequence: %w", err)
	}

	pb := fs.store.Dialect.NewParamBuilder()
	if _, err := store.Exec(ctx, fs.store.DB, fmt.Sprintf(
		`UPDATE field_formulas SET sequence = %s, updated_at = %s WHERE id = %s`,
		pb.Add(encoded), fs.store.Dialect.NowExpr(), pb.Add(formulaID)), pb.Params()...); err != nil {
		return nil, fmt.Errorf("update sequence: %w", err)
	}

	return fs.List(ctx, fieldID)
}

// Reorder applies a full batch of {id, order} pairs atomically.
func (fs *FormulaStore) Reorder(ctx context.Context, fieldID string, updates []OrderUpdate) error {
	return fs.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			pb := fs.store.Dialect.NewParamBuilder()
			n, err := store.Exec(ctx, tx, fmt.Sprintf(
				`UPDATE field_formulas SET ord = %s, updated_at = %s WHERE id = %s AND field_id = %s`,
				pb.Add(u.Order), fs.store.Dialect.NowExpr(), pb.Add(u.ID), pb.Add(fieldID)), pb.Params()...)
			if err != nil {
				return fmt.Errorf("reorder formula %s: %w", u.ID, err)
			}
			if n == 0 {
				return NotFoundError("formula", u.ID)
			}
		}
		return nil
	})
}

func (fs *FormulaStore) fetch(ctx context.Context, fieldID, formulaID string) (map[string]any, error) {
	pb := fs.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, fs.store.DB, fmt.Sprintf(
		`SELECT id, sequence FROM field_formulas WHERE id = %s AND field_id = %s`,
		pb.Add(formulaID), pb.Add(fieldID)), pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError("formula", formulaID)
		}
		return nil, fmt.Errorf("fetch formula: %w", err)
	}
	return row, nil
}
