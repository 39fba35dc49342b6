package engine

import (
	"context"
	"fmt"

	"fieldengine/internal/store"
)

// SQLResourceLoader loads tree-scoped resources through the store. All
// four queries filter by owning node's tree.
type SQLResourceLoader struct {
	store *store.Store
}

func NewSQLResourceLoader(s *store.Store) *SQLResourceLoader {
	return &SQLResourceLoader{store: s}
}

func (l *SQLResourceLoader) LoadVariables(ctx context.Context, treeID string) ([]*Variable, error) {
	pb := l.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, l.store.DB, fmt.Sprintf(
		`SELECT v.id, v.node_id, v.source_ref, v.source_type, v.fixed_value,
		        v.exposed_key, v.display_name, v.selected_node_id, v.unit
		 FROM node_variables v
		 JOIN nodes n ON n.id = v.node_id
		 WHERE n.tree_id = %s
		 ORDER BY v.created_at`, pb.Add(treeID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load variables: %w", err)
	}

	variables := make([]*Variable, 0, len(rows))
	for _, row := range rows {
		variables = append(variables, &Variable{
			ID:             str(row["id"]),
			NodeID:         str(row["node_id"]),
			SourceRef:      str(row["source_ref"]),
			SourceType:     str(row["source_type"]),
			FixedValue:     str(row["fixed_value"]),
			ExposedKey:     str(row["exposed_key"]),
			DisplayName:    str(row["display_name"]),
			SelectedNodeID: str(row["selected_node_id"]),
			Unit:           str(row["unit"]),
		})
	}
	return variables, nil
}

func (l *SQLResourceLoader) LoadFormulas(ctx context.Context, treeID string) ([]*Formula, error) {
	pb := l.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, l.store.DB, fmt.Sprintf(
		`SELECT f.id, f.node_id, f.name, f.tokens
		 FROM node_formulas f
		 JOIN nodes n ON n.id = f.node_id
		 WHERE n.tree_id = %s
		 ORDER BY f.ord`, pb.Add(treeID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load formulas: %w", err)
	}

	formulas := make([]*Formula, 0, len(rows))
	for _, row := range rows {
		formulas = append(formulas, &Formula{
			ID:     str(row["id"]),
			NodeID: str(row["node_id"]),
			Name:   str(row["name"]),
			Tokens: DecodeSequenceSlice(row["tokens"]),
		})
	}
	return formulas, nil
}

func (l *SQLResourceLoader) LoadConditions(ctx context.Context, treeID string) ([]*Condition, error) {
	pb := l.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, l.store.DB, fmt.Sprintf(
		`SELECT c.id, c.node_id, c.name, c.condition_set
		 FROM node_conditions c
		 JOIN nodes n ON n.id = c.node_id
		 WHERE n.tree_id = %s
		 ORDER BY c.ord`, pb.Add(treeID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load conditions: %w", err)
	}

	conditions := make([]*Condition, 0, len(rows))
	for _, row := range rows {
		conditions = append(conditions, &Condition{
			ID:           str(row["id"]),
			NodeID:       str(row["node_id"]),
			Name:         str(row["name"]),
			ConditionSet: DecodeSequence(row["condition_set"]),
		})
	}
	return conditions, nil
}

func (l *SQLResourceLoader) LoadTables(ctx context.Context, treeID string) ([]*Table, error) {
	pb := l.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, l.store.DB, fmt.Sprintf(
		`SELECT t.id, t.node_id, t.name, t.type, t.meta
		 FROM node_tables t
		 JOIN nodes n ON n.id = t.node_id
		 WHERE n.tree_id = %s
		 ORDER BY t.ord`, pb.Add(treeID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	tables := make([]*Table, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, &Table{
			ID:     str(row["id"]),
			NodeID: str(row["node_id"]),
			Name:   str(row["name"]),
			Type:   str(row["type"]),
			Meta:   DecodeSequence(row["meta"]),
		})
	}
	return tables, nil
}

// str renders a nullable column as a string, mapping NULL to "".
func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
