package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ResourceLoader abstracts the batched reads the resolver needs. The SQL
// implementation lives in tree_store.go; tests substitute an in-memory fake.
type ResourceLoader interface {
	LoadVariables(ctx context.Context, treeID string) ([]*Variable, error)
	LoadFormulas(ctx context.Context, treeID string) ([]*Formula, error)
	LoadConditions(ctx context.Context, treeID string) ([]*Condition, error)
	LoadTables(ctx context.Context, treeID string) ([]*Table, error)
}

// ResolveOptions controls optional enrichment of capability descriptors.
type ResolveOptions struct {
	IncludeRaw          bool
	ExtractDependencies bool
}

// Resolver builds the per-tree capability list.
type Resolver struct {
	loader ResourceLoader
}

func NewResolver(loader ResourceLoader) *Resolver {
	return &Resolver{loader: loader}
}

// ResolveCapabilities loads every variable, formula, condition and table
// owned by the tree and emits one classified capability per variable.
// The four loads run concurrently; partial results are never used. An
// empty tree resolves to an empty list, not an error.
func (r *Resolver) ResolveCapabilities(ctx context.Context, treeID string, opts ResolveOptions) ([]Capability, error) {
	var (
		variables  []*Variable
		formulas   []*Formula
		conditions []*Condition
		tables     []*Table
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		variables, err = r.loader.LoadVariables(gctx, treeID)
		return err
	})
	g.Go(func() (err error) {
		formulas, err = r.loader.LoadFormulas(gctx, treeID)
		return err
	})
	g.Go(func() (err error) {
		conditions, err = r.loader.LoadConditions(gctx, treeID)
		return err
	})
	g.Go(func() (err error) {
		tables, err = r.loader.LoadTables(gctx, treeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Node-keyed lookups. A node owning more than one resource of a kind
	// is a data anomaly; last write wins rather than failing the batch.
	lk := Lookups{
		FormulaByNode:   make(map[string]*Formula, len(formulas)),
		ConditionByNode: make(map[string]*Condition, len(conditions)),
		TableByNode:     make(map[string]*Table, len(tables)),
	}
	for _, f := range formulas {
		lk.FormulaByNode[f.NodeID] = f
	}
	for _, c := range conditions {
		lk.ConditionByNode[c.NodeID] = c
	}
	for _, t := range tables {
		lk.TableByNode[t.NodeID] = t
	}

	capabilities := make([]Capability, 0, len(variables))
	for _, v := range variables {
		cap := Classify(v, lk)

		if opts.ExtractDependencies {
			cap.Dependencies = extractDependencies(cap.Capacity, v.NodeID, lk)
		}
		if opts.IncludeRaw {
			cap.Raw = rawSource(cap.Capacity, v.NodeID, lk)
		}

		capabilities = append(capabilities, cap)
	}
	return capabilities, nil
}

// extractDependencies expands the winning resource's body into referenced
// node IDs. Tables have no dependency semantics yet; they resolve to none.
func extractDependencies(capacity Capacity, nodeID string, lk Lookups) []string {
	switch capacity {
	case CapacityFormula:
		if f := lk.FormulaByNode[nodeID]; f != nil {
			if deps := ExtractFormulaDependencies(f.Tokens); len(deps) > 0 {
				return deps
			}
		}
	case CapacityCondition:
		if c := lk.ConditionByNode[nodeID]; c != nil {
			if deps := ExtractConditionDependencies(c.ConditionSet); len(deps) > 0 {
				return deps
			}
		}
	}
	// Absent and empty are equivalent "no known dependencies".
	return nil
}

func rawSource(capacity Capacity, nodeID string, lk Lookups) any {
	switch capacity {
	case CapacityFormula:
		if f := lk.FormulaByNode[nodeID]; f != nil {
			return f
		}
	case CapacityCondition:
		if c := lk.ConditionByNode[nodeID]; c != nil {
			return c
		}
	case CapacityTable:
		if t := lk.TableByNode[nodeID]; t != nil {
			return t
		}
	}
	return nil
}
