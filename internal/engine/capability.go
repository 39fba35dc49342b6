package engine

import "strings"

// Capacity tags the effective value source of a variable.
type Capacity string

const (
	CapacityFixed     Capacity = "fixed"
	CapacityFormula   Capacity = "formula"
	CapacityCondition Capacity = "condition"
	CapacityTable     Capacity = "table"
	CapacityData      Capacity = "data"
	CapacityUnknown   Capacity = "unknown"
)

// Variable is one bindable value attached to a node.
type Variable struct {
	ID             string `json:"id"`
	NodeID         string `json:"nodeId"`
	SourceRef      string `json:"sourceRef,omitempty"`
	SourceType     string `json:"sourceType,omitempty"`
	FixedValue     string `json:"fixedValue,omitempty"`
	ExposedKey     string `json:"exposedKey,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	SelectedNodeID string `json:"selectedNodeId,omitempty"`
	Unit           string `json:"unit,omitempty"`
}

// Formula is a named token sequence owned by a node.
type Formula struct {
	ID     string `json:"id"`
	NodeID string `json:"nodeId"`
	Name   string `json:"name"`
	Tokens []any  `json:"tokens"`
}

// Condition is a named nested condition set owned by a node.
type Condition struct {
	ID           string `json:"id"`
	NodeID       string `json:"nodeId"`
	Name         string `json:"name"`
	ConditionSet any    `json:"conditionSet"`
}

// Table is a lookup/meta resource owned by a node. Dependency extraction
// from table contents is reserved for future column-reference support.
type Table struct {
	ID     string `json:"id"`
	NodeID string `json:"nodeId"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Meta   any    `json:"meta"`
}

// Capability is the classified descriptor emitted per variable.
type Capability struct {
	NodeID       string   `json:"nodeId"`
	VariableID   string   `json:"variableId"`
	SourceRef    string   `json:"sourceRef,omitempty"`
	SourceType   string   `json:"sourceType,omitempty"`
	ExposedKey   string   `json:"exposedKey,omitempty"`
	DisplayName  string   `json:"displayName,omitempty"`
	FixedValue   string   `json:"fixedValue,omitempty"`
	Capacity     Capacity `json:"capacity"`
	HasFormula   bool     `json:"hasFormula"`
	HasCondition bool     `json:"hasCondition"`
	HasTable     bool     `json:"hasTable"`
	Dependencies []string `json:"dependencies,omitempty"`
	Raw          any      `json:"raw,omitempty"`
}

// Lookups carries the per-node resource maps used for structural inference.
type Lookups struct {
	FormulaByNode   map[string]*Formula
	ConditionByNode map[string]*Condition
	TableByNode     map[string]*Table
}

// Classify assigns exactly one capacity to a variable. An explicit
// sourceRef always outranks structural inference; among structural
// fallbacks formula wins over condition, condition over table. The
// function is total: every variable classifies, the floor is "data".
func Classify(v *Variable, lk Lookups) Capability {
	cap := Capability{
		NodeID:       v.NodeID,
		VariableID:   v.ID,
		SourceRef:    v.SourceRef,
		SourceType:   v.SourceType,
		ExposedKey:   v.ExposedKey,
		DisplayName:  v.DisplayName,
		FixedValue:   v.FixedValue,
		HasFormula:   lk.FormulaByNode[v.NodeID] != nil,
		HasCondition: lk.ConditionByNode[v.NodeID] != nil,
		HasTable:     lk.TableByNode[v.NodeID] != nil,
	}

	switch {
	case strings.HasPrefix(v.SourceRef, "formula:"), strings.HasPrefix(v.SourceRef, "node-formula:"):
		cap.Capacity = CapacityFormula
	case strings.HasPrefix(v.SourceRef, "condition:"):
		cap.Capacity = CapacityCondition
	case strings.HasPrefix(v.SourceRef, "table:"):
		cap.Capacity = CapacityTable
	case v.SourceType == "fixed" || v.FixedValue != "":
		cap.Capacity = CapacityFixed
	case v.SourceRef != "":
		// Explicit sourceRef with no recognized prefix: plain data binding.
		cap.Capacity = CapacityData
	case cap.HasFormula:
		cap.Capacity = CapacityFormula
	case cap.HasCondition:
		cap.Capacity = CapacityCondition
	case cap.HasTable:
		cap.Capacity = CapacityTable
	default:
		cap.Capacity = CapacityData
	}

	return cap
}

// SourceRefID splits a tagged sourceRef like "formula:<id>" into its ID
// part, or returns the ref unchanged when untagged.
func SourceRefID(sourceRef string) string {
	if i := strings.IndexByte(sourceRef, ':'); i >= 0 {
		return sourceRef[i+1:]
	}
	return sourceRef
}
