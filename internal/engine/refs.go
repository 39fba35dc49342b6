package engine

import (
	"regexp"
	"sort"
)

// Inline reference markers embed a node ID in an expression string,
// e.g. "prix * @value.3fa85f64-5717-4562-b3fc-2c963f66afa6".
var inlineRefPattern = regexp.MustCompile(`@value\.([0-9a-fA-F-]{36})`)

// maxConditionDepth bounds the condition-set walk so pathological input
// cannot blow the stack.
const maxConditionDepth = 64

// ExtractFormulaDependencies scans a formula token list and returns the
// node IDs it references, deduplicated, in discovery order. Two encodings
// are recognized: structured {"type":"ref","value":<id>} tokens and inline
// @value.<id> markers inside plain string tokens. Anything else is ignored.
func ExtractFormulaDependencies(tokens []any) []string {
	deps := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}

	for _, tok := range tokens {
		switch t := tok.(type) {
		case map[string]any:
			if t["type"] == "ref" {
				if v, ok := t["value"].(string); ok {
					add(v)
				}
			}
		case string:
			for _, m := range inlineRefPattern.FindAllStringSubmatch(t, -1) {
				add(m[1])
			}
		}
	}
	return deps
}

// ExtractConditionDependencies walks an arbitrarily nested condition set
// and returns the node IDs referenced by "ref" leaves, deduplicated, in
// discovery order. A ref value may carry an optional "@value." prefix,
// which is stripped. The walk is schema-tolerant and never fails: unknown
// shapes are simply skipped.
func ExtractConditionDependencies(conditionSet any) []string {
	deps := []string{}
	seen := map[string]bool{}
	walkConditionValue(conditionSet, 0, func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	})
	return deps
}

func walkConditionValue(v any, depth int, add func(string)) {
	if depth > maxConditionDepth {
		return
	}
	switch node := v.(type) {
	case []any:
		for _, el := range node {
			walkConditionValue(el, depth+1, add)
		}
	case map[string]any:
		if ref, ok := node["ref"].(string); ok {
			add(stripValuePrefix(ref))
		}
		// Sorted keys keep discovery order deterministic across runs.
		keys := make([]string, 0, len(node))
		for key := range node {
			if key != "ref" {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			walkConditionValue(node[key], depth+1, add)
		}
	}
}

func stripValuePrefix(ref string) string {
	const prefix = "@value."
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}
