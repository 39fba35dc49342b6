package engine

import (
	"encoding/json"
	"fmt"
	"log"
)

// EncodeSequence serializes a sequence/token/condition body for storage.
func EncodeSequence(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode sequence: %w", err)
	}
	return string(data), nil
}

// DecodeSequence parses a stored sequence blob. Values that are already
// decoded (native JSON columns) pass through unchanged. Malformed strings
// decode to an empty array: corrupted legacy rows must not break reads.
func DecodeSequence(raw any) any {
	switch v := raw.(type) {
	case nil:
		return []any{}
	case string:
		if v == "" {
			return []any{}
		}
		var out any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			log.Printf("WARN: malformed sequence blob, substituting empty: %v", err)
			return []any{}
		}
		if out == nil {
			return []any{}
		}
		return out
	case []byte:
		return DecodeSequence(string(v))
	default:
		return v
	}
}

// DecodeSequenceSlice is DecodeSequence narrowed to list-shaped bodies
// (formula sequences). Non-list content degrades to empty.
func DecodeSequenceSlice(raw any) []any {
	decoded := DecodeSequence(raw)
	if list, ok := decoded.([]any); ok {
		return list
	}
	return []any{}
}
