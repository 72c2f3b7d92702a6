package convert

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ExtractText flattens a canonical JSON payload into plain text for chunking.
// Strings pass through; objects with a "text" or "data" field unwrap; arrays
// of records (CSV/XLSX rows) become "key: value" lines, one blank-line
// separated block per record. Anything else serializes as compact JSON.
func ExtractText(data json.RawMessage) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return flatten(v)
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		blocks := make([]string, 0, len(t))
		for _, item := range t {
			blocks = append(blocks, flattenRecord(item))
		}
		return strings.Join(blocks, "\n\n")
	case map[string]any:
		if text, ok := t["text"].(string); ok {
			return text
		}
		if data, ok := t["data"]; ok {
			return flatten(data)
		}
		return marshalCompact(t)
	default:
		return marshalCompact(v)
	}
}

func flattenRecord(item any) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return flatten(item)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, obj[k]))
	}
	return strings.Join(lines, "\n")
}

func marshalCompact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
