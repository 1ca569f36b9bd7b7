package policy

import "strings"

// Document represents one policy as loaded from YAML: a mapping with a
// required "name" field plus arbitrary nested mappings, sequences and
// scalars. The defaults document has the same shape but no name.
type Document map[string]any

// Name returns the policy's declared name, or "" if absent or not a string.
func (d Document) Name() string {
	name, _ := d["name"].(string)
	return name
}

// Filters returns the policy's filters sequence, or nil if absent.
func (d Document) Filters() []any {
	f, _ := d["filters"].([]any)
	return f
}

// Actions returns the policy's actions sequence, or nil if absent.
func (d Document) Actions() []any {
	a, _ := d["actions"].([]any)
	return a
}

// Mode returns the policy's mode mapping, or nil if absent.
func (d Document) Mode() map[string]any {
	m, _ := d["mode"].(map[string]any)
	return m
}

// Comment returns the policy's human description: the first present of the
// "comment", "comments" and "description" fields, trimmed, or "unknown".
func (d Document) Comment() string {
	for _, k := range []string{"comment", "comments", "description"} {
		if v, ok := d[k].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return "unknown"
}

// Clone returns a deep copy of the document. Merging mutates its inputs, so
// every merge operates on clones and never on a shared defaults or policy
// structure.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

// CloneValue deep-copies an arbitrary YAML-derived value (mappings,
// sequences, scalars).
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Document:
		return Document(cloneMap(val))
	case []any:
		if val == nil {
			return []any(nil)
		}
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	default:
		// scalars are immutable
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
