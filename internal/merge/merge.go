package merge

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrShape indicates a structural mismatch between the defaults document and
// a policy. Shape errors are unrecoverable: they mean the defaults file
// itself is malformed, so the whole run must abort.
var ErrShape = errors.New("defaults shape mismatch")

// Merge merges update onto base, depth-first, and returns base. Base is
// mutated; callers pass deep copies when the inputs are shared (see
// policy.Document.Clone).
//
// Per key in update:
//   - at the top-level "mode" key, a non-periodic trigger type replaces the
//     base mode wholesale instead of merging into the periodic default
//   - a key absent from base takes update's value verbatim
//   - two sequences go through array merge
//   - two mappings recurse
//   - anything else (scalar or mismatched types) is overwritten by update
//
// After the top-level pass, an "actions" key that came only from base is
// dropped: a policy that declares no actions of its own must not inherit the
// defaults' actions.
func Merge(base, update map[string]any, policyName string, path []string) (map[string]any, error) {
	for k, v := range update {
		kpath := childPath(path, k)
		if len(kpath) == 1 && kpath[0] == "mode" {
			if m, ok := v.(map[string]any); ok {
				if t, ok := m["type"].(string); ok && t != "periodic" {
					// a non-periodic trigger is a disjoint shape from the
					// periodic default; take it wholesale
					base[k] = v
					continue
				}
			}
		}
		bv, exists := base[k]
		if !exists {
			base[k] = v
			continue
		}
		switch uv := v.(type) {
		case []any:
			merged, err := arrayMerge(bv, uv, policyName, kpath)
			if err != nil {
				return nil, err
			}
			base[k] = merged
		case map[string]any:
			bm, ok := bv.(map[string]any)
			if !ok {
				base[k] = v
				continue
			}
			merged, err := Merge(bm, uv, policyName, kpath)
			if err != nil {
				return nil, err
			}
			base[k] = merged
		default:
			base[k] = v
		}
	}
	if len(path) == 0 {
		if _, inBase := base["actions"]; inBase {
			if _, inUpdate := update["actions"]; !inUpdate {
				delete(base, "actions")
			}
		}
	}
	return base, nil
}

// arrayMerge merges per-element defaults from the base sequence into the
// update sequence, keyed by each element's "type" field. Update is
// authoritative for ordering and content; base only fills in missing fields
// and contributes entries the update does not carry.
func arrayMerge(baseVal any, update []any, policyName string, path []string) ([]any, error) {
	base, ok := baseVal.([]any)
	if !ok {
		return nil, fmt.Errorf("policy %s: cannot array merge non-array from defaults at %s: %w",
			policyName, joinPath(path), ErrShape)
	}

	// index the mapping-typed defaults by their "type" discriminator,
	// preserving declaration order for the append pass
	defaults := make(map[string]map[string]any)
	var defaultOrder []string
	result := append([]any(nil), update...)
	for _, v := range base {
		m, ok := v.(map[string]any)
		if !ok {
			if !containsValue(result, v) {
				result = append(result, v)
			}
			continue
		}
		t, ok := m["type"].(string)
		if !ok {
			return nil, fmt.Errorf("policy %s: defaults entry without a \"type\" key at %s: %w",
				policyName, joinPath(path), ErrShape)
		}
		if _, dup := defaults[t]; dup {
			return nil, fmt.Errorf("policy %s: defaults specify multiple entries with type %q at %s: %w",
				policyName, t, joinPath(path), ErrShape)
		}
		defaults[t] = m
		defaultOrder = append(defaultOrder, t)
	}

	// fill missing fields on type-matched update entries; each default is
	// consumed at most once
	for _, v := range result {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		t, ok := m["type"].(string)
		if !ok {
			continue
		}
		d, ok := defaults[t]
		if !ok {
			continue
		}
		for dk, dv := range d {
			if _, present := m[dk]; !present {
				m[dk] = dv
			}
		}
		delete(defaults, t)
	}

	// append defaults the update did not consume
	for _, t := range defaultOrder {
		d, ok := defaults[t]
		if !ok {
			continue
		}
		if len(path) == 1 && path[0] == "actions" && t == "notify" {
			// never silently inject a notify action into a policy that
			// declares no such action
			continue
		}
		result = append(result, d)
	}
	return result, nil
}

func containsValue(seq []any, v any) bool {
	for _, e := range seq {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

func childPath(path []string, k string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, k)
}

func joinPath(path []string) string {
	if len(path) == 0 {
		return "(root)"
	}
	return strings.Join(path, ".")
}
