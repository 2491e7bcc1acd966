package config

// EntryKey is the one field that Merge replaces instead of combining.
const EntryKey = "entry"

// Merge layers overrides on top of base and returns a new Map; neither
// argument is modified.
//
// For every key in overrides with a non-nil value: a key missing from base
// is copied; the entry key is replaced only by a truthy value; if either side
// is a slice the two are concatenated base-first; two maps are merged
// recursively; anything else is replaced.
func Merge(base, overrides Map) Map {
	merged := make(Map, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}

	for key, value := range overrides {
		if value == nil {
			continue
		}

		existing, ok := merged[key]
		if !ok || existing == nil {
			merged[key] = value
			continue
		}

		if key == EntryKey {
			if Truthy(value) {
				merged[key] = value
			}
			continue
		}

		if isSlice(existing) || isSlice(value) {
			combined := append([]any{}, ToSlice(existing)...)
			merged[key] = append(combined, ToSlice(value)...)
			continue
		}

		existingMap, existingIsMap := asMap(existing)
		valueMap, valueIsMap := asMap(value)
		if existingIsMap && valueIsMap {
			merged[key] = Merge(existingMap, valueMap)
			continue
		}

		merged[key] = value
	}
	return merged
}

// ToSlice normalises v to a slice: slices are returned as []any, nil becomes
// an empty slice, and any other value becomes a single-element slice.
func ToSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return []any{}
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	case []Map:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	default:
		return []any{v}
	}
}

// Truthy mirrors the loose truthiness used by configuration files: nil,
// false, zero numbers and empty strings are false; everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func isSlice(v any) bool {
	switch v.(type) {
	case []any, []string, []Map:
		return true
	}
	return false
}

func asMap(v any) (Map, bool) {
	m, ok := v.(Map)
	return m, ok
}
