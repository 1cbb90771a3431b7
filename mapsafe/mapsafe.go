// Package mapsafe extracts typed values from loosely typed parameter bags.
package mapsafe

// Get returns m[key] as a T, or fallback when the key is missing or the
// value cannot be converted. Numbers convert between int and float64 in both
// directions, since JSON decoding produces float64 where YAML produces int.
func Get[T any](m map[string]any, key string, fallback T) T {
	val, ok := m[key]
	if !ok {
		return fallback
	}

	if v, ok := val.(T); ok {
		return v
	}

	switch v := val.(type) {
	case int:
		if f, ok := any(float64(v)).(T); ok {
			return f
		}
	case int64:
		if i, ok := any(int(v)).(T); ok {
			return i
		}
		if f, ok := any(float64(v)).(T); ok {
			return f
		}
	case float64:
		if i, ok := any(int(v)).(T); ok {
			return i
		}
	}

	return fallback
}
