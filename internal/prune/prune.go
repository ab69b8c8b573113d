// Package prune removes null values from decoded JSON documents.
package prune

// CleanNulls returns a deep copy of m with every nil-valued key removed at
// any depth. Nil elements inside arrays are dropped as well. Maps that become
// empty are kept. A nil map yields nil.
func CleanNulls(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = cleanValue(v)
	}
	return out
}

func cleanValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return CleanNulls(tv)
	case []any:
		out := make([]any, 0, len(tv))
		for _, elem := range tv {
			if elem == nil {
				continue
			}
			out = append(out, cleanValue(elem))
		}
		return out
	default:
		return v
	}
}
