package cache

import "github.com/hoplite-search/hoplite"

// clonePayload produces a structural deep copy of a payload. Isolation is
// correctness-critical here: neither caller mutations after Set nor
// mutations of a Lookup payload may leak into the stored value.
func clonePayload(payload hoplite.Payload) hoplite.Payload {
	if payload == nil {
		return nil
	}
	return cloneValue(payload).(map[string]any)
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		// Scalars (string, bool, numeric) are immutable by value.
		return v
	}
}
