package vectorstore

// nullableKeys are relationship fields where an explicit null is
// meaningful (a root task has no parent). Every other key drops nil
// values.
var nullableKeys = map[string]bool{
	"parent_task_id": true,
	"root_task_id":   true,
}

// SanitizePayload returns a copy of p fit for upserting: nil values are
// dropped unless the key is an explicitly nullable relationship field,
// and empty strings are always dropped. Nested maps are sanitized
// recursively; a map that sanitizes to nothing is dropped.
func SanitizePayload(p map[string]any) map[string]any {
	if len(p) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case nil:
			if nullableKeys[k] {
				out[k] = nil
			}
		case string:
			if val != "" {
				out[k] = val
			}
		case map[string]any:
			if nested := SanitizePayload(val); len(nested) > 0 {
				out[k] = nested
			}
		default:
			out[k] = v
		}
	}
	return out
}
