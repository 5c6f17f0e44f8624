package internal

import "fmt"

// Flatten takes a nested map and returns a new map with the keys flattened
// into a single level, joined with ".". Arrays contribute both the slice
// itself and indexed child keys, so `{"a":{"b":1}}` becomes `{"a.b":1}`
// and `{"a":[{"b":1}]}` contributes `a[0].b`.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		flattenInto(out, key, value)
	}
	return out
}

func flattenInto(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			flattenInto(out, fmt.Sprintf("%s.%s", path, key), child)
		}
	case []interface{}:
		out[path] = typed
		out[path+"[]"] = typed
		for i, child := range typed {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		out[path] = value
	}
}
