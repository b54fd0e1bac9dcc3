package chatkit

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// EncodeSnapshot renders a snapshot as JSON. Values JSON cannot encode are
// rendered with fmt instead of failing the whole snapshot.
func EncodeSnapshot(snapshot map[string]any) []byte {
	data, err := json.Marshal(snapshot)
	if err == nil {
		return data
	}

	data, err = json.Marshal(jsonSafe(snapshot))
	if err != nil {
		// jsonSafe only leaves encodable values behind
		return []byte(fmt.Sprintf("%q", fmt.Sprint(snapshot)))
	}
	return data
}

// jsonSafe walks maps and slices, replacing leaves that do not encode
// with their string form
func jsonSafe(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonSafe(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonSafe(item)
		}
		return out
	}

	if _, err := json.Marshal(v); err == nil {
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = jsonSafe(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = jsonSafe(iter.Value().Interface())
			}
			return out
		}
	}

	return fmt.Sprint(v)
}
