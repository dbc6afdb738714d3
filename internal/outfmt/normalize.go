package outfmt

import (
	"encoding/json"
	"reflect"
)

const itemsKey = "items"

// normalizeJSONOutput gives list output one top-level shape. A slice of
// rows, conversation ids or names becomes {"items": [...]}, so
// `.items[] | select(.unread_count > 0)` works against every command. Raw
// JSON and byte slices pass through.
func normalizeJSONOutput(v any) any {
	switch v.(type) {
	case nil, []byte, json.RawMessage:
		return v
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if k := rv.Kind(); k != reflect.Slice && k != reflect.Array || rv.Type().Elem().Kind() == reflect.Uint8 {
		return v
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return map[string]any{itemsKey: []any{}}
	}
	return map[string]any{itemsKey: rv.Interface()}
}
