package postgres

import (
	"reflect"
	"strings"
)

// StructToMap converts a struct to a column map using its "db" tags.
// Embedded structs are flattened; fields without a db tag (or tagged "-")
// are skipped. Used by repositories to build INSERT/UPDATE statements
// without hand-listing columns.
func StructToMap(entity any) map[string]any {
	out := make(map[string]any)
	structToMap(reflect.ValueOf(entity), out)
	return out
}

func structToMap(v reflect.Value, out map[string]any) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		if field.Anonymous {
			structToMap(v.Field(i), out)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		col, _, _ := strings.Cut(tag, ",")
		out[col] = v.Field(i).Interface()
	}
}
