// Package template substitutes {{path}} placeholders in action data. Paths
// are dotted lookups into a plain map; the substitution walks whole values
// so every string field of a step is rendered in one place.
package template

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Lookup resolves a dotted path. Map keys and slice indexes are both
// path segments: "vars.rows.0.vin".
func Lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		case []map[string]any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		case []string:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// HasPlaceholder reports whether s contains at least one {{path}}.
func HasPlaceholder(s string) bool {
	return placeholder.MatchString(s)
}

// RenderString replaces every placeholder in s. Unknown paths render empty.
func RenderString(s string, data map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		v, ok := Lookup(data, path)
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

// Render returns a deep copy of v with every string rendered. Strings held
// in interfaces that consist of exactly one placeholder take the looked-up
// value as is, so a number option stays a number in execute arguments.
func Render[T any](v T, data map[string]any) T {
	out := render(reflect.ValueOf(&v).Elem(), data)
	if rendered, ok := out.Interface().(T); ok {
		return rendered
	}
	return v
}

func render(v reflect.Value, data map[string]any) reflect.Value {
	switch v.Kind() {
	case reflect.String:
		out := reflect.New(v.Type()).Elem()
		out.SetString(RenderString(v.String(), data))
		return out

	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(render(v.Elem(), data))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		inner := v.Elem()
		if inner.Kind() == reflect.String {
			if raw, ok := whole(inner.String(), data); ok && raw != nil {
				rawValue := reflect.ValueOf(raw)
				if rawValue.Type().AssignableTo(v.Type()) {
					out.Set(rawValue)
					return out
				}
			}
		}
		out.Set(render(inner, data))
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(render(v.Field(i), data))
			}
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(render(v.Index(i), data))
		}
		return out

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(render(v.Index(i), data))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), render(iter.Value(), data))
		}
		return out
	}
	return v
}

// whole resolves s when it is exactly one placeholder.
func whole(s string, data map[string]any) (any, bool) {
	loc := placeholder.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return nil, false
	}
	return Lookup(data, s[loc[2]:loc[3]])
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
