package directive

import (
	"reflect"
	"strings"
)

// Context is the per-render variable mapping. Directive nodes read dynamic
// arguments from it and store their results in it. A Context belongs to a
// single render pass and is not safe for concurrent use.
type Context map[string]any

// NewContext returns a Context seeded with a copy of vars.
func NewContext(vars map[string]any) Context {
	rc := make(Context, len(vars)+4)
	for k, v := range vars {
		rc[k] = v
	}
	return rc
}

// Lookup resolves a variable name. Dotted names walk into maps keyed by
// string, struct fields and zero-argument methods, so "page.Slug" resolves
// the Slug field of the value stored under "page".
func (c Context) Lookup(name string) (any, bool) {
	head, rest, dotted := strings.Cut(name, ".")
	v, ok := c[head]
	if !ok {
		return nil, false
	}
	if !dotted {
		return v, true
	}
	for _, part := range strings.Split(rest, ".") {
		v, ok = attr(v, part)
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// Set stores value under name.
func (c Context) Set(name string, value any) {
	c[name] = value
}

func attr(v any, name string) (any, bool) {
	if v == nil || name == "" {
		return nil, false
	}
	rv := reflect.ValueOf(v)

	if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
		return m.Call(nil)[0].Interface(), true
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		item := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true
	case reflect.Struct:
		field := rv.FieldByName(name)
		if !field.IsValid() || !field.CanInterface() {
			return nil, false
		}
		return field.Interface(), true
	}
	return nil, false
}
