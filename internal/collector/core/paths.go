package core

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Path expressions address values nested inside an arbitrary caller state:
//
//	plan                  field "plan"
//	plan@sections         field traversal
//	plan#0                static index (negative counts from the end)
//	plan#$cursor          index resolved from the root-level field "cursor"
//	plan@sections#-1@body chained arbitrarily
//
// Dynamic index references resolve against the root object, not the current
// traversal node.

type stepKind int

const (
	stepField stepKind = iota
	stepIndex
	stepRef
)

type pathStep struct {
	kind  stepKind
	field string
	index int
	ref   string
}

func (s pathStep) String() string {
	switch s.kind {
	case stepIndex:
		return "#" + strconv.Itoa(s.index)
	case stepRef:
		return "#$" + s.ref
	default:
		return s.field
	}
}

// parsePath tokenizes a path expression into a sequence of field and index
// steps.
func parsePath(path string) ([]pathStep, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	var steps []pathStep
	rest := path
	for rest != "" {
		switch {
		case rest[0] == '@':
			rest = rest[1:]
			if rest == "" {
				return nil, fmt.Errorf("path %q: trailing '@'", path)
			}
		case rest[0] == '#':
			rest = rest[1:]
			end := strings.IndexAny(rest, "@#")
			token := rest
			if end >= 0 {
				token = rest[:end]
				rest = rest[end:]
			} else {
				rest = ""
			}
			if token == "" {
				return nil, fmt.Errorf("path %q: empty index", path)
			}
			if strings.HasPrefix(token, "$") {
				if len(token) == 1 {
					return nil, fmt.Errorf("path %q: empty index reference", path)
				}
				steps = append(steps, pathStep{kind: stepRef, ref: token[1:]})
			} else {
				idx, err := strconv.Atoi(token)
				if err != nil {
					return nil, fmt.Errorf("path %q: bad index %q", path, token)
				}
				steps = append(steps, pathStep{kind: stepIndex, index: idx})
			}
		default:
			end := strings.IndexAny(rest, "@#")
			token := rest
			if end >= 0 {
				token = rest[:end]
				rest = rest[end:]
			} else {
				rest = ""
			}
			steps = append(steps, pathStep{kind: stepField, field: token})
		}
	}
	return steps, nil
}

// resolvePath evaluates a path expression against root.
func resolvePath(root interface{}, path string) (interface{}, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	cur := reflect.ValueOf(root)
	for _, st := range steps {
		cur = indirect(cur)
		if !cur.IsValid() {
			return nil, fmt.Errorf("path %q: nil value at %q", path, st)
		}
		switch st.kind {
		case stepField:
			next, err := fieldOrKey(cur, st.field)
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", path, err)
			}
			cur = next
		case stepIndex:
			next, err := indexInto(cur, st.index)
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", path, err)
			}
			cur = next
		case stepRef:
			rv, err := resolvePath(root, st.ref)
			if err != nil {
				return nil, fmt.Errorf("path %q: resolving index reference: %w", path, err)
			}
			idx, err := asInt(rv)
			if err != nil {
				return nil, fmt.Errorf("path %q: index reference %q: %w", path, st.ref, err)
			}
			next, err := indexInto(cur, idx)
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", path, err)
			}
			cur = next
		}
	}
	if !cur.IsValid() {
		return nil, fmt.Errorf("path %q: resolved to invalid value", path)
	}
	return cur.Interface(), nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// fieldOrKey resolves a name against a struct field (by Go name or
// json/yaml tag) or a string-keyed map entry.
func fieldOrKey(v reflect.Value, name string) (reflect.Value, error) {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Name == name || tagName(f, "json") == name || tagName(f, "yaml") == name {
				return v.Field(i), nil
			}
		}
		return reflect.Value{}, fmt.Errorf("no field %q on %s", name, t)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("map key type %s is not string", v.Type().Key())
		}
		mv := v.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return reflect.Value{}, fmt.Errorf("no key %q in map", name)
		}
		return mv, nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot access field %q on %s", name, v.Kind())
	}
}

func tagName(f reflect.StructField, key string) string {
	tag := f.Tag.Get(key)
	if tag == "" {
		return ""
	}
	if i := strings.Index(tag, ","); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

func indexInto(v reflect.Value, idx int) (reflect.Value, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("cannot index %s", v.Kind())
	}
	n := v.Len()
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return reflect.Value{}, fmt.Errorf("index %d out of range (len %d)", idx, n)
	}
	return v.Index(idx), nil
}

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not an integer", v, v)
	}
}

// resolveTemplateValues builds the placeholder map for prompt rendering.
// Each key takes one of the forms:
//
//	name            resolve path "name", expose as {name}
//	alias=path      resolve path, expose as {alias}
//	path:json       JSON-serialize the resolved value
func resolveTemplateValues(state interface{}, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		name, path := key, key
		if i := strings.Index(key, "="); i >= 0 {
			name, path = key[:i], key[i+1:]
		}
		asJSON := strings.HasSuffix(path, ":json")
		if asJSON {
			path = strings.TrimSuffix(path, ":json")
		}
		val, err := resolvePath(state, path)
		if err != nil {
			return nil, err
		}
		if asJSON {
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("serializing %q: %w", path, err)
			}
			values[name] = string(b)
			continue
		}
		values[name] = formatValue(val)
	}
	return values, nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// renderTemplate substitutes {name} placeholders. Unknown placeholders are
// left untouched.
func renderTemplate(tmpl string, values map[string]string) string {
	out := tmpl
	for name, val := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out
}

// setField assigns val to the named field (Go name or json/yaml tag) of the
// struct pointed to by state.
func setField(state interface{}, name string, val interface{}) error {
	v := reflect.ValueOf(state)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("state must be a non-nil pointer, got %T", state)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("state must point to a struct, got %s", v.Kind())
	}
	f, err := fieldOrKey(v, name)
	if err != nil {
		return err
	}
	if !f.CanSet() {
		return fmt.Errorf("field %q is not settable", name)
	}
	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	if !rv.Type().AssignableTo(f.Type()) {
		if rv.Type().ConvertibleTo(f.Type()) {
			rv = rv.Convert(f.Type())
		} else {
			return fmt.Errorf("cannot assign %s to field %q (%s)", rv.Type(), name, f.Type())
		}
	}
	f.Set(rv)
	return nil
}
