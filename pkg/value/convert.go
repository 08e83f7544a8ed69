package value

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// DefaultMaxDepth bounds recursion into nested Values. It defends against
// cyclic or pathologically deep structures reaching the core. FromAny,
// and every core traversal that walks a Value tree, enforces this bound.
const DefaultMaxDepth = 256

// BadValueKindError reports that a Go value could not be represented in
// the Value grammar: an unsupported type, a non-string map key, or a
// structure nested deeper than the configured max depth.
type BadValueKindError struct {
	Path   string
	Reason string
}

func (e *BadValueKindError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("value: bad value kind: %s", e.Reason)
	}
	return fmt.Sprintf("value: bad value kind at %s: %s", e.Path, e.Reason)
}

// FromAny converts a generic Go value (as produced by encoding/json,
// database/sql, or a hand-built map/slice literal) into a Value. It
// accepts nil, bool, the signed/unsigned/float numeric kinds, string,
// []byte, json.Number, slices, and string-keyed maps; anything else
// (a map with non-string keys, a channel, a function) is a
// BadValueKindError, a programmer error rather than something callers
// should recover from.
//
// A json.Number that parses as an int64 becomes KindInt; only when it
// doesn't (a fraction, an exponent, or a magnitude out of int64 range)
// does it fall back to KindFloat. Callers decoding JSON that must keep
// this distinction should decode with json.Decoder.UseNumber rather than
// into a plain interface{}, since the latter collapses every number to
// float64 before FromAny ever sees it.
//
// maxDepth bounds recursion; pass DefaultMaxDepth unless a caller has a
// specific reason to differ.
func FromAny(v interface{}, maxDepth int) (Value, error) {
	return fromAny(v, "$", 0, maxDepth)
}

func fromAny(v interface{}, path string, depth, maxDepth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, &BadValueKindError{Path: path, Reason: "exceeds max recursion depth"}
	}
	if v == nil {
		return Null(), nil
	}

	switch t := v.(type) {
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, &BadValueKindError{Path: path, Reason: fmt.Sprintf("json.Number %q is neither int64 nor float64", t.String())}
		}
		return Float(f), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []interface{}:
		return fromSlice(t, path, depth, maxDepth)
	case map[string]interface{}:
		return fromStringMap(t, path, depth, maxDepth)
	}

	// Fall back to reflection for named types, struct-less maps/slices, etc.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
		return fromSlice(items, path, depth, maxDepth)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, &BadValueKindError{Path: path, Reason: fmt.Sprintf("map key type %s is not string", rv.Type().Key())}
		}
		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return fromStringMap(m, path, depth, maxDepth)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	default:
		return Value{}, &BadValueKindError{Path: path, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

func fromSlice(items []interface{}, path string, depth, maxDepth int) (Value, error) {
	out := make([]Value, len(items))
	for i, elem := range items {
		child, err := fromAny(elem, fmt.Sprintf("%s[%d]", path, i), depth+1, maxDepth)
		if err != nil {
			return Value{}, err
		}
		out[i] = child
	}
	return Seq(out...), nil
}

func fromStringMap(m map[string]interface{}, path string, depth, maxDepth int) (Value, error) {
	out := make(map[string]Value, len(m))
	for k, elem := range m {
		child, err := fromAny(elem, path+"."+k, depth+1, maxDepth)
		if err != nil {
			return Value{}, err
		}
		out[k] = child
	}
	return Map(out), nil
}
