// Package dynjson models free-form JSON at system boundaries (provider
// payloads, LLM outputs, template filters) as a tagged value with typed
// coercion helpers that return errors instead of panicking.
package dynjson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value wraps one decoded JSON value: null, bool, number, string, array or
// object. The zero Value behaves as null.
type Value struct {
	raw any
}

// Decode parses raw JSON bytes into a Value.
func Decode(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("dynjson: %w", err)
	}
	return Value{raw: raw}, nil
}

// FromAny wraps an already-decoded interface value.
func FromAny(v any) Value { return Value{raw: v} }

// IsNull reports whether the value is JSON null (or absent).
func (v Value) IsNull() bool { return v.raw == nil }

// Raw returns the underlying interface value.
func (v Value) Raw() any { return v.raw }

// AsString coerces to string; numbers and bools are not coerced.
func (v Value) AsString() (string, error) {
	s, ok := v.raw.(string)
	if !ok {
		return "", fmt.Errorf("dynjson: expected string, got %T", v.raw)
	}
	return s, nil
}

// AsOptionalString returns the string value, or "" when null or absent.
func (v Value) AsOptionalString() string {
	s, _ := v.raw.(string)
	return s
}

// AsFloat coerces to float64; numeric strings are accepted.
func (v Value) AsFloat() (float64, error) {
	switch x := v.raw.(type) {
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("dynjson: %q is not numeric", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("dynjson: expected number, got %T", v.raw)
	}
}

// AsOptionalInt returns an int when the value is a whole number.
func (v Value) AsOptionalInt() (int, bool) {
	f, err := v.AsFloat()
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// AsBool coerces to bool.
func (v Value) AsBool() (bool, error) {
	b, ok := v.raw.(bool)
	if !ok {
		return false, fmt.Errorf("dynjson: expected bool, got %T", v.raw)
	}
	return b, nil
}

// AsArray coerces to a slice of Values.
func (v Value) AsArray() ([]Value, error) {
	arr, ok := v.raw.([]any)
	if !ok {
		return nil, fmt.Errorf("dynjson: expected array, got %T", v.raw)
	}
	out := make([]Value, len(arr))
	for i, e := range arr {
		out[i] = Value{raw: e}
	}
	return out, nil
}

// AsObject coerces to a map of Values.
func (v Value) AsObject() (map[string]Value, error) {
	obj, ok := v.raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dynjson: expected object, got %T", v.raw)
	}
	out := make(map[string]Value, len(obj))
	for k, e := range obj {
		out[k] = Value{raw: e}
	}
	return out, nil
}

// AsArrayOfObjects coerces to a slice of object maps, failing closed on any
// non-object element.
func (v Value) AsArrayOfObjects() ([]map[string]Value, error) {
	arr, err := v.AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]Value, 0, len(arr))
	for i, e := range arr {
		obj, err := e.AsObject()
		if err != nil {
			return nil, fmt.Errorf("dynjson: element %d: %w", i, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// Field returns the named field of an object value; null when the value is
// not an object or the field is absent.
func (v Value) Field(name string) Value {
	obj, ok := v.raw.(map[string]any)
	if !ok {
		return Value{}
	}
	return Value{raw: obj[name]}
}
