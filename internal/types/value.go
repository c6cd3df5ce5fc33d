// internal/types/value.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

/*
 * Dynamically-typed values for the rule language.
 *
 * Value is the single currency of the condition evaluator, the set_var
 * expression evaluator, and action argument binding. It is a tagged variant
 * rather than a bare `any` so every consumer can switch exhaustively on Kind
 * and the compiler keeps all control paths honest.
 *
 * JSON round-tripping preserves the int/float distinction by decoding
 * numbers via json.Number: "5" comes back as KindInt, "5.5" as KindFloat.
 * This matters for persistent variables, where set_var("user.n", 5) must
 * read back as the integer 5.
 */

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged union: exactly the field selected by Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	Map   map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue wraps an int64.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue wraps a float64.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// ListValue wraps a slice of values.
func ListValue(vs []Value) Value { return Value{Kind: KindList, List: vs} }

// MapValue wraps a string-keyed map of values.
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// IsNull reports whether v holds the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsFloat returns the numeric value as float64 for KindInt and KindFloat.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// AsInt returns an int64 for KindInt, and for KindFloat when the float is
// integral. Used for action arguments like chat and user ids.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindFloat:
		if v.Float == float64(int64(v.Float)) {
			return int64(v.Float), true
		}
	case KindString:
		if n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Equal compares two values structurally. Int and Float compare numerically,
// so IntValue(5) equals FloatValue(5.0).
func (v Value) Equal(o Value) bool {
	if fa, oka := v.AsFloat(); oka {
		if fb, okb := o.AsFloat(); okb {
			return fa == fb
		}
		return false
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, a := range v.Map {
			b, ok := o.Map[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the value for logs and diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindString:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Map[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("<kind %d>", int(v.Kind))
	}
}

// Native converts the value back to plain Go data (json.Marshal-compatible).
func (v Value) Native() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Native()
		}
		return out
	default:
		return nil
	}
}

// ToJSON encodes the value as a JSON document.
func (v Value) ToJSON() (string, error) {
	b, err := json.Marshal(v.Native())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSON decodes a JSON document into a Value. Numbers are decoded via
// json.Number to keep integers as KindInt.
func FromJSON(raw string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return Null(), err
	}
	// Reject trailing garbage after the first document
	if dec.More() {
		return Null(), fmt.Errorf("trailing data after JSON value")
	}
	return FromAny(data), nil
}

// FromAny converts decoded JSON data (or plain Go scalars) into a Value.
func FromAny(data any) Value {
	switch d := data.(type) {
	case nil:
		return Null()
	case bool:
		return BoolValue(d)
	case int:
		return IntValue(int64(d))
	case int64:
		return IntValue(d)
	case float64:
		return FloatValue(d)
	case string:
		return StringValue(d)
	case json.Number:
		if i, err := d.Int64(); err == nil {
			return IntValue(i)
		}
		if f, err := d.Float64(); err == nil {
			return FloatValue(f)
		}
		return StringValue(d.String())
	case []any:
		vs := make([]Value, len(d))
		for i, e := range d {
			vs[i] = FromAny(e)
		}
		return ListValue(vs)
	case map[string]any:
		m := make(map[string]Value, len(d))
		for k, e := range d {
			m[k] = FromAny(e)
		}
		return MapValue(m)
	default:
		// Last resort: round-trip through JSON
		b, err := json.Marshal(d)
		if err != nil {
			return Null()
		}
		v, err := FromJSON(string(bytes.TrimSpace(b)))
		if err != nil {
			return Null()
		}
		return v
	}
}
