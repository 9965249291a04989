package document

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a schema-less field value returned by the remote API.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	obj  *Document
	arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float. Non-finite values are kept as-is.
func Number(f float64) Value { return Value{kind: KindNumber, n: f} }

// Int wraps an integer as a number.
func Int(i int64) Value { return Value{kind: KindNumber, n: float64(i)} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Object wraps a nested document. A nil document becomes null.
func Object(d *Document) Value {
	if d == nil {
		return Null()
	}
	return Value{kind: KindObject, obj: d}
}

// Array wraps a sequence of values.
func Array(vs []Value) Value { return Value{kind: KindArray, arr: vs} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsObject returns the nested document held by v.
func (v Value) AsObject() (*Document, bool) { return v.obj, v.kind == KindObject }

// AsArray returns the elements held by v.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// IsIntegral reports whether v is a finite number without a fractional part.
func (v Value) IsIntegral() bool {
	if v.kind != KindNumber || math.IsInf(v.n, 0) || math.IsNaN(v.n) {
		return false
	}
	return v.n == math.Trunc(v.n)
}

// String renders v as plain text: strings unquoted, numbers in shortest form,
// nested values as compact JSON. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return FormatNumber(v.n)
	case KindString:
		return v.s
	default:
		return string(Marshal(v))
	}
}

// Key returns a comparable representation of v suitable as a join key.
func (v Value) Key() string {
	return v.kind.String() + ":" + v.String()
}

// Equal reports deep equality. NaN equals NaN so decoded documents compare stably.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		if math.IsNaN(v.n) && math.IsNaN(o.n) {
			return true
		}
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindObject:
		return v.obj.Equal(o.obj)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// FormatNumber renders a float in its shortest round-trippable form.
// Non-finite values render as "NaN", "inf" and "-inf".
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FromAny converts plain Go values into a Value. Maps are converted with
// sorted keys; use Of to build documents with a specific field order.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Document:
		return Object(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []Value:
		return Array(t)
	case []string:
		vs := make([]Value, len(t))
		for i, s := range t {
			vs[i] = String(s)
		}
		return Array(vs)
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = FromAny(e)
		}
		return Array(vs)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := New()
		for _, k := range keys {
			d.Set(k, FromAny(t[k]))
		}
		return Object(d)
	default:
		return String(fmt.Sprint(t))
	}
}
