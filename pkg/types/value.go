// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NullString is the string form of an absent value. Key columns are compared
// by their string form, so a missing name in one list compares equal to a
// missing name in the other.
const NullString = "nan"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindBool
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a scalar cell: text, integer, float, boolean, or null.
// The zero Value is null.
type Value struct {
	kind Kind
	text string
	num  int64
	flt  float64
	flag bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Text returns a text Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Int returns an integer Value.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// String returns the string form used for key comparison. It never fails:
// null is NullString, integers are plain decimals, integral floats keep a
// trailing ".0", and booleans are "True" or "False".
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return formatFloat(v.flt)
	case KindBool:
		if v.flag {
			return "True"
		}
		return "False"
	default:
		return NullString
	}
}

// Interface returns v as a plain Go value: nil, string, int64, float64, or bool.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.flag
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindInt:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt || (math.IsNaN(v.flt) && math.IsNaN(o.flt))
	case KindBool:
		return v.flag == o.flag
	default:
		return true
	}
}

// ValueOf converts a decoded JSON, YAML, or SQL scalar into a Value.
// Unknown types fall back to their fmt representation as text.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return Text(t)
	case []byte:
		return Text(string(t))
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Int(int64(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t))
		}
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Int(n)
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return Text(t.String())
	case fmt.Stringer:
		return Text(t.String())
	default:
		return Text(fmt.Sprint(t))
	}
}

// MarshalJSON encodes v as a JSON scalar. Non-finite floats become null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.flt) || math.IsInf(v.flt, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON scalar into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	switch x.(type) {
	case map[string]any, []any:
		return fmt.Errorf("cell value must be a scalar, got %s", string(data))
	}
	*v = ValueOf(x)
	return nil
}

// MarshalYAML encodes v as a YAML scalar.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// formatFloat renders f the way a dataframe stringifies a float cell:
// shortest round-trip digits, ".0" on integral values, and exponent
// notation outside [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
