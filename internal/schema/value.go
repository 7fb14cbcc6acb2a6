package schema

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ValueKind identifies which field of a Value is populated.
type ValueKind int

// Value kinds.
const (
	NullKind ValueKind = iota
	StringKind
	IntKind
	FloatKind
	BoolKind
	BytesKind
	TimeKind
)

// String returns the lowercase kind label.
func (k ValueKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case BoolKind:
		return "bool"
	case BytesKind:
		return "bytes"
	case TimeKind:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a tagged union used for literal column defaults and annotation values.
// Only the field matching Kind is meaningful.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Bytes []byte
	Time  time.Time
}

// NullValue returns the null value.
func NullValue() Value { return Value{Kind: NullKind} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Kind: StringKind, Str: s} }

// IntValue returns an integer value.
func IntValue(i int64) Value { return Value{Kind: IntKind, Int: i} }

// FloatValue returns a floating point value.
func FloatValue(f float64) Value { return Value{Kind: FloatKind, Float: f} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Kind: BoolKind, Bool: b} }

// BytesValue returns a binary value. The slice is copied.
func BytesValue(b []byte) Value { return Value{Kind: BytesKind, Bytes: append([]byte(nil), b...)} }

// TimeValue returns a timestamp value.
func TimeValue(t time.Time) Value { return Value{Kind: TimeKind, Time: t} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == NullKind }

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}

	switch v.Kind {
	case NullKind:
		return true
	case StringKind:
		return v.Str == o.Str
	case IntKind:
		return v.Int == o.Int
	case FloatKind:
		return v.Float == o.Float
	case BoolKind:
		return v.Bool == o.Bool
	case BytesKind:
		return bytes.Equal(v.Bytes, o.Bytes)
	case TimeKind:
		return v.Time.Equal(o.Time)
	default:
		return false
	}
}

// GoString renders the value for diagnostics.
func (v Value) GoString() string {
	switch v.Kind {
	case NullKind:
		return "null"
	case StringKind:
		return strconv.Quote(v.Str)
	case IntKind:
		return strconv.FormatInt(v.Int, 10)
	case FloatKind:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case BoolKind:
		return strconv.FormatBool(v.Bool)
	case BytesKind:
		return fmt.Sprintf("0x%X", v.Bytes)
	case TimeKind:
		return v.Time.Format(time.RFC3339Nano)
	default:
		return "<invalid>"
	}
}

func (v Value) clone() Value {
	if v.Kind == BytesKind {
		v.Bytes = append([]byte(nil), v.Bytes...)
	}

	return v
}

func cloneValuePtr(v *Value) *Value {
	if v == nil {
		return nil
	}

	c := v.clone()

	return &c
}

func equalValuePtr(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equal(*b)
}

// Annotations is a bag of provider-specific metadata keyed by "Provider:Name".
type Annotations map[string]Value

// Get returns the annotation value for key.
func (a Annotations) Get(key string) (Value, bool) {
	v, ok := a[key]

	return v, ok
}

// Bool returns the boolean annotation for key, or def when absent or not a bool.
func (a Annotations) Bool(key string, def bool) bool {
	v, ok := a[key]
	if !ok || v.Kind != BoolKind {
		return def
	}

	return v.Bool
}

// Keys returns the annotation keys in sorted order.
func (a Annotations) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Equal compares two bags structurally. A nil bag equals an empty one.
func (a Annotations) Equal(o Annotations) bool {
	if len(a) != len(o) {
		return false
	}

	for k, v := range a {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}

	return true
}

// Clone returns a deep copy, or nil for an empty bag.
func (a Annotations) Clone() Annotations {
	if len(a) == 0 {
		return nil
	}

	c := make(Annotations, len(a))
	for k, v := range a {
		c[k] = v.clone()
	}

	return c
}
