package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TypeKind is the logical (dialect-independent) type of a column.
type TypeKind int

// Logical column types. UnknownType means the column is described only by its
// store type, as happens for introspected databases.
const (
	UnknownType TypeKind = iota
	StringType
	Int16Type
	Int32Type
	Int64Type
	BoolType
	DecimalType
	Float32Type
	Float64Type
	DateType
	TimeOfDayType
	DateTimeType
	DateTimeOffsetType
	GUIDType
	BinaryType
	JSONType
)

var typeKindNames = map[TypeKind]string{ //nolint:gochecknoglobals // lookup table
	UnknownType:        "unknown",
	StringType:         "string",
	Int16Type:          "int16",
	Int32Type:          "int32",
	Int64Type:          "int64",
	BoolType:           "bool",
	DecimalType:        "decimal",
	Float32Type:        "float32",
	Float64Type:        "float64",
	DateType:           "date",
	TimeOfDayType:      "time",
	DateTimeType:       "datetime",
	DateTimeOffsetType: "datetimeoffset",
	GUIDType:           "guid",
	BinaryType:         "binary",
	JSONType:           "json",
}

// String returns the kind's textual name.
func (k TypeKind) String() string {
	if s, ok := typeKindNames[k]; ok {
		return s
	}

	return "unknown"
}

// IsInteger reports whether k is one of the integer kinds.
func (k TypeKind) IsInteger() bool {
	return k == Int16Type || k == Int32Type || k == Int64Type
}

// IsTemporal reports whether k holds a date and/or time.
func (k TypeKind) IsTemporal() bool {
	return k == DateType || k == TimeOfDayType || k == DateTimeType || k == DateTimeOffsetType
}

// ColumnType describes a logical column type and its facets.
type ColumnType struct {
	Kind        TypeKind
	MaxLength   int // 0 means unbounded
	Precision   int
	Scale       int
	Ansi        bool // non-unicode string storage
	FixedLength bool
}

// Type constructors used by the builder and tests.

func String(maxLength int) ColumnType { return ColumnType{Kind: StringType, MaxLength: maxLength} }

func AnsiString(maxLength int) ColumnType {
	return ColumnType{Kind: StringType, MaxLength: maxLength, Ansi: true}
}

func FixedString(length int) ColumnType {
	return ColumnType{Kind: StringType, MaxLength: length, FixedLength: true}
}

func Int16() ColumnType          { return ColumnType{Kind: Int16Type} }
func Int32() ColumnType          { return ColumnType{Kind: Int32Type} }
func Int64() ColumnType          { return ColumnType{Kind: Int64Type} }
func Boolean() ColumnType        { return ColumnType{Kind: BoolType} }
func Float32() ColumnType        { return ColumnType{Kind: Float32Type} }
func Float64() ColumnType        { return ColumnType{Kind: Float64Type} }
func Date() ColumnType           { return ColumnType{Kind: DateType} }
func TimeOfDay() ColumnType      { return ColumnType{Kind: TimeOfDayType} }
func DateTime() ColumnType       { return ColumnType{Kind: DateTimeType} }
func DateTimeOffset() ColumnType { return ColumnType{Kind: DateTimeOffsetType} }
func GUID() ColumnType           { return ColumnType{Kind: GUIDType} }
func JSON() ColumnType           { return ColumnType{Kind: JSONType} }

func Decimal(precision, scale int) ColumnType {
	return ColumnType{Kind: DecimalType, Precision: precision, Scale: scale}
}

func Binary(maxLength int) ColumnType { return ColumnType{Kind: BinaryType, MaxLength: maxLength} }

// String renders the type in the textual form accepted by ParseColumnType.
func (t ColumnType) String() string {
	switch t.Kind {
	case StringType:
		name := "string"

		switch {
		case t.FixedLength && t.Ansi:
			name = "fixedansistring"
		case t.FixedLength:
			name = "fixedstring"
		case t.Ansi:
			name = "ansistring"
		}

		if t.MaxLength > 0 {
			return fmt.Sprintf("%s(%d)", name, t.MaxLength)
		}

		return name
	case BinaryType:
		if t.MaxLength > 0 {
			return fmt.Sprintf("binary(%d)", t.MaxLength)
		}

		return "binary"
	case DecimalType:
		if t.Precision > 0 {
			return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
		}

		return "decimal"
	default:
		return t.Kind.String()
	}
}

// ParseColumnType parses the textual type form, e.g. "string(150)", "decimal(18,2)", "int32".
func ParseColumnType(s string) (ColumnType, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return ColumnType{}, fmt.Errorf("%w: empty type", ErrInvalidType)
	}

	name, args, err := splitTypeArgs(raw)
	if err != nil {
		return ColumnType{}, fmt.Errorf("%w: %q: %w", ErrInvalidType, s, err)
	}

	var t ColumnType

	switch name {
	case "string", "ansistring", "fixedstring", "fixedansistring":
		t = ColumnType{
			Kind:        StringType,
			Ansi:        strings.Contains(name, "ansi"),
			FixedLength: strings.HasPrefix(name, "fixed"),
		}
		if len(args) > 1 {
			return ColumnType{}, fmt.Errorf("%w: %q takes at most one argument", ErrInvalidType, s)
		}

		if len(args) == 1 {
			t.MaxLength = args[0]
		}
	case "binary":
		t = ColumnType{Kind: BinaryType}
		if len(args) > 1 {
			return ColumnType{}, fmt.Errorf("%w: %q takes at most one argument", ErrInvalidType, s)
		}

		if len(args) == 1 {
			t.MaxLength = args[0]
		}
	case "decimal":
		t = ColumnType{Kind: DecimalType}

		switch len(args) {
		case 0:
		case 1:
			t.Precision = args[0]
		case 2: //nolint:mnd // precision and scale
			t.Precision, t.Scale = args[0], args[1]
		default:
			return ColumnType{}, fmt.Errorf("%w: %q takes at most two arguments", ErrInvalidType, s)
		}
	default:
		kind, ok := kindByName(name)
		if !ok {
			return ColumnType{}, fmt.Errorf("%w: unknown type %q", ErrInvalidType, s)
		}

		if len(args) > 0 {
			return ColumnType{}, fmt.Errorf("%w: %q takes no arguments", ErrInvalidType, s)
		}

		t = ColumnType{Kind: kind}
	}

	return t, nil
}

func kindByName(name string) (TypeKind, bool) {
	for k, n := range typeKindNames {
		if n == name && k != UnknownType {
			return k, true
		}
	}

	return UnknownType, false
}

func splitTypeArgs(raw string) (string, []int, error) {
	open := strings.IndexByte(raw, '(')
	if open < 0 {
		return raw, nil, nil
	}

	if !strings.HasSuffix(raw, ")") {
		return "", nil, errors.New("missing closing parenthesis")
	}

	name := strings.TrimSpace(raw[:open])
	inner := raw[open+1 : len(raw)-1]

	var args []int

	for _, part := range strings.Split(inner, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return "", nil, fmt.Errorf("invalid argument %q", part)
		}

		args = append(args, n)
	}

	return name, args, nil
}
