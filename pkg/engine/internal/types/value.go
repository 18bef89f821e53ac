package types

import "time"

const (
	typeInvalid = "invalid"
)

// ValueType represents the type of a value, which can either be a literal value, or a column value.
type ValueType uint32

const (
	ValueTypeInvalid ValueType = iota // zero-value is an invalid type

	ValueTypeNull      // NULL value.
	ValueTypeBool      // Boolean value
	ValueTypeFloat     // 64bit floating point value
	ValueTypeInt       // Signed 64bit integer value
	ValueTypeTimestamp // Point in time, nanosecond precision
	ValueTypeStr       // String value
	ValueTypeByteArray // Byte-slice value
)

// String returns the string representation of the ValueType.
func (t ValueType) String() string {
	switch t {
	case ValueTypeInvalid:
		return typeInvalid
	case ValueTypeNull:
		return "null"
	case ValueTypeBool:
		return "bool"
	case ValueTypeFloat:
		return "float"
	case ValueTypeInt:
		return "int"
	case ValueTypeTimestamp:
		return "timestamp"
	case ValueTypeStr:
		return "string"
	case ValueTypeByteArray:
		return "[]byte"
	default:
		return typeInvalid
	}
}

// ParseValueType returns the ValueType for its string representation.
// ValueTypeInvalid is returned for unknown names.
func ParseValueType(s string) ValueType {
	switch s {
	case "null":
		return ValueTypeNull
	case "bool", "boolean":
		return ValueTypeBool
	case "float", "double":
		return ValueTypeFloat
	case "int", "long", "integer":
		return ValueTypeInt
	case "timestamp":
		return ValueTypeTimestamp
	case "string", "str":
		return ValueTypeStr
	case "[]byte", "bytes", "binary":
		return ValueTypeByteArray
	default:
		return ValueTypeInvalid
	}
}

// TypeOf returns the ValueType of a Go value as it is stored inside a row.
// A nil value is of type ValueTypeNull.
func TypeOf(v any) ValueType {
	switch v.(type) {
	case nil:
		return ValueTypeNull
	case bool:
		return ValueTypeBool
	case float64:
		return ValueTypeFloat
	case int64:
		return ValueTypeInt
	case time.Time:
		return ValueTypeTimestamp
	case string:
		return ValueTypeStr
	case []byte:
		return ValueTypeByteArray
	default:
		return ValueTypeInvalid
	}
}

// AssignableTo reports whether v can be stored in a field of type t.
// Null values are assignable to every type.
func AssignableTo(v any, t ValueType) bool {
	vt := TypeOf(v)
	return vt == ValueTypeNull || vt == t
}
