package datatype

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/polystore/polystore/pkg/engine/internal/types"
)

var (
	Arrow = struct {
		Null      arrow.DataType
		Bool      arrow.DataType
		String    arrow.DataType
		Integer   arrow.DataType
		Float     arrow.DataType
		Timestamp arrow.DataType
		Bytes     arrow.DataType
	}{
		Null:      arrow.Null,
		Bool:      arrow.FixedWidthTypes.Boolean,
		String:    arrow.BinaryTypes.String,
		Integer:   arrow.PrimitiveTypes.Int64,
		Float:     arrow.PrimitiveTypes.Float64,
		Timestamp: arrow.FixedWidthTypes.Timestamp_ns,
		Bytes:     arrow.BinaryTypes.Binary,
	}

	ToArrow = map[types.ValueType]arrow.DataType{
		types.ValueTypeNull:      Arrow.Null,
		types.ValueTypeBool:      Arrow.Bool,
		types.ValueTypeStr:       Arrow.String,
		types.ValueTypeInt:       Arrow.Integer,
		types.ValueTypeFloat:     Arrow.Float,
		types.ValueTypeTimestamp: Arrow.Timestamp,
		types.ValueTypeByteArray: Arrow.Bytes,
	}
)

// FromArrow returns the value type of an Arrow data type.
func FromArrow(dt arrow.DataType) (types.ValueType, error) {
	switch dt.ID() {
	case arrow.NULL:
		return types.ValueTypeNull, nil
	case arrow.BOOL:
		return types.ValueTypeBool, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return types.ValueTypeStr, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return types.ValueTypeInt, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return types.ValueTypeFloat, nil
	case arrow.TIMESTAMP:
		return types.ValueTypeTimestamp, nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return types.ValueTypeByteArray, nil
	default:
		return types.ValueTypeInvalid, fmt.Errorf("unsupported arrow type %s", dt)
	}
}
