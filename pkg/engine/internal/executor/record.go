package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// RecordStream is a leaf stream that yields the rows of a sequence of Arrow
// records sharing one schema. Storage fragments are exposed as record
// streams.
type RecordStream struct {
	header  *rows.Header
	records []arrow.Record

	rec    int   // index of the current record
	offset int64 // next row within the current record
	closed bool
}

var _ RowStream = (*RecordStream)(nil)

// NewRecordStream creates a stream over records. Fields are qualified with
// prefix unless the schema carries its own prefix. The stream retains the
// records until it is closed.
func NewRecordStream(schema *arrow.Schema, prefix string, records ...arrow.Record) (*RecordStream, error) {
	header, err := rows.HeaderFromSchema(schema, prefix)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if !rec.Schema().Equal(schema) {
			return nil, fmt.Errorf("%w: record %d has schema %s, expected %s", errors.ErrType, i, rec.Schema(), schema)
		}
	}
	for _, rec := range records {
		rec.Retain()
	}
	return &RecordStream{
		header:  header,
		records: records,
	}, nil
}

// Header implements [RowStream].
func (s *RecordStream) Header() (*rows.Header, error) {
	return s.header, nil
}

// HasNext implements [RowStream].
func (s *RecordStream) HasNext(_ context.Context) (bool, error) {
	if s.closed {
		return false, nil
	}
	for s.rec < len(s.records) && s.offset >= s.records[s.rec].NumRows() {
		s.rec++
		s.offset = 0
	}
	return s.rec < len(s.records), nil
}

// Next implements [RowStream].
func (s *RecordStream) Next(ctx context.Context) (rows.Row, error) {
	ok, err := s.HasNext(ctx)
	if err != nil {
		return rows.Row{}, err
	}
	if !ok {
		return rows.Row{}, fmt.Errorf("%w: next called on exhausted stream", errors.ErrIllegalState)
	}

	rec := s.records[s.rec]
	values := make([]any, rec.NumCols())
	for i, col := range rec.Columns() {
		v, err := valueAt(col, int(s.offset))
		if err != nil {
			return rows.Row{}, fmt.Errorf("column %s: %w", rec.ColumnName(i), err)
		}
		values[i] = v
	}
	s.offset++
	return rows.NewRow(s.header, values...)
}

// Close implements [RowStream].
func (s *RecordStream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, rec := range s.records {
		rec.Release()
	}
	s.records = nil
}

// valueAt returns the value at position i of arr as it is stored in a row.
func valueAt(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch arr := arr.(type) {
	case *array.Null:
		return nil, nil
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.String:
		return arr.Value(i), nil
	case *array.LargeString:
		return arr.Value(i), nil
	case *array.Int8:
		return int64(arr.Value(i)), nil
	case *array.Int16:
		return int64(arr.Value(i)), nil
	case *array.Int32:
		return int64(arr.Value(i)), nil
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Uint8:
		return int64(arr.Value(i)), nil
	case *array.Uint16:
		return int64(arr.Value(i)), nil
	case *array.Uint32:
		return int64(arr.Value(i)), nil
	case *array.Float32:
		return float64(arr.Value(i)), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(i).ToTime(unit), nil
	case *array.Binary:
		return append([]byte(nil), arr.Value(i)...), nil
	case *array.LargeBinary:
		return append([]byte(nil), arr.Value(i)...), nil
	default:
		return nil, fmt.Errorf("%w: unsupported arrow type %s", errors.ErrType, arr.DataType())
	}
}
