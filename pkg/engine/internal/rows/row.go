package rows

import (
	"fmt"
	"strings"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

// Row is an immutable tuple of values bound to a [Header]. A nil value
// denotes NULL. The zero Row has no header and is used as a placeholder for
// "no row".
type Row struct {
	header *Header
	values []any
}

// NewRow creates a row of header. The number of values must match the
// number of fields, and every non-nil value must be of its field's type.
func NewRow(header *Header, values ...any) (Row, error) {
	if header == nil {
		return Row{}, fmt.Errorf("%w: row without header", errors.ErrIllegalState)
	}
	if len(values) != header.Len() {
		return Row{}, fmt.Errorf("%w: row has %d values, header has %d fields", errors.ErrIndex, len(values), header.Len())
	}
	for i, v := range values {
		if !types.AssignableTo(v, header.fields[i].Type) {
			return Row{}, fmt.Errorf("%w: value %v (%s) is not assignable to field %s", errors.ErrType, v, types.TypeOf(v), header.fields[i])
		}
	}
	return Row{header: header, values: append([]any(nil), values...)}, nil
}

// MustNewRow is like [NewRow] but panics on error.
func MustNewRow(header *Header, values ...any) Row {
	r, err := NewRow(header, values...)
	if err != nil {
		panic(err)
	}
	return r
}

// IsZero reports whether r is the zero Row.
func (r Row) IsZero() bool { return r.header == nil }

// Header returns the header the row is bound to.
func (r Row) Header() *Header { return r.header }

// Len returns the number of values of the row.
func (r Row) Len() int { return len(r.values) }

// Value returns the value at position i.
func (r Row) Value(i int) any { return r.values[i] }

// IsNull reports whether the value at position i is NULL.
func (r Row) IsNull(i int) bool { return r.values[i] == nil }

// Values returns a copy of the values of the row.
func (r Row) Values() []any { return append([]any(nil), r.values...) }

// ValueOf returns the value of the field referenced by name.
func (r Row) ValueOf(name string) (any, error) {
	if r.header == nil {
		return nil, fmt.Errorf("%w: field %q of empty row", errors.ErrKey, name)
	}
	idx, err := r.header.IndexOf(name)
	if err != nil {
		return nil, err
	}
	return r.values[idx], nil
}

func (r Row) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		if v == nil {
			parts[i] = "null"
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
