package rows

import (
	"fmt"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
)

// JoinOptions controls how the headers of two joined streams are combined.
type JoinOptions struct {
	// LeftPrefix re-prefixes all left fields when non-empty.
	LeftPrefix string
	// RightPrefix re-prefixes all right fields when non-empty and RenameRight is set.
	RightPrefix string
	// RenameRight enables re-prefixing of the right side.
	RenameRight bool
	// AllowDuplicates permits equal qualified names after prefixing. Only
	// outer or Cartesian joins may set it; the join resolves collisions by
	// position.
	AllowDuplicates bool
}

// JoinHeader concatenates the fields of left and right into a new header.
func JoinHeader(left, right *Header, opts JoinOptions) (*Header, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: cannot join nil headers", errors.ErrIllegalState)
	}

	fields := make([]Field, 0, left.Len()+right.Len())
	for _, f := range left.fields {
		if opts.LeftPrefix != "" {
			f = f.WithPrefix(opts.LeftPrefix)
		}
		fields = append(fields, f)
	}
	for _, f := range right.fields {
		if opts.RenameRight && opts.RightPrefix != "" {
			f = f.WithPrefix(opts.RightPrefix)
		}
		fields = append(fields, f)
	}

	if opts.AllowDuplicates {
		return newHeader(fields), nil
	}
	return NewHeader(fields...)
}

// JoinRow builds a row of header from the values of left followed by the
// values of right. A zero right row contributes NULLs for every field of
// header that is not covered by left.
func JoinRow(header *Header, left, right Row) (Row, error) {
	rightSize := header.Len() - left.Len()
	if !right.IsZero() && right.Len() != rightSize {
		return Row{}, fmt.Errorf("%w: joined row has %d+%d values, header has %d fields", errors.ErrIndex, left.Len(), right.Len(), header.Len())
	}
	if rightSize < 0 {
		return Row{}, fmt.Errorf("%w: left row has %d values, header has %d fields", errors.ErrIndex, left.Len(), header.Len())
	}

	values := make([]any, 0, header.Len())
	values = append(values, left.values...)
	if right.IsZero() {
		values = append(values, make([]any, rightSize)...)
	} else {
		values = append(values, right.values...)
	}
	return Row{header: header, values: values}, nil
}

// UnmatchedRow builds the row emitted for a left row without a join
// partner: the left values followed by rightSize NULLs. The left row may
// itself be a joined row, so its fields can span several prefixes.
func UnmatchedRow(header *Header, left Row, rightSize int) (Row, error) {
	if left.Len()+rightSize != header.Len() {
		return Row{}, fmt.Errorf("%w: unmatched row has %d+%d values, header has %d fields", errors.ErrIndex, left.Len(), rightSize, header.Len())
	}
	return JoinRow(header, left, Row{})
}
