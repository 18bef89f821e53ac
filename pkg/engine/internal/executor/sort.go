package executor

import (
	"context"
	"slices"

	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// NewSortStream returns a stream yielding the rows of input ordered by the
// keys of sort. The input is drained on the first pull. NULL orders before
// any other value; rows with equal keys keep their input order.
func NewSortStream(sort *logical.Sort, input RowStream) *GenericStream {
	var (
		sorted []rows.Row
		loaded bool
		next   int
	)

	return newGenericStream(input.Header, func(ctx context.Context, inputs []RowStream) (rows.Row, bool, error) {
		if !loaded {
			all, err := Collect(ctx, inputs[0])
			if err != nil {
				return rows.Row{}, false, err
			}
			header, err := inputs[0].Header()
			if err != nil {
				return rows.Row{}, false, err
			}
			if sorted, err = sortRows(header, all, sort.Keys); err != nil {
				return rows.Row{}, false, err
			}
			loaded = true
		}

		if next >= len(sorted) {
			sorted = nil
			return rows.Row{}, false, nil
		}
		row := sorted[next]
		next++
		return row, true, nil
	}, input)
}

func sortRows(header *rows.Header, rs []rows.Row, keys []logical.SortKey) ([]rows.Row, error) {
	indices := make([]int, len(keys))
	for i, key := range keys {
		idx, err := header.IndexOf(key.Column)
		if err != nil {
			return nil, err
		}
		indices[i] = idx
	}

	var cmpErr error
	slices.SortStableFunc(rs, func(a, b rows.Row) int {
		for i, key := range keys {
			c, err := compareNullsFirst(a.Value(indices[i]), b.Value(indices[i]))
			if err != nil {
				if cmpErr == nil {
					cmpErr = err
				}
				return 0
			}
			if key.Order == logical.DESC {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	return rs, nil
}

func compareNullsFirst(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	return expr.Compare(a, b)
}
