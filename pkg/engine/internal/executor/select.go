package executor

import (
	"context"

	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// NewSelectStream returns a stream yielding the rows of input for which the
// filter of sel holds. Rows evaluating to NULL are dropped.
func NewSelectStream(sel *logical.Select, input RowStream) *GenericStream {
	return newGenericStream(input.Header, func(ctx context.Context, inputs []RowStream) (rows.Row, bool, error) {
		for {
			row, ok, err := fetch(ctx, inputs[0])
			if err != nil || !ok {
				return rows.Row{}, false, err
			}
			pass, err := expr.Validate(sel.Filter, row)
			if err != nil {
				return rows.Row{}, false, err
			}
			if pass {
				return row, true, nil
			}
		}
	}, input)
}
