package logical

import "github.com/polystore/polystore/pkg/engine/internal/expr"

// Select filters the rows of its input by a boolean predicate. It
// corresponds to the WHERE clause in SQL.
type Select struct {
	unary

	Filter expr.Expression
}

var _ Operator = (*Select)(nil)

// NewSelect creates a Select reading from input.
func NewSelect(input Source, filter expr.Expression) *Select {
	return &Select{unary: unary{Input: input}, Filter: filter}
}

// Kind returns KindSelect.
func (*Select) Kind() Kind { return KindSelect }
