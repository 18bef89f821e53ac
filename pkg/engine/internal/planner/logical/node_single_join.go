package logical

import "github.com/polystore/polystore/pkg/engine/internal/expr"

// SingleJoin correlates a scalar subquery: every row of SourceA is combined
// with at most one row of SourceB satisfying Filter. Rows of SourceA without
// a match are padded with NULLs; more than one match is an error.
type SingleJoin struct {
	binary

	Filter  expr.Expression
	PrefixA string // Table alias of the outer side.
	PrefixB string // Table alias of the subquery side.
}

var _ Operator = (*SingleJoin)(nil)

// NewSingleJoin creates a SingleJoin of a (outer) and b (subquery).
func NewSingleJoin(a, b Source, filter expr.Expression, prefixA, prefixB string) *SingleJoin {
	return &SingleJoin{
		binary:  binary{SourceA: a, SourceB: b},
		Filter:  filter,
		PrefixA: prefixA,
		PrefixB: prefixB,
	}
}

// Kind returns KindSingleJoin.
func (*SingleJoin) Kind() Kind { return KindSingleJoin }
