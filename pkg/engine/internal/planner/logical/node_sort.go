package logical

import "fmt"

// SortOrder represents the order in which rows are sorted.
type SortOrder uint8

const (
	ASC SortOrder = iota
	DESC
)

func (o SortOrder) String() string {
	if o == DESC {
		return "DESC"
	}
	return "ASC"
}

// SortKey is a single column sort criterion.
type SortKey struct {
	Column string
	Order  SortOrder
}

func (k SortKey) String() string {
	return fmt.Sprintf("%s %s", k.Column, k.Order)
}

// Sort orders the rows of its input by Keys. NULL orders before any other
// value.
type Sort struct {
	unary

	Keys []SortKey
}

var _ Operator = (*Sort)(nil)

// NewSort creates a Sort reading from input.
func NewSort(input Source, keys ...SortKey) *Sort {
	return &Sort{unary: unary{Input: input}, Keys: keys}
}

// Kind returns KindSort.
func (*Sort) Kind() Kind { return KindSort }
