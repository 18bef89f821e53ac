package logical

import "fmt"

// Kind is the closed set of operator kinds of the logical plan.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindSelect     // Filters rows by a predicate.
	KindProject    // Keeps a subset of columns.
	KindReorder    // Changes the order of columns.
	KindSort       // Sorts rows.
	KindSingleJoin // Scalar subquery join.
)

var kindStrings = map[Kind]string{
	KindInvalid:    "Invalid",
	KindSelect:     "Select",
	KindProject:    "Project",
	KindReorder:    "Reorder",
	KindSort:       "Sort",
	KindSingleJoin: "SingleJoin",
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsUnary reports whether operators of kind k have exactly one source.
func (k Kind) IsUnary() bool {
	switch k {
	case KindSelect, KindProject, KindReorder, KindSort:
		return true
	}
	return false
}

// IsBinary reports whether operators of kind k have two sources.
func (k Kind) IsBinary() bool {
	return k == KindSingleJoin
}

// UnaryKinds returns all unary operator kinds.
func UnaryKinds() []Kind {
	return []Kind{KindSelect, KindProject, KindReorder, KindSort}
}
