package logical

// Project keeps the columns of its input matching one of Columns, in input
// order. A pattern ending with "*" matches every column with that prefix.
type Project struct {
	unary

	Columns []string
}

var _ Operator = (*Project)(nil)

// NewProject creates a Project reading from input.
func NewProject(input Source, columns ...string) *Project {
	return &Project{unary: unary{Input: input}, Columns: columns}
}

// Kind returns KindProject.
func (*Project) Kind() Kind { return KindProject }

// Reorder rearranges the columns of its input in the order of Columns.
// Columns not matched by any pattern are dropped.
type Reorder struct {
	unary

	Columns []string
}

var _ Operator = (*Reorder)(nil)

// NewReorder creates a Reorder reading from input.
func NewReorder(input Source, columns ...string) *Reorder {
	return &Reorder{unary: unary{Input: input}, Columns: columns}
}

// Kind returns KindReorder.
func (*Reorder) Kind() Kind { return KindReorder }
