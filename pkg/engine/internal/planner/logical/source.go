package logical

import "fmt"

// NodeID addresses an operator inside the arena of a [Plan].
type NodeID int

// InvalidNodeID is the zero value of unset node references.
const InvalidNodeID NodeID = -1

// SourceType denotes what a [Source] points at.
type SourceType uint8

const (
	SourceTypeInvalid  SourceType = iota
	SourceTypeOperator            // Another operator of the same plan.
	SourceTypeFragment            // A storage fragment; terminal and opaque to the optimizer.
)

func (t SourceType) String() string {
	switch t {
	case SourceTypeOperator:
		return "Operator"
	case SourceTypeFragment:
		return "Fragment"
	default:
		return "Invalid"
	}
}

// Fragment is a handle to physical storage that produces rows. The engine
// resolves it through the storage adapter registered for execution.
type Fragment struct {
	// ID identifies the fragment within the storage.
	ID string
	// Prefix is the table alias the fragment's fields are qualified with.
	Prefix string
}

func (f Fragment) String() string {
	if f.Prefix == "" {
		return f.ID
	}
	return fmt.Sprintf("%s AS %s", f.ID, f.Prefix)
}

// Source is the input of an operator: either another operator of the plan,
// or a terminal fragment.
type Source struct {
	Type     SourceType
	Node     NodeID   // Set for SourceTypeOperator.
	Fragment Fragment // Set for SourceTypeFragment.
}

// OperatorSource returns a source reading from the operator id.
func OperatorSource(id NodeID) Source {
	return Source{Type: SourceTypeOperator, Node: id}
}

// FragmentSource returns a source reading from the fragment f.
func FragmentSource(f Fragment) Source {
	return Source{Type: SourceTypeFragment, Node: InvalidNodeID, Fragment: f}
}

// IsOperator reports whether s points at an operator.
func (s Source) IsOperator() bool { return s.Type == SourceTypeOperator }

// IsFragment reports whether s points at a fragment.
func (s Source) IsFragment() bool { return s.Type == SourceTypeFragment }

func (s Source) String() string {
	switch s.Type {
	case SourceTypeOperator:
		return fmt.Sprintf("#%d", s.Node)
	case SourceTypeFragment:
		return "fragment(" + s.Fragment.String() + ")"
	default:
		return "invalid"
	}
}
