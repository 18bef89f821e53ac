package logical

import "fmt"

// Operator is a node of the logical plan. Operators only reference their
// inputs through [Source]s; replacing a source is the only way the shape of
// a plan changes.
type Operator interface {
	// Kind returns the kind of the operator.
	Kind() Kind
	// Sources returns a copy of the inputs of the operator, in order.
	Sources() []Source
	// Source returns the input at position i.
	Source(i int) Source
	// SetSource replaces the input at position i.
	SetSource(i int, s Source)

	isOperator()
}

// unary is embedded by operators with exactly one input.
type unary struct {
	Input Source
}

// Sources implements [Operator].
func (u *unary) Sources() []Source { return []Source{u.Input} }

// Source implements [Operator].
func (u *unary) Source(i int) Source {
	if i != 0 {
		panic(fmt.Sprintf("unary operator has no source %d", i))
	}
	return u.Input
}

// SetSource implements [Operator].
func (u *unary) SetSource(i int, s Source) {
	if i != 0 {
		panic(fmt.Sprintf("unary operator has no source %d", i))
	}
	u.Input = s
}

func (*unary) isOperator() {}

// binary is embedded by operators with two inputs.
type binary struct {
	SourceA Source
	SourceB Source
}

// Sources implements [Operator].
func (b *binary) Sources() []Source { return []Source{b.SourceA, b.SourceB} }

// Source implements [Operator].
func (b *binary) Source(i int) Source {
	switch i {
	case 0:
		return b.SourceA
	case 1:
		return b.SourceB
	}
	panic(fmt.Sprintf("binary operator has no source %d", i))
}

// SetSource implements [Operator].
func (b *binary) SetSource(i int, s Source) {
	switch i {
	case 0:
		b.SourceA = s
	case 1:
		b.SourceB = s
	default:
		panic(fmt.Sprintf("binary operator has no source %d", i))
	}
}

func (*binary) isOperator() {}
