package optimizer

import (
	"strings"

	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
)

// Operand describes the shape of a subtree a [Rule] applies to. An operand
// constrains the kind of the operator at its position and, optionally, the
// shape of the operator's inputs. Operands only look at the structure of a
// plan, never at the values held by operators.
type Operand struct {
	kinds    []logical.Kind
	children []*Operand
	any      bool
}

// OperandOf returns an operand matching operators of kind whose inputs match
// children, in order. Without children the inputs are not constrained.
func OperandOf(kind logical.Kind, children ...*Operand) *Operand {
	return &Operand{kinds: []logical.Kind{kind}, children: children}
}

// OneOf returns an operand matching operators of any of kinds whose inputs
// match children.
func OneOf(kinds []logical.Kind, children ...*Operand) *Operand {
	return &Operand{kinds: kinds, children: children}
}

// Any returns an operand matching any input, including fragments.
func Any() *Operand {
	return &Operand{any: true}
}

func (o *Operand) String() string {
	if o.any {
		return "any"
	}

	var sb strings.Builder
	if len(o.kinds) == 1 {
		sb.WriteString(o.kinds[0].String())
	} else {
		kinds := make([]string, len(o.kinds))
		for i, k := range o.kinds {
			kinds[i] = k.String()
		}
		sb.WriteString("OneOf[" + strings.Join(kinds, "|") + "]")
	}

	if len(o.children) > 0 {
		children := make([]string, len(o.children))
		for i, c := range o.children {
			children[i] = c.String()
		}
		sb.WriteString("(" + strings.Join(children, ", ") + ")")
	}
	return sb.String()
}

func (o *Operand) acceptsKind(k logical.Kind) bool {
	for _, kind := range o.kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Match reports whether the subtree rooted at src has the shape described by
// operand. Matching recurses depth first into the inputs of src for every
// child operand. Fragments are only matched by [Any].
func Match(plan *logical.Plan, src logical.Source, operand *Operand) bool {
	if operand.any {
		return true
	}
	if !src.IsOperator() {
		return false
	}

	op := plan.Node(src.Node)
	if op == nil || !operand.acceptsKind(op.Kind()) {
		return false
	}

	sources := op.Sources()
	if len(operand.children) > len(sources) {
		return false
	}
	for i, child := range operand.children {
		if !Match(plan, sources[i], child) {
			return false
		}
	}
	return true
}
