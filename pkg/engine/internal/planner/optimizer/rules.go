package optimizer

import (
	"fmt"

	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
)

// DefaultRules returns the rules applied by the optimizer, in the order in
// which they are tried.
func DefaultRules() []Rule {
	return []Rule{
		&RemoveTrueSelectRule{},
		&MergeAdjacentSelectRule{},
		&FilterPushDownProjectReorderSortRule{},
	}
}

// FilterPushDownProjectReorderSortRule swaps a Select with the Project,
// Reorder or Sort it reads from, so that fewer rows reach the latter:
//
//	Select                    Project/Reorder/Sort
//	  |                              |
//	Project/Reorder/Sort   =>      Select
//	  |                              |
//	  x                              x
//
// The rule does not apply if x is a fragment.
type FilterPushDownProjectReorderSortRule struct{}

var _ Rule = (*FilterPushDownProjectReorderSortRule)(nil)

var pushDownTargets = []logical.Kind{logical.KindProject, logical.KindReorder, logical.KindSort}

func (*FilterPushDownProjectReorderSortRule) Name() string {
	return "FilterPushDownProjectReorderSortRule"
}

func (*FilterPushDownProjectReorderSortRule) Category() Category { return CategoryFilterPushDown }

func (*FilterPushDownProjectReorderSortRule) Operand() *Operand {
	return OperandOf(logical.KindSelect, OneOf(logical.UnaryKinds(), Any()))
}

// Matches accepts the subtree if the child of the Select is a Project,
// Reorder or Sort that reads from another operator and is not shared with
// other parents.
func (*FilterPushDownProjectReorderSortRule) Matches(call *RuleCall) bool {
	childID, child, ok := call.Input(0)
	if !ok {
		return false
	}
	if !isKindOf(child.Kind(), pushDownTargets) {
		return false
	}
	if child.Source(0).IsFragment() {
		return false
	}
	return len(call.Plan().Parents(childID)) == 1
}

// OnMatch implements [Rule].
func (*FilterPushDownProjectReorderSortRule) OnMatch(call *RuleCall) error {
	plan := call.Plan()
	childID, child, _ := call.Input(0)

	if err := plan.SetSource(call.MatchedRoot(), 0, child.Source(0)); err != nil {
		return err
	}
	if err := plan.SetSource(childID, 0, logical.OperatorSource(call.MatchedRoot())); err != nil {
		return err
	}
	call.TransformTo(logical.OperatorSource(childID))
	return nil
}

// MergeAdjacentSelectRule combines two consecutive Selects into one whose
// filter is the conjunction of both filters.
type MergeAdjacentSelectRule struct{}

var _ Rule = (*MergeAdjacentSelectRule)(nil)

func (*MergeAdjacentSelectRule) Name() string { return "MergeAdjacentSelectRule" }

func (*MergeAdjacentSelectRule) Category() Category { return CategorySimplification }

func (*MergeAdjacentSelectRule) Operand() *Operand {
	return OperandOf(logical.KindSelect, OperandOf(logical.KindSelect))
}

// Matches implements [Rule].
func (*MergeAdjacentSelectRule) Matches(*RuleCall) bool { return true }

// OnMatch implements [Rule]. The inner Select is left untouched so that
// other parents reading from it are not affected.
func (*MergeAdjacentSelectRule) OnMatch(call *RuleCall) error {
	outer, ok := call.Operator().(*logical.Select)
	if !ok {
		return fmt.Errorf("unexpected operator %s", call.Operator().Kind())
	}
	_, innerOp, _ := call.Input(0)
	inner := innerOp.(*logical.Select)

	if err := call.Plan().SetSource(call.MatchedRoot(), 0, inner.Input); err != nil {
		return err
	}
	outer.Filter = expr.And(inner.Filter, outer.Filter)
	call.TransformTo(logical.OperatorSource(call.MatchedRoot()))
	return nil
}

// RemoveTrueSelectRule removes Selects without filter or with the literal
// true as filter.
type RemoveTrueSelectRule struct{}

var _ Rule = (*RemoveTrueSelectRule)(nil)

func (*RemoveTrueSelectRule) Name() string { return "RemoveTrueSelectRule" }

func (*RemoveTrueSelectRule) Category() Category { return CategorySimplification }

func (*RemoveTrueSelectRule) Operand() *Operand {
	return OperandOf(logical.KindSelect)
}

// Matches implements [Rule].
func (*RemoveTrueSelectRule) Matches(call *RuleCall) bool {
	sel, ok := call.Operator().(*logical.Select)
	return ok && (sel.Filter == nil || expr.IsTrue(sel.Filter))
}

// OnMatch implements [Rule].
func (*RemoveTrueSelectRule) OnMatch(call *RuleCall) error {
	call.TransformTo(call.Operator().Source(0))
	return nil
}

func isKindOf(k logical.Kind, kinds []logical.Kind) bool {
	for _, kind := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
