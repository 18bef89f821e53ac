package optimizer

import "github.com/polystore/polystore/pkg/engine/internal/planner/logical"

// Category groups rules by the kind of rewrite they perform.
type Category string

const (
	CategoryFilterPushDown Category = "FilterPushDownRule"
	CategorySimplification Category = "SimplificationRule"
)

// A Rule is a local rewrite of a logical plan. A rule is tried on a node
// once its operand matches the subtree rooted at the node.
type Rule interface {
	// Name returns the unique name of the rule.
	Name() string
	// Category returns the category of the rule.
	Category() Category
	// Operand returns the shape of the subtrees the rule applies to.
	Operand() *Operand

	// Matches applies additional checks to a subtree matched by the
	// operand of the rule. Matches must not modify the plan.
	Matches(call *RuleCall) bool
	// OnMatch rewrites the matched subtree by reassigning sources and
	// registers the root of the rewritten subtree with
	// [RuleCall.TransformTo].
	OnMatch(call *RuleCall) error
}

// RuleCall is the context of a single attempt to apply a rule on a node.
type RuleCall struct {
	plan *logical.Plan
	root logical.NodeID

	result      logical.Source
	transformed bool
}

func newRuleCall(plan *logical.Plan, root logical.NodeID) *RuleCall {
	return &RuleCall{plan: plan, root: root}
}

// Plan returns the plan the rule is applied on.
func (c *RuleCall) Plan() *logical.Plan { return c.plan }

// MatchedRoot returns the ID of the operator matched by the root operand.
func (c *RuleCall) MatchedRoot() logical.NodeID { return c.root }

// Operator returns the operator matched by the root operand.
func (c *RuleCall) Operator() logical.Operator { return c.plan.Node(c.root) }

// Input returns the operator read by input i of the matched root. ok is false
// if the input is a fragment.
func (c *RuleCall) Input(i int) (id logical.NodeID, op logical.Operator, ok bool) {
	src := c.Operator().Source(i)
	if !src.IsOperator() {
		return logical.InvalidNodeID, nil, false
	}
	return src.Node, c.plan.Node(src.Node), true
}

// TransformTo registers src as the replacement of the matched subtree.
// Parents of the matched root are rewired to src after OnMatch returns.
func (c *RuleCall) TransformTo(src logical.Source) {
	c.result = src
	c.transformed = true
}

// Result returns the replacement registered with TransformTo.
func (c *RuleCall) Result() (logical.Source, bool) {
	return c.result, c.transformed
}
