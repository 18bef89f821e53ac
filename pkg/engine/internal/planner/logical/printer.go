package logical

import (
	"strconv"
	"strings"

	"github.com/polystore/polystore/pkg/engine/internal/planner/internal/tree"
)

// BuildTree converts the subtree rooted at src into a tree structure that
// can be used for visualization and debugging purposes.
func BuildTree(p *Plan, src Source) *tree.Node {
	switch src.Type {
	case SourceTypeFragment:
		return tree.NewNode("Fragment", src.Fragment.ID, tree.NewProperty("prefix", false, src.Fragment.Prefix))
	case SourceTypeOperator:
		op := p.Node(src.Node)
		if op == nil {
			return tree.NewNode("Invalid", strconv.Itoa(int(src.Node)))
		}
		root := toTreeNode(src.Node, op)
		for _, child := range op.Sources() {
			root.Children = append(root.Children, BuildTree(p, child))
		}
		return root
	default:
		return tree.NewNode("Invalid", "")
	}
}

func toTreeNode(id NodeID, op Operator) *tree.Node {
	n := tree.NewNode(op.Kind().String(), strconv.Itoa(int(id)))
	switch op := op.(type) {
	case *Select:
		n.Properties = []tree.Property{
			tree.NewProperty("filter", false, filterString(op.Filter)),
		}
	case *Project:
		n.Properties = []tree.Property{
			tree.NewProperty("columns", true, toAnySlice(op.Columns)...),
		}
	case *Reorder:
		n.Properties = []tree.Property{
			tree.NewProperty("columns", true, toAnySlice(op.Columns)...),
		}
	case *Sort:
		n.Properties = []tree.Property{
			tree.NewProperty("keys", true, toAnySlice(op.Keys)...),
		}
	case *SingleJoin:
		n.Properties = []tree.Property{
			tree.NewProperty("filter", false, filterString(op.Filter)),
			tree.NewProperty("prefix_a", false, op.PrefixA),
			tree.NewProperty("prefix_b", false, op.PrefixB),
		}
	}
	return n
}

func filterString(f interface{ String() string }) string {
	if f == nil {
		return "true"
	}
	return f.String()
}

func toAnySlice[T any](s []T) []any {
	ret := make([]any, len(s))
	for i := range s {
		ret[i] = s[i]
	}
	return ret
}

// PrintAsTree converts the plan into a human-readable tree representation.
func PrintAsTree(p *Plan) string {
	sb := &strings.Builder{}
	printer := tree.NewPrinter(sb)
	printer.Print(BuildTree(p, p.Root()))
	return sb.String()
}
