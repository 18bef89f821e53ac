package tree

import (
	"fmt"
	"io"
	"strings"
)

const (
	symConn = "├── "
	symLast = "└── "
	symPipe = "│   "
	symNone = "    "
)

// Printer writes a [Node] and its children as an indented tree.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes the tree rooted at root. Write errors of the underlying
// writer are ignored.
func (p *Printer) Print(root *Node) {
	p.printNode(root, "", "")
}

func (p *Printer) printNode(n *Node, prefix, connector string) {
	fmt.Fprintf(p.w, "%s%s%s\n", prefix, connector, formatNode(n))

	childPrefix := prefix
	switch connector {
	case symConn:
		childPrefix += symPipe
	case symLast:
		childPrefix += symNone
	}

	for i, child := range n.Children {
		conn := symConn
		if i == len(n.Children)-1 {
			conn = symLast
		}
		p.printNode(child, childPrefix, conn)
	}
}

func formatNode(n *Node) string {
	var sb strings.Builder
	sb.WriteString(n.Name)
	if n.ID != "" {
		sb.WriteString(" #")
		sb.WriteString(n.ID)
	}
	for _, prop := range n.Properties {
		sb.WriteString(" ")
		sb.WriteString(prop.Key)
		sb.WriteString("=")
		if prop.IsMultiValue {
			sb.WriteString("(")
		}
		for i, v := range prop.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprint(&sb, v)
		}
		if prop.IsMultiValue {
			sb.WriteString(")")
		}
	}
	return sb.String()
}
