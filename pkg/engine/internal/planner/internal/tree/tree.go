// Package tree renders plans as indented trees for logs and tests.
package tree

// Property is a key with one or more values, printed as key=value or, if
// IsMultiValue is set, as key=(v1, v2).
type Property struct {
	Key          string
	Values       []any
	IsMultiValue bool
}

// NewProperty creates a property. Pass multi=true for list-valued
// properties, even when the list has a single element.
func NewProperty(key string, multi bool, values ...any) Property {
	return Property{Key: key, Values: values, IsMultiValue: multi}
}

// Node is a printable operator or source. An empty ID is omitted.
type Node struct {
	ID         string
	Name       string
	Properties []Property
	Children   []*Node
}

func NewNode(name, id string, properties ...Property) *Node {
	return &Node{ID: id, Name: name, Properties: properties}
}

// AddChild appends a new child to n and returns it.
func (n *Node) AddChild(name, id string, properties []Property) *Node {
	child := NewNode(name, id, properties...)
	n.Children = append(n.Children, child)
	return child
}
