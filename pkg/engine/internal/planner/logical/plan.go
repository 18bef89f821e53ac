package logical

import (
	"errors"
	"fmt"
)

// Plan is an arena of operators addressed by [NodeID]. Operators reference
// their inputs by ID, so rewriting the plan is a matter of reassigning
// sources; nodes are never copied or removed from the arena. Nodes that are
// no longer reachable from the root are simply ignored.
type Plan struct {
	nodes []Operator
	root  Source
}

// Add adds op to the arena and returns its ID. Add does not connect op to
// the plan.
func (p *Plan) Add(op Operator) NodeID {
	p.nodes = append(p.nodes, op)
	return NodeID(len(p.nodes) - 1)
}

// Len returns the number of operators in the arena, reachable or not.
func (p *Plan) Len() int { return len(p.nodes) }

// Node returns the operator with the given ID, or nil if id is unknown.
func (p *Plan) Node(id NodeID) Operator {
	if id < 0 || int(id) >= len(p.nodes) {
		return nil
	}
	return p.nodes[id]
}

// Root returns the source producing the result of the plan.
func (p *Plan) Root() Source { return p.root }

// SetRoot sets the source producing the result of the plan.
func (p *Plan) SetRoot(root Source) error {
	if err := p.checkSource(root); err != nil {
		return err
	}
	p.root = root
	return nil
}

// SetSource replaces the input at position i of operator id. SetSource
// rejects sources that would introduce a cycle.
func (p *Plan) SetSource(id NodeID, i int, src Source) error {
	op := p.Node(id)
	if op == nil {
		return fmt.Errorf("unknown node #%d", id)
	}
	if i < 0 || i >= len(op.Sources()) {
		return fmt.Errorf("node #%d (%s) has no source %d", id, op.Kind(), i)
	}
	if err := p.checkSource(src); err != nil {
		return err
	}
	if src.IsOperator() && p.reachable(src.Node, id) {
		return fmt.Errorf("setting source %d of node #%d to %s introduces a cycle", i, id, src)
	}
	op.SetSource(i, src)
	return nil
}

func (p *Plan) checkSource(src Source) error {
	switch src.Type {
	case SourceTypeOperator:
		if p.Node(src.Node) == nil {
			return fmt.Errorf("unknown node #%d", src.Node)
		}
	case SourceTypeFragment:
		if src.Fragment.ID == "" {
			return errors.New("fragment source without id")
		}
	default:
		return errors.New("invalid source")
	}
	return nil
}

// reachable reports whether to is reachable from from via operator sources.
func (p *Plan) reachable(from, to NodeID) bool {
	found := false
	_ = p.walkFrom(from, func(id NodeID, _ Operator) error {
		if id == to {
			found = true
			return errStopWalk
		}
		return nil
	}, PreOrderWalk, make(map[NodeID]struct{}))
	return found
}

// Slot identifies one input of an operator.
type Slot struct {
	Node  NodeID
	Index int
}

// Parents returns the input slots of reachable operators that read from id.
func (p *Plan) Parents(id NodeID) []Slot {
	var slots []Slot
	_ = p.Walk(func(parent NodeID, op Operator) error {
		for i, src := range op.Sources() {
			if src.IsOperator() && src.Node == id {
				slots = append(slots, Slot{Node: parent, Index: i})
			}
		}
		return nil
	}, PreOrderWalk)
	return slots
}

// Validate checks that the plan has a root, that all reachable sources
// point at existing nodes and that the plan is acyclic.
func (p *Plan) Validate() error {
	if err := p.checkSource(p.root); err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}
	if !p.root.IsOperator() {
		return nil
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[NodeID]int)

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("cycle detected at node #%d", id)
		case done:
			return nil
		}
		state[id] = visiting
		for i, src := range p.nodes[id].Sources() {
			if err := p.checkSource(src); err != nil {
				return fmt.Errorf("node #%d source %d: %w", id, i, err)
			}
			if src.IsOperator() {
				if err := visit(src.Node); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}
	return visit(p.root.Node)
}

// WalkOrder defines the order in which an operator and its inputs are
// visited.
type WalkOrder uint8

const (
	// PreOrderWalk processes the current operator before visiting any of
	// its inputs.
	PreOrderWalk WalkOrder = iota

	// PostOrderWalk processes the current operator after visiting all of
	// its inputs.
	PostOrderWalk
)

// WalkFunc is invoked for every operator when walking a [Plan]. Walking
// stops if WalkFunc returns a non-nil error.
type WalkFunc func(id NodeID, op Operator) error

var errStopWalk = errors.New("stop walk")

// Walk performs a depth-first walk of all operators reachable from the
// root, visiting every operator once. Walk returns the error returned by
// fn.
func (p *Plan) Walk(fn WalkFunc, order WalkOrder) error {
	if !p.root.IsOperator() {
		return nil
	}
	err := p.walkFrom(p.root.Node, fn, order, make(map[NodeID]struct{}))
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

func (p *Plan) walkFrom(id NodeID, fn WalkFunc, order WalkOrder, visited map[NodeID]struct{}) error {
	if _, ok := visited[id]; ok {
		return nil
	}
	visited[id] = struct{}{}

	op := p.Node(id)
	if op == nil {
		return fmt.Errorf("unknown node #%d", id)
	}

	if order == PreOrderWalk {
		if err := fn(id, op); err != nil {
			return err
		}
	}
	for _, src := range op.Sources() {
		if !src.IsOperator() {
			continue
		}
		if err := p.walkFrom(src.Node, fn, order, visited); err != nil {
			return err
		}
	}
	if order == PostOrderWalk {
		return fn(id, op)
	}
	return nil
}
