package hlo

import (
	"fmt"
	"slices"

	"github.com/roach88/hlolower/internal/ir"
)

// Builder assembles a Graph. Methods never fail individually; the first
// problem is recorded and returned by Build, so a graph can be written as a
// straight sequence of calls.
type Builder struct {
	name    string
	nodes   []Node
	root    NodeID
	rootSet bool
	err     error // first error encountered during building
}

// NewBuilder starts a graph for the named computation.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Err returns the first error encountered so far, if any.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) setErr(format string, args ...any) {
	if b.err == nil {
		b.err = ir.Errorf(ir.ErrCodeInvalidGraph, "", format, args...)
	}
}

func (b *Builder) add(n Node) NodeID {
	b.nodes = append(b.nodes, n)
	return NodeID(len(b.nodes) - 1)
}

// checkOperand records an error unless id names an existing non-tuple node.
func (b *Builder) checkOperand(id NodeID) {
	if id < 0 || int(id) >= len(b.nodes) {
		b.setErr("operand %s does not reference an existing node", id)
		return
	}
	if _, ok := b.nodes[id].(*Tuple); ok {
		b.setErr("operand %s is a tuple", id)
	}
}

// Parameter declares input number index.
func (b *Builder) Parameter(index int, t ir.TensorType, name string) NodeID {
	if err := t.Validate(); err != nil {
		b.setErr("parameter %d (%s): %v", index, name, err)
	}
	return b.add(&Parameter{Index: index, Name: name, Type: t})
}

// Unary adds op(x) with result type t.
func (b *Builder) Unary(t ir.TensorType, op UnaryOpcode, x NodeID) NodeID {
	b.checkOperand(x)
	return b.add(&Unary{Op: op, Operand: x, Type: t})
}

// Binary adds op(lhs, rhs) with result type t.
func (b *Builder) Binary(t ir.TensorType, op BinaryOpcode, lhs, rhs NodeID) NodeID {
	b.checkOperand(lhs)
	b.checkOperand(rhs)
	return b.add(&Binary{Op: op, LHS: lhs, RHS: rhs, Type: t})
}

// Tuple groups elems into a multi-output node.
func (b *Builder) Tuple(elems ...NodeID) NodeID {
	if len(elems) == 0 {
		b.setErr("tuple has no elements")
	}
	for _, e := range elems {
		b.checkOperand(e)
	}
	return b.add(&Tuple{Elements: slices.Clone(elems)})
}

// SetRoot designates the output node. Without it the last added node is
// the root.
func (b *Builder) SetRoot(id NodeID) {
	if id < 0 || int(id) >= len(b.nodes) {
		b.setErr("root %s does not reference an existing node", id)
		return
	}
	b.root = id
	b.rootSet = true
}

// Build validates the accumulated nodes and returns the graph.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}

	var params []NodeID
	seen := make(map[int]bool)
	for i, n := range b.nodes {
		p, ok := n.(*Parameter)
		if !ok {
			continue
		}
		if seen[p.Index] {
			return nil, ir.Errorf(ir.ErrCodeInvalidGraph, p.Name, "duplicate parameter index %d", p.Index)
		}
		seen[p.Index] = true
		params = append(params, NodeID(i))
	}
	if len(params) == 0 {
		return nil, ir.Errorf(ir.ErrCodeInvalidGraph, "", "computation %q declares no parameters", b.name)
	}

	slices.SortFunc(params, func(a, c NodeID) int {
		return b.nodes[a].(*Parameter).Index - b.nodes[c].(*Parameter).Index
	})
	for want, id := range params {
		if got := b.nodes[id].(*Parameter).Index; got != want {
			return nil, ir.Errorf(ir.ErrCodeInvalidGraph, "",
				"parameter indices must be contiguous from 0: missing %d", want)
		}
	}

	root := b.root
	if !b.rootSet {
		root = NodeID(len(b.nodes) - 1)
	}

	return &Graph{
		name:   b.name,
		nodes:  slices.Clone(b.nodes),
		params: params,
		root:   root,
	}, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or with literal graphs.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("hlo: %v", err))
	}
	return g
}
