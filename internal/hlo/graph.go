package hlo

import (
	"slices"

	"github.com/roach88/hlolower/internal/ir"
)

// Graph is a finished, immutable instruction graph.
type Graph struct {
	name   string
	nodes  []Node
	params []NodeID // ordered by Parameter.Index
	root   NodeID
}

// Name returns the computation name.
func (g *Graph) Name() string { return g.name }

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node behind id. It panics if id is out of range; handles
// only come from the Builder that produced g.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// Parameters returns the parameter handles in declaration order.
func (g *Graph) Parameters() []NodeID { return slices.Clone(g.params) }

// Root returns the output node.
func (g *Graph) Root() NodeID { return g.root }

// WithElementType returns a copy of g where every typed node uses t.
// Dims are unchanged.
func (g *Graph) WithElementType(t ir.ElementType) *Graph {
	out := &Graph{
		name:   g.name,
		nodes:  make([]Node, len(g.nodes)),
		params: slices.Clone(g.params),
		root:   g.root,
	}
	for i, n := range g.nodes {
		switch n := n.(type) {
		case *Parameter:
			c := *n
			c.Type = n.Type.WithType(t)
			out.nodes[i] = &c
		case *Unary:
			c := *n
			c.Type = n.Type.WithType(t)
			out.nodes[i] = &c
		case *Binary:
			c := *n
			c.Type = n.Type.WithType(t)
			out.nodes[i] = &c
		case *Tuple:
			out.nodes[i] = &Tuple{Elements: slices.Clone(n.Elements)}
		}
	}
	return out
}
