package hlo

import (
	"fmt"

	"github.com/roach88/hlolower/internal/ir"
)

// NodeID is a handle into a Graph's node arena.
type NodeID int32

// String renders the handle the way CUE specs reference operands: %3.
func (id NodeID) String() string {
	return fmt.Sprintf("%%%d", int32(id))
}

// Node is a sealed interface over the instruction variants.
// Only *Parameter, *Unary, *Binary and *Tuple implement it.
type Node interface {
	// Operands returns the handles this node reads, in order.
	Operands() []NodeID
	node()
}

// Parameter is a declared input of the computation.
type Parameter struct {
	Index int
	Name  string
	Type  ir.TensorType
}

// Unary applies a single-operand elementwise operator.
type Unary struct {
	Op      UnaryOpcode
	Operand NodeID
	Type    ir.TensorType
}

// Binary applies a two-operand elementwise operator. LHS/RHS order is kept
// through lowering so rendered text is stable.
type Binary struct {
	Op   BinaryOpcode
	LHS  NodeID
	RHS  NodeID
	Type ir.TensorType
}

// Tuple groups several nodes into a multi-output root.
type Tuple struct {
	Elements []NodeID
}

func (*Parameter) node() {}
func (*Unary) node()     {}
func (*Binary) node()    {}
func (*Tuple) node()     {}

func (*Parameter) Operands() []NodeID { return nil }
func (n *Unary) Operands() []NodeID   { return []NodeID{n.Operand} }
func (n *Binary) Operands() []NodeID  { return []NodeID{n.LHS, n.RHS} }
func (n *Tuple) Operands() []NodeID   { return n.Elements }

// TypeOf returns the result type of n. Tuples have no single type.
func TypeOf(n Node) (ir.TensorType, bool) {
	switch n := n.(type) {
	case *Parameter:
		return n.Type, true
	case *Unary:
		return n.Type, true
	case *Binary:
		return n.Type, true
	default:
		return ir.TensorType{}, false
	}
}
