package compiler

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hlolower/internal/hlo"
	"github.com/roach88/hlolower/internal/ir"
)

// LowerOption configures Lower.
type LowerOption func(*lowerConfig)

type lowerConfig struct {
	name   string
	logger *slog.Logger
}

// WithFunctionName sets the name of the emitted function.
// Defaults to ir.DefaultFunctionName.
func WithFunctionName(name string) LowerOption {
	return func(c *lowerConfig) {
		c.name = name
	}
}

// WithLogger routes lowering diagnostics to logger.
func WithLogger(logger *slog.Logger) LowerOption {
	return func(c *lowerConfig) {
		c.logger = logger
	}
}

// Lower translates g into an IR program.
//
// Every parameter is declared in the signature, consumed or not. Nodes are
// emitted operands-first, visiting LHS before RHS, so identical graphs always
// lower to identical programs. Nodes the root does not reach are checked
// but not emitted. Any shape, type or opcode problem aborts the
// pass and no program is returned.
func Lower(g *hlo.Graph, opts ...LowerOption) (*ir.Program, error) {
	cfg := lowerConfig{
		name:   ir.DefaultFunctionName,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if g == nil {
		return nil, ir.Errorf(ir.ErrCodeInvalidGraph, "", "graph is nil")
	}

	p := &ir.Program{
		Name:        cfg.name,
		Computation: g.Name(),
	}

	values := make(map[hlo.NodeID]ir.Value, g.Len())
	for i, id := range g.Parameters() {
		param := g.Node(id).(*hlo.Parameter)
		p.Inputs = append(p.Inputs, ir.Input{
			Name:  fmt.Sprintf("arg%d", i),
			Param: param.Name,
			Type:  param.Type,
		})
		values[id] = ir.Arg(i)
	}

	order, err := postorder(g)
	if err != nil {
		return nil, err
	}

	l := &lowering{g: g, p: p, values: values}
	for _, id := range order {
		if err := l.emit(id); err != nil {
			cfg.logger.Debug("lowering failed",
				"computation", g.Name(),
				"node", id.String(),
				"error", err)
			return nil, err
		}
	}

	if err := l.checkUnreached(order); err != nil {
		return nil, err
	}
	if err := l.bindOutputs(g.Root()); err != nil {
		return nil, err
	}

	cfg.logger.Debug("lowered computation",
		"computation", g.Name(),
		"inputs", len(p.Inputs),
		"ops", len(p.Ops),
		"outputs", len(p.Outputs))

	return p, nil
}

// postorder returns the nodes reachable from the root with every operand
// ahead of its consumers. The walk is an explicit-stack DFS so deep chains
// cannot overflow the goroutine stack.
func postorder(g *hlo.Graph) ([]hlo.NodeID, error) {
	const (
		unvisited = iota
		active
		done
	)

	type frame struct {
		id   hlo.NodeID
		next int
	}

	root := g.Root()
	if root < 0 || int(root) >= g.Len() {
		return nil, ir.Errorf(ir.ErrCodeInvalidGraph, "", "root %s is out of range", root)
	}

	state := make([]uint8, g.Len())
	var order []hlo.NodeID
	stack := []frame{{id: root}}
	state[root] = active

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		operands := g.Node(top.id).Operands()

		if top.next < len(operands) {
			child := operands[top.next]
			top.next++
			if child < 0 || int(child) >= g.Len() {
				return nil, ir.Errorf(ir.ErrCodeInvalidGraph, "", "node %s reads missing node %s", top.id, child)
			}
			switch state[child] {
			case active:
				return nil, ir.Errorf(ir.ErrCodeInvalidGraph, "", "cycle through node %s", child)
			case unvisited:
				state[child] = active
				stack = append(stack, frame{id: child})
			}
			continue
		}

		state[top.id] = done
		order = append(order, top.id)
		stack = stack[:len(stack)-1]
	}

	return order, nil
}

type lowering struct {
	g      *hlo.Graph
	p      *ir.Program
	values map[hlo.NodeID]ir.Value
}

func (l *lowering) emit(id hlo.NodeID) error {
	kind, ok, err := l.check(id)
	if err != nil || !ok {
		return err
	}
	n := l.g.Node(id)
	t, _ := hlo.TypeOf(n)
	return l.emitOp(id, kind, t, n.Operands()...)
}

// check verifies the opcode and operand types of node id without emitting
// it. ok is false for nodes that lower to no op.
func (l *lowering) check(id hlo.NodeID) (kind ir.OpKind, ok bool, err error) {
	switch n := l.g.Node(id).(type) {
	case *hlo.Parameter:
		return "", false, nil

	case *hlo.Unary:
		kind, ok = unaryKinds[n.Op]
		if !ok {
			return "", false, ir.Errorf(ir.ErrCodeUnsupportedOperator, n.Op.String(), "unary opcode %s is not lowered", n.Op)
		}
		return kind, true, l.checkTypes(kind, n.Type, n.Operand)

	case *hlo.Binary:
		kind, ok = binaryKinds[n.Op]
		if !ok {
			return "", false, ir.Errorf(ir.ErrCodeUnsupportedOperator, n.Op.String(), "binary opcode %s is not lowered", n.Op)
		}
		return kind, true, l.checkTypes(kind, n.Type, n.LHS, n.RHS)

	case *hlo.Tuple:
		if id != l.g.Root() {
			return "", false, ir.Errorf(ir.ErrCodeInvalidGraph, "tuple", "tuple %s is only allowed as the root", id)
		}
		return "", false, nil

	default:
		return "", false, ir.Errorf(ir.ErrCodeUnsupportedOperator, fmt.Sprintf("%T", n), "node kind %T is not lowered", n)
	}
}

// checkUnreached checks the nodes the root does not reach. They are never
// emitted, but a malformed graph is rejected whether or not its bad node is
// live.
func (l *lowering) checkUnreached(reached []hlo.NodeID) error {
	live := make([]bool, l.g.Len())
	for _, id := range reached {
		live[id] = true
	}
	for i := range live {
		if live[i] {
			continue
		}
		if _, _, err := l.check(hlo.NodeID(i)); err != nil {
			return err
		}
	}
	return nil
}

var unaryKinds = map[hlo.UnaryOpcode]ir.OpKind{
	hlo.Not: ir.OpNot,
}

var binaryKinds = map[hlo.BinaryOpcode]ir.OpKind{
	hlo.And: ir.OpAnd,
	hlo.Or:  ir.OpOr,
	hlo.Xor: ir.OpXor,
}

// checkTypes verifies that every operand and the declared result share one
// tensor type. Element types are compared before shapes.
func (l *lowering) checkTypes(kind ir.OpKind, result ir.TensorType, operands ...hlo.NodeID) error {
	op := string(kind)
	if err := result.Validate(); err != nil {
		return ir.Errorf(ir.ErrCodeInvalidGraph, op, "result type: %v", err)
	}

	types := make([]ir.TensorType, len(operands))
	for i, id := range operands {
		if id < 0 || int(id) >= l.g.Len() {
			return ir.Errorf(ir.ErrCodeInvalidGraph, op, "operand %s is out of range", id)
		}
		t, ok := hlo.TypeOf(l.g.Node(id))
		if !ok {
			return ir.Errorf(ir.ErrCodeInvalidGraph, op, "operand %s has no tensor type", id)
		}
		types[i] = t
	}

	want := types[0]
	for _, t := range types[1:] {
		if t.Type != want.Type {
			return ir.NewTypeMismatch(op, want.Type, t.Type)
		}
		if !t.SameShape(want) {
			return ir.NewShapeMismatch(op, want, t)
		}
	}
	if result.Type != want.Type {
		return ir.NewTypeMismatch(op, want.Type, result.Type)
	}
	if !result.SameShape(want) {
		return ir.NewShapeMismatch(op, want, result)
	}
	return nil
}

// emitOp appends an op already passed by check.
func (l *lowering) emitOp(node hlo.NodeID, kind ir.OpKind, result ir.TensorType, operands ...hlo.NodeID) error {
	refs := make([]ir.Value, len(operands))
	for i, id := range operands {
		v, ok := l.values[id]
		if !ok {
			return ir.Errorf(ir.ErrCodeInvalidGraph, string(kind), "operand %s has no lowered value", id)
		}
		refs[i] = v
	}

	id := len(l.p.Ops)
	l.p.Ops = append(l.p.Ops, ir.Op{
		ID:       id,
		Kind:     kind,
		Operands: refs,
		Type:     result,
	})
	l.values[node] = ir.Result(id)
	return nil
}

// bindOutputs fills the program's results from the root: one output for a
// plain node, one per element for a tuple.
func (l *lowering) bindOutputs(root hlo.NodeID) error {
	elems := []hlo.NodeID{root}
	if tuple, ok := l.g.Node(root).(*hlo.Tuple); ok {
		elems = tuple.Elements
	}

	for _, id := range elems {
		v, ok := l.values[id]
		if !ok {
			return ir.Errorf(ir.ErrCodeInvalidGraph, "", "output %s has no lowered value", id)
		}
		t, ok := hlo.TypeOf(l.g.Node(id))
		if !ok {
			return ir.Errorf(ir.ErrCodeInvalidGraph, "", "output %s has no tensor type", id)
		}
		l.p.Results = append(l.p.Results, v)
		l.p.Outputs = append(l.p.Outputs, t)
	}
	return nil
}
