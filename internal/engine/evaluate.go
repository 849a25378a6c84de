package engine

import (
	"fmt"

	"github.com/roach88/hlolower/internal/ir"
)

// Evaluate runs p against inputs and returns one fresh buffer per declared
// output.
//
// Inputs are checked before anything runs: the count first (ArityMismatch),
// then each buffer's element type (TypeMismatch), then its dims
// (ShapeMismatch). On any failure no outputs are returned.
//
// Scalars are treated as booleans: zero is false, anything else is true.
// Results are written as 0 or 1.
func Evaluate(p *ir.Program, inputs []ir.Buffer) ([]ir.Buffer, error) {
	if p == nil {
		return nil, ir.Errorf(ir.ErrCodeInvalidGraph, "", "program is nil")
	}
	if err := checkInputs(p, inputs); err != nil {
		return nil, err
	}

	bt := newBindingTable(inputs)
	lastUse := p.LastUses()

	for i, op := range p.Ops {
		out, err := execute(op, bt)
		if err != nil {
			return nil, err
		}
		bt.bind(op.ID, out)

		for _, v := range op.Operands {
			if v.Kind == ir.ResultValue && lastUse[v.Index] == i {
				bt.release(v.Index)
			}
		}
	}

	outputs := make([]ir.Buffer, len(p.Results))
	for i, v := range p.Results {
		b, err := bt.lookup(v)
		if err != nil {
			return nil, err
		}
		outputs[i] = b.Clone()
	}
	return outputs, nil
}

func checkInputs(p *ir.Program, inputs []ir.Buffer) error {
	if len(inputs) != len(p.Inputs) {
		return ir.NewArityMismatch(len(p.Inputs), len(inputs))
	}
	for i, in := range p.Inputs {
		if err := in.Type.Validate(); err != nil {
			return ir.Errorf(ir.ErrCodeInvalidGraph, in.Name, "input type: %v", err)
		}
		got := inputs[i]
		if got.Type.Type != in.Type.Type {
			return ir.NewTypeMismatch(in.Name, in.Type.Type, got.Type.Type)
		}
		if !got.Type.SameShape(in.Type) {
			return ir.NewShapeMismatch(in.Name, in.Type, got.Type)
		}
		if got.Len() != in.Type.Size() {
			return ir.Errorf(ir.ErrCodeShapeMismatch, in.Name,
				"buffer has %d element(s), %s needs %d", got.Len(), in.Type, in.Type.Size())
		}
	}
	return nil
}

// bindingTable maps values to buffers for one evaluation. Arguments are
// borrowed from the caller and never written; results are owned.
type bindingTable struct {
	args    []ir.Buffer
	results map[int]ir.Buffer
}

func newBindingTable(args []ir.Buffer) *bindingTable {
	return &bindingTable{args: args, results: make(map[int]ir.Buffer)}
}

func (bt *bindingTable) bind(id int, b ir.Buffer) {
	bt.results[id] = b
}

func (bt *bindingTable) release(id int) {
	delete(bt.results, id)
}

func (bt *bindingTable) lookup(v ir.Value) (ir.Buffer, error) {
	switch v.Kind {
	case ir.ArgValue:
		if v.Index < 0 || v.Index >= len(bt.args) {
			return ir.Buffer{}, ir.Errorf(ir.ErrCodeInvalidGraph, v.String(), "argument out of range")
		}
		return bt.args[v.Index], nil
	case ir.ResultValue:
		b, ok := bt.results[v.Index]
		if !ok {
			return ir.Buffer{}, ir.Errorf(ir.ErrCodeInvalidGraph, v.String(), "value is not bound")
		}
		return b, nil
	default:
		return ir.Buffer{}, ir.Errorf(ir.ErrCodeInvalidGraph, v.String(), "unknown value kind %q", v.Kind)
	}
}

func execute(op ir.Op, bt *bindingTable) (ir.Buffer, error) {
	name := string(op.Kind)
	if arity := op.Kind.Arity(); arity == 0 {
		return ir.Buffer{}, ir.Errorf(ir.ErrCodeUnsupportedOperator, name, "op kind %q cannot be evaluated", op.Kind)
	} else if len(op.Operands) != arity {
		return ir.Buffer{}, ir.Errorf(ir.ErrCodeInvalidGraph, name,
			"%s takes %d operand(s), got %d", op.Kind, arity, len(op.Operands))
	}

	operands := make([]ir.Buffer, len(op.Operands))
	for i, v := range op.Operands {
		b, err := bt.lookup(v)
		if err != nil {
			return ir.Buffer{}, err
		}
		if b.Type.Type != op.Type.Type {
			return ir.Buffer{}, ir.NewTypeMismatch(name, op.Type.Type, b.Type.Type)
		}
		if !b.Type.SameShape(op.Type) || b.Len() != op.Type.Size() {
			return ir.Buffer{}, ir.NewShapeMismatch(name, op.Type, b.Type)
		}
		operands[i] = b
	}

	out := ir.Buffer{Type: op.Type.WithType(op.Type.Type), Data: make([]int64, op.Type.Size())}
	switch op.Kind {
	case ir.OpNot:
		x := operands[0].Data
		for j := range out.Data {
			out.Data[j] = boolInt(x[j] == 0)
		}
	case ir.OpAnd:
		l, r := operands[0].Data, operands[1].Data
		for j := range out.Data {
			out.Data[j] = boolInt(l[j] != 0 && r[j] != 0)
		}
	case ir.OpOr:
		l, r := operands[0].Data, operands[1].Data
		for j := range out.Data {
			out.Data[j] = boolInt(l[j] != 0 || r[j] != 0)
		}
	case ir.OpXor:
		l, r := operands[0].Data, operands[1].Data
		for j := range out.Data {
			out.Data[j] = boolInt((l[j] != 0) != (r[j] != 0))
		}
	default:
		panic(fmt.Sprintf("engine: unhandled op kind %q", op.Kind))
	}
	return out, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
