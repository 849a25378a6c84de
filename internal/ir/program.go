package ir

import (
	"fmt"
	"strconv"
)

// DefaultFunctionName is the function name programs render with unless the
// lowering pass is told otherwise.
const DefaultFunctionName = "hlo_module"

// ValueKind distinguishes function arguments from operation results.
type ValueKind string

const (
	ArgValue    ValueKind = "arg"
	ResultValue ValueKind = "result"
)

// Value references either a function argument (%arg0) or the result of an
// earlier operation (%0).
type Value struct {
	Kind  ValueKind `json:"kind"`
	Index int       `json:"index"`
}

// Arg references the i-th function argument.
func Arg(i int) Value { return Value{Kind: ArgValue, Index: i} }

// Result references the result of the operation with the given ID.
func Result(id int) Value { return Value{Kind: ResultValue, Index: id} }

// String renders the reference: %arg0 or %0.
func (v Value) String() string {
	if v.Kind == ArgValue {
		return "%arg" + strconv.Itoa(v.Index)
	}
	return "%" + strconv.Itoa(v.Index)
}

// OpKind is the closed set of lowered elementwise operators.
type OpKind string

const (
	OpNot OpKind = "not"
	OpAnd OpKind = "and"
	OpOr  OpKind = "or"
	OpXor OpKind = "xor"
)

// Arity returns the operand count of k, or 0 for unknown kinds.
func (k OpKind) Arity() int {
	switch k {
	case OpNot:
		return 1
	case OpAnd, OpOr, OpXor:
		return 2
	default:
		return 0
	}
}

// Mnemonic is the rendered operation name.
func (k OpKind) Mnemonic() string {
	return "eltwise." + string(k)
}

// Op is one lowered operation. Its result is referenced as Result(ID).
type Op struct {
	ID       int        `json:"id"`
	Kind     OpKind     `json:"kind"`
	Operands []Value    `json:"operands"`
	Type     TensorType `json:"type"`
}

// Input is one declared function argument.
type Input struct {
	Name  string     `json:"name"`  // IR binding, e.g. "arg0"
	Param string     `json:"param"` // source parameter name
	Type  TensorType `json:"type"`
}

// Program is a lowered function: an ordered signature, an ordered sequence
// of operations in dependency order, and the values it returns.
//
// Programs are produced by the lowering pass and must not be mutated
// afterwards; rendering and evaluation both rely on that.
type Program struct {
	Name        string       `json:"name"`
	Computation string       `json:"computation"`
	Inputs      []Input      `json:"inputs"`
	Outputs     []TensorType `json:"outputs"`
	Ops         []Op         `json:"ops"`
	Results     []Value      `json:"results"`
}

// TypeOf returns the tensor type of v within p.
func (p *Program) TypeOf(v Value) (TensorType, error) {
	switch v.Kind {
	case ArgValue:
		if v.Index < 0 || v.Index >= len(p.Inputs) {
			return TensorType{}, fmt.Errorf("argument %s out of range (%d inputs)", v, len(p.Inputs))
		}
		return p.Inputs[v.Index].Type, nil
	case ResultValue:
		if v.Index < 0 || v.Index >= len(p.Ops) || p.Ops[v.Index].ID != v.Index {
			return TensorType{}, fmt.Errorf("result %s is not defined", v)
		}
		return p.Ops[v.Index].Type, nil
	default:
		return TensorType{}, fmt.Errorf("unknown value kind %q", v.Kind)
	}
}

// LastUses maps each op result to the index of the last op that reads it.
// Results returned by the program are omitted: they must survive the run.
func (p *Program) LastUses() map[int]int {
	returned := make(map[int]bool, len(p.Results))
	for _, r := range p.Results {
		if r.Kind == ResultValue {
			returned[r.Index] = true
		}
	}

	last := make(map[int]int)
	for i, op := range p.Ops {
		for _, v := range op.Operands {
			if v.Kind == ResultValue && !returned[v.Index] {
				last[v.Index] = i
			}
		}
	}
	return last
}

// String renders the program; see Render.
func (p *Program) String() string {
	return Render(p)
}
