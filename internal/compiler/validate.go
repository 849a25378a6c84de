package compiler

import (
	"fmt"

	"github.com/roach88/hlolower/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrNilProgram        = "E100" // nothing to validate
	ErrNoInputs          = "E101" // program declares no inputs
	ErrNoOutputs         = "E102" // program returns nothing
	ErrUndefinedOperand  = "E103" // operand references an undefined or later value
	ErrOperandType       = "E104" // operand type differs from the op type
	ErrDuplicateOpID     = "E105" // op IDs must be unique and positional
	ErrInvalidTensorType = "E106" // bad element type or negative dim
	ErrResultMismatch    = "E107" // results disagree with declared outputs
	ErrUnknownOpKind     = "E108" // op kind outside the lowered set
)

// ValidationError represents a program validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a lowered program for structural consistency.
// Returns all errors found (does not fail-fast).
//
// Line is the 1-based line of the offending statement in Render's output:
// line 1 is the header, ops follow, then the return.
func Validate(p *ir.Program) []ValidationError {
	if p == nil {
		return []ValidationError{{Field: "program", Message: "program is nil", Code: ErrNilProgram}}
	}

	var errs []ValidationError
	add := func(code, field string, line int, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    line,
		})
	}

	if len(p.Inputs) == 0 {
		add(ErrNoInputs, "inputs", 1, "program declares no inputs")
	}
	for i, in := range p.Inputs {
		if err := in.Type.Validate(); err != nil {
			add(ErrInvalidTensorType, fmt.Sprintf("inputs[%d]", i), 1, "%v", err)
		}
	}

	if len(p.Outputs) == 0 {
		add(ErrNoOutputs, "outputs", 1, "program declares no outputs")
	}
	for i, out := range p.Outputs {
		if err := out.Validate(); err != nil {
			add(ErrInvalidTensorType, fmt.Sprintf("outputs[%d]", i), 1, "%v", err)
		}
	}

	seen := make(map[int]bool, len(p.Ops))
	for i, op := range p.Ops {
		field := fmt.Sprintf("ops[%d]", i)
		line := i + 2

		if seen[op.ID] {
			add(ErrDuplicateOpID, field+".id", line, "duplicate op ID %d", op.ID)
		} else if op.ID != i {
			add(ErrDuplicateOpID, field+".id", line, "op ID %d does not match its position %d", op.ID, i)
		}
		seen[op.ID] = true

		if err := op.Type.Validate(); err != nil {
			add(ErrInvalidTensorType, field+".type", line, "%v", err)
		}

		if arity := op.Kind.Arity(); arity == 0 {
			add(ErrUnknownOpKind, field+".kind", line, "unknown op kind %q", op.Kind)
		} else if len(op.Operands) != arity {
			add(ErrUnknownOpKind, field+".operands", line,
				"%s takes %d operand(s), got %d", op.Kind, arity, len(op.Operands))
		}

		for j, v := range op.Operands {
			opField := fmt.Sprintf("%s.operands[%d]", field, j)
			t, ok := definedBefore(p, v, i)
			if !ok {
				add(ErrUndefinedOperand, opField, line, "%s is not defined before op %d", v, i)
				continue
			}
			if !t.Equal(op.Type) {
				add(ErrOperandType, opField, line, "%s has type %s, op type is %s", v, t, op.Type)
			}
		}
	}

	retLine := len(p.Ops) + 2
	if len(p.Results) != len(p.Outputs) {
		add(ErrResultMismatch, "results", retLine,
			"%d result(s) returned for %d declared output(s)", len(p.Results), len(p.Outputs))
	}
	for i, v := range p.Results {
		field := fmt.Sprintf("results[%d]", i)
		t, ok := definedBefore(p, v, len(p.Ops))
		if !ok {
			add(ErrUndefinedOperand, field, retLine, "%s is not defined", v)
			continue
		}
		if i < len(p.Outputs) && !t.Equal(p.Outputs[i]) {
			add(ErrResultMismatch, field, retLine, "%s has type %s, declared output is %s", v, t, p.Outputs[i])
		}
	}

	return errs
}

// definedBefore returns v's type if v is an argument or the result of an op
// positioned before limit.
func definedBefore(p *ir.Program, v ir.Value, limit int) (ir.TensorType, bool) {
	switch v.Kind {
	case ir.ArgValue:
		if v.Index < 0 || v.Index >= len(p.Inputs) {
			return ir.TensorType{}, false
		}
		return p.Inputs[v.Index].Type, true
	case ir.ResultValue:
		for i := 0; i < limit && i < len(p.Ops); i++ {
			if p.Ops[i].ID == v.Index {
				return p.Ops[i].Type, true
			}
		}
	}
	return ir.TensorType{}, false
}
