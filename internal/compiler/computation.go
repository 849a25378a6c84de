package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hlolower/internal/hlo"
	"github.com/roach88/hlolower/internal/ir"
)

// TupleOpcode is the instruction opcode that groups operands into a
// multi-output root.
const TupleOpcode = "tuple"

// CompileComputation parses one CUE computation into an instruction graph.
// Uses the CUE Go API directly (not a CLI subprocess).
//
// The value should be the computation struct itself:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`computation: EltwiseAndOp: { ... }`)
//	g, err := CompileComputation(v.LookupPath(cue.ParsePath("computation.EltwiseAndOp")))
//
// Operands are written "%<index>" for parameters and by name for earlier
// instructions. An instruction without type/dims inherits them from its
// first operand.
func CompileComputation(v cue.Value) (*hlo.Graph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name := ""
	if labels := v.Path().Selectors(); len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}

	c := &computationCompiler{
		b:     hlo.NewBuilder(name),
		names: make(map[string]hlo.NodeID),
		types: make(map[hlo.NodeID]ir.TensorType),
	}

	if err := c.parameters(v); err != nil {
		return nil, err
	}
	if err := c.instructions(v); err != nil {
		return nil, err
	}
	if err := c.root(v); err != nil {
		return nil, err
	}

	g, err := c.b.Build()
	if err != nil {
		return nil, &CompileError{
			Field:   "computation",
			Message: err.Error(),
			Pos:     v.Pos(),
			Err:     err,
		}
	}
	return g, nil
}

type computationCompiler struct {
	b      *hlo.Builder
	params []hlo.NodeID
	names  map[string]hlo.NodeID
	types  map[hlo.NodeID]ir.TensorType
}

func (c *computationCompiler) parameters(v cue.Value) error {
	listVal := v.LookupPath(cue.ParsePath("parameter"))
	if !listVal.Exists() {
		return &CompileError{Field: "parameter", Message: "at least one parameter is required", Pos: v.Pos()}
	}

	iter, err := listVal.List()
	if err != nil {
		return formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		pv := iter.Value()
		field := fmt.Sprintf("parameter[%d]", i)

		name, err := optionalString(pv, "name")
		if err != nil {
			return err
		}
		if name == "" {
			name = fmt.Sprintf("p%d", i)
		}

		t, err := tensorType(pv, field, ir.TensorType{}, false)
		if err != nil {
			return err
		}

		id := c.b.Parameter(i, t, name)
		c.params = append(c.params, id)
		c.types[id] = t
	}

	if len(c.params) == 0 {
		return &CompileError{Field: "parameter", Message: "at least one parameter is required", Pos: listVal.Pos()}
	}
	return nil
}

func (c *computationCompiler) instructions(v cue.Value) error {
	listVal := v.LookupPath(cue.ParsePath("instruction"))
	if !listVal.Exists() {
		return nil // a computation may return a parameter directly
	}

	iter, err := listVal.List()
	if err != nil {
		return formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		if err := c.instruction(iter.Value(), fmt.Sprintf("instruction[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *computationCompiler) instruction(iv cue.Value, field string) error {
	name, err := requiredString(iv, "name", field)
	if err != nil {
		return err
	}
	if strings.HasPrefix(name, "%") {
		return &CompileError{Field: field + ".name", Message: fmt.Sprintf("instruction name %q must not start with %%", name), Pos: iv.Pos()}
	}
	if _, dup := c.names[name]; dup {
		return &CompileError{Field: field + ".name", Message: fmt.Sprintf("duplicate instruction name %q", name), Pos: iv.Pos()}
	}

	opcode, err := requiredString(iv, "opcode", field)
	if err != nil {
		return err
	}

	operands, err := c.operands(iv, field)
	if err != nil {
		return err
	}

	var id hlo.NodeID
	switch {
	case opcode == TupleOpcode:
		id = c.b.Tuple(operands...)

	case isUnary(opcode):
		op, _ := hlo.ParseUnaryOpcode(opcode)
		if len(operands) != 1 {
			return arityError(iv, field, opcode, 1, len(operands))
		}
		t, err := tensorType(iv, field, c.types[operands[0]], true)
		if err != nil {
			return err
		}
		id = c.b.Unary(t, op, operands[0])
		c.types[id] = t

	case isBinary(opcode):
		op, _ := hlo.ParseBinaryOpcode(opcode)
		if len(operands) != 2 {
			return arityError(iv, field, opcode, 2, len(operands))
		}
		t, err := tensorType(iv, field, c.types[operands[0]], true)
		if err != nil {
			return err
		}
		id = c.b.Binary(t, op, operands[0], operands[1])
		c.types[id] = t

	default:
		cause := ir.Errorf(ir.ErrCodeUnsupportedOperator, opcode, "opcode %q is not supported", opcode)
		return &CompileError{
			Field:   field + ".opcode",
			Message: cause.Message,
			Pos:     iv.LookupPath(cue.ParsePath("opcode")).Pos(),
			Err:     cause,
		}
	}

	c.names[name] = id
	return nil
}

func (c *computationCompiler) operands(iv cue.Value, field string) ([]hlo.NodeID, error) {
	listVal := iv.LookupPath(cue.ParsePath("operands"))
	if !listVal.Exists() {
		return nil, &CompileError{Field: field + ".operands", Message: "operands are required", Pos: iv.Pos()}
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var ids []hlo.NodeID
	for iter.Next() {
		ref, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		id, err := c.resolve(ref, iter.Value().Pos(), field+".operands")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolve maps "%3" to parameter 3 and any other string to a previously
// declared instruction.
func (c *computationCompiler) resolve(ref string, pos token.Pos, field string) (hlo.NodeID, error) {
	if rest, ok := strings.CutPrefix(ref, "%"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 || i >= len(c.params) {
			return 0, &CompileError{Field: field, Message: fmt.Sprintf("unknown parameter reference %q", ref), Pos: pos}
		}
		return c.params[i], nil
	}
	id, ok := c.names[ref]
	if !ok {
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("operand %q is not a previously declared instruction", ref), Pos: pos}
	}
	return id, nil
}

func (c *computationCompiler) root(v cue.Value) error {
	rootVal := v.LookupPath(cue.ParsePath("root"))
	if !rootVal.Exists() {
		return nil
	}
	ref, err := rootVal.String()
	if err != nil {
		return formatCUEError(err)
	}
	id, err := c.resolve(ref, rootVal.Pos(), "root")
	if err != nil {
		return err
	}
	c.b.SetRoot(id)
	return nil
}

func isUnary(opcode string) bool {
	_, ok := hlo.ParseUnaryOpcode(opcode)
	return ok
}

func isBinary(opcode string) bool {
	_, ok := hlo.ParseBinaryOpcode(opcode)
	return ok
}

func arityError(iv cue.Value, field, opcode string, want, got int) error {
	return &CompileError{
		Field:   field + ".operands",
		Message: fmt.Sprintf("%s takes %d operand(s), got %d", opcode, want, got),
		Pos:     iv.Pos(),
	}
}

// tensorType reads the optional type/dims fields of v. Missing fields fall
// back to def when inherit is set; a parameter must spell out its type.
func tensorType(v cue.Value, field string, def ir.TensorType, inherit bool) (ir.TensorType, error) {
	t := ir.TensorType{}
	if inherit {
		t = def.WithType(def.Type)
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	switch {
	case typeVal.Exists():
		s, err := typeVal.String()
		if err != nil {
			return t, formatCUEError(err)
		}
		et, err := parseElementType(s)
		if err != nil {
			return t, &CompileError{Field: field + ".type", Message: err.Error(), Pos: typeVal.Pos()}
		}
		t.Type = et
	case !inherit:
		return t, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}

	dimsVal := v.LookupPath(cue.ParsePath("dims"))
	if dimsVal.Exists() {
		iter, err := dimsVal.List()
		if err != nil {
			return t, formatCUEError(err)
		}
		dims := []int64{}
		for iter.Next() {
			dv := iter.Value()
			if dv.IncompleteKind() != cue.IntKind {
				return t, &CompileError{Field: field + ".dims", Message: "dims must be integers", Pos: dv.Pos()}
			}
			d, err := dv.Int64()
			if err != nil {
				return t, formatCUEError(err)
			}
			if d < 0 {
				return t, &CompileError{Field: field + ".dims", Message: fmt.Sprintf("dimension %d is negative", d), Pos: dv.Pos()}
			}
			dims = append(dims, d)
		}
		t.Dims = dims
	}

	return t, nil
}

// parseElementType accepts integer element types only. Floats get a
// dedicated message since they are the likely mistake.
func parseElementType(s string) (ir.ElementType, error) {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "f") || strings.HasPrefix(lower, "bf") {
		return ir.InvalidType, fmt.Errorf("float element type %q is forbidden - use an integer type", s)
	}
	return ir.ParseElementType(s)
}

func requiredString(v cue.Value, key, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return "", &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, key string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error // underlying typed error, if any
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap exposes the typed cause so ir.IsUnsupportedOperator and friends
// see through compile errors.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
