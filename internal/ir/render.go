package ir

import (
	"strconv"
	"strings"
)

// Render produces the canonical text form of p:
//
//	func @hlo_module(%arg0: tensor<3x3xsi32>, %arg1: tensor<3x3xsi32>) -> tensor<3x3xsi32> attributes {...} {
//	  %0 = eltwise.and %arg0, %arg1 : tensor<3x3xsi32>
//	  return %0 : tensor<3x3xsi32>
//	}
//
// The header lists inputs in declaration order. Parameter names are carried
// in the trailing attribute dictionary so the signature prefix stays stable
// for ordered pattern checks. Render has no side effects.
func Render(p *Program) string {
	var b strings.Builder

	b.WriteString("func @")
	b.WriteString(p.Name)
	b.WriteByte('(')
	for i, in := range p.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Arg(i).String())
		b.WriteString(": ")
		b.WriteString(in.Type.String())
	}
	b.WriteString(") -> ")
	if len(p.Outputs) == 1 {
		b.WriteString(p.Outputs[0].String())
	} else {
		b.WriteByte('(')
		b.WriteString(joinTypes(p.Outputs))
		b.WriteByte(')')
	}
	writeAttributes(&b, p)
	b.WriteString(" {\n")

	for _, op := range p.Ops {
		b.WriteString("  ")
		b.WriteString(Result(op.ID).String())
		b.WriteString(" = ")
		b.WriteString(op.Kind.Mnemonic())
		b.WriteByte(' ')
		b.WriteString(joinValues(op.Operands))
		b.WriteString(" : ")
		b.WriteString(op.Type.String())
		b.WriteByte('\n')
	}

	b.WriteString("  return ")
	b.WriteString(joinValues(p.Results))
	b.WriteString(" : ")
	b.WriteString(joinTypes(p.Outputs))
	b.WriteString("\n}\n")

	return b.String()
}

func writeAttributes(b *strings.Builder, p *Program) {
	var attrs []string
	if p.Computation != "" {
		attrs = append(attrs, "hlo.computation = "+strconv.Quote(p.Computation))
	}
	if len(p.Inputs) > 0 {
		names := make([]string, len(p.Inputs))
		for i, in := range p.Inputs {
			names[i] = strconv.Quote(in.Param)
		}
		attrs = append(attrs, "hlo.params = ["+strings.Join(names, ", ")+"]")
	}
	if len(attrs) == 0 {
		return
	}
	b.WriteString(" attributes {")
	b.WriteString(strings.Join(attrs, ", "))
	b.WriteByte('}')
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func joinTypes(ts []TensorType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
