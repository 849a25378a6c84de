package compiler

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlolower/internal/engine"
	"github.com/roach88/hlolower/internal/hlo"
	"github.com/roach88/hlolower/internal/ir"
)

var t3x3 = ir.Tensor(ir.S32, 3, 3)

var (
	inputA = []int64{0, 0, 1, 1, 0, 0, 1, 1, 0}
	inputB = []int64{1, 0, 1, 0, 1, 0, 1, 0, 1}
)

func binaryGraph(name string, op hlo.BinaryOpcode, t ir.TensorType) *hlo.Graph {
	b := hlo.NewBuilder(name)
	x := b.Parameter(0, t, "input")
	y := b.Parameter(1, t, "input")
	b.Binary(t, op, x, y)
	return b.MustBuild()
}

func notGraph(t ir.TensorType) *hlo.Graph {
	b := hlo.NewBuilder("EltwiseNotOp")
	x := b.Parameter(0, t, "input")
	b.Unary(t, hlo.Not, x)
	return b.MustBuild()
}

func TestLowerEndToEnd(t *testing.T) {
	tests := []struct {
		name  string
		graph *hlo.Graph
		in    [][]int64
		want  []int64
	}{
		{"and", binaryGraph("EltwiseAndOp", hlo.And, t3x3), [][]int64{inputA, inputB}, []int64{0, 0, 1, 0, 0, 0, 1, 0, 0}},
		{"or", binaryGraph("EltwiseOrOp", hlo.Or, t3x3), [][]int64{inputA, inputB}, []int64{1, 0, 1, 1, 1, 0, 1, 1, 1}},
		{"xor", binaryGraph("EltwiseXorOp", hlo.Xor, t3x3), [][]int64{inputA, inputB}, []int64{1, 0, 0, 1, 1, 0, 0, 1, 1}},
		{"not", notGraph(t3x3), [][]int64{inputA}, []int64{1, 1, 0, 0, 1, 1, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Lower(tt.graph)
			require.NoError(t, err)
			assert.Empty(t, Validate(p))

			inputs := make([]ir.Buffer, len(tt.in))
			for i, data := range tt.in {
				inputs[i] = ir.MustBuffer(t3x3, data...)
			}
			out, err := engine.Evaluate(p, inputs)
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Data)
		})
	}
}

func TestLowerRendersAnd(t *testing.T) {
	p, err := Lower(binaryGraph("EltwiseAndOp", hlo.And, t3x3))
	require.NoError(t, err)

	want := "func @hlo_module(%arg0: tensor<3x3xsi32>, %arg1: tensor<3x3xsi32>) -> tensor<3x3xsi32>" +
		" attributes {hlo.computation = \"EltwiseAndOp\", hlo.params = [\"input\", \"input\"]} {\n" +
		"  %0 = eltwise.and %arg0, %arg1 : tensor<3x3xsi32>\n" +
		"  return %0 : tensor<3x3xsi32>\n" +
		"}\n"
	assert.Equal(t, want, ir.Render(p))
}

func TestLowerDeterministic(t *testing.T) {
	build := func() *hlo.Graph {
		b := hlo.NewBuilder("Mixed")
		x := b.Parameter(0, t3x3, "x")
		y := b.Parameter(1, t3x3, "y")
		a := b.Binary(t3x3, hlo.And, x, y)
		n := b.Unary(t3x3, hlo.Not, y)
		b.Binary(t3x3, hlo.Xor, a, n)
		return b.MustBuild()
	}

	first, err := Lower(build())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Lower(build())
		require.NoError(t, err)
		assert.Equal(t, ir.Render(first), ir.Render(again))

		h1, err := ir.ProgramHash(first)
		require.NoError(t, err)
		h2, err := ir.ProgramHash(again)
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	}
}

func TestLowerOperandOrder(t *testing.T) {
	// xor(and(x, y), not(y)): the LHS subtree is emitted before the RHS.
	b := hlo.NewBuilder("Mixed")
	x := b.Parameter(0, t3x3, "x")
	y := b.Parameter(1, t3x3, "y")
	n := b.Unary(t3x3, hlo.Not, y)
	a := b.Binary(t3x3, hlo.And, x, y)
	b.Binary(t3x3, hlo.Xor, a, n)

	p, err := Lower(b.MustBuild())
	require.NoError(t, err)
	require.Len(t, p.Ops, 3)
	assert.Equal(t, ir.OpAnd, p.Ops[0].Kind)
	assert.Equal(t, ir.OpNot, p.Ops[1].Kind)
	assert.Equal(t, ir.OpXor, p.Ops[2].Kind)
	assert.Equal(t, []ir.Value{ir.Result(0), ir.Result(1)}, p.Ops[2].Operands)
}

func TestLowerSharedOperandEmittedOnce(t *testing.T) {
	b := hlo.NewBuilder("Shared")
	x := b.Parameter(0, t3x3, "x")
	n := b.Unary(t3x3, hlo.Not, x)
	b.Binary(t3x3, hlo.Or, n, n)

	p, err := Lower(b.MustBuild())
	require.NoError(t, err)
	require.Len(t, p.Ops, 2)
	assert.Equal(t, []ir.Value{ir.Result(0), ir.Result(0)}, p.Ops[1].Operands)
}

func TestLowerKeepsUnusedParameters(t *testing.T) {
	b := hlo.NewBuilder("Unused")
	x := b.Parameter(0, t3x3, "x")
	b.Parameter(1, ir.Tensor(ir.U8, 4), "ignored")
	b.Parameter(2, t3x3, "z")
	b.SetRoot(b.Unary(t3x3, hlo.Not, x))

	p, err := Lower(b.MustBuild())
	require.NoError(t, err)
	require.Len(t, p.Inputs, 3)
	assert.Equal(t, "ignored", p.Inputs[1].Param)
	assert.Equal(t, ir.Tensor(ir.U8, 4), p.Inputs[1].Type)
	assert.Equal(t, "arg2", p.Inputs[2].Name)
	assert.Contains(t, ir.Render(p), "%arg1: tensor<4xui8>")
}

func TestLowerReturnsParameter(t *testing.T) {
	b := hlo.NewBuilder("Identity")
	b.Parameter(0, t3x3, "x")

	p, err := Lower(b.MustBuild())
	require.NoError(t, err)
	assert.Empty(t, p.Ops)
	assert.Equal(t, []ir.Value{ir.Arg(0)}, p.Results)
	assert.Empty(t, Validate(p))
}

func TestLowerShapeMismatch(t *testing.T) {
	b := hlo.NewBuilder("Bad")
	x := b.Parameter(0, t3x3, "x")
	y := b.Parameter(1, ir.Tensor(ir.S32, 9), "y")
	b.Binary(t3x3, hlo.And, x, y)

	p, err := Lower(b.MustBuild())
	assert.Nil(t, p)
	require.Error(t, err)
	assert.True(t, ir.IsShapeMismatch(err))
}

func TestLowerRejectsUnreachableMismatch(t *testing.T) {
	b := hlo.NewBuilder("Dead")
	x := b.Parameter(0, t3x3, "x")
	y := b.Parameter(1, ir.Tensor(ir.S32, 9), "y")
	b.Binary(t3x3, hlo.And, x, y) // never reaches the root
	b.SetRoot(b.Unary(t3x3, hlo.Not, x))

	p, err := Lower(b.MustBuild())
	assert.Nil(t, p)
	assert.True(t, ir.IsShapeMismatch(err), "got %v", err)
}

func TestLowerSkipsUnreachableOps(t *testing.T) {
	b := hlo.NewBuilder("Dead")
	x := b.Parameter(0, t3x3, "x")
	y := b.Parameter(1, t3x3, "y")
	b.Binary(t3x3, hlo.Xor, x, y)
	b.SetRoot(b.Unary(t3x3, hlo.Not, x))

	p, err := Lower(b.MustBuild())
	require.NoError(t, err)
	require.Len(t, p.Ops, 1)
	assert.Equal(t, ir.OpNot, p.Ops[0].Kind)
	assert.Len(t, p.Inputs, 2)
}

func TestLowerTypeMismatch(t *testing.T) {
	b := hlo.NewBuilder("Bad")
	x := b.Parameter(0, t3x3, "x")
	y := b.Parameter(1, ir.Tensor(ir.U8, 9), "y")
	b.Binary(t3x3, hlo.Or, x, y)

	p, err := Lower(b.MustBuild())
	assert.Nil(t, p)
	assert.True(t, ir.IsTypeMismatch(err), "type is checked before shape: %v", err)
}

func TestLowerResultTypeMismatch(t *testing.T) {
	b := hlo.NewBuilder("Bad")
	x := b.Parameter(0, t3x3, "x")
	b.Unary(ir.Tensor(ir.S64, 3, 3), hlo.Not, x)

	_, err := Lower(b.MustBuild())
	assert.True(t, ir.IsTypeMismatch(err))
}

func TestLowerUnsupportedOpcode(t *testing.T) {
	b := hlo.NewBuilder("Bad")
	x := b.Parameter(0, t3x3, "x")
	y := b.Parameter(1, t3x3, "y")
	b.Binary(t3x3, hlo.BinaryOpcode(42), x, y)

	p, err := Lower(b.MustBuild())
	assert.Nil(t, p)
	assert.True(t, ir.IsUnsupportedOperator(err))
	assert.Contains(t, err.Error(), "BinaryOpcode(42)")
}

func TestLowerTupleRoot(t *testing.T) {
	b := hlo.NewBuilder("Both")
	x := b.Parameter(0, t3x3, "x")
	y := b.Parameter(1, t3x3, "y")
	a := b.Binary(t3x3, hlo.And, x, y)
	o := b.Binary(t3x3, hlo.Or, x, y)
	b.Tuple(a, o, x)

	p, err := Lower(b.MustBuild())
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Result(0), ir.Result(1), ir.Arg(0)}, p.Results)
	assert.Len(t, p.Outputs, 3)
	assert.Contains(t, ir.Render(p), "return %0, %1, %arg0 : tensor<3x3xsi32>, tensor<3x3xsi32>, tensor<3x3xsi32>")

	out, err := engine.Evaluate(p, []ir.Buffer{ir.MustBuffer(t3x3, inputA...), ir.MustBuffer(t3x3, inputB...)})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int64{0, 0, 1, 0, 0, 0, 1, 0, 0}, out[0].Data)
	assert.Equal(t, []int64{1, 0, 1, 1, 1, 0, 1, 1, 1}, out[1].Data)
	assert.Equal(t, inputA, out[2].Data)
}

func TestLowerDeepChain(t *testing.T) {
	b := hlo.NewBuilder("Deep")
	prev := b.Parameter(0, t3x3, "x")
	for i := 0; i < 10000; i++ {
		prev = b.Unary(t3x3, hlo.Not, prev)
	}

	p, err := Lower(b.MustBuild())
	require.NoError(t, err)
	assert.Len(t, p.Ops, 10000)
}

func TestLowerOverflowingShapeNeverBuilds(t *testing.T) {
	b := hlo.NewBuilder("Huge")
	x := b.Parameter(0, ir.Tensor(ir.S32, 1<<32, 1<<32), "x")
	b.Unary(ir.Tensor(ir.S32, 1<<32, 1<<32), hlo.Not, x)

	g, err := b.Build()
	assert.Nil(t, g)
	assert.True(t, ir.IsInvalidGraph(err), "got %v", err)
	assert.ErrorContains(t, err, "overflows")
}

func TestLowerNilGraph(t *testing.T) {
	_, err := Lower(nil)
	assert.True(t, ir.IsInvalidGraph(err))
}

func TestLowerWithFunctionName(t *testing.T) {
	p, err := Lower(notGraph(t3x3), WithFunctionName("main"))
	require.NoError(t, err)
	assert.Equal(t, "main", p.Name)
	assert.Contains(t, ir.Render(p), "func @main(")
}

func TestLowerWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Lower(notGraph(t3x3), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "computation=EltwiseNotOp")
}

func TestLowerElementTypes(t *testing.T) {
	for _, et := range ir.ElementTypes() {
		t.Run(et.String(), func(t *testing.T) {
			g := binaryGraph("EltwiseXorOp", hlo.Xor, t3x3).WithElementType(et)
			p, err := Lower(g)
			require.NoError(t, err)
			assert.Contains(t, ir.Render(p), "tensor<3x3x"+et.MLIR()+">")
		})
	}
}
