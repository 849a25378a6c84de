package hlo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlolower/internal/ir"
)

var t3x3 = ir.Tensor(ir.S32, 3, 3)

func TestBuildBinary(t *testing.T) {
	b := NewBuilder("EltwiseAndOp")
	x := b.Parameter(0, t3x3, "input")
	y := b.Parameter(1, t3x3, "input")
	and := b.Binary(t3x3, And, x, y)

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "EltwiseAndOp", g.Name())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []NodeID{x, y}, g.Parameters())
	assert.Equal(t, and, g.Root(), "root defaults to the last node")

	node, ok := g.Node(and).(*Binary)
	require.True(t, ok)
	assert.Equal(t, And, node.Op)
	assert.Equal(t, []NodeID{x, y}, node.Operands())
}

func TestParametersOrderedByIndex(t *testing.T) {
	b := NewBuilder("swap")
	second := b.Parameter(1, t3x3, "b")
	first := b.Parameter(0, t3x3, "a")
	b.Binary(t3x3, Or, first, second)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{first, second}, g.Parameters())
}

func TestSetRoot(t *testing.T) {
	b := NewBuilder("root")
	x := b.Parameter(0, t3x3, "x")
	n := b.Unary(t3x3, Not, x)
	b.Unary(t3x3, Not, n)
	b.SetRoot(n)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, n, g.Root())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{
			name:  "no parameters",
			build: func(b *Builder) {},
			want:  "declares no parameters",
		},
		{
			name: "duplicate index",
			build: func(b *Builder) {
				b.Parameter(0, t3x3, "a")
				b.Parameter(0, t3x3, "b")
			},
			want: "duplicate parameter index 0",
		},
		{
			name: "gap in indices",
			build: func(b *Builder) {
				b.Parameter(0, t3x3, "a")
				b.Parameter(2, t3x3, "b")
			},
			want: "missing 1",
		},
		{
			name: "forward reference",
			build: func(b *Builder) {
				x := b.Parameter(0, t3x3, "a")
				b.Binary(t3x3, And, x, NodeID(5))
			},
			want: "operand %5 does not reference an existing node",
		},
		{
			name: "tuple operand",
			build: func(b *Builder) {
				x := b.Parameter(0, t3x3, "a")
				tup := b.Tuple(x)
				b.Unary(t3x3, Not, tup)
			},
			want: "operand %1 is a tuple",
		},
		{
			name: "negative dim",
			build: func(b *Builder) {
				b.Parameter(0, ir.Tensor(ir.S32, -1), "a")
			},
			want: "negative",
		},
		{
			name: "empty tuple",
			build: func(b *Builder) {
				b.Parameter(0, t3x3, "a")
				b.Tuple()
			},
			want: "tuple has no elements",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("bad")
			tt.build(b)
			g, err := b.Build()
			assert.Nil(t, g)
			require.Error(t, err)
			assert.True(t, ir.IsInvalidGraph(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFirstErrorWins(t *testing.T) {
	b := NewBuilder("bad")
	x := b.Parameter(0, t3x3, "a")
	b.Unary(t3x3, Not, NodeID(9))
	b.Binary(t3x3, And, x, NodeID(10))

	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), "%9")
}

func TestWithElementType(t *testing.T) {
	b := NewBuilder("pair")
	x := b.Parameter(0, t3x3, "x")
	n := b.Unary(t3x3, Not, x)
	b.Tuple(n, x)
	g := b.MustBuild()

	g64 := g.WithElementType(ir.S64)
	assert.Equal(t, ir.Tensor(ir.S64, 3, 3), g64.Node(x).(*Parameter).Type)
	assert.Equal(t, ir.Tensor(ir.S64, 3, 3), g64.Node(n).(*Unary).Type)

	// The source graph is untouched.
	assert.Equal(t, t3x3, g.Node(n).(*Unary).Type)
	assert.Equal(t, g.Root(), g64.Root())
}

func TestOpcodes(t *testing.T) {
	op, ok := ParseBinaryOpcode("xor")
	assert.True(t, ok)
	assert.Equal(t, Xor, op)
	assert.Equal(t, "xor", op.String())

	_, ok = ParseBinaryOpcode("add")
	assert.False(t, ok)

	u, ok := ParseUnaryOpcode("not")
	assert.True(t, ok)
	assert.Equal(t, Not, u)

	assert.False(t, BinaryOpcode(42).Valid())
	assert.Equal(t, "BinaryOpcode(42)", BinaryOpcode(42).String())
	assert.Equal(t, "UnaryOpcode(7)", UnaryOpcode(7).String())
}
