package hlo

import "fmt"

// UnaryOpcode is the closed set of single-operand operators.
type UnaryOpcode uint8

const (
	Not UnaryOpcode = iota + 1
)

var unaryNames = map[UnaryOpcode]string{
	Not: "not",
}

func (op UnaryOpcode) String() string {
	if name, ok := unaryNames[op]; ok {
		return name
	}
	return fmt.Sprintf("UnaryOpcode(%d)", uint8(op))
}

// Valid reports whether op is a known unary opcode.
func (op UnaryOpcode) Valid() bool {
	_, ok := unaryNames[op]
	return ok
}

// ParseUnaryOpcode maps an HLO opcode name to a UnaryOpcode.
func ParseUnaryOpcode(name string) (UnaryOpcode, bool) {
	for op, n := range unaryNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// BinaryOpcode is the closed set of two-operand operators.
type BinaryOpcode uint8

const (
	And BinaryOpcode = iota + 1
	Or
	Xor
)

var binaryNames = map[BinaryOpcode]string{
	And: "and",
	Or:  "or",
	Xor: "xor",
}

func (op BinaryOpcode) String() string {
	if name, ok := binaryNames[op]; ok {
		return name
	}
	return fmt.Sprintf("BinaryOpcode(%d)", uint8(op))
}

// Valid reports whether op is a known binary opcode.
func (op BinaryOpcode) Valid() bool {
	_, ok := binaryNames[op]
	return ok
}

// ParseBinaryOpcode maps an HLO opcode name to a BinaryOpcode.
func ParseBinaryOpcode(name string) (BinaryOpcode, bool) {
	for op, n := range binaryNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}
