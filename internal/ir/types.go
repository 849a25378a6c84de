package ir

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// ElementType is the primitive kind of every scalar in a tensor.
type ElementType uint8

const (
	InvalidType ElementType = iota
	S8
	S16
	S32
	S64
	U8
	U16
	U32
)

type elementInfo struct {
	hlo    string // host spelling: s32
	mlir   string // rendered spelling: si32
	bits   uint
	signed bool
}

var elementInfos = [...]elementInfo{
	InvalidType: {hlo: "invalid", mlir: "invalid"},
	S8:          {"s8", "si8", 8, true},
	S16:         {"s16", "si16", 16, true},
	S32:         {"s32", "si32", 32, true},
	S64:         {"s64", "si64", 64, true},
	U8:          {"u8", "ui8", 8, false},
	U16:         {"u16", "ui16", 16, false},
	U32:         {"u32", "ui32", 32, false},
}

// ElementTypes lists every valid element type in declaration order.
func ElementTypes() []ElementType {
	return []ElementType{S8, S16, S32, S64, U8, U16, U32}
}

// Valid reports whether t is one of the declared element types.
func (t ElementType) Valid() bool {
	return t > InvalidType && int(t) < len(elementInfos)
}

// String returns the host spelling (s32, u8).
func (t ElementType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ElementType(%d)", uint8(t))
	}
	return elementInfos[t].hlo
}

// MLIR returns the spelling used inside rendered tensor types (si32, ui8).
func (t ElementType) MLIR() string {
	if !t.Valid() {
		return "invalid"
	}
	return elementInfos[t].mlir
}

// Bits returns the storage width.
func (t ElementType) Bits() uint {
	if !t.Valid() {
		return 0
	}
	return elementInfos[t].bits
}

// Signed reports whether t is a signed integer type.
func (t ElementType) Signed() bool {
	return t.Valid() && elementInfos[t].signed
}

// Min returns the smallest representable value.
func (t ElementType) Min() int64 {
	if !t.Signed() {
		return 0
	}
	if t.Bits() == 64 {
		return math.MinInt64
	}
	return -(int64(1) << (t.Bits() - 1))
}

// Max returns the largest representable value.
func (t ElementType) Max() int64 {
	switch {
	case !t.Valid():
		return 0
	case t.Bits() == 64:
		return math.MaxInt64
	case t.Signed():
		return int64(1)<<(t.Bits()-1) - 1
	default:
		return int64(1)<<t.Bits() - 1
	}
}

// Fits reports whether v is representable in t.
func (t ElementType) Fits(v int64) bool {
	return t.Valid() && v >= t.Min() && v <= t.Max()
}

// ParseElementType accepts both the host (s32) and rendered (si32) spellings.
func ParseElementType(s string) (ElementType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, t := range ElementTypes() {
		if elementInfos[t].hlo == name || elementInfos[t].mlir == name {
			return t, nil
		}
	}
	return InvalidType, fmt.Errorf("unknown element type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t ElementType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid element type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ElementType) UnmarshalText(data []byte) error {
	parsed, err := ParseElementType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TensorType describes a dense tensor: its element type and dimensions.
// A TensorType with no dims is a scalar.
type TensorType struct {
	Type ElementType `json:"type"`
	Dims []int64     `json:"dims"`
}

// Tensor is a shorthand constructor.
func Tensor(t ElementType, dims ...int64) TensorType {
	return TensorType{Type: t, Dims: dims}
}

// Rank returns the number of dimensions.
func (t TensorType) Rank() int {
	return len(t.Dims)
}

// Size returns the number of scalars, the product of all dims. It returns
// -1 when a dim is negative or the product does not fit in an int, so no
// buffer length ever matches such a type.
func (t TensorType) Size() int {
	n := uint64(1)
	for _, d := range t.Dims {
		if d < 0 {
			return -1
		}
		hi, lo := bits.Mul64(n, uint64(d))
		if hi != 0 || lo > math.MaxInt {
			return -1
		}
		n = lo
	}
	return int(n)
}

// SameShape reports whether both types have identical dims.
func (t TensorType) SameShape(o TensorType) bool {
	if len(t.Dims) != len(o.Dims) {
		return false
	}
	for i := range t.Dims {
		if t.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// Equal reports whether element type and dims both match.
func (t TensorType) Equal(o TensorType) bool {
	return t.Type == o.Type && t.SameShape(o)
}

// WithType returns a copy of t with a different element type.
func (t TensorType) WithType(et ElementType) TensorType {
	return TensorType{Type: et, Dims: append([]int64(nil), t.Dims...)}
}

// Validate rejects invalid element types, negative dims and dims whose
// product overflows.
func (t TensorType) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("invalid element type %s", t.Type)
	}
	for i, d := range t.Dims {
		if d < 0 {
			return fmt.Errorf("dimension %d is negative (%d)", i, d)
		}
	}
	if t.Size() < 0 {
		return fmt.Errorf("element count of %v overflows", t.Dims)
	}
	return nil
}

// String renders the type as tensor<3x3xsi32>, or tensor<si32> for scalars.
func (t TensorType) String() string {
	var b strings.Builder
	b.WriteString("tensor<")
	for _, d := range t.Dims {
		b.WriteString(strconv.FormatInt(d, 10))
		b.WriteByte('x')
	}
	b.WriteString(t.Type.MLIR())
	b.WriteByte('>')
	return b.String()
}
