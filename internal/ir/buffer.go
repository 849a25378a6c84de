package ir

import (
	"fmt"
	"slices"
)

// Buffer is a flat, row-major sequence of scalars tagged with its tensor
// type. len(Data) always equals Type.Size() for buffers built by NewBuffer.
type Buffer struct {
	Type TensorType `json:"type"`
	Data []int64    `json:"data"`
}

// NewBuffer validates data against t and returns a buffer owning a copy.
// A length that disagrees with the dims is a ShapeMismatch; a value that
// does not fit the element type is a TypeMismatch.
func NewBuffer(t TensorType, data []int64) (Buffer, error) {
	if err := t.Validate(); err != nil {
		return Buffer{}, Errorf(ErrCodeTypeMismatch, "", "invalid buffer type: %v", err)
	}
	if len(data) != t.Size() {
		return Buffer{}, &Error{
			Code:    ErrCodeShapeMismatch,
			Message: fmt.Sprintf("buffer has %d element(s), %s needs %d", len(data), t, t.Size()),
		}
	}
	for i, v := range data {
		if !t.Type.Fits(v) {
			return Buffer{}, Errorf(ErrCodeTypeMismatch, "", "element %d (%d) does not fit %s", i, v, t.Type)
		}
	}
	return Buffer{Type: t, Data: slices.Clone(data)}, nil
}

// MustBuffer is like NewBuffer but panics on error.
// Use only in tests or with literal data.
func MustBuffer(t TensorType, data ...int64) Buffer {
	b, err := NewBuffer(t, data)
	if err != nil {
		panic(err)
	}
	return b
}

// Len returns the number of scalars.
func (b Buffer) Len() int {
	return len(b.Data)
}

// Equal reports whether b and o have the same type and data.
func (b Buffer) Equal(o Buffer) bool {
	return b.Type.Equal(o.Type) && slices.Equal(b.Data, o.Data)
}

// Clone returns a deep copy.
func (b Buffer) Clone() Buffer {
	return Buffer{Type: b.Type.WithType(b.Type.Type), Data: slices.Clone(b.Data)}
}

// IRObject converts b to its canonical form: {"data":[...],"type":{...}}.
func (b Buffer) IRObject() IRObject {
	data := make(IRArray, len(b.Data))
	for i, v := range b.Data {
		data[i] = IRInt(v)
	}
	return IRObject{
		"type": b.Type.IRObject(),
		"data": data,
	}
}

// BuffersIRValue converts an ordered buffer list to a canonical array.
func BuffersIRValue(bufs []Buffer) IRArray {
	arr := make(IRArray, len(bufs))
	for i, b := range bufs {
		arr[i] = b.IRObject()
	}
	return arr
}

// DecodeBuffers parses a canonical buffer array back into validated buffers.
func DecodeBuffers(data []byte) ([]Buffer, error) {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode buffers: %w", err)
	}
	arr, ok := v.(IRArray)
	if !ok {
		return nil, fmt.Errorf("decode buffers: expected array, got %T", v)
	}

	bufs := make([]Buffer, len(arr))
	for i, elem := range arr {
		b, err := bufferFromIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("decode buffers: [%d]: %w", i, err)
		}
		bufs[i] = b
	}
	return bufs, nil
}

func bufferFromIRValue(v IRValue) (Buffer, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return Buffer{}, fmt.Errorf("expected object, got %T", v)
	}
	t, err := tensorTypeFromIRValue(obj["type"])
	if err != nil {
		return Buffer{}, err
	}
	data, err := intsFromIRValue(obj["data"])
	if err != nil {
		return Buffer{}, fmt.Errorf("data: %w", err)
	}
	return NewBuffer(t, data)
}

func tensorTypeFromIRValue(v IRValue) (TensorType, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return TensorType{}, fmt.Errorf("type: expected object, got %T", v)
	}
	name, ok := obj["type"].(IRString)
	if !ok {
		return TensorType{}, fmt.Errorf("type.type: expected string")
	}
	et, err := ParseElementType(string(name))
	if err != nil {
		return TensorType{}, err
	}
	dims, err := intsFromIRValue(obj["dims"])
	if err != nil {
		return TensorType{}, fmt.Errorf("type.dims: %w", err)
	}
	return TensorType{Type: et, Dims: dims}, nil
}

func intsFromIRValue(v IRValue) ([]int64, error) {
	arr, ok := v.(IRArray)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]int64, len(arr))
	for i, elem := range arr {
		n, ok := elem.(IRInt)
		if !ok {
			return nil, fmt.Errorf("[%d]: expected integer, got %T", i, elem)
		}
		out[i] = int64(n)
	}
	return out, nil
}
