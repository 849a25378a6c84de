package store

import (
	"fmt"

	"github.com/roach88/hlolower/internal/ir"
)

// marshalBuffers converts buffers to canonical JSON TEXT for storage.
// A nil list is stored as "[]".
func marshalBuffers(bufs []ir.Buffer) (string, error) {
	data, err := ir.MarshalCanonical(ir.BuffersIRValue(bufs))
	if err != nil {
		return "", fmt.Errorf("marshal buffers: %w", err)
	}
	return string(data), nil
}

// unmarshalBuffers parses canonical JSON TEXT back into validated buffers.
// Integers go through json.Number so values beyond 2^53 survive.
func unmarshalBuffers(data string) ([]ir.Buffer, error) {
	if data == "" || data == "[]" {
		return []ir.Buffer{}, nil
	}
	bufs, err := ir.DecodeBuffers([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal buffers: %w", err)
	}
	return bufs, nil
}

// marshalProgram converts p to canonical JSON TEXT.
func marshalProgram(p *ir.Program) (string, error) {
	if p == nil {
		return "", fmt.Errorf("marshal program: program is nil")
	}
	data, err := p.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("marshal program: %w", err)
	}
	return string(data), nil
}

func unmarshalProgram(data string) (*ir.Program, error) {
	p, err := ir.DecodeProgram([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal program: %w", err)
	}
	return p, nil
}
