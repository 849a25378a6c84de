package ir

import (
	"encoding/json"
	"fmt"
)

// IRObject converts t to its canonical form: {"dims":[...],"type":"s32"}.
func (t TensorType) IRObject() IRObject {
	dims := make(IRArray, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = IRInt(d)
	}
	return IRObject{
		"type": IRString(t.Type.String()),
		"dims": dims,
	}
}

// IRObject converts v to its canonical form.
func (v Value) IRObject() IRObject {
	return IRObject{
		"kind":  IRString(v.Kind),
		"index": IRInt(v.Index),
	}
}

// IRObject converts p to its canonical form. Keys match the JSON tags on
// Program so DecodeProgram can read the bytes back.
func (p *Program) IRObject() IRObject {
	inputs := make(IRArray, len(p.Inputs))
	for i, in := range p.Inputs {
		inputs[i] = IRObject{
			"name":  IRString(in.Name),
			"param": IRString(in.Param),
			"type":  in.Type.IRObject(),
		}
	}

	outputs := make(IRArray, len(p.Outputs))
	for i, t := range p.Outputs {
		outputs[i] = t.IRObject()
	}

	ops := make(IRArray, len(p.Ops))
	for i, op := range p.Ops {
		operands := make(IRArray, len(op.Operands))
		for j, v := range op.Operands {
			operands[j] = v.IRObject()
		}
		ops[i] = IRObject{
			"id":       IRInt(op.ID),
			"kind":     IRString(op.Kind),
			"operands": operands,
			"type":     op.Type.IRObject(),
		}
	}

	results := make(IRArray, len(p.Results))
	for i, v := range p.Results {
		results[i] = v.IRObject()
	}

	return IRObject{
		"name":        IRString(p.Name),
		"computation": IRString(p.Computation),
		"inputs":      inputs,
		"outputs":     outputs,
		"ops":         ops,
		"results":     results,
	}
}

// MarshalCanonical returns the canonical JSON encoding of p.
func (p *Program) MarshalCanonical() ([]byte, error) {
	return MarshalCanonical(p.IRObject())
}

// DecodeProgram parses the canonical JSON produced by MarshalCanonical.
// Floats anywhere in the document are rejected.
func DecodeProgram(data []byte) (*Program, error) {
	if _, err := UnmarshalIRValue(data); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &p, nil
}
