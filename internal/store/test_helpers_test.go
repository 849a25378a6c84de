package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/hlolower/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testProgram returns and(%arg0, %arg1) over 3x3 s32.
func testProgram(kind ir.OpKind) *ir.Program {
	t := ir.Tensor(ir.S32, 3, 3)
	return &ir.Program{
		Name:        ir.DefaultFunctionName,
		Computation: "Eltwise",
		Inputs: []ir.Input{
			{Name: "arg0", Param: "input", Type: t},
			{Name: "arg1", Param: "input", Type: t},
		},
		Outputs: []ir.TensorType{t},
		Ops: []ir.Op{
			{ID: 0, Kind: kind, Operands: []ir.Value{ir.Arg(0), ir.Arg(1)}, Type: t},
		},
		Results: []ir.Value{ir.Result(0)},
	}
}

func createTestProgramRecord(t *testing.T, kind ir.OpKind) ProgramRecord {
	t.Helper()
	rec, err := NewProgramRecord(testProgram(kind))
	if err != nil {
		t.Fatalf("NewProgramRecord() failed: %v", err)
	}
	return rec
}

// createTestRun creates a successful run with boolean 3x3 buffers.
func createTestRun(id, programHash string, seq int64) RunRecord {
	t := ir.Tensor(ir.S32, 3, 3)
	return RunRecord{
		ID:          id,
		Seq:         seq,
		ProgramHash: programHash,
		Inputs: []ir.Buffer{
			ir.MustBuffer(t, 0, 0, 1, 1, 0, 0, 1, 1, 0),
			ir.MustBuffer(t, 1, 0, 1, 0, 1, 0, 1, 0, 1),
		},
		Outputs: []ir.Buffer{
			ir.MustBuffer(t, 0, 0, 1, 0, 0, 0, 1, 0, 0),
		},
		Status:        RunOK,
		EngineVersion: ir.EngineVersion,
	}
}
