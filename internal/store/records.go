package store

import (
	"fmt"

	"github.com/roach88/hlolower/internal/ir"
)

// ProgramRecord is a lowered program as persisted.
type ProgramRecord struct {
	Hash        string
	Name        string
	Computation string
	Text        string // rendered IR, kept for inspection
	Program     *ir.Program
	IRVersion   string
}

// NewProgramRecord derives the hash and rendered text for p.
func NewProgramRecord(p *ir.Program) (ProgramRecord, error) {
	hash, err := ir.ProgramHash(p)
	if err != nil {
		return ProgramRecord{}, fmt.Errorf("program record: %w", err)
	}
	return ProgramRecord{
		Hash:        hash,
		Name:        p.Name,
		Computation: p.Computation,
		Text:        ir.Render(p),
		Program:     p,
		IRVersion:   ir.IRVersion,
	}, nil
}

// RunStatus is the outcome of one evaluation.
type RunStatus string

const (
	RunOK     RunStatus = "ok"
	RunFailed RunStatus = "error"
)

// RunRecord is one evaluation of a stored program.
// Failed runs keep their inputs and the error code; Outputs is empty.
type RunRecord struct {
	ID            string
	Seq           int64
	ProgramHash   string
	Inputs        []ir.Buffer
	Outputs       []ir.Buffer
	Status        RunStatus
	ErrorCode     string
	ErrorMessage  string
	EngineVersion string
}
