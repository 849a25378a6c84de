package store

import (
	"context"
	"fmt"
)

// WriteProgram inserts a program keyed by its hash.
// Uses ON CONFLICT(hash) DO NOTHING: the same program is only stored once.
func (s *Store) WriteProgram(ctx context.Context, rec ProgramRecord) error {
	canonical, err := marshalProgram(rec.Program)
	if err != nil {
		return fmt.Errorf("write program: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO programs
		(hash, name, computation, text, canonical, ir_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		rec.Hash,
		rec.Name,
		rec.Computation,
		rec.Text,
		canonical,
		rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write program: %w", err)
	}

	return nil
}

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency. A different run reusing
// an existing seq still fails on the UNIQUE constraint.
//
// The program referenced by ProgramHash must exist (foreign key constraint).
func (s *Store) WriteRun(ctx context.Context, rec RunRecord) error {
	inputsJSON, err := marshalBuffers(rec.Inputs)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	outputsJSON, err := marshalBuffers(rec.Outputs)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	status := rec.Status
	if status == "" {
		status = RunOK
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, program_hash, inputs, outputs, status, error_code, error_message, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.ProgramHash,
		inputsJSON,
		outputsJSON,
		string(status),
		rec.ErrorCode,
		rec.ErrorMessage,
		rec.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	return nil
}

// WriteRunAtomic writes the program and the run in one transaction, so a
// run is never persisted without the program it references.
func (s *Store) WriteRunAtomic(ctx context.Context, prog ProgramRecord, run RunRecord) error {
	canonical, err := marshalProgram(prog.Program)
	if err != nil {
		return fmt.Errorf("atomic run: %w", err)
	}
	inputsJSON, err := marshalBuffers(run.Inputs)
	if err != nil {
		return fmt.Errorf("atomic run: %w", err)
	}
	outputsJSON, err := marshalBuffers(run.Outputs)
	if err != nil {
		return fmt.Errorf("atomic run: %w", err)
	}

	status := run.Status
	if status == "" {
		status = RunOK
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("atomic run: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO programs
		(hash, name, computation, text, canonical, ir_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, prog.Hash, prog.Name, prog.Computation, prog.Text, canonical, prog.IRVersion)
	if err != nil {
		return fmt.Errorf("atomic run: write program: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, program_hash, inputs, outputs, status, error_code, error_message, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID, run.Seq, run.ProgramHash, inputsJSON, outputsJSON,
		string(status), run.ErrorCode, run.ErrorMessage, run.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("atomic run: write run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("atomic run: commit: %w", err)
	}
	return nil
}
