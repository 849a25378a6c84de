package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadProgram retrieves a program by hash.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadProgram(ctx context.Context, hash string) (ProgramRecord, error) {
	var rec ProgramRecord
	var canonical string

	err := s.db.QueryRowContext(ctx, `
		SELECT hash, name, computation, text, canonical, ir_version
		FROM programs
		WHERE hash = ?
	`, hash).Scan(&rec.Hash, &rec.Name, &rec.Computation, &rec.Text, &canonical, &rec.IRVersion)
	if err != nil {
		return ProgramRecord{}, fmt.Errorf("read program %s: %w", hash, err)
	}

	p, err := unmarshalProgram(canonical)
	if err != nil {
		return ProgramRecord{}, fmt.Errorf("read program %s: %w", hash, err)
	}
	rec.Program = p
	return rec, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, program_hash, inputs, outputs, status, error_code, error_message, engine_version
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

// ReadRuns returns the runs of one program, or of every program when
// programHash is empty. Results are ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ReadRuns(ctx context.Context, programHash string) ([]RunRecord, error) {
	query := `
		SELECT id, seq, program_hash, inputs, outputs, status, error_code, error_message, engine_version
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
	var args []any
	if programHash != "" {
		query = `
		SELECT id, seq, program_hash, inputs, outputs, status, error_code, error_message, engine_version
		FROM runs
		WHERE program_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
		args = append(args, programHash)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ListProgramHashes returns every stored program hash in byte order.
func (s *Store) ListProgramHashes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM programs ORDER BY hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	hashes := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan program hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// LastSeq returns the highest run seq in the store, or 0 if empty.
// The engine resumes its clock from here so seq stays unique across sessions.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM runs
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var inputsJSON, outputsJSON, status string

	if err := row.Scan(
		&rec.ID, &rec.Seq, &rec.ProgramHash, &inputsJSON, &outputsJSON,
		&status, &rec.ErrorCode, &rec.ErrorMessage, &rec.EngineVersion,
	); err != nil {
		return RunRecord{}, err
	}
	rec.Status = RunStatus(status)

	inputs, err := unmarshalBuffers(inputsJSON)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Inputs = inputs

	outputs, err := unmarshalBuffers(outputsJSON)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Outputs = outputs

	return rec, nil
}

var _ rowScanner = (*sql.Row)(nil)
